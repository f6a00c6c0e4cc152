package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tushrpal/instagram-follower-analyzer/normalize"
	"github.com/tushrpal/instagram-follower-analyzer/unfollow"
)

// MaxLimit bounds the page size of the query layer.
const MaxLimit = 100

var (
	// ErrInvalidPage reports a page number below 1.
	ErrInvalidPage = errors.New("page must be >= 1")
	// ErrInvalidLimit reports a limit outside 1..MaxLimit.
	ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", MaxLimit)
	// ErrUnknownCategory reports a category the query layer does not list.
	ErrUnknownCategory = errors.New("unknown category")
)

// ContactPage is one page of categorized contacts, ordered by handle
// ascending.
type ContactPage struct {
	Items      []normalize.Contact `json:"items"`
	Total      int                 `json:"total"`
	TotalPages int                 `json:"totalPages"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
}

// UnfollowedPage is one page of unfollowed records, ordered by unfollowed_at
// descending (most recent loss first).
type UnfollowedPage struct {
	Items      []unfollow.Profile `json:"items"`
	Total      int                `json:"total"`
	TotalPages int                `json:"totalPages"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
}

// ParseCategory validates a listable category name.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryMutual, CategoryFollowersOnly, CategoryFollowingOnly, CategoryPending:
		return Category(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// pageBounds validates page/limit (1-based, limit bounded; out-of-range is
// rejected, never clamped) and returns the row offset.
func pageBounds(page, limit int) (offset int, err error) {
	if page < 1 {
		return 0, ErrInvalidPage
	}
	if limit < 1 || limit > MaxLimit {
		return 0, ErrInvalidLimit
	}
	return (page - 1) * limit, nil
}

// likePattern builds a case-insensitive substring LIKE pattern with SQL
// wildcard metacharacters escaped.
func likePattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(search))
	return "%" + escaped + "%"
}

func totalPages(total, limit int) int {
	return (total + limit - 1) / limit
}

// ListContacts returns one page of a session's categorized contacts,
// optionally filtered by a case-insensitive substring match on handle.
// Ordering is deterministic (handle ascending), so pagination is stable
// across calls.
func (s *Store) ListContacts(ctx context.Context, sessionID string, cat Category, search string, page, limit int) (*ContactPage, error) {
	if _, err := ParseCategory(string(cat)); err != nil {
		return nil, err
	}
	offset, err := pageBounds(page, limit)
	if err != nil {
		return nil, err
	}

	where := `session_id = ? AND category = ?`
	args := []any{sessionID, cat}
	if search != "" {
		where += ` AND LOWER(handle) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(search))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT handle, profile_url, observed_at FROM contacts WHERE `+where+
			` ORDER BY handle LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collectContacts(rows)
	if err != nil {
		return nil, err
	}
	return &ContactPage{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, limit),
		Page:       page,
		Limit:      limit,
	}, nil
}

// ListUnfollowed returns one page of a session's unfollowed records, most
// recent first, optionally filtered by handle substring.
func (s *Store) ListUnfollowed(ctx context.Context, sessionID, search string, page, limit int) (*UnfollowedPage, error) {
	offset, err := pageBounds(page, limit)
	if err != nil {
		return nil, err
	}

	where := `session_id = ?`
	args := []any{sessionID}
	if search != "" {
		where += ` AND LOWER(handle) LIKE ? ESCAPE '\'`
		args = append(args, likePattern(search))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM unfollowed WHERE `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT handle, profile_url, unfollowed_at, source, session_id FROM unfollowed WHERE `+where+
			` ORDER BY unfollowed_at DESC, handle LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []unfollow.Profile
	for rows.Next() {
		var u unfollow.Profile
		if err := rows.Scan(&u.Handle, &u.ProfileURL, &u.UnfollowedAt, &u.Source, &u.SessionID); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &UnfollowedPage{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, limit),
		Page:       page,
		Limit:      limit,
	}, nil
}

// ExportRow is one line of the categorized CSV export.
type ExportRow struct {
	Handle     string
	Label      string
	ProfileURL string
}

// categoryLabels are the user-facing CSV labels; the order here fixes the
// export ordering.
var categoryLabels = []struct {
	cat   Category
	label string
}{
	{CategoryMutual, "Mutual"},
	{CategoryFollowersOnly, "Followers Only"},
	{CategoryFollowingOnly, "Following Only"},
}

// ExportRows returns every categorized contact of a session in export order:
// Mutual, then Followers Only, then Following Only, each sorted by handle.
func (s *Store) ExportRows(ctx context.Context, sessionID string) ([]ExportRow, error) {
	var out []ExportRow
	for _, cl := range categoryLabels {
		contacts, err := s.contactsByCategory(ctx, sessionID, cl.cat)
		if err != nil {
			return nil, err
		}
		for _, c := range contacts {
			out = append(out, ExportRow{Handle: c.Handle, Label: cl.label, ProfileURL: c.ProfileURL})
		}
	}
	return out, nil
}
