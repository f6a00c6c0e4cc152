// Package pipeline orchestrates one upload: archive scan, fragment
// normalization, relationship analysis, timeline construction, cross-session
// unfollow detection, and the atomic persistence of the resulting session.
// The caller receives either a complete Summary or a single top-level error;
// per-record failures only ever surface as aggregated counters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tushrpal/instagram-follower-analyzer/analyze"
	"github.com/tushrpal/instagram-follower-analyzer/archive"
	"github.com/tushrpal/instagram-follower-analyzer/normalize"
	"github.com/tushrpal/instagram-follower-analyzer/store"
	"github.com/tushrpal/instagram-follower-analyzer/unfollow"
)

// ErrEmptyDataset reports an archive that produced no followers, following,
// or pending records after full classification and normalization.
var ErrEmptyDataset = errors.New("no relationship records found in archive")

// Summary is the complete result of one processed upload.
type Summary struct {
	SessionID         string              `json:"sessionId"`
	PreviousSessionID string              `json:"previousSessionId,omitempty"`
	UploadedAt        int64               `json:"uploadedAt"`
	FollowersCount    int                 `json:"followersCount"`
	FollowingCount    int                 `json:"followingCount"`
	MutualCount       int                 `json:"mutualCount"`
	FollowersOnly     int                 `json:"followersOnlyCount"`
	FollowingOnly     int                 `json:"followingOnlyCount"`
	PendingCount      int                 `json:"pendingCount"`
	EventCount        int                 `json:"eventCount"`
	UnfollowedCount   int                 `json:"unfollowedCount"`
	Growth            analyze.GrowthStats `json:"growth"`
	Diagnostics       normalize.Stats     `json:"diagnostics"`
}

// Pipeline wires the stages together around one store.
type Pipeline struct {
	store   *store.Store
	scanner *archive.Scanner
	norm    *normalize.Normalizer
	events  *store.EventLogger
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNow overrides the processing-time clock (tests).
func WithNow(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithIDGenerator overrides session id generation (tests).
func WithIDGenerator(gen func() string) Option { return func(p *Pipeline) { p.newID = gen } }

// WithEvents sets the pipeline event logger.
func WithEvents(e *store.EventLogger) Option { return func(p *Pipeline) { p.events = e } }

// WithScanner overrides the archive scanner configuration.
func WithScanner(s *archive.Scanner) Option { return func(p *Pipeline) { p.scanner = s } }

// New creates a fully wired pipeline.
func New(st *store.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:   st,
		scanner: archive.New(archive.Config{Logger: logger}),
		norm:    normalize.New(logger),
		logger:  logger,
		now:     time.Now,
		newID:   func() string { return "sess_" + uuid.Must(uuid.NewV7()).String() },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessFile processes the ZIP archive at path. Uploads are spooled to disk
// by the transport layer, so large archives never live in memory whole.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrUnreadable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrUnreadable, err)
	}
	return p.Process(ctx, f, info.Size())
}

// Process runs the whole pipeline over one archive.
func (p *Pipeline) Process(ctx context.Context, r io.ReaderAt, size int64) (*Summary, error) {
	summary, err := p.run(ctx, r, size)
	if err != nil {
		p.logEvent(ctx, "", actionFor(err), err.Error(), false)
		return nil, err
	}
	p.logEvent(ctx, summary.SessionID, "complete",
		fmt.Sprintf(`{"followers":%d,"following":%d,"unfollowed":%d}`,
			summary.FollowersCount, summary.FollowingCount, summary.UnfollowedCount), true)
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, r io.ReaderAt, size int64) (*Summary, error) {
	frags, err := p.scanner.Scan(r, size)
	if err != nil {
		return nil, err
	}

	res, err := p.norm.Run(ctx, frags)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if len(res.Followers)+len(res.Following)+len(res.Pending) == 0 {
		return nil, ErrEmptyDataset
	}

	now := p.now()
	sets := analyze.Partition(res.Followers, res.Following)
	events := analyze.BuildTimeline(res.Followers, res.Following, now)
	growth := analyze.Growth(events, now)

	// The only cross-session read: the previous session's following list,
	// resolved before this session's id even exists.
	detected, prevID, err := unfollow.Detect(ctx, p.store, res.Following, now)
	if err != nil {
		return nil, fmt.Errorf("unfollow detection: %w", err)
	}
	unfollowed := append(detected, unfollow.FromImported(res.Unfollowed, now)...)

	sess := store.Session{
		ID:                 p.newID(),
		UploadedAt:         now.Unix(),
		FollowersCount:     len(res.Followers),
		FollowingCount:     len(res.Following),
		MutualCount:        len(sets.Mutual),
		FollowersOnlyCount: len(sets.FollowersOnly),
		FollowingOnlyCount: len(sets.FollowingOnly),
		PendingCount:       len(res.Pending),
		EventCount:         len(events),
		UnfollowedCount:    len(unfollowed),
	}
	art := store.Artifacts{
		Sets:       sets,
		Following:  res.Following,
		Pending:    res.Pending,
		Events:     events,
		Unfollowed: unfollowed,
	}
	if err := p.store.SaveSession(ctx, sess, art); err != nil {
		return nil, err
	}

	p.logger.Info("upload processed",
		"session_id", sess.ID,
		"followers", sess.FollowersCount,
		"following", sess.FollowingCount,
		"mutual", sess.MutualCount,
		"unfollowed", sess.UnfollowedCount,
		"fragments", res.Stats.Fragments,
		"dropped_records", res.Stats.Dropped)

	return &Summary{
		SessionID:         sess.ID,
		PreviousSessionID: prevID,
		UploadedAt:        sess.UploadedAt,
		FollowersCount:    sess.FollowersCount,
		FollowingCount:    sess.FollowingCount,
		MutualCount:       sess.MutualCount,
		FollowersOnly:     sess.FollowersOnlyCount,
		FollowingOnly:     sess.FollowingOnlyCount,
		PendingCount:      sess.PendingCount,
		EventCount:        sess.EventCount,
		UnfollowedCount:   sess.UnfollowedCount,
		Growth:            growth,
		Diagnostics:       res.Stats,
	}, nil
}

func (p *Pipeline) logEvent(ctx context.Context, sessionID, action, details string, success bool) {
	if p.events == nil {
		return
	}
	p.events.Log(ctx, store.PipelineEvent{
		EventType: "upload",
		SessionID: sessionID,
		Action:    action,
		Details:   details,
		Success:   success,
	})
}

func actionFor(err error) string {
	switch {
	case errors.Is(err, archive.ErrUnreadable), errors.Is(err, ErrEmptyDataset):
		return "rejected"
	default:
		return "failed"
	}
}
