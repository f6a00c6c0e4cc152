package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tushrpal/instagram-follower-analyzer/analyze"
	"github.com/tushrpal/instagram-follower-analyzer/normalize"
	"github.com/tushrpal/instagram-follower-analyzer/unfollow"
)

// seedContacts persists n mutual contacts with zero-padded handles so the
// handle ordering matches the numeric one.
func seedContacts(t *testing.T, st *Store, n int) {
	t.Helper()
	items := make([]normalize.Contact, n)
	for i := range items {
		items[i] = normalize.Contact{Handle: fmt.Sprintf("user_%03d", i)}
	}
	sess := Session{ID: "sess_1", UploadedAt: 100, MutualCount: n}
	art := Artifacts{Sets: analyze.RelationshipSets{Mutual: items}}
	if err := st.SaveSession(context.Background(), sess, art); err != nil {
		t.Fatal(err)
	}
}

func TestListContactsPagination(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	seedContacts(t, st, 45)

	page, err := st.ListContacts(ctx, "sess_1", CategoryMutual, "", 2, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 45 || page.TotalPages != 3 || page.Page != 2 || page.Limit != 20 {
		t.Errorf("page meta = %+v, want total=45 totalPages=3 page=2 limit=20", page)
	}
	if len(page.Items) != 20 {
		t.Fatalf("got %d items, want 20", len(page.Items))
	}
	if page.Items[0].Handle != "user_020" || page.Items[19].Handle != "user_039" {
		t.Errorf("slice = [%s..%s], want [user_020..user_039]",
			page.Items[0].Handle, page.Items[19].Handle)
	}
}

func TestListContactsLastPagePartial(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	seedContacts(t, st, 45)

	page, err := st.ListContacts(ctx, "sess_1", CategoryMutual, "", 3, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 5 {
		t.Errorf("last page has %d items, want 5", len(page.Items))
	}

	page, err = st.ListContacts(ctx, "sess_1", CategoryMutual, "", 4, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 0 || page.Total != 45 {
		t.Errorf("beyond-range page = %+v, want empty items with total intact", page)
	}
}

func TestListContactsRejectsBadBounds(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	seedContacts(t, st, 3)

	if _, err := st.ListContacts(ctx, "sess_1", CategoryMutual, "", 0, 20); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("page=0: err = %v, want ErrInvalidPage", err)
	}
	if _, err := st.ListContacts(ctx, "sess_1", CategoryMutual, "", 1, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("limit=0: err = %v, want ErrInvalidLimit", err)
	}
	if _, err := st.ListContacts(ctx, "sess_1", CategoryMutual, "", 1, MaxLimit+1); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("limit=%d: err = %v, want ErrInvalidLimit", MaxLimit+1, err)
	}
	if _, err := st.ListContacts(ctx, "sess_1", Category("friends"), "", 1, 20); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("bad category: err = %v, want ErrUnknownCategory", err)
	}
}

func TestListContactsSearchCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	sess := Session{ID: "sess_1", UploadedAt: 100}
	art := Artifacts{Sets: analyze.RelationshipSets{Mutual: []normalize.Contact{
		{Handle: "Alice_Smith"},
		{Handle: "alicia"},
		{Handle: "bob"},
	}}}
	if err := st.SaveSession(ctx, sess, art); err != nil {
		t.Fatal(err)
	}

	page, err := st.ListContacts(ctx, "sess_1", CategoryMutual, "ALIC", 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Errorf("search total = %d, want 2", page.Total)
	}
}

func TestListContactsSearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	art := Artifacts{Sets: analyze.RelationshipSets{Mutual: []normalize.Contact{
		{Handle: "under_score"},
		{Handle: "underXscore"},
	}}}
	if err := st.SaveSession(ctx, Session{ID: "sess_1", UploadedAt: 100}, art); err != nil {
		t.Fatal(err)
	}

	// "_" must match literally, not as a single-character wildcard.
	page, err := st.ListContacts(ctx, "sess_1", CategoryMutual, "under_", 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].Handle != "under_score" {
		t.Errorf("got %+v, want only under_score", page.Items)
	}
}

func TestListUnfollowedRecentFirst(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	art := Artifacts{Unfollowed: []unfollow.Profile{
		{Handle: "old", UnfollowedAt: 10, Source: unfollow.SourceImported},
		{Handle: "new", UnfollowedAt: 30, Source: unfollow.SourceDetected},
		{Handle: "mid", UnfollowedAt: 20, Source: unfollow.SourceDetected},
	}}
	if err := st.SaveSession(ctx, Session{ID: "sess_1", UploadedAt: 100, UnfollowedCount: 3}, art); err != nil {
		t.Fatal(err)
	}

	page, err := st.ListUnfollowed(ctx, "sess_1", "", 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(page.Items))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if page.Items[i].Handle != want {
			t.Errorf("item %d = %s, want %s", i, page.Items[i].Handle, want)
		}
	}
	if page.Items[0].SessionID != "sess_1" {
		t.Errorf("SessionID = %q, want sess_1", page.Items[0].SessionID)
	}
}

func TestExportRowsOrderedByCategory(t *testing.T) {
	ctx := context.Background()
	st := tempStore(t)
	art := Artifacts{Sets: analyze.RelationshipSets{
		Mutual:        []normalize.Contact{{Handle: "m2"}, {Handle: "m1", ProfileURL: "https://instagram.com/m1"}},
		FollowersOnly: []normalize.Contact{{Handle: "fr1"}},
		FollowingOnly: []normalize.Contact{{Handle: "fg1"}},
	}}
	if err := st.SaveSession(ctx, Session{ID: "sess_1", UploadedAt: 100}, art); err != nil {
		t.Fatal(err)
	}

	rows, err := st.ExportRows(ctx, "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	want := []ExportRow{
		{Handle: "m1", Label: "Mutual", ProfileURL: "https://instagram.com/m1"},
		{Handle: "m2", Label: "Mutual"},
		{Handle: "fr1", Label: "Followers Only"},
		{Handle: "fg1", Label: "Following Only"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}
