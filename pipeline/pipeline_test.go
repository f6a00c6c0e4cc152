package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tushrpal/instagram-follower-analyzer/archive"
	"github.com/tushrpal/instagram-follower-analyzer/dbopen"
	"github.com/tushrpal/instagram-follower-analyzer/store"
	"github.com/tushrpal/instagram-follower-analyzer/unfollow"
)

var testNow = time.Unix(1_700_000_000, 0)

func testPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	st := store.New(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)), nil)
	n := 0
	p := New(st, nil,
		WithNow(func() time.Time { return testNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("sess_%d", n) }),
	)
	return p, st
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func listJSON(handles ...string) string {
	var buf bytes.Buffer
	buf.WriteString(`[`)
	for i, h := range handles {
		if i > 0 {
			buf.WriteString(`,`)
		}
		fmt.Fprintf(&buf,
			`{"string_list_data":[{"value":%q,"href":"https://instagram.com/%s","timestamp":%d}]}`,
			h, h, 1_690_000_000+i)
	}
	buf.WriteString(`]`)
	return buf.String()
}

func process(t *testing.T, p *Pipeline, files map[string]string) *Summary {
	t.Helper()
	data := buildZip(t, files)
	sum, err := p.Process(context.Background(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	return sum
}

func TestProcessEndToEnd(t *testing.T) {
	p, st := testPipeline(t)

	sum := process(t, p, map[string]string{
		"connections/followers_1.json": listJSON("alice", "bob"),
		"connections/following.json":   `{"relationships_following": ` + listJSON("bob", "carol") + `}`,
		"connections/pending_follow_requests.json": `{"relationships_follow_requests_sent": ` + listJSON("pat") + `}`,
	})

	if sum.SessionID != "sess_1" || sum.PreviousSessionID != "" {
		t.Errorf("ids = (%q, %q), want (sess_1, \"\")", sum.SessionID, sum.PreviousSessionID)
	}
	if sum.FollowersCount != 2 || sum.FollowingCount != 2 || sum.PendingCount != 1 {
		t.Errorf("counts = %+v, want followers=2 following=2 pending=1", sum)
	}
	if sum.MutualCount != 1 || sum.FollowersOnly != 1 || sum.FollowingOnly != 1 {
		t.Errorf("partition = %+v, want mutual=1 followersOnly=1 followingOnly=1", sum)
	}
	if sum.EventCount != 4 {
		t.Errorf("EventCount = %d, want 4 (bob counts once per direction)", sum.EventCount)
	}

	sess, err := st.GetSession(context.Background(), "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.UploadedAt != testNow.Unix() || sess.EventCount != 4 {
		t.Errorf("persisted session = %+v", sess)
	}

	events, err := st.Timeline(context.Background(), "sess_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Errorf("persisted %d events, want 4", len(events))
	}
}

func TestProcessEmptyDataset(t *testing.T) {
	p, st := testPipeline(t)

	data := buildZip(t, map[string]string{
		"personal_information/account.json": `{"nothing": "relevant"}`,
	})
	_, err := p.Process(context.Background(), bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("err = %v, want ErrEmptyDataset", err)
	}

	if id, _ := st.LatestSessionID(context.Background()); id != "" {
		t.Errorf("rejected upload persisted session %q", id)
	}
}

func TestProcessUnreadableArchive(t *testing.T) {
	p, _ := testPipeline(t)

	garbage := []byte("not a zip")
	_, err := p.Process(context.Background(), bytes.NewReader(garbage), int64(len(garbage)))
	if !errors.Is(err, archive.ErrUnreadable) {
		t.Fatalf("err = %v, want ErrUnreadable", err)
	}
}

func TestSecondUploadDetectsUnfollow(t *testing.T) {
	p, st := testPipeline(t)

	process(t, p, map[string]string{
		"followers_1.json": listJSON("alice"),
		"following.json":   `{"relationships_following": ` + listJSON("a", "b", "c") + `}`,
	})

	sum := process(t, p, map[string]string{
		"followers_1.json": listJSON("alice"),
		"following.json":   `{"relationships_following": ` + listJSON("a", "c") + `}`,
	})

	if sum.PreviousSessionID != "sess_1" {
		t.Errorf("PreviousSessionID = %q, want sess_1", sum.PreviousSessionID)
	}
	if sum.UnfollowedCount != 1 {
		t.Fatalf("UnfollowedCount = %d, want 1", sum.UnfollowedCount)
	}

	page, err := st.ListUnfollowed(context.Background(), "sess_2", "", 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("got %d unfollowed records, want 1", len(page.Items))
	}
	got := page.Items[0]
	if got.Handle != "b" || got.Source != unfollow.SourceDetected {
		t.Errorf("record = %+v, want handle b source detected", got)
	}
	if got.ProfileURL != "https://instagram.com/b" {
		t.Errorf("ProfileURL = %q, want previous session's URL", got.ProfileURL)
	}
	if got.UnfollowedAt != testNow.Unix() {
		t.Errorf("UnfollowedAt = %d, want processing time %d", got.UnfollowedAt, testNow.Unix())
	}
}

func TestImportedUnfollowedRecords(t *testing.T) {
	p, st := testPipeline(t)

	sum := process(t, p, map[string]string{
		"followers_1.json":                  listJSON("alice"),
		"recently_unfollowed_profiles.json": `{"relationships_unfollowed_users": ` + listJSON("dropped") + `}`,
	})

	if sum.UnfollowedCount != 1 {
		t.Fatalf("UnfollowedCount = %d, want 1", sum.UnfollowedCount)
	}
	page, err := st.ListUnfollowed(context.Background(), sum.SessionID, "", 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].Source != unfollow.SourceImported {
		t.Fatalf("items = %+v, want one imported record", page.Items)
	}
	// Imported records keep the fragment's own timestamp.
	if page.Items[0].UnfollowedAt != 1_690_000_000 {
		t.Errorf("UnfollowedAt = %d, want 1690000000", page.Items[0].UnfollowedAt)
	}
}

func TestGrowthInSummary(t *testing.T) {
	p, _ := testPipeline(t)

	recent := testNow.Add(-time.Hour).Unix()
	sum := process(t, p, map[string]string{
		"followers_1.json": fmt.Sprintf(
			`[{"string_list_data":[{"value":"alice","timestamp":%d}]}]`, recent),
	})
	if sum.Growth.Day != 1 || sum.Growth.AllTime != 1 {
		t.Errorf("growth = %+v, want day=1 allTime=1", sum.Growth)
	}
}

func TestDiagnosticsSurfaceInSummary(t *testing.T) {
	p, _ := testPipeline(t)

	sum := process(t, p, map[string]string{
		"followers_1.json": `[{"string_list_data":[{"value":"alice"}]}, {"title":"no handle"}]`,
		"followers_2.json": `broken json`,
	})
	if sum.Diagnostics.Fragments != 2 {
		t.Errorf("Fragments = %d, want 2", sum.Diagnostics.Fragments)
	}
	if sum.Diagnostics.Unparsable != 1 {
		t.Errorf("Unparsable = %d, want 1", sum.Diagnostics.Unparsable)
	}
	if sum.Diagnostics.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", sum.Diagnostics.Dropped)
	}
}
