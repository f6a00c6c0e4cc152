// Package normalize decodes classified archive fragments into canonical
// Contact lists. Fragments of heterogeneous shapes are decoded with a fixed
// ordered strategy list, then merged per kind with deduplication by handle.
package normalize

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/tushrpal/instagram-follower-analyzer/archive"
)

// Stats aggregates per-record diagnostics for one normalization run.
// Individual record failures are never fatal; they only count here.
type Stats struct {
	Fragments     int `json:"fragments"`
	Unparsable    int `json:"unparsable"`    // fragments no strategy could decode
	Recovered     int `json:"recovered"`     // fragments decoded via a degraded strategy
	Dropped       int `json:"dropped"`       // entries with no extractable handle
	BadTimestamps int `json:"badTimestamps"` // entries whose timestamp was unparsable
}

// Result holds the merged, deduplicated Contact lists of one run.
type Result struct {
	Followers  []Contact
	Following  []Contact
	Pending    []Contact
	Unfollowed []Contact
	Stats      Stats
}

// Normalizer decodes and merges fragments.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// fragmentResult is the decode output of a single fragment, gathered by
// input position so the merge stays deterministic regardless of goroutine
// completion order.
type fragmentResult struct {
	kind     archive.Kind
	contacts []Contact
	stats    Stats
}

// Run decodes every fragment concurrently, then merges the gathered results
// per kind in input order. Fragments share no mutable state; the only join
// point is the indexed results slice.
func (n *Normalizer) Run(ctx context.Context, frags []archive.Fragment) (*Result, error) {
	results := make([]fragmentResult, len(frags))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range frags {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = n.decodeOne(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	merged := map[archive.Kind]*merger{
		archive.KindFollowers:  newMerger(),
		archive.KindFollowing:  newMerger(),
		archive.KindPending:    newMerger(),
		archive.KindUnfollowed: newMerger(),
	}
	for _, fr := range results {
		res.Stats.add(fr.stats)
		if m := merged[fr.kind]; m != nil {
			m.absorb(fr.contacts)
		}
	}
	res.Stats.Fragments = len(frags)
	res.Followers = merged[archive.KindFollowers].contacts()
	res.Following = merged[archive.KindFollowing].contacts()
	res.Pending = merged[archive.KindPending].contacts()
	res.Unfollowed = merged[archive.KindUnfollowed].contacts()
	return res, nil
}

func (n *Normalizer) decodeOne(f archive.Fragment) fragmentResult {
	fr := fragmentResult{kind: f.Kind}

	decoded, strategy, ok := decodeFragment(f.Content)
	if !ok {
		fr.stats.Unparsable++
		n.logger.Warn("fragment yielded no records", "path", f.Path, "kind", f.Kind)
		return fr
	}
	if strategy != strategyDirect {
		fr.stats.Recovered++
		n.logger.Info("fragment recovered via degraded decode path",
			"path", f.Path, "kind", f.Kind, "strategy", strategy)
	}

	for _, entry := range entries(decoded, f.Kind) {
		c, ok, badTs := contactFromEntry(entry)
		if badTs {
			fr.stats.BadTimestamps++
		}
		if !ok {
			fr.stats.Dropped++
			continue
		}
		fr.contacts = append(fr.contacts, c)
	}
	return fr
}

func (s *Stats) add(o Stats) {
	s.Unparsable += o.Unparsable
	s.Recovered += o.Recovered
	s.Dropped += o.Dropped
	s.BadTimestamps += o.BadTimestamps
}

// merger keeps exactly one Contact per handle across fragments of one kind:
// the earliest known timestamp wins (first-seen order breaks ties), a handle
// with no timestamp anywhere keeps a nil ObservedAt, and the first non-empty
// profile URL is retained.
type merger struct {
	order []string
	byKey map[string]*Contact
}

func newMerger() *merger {
	return &merger{byKey: make(map[string]*Contact)}
}

func (m *merger) absorb(contacts []Contact) {
	for _, c := range contacts {
		prev, seen := m.byKey[c.Handle]
		if !seen {
			keep := c
			m.byKey[c.Handle] = &keep
			m.order = append(m.order, c.Handle)
			continue
		}
		if c.ObservedAt != nil && (prev.ObservedAt == nil || *c.ObservedAt < *prev.ObservedAt) {
			prev.ObservedAt = c.ObservedAt
		}
		if prev.ProfileURL == "" {
			prev.ProfileURL = c.ProfileURL
		}
	}
}

func (m *merger) contacts() []Contact {
	out := make([]Contact, 0, len(m.order))
	for _, h := range m.order {
		out = append(out, *m.byKey[h])
	}
	return out
}
