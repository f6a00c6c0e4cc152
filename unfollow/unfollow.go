// Package unfollow infers accounts that disappeared from the following list
// between two uploads, and converts explicitly exported "recently
// unfollowed" records. Detection reads the previous session through an
// explicit persistence port; there is no hidden module state.
package unfollow

import (
	"context"
	"fmt"
	"time"

	"github.com/tushrpal/instagram-follower-analyzer/normalize"
)

// Source marks how an unfollowed record came to exist.
type Source string

const (
	// SourceDetected records are synthesized by diffing two sessions.
	SourceDetected Source = "detected"
	// SourceImported records come directly from an export fragment.
	SourceImported Source = "imported"
)

// Profile is one unfollowed account record. For detected records
// UnfollowedAt is the processing time of the upload that noticed the absence
// (the exact unfollow moment is unknowable); for imported records it is the
// fragment's own timestamp. SessionID is assigned on persistence.
type Profile struct {
	Handle       string `json:"handle"`
	ProfileURL   string `json:"profileUrl,omitempty"`
	UnfollowedAt int64  `json:"unfollowedAt"`
	Source       Source `json:"source"`
	SessionID    string `json:"sessionId,omitempty"`
}

// History is the persistence port the detector reads the previous session
// through. Reading session N-1 must be safe while another upload writes
// session N; the store isolates sessions by id.
type History interface {
	// LatestSessionID returns the most recent persisted session id, or ""
	// when no session exists yet.
	LatestSessionID(ctx context.Context) (string, error)

	// FollowingContacts returns the full following-category contacts
	// persisted for the given session.
	FollowingContacts(ctx context.Context, sessionID string) ([]normalize.Contact, error)
}

// Detect compares the current following list against the previous session's
// persisted one and synthesizes a detected Profile for every handle that is
// present there but absent now. The profile URL comes from the previous
// session's record. On a first upload (no previous session) it returns no
// records. The previous session id is returned for the caller's summary.
func Detect(ctx context.Context, h History, current []normalize.Contact, now time.Time) ([]Profile, string, error) {
	prevID, err := h.LatestSessionID(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("latest session: %w", err)
	}
	if prevID == "" {
		return nil, "", nil
	}

	previous, err := h.FollowingContacts(ctx, prevID)
	if err != nil {
		return nil, "", fmt.Errorf("previous following for %s: %w", prevID, err)
	}

	stillFollowing := make(map[string]bool, len(current))
	for _, c := range current {
		stillFollowing[c.Handle] = true
	}

	nowSec := now.Unix()
	var detected []Profile
	for _, prev := range previous {
		if stillFollowing[prev.Handle] {
			continue
		}
		detected = append(detected, Profile{
			Handle:       prev.Handle,
			ProfileURL:   prev.ProfileURL,
			UnfollowedAt: nowSec,
			Source:       SourceDetected,
		})
	}
	return detected, prevID, nil
}

// FromImported converts normalized contacts from an unfollowed-kind fragment
// into imported Profiles. A contact without a timestamp falls back to now.
// Imported records bypass diffing entirely; a handle may appear both here
// and in Detect's output, and the two are not deduplicated across sources.
func FromImported(contacts []normalize.Contact, now time.Time) []Profile {
	nowSec := now.Unix()
	out := make([]Profile, 0, len(contacts))
	for _, c := range contacts {
		ts := nowSec
		if c.ObservedAt != nil {
			ts = *c.ObservedAt
		}
		out = append(out, Profile{
			Handle:       c.Handle,
			ProfileURL:   c.ProfileURL,
			UnfollowedAt: ts,
			Source:       SourceImported,
		})
	}
	return out
}
