package analyze

import (
	"sort"
	"time"

	"github.com/tushrpal/instagram-follower-analyzer/normalize"
)

// Direction tells which list a timeline event originates from.
type Direction string

const (
	DirectionFollower  Direction = "follower"
	DirectionFollowing Direction = "following"
)

// FollowEvent is one point on the chronological event stream. The sequence
// is sorted ascending by timestamp, carries at most one event per
// (handle, direction) pair, and both running counts are non-decreasing with
// exactly the count matching the event's direction incremented by one.
type FollowEvent struct {
	Timestamp      int64     `json:"timestamp"`
	Handle         string    `json:"handle"`
	Direction      Direction `json:"direction"`
	FollowersAfter int       `json:"followersCountAfter"`
	FollowingAfter int       `json:"followingCountAfter"`
}

// BuildTimeline merges the two contact lists into one ascending event
// sequence with running counts. A contact without an observed timestamp
// falls back to now (flagged as a known distortion for old records; the
// export simply carries no better information).
func BuildTimeline(followers, following []normalize.Contact, now time.Time) []FollowEvent {
	nowSec := now.Unix()
	events := make([]FollowEvent, 0, len(followers)+len(following))
	seen := make(map[string]map[Direction]bool)

	emit := func(contacts []normalize.Contact, dir Direction) {
		for _, c := range contacts {
			if seen[c.Handle][dir] {
				continue
			}
			if seen[c.Handle] == nil {
				seen[c.Handle] = make(map[Direction]bool)
			}
			seen[c.Handle][dir] = true

			ts := nowSec
			if c.ObservedAt != nil {
				ts = *c.ObservedAt
			}
			events = append(events, FollowEvent{Timestamp: ts, Handle: c.Handle, Direction: dir})
		}
	}
	emit(followers, DirectionFollower)
	emit(following, DirectionFollowing)

	// Stable sort keeps the original encounter order on timestamp ties.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	followersCount, followingCount := 0, 0
	for i := range events {
		if events[i].Direction == DirectionFollower {
			followersCount++
		} else {
			followingCount++
		}
		events[i].FollowersAfter = followersCount
		events[i].FollowingAfter = followingCount
	}
	return events
}
