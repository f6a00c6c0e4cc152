// Package analyze derives relationship sets, the follow-event timeline, and
// windowed growth statistics from normalized contact lists. Everything here
// is a pure, synchronous transform over fully materialized inputs.
package analyze

import (
	"github.com/tushrpal/instagram-follower-analyzer/normalize"
)

// RelationshipSets is the three-way partition of a follower/following pair.
// Mutual ∪ FollowersOnly equals the followers list; Mutual ∪ FollowingOnly
// equals the following list; the unions are disjoint. Each output Contact
// retains the data of its source list (a mutual entry carries the
// followers-side record, not the following-side one).
type RelationshipSets struct {
	Mutual        []normalize.Contact `json:"mutual"`
	FollowersOnly []normalize.Contact `json:"followersOnly"`
	FollowingOnly []normalize.Contact `json:"followingOnly"`
}

// Partition computes the three-way partition using hash membership tests,
// O(n+m) over the two lists. Inputs are lists already unique by handle;
// empty inputs yield empty outputs.
func Partition(followers, following []normalize.Contact) RelationshipSets {
	inFollowing := make(map[string]bool, len(following))
	for _, c := range following {
		inFollowing[c.Handle] = true
	}
	inFollowers := make(map[string]bool, len(followers))
	for _, c := range followers {
		inFollowers[c.Handle] = true
	}

	var sets RelationshipSets
	for _, c := range followers {
		if inFollowing[c.Handle] {
			sets.Mutual = append(sets.Mutual, c)
		} else {
			sets.FollowersOnly = append(sets.FollowersOnly, c)
		}
	}
	for _, c := range following {
		if !inFollowers[c.Handle] {
			sets.FollowingOnly = append(sets.FollowingOnly, c)
		}
	}
	return sets
}
