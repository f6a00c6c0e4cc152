package analyze

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tushrpal/instagram-follower-analyzer/normalize"
)

func contacts(handles ...string) []normalize.Contact {
	out := make([]normalize.Contact, len(handles))
	for i, h := range handles {
		out[i] = normalize.Contact{Handle: h}
	}
	return out
}

func handles(cs []normalize.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Handle
	}
	return out
}

func TestPartition(t *testing.T) {
	sets := Partition(contacts("alice", "bob", "carol"), contacts("bob", "carol", "dave"))

	if diff := cmp.Diff([]string{"bob", "carol"}, handles(sets.Mutual)); diff != "" {
		t.Errorf("mutual mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"alice"}, handles(sets.FollowersOnly)); diff != "" {
		t.Errorf("followersOnly mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"dave"}, handles(sets.FollowingOnly)); diff != "" {
		t.Errorf("followingOnly mismatch:\n%s", diff)
	}
}

func TestPartitionCoversBothLists(t *testing.T) {
	followers := contacts("a", "b", "c", "d")
	following := contacts("c", "d", "e")
	sets := Partition(followers, following)

	if got := len(sets.Mutual) + len(sets.FollowersOnly); got != len(followers) {
		t.Errorf("mutual+followersOnly = %d, want %d", got, len(followers))
	}
	if got := len(sets.Mutual) + len(sets.FollowingOnly); got != len(following) {
		t.Errorf("mutual+followingOnly = %d, want %d", got, len(following))
	}
}

func TestPartitionEmptyInputs(t *testing.T) {
	sets := Partition(nil, nil)
	if len(sets.Mutual)+len(sets.FollowersOnly)+len(sets.FollowingOnly) != 0 {
		t.Fatalf("expected all-empty partition, got %+v", sets)
	}

	sets = Partition(contacts("a"), nil)
	if len(sets.FollowersOnly) != 1 || len(sets.Mutual) != 0 {
		t.Fatalf("followers-only input misclassified: %+v", sets)
	}
}

func TestPartitionMutualKeepsFollowersSideData(t *testing.T) {
	followers := []normalize.Contact{
		{Handle: "x", ProfileURL: "https://instagram.com/x", ObservedAt: normalize.Ts(100)},
	}
	following := []normalize.Contact{
		{Handle: "x", ObservedAt: normalize.Ts(999)},
	}
	sets := Partition(followers, following)
	if len(sets.Mutual) != 1 {
		t.Fatalf("mutual = %+v, want one entry", sets.Mutual)
	}
	if diff := cmp.Diff(followers[0], sets.Mutual[0]); diff != "" {
		t.Errorf("mutual entry lost followers-side data:\n%s", diff)
	}
}
