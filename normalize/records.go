package normalize

import (
	"sort"
	"strconv"

	"github.com/tushrpal/instagram-follower-analyzer/archive"
)

// listKeys maps each fragment kind to the conventional list-typed key the
// export uses at the object root.
var listKeys = map[archive.Kind]string{
	archive.KindFollowers:  "relationships_followers",
	archive.KindFollowing:  "relationships_following",
	archive.KindPending:    "relationships_follow_requests_sent",
	archive.KindUnfollowed: "relationships_unfollowed_users",
}

// entries pulls the record list out of a decoded fragment. Tolerated shapes,
// in priority order: an array at the root; an object keyed by the kind's
// conventional list key; a generic object whose first array-valued property
// (by sorted key, for determinism) is used as a fallback.
func entries(decoded any, kind archive.Kind) []any {
	switch v := decoded.(type) {
	case []any:
		return v
	case map[string]any:
		if list, ok := v[listKeys[kind]].([]any); ok {
			return list
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if list, ok := v[k].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// contactFromEntry extracts a Contact from one record entry. It prefers the
// first populated structured list item (value/href/timestamp nested one
// level under a list property), falling back to flat value/username fields
// on the entry itself. ok is false when no handle is extractable; badTs is
// true when a timestamp was present but unparsable.
func contactFromEntry(entry any) (c Contact, ok, badTs bool) {
	m, isMap := entry.(map[string]any)
	if !isMap {
		return Contact{}, false, false
	}

	if item := firstListItem(m); item != nil {
		c, badTs = contactFromFields(item)
		if c.Handle != "" {
			return c, true, badTs
		}
	}

	// Flat shape: value/username directly on the entry.
	c, badTs = contactFromFields(m)
	if c.Handle == "" {
		if u, _ := m["username"].(string); u != "" {
			c.Handle = u
		}
	}
	return c, c.Handle != "", badTs
}

// firstListItem returns the first populated map item nested one level under
// a list-typed property of the entry. The conventional string_list_data key
// is checked first; remaining keys are scanned in sorted order.
func firstListItem(entry map[string]any) map[string]any {
	if item := listHead(entry["string_list_data"]); item != nil {
		return item
	}
	keys := make([]string, 0, len(entry))
	for k := range entry {
		if k != "string_list_data" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if item := listHead(entry[k]); item != nil {
			return item
		}
	}
	return nil
}

func listHead(v any) map[string]any {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	item, _ := list[0].(map[string]any)
	return item
}

func contactFromFields(m map[string]any) (c Contact, badTs bool) {
	c.Handle, _ = m["value"].(string)
	c.ProfileURL, _ = m["href"].(string)
	if ts, present := m["timestamp"]; present {
		if sec, ok := parseTimestamp(ts); ok {
			c.ObservedAt = &sec
		} else {
			badTs = true
		}
	}
	return c, badTs
}

// parseTimestamp accepts a JSON number or a numeric string, in Unix seconds.
func parseTimestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}
