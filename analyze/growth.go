package analyze

import "time"

// GrowthStats is the per-window net sum of event contributions relative to
// now: +1 for a follower-direction event, -1 for a following-direction one.
//
// The sign convention is inherited from the source data model: a
// following-direction event subtracts even though it means "I followed
// someone", which conflates audience growth with own activity. Preserved
// as-is pending product clarification.
type GrowthStats struct {
	Day     int `json:"day"`
	Week    int `json:"week"`
	Month   int `json:"month"`
	AllTime int `json:"allTime"`
}

// Growth sums per-event contributions over trailing day/week/month windows
// and all-time.
func Growth(events []FollowEvent, now time.Time) GrowthStats {
	var (
		dayCut   = now.Add(-24 * time.Hour).Unix()
		weekCut  = now.Add(-7 * 24 * time.Hour).Unix()
		monthCut = now.Add(-30 * 24 * time.Hour).Unix()
	)

	var g GrowthStats
	for _, e := range events {
		delta := 1
		if e.Direction == DirectionFollowing {
			delta = -1
		}
		g.AllTime += delta
		if e.Timestamp >= monthCut {
			g.Month += delta
		}
		if e.Timestamp >= weekCut {
			g.Week += delta
		}
		if e.Timestamp >= dayCut {
			g.Day += delta
		}
	}
	return g
}
