package engine

import "time"

// PairScore pairing-compatibility rating for two positions considered for
// a joint close: can one's profit absorb the other's loss, and do they
// actually hedge each other
type PairScore struct {
	Total          float64 `json:"total"`
	DirectionScore float64 `json:"direction_score"`
	ProximityScore float64 `json:"proximity_score"`
	OffsetScore    float64 `json:"offset_score"`
	TimeSyncScore  float64 `json:"time_sync_score"`
}

// ScorePair rates how well two positions suit a joint close. Opposite
// directions, nearby entries and a profit that covers the loss score high.
func ScorePair(a, b PositionRecord, now time.Time) PairScore {
	var ps PairScore

	if a.Direction != b.Direction {
		ps.DirectionScore = 100
	} else {
		ps.DirectionScore = 40
	}

	// entries within 10 USD of each other hedge the same zone
	gap := a.OpenPrice - b.OpenPrice
	if gap < 0 {
		gap = -gap
	}
	ps.ProximityScore = clamp(100-gap*10, 0, 100)

	ps.OffsetScore = offsetScore(a.Profit, b.Profit)

	// positions opened close together in time belong to the same play
	ageGap := a.AgeHours(now) - b.AgeHours(now)
	if ageGap < 0 {
		ageGap = -ageGap
	}
	ps.TimeSyncScore = clamp(100-ageGap*4, 0, 100)

	ps.Total = ps.DirectionScore*0.3 + ps.ProximityScore*0.2 +
		ps.OffsetScore*0.4 + ps.TimeSyncScore*0.1
	return ps
}

// offsetScore rates how completely the winner's profit covers the loser's
// loss. Two winners are a fine pair; two losers are not.
func offsetScore(p1, p2 float64) float64 {
	if p1 >= 0 && p2 >= 0 {
		return 80
	}
	if p1 < 0 && p2 < 0 {
		return 0
	}
	win, loss := p1, -p2
	if p2 > p1 {
		win, loss = p2, -p1
	}
	if loss <= 0 {
		return 80
	}
	ratio := win / loss
	if ratio >= 1 {
		return 100
	}
	return clamp(ratio*100, 0, 100)
}
