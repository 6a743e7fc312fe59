package domain

// Rank is a coarse tier derived from a score. Tiers are ordered E < D < C < B < A < S.
type Rank string

const (
	RankE Rank = "E"
	RankD Rank = "D"
	RankC Rank = "C"
	RankB Rank = "B"
	RankA Rank = "A"
	RankS Rank = "S"
)

// rankThresholds lists inclusive lower bounds, highest tier first.
var rankThresholds = []struct {
	min  int
	rank Rank
}{
	{10000, RankS},
	{5000, RankA},
	{2500, RankB},
	{1000, RankC},
	{500, RankD},
}

// RankFor classifies a score. Every integer maps to a tier; anything below
// the D threshold, negatives included, is E.
func RankFor(score int) Rank {
	for _, t := range rankThresholds {
		if score >= t.min {
			return t.rank
		}
	}
	return RankE
}

// Ranks returns all tiers in ascending order.
func Ranks() []Rank {
	return []Rank{RankE, RankD, RankC, RankB, RankA, RankS}
}

// Level returns the ordinal of the tier (E=0 .. S=5), or -1 for unknown values.
func (r Rank) Level() int {
	for i, known := range Ranks() {
		if r == known {
			return i
		}
	}
	return -1
}

// IsValid reports whether r is one of the known tiers.
func (r Rank) IsValid() bool {
	return r.Level() >= 0
}

// Less reports whether r is a lower tier than other.
func (r Rank) Less(other Rank) bool {
	return r.Level() < other.Level()
}

func (r Rank) String() string {
	return string(r)
}

// NextRank returns the tier above the one score maps to and the score needed
// to reach it. ok is false at the top tier.
func NextRank(score int) (next Rank, threshold int, ok bool) {
	for i := len(rankThresholds) - 1; i >= 0; i-- {
		if score < rankThresholds[i].min {
			return rankThresholds[i].rank, rankThresholds[i].min, true
		}
	}
	return "", 0, false
}
