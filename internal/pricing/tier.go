package pricing

import "sort"

// Tier maps a minimum purchased quantity to a discount rate expressed in
// basis points. Shared by discount groups and pricing plans.
type Tier struct {
	MinQty      int    `json:"minQty"`
	RateBps     int32  `json:"rateBps"`
	Description string `json:"description"`
}

// Ladder is a tier list ordered ascending by minimum quantity. MinQty values
// are unique within one ladder; duplicates are rejected at data-entry time,
// not here.
type Ladder []Tier

// NewLadder returns a ladder sorted ascending by MinQty.
func NewLadder(tiers ...Tier) Ladder {
	ladder := make(Ladder, len(tiers))
	copy(ladder, tiers)
	sort.Slice(ladder, func(i, j int) bool {
		return ladder[i].MinQty < ladder[j].MinQty
	})
	return ladder
}

// Select returns the tier with the greatest MinQty that does not exceed qty.
// The second return value is false when qty falls below every threshold.
func (l Ladder) Select(qty int) (Tier, bool) {
	var (
		best  Tier
		found bool
	)
	for _, tier := range l {
		if tier.MinQty > qty {
			continue
		}
		if !found || tier.MinQty > best.MinQty {
			best = tier
			found = true
		}
	}
	return best, found
}
