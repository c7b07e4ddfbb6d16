// Package loyalty owns the points ledger embedded in each customer record:
// the tier mapping, the attribute-map codec, and the cycle reconciliation job.
package loyalty

type Tier string

const (
	TierSeed    Tier = "seed"
	TierSprout  Tier = "sprout"
	TierBlossom Tier = "blossom"
	TierLotus   Tier = "lotus"
)

// Rank orders tiers for comparisons; higher is better.
func (t Tier) Rank() int {
	switch t {
	case TierSprout:
		return 1
	case TierBlossom:
		return 2
	case TierLotus:
		return 3
	default:
		return 0
	}
}

type TierLevel struct {
	Tier            Tier
	MinPoints       int64
	DiscountPercent int
}

// Levels must stay sorted ascending by MinPoints. Discounts are deployment
// policy, not protocol.
var Levels = []TierLevel{
	{TierSeed, 0, 0},
	{TierSprout, 100, 5},
	{TierBlossom, 250, 10},
	{TierLotus, 500, 15},
}

// TierOf maps a cycle balance to its tier and discount. Pure; callers never
// store a tier that disagrees with the balance beside it.
func TierOf(balance int64) (Tier, int) {
	level := Levels[0]
	for _, l := range Levels {
		if balance >= l.MinPoints {
			level = l
		}
	}
	return level.Tier, level.DiscountPercent
}
