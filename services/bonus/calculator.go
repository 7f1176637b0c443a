package bonus

import (
	"sort"

	"github.com/shopspring/decimal"

	"settlement-engine/pkg/money"
)

// TierAmount sums the contribution of every tier whose band contains gmv,
// evaluated in ascending min_gmv order. flat_amount tiers contribute their
// value directly; commission_increase tiers contribute gmv * value / 100.
// The sum is rounded once at the end.
func TierAmount(gmv decimal.Decimal, tiers []Tier) decimal.Decimal {
	if gmv.LessThanOrEqual(decimal.Zero) || len(tiers) == 0 {
		return decimal.Zero
	}

	ordered := make([]Tier, len(tiers))
	copy(ordered, tiers)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MinGMV.LessThan(ordered[j].MinGMV)
	})

	total := decimal.Zero
	for _, tier := range ordered {
		if !tier.Matches(gmv) {
			continue
		}
		switch tier.BonusType {
		case TypeFlatAmount:
			total = total.Add(tier.BonusValue)
		case TypeCommissionIncrease:
			total = total.Add(money.Percent(gmv, tier.BonusValue))
		}
	}

	return money.Round(total)
}

// LeaderboardAmount returns the bonus of the first rule, in list order, whose
// [position_start, position_end] range contains position. No match is zero.
func LeaderboardAmount(position int, rules []LeaderboardRule) decimal.Decimal {
	if position <= 0 {
		return decimal.Zero
	}

	for _, rule := range rules {
		if position >= rule.PositionStart && position <= rule.PositionEnd {
			return rule.BonusAmount
		}
	}

	return decimal.Zero
}
