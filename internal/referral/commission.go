package referral

import (
	"sort"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
)

// Engine evaluates the commission and discount step tables. Tiers are
// configuration, not code: each table is a sorted list of
// {threshold, percent} and lookup returns the highest tier at or below the
// value.
type Engine struct {
	referralTiers   []internal.CommissionTier
	rankTiers       []internal.CommissionTier
	referralPercent int
	maxDiscount     int
}

func NewEngine(cfg internal.CommissionConfig) *Engine {
	return &Engine{
		referralTiers:   sortTiers(cfg.ReferralTiers),
		rankTiers:       sortTiers(cfg.RankTiers),
		referralPercent: cfg.ReferralDiscountPercent,
		maxDiscount:     cfg.MaxDiscountPercent,
	}
}

func sortTiers(tiers []internal.CommissionTier) []internal.CommissionTier {
	sorted := make([]internal.CommissionTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Threshold < sorted[j].Threshold
	})
	return sorted
}

// stepLookup finds the percentage of the highest tier whose threshold does
// not exceed value. Values below the first threshold earn nothing.
func stepLookup(tiers []internal.CommissionTier, value int64) int {
	idx := sort.Search(len(tiers), func(i int) bool {
		return tiers[i].Threshold > value
	})
	if idx == 0 {
		return 0
	}
	return tiers[idx-1].Percent
}

// CommissionPercent returns the referrer's commission percentage for the
// given successful-referral count. Monotonic in the count, capped by the
// table's top tier.
func (e *Engine) CommissionPercent(referralCount int64) int {
	return stepLookup(e.referralTiers, referralCount)
}

// RankDiscountPercent returns the buyer-side discount for the given lifetime
// deposited amount.
func (e *Engine) RankDiscountPercent(totalDeposited int64) int {
	return stepLookup(e.rankTiers, totalDeposited)
}

// PurchaseDiscount combines the rank discount with the referral-participation
// discount, additively, up to the configured cap. referralApplied reports
// whether the referral share contributed.
func (e *Engine) PurchaseDiscount(totalDeposited int64, hasReferrer bool) (percent int, referralApplied bool) {
	percent = e.RankDiscountPercent(totalDeposited)
	if hasReferrer && e.referralPercent > 0 {
		percent += e.referralPercent
		referralApplied = true
	}
	if percent > e.maxDiscount {
		percent = e.maxDiscount
	}
	return percent, referralApplied
}
