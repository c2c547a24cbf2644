package domain

import "github.com/shopspring/decimal"

const (
	// GraduationMarketCapUSD is the market cap at which a bonding curve completes.
	GraduationMarketCapUSD = 69000

	// MaxBondingPercentage is reserved for completed curves.
	MaxBondingPercentage = 100

	// maxIncompleteBonding caps progress for curves that have not completed.
	maxIncompleteBonding = 99
)

var (
	graduationCap = decimal.NewFromInt(GraduationMarketCapUSD)
	hundred       = decimal.NewFromInt(100)
)

// BondingPercentage returns curve progress in [0, 100].
// A complete curve is exactly 100; an incomplete one is round(mcap/69000*100)
// (half to even) clamped to [0, 99], so 100 always means complete.
func BondingPercentage(marketCapUSD float64, complete bool) int {
	if complete {
		return MaxBondingPercentage
	}
	if marketCapUSD <= 0 {
		return 0
	}

	pct := decimal.NewFromFloat(marketCapUSD).
		Mul(hundred).
		Div(graduationCap).
		RoundBank(0)

	if pct.GreaterThan(decimal.NewFromInt(maxIncompleteBonding)) {
		return maxIncompleteBonding
	}
	return int(pct.IntPart())
}
