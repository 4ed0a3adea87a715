package stable

import "math/big"

// Fixed-point constants. The unit of account is 18-decimal fixed point; feeds
// report 8-decimal prices which are scaled up by the additional feed
// precision before any arithmetic. The threshold of 50 out of 100 means only
// half of nominal collateral value counts toward debt coverage, i.e. 200%
// nominal overcollateralization is required.
var (
	precision               = mustBigInt("1000000000000000000")  // 1e18
	additionalFeedPrecision = mustBigInt("10000000000")          // 1e10
	liquidationThreshold    = big.NewInt(50)
	liquidationPrecision    = big.NewInt(100)
	liquidationBonus        = big.NewInt(10)
	minHealthFactor         = new(big.Int).Set(precision)

	// maxHealthFactor is returned for debt-free positions. It mirrors the
	// largest 256-bit value so comparisons against any computed health
	// factor behave as "maximally healthy".
	maxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// UsdValue converts a collateral amount in the asset's native scale into the
// 18-decimal unit of account. price is the feed answer in 8-decimal
// precision. Multiplication happens before the final division so no
// precision is lost to intermediate truncation.
func UsdValue(price, amount *big.Int) *big.Int {
	if price == nil || amount == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(price, additionalFeedPrecision)
	value.Mul(value, amount)
	return value.Quo(value, precision)
}

// TokenAmountFromUsd converts an 18-decimal unit-of-account value into the
// equivalent collateral amount at the given 8-decimal feed price.
func TokenAmountFromUsd(price, usd *big.Int) *big.Int {
	if price == nil || price.Sign() == 0 || usd == nil {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(usd, precision)
	denominator := new(big.Int).Mul(price, additionalFeedPrecision)
	return numerator.Quo(numerator, denominator)
}

// HealthFactor maps a position's total debt and collateral value (both in
// the unit of account) to its solvency ratio in 18-decimal fixed point. A
// debt-free position is maximally healthy by definition regardless of
// collateral, which also keeps the function total over its domain.
func HealthFactor(totalDebt, collateralUsd *big.Int) *big.Int {
	if totalDebt == nil || totalDebt.Sign() == 0 {
		return new(big.Int).Set(maxHealthFactor)
	}
	if collateralUsd == nil {
		collateralUsd = big.NewInt(0)
	}
	adjusted := new(big.Int).Mul(collateralUsd, liquidationThreshold)
	adjusted.Quo(adjusted, liquidationPrecision)
	adjusted.Mul(adjusted, precision)
	return adjusted.Quo(adjusted, totalDebt)
}

// MinHealthFactor returns the threshold below which a position is
// liquidatable (1.0 in 18-decimal fixed point).
func MinHealthFactor() *big.Int { return new(big.Int).Set(minHealthFactor) }

// Precision returns the 18-decimal unit-of-account scale.
func Precision() *big.Int { return new(big.Int).Set(precision) }

// AdditionalFeedPrecision returns the factor scaling 8-decimal feed answers
// up to the unit-of-account scale.
func AdditionalFeedPrecision() *big.Int { return new(big.Int).Set(additionalFeedPrecision) }

// LiquidationThresholdPercent returns the share of nominal collateral value
// counted toward debt coverage.
func LiquidationThresholdPercent() *big.Int { return new(big.Int).Set(liquidationThreshold) }

// LiquidationBonusPercent returns the extra share of seized collateral
// awarded to liquidators.
func LiquidationBonusPercent() *big.Int { return new(big.Int).Set(liquidationBonus) }
