package stable

import (
	"math/big"
	"testing"
)

func TestUsdValue(t *testing.T) {
	// 15 units of an 18-decimal asset priced at $2000 are worth $30,000.
	got := UsdValue(feedPrice(2000), eth(15))
	if got.Cmp(usd(30000)) != 0 {
		t.Fatalf("unexpected value: %s", got)
	}

	if got := UsdValue(feedPrice(2000), big.NewInt(0)); got.Sign() != 0 {
		t.Fatalf("zero amount should value zero, got %s", got)
	}
	if got := UsdValue(nil, eth(1)); got.Sign() != 0 {
		t.Fatalf("nil price should value zero, got %s", got)
	}
}

func TestTokenAmountFromUsd(t *testing.T) {
	// $100 buys 0.05 units at $2000, i.e. 5e16 at 18 decimals.
	got := TokenAmountFromUsd(feedPrice(2000), usd(100))
	if want := mustBigInt("50000000000000000"); got.Cmp(want) != 0 {
		t.Fatalf("unexpected amount: got %s want %s", got, want)
	}

	if got := TokenAmountFromUsd(big.NewInt(0), usd(100)); got.Sign() != 0 {
		t.Fatalf("zero price should convert to zero, got %s", got)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	// Converting value -> amount -> value loses at most one collateral base
	// unit's worth of value to integer truncation.
	prices := []*big.Int{feedPrice(1), feedPrice(1500), feedPrice(2000), feedPrice(64123)}
	values := []*big.Int{usd(1), usd(100), usd(8000), mustBigInt("123456789123456789")}
	for _, price := range prices {
		for _, value := range values {
			amount := TokenAmountFromUsd(price, value)
			back := UsdValue(price, amount)
			diff := new(big.Int).Sub(value, back)
			if diff.Sign() < 0 || diff.Cmp(price) > 0 {
				t.Fatalf("round trip drift at price=%s value=%s: back=%s", price, value, back)
			}
		}
	}
}

func TestHealthFactor(t *testing.T) {
	half := mustBigInt("500000000000000000")
	tests := []struct {
		name       string
		debt       *big.Int
		collateral *big.Int
		want       *big.Int
	}{
		{"zero debt is maximally healthy", big.NewInt(0), usd(1000), maxHealthFactor},
		{"nil debt is maximally healthy", nil, usd(1000), maxHealthFactor},
		{"exactly at threshold", usd(10000), usd(20000), minHealthFactor},
		{"comfortably above", usd(8000), usd(20000), mustBigInt("1250000000000000000")},
		{"underwater", usd(8000), usd(15000), mustBigInt("937500000000000000")},
		{"no collateral", usd(1), big.NewInt(0), big.NewInt(0)},
		{"nil collateral", usd(1), nil, big.NewInt(0)},
		{"half the required coverage", usd(20000), usd(20000), half},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HealthFactor(tc.debt, tc.collateral)
			if got.Cmp(tc.want) != 0 {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestHealthFactorMonotonicity(t *testing.T) {
	// More collateral never lowers the health factor, more debt never
	// raises it.
	base := HealthFactor(usd(8000), usd(15000))
	if HealthFactor(usd(8000), usd(16000)).Cmp(base) < 0 {
		t.Fatalf("health factor decreased with added collateral")
	}
	if HealthFactor(usd(9000), usd(15000)).Cmp(base) > 0 {
		t.Fatalf("health factor increased with added debt")
	}
}

func TestExportedParameters(t *testing.T) {
	if MinHealthFactor().Cmp(mustBigInt("1000000000000000000")) != 0 {
		t.Fatalf("unexpected min health factor")
	}
	if Precision().Cmp(mustBigInt("1000000000000000000")) != 0 {
		t.Fatalf("unexpected precision")
	}
	if AdditionalFeedPrecision().Cmp(mustBigInt("10000000000")) != 0 {
		t.Fatalf("unexpected feed precision")
	}
	if LiquidationThresholdPercent().Int64() != 50 || LiquidationBonusPercent().Int64() != 10 {
		t.Fatalf("unexpected liquidation parameters")
	}
	// Getters hand out copies, not the shared constants.
	MinHealthFactor().SetInt64(7)
	if minHealthFactor.Cmp(precision) != 0 {
		t.Fatalf("getter exposed internal state")
	}
}
