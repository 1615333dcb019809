package hedge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgeTracker/internal/domain"
)

const eps = 1e-9

func TestLiquidationCalculator_Assess_ReferenceScenario(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())

	got := calc.Assess(RiskInput{Balance: 1000, EntryPrice: 3800, Quantity: 1, Leverage: 100})

	require.True(t, got.Computable)
	require.NotNil(t, got.LongLiquidationPrice)
	require.NotNil(t, got.ShortLiquidationPrice)
	require.NotNil(t, got.Buffer)

	assert.InDelta(t, 3781.0, *got.LongLiquidationPrice, 1e-6)
	assert.InDelta(t, 3819.0, *got.ShortLiquidationPrice, 1e-6)
	assert.InDelta(t, 5.0, got.MaintenanceAmount, eps)
	assert.InDelta(t, 300.0, got.SafetyBufferAmount, eps)
	assert.InDelta(t, 695.0, got.EffectiveCollateral, eps)
	assert.InDelta(t, 38.0, got.MarginRequired, eps)
	assert.InDelta(t, 19.0, got.BufferLong, 1e-6)
	assert.InDelta(t, 19.0, got.BufferShort, 1e-6)
	assert.InDelta(t, 19.0, *got.Buffer, 1e-6)
	assert.InDelta(t, 0.5, got.LongDistancePct, 1e-6)
	assert.InDelta(t, 0.5, got.ShortDistancePct, 1e-6)
	assert.True(t, got.HasCollateral)
	assert.True(t, got.HasBuffer)
	assert.True(t, got.IsSafe)
	assert.True(t, got.CanOpen)
}

func TestLiquidationCalculator_Assess_Sentinel(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())
	valid := RiskInput{Balance: 1000, EntryPrice: 3800, Quantity: 1, Leverage: 100}

	tests := []struct {
		name   string
		mutate func(*RiskInput)
	}{
		{"zero balance", func(in *RiskInput) { in.Balance = 0 }},
		{"zero entry price", func(in *RiskInput) { in.EntryPrice = 0 }},
		{"zero quantity", func(in *RiskInput) { in.Quantity = 0 }},
		{"zero leverage", func(in *RiskInput) { in.Leverage = 0 }},
		{"negative leverage", func(in *RiskInput) { in.Leverage = -10 }},
		{"negative quantity", func(in *RiskInput) { in.Quantity = -1 }},
		{"NaN entry price", func(in *RiskInput) { in.EntryPrice = math.NaN() }},
		{"infinite balance", func(in *RiskInput) { in.Balance = math.Inf(1) }},
		{"infinite leverage", func(in *RiskInput) { in.Leverage = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			got := calc.Assess(in)

			assert.Equal(t, domain.RiskAssessment{}, got)
			assert.False(t, got.Computable)
			assert.Nil(t, got.LongLiquidationPrice)
			assert.Nil(t, got.ShortLiquidationPrice)
			assert.Nil(t, got.Buffer)
			assert.False(t, got.IsSafe)
			assert.False(t, got.CanOpen)
		})
	}
}

func TestLiquidationCalculator_AssessWithPrice(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())

	absent := calc.AssessWithPrice(1000, nil, 1, 100)
	assert.False(t, absent.Computable)
	assert.Nil(t, absent.LongLiquidationPrice)
	assert.False(t, absent.IsSafe)

	price := 3800.0
	present := calc.AssessWithPrice(1000, &price, 1, 100)
	assert.True(t, present.Computable)
	assert.Equal(t, calc.Assess(RiskInput{Balance: 1000, EntryPrice: 3800, Quantity: 1, Leverage: 100}), present)
}

func TestLiquidationCalculator_PriceOrdering(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())
	mmr := calc.Config().MaintenancePercent / 100

	for _, leverage := range []float64{1, 2, 5, 10, 20, 50, 100, 125, 150, 199} {
		for _, entry := range []float64{0.5, 1, 3800, 108179.1} {
			got := calc.Assess(RiskInput{Balance: 500, EntryPrice: entry, Quantity: 0.5, Leverage: leverage})
			require.True(t, got.Computable)

			long := *got.LongLiquidationPrice
			short := *got.ShortLiquidationPrice
			assert.GreaterOrEqual(t, long, 0.0, "leverage %v entry %v", leverage, entry)
			if mmr < 1/leverage {
				assert.LessOrEqual(t, long, entry, "leverage %v entry %v", leverage, entry)
				assert.GreaterOrEqual(t, short, entry, "leverage %v entry %v", leverage, entry)
			}
		}
	}
}

func TestLiquidationCalculator_LongPriceFlooredAtZero(t *testing.T) {
	// With leverage below one the raw long liquidation price would be negative.
	calc := NewLiquidationCalculator(DefaultRiskConfig())

	got := calc.Assess(RiskInput{Balance: 1000, EntryPrice: 100, Quantity: 1, Leverage: 0.5})

	require.True(t, got.Computable)
	assert.Equal(t, 0.0, *got.LongLiquidationPrice)
	assert.InDelta(t, 199.5, got.BufferLong, 1e-9)
}

func TestLiquidationCalculator_EffectiveCollateralDecreasing(t *testing.T) {
	in := RiskInput{Balance: 1000, EntryPrice: 3800, Quantity: 1, Leverage: 100}

	prev := math.Inf(1)
	for _, maint := range []float64{0, 0.25, 0.5, 1, 5, 10} {
		got := NewLiquidationCalculator(RiskConfig{MaintenancePercent: maint, SafetyPercent: 30}).Assess(in)
		assert.Less(t, got.EffectiveCollateral, prev, "maintenance %v", maint)
		prev = got.EffectiveCollateral
	}

	prev = math.Inf(1)
	for _, safety := range []float64{0, 10, 30, 50, 90} {
		got := NewLiquidationCalculator(RiskConfig{MaintenancePercent: 0.5, SafetyPercent: safety}).Assess(in)
		assert.Less(t, got.EffectiveCollateral, prev, "safety %v", safety)
		prev = got.EffectiveCollateral
	}
}

func TestLiquidationCalculator_CollateralVerdicts(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())

	tests := []struct {
		name           string
		in             RiskInput
		wantSafe       bool
		wantCanOpen    bool
		wantCollateral bool
	}{
		{
			name:           "ample collateral",
			in:             RiskInput{Balance: 1000, EntryPrice: 3800, Quantity: 1, Leverage: 100},
			wantSafe:       true,
			wantCanOpen:    true,
			wantCollateral: true,
		},
		{
			// effective = 100 - 0.5 - 30 = 69.5, margin = 3800*2/100 = 76
			name:           "insufficient collateral",
			in:             RiskInput{Balance: 100, EntryPrice: 3800, Quantity: 2, Leverage: 100},
			wantSafe:       false,
			wantCanOpen:    false,
			wantCollateral: false,
		},
		{
			// effective = 200 - 1 - 60 = 139, margin = 139*1/1 = 139
			name:           "collateral exactly equal to margin",
			in:             RiskInput{Balance: 200, EntryPrice: 139, Quantity: 1, Leverage: 1},
			wantSafe:       false,
			wantCanOpen:    true,
			wantCollateral: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Assess(tt.in)
			require.True(t, got.Computable)
			assert.Equal(t, tt.wantSafe, got.IsSafe)
			assert.Equal(t, tt.wantCanOpen, got.CanOpen)
			assert.Equal(t, tt.wantCollateral, got.HasCollateral)
		})
	}
}

func TestLiquidationCalculator_AssessTrade(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())
	trade := domain.Trade{OpenPrice: 3800, Quantity: 1, Leverage: 100, Coin: "ETH"}

	got := calc.AssessTrade(1000, trade)
	assert.True(t, got.IsSafe)

	incomplete := calc.AssessTrade(1000, domain.Trade{OpenPrice: 3800, Coin: "ETH"})
	assert.False(t, incomplete.Computable)
}

func TestLiquidationCalculator_AssessHedge(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())

	t.Run("both legs safe", func(t *testing.T) {
		got := calc.AssessHedge(HedgeRiskInput{
			Side: domain.Short, BalanceA: 1000, BalanceB: 1000,
			EntryPrice: 3800, Quantity: 1, LeverageA: 100, LeverageB: 100,
		})
		assert.Equal(t, domain.Short, got.Side)
		assert.True(t, got.IsSafe)
		assert.True(t, got.CanOpen)
		require.NotNil(t, got.LiquidationPriceA)
		assert.InDelta(t, 3819.0, *got.LiquidationPriceA, 1e-6)
		assert.InDelta(t, 19.0, got.BufferB, 1e-6)
		// 19 price points is well inside the default 120 point threshold.
		assert.True(t, got.NearLiquidation)
	})

	t.Run("one leg unsafe makes the hedge unsafe", func(t *testing.T) {
		got := calc.AssessHedge(HedgeRiskInput{
			Side: domain.Long, BalanceA: 1000, BalanceB: 50,
			EntryPrice: 3800, Quantity: 1, LeverageA: 100, LeverageB: 100,
		})
		assert.True(t, got.A.IsSafe)
		assert.False(t, got.B.IsSafe)
		assert.False(t, got.IsSafe)
		assert.True(t, got.CanOpenA)
		assert.False(t, got.CanOpenB)
		assert.False(t, got.CanOpen)
	})

	t.Run("missing price on both legs", func(t *testing.T) {
		got := calc.AssessHedge(HedgeRiskInput{Side: domain.Long, BalanceA: 1000, BalanceB: 1000, Quantity: 1, LeverageA: 100, LeverageB: 100})
		assert.False(t, got.IsSafe)
		assert.Nil(t, got.LiquidationPriceA)
		assert.Nil(t, got.LiquidationPriceB)
		assert.False(t, got.NearLiquidation)
	})

	t.Run("low leverage is far from liquidation", func(t *testing.T) {
		got := calc.AssessHedge(HedgeRiskInput{
			Side: domain.Long, BalanceA: 10000, BalanceB: 10000,
			EntryPrice: 3800, Quantity: 1, LeverageA: 10, LeverageB: 10,
		})
		assert.True(t, got.IsSafe)
		assert.False(t, got.NearLiquidation)
	})

	t.Run("unknown side defaults to long", func(t *testing.T) {
		got := calc.AssessHedge(HedgeRiskInput{BalanceA: 1000, BalanceB: 1000, EntryPrice: 3800, Quantity: 1, LeverageA: 100, LeverageB: 100})
		assert.Equal(t, domain.Long, got.Side)
		assert.InDelta(t, 3781.0, *got.LiquidationPriceB, 1e-6)
	})
}

func TestLiquidationCalculator_Idempotent(t *testing.T) {
	calc := NewLiquidationCalculator(DefaultRiskConfig())
	in := RiskInput{Balance: 1234.5, EntryPrice: 3818.99, Quantity: 2.61, Leverage: 100}

	first := calc.Assess(in)
	second := calc.Assess(in)

	assert.Equal(t, first, second)
	assert.Equal(t, *first.LongLiquidationPrice, *second.LongLiquidationPrice)
}
