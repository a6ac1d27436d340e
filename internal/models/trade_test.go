package models

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func ptr(f float64) *float64 { return &f }

func TestCalculatePnL(t *testing.T) {
	tests := []struct {
		name  string
		trade Trade
		want  float64
	}{
		{
			name: "long winner",
			trade: Trade{
				Direction: DirectionLong, Quantity: 10,
				EntryPrice: 100, ExitPrice: ptr(110), Fees: 5, Leverage: 1,
			},
			want: 95,
		},
		{
			name: "short winner with leverage",
			trade: Trade{
				Direction: DirectionShort, Quantity: 10,
				EntryPrice: 110, ExitPrice: ptr(100), Leverage: 2,
			},
			want: 200,
		},
		{
			name: "long loser",
			trade: Trade{
				Direction: DirectionLong, Quantity: 5,
				EntryPrice: 200, ExitPrice: ptr(190), Fees: 10, Leverage: 1,
			},
			want: -60,
		},
		{
			name: "zero leverage treated as 1x",
			trade: Trade{
				Direction: DirectionLong, Quantity: 10,
				EntryPrice: 100, ExitPrice: ptr(101),
			},
			want: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.trade.CalculatePnL()
			if assert.NotNil(t, tt.trade.TotalPnL) {
				assert.InDelta(t, tt.want, *tt.trade.TotalPnL, 1e-9)
			}
		})
	}
}

func TestCalculatePnL_OpenTradeHasNoPnL(t *testing.T) {
	trade := Trade{Direction: DirectionLong, Quantity: 10, EntryPrice: 100}
	trade.CalculatePnL()
	assert.Nil(t, trade.TotalPnL)
	assert.False(t, trade.IsClosed())
}

// Property: for the same prices, a long and a short position have mirrored
// gross P&L, so their net P&L sums to minus twice the fees.
func TestProperty_PnLDirectionSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("long and short P&L mirror each other", prop.ForAll(
		func(entry, exit, qty, fees float64) bool {
			long := Trade{Direction: DirectionLong, Quantity: qty, EntryPrice: entry, ExitPrice: ptr(exit), Fees: fees, Leverage: 1}
			short := Trade{Direction: DirectionShort, Quantity: qty, EntryPrice: entry, ExitPrice: ptr(exit), Fees: fees, Leverage: 1}
			long.CalculatePnL()
			short.CalculatePnL()
			sum := *long.TotalPnL + *short.TotalPnL
			return math.Abs(sum+2*fees) < 1e-6
		},
		gen.Float64Range(1, 10000),
		gen.Float64Range(1, 10000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(0, 100),
	))

	properties.Property("leverage scales gross P&L linearly", prop.ForAll(
		func(entry, exit, qty float64, lev int) bool {
			base := Trade{Direction: DirectionLong, Quantity: qty, EntryPrice: entry, ExitPrice: ptr(exit), Leverage: 1}
			levered := Trade{Direction: DirectionLong, Quantity: qty, EntryPrice: entry, ExitPrice: ptr(exit), Leverage: float64(lev)}
			base.CalculatePnL()
			levered.CalculatePnL()
			return math.Abs(*levered.TotalPnL-float64(lev)**base.TotalPnL) < 1e-6
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 100),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
