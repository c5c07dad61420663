package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(DefaultSchedule())
	require.NoError(t, err)
	return c
}

func TestFeeSchedule_Rates(t *testing.T) {
	s := DefaultSchedule()
	assert.InDelta(t, 0.0112, s.FeeRate(), tol)
	assert.InDelta(t, 0.0030, s.STLRate(), tol)
	assert.InDelta(t, 0.0082, s.BrokerageRate(), tol)
}

func TestFeeSchedule_Validate(t *testing.T) {
	tests := []struct {
		name     string
		schedule FeeSchedule
		wantErr  bool
	}{
		{name: "default", schedule: DefaultSchedule(), wantErr: false},
		{name: "zero rates", schedule: FeeSchedule{}, wantErr: false},
		{name: "negative fee", schedule: FeeSchedule{FeePct: -1, STLPct: 0}, wantErr: true},
		{name: "levy above fee", schedule: FeeSchedule{FeePct: 0.5, STLPct: 1}, wantErr: true},
		{name: "fee at 100 percent", schedule: FeeSchedule{FeePct: 100, STLPct: 0.3}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSchedule)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseFeePolicy(t *testing.T) {
	for _, p := range []FeePolicy{PolicySameDaySingleFee, PolicySameDaySTLOnly, PolicyMultiDayDoubleFee, PolicyIntradayMatched} {
		got, err := ParseFeePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseFeePolicy("overnight")
	assert.Error(t, err)
}

func TestParseCalcMode(t *testing.T) {
	for _, m := range []CalcMode{ModeAverageSTL, ModeAverageOnly, ModeDirectTotal} {
		got, err := ParseCalcMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseCalcMode("legacy")
	assert.Error(t, err)
}

func TestCalculator_SingleTrade_SameDaySTL(t *testing.T) {
	c := newTestCalculator(t)

	res, err := c.SingleTrade(SingleTrade{BuyPrice: 100, SellPrice: 105, Quantity: 1}, PolicySameDaySTLOnly, ModeAverageSTL)
	require.NoError(t, err)

	assert.InDelta(t, 100.0, res.TotalBuyValue, tol)
	assert.InDelta(t, 1.12, res.BuyFee, tol)
	assert.InDelta(t, 101.12, res.AveragePrice, tol)
	assert.InDelta(t, 101.12, res.TotalCost, tol)
	assert.InDelta(t, 101.12/0.997, res.BreakEvenSellPrice, tol)
	assert.InDelta(t, 0.315, res.SellFee, tol)
	assert.InDelta(t, 104.685, res.NetProceeds, tol)
	assert.InDelta(t, 3.565, res.GainLoss, tol)
	assert.InDelta(t, 3.565/101.12*100, res.GainLossPct, tol)
	assert.InDelta(t, 1.435, res.TotalFees, tol)
}

func TestCalculator_SingleTrade_Modes(t *testing.T) {
	c := newTestCalculator(t)
	trade := SingleTrade{BuyPrice: 250, SellPrice: 260, Quantity: 400}

	tests := []struct {
		name        string
		policy      FeePolicy
		mode        CalcMode
		wantAvg     float64
		wantBE      float64
		wantSellFee float64
	}{
		{
			name:        "average with levy carve-out",
			policy:      PolicySameDaySTLOnly,
			mode:        ModeAverageSTL,
			wantAvg:     252.8,
			wantBE:      252.8 / 0.997,
			wantSellFee: 260 * 400 * 0.003,
		},
		{
			name:        "average only same day",
			policy:      PolicySameDaySingleFee,
			mode:        ModeAverageOnly,
			wantAvg:     252.8,
			wantBE:      252.8,
			wantSellFee: 0,
		},
		{
			name:        "average multi day",
			policy:      PolicyMultiDayDoubleFee,
			mode:        ModeAverageSTL,
			wantAvg:     252.8,
			wantBE:      252.8 * 1.0112,
			wantSellFee: 260 * 400 * 0.0112,
		},
		{
			name:        "direct total multi day",
			policy:      PolicyMultiDayDoubleFee,
			mode:        ModeDirectTotal,
			wantAvg:     0,
			wantBE:      250 * 400 * 1.0112 / (400 * (1 - 0.0112)),
			wantSellFee: 260 * 400 * 0.0112,
		},
		{
			name:        "direct total same day no sell fee",
			policy:      PolicySameDaySingleFee,
			mode:        ModeDirectTotal,
			wantAvg:     0,
			wantBE:      250 * 1.0112,
			wantSellFee: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.SingleTrade(trade, tt.policy, tt.mode)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantAvg, res.AveragePrice, tol)
			assert.InDelta(t, tt.wantBE, res.BreakEvenSellPrice, 1e-4)
			assert.InDelta(t, tt.wantSellFee, res.SellFee, tol)
			assert.InDelta(t, res.BuyFee+res.SellFee, res.TotalFees, tol)
		})
	}
}

func TestCalculator_SingleTrade_NoSellLeg(t *testing.T) {
	c := newTestCalculator(t)
	res, err := c.SingleTrade(SingleTrade{BuyPrice: 50, Quantity: 10}, PolicyMultiDayDoubleFee, ModeAverageSTL)
	require.NoError(t, err)

	assert.Zero(t, res.TotalSellValue)
	assert.Zero(t, res.SellFee)
	assert.Zero(t, res.NetProceeds)
	assert.Zero(t, res.GainLoss)
	assert.Zero(t, res.GainLossPct)
	assert.InDelta(t, res.BuyFee, res.TotalFees, tol)
}

func TestCalculator_SingleTrade_BreakEvenRoundTrip(t *testing.T) {
	c := newTestCalculator(t)

	// Selling exactly at the break-even price must close the trade flat
	// for conventions that derive it from the full cost equation.
	tests := []struct {
		name   string
		policy FeePolicy
		mode   CalcMode
	}{
		{name: "levy carve-out", policy: PolicySameDaySTLOnly, mode: ModeAverageSTL},
		{name: "same day free sell", policy: PolicySameDaySingleFee, mode: ModeAverageSTL},
		{name: "average only single fee", policy: PolicySameDaySingleFee, mode: ModeAverageOnly},
		{name: "average only levy waived", policy: PolicySameDaySTLOnly, mode: ModeAverageOnly},
		{name: "direct total same day", policy: PolicySameDaySingleFee, mode: ModeDirectTotal},
		{name: "direct total levy", policy: PolicySameDaySTLOnly, mode: ModeDirectTotal},
		{name: "direct total multi day", policy: PolicyMultiDayDoubleFee, mode: ModeDirectTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := c.SingleTrade(SingleTrade{BuyPrice: 123.45, Quantity: 780}, tt.policy, tt.mode)
			require.NoError(t, err)

			closed, err := c.SingleTrade(SingleTrade{
				BuyPrice:  123.45,
				SellPrice: first.BreakEvenSellPrice,
				Quantity:  780,
			}, tt.policy, tt.mode)
			require.NoError(t, err)
			assert.InDelta(t, 0, closed.GainLoss, 1e-6*closed.TotalCost)
		})
	}
}

func TestCalculator_AverageOnlySameDaySellIsFree(t *testing.T) {
	c := newTestCalculator(t)

	// Under the average-only convention a same-day sell carries no fee at
	// all, even when the policy would otherwise charge the levy. The
	// break-even is the fee-inclusive average and closing there is flat.
	first, err := c.SingleTrade(SingleTrade{BuyPrice: 100, Quantity: 1000}, PolicySameDaySTLOnly, ModeAverageOnly)
	require.NoError(t, err)
	assert.InDelta(t, 101.12, first.BreakEvenSellPrice, tol)

	closed, err := c.SingleTrade(SingleTrade{
		BuyPrice:  100,
		SellPrice: first.BreakEvenSellPrice,
		Quantity:  1000,
	}, PolicySameDaySTLOnly, ModeAverageOnly)
	require.NoError(t, err)
	assert.Zero(t, closed.SellFee)
	assert.InDelta(t, 0, closed.GainLoss, tol)

	a, err := c.BreakEven(100, 1000, PolicySameDaySTLOnly, ModeAverageOnly)
	require.NoError(t, err)
	assert.Zero(t, a.SellFeeAtBreakEven)

	// The target ladder follows the same convention, so a row's required
	// price nets exactly its percentage.
	row, err := c.ProfitTarget(a, PolicySameDaySTLOnly, ModeAverageOnly, 5)
	require.NoError(t, err)
	closed, err = c.SingleTrade(SingleTrade{
		BuyPrice:  100,
		SellPrice: row.RequiredSellPrice,
		Quantity:  1000,
	}, PolicySameDaySTLOnly, ModeAverageOnly)
	require.NoError(t, err)
	assert.InDelta(t, 5, closed.GainLossPct, tol)
}

func TestCalculator_SingleTrade_Validation(t *testing.T) {
	c := newTestCalculator(t)

	tests := []struct {
		name    string
		trade   SingleTrade
		policy  FeePolicy
		mode    CalcMode
		wantErr error
	}{
		{name: "zero buy price", trade: SingleTrade{Quantity: 1}, policy: PolicySameDaySTLOnly, mode: ModeAverageSTL, wantErr: ErrInvalidPrice},
		{name: "negative sell price", trade: SingleTrade{BuyPrice: 10, SellPrice: -1, Quantity: 1}, policy: PolicySameDaySTLOnly, mode: ModeAverageSTL, wantErr: ErrInvalidSellPrice},
		{name: "zero quantity", trade: SingleTrade{BuyPrice: 10}, policy: PolicySameDaySTLOnly, mode: ModeAverageSTL, wantErr: ErrInvalidQuantity},
		{name: "intraday policy rejected", trade: SingleTrade{BuyPrice: 10, Quantity: 1}, policy: PolicyIntradayMatched, mode: ModeAverageSTL, wantErr: ErrPolicyNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SingleTrade(tt.trade, tt.policy, tt.mode)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCalculator_BreakEven(t *testing.T) {
	c := newTestCalculator(t)

	a, err := c.BreakEven(100, 1, PolicySameDaySTLOnly, ModeAverageSTL)
	require.NoError(t, err)

	assert.InDelta(t, 101.12, a.TotalCost, tol)
	assert.InDelta(t, 101.12/0.997, a.BreakEvenSellPrice, tol)
	assert.InDelta(t, a.BreakEvenSellPrice*0.003, a.SellFeeAtBreakEven, tol)
	assert.InDelta(t, a.BreakEvenSellPrice-100, a.PriceIncrease, tol)
	assert.InDelta(t, a.PriceIncrease, a.PercentMove, tol) // buy price is 100
}

func TestCalculator_BreakEven_AverageOnlySameDay(t *testing.T) {
	c := newTestCalculator(t)

	a, err := c.BreakEven(100, 500, PolicySameDaySingleFee, ModeAverageOnly)
	require.NoError(t, err)
	assert.InDelta(t, a.AveragePrice, a.BreakEvenSellPrice, tol)
	assert.Zero(t, a.SellFeeAtBreakEven)
}

func TestCalculator_ProfitTargets(t *testing.T) {
	c := newTestCalculator(t)

	a, err := c.BreakEven(100, 1000, PolicySameDaySTLOnly, ModeAverageSTL)
	require.NoError(t, err)

	rows, err := c.ProfitTargets(a, PolicySameDaySTLOnly, ModeAverageSTL, DefaultProfitTargets)
	require.NoError(t, err)
	require.Len(t, rows, len(DefaultProfitTargets))

	prev := a.BreakEvenSellPrice
	for i, row := range rows {
		assert.Equal(t, DefaultProfitTargets[i], row.TargetPct)
		assert.Greater(t, row.RequiredSellPrice, prev, "ladder must be strictly increasing")
		prev = row.RequiredSellPrice

		// Selling at the required price must net the target percentage.
		closed, err := c.SingleTrade(SingleTrade{
			BuyPrice:  100,
			SellPrice: row.RequiredSellPrice,
			Quantity:  1000,
		}, PolicySameDaySTLOnly, ModeAverageSTL)
		require.NoError(t, err)
		assert.InDelta(t, row.TargetPct, closed.GainLossPct, tol)
	}
}

func TestCalculator_ProfitTarget_CustomMatchesLadder(t *testing.T) {
	c := newTestCalculator(t)

	a, err := c.BreakEven(42.5, 300, PolicyMultiDayDoubleFee, ModeAverageSTL)
	require.NoError(t, err)

	rows, err := c.ProfitTargets(a, PolicyMultiDayDoubleFee, ModeAverageSTL, DefaultProfitTargets)
	require.NoError(t, err)

	custom, err := c.ProfitTarget(a, PolicyMultiDayDoubleFee, ModeAverageSTL, 5)
	require.NoError(t, err)
	assert.Equal(t, rows[4], custom)
}

func TestCalculator_ProfitTarget_Validation(t *testing.T) {
	c := newTestCalculator(t)

	a, err := c.BreakEven(10, 1, PolicySameDaySTLOnly, ModeAverageSTL)
	require.NoError(t, err)

	_, err = c.ProfitTarget(a, PolicySameDaySTLOnly, ModeAverageSTL, 0)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = c.ProfitTarget(a, PolicySameDaySTLOnly, ModeAverageSTL, -3)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestCalculator_Position(t *testing.T) {
	c := newTestCalculator(t)

	sum, err := c.Position([]TradeLot{
		{Price: 100, Quantity: 1000},
		{Price: 102, Quantity: 1000},
		{Price: 104, Quantity: 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), sum.TotalQuantity)
	assert.InDelta(t, 306000, sum.TotalBuyValue, tol)
	assert.InDelta(t, 3427.2, sum.TotalBuyFee, tol)
	assert.InDelta(t, 309427.2, sum.TotalCost, tol)
	assert.InDelta(t, 103.1424, sum.OverallAveragePrice, tol)
	assert.InDelta(t, 102, sum.WeightedAveragePrice, tol)
	assert.InDelta(t, 1.12, sum.FeeImpactPct, tol)
	require.Len(t, sum.Lots, 3)
	assert.InDelta(t, 101.12, sum.Lots[0].AveragePrice, tol)
}

func TestCalculator_Position_OrderIndependent(t *testing.T) {
	c := newTestCalculator(t)

	lots := []TradeLot{{Price: 55.5, Quantity: 120}, {Price: 61, Quantity: 80}, {Price: 48.25, Quantity: 300}}
	reversed := []TradeLot{lots[2], lots[1], lots[0]}

	a, err := c.Position(lots)
	require.NoError(t, err)
	b, err := c.Position(reversed)
	require.NoError(t, err)

	assert.InDelta(t, a.TotalCost, b.TotalCost, tol)
	assert.InDelta(t, a.OverallAveragePrice, b.OverallAveragePrice, tol)
	assert.InDelta(t, a.WeightedAveragePrice, b.WeightedAveragePrice, tol)
}

func TestCalculator_Position_Empty(t *testing.T) {
	c := newTestCalculator(t)

	sum, err := c.Position(nil)
	require.NoError(t, err)
	assert.Zero(t, sum.TotalQuantity)
	assert.Zero(t, sum.TotalCost)
	assert.Zero(t, sum.OverallAveragePrice)

	be, err := c.PositionBreakEven(sum, PolicySameDaySTLOnly)
	require.NoError(t, err)
	assert.Zero(t, be.BreakEvenSellPrice)

	assert.Nil(t, c.PositionScenarios(sum, be, PolicySameDaySTLOnly))
}

func TestCalculator_Position_InvalidLot(t *testing.T) {
	c := newTestCalculator(t)

	_, err := c.Position([]TradeLot{{Price: 100, Quantity: 10}, {Price: -1, Quantity: 5}})
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.ErrorContains(t, err, "lot 1")
}

func TestCalculator_PositionBreakEven(t *testing.T) {
	c := newTestCalculator(t)

	sum, err := c.Position([]TradeLot{{Price: 100, Quantity: 1000}, {Price: 102, Quantity: 1000}, {Price: 104, Quantity: 1000}})
	require.NoError(t, err)

	t.Run("same day levy carve-out round trip", func(t *testing.T) {
		be, err := c.PositionBreakEven(sum, PolicySameDaySTLOnly)
		require.NoError(t, err)
		assert.InDelta(t, sum.TotalCost/(3000*0.997), be.BreakEvenSellPrice, tol)

		proceeds := be.BreakEvenSellPrice*3000 - be.SellFeeAtBreakEven
		assert.InDelta(t, sum.TotalCost, proceeds, 1e-6*sum.TotalCost)
	})

	t.Run("multi day", func(t *testing.T) {
		be, err := c.PositionBreakEven(sum, PolicyMultiDayDoubleFee)
		require.NoError(t, err)
		assert.InDelta(t, sum.OverallAveragePrice*1.0112, be.BreakEvenSellPrice, tol)
	})

	t.Run("intraday policy rejected", func(t *testing.T) {
		_, err := c.PositionBreakEven(sum, PolicyIntradayMatched)
		assert.ErrorIs(t, err, ErrPolicyNotAllowed)
	})
}

func TestCalculator_PositionScenarios(t *testing.T) {
	c := newTestCalculator(t)

	sum, err := c.Position([]TradeLot{{Price: 100, Quantity: 1000}, {Price: 102, Quantity: 1000}})
	require.NoError(t, err)
	be, err := c.PositionBreakEven(sum, PolicySameDaySTLOnly)
	require.NoError(t, err)

	rows := c.PositionScenarios(sum, be, PolicySameDaySTLOnly)
	require.Len(t, rows, 9)

	assert.Equal(t, "wavg_-5pct", rows[0].Basis)
	assert.InDelta(t, sum.WeightedAveragePrice*0.95, rows[0].SellPrice, tol)
	assert.Negative(t, rows[0].GainLoss)

	var breakEvenRow SellScenario
	for _, row := range rows {
		if row.Basis == "break_even" {
			breakEvenRow = row
		}
	}
	assert.InDelta(t, 0, breakEvenRow.GainLoss, 1e-6*sum.TotalCost)

	last := rows[len(rows)-1]
	assert.Equal(t, "wavg_+20pct", last.Basis)
	assert.Positive(t, last.GainLoss)
}

func TestCalculator_Intraday(t *testing.T) {
	c := newTestCalculator(t)

	res, err := c.Intraday(
		[]TradeLot{{Price: 100, Quantity: 5000}},
		[]TradeLot{{Price: 105, Quantity: 4000}},
	)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), res.TotalBuyQuantity)
	assert.Equal(t, int64(4000), res.TotalSellQuantity)
	assert.Equal(t, int64(4000), res.MatchedQuantity)
	assert.Equal(t, int64(1000), res.UnmatchedBuyQuantity)
	assert.Equal(t, int64(0), res.UnmatchedSellQuantity)

	assert.InDelta(t, 100, res.WeightedAvgBuyPrice, tol)
	assert.InDelta(t, 105, res.WeightedAvgSellPrice, tol)

	// Unmatched 1000 shares pay brokerage, the levy applies to all 5000.
	assert.InDelta(t, 1000*100*0.0082+5000*100*0.003, res.BuyFees, tol)
	assert.InDelta(t, 4000*105*0.003, res.SellFees, tol)
	assert.InDelta(t, 4000*100*0.0082+4000*105*0.0082, res.FeeSaved, tol)

	assert.InDelta(t, 500000+res.BuyFees, res.TotalCost, tol)
	assert.InDelta(t, 420000-res.SellFees, res.NetProceeds, tol)
	assert.InDelta(t, res.NetProceeds-res.TotalCost, res.NetPL, tol)
}

func TestCalculator_Intraday_MultipleLots(t *testing.T) {
	c := newTestCalculator(t)

	res, err := c.Intraday(
		[]TradeLot{{Price: 10, Quantity: 300}, {Price: 11, Quantity: 200}},
		[]TradeLot{{Price: 12, Quantity: 600}},
	)
	require.NoError(t, err)

	assert.Equal(t, int64(500), res.MatchedQuantity)
	assert.Equal(t, int64(0), res.UnmatchedBuyQuantity)
	assert.Equal(t, int64(100), res.UnmatchedSellQuantity)
	assert.InDelta(t, 10.4, res.WeightedAvgBuyPrice, tol)
	assert.InDelta(t, 500*10.4*0.003, res.BuyFees, tol)
}

func TestCalculator_Intraday_Empty(t *testing.T) {
	c := newTestCalculator(t)

	tests := []struct {
		name  string
		buys  []TradeLot
		sells []TradeLot
	}{
		{name: "both empty"},
		{name: "buys only", buys: []TradeLot{{Price: 10, Quantity: 100}}},
		{name: "sells only", sells: []TradeLot{{Price: 10, Quantity: 100}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Intraday(tt.buys, tt.sells)
			require.NoError(t, err)
			assert.Zero(t, res.MatchedQuantity)
			assert.Zero(t, res.FeeSaved)
			if len(tt.buys) == 0 {
				assert.Zero(t, res.BuyFees)
				assert.Zero(t, res.NetPLPct)
			}
		})
	}
}

func TestCalculator_Intraday_FeeNeverExceedsFullFee(t *testing.T) {
	c := newTestCalculator(t)

	buys := []TradeLot{{Price: 73.2, Quantity: 1500}, {Price: 74.1, Quantity: 900}}
	sells := []TradeLot{{Price: 75, Quantity: 2000}}

	matched, err := c.Intraday(buys, sells)
	require.NoError(t, err)
	full, err := c.TwoSidedFullFee(buys, sells)
	require.NoError(t, err)

	assert.LessOrEqual(t, matched.BuyFees, full.BuyFees)
	assert.LessOrEqual(t, matched.SellFees, full.SellFees)
	assert.Zero(t, full.MatchedQuantity)
	assert.Zero(t, full.FeeSaved)
	assert.InDelta(t, full.TotalBuyValue*0.0112, full.BuyFees, tol)
	assert.InDelta(t, full.TotalSellValue*0.0112, full.SellFees, tol)

	// The fee saved is exactly the gap against full-fee treatment.
	saved := (full.BuyFees - matched.BuyFees) + (full.SellFees - matched.SellFees)
	assert.InDelta(t, saved, matched.FeeSaved, tol)
}
