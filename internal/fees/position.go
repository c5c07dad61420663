package fees

import "fmt"

// LotBreakdown is the per-lot cost detail inside a PositionSummary.
type LotBreakdown struct {
	TradeLot
	BuyValue     float64 `json:"buy_value"`
	BuyFee       float64 `json:"buy_fee"`
	AveragePrice float64 `json:"average_price"`
	TotalCost    float64 `json:"total_cost"`
}

// PositionSummary aggregates multiple purchase lots into one cost basis.
type PositionSummary struct {
	Lots []LotBreakdown `json:"lots"`

	TotalQuantity int64   `json:"total_quantity"`
	TotalBuyValue float64 `json:"total_buy_value"`
	TotalBuyFee   float64 `json:"total_buy_fee"`
	TotalCost     float64 `json:"total_cost"`

	// OverallAveragePrice is the fee-inclusive cost per share,
	// TotalCost over TotalQuantity.
	OverallAveragePrice float64 `json:"overall_average_price"`
	// WeightedAveragePrice is the fee-free value-weighted buy price,
	// TotalBuyValue over TotalQuantity.
	WeightedAveragePrice float64 `json:"weighted_average_price"`
	// FeeImpactPct is the fee drag on the position as a percentage of
	// the raw buy value.
	FeeImpactPct float64 `json:"fee_impact_pct"`
}

// PositionBreakEven is the exit price at which the aggregated position
// closes flat after fees.
type PositionBreakEven struct {
	BreakEvenSellPrice float64 `json:"break_even_sell_price"`
	SellFeeAtBreakEven float64 `json:"sell_fee_at_break_even"`
	PriceIncrease      float64 `json:"price_increase"`
	PercentMove        float64 `json:"percent_move"`
}

// SellScenario is one row of the what-if table: the outcome of selling the
// whole position at SellPrice.
type SellScenario struct {
	// Basis names how the candidate price was derived, for display.
	Basis       string  `json:"basis"`
	SellPrice   float64 `json:"sell_price"`
	SellValue   float64 `json:"sell_value"`
	SellFee     float64 `json:"sell_fee"`
	NetProceeds float64 `json:"net_proceeds"`
	GainLoss    float64 `json:"gain_loss"`
	GainLossPct float64 `json:"gain_loss_pct"`
}

// Position aggregates purchase lots into a summary. Every lot pays the full
// buy-side fee on its own value. An empty lot list is not an error and
// yields an all-zero summary.
func (c *Calculator) Position(lots []TradeLot) (PositionSummary, error) {
	if err := validateLots(lots); err != nil {
		return PositionSummary{}, err
	}

	sum := PositionSummary{Lots: make([]LotBreakdown, 0, len(lots))}
	for _, lot := range lots {
		b := LotBreakdown{
			TradeLot: lot,
			BuyValue: lot.Value(),
		}
		b.BuyFee = b.BuyValue * c.schedule.FeeRate()
		b.TotalCost = b.BuyValue + b.BuyFee
		b.AveragePrice = b.TotalCost / float64(lot.Quantity)
		sum.Lots = append(sum.Lots, b)

		sum.TotalQuantity += lot.Quantity
		sum.TotalBuyValue += b.BuyValue
		sum.TotalBuyFee += b.BuyFee
		sum.TotalCost += b.TotalCost
	}

	if sum.TotalQuantity > 0 {
		qty := float64(sum.TotalQuantity)
		sum.OverallAveragePrice = sum.TotalCost / qty
		sum.WeightedAveragePrice = sum.TotalBuyValue / qty
	}
	if sum.TotalBuyValue > 0 {
		sum.FeeImpactPct = sum.TotalBuyFee / sum.TotalBuyValue * 100
	}
	return sum, nil
}

// PositionBreakEven derives the exit price that closes the position flat
// under the given policy. A zero-quantity summary yields all zeros.
func (c *Calculator) PositionBreakEven(sum PositionSummary, policy FeePolicy) (PositionBreakEven, error) {
	if !policy.IsValid() || policy == PolicyIntradayMatched {
		return PositionBreakEven{}, fmt.Errorf("policy %q: %w", policy, ErrPolicyNotAllowed)
	}
	if sum.TotalQuantity == 0 {
		return PositionBreakEven{}, nil
	}

	qty := float64(sum.TotalQuantity)
	var be PositionBreakEven
	switch policy {
	case PolicySameDaySingleFee:
		be.BreakEvenSellPrice = sum.TotalCost / qty
	case PolicySameDaySTLOnly:
		be.BreakEvenSellPrice = sum.TotalCost / (qty * (1 - c.schedule.STLRate()))
	default:
		be.BreakEvenSellPrice = sum.OverallAveragePrice * (1 + c.schedule.FeeRate())
	}
	be.SellFeeAtBreakEven = be.BreakEvenSellPrice * qty * policy.sellRate(c.schedule)
	be.PriceIncrease = be.BreakEvenSellPrice - sum.WeightedAveragePrice
	if sum.WeightedAveragePrice > 0 {
		be.PercentMove = be.PriceIncrease / sum.WeightedAveragePrice * 100
	}
	return be, nil
}

// PositionScenarios builds the what-if table across candidate sell prices
// anchored on the weighted average, the overall average and the break-even
// price. Returns nil for an empty position.
func (c *Calculator) PositionScenarios(sum PositionSummary, be PositionBreakEven, policy FeePolicy) []SellScenario {
	if sum.TotalQuantity == 0 {
		return nil
	}

	wavg := sum.WeightedAveragePrice
	candidates := []struct {
		basis string
		price float64
	}{
		{"wavg_-5pct", wavg * 0.95},
		{"wavg_-2pct", wavg * 0.98},
		{"overall_avg", sum.OverallAveragePrice},
		{"break_even", be.BreakEvenSellPrice},
		{"wavg_+2pct", wavg * 1.02},
		{"wavg_+5pct", wavg * 1.05},
		{"wavg_+10pct", wavg * 1.10},
		{"wavg_+15pct", wavg * 1.15},
		{"wavg_+20pct", wavg * 1.20},
	}

	qty := float64(sum.TotalQuantity)
	r := policy.sellRate(c.schedule)
	rows := make([]SellScenario, 0, len(candidates))
	for _, cand := range candidates {
		row := SellScenario{
			Basis:     cand.basis,
			SellPrice: cand.price,
			SellValue: cand.price * qty,
		}
		row.SellFee = row.SellValue * r
		row.NetProceeds = row.SellValue - row.SellFee
		row.GainLoss = row.NetProceeds - sum.TotalCost
		if sum.TotalCost > 0 {
			row.GainLossPct = row.GainLoss / sum.TotalCost * 100
		}
		rows = append(rows, row)
	}
	return rows
}
