package fees

import "fmt"

// SingleTrade is one buy fill with an optional planned or executed sell
// price. A zero SellPrice means no sell leg; sell-side outputs are zero.
type SingleTrade struct {
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
	Quantity  int64   `json:"quantity"`
}

// Validate checks the trade inputs. The sell price may be zero but never
// negative.
func (t SingleTrade) Validate() error {
	if t.BuyPrice <= 0 {
		return fmt.Errorf("buy price %.4f: %w", t.BuyPrice, ErrInvalidPrice)
	}
	if t.SellPrice < 0 {
		return fmt.Errorf("sell price %.4f: %w", t.SellPrice, ErrInvalidSellPrice)
	}
	if t.Quantity < 1 {
		return fmt.Errorf("quantity %d: %w", t.Quantity, ErrInvalidQuantity)
	}
	return nil
}

// TradeResult is the full fee and profit breakdown of a single trade.
type TradeResult struct {
	TotalBuyValue float64 `json:"total_buy_value"`
	BuyFee        float64 `json:"buy_fee"`
	// AveragePrice is the fee-inclusive per-share cost. Zero under
	// ModeDirectTotal, which carries no average price concept.
	AveragePrice float64 `json:"average_price"`
	TotalCost    float64 `json:"total_cost"`

	TotalSellValue float64 `json:"total_sell_value"`
	SellFee        float64 `json:"sell_fee"`
	NetProceeds    float64 `json:"net_proceeds"`

	GainLoss    float64 `json:"gain_loss"`
	GainLossPct float64 `json:"gain_loss_pct"`
	TotalFees   float64 `json:"total_fees"`

	// BreakEvenSellPrice is the sell price at which net proceeds equal
	// total cost under the given policy and mode.
	BreakEvenSellPrice float64 `json:"break_even_sell_price"`
}

// SingleTrade computes fees, cost basis, break-even and profit for one trade
// under the given fee policy and calculation mode.
func (c *Calculator) SingleTrade(trade SingleTrade, policy FeePolicy, mode CalcMode) (TradeResult, error) {
	if err := trade.Validate(); err != nil {
		return TradeResult{}, err
	}
	if policy == PolicyIntradayMatched || !policy.IsValid() {
		return TradeResult{}, fmt.Errorf("policy %q: %w", policy, ErrPolicyNotAllowed)
	}
	if !mode.IsValid() {
		return TradeResult{}, fmt.Errorf("unknown calculation mode %q", mode)
	}

	qty := float64(trade.Quantity)
	sellRate := c.effectiveSellRate(policy, mode)

	res := TradeResult{
		TotalBuyValue: trade.BuyPrice * qty,
	}

	switch mode {
	case ModeDirectTotal:
		res.BuyFee = res.TotalBuyValue * c.schedule.FeeRate()
		res.TotalCost = res.TotalBuyValue + res.BuyFee
	default:
		res.BuyFee = res.TotalBuyValue * c.schedule.FeeRate()
		res.AveragePrice = (res.TotalBuyValue + res.BuyFee) / qty
		res.TotalCost = res.AveragePrice * qty
	}

	res.BreakEvenSellPrice = c.breakEvenPrice(res.TotalCost, res.AveragePrice, qty, policy, mode)

	if trade.SellPrice > 0 {
		res.TotalSellValue = trade.SellPrice * qty
		res.SellFee = res.TotalSellValue * sellRate
		res.NetProceeds = res.TotalSellValue - res.SellFee
		res.GainLoss = res.NetProceeds - res.TotalCost
		if res.TotalCost > 0 {
			res.GainLossPct = res.GainLoss / res.TotalCost * 100
		}
	}
	res.TotalFees = res.BuyFee + res.SellFee

	return res, nil
}

// breakEvenPrice derives the break-even sell price for a cost basis under
// the mode's convention. avgPrice is zero for ModeDirectTotal.
func (c *Calculator) breakEvenPrice(totalCost, avgPrice, qty float64, policy FeePolicy, mode CalcMode) float64 {
	if qty <= 0 {
		return 0
	}

	switch mode {
	case ModeAverageOnly:
		// The average price already absorbs the buy fee; on a same-day
		// sell under this convention no further fee is charged, so the
		// average is the break-even itself.
		if policy.SameDay() {
			return avgPrice
		}
		return avgPrice * (1 + c.schedule.FeeRate())

	case ModeAverageSTL:
		switch policy {
		case PolicySameDaySingleFee:
			return avgPrice
		case PolicySameDaySTLOnly:
			// Gross up so the levy on the sell leg is covered:
			// price*qty*(1-stl) == totalCost.
			return totalCost / (qty * (1 - c.schedule.STLRate()))
		default:
			return avgPrice * (1 + c.schedule.FeeRate())
		}

	default: // ModeDirectTotal
		r := policy.sellRate(c.schedule)
		return totalCost / (qty * (1 - r))
	}
}
