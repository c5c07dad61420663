package fees

import "fmt"

// DefaultProfitTargets is the standard ladder of profit percentages used
// when the caller does not supply their own.
var DefaultProfitTargets = []float64{0.5, 1, 2, 3, 5, 10, 15, 20, 25, 30}

// ShortProfitTargets is the condensed ladder used for compact displays.
var ShortProfitTargets = []float64{0.5, 1, 2, 3, 5, 10}

// BreakEvenAnalysis describes the cost basis of a planned buy and the sell
// price needed to exit flat after fees.
type BreakEvenAnalysis struct {
	BuyPrice      float64 `json:"buy_price"`
	Quantity      int64   `json:"quantity"`
	TotalBuyValue float64 `json:"total_buy_value"`
	BuyFee        float64 `json:"buy_fee"`
	AveragePrice  float64 `json:"average_price"`
	TotalCost     float64 `json:"total_cost"`

	BreakEvenSellPrice float64 `json:"break_even_sell_price"`
	SellFeeAtBreakEven float64 `json:"sell_fee_at_break_even"`
	// PriceIncrease is the absolute move from the raw buy price to the
	// break-even price; PercentMove expresses it relative to the buy.
	PriceIncrease float64 `json:"price_increase"`
	PercentMove   float64 `json:"percent_move"`
}

// ProfitTarget is one row of the profit ladder: the sell price required to
// realise TargetPct net profit on total cost, after sell-side fees.
type ProfitTarget struct {
	TargetPct         float64 `json:"target_pct"`
	ProfitAmount      float64 `json:"profit_amount"`
	RequiredSellPrice float64 `json:"required_sell_price"`
	PriceIncrease     float64 `json:"price_increase"`
	PercentMove       float64 `json:"percent_move"`
	// PercentMoveFromAverage is the move relative to the fee-inclusive
	// average price. Zero when the mode carries no average price.
	PercentMoveFromAverage float64 `json:"percent_move_from_average"`
}

// BreakEven computes the cost basis and break-even sell price for a buy at
// the given price and quantity.
func (c *Calculator) BreakEven(buyPrice float64, quantity int64, policy FeePolicy, mode CalcMode) (BreakEvenAnalysis, error) {
	res, err := c.SingleTrade(SingleTrade{BuyPrice: buyPrice, Quantity: quantity}, policy, mode)
	if err != nil {
		return BreakEvenAnalysis{}, err
	}

	a := BreakEvenAnalysis{
		BuyPrice:           buyPrice,
		Quantity:           quantity,
		TotalBuyValue:      res.TotalBuyValue,
		BuyFee:             res.BuyFee,
		AveragePrice:       res.AveragePrice,
		TotalCost:          res.TotalCost,
		BreakEvenSellPrice: res.BreakEvenSellPrice,
	}
	a.SellFeeAtBreakEven = a.BreakEvenSellPrice * float64(quantity) * c.effectiveSellRate(policy, mode)
	a.PriceIncrease = a.BreakEvenSellPrice - buyPrice
	a.PercentMove = a.PriceIncrease / buyPrice * 100
	return a, nil
}

// ProfitTargets builds the ladder of required sell prices for each profit
// percentage in targets, reusing a previously computed analysis. Targets
// must be positive; order is preserved.
func (c *Calculator) ProfitTargets(a BreakEvenAnalysis, policy FeePolicy, mode CalcMode, targets []float64) ([]ProfitTarget, error) {
	rows := make([]ProfitTarget, 0, len(targets))
	for _, pct := range targets {
		row, err := c.ProfitTarget(a, policy, mode, pct)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ProfitTarget computes the sell price required to net pct percent profit
// over the analysis' total cost. The custom-target path and the standard
// ladder share this computation, so a custom 5% always matches the 5% row.
func (c *Calculator) ProfitTarget(a BreakEvenAnalysis, policy FeePolicy, mode CalcMode, pct float64) (ProfitTarget, error) {
	if pct <= 0 {
		return ProfitTarget{}, fmt.Errorf("target %.4f%%: %w", pct, ErrInvalidTarget)
	}
	if a.Quantity < 1 {
		return ProfitTarget{}, fmt.Errorf("quantity %d: %w", a.Quantity, ErrInvalidQuantity)
	}

	qty := float64(a.Quantity)
	r := c.effectiveSellRate(policy, mode)

	row := ProfitTarget{
		TargetPct:    pct,
		ProfitAmount: a.TotalCost * pct / 100,
	}
	proceeds := a.TotalCost + row.ProfitAmount
	if r == 0 {
		row.RequiredSellPrice = proceeds / qty
	} else {
		row.RequiredSellPrice = proceeds / (qty * (1 - r))
	}
	row.PriceIncrease = row.RequiredSellPrice - a.BuyPrice
	row.PercentMove = row.PriceIncrease / a.BuyPrice * 100
	if a.AveragePrice > 0 {
		row.PercentMoveFromAverage = (row.RequiredSellPrice - a.AveragePrice) / a.AveragePrice * 100
	}
	return row, nil
}
