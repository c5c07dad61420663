package fees

// IntradayResult describes a day of trading in one symbol: independent buy
// and sell lot lists matched by quantity, with the brokerage component of
// the fee waived on the overlap.
type IntradayResult struct {
	TotalBuyQuantity  int64   `json:"total_buy_quantity"`
	TotalSellQuantity int64   `json:"total_sell_quantity"`
	TotalBuyValue     float64 `json:"total_buy_value"`
	TotalSellValue    float64 `json:"total_sell_value"`

	WeightedAvgBuyPrice  float64 `json:"weighted_avg_buy_price"`
	WeightedAvgSellPrice float64 `json:"weighted_avg_sell_price"`

	MatchedQuantity       int64 `json:"matched_quantity"`
	UnmatchedBuyQuantity  int64 `json:"unmatched_buy_quantity"`
	UnmatchedSellQuantity int64 `json:"unmatched_sell_quantity"`

	BuyFees  float64 `json:"buy_fees"`
	SellFees float64 `json:"sell_fees"`
	// FeeSaved is the brokerage waived on the matched quantity relative
	// to paying the full fee on both sides. Zero when fees are charged
	// in full.
	FeeSaved float64 `json:"fee_saved"`

	TotalCost   float64 `json:"total_cost"`
	NetProceeds float64 `json:"net_proceeds"`
	NetPL       float64 `json:"net_pl"`
	NetPLPct    float64 `json:"net_pl_pct"`
}

// Intraday computes fees and profit for a day's buys and sells with the
// matched-quantity brokerage waiver: quantity both bought and sold pays only
// the settlement levy per side, and only the unmatched remainder pays the
// full fee. Empty lot lists are valid and produce zero totals.
func (c *Calculator) Intraday(buys, sells []TradeLot) (IntradayResult, error) {
	return c.twoSided(buys, sells, true)
}

// TwoSidedFullFee computes the same breakdown with the full fee charged on
// both sides and no matching, the treatment for positions closed on a later
// day.
func (c *Calculator) TwoSidedFullFee(buys, sells []TradeLot) (IntradayResult, error) {
	return c.twoSided(buys, sells, false)
}

func (c *Calculator) twoSided(buys, sells []TradeLot, matched bool) (IntradayResult, error) {
	if err := validateLots(buys); err != nil {
		return IntradayResult{}, err
	}
	if err := validateLots(sells); err != nil {
		return IntradayResult{}, err
	}

	var res IntradayResult
	for _, lot := range buys {
		res.TotalBuyQuantity += lot.Quantity
		res.TotalBuyValue += lot.Value()
	}
	for _, lot := range sells {
		res.TotalSellQuantity += lot.Quantity
		res.TotalSellValue += lot.Value()
	}
	if res.TotalBuyQuantity > 0 {
		res.WeightedAvgBuyPrice = res.TotalBuyValue / float64(res.TotalBuyQuantity)
	}
	if res.TotalSellQuantity > 0 {
		res.WeightedAvgSellPrice = res.TotalSellValue / float64(res.TotalSellQuantity)
	}

	if matched {
		res.MatchedQuantity = min(res.TotalBuyQuantity, res.TotalSellQuantity)
	}
	res.UnmatchedBuyQuantity = res.TotalBuyQuantity - res.MatchedQuantity
	res.UnmatchedSellQuantity = res.TotalSellQuantity - res.MatchedQuantity

	// Fees are priced at the side's weighted average: the levy applies to
	// the whole side, brokerage only to the unmatched remainder.
	brokerage := c.schedule.BrokerageRate()
	stl := c.schedule.STLRate()
	res.BuyFees = float64(res.UnmatchedBuyQuantity)*res.WeightedAvgBuyPrice*brokerage +
		float64(res.TotalBuyQuantity)*res.WeightedAvgBuyPrice*stl
	res.SellFees = float64(res.UnmatchedSellQuantity)*res.WeightedAvgSellPrice*brokerage +
		float64(res.TotalSellQuantity)*res.WeightedAvgSellPrice*stl
	if matched {
		m := float64(res.MatchedQuantity)
		res.FeeSaved = m*res.WeightedAvgBuyPrice*brokerage + m*res.WeightedAvgSellPrice*brokerage
	}

	res.TotalCost = res.TotalBuyValue + res.BuyFees
	res.NetProceeds = res.TotalSellValue - res.SellFees
	res.NetPL = res.NetProceeds - res.TotalCost
	if res.TotalCost > 0 {
		res.NetPLPct = res.NetPL / res.TotalCost * 100
	}
	return res, nil
}
