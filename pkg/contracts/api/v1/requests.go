// Package api contains API contract definitions for the CalqTrade
// calculation service. Version v1 represents the current stable API version.
package api

// TradeLotRequest is one price/quantity lot in a request body
type TradeLotRequest struct {
	Price    float64 `json:"price" validate:"required,gt=0"`
	Quantity int64   `json:"quantity" validate:"required,min=1"`
}

// CalculateTradeRequest asks for a single buy (and optional sell) calculation
type CalculateTradeRequest struct {
	BuyPrice  float64 `json:"buy_price" validate:"required,gt=0"`
	Quantity  int64   `json:"quantity" validate:"required,min=1"`
	SellPrice float64 `json:"sell_price,omitempty" validate:"omitempty,gt=0"`
	Policy    string  `json:"policy,omitempty" validate:"omitempty,feepolicy"`
	Mode      string  `json:"mode,omitempty" validate:"omitempty,calcmode"`
}

// BreakEvenRequest asks for break-even analysis plus the profit-target table
type BreakEvenRequest struct {
	BuyPrice float64   `json:"buy_price" validate:"required,gt=0"`
	Quantity int64     `json:"quantity" validate:"required,min=1"`
	Policy   string    `json:"policy,omitempty" validate:"omitempty,feepolicy"`
	Mode     string    `json:"mode,omitempty" validate:"omitempty,calcmode"`
	Targets  []float64 `json:"targets,omitempty" validate:"omitempty,dive,gt=0"`
}

// CustomTargetRequest asks for a single profit-target row at an arbitrary
// percentage, using the identical formula path as the target table
type CustomTargetRequest struct {
	BuyPrice  float64 `json:"buy_price" validate:"required,gt=0"`
	Quantity  int64   `json:"quantity" validate:"required,min=1"`
	Policy    string  `json:"policy,omitempty" validate:"omitempty,feepolicy"`
	Mode      string  `json:"mode,omitempty" validate:"omitempty,calcmode"`
	TargetPct float64 `json:"target_pct" validate:"required,gt=0"`
}

// AddLotRequest appends a lot to a session list
type AddLotRequest struct {
	Price    float64 `json:"price" validate:"required,gt=0"`
	Quantity int64   `json:"quantity" validate:"required,min=1"`
}
