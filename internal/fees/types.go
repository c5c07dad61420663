package fees

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by input validation. Callers match them with
// errors.Is to map engine failures onto transport-level error codes.
var (
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrInvalidSellPrice = errors.New("sell price must not be negative")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidSchedule  = errors.New("fee schedule rates out of range")
	ErrInvalidTarget    = errors.New("profit target must be positive")
	ErrPolicyNotAllowed = errors.New("fee policy not applicable to this operation")
)

// FeeSchedule holds the commission percentages charged per trade side.
// Percentages are stored in human units (1.12 means 1.12%) and converted to
// fractional rates at the point of use.
type FeeSchedule struct {
	// FeePct is the full transaction fee percentage charged on traded value.
	FeePct float64 `json:"fee_pct"`
	// STLPct is the settlement and transaction levy percentage, the
	// component of FeePct that is never waived.
	STLPct float64 `json:"stl_pct"`
}

// DefaultSchedule returns the standard retail fee schedule: a 1.12% total
// transaction fee of which 0.30% is the settlement levy.
func DefaultSchedule() FeeSchedule {
	return FeeSchedule{
		FeePct: 1.12,
		STLPct: 0.30,
	}
}

// FeeRate returns the full transaction fee as a fraction (0.0112 for 1.12%).
func (s FeeSchedule) FeeRate() float64 {
	return s.FeePct / 100
}

// STLRate returns the settlement levy as a fraction.
func (s FeeSchedule) STLRate() float64 {
	return s.STLPct / 100
}

// BrokerageRate returns the waivable brokerage component as a fraction, the
// difference between the full fee and the settlement levy.
func (s FeeSchedule) BrokerageRate() float64 {
	return s.FeeRate() - s.STLRate()
}

// IsValid reports whether the schedule rates are usable: both non-negative,
// levy not exceeding the full fee, and the full fee below 100%.
func (s FeeSchedule) IsValid() bool {
	return s.FeePct >= 0 && s.STLPct >= 0 && s.STLPct <= s.FeePct && s.FeePct < 100
}

// Validate returns ErrInvalidSchedule when IsValid is false.
func (s FeeSchedule) Validate() error {
	if !s.IsValid() {
		return fmt.Errorf("fee %.4f%% stl %.4f%%: %w", s.FeePct, s.STLPct, ErrInvalidSchedule)
	}
	return nil
}

// FeePolicy selects how sell-side fees are charged relative to the buy.
type FeePolicy string

const (
	// PolicySameDaySingleFee charges the full fee on the buy only; the
	// same-day sell is free of charge.
	PolicySameDaySingleFee FeePolicy = "same_day_single_fee"
	// PolicySameDaySTLOnly charges the full fee on the buy and only the
	// settlement levy on the same-day sell.
	PolicySameDaySTLOnly FeePolicy = "same_day_stl_only"
	// PolicyMultiDayDoubleFee charges the full fee on both the buy and the
	// sell, the default for positions held overnight.
	PolicyMultiDayDoubleFee FeePolicy = "multi_day_double_fee"
	// PolicyIntradayMatched waives the brokerage component on quantity
	// bought and sold the same day; only meaningful for the Intraday
	// calculation, which matches lot lists rather than a single fill.
	PolicyIntradayMatched FeePolicy = "intraday_matched"
)

// ParseFeePolicy converts the wire representation into a FeePolicy.
func ParseFeePolicy(s string) (FeePolicy, error) {
	switch FeePolicy(s) {
	case PolicySameDaySingleFee, PolicySameDaySTLOnly, PolicyMultiDayDoubleFee, PolicyIntradayMatched:
		return FeePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown fee policy %q", s)
	}
}

// IsValid reports whether the policy is a known value.
func (p FeePolicy) IsValid() bool {
	_, err := ParseFeePolicy(string(p))
	return err == nil
}

// SameDay reports whether the policy assumes buy and sell on the same
// trading day.
func (p FeePolicy) SameDay() bool {
	return p == PolicySameDaySingleFee || p == PolicySameDaySTLOnly || p == PolicyIntradayMatched
}

// sellRate returns the fractional fee charged on sell value under this
// policy. Only defined for the single-fill policies; the intraday policy
// prices fees per matched quantity instead.
func (p FeePolicy) sellRate(s FeeSchedule) float64 {
	switch p {
	case PolicySameDaySingleFee:
		return 0
	case PolicySameDaySTLOnly:
		return s.STLRate()
	default:
		return s.FeeRate()
	}
}

// CalcMode selects which historical formula convention governs cost basis
// and break-even derivation.
type CalcMode string

const (
	// ModeAverageSTL folds the buy fee into a per-share average price and,
	// on same-day sells, carves the settlement levy out of the break-even
	// denominator so the levy on the sell is fully covered.
	ModeAverageSTL CalcMode = "average_stl"
	// ModeAverageOnly folds the buy fee into the average price and treats
	// that average itself as the same-day break-even, charging no fee on
	// the same-day sell.
	ModeAverageOnly CalcMode = "average_only"
	// ModeDirectTotal folds the buy fee straight into the total cost
	// without deriving an average price.
	ModeDirectTotal CalcMode = "direct_total"
)

// ParseCalcMode converts the wire representation into a CalcMode.
func ParseCalcMode(s string) (CalcMode, error) {
	switch CalcMode(s) {
	case ModeAverageSTL, ModeAverageOnly, ModeDirectTotal:
		return CalcMode(s), nil
	default:
		return "", fmt.Errorf("unknown calculation mode %q", s)
	}
}

// IsValid reports whether the mode is a known value.
func (m CalcMode) IsValid() bool {
	_, err := ParseCalcMode(string(m))
	return err == nil
}

// TradeLot is one purchase or sale fill: a price and a share count.
type TradeLot struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// Value returns the gross traded value of the lot before fees.
func (l TradeLot) Value() float64 {
	return l.Price * float64(l.Quantity)
}

// Validate checks that the lot has a positive price and at least one share.
func (l TradeLot) Validate() error {
	if l.Price <= 0 {
		return fmt.Errorf("lot price %.4f: %w", l.Price, ErrInvalidPrice)
	}
	if l.Quantity < 1 {
		return fmt.Errorf("lot quantity %d: %w", l.Quantity, ErrInvalidQuantity)
	}
	return nil
}

// validateLots validates every lot in a list, identifying the offender by
// position. An empty list is valid and aggregates to zero.
func validateLots(lots []TradeLot) error {
	for i, lot := range lots {
		if err := lot.Validate(); err != nil {
			return fmt.Errorf("lot %d: %w", i, err)
		}
	}
	return nil
}

// Calculator evaluates trades against a fixed fee schedule. The zero value
// is not usable; construct with NewCalculator.
type Calculator struct {
	schedule FeeSchedule
}

// NewCalculator returns a Calculator for the given schedule, or
// ErrInvalidSchedule when the rates are out of range.
func NewCalculator(schedule FeeSchedule) (*Calculator, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{schedule: schedule}, nil
}

// Schedule returns the fee schedule the calculator was built with.
func (c *Calculator) Schedule() FeeSchedule {
	return c.schedule
}

// effectiveSellRate resolves the sell-side rate for a policy under a
// mode's convention. ModeAverageOnly treats every same-day sell as free,
// whatever the policy would otherwise charge, so that selling at the
// average price closes the trade flat.
func (c *Calculator) effectiveSellRate(policy FeePolicy, mode CalcMode) float64 {
	if mode == ModeAverageOnly && policy.SameDay() {
		return 0
	}
	return policy.sellRate(c.schedule)
}
