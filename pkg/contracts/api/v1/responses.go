package api

import (
	"calqtrade/internal/fees"
	"calqtrade/internal/sessions"
)

// CalculateTradeResponse carries a single-trade result with the policy and
// mode that produced it
type CalculateTradeResponse struct {
	Policy string           `json:"policy"`
	Mode   string           `json:"mode"`
	Result fees.TradeResult `json:"result"`
}

// BreakEvenResponse carries a break-even analysis plus its target table
type BreakEvenResponse struct {
	Policy   string                 `json:"policy"`
	Mode     string                 `json:"mode"`
	Analysis fees.BreakEvenAnalysis `json:"analysis"`
	Targets  []fees.ProfitTarget    `json:"targets"`
}

// CustomTargetResponse carries a single custom profit-target row
type CustomTargetResponse struct {
	Policy   string                 `json:"policy"`
	Mode     string                 `json:"mode"`
	Analysis fees.BreakEvenAnalysis `json:"analysis"`
	Target   fees.ProfitTarget      `json:"target"`
}

// PolicyInfo describes one selectable fee policy or calculation mode
type PolicyInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// PoliciesResponse enumerates the configured schedule and all selectable
// policies, modes and target lists
type PoliciesResponse struct {
	Schedule       fees.FeeSchedule `json:"schedule"`
	Policies       []PolicyInfo     `json:"policies"`
	Modes          []PolicyInfo     `json:"modes"`
	DefaultPolicy  string           `json:"default_policy"`
	DefaultMode    string           `json:"default_mode"`
	DefaultTargets []float64        `json:"default_targets"`
	ShortTargets   []float64        `json:"short_targets"`
}

// SessionResponse carries a session snapshot
type SessionResponse struct {
	Session sessions.Session `json:"session"`
}

// PositionResponse carries the aggregate view of a session's purchase list
type PositionResponse struct {
	SessionID string                 `json:"session_id"`
	Policy    string                 `json:"policy"`
	Summary   fees.PositionSummary   `json:"summary"`
	BreakEven fees.PositionBreakEven `json:"break_even"`
	Scenarios []fees.SellScenario    `json:"scenarios"`
}

// IntradayResponse carries the matched-quantity result for a session's
// intraday lot lists
type IntradayResponse struct {
	SessionID string              `json:"session_id"`
	Matched   bool                `json:"matched"`
	Result    fees.IntradayResult `json:"result"`
}

// HealthResponse is the health/readiness report
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Uptime  string                 `json:"uptime"`
	Checks  map[string]string      `json:"checks,omitempty"`
	Stats   map[string]interface{} `json:"stats,omitempty"`
}
