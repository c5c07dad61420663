package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"calqtrade/internal/config"
	"calqtrade/internal/fees"
	"calqtrade/internal/infrastructure"
	api "calqtrade/pkg/contracts/api/v1"
)

// CalcService binds the fee calculation engine to the configured schedule,
// default policy/mode and profit-target ladder.
type CalcService struct {
	calc          *fees.Calculator
	defaultPolicy fees.FeePolicy
	defaultMode   fees.CalcMode
	targets       []float64
	logger        *slog.Logger
	metrics       *infrastructure.BusinessMetrics
}

// NewCalcService creates a calculation service from configuration.
// Metrics may be nil in tests.
func NewCalcService(cfg config.FeesConfig, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) (*CalcService, error) {
	schedule := fees.FeeSchedule{FeePct: cfg.FeePct, STLPct: cfg.STLPct}
	calc, err := fees.NewCalculator(schedule)
	if err != nil {
		return nil, fmt.Errorf("fee schedule: %w", err)
	}

	policy, err := fees.ParseFeePolicy(cfg.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("default policy: %w", err)
	}
	mode, err := fees.ParseCalcMode(cfg.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("default mode: %w", err)
	}

	targets := cfg.ProfitTargets
	if len(targets) == 0 {
		targets = fees.DefaultProfitTargets
	}

	return &CalcService{
		calc:          calc,
		defaultPolicy: policy,
		defaultMode:   mode,
		targets:       targets,
		logger:        logger.With(slog.String("service", "calc")),
		metrics:       metrics,
	}, nil
}

// Calculator exposes the underlying engine for sibling services
func (s *CalcService) Calculator() *fees.Calculator {
	return s.calc
}

// CalculateTrade runs a single-trade calculation
func (s *CalcService) CalculateTrade(ctx context.Context, req api.CalculateTradeRequest) (api.CalculateTradeResponse, error) {
	start := time.Now()

	policy, mode, err := s.resolve(req.Policy, req.Mode)
	if err != nil {
		return api.CalculateTradeResponse{}, err
	}

	result, err := s.calc.SingleTrade(fees.SingleTrade{
		BuyPrice:  req.BuyPrice,
		SellPrice: req.SellPrice,
		Quantity:  req.Quantity,
	}, policy, mode)
	infrastructure.RecordCalculationMetrics(ctx, s.metrics, "single_trade", time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "single trade calculation rejected",
			slog.String("error", err.Error()),
			slog.String("policy", string(policy)),
			slog.String("mode", string(mode)),
		)
		return api.CalculateTradeResponse{}, err
	}

	return api.CalculateTradeResponse{
		Policy: string(policy),
		Mode:   string(mode),
		Result: result,
	}, nil
}

// BreakEven runs a break-even analysis with the profit-target table
func (s *CalcService) BreakEven(ctx context.Context, req api.BreakEvenRequest) (api.BreakEvenResponse, error) {
	start := time.Now()

	policy, mode, err := s.resolve(req.Policy, req.Mode)
	if err != nil {
		return api.BreakEvenResponse{}, err
	}

	analysis, err := s.calc.BreakEven(req.BuyPrice, req.Quantity, policy, mode)
	if err == nil {
		targets := req.Targets
		if len(targets) == 0 {
			targets = s.targets
		}
		var rows []fees.ProfitTarget
		rows, err = s.calc.ProfitTargets(analysis, policy, mode, targets)
		if err == nil {
			infrastructure.RecordCalculationMetrics(ctx, s.metrics, "break_even", time.Since(start), nil)
			return api.BreakEvenResponse{
				Policy:   string(policy),
				Mode:     string(mode),
				Analysis: analysis,
				Targets:  rows,
			}, nil
		}
	}

	infrastructure.RecordCalculationMetrics(ctx, s.metrics, "break_even", time.Since(start), err)
	infrastructure.RecordError(ctx, err)
	s.logger.WarnContext(ctx, "break-even calculation rejected",
		slog.String("error", err.Error()),
	)
	return api.BreakEvenResponse{}, err
}

// CustomTarget computes a single profit-target row at an arbitrary
// percentage, through the same formula path as the target table
func (s *CalcService) CustomTarget(ctx context.Context, req api.CustomTargetRequest) (api.CustomTargetResponse, error) {
	start := time.Now()

	policy, mode, err := s.resolve(req.Policy, req.Mode)
	if err != nil {
		return api.CustomTargetResponse{}, err
	}

	analysis, err := s.calc.BreakEven(req.BuyPrice, req.Quantity, policy, mode)
	if err == nil {
		var row fees.ProfitTarget
		row, err = s.calc.ProfitTarget(analysis, policy, mode, req.TargetPct)
		if err == nil {
			infrastructure.RecordCalculationMetrics(ctx, s.metrics, "custom_target", time.Since(start), nil)
			return api.CustomTargetResponse{
				Policy:   string(policy),
				Mode:     string(mode),
				Analysis: analysis,
				Target:   row,
			}, nil
		}
	}

	infrastructure.RecordCalculationMetrics(ctx, s.metrics, "custom_target", time.Since(start), err)
	infrastructure.RecordError(ctx, err)
	return api.CustomTargetResponse{}, err
}

// Policies enumerates the configured schedule and every selectable policy,
// mode and target list
func (s *CalcService) Policies(ctx context.Context) api.PoliciesResponse {
	return api.PoliciesResponse{
		Schedule: s.calc.Schedule(),
		Policies: []api.PolicyInfo{
			{ID: string(fees.PolicySameDaySingleFee), Description: "Same-day round trip, full fee charged on the buy only"},
			{ID: string(fees.PolicySameDaySTLOnly), Description: "Same-day round trip, settlement levy charged on the sell"},
			{ID: string(fees.PolicyMultiDayDoubleFee), Description: "Multi-day position, full fee charged on both sides"},
			{ID: string(fees.PolicyIntradayMatched), Description: "Intraday lot matching, brokerage waived on matched quantity"},
		},
		Modes: []api.PolicyInfo{
			{ID: string(fees.ModeAverageSTL), Description: "Fee-inclusive average price with settlement-levy carve-out at break-even"},
			{ID: string(fees.ModeAverageOnly), Description: "Fee-inclusive average price, break-even equals the average"},
			{ID: string(fees.ModeDirectTotal), Description: "Fees applied to totals only, no average price"},
		},
		DefaultPolicy:  string(s.defaultPolicy),
		DefaultMode:    string(s.defaultMode),
		DefaultTargets: s.targets,
		ShortTargets:   fees.ShortProfitTargets,
	}
}

// resolve parses the requested policy and mode, falling back to the
// configured defaults when empty
func (s *CalcService) resolve(policy, mode string) (fees.FeePolicy, fees.CalcMode, error) {
	p := s.defaultPolicy
	if policy != "" {
		parsed, err := fees.ParseFeePolicy(policy)
		if err != nil {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
		}
		p = parsed
	}

	m := s.defaultMode
	if mode != "" {
		parsed, err := fees.ParseCalcMode(mode)
		if err != nil {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
		}
		m = parsed
	}

	return p, m, nil
}
