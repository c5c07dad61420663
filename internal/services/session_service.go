package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calqtrade/internal/fees"
	"calqtrade/internal/infrastructure"
	"calqtrade/internal/sessions"
	api "calqtrade/pkg/contracts/api/v1"
	"calqtrade/pkg/contracts/events"
)

// SnapshotPublisher pushes session snapshots to subscribed WebSocket
// clients. The hub implements this; tests substitute a recorder.
type SnapshotPublisher interface {
	PublishSessionSnapshot(sessionID string, snapshot events.SessionSnapshot)
}

// SessionService owns session lifecycle and lot mutations. Every mutation
// recomputes the derived position and intraday views and publishes a
// snapshot, mirroring a UI that recalculates on each input change.
type SessionService struct {
	store     *sessions.Store
	calc      *CalcService
	publisher SnapshotPublisher
	logger    *slog.Logger
	metrics   *infrastructure.BusinessMetrics
}

// NewSessionService creates a session service. The publisher and metrics
// may be nil.
func NewSessionService(store *sessions.Store, calc *CalcService, publisher SnapshotPublisher, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *SessionService {
	return &SessionService{
		store:     store,
		calc:      calc,
		publisher: publisher,
		logger:    logger.With(slog.String("service", "sessions")),
		metrics:   metrics,
	}
}

// Create starts a new empty session
func (s *SessionService) Create(ctx context.Context) api.SessionResponse {
	session := s.store.Create()

	if s.metrics != nil {
		s.metrics.SessionsCreated.Add(ctx, 1)
		s.metrics.SessionsActive.Add(ctx, 1)
	}
	s.logger.InfoContext(ctx, "session created", slog.String("session_id", session.ID))

	return api.SessionResponse{Session: session}
}

// Get returns a session snapshot
func (s *SessionService) Get(ctx context.Context, id string) (api.SessionResponse, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	return api.SessionResponse{Session: session}, nil
}

// Delete removes a session
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return s.mapStoreError(id, err)
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Add(ctx, -1)
	}
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}

// AddPurchase appends a lot to the session's purchase list
func (s *SessionService) AddPurchase(ctx context.Context, id string, req api.AddLotRequest) (api.SessionResponse, error) {
	session, err := s.store.AddPurchase(id, fees.TradeLot{Price: req.Price, Quantity: req.Quantity})
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	if s.metrics != nil {
		s.metrics.SessionLotsAdded.Add(ctx, 1)
	}
	s.publish(ctx, session)
	return api.SessionResponse{Session: session}, nil
}

// RemovePurchase removes the purchase at index
func (s *SessionService) RemovePurchase(ctx context.Context, id string, index int) (api.SessionResponse, error) {
	session, err := s.store.RemovePurchase(id, index)
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	s.publish(ctx, session)
	return api.SessionResponse{Session: session}, nil
}

// ClearPurchases empties the purchase list
func (s *SessionService) ClearPurchases(ctx context.Context, id string) (api.SessionResponse, error) {
	session, err := s.store.ClearPurchases(id)
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	s.publish(ctx, session)
	return api.SessionResponse{Session: session}, nil
}

// AddIntraday appends a lot to the session's buy or sell leg
func (s *SessionService) AddIntraday(ctx context.Context, id, side string, req api.AddLotRequest) (api.SessionResponse, error) {
	parsed, err := sessions.ParseSide(side)
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	session, err := s.store.AddIntraday(id, parsed, fees.TradeLot{Price: req.Price, Quantity: req.Quantity})
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	if s.metrics != nil {
		s.metrics.SessionLotsAdded.Add(ctx, 1)
	}
	s.publish(ctx, session)
	return api.SessionResponse{Session: session}, nil
}

// RemoveIntraday removes a lot from the session's buy or sell leg
func (s *SessionService) RemoveIntraday(ctx context.Context, id, side string, index int) (api.SessionResponse, error) {
	parsed, err := sessions.ParseSide(side)
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	session, err := s.store.RemoveIntraday(id, parsed, index)
	if err != nil {
		return api.SessionResponse{}, s.mapStoreError(id, err)
	}
	s.publish(ctx, session)
	return api.SessionResponse{Session: session}, nil
}

// Position aggregates the session's purchase list under the given policy
// (empty means the configured default)
func (s *SessionService) Position(ctx context.Context, id, policy string) (api.PositionResponse, error) {
	start := time.Now()

	session, err := s.store.Get(id)
	if err != nil {
		return api.PositionResponse{}, s.mapStoreError(id, err)
	}

	resolved, _, err := s.calc.resolve(policy, "")
	if err != nil {
		return api.PositionResponse{}, err
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"session.id": id,
		"fee.policy": string(resolved),
	})

	resp, err := s.position(session, resolved)
	infrastructure.RecordCalculationMetrics(ctx, s.metrics, "position", time.Since(start), err)
	if err != nil {
		return api.PositionResponse{}, err
	}
	return resp, nil
}

func (s *SessionService) position(session sessions.Session, policy fees.FeePolicy) (api.PositionResponse, error) {
	calc := s.calc.Calculator()

	summary, err := calc.Position(session.Purchases)
	if err != nil {
		return api.PositionResponse{}, err
	}
	breakEven, err := calc.PositionBreakEven(summary, policy)
	if err != nil {
		return api.PositionResponse{}, err
	}

	return api.PositionResponse{
		SessionID: session.ID,
		Policy:    string(policy),
		Summary:   summary,
		BreakEven: breakEven,
		Scenarios: calc.PositionScenarios(summary, breakEven, policy),
	}, nil
}

// Intraday computes the matched-quantity result for the session's intraday
// lot lists; matched=false compares against full fees on both sides
func (s *SessionService) Intraday(ctx context.Context, id string, matched bool) (api.IntradayResponse, error) {
	start := time.Now()

	session, err := s.store.Get(id)
	if err != nil {
		return api.IntradayResponse{}, s.mapStoreError(id, err)
	}

	resp, err := s.intraday(session, matched)
	infrastructure.RecordCalculationMetrics(ctx, s.metrics, "intraday", time.Since(start), err)
	if err != nil {
		return api.IntradayResponse{}, err
	}
	return resp, nil
}

func (s *SessionService) intraday(session sessions.Session, matched bool) (api.IntradayResponse, error) {
	calc := s.calc.Calculator()

	var result fees.IntradayResult
	var err error
	if matched {
		result, err = calc.Intraday(session.IntradayBuys, session.IntradaySells)
	} else {
		result, err = calc.TwoSidedFullFee(session.IntradayBuys, session.IntradaySells)
	}
	if err != nil {
		return api.IntradayResponse{}, err
	}

	return api.IntradayResponse{
		SessionID: session.ID,
		Matched:   matched,
		Result:    result,
	}, nil
}

// publish recomputes the derived views and pushes a snapshot to subscribers
func (s *SessionService) publish(ctx context.Context, session sessions.Session) {
	if s.publisher == nil {
		return
	}

	snapshot := events.SessionSnapshot{
		SessionID: session.ID,
		Session:   session,
		UpdatedAt: session.UpdatedAt,
	}
	if position, err := s.position(session, s.calc.defaultPolicy); err == nil {
		snapshot.Position = position
	}
	if intraday, err := s.intraday(session, true); err == nil {
		snapshot.Intraday = intraday
	}
	if s.metrics != nil {
		s.metrics.SessionRecomputes.Add(ctx, 1)
	}

	s.publisher.PublishSessionSnapshot(session.ID, snapshot)

	infrastructure.AddSpanEvent(ctx, "session_snapshot_published", map[string]interface{}{
		"session_id": session.ID,
		"purchases":  len(session.Purchases),
	})
	s.logger.DebugContext(ctx, "session snapshot published",
		slog.String("session_id", session.ID),
		slog.Int("purchases", len(session.Purchases)),
	)
}

// mapStoreError translates store errors into service-layer sentinels
func (s *SessionService) mapStoreError(id string, err error) error {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	case errors.Is(err, sessions.ErrIndexOutOfRange):
		return fmt.Errorf("session %s: %w", id, ErrLotNotFound)
	case errors.Is(err, sessions.ErrTooManyLots):
		return fmt.Errorf("session %s: %w", id, ErrTooManyLots)
	case errors.Is(err, sessions.ErrInvalidSide):
		return fmt.Errorf("session %s: %w", id, ErrInvalidSide)
	default:
		return err
	}
}
