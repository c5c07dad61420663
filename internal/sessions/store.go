// Package sessions provides the in-memory store for calculation sessions.
// A session owns the mutable lot lists (purchases plus intraday buy/sell
// legs); the calculation engine itself stays pure and only ever sees
// snapshot copies taken under the store lock.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"calqtrade/internal/config"
	"calqtrade/internal/fees"
)

// Side identifies an intraday lot list
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide converts a path segment into a Side
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideBuy, SideSell:
		return Side(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

var (
	ErrNotFound        = errors.New("session not found")
	ErrIndexOutOfRange = errors.New("lot index out of range")
	ErrTooManyLots     = errors.New("session lot limit reached")
	ErrInvalidSide     = errors.New("invalid intraday side")
)

// Session is a snapshot of one calculation session's lot lists.
// Values returned by the store are copies; mutating them has no
// effect on stored state.
type Session struct {
	ID            string          `json:"id"`
	Purchases     []fees.TradeLot `json:"purchases"`
	IntradayBuys  []fees.TradeLot `json:"intraday_buys"`
	IntradaySells []fees.TradeLot `json:"intraday_sells"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// record is the mutable stored form of a session
type record struct {
	id            string
	purchases     []fees.TradeLot
	intradayBuys  []fees.TradeLot
	intradaySells []fees.TradeLot
	createdAt     time.Time
	updatedAt     time.Time
}

func (r *record) snapshot() Session {
	s := Session{
		ID:            r.id,
		Purchases:     make([]fees.TradeLot, len(r.purchases)),
		IntradayBuys:  make([]fees.TradeLot, len(r.intradayBuys)),
		IntradaySells: make([]fees.TradeLot, len(r.intradaySells)),
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}
	copy(s.Purchases, r.purchases)
	copy(s.IntradayBuys, r.intradayBuys)
	copy(s.IntradaySells, r.intradaySells)
	return s
}

// Store is an in-memory session store keyed by UUID
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*record

	ttl     time.Duration
	sweep   time.Duration
	maxLots int
	logger  *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
	now      func() time.Time

	onExpire func(count int)
}

// NewStore creates a session store from configuration
func NewStore(cfg config.SessionsConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*record),
		ttl:      cfg.TTL,
		sweep:    cfg.SweepInterval,
		maxLots:  cfg.MaxLots,
		logger:   logger.With(slog.String("component", "session_store")),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// OnExpire registers a callback invoked with the count of sessions the
// sweeper removed. Must be set before StartSweeper.
func (s *Store) OnExpire(fn func(count int)) {
	s.onExpire = fn
}

// Create registers a new empty session and returns its snapshot
func (s *Store) Create() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &record{
		id:        uuid.New().String(),
		createdAt: now,
		updatedAt: now,
	}
	s.sessions[rec.id] = rec
	return rec.snapshot()
}

// Get returns a snapshot of the session
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.sessions[id]
	if !exists {
		return Session{}, ErrNotFound
	}
	return rec.snapshot(), nil
}

// Delete removes a session
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Count returns the number of live sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// AddPurchase appends a lot to the purchase list
func (s *Store) AddPurchase(id string, lot fees.TradeLot) (Session, error) {
	if err := lot.Validate(); err != nil {
		return Session{}, err
	}
	return s.mutate(id, func(rec *record) error {
		if len(rec.purchases) >= s.maxLots {
			return ErrTooManyLots
		}
		rec.purchases = append(rec.purchases, lot)
		return nil
	})
}

// RemovePurchase removes the purchase at the given index
func (s *Store) RemovePurchase(id string, index int) (Session, error) {
	return s.mutate(id, func(rec *record) error {
		if index < 0 || index >= len(rec.purchases) {
			return ErrIndexOutOfRange
		}
		rec.purchases = append(rec.purchases[:index], rec.purchases[index+1:]...)
		return nil
	})
}

// ClearPurchases empties the purchase list
func (s *Store) ClearPurchases(id string) (Session, error) {
	return s.mutate(id, func(rec *record) error {
		rec.purchases = nil
		return nil
	})
}

// AddIntraday appends a lot to the buy or sell leg
func (s *Store) AddIntraday(id string, side Side, lot fees.TradeLot) (Session, error) {
	if err := lot.Validate(); err != nil {
		return Session{}, err
	}
	return s.mutate(id, func(rec *record) error {
		list := rec.intradayList(side)
		if list == nil {
			return ErrInvalidSide
		}
		if len(*list) >= s.maxLots {
			return ErrTooManyLots
		}
		*list = append(*list, lot)
		return nil
	})
}

// RemoveIntraday removes the lot at index from the buy or sell leg
func (s *Store) RemoveIntraday(id string, side Side, index int) (Session, error) {
	return s.mutate(id, func(rec *record) error {
		list := rec.intradayList(side)
		if list == nil {
			return ErrInvalidSide
		}
		if index < 0 || index >= len(*list) {
			return ErrIndexOutOfRange
		}
		*list = append((*list)[:index], (*list)[index+1:]...)
		return nil
	})
}

func (r *record) intradayList(side Side) *[]fees.TradeLot {
	switch side {
	case SideBuy:
		return &r.intradayBuys
	case SideSell:
		return &r.intradaySells
	default:
		return nil
	}
}

// mutate applies fn under the write lock and bumps the session timestamp
func (s *Store) mutate(id string, fn func(*record) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.sessions[id]
	if !exists {
		return Session{}, ErrNotFound
	}
	if err := fn(rec); err != nil {
		return Session{}, err
	}
	rec.updatedAt = s.now()
	return rec.snapshot(), nil
}

// StartSweeper runs the TTL expiry sweep until the context is cancelled
// or Stop is called
func (s *Store) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweep)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if expired := s.sweepExpired(); expired > 0 {
					s.logger.InfoContext(ctx, "expired sessions removed",
						slog.Int("count", expired),
					)
					if s.onExpire != nil {
						s.onExpire(expired)
					}
				}
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

// Stop terminates the sweeper goroutine
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// sweepExpired removes sessions idle past the TTL and returns how many
func (s *Store) sweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	expired := 0
	for id, rec := range s.sessions {
		if rec.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			expired++
		}
	}
	return expired
}
