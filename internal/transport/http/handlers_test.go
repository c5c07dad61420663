package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"calqtrade/internal/config"
	apierrors "calqtrade/internal/errors"
	"calqtrade/internal/exporter"
	"calqtrade/internal/infrastructure"
	custommw "calqtrade/internal/middleware"
	"calqtrade/internal/services"
	"calqtrade/internal/sessions"
	api "calqtrade/pkg/contracts/api/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFeesConfig() config.FeesConfig {
	return config.FeesConfig{
		FeePct:        1.12,
		STLPct:        0.30,
		DefaultPolicy: "same_day_stl_only",
		DefaultMode:   "average_stl",
	}
}

// newTestRouter wires the API route tree the way the application does,
// without the observability middleware.
func newTestRouter(t *testing.T) (chi.Router, *services.SessionService) {
	t.Helper()
	logger := testLogger()

	store := sessions.NewStore(config.SessionsConfig{
		TTL:           time.Hour,
		SweepInterval: time.Minute,
		MaxLots:       500,
	}, logger)
	t.Cleanup(store.Stop)

	calcService, err := services.NewCalcService(testFeesConfig(), logger, nil)
	require.NoError(t, err)
	sessionService := services.NewSessionService(store, calcService, nil, logger, nil)

	meter := noop.NewMeterProvider().Meter("test")
	collector, err := infrastructure.NewSystemMetricsCollector(meter, time.Minute)
	require.NoError(t, err)
	healthService := services.NewHealthService(store, collector, logger)

	errorHandler := apierrors.NewErrorHandler(logger, false)
	validation := custommw.NewValidationMiddleware(logger, errorHandler)

	calcHandler := NewCalcHandler(calcService, validation, logger, errorHandler)
	sessionHandler := NewSessionHandler(sessionService, exporter.New(logger), validation, 500, logger, errorHandler)
	healthHandler := NewHealthHandler(healthService, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Mount("/trades", calcHandler.TradeRoutes())
		r.Mount("/breakeven", calcHandler.BreakEvenRoutes())
		r.Mount("/policies", calcHandler.PolicyRoutes())
		r.Mount("/sessions", sessionHandler.Routes())
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
	})
	r.NotFound(errorHandler.NotFound)

	return r, sessionService
}

func doJSON(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCalculateTrade(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/trades/calculate", api.CalculateTradeRequest{
		BuyPrice: 100,
		Quantity: 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.CalculateTradeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "same_day_stl_only", resp.Policy)
	assert.InDelta(t, 101.12, resp.Result.AveragePrice, 1e-6)
	assert.InDelta(t, 1120.0, resp.Result.BuyFee, 1e-6)
}

func TestCalculateTrade_ValidationError(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/trades/calculate", map[string]interface{}{
		"quantity": 1000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "buy_price")
}

func TestCalculateTrade_InvalidPolicy(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/trades/calculate", map[string]interface{}{
		"buy_price": 100,
		"quantity":  1000,
		"policy":    "nonsense",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBreakEven(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/breakeven", api.BreakEvenRequest{
		BuyPrice: 100,
		Quantity: 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.BreakEvenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 101.12/0.997, resp.Analysis.BreakEvenSellPrice, 1e-6)
	assert.NotEmpty(t, resp.Targets)
}

func TestCustomTarget(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/breakeven/custom", api.CustomTargetRequest{
		BuyPrice:  100,
		Quantity:  1000,
		TargetPct: 5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.CustomTargetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 5.0, resp.Target.TargetPct, 1e-9)
}

func TestPolicies(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/policies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.PoliciesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Policies, 4)
	assert.Len(t, resp.Modes, 3)
	assert.Equal(t, "same_day_stl_only", resp.DefaultPolicy)
}

func TestSessionLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Session.ID
	require.NotEmpty(t, id)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionPosition(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Session.ID

	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/purchases", api.AddLotRequest{
		Price: 100, Quantity: 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/purchases", api.AddLotRequest{
		Price: 103, Quantity: 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/position", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var position api.PositionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &position))
	assert.InDelta(t, 306000.0, position.Summary.TotalBuyValue, 1e-6)
	assert.InDelta(t, 3427.2, position.Summary.TotalBuyFee, 1e-6)
	assert.InDelta(t, 103.1424, position.Summary.OverallAveragePrice, 1e-6)
	assert.Len(t, position.Scenarios, 9)
}

func TestSessionPurchaseValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	var created api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Session.ID

	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/purchases", map[string]interface{}{
		"price": -1, "quantity": 100,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+id+"/purchases/notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Indexes past the lot cap are rejected before the store is asked.
	rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+id+"/purchases/100000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+id+"/purchases/5", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSessionIntraday(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	var created api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Session.ID

	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/intraday/buy", api.AddLotRequest{
		Price: 100, Quantity: 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/intraday/sell", api.AddLotRequest{
		Price: 102, Quantity: 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/intraday", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var matched api.IntradayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matched))
	assert.True(t, matched.Matched)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/intraday?mode=full", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var full api.IntradayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.False(t, full.Matched)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/intraday?mode=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/intraday/sideways", api.AddLotRequest{
		Price: 100, Quantity: 1000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportPosition_CSV(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	var created api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Session.ID

	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/purchases", api.AddLotRequest{
		Price: 100, Quantity: 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/position/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
}

func TestExportPosition_XLSX(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	var created api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Session.ID

	rec = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/purchases", api.AddLotRequest{
		Price: 100, Quantity: 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/position/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
}

func TestExportPosition_BadFormat(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/sessions", nil)
	var created api.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Session.ID

	rec = doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/position/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndVersion(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = doJSON(t, r, http.MethodGet, "/api/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")

	rec = doJSON(t, r, http.MethodGet, "/api/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")

	rec = doJSON(t, r, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "version")
}

func TestUnknownRouteIsProblemJSON(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/not-found")
}
