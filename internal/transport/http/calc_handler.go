package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "calqtrade/internal/errors"
	custommw "calqtrade/internal/middleware"
	"calqtrade/internal/services"
	api "calqtrade/pkg/contracts/api/v1"
)

// CalcHandler serves the stateless calculation endpoints.
type CalcHandler struct {
	service      *services.CalcService
	validation   *custommw.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewCalcHandler creates a calculation handler.
func NewCalcHandler(service *services.CalcService, validation *custommw.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CalcHandler {
	return &CalcHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "calc_handler")),
		errorHandler: errorHandler,
	}
}

// TradeRoutes returns the /api/trades routes.
func (h *CalcHandler) TradeRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/calculate", h.CalculateTrade)
	return r
}

// BreakEvenRoutes returns the /api/breakeven routes.
func (h *CalcHandler) BreakEvenRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/", h.BreakEven)
	r.Post("/custom", h.CustomTarget)
	return r
}

// PolicyRoutes returns the /api/policies routes.
func (h *CalcHandler) PolicyRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.Policies)
	return r
}

// CalculateTrade handles POST /api/trades/calculate.
func (h *CalcHandler) CalculateTrade(w http.ResponseWriter, r *http.Request) {
	var req api.CalculateTradeRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.CalculateTrade(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "trade calculation failed",
			slog.String("request_id", custommw.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	render.JSON(w, r, resp)
}

// BreakEven handles POST /api/breakeven.
func (h *CalcHandler) BreakEven(w http.ResponseWriter, r *http.Request) {
	var req api.BreakEvenRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.BreakEven(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "break-even calculation failed",
			slog.String("request_id", custommw.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	render.JSON(w, r, resp)
}

// CustomTarget handles POST /api/breakeven/custom.
func (h *CalcHandler) CustomTarget(w http.ResponseWriter, r *http.Request) {
	var req api.CustomTargetRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.CustomTarget(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "custom target calculation failed",
			slog.String("request_id", custommw.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	render.JSON(w, r, resp)
}

// Policies handles GET /api/policies.
func (h *CalcHandler) Policies(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Policies(r.Context()))
}

// decode reads the JSON body into dst and validates it, writing a
// problem response and returning false on failure.
func (h *CalcHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := h.validation.ValidateStruct(dst); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}
