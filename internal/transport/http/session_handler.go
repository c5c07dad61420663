package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "calqtrade/internal/errors"
	"calqtrade/internal/exporter"
	custommw "calqtrade/internal/middleware"
	"calqtrade/internal/services"
	api "calqtrade/pkg/contracts/api/v1"
)

// SessionHandler serves the stateful session endpoints.
type SessionHandler struct {
	service      *services.SessionService
	exporter     *exporter.Exporter
	validation   *custommw.ValidationMiddleware
	params       *custommw.ParamValidator
	maxLots      int
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewSessionHandler creates a session handler. maxLots caps the {index}
// route parameter; it matches the store's per-session lot limit.
func NewSessionHandler(service *services.SessionService, exp *exporter.Exporter, validation *custommw.ValidationMiddleware, maxLots int, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SessionHandler {
	return &SessionHandler{
		service:      service,
		exporter:     exp,
		validation:   validation,
		params:       custommw.NewParamValidator(logger, errorHandler),
		maxLots:      maxLots,
		logger:       logger.With(slog.String("component", "session_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the /api/sessions routes.
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.Create)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)

		r.Post("/purchases", h.AddPurchase)
		r.Delete("/purchases", h.ClearPurchases)
		r.Delete("/purchases/{index}", h.RemovePurchase)

		r.Post("/intraday/{side}", h.AddIntraday)
		r.Delete("/intraday/{side}/{index}", h.RemoveIntraday)
		r.Get("/intraday", h.Intraday)

		r.Get("/position", h.Position)
		r.Get("/position/export", h.ExportPosition)
	})

	return r
}

// SessionCtx validates the session ID parameter.
func (h *SessionHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "sessionID") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session_id", "session ID is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Create handles POST /api/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	resp := h.service.Create(r.Context())

	h.logger.InfoContext(r.Context(), "session created",
		slog.String("request_id", custommw.GetReqID(r.Context())),
		slog.String("session_id", resp.Session.ID))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// Get handles GET /api/sessions/{sessionID}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// Delete handles DELETE /api/sessions/{sessionID}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.NoContent(w, r)
}

// AddPurchase handles POST /api/sessions/{sessionID}/purchases.
func (h *SessionHandler) AddPurchase(w http.ResponseWriter, r *http.Request) {
	var req api.AddLotRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.AddPurchase(r.Context(), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// RemovePurchase handles DELETE /api/sessions/{sessionID}/purchases/{index}.
func (h *SessionHandler) RemovePurchase(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lotIndex(w, r)
	if !ok {
		return
	}

	resp, err := h.service.RemovePurchase(r.Context(), chi.URLParam(r, "sessionID"), index)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// ClearPurchases handles DELETE /api/sessions/{sessionID}/purchases.
func (h *SessionHandler) ClearPurchases(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ClearPurchases(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// AddIntraday handles POST /api/sessions/{sessionID}/intraday/{side}.
func (h *SessionHandler) AddIntraday(w http.ResponseWriter, r *http.Request) {
	var req api.AddLotRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.AddIntraday(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "side"), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// RemoveIntraday handles DELETE /api/sessions/{sessionID}/intraday/{side}/{index}.
func (h *SessionHandler) RemoveIntraday(w http.ResponseWriter, r *http.Request) {
	index, ok := h.lotIndex(w, r)
	if !ok {
		return
	}

	resp, err := h.service.RemoveIntraday(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "side"), index)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// Intraday handles GET /api/sessions/{sessionID}/intraday?mode=matched|full.
func (h *SessionHandler) Intraday(w http.ResponseWriter, r *http.Request) {
	mode, ok := h.params.ValidateEnum(w, r, "mode", []string{"matched", "full"}, "matched")
	if !ok {
		return
	}

	resp, err := h.service.Intraday(r.Context(), chi.URLParam(r, "sessionID"), mode == "matched")
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// Position handles GET /api/sessions/{sessionID}/position?policy=....
func (h *SessionHandler) Position(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Position(r.Context(), chi.URLParam(r, "sessionID"), r.URL.Query().Get("policy"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, resp)
}

// ExportPosition handles GET /api/sessions/{sessionID}/position/export?format=csv|xlsx.
func (h *SessionHandler) ExportPosition(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := chi.URLParam(r, "sessionID")

	format, ok := h.params.ValidateEnum(w, r, "format", []string{"csv", "xlsx"}, "csv")
	if !ok {
		return
	}

	report, err := h.service.Position(r.Context(), sessionID, r.URL.Query().Get("policy"))
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	// Build the file in memory first so export failures can still yield
	// a problem response instead of a truncated download.
	var buf bytes.Buffer
	switch format {
	case "xlsx":
		err = h.exporter.PositionXLSX(&buf, report)
	default:
		err = h.exporter.PositionCSV(&buf, report)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "position export failed",
			slog.String("request_id", custommw.GetReqID(r.Context())),
			slog.String("session_id", sessionID),
			slog.String("format", format),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.ExportError(format, err))
		return
	}

	custommw.RecordExportOutcome(r.Context(), format, time.Since(start))

	w.Header().Set("Content-Type", exporter.ContentType(format))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", exporter.FileName(sessionID, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// lotIndex parses and bounds the {index} route parameter. No session can
// hold more than maxLots lots, so anything past that is rejected here.
func (h *SessionHandler) lotIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	return h.params.ValidateRouteInt(w, r, "index", 0, h.maxLots-1)
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
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
