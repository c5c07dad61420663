package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "calqtrade/internal/errors"
	"calqtrade/internal/fees"
)

// ValidationMiddleware checks request bodies against struct tags before
// handlers see them
type ValidationMiddleware struct {
	validator    *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware builds the validator with the domain tag rules
// registered
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	v := validator.New()

	v.RegisterValidation("feepolicy", isFeePolicy)
	v.RegisterValidation("calcmode", isCalcMode)
	v.RegisterValidation("exportformat", isExportFormat)

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ValidationMiddleware{
		validator:    v,
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  1 * 1024 * 1024, // 1MB is ample for lot lists
	}
}

// ValidateRequest checks body size and JSON well-formedness before handlers run
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxBodySize {
			m.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
				http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE",
				"Request body exceeds maximum allowed size",
				map[string]interface{}{
					"max_size": m.maxBodySize,
					"size":     r.ContentLength,
				},
			))
			return
		}

		if r.Body != nil && r.ContentLength > 0 {
			body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize))
			if err != nil {
				m.logger.ErrorContext(r.Context(), "failed to read request body",
					slog.String("error", err.Error()),
					slog.String("request_id", GetReqID(r.Context())),
				)
				m.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
				return
			}

			// Handlers decode the body themselves, so put it back.
			r.Body = io.NopCloser(bytes.NewReader(body))

			if len(body) > 0 && !json.Valid(body) {
				m.errorHandler.HandleError(w, r, apierrors.New(
					http.StatusBadRequest,
					"INVALID_JSON",
					"Request body contains invalid JSON",
				))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateStruct runs tag validation on a decoded request and converts
// any failures into a field-level validation error.
func (m *ValidationMiddleware) ValidateStruct(v interface{}) error {
	err := m.validator.Struct(v)
	if err == nil {
		return nil
	}

	fieldErrs := err.(validator.ValidationErrors)
	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: m.formatValidationError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// ContentTypeValidator rejects write requests whose Content-Type is not
// one of the accepted types
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			// Body-less POSTs (session creation) need no content type.
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get("Content-Type")
			if got == "" {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, apierrors.New(
					http.StatusBadRequest,
					"MISSING_CONTENT_TYPE",
					"Content-Type header is required",
				))
				return
			}

			var valid bool
			for _, want := range contentTypes {
				if strings.HasPrefix(got, want) {
					valid = true
					break
				}
			}

			if !valid {
				render.Status(r, http.StatusUnsupportedMediaType)
				render.JSON(w, r, apierrors.NewWithDetails(
					http.StatusUnsupportedMediaType,
					"UNSUPPORTED_MEDIA_TYPE",
					"Unsupported content type",
					map[string]interface{}{
						"content_type": got,
						"allowed":      contentTypes,
					},
				))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// formatValidationError renders one failed constraint as a human message.
func (m *ValidationMiddleware) formatValidationError(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "uuid":
		return field + " must be a valid UUID"
	case "feepolicy":
		return field + " must be a valid fee policy"
	case "calcmode":
		return field + " must be a valid calculation mode"
	case "exportformat":
		return field + " must be csv or xlsx"
	case "dive":
		return field + " contains invalid entries"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// Custom validators

// isFeePolicy accepts the fee policy identifiers the engine understands.
// Empty strings pass so callers can combine it with omitempty and defaults.
func isFeePolicy(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := fees.ParseFeePolicy(value)
	return err == nil
}

// isCalcMode accepts the calculation mode identifiers the engine understands
func isCalcMode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := fees.ParseCalcMode(value)
	return err == nil
}

// isExportFormat accepts the supported export formats
func isExportFormat(fl validator.FieldLevel) bool {
	value := strings.ToLower(fl.Field().String())
	return value == "" || value == "csv" || value == "xlsx"
}

// ParamValidator parses and bounds route and query string parameters
type ParamValidator struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewParamValidator builds a parameter validator
func NewParamValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ParamValidator {
	return &ParamValidator{
		logger:       logger.With(slog.String("component", "param_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateRouteInt reads an integer route parameter, enforcing bounds.
// A malformed or out-of-range value writes the error response and
// returns false.
func (v *ParamValidator) ValidateRouteInt(w http.ResponseWriter, r *http.Request, param string, min, max int) (int, bool) {
	raw := chi.URLParam(r, param)

	n, err := strconv.Atoi(raw)
	if err != nil {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param, param+" must be a valid integer"))
		return 0, false
	}
	if n < min || n > max {
		v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param,
			fmt.Sprintf("%s must be between %d and %d", param, min, max)))
		return 0, false
	}

	return n, true
}

// ValidateEnum reads a query parameter that must match one of the
// allowed values. Same contract as ValidateRouteInt, except a missing
// parameter yields defaultValue.
func (v *ParamValidator) ValidateEnum(w http.ResponseWriter, r *http.Request, param string, allowed []string, defaultValue string) (string, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return defaultValue, true
	}

	for _, candidate := range allowed {
		if raw == candidate {
			return raw, true
		}
	}

	v.errorHandler.HandleError(w, r, apierrors.ErrValidation(param,
		fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}
