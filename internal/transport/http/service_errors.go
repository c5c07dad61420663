package http

import (
	"errors"
	"net/http"

	apierrors "calqtrade/internal/errors"
	"calqtrade/internal/fees"
	"calqtrade/internal/services"
)

// mapServiceError translates service-layer sentinels into API errors so
// the RFC 7807 handler emits the right status and error code. Unknown
// errors pass through and become 500s downstream.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return apierrors.New(http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrLotNotFound):
		return apierrors.New(http.StatusUnprocessableEntity, "LOT_NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrTooManyLots):
		return apierrors.New(http.StatusUnprocessableEntity, "TOO_MANY_LOTS", err.Error())
	case errors.Is(err, services.ErrInvalidSide):
		return apierrors.New(http.StatusBadRequest, "INVALID_SIDE", err.Error())
	case errors.Is(err, services.ErrInvalidPolicy):
		return apierrors.New(http.StatusBadRequest, "INVALID_POLICY", err.Error())
	case errors.Is(err, services.ErrInvalidMode):
		return apierrors.New(http.StatusBadRequest, "INVALID_MODE", err.Error())
	case errors.Is(err, fees.ErrInvalidPrice),
		errors.Is(err, fees.ErrInvalidSellPrice),
		errors.Is(err, fees.ErrInvalidQuantity),
		errors.Is(err, fees.ErrInvalidTarget):
		return apierrors.New(http.StatusUnprocessableEntity, "INVALID_LOT", err.Error())
	case errors.Is(err, fees.ErrPolicyNotAllowed):
		return apierrors.New(http.StatusUnprocessableEntity, "POLICY_NOT_APPLICABLE", err.Error())
	default:
		return err
	}
}
