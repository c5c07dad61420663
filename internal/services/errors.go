package services

import "errors"

// Service-layer errors. The HTTP layer maps these onto API error codes.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrLotNotFound     = errors.New("lot index out of range")
	ErrTooManyLots     = errors.New("session lot limit reached")
	ErrInvalidSide     = errors.New("invalid intraday side")

	ErrInvalidPolicy = errors.New("invalid fee policy")
	ErrInvalidMode   = errors.New("invalid calculation mode")
)
