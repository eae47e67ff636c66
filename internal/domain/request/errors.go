package request

import "errors"

var (
	ErrRequestNotFound   = errors.New("device request not found")
	ErrInvalidStatus     = errors.New("invalid request status")
	ErrInvariantViolated = errors.New("request invariant violated")
)
