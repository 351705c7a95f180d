package errors

import "errors"

var (
	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")
	ErrInvalidTTL       = errors.New("invalid ttl")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidRetries   = errors.New("invalid retry budget")
)
