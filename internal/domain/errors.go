package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidJob       = errors.New("invalid job")
	ErrInvalidTemplate  = errors.New("invalid template")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrProviderFailure  = errors.New("provider failure")
)
