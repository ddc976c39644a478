package contracts

import "errors"

var (
	// ErrNotFound marks a recoverable "no data" outcome
	ErrNotFound = errors.New("not found")

	// ErrInsufficientData is returned when fewer than period+1 closes are available
	ErrInsufficientData = errors.New("insufficient data")

	// ErrValidation marks a write missing required identity fields
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited is the upstream rate-limit signal
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExhausted short-circuits calls once the daily quota is spent
	ErrQuotaExhausted = errors.New("daily quota exhausted")

	// ErrUnsupportedTimeframe is returned for an unknown timeframe tag
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

	// ErrProviderUnavailable is returned by a provider that is not configured
	ErrProviderUnavailable = errors.New("provider unavailable")
)
