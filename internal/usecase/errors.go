package usecase

import "errors"

var (
	// ErrHistoryUnavailable is returned when no queryable journal backend is configured.
	ErrHistoryUnavailable = errors.New("signal history not configured")
	// ErrClassifierUnavailable wraps classifier failures on request paths that cannot degrade.
	ErrClassifierUnavailable = errors.New("sentiment classifier unavailable")
)
