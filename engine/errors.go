package engine

import "errors"

// Cycle errors. All of them are local to one cycle except ErrEmergencyStop,
// which the host loop treats as fatal until someone clears the halt.
var (
	ErrDataFetch        = errors.New("data fetch failed")
	ErrInsufficientData = errors.New("insufficient data")
	ErrOrderExecution   = errors.New("order execution failed")
	ErrEmergencyStop    = errors.New("emergency stop")

	// ErrNoSnapshot is returned by a StateStore that has nothing saved.
	ErrNoSnapshot = errors.New("no snapshot")
)
