// Package enginerr reifies spec §7's error taxonomy as sentinel errors so
// call sites can classify outcomes with errors.Is instead of string
// matching, in the style of the teacher's core/errs.go.
package enginerr

import "errors"

var (
	// ErrTransient marks a retry-next-cycle outcome: broker RPC timeout,
	// empty candle fetch, failed tick.
	ErrTransient = errors.New("transient error")

	// ErrData marks a skip-cycle outcome: indicator precondition unmet,
	// candle validation failure.
	ErrData = errors.New("data error")

	// ErrConfiguration marks a fatal startup error: missing credentials,
	// unparseable config, missing schema.
	ErrConfiguration = errors.New("configuration error")
)

// RejectReason is a policy-reject outcome (spec §7): a normal, non-error
// result that carries no log-warning, only a human-readable reason for the
// cycle's status line.
type RejectReason string

const (
	RejectNone                 RejectReason = ""
	RejectLowConfidence        RejectReason = "confidence below threshold"
	RejectTrendConflict        RejectReason = "trend conflict"
	RejectATRExtreme           RejectReason = "ATR extreme"
	RejectSpreadTooWide        RejectReason = "spread too wide"
	RejectConcurrencySaturated RejectReason = "max concurrent positions reached"
	RejectCircuitBreakerHalted RejectReason = "circuit breaker halted"
	RejectSessionClosed        RejectReason = "session closed"
	RejectInvalidLotSize       RejectReason = "invalid lot size"
)
