// Package coreerrors defines the error-kind taxonomy shared by every
// component, so that transport layers and fallback logic can branch on
// Kind instead of matching error strings.
package coreerrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a CoreError for retry/propagation decisions. Kinds are
// names, not Go types — callers switch on Kind, not on concrete structs.
type Kind string

const (
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindStale                 Kind = "stale"
	KindInsufficientLiquidity Kind = "insufficient_liquidity"
	KindPriceImpactTooHigh    Kind = "price_impact_too_high"
	KindNoProfitableRoute     Kind = "no_profitable_route"
	KindInvalidSignature      Kind = "invalid_signature"
	KindExpiredDeadline       Kind = "expired_deadline"
	KindNonceConflict         Kind = "nonce_conflict"
	KindMEVThreatCritical     Kind = "mev_threat_critical"
	KindRelayUnavailable      Kind = "relay_unavailable"
	KindBackendUnavailable    Kind = "backend_unavailable"
	KindKVUnavailable         Kind = "kv_unavailable"
	KindExecutionReverted     Kind = "execution_reverted"
	KindTransactionTimedOut   Kind = "transaction_timed_out"
	KindLockHeld          Kind = "lock_held"
	KindInternal          Kind = "internal"
)

// transient marks kinds that are safe to retry with backoff; the
// rate-limiter and cache additionally fail open on these.
var transient = map[Kind]bool{
	KindRelayUnavailable:   true,
	KindBackendUnavailable: true,
	KindKVUnavailable:      true,
}

// terminal marks kinds that represent a terminal Execution outcome and
// should not be retried within the same attempt.
var terminal = map[Kind]bool{
	KindExecutionReverted:   true,
	KindTransactionTimedOut: true,
}

// CoreError is the error type every component-facing API returns. The
// external HTTP surface serializes it as {kind, message, request_id}.
type CoreError struct {
	Kind      Kind
	Message   string
	RequestID string
	Err       error
	At        time.Time
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Err }

// Is treats two CoreErrors as equal when their Kind matches, so callers can
// use errors.Is(err, &CoreError{Kind: KindNotFound}) without a sentinel.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New builds a CoreError of the given kind with a plain message.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap builds a CoreError of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Err: cause}
}

// WithRequestID attaches a request id for tracing and returns the receiver.
func (e *CoreError) WithRequestID(id string) *CoreError {
	e.RequestID = id
	return e
}

// KindOf extracts the Kind of err if it is, or wraps, a CoreError.
func KindOf(err error) (Kind, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}

// IsTransient reports whether err is a kind that should be retried with
// backoff (relay/backend/KV unavailability).
func IsTransient(err error) bool {
	kind, ok := KindOf(err)
	return ok && transient[kind]
}

// IsTerminal reports whether err represents a terminal Execution status.
func IsTerminal(err error) bool {
	kind, ok := KindOf(err)
	return ok && terminal[kind]
}
