package wheel

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can pick a response without
// parsing messages.
type ErrorKind string

const (
	KindInvalidRateTotal      ErrorKind = "invalid_rate_total"
	KindEmptySliceSet         ErrorKind = "empty_slice_set"
	KindInsufficientSlices    ErrorKind = "insufficient_slices"
	KindUnselectableSet       ErrorKind = "unselectable_set"
	KindCorruptPersistedState ErrorKind = "corrupt_persisted_state"
	KindInvalidIndex          ErrorKind = "invalid_index"
	KindInvalidSlice          ErrorKind = "invalid_slice"
)

// Error is the structured error returned by every operation in this package.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = fmt.Sprintf("wheel: %s: %s", e.Op, msg)
	} else {
		msg = "wheel: " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrEmptySliceSet)
// works regardless of Op or Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidRateTotal      = &Error{Kind: KindInvalidRateTotal}
	ErrEmptySliceSet         = &Error{Kind: KindEmptySliceSet}
	ErrInsufficientSlices    = &Error{Kind: KindInsufficientSlices}
	ErrUnselectableSet       = &Error{Kind: KindUnselectableSet}
	ErrCorruptPersistedState = &Error{Kind: KindCorruptPersistedState}
	ErrInvalidIndex          = &Error{Kind: KindInvalidIndex}
	ErrInvalidSlice          = &Error{Kind: KindInvalidSlice}
)

func newError(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a wheel error.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// IsInvalidRateTotal reports whether a commit was rejected because the rates
// did not total 100.
func IsInvalidRateTotal(err error) bool { return KindOf(err) == KindInvalidRateTotal }

// IsEmptySliceSet reports whether the set has no slices.
func IsEmptySliceSet(err error) bool { return KindOf(err) == KindEmptySliceSet }

// IsUnselectable reports whether no slice had positive weight.
func IsUnselectable(err error) bool { return KindOf(err) == KindUnselectableSet }

// IsCorrupt reports whether persisted state failed re-validation.
func IsCorrupt(err error) bool { return KindOf(err) == KindCorruptPersistedState }

// IsInputError reports whether the caller can correct the failure by changing
// its input.
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindInvalidRateTotal, KindInvalidIndex, KindInvalidSlice:
		return true
	default:
		return false
	}
}
