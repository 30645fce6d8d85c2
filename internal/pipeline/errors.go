package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors. Handlers map kinds to HTTP responses and
// the system log records them per event, so failures stay isolated and
// replayable.
type Kind int

const (
	KindUnknown Kind = iota
	KindSchemaViolation
	KindOutOfRange
	KindMalformedTimestamp
	KindMissingBaseSignal
	KindInvalidPair
	KindDuplicateIgnored // informational, not a true failure
	KindTransientStore   // retryable, caller resubmits with the same id
)

func (k Kind) String() string {
	switch k {
	case KindSchemaViolation:
		return "schema_violation"
	case KindOutOfRange:
		return "out_of_range"
	case KindMalformedTimestamp:
		return "malformed_timestamp"
	case KindMissingBaseSignal:
		return "missing_base_signal"
	case KindInvalidPair:
		return "invalid_pair"
	case KindDuplicateIgnored:
		return "duplicate_ignored"
	case KindTransientStore:
		return "transient_store_failure"
	default:
		return "unknown"
	}
}

// Error is a classified pipeline error, optionally tied to a field or event.
type Error struct {
	Kind    Kind
	Field   string // offending field for validation errors
	EventID string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	case e.EventID != "":
		return fmt.Sprintf("%s: event %s: %s", e.Kind, e.EventID, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a field-level validation error.
func E(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Field: field, Msg: msg}
}

// EventErr builds an event-level error.
func EventErr(kind Kind, eventID, msg string) *Error {
	return &Error{Kind: kind, EventID: eventID, Msg: msg}
}

// WrapStore wraps a storage failure as retryable.
func WrapStore(eventID string, err error) *Error {
	return &Error{Kind: KindTransientStore, EventID: eventID, Msg: "store failure", Err: err}
}

// KindOf extracts the Kind from an error chain, or KindUnknown.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the caller should retry with the same event id.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientStore
}
