// Package gokmeans implements a heterogeneous CPU/GPU K-means clustering
// engine built around a fixed-capacity device buffer cache, a single-device
// scheduler, and three-stage/fused iteration controllers.
package gokmeans

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes the failure modes the cache, scheduler, and
// iteration controllers can surface.
type ErrorKind string

const (
	// InvalidArgument covers unknown object ids, out-of-bounds or unaligned
	// ranges, unknown devices, and undersized pool budgets.
	InvalidArgument ErrorKind = "invalid argument"
	// ResourceExhausted means no unlocked slot was available for a
	// requested (oid, bid) different from the slot's current tenant.
	ResourceExhausted ErrorKind = "resource exhausted"
	// DeviceFailure wraps an underlying compute-runtime error: kernel
	// launch, enqueue, or map failure.
	DeviceFailure ErrorKind = "device failure"
	// TypeMismatch means the configured (point, label, mass) triple isn't
	// supported by the build.
	TypeMismatch ErrorKind = "type mismatch"
	// ConfigParse means the configuration file was malformed or missing a
	// required key.
	ConfigParse ErrorKind = "config parse"
)

// Error is the structured error type returned by this module's packages.
type Error struct {
	Op       string // operation that failed, e.g. "Cache.Get", "Scheduler.Run"
	Kind     ErrorKind
	DeviceID int // -1 if not applicable
	ObjectID int // -1 if not applicable
	BufferID int // -1 if not applicable
	Msg      string
	Inner    error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.DeviceID >= 0 {
		parts = append(parts, fmt.Sprintf("device=%d", e.DeviceID))
	}
	if e.ObjectID >= 0 {
		parts = append(parts, fmt.Sprintf("object=%d", e.ObjectID))
	}
	if e.BufferID >= 0 {
		parts = append(parts, fmt.Sprintf("buffer=%d", e.BufferID))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("gokmeans: %s (%s) [%s]", msg, e.Kind, joinParts(parts))
	}
	return fmt.Sprintf("gokmeans: %s (%s)", msg, e.Kind)
}

func joinParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}
	return false
}

// NewError builds a plain kind+message error, with no device/object/buffer
// context attached.
func NewError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, DeviceID: -1, ObjectID: -1, BufferID: -1, Msg: msg}
}

// NewObjectError reports a failure tied to a specific object id.
func NewObjectError(op string, oid int, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, DeviceID: -1, ObjectID: oid, BufferID: -1, Msg: msg}
}

// NewSlotError reports a failure tied to a specific device/object/buffer
// tenancy, e.g. a slot conflict surfaced as ResourceExhausted.
func NewSlotError(op string, did, oid, bid int, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, DeviceID: did, ObjectID: oid, BufferID: bid, Msg: msg}
}

// WrapError attaches operation context to an inner error, classifying it as
// DeviceFailure unless it is already a *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ge, ok := inner.(*Error); ok {
		return &Error{
			Op: op, Kind: ge.Kind, DeviceID: ge.DeviceID, ObjectID: ge.ObjectID,
			BufferID: ge.BufferID, Msg: ge.Msg, Inner: ge.Inner,
		}
	}
	return &Error{
		Op: op, Kind: DeviceFailure, DeviceID: -1, ObjectID: -1, BufferID: -1,
		Msg: inner.Error(), Inner: inner,
	}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}
