package gokmeans

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Cache.AddDevice", InvalidArgument, "pool budget too small")

	if err.Op != "Cache.AddDevice" {
		t.Errorf("Expected Op=Cache.AddDevice, got %s", err.Op)
	}
	if err.Kind != InvalidArgument {
		t.Errorf("Expected Kind=InvalidArgument, got %s", err.Kind)
	}

	expected := "gokmeans: pool budget too small (invalid argument)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestObjectError(t *testing.T) {
	err := NewObjectError("Cache.Get", 7, InvalidArgument, "range out of bounds")

	if err.ObjectID != 7 {
		t.Errorf("Expected ObjectID=7, got %d", err.ObjectID)
	}
	if err.DeviceID != -1 || err.BufferID != -1 {
		t.Errorf("Expected unset device/buffer context, got device=%d buffer=%d", err.DeviceID, err.BufferID)
	}
}

func TestSlotError(t *testing.T) {
	err := NewSlotError("Cache.Get", 0, 3, 1, ResourceExhausted, "slot locked by a different tenancy")

	if err.DeviceID != 0 || err.ObjectID != 3 || err.BufferID != 1 {
		t.Errorf("Expected device=0 object=3 buffer=1, got device=%d object=%d buffer=%d",
			err.DeviceID, err.ObjectID, err.BufferID)
	}

	expected := "gokmeans: slot locked by a different tenancy (resource exhausted) [op=Cache.Get device=0 object=3 buffer=1]"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapErrorPreservesKind(t *testing.T) {
	inner := NewError("Scheduler.run", DeviceFailure, "enqueue failed")
	err := WrapError("Scheduler.Run", inner)

	if err.Kind != DeviceFailure {
		t.Errorf("Expected Kind=DeviceFailure, got %s", err.Kind)
	}
	if err.Op != "Scheduler.Run" {
		t.Errorf("Expected Op to be overwritten with Scheduler.Run, got %s", err.Op)
	}
}

func TestWrapErrorClassifiesPlainError(t *testing.T) {
	err := WrapError("Device.Enqueue", errors.New("boom"))

	if err.Kind != DeviceFailure {
		t.Errorf("Expected Kind=DeviceFailure for an unrecognized inner error, got %s", err.Kind)
	}
	if !errors.Is(err, err.Inner) {
		t.Error("Expected errors.Is to unwrap to the original inner error")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("noop", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestIsKind(t *testing.T) {
	err := NewError("Cache.Get", ResourceExhausted, "no unlocked slot")

	if !Is(err, ResourceExhausted) {
		t.Error("Is should return true for a matching kind")
	}
	if Is(err, ConfigParse) {
		t.Error("Is should return false for a non-matching kind")
	}
	if Is(nil, ResourceExhausted) {
		t.Error("Is should return false for a nil error")
	}
}

func TestErrorIsMatchesOnKindOnly(t *testing.T) {
	a := NewSlotError("Cache.Get", 0, 1, 0, ResourceExhausted, "first")
	b := NewSlotError("Cache.Get", 1, 9, 1, ResourceExhausted, "second")

	if !errors.Is(a, b) {
		t.Error("Two *Error values with the same Kind should satisfy errors.Is")
	}
}
