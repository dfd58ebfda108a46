// Package constants holds the compile-time sizing constants shared by the
// cache, scheduler, and iteration controllers.
package constants

// BufferSize is the fixed compile-time chunk size: every buffer id spans
// this many bytes of an object, and no single slot hosts more.
const BufferSize = 16 * 1024 * 1024

// DoubleBuffering is the fixed slot count per device. Slot assignment is
// bid mod DoubleBuffering.
const DoubleBuffering = 2

// MinPoolBudget is the minimum pool budget a device may register with:
// room for DoubleBuffering device buffers of BufferSize each.
const MinPoolBudget = DoubleBuffering * BufferSize

// InvalidObjectID is the reserved sentinel; real object ids are assigned
// densely starting at 1.
const InvalidObjectID = 0

// UnoccupiedTenancy marks a slot with no current (object_id, buffer_id)
// tenancy.
const UnoccupiedTenancy = -1
