package gokmeans

import "github.com/lutzcle/gokmeans/internal/constants"

// Re-exported sizing constants for consumers of the public API.
const (
	BufferSize        = constants.BufferSize
	DoubleBuffering    = constants.DoubleBuffering
	MinPoolBudget      = constants.MinPoolBudget
	InvalidObjectID    = constants.InvalidObjectID
	UnoccupiedTenancy  = constants.UnoccupiedTenancy
)
