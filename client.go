package opcda

import "github.com/wends155/opc-cli-sub000/types"

// Type aliases for convenience - re-export from types package.
type (
	TagValue         = types.TagValue
	WriteResult      = types.WriteResult
	Value            = types.Value
	Progress         = types.Progress
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
)

// Re-export value constructors for convenience.
var (
	ParseValue  = types.ParseValue
	StringValue = types.StringValue
	IntValue    = types.IntValue
	FloatValue  = types.FloatValue
	BoolValue   = types.BoolValue
	NewProgress = types.NewProgress
)

// Re-export sentinel errors for convenience.
var (
	ErrDriverInit       = types.ErrDriverInit
	ErrWorkerTerminated = types.ErrWorkerTerminated
	ErrWorkerShutDown   = types.ErrWorkerShutDown
	ErrTimeout          = types.ErrTimeout
)
