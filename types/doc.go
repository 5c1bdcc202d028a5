// Package types provides shared types and error definitions for the opcda library.
//
// This is a leaf package with zero opcda imports to prevent import cycles.
// All packages in the module can safely import this package.
//
// # Types
//
// TagValue is the per-tag result of a batched read; WriteResult is the outcome
// of a single-tag write. Value is the typed union accepted by write operations:
//
//	v := types.ParseValue("42")      // Int32
//	v = types.ParseValue("3.14")     // Float64
//	v = types.ParseValue("true")     // Bool
//	v = types.ParseValue("running")  // String
//
// Progress is the shared browse sink: the dispatcher worker appends discovered
// tags as it finds them, and any goroutine may take a snapshot without blocking
// the worker.
//
// # Errors
//
// Driver faults carry a numeric fault code in a FaultError. Connection-class
// codes (remote endpoint unreachable, terminated, or denied at transport) are
// recognized by IsConnectionFault and trigger a single reconnect in the engine.
// Known fault codes map to actionable hints via FaultError.Hint.
//
// Sentinel errors cover the infrastructure failure modes:
//
//   - ErrDriverInit: the worker failed its one-time environment initialization
//   - ErrWorkerTerminated: submit attempted after the worker goroutine exited
//   - ErrWorkerShutDown: the worker exited while a request was in flight
//   - ErrTimeout: a caller-side wait exceeded its deadline
//   - ErrNotSupported: the server's protocol generation lacks the capability
package types
