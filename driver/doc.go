// Package driver defines the capability contract between the opcda engine and
// a concrete OPC DA backend.
//
// A backend provides a Connector that enumerates servers and opens sessions.
// Everything past Connect is expressed through the Server and Group
// interfaces, so the engine never touches transport types directly. The real
// COM/DCOM binding lives in driver/dcom; driver/sim provides a pure-Go
// in-memory backend for tests, examples, and development off Windows.
//
// # Thread affinity
//
// DCOM sessions are apartment-affine: every call against a Server or Group
// must come from the thread that created it. The engine guarantees this by
// funneling all driver calls through a single locked worker goroutine.
// Backends with per-thread setup requirements implement the optional
// ThreadInitializer interface; the worker runs InitThread exactly once before
// its first driver call and runs the returned release function on shutdown.
//
// # Capability generations
//
// OPC DA servers come in three protocol generations (1.0, 2.0, 3.0), each
// exposing a different interface subset. Backends surface an absent capability
// by returning an error wrapping types.ErrNotSupported; the engine treats that
// as a clean fallback signal, never a hard failure. The flat-enumeration probe
// in the browse engine is the main consumer: servers that support flat
// browsing of a hierarchical namespace answer it, everyone else falls back to
// the recursive walk.
package driver
