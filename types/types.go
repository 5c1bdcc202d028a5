package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TagValue is the result of reading a single tag.
//
// Read operations return exactly one TagValue per requested tag ID, in request
// order, regardless of per-item success. A tag that the server rejected at
// registration time, or whose read failed, carries Value "Error" and a Quality
// string embedding the fault reason.
type TagValue struct {
	// TagID is the fully qualified tag identifier (e.g. "Channel1.Device1.Tag1").
	TagID string

	// Value is the current value rendered as a display string.
	Value string

	// Quality is the decoded quality indicator ("Good", "Bad", "Uncertain"),
	// or "Bad — <reason>" for per-item failures.
	Quality string

	// Timestamp is the server-reported timestamp of the last value change,
	// or empty if the item was never read.
	Timestamp string
}

// WriteResult is the outcome of a single-tag write.
type WriteResult struct {
	// TagID is the tag that was written to.
	TagID string

	// Success reports whether the server accepted the write.
	Success bool

	// Error holds the failure reason when Success is false, empty otherwise.
	Error string
}

// ValueKind discriminates the typed variants of Value.
type ValueKind int

// Value kinds, mirroring the wire types a DA server accepts for writes.
const (
	KindString ValueKind = iota
	KindInt32
	KindFloat64
	KindBool
)

// String returns the kind name for logging.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt32:
		return "int32"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	}

	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is a typed process value for write operations.
//
// Construct with one of the typed constructors or with ParseValue.
// The zero Value is an empty string.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int32
	Float float64
	Bool  bool
}

// StringValue returns a Value holding a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntValue returns a Value holding a 32-bit integer.
func IntValue(i int32) Value { return Value{Kind: KindInt32, Int: i} }

// FloatValue returns a Value holding a 64-bit float.
func FloatValue(f float64) Value { return Value{Kind: KindFloat64, Float: f} }

// BoolValue returns a Value holding a boolean.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// ParseValue coerces a user-supplied string into a typed Value.
//
// Coercion order: integer, then float, then boolean ("true"/"1", "false"/"0",
// case-insensitive), defaulting to string.
//
// Parameters:
//   - s: The raw input string
//
// Returns:
//   - Value: The coerced typed value
func ParseValue(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return IntValue(int32(i))
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f)
	}
	switch strings.ToLower(s) {
	case "true", "1":
		return BoolValue(true)
	case "false", "0":
		return BoolValue(false)
	}

	return StringValue(s)
}

// String renders the value the way read results display it: floats with two
// decimals, strings quoted, booleans as "true"/"false".
func (v Value) String() string {
	switch v.Kind {
	case KindInt32:
		return strconv.FormatInt(int64(v.Int), 10)
	case KindFloat64:
		return strconv.FormatFloat(v.Float, 'f', 2, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return strconv.Quote(v.Str)
	}
}

// Quality is the raw per-value quality word reported by a server.
//
// The top two bits define the coarse state; the remainder is a vendor
// sub-status.
type Quality uint16

// Coarse quality states (top two bits of the quality word).
const (
	QualityBad       Quality = 0x00
	QualityUncertain Quality = 0x40
	QualityGood      Quality = 0xC0
)

// String decodes the coarse quality state.
func (q Quality) String() string {
	switch q & 0xC0 {
	case QualityGood:
		return "Good"
	case QualityBad:
		return "Bad"
	case QualityUncertain:
		return "Uncertain"
	}

	return fmt.Sprintf("Unknown(0x%04X)", uint16(q))
}

// Sentinel errors for infrastructure failure scenarios.
var (
	// ErrDriverInit indicates the dispatcher worker failed its one-time
	// environment initialization and the client could not be constructed.
	ErrDriverInit = errors.New("opcda: driver init failed")

	// ErrWorkerTerminated indicates a submission was attempted after the
	// dispatcher worker goroutine had already exited.
	ErrWorkerTerminated = errors.New("opcda: worker terminated")

	// ErrWorkerShutDown indicates the dispatcher worker exited while the
	// caller's request was in flight; no reply will ever arrive.
	ErrWorkerShutDown = errors.New("opcda: worker shut down during request")

	// ErrTimeout indicates a caller-side wait exceeded its deadline.
	// For browse operations a timeout with a non-empty progress sink degrades
	// to a partial success instead.
	ErrTimeout = errors.New("opcda: operation timed out")

	// ErrNotSupported indicates the server's protocol generation does not
	// expose the requested capability.
	ErrNotSupported = errors.New("opcda: not supported by this server")
)

// Connection-class fault codes: remote endpoint unreachable, terminated, or
// denied at the transport layer. An operation failing with one of these evicts
// the cached session and retries exactly once on a fresh connection.
const (
	FaultRPCUnavailable      uint32 = 0x800706BA // RPC server unavailable
	FaultRPCCallFailed       uint32 = 0x800706BE // remote procedure call failed
	FaultRPCCallFailedDNE    uint32 = 0x800706BF // call failed and did not execute
	FaultServerExecFailed    uint32 = 0x80080005 // server process failed to start
	FaultAccessDenied        uint32 = 0x80070005
	FaultClassNotRegistered  uint32 = 0x80040154
	FaultMarshalingError     uint32 = 0x800706F4
	FaultInvalidPointer      uint32 = 0x80004003
	FaultLicenseRestriction  uint32 = 0x80040112
	FaultItemBadRights       uint32 = 0xC0040004
	FaultItemBadType         uint32 = 0xC0040006
	FaultItemUnknownID       uint32 = 0xC0040007
	FaultItemInvalidIDSyntax uint32 = 0xC0040008
)

// faultHints maps known fault codes to actionable user-facing hints.
var faultHints = map[uint32]string{
	FaultLicenseRestriction:  "Server license does not permit OPC client connections",
	FaultServerExecFailed:    "Server process failed to start — check if it is installed and running",
	FaultAccessDenied:        "Access denied — DCOM launch/activation permissions not configured for this user",
	FaultRPCUnavailable:      "RPC server unavailable — the target host may be offline or blocking RPC",
	FaultMarshalingError:     "COM marshalling error — try restarting the OPC server",
	FaultClassNotRegistered:  "Server is not registered on this machine",
	FaultInvalidPointer:      "Invalid pointer (E_POINTER)",
	FaultItemBadRights:       "Server rejected write — the item may be read-only (OPC_E_BADRIGHTS)",
	FaultItemBadType:         "Data type mismatch — server cannot convert the written value (OPC_E_BADTYPE)",
	FaultItemUnknownID:       "Item ID not found in server address space (OPC_E_UNKNOWNITEMID)",
	FaultItemInvalidIDSyntax: "Item ID syntax is invalid for this server (OPC_E_INVALIDITEMID)",
}

// HintForFault returns the actionable hint for a known fault code.
//
// Parameters:
//   - code: The raw fault code
//
// Returns:
//   - string: The hint text, empty if the code is not recognized
//   - bool: Whether the code was recognized
func HintForFault(code uint32) (string, bool) {
	hint, ok := faultHints[code]
	return hint, ok
}

// FaultError is a driver-level fault carrying the raw fault code reported by
// the remote endpoint.
type FaultError struct {
	// Code is the raw fault code (HRESULT-style on COM transports).
	Code uint32

	// Op names the driver operation that failed.
	Op string

	// Detail is optional diagnostic text from the driver.
	Detail string
}

// NewFault creates a FaultError for the given operation and code.
func NewFault(op string, code uint32) *FaultError {
	return &FaultError{Code: code, Op: op}
}

// Error implements the error interface, appending the hint when known.
func (e *FaultError) Error() string {
	msg := fmt.Sprintf("opcda: %s failed: 0x%08X", e.Op, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if hint, ok := faultHints[e.Code]; ok {
		msg += " (" + hint + ")"
	}

	return msg
}

// Hint returns the actionable hint for this fault, if the code is recognized.
func (e *FaultError) Hint() string {
	hint, _ := faultHints[e.Code]
	return hint
}

// FormatFault renders a fault code with its hint, for embedding in per-item
// quality strings and write errors.
func FormatFault(code uint32) string {
	hex := fmt.Sprintf("0x%08X", code)
	if hint, ok := faultHints[code]; ok {
		return hex + ": " + hint
	}

	return hex
}

// IsConnectionFault reports whether err is a connection-class fault: the fixed
// set of codes meaning the remote endpoint is unreachable, terminated, or
// denied at the transport layer. Application-level per-item faults are never
// connection-class.
func IsConnectionFault(err error) bool {
	var fe *FaultError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Code {
	case FaultRPCUnavailable, FaultRPCCallFailed, FaultRPCCallFailedDNE, FaultServerExecFailed:
		return true
	}

	return false
}

// PositionCorruptedError is the fatal browse fault raised when navigating back
// up from a branch fails. The namespace position can no longer be trusted, so
// the whole browse call is aborted rather than continuing from an unknown
// position.
type PositionCorruptedError struct {
	// Branch is the branch the walk failed to return from.
	Branch string

	// Cause is the underlying navigation error.
	Cause error
}

// Error implements the error interface.
func (e *PositionCorruptedError) Error() string {
	return "opcda: browse position corrupted: failed to navigate up from branch " +
		strconv.Quote(e.Branch) + ": " + e.Cause.Error()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PositionCorruptedError) Unwrap() error {
	return e.Cause
}
