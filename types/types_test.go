package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValueCoercion(t *testing.T) {
	tests := []struct {
		input string
		want  Value
	}{
		{"42", IntValue(42)},
		{"-7", IntValue(-7)},
		{"3.14", FloatValue(3.14)},
		{"-0.5", FloatValue(-0.5)},
		{"true", BoolValue(true)},
		{"TRUE", BoolValue(true)},
		{"false", BoolValue(false)},
		{"running", StringValue("running")},
		{"", StringValue("")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.input))
		})
	}
}

func TestParseValueNumericBoolPrecedence(t *testing.T) {
	// "1" and "0" parse as integers before the boolean fallback is reached.
	assert.Equal(t, IntValue(1), ParseValue("1"))
	assert.Equal(t, IntValue(0), ParseValue("0"))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", IntValue(42).String())
	assert.Equal(t, "3.50", FloatValue(3.5).String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, `"hi"`, StringValue("hi").String())
}

func TestQualityString(t *testing.T) {
	assert.Equal(t, "Good", Quality(0xC0).String())
	assert.Equal(t, "Bad", Quality(0x00).String())
	assert.Equal(t, "Uncertain", Quality(0x40).String())
	// Sub-status bits do not change the coarse state.
	assert.Equal(t, "Good", Quality(0xC3).String())
	assert.Equal(t, "Bad", Quality(0x1C).String())
}

func TestHintForFaultKnownCodes(t *testing.T) {
	hint, ok := HintForFault(FaultMarshalingError)
	require.True(t, ok)
	assert.Contains(t, hint, "marshalling")

	hint, ok = HintForFault(FaultClassNotRegistered)
	require.True(t, ok)
	assert.Contains(t, hint, "not registered")

	hint, ok = HintForFault(FaultAccessDenied)
	require.True(t, ok)
	assert.Contains(t, hint, "Access denied")

	hint, ok = HintForFault(FaultRPCUnavailable)
	require.True(t, ok)
	assert.Contains(t, hint, "RPC server unavailable")
}

func TestHintForFaultUnknownCode(t *testing.T) {
	_, ok := HintForFault(0xDEADBEEF)
	assert.False(t, ok)
}

func TestFaultErrorMessage(t *testing.T) {
	err := NewFault("connect", FaultAccessDenied)
	assert.Contains(t, err.Error(), "0x80070005")
	assert.Contains(t, err.Error(), "Access denied")
	assert.Contains(t, err.Error(), "connect")

	unknown := NewFault("read", 0x12345678)
	assert.Contains(t, unknown.Error(), "0x12345678")
	assert.Empty(t, unknown.Hint())
}

func TestIsConnectionFault(t *testing.T) {
	for _, code := range []uint32{
		FaultRPCUnavailable, FaultRPCCallFailed, FaultRPCCallFailedDNE, FaultServerExecFailed,
	} {
		assert.True(t, IsConnectionFault(NewFault("op", code)), "code 0x%08X", code)
	}

	// Per-item and access faults are not connection-class.
	assert.False(t, IsConnectionFault(NewFault("op", FaultItemBadRights)))
	assert.False(t, IsConnectionFault(NewFault("op", FaultAccessDenied)))
	assert.False(t, IsConnectionFault(errors.New("plain error")))

	// Wrapped faults are still recognized.
	wrapped := fmt.Errorf("dispatch: %w", NewFault("read", FaultRPCUnavailable))
	assert.True(t, IsConnectionFault(wrapped))
}

func TestPositionCorruptedError(t *testing.T) {
	cause := NewFault("change_browse_position", FaultInvalidPointer)
	err := &PositionCorruptedError{Branch: "Devices", Cause: cause}

	assert.Contains(t, err.Error(), `"Devices"`)
	assert.ErrorIs(t, err, cause)
}

func TestProgressSnapshotIsCopy(t *testing.T) {
	p := NewProgress()
	p.Add("A")
	p.Add("B")

	snap := p.Snapshot()
	require.Equal(t, []string{"A", "B"}, snap)
	require.Equal(t, 2, p.Count())

	snap[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, p.Snapshot())
}

func TestFormatFault(t *testing.T) {
	assert.Equal(t, "0x12345678", FormatFault(0x12345678))
	assert.Contains(t, FormatFault(FaultItemUnknownID), "OPC_E_UNKNOWNITEMID")
}
