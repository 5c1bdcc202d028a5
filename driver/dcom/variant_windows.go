//go:build windows

package dcom

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	ole "github.com/go-ole/go-ole"

	"github.com/wends155/opc-cli-sub000/types"
)

// variantToValue decodes a server-reported VARIANT into a typed value. Types
// outside the engine's four kinds are rendered through their string form.
func variantToValue(v *ole.VARIANT) types.Value {
	switch decoded := v.Value().(type) {
	case nil:
		return types.StringValue("")
	case int8:
		return types.IntValue(int32(decoded))
	case int16:
		return types.IntValue(int32(decoded))
	case int32:
		return types.IntValue(decoded)
	case int64:
		return types.IntValue(int32(decoded))
	case uint8:
		return types.IntValue(int32(decoded))
	case uint16:
		return types.IntValue(int32(decoded))
	case uint32:
		return types.IntValue(int32(decoded))
	case float32:
		return types.FloatValue(float64(decoded))
	case float64:
		return types.FloatValue(decoded)
	case bool:
		return types.BoolValue(decoded)
	case string:
		return types.StringValue(decoded)
	default:
		return types.StringValue(fmt.Sprint(decoded))
	}
}

// valueToVariant builds the VARIANT for a write. The caller owns the result
// and must VariantClear it, which also frees an allocated BSTR.
func valueToVariant(v types.Value) (ole.VARIANT, error) {
	var out ole.VARIANT
	ole.VariantInit(&out)

	switch v.Kind {
	case types.KindInt32:
		out.VT = ole.VT_I4
		out.Val = int64(v.Int)
	case types.KindFloat64:
		out.VT = ole.VT_R8
		out.Val = int64(math.Float64bits(v.Float))
	case types.KindBool:
		out.VT = ole.VT_BOOL
		if v.Bool {
			out.Val = -1 // VARIANT_TRUE
		}
	case types.KindString:
		bstr := ole.SysAllocStringLen(v.Str)
		if bstr == nil {
			return out, fmt.Errorf("dcom: BSTR allocation failed")
		}
		out.VT = ole.VT_BSTR
		out.Val = int64(uintptr(unsafe.Pointer(bstr)))
	default:
		return out, fmt.Errorf("dcom: value kind %d: %w", v.Kind, types.ErrNotSupported)
	}

	return out, nil
}

// fileTimeToTime converts a FILETIME (100ns intervals since 1601-01-01 UTC)
// to a time.Time; the zero FILETIME maps to the zero time.
func fileTimeToTime(ft fileTime) time.Time {
	if ft.low == 0 && ft.high == 0 {
		return time.Time{}
	}
	intervals := uint64(ft.high)<<32 | uint64(ft.low)
	const epochDelta = 11644473600 // seconds between 1601 and 1970
	secs := int64(intervals/10_000_000) - epochDelta
	nanos := int64(intervals%10_000_000) * 100

	return time.Unix(secs, nanos).UTC()
}
