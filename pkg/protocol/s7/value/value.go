package value

import (
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"time"
)

// Value is the closed set of values read from or written to a controller.
// Callers switch on the concrete type:
//
//	switch v := v.(type) {
//	case value.Int:
//	case value.Array:
//	}
type Value interface {
	// Interface returns the plain Go representation
	Interface() interface{}
	isValue()
}

type (
	Bit          bool
	Byte         uint8
	Word         uint16
	Int          int16
	DWord        uint32
	DInt         int32
	Real         float32
	LReal        float64
	LWord        uint64
	LInt         int64
	String       string
	WString      string
	Timer        time.Duration
	Counter      uint16
	DateTime     time.Time
	DateTimeLong time.Time
	Bytes        []byte
	Array        []Value
	Record       map[string]Value
)

func (Bit) isValue()          {}
func (Byte) isValue()         {}
func (Word) isValue()         {}
func (Int) isValue()          {}
func (DWord) isValue()        {}
func (DInt) isValue()         {}
func (Real) isValue()         {}
func (LReal) isValue()        {}
func (LWord) isValue()        {}
func (LInt) isValue()         {}
func (String) isValue()       {}
func (WString) isValue()      {}
func (Timer) isValue()        {}
func (Counter) isValue()      {}
func (DateTime) isValue()     {}
func (DateTimeLong) isValue() {}
func (Bytes) isValue()        {}
func (Array) isValue()        {}
func (Record) isValue()       {}

func (v Bit) Interface() interface{}          { return bool(v) }
func (v Byte) Interface() interface{}         { return uint8(v) }
func (v Word) Interface() interface{}         { return uint16(v) }
func (v Int) Interface() interface{}          { return int16(v) }
func (v DWord) Interface() interface{}        { return uint32(v) }
func (v DInt) Interface() interface{}         { return int32(v) }
func (v Real) Interface() interface{}         { return float32(v) }
func (v LReal) Interface() interface{}        { return float64(v) }
func (v LWord) Interface() interface{}        { return uint64(v) }
func (v LInt) Interface() interface{}         { return int64(v) }
func (v String) Interface() interface{}       { return string(v) }
func (v WString) Interface() interface{}      { return string(v) }
func (v Timer) Interface() interface{}        { return time.Duration(v) }
func (v Counter) Interface() interface{}      { return uint16(v) }
func (v DateTime) Interface() interface{}     { return time.Time(v) }
func (v DateTimeLong) Interface() interface{} { return time.Time(v) }
func (v Bytes) Interface() interface{}        { return []byte(v) }

func (v Array) Interface() interface{} {
	out := make([]interface{}, len(v))
	for i, e := range v {
		out[i] = e.Interface()
	}
	return out
}

func (v Record) Interface() interface{} {
	out := make(map[string]interface{}, len(v))
	for k, e := range v {
		out[k] = e.Interface()
	}
	return out
}

// TypeOf returns the value type of a scalar value, ok is false for
// Bytes, Array and Record.
func TypeOf(v Value) (s7runtime.ValueType, bool) {
	switch v.(type) {
	case Bit:
		return s7runtime.Bit, true
	case Byte:
		return s7runtime.Byte, true
	case Word:
		return s7runtime.Word, true
	case Int:
		return s7runtime.Int, true
	case DWord:
		return s7runtime.DWord, true
	case DInt:
		return s7runtime.DInt, true
	case Real:
		return s7runtime.Real, true
	case LReal:
		return s7runtime.LReal, true
	case LWord:
		return s7runtime.LWord, true
	case LInt:
		return s7runtime.LInt, true
	case String:
		return s7runtime.String, true
	case WString:
		return s7runtime.WString, true
	case Timer:
		return s7runtime.Timer, true
	case Counter:
		return s7runtime.Counter, true
	case DateTime:
		return s7runtime.DateTime, true
	case DateTimeLong:
		return s7runtime.DateTimeLong, true
	}
	return 0, false
}
