package value

import (
	"fmt"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
	"time"
)

func errorf(t s7runtime.ValueType, field string, data []byte, format string, args ...interface{}) error {
	return &s7runtime.DecodeError{Type: t, Field: field, Reason: fmt.Sprintf(format, args...), Data: data}
}

// DecodeElement decodes one element of type t from the front of data.
// capacity is only used by the string types.
func DecodeElement(t s7runtime.ValueType, capacity int, data []byte) (Value, error) {
	size := s7runtime.ValueTypeSize[t]
	if len(data) < size {
		return nil, errorf(t, "value", data, "need %d bytes, got %d", size, len(data))
	}
	switch t {
	case s7runtime.Bit:
		return Bit(data[0]&0x01 != 0), nil
	case s7runtime.Byte:
		return Byte(data[0]), nil
	case s7runtime.Word:
		return Word(binutil.ParseUint16(data)), nil
	case s7runtime.Int:
		return Int(binutil.ParseUint16(data)), nil
	case s7runtime.DWord:
		return DWord(binutil.ParseUint32(data)), nil
	case s7runtime.DInt:
		return DInt(binutil.ParseUint32(data)), nil
	case s7runtime.Real:
		return Real(binutil.ParseFloat32(data)), nil
	case s7runtime.LReal:
		return LReal(binutil.ParseFloat64(data)), nil
	case s7runtime.LWord:
		return LWord(binutil.ParseUint64(data)), nil
	case s7runtime.LInt:
		return LInt(binutil.ParseUint64(data)), nil
	case s7runtime.String:
		s, err := DecodeString(data)
		return String(s), err
	case s7runtime.WString:
		s, err := DecodeWString(data)
		return WString(s), err
	case s7runtime.Timer:
		d, err := DecodeS5Time(data)
		return Timer(d), err
	case s7runtime.Counter:
		c, err := DecodeCounter(data)
		return Counter(c), err
	case s7runtime.DateTime:
		tm, err := DecodeDateTime(data)
		return DateTime(tm), err
	case s7runtime.DateTimeLong:
		tm, err := DecodeDateTimeLong(data)
		return DateTimeLong(tm), err
	}
	return nil, errorf(t, "type", nil, "unsupported value type")
}

// EncodeElement encodes v as one element of type t.
func EncodeElement(t s7runtime.ValueType, capacity int, v Value) ([]byte, error) {
	if vt, ok := TypeOf(v); !ok || vt != t {
		return nil, errorf(t, "value", nil, "cannot encode %T as %s", v, t)
	}
	switch v := v.(type) {
	case Bit:
		if v {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil
	case Byte:
		return []byte{byte(v)}, nil
	case Word:
		return binutil.Uint16ToBytes(uint16(v)), nil
	case Int:
		return binutil.Uint16ToBytes(uint16(v)), nil
	case DWord:
		return binutil.Uint32ToBytes(uint32(v)), nil
	case DInt:
		return binutil.Uint32ToBytes(uint32(v)), nil
	case Real:
		buf := make([]byte, 4)
		binutil.WriteFloat32(buf, float32(v))
		return buf, nil
	case LReal:
		buf := make([]byte, 8)
		binutil.WriteFloat64(buf, float64(v))
		return buf, nil
	case LWord:
		buf := make([]byte, 8)
		binutil.WriteUint64(buf, uint64(v))
		return buf, nil
	case LInt:
		buf := make([]byte, 8)
		binutil.WriteUint64(buf, uint64(v))
		return buf, nil
	case String:
		return EncodeString(string(v), capacity)
	case WString:
		return EncodeWString(string(v), capacity)
	case Timer:
		return EncodeS5Time(time.Duration(v))
	case Counter:
		return EncodeCounter(uint16(v))
	case DateTime:
		return EncodeDateTime(time.Time(v))
	case DateTimeLong:
		return EncodeDateTimeLong(time.Time(v))
	}
	return nil, errorf(t, "type", nil, "unsupported value type")
}

// Decode decodes the bytes transferred for ref. Count above one yields an Array,
// bits are taken starting at the reference's bit offset.
func Decode(ref s7runtime.MemoryReference, data []byte) (Value, error) {
	if len(data) < ref.ByteLength() {
		return nil, errorf(ref.ValueType, "value", data, "need %d bytes for %s, got %d", ref.ByteLength(), ref, len(data))
	}
	if ref.ValueType == s7runtime.Bit {
		bits := make(Array, ref.Elements())
		for i := range bits {
			pos := ref.BitOffset + i
			bits[i] = Bit(data[pos>>3]>>(pos&0x07)&0x01 != 0)
		}
		if ref.Count <= 1 {
			return bits[0], nil
		}
		return bits, nil
	}

	elemLen := ref.ElementLength()
	if ref.Count <= 1 {
		return DecodeElement(ref.ValueType, ref.Capacity, data[:elemLen])
	}
	arr := make(Array, ref.Count)
	for i := range arr {
		e, err := DecodeElement(ref.ValueType, ref.Capacity, data[i*elemLen:(i+1)*elemLen])
		if err != nil {
			return nil, err
		}
		arr[i] = e
	}
	return arr, nil
}

// Encode encodes v for a write to ref. Bit arrays are packed LSB first from the
// reference's bit offset.
func Encode(ref s7runtime.MemoryReference, v Value) ([]byte, error) {
	if ref.Count <= 1 {
		if arr, ok := v.(Array); ok {
			if len(arr) != 1 {
				return nil, errorf(ref.ValueType, "value", nil, "%s holds one element, got %d", ref, len(arr))
			}
			v = arr[0]
		}
		return EncodeElement(ref.ValueType, ref.Capacity, v)
	}

	arr, ok := v.(Array)
	if !ok {
		return nil, errorf(ref.ValueType, "value", nil, "%s holds %d elements, got %T", ref, ref.Count, v)
	}
	if len(arr) != ref.Count {
		return nil, errorf(ref.ValueType, "value", nil, "%s holds %d elements, got %d", ref, ref.Count, len(arr))
	}
	if ref.ValueType == s7runtime.Bit {
		out := make([]byte, ref.ByteLength())
		for i, e := range arr {
			b, ok := e.(Bit)
			if !ok {
				return nil, errorf(ref.ValueType, fmt.Sprintf("[%d]", i), nil, "cannot encode %T as BIT", e)
			}
			if b {
				pos := ref.BitOffset + i
				out[pos>>3] |= 1 << (pos & 0x07)
			}
		}
		return out, nil
	}
	out := make([]byte, 0, ref.ByteLength())
	for i, e := range arr {
		b, err := EncodeElement(ref.ValueType, ref.Capacity, e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}
