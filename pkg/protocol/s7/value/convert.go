package value

import (
	"fmt"
	"github.com/mitchellh/mapstructure"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"math"
	"time"
)

// FromInterface converts a loosely typed input, typically decoded JSON or YAML,
// into a value for ref. Numbers and strings are converted weakly, durations accept
// "1.5s" and times RFC 3339. Arrays are expected for Count above one.
func FromInterface(ref s7runtime.MemoryReference, raw interface{}) (Value, error) {
	if ref.Count > 1 {
		items, ok := raw.([]interface{})
		if !ok {
			return nil, errorf(ref.ValueType, "value", nil, "%s holds %d elements, got %T", ref, ref.Count, raw)
		}
		arr := make(Array, len(items))
		for i, item := range items {
			v, err := scalarFromInterface(ref.ValueType, item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	}
	return scalarFromInterface(ref.ValueType, raw)
}

// RecordFromInterface converts a decoded JSON object into a record of schema s.
func RecordFromInterface(s *Schema, raw interface{}) (Record, error) {
	return recordFromInterface(s, raw, s.Name)
}

func recordFromInterface(s *Schema, raw interface{}, path string) (Record, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &s7runtime.DecodeError{Field: path, Reason: fmt.Sprintf("expected an object, got %T", raw)}
	}
	rec := make(Record, len(s.Fields))
	for _, f := range s.Fields {
		name := joinPath(path, f.Name)
		item, ok := obj[f.Name]
		if !ok {
			return nil, &s7runtime.DecodeError{Type: f.Type, Field: name, Reason: "missing from record"}
		}
		convert := func(in interface{}) (Value, error) {
			if f.Schema != nil {
				return recordFromInterface(f.Schema, in, name)
			}
			v, err := scalarFromInterface(f.Type, in)
			if err != nil {
				return nil, withField(err, name)
			}
			return v, nil
		}
		if f.Count <= 1 {
			v, err := convert(item)
			if err != nil {
				return nil, err
			}
			rec[f.Name] = v
			continue
		}
		items, ok := item.([]interface{})
		if !ok {
			return nil, &s7runtime.DecodeError{Type: f.Type, Field: name, Reason: fmt.Sprintf("expected an array, got %T", item)}
		}
		arr := make(Array, len(items))
		for i, in := range items {
			v, err := convert(in)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		rec[f.Name] = arr
	}
	return rec, nil
}

var integerBounds = map[s7runtime.ValueType][2]int64{
	s7runtime.Byte:    {0, math.MaxUint8},
	s7runtime.Word:    {0, math.MaxUint16},
	s7runtime.Int:     {math.MinInt16, math.MaxInt16},
	s7runtime.DWord:   {0, math.MaxUint32},
	s7runtime.DInt:    {math.MinInt32, math.MaxInt32},
	s7runtime.LInt:    {math.MinInt64, math.MaxInt64},
	s7runtime.Counter: {0, 999},
}

func weakDecode(input interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func scalarFromInterface(t s7runtime.ValueType, raw interface{}) (Value, error) {
	if v, ok := raw.(Value); ok {
		if vt, ok := TypeOf(v); ok && vt == t {
			return v, nil
		}
	}
	fail := func(err error) (Value, error) {
		return nil, errorf(t, "value", nil, "cannot convert %v (%T): %v", raw, raw, err)
	}
	switch t {
	case s7runtime.Bit:
		var b bool
		if err := weakDecode(raw, &b); err != nil {
			return fail(err)
		}
		return Bit(b), nil
	case s7runtime.Byte, s7runtime.Word, s7runtime.Int, s7runtime.DWord, s7runtime.DInt, s7runtime.LInt, s7runtime.Counter:
		var n int64
		if err := weakDecode(raw, &n); err != nil {
			return fail(err)
		}
		bounds := integerBounds[t]
		if n < bounds[0] || n > bounds[1] {
			return nil, errorf(t, "value", nil, "%d out of range %d..%d", n, bounds[0], bounds[1])
		}
		switch t {
		case s7runtime.Byte:
			return Byte(n), nil
		case s7runtime.Word:
			return Word(n), nil
		case s7runtime.Int:
			return Int(n), nil
		case s7runtime.DWord:
			return DWord(n), nil
		case s7runtime.DInt:
			return DInt(n), nil
		case s7runtime.Counter:
			return Counter(n), nil
		}
		return LInt(n), nil
	case s7runtime.Real:
		var f float32
		if err := weakDecode(raw, &f); err != nil {
			return fail(err)
		}
		return Real(f), nil
	case s7runtime.LReal:
		var f float64
		if err := weakDecode(raw, &f); err != nil {
			return fail(err)
		}
		return LReal(f), nil
	case s7runtime.LWord:
		var n uint64
		if err := weakDecode(raw, &n); err != nil {
			return fail(err)
		}
		return LWord(n), nil
	case s7runtime.String:
		var s string
		if err := weakDecode(raw, &s); err != nil {
			return fail(err)
		}
		return String(s), nil
	case s7runtime.WString:
		var s string
		if err := weakDecode(raw, &s); err != nil {
			return fail(err)
		}
		return WString(s), nil
	case s7runtime.Timer:
		var d time.Duration
		if err := weakDecode(raw, &d); err != nil {
			return fail(err)
		}
		return Timer(d), nil
	case s7runtime.DateTime, s7runtime.DateTimeLong:
		var tm time.Time
		if err := weakDecode(raw, &tm); err != nil {
			return fail(err)
		}
		if t == s7runtime.DateTime {
			return DateTime(tm), nil
		}
		return DateTimeLong(tm), nil
	}
	return nil, errorf(t, "type", nil, "unsupported value type")
}
