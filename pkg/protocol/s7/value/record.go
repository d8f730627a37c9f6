package value

import (
	"fmt"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"strings"
	"sync"
)

// Field one named member of a Schema. A field is either a value type or a nested
// schema, Count above one declares an array.
type Field struct {
	Name     string              `json:"name"`
	Type     s7runtime.ValueType `json:"type,omitempty"`
	Count    int                 `json:"count,omitempty"`
	Capacity int                 `json:"capacity,omitempty"`
	Schema   *Schema             `json:"schema,omitempty"`
}

// Schema an ordered set of fields marshalled as one contiguous block.
//
// Layout rules, applied in declaration order on a running bit cursor:
// a bit takes the next bit of the current byte, LSB first; any other field
// starts on the next whole byte; fields of two bytes or more start on the next
// even byte; nested schemas and array elements continue on the same cursor.
// The size is the cursor rounded up to whole bytes.
type Schema struct {
	Name   string  `json:"name,omitempty"`
	Fields []Field `json:"fields"`

	once   sync.Once
	layout *recordLayout
	size   int
	err    error
}

func NewSchema(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// FieldOffset the position of one scalar element inside the record.
type FieldOffset struct {
	Path       string
	Type       s7runtime.ValueType
	ByteOffset int
	BitOffset  int
	Length     int
}

type slot struct {
	byteOffset int
	bitOffset  int
}

type fieldLayout struct {
	field  *Field
	slots  []slot
	nested []*recordLayout
}

type recordLayout struct {
	fields []fieldLayout
}

func (s *Schema) compute() {
	s.once.Do(func() {
		cursor := 0
		s.layout, s.err = layoutRecord(s, &cursor, s.Name, 0)
		s.size = (cursor + 7) / 8
	})
}

const maxSchemaDepth = 32

func layoutRecord(s *Schema, cursor *int, path string, depth int) (*recordLayout, error) {
	if depth > maxSchemaDepth {
		return nil, fmt.Errorf("schema %q nests deeper than %d levels", path, maxSchemaDepth)
	}
	rl := &recordLayout{fields: make([]fieldLayout, 0, len(s.Fields))}
	seen := make(map[string]struct{}, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == "" {
			return nil, fmt.Errorf("schema %q field %d has no name", path, i)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("schema %q declares %q twice", path, f.Name)
		}
		seen[f.Name] = struct{}{}

		fl := fieldLayout{field: f}
		count := f.Count
		if count < 1 {
			count = 1
		}
		if f.Schema != nil {
			for e := 0; e < count; e++ {
				nested, err := layoutRecord(f.Schema, cursor, joinPath(path, f.Name), depth+1)
				if err != nil {
					return nil, err
				}
				fl.nested = append(fl.nested, nested)
			}
			rl.fields = append(rl.fields, fl)
			continue
		}

		length, err := fieldLength(f)
		if err != nil {
			return nil, fmt.Errorf("schema %q field %q: %w", path, f.Name, err)
		}
		for e := 0; e < count; e++ {
			if f.Type == s7runtime.Bit {
				fl.slots = append(fl.slots, slot{byteOffset: *cursor / 8, bitOffset: *cursor % 8})
				*cursor++
				continue
			}
			*cursor = alignUp(*cursor, 8)
			if length >= 2 {
				*cursor = alignUp(*cursor, 16)
			}
			fl.slots = append(fl.slots, slot{byteOffset: *cursor / 8})
			*cursor += length * 8
		}
		rl.fields = append(rl.fields, fl)
	}
	return rl, nil
}

func fieldLength(f *Field) (int, error) {
	switch f.Type {
	case s7runtime.String:
		if f.Capacity < 0 || f.Capacity > s7runtime.MaxStringCapacity {
			return 0, fmt.Errorf("string capacity %d out of range", f.Capacity)
		}
		return 2 + f.Capacity, nil
	case s7runtime.WString:
		if f.Capacity < 0 || f.Capacity > s7runtime.MaxWStringCapacity {
			return 0, fmt.Errorf("wstring capacity %d out of range", f.Capacity)
		}
		return 4 + 2*f.Capacity, nil
	}
	size, ok := s7runtime.ValueTypeSize[f.Type]
	if !ok {
		return 0, fmt.Errorf("unknown value type %d", f.Type)
	}
	return size, nil
}

func alignUp(bits, to int) int {
	return (bits + to - 1) / to * to
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// Size byte length of the record.
func (s *Schema) Size() (int, error) {
	s.compute()
	return s.size, s.err
}

// Offsets lists every scalar element of the record in layout order.
func (s *Schema) Offsets() ([]FieldOffset, error) {
	s.compute()
	if s.err != nil {
		return nil, s.err
	}
	var out []FieldOffset
	var walk func(rl *recordLayout, path string)
	walk = func(rl *recordLayout, path string) {
		for _, fl := range rl.fields {
			name := joinPath(path, fl.field.Name)
			for i, nested := range fl.nested {
				p := name
				if len(fl.nested) > 1 {
					p = fmt.Sprintf("%s[%d]", name, i)
				}
				walk(nested, p)
			}
			length, _ := fieldLength(fl.field)
			if fl.field.Type == s7runtime.Bit {
				length = 0
			}
			for i, sl := range fl.slots {
				p := name
				if len(fl.slots) > 1 {
					p = fmt.Sprintf("%s[%d]", name, i)
				}
				out = append(out, FieldOffset{Path: p, Type: fl.field.Type, ByteOffset: sl.byteOffset, BitOffset: sl.bitOffset, Length: length})
			}
		}
	}
	walk(s.layout, "")
	return out, nil
}

// Decode unmarshals a record from data, which must hold at least Size bytes.
func (s *Schema) Decode(data []byte) (Record, error) {
	size, err := s.Size()
	if err != nil {
		return nil, err
	}
	if len(data) < size {
		return nil, &s7runtime.DecodeError{Field: s.Name, Reason: fmt.Sprintf("record needs %d bytes, got %d", size, len(data))}
	}
	return decodeRecord(s.layout, data, s.Name)
}

func decodeRecord(rl *recordLayout, data []byte, path string) (Record, error) {
	rec := make(Record, len(rl.fields))
	for _, fl := range rl.fields {
		f := fl.field
		name := joinPath(path, f.Name)
		if fl.nested != nil {
			elems := make(Array, len(fl.nested))
			for i, nested := range fl.nested {
				r, err := decodeRecord(nested, data, name)
				if err != nil {
					return nil, err
				}
				elems[i] = r
			}
			rec[f.Name] = single(f, elems)
			continue
		}

		elems := make(Array, len(fl.slots))
		for i, sl := range fl.slots {
			if f.Type == s7runtime.Bit {
				elems[i] = Bit(data[sl.byteOffset]>>sl.bitOffset&0x01 != 0)
				continue
			}
			length, _ := fieldLength(f)
			v, err := DecodeElement(f.Type, f.Capacity, data[sl.byteOffset:sl.byteOffset+length])
			if err != nil {
				return nil, withField(err, name)
			}
			elems[i] = v
		}
		rec[f.Name] = single(f, elems)
	}
	return rec, nil
}

// Encode marshals rec into Size bytes. Every declared field must be present.
func (s *Schema) Encode(rec Record) ([]byte, error) {
	size, err := s.Size()
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if err := encodeRecord(s.layout, rec, out, s.Name); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeRecord(rl *recordLayout, rec Record, out []byte, path string) error {
	for _, fl := range rl.fields {
		f := fl.field
		name := joinPath(path, f.Name)
		v, ok := rec[f.Name]
		if !ok {
			return &s7runtime.DecodeError{Type: f.Type, Field: name, Reason: "missing from record"}
		}
		n := len(fl.slots)
		if fl.nested != nil {
			n = len(fl.nested)
		}
		elems, err := elements(f, v, n, name)
		if err != nil {
			return err
		}
		if fl.nested != nil {
			for i, nested := range fl.nested {
				r, ok := elems[i].(Record)
				if !ok {
					return &s7runtime.DecodeError{Type: f.Type, Field: name, Reason: fmt.Sprintf("expected a record, got %T", elems[i])}
				}
				if err := encodeRecord(nested, r, out, name); err != nil {
					return err
				}
			}
			continue
		}
		for i, sl := range fl.slots {
			b, err := EncodeElement(f.Type, f.Capacity, elems[i])
			if err != nil {
				return withField(err, name)
			}
			if f.Type == s7runtime.Bit {
				if b[0] != 0 {
					out[sl.byteOffset] |= 1 << sl.bitOffset
				}
				continue
			}
			copy(out[sl.byteOffset:], b)
		}
	}
	return nil
}

func single(f *Field, elems Array) Value {
	if f.Count > 1 {
		return elems
	}
	return elems[0]
}

func elements(f *Field, v Value, n int, name string) (Array, error) {
	if f.Count <= 1 {
		return Array{v}, nil
	}
	arr, ok := v.(Array)
	if !ok || len(arr) != n {
		return nil, &s7runtime.DecodeError{Type: f.Type, Field: name, Reason: fmt.Sprintf("expected an array of %d elements", n)}
	}
	return arr, nil
}

func withField(err error, name string) error {
	if de, ok := err.(*s7runtime.DecodeError); ok {
		cp := *de
		if !strings.HasPrefix(cp.Field, name) {
			cp.Field = name + "." + cp.Field
		}
		return &cp
	}
	return fmt.Errorf("%s: %w", name, err)
}
