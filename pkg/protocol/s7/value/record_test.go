package value

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"testing"
	"time"
)

func offsetsOf(t *testing.T, s *Schema) map[string][2]int {
	t.Helper()
	offsets, err := s.Offsets()
	require.NoError(t, err)
	out := make(map[string][2]int, len(offsets))
	for _, o := range offsets {
		out[o.Path] = [2]int{o.ByteOffset, o.BitOffset}
	}
	return out
}

func TestSchemaBoolsThenByteThenWord(t *testing.T) {
	s := NewSchema("",
		Field{Name: "a", Type: s7runtime.Bit},
		Field{Name: "b", Type: s7runtime.Bit},
		Field{Name: "c", Type: s7runtime.Bit},
		Field{Name: "d", Type: s7runtime.Byte},
		Field{Name: "e", Type: s7runtime.Word},
	)
	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, 4, size)
	assert.Equal(t, map[string][2]int{
		"a": {0, 0}, "b": {0, 1}, "c": {0, 2}, "d": {1, 0}, "e": {2, 0},
	}, offsetsOf(t, s))

	for i := 0; i < 3; i++ {
		again, err := s.Size()
		require.NoError(t, err)
		assert.Equal(t, size, again)
	}
}

func TestSchemaMixedLayout(t *testing.T) {
	s := NewSchema("",
		Field{Name: "on", Type: s7runtime.Bit},
		Field{Name: "speed", Type: s7runtime.Int},
		Field{Name: "x", Type: s7runtime.Bit},
		Field{Name: "y", Type: s7runtime.Bit},
		Field{Name: "temp", Type: s7runtime.Real},
		Field{Name: "mode", Type: s7runtime.Byte},
		Field{Name: "name", Type: s7runtime.String, Capacity: 4},
		Field{Name: "last", Type: s7runtime.Bit},
	)
	size, err := s.Size()
	require.NoError(t, err)
	// on 0.0, speed 2, x 4.0, y 4.1, temp 6, mode 10, name 12..17, last 18.0
	assert.Equal(t, 19, size)
	assert.Equal(t, map[string][2]int{
		"on": {0, 0}, "speed": {2, 0}, "x": {4, 0}, "y": {4, 1}, "temp": {6, 0},
		"mode": {10, 0}, "name": {12, 0}, "last": {18, 0},
	}, offsetsOf(t, s))
}

func TestSchemaNestedAndArrays(t *testing.T) {
	inner := NewSchema("", Field{Name: "a", Type: s7runtime.Bit}, Field{Name: "b", Type: s7runtime.Byte})
	s := NewSchema("",
		Field{Name: "flag", Type: s7runtime.Bit},
		Field{Name: "inner", Schema: inner},
		Field{Name: "bits", Type: s7runtime.Bit, Count: 10},
		Field{Name: "words", Type: s7runtime.Word, Count: 2},
	)
	size, err := s.Size()
	require.NoError(t, err)
	// flag 0.0, inner.a 0.1, inner.b 1, bits 2.0..3.1, words 4 and 6
	assert.Equal(t, 8, size)
	offsets := offsetsOf(t, s)
	assert.Equal(t, [2]int{0, 1}, offsets["inner.a"])
	assert.Equal(t, [2]int{1, 0}, offsets["inner.b"])
	assert.Equal(t, [2]int{2, 0}, offsets["bits[0]"])
	assert.Equal(t, [2]int{3, 1}, offsets["bits[9]"])
	assert.Equal(t, [2]int{4, 0}, offsets["words[0]"])
	assert.Equal(t, [2]int{6, 0}, offsets["words[1]"])

	// the nested schema keeps its own standalone size
	innerSize, err := inner.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, innerSize)
}

func TestSchemaRoundTrip(t *testing.T) {
	inner := NewSchema("", Field{Name: "ok", Type: s7runtime.Bit}, Field{Name: "count", Type: s7runtime.DInt})
	s := NewSchema("recipe",
		Field{Name: "a", Type: s7runtime.Bit},
		Field{Name: "b", Type: s7runtime.Bit},
		Field{Name: "level", Type: s7runtime.Real},
		Field{Name: "steps", Type: s7runtime.Int, Count: 3},
		Field{Name: "stage", Schema: inner, Count: 2},
		Field{Name: "label", Type: s7runtime.String, Capacity: 8},
		Field{Name: "stamp", Type: s7runtime.DateTime},
		Field{Name: "delay", Type: s7runtime.Timer},
	)
	rec := Record{
		"a":     Bit(true),
		"b":     Bit(false),
		"level": Real(12.5),
		"steps": Array{Int(1), Int(-2), Int(3)},
		"stage": Array{
			Record{"ok": Bit(true), "count": DInt(100)},
			Record{"ok": Bit(false), "count": DInt(-7)},
		},
		"label": String("batch"),
		"stamp": DateTime(time.Date(2023, time.March, 4, 5, 6, 7, 0, time.UTC)),
		"delay": Timer(1500 * time.Millisecond),
	}
	b, err := s.Encode(rec)
	require.NoError(t, err)
	size, _ := s.Size()
	assert.Len(t, b, size)
	assert.Equal(t, byte(0x01), b[0])

	got, err := s.Decode(b)
	require.NoError(t, err)
	stamp := got["stamp"].(DateTime)
	assert.True(t, time.Time(rec["stamp"].(DateTime)).Equal(time.Time(stamp)))
	delete(got, "stamp")
	delete(rec, "stamp")
	assert.Equal(t, rec, got)
}

func TestSchemaErrors(t *testing.T) {
	dup := NewSchema("", Field{Name: "a", Type: s7runtime.Byte}, Field{Name: "a", Type: s7runtime.Word})
	_, err := dup.Size()
	assert.Error(t, err)

	unnamed := NewSchema("", Field{Type: s7runtime.Byte})
	_, err = unnamed.Offsets()
	assert.Error(t, err)

	s := NewSchema("r", Field{Name: "a", Type: s7runtime.Word}, Field{Name: "b", Type: s7runtime.Int, Count: 2})
	_, err = s.Encode(Record{"a": Word(1)})
	var de *s7runtime.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "r.b", de.Field)

	_, err = s.Encode(Record{"a": Int(1), "b": Array{Int(1), Int(2)}})
	assert.Error(t, err)

	_, err = s.Encode(Record{"a": Word(1), "b": Array{Int(1)}})
	assert.Error(t, err)

	_, err = s.Decode([]byte{0, 1, 2})
	assert.Error(t, err)
}
