package binutil

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestBigEndian(t *testing.T) {
	buf := make([]byte, 8)
	WriteUint16(buf, 0x1234)
	assert.Equal(t, []byte{0x12, 0x34}, buf[:2])
	assert.Equal(t, uint16(0x1234), ParseUint16(buf))

	WriteUint24(buf, 0x0abcde)
	assert.Equal(t, uint32(0x0abcde), ParseUint24(buf))

	WriteUint32(buf, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), ParseUint32(buf))

	WriteUint64(buf, 0x0102030405060708)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf)
	assert.Equal(t, uint64(0x0102030405060708), ParseUint64(buf))

	WriteFloat32(buf, 1.5)
	assert.Equal(t, []byte{0x3f, 0xc0, 0x00, 0x00}, buf[:4])
	assert.Equal(t, float32(1.5), ParseFloat32(buf))

	WriteFloat64(buf, -2.25)
	assert.Equal(t, -2.25, ParseFloat64(buf))
}

func TestBCD(t *testing.T) {
	for i := 0; i < 100; i++ {
		v, ok := BCDToByte(ByteToBCD(i))
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, byte(0x59), ByteToBCD(59))
	_, ok := BCDToByte(0x1a)
	assert.False(t, ok)
	_, ok = BCDToByte(0xa1)
	assert.False(t, ok)
}

func TestShrinkExpandBool(t *testing.T) {
	bits := []byte{1, 0, 1, 0, 0, 0, 0, 0, 1}
	packed := ShrinkBool(bits)
	assert.Equal(t, []byte{0x05, 0x01}, packed)

	expanded := ExpandBool(packed, 2)
	assert.Len(t, expanded, 16)
	assert.Equal(t, bits, expanded[:9])
}
