package binutil

import (
	"math"
)

// ParseUint16 解析 AB
func ParseUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 + uint16(buf[1])
}

// ParseUint24 three byte big endian, used by the s7 any-pointer address
func ParseUint24(buf []byte) uint32 {
	return uint32(buf[0])<<16 +
		uint32(buf[1])<<8 +
		uint32(buf[2])
}

// ParseUint32 解析 ABCD
func ParseUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 +
		uint32(buf[1])<<16 +
		uint32(buf[2])<<8 +
		uint32(buf[3])
}

// ParseUint64 解析 ABCD EFGH
func ParseUint64(b []byte) uint64 {
	return (uint64(b[0]) << 56) |
		(uint64(b[1]) << 48) |
		(uint64(b[2]) << 40) |
		(uint64(b[3]) << 32) |
		(uint64(b[4]) << 24) |
		(uint64(b[5]) << 16) |
		(uint64(b[6]) << 8) |
		uint64(b[7])
}

func ParseFloat32(buf []byte) float32 {
	return math.Float32frombits(ParseUint32(buf))
}

func ParseFloat64(buf []byte) float64 {
	return math.Float64frombits(ParseUint64(buf))
}

// Uint16ToBytes 编码
func Uint16ToBytes(value uint16) []byte {
	buf := make([]byte, 2)
	WriteUint16(buf, value)
	return buf
}

// Uint32ToBytes 编码
func Uint32ToBytes(value uint32) []byte {
	buf := make([]byte, 4)
	WriteUint32(buf, value)
	return buf
}

// WriteUint16 编码
func WriteUint16(buf []byte, value uint16) {
	buf[0] = byte(value >> 8)
	buf[1] = byte(value)
}

// WriteUint24 编码
func WriteUint24(buf []byte, value uint32) {
	buf[0] = byte(value >> 16)
	buf[1] = byte(value >> 8)
	buf[2] = byte(value)
}

// WriteUint32 编码
func WriteUint32(buf []byte, value uint32) {
	buf[0] = byte(value >> 24)
	buf[1] = byte(value >> 16)
	buf[2] = byte(value >> 8)
	buf[3] = byte(value)
}

// WriteUint64 编码
func WriteUint64(buf []byte, value uint64) {
	buf[0] = byte(value >> 56)
	buf[1] = byte(value >> 48)
	buf[2] = byte(value >> 40)
	buf[3] = byte(value >> 32)
	buf[4] = byte(value >> 24)
	buf[5] = byte(value >> 16)
	buf[6] = byte(value >> 8)
	buf[7] = byte(value)
}

func WriteFloat32(buf []byte, value float32) {
	WriteUint32(buf, math.Float32bits(value))
}

func WriteFloat64(buf []byte, value float64) {
	WriteUint64(buf, math.Float64bits(value))
}

// ByteToBCD 0..99 -> 两位BCD
func ByteToBCD(value int) byte {
	return byte((value/10)<<4 | value%10)
}

// BCDToByte returns ok=false when either nibble is not a decimal digit.
func BCDToByte(b byte) (int, bool) {
	hi, lo := int(b>>4), int(b&0x0f)
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return hi*10 + lo, true
}

// Dup 复制
func Dup(buf []byte) []byte {
	b := make([]byte, len(buf))
	copy(b, buf)
	return b
}

// ShrinkBool 压缩布尔类型, one bool per input byte, LSB first
func ShrinkBool(buf []byte) []byte {
	length := len(buf)
	// length = length % 8 == 0 ? length / 8 : length / 8 + 1;
	ln := length >> 3    // length/8
	if length&0x07 > 0 { // length%8
		ln++
	}

	b := make([]byte, ln)

	for i := 0; i < length; i++ {
		if buf[i] > 0 {
			// b[i/8] += 1 << (i % 8)
			b[i>>3] |= 1 << (i & 0x07)
		}
	}

	return b
}

// ExpandBool 展开布尔类型, count is the number of bytes to expand
func ExpandBool(buf []byte, count int) []byte {
	if count > len(buf) {
		count = len(buf)
	}
	expandLength := count << 3
	b := make([]byte, expandLength)
	for i := 0; i < expandLength; i++ {
		if buf[i>>3]&(1<<(i&0x07)) > 0 {
			b[i] = 1
		}
	}
	return b
}
