package value

import (
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
)

// S7 STRING: capacity(1) length(1) latin-1 payload, zero padded up to capacity.
// S7 WSTRING: capacity(2) length(2) utf-16be payload, lengths in characters.

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// DecodeString decodes an S7 STRING from data.
func DecodeString(data []byte) (string, error) {
	if len(data) < 2 {
		return "", errorf(s7runtime.String, "header", data, "need 2 header bytes, got %d", len(data))
	}
	capacity, length := int(data[0]), int(data[1])
	if length > capacity {
		return "", errorf(s7runtime.String, "length", data[:2], "length %d exceeds capacity %d", length, capacity)
	}
	if len(data) < 2+length {
		return "", errorf(s7runtime.String, "payload", data, "length %d but only %d payload bytes", length, len(data)-2)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(data[2 : 2+length])
	if err != nil {
		return "", errorf(s7runtime.String, "payload", data[2:2+length], "%v", err)
	}
	return string(s), nil
}

// EncodeString encodes s as an S7 STRING of the given capacity, 2+capacity bytes.
func EncodeString(s string, capacity int) ([]byte, error) {
	if capacity < 0 || capacity > s7runtime.MaxStringCapacity {
		return nil, errorf(s7runtime.String, "capacity", nil, "capacity %d out of range 0..%d", capacity, s7runtime.MaxStringCapacity)
	}
	payload, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errorf(s7runtime.String, "payload", nil, "%q is not representable in latin-1", s)
	}
	if len(payload) > capacity {
		return nil, errorf(s7runtime.String, "length", nil, "length %d exceeds capacity %d", len(payload), capacity)
	}
	out := make([]byte, 2+capacity)
	out[0] = byte(capacity)
	out[1] = byte(len(payload))
	copy(out[2:], payload)
	return out, nil
}

// DecodeWString decodes an S7 WSTRING from data.
func DecodeWString(data []byte) (string, error) {
	if len(data) < 4 {
		return "", errorf(s7runtime.WString, "header", data, "need 4 header bytes, got %d", len(data))
	}
	capacity, length := int(binutil.ParseUint16(data)), int(binutil.ParseUint16(data[2:]))
	if length > capacity {
		return "", errorf(s7runtime.WString, "length", data[:4], "length %d exceeds capacity %d", length, capacity)
	}
	if len(data) < 4+2*length {
		return "", errorf(s7runtime.WString, "payload", data[:4], "length %d but only %d payload bytes", length, len(data)-4)
	}
	s, err := utf16be.NewDecoder().Bytes(data[4 : 4+2*length])
	if err != nil {
		return "", errorf(s7runtime.WString, "payload", data[4:4+2*length], "%v", err)
	}
	return string(s), nil
}

// EncodeWString encodes s as an S7 WSTRING of the given capacity, 4+2*capacity bytes.
func EncodeWString(s string, capacity int) ([]byte, error) {
	if capacity < 0 || capacity > s7runtime.MaxWStringCapacity {
		return nil, errorf(s7runtime.WString, "capacity", nil, "capacity %d out of range 0..%d", capacity, s7runtime.MaxWStringCapacity)
	}
	payload, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errorf(s7runtime.WString, "payload", nil, "%v", err)
	}
	length := len(payload) / 2
	if length > capacity {
		return nil, errorf(s7runtime.WString, "length", nil, "length %d exceeds capacity %d", length, capacity)
	}
	out := make([]byte, 4+2*capacity)
	binutil.WriteUint16(out, uint16(capacity))
	binutil.WriteUint16(out[2:], uint16(length))
	copy(out[4:], payload)
	return out, nil
}
