package pdu

import (
	"fmt"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
)

// CheckReturnCode maps a data item return code to nil or a ProtocolError.
func CheckReturnCode(item int, code uint8) error {
	if code == s7runtime.ReturnCodeSuccess {
		return nil
	}
	return &s7runtime.ProtocolError{Item: item, Code: code}
}

// ackData the validated parts of an ack-data message
type ackData struct {
	param []byte
	data  []byte
}

func mismatch(msg []byte, format string, args ...interface{}) error {
	return &s7runtime.FramingError{Reason: fmt.Sprintf(format, args...), Data: msg}
}

// parseAckData checks header, pdu reference, error class and parameter of a response.
func parseAckData(msg []byte, ref uint16, function byte, items int) (*ackData, error) {
	if len(msg) < AckHeaderLength {
		return nil, mismatch(msg, "response of %d bytes is shorter than the ack header", len(msg))
	}
	if msg[0] != ProtocolID {
		return nil, mismatch(msg, "protocol id 0x%02x, expected 0x%02x", msg[0], ProtocolID)
	}
	if msg[1] != MessageTypeAckData && msg[1] != MessageTypeAck {
		return nil, mismatch(msg, "message type 0x%02x, expected ack data", msg[1])
	}
	if got := binutil.ParseUint16(msg[4:]); got != ref {
		return nil, mismatch(msg, "pdu reference %d, expected %d", got, ref)
	}
	paramLen := int(binutil.ParseUint16(msg[6:]))
	dataLen := int(binutil.ParseUint16(msg[8:]))
	if errClass, errCode := msg[10], msg[11]; errClass != 0 || errCode != 0 {
		return nil, &s7runtime.ProtocolError{Item: -1, ErrorClass: errClass, ErrorCode: errCode}
	}
	if msg[1] != MessageTypeAckData {
		return nil, mismatch(msg, "ack without data and without error")
	}
	if AckHeaderLength+paramLen+dataLen > len(msg) {
		return nil, mismatch(msg, "declared parameter %d and data %d bytes, message has %d", paramLen, dataLen, len(msg)-AckHeaderLength)
	}
	if paramLen < 2 {
		return nil, mismatch(msg, "parameter of %d bytes", paramLen)
	}
	param := msg[AckHeaderLength : AckHeaderLength+paramLen]
	if param[0] != function {
		return nil, mismatch(msg, "function 0x%02x, expected 0x%02x", param[0], function)
	}
	if int(param[1]) != items {
		return nil, mismatch(msg, "response carries %d items, request had %d", param[1], items)
	}
	return &ackData{param: param, data: msg[AckHeaderLength+paramLen : AckHeaderLength+paramLen+dataLen]}, nil
}

// ItemResult data or error of one item of a read response.
type ItemResult struct {
	Data []byte
	Err  error
}

// dataBytes length of a data item in bytes, bit sized transports count bits
func dataBytes(transportSize byte, length int) int {
	switch transportSize {
	case DataTransportSizeBit, DataTransportSizeByte, DataTransportSizeInt:
		return (length + 7) / 8
	}
	return length
}

// ParseReadResponse splits a read response into one result per range. Failed
// items carry a ProtocolError, a malformed message fails as a whole.
func ParseReadResponse(msg []byte, ref uint16, ranges []Range) ([]ItemResult, error) {
	ack, err := parseAckData(msg, ref, FunctionRead, len(ranges))
	if err != nil {
		return nil, err
	}
	results := make([]ItemResult, len(ranges))
	data := ack.data
	for i, r := range ranges {
		if len(data) < dataItemHeader {
			return nil, mismatch(msg, "item %d header truncated", i)
		}
		code, ts := data[0], data[1]
		length := dataBytes(ts, int(binutil.ParseUint16(data[2:])))
		last := i == len(ranges)-1
		if len(data) < dataItemHeader+length {
			return nil, mismatch(msg, "item %d declares %d bytes, %d left", i, length, len(data)-dataItemHeader)
		}
		if err := CheckReturnCode(i, code); err != nil {
			results[i].Err = err
		} else if length != r.DataLength() {
			return nil, mismatch(msg, "item %d %s returned %d bytes, expected %d", i, r, length, r.DataLength())
		} else {
			results[i].Data = binutil.Dup(data[dataItemHeader : dataItemHeader+length])
		}
		consumed := dataItemHeader + padded(length, last)
		if consumed > len(data) {
			consumed = len(data)
		}
		data = data[consumed:]
	}
	return results, nil
}

// ParseWriteResponse returns one error slot per written item.
func ParseWriteResponse(msg []byte, ref uint16, items int) ([]error, error) {
	ack, err := parseAckData(msg, ref, FunctionWrite, items)
	if err != nil {
		return nil, err
	}
	if len(ack.data) < items {
		return nil, mismatch(msg, "%d return codes for %d items", len(ack.data), items)
	}
	errs := make([]error, items)
	for i := 0; i < items; i++ {
		errs[i] = CheckReturnCode(i, ack.data[i])
	}
	return errs, nil
}
