package cotp

import (
	"errors"
	"fmt"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
	"io"
)

const (
	TPKTVersion      = 0x03
	TPKTHeaderLength = 4

	// PDU types
	PDUTypeConnectionRequest = 0xe0
	PDUTypeConnectionConfirm = 0xd0
	PDUTypeData              = 0xf0

	// dataHeaderLength header length byte of a DT TPDU, excludes itself
	dataHeaderLength = 0x02
	lastDataUnit     = 0x80
	tpduNumberMask   = 0x7f
)

// TPDU one parsed COTP segment.
type TPDU struct {
	Type byte
	// Number and Last are only set for data TPDUs
	Number byte
	Last   bool
	// Params raw header bytes after the type byte
	Params []byte
	Data   []byte
}

// ReadTPDU reads exactly one TPKT frame from r and parses its COTP header.
// Partial reads are looped until the declared length is complete.
func ReadTPDU(r io.Reader) (*TPDU, error) {
	header := make([]byte, TPKTHeaderLength)
	if n, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &s7runtime.FramingError{Reason: "stream ended inside the tpkt header", Data: header[:n]}
		}
		return nil, &s7runtime.TransportError{Op: "read", Err: err}
	}
	if header[0] != TPKTVersion {
		return nil, &s7runtime.FramingError{Reason: fmt.Sprintf("unsupported tpkt version %d", header[0]), Data: header}
	}
	length := int(binutil.ParseUint16(header[2:]))
	if length == 0 {
		return nil, &s7runtime.FramingError{Reason: "tpkt length is 0", Data: header}
	}
	if length < TPKTHeaderLength+2 {
		return nil, &s7runtime.FramingError{Reason: fmt.Sprintf("tpkt length %d cannot hold a cotp header", length), Data: header}
	}

	payload := make([]byte, length-TPKTHeaderLength)
	if n, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &s7runtime.FramingError{
				Reason: fmt.Sprintf("tpkt declared %d bytes, stream ended after %d", length, TPKTHeaderLength+n),
				Data:   append(header, payload[:n]...),
			}
		}
		return nil, &s7runtime.TransportError{Op: "read", Err: err}
	}
	return parseTPDU(payload)
}

func parseTPDU(payload []byte) (*TPDU, error) {
	li := int(payload[0])
	if li < 1 {
		return nil, &s7runtime.FramingError{Reason: "cotp header length too short to hold a pdu type", Data: payload}
	}
	if li+1 > len(payload) {
		return nil, &s7runtime.FramingError{Reason: fmt.Sprintf("cotp header length %d exceeds the tpkt payload of %d bytes", li, len(payload)), Data: payload}
	}
	tpdu := &TPDU{
		Type:   payload[1],
		Params: payload[2 : li+1],
		Data:   payload[li+1:],
	}
	if tpdu.Type == PDUTypeData {
		if li < dataHeaderLength {
			return nil, &s7runtime.FramingError{Reason: "cotp data header without eot/number byte", Data: payload}
		}
		tpdu.Number = payload[2] & tpduNumberMask
		tpdu.Last = payload[2]&lastDataUnit != 0
	}
	return tpdu, nil
}

// ReadTSDU reads data TPDUs until one carries the last-data-unit flag and returns
// the concatenated data. A message growing beyond limit bytes fails with a
// FramingError, a limit of 0 accepts any size.
func ReadTSDU(r io.Reader, limit int) ([]byte, error) {
	var tsdu []byte
	for {
		tpdu, err := ReadTPDU(r)
		if err != nil {
			return nil, err
		}
		if tpdu.Type != PDUTypeData {
			return nil, &s7runtime.FramingError{Reason: fmt.Sprintf("expected a data tpdu, got type 0x%02x", tpdu.Type), Data: tpdu.Data}
		}
		if limit > 0 && len(tsdu)+len(tpdu.Data) > limit {
			return nil, &s7runtime.FramingError{Reason: fmt.Sprintf("message exceeds the limit of %d bytes", limit), Data: tpdu.Data}
		}
		if tsdu == nil && tpdu.Last {
			return tpdu.Data, nil
		}
		tsdu = append(tsdu, tpdu.Data...)
		if tpdu.Last {
			return tsdu, nil
		}
	}
}

// WriteTSDU writes data as a single data TPDU.
func WriteTSDU(w io.Writer, data []byte) error {
	if _, err := w.Write(DataFrame(data)); err != nil {
		return &s7runtime.TransportError{Op: "write", Err: err}
	}
	return nil
}

// Frame prefixes a cotp message with the tpkt header.
func Frame(cotp []byte) []byte {
	frame := make([]byte, TPKTHeaderLength, TPKTHeaderLength+len(cotp))
	frame[0] = TPKTVersion
	binutil.WriteUint16(frame[2:], uint16(TPKTHeaderLength+len(cotp)))
	return append(frame, cotp...)
}

// DataFrame a complete TPKT frame carrying data in one last data TPDU.
func DataFrame(data []byte) []byte {
	cotp := make([]byte, 0, 3+len(data))
	cotp = append(cotp, dataHeaderLength, PDUTypeData, lastDataUnit)
	return Frame(append(cotp, data...))
}

// Segment splits data into data TPDU frames of at most size data bytes each.
// The client never segments outbound messages, controllers and test peers do.
func Segment(data []byte, size int) []byte {
	if size < 1 {
		size = 1
	}
	var out []byte
	number := byte(0)
	for {
		n := len(data)
		if n > size {
			n = size
		}
		flags := number & tpduNumberMask
		if n == len(data) {
			flags |= lastDataUnit
		}
		out = append(out, Frame(append([]byte{dataHeaderLength, PDUTypeData, flags}, data[:n]...))...)
		data = data[n:]
		number++
		if len(data) == 0 {
			return out
		}
	}
}
