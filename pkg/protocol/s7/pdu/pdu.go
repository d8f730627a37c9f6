package pdu

import (
	"fmt"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
)

// Range one contiguous transfer addressed by a single request item.
type Range struct {
	Area       s7runtime.MemoryArea
	DBNumber   int
	ByteOffset int
	BitOffset  int
	// Bit selects the single bit transport, only valid for writes
	Bit bool
	// Length bytes, or elements for timers and counters
	Length int
}

// RangeOf the range read for ref. Bits are read as the bytes that hold them.
func RangeOf(ref s7runtime.MemoryReference) Range {
	r := Range{Area: ref.Area, DBNumber: ref.DBNumber, ByteOffset: ref.ByteOffset}
	switch ref.Area {
	case s7runtime.T, s7runtime.C:
		r.Length = ref.Elements()
	default:
		r.Length = ref.ByteLength()
	}
	return r
}

// WriteRangeOf the range written for ref. A single bit is written with the bit
// transport so neighbouring bits are left alone, bit arrays are written as bytes.
func WriteRangeOf(ref s7runtime.MemoryReference) Range {
	r := RangeOf(ref)
	if ref.ValueType == s7runtime.Bit && ref.Elements() == 1 && ref.Area != s7runtime.T && ref.Area != s7runtime.C {
		r.Bit = true
		r.BitOffset = ref.BitOffset
		r.Length = 1
	}
	return r
}

// DataLength payload bytes carried for the range.
func (r Range) DataLength() int {
	switch {
	case r.Area == s7runtime.T || r.Area == s7runtime.C:
		return 2 * r.Length
	case r.Bit:
		return 1
	}
	return r.Length
}

func (r Range) String() string {
	switch r.Area {
	case s7runtime.T, s7runtime.C:
		return fmt.Sprintf("%s%d[%d]", r.Area, r.ByteOffset, r.Length)
	case s7runtime.DB:
		return fmt.Sprintf("DB%d.%d.%d[%d]", r.DBNumber, r.ByteOffset, r.BitOffset, r.Length)
	}
	return fmt.Sprintf("%s%d.%d[%d]", r.Area, r.ByteOffset, r.BitOffset, r.Length)
}

// Validate local checks of a range before any request is built.
func (r Range) Validate() error {
	invalid := func(reason string) error {
		return &s7runtime.InvalidAddressError{Address: r.String(), Reason: reason}
	}
	if _, ok := s7runtime.MemoryAreaCode[r.Area]; !ok {
		return invalid("unknown memory area")
	}
	if r.Area == s7runtime.DB && (r.DBNumber < 1 || r.DBNumber > 0xffff) {
		return invalid("data block number out of range 1..65535")
	}
	if r.Length < 1 || r.Length > 0xffff {
		return invalid("length out of range 1..65535")
	}
	if r.ByteOffset < 0 || r.BitOffset < 0 || r.BitOffset > 7 {
		return invalid("negative offset or bit out of range")
	}
	if r.address() > s7runtime.MaxBitAddress {
		return invalid("offset exceeds the addressable range")
	}
	return nil
}

// address the 24 bit any-pointer address, byte*8+bit or the raw timer/counter number
func (r Range) address() int {
	switch r.Area {
	case s7runtime.T, s7runtime.C:
		return r.ByteOffset
	}
	return r.ByteOffset*8 + r.BitOffset
}

func (r Range) transportSize() byte {
	switch {
	case r.Area == s7runtime.T:
		return TransportSizeTimer
	case r.Area == s7runtime.C:
		return TransportSizeCounter
	case r.Bit:
		return TransportSizeBit
	}
	return TransportSizeByte
}

// EncodeItem the 12 byte request item of r.
func EncodeItem(r Range) []byte {
	item := []byte{
		itemSpecification,
		itemSpecLength,
		itemSyntaxAny,
		r.transportSize(),
		0x00, 0x00, // count
		0x00, 0x00, // db number
		s7runtime.MemoryAreaCode[r.Area],
		0x00, 0x00, 0x00, // address, byte(18-3) bit(2-0)
	}
	binutil.WriteUint16(item[4:], uint16(r.Length))
	binutil.WriteUint16(item[6:], uint16(r.DBNumber))
	binutil.WriteUint24(item[9:], uint32(r.address()))
	return item
}

func padded(n int, last bool) int {
	if n%2 != 0 && !last {
		return n + 1
	}
	return n
}

// ReadRequestSize job header, function, count and items
func ReadRequestSize(n int) int {
	return JobHeaderLength + 2 + ItemRequestLength*n
}

// ReadResponseSize ack header, function, count and every data item with its padding
func ReadResponseSize(ranges []Range) int {
	size := AckHeaderLength + 2
	for i, r := range ranges {
		size += dataItemHeader + padded(r.DataLength(), i == len(ranges)-1)
	}
	return size
}

func WriteRequestSize(ranges []Range) int {
	size := ReadRequestSize(len(ranges))
	for i, r := range ranges {
		size += dataItemHeader + padded(r.DataLength(), i == len(ranges)-1)
	}
	return size
}

func WriteResponseSize(n int) int {
	return AckHeaderLength + 2 + n
}

func checkCount(n int) error {
	if n < 1 || n > MaxItems {
		return &s7runtime.PduSizeExceededError{Items: n, Limit: MaxItems}
	}
	return nil
}

// CheckRead verifies that a read of ranges fits pduSize in both directions.
func CheckRead(ranges []Range, pduSize int) error {
	if err := checkCount(len(ranges)); err != nil {
		return err
	}
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if size := ReadRequestSize(len(ranges)); size > pduSize {
		return &s7runtime.PduSizeExceededError{Items: len(ranges), Required: size, Limit: pduSize}
	}
	if size := ReadResponseSize(ranges); size > pduSize {
		return &s7runtime.PduSizeExceededError{Items: len(ranges), Required: size, Limit: pduSize}
	}
	return nil
}

// CheckWrite verifies that a write of ranges fits pduSize.
func CheckWrite(ranges []Range, pduSize int) error {
	if err := checkCount(len(ranges)); err != nil {
		return err
	}
	for _, r := range ranges {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	if size := WriteRequestSize(ranges); size > pduSize {
		return &s7runtime.PduSizeExceededError{Items: len(ranges), Required: size, Limit: pduSize}
	}
	if size := WriteResponseSize(len(ranges)); size > pduSize {
		return &s7runtime.PduSizeExceededError{Items: len(ranges), Required: size, Limit: pduSize}
	}
	return nil
}

func jobHeader(ref uint16, paramLen, dataLen int) []byte {
	header := []byte{
		ProtocolID,
		MessageTypeJob,
		0x00, 0x00, // reserved
		0x00, 0x00, // pdu reference
		0x00, 0x00, // parameter length
		0x00, 0x00, // data length
	}
	binutil.WriteUint16(header[4:], ref)
	binutil.WriteUint16(header[6:], uint16(paramLen))
	binutil.WriteUint16(header[8:], uint16(dataLen))
	return header
}

// ReadRequest the s7 message reading ranges, without tpkt/cotp framing.
func ReadRequest(ref uint16, ranges []Range) ([]byte, error) {
	if err := checkCount(len(ranges)); err != nil {
		return nil, err
	}
	paramLen := 2 + ItemRequestLength*len(ranges)
	msg := make([]byte, 0, JobHeaderLength+paramLen)
	msg = append(msg, jobHeader(ref, paramLen, 0)...)
	msg = append(msg, FunctionRead, byte(len(ranges)))
	for _, r := range ranges {
		msg = append(msg, EncodeItem(r)...)
	}
	return msg, nil
}

// dataItem the write data item: reserved, transport size, length, payload
func dataItem(r Range, payload []byte, last bool) []byte {
	item := make([]byte, dataItemHeader, dataItemHeader+len(payload)+1)
	switch {
	case r.Area == s7runtime.T || r.Area == s7runtime.C:
		item[1] = DataTransportSizeOctet
		binutil.WriteUint16(item[2:], uint16(len(payload)))
	case r.Bit:
		item[1] = DataTransportSizeBit
		binutil.WriteUint16(item[2:], 1)
	default:
		item[1] = DataTransportSizeByte
		binutil.WriteUint16(item[2:], uint16(len(payload)*8))
	}
	item = append(item, payload...)
	if len(payload)%2 != 0 && !last {
		item = append(item, 0x00)
	}
	return item
}

// WriteRequest the s7 message writing payloads[i] to ranges[i].
func WriteRequest(ref uint16, ranges []Range, payloads [][]byte) ([]byte, error) {
	if err := checkCount(len(ranges)); err != nil {
		return nil, err
	}
	if len(payloads) != len(ranges) {
		return nil, fmt.Errorf("%d payloads for %d items", len(payloads), len(ranges))
	}
	var data []byte
	for i, r := range ranges {
		if len(payloads[i]) != r.DataLength() {
			return nil, fmt.Errorf("item %d %s expects %d bytes, got %d", i, r, r.DataLength(), len(payloads[i]))
		}
		data = append(data, dataItem(r, payloads[i], i == len(ranges)-1)...)
	}
	paramLen := 2 + ItemRequestLength*len(ranges)
	msg := make([]byte, 0, JobHeaderLength+paramLen+len(data))
	msg = append(msg, jobHeader(ref, paramLen, len(data))...)
	msg = append(msg, FunctionWrite, byte(len(ranges)))
	for _, r := range ranges {
		msg = append(msg, EncodeItem(r)...)
	}
	return append(msg, data...), nil
}
