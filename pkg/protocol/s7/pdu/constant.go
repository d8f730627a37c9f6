package pdu

const (
	ProtocolID = 0x32

	// ROSCTR
	MessageTypeJob     = 0x01
	MessageTypeAck     = 0x02
	MessageTypeAckData = 0x03

	FunctionSetupCommunication = 0xf0
	FunctionRead               = 0x04
	FunctionWrite              = 0x05

	// item transport size 0x01 BIT 0x02 BYTE 0x1c COUNTER 0x1d TIMER
	TransportSizeBit     = 0x01
	TransportSizeByte    = 0x02
	TransportSizeCounter = 0x1c
	TransportSizeTimer   = 0x1d

	// data item transport size, length in bits for BIT/BYTE/INT
	DataTransportSizeNull  = 0x00
	DataTransportSizeBit   = 0x03
	DataTransportSizeByte  = 0x04
	DataTransportSizeInt   = 0x05
	DataTransportSizeReal  = 0x07
	DataTransportSizeOctet = 0x09

	// item specification: 0x12 variable spec, 0x0a length of the rest, 0x10 s7-any syntax
	itemSpecification = 0x12
	itemSpecLength    = 0x0a
	itemSyntaxAny     = 0x10

	JobHeaderLength   = 10
	AckHeaderLength   = 12
	ItemRequestLength = 12
	dataItemHeader    = 4

	// MaxItems items per request, bounded by the item count byte the controllers accept
	MaxItems = 20

	// ReadOverhead bytes of a single item read response besides the payload
	ReadOverhead = AckHeaderLength + 2 + dataItemHeader
	// WriteOverhead bytes of a single item write request besides the payload
	WriteOverhead = JobHeaderLength + 2 + ItemRequestLength + dataItemHeader

	// DefaultPDUSize requested during setup
	DefaultPDUSize = 960
)
