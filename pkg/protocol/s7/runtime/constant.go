package runtime

type MemoryArea int8
type ValueType int8

const (
	I MemoryArea = iota
	Q
	M
	DB
	T
	C
)

var MemoryAreaToString = map[MemoryArea]string{
	I:  "I",
	Q:  "Q",
	M:  "M",
	DB: "DB",
	T:  "T",
	C:  "C",
}

var StringToMemoryArea = map[string]MemoryArea{
	"I":  I,
	"E":  I,
	"Q":  Q,
	"A":  Q,
	"O":  Q,
	"M":  M,
	"DB": DB,
	"T":  T,
	"C":  C,
	"Z":  C,
}

// MemoryAreaCode area byte of the s7-any pointer
// 0x81 I   0x82 Q  0x83 M  0x84 DB  0x1c C   0x1d T
var MemoryAreaCode = map[MemoryArea]uint8{
	I:  0x81,
	Q:  0x82,
	M:  0x83,
	DB: 0x84,
	T:  0x1d,
	C:  0x1c,
}

func (a MemoryArea) String() string {
	if s, ok := MemoryAreaToString[a]; ok {
		return s
	}
	return "UNKNOWN"
}

const (
	Bit ValueType = iota
	Byte
	Word
	Int
	DWord
	DInt
	Real
	LReal
	LWord
	LInt
	String
	WString
	Timer
	Counter
	DateTime
	DateTimeLong
)

var ValueTypeToString = map[ValueType]string{
	Bit:          "BIT",
	Byte:         "BYTE",
	Word:         "WORD",
	Int:          "INT",
	DWord:        "DWORD",
	DInt:         "DINT",
	Real:         "REAL",
	LReal:        "LREAL",
	LWord:        "LWORD",
	LInt:         "LINT",
	String:       "STRING",
	WString:      "WSTRING",
	Timer:        "TIMER",
	Counter:      "COUNTER",
	DateTime:     "DATE_AND_TIME",
	DateTimeLong: "DTL",
}

var StringToValueType = map[string]ValueType{
	"BIT":           Bit,
	"BOOL":          Bit,
	"BYTE":          Byte,
	"WORD":          Word,
	"INT":           Int,
	"DWORD":         DWord,
	"DINT":          DInt,
	"REAL":          Real,
	"LREAL":         LReal,
	"LWORD":         LWord,
	"LINT":          LInt,
	"STRING":        String,
	"WSTRING":       WString,
	"TIMER":         Timer,
	"COUNTER":       Counter,
	"DATE_AND_TIME": DateTime,
	"DT":            DateTime,
	"DTL":           DateTimeLong,
}

// ValueTypeSize fixed byte length of one element, 0 for the capacity-derived strings.
// Bit is reported as a whole byte, bit arrays are sized by MemoryReference.ByteLength.
var ValueTypeSize = map[ValueType]int{
	Bit:          1,
	Byte:         1,
	Word:         2,
	Int:          2,
	DWord:        4,
	DInt:         4,
	Real:         4,
	LReal:        8,
	LWord:        8,
	LInt:         8,
	String:       0,
	WString:      0,
	Timer:        2,
	Counter:      2,
	DateTime:     8,
	DateTimeLong: 12,
}

func (t ValueType) String() string {
	if s, ok := ValueTypeToString[t]; ok {
		return s
	}
	return "UNKNOWN"
}

const (
	MaxStringCapacity  = 254
	MaxWStringCapacity = 16382
	// MaxBitAddress the any-pointer carries byte*8+bit in 24 bits
	MaxBitAddress = 1<<24 - 1
)

// ReturnCodeSuccess data item return code of a successful read or write item
const ReturnCodeSuccess uint8 = 0xff

var ReturnCodeToString = map[uint8]string{
	0x00: "reserved",
	0x01: "hardware fault",
	0x03: "accessing the object not allowed",
	0x05: "invalid address",
	0x06: "data type not supported",
	0x07: "data type inconsistent",
	0x0a: "object does not exist",
	0xff: "success",
}

var ErrorClassToString = map[uint8]string{
	0x00: "no error",
	0x81: "application relationship error",
	0x82: "object definition error",
	0x83: "no resources available",
	0x84: "error on service processing",
	0x85: "error on supplies",
	0x87: "access error",
}
