package runtime

import (
	"strings"
)

// MemoryReference a normalized location inside the controller.
// BitOffset is only meaningful for Bit references, Capacity only for strings.
type MemoryReference struct {
	Area       MemoryArea
	DBNumber   int
	ByteOffset int
	BitOffset  int
	ValueType  ValueType
	Count      int
	Capacity   int
}

// Elements count with the zero value treated as one element
func (r MemoryReference) Elements() int {
	if r.Count < 1 {
		return 1
	}
	return r.Count
}

// ElementLength byte length of a single element, bits report one byte.
func (r MemoryReference) ElementLength() int {
	switch r.ValueType {
	case String:
		return 2 + r.Capacity
	case WString:
		return 4 + 2*r.Capacity
	default:
		return ValueTypeSize[r.ValueType]
	}
}

// ByteLength number of bytes transferred for the reference
func (r MemoryReference) ByteLength() int {
	if r.ValueType == Bit {
		return (r.BitOffset + r.Elements() + 7) / 8
	}
	return r.Elements() * r.ElementLength()
}

func (r MemoryReference) String() string {
	return FormatAddress(r)
}

func (r MemoryReference) Validate() error {
	addr := FormatAddress(r)
	invalid := func(reason string) error {
		return &InvalidAddressError{Address: addr, Reason: reason}
	}
	if _, ok := MemoryAreaCode[r.Area]; !ok {
		return invalid("unknown memory area")
	}
	if _, ok := ValueTypeSize[r.ValueType]; !ok {
		return invalid("unknown value type")
	}
	if r.Area == DB && (r.DBNumber < 1 || r.DBNumber > 0xffff) {
		return invalid("data block number out of range 1..65535")
	}
	if r.Area != DB && r.DBNumber != 0 {
		return invalid("data block number on a non data block area")
	}
	if r.ByteOffset < 0 {
		return invalid("negative offset")
	}
	if r.BitOffset < 0 || r.BitOffset > 7 {
		return invalid("bit offset out of range 0..7")
	}
	if r.Count < 0 || r.Count > 0xffff {
		return invalid("count out of range")
	}
	switch r.Area {
	case T, C:
		if r.ByteOffset > 0xffff {
			return invalid("timer or counter number out of range")
		}
	default:
		if r.ByteOffset*8+r.BitOffset > MaxBitAddress {
			return invalid("offset exceeds the addressable range")
		}
	}
	switch r.ValueType {
	case String:
		if r.Capacity < 0 || r.Capacity > MaxStringCapacity {
			return invalid("string capacity out of range 0..254")
		}
	case WString:
		if r.Capacity < 0 || r.Capacity > MaxWStringCapacity {
			return invalid("wstring capacity out of range 0..16382")
		}
	}
	return nil
}

type Variable struct {
	Name         string      `json:"name"`                   // 变量名称
	Address      string      `json:"address"`                // 变量地址 DB1.DBW0、M10.1、T5
	DataType     *ValueType  `json:"dataType,omitempty"`     // 覆盖地址推导出的类型 REAL、DINT、STRING...
	Count        int         `json:"count,omitempty"`        // 数组长度
	Capacity     int         `json:"capacity,omitempty"`     // 字符串容量
	DefaultValue interface{} `json:"defaultValue,omitempty"` // 默认值
	Value        interface{} `json:"value,omitempty"`        // 值
}

// Reference parses the address and applies the configured type, count and capacity.
func (v *Variable) Reference() (MemoryReference, error) {
	ref, err := ParseAddress(v.Address)
	if err != nil {
		return MemoryReference{}, err
	}
	if v.DataType != nil && *v.DataType != ref.ValueType {
		if ref.ValueType == Bit || *v.DataType == Bit {
			return MemoryReference{}, &InvalidAddressError{Address: v.Address, Token: ValueTypeToString[*v.DataType], Reason: "bit addresses only hold BIT values"}
		}
		if ref.Area == T || ref.Area == C {
			return MemoryReference{}, &InvalidAddressError{Address: v.Address, Token: ValueTypeToString[*v.DataType], Reason: "timer and counter addresses hold their own type"}
		}
		ref.ValueType = *v.DataType
	}
	if v.Count > 0 {
		ref.Count = v.Count
	}
	ref.Capacity = v.Capacity
	if err := ref.Validate(); err != nil {
		return MemoryReference{}, err
	}
	return ref, nil
}

func (v *Variable) SetValue(value interface{}) {
	v.Value = value
}

func (v *Variable) GetValue() interface{} {
	return v.Value
}

func (v *Variable) GetVariableName() string {
	return v.Name
}

type S7Address struct {
	Location string           `json:"location"` // 地址路径
	Option   *S7AddressOption `json:"option"`   // 地址其他参数
}

type S7AddressOption struct {
	Port uint  `json:"port"`           // 端口号
	Rack uint8 `json:"rack,omitempty"` // 机架号
	Slot uint8 `json:"slot,omitempty"` // 槽位号
}

type VariableSlice []*Variable

func (vs VariableSlice) Len() int {
	return len(vs)
}

// Less orders by area, data block and bit address. Unparsable addresses sort last.
func (vs VariableSlice) Less(i, j int) bool {
	ri, errI := vs[i].Reference()
	rj, errJ := vs[j].Reference()
	if errI != nil || errJ != nil {
		return errI == nil
	}
	if ri.Area != rj.Area {
		return ri.Area < rj.Area
	}
	if ri.DBNumber != rj.DBNumber {
		return ri.DBNumber < rj.DBNumber
	}
	if ri.ByteOffset != rj.ByteOffset {
		return ri.ByteOffset < rj.ByteOffset
	}
	return ri.BitOffset < rj.BitOffset
}

func (vs VariableSlice) Swap(i, j int) {
	vs[i], vs[j] = vs[j], vs[i]
}

func (vs VariableSlice) Names() []string {
	names := make([]string, 0, len(vs))
	for _, v := range vs {
		names = append(names, v.Name)
	}
	return names
}

// Find looks a variable up by name, case-insensitively.
func (vs VariableSlice) Find(name string) *Variable {
	for _, v := range vs {
		if strings.EqualFold(v.Name, name) {
			return v
		}
	}
	return nil
}

type ParseVariableResult struct {
	VariableSlice VariableSlice
	Err           []error
}
