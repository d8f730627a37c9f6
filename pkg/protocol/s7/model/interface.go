package model

import (
	"fmt"
	"harnss7/pkg/protocol/s7/cotp"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"k8s.io/apimachinery/pkg/util/sets"
	"strings"
)

var _ S7Modeler = (*S7200)(nil)
var _ S7Modeler = (*S7300)(nil)
var _ S7Modeler = (*S7400)(nil)
var _ S7Modeler = (*S71200)(nil)
var _ S7Modeler = (*S71500)(nil)

var S7Modelers = map[string]S7Modeler{
	"s7200":  &S7200{},
	"s7300":  &S7300{},
	"s7400":  &S7400{},
	"s71200": &S71200{},
	"s71500": &S71500{},
}

// CPUNames the accepted cpu class names
func CPUNames() sets.String {
	return sets.StringKeySet(S7Modelers)
}

// S7Modeler derives the addressing of one cpu class.
type S7Modeler interface {
	// TSAP returns the local and remote transport service access points.
	TSAP(rack, slot uint8) (local uint16, remote uint16, err error)
}

// Lookup finds the modeler of a cpu class, ignoring case, dashes and underscores.
func Lookup(cpu string) (S7Modeler, error) {
	name := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(cpu))
	m, ok := S7Modelers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported s7 cpu %q, expected one of %v", cpu, CPUNames().List())
	}
	return m, nil
}

const (
	MaxRack = 7
	MaxSlot = 31

	// tpduSize2048 tpdu size parameter value 2^11
	tpduSize2048 = 0x0b
)

func checkRackSlot(rack, slot uint8) error {
	if rack > MaxRack {
		return &s7runtime.InvalidAddressError{Address: fmt.Sprintf("rack %d slot %d", rack, slot), Token: fmt.Sprint(rack), Reason: "rack out of range 0..7"}
	}
	if slot > MaxSlot {
		return &s7runtime.InvalidAddressError{Address: fmt.Sprintf("rack %d slot %d", rack, slot), Token: fmt.Sprint(slot), Reason: "slot out of range 0..31"}
	}
	return nil
}

// rackSlotTSAP remote tsap 0x03 (s7 basic communication) with rack and slot in the low byte
func rackSlotTSAP(local uint16, rack, slot uint8) (uint16, uint16, error) {
	if err := checkRackSlot(rack, slot); err != nil {
		return 0, 0, err
	}
	return local, 0x0300 | uint16(rack)<<5 | uint16(slot), nil
}

// ConnectionRequest the complete TPKT framed COTP connection request.
func ConnectionRequest(m S7Modeler, rack, slot uint8) ([]byte, error) {
	local, remote, err := m.TSAP(rack, slot)
	if err != nil {
		return nil, err
	}
	return cotp.Frame([]byte{
		0x11,                          // 长度
		cotp.PDUTypeConnectionRequest, // CR
		0x00, 0x00,                    // destination reference
		0x00, 0x2e,                    // source reference
		0x00,                          // class 0
		0xc1, 0x02,                    // calling tsap
		byte(local >> 8), byte(local),
		0xc2, 0x02, // called tsap
		byte(remote >> 8), byte(remote),
		0xc0, 0x01, tpduSize2048,
	}), nil
}
