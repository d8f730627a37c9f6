package model

type S71500 struct {
}

func (s *S71500) TSAP(rack, slot uint8) (uint16, uint16, error) {
	return rackSlotTSAP(0x1002, rack, slot)
}
