package model

// S7200 addressed by fixed tsaps, rack and slot are only range checked.
type S7200 struct {
}

func (s *S7200) TSAP(rack, slot uint8) (uint16, uint16, error) {
	if err := checkRackSlot(rack, slot); err != nil {
		return 0, 0, err
	}
	return 0x1000, 0x1001, nil
}
