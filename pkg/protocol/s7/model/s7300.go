package model

// pgLocalTSAP local tsap of a programming device connection
const pgLocalTSAP = 0x0100

type S7300 struct {
}

func (s *S7300) TSAP(rack, slot uint8) (uint16, uint16, error) {
	return rackSlotTSAP(pgLocalTSAP, rack, slot)
}

type S7400 struct {
}

func (s *S7400) TSAP(rack, slot uint8) (uint16, uint16, error) {
	return rackSlotTSAP(pgLocalTSAP, rack, slot)
}

type S71200 struct {
}

func (s *S71200) TSAP(rack, slot uint8) (uint16, uint16, error) {
	return rackSlotTSAP(pgLocalTSAP, rack, slot)
}
