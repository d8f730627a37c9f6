package pdu

import (
	"fmt"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
)

const setupResponseLength = 20

// SetupRequest the communication setup job requesting pduSize.
func SetupRequest(pduSize uint16) []byte {
	msg := []byte{
		// s7 header
		ProtocolID, MessageTypeJob,
		0x00, 0x00, // reserved
		0xff, 0xff, // pdu reference
		0x00, 0x08, // parameter length
		0x00, 0x00, // data length
		// s7 parameter
		FunctionSetupCommunication,
		0x00,       // reserved
		0x00, 0x03, // max amq calling
		0x00, 0x03, // max amq called
		0x00, 0x00, // pdu length
	}
	binutil.WriteUint16(msg[16:], pduSize)
	return msg
}

// ParseSetupResponse validates the setup acknowledgement and returns the
// negotiated pdu size, which may be smaller than requested.
func ParseSetupResponse(msg []byte) (uint16, error) {
	if len(msg) < setupResponseLength {
		return 0, &s7runtime.HandshakeError{Stage: "setup", Reason: "response too short", Expected: setupResponseLength, Actual: len(msg)}
	}
	if msg[0] != ProtocolID {
		return 0, &s7runtime.HandshakeError{Stage: "setup", Reason: "unexpected protocol id", Expected: ProtocolID, Actual: msg[0]}
	}
	if msg[1] != MessageTypeAckData {
		return 0, &s7runtime.HandshakeError{Stage: "setup", Reason: "response is not ack data", Expected: MessageTypeAckData, Actual: msg[1]}
	}
	if errClass, errCode := msg[10], msg[11]; errClass != 0 || errCode != 0 {
		return 0, &s7runtime.HandshakeError{Stage: "setup", Reason: "controller rejected the setup", Expected: "class 0x00 code 0x00", Actual: fmt.Sprintf("class 0x%02x code 0x%02x", errClass, errCode)}
	}
	if msg[AckHeaderLength] != FunctionSetupCommunication {
		return 0, &s7runtime.HandshakeError{Stage: "setup", Reason: "unexpected function", Expected: FunctionSetupCommunication, Actual: msg[AckHeaderLength]}
	}
	pduSize := binutil.ParseUint16(msg[18:])
	if int(pduSize) < ReadOverhead+1 || int(pduSize) < WriteOverhead+1 {
		return 0, &s7runtime.HandshakeError{Stage: "setup", Reason: "negotiated pdu too small for any transfer", Expected: WriteOverhead + 1, Actual: pduSize}
	}
	return pduSize, nil
}
