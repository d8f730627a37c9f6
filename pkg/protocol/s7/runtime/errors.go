package runtime

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNotConnected is returned by every operation issued on a connection that is not Open.
var ErrNotConnected = errors.New("s7 connection is not open")

// FramingError malformed or incomplete TPKT/COTP data. Always fatal to the connection.
type FramingError struct {
	Reason string
	Data   []byte
}

func (e *FramingError) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("s7 framing error: %s", e.Reason)
	}
	return fmt.Sprintf("s7 framing error: %s (received % x)", e.Reason, e.Data)
}

// HandshakeError the connection request was rejected or the setup response was malformed.
type HandshakeError struct {
	Stage    string
	Reason   string
	Expected interface{}
	Actual   interface{}
}

func (e *HandshakeError) Error() string {
	if e.Expected == nil && e.Actual == nil {
		return fmt.Sprintf("s7 %s handshake failed: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("s7 %s handshake failed: %s, expected %v, got %v", e.Stage, e.Reason, e.Expected, e.Actual)
}

// ProtocolError a controller reported failure for a single item, or for the whole
// request when ErrorClass is not zero. The connection stays usable.
type ProtocolError struct {
	Item       int
	Code       uint8
	ErrorClass uint8
	ErrorCode  uint8
}

func (e *ProtocolError) Error() string {
	if e.ErrorClass != 0 {
		class, ok := ErrorClassToString[e.ErrorClass]
		if !ok {
			class = "unknown error class"
		}
		return fmt.Sprintf("s7 request failed: %s (class 0x%02x, code 0x%02x)", class, e.ErrorClass, e.ErrorCode)
	}
	name, ok := ReturnCodeToString[e.Code]
	if !ok {
		name = "unknown return code"
	}
	return fmt.Sprintf("s7 item %d failed: %s (0x%02x)", e.Item, name, e.Code)
}

// InvalidAddressError local validation failure of an address or memory reference.
type InvalidAddressError struct {
	Address string
	Token   string
	Reason  string
}

func (e *InvalidAddressError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid s7 address %q: %s", e.Address, e.Reason)
	}
	return fmt.Sprintf("invalid s7 address %q: %s at %q", e.Address, e.Reason, e.Token)
}

// PduSizeExceededError the request does not fit the protocol or the negotiated pdu.
type PduSizeExceededError struct {
	Items    int
	Required int
	Limit    int
}

func (e *PduSizeExceededError) Error() string {
	if e.Required == 0 {
		return fmt.Sprintf("s7 request with %d items exceeds the limit of %d items", e.Items, e.Limit)
	}
	return fmt.Sprintf("s7 request with %d items needs %d bytes, negotiated pdu is %d", e.Items, e.Required, e.Limit)
}

// TransportError the underlying stream failed. Fatal to the connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("s7 transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CancellationError the context ended. Fatal is set when bytes had already reached
// the transport and the connection was closed.
type CancellationError struct {
	Fatal bool
	Err   error
}

func (e *CancellationError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("s7 request cancelled after send, connection closed: %v", e.Err)
	}
	return fmt.Sprintf("s7 request cancelled: %v", e.Err)
}

func (e *CancellationError) Unwrap() error {
	return e.Err
}

// DecodeError a value could not be encoded or decoded, Field names the offending part.
type DecodeError struct {
	Type   ValueType
	Field  string
	Reason string
	Data   []byte
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("s7 %s %s: %s", e.Type, e.Field, e.Reason)
	if len(e.Data) > 0 {
		msg += " (" + hex.EncodeToString(e.Data) + ")"
	}
	return msg
}

// IsFatal reports whether err invalidates the connection it happened on.
func IsFatal(err error) bool {
	var fe *FramingError
	var he *HandshakeError
	var te *TransportError
	var ce *CancellationError
	switch {
	case errors.As(err, &fe), errors.As(err, &he), errors.As(err, &te):
		return true
	case errors.As(err, &ce):
		return ce.Fatal
	}
	return false
}
