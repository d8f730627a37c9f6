package s7

import (
	"context"
	"fmt"
	"go.uber.org/atomic"
	"harnss7/pkg/protocol/s7/cotp"
	"harnss7/pkg/protocol/s7/pdu"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/binutil"
	"net"
	"sync"
	"testing"
	"time"
)

// fakePLC answers the handshake, read and write jobs on in-memory areas.
type fakePLC struct {
	pduSize uint16
	// segment splits responses into data units of this many bytes
	segment int
	// confirmType overrides the connection confirm tpdu type
	confirmType byte
	// badReference answers jobs with a pdu reference that was never sent
	badReference bool
	// missing data blocks answer with "object does not exist"
	missing map[int]bool

	// hold blocks the response of every read or write job until closed, received
	// reports each job before it is answered
	hold     chan struct{}
	received chan struct{}
	// stall stops reading jobs after the setup until closed
	stall chan struct{}

	mu     sync.Mutex
	memory map[string][]byte
	jobs   *atomic.Int32
	items  [][]int
	dials  *atomic.Int32
}

func newFakePLC(pduSize uint16) *fakePLC {
	return &fakePLC{
		pduSize:     pduSize,
		confirmType: cotp.PDUTypeConnectionConfirm,
		missing:     map[int]bool{},
		memory:      map[string][]byte{},
		jobs:        atomic.NewInt32(0),
		dials:       atomic.NewInt32(0),
	}
}

func (f *fakePLC) dial(ctx context.Context, network, address string) (net.Conn, error) {
	f.dials.Inc()
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakePLC) options() ConnectionOptions {
	return ConnectionOptions{
		Address: &s7runtime.S7Address{Location: "plc.local", Option: &s7runtime.S7AddressOption{Rack: 0, Slot: 1}},
		CPU:     "s71500",
		Timeout: 5 * time.Second,
		Dial:    f.dial,
	}
}

func (f *fakePLC) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(f.options())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func key(area byte, db int) string {
	return fmt.Sprintf("%02x/%d", area, db)
}

// bytes returns n bytes of an area at offset, growing it as needed. Callers hold mu.
func (f *fakePLC) bytes(area byte, db int, offset, n int) []byte {
	k := key(area, db)
	mem := f.memory[k]
	if len(mem) < offset+n {
		grown := make([]byte, offset+n)
		copy(grown, mem)
		mem = grown
		f.memory[k] = mem
	}
	return mem[offset : offset+n]
}

func (f *fakePLC) load(area s7runtime.MemoryArea, db int, offset int, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.bytes(s7runtime.MemoryAreaCode[area], db, offset, len(data)), data)
}

func (f *fakePLC) peek(area s7runtime.MemoryArea, db int, offset int, n int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return binutil.Dup(f.bytes(s7runtime.MemoryAreaCode[area], db, offset, n))
}

func (f *fakePLC) requestItems() [][]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]int(nil), f.items...)
}

func (f *fakePLC) send(conn net.Conn, msg []byte) error {
	if f.segment > 0 {
		_, err := conn.Write(cotp.Segment(msg, f.segment))
		return err
	}
	return cotp.WriteTSDU(conn, msg)
}

func (f *fakePLC) serve(conn net.Conn) {
	defer conn.Close()
	cr, err := cotp.ReadTPDU(conn)
	if err != nil || cr.Type != cotp.PDUTypeConnectionRequest {
		return
	}
	if _, err := conn.Write(cotp.Frame([]byte{0x06, f.confirmType, 0x00, 0x2e, 0x00, 0x01, 0x00})); err != nil {
		return
	}
	for {
		msg, err := cotp.ReadTSDU(conn, 0)
		if err != nil {
			return
		}
		var resp []byte
		switch msg[pdu.JobHeaderLength] {
		case pdu.FunctionSetupCommunication:
			if err := f.send(conn, f.setup(msg)); err != nil {
				return
			}
			if f.stall != nil {
				<-f.stall
			}
			continue
		case pdu.FunctionRead:
			resp = f.read(msg)
		case pdu.FunctionWrite:
			resp = f.write(msg)
		default:
			return
		}
		f.jobs.Inc()
		if f.received != nil {
			f.received <- struct{}{}
		}
		if f.hold != nil {
			<-f.hold
		}
		if f.badReference {
			binutil.WriteUint16(resp[4:], binutil.ParseUint16(resp[4:])+1)
		}
		if err := f.send(conn, resp); err != nil {
			return
		}
	}
}

func ackHeader(job []byte, param []byte, data []byte) []byte {
	header := []byte{pdu.ProtocolID, pdu.MessageTypeAckData, 0x00, 0x00, job[4], job[5], 0, 0, 0, 0, 0x00, 0x00}
	binutil.WriteUint16(header[6:], uint16(len(param)))
	binutil.WriteUint16(header[8:], uint16(len(data)))
	return append(append(header, param...), data...)
}

func (f *fakePLC) setup(msg []byte) []byte {
	requested := binutil.ParseUint16(msg[16:])
	size := f.pduSize
	if requested < size {
		size = requested
	}
	param := []byte{pdu.FunctionSetupCommunication, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00}
	binutil.WriteUint16(param[6:], size)
	return ackHeader(msg, param, nil)
}

type fakeItem struct {
	transport byte
	count     int
	db        int
	area      byte
	address   int
}

func parseItems(msg []byte) []fakeItem {
	n := int(msg[pdu.JobHeaderLength+1])
	items := make([]fakeItem, n)
	for i := range items {
		raw := msg[pdu.JobHeaderLength+2+i*pdu.ItemRequestLength:]
		items[i] = fakeItem{
			transport: raw[3],
			count:     int(binutil.ParseUint16(raw[4:])),
			db:        int(binutil.ParseUint16(raw[6:])),
			area:      raw[8],
			address:   int(binutil.ParseUint24(raw[9:])),
		}
	}
	return items
}

func (it fakeItem) timerOrCounter() bool {
	return it.area == s7runtime.MemoryAreaCode[s7runtime.T] || it.area == s7runtime.MemoryAreaCode[s7runtime.C]
}

func (f *fakePLC) record(items []fakeItem) {
	lengths := make([]int, len(items))
	for i, it := range items {
		lengths[i] = it.count
	}
	f.items = append(f.items, lengths)
}

func (f *fakePLC) read(msg []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := parseItems(msg)
	f.record(items)
	var data []byte
	for i, it := range items {
		last := i == len(items)-1
		if f.missing[it.db] {
			data = append(data, 0x0a, 0x00, 0x00, 0x00)
			continue
		}
		var payload []byte
		item := []byte{s7runtime.ReturnCodeSuccess, pdu.DataTransportSizeByte, 0, 0}
		if it.timerOrCounter() {
			payload = f.bytes(it.area, 0, it.address*2, it.count*2)
			item[1] = pdu.DataTransportSizeOctet
			binutil.WriteUint16(item[2:], uint16(len(payload)))
		} else {
			payload = f.bytes(it.area, it.db, it.address>>3, it.count)
			binutil.WriteUint16(item[2:], uint16(len(payload)*8))
		}
		data = append(append(data, item...), payload...)
		if len(payload)%2 != 0 && !last {
			data = append(data, 0x00)
		}
	}
	return ackHeader(msg, []byte{pdu.FunctionRead, byte(len(items))}, data)
}

func (f *fakePLC) write(msg []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := parseItems(msg)
	f.record(items)
	paramLen := int(binutil.ParseUint16(msg[6:]))
	data := msg[pdu.JobHeaderLength+paramLen:]
	codes := make([]byte, len(items))
	for i, it := range items {
		ts := data[1]
		length := int(binutil.ParseUint16(data[2:]))
		if ts == pdu.DataTransportSizeBit || ts == pdu.DataTransportSizeByte {
			length = (length + 7) / 8
		}
		payload := data[4 : 4+length]
		consumed := 4 + length
		if length%2 != 0 && i != len(items)-1 {
			consumed++
		}
		data = data[consumed:]

		codes[i] = s7runtime.ReturnCodeSuccess
		switch {
		case f.missing[it.db]:
			codes[i] = 0x0a
		case it.transport == pdu.TransportSizeBit:
			b := f.bytes(it.area, it.db, it.address>>3, 1)
			if payload[0] != 0 {
				b[0] |= 1 << (it.address & 0x07)
			} else {
				b[0] &^= 1 << (it.address & 0x07)
			}
		case it.timerOrCounter():
			copy(f.bytes(it.area, 0, it.address*2, len(payload)), payload)
		default:
			copy(f.bytes(it.area, it.db, it.address>>3, len(payload)), payload)
		}
	}
	return ackHeader(msg, []byte{pdu.FunctionWrite, byte(len(items))}, codes)
}
