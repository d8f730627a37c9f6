package s7

import (
	"context"
	"fmt"
	"go.uber.org/atomic"
	"harnss7/pkg/protocol/s7/cotp"
	"harnss7/pkg/protocol/s7/model"
	"harnss7/pkg/protocol/s7/pdu"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/utils/uuidutil"
	"io"
	"k8s.io/klog/v2"
	"net"
	"strconv"
	"time"
)

type State int32

const (
	Closed State = iota
	TransportOpen
	COTPEstablished
	Open
)

var StateToString = map[State]string{
	Closed:          "closed",
	TransportOpen:   "transportOpen",
	COTPEstablished: "cotpEstablished",
	Open:            "open",
}

func (s State) String() string {
	return StateToString[s]
}

const (
	DefaultPort        = 102
	DefaultTimeout     = 10 * time.Second
	DefaultDialTimeout = 5 * time.Second
)

// DialFunc opens the transport, net.Dialer.DialContext by default.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type ConnectionOptions struct {
	Address *s7runtime.S7Address
	// CPU cpu class name, see model.S7Modelers
	CPU string
	// PDUSize requested during setup, the controller may negotiate it down
	PDUSize uint16
	// Timeout deadline of every request/response exchange
	Timeout     time.Duration
	DialTimeout time.Duration
	Dial        DialFunc
}

// Connection one ISO-on-TCP session with a controller. A request and its response
// are exchanged under the connection lock, independent connections run in parallel.
type Connection struct {
	id       string
	address  string
	modeler  model.S7Modeler
	rack     uint8
	slot     uint8
	request  uint16
	timeout  time.Duration
	dial     DialFunc
	lock     chan struct{}
	conn     net.Conn
	state    *atomic.Int32
	pduSize  *atomic.Uint32
	sequence *atomic.Uint32
}

func NewConnection(opts ConnectionOptions) (*Connection, error) {
	if opts.Address == nil || opts.Address.Location == "" {
		return nil, fmt.Errorf("s7 address location is empty")
	}
	m, err := model.Lookup(opts.CPU)
	if err != nil {
		return nil, err
	}
	port := uint(DefaultPort)
	var rack, slot uint8
	if opts.Address.Option != nil {
		if opts.Address.Option.Port != 0 {
			port = opts.Address.Option.Port
		}
		rack, slot = opts.Address.Option.Rack, opts.Address.Option.Slot
	}
	if _, _, err := m.TSAP(rack, slot); err != nil {
		return nil, err
	}
	c := &Connection{
		id:       uuidutil.NewID("s7"),
		address:  net.JoinHostPort(opts.Address.Location, strconv.FormatUint(uint64(port), 10)),
		modeler:  m,
		rack:     rack,
		slot:     slot,
		request:  opts.PDUSize,
		timeout:  opts.Timeout,
		dial:     opts.Dial,
		lock:     make(chan struct{}, 1),
		state:    atomic.NewInt32(int32(Closed)),
		pduSize:  atomic.NewUint32(0),
		sequence: atomic.NewUint32(0),
	}
	if c.request == 0 {
		c.request = pdu.DefaultPDUSize
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.dial == nil {
		dialTimeout := opts.DialTimeout
		if dialTimeout <= 0 {
			dialTimeout = DefaultDialTimeout
		}
		c.dial = (&net.Dialer{Timeout: dialTimeout}).DialContext
	}
	return c, nil
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Address() string {
	return c.address
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) IsConnected() bool {
	return c.State() == Open
}

// PDUSize the negotiated pdu size, zero until the connection is open.
func (c *Connection) PDUSize() int {
	return int(c.pduSize.Load())
}

// nextReference pdu reference of the next job
func (c *Connection) nextReference() uint16 {
	return uint16(c.sequence.Inc())
}

func (c *Connection) acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &s7runtime.CancellationError{Err: ctx.Err()}
	default:
	}
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return &s7runtime.CancellationError{Err: ctx.Err()}
	}
}

func (c *Connection) release() {
	<-c.lock
}

// Open connects the transport, runs the cotp and setup handshakes and negotiates
// the pdu size. Opening an open connection is a no-op.
func (c *Connection) Open(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	if c.State() == Open {
		return nil
	}

	cr, err := model.ConnectionRequest(c.modeler, c.rack, c.slot)
	if err != nil {
		return err
	}
	conn, err := c.dial(ctx, "tcp", c.address)
	if err != nil {
		klog.V(2).InfoS("Failed to connect s7 device", "id", c.id, "address", c.address, "error", err)
		if ctx.Err() != nil {
			return &s7runtime.CancellationError{Fatal: true, Err: ctx.Err()}
		}
		return &s7runtime.TransportError{Op: "dial", Err: err}
	}
	c.conn = conn
	c.state.Store(int32(TransportOpen))

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	stop := watch(ctx, conn)
	pduSize, err := c.handshake(conn, cr)
	interrupted := stop()
	if err != nil {
		c.dispose()
		klog.V(2).InfoS("Failed to open s7 connection", "id", c.id, "address", c.address, "error", err)
		if interrupted || ctx.Err() != nil {
			return &s7runtime.CancellationError{Fatal: true, Err: ctx.Err()}
		}
		return err
	}
	c.pduSize.Store(uint32(pduSize))
	c.state.Store(int32(Open))
	klog.V(2).InfoS("Connected s7 device", "id", c.id, "address", c.address, "requestedPDU", c.request, "pdu", pduSize)
	return nil
}

func (c *Connection) handshake(conn net.Conn, cr []byte) (uint16, error) {
	if _, err := conn.Write(cr); err != nil {
		return 0, &s7runtime.TransportError{Op: "write", Err: err}
	}
	tpdu, err := cotp.ReadTPDU(conn)
	if err != nil {
		return 0, err
	}
	if tpdu.Type != cotp.PDUTypeConnectionConfirm {
		return 0, &s7runtime.HandshakeError{Stage: "cotp", Reason: "connection request not confirmed", Expected: cotp.PDUTypeConnectionConfirm, Actual: tpdu.Type}
	}
	c.state.Store(int32(COTPEstablished))

	if err := cotp.WriteTSDU(conn, pdu.SetupRequest(c.request)); err != nil {
		return 0, err
	}
	resp, err := cotp.ReadTSDU(conn, int(c.request))
	if err != nil {
		return 0, err
	}
	return pdu.ParseSetupResponse(resp)
}

// Close disposes the transport, waiting for an exchange in flight.
func (c *Connection) Close(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	if c.conn != nil {
		klog.V(2).InfoS("Closed s7 connection", "id", c.id, "address", c.address)
	}
	c.dispose()
	return nil
}

// dispose must be called with the lock held.
func (c *Connection) dispose() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.pduSize.Store(0)
	c.state.Store(int32(Closed))
}

// exchange sends one s7 message and hands the reassembled response to parse, both
// under the connection lock. Fatal errors from the wire or from parse close the
// connection.
func (c *Connection) exchange(ctx context.Context, request []byte, parse func(response []byte) error) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	if c.State() != Open || c.conn == nil {
		return s7runtime.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return &s7runtime.CancellationError{Err: err}
	}

	conn := c.conn
	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	stop := watch(ctx, conn)
	w := &countingWriter{w: conn}
	err := cotp.WriteTSDU(w, request)
	var response []byte
	if err == nil {
		response, err = cotp.ReadTSDU(conn, c.PDUSize())
	}
	interrupted := stop()
	if err != nil && w.n == 0 && (interrupted || ctx.Err() != nil) {
		klog.V(4).InfoS("Failed to send s7 message before cancellation", "id", c.id, "address", c.address, "error", err)
		return &s7runtime.CancellationError{Err: ctx.Err()}
	}
	if err != nil {
		c.dispose()
		klog.V(2).InfoS("Failed to exchange s7 message", "id", c.id, "address", c.address, "error", err)
		if interrupted || ctx.Err() != nil {
			return &s7runtime.CancellationError{Fatal: true, Err: ctx.Err()}
		}
		return err
	}

	if err := parse(response); err != nil {
		if s7runtime.IsFatal(err) {
			klog.V(2).InfoS("Closing s7 connection on malformed response", "id", c.id, "error", err)
			c.dispose()
		}
		return err
	}
	return nil
}

// countingWriter counts the bytes that reached w.
type countingWriter struct {
	w io.Writer
	n int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += n
	return n, err
}

// watch interrupts blocked io on conn once ctx is done. stop reports whether it did.
func watch(ctx context.Context, conn net.Conn) (stop func() bool) {
	if ctx.Done() == nil {
		return func() bool { return false }
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	interrupted := false
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Unix(1, 0))
			interrupted = true
		case <-done:
		}
	}()
	return func() bool {
		close(done)
		<-exited
		return interrupted
	}
}
