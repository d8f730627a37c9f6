package s7

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"harnss7/pkg/protocol/s7/pdu"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/protocol/s7/value"
	"testing"
	"time"
)

func TestOpenNegotiatesPDU(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)
	assert.True(t, c.IsConnected())
	assert.Equal(t, Open, c.State())
	assert.Equal(t, 240, c.PDUSize())
	assert.Equal(t, "plc.local:102", c.Address())

	require.NoError(t, c.Open(context.Background()))
	assert.Equal(t, int32(1), f.dials.Load())

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, Closed, c.State())
	assert.Equal(t, 0, c.PDUSize())
}

func TestOpenRequestsSmallerPDU(t *testing.T) {
	f := newFakePLC(960)
	opts := f.options()
	opts.PDUSize = 480
	c, err := NewClient(opts)
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	defer c.Close(context.Background())
	assert.Equal(t, 480, c.PDUSize())
}

func TestOpenNotConfirmed(t *testing.T) {
	f := newFakePLC(240)
	f.confirmType = 0x80
	c, err := NewClient(f.options())
	require.NoError(t, err)

	err = c.Open(context.Background())
	var he *s7runtime.HandshakeError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "cotp", he.Stage)
	assert.True(t, s7runtime.IsFatal(err))
	assert.Equal(t, Closed, c.State())
}

func TestNewClientValidatesAddress(t *testing.T) {
	f := newFakePLC(240)
	opts := f.options()
	opts.Address.Option.Rack = 8
	_, err := NewClient(opts)
	var ie *s7runtime.InvalidAddressError
	assert.ErrorAs(t, err, &ie)

	opts = f.options()
	opts.CPU = "s7-1600"
	_, err = NewClient(opts)
	assert.Error(t, err)
	assert.Equal(t, int32(0), f.dials.Load())
}

func TestNotConnected(t *testing.T) {
	f := newFakePLC(240)
	c, err := NewClient(f.options())
	require.NoError(t, err)

	_, err = c.ReadBytes(context.Background(), s7runtime.DB, 1, 0, 4)
	assert.ErrorIs(t, err, s7runtime.ErrNotConnected)
	err = c.WriteValue(context.Background(), "MB0", value.Byte(1))
	assert.ErrorIs(t, err, s7runtime.ErrNotConnected)
	_, err = c.ReadMultiple(context.Background(), []s7runtime.MemoryReference{{Area: s7runtime.M, ValueType: s7runtime.Byte}})
	assert.ErrorIs(t, err, s7runtime.ErrNotConnected)
}

func TestReadWriteBytes(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)
	ctx := context.Background()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.NoError(t, c.WriteBytes(ctx, s7runtime.DB, 1, 100, data))
	assert.Equal(t, data, f.peek(s7runtime.DB, 1, 100, len(data)))

	got, err := c.ReadBytes(ctx, s7runtime.DB, 1, 100, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = c.ReadBytes(ctx, s7runtime.DB, 1, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(2), f.jobs.Load())
}

func TestChunking(t *testing.T) {
	pattern := make([]byte, 1000)
	for i := range pattern {
		pattern[i] = byte(i * 7)
	}

	reads := []struct {
		length   int
		requests int32
	}{
		{221, 1},
		{222, 1},
		{223, 2},
		{1000, 5},
	}
	for _, tc := range reads {
		f := newFakePLC(240)
		f.load(s7runtime.DB, 3, 0, pattern)
		c := f.client(t)
		got, err := c.ReadBytes(context.Background(), s7runtime.DB, 3, 0, tc.length)
		require.NoError(t, err)
		assert.Equal(t, pattern[:tc.length], got)
		assert.Equal(t, tc.requests, f.jobs.Load(), "read of %d bytes", tc.length)
	}

	writes := []struct {
		length   int
		requests int32
	}{
		{211, 1},
		{212, 1},
		{213, 2},
	}
	for _, tc := range writes {
		f := newFakePLC(240)
		c := f.client(t)
		require.NoError(t, c.WriteBytes(context.Background(), s7runtime.DB, 3, 0, pattern[:tc.length]))
		assert.Equal(t, pattern[:tc.length], f.peek(s7runtime.DB, 3, 0, tc.length))
		assert.Equal(t, tc.requests, f.jobs.Load(), "write of %d bytes", tc.length)
	}
}

func TestChunkBoundaries(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)
	_, err := c.ReadBytes(context.Background(), s7runtime.M, 0, 0, 223)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{222}, {1}}, f.requestItems())

	f = newFakePLC(240)
	c = f.client(t)
	timers := s7runtime.MemoryReference{Area: s7runtime.T, ValueType: s7runtime.Timer, Count: 112}
	v, err := c.ReadReference(context.Background(), timers)
	require.NoError(t, err)
	assert.Len(t, v, 112)
	assert.Equal(t, [][]int{{111}, {1}}, f.requestItems())
}

func TestSegmentedResponse(t *testing.T) {
	f := newFakePLC(240)
	f.segment = 7
	data := []byte("segmented response payload")
	f.load(s7runtime.M, 0, 10, data)
	c := f.client(t)

	got, err := c.ReadBytes(context.Background(), s7runtime.M, 0, 10, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadWriteValues(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)
	ctx := context.Background()

	dbd := s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 1, ByteOffset: 4, ValueType: s7runtime.Real, Count: 1}
	require.NoError(t, c.WriteReference(ctx, dbd, value.Real(3.5)))
	assert.Equal(t, []byte{0x40, 0x60, 0x00, 0x00}, f.peek(s7runtime.DB, 1, 4, 4))
	v, err := c.ReadReference(ctx, dbd)
	require.NoError(t, err)
	assert.Equal(t, value.Real(3.5), v)

	v, err = c.ReadValue(ctx, "DB1.DBW4")
	require.NoError(t, err)
	assert.Equal(t, value.Word(0x4060), v)

	f.load(s7runtime.M, 0, 0, []byte{0x81})
	require.NoError(t, c.WriteValue(ctx, "M0.3", value.Bit(true)))
	assert.Equal(t, []byte{0x89}, f.peek(s7runtime.M, 0, 0, 1))
	require.NoError(t, c.WriteValue(ctx, "M0.0", value.Bit(false)))
	assert.Equal(t, []byte{0x88}, f.peek(s7runtime.M, 0, 0, 1))
	v, err = c.ReadValue(ctx, "M0.7")
	require.NoError(t, err)
	assert.Equal(t, value.Bit(true), v)

	require.NoError(t, c.WriteValue(ctx, "C3", value.Counter(42)))
	assert.Equal(t, []byte{0x00, 0x42}, f.peek(s7runtime.C, 0, 6, 2))
	v, err = c.ReadValue(ctx, "C3")
	require.NoError(t, err)
	assert.Equal(t, value.Counter(42), v)

	str := s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 2, ValueType: s7runtime.String, Capacity: 10, Count: 1}
	require.NoError(t, c.WriteReference(ctx, str, value.String("abc")))
	assert.Equal(t, []byte{10, 3, 'a', 'b', 'c'}, f.peek(s7runtime.DB, 2, 0, 5))
	v, err = c.ReadReference(ctx, str)
	require.NoError(t, err)
	assert.Equal(t, value.String("abc"), v)
}

func TestWriteBitArray(t *testing.T) {
	f := newFakePLC(240)
	f.load(s7runtime.M, 0, 10, []byte{0x01, 0x80})
	c := f.client(t)

	bits := make(value.Array, 10)
	for i := range bits {
		bits[i] = value.Bit(true)
	}
	ref := s7runtime.MemoryReference{Area: s7runtime.M, ByteOffset: 10, BitOffset: 3, ValueType: s7runtime.Bit, Count: 10}
	require.NoError(t, c.WriteReference(context.Background(), ref, bits))

	assert.Equal(t, []byte{0xf9, 0x9f}, f.peek(s7runtime.M, 0, 10, 2))
	require.Len(t, f.requestItems(), 1)
	assert.Len(t, f.requestItems()[0], 10)

	v, err := c.ReadReference(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, bits, v)
}

func memoryBytes(n int) []s7runtime.MemoryReference {
	refs := make([]s7runtime.MemoryReference, n)
	for i := range refs {
		refs[i] = s7runtime.MemoryReference{Area: s7runtime.M, ByteOffset: i, ValueType: s7runtime.Byte, Count: 1}
	}
	return refs
}

func filledBytes(n int, b byte) value.Array {
	arr := make(value.Array, n)
	for i := range arr {
		arr[i] = value.Byte(b)
	}
	return arr
}

func TestReadMultiple(t *testing.T) {
	f := newFakePLC(480)
	f.missing[99] = true
	c := f.client(t)
	f.load(s7runtime.M, 0, 0, []byte{1, 2, 3})

	refs := append(memoryBytes(3),
		s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 99, ValueType: s7runtime.Word, Count: 1},
		s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 0, ValueType: s7runtime.Byte, Count: 1},
	)
	items, err := c.ReadMultiple(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, items, len(refs))
	for i := 0; i < 3; i++ {
		require.NoError(t, items[i].Err)
		assert.Equal(t, value.Byte(i+1), items[i].Value)
	}
	var pe *s7runtime.ProtocolError
	assert.ErrorAs(t, items[3].Err, &pe)
	var ie *s7runtime.InvalidAddressError
	assert.ErrorAs(t, items[4].Err, &ie)
	assert.Equal(t, int32(1), f.jobs.Load())
}

func TestReadMultipleExceedsLimits(t *testing.T) {
	f := newFakePLC(480)
	c := f.client(t)
	var pe *s7runtime.PduSizeExceededError

	_, err := c.ReadMultiple(context.Background(), memoryBytes(21))
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 21, pe.Items)
	assert.Equal(t, pdu.MaxItems, pe.Limit)

	large := []s7runtime.MemoryReference{{Area: s7runtime.DB, DBNumber: 1, ValueType: s7runtime.Byte, Count: 600}}
	_, err = c.ReadMultiple(context.Background(), large)
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, int32(0), f.jobs.Load())
	assert.True(t, c.IsConnected())
}

func TestReadMany(t *testing.T) {
	f := newFakePLC(480)
	f.missing[99] = true
	c := f.client(t)

	counters := make([]byte, 25)
	for i := range counters {
		counters[i] = byte(i + 1)
	}
	f.load(s7runtime.M, 0, 0, counters)
	refs := append(memoryBytes(25),
		s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 99, ValueType: s7runtime.Word, Count: 1},
		s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 1, ValueType: s7runtime.Byte, Count: 600},
		s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 0, ValueType: s7runtime.Byte, Count: 1},
	)

	items, err := c.ReadMany(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, items, len(refs))
	for i := 0; i < 25; i++ {
		require.NoError(t, items[i].Err)
		assert.Equal(t, value.Byte(i+1), items[i].Value)
	}

	var pe *s7runtime.ProtocolError
	require.ErrorAs(t, items[25].Err, &pe)
	assert.Equal(t, uint8(0x0a), pe.Code)
	assert.NoError(t, items[26].Err)
	assert.Len(t, items[26].Value, 600)
	var ie *s7runtime.InvalidAddressError
	assert.ErrorAs(t, items[27].Err, &ie)

	// 26 items in batches of 20 and 6, the 600 byte range in two chunks
	assert.Equal(t, int32(4), f.jobs.Load())
	assert.Len(t, f.requestItems()[0], 20)
	assert.Len(t, f.requestItems()[1], 6)
	assert.True(t, c.IsConnected())
}

func TestWriteMultiple(t *testing.T) {
	f := newFakePLC(240)
	f.missing[99] = true
	c := f.client(t)

	items := []WriteItem{
		{Reference: s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 1, ValueType: s7runtime.Word, Count: 1}, Value: value.Word(0x1234)},
		{Reference: s7runtime.MemoryReference{Area: s7runtime.M, ByteOffset: 1, BitOffset: 2, ValueType: s7runtime.Bit, Count: 1}, Value: value.Bit(true)},
		{Reference: s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 99, ValueType: s7runtime.Byte, Count: 1}, Value: value.Byte(1)},
		{Reference: s7runtime.MemoryReference{Area: s7runtime.M, ValueType: s7runtime.Word, Count: 1}, Value: value.String("x")},
	}
	errs, err := c.WriteMultiple(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, errs, 4)
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	var pe *s7runtime.ProtocolError
	assert.ErrorAs(t, errs[2], &pe)
	assert.Error(t, errs[3])

	assert.Equal(t, []byte{0x12, 0x34}, f.peek(s7runtime.DB, 1, 0, 2))
	assert.Equal(t, []byte{0x04}, f.peek(s7runtime.M, 0, 1, 1))
	assert.Equal(t, int32(1), f.jobs.Load())
}

func TestWriteMultipleExceedsLimits(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)
	var pe *s7runtime.PduSizeExceededError

	var items []WriteItem
	for _, ref := range memoryBytes(21) {
		items = append(items, WriteItem{Reference: ref, Value: value.Byte(1)})
	}
	_, err := c.WriteMultiple(context.Background(), items)
	require.ErrorAs(t, err, &pe)

	large := s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 1, ValueType: s7runtime.Byte, Count: 300}
	_, err = c.WriteMultiple(context.Background(), []WriteItem{{Reference: large, Value: filledBytes(300, 0xaa)}})
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, int32(0), f.jobs.Load())
	assert.Equal(t, make([]byte, 4), f.peek(s7runtime.M, 0, 0, 4))
	assert.True(t, c.IsConnected())
}

func TestWriteMany(t *testing.T) {
	f := newFakePLC(480)
	c := f.client(t)

	var items []WriteItem
	for i, ref := range memoryBytes(25) {
		items = append(items, WriteItem{Reference: ref, Value: value.Byte(i + 1)})
	}
	errs, err := c.WriteMany(context.Background(), items)
	require.NoError(t, err)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, byte(25), f.peek(s7runtime.M, 0, 24, 1)[0])
	assert.Equal(t, int32(2), f.jobs.Load())
	assert.Len(t, f.requestItems()[0], 20)
	assert.Len(t, f.requestItems()[1], 5)
}

func TestWriteManyKeepsOrder(t *testing.T) {
	dbb0 := s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 1, ValueType: s7runtime.Byte, Count: 1}
	block := s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 1, ValueType: s7runtime.Byte, Count: 300}
	dbw400 := s7runtime.MemoryReference{Area: s7runtime.DB, DBNumber: 1, ByteOffset: 400, ValueType: s7runtime.Word, Count: 1}

	tests := []struct {
		name     string
		items    []WriteItem
		dbb0     byte
		requests int32
	}{
		{
			name:     "chunked block then byte",
			items:    []WriteItem{{Reference: block, Value: filledBytes(300, 0xaa)}, {Reference: dbb0, Value: value.Byte(0x07)}},
			dbb0:     0x07,
			requests: 3,
		},
		{
			name: "byte then chunked block",
			items: []WriteItem{
				{Reference: dbb0, Value: value.Byte(0x07)},
				{Reference: block, Value: filledBytes(300, 0xaa)},
				{Reference: dbw400, Value: value.Word(0x1234)},
			},
			dbb0:     0xaa,
			requests: 4,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakePLC(240)
			c := f.client(t)
			errs, err := c.WriteMany(context.Background(), tc.items)
			require.NoError(t, err)
			for _, err := range errs {
				assert.NoError(t, err)
			}
			assert.Equal(t, []byte{tc.dbb0}, f.peek(s7runtime.DB, 1, 0, 1))
			assert.Equal(t, []byte{0xaa}, f.peek(s7runtime.DB, 1, 299, 1))
			assert.Equal(t, tc.requests, f.jobs.Load())
		})
	}
}

func TestWriteManyLongBitArray(t *testing.T) {
	f := newFakePLC(480)
	c := f.client(t)

	bits := make(value.Array, 30)
	for i := range bits {
		bits[i] = value.Bit(i%2 == 0)
	}
	ref := s7runtime.MemoryReference{Area: s7runtime.M, ByteOffset: 4, BitOffset: 1, ValueType: s7runtime.Bit, Count: 30}
	require.NoError(t, c.WriteReference(context.Background(), ref, bits))
	assert.Equal(t, int32(2), f.jobs.Load())
	assert.Len(t, f.requestItems()[0], 20)
	assert.Len(t, f.requestItems()[1], 10)

	v, err := c.ReadReference(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, bits, v)
}

func TestLocalValidation(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)
	ctx := context.Background()
	var ie *s7runtime.InvalidAddressError

	_, err := c.ReadBytes(ctx, s7runtime.T, 0, 0, 2)
	assert.ErrorAs(t, err, &ie)
	err = c.WriteBytes(ctx, s7runtime.M, 4, 0, []byte{1})
	assert.ErrorAs(t, err, &ie)
	_, err = c.ReadBytes(ctx, s7runtime.DB, 1, -1, 2)
	assert.ErrorAs(t, err, &ie)
	_, err = c.ReadValue(ctx, "DB1.DBQ0")
	assert.ErrorAs(t, err, &ie)

	assert.Equal(t, int32(0), f.jobs.Load())
	assert.True(t, c.IsConnected())
}

func TestCancelBeforeSend(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ReadBytes(ctx, s7runtime.DB, 1, 0, 4)
	var ce *s7runtime.CancellationError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Fatal)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, c.IsConnected())
	assert.Equal(t, int32(0), f.jobs.Load())

	_, err = c.ReadBytes(context.Background(), s7runtime.DB, 1, 0, 4)
	assert.NoError(t, err)
}

func TestCancelAfterSend(t *testing.T) {
	f := newFakePLC(240)
	f.hold = make(chan struct{})
	f.received = make(chan struct{}, 4)
	t.Cleanup(func() { close(f.hold) })
	c := f.client(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.ReadBytes(ctx, s7runtime.DB, 1, 0, 4)
		errCh <- err
	}()
	<-f.received
	cancel()

	err := <-errCh
	var ce *s7runtime.CancellationError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Fatal)
	assert.True(t, s7runtime.IsFatal(err))
	assert.False(t, c.IsConnected())
	assert.Equal(t, Closed, c.State())

	_, err = c.ReadBytes(context.Background(), s7runtime.DB, 1, 0, 4)
	assert.ErrorIs(t, err, s7runtime.ErrNotConnected)
}

func TestCancelWhileSendBlocked(t *testing.T) {
	f := newFakePLC(240)
	f.stall = make(chan struct{})
	f.load(s7runtime.DB, 1, 0, []byte{1, 2, 3, 4})
	c := f.client(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ReadBytes(ctx, s7runtime.DB, 1, 0, 4)
	var ce *s7runtime.CancellationError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Fatal)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, c.IsConnected())

	close(f.stall)
	got, err := c.ReadBytes(context.Background(), s7runtime.DB, 1, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
	assert.Equal(t, int32(1), f.jobs.Load())
}

func TestCancelWhileWaitingForLock(t *testing.T) {
	f := newFakePLC(240)
	f.hold = make(chan struct{})
	f.received = make(chan struct{}, 4)
	c := f.client(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.ReadBytes(context.Background(), s7runtime.DB, 1, 0, 4)
		errCh <- err
	}()
	<-f.received

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ReadBytes(ctx, s7runtime.DB, 1, 0, 4)
	var ce *s7runtime.CancellationError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Fatal)

	close(f.hold)
	assert.NoError(t, <-errCh)
	assert.True(t, c.IsConnected())
	assert.Equal(t, int32(1), f.jobs.Load())
}

func TestMismatchedReferenceClosesConnection(t *testing.T) {
	f := newFakePLC(240)
	f.badReference = true
	c := f.client(t)

	_, err := c.ReadBytes(context.Background(), s7runtime.DB, 1, 0, 4)
	require.Error(t, err)
	assert.True(t, s7runtime.IsFatal(err))
	assert.False(t, c.IsConnected())
}

func TestTimeoutClosesConnection(t *testing.T) {
	f := newFakePLC(240)
	f.hold = make(chan struct{})
	t.Cleanup(func() { close(f.hold) })
	opts := f.options()
	opts.Timeout = 50 * time.Millisecond
	c, err := NewClient(opts)
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))

	_, err = c.ReadBytes(context.Background(), s7runtime.DB, 1, 0, 4)
	var te *s7runtime.TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, c.IsConnected())
}

func TestRecords(t *testing.T) {
	f := newFakePLC(240)
	c := f.client(t)
	schema := value.NewSchema("motor",
		value.Field{Name: "running", Type: s7runtime.Bit},
		value.Field{Name: "speed", Type: s7runtime.Int},
		value.Field{Name: "name", Type: s7runtime.String, Capacity: 8},
	)
	rec := value.Record{
		"running": value.Bit(true),
		"speed":   value.Int(-3),
		"name":    value.String("m1"),
	}

	require.NoError(t, c.WriteRecord(context.Background(), schema, 5, 0, rec))
	assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xfd, 8, 2, 'm', '1'}, f.peek(s7runtime.DB, 5, 0, 8))

	got, err := c.ReadRecord(context.Background(), schema, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestPlan(t *testing.T) {
	var ranges []pdu.Range
	for _, length := range []int{10, 10, 500, 10, 10, 10} {
		ranges = append(ranges, pdu.Range{Area: s7runtime.M, Length: length})
	}
	fits := func(rs []pdu.Range) bool {
		total := 0
		for _, r := range rs {
			total += r.Length
		}
		return total <= 30
	}

	batches, singles := plan(ranges, fits)
	assert.Equal(t, []batch{{0, 1, 3}, {4, 5}}, batches)
	assert.Equal(t, []int{2}, singles)

	batches, singles = plan(nil, fits)
	assert.Empty(t, batches)
	assert.Empty(t, singles)
}
