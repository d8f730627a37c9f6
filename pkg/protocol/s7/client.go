package s7

import (
	"context"
	"fmt"
	"harnss7/pkg/protocol/s7/pdu"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/protocol/s7/value"
	"k8s.io/klog/v2"
)

// Client reads and writes controller memory over one Connection. Every operation
// blocks until the exchange completes or ctx ends.
type Client struct {
	*Connection
}

func NewClient(opts ConnectionOptions) (*Client, error) {
	conn, err := NewConnection(opts)
	if err != nil {
		return nil, err
	}
	return &Client{Connection: conn}, nil
}

// ReadItem result of one reference of ReadMultiple.
type ReadItem struct {
	Reference s7runtime.MemoryReference
	Value     value.Value
	Err       error
}

type WriteItem struct {
	Reference s7runtime.MemoryReference
	Value     value.Value
}

func byteRange(area s7runtime.MemoryArea, db int, offset int, length int) (pdu.Range, error) {
	r := pdu.Range{Area: area, DBNumber: db, ByteOffset: offset, Length: length}
	if area == s7runtime.T || area == s7runtime.C {
		return r, &s7runtime.InvalidAddressError{Address: r.String(), Reason: "timers and counters are not byte addressable"}
	}
	if area != s7runtime.DB && db != 0 {
		return r, &s7runtime.InvalidAddressError{Address: r.String(), Reason: "data block number on a non data block area"}
	}
	if offset < 0 || length < 0 {
		return r, &s7runtime.InvalidAddressError{Address: r.String(), Reason: "negative offset or length"}
	}
	return r, nil
}

func (c *Client) negotiated() (int, error) {
	size := c.PDUSize()
	if !c.IsConnected() || size == 0 {
		return 0, s7runtime.ErrNotConnected
	}
	return size, nil
}

// chunkLimit units of r that fit one exchange with overhead bytes of framing
func chunkLimit(r pdu.Range, pduSize, overhead int) int {
	unit := r.DataLength() / r.Length
	return (pduSize - overhead) / unit
}

// readRange reads r with as many sequential requests as the pdu requires.
func (c *Client) readRange(ctx context.Context, r pdu.Range) ([]byte, error) {
	size, err := c.negotiated()
	if err != nil {
		return nil, err
	}
	if r.Length == 0 {
		return []byte{}, nil
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	limit := chunkLimit(r, size, pdu.ReadOverhead)
	out := make([]byte, 0, r.DataLength())
	for done := 0; done < r.Length; {
		chunk := r
		chunk.ByteOffset = r.ByteOffset + done
		chunk.Length = r.Length - done
		if chunk.Length > limit {
			chunk.Length = limit
		}
		results, err := c.readRanges(ctx, []pdu.Range{chunk})
		if err != nil {
			return nil, err
		}
		if results[0].Err != nil {
			return nil, results[0].Err
		}
		out = append(out, results[0].Data...)
		done += chunk.Length
	}
	return out, nil
}

// readRanges one read request for ranges, which must fit the pdu.
func (c *Client) readRanges(ctx context.Context, ranges []pdu.Range) ([]pdu.ItemResult, error) {
	size, err := c.negotiated()
	if err != nil {
		return nil, err
	}
	if err := pdu.CheckRead(ranges, size); err != nil {
		return nil, err
	}
	ref := c.nextReference()
	request, err := pdu.ReadRequest(ref, ranges)
	if err != nil {
		return nil, err
	}
	var results []pdu.ItemResult
	err = c.exchange(ctx, request, func(response []byte) (err error) {
		results, err = pdu.ParseReadResponse(response, ref, ranges)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// writeRange writes data to r with as many sequential requests as the pdu requires.
func (c *Client) writeRange(ctx context.Context, r pdu.Range, data []byte) error {
	size, err := c.negotiated()
	if err != nil {
		return err
	}
	if r.Length == 0 {
		return nil
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if len(data) != r.DataLength() {
		return fmt.Errorf("%s expects %d bytes, got %d", r, r.DataLength(), len(data))
	}
	unit := r.DataLength() / r.Length
	limit := chunkLimit(r, size, pdu.WriteOverhead)
	for done := 0; done < r.Length; {
		chunk := r
		chunk.ByteOffset = r.ByteOffset + done
		chunk.Length = r.Length - done
		if chunk.Length > limit {
			chunk.Length = limit
		}
		errs, err := c.writeRanges(ctx, []pdu.Range{chunk}, [][]byte{data[done*unit : (done+chunk.Length)*unit]})
		if err != nil {
			return err
		}
		if errs[0] != nil {
			return errs[0]
		}
		done += chunk.Length
	}
	return nil
}

func (c *Client) writeRanges(ctx context.Context, ranges []pdu.Range, payloads [][]byte) ([]error, error) {
	size, err := c.negotiated()
	if err != nil {
		return nil, err
	}
	if err := pdu.CheckWrite(ranges, size); err != nil {
		return nil, err
	}
	ref := c.nextReference()
	request, err := pdu.WriteRequest(ref, ranges, payloads)
	if err != nil {
		return nil, err
	}
	var errs []error
	err = c.exchange(ctx, request, func(response []byte) (err error) {
		errs, err = pdu.ParseWriteResponse(response, ref, len(ranges))
		return err
	})
	if err != nil {
		return nil, err
	}
	return errs, nil
}

// ReadBytes reads count bytes of a byte addressable area starting at offset.
func (c *Client) ReadBytes(ctx context.Context, area s7runtime.MemoryArea, db int, offset int, count int) ([]byte, error) {
	r, err := byteRange(area, db, offset, count)
	if err != nil {
		return nil, err
	}
	return c.readRange(ctx, r)
}

// WriteBytes writes data to a byte addressable area starting at offset.
func (c *Client) WriteBytes(ctx context.Context, area s7runtime.MemoryArea, db int, offset int, data []byte) error {
	r, err := byteRange(area, db, offset, len(data))
	if err != nil {
		return err
	}
	return c.writeRange(ctx, r, data)
}

// ReadValue parses address and reads one value of the derived type.
func (c *Client) ReadValue(ctx context.Context, address string) (value.Value, error) {
	ref, err := s7runtime.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	return c.ReadReference(ctx, ref)
}

func (c *Client) ReadReference(ctx context.Context, ref s7runtime.MemoryReference) (value.Value, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	data, err := c.readRange(ctx, pdu.RangeOf(ref))
	if err != nil {
		return nil, err
	}
	return value.Decode(ref, data)
}

func (c *Client) WriteValue(ctx context.Context, address string, v value.Value) error {
	ref, err := s7runtime.ParseAddress(address)
	if err != nil {
		return err
	}
	return c.WriteReference(ctx, ref, v)
}

// WriteReference encodes v for ref and writes it. Bits are written one by one with
// the bit transport unless they cover whole bytes.
func (c *Client) WriteReference(ctx context.Context, ref s7runtime.MemoryReference, v value.Value) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if unalignedBits(ref) {
		errs, err := c.WriteMany(ctx, []WriteItem{{Reference: ref, Value: v}})
		if err != nil {
			return err
		}
		return errs[0]
	}
	data, err := value.Encode(ref, v)
	if err != nil {
		return err
	}
	r := pdu.WriteRangeOf(ref)
	if r.Bit {
		return c.writeSingle(ctx, r, data)
	}
	return c.writeRange(ctx, r, data)
}

func (c *Client) writeSingle(ctx context.Context, r pdu.Range, data []byte) error {
	errs, err := c.writeRanges(ctx, []pdu.Range{r}, [][]byte{data})
	if err != nil {
		return err
	}
	return errs[0]
}

// unalignedBits bit arrays that do not cover whole bytes
func unalignedBits(ref s7runtime.MemoryReference) bool {
	return ref.ValueType == s7runtime.Bit && ref.Elements() > 1 && (ref.BitOffset != 0 || ref.Elements()%8 != 0)
}

// writeUnit one item of a write request and the index of the WriteItem it belongs to.
type writeUnit struct {
	item    int
	r       pdu.Range
	payload []byte
}

// writeUnits encodes item i into the request items it is written with. Unaligned
// bit arrays become one single bit item per element.
func writeUnits(i int, item WriteItem) ([]writeUnit, error) {
	ref := item.Reference
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	packed, err := value.Encode(ref, item.Value)
	if err != nil {
		return nil, err
	}
	if !unalignedBits(ref) {
		return []writeUnit{{item: i, r: pdu.WriteRangeOf(ref), payload: packed}}, nil
	}
	units := make([]writeUnit, 0, ref.Elements())
	for k := 0; k < ref.Elements(); k++ {
		pos := ref.BitOffset + k
		bit := s7runtime.MemoryReference{
			Area:       ref.Area,
			DBNumber:   ref.DBNumber,
			ByteOffset: ref.ByteOffset + pos/8,
			BitOffset:  pos % 8,
			ValueType:  s7runtime.Bit,
			Count:      1,
		}
		data, err := value.Encode(bit, value.Bit(packed[pos/8]>>(pos%8)&0x01 != 0))
		if err != nil {
			return nil, err
		}
		units = append(units, writeUnit{item: i, r: pdu.WriteRangeOf(bit), payload: data})
	}
	return units, nil
}

// prepareRead validates refs. It returns the read items with the failures filled in,
// the indexes of the valid refs and their ranges.
func prepareRead(refs []s7runtime.MemoryReference) ([]ReadItem, []int, []pdu.Range) {
	items := make([]ReadItem, len(refs))
	valid := make([]int, 0, len(refs))
	ranges := make([]pdu.Range, 0, len(refs))
	for i, ref := range refs {
		items[i].Reference = ref
		if err := ref.Validate(); err != nil {
			items[i].Err = err
			continue
		}
		valid = append(valid, i)
		ranges = append(ranges, pdu.RangeOf(ref))
	}
	return items, valid, ranges
}

// readBatch reads ranges with one request and decodes them into items[index[k]].
func (c *Client) readBatch(ctx context.Context, items []ReadItem, index []int, ranges []pdu.Range) error {
	results, err := c.readRanges(ctx, ranges)
	if err != nil {
		return err
	}
	for k, i := range index {
		if results[k].Err != nil {
			items[i].Err = results[k].Err
			continue
		}
		items[i].Value, items[i].Err = value.Decode(items[i].Reference, results[k].Data)
	}
	return nil
}

// batch indexes of items sharing one request
type batch []int

// plan groups ranges into requests that respect the item and pdu limits. Ranges
// that do not fit a request on their own are returned as singles.
func plan(ranges []pdu.Range, fits func([]pdu.Range) bool) (batches []batch, singles []int) {
	var current batch
	var members []pdu.Range
	for i, r := range ranges {
		if !fits([]pdu.Range{r}) {
			singles = append(singles, i)
			continue
		}
		if fits(append(members[:len(members):len(members)], r)) {
			current = append(current, i)
			members = append(members, r)
			continue
		}
		batches = append(batches, current)
		current = batch{i}
		members = []pdu.Range{r}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches, singles
}

// ReadMultiple reads refs with exactly one request. A batch over the item count or
// the negotiated pdu fails with PduSizeExceededError before anything is sent.
// Per item failures are reported in the items, the error is set when the
// exchange failed.
func (c *Client) ReadMultiple(ctx context.Context, refs []s7runtime.MemoryReference) ([]ReadItem, error) {
	size, err := c.negotiated()
	if err != nil {
		return nil, err
	}
	items, valid, ranges := prepareRead(refs)
	if len(ranges) == 0 {
		return items, nil
	}
	if err := pdu.CheckRead(ranges, size); err != nil {
		return nil, err
	}
	if err := c.readBatch(ctx, items, valid, ranges); err != nil {
		return nil, err
	}
	return items, nil
}

// ReadMany reads refs with as few requests as the limits allow. Refs too large
// for one request are read in chunks.
func (c *Client) ReadMany(ctx context.Context, refs []s7runtime.MemoryReference) ([]ReadItem, error) {
	size, err := c.negotiated()
	if err != nil {
		return nil, err
	}
	items, valid, ranges := prepareRead(refs)
	batches, singles := plan(ranges, func(rs []pdu.Range) bool {
		return pdu.CheckRead(rs, size) == nil
	})
	klog.V(5).InfoS("Planned s7 read", "id", c.id, "items", len(refs), "requests", len(batches), "chunked", len(singles))

	for _, b := range batches {
		index := make([]int, len(b))
		rs := make([]pdu.Range, len(b))
		for k, j := range b {
			index[k], rs[k] = valid[j], ranges[j]
		}
		if err := c.readBatch(ctx, items, index, rs); err != nil {
			return nil, err
		}
	}
	for _, j := range singles {
		i := valid[j]
		v, err := c.ReadReference(ctx, refs[i])
		if err != nil && s7runtime.IsFatal(err) {
			return nil, err
		}
		items[i].Value, items[i].Err = v, err
	}
	return items, nil
}

// WriteMultiple writes items with exactly one request and returns one error slot
// per item. A batch over the item count or the negotiated pdu fails with
// PduSizeExceededError before anything is sent.
func (c *Client) WriteMultiple(ctx context.Context, items []WriteItem) ([]error, error) {
	size, err := c.negotiated()
	if err != nil {
		return nil, err
	}
	errs := make([]error, len(items))
	var units []writeUnit
	for i, item := range items {
		us, err := writeUnits(i, item)
		if err != nil {
			errs[i] = err
			continue
		}
		units = append(units, us...)
	}
	if len(units) == 0 {
		return errs, nil
	}
	ranges := make([]pdu.Range, len(units))
	payloads := make([][]byte, len(units))
	for k, u := range units {
		ranges[k], payloads[k] = u.r, u.payload
	}
	if err := pdu.CheckWrite(ranges, size); err != nil {
		return nil, err
	}
	results, err := c.writeRanges(ctx, ranges, payloads)
	if err != nil {
		return nil, err
	}
	for k, u := range units {
		if results[k] != nil && errs[u.item] == nil {
			errs[u.item] = results[k]
		}
	}
	return errs, nil
}

// WriteMany writes items in the given order with as few requests as the limits
// allow, so a later item always overwrites an earlier overlapping one. Items too
// large for one request are written in chunks. When the connection fails the
// items not known to be written carry the error, which is returned as well.
func (c *Client) WriteMany(ctx context.Context, items []WriteItem) ([]error, error) {
	size, err := c.negotiated()
	if err != nil {
		return nil, err
	}
	fits := func(rs []pdu.Range) bool {
		return pdu.CheckWrite(rs, size) == nil
	}
	errs := make([]error, len(items))
	fail := func(from int, err error) ([]error, error) {
		for i := from; i < len(items); i++ {
			if errs[i] == nil {
				errs[i] = err
			}
		}
		return errs, err
	}

	var pending []writeUnit
	var ranges []pdu.Range
	var payloads [][]byte
	requests := 0
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		requests++
		results, err := c.writeRanges(ctx, ranges, payloads)
		if err != nil {
			return err
		}
		for k, u := range pending {
			if results[k] != nil && errs[u.item] == nil {
				errs[u.item] = results[k]
			}
		}
		pending, ranges, payloads = nil, nil, nil
		return nil
	}

	for i, item := range items {
		units, err := writeUnits(i, item)
		if err != nil {
			errs[i] = err
			continue
		}
		for _, u := range units {
			if !fits([]pdu.Range{u.r}) {
				if err := flush(); err != nil {
					return fail(pending[0].item, err)
				}
				requests++
				err := c.writeRange(ctx, u.r, u.payload)
				if err != nil && s7runtime.IsFatal(err) {
					return fail(i, err)
				}
				if err != nil && errs[i] == nil {
					errs[i] = err
				}
				continue
			}
			if !fits(append(ranges[:len(ranges):len(ranges)], u.r)) {
				if err := flush(); err != nil {
					return fail(pending[0].item, err)
				}
			}
			pending = append(pending, u)
			ranges = append(ranges, u.r)
			payloads = append(payloads, u.payload)
		}
	}
	if len(pending) > 0 {
		first := pending[0].item
		if err := flush(); err != nil {
			return fail(first, err)
		}
	}
	klog.V(5).InfoS("Wrote s7 items", "id", c.id, "items", len(items), "requests", requests)
	return errs, nil
}

// ReadRecord reads the bytes of schema from data block db at offset and decodes them.
func (c *Client) ReadRecord(ctx context.Context, schema *value.Schema, db int, offset int) (value.Record, error) {
	size, err := schema.Size()
	if err != nil {
		return nil, err
	}
	data, err := c.ReadBytes(ctx, s7runtime.DB, db, offset, size)
	if err != nil {
		return nil, err
	}
	return schema.Decode(data)
}

func (c *Client) WriteRecord(ctx context.Context, schema *value.Schema, db int, offset int, record value.Record) error {
	data, err := schema.Encode(record)
	if err != nil {
		return err
	}
	return c.WriteBytes(ctx, s7runtime.DB, db, offset, data)
}
