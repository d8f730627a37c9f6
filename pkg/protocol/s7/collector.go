package s7

import (
	"context"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"harnss7/pkg/protocol/s7/pdu"
	s7runtime "harnss7/pkg/protocol/s7/runtime"
	"harnss7/pkg/protocol/s7/value"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"sort"
	"sync"
	"time"
)

var (
	ErrEmptyVariables  = errors.New("no s7 variables configured")
	ErrUnknownVariable = errors.New("unknown s7 variable")
	ErrMissingValue    = errors.New("no value and no default value")
)

const DefaultCycle = time.Second

type CollectorOptions struct {
	Connection ConnectionOptions
	Variables  s7runtime.VariableSlice
	// Cycle pause between the end of one poll and the start of the next
	Cycle time.Duration
	// Connections pooled connections, derived from the number of frames when zero
	Connections int
}

// variableFrame variables read together with one ReadMany
type variableFrame struct {
	variables []*s7runtime.Variable
	refs      []s7runtime.MemoryReference
}

// Collector polls the configured variables on a cycle, reconnecting when a
// connection was lost, and reports every poll on its results channel.
type Collector struct {
	pool       *ClientPool
	variables  s7runtime.VariableSlice
	frames     []*variableFrame
	cycle      time.Duration
	variableCh chan *s7runtime.ParseVariableResult
	cancel     context.CancelFunc
	done       chan struct{}

	polls    *atomic.Int64
	failures *atomic.Int64
	lastPoll *atomic.Int64

	mu       *sync.RWMutex
	snapshot map[string]*s7runtime.Variable
	backoff  wait.Backoff
	retryAt  time.Time

	destroyOnce sync.Once
}

func newReconnectBackoff() wait.Backoff {
	return wait.Backoff{
		Duration: time.Second,
		Factor:   2,
		Jitter:   0.1,
		Steps:    8,
		Cap:      time.Minute,
	}
}

func NewCollector(opts CollectorOptions) (*Collector, <-chan *s7runtime.ParseVariableResult, error) {
	if len(opts.Variables) == 0 {
		return nil, nil, ErrEmptyVariables
	}
	variables := opts.Variables.DeepCopy()

	var errs []error
	names := sets.NewString()
	for _, v := range variables {
		if names.Has(v.Name) {
			errs = append(errs, errors.Errorf("variable %q is defined more than once", v.Name))
			continue
		}
		names.Insert(v.Name)
		if _, err := v.Reference(); err != nil {
			errs = append(errs, errors.Wrapf(err, "variable %q", v.Name))
		}
	}
	if len(errs) > 0 {
		return nil, nil, utilerrors.NewAggregate(errs)
	}
	sort.Sort(variables)

	frames := make([]*variableFrame, 0)
	frame := &variableFrame{}
	for _, v := range variables {
		ref, _ := v.Reference()
		frame.variables = append(frame.variables, v)
		frame.refs = append(frame.refs, ref)
		if len(frame.refs) == pdu.MaxItems {
			frames = append(frames, frame)
			frame = &variableFrame{}
		}
	}
	if len(frame.refs) > 0 {
		frames = append(frames, frame)
	}

	connections := opts.Connections
	if connections <= 0 {
		connections = len(frames)/5 + 1
	}
	if connections > len(frames) {
		connections = len(frames)
	}
	pool, err := NewClientPool(opts.Connection, connections)
	if err != nil {
		return nil, nil, err
	}

	cycle := opts.Cycle
	if cycle <= 0 {
		cycle = DefaultCycle
	}
	c := &Collector{
		pool:       pool,
		variables:  variables,
		frames:     frames,
		cycle:      cycle,
		variableCh: make(chan *s7runtime.ParseVariableResult, 1),
		done:       make(chan struct{}),
		polls:      atomic.NewInt64(0),
		failures:   atomic.NewInt64(0),
		lastPoll:   atomic.NewInt64(0),
		mu:         &sync.RWMutex{},
		snapshot:   make(map[string]*s7runtime.Variable, len(variables)),
		backoff:    newReconnectBackoff(),
	}
	for _, v := range variables {
		c.snapshot[v.Name] = v.DeepCopy()
	}
	klog.V(2).InfoS("Created s7 collector", "variables", len(variables), "frames", len(frames), "connections", connections)
	return c, c.variableCh, nil
}

// Collect starts polling until ctx ends or Destroy is called.
func (c *Collector) Collect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go func() {
		defer close(c.done)
		wait.UntilWithContext(ctx, func(ctx context.Context) {
			pvr := c.Poll(ctx)
			select {
			case c.variableCh <- pvr:
			case <-ctx.Done():
			}
		}, c.cycle)
	}()
}

// Destroy stops polling, closes the connections and the results channel. Calls
// after the first are no-ops.
func (c *Collector) Destroy(ctx context.Context) {
	c.destroyOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}
		c.pool.Destroy(ctx)
		close(c.variableCh)
	})
}

// Poll reads every frame once. Frames run in parallel on the pooled connections.
func (c *Collector) Poll(ctx context.Context) *s7runtime.ParseVariableResult {
	sw := &sync.WaitGroup{}
	pvrCh := make(chan *s7runtime.ParseVariableResult)
	for _, frame := range c.frames {
		sw.Add(1)
		go c.message(ctx, frame, pvrCh, sw)
	}
	go func() {
		sw.Wait()
		close(pvrCh)
	}()

	result := &s7runtime.ParseVariableResult{VariableSlice: make(s7runtime.VariableSlice, 0, len(c.variables))}
	for pvr := range pvrCh {
		result.VariableSlice = append(result.VariableSlice, pvr.VariableSlice...)
		result.Err = append(result.Err, pvr.Err...)
	}

	c.polls.Inc()
	c.lastPoll.Store(time.Now().UnixNano())
	if len(result.Err) > 0 {
		c.failures.Inc()
	}
	c.mu.Lock()
	for _, v := range result.VariableSlice {
		c.snapshot[v.Name] = v.DeepCopy()
	}
	c.mu.Unlock()
	return result
}

func (c *Collector) message(ctx context.Context, frame *variableFrame, pvrCh chan<- *s7runtime.ParseVariableResult, sw *sync.WaitGroup) {
	defer sw.Done()
	client, err := c.pool.GetClient(ctx)
	if err != nil {
		pvrCh <- &s7runtime.ParseVariableResult{Err: []error{errors.Wrap(err, "acquire s7 connection")}}
		return
	}
	defer c.pool.ReleaseClient(client)

	if err := c.ensureOpen(ctx, client); err != nil {
		pvrCh <- &s7runtime.ParseVariableResult{Err: []error{err}}
		return
	}

	items, err := client.ReadMany(ctx, frame.refs)
	if err != nil {
		klog.V(2).InfoS("Failed to read s7 variables", "id", client.ID(), "variables", len(frame.refs), "error", err)
		pvrCh <- &s7runtime.ParseVariableResult{Err: []error{errors.Wrapf(err, "read %d variables", len(frame.refs))}}
		return
	}

	pvr := &s7runtime.ParseVariableResult{VariableSlice: make(s7runtime.VariableSlice, 0, len(items))}
	for i, item := range items {
		v := frame.variables[i]
		if item.Err != nil {
			pvr.Err = append(pvr.Err, errors.Wrapf(item.Err, "variable %q", v.Name))
			continue
		}
		out := v.DeepCopy()
		out.SetValue(item.Value.Interface())
		pvr.VariableSlice = append(pvr.VariableSlice, out)
	}
	pvrCh <- pvr
}

// ensureOpen reconnects client unless a previous attempt failed within the backoff.
func (c *Collector) ensureOpen(ctx context.Context, client *Client) error {
	if client.IsConnected() {
		return nil
	}
	c.mu.Lock()
	if time.Now().Before(c.retryAt) {
		retryAt := c.retryAt
		c.mu.Unlock()
		return errors.Wrapf(s7runtime.ErrNotConnected, "reconnect to %s deferred until %s", client.Address(), retryAt.Format(time.RFC3339))
	}
	c.mu.Unlock()

	err := client.Open(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.backoff.Steps == 0 {
			c.backoff.Steps = 1
		}
		c.retryAt = time.Now().Add(c.backoff.Step())
		klog.V(2).InfoS("Failed to reconnect s7 device", "id", client.ID(), "address", client.Address(), "retryAt", c.retryAt, "error", err)
		return errors.Wrapf(err, "connect %s", client.Address())
	}
	c.backoff = newReconnectBackoff()
	c.retryAt = time.Time{}
	return nil
}

// withClient runs fn on a pooled client, connecting it first.
func (c *Collector) withClient(ctx context.Context, fn func(client *Client) error) error {
	client, err := c.pool.GetClient(ctx)
	if err != nil {
		return err
	}
	defer c.pool.ReleaseClient(client)
	if !client.IsConnected() {
		if err := client.Open(ctx); err != nil {
			return err
		}
	}
	return fn(client)
}

// Read reads one address outside of the polling cycle.
func (c *Collector) Read(ctx context.Context, address string) (value.Value, error) {
	var v value.Value
	err := c.withClient(ctx, func(client *Client) (err error) {
		v, err = client.ReadValue(ctx, address)
		return err
	})
	return v, err
}

// WriteAddress converts raw for the type derived from address and writes it.
func (c *Collector) WriteAddress(ctx context.Context, address string, raw interface{}) error {
	ref, err := s7runtime.ParseAddress(address)
	if err != nil {
		return err
	}
	v, err := value.FromInterface(ref, raw)
	if err != nil {
		return err
	}
	return c.withClient(ctx, func(client *Client) error {
		return client.WriteReference(ctx, ref, v)
	})
}

// Write writes configured variables by name. A nil value writes the variable's default.
func (c *Collector) Write(ctx context.Context, values map[string]interface{}) error {
	var errs []error
	items := make([]WriteItem, 0, len(values))
	names := make([]string, 0, len(values))
	for name, raw := range values {
		variable := c.variables.Find(name)
		if variable == nil {
			errs = append(errs, errors.Wrapf(ErrUnknownVariable, "%q", name))
			continue
		}
		if raw == nil {
			if variable.DefaultValue == nil {
				errs = append(errs, errors.Wrapf(ErrMissingValue, "variable %q", name))
				continue
			}
			raw = variable.DefaultValue
		}
		ref, err := variable.Reference()
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "variable %q", name))
			continue
		}
		v, err := value.FromInterface(ref, raw)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "variable %q", name))
			continue
		}
		items = append(items, WriteItem{Reference: ref, Value: v})
		names = append(names, variable.Name)
	}
	if len(errs) > 0 {
		return utilerrors.NewAggregate(errs)
	}

	var results []error
	err := c.withClient(ctx, func(client *Client) (err error) {
		results, err = client.WriteMany(ctx, items)
		return err
	})
	if err != nil {
		return err
	}
	for i, err := range results {
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "variable %q", names[i]))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Variables the last collected value of every variable, sorted by address.
func (c *Collector) Variables() s7runtime.VariableSlice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(s7runtime.VariableSlice, 0, len(c.variables))
	for _, v := range c.variables {
		out = append(out, c.snapshot[v.Name].DeepCopy())
	}
	return out
}

type ConnectionStatus struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	PDUSize   int    `json:"pduSize"`
}

type CollectorStatus struct {
	Connections []ConnectionStatus `json:"connections"`
	Polls       int64              `json:"polls"`
	Failures    int64              `json:"failures"`
	LastPoll    *time.Time         `json:"lastPoll,omitempty"`
}

func (c *Collector) Status() CollectorStatus {
	status := CollectorStatus{
		Connections: make([]ConnectionStatus, 0, c.pool.Size()),
		Polls:       c.polls.Load(),
		Failures:    c.failures.Load(),
	}
	if last := c.lastPoll.Load(); last != 0 {
		t := time.Unix(0, last).UTC()
		status.LastPoll = &t
	}
	for _, client := range c.pool.Clients() {
		status.Connections = append(status.Connections, ConnectionStatus{
			ID:        client.ID(),
			Address:   client.Address(),
			State:     client.State().String(),
			Connected: client.IsConnected(),
			PDUSize:   client.PDUSize(),
		})
	}
	return status
}
