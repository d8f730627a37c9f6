package s7

import (
	"container/list"
	"context"
	"errors"
	"k8s.io/klog/v2"
	"sync"
)

var ErrPoolClosed = errors.New("s7 client pool is closed")

// ClientPool hands out a fixed set of clients, one caller at a time each. Waiters
// are served in no particular order when a client is released.
type ClientPool struct {
	clients      *list.List
	all          []*Client
	idle         int
	mux          *sync.Mutex
	connRequests map[uint64]chan *Client
	nextRequest  uint64
	closed       bool
}

// NewClientPool creates size clients sharing opts. Clients are opened lazily.
func NewClientPool(opts ConnectionOptions, size int) (*ClientPool, error) {
	if size < 1 {
		size = 1
	}
	p := &ClientPool{
		clients:      list.New(),
		all:          make([]*Client, 0, size),
		idle:         size,
		mux:          &sync.Mutex{},
		connRequests: make(map[uint64]chan *Client),
	}
	for i := 0; i < size; i++ {
		c, err := NewClient(opts)
		if err != nil {
			return nil, err
		}
		p.clients.PushBack(c)
		p.all = append(p.all, c)
	}
	return p, nil
}

func (p *ClientPool) Size() int {
	return len(p.all)
}

// Clients every client of the pool, idle or not.
func (p *ClientPool) Clients() []*Client {
	return p.all
}

func (p *ClientPool) GetClient(ctx context.Context) (*Client, error) {
	select {
	default:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mux.Lock()
	if p.closed {
		p.mux.Unlock()
		return nil, ErrPoolClosed
	}
	if p.idle > 0 {
		p.idle = p.idle - 1
		front := p.clients.Front()
		client := front.Value.(*Client)
		p.clients.Remove(front)
		p.mux.Unlock()
		return client, nil
	}

	cCh := make(chan *Client, 1)
	key := p.nextRequestKey()
	p.connRequests[key] = cCh
	p.mux.Unlock()

	select {
	case <-ctx.Done():
		p.mux.Lock()
		delete(p.connRequests, key)
		p.mux.Unlock()
		select {
		default:
		case c, ok := <-cCh:
			if ok {
				p.ReleaseClient(c)
			}
		}
		return nil, ctx.Err()
	case c, ok := <-cCh:
		if !ok {
			return nil, ErrPoolClosed
		}
		return c, nil
	}
}

func (p *ClientPool) ReleaseClient(client *Client) {
	if client == nil {
		return
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.idle == 0 && len(p.connRequests) > 0 {
		var cCh chan *Client
		var key uint64
		for key, cCh = range p.connRequests {
			break
		}
		delete(p.connRequests, key)
		cCh <- client
	} else {
		p.clients.PushBack(client)
		p.idle = p.idle + 1
	}
}

// Destroy closes every client and fails pending waiters.
func (p *ClientPool) Destroy(ctx context.Context) {
	p.mux.Lock()
	p.closed = true
	for _, request := range p.connRequests {
		close(request)
	}
	p.connRequests = make(map[uint64]chan *Client)
	p.mux.Unlock()

	for _, c := range p.all {
		if err := c.Close(ctx); err != nil {
			klog.V(2).InfoS("Failed to close s7 client", "id", c.ID(), "error", err)
		}
	}
}

func (p *ClientPool) nextRequestKey() uint64 {
	next := p.nextRequest
	p.nextRequest++
	return next
}
