package chat

import (
	"sync"

	"golang.org/x/time/rate"

	"jadwa/internal/domain"
)

// Conn is the relay's view of one live client connection. The transport
// drains Outbound and stops when Done is closed.
type Conn struct {
	id      string
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter

	mu       sync.RWMutex
	identity *domain.Identity
}

func newConn(id string, buffer int, limiter *rate.Limiter) *Conn {
	return &Conn{
		id:      id,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

func (c *Conn) ID() string { return c.id }

// Deliver queues payload without blocking. A full buffer or a closed
// connection reports false.
func (c *Conn) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Conn) Outbound() <-chan []byte { return c.send }

func (c *Conn) Done() <-chan struct{} { return c.done }

// Close is idempotent. The send channel is never closed so a concurrent
// Deliver cannot panic.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) Identity() *domain.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Conn) setIdentity(identity *domain.Identity) {
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
}
