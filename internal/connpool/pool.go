// Package connpool implements the per-node bounded connection reservoir:
// a push-tail/pop-head queue with an idle reaper, a hard max-connections
// ceiling, a total count bracketed by IncrTotal/DecrTotal, and a recover
// list for sockets that timed out mid-command instead of being closed.
package connpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/synnergy-kv/aspike/internal/socket"
)

// ErrAtCapacity is returned by Acquire when the pool has no idle connection
// and is already at its configured maximum.
var ErrAtCapacity = errors.New("connpool: empty and at capacity")

// Limits configures a single node pool.
type Limits struct {
	MinConnections int
	MaxConnections int
	MaxSocketIdle  time.Duration
	TotalTimeout   time.Duration
}

// Pool is a per-node, per-event-loop bounded connection reservoir. For sync
// I/O a single Pool per node suffices; async callers create one Pool per
// (node, event-loop) pair.
type Pool struct {
	dialer *socket.Dialer
	addr   string
	limits Limits

	mu    sync.Mutex
	idle  []*socket.Socket // head-first pop so hot sockets stay warm
	total int

	recover *RecoverList
}

// New creates a pool for one node address, dialing through d.
func New(d *socket.Dialer, addr string, limits Limits) *Pool {
	return &Pool{
		dialer:  d,
		addr:    addr,
		limits:  limits,
		recover: NewRecoverList(),
	}
}

// Acquire returns an open, usable socket or fails with ErrAtCapacity.
// Pop order is head-first so hot sockets stay warm.
func (p *Pool) Acquire(ctx context.Context) (*socket.Socket, error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		s := p.idle[0]
		p.idle = p.idle[1:]
		if !s.Usable(p.limits.MaxSocketIdle) {
			p.total--
			p.mu.Unlock()
			s.Close()
			p.mu.Lock()
			continue
		}
		p.mu.Unlock()
		s.Touch()
		return s, nil
	}
	if p.limits.MaxConnections > 0 && p.total >= p.limits.MaxConnections {
		p.mu.Unlock()
		return nil, ErrAtCapacity
	}
	p.total++
	p.mu.Unlock()

	s, err := p.dialer.Dial(ctx, p.addr)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// Release returns s to the pool's tail if capacity and usability allow,
// otherwise closes it and decrements total.
func (p *Pool) Release(s *socket.Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if (p.limits.MaxConnections == 0 || p.total <= p.limits.MaxConnections) && s.Usable(p.limits.MaxSocketIdle) {
		p.idle = append(p.idle, s)
		return
	}
	p.total--
	p.mu.Unlock()
	s.Close()
	p.mu.Lock()
}

// IncrTotal / DecrTotal bracket creation attempts made outside Acquire
// (e.g. the recover list resurrecting a socket).
func (p *Pool) IncrTotal() {
	p.mu.Lock()
	p.total++
	p.mu.Unlock()
}

func (p *Pool) DecrTotal() {
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
}

// Excess reports how many connections above the configured minimum are
// currently held; the tend task uses this to decide how much to trim.
func (p *Pool) Excess() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.idle) - p.limits.MinConnections
	if n < 0 {
		return 0
	}
	return n
}

// Total returns the current total connection count (idle + checked out).
func (p *Pool) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// TrimIdle closes idle sockets down to MinConnections, oldest first. It does
// not check the idle window: a stale socket at the head is closed the same
// way as a usable one.
func (p *Pool) TrimIdle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	closed := 0
	for len(p.idle) > p.limits.MinConnections {
		s := p.idle[0]
		p.idle = p.idle[1:]
		p.total--
		s.Close()
		closed++
	}
	return closed
}

// Recover exposes the pool's recover list for the tend task's maintenance
// step.
func (p *Pool) Recover() *RecoverList { return p.recover }

// Close closes every idle connection and resets the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.idle {
		s.Close()
	}
	p.idle = nil
	p.total = 0
}
