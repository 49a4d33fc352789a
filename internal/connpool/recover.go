package connpool

import (
	"sync"
	"time"

	"github.com/synnergy-kv/aspike/internal/socket"
)

// pendingDrain tracks a socket whose command timed out: the bytes already
// received, the expected total, and a deadline for the remainder to arrive
// before the socket is abandoned.
type pendingDrain struct {
	sock     *socket.Socket
	buffered []byte
	expected int
	deadline time.Time
}

// RecoverList holds sockets that timed out mid-command but may still be
// live. A maintenance step (driven by the tend task) attempts non-blocking
// reads to consume the remainder; on success the socket returns to the
// pool, otherwise it is closed and the pool's total is decremented.
type RecoverList struct {
	mu      sync.Mutex
	pending []*pendingDrain
}

// NewRecoverList creates an empty recover list.
func NewRecoverList() *RecoverList {
	return &RecoverList{}
}

// Register adds a timed-out socket for draining, with a second-long
// deadline for the remainder to arrive.
func (r *RecoverList) Register(s *socket.Socket, buffered []byte, expected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, &pendingDrain{
		sock:     s,
		buffered: buffered,
		expected: expected,
		deadline: time.Now().Add(time.Second),
	})
}

// Len reports how many sockets are awaiting drain.
func (r *RecoverList) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Drain attempts a non-blocking read against every pending socket. Sockets
// that finish draining before their deadline are returned via onRecovered;
// sockets past deadline are closed and reported via onAbandoned so the pool
// can decrement its total.
func (r *RecoverList) Drain(onRecovered func(*socket.Socket), onAbandoned func(*socket.Socket)) {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	var stillPending []*pendingDrain
	for _, pd := range pending {
		remaining := pd.expected - len(pd.buffered)
		if remaining <= 0 {
			onRecovered(pd.sock)
			continue
		}
		buf := make([]byte, remaining)
		// Immediate (non-blocking-equivalent) deadline: a drain attempt
		// should not itself hang the maintenance step.
		n, err := pd.sock.ReadDeadline(buf, time.Now().Add(10*time.Millisecond))
		if n > 0 {
			pd.buffered = append(pd.buffered, buf[:n]...)
		}
		if len(pd.buffered) >= pd.expected {
			onRecovered(pd.sock)
			continue
		}
		if err != nil && time.Now().After(pd.deadline) {
			pd.sock.Close()
			onAbandoned(pd.sock)
			continue
		}
		if time.Now().After(pd.deadline) {
			pd.sock.Close()
			onAbandoned(pd.sock)
			continue
		}
		stillPending = append(stillPending, pd)
	}

	r.mu.Lock()
	r.pending = append(r.pending, stillPending...)
	r.mu.Unlock()
}
