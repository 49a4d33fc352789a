// Package cluster owns the authoritative node table and per-namespace
// partition maps, and runs the background tend task that keeps them fresh.
package cluster

import (
	"sync"
	"sync/atomic"

	"github.com/synnergy-kv/aspike/internal/connpool"
	"github.com/synnergy-kv/aspike/internal/socket"
)

// Node is a server endpoint: stable name identity, addresses that may
// change across tend cycles, a feature bitmap, and a pool of open
// connections.
type Node struct {
	name      string
	primary   string
	alternate []string
	features  map[string]bool

	partitionGen uint32
	intervalsAbsent int32

	pool *connpool.Pool

	refcount int32
	active   int32 // 1 while live, 0 once deactivated

	errorCount   uint64
	timeoutCount uint64
}

// NewNode creates a reference-counted node with refcount 1, owning a
// connection pool dialed through d.
func NewNode(name, primary string, d *socket.Dialer, limits connpool.Limits) *Node {
	return &Node{
		name:     name,
		primary:  primary,
		features: make(map[string]bool),
		pool:     connpool.New(d, primary, limits),
		refcount: 1,
		active:   1,
	}
}

// Name returns the node's stable identity.
func (n *Node) Name() string { return n.name }

// Address returns the node's current primary address.
func (n *Node) Address() string { return n.primary }

// SetAddress updates the node's primary address. Addresses may change
// across tend cycles while the name stays stable.
func (n *Node) SetAddress(addr string) { n.primary = addr }

// Pool exposes the node's connection pool to the router.
func (n *Node) Pool() *connpool.Pool { return n.pool }

// PartitionGeneration returns the last partition-generation this node
// reported, used to skip redundant replica-bitmap parsing.
func (n *Node) PartitionGeneration() uint32 {
	return atomic.LoadUint32(&n.partitionGen)
}

// SetPartitionGeneration records the node's latest partition-generation.
func (n *Node) SetPartitionGeneration(gen uint32) {
	atomic.StoreUint32(&n.partitionGen, gen)
}

// IncrAbsent increments the consecutive-tend-cycles-without-reply counter.
func (n *Node) IncrAbsent() int32 {
	return atomic.AddInt32(&n.intervalsAbsent, 1)
}

// ResetAbsent clears the absent counter after a successful tend reply.
func (n *Node) ResetAbsent() { atomic.StoreInt32(&n.intervalsAbsent, 0) }

// AbsentIntervals reports how many consecutive tend cycles this node has
// failed to reply.
func (n *Node) AbsentIntervals() int32 { return atomic.LoadInt32(&n.intervalsAbsent) }

// Retain increments the reference count. PartitionMap's SetMaster and
// SetProle do not call it.
func (n *Node) Retain() { atomic.AddInt32(&n.refcount, 1) }

// Release decrements the reference count.
func (n *Node) Release() { atomic.AddInt32(&n.refcount, -1) }

// RefCount returns the current reference count.
func (n *Node) RefCount() int32 { return atomic.LoadInt32(&n.refcount) }

// Deactivate marks the node as no longer live. Callers must have already
// dropped every PartitionMap reference to it.
func (n *Node) Deactivate() {
	atomic.StoreInt32(&n.active, 0)
	n.pool.Close()
}

// Active reports whether the node is still live.
func (n *Node) Active() bool { return atomic.LoadInt32(&n.active) == 1 }

// RecordError / RecordTimeout track per-node command outcomes.
func (n *Node) RecordError()   { atomic.AddUint64(&n.errorCount, 1) }
func (n *Node) RecordTimeout() { atomic.AddUint64(&n.timeoutCount, 1) }

// ErrorCount / TimeoutCount expose the accumulated counters.
func (n *Node) ErrorCount() uint64   { return atomic.LoadUint64(&n.errorCount) }
func (n *Node) TimeoutCount() uint64 { return atomic.LoadUint64(&n.timeoutCount) }

// HasFeature reports whether the node advertised the named feature.
func (n *Node) HasFeature(f string) bool {
	return n.features[f]
}

// SetFeatures replaces the node's advertised feature set, parsed from the
// semicolon-delimited "features" info value.
func (n *Node) SetFeatures(fs map[string]bool) { n.features = fs }

// nodeTable is the live node table, keyed by server-reported name.
type nodeTable struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

func newNodeTable() *nodeTable {
	return &nodeTable{nodes: make(map[string]*Node)}
}

func (t *nodeTable) get(name string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[name]
	return n, ok
}

func (t *nodeTable) put(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.name] = n
}

func (t *nodeTable) remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, name)
}

func (t *nodeTable) all() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	return out
}

func (t *nodeTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}
