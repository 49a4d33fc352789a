package cluster

import (
	"testing"
	"time"

	"github.com/synnergy-kv/aspike/internal/connpool"
	"github.com/synnergy-kv/aspike/internal/socket"
)

func newTestNode(name string) *Node {
	d := socket.NewDialer(time.Second, 0)
	return NewNode(name, "127.0.0.1:0", d, connpool.Limits{MaxConnections: 1, MaxSocketIdle: time.Minute})
}

func TestPartitionMapDisplacesOldOwner(t *testing.T) {
	m := NewPartitionMap(4)
	a := newTestNode("A")
	b := newTestNode("B")

	m.SetMaster(1, a)
	if m.Master(1) != a {
		t.Fatal("expected A as initial master")
	}
	m.SetMaster(1, b)
	if m.Master(1) != b {
		t.Fatal("expected B to silently displace A")
	}
}

func TestPartitionMapNeverReferencesEntryOutOfRange(t *testing.T) {
	m := NewPartitionMap(4)
	if m.Master(99) != nil {
		t.Fatal("expected nil for out-of-range partition")
	}
}

func TestNamespaceMapsSnapshotIsStable(t *testing.T) {
	nm := newNamespaceMaps()
	m1 := NewPartitionMap(4)
	nm.Publish(map[string]*PartitionMap{"test": m1})

	snap := nm.Snapshot()
	m2 := NewPartitionMap(4)
	nm.Publish(map[string]*PartitionMap{"test": m2})

	if snap["test"] != m1 {
		t.Fatal("a previously taken snapshot must not observe a later publish")
	}
	if nm.Get("test") != m2 {
		t.Fatal("Get must observe the latest publish")
	}
}

func TestNodeRefcountAndDeactivate(t *testing.T) {
	n := newTestNode("A")
	if n.RefCount() != 1 {
		t.Fatalf("expected initial refcount 1, got %d", n.RefCount())
	}
	n.Retain()
	if n.RefCount() != 2 {
		t.Fatalf("expected refcount 2 after retain, got %d", n.RefCount())
	}
	n.Release()
	n.Deactivate()
	if n.Active() {
		t.Fatal("expected node inactive after Deactivate")
	}
}

func TestParseFeatureSet(t *testing.T) {
	f := parseFeatureSet("udf;batch-index;pipelining")
	if !f["udf"] || !f["batch-index"] {
		t.Fatalf("unexpected feature set: %v", f)
	}
}

func TestZeroNodeClusterReportsNoNodes(t *testing.T) {
	s := New(DefaultConfig(nil))
	if s.NodeCount() != 0 {
		t.Fatalf("expected zero nodes, got %d", s.NodeCount())
	}
	if s.PartitionMapFor("test") != nil {
		t.Fatal("expected no partition map before discovery")
	}
}
