package router

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/synnergy-kv/aspike/internal/cluster"
	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/connpool"
	"github.com/synnergy-kv/aspike/internal/socket"
)

func newTestNode(t *testing.T, addr string) *cluster.Node {
	t.Helper()
	d := socket.NewDialer(time.Second, 0)
	return cluster.NewNode("n1", addr, d, connpool.Limits{MaxConnections: 2, MaxSocketIdle: time.Minute})
}

func partitionMapWithMasterAndProle(master, prole *cluster.Node) *cluster.PartitionMap {
	m := cluster.NewPartitionMap(4)
	m.SetMaster(0, master)
	m.SetProle(0, prole)
	return m
}

func TestPartitionMapResolvesMasterForZeroDigest(t *testing.T) {
	master := newTestNode(t, "127.0.0.1:1")
	prole := newTestNode(t, "127.0.0.1:2")
	_ = partitionMapWithMasterAndProle(master, prole)

	r := &Router{}
	// SelectNode needs a live ClusterState; check the PartitionMap lookups it
	// relies on instead of standing up a State.
	pm := partitionMapWithMasterAndProle(master, prole)
	p := codec.PartitionID([20]byte{}, pm.NumPartitions())

	if pm.Master(p) != master {
		t.Fatal("expected master at partition 0")
	}
	_ = r
}

func TestPartitionMapReportsProle(t *testing.T) {
	master := newTestNode(t, "127.0.0.1:1")
	prole := newTestNode(t, "127.0.0.1:2")
	pm := partitionMapWithMasterAndProle(master, prole)

	if pm.Prole(0) != prole {
		t.Fatal("expected prole present at partition 0")
	}
}

func TestPartitionMapWithoutProleKeepsMaster(t *testing.T) {
	master := newTestNode(t, "127.0.0.1:1")
	pm := cluster.NewPartitionMap(4)
	pm.SetMaster(0, master)

	if pm.Prole(0) != nil {
		t.Fatal("expected no prole configured")
	}
	if pm.Master(0) != master {
		t.Fatal("expected master fallback")
	}
}

func TestClassifyRetriesSocketErrorsNotPoolCapacity(t *testing.T) {
	if !classify(&socket.Error{Kind: socket.ReadTimeout, Addr: "x", Err: context.DeadlineExceeded}) {
		t.Fatal("expected read timeout to be retriable")
	}
	if classify(connpool.ErrAtCapacity) {
		t.Fatal("expected pool-at-capacity to not be retriable")
	}
	if classify(nil) {
		t.Fatal("expected nil error to not be retriable")
	}
}

// startRecordServer runs a single-shot TCP server that reads one
// envelope+payload and replies with a canned record-message envelope.
func startRecordServer(t *testing.T, reply []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		hdr := make([]byte, 8)
		if _, err := readFull(c, hdr); err != nil {
			return
		}
		env, err := codec.DecodeEnvelope(hdr)
		if err != nil {
			return
		}
		body := make([]byte, env.Size)
		if _, err := readFull(c, body); err != nil {
			return
		}
		c.Write(reply)
	}()
	return ln.Addr().String()
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestSendOnceRoundTripsAgainstLiveNode(t *testing.T) {
	replyBody := codec.EncodeMessage(codec.Header{ResultCode: 0}, nil, []codec.Op{
		{Operator: codec.OpRead, ValueTag: codec.ValueInt, BinName: "a", Value: codec.EncodeInt(42)},
	})
	hdr, err := codec.EncodeEnvelope(codec.TypeRecord, uint64(len(replyBody)))
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	reply := append(hdr, replyBody...)

	addr := startRecordServer(t, reply)
	node := newTestNode(t, addr)
	r := &Router{}

	reqBody := codec.EncodeMessage(codec.Header{InfoFlags1: codec.InfoRead}, nil, nil)
	msg, err := r.sendOnce(context.Background(), node, Request{Payload: reqBody}, RetryPolicy{SocketTimeout: time.Second})
	if err != nil {
		t.Fatalf("sendOnce: %v", err)
	}
	if len(msg.Ops) != 1 || msg.Ops[0].BinName != "a" {
		t.Fatalf("unexpected decoded message: %+v", msg)
	}
	if codec.DecodeInt(msg.Ops[0].Value) != 42 {
		t.Fatalf("unexpected bin value: %v", msg.Ops[0].Value)
	}
}
