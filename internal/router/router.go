// Package router maps (namespace, digest, policy) to a node and connection
// and drives one send/receive cycle. Cluster and connection state live in
// cluster.State and connpool.Pool; a Router itself holds only the
// round-robin counter used by ReplicaSequence.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/synnergy-kv/aspike/internal/cluster"
	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/connpool"
	"github.com/synnergy-kv/aspike/internal/socket"
)

// RetryPolicy carries the per-op knobs the router needs from the caller's
// Policy without depending on the root package's type.
type RetryPolicy struct {
	SocketTimeout       time.Duration
	TotalTimeout        time.Duration
	MaxRetries          int
	SleepBetweenRetries time.Duration
	Replica             cluster.Replica
	ForWrite            bool
}

// Router drives requests against a ClusterState.
type Router struct {
	cluster *cluster.State
	seq     uint64 // round-robin counter for ReplicaSequence
}

// New creates a Router bound to a ClusterState.
func New(cs *cluster.State) *Router {
	return &Router{cluster: cs}
}

// SelectNode picks the node that should serve a request for the given
// namespace/digest under the given replica policy.
func (r *Router) SelectNode(namespace string, digest [20]byte, pol RetryPolicy, preferAlt bool) (*cluster.Node, error) {
	pm := r.cluster.PartitionMapFor(namespace)
	if pm == nil || r.cluster.NodeCount() == 0 {
		return nil, cluster.ErrNoNodes
	}
	p := codec.PartitionID(digest, pm.NumPartitions())

	if pol.ForWrite {
		master := pm.Master(p)
		if master == nil {
			return nil, cluster.ErrNoNodes
		}
		return master, nil
	}

	switch pol.Replica {
	case cluster.ReplicaMaster:
		if m := pm.Master(p); m != nil {
			return m, nil
		}
		return nil, cluster.ErrNoNodes
	case cluster.ReplicaAny:
		if preferAlt {
			if pr := pm.Prole(p); pr != nil {
				return pr, nil
			}
		}
		if m := pm.Master(p); m != nil {
			return m, nil
		}
		return nil, cluster.ErrNoNodes
	case cluster.ReplicaSequence:
		n := atomic.AddUint64(&r.seq, 1)
		if n%2 == 0 {
			if pr := pm.Prole(p); pr != nil {
				return pr, nil
			}
		}
		if m := pm.Master(p); m != nil {
			return m, nil
		}
		if pr := pm.Prole(p); pr != nil {
			return pr, nil
		}
		return nil, cluster.ErrNoNodes
	case cluster.ReplicaPreferRack:
		// Rack-awareness is not modeled; fall back to prole-else-master.
		if pr := pm.Prole(p); pr != nil {
			return pr, nil
		}
		if m := pm.Master(p); m != nil {
			return m, nil
		}
		return nil, cluster.ErrNoNodes
	default:
		if m := pm.Master(p); m != nil {
			return m, nil
		}
		return nil, cluster.ErrNoNodes
	}
}

// Request is the raw bytes of a record message (no envelope) already built
// by the caller via codec.EncodeMessage.
type Request struct {
	Payload     []byte
	Compress    bool
	CompressMin int
}

// classify maps a socket-layer error onto whether the Router's retry
// machinery should retry it.
func classify(err error) (retriable bool) {
	var sockErr *socket.Error
	if errors.As(err, &sockErr) {
		switch sockErr.Kind {
		case socket.ConnectTimeout, socket.ReadTimeout, socket.PeerClosed:
			return true
		case socket.WriteTimeout:
			return true
		}
	}
	if errors.Is(err, connpool.ErrAtCapacity) {
		return false
	}
	return false
}

// Execute sends req to namespace/digest's selected node and returns the
// parsed reply, retrying per pol on retriable failures.
func (r *Router) Execute(ctx context.Context, namespace string, digest [20]byte, pol RetryPolicy, req Request) (*codec.Message, error) {
	deadline := time.Now().Add(pol.TotalTimeout)
	var lastErr error
	var lastMsg *codec.Message

	attempts := pol.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if pol.TotalTimeout > 0 && time.Now().After(deadline) {
			if lastMsg != nil {
				return lastMsg, nil
			}
			return nil, fmt.Errorf("router: total timeout exceeded: %w", lastErr)
		}

		node, err := r.SelectNode(namespace, digest, pol, attempt%2 == 1)
		if err != nil {
			lastErr = err
			if attempt < attempts-1 {
				sleepRetry(pol.SleepBetweenRetries, ctx)
				continue
			}
			return nil, err
		}

		msg, err := r.sendOnce(ctx, node, req, pol)
		if err != nil {
			lastErr = err
			node.RecordError()
			if !classify(err) {
				return nil, err
			}
			if attempt < attempts-1 {
				sleepRetry(pol.SleepBetweenRetries, ctx)
			}
			continue
		}

		// A successful transport round trip can still carry a retriable
		// server result code (CLUSTER_MISMATCH, PARTITION_UNAVAILABLE,
		// server TIMEOUT/BUSY): retry it the same way a transport failure
		// is retried, re-selecting the node in case the next tend cycle
		// published a new partition map.
		if msg.Header.ResultCode != codec.ResultOK && codec.RetriableResultCode(msg.Header.ResultCode) {
			lastMsg = msg
			node.RecordError()
			if attempt < attempts-1 {
				sleepRetry(pol.SleepBetweenRetries, ctx)
				continue
			}
			return msg, nil
		}
		return msg, nil
	}
	if lastMsg != nil {
		return lastMsg, nil
	}
	return nil, lastErr
}

// ExecuteOnNode drives one send/receive cycle against an explicitly chosen
// node, bypassing digest-based selection. Background scan/query dispatch
// uses this to deliver the same job request to every node.
func (r *Router) ExecuteOnNode(ctx context.Context, node *cluster.Node, pol RetryPolicy, req Request) (*codec.Message, error) {
	msg, err := r.sendOnce(ctx, node, req, pol)
	if err != nil {
		node.RecordError()
		return nil, err
	}
	return msg, nil
}

func sleepRetry(d time.Duration, ctx context.Context) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// sendOnce performs one attempt's full send/receive cycle against a single
// connection checked out from node's pool.
func (r *Router) sendOnce(ctx context.Context, node *cluster.Node, req Request, pol RetryPolicy) (*codec.Message, error) {
	sock, err := node.Pool().Acquire(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(pol.SocketTimeout)

	payload := req.Payload
	envType := codec.TypeRecord
	if req.Compress && req.CompressMin > 0 && len(payload) > req.CompressMin {
		compressed, cerr := codec.CompressPayload(payload)
		if cerr == nil {
			payload = compressed
			envType = codec.TypeCompressed
		}
	}

	hdr, err := codec.EncodeEnvelope(envType, uint64(len(payload)))
	if err != nil {
		node.Pool().Release(sock)
		return nil, err
	}

	if _, err := sock.WriteDeadline(append(hdr, payload...), deadline); err != nil {
		node.RecordTimeout()
		node.Pool().Recover().Register(sock, nil, 0)
		return nil, err
	}

	respHdr := make([]byte, 8)
	if err := sock.ReadFullDeadline(respHdr, deadline); err != nil {
		node.RecordTimeout()
		node.Pool().Recover().Register(sock, nil, 0)
		return nil, err
	}
	env, err := codec.DecodeEnvelope(respHdr)
	if err != nil {
		node.Pool().Release(sock)
		return nil, err
	}

	body := make([]byte, env.Size)
	if err := sock.ReadFullDeadline(body, deadline); err != nil {
		node.RecordTimeout()
		node.Pool().Recover().Register(sock, body, int(env.Size))
		return nil, err
	}

	if env.Type == codec.TypeCompressed {
		body, err = codec.DecompressPayload(body)
		if err != nil {
			node.Pool().Release(sock)
			return nil, err
		}
	}

	node.Pool().Release(sock)

	msg, err := codec.DecodeMessage(body)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
