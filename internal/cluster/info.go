package cluster

import (
	"context"
	"time"

	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/socket"
)

// InfoOnNode runs an info request against a specific node's address,
// outside the tend loop. Used by the client's admin surface (InfoNode,
// UDF/index/user management) to send arbitrary info commands.
func InfoOnNode(ctx context.Context, d *socket.Dialer, n *Node, timeout time.Duration, names ...string) (map[string]string, error) {
	return infoRoundTrip(ctx, d, n.Address(), timeout, names...)
}

// infoRoundTrip opens a short-lived connection to addr, sends an info
// request for the given names, and returns the parsed (name → value) map.
// Used both for initial seed discovery and for each tend cycle's
// per-node probe.
func infoRoundTrip(ctx context.Context, d *socket.Dialer, addr string, timeout time.Duration, names ...string) (map[string]string, error) {
	sock, err := d.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer sock.Close()

	deadline := time.Now().Add(timeout)
	payload := codec.BuildInfoRequest(names...)
	hdr, err := codec.EncodeEnvelope(codec.TypeInfo, uint64(len(payload)))
	if err != nil {
		return nil, err
	}
	if _, err := sock.WriteDeadline(append(hdr, payload...), deadline); err != nil {
		return nil, err
	}

	respHdr := make([]byte, 8)
	if err := sock.ReadFullDeadline(respHdr, deadline); err != nil {
		return nil, err
	}
	env, err := codec.DecodeEnvelope(respHdr)
	if err != nil {
		return nil, err
	}
	body := make([]byte, env.Size)
	if err := sock.ReadFullDeadline(body, deadline); err != nil {
		return nil, err
	}

	out := make(map[string]string)
	if err := codec.ParseInfoReply(body, func(name, value string) { out[name] = value }); err != nil {
		return nil, err
	}
	return out, nil
}
