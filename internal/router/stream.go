package router

import (
	"context"
	"time"

	"github.com/synnergy-kv/aspike/internal/cluster"
	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/socket"
)

// StreamAction is returned by a stream callback to control draining.
type StreamAction int

const (
	StreamContinue StreamAction = iota
	StreamStop
)

// StreamCallback receives one decoded message per record/part. Returning
// StreamStop ends delivery; the remaining parts are read and discarded up to
// the end-of-stream marker so the connection can go back to its pool.
type StreamCallback func(*codec.Message) StreamAction

// isEndOfStream reports whether a message's fields mark the end of a
// streamed reply: servers signal this via a non-zero result code on a
// message with no ops in the single connection's byte stream.
func isEndOfStream(msg *codec.Message) bool {
	return len(msg.Ops) == 0 && msg.Header.ResultCode != 0
}

// ExecuteStream drives a multi-part reply (batch/scan/query) over a single
// connection, invoking cb for every part until the stream ends, cb asks to
// stop, or an error occurs.
func (r *Router) ExecuteStream(ctx context.Context, namespace string, digest [20]byte, pol RetryPolicy, req Request, cb StreamCallback) error {
	node, err := r.SelectNode(namespace, digest, pol, false)
	if err != nil {
		return err
	}
	return r.ExecuteStreamOnNode(ctx, node, pol, req, cb)
}

// ExecuteStreamOnNode drives a multi-part reply against an explicitly
// chosen node, bypassing digest-based selection. Scan and query fan out one
// of these per node rather than per key.
func (r *Router) ExecuteStreamOnNode(ctx context.Context, node *cluster.Node, pol RetryPolicy, req Request, cb StreamCallback) error {
	sock, err := node.Pool().Acquire(ctx)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(pol.SocketTimeout)
	hdr, err := codec.EncodeEnvelope(codec.TypeRecord, uint64(len(req.Payload)))
	if err != nil {
		node.Pool().Release(sock)
		return err
	}
	if _, err := sock.WriteDeadline(append(hdr, req.Payload...), deadline); err != nil {
		node.RecordTimeout()
		node.Pool().Recover().Register(sock, nil, 0)
		return err
	}

	for {
		if pol.TotalTimeout > 0 {
			deadline = time.Now().Add(pol.SocketTimeout)
		}
		respHdr := make([]byte, 8)
		if err := sock.ReadFullDeadline(respHdr, deadline); err != nil {
			node.RecordTimeout()
			node.Pool().Recover().Register(sock, nil, 0)
			return err
		}
		env, err := codec.DecodeEnvelope(respHdr)
		if err != nil {
			node.Pool().Release(sock)
			return err
		}
		body := make([]byte, env.Size)
		if err := sock.ReadFullDeadline(body, deadline); err != nil {
			node.RecordTimeout()
			node.Pool().Recover().Register(sock, body, int(env.Size))
			return err
		}
		if env.Type == codec.TypeCompressed {
			body, err = codec.DecompressPayload(body)
			if err != nil {
				node.Pool().Release(sock)
				return err
			}
		}

		msg, err := codec.DecodeMessage(body)
		if err != nil {
			node.Pool().Release(sock)
			return err
		}

		if isEndOfStream(msg) {
			node.Pool().Release(sock)
			return nil
		}

		action := cb(msg)
		if action == StreamStop {
			// The stream hasn't reached its end-of-stream marker yet: the
			// server still has more parts queued on this connection. Drain
			// them unread so the next acquirer of this pooled socket doesn't
			// desync on the leftover bytes.
			if err := r.drainStream(node, sock, pol); err != nil {
				return nil
			}
			node.Pool().Release(sock)
			return nil
		}
	}
}

// drainStream reads and discards further stream parts on sock until the
// end-of-stream marker, without invoking cb again. Used when a streaming
// callback asked to stop before the server finished sending.
// On a read failure the socket is handed to the recover list the same way
// the main receive loop does, rather than released or closed outright.
func (r *Router) drainStream(node *cluster.Node, sock *socket.Socket, pol RetryPolicy) error {
	for {
		deadline := time.Now().Add(pol.SocketTimeout)
		respHdr := make([]byte, 8)
		if err := sock.ReadFullDeadline(respHdr, deadline); err != nil {
			node.RecordTimeout()
			node.Pool().Recover().Register(sock, nil, 0)
			return err
		}
		env, err := codec.DecodeEnvelope(respHdr)
		if err != nil {
			node.Pool().Release(sock)
			return err
		}
		body := make([]byte, env.Size)
		if err := sock.ReadFullDeadline(body, deadline); err != nil {
			node.RecordTimeout()
			node.Pool().Recover().Register(sock, body, int(env.Size))
			return err
		}
		if env.Type == codec.TypeCompressed {
			body, err = codec.DecompressPayload(body)
			if err != nil {
				node.Pool().Release(sock)
				return err
			}
		}
		msg, err := codec.DecodeMessage(body)
		if err != nil {
			node.Pool().Release(sock)
			return err
		}
		if isEndOfStream(msg) {
			return nil
		}
	}
}
