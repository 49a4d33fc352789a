// Package aspike is a native Go client for a distributed, partitioned
// key-value database: it owns the wire codec, connection pooling, cluster
// tending and request routing, and exposes a record-oriented CRUD, batch,
// scan, query and admin API.
package aspike

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/synnergy-kv/aspike/internal/cluster"
	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/connpool"
	"github.com/synnergy-kv/aspike/internal/router"
	"github.com/synnergy-kv/aspike/internal/socket"
)

// ClientConfig configures a Client's cluster connection.
type ClientConfig struct {
	Seeds           []string
	TendInterval    time.Duration
	InfoTimeout     time.Duration
	AbsentThreshold int32
	PoolLimits      connpool.Limits
	Dialer          *socket.Dialer
	Logger          *logrus.Logger
}

// DefaultClientConfig returns a ClientConfig seeded with host:port pairs and
// the cluster package's defaults for everything else.
func DefaultClientConfig(seeds ...string) ClientConfig {
	cc := cluster.DefaultConfig(seeds)
	return ClientConfig{
		Seeds:           cc.Seeds,
		TendInterval:    cc.TendInterval,
		InfoTimeout:     cc.InfoTimeout,
		AbsentThreshold: cc.AbsentThreshold,
		PoolLimits:      cc.PoolLimits,
		Dialer:          cc.Dialer,
		Logger:          cc.Logger,
	}
}

// Client is the public surface: it wires cluster state and the request
// router into record-oriented operations.
type Client struct {
	cluster     *cluster.State
	router      *router.Router
	stats       *ClusterStats
	dialer      *socket.Dialer
	infoTimeout time.Duration
}

// NewClient creates a Client and starts the background cluster tend task.
// Callers must call Close when done.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	ccfg := cluster.Config{
		Seeds:           cfg.Seeds,
		TendInterval:    cfg.TendInterval,
		InfoTimeout:     cfg.InfoTimeout,
		AbsentThreshold: cfg.AbsentThreshold,
		PoolLimits:      cfg.PoolLimits,
		Dialer:          cfg.Dialer,
		Logger:          cfg.Logger,
	}
	cs := cluster.New(ccfg)
	if err := cs.Start(ctx); err != nil {
		return nil, newClusterErr("failed to start cluster tend loop", err)
	}
	c := &Client{
		cluster:     cs,
		router:      router.New(cs),
		dialer:      ccfg.Dialer,
		infoTimeout: ccfg.InfoTimeout,
	}
	c.stats = newClusterStats(c)
	return c, nil
}

// Close stops the background tend task and releases every node's pool.
func (c *Client) Close() {
	for _, n := range c.cluster.Nodes() {
		n.Deactivate()
	}
	c.cluster.Stop()
}

// Stats returns the client's live ClusterStats view.
func (c *Client) Stats() *ClusterStats { return c.stats }

// IsConnected reports whether at least one node is currently reachable.
func (c *Client) IsConnected() bool { return c.cluster.NodeCount() > 0 }

func (c *Client) execute(ctx context.Context, k *Key, pol Policy, forWrite bool, h codec.Header, fields []codec.Field, ops []codec.Op) (*codec.Message, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	digest, err := k.Digest()
	if err != nil {
		return nil, err
	}
	if pol.Txn != nil {
		if err := pol.Txn.bindNamespace(k.Namespace); err != nil {
			return nil, err
		}
		fields = append(fields, pol.Txn.fields(uint32(pol.TotalTimeout.Milliseconds()))...)
	}
	fields = append([]codec.Field{
		{Type: codec.FieldNamespace, Data: []byte(k.Namespace)},
		{Type: codec.FieldDigest, Data: digest[:]},
	}, fields...)
	if k.Set != "" {
		fields = append(fields, codec.Field{Type: codec.FieldSet, Data: []byte(k.Set)})
	}
	h.InfoFlags3 |= pol.infoFlags()

	payload := codec.EncodeMessage(h, fields, ops)
	msg, err := c.router.Execute(ctx, k.Namespace, digest, pol.retryPolicy(forWrite), router.Request{
		Payload:     payload,
		Compress:    pol.Compress,
		CompressMin: pol.CompressMin,
	})
	if err != nil {
		return nil, classifyTransportErr(err)
	}
	if pol.Txn != nil && msg.Header.ResultCode == 0 {
		if forWrite {
			pol.Txn.recordWrite(digest, msg.Header.Generation)
		} else {
			pol.Txn.recordRead(digest, msg.Header.Generation)
		}
	}
	if msg.Header.ResultCode != 0 {
		return msg, newServerErr(int(msg.Header.ResultCode))
	}
	return msg, nil
}

func classifyTransportErr(err error) error {
	if _, ok := err.(*codec.Error); ok {
		return &Error{Kind: KindClient, Msg: "codec error", Cause: err}
	}
	if _, ok := err.(*socket.Error); ok {
		return newTimeoutErr(err)
	}
	if err == connpool.ErrAtCapacity {
		return &Error{Kind: KindPool, Msg: "connection pool at capacity", Cause: err}
	}
	if err == cluster.ErrNoNodes {
		return newClusterErr("no nodes available for partition", err)
	}
	return newNetworkErr(err)
}

func recordFromMessage(k *Key, msg *codec.Message) (*Record, error) {
	bins := make(map[string]Value, len(msg.Ops))
	for _, op := range msg.Ops {
		v, err := decodeValue(op.ValueTag, op.Value)
		if err != nil {
			return nil, err
		}
		bins[op.BinName] = v
	}
	return &Record{
		Key:        k,
		Bins:       bins,
		Generation: msg.Header.Generation,
		Expiration: msg.Header.TTL,
	}, nil
}

// Put writes bins to a record, creating it if absent.
func (c *Client) Put(ctx context.Context, pol WritePolicy, k *Key, bins ...Bin) error {
	ops := make([]codec.Op, 0, len(bins))
	for _, b := range bins {
		if err := validateBinName(b.Name); err != nil {
			return err
		}
		val, err := b.Value.encode()
		if err != nil {
			return err
		}
		ops = append(ops, codec.Op{Operator: codec.OpWrite, ValueTag: b.Value.Tag(), BinName: b.Name, Value: val})
	}
	h := codec.Header{
		InfoFlags1: codec.InfoWrite,
		Generation: generationFor(pol),
		TTL:        expirationFor(pol.Expiration),
	}
	if pol.DurableDelete {
		h.InfoFlags1 |= codec.InfoDurableDelete
	}
	switch pol.GenerationPolicy {
	case GenerationEqual:
		h.InfoFlags2 |= codec.InfoGenerationEqual
	case GenerationGreater:
		h.InfoFlags2 |= codec.InfoGenerationGreater
	}
	_, err := c.execute(ctx, k, pol.Policy, true, h, nil, ops)
	return err
}

func generationFor(pol WritePolicy) uint32 {
	if pol.GenerationPolicy == GenerationIgnore {
		return 0
	}
	return pol.ExpectedGeneration
}

func expirationFor(exp int32) uint32 {
	if exp < 0 {
		return 0xFFFFFFFF // never-expire sentinel
	}
	return uint32(exp)
}

// Get reads a record. An empty binNames selects all bins.
func (c *Client) Get(ctx context.Context, pol Policy, k *Key, binNames ...string) (*Record, error) {
	h := codec.Header{InfoFlags1: codec.InfoRead}
	var ops []codec.Op
	if len(binNames) == 0 {
		h.InfoFlags1 |= codec.InfoGetAll
	} else {
		ops = make([]codec.Op, len(binNames))
		for i, name := range binNames {
			ops[i] = codec.Op{Operator: codec.OpRead, BinName: name}
		}
	}
	msg, err := c.execute(ctx, k, pol, false, h, nil, ops)
	if err != nil {
		return nil, err
	}
	return recordFromMessage(k, msg)
}

// Exists reports whether a record exists, without transferring bin data.
func (c *Client) Exists(ctx context.Context, pol Policy, k *Key) (bool, error) {
	h := codec.Header{InfoFlags1: codec.InfoRead}
	_, err := c.execute(ctx, k, pol, false, h, nil, nil)
	if err != nil {
		if aerr, ok := err.(*Error); ok && aerr.Kind == KindServer && aerr.ResultCode == ResultNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes a record.
func (c *Client) Remove(ctx context.Context, pol WritePolicy, k *Key) (bool, error) {
	h := codec.Header{InfoFlags1: codec.InfoWrite}
	if pol.DurableDelete {
		h.InfoFlags1 |= codec.InfoDurableDelete
	}
	ops := []codec.Op{{Operator: codec.OpWrite}}
	_, err := c.execute(ctx, k, pol.Policy, true, h, nil, ops)
	if err != nil {
		if aerr, ok := err.(*Error); ok && aerr.Kind == KindServer && aerr.ResultCode == ResultNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Touch refreshes a record's TTL without reading or writing bin data.
func (c *Client) Touch(ctx context.Context, pol WritePolicy, k *Key) error {
	h := codec.Header{InfoFlags1: codec.InfoWrite, TTL: expirationFor(pol.Expiration)}
	ops := []codec.Op{{Operator: codec.OpTouch}}
	_, err := c.execute(ctx, k, pol.Policy, true, h, nil, ops)
	return err
}

// Operate applies a sequence of read/write/CDT ops atomically against one
// record.
func (c *Client) Operate(ctx context.Context, pol WritePolicy, k *Key, ops ...codec.Op) (*Record, error) {
	forWrite := false
	for _, op := range ops {
		if op.Operator != codec.OpRead {
			forWrite = true
			break
		}
	}
	h := codec.Header{}
	if forWrite {
		h.InfoFlags1 |= codec.InfoWrite
	} else {
		h.InfoFlags1 |= codec.InfoRead
	}
	msg, err := c.execute(ctx, k, pol.Policy, forWrite, h, nil, ops)
	if err != nil {
		return nil, err
	}
	return recordFromMessage(k, msg)
}
