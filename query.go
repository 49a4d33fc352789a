package aspike

import (
	"context"
	"sync"

	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/router"
)

// Filter is a secondary-index predicate on one indexed bin: integer
// equality, integer range, or string equality.
type Filter struct {
	BinName string
	tag     byte // codec.ValueInt or codec.ValueString
	begin   int64
	end     int64 // begin == end for an equality filter
	str     string
}

// NewEqualFilter builds an integer equality predicate.
func NewEqualFilter(bin string, value int64) Filter {
	return Filter{BinName: bin, tag: codec.ValueInt, begin: value, end: value}
}

// NewRangeFilter builds an inclusive integer range predicate.
func NewRangeFilter(bin string, begin, end int64) Filter {
	return Filter{BinName: bin, tag: codec.ValueInt, begin: begin, end: end}
}

// NewStringEqualFilter builds a string equality predicate.
func NewStringEqualFilter(bin, value string) Filter {
	return Filter{BinName: bin, tag: codec.ValueString, str: value}
}

// encode lays the predicate out as a filter field: bin-name length, bin
// name, value-type tag, then the tag-dependent operand bytes (two 8-byte
// integers for a range, raw UTF-8 for a string equality).
func (f Filter) encode() codec.Field {
	data := make([]byte, 0, len(f.BinName)+2+16)
	data = append(data, byte(len(f.BinName)))
	data = append(data, f.BinName...)
	data = append(data, f.tag)
	switch f.tag {
	case codec.ValueString:
		data = append(data, f.str...)
	default:
		data = append(data, codec.EncodeInt(f.begin)...)
		data = append(data, codec.EncodeInt(f.end)...)
	}
	return codec.Field{Type: codec.FieldFilter, Data: data}
}

// QueryCallback receives each record matching the query. Returning false
// stops the query.
type QueryCallback func(*Record) bool

// Query runs a secondary-index predicate against namespace/set, fanning
// out one request to every known node.
// Aggregation through a stream UDF is done by QueryAggregate, not Query;
// no result ordering is applied.
func (c *Client) Query(ctx context.Context, pol QueryPolicy, namespace, set string, filter Filter, cb QueryCallback, binNames ...string) error {
	nodes := c.cluster.Nodes()
	if len(nodes) == 0 {
		return newClusterErr("no nodes available for query", nil)
	}

	h := codec.Header{InfoFlags1: codec.InfoRead, InfoFlags2: codec.InfoQuery}
	var ops []codec.Op
	if len(binNames) == 0 {
		h.InfoFlags1 |= codec.InfoGetAll
	} else {
		ops = make([]codec.Op, len(binNames))
		for i, name := range binNames {
			ops[i] = codec.Op{Operator: codec.OpRead, BinName: name}
		}
	}
	fields := []codec.Field{
		{Type: codec.FieldNamespace, Data: []byte(namespace)},
		filter.encode(),
	}
	if set != "" {
		fields = append(fields, codec.Field{Type: codec.FieldSet, Data: []byte(set)})
	}
	if pf := encodePartitionFilter(pol.Filter); pf != nil {
		fields = append(fields, *pf)
	}
	payload := codec.EncodeMessage(h, fields, ops)
	req := router.Request{Payload: payload, Compress: pol.Compress, CompressMin: pol.CompressMin}
	rpol := pol.retryPolicy(false)

	nParts := c.numPartitions(namespace)
	var mu sync.Mutex
	stopped := false
	callback := func(msg *codec.Message) router.StreamAction {
		mu.Lock()
		alreadyStopped := stopped
		mu.Unlock()
		if alreadyStopped || msg.Header.ResultCode != 0 {
			return router.StreamStop
		}
		rec, err := recordFromMessage(keyFromStreamedMessage(namespace, set, msg), msg)
		if err != nil {
			return router.StreamStop
		}
		markResumeProgress(pol.Filter.Resume, rec.Key, nParts)
		if !cb(rec) {
			mu.Lock()
			stopped = true
			mu.Unlock()
			return router.StreamStop
		}
		return router.StreamContinue
	}

	err := c.fanOutNodes(ctx, nodes, rpol, req, callback, pol.ConcurrentNodes)

	mu.Lock()
	truncated := stopped
	mu.Unlock()
	finishResumeTracking(pol.Filter.Resume, truncated, err)
	return err
}

// AggregateCallback receives each partial aggregation value produced by a
// stream UDF. Returning false stops the aggregation; final reduction across
// partials is the caller's job, matching the server's per-node partial
// semantics.
type AggregateCallback func(Value) bool

// QueryAggregate runs a secondary-index predicate and pipes every matching
// record through the named stream UDF on the server, delivering each
// node's partial aggregation values to cb.
func (c *Client) QueryAggregate(ctx context.Context, pol QueryPolicy, namespace, set string, filter Filter, module, function string, args []interface{}, cb AggregateCallback) error {
	nodes := c.cluster.Nodes()
	if len(nodes) == 0 {
		return newClusterErr("no nodes available for aggregation", nil)
	}
	argBytes, err := codec.EncodeList(args)
	if err != nil {
		return err
	}

	h := codec.Header{InfoFlags1: codec.InfoRead, InfoFlags2: codec.InfoQuery}
	fields := []codec.Field{
		{Type: codec.FieldNamespace, Data: []byte(namespace)},
		filter.encode(),
		{Type: codec.FieldUDFOp, Data: []byte{udfOpAggregate}},
		{Type: codec.FieldUDFModule, Data: []byte(module)},
		{Type: codec.FieldUDFFunction, Data: []byte(function)},
		{Type: codec.FieldUDFArgList, Data: argBytes},
	}
	if set != "" {
		fields = append(fields, codec.Field{Type: codec.FieldSet, Data: []byte(set)})
	}
	payload := codec.EncodeMessage(h, fields, nil)
	req := router.Request{Payload: payload, Compress: pol.Compress, CompressMin: pol.CompressMin}
	rpol := pol.retryPolicy(false)

	var mu sync.Mutex
	stopped := false
	callback := func(msg *codec.Message) router.StreamAction {
		mu.Lock()
		alreadyStopped := stopped
		mu.Unlock()
		if alreadyStopped || msg.Header.ResultCode != 0 || len(msg.Ops) == 0 {
			return router.StreamStop
		}
		v, err := decodeValue(msg.Ops[0].ValueTag, msg.Ops[0].Value)
		if err != nil {
			return router.StreamStop
		}
		if !cb(v) {
			mu.Lock()
			stopped = true
			mu.Unlock()
			return router.StreamStop
		}
		return router.StreamContinue
	}

	return c.fanOutNodes(ctx, nodes, rpol, req, callback, pol.ConcurrentNodes)
}
