package aspike

import (
	"context"
	"sync"

	"github.com/synnergy-kv/aspike/internal/cluster"
	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/router"
)

// ScanCallback receives each record read by a scan. Returning false stops
// the scan.
type ScanCallback func(*Record) bool

// Scan reads every record of namespace/set, optionally limited to
// binNames, fanning out one request per node. ConcurrentNodes
// in pol controls whether nodes are scanned in parallel or sequentially.
func (c *Client) Scan(ctx context.Context, pol ScanPolicy, namespace, set string, cb ScanCallback, binNames ...string) error {
	nodes := c.cluster.Nodes()
	if len(nodes) == 0 {
		return newClusterErr("no nodes available for scan", nil)
	}

	h := codec.Header{InfoFlags1: codec.InfoRead, InfoFlags2: codec.InfoScan}
	var ops []codec.Op
	if len(binNames) == 0 {
		h.InfoFlags1 |= codec.InfoGetAll
	} else {
		ops = make([]codec.Op, len(binNames))
		for i, name := range binNames {
			ops[i] = codec.Op{Operator: codec.OpRead, BinName: name}
		}
	}
	fields := []codec.Field{{Type: codec.FieldNamespace, Data: []byte(namespace)}}
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
	var delivered int64
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

		mu.Lock()
		delivered++
		maxReached := pol.MaxRecords > 0 && delivered >= pol.MaxRecords
		mu.Unlock()
		markResumeProgress(pol.Filter.Resume, rec.Key, nParts)

		if !cb(rec) {
			mu.Lock()
			stopped = true
			mu.Unlock()
			return router.StreamStop
		}
		if maxReached {
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

// numPartitions returns the namespace's partition count as reported by the
// cluster, or the stock 4096 before the first partition map is published.
func (c *Client) numPartitions(namespace string) int {
	if pm := c.cluster.PartitionMapFor(namespace); pm != nil {
		return pm.NumPartitions()
	}
	return 4096
}

// encodePartitionFilter serializes a PartitionFilter into a single query-
// range field: the server reads this the same way for scans and queries.
func encodePartitionFilter(f PartitionFilter) *codec.Field {
	if f.All && f.Resume == nil {
		return nil
	}
	if f.Resume != nil {
		data := f.Resume.Serialize()
		return &codec.Field{Type: codec.FieldQueryRange, Data: data}
	}
	if f.AfterDigest != nil {
		// Single partition, resumed after a digest: id, count=1, then the
		// 20-byte digest the server should seek past (digest order, not
		// user-key order).
		data := make([]byte, 4+20)
		data[0] = byte(f.PartitionID >> 8)
		data[1] = byte(f.PartitionID)
		data[2] = 0
		data[3] = 1
		copy(data[4:], f.AfterDigest[:])
		return &codec.Field{Type: codec.FieldQueryRange, Data: data}
	}
	data := make([]byte, 4)
	data[0] = byte(f.PartitionID >> 8)
	data[1] = byte(f.PartitionID)
	count := f.Count
	if count == 0 {
		count = 1
	}
	data[2] = byte(count >> 8)
	data[3] = byte(count)
	return &codec.Field{Type: codec.FieldQueryRange, Data: data}
}

// fanOutNodes drives the same streamed request against every node, either
// concurrently or sequentially.
func (c *Client) fanOutNodes(ctx context.Context, nodes []*cluster.Node, pol router.RetryPolicy, req router.Request, cb func(*codec.Message) router.StreamAction, concurrent bool) error {
	if concurrent {
		errs := make(chan error, len(nodes))
		for _, n := range nodes {
			go func(n *cluster.Node) {
				errs <- c.router.ExecuteStreamOnNode(ctx, n, pol, req, cb)
			}(n)
		}
		var firstErr error
		for range nodes {
			if err := <-errs; err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	for _, n := range nodes {
		if err := c.router.ExecuteStreamOnNode(ctx, n, pol, req, cb); err != nil {
			return err
		}
	}
	return nil
}
