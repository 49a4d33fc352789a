package aspike

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/synnergy-kv/aspike/internal/codec"
	"github.com/synnergy-kv/aspike/internal/router"
)

// UDF execution modes carried in the udf-op field.
const (
	udfOpAggregate      byte = 1
	udfOpScanBackground byte = 2
)

var jobSeq atomic.Uint64

// nextJobID hands out process-unique background-job ids. The dispatch
// carries this id in the txn-id field; the server echoes the id it actually
// registered, which is what ScanBackground/QueryBackground return.
func nextJobID() uint64 {
	return jobSeq.Add(1)
}

// ScanBackground dispatches a scan that applies the named UDF to every
// record server-side and returns immediately with the job id. Progress is
// polled via JobStatus or awaited via JobWait.
func (c *Client) ScanBackground(ctx context.Context, pol ScanPolicy, namespace, set, module, function string, args []interface{}) (uint64, error) {
	fields := []codec.Field{{Type: codec.FieldScanOptions, Data: []byte{0}}}
	return c.backgroundJob(ctx, pol.Policy, codec.InfoScan, namespace, set, fields, module, function, args)
}

// QueryBackground dispatches a secondary-index query that applies the named
// UDF to every matching record server-side, returning the job id.
func (c *Client) QueryBackground(ctx context.Context, pol QueryPolicy, namespace, set string, filter Filter, module, function string, args []interface{}) (uint64, error) {
	fields := []codec.Field{filter.encode()}
	return c.backgroundJob(ctx, pol.Policy, codec.InfoQuery, namespace, set, fields, module, function, args)
}

// backgroundJob frames a background scan/query dispatch and delivers it to
// every node: each node applies the UDF to the partitions it masters, so
// the union of node dispatches covers the namespace exactly once.
func (c *Client) backgroundJob(ctx context.Context, pol Policy, kindFlag byte, namespace, set string, extra []codec.Field, module, function string, args []interface{}) (uint64, error) {
	nodes := c.cluster.Nodes()
	if len(nodes) == 0 {
		return 0, newClusterErr("no nodes available for background job", nil)
	}
	argBytes, err := codec.EncodeList(args)
	if err != nil {
		return 0, err
	}
	jobID := nextJobID()

	h := codec.Header{InfoFlags1: codec.InfoWrite, InfoFlags2: kindFlag}
	fields := []codec.Field{
		{Type: codec.FieldNamespace, Data: []byte(namespace)},
		{Type: codec.FieldTxnID, Data: codec.EncodeInt(int64(jobID))},
		{Type: codec.FieldUDFOp, Data: []byte{udfOpScanBackground}},
		{Type: codec.FieldUDFModule, Data: []byte(module)},
		{Type: codec.FieldUDFFunction, Data: []byte(function)},
		{Type: codec.FieldUDFArgList, Data: argBytes},
	}
	fields = append(fields, extra...)
	if set != "" {
		fields = append(fields, codec.Field{Type: codec.FieldSet, Data: []byte(set)})
	}
	payload := codec.EncodeMessage(h, fields, nil)
	req := router.Request{Payload: payload, Compress: pol.Compress, CompressMin: pol.CompressMin}
	rpol := pol.retryPolicy(true)

	for _, n := range nodes {
		msg, err := c.router.ExecuteOnNode(ctx, n, rpol, req)
		if err != nil {
			return 0, classifyTransportErr(err)
		}
		if msg.Header.ResultCode != 0 {
			return 0, newServerErr(int(msg.Header.ResultCode))
		}
		// The ack echoes the registered id; a server-side reassignment
		// supersedes the one we proposed.
		for _, f := range msg.Fields {
			if f.Type == codec.FieldTxnID && len(f.Data) == 8 {
				jobID = uint64(codec.DecodeInt(f.Data))
			}
		}
	}
	return jobID, nil
}

// JobInfo is one node's view of a background job's progress, polled over
// the info sub-protocol.
type JobInfo struct {
	Status           string
	Progress         int
	RecordsSucceeded int64
	InProgress       bool
}

// parseJobInfo decodes a jobs info reply value of the k=v;k=v convention.
func parseJobInfo(value string) JobInfo {
	if value == "" {
		// A node with no entry for the job has finished (or never owned)
		// it; treating absence as in-progress would make JobWait spin
		// forever against a node that already reaped the job.
		return JobInfo{Status: "not-found"}
	}
	info := JobInfo{Status: "unknown", InProgress: true}
	for _, pair := range strings.Split(value, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		switch k {
		case "status":
			info.Status = v
			info.InProgress = strings.Contains(v, "active") || strings.Contains(v, "in-progress")
		case "job-progress":
			if n, err := strconv.Atoi(v); err == nil {
				info.Progress = n
			}
		case "recs-succeeded":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				info.RecordsSucceeded = n
			}
		}
	}
	return info
}

func jobCommand(module string, jobID uint64) string {
	return fmt.Sprintf("jobs:module=%s;cmd=get-job;trid=%d", module, jobID)
}

// JobStatus polls every node for a background job's progress and merges
// the per-node views: the job is in progress while any node still reports
// it active; record counts sum across nodes. module is "scan" or "query".
func (c *Client) JobStatus(ctx context.Context, module string, jobID uint64) (JobInfo, error) {
	cmd := jobCommand(module, jobID)
	results, errs := c.InfoForeach(ctx, cmd)
	if len(results) == 0 {
		for _, err := range errs {
			return JobInfo{}, err
		}
		return JobInfo{}, newClusterErr("no nodes answered job status poll", nil)
	}
	merged := JobInfo{Status: "done"}
	for _, reply := range results {
		info := parseJobInfo(reply[cmd])
		merged.RecordsSucceeded += info.RecordsSucceeded
		if info.Progress > merged.Progress {
			merged.Progress = info.Progress
		}
		if info.InProgress {
			merged.InProgress = true
			merged.Status = info.Status
		}
	}
	return merged, nil
}

// JobWait polls JobStatus at the given interval (default one second) until
// the job is no longer in progress or ctx expires.
func (c *Client) JobWait(ctx context.Context, module string, jobID uint64, interval time.Duration) (JobInfo, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		info, err := c.JobStatus(ctx, module, jobID)
		if err != nil {
			return info, err
		}
		if !info.InProgress {
			return info, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return info, newTimeoutErr(ctx.Err())
		}
	}
}
