package aspike

import (
	"time"

	"github.com/synnergy-kv/aspike/internal/cluster"
	"github.com/synnergy-kv/aspike/internal/router"
)

// ReplicaPolicy selects which copy of a partition serves a read.
type ReplicaPolicy int

const (
	ReplicaMaster     = ReplicaPolicy(cluster.ReplicaMaster)
	ReplicaAny        = ReplicaPolicy(cluster.ReplicaAny)
	ReplicaSequence   = ReplicaPolicy(cluster.ReplicaSequence)
	ReplicaPreferRack = ReplicaPolicy(cluster.ReplicaPreferRack)
)

// Policy carries the per-call tunables shared by read and write
// operations: timeouts, retry behavior, replica selection, consistency and
// durability flags, and envelope compression.
type Policy struct {
	SocketTimeout       time.Duration
	TotalTimeout        time.Duration
	MaxRetries          int
	SleepBetweenRetries time.Duration
	Replica             ReplicaPolicy
	LinearizeRead       bool
	ConsistencyAll      bool
	DurableDelete       bool
	Compress            bool
	CompressMin         int
	Txn                 *TransactionId
}

// DefaultPolicy returns the stock tuning: one-second socket
// timeout, two-second total timeout, two retries on retriable failures.
func DefaultPolicy() Policy {
	return Policy{
		SocketTimeout:       time.Second,
		TotalTimeout:        time.Second * 2,
		MaxRetries:          2,
		SleepBetweenRetries: 5 * time.Millisecond,
		Replica:             ReplicaPolicy(ReplicaMaster),
		CompressMin:         0,
	}
}

func (p Policy) retryPolicy(forWrite bool) router.RetryPolicy {
	return router.RetryPolicy{
		SocketTimeout:       p.SocketTimeout,
		TotalTimeout:        p.TotalTimeout,
		MaxRetries:          p.MaxRetries,
		SleepBetweenRetries: p.SleepBetweenRetries,
		Replica:             cluster.Replica(p.Replica),
		ForWrite:            forWrite,
	}
}

// WritePolicy adds generation-check behavior to Policy for Put/Operate
// calls that must enforce optimistic concurrency.
type WritePolicy struct {
	Policy
	GenerationPolicy   GenerationPolicy
	ExpectedGeneration uint32 // checked against the record's generation when GenerationPolicy != GenerationIgnore
	Expiration         int32  // seconds, 0 = server default, -1 = never expire
}

// GenerationPolicy controls whether a write checks the record's generation.
type GenerationPolicy int

const (
	GenerationIgnore GenerationPolicy = iota
	GenerationEqual
	GenerationGreater
)

// DefaultWritePolicy returns a WritePolicy with no generation check.
func DefaultWritePolicy() WritePolicy {
	return WritePolicy{Policy: DefaultPolicy(), GenerationPolicy: GenerationIgnore}
}

// ScanPolicy tunes a Scan operation.
type ScanPolicy struct {
	Policy
	ConcurrentNodes  bool
	MaxRecords       int64
	RecordsPerSecond int
	Filter           PartitionFilter
}

// DefaultScanPolicy returns a ScanPolicy with concurrent per-node scanning.
func DefaultScanPolicy() ScanPolicy {
	p := DefaultPolicy()
	p.TotalTimeout = 0
	return ScanPolicy{Policy: p, ConcurrentNodes: true, Filter: AllPartitions()}
}

// QueryPolicy tunes a Query operation.
type QueryPolicy struct {
	Policy
	ConcurrentNodes bool
	Filter          PartitionFilter
}

// DefaultQueryPolicy returns a QueryPolicy with concurrent per-node querying.
func DefaultQueryPolicy() QueryPolicy {
	p := DefaultPolicy()
	p.TotalTimeout = 0
	return QueryPolicy{Policy: p, ConcurrentNodes: true, Filter: AllPartitions()}
}

// BatchPolicy tunes a batch operation.
type BatchPolicy struct {
	Policy
	AllowPartialResults bool
}

// DefaultBatchPolicy returns a BatchPolicy that fails the whole batch on
// any node error.
func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{Policy: DefaultPolicy(), AllowPartialResults: false}
}

func (p Policy) infoFlags() byte {
	var f byte
	if p.ConsistencyAll {
		f |= InfoConsistencyAllBit
	}
	if p.LinearizeRead {
		f |= InfoLinearizeReadBit
	}
	return f
}

// InfoConsistencyAllBit / InfoLinearizeReadBit re-export the codec package's
// third info-flag byte bits for callers building custom ops.
const (
	InfoConsistencyAllBit byte = 1
	InfoLinearizeReadBit  byte = 2
)
