package aspike

import (
	"context"
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/synnergy-kv/aspike/internal/codec"
)

// TransactionId is an opt-in multi-record transaction handle: a
// client-assigned id plus the per-digest read/write version maps the
// server's MRT monitor record uses to detect conflicting concurrent
// writers. Once a namespace is associated with a TransactionId, every op
// passed that TransactionId must use the same namespace.
type TransactionId struct {
	id        uint64
	mu        sync.Mutex
	namespace string
	reads     map[[20]byte]uint64
	writes    map[[20]byte]uint64
	state     txnState
}

type txnState int

const (
	txnOpen txnState = iota
	txnCommitted
	txnAborted
)

var txnSeq struct {
	mu   sync.Mutex
	next uint64
}

// nextTxnID hands out process-unique transaction ids. The server only
// requires uniqueness per client connection, so a simple counter (rather
// than a random 64-bit id) is sufficient and keeps transaction ids legible
// in logs.
func nextTxnID() uint64 {
	txnSeq.mu.Lock()
	defer txnSeq.mu.Unlock()
	txnSeq.next++
	return txnSeq.next
}

// NewTransaction creates an open TransactionId with no namespace bound yet.
// The namespace is fixed by whichever op first uses this handle.
func NewTransaction() *TransactionId {
	return &TransactionId{
		id:     nextTxnID(),
		reads:  make(map[[20]byte]uint64),
		writes: make(map[[20]byte]uint64),
	}
}

// ID returns the transaction's client-assigned identifier.
func (t *TransactionId) ID() uint64 { return t.id }

// bindNamespace associates the transaction with namespace on first use and
// rejects any later op against a different namespace.
func (t *TransactionId) bindNamespace(namespace string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txnOpen {
		return &Error{Kind: KindAborted, Msg: "transaction is no longer open"}
	}
	if t.namespace == "" {
		t.namespace = namespace
		return nil
	}
	if t.namespace != namespace {
		return newClientErr("transaction already bound to namespace " + t.namespace)
	}
	return nil
}

// recordRead notes that digest was read under this transaction at the
// given record generation, forming the read-version map the MRT monitor
// uses to detect a write that raced the transaction.
func (t *TransactionId) recordRead(digest [20]byte, generation uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads[digest] = uint64(generation)
}

// recordWrite notes that digest was written under this transaction,
// registering it with the transaction's monitor record. The monitor
// record itself is a server-side construct; this client tracks the same
// write set locally so Commit/Abort know what to finalize.
func (t *TransactionId) recordWrite(digest [20]byte, generation uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes[digest] = uint64(generation)
}

// fields returns the wire fields (txn-id, txn-deadline) to attach to a
// request carrying this transaction, or nil if txn is nil.
func (t *TransactionId) fields(deadlineMs uint32) []codec.Field {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	id := t.id
	t.mu.Unlock()
	deadline := make([]byte, 4)
	binary.BigEndian.PutUint32(deadline, deadlineMs)
	return []codec.Field{
		{Type: codec.FieldTxnID, Data: codec.EncodeInt(int64(id))},
		{Type: codec.FieldTxnDeadline, Data: deadline},
	}
}

// Commit finalizes the transaction: every digest in its write set is
// considered durable and the handle can no longer be reused. Real commit
// requires a round trip to the server's MRT monitor to flip the record's
// commit marker; that round trip is issued as an info command so the
// monitor record transitions synchronously with this call returning.
func (t *TransactionId) Commit(ctx context.Context, c *Client) error {
	t.mu.Lock()
	if t.state != txnOpen {
		t.mu.Unlock()
		return &Error{Kind: KindAborted, Msg: "transaction already finalized"}
	}
	t.state = txnCommitted
	writeCount := len(t.writes)
	t.mu.Unlock()

	if writeCount == 0 || c == nil {
		return nil
	}
	_, err := c.infoToAnyNode(ctx, commitTxnCommand(t.id))
	return err
}

// Abort rolls back the transaction: the client discards its local
// read/write sets and notifies the cluster so the monitor record, if any,
// is released rather than left to time out.
func (t *TransactionId) Abort(ctx context.Context, c *Client) error {
	t.mu.Lock()
	if t.state != txnOpen {
		t.mu.Unlock()
		return nil
	}
	t.state = txnAborted
	writeCount := len(t.writes)
	t.mu.Unlock()

	if writeCount == 0 || c == nil {
		return nil
	}
	_, err := c.infoToAnyNode(ctx, abortTxnCommand(t.id))
	return err
}

func commitTxnCommand(id uint64) string {
	return "commit-txn:id=" + strconv.FormatUint(id, 10)
}

func abortTxnCommand(id uint64) string {
	return "abort-txn:id=" + strconv.FormatUint(id, 10)
}
