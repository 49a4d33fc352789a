package aspike

import (
	"bytes"
	"context"
	"testing"
)

func TestKeyDigestIsDeterministic(t *testing.T) {
	k1, err := NewKey("test", "users", "alice")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	k2, err := NewKey("test", "users", "alice")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	d1, err := k1.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := k2.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if d1 != d2 {
		t.Fatal("expected identical digests for identical keys")
	}

	k3, _ := NewKey("test", "users", "bob")
	d3, _ := k3.Digest()
	if d1 == d3 {
		t.Fatal("expected different digests for different user keys")
	}
}

func TestKeyDigestDiffersAcrossSets(t *testing.T) {
	k1, _ := NewKey("test", "users", "alice")
	k2, _ := NewKey("test", "accounts", "alice")
	d1, _ := k1.Digest()
	d2, _ := k2.Digest()
	if d1 == d2 {
		t.Fatal("expected different digests across sets for the same user key")
	}
}

func TestValueEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Value{
		IntValue(42),
		DoubleValue(3.5),
		StringValue("hello"),
		BlobValue([]byte{1, 2, 3}),
	}
	for _, v := range cases {
		enc, err := v.encode()
		if err != nil {
			t.Fatalf("encode %v: %v", v, err)
		}
		dec, err := decodeValue(v.Tag(), enc)
		if err != nil {
			t.Fatalf("decode %v: %v", v, err)
		}
		if dec.String() != v.String() {
			t.Fatalf("round trip mismatch: %v != %v", dec, v)
		}
	}
}

func TestNewValueRejectsUnsupportedType(t *testing.T) {
	if _, err := NewValue(struct{}{}); err == nil {
		t.Fatal("expected error for unsupported value type")
	}
}

func TestPartitionsStatusSerializeRoundTrip(t *testing.T) {
	s := NewPartitionsStatus(0, 3)
	s.MarkDigest(1, [20]byte{1, 2, 3}, 99)
	s.MarkRetry(2)
	s.Done = false
	s.Retry = true

	blob := s.Serialize()
	back, err := DeserializePartitionsStatus(blob)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	blob2 := back.Serialize()
	if !bytes.Equal(blob, blob2) {
		t.Fatal("expected byte-identical round trip")
	}
	if !back.Entries[1].DigestInit || back.Entries[1].BVal != 99 {
		t.Fatalf("expected partition 1 digest marked: %+v", back.Entries[1])
	}
	if !back.Entries[2].Retry {
		t.Fatal("expected partition 2 marked for retry")
	}
}

func TestMarkResumeProgressMasksPartitionID(t *testing.T) {
	st := NewPartitionsStatus(0, 4096)
	k, err := NewKey("test", "demo", "alice")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	d, err := k.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	markResumeProgress(st, k, 4096)

	want := (int(d[0]) | int(d[1])<<8) & 4095
	if !st.Entries[want].DigestInit {
		t.Fatalf("expected partition %d marked", want)
	}
	if st.Entries[want].Digest != d {
		t.Fatal("expected the record's digest recorded")
	}
	for i := range st.Entries {
		if i != want && st.Entries[i].DigestInit {
			t.Fatalf("unexpected partition %d marked", i)
		}
	}
}

func TestMarkResumeProgressIgnoresNilStatusAndDigestlessKeys(t *testing.T) {
	k, _ := NewKey("test", "demo", "alice")
	markResumeProgress(nil, k, 4096) // must not panic

	st := NewPartitionsStatus(0, 8)
	markResumeProgress(st, &Key{Namespace: "test"}, 8)
	for i := range st.Entries {
		if st.Entries[i].DigestInit {
			t.Fatal("a key without a digest must not mark any partition")
		}
	}
}

func TestFinishResumeTrackingMarksRetryAndDone(t *testing.T) {
	st := NewPartitionsStatus(0, 4)
	st.Entries[1].DigestInit = true
	finishResumeTracking(st, true, nil)
	if st.Entries[1].Retry {
		t.Fatal("a partition that delivered records must not be retried")
	}
	if !st.Entries[0].Retry || !st.Entries[2].Retry || !st.Entries[3].Retry {
		t.Fatal("untouched partitions must be marked for retry on truncation")
	}
	if st.Done {
		t.Fatal("a truncated stream must not be marked done")
	}

	done := NewPartitionsStatus(0, 2)
	finishResumeTracking(done, false, nil)
	if !done.Done {
		t.Fatal("a completed stream must mark the status done")
	}

	failed := NewPartitionsStatus(0, 2)
	finishResumeTracking(failed, false, newClientErr("boom"))
	if failed.Done {
		t.Fatal("a failed stream must not be marked done")
	}
}

func TestDeserializePartitionsStatusRejectsLengthMismatch(t *testing.T) {
	s := NewPartitionsStatus(0, 2)
	blob := s.Serialize()
	if _, err := DeserializePartitionsStatus(blob[:len(blob)-1]); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestRetriableResultCode(t *testing.T) {
	if retriableResultCode(ResultNotFound) {
		t.Fatal("not-found must not be retried")
	}
	if !retriableResultCode(ResultPartitionUnavail) {
		t.Fatal("partition-unavailable must be retried")
	}
}

func TestTransactionBindsNamespaceOnce(t *testing.T) {
	txn := NewTransaction()
	if err := txn.bindNamespace("test"); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := txn.bindNamespace("test"); err != nil {
		t.Fatalf("rebind same namespace: %v", err)
	}
	if err := txn.bindNamespace("other"); err == nil {
		t.Fatal("expected error binding a second namespace")
	}
}

func TestTransactionFieldsCarryIDAndDeadline(t *testing.T) {
	txn := NewTransaction()
	fields := txn.fields(1500)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Type != 5 || fields[1].Type != 6 {
		t.Fatalf("unexpected field types: %+v", fields)
	}
}

func TestTransactionCommitFinalizesState(t *testing.T) {
	txn := NewTransaction()
	if err := txn.Commit(context.Background(), nil); err != nil {
		t.Fatalf("commit with no writes: %v", err)
	}
	if err := txn.Commit(context.Background(), nil); err == nil {
		t.Fatal("expected error committing an already-finalized transaction")
	}
}

func TestCDTOpBuildersProduceNonEmptyCommands(t *testing.T) {
	op, err := ListAppendOp("mylist", "v1")
	if err != nil {
		t.Fatalf("ListAppendOp: %v", err)
	}
	if op.BinName != "mylist" || len(op.Value) == 0 {
		t.Fatalf("unexpected op: %+v", op)
	}
	op2, err := MapPutOp("mymap", "k", int64(3))
	if err != nil {
		t.Fatalf("MapPutOp: %v", err)
	}
	if op2.BinName != "mymap" || len(op2.Value) == 0 {
		t.Fatalf("unexpected op: %+v", op2)
	}
}
