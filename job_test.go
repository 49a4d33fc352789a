package aspike

import (
	"testing"

	"github.com/synnergy-kv/aspike/internal/codec"
)

func TestParseJobInfo(t *testing.T) {
	info := parseJobInfo("status=active(ok);job-progress=40;recs-succeeded=1200")
	if !info.InProgress {
		t.Fatal("expected active job to be in progress")
	}
	if info.Progress != 40 || info.RecordsSucceeded != 1200 {
		t.Fatalf("unexpected parse: %+v", info)
	}

	info = parseJobInfo("status=done(ok);job-progress=100;recs-succeeded=5000")
	if info.InProgress {
		t.Fatal("expected done job to not be in progress")
	}
}

func TestParseJobInfoAbsentMeansFinished(t *testing.T) {
	info := parseJobInfo("")
	if info.InProgress {
		t.Fatal("a node with no entry for the job must not report in-progress")
	}
}

func TestJobCommandFormat(t *testing.T) {
	got := jobCommand("scan", 42)
	want := "jobs:module=scan;cmd=get-job;trid=42"
	if got != want {
		t.Fatalf("jobCommand = %q, want %q", got, want)
	}
}

func TestNextJobIDIsUnique(t *testing.T) {
	a, b := nextJobID(), nextJobID()
	if a == b {
		t.Fatal("expected distinct job ids")
	}
}

func TestFilterEncodeInt(t *testing.T) {
	f := NewRangeFilter("age", 18, 65)
	field := f.encode()
	if field.Type != codec.FieldFilter {
		t.Fatalf("unexpected field type %d", field.Type)
	}
	nameLen := int(field.Data[0])
	if string(field.Data[1:1+nameLen]) != "age" {
		t.Fatal("bin name not encoded first")
	}
	rest := field.Data[1+nameLen:]
	if rest[0] != codec.ValueInt {
		t.Fatalf("expected int tag, got %d", rest[0])
	}
	if codec.DecodeInt(rest[1:9]) != 18 || codec.DecodeInt(rest[9:17]) != 65 {
		t.Fatal("range bounds not encoded big-endian")
	}
}

func TestFilterEncodeString(t *testing.T) {
	f := NewStringEqualFilter("city", "oslo")
	field := f.encode()
	nameLen := int(field.Data[0])
	rest := field.Data[1+nameLen:]
	if rest[0] != codec.ValueString {
		t.Fatalf("expected string tag, got %d", rest[0])
	}
	if string(rest[1:]) != "oslo" {
		t.Fatalf("expected raw operand bytes, got %q", rest[1:])
	}
}

func TestEncodePartitionFilterAfterDigest(t *testing.T) {
	digest := [20]byte{0xAA, 0xBB}
	f := PartitionAfterDigest(1234, digest)
	field := encodePartitionFilter(f)
	if field == nil {
		t.Fatal("expected a field for an after-digest filter")
	}
	if len(field.Data) != 24 {
		t.Fatalf("expected id+count+digest layout, got %d bytes", len(field.Data))
	}
	id := int(field.Data[0])<<8 | int(field.Data[1])
	count := int(field.Data[2])<<8 | int(field.Data[3])
	if id != 1234 || count != 1 {
		t.Fatalf("unexpected id/count %d/%d", id, count)
	}
	if field.Data[4] != 0xAA || field.Data[5] != 0xBB {
		t.Fatal("digest bytes not carried")
	}
}

func TestEncodePartitionFilterAllIsAbsent(t *testing.T) {
	if f := encodePartitionFilter(AllPartitions()); f != nil {
		t.Fatal("an all-partitions filter must not emit a field")
	}
}
