package aspike

import (
	"strings"
	"testing"

	"github.com/synnergy-kv/aspike/internal/codec"
)

func TestNewKeyRejectsOversizedNames(t *testing.T) {
	if _, err := NewKey(strings.Repeat("n", 32), "demo", "k"); err == nil {
		t.Fatal("expected error for 32-byte namespace")
	}
	if _, err := NewKey("test", strings.Repeat("s", 64), "k"); err == nil {
		t.Fatal("expected error for 64-byte set")
	}
	if _, err := NewKey(strings.Repeat("n", 31), strings.Repeat("s", 63), "k"); err != nil {
		t.Fatalf("expected max-length names to be accepted: %v", err)
	}
}

func TestNewBinRejectsBadNames(t *testing.T) {
	if _, err := NewBin(strings.Repeat("b", 16), 1); err == nil {
		t.Fatal("expected error for 16-byte bin name")
	}
	if _, err := NewBin("has\x00nul", 1); err == nil {
		t.Fatal("expected error for NUL in bin name")
	}
	if _, err := NewBin(strings.Repeat("b", 15), 1); err != nil {
		t.Fatalf("expected 15-byte bin name to be accepted: %v", err)
	}
}

func TestAddOpEncodesIncrement(t *testing.T) {
	op, err := AddOp("counter", 7)
	if err != nil {
		t.Fatalf("AddOp: %v", err)
	}
	if op.Operator != codec.OpIncrement || op.ValueTag != codec.ValueInt {
		t.Fatalf("unexpected op: %+v", op)
	}
	if codec.DecodeInt(op.Value) != 7 {
		t.Fatalf("expected delta 7, got %d", codec.DecodeInt(op.Value))
	}
}

func TestAppendPrependRequireStringOrBlob(t *testing.T) {
	if _, err := AppendOp("b", IntValue(1)); err == nil {
		t.Fatal("expected error appending an int value")
	}
	op, err := AppendOp("b", StringValue("xy"))
	if err != nil {
		t.Fatalf("AppendOp: %v", err)
	}
	if op.Operator != codec.OpAppend || string(op.Value) != "xy" {
		t.Fatalf("unexpected op: %+v", op)
	}
	op, err = PrependOp("b", BlobValue([]byte{9}))
	if err != nil {
		t.Fatalf("PrependOp: %v", err)
	}
	if op.Operator != codec.OpPrepend {
		t.Fatalf("unexpected operator: %+v", op)
	}
}

func TestTouchOpHasNoBin(t *testing.T) {
	op := TouchOp()
	if op.Operator != codec.OpTouch || op.BinName != "" || len(op.Value) != 0 {
		t.Fatalf("unexpected op: %+v", op)
	}
}

func TestGetPutOpRoundTripShape(t *testing.T) {
	g, err := GetOp("b1")
	if err != nil {
		t.Fatalf("GetOp: %v", err)
	}
	if g.Operator != codec.OpRead || g.BinName != "b1" {
		t.Fatalf("unexpected op: %+v", g)
	}
	p, err := PutOp("b1", StringValue("v"))
	if err != nil {
		t.Fatalf("PutOp: %v", err)
	}
	if p.Operator != codec.OpWrite || p.ValueTag != codec.ValueString {
		t.Fatalf("unexpected op: %+v", p)
	}
}
