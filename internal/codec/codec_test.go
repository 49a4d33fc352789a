package codec

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	hdr, err := EncodeEnvelope(TypeRecord, 42)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := DecodeEnvelope(hdr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != TypeRecord || env.Size != 42 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestEnvelopeRejectsOversizedPayload(t *testing.T) {
	if _, err := EncodeEnvelope(TypeRecord, MaxPayloadSize+1); err == nil {
		t.Fatal("expected oversized payload to be rejected")
	}
}

func TestEnvelopeRejectsBadVersion(t *testing.T) {
	hdr := []byte{9, TypeRecord, 0, 0, 0, 0, 0, 0}
	if _, err := DecodeEnvelope(hdr); err == nil {
		t.Fatal("expected bad version to be rejected")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("hello-aspike-"), 100)
	compressed, err := CompressPayload(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	out, err := DecompressPayload(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatal("round trip mismatch")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	fields := []Field{
		{Type: FieldNamespace, Data: []byte("test")},
		{Type: FieldSet, Data: []byte("demo")},
	}
	ops := []Op{
		{Operator: OpWrite, ValueTag: ValueString, BinName: "B1", Value: []byte("V1")},
		{Operator: OpWrite, ValueTag: ValueInt, BinName: "B2", Value: EncodeInt(7)},
	}
	h := Header{Generation: 3, TTL: 100}
	raw := EncodeMessage(h, fields, ops)

	msg, err := DecodeMessage(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Header.Generation != 3 || msg.Header.TTL != 100 {
		t.Fatalf("header mismatch: %+v", msg.Header)
	}
	if len(msg.Fields) != 2 || len(msg.Ops) != 2 {
		t.Fatalf("field/op count mismatch: %+v", msg)
	}
	if msg.Ops[1].BinName != "B2" || DecodeInt(msg.Ops[1].Value) != 7 {
		t.Fatalf("op decode mismatch: %+v", msg.Ops[1])
	}
}

func TestDigestDeterministicAndDistinct(t *testing.T) {
	d1 := Digest("demo", ValueString, []byte("K9"))
	d2 := Digest("demo", ValueString, []byte("K9"))
	if d1 != d2 {
		t.Fatal("digest must be deterministic")
	}
	d3 := Digest("demo", ValueString, []byte("K10"))
	if d1 == d3 {
		t.Fatal("distinct keys must not collide")
	}
	if len(d1) != 20 {
		t.Fatalf("digest must be 20 bytes, got %d", len(d1))
	}
}

func TestPartitionIDMasksToPowerOfTwo(t *testing.T) {
	d := Digest("demo", ValueString, []byte("K9"))
	p := PartitionID(d, 4096)
	if p < 0 || p >= 4096 {
		t.Fatalf("partition id out of range: %d", p)
	}
}

func TestParseInfoReplyToleratesTabAndEquals(t *testing.T) {
	var got [][2]string
	cb := func(name, value string) { got = append(got, [2]string{name, value}) }
	if err := ParseInfoReply([]byte("node\tBB9\nfeatures=udf;batch-index\n"), cb); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0][0] != "node" || got[0][1] != "BB9" ||
		got[1][0] != "features" || got[1][1] != "udf;batch-index" {
		t.Fatalf("unexpected parse result: %v", got)
	}
}

func TestParseInfoReplyFailsClosedOnMalformedLine(t *testing.T) {
	err := ParseInfoReply([]byte("not-a-kv-line\n"), func(string, string) {})
	if err == nil {
		t.Fatal("expected malformed line to fail closed")
	}
}

func TestValidateOperatorRejectsUnknown(t *testing.T) {
	if err := ValidateOperator(0xEE); err == nil {
		t.Fatal("expected unknown operator to be rejected")
	}
	if err := ValidateOperator(OpRead); err != nil {
		t.Fatalf("expected known operator to validate: %v", err)
	}
}

func TestCDTCommandRoundTrip(t *testing.T) {
	cmd, err := ListAppendCommand("hello")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded []interface{}
	if err := msgpack.Unmarshal(cmd, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected [cmd, arg], got %v", decoded)
	}
}

func TestMapPutCommandShape(t *testing.T) {
	cmd, err := MapPutCommand("k", int64(7))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(cmd) == 0 {
		t.Fatal("expected non-empty command bytes")
	}
}

func TestEncodeMapPreservesPairOrder(t *testing.T) {
	pairs := [][2]interface{}{
		{"z", int64(1)},
		{"a", int64(2)},
		{"m", int64(3)},
	}
	b, err := EncodeMap(pairs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(b))
	n, err := dec.DecodeMapLen()
	if err != nil {
		t.Fatalf("decode map len: %v", err)
	}
	if n != len(pairs) {
		t.Fatalf("expected %d pairs, got %d", len(pairs), n)
	}
	for i, want := range pairs {
		key, err := dec.DecodeString()
		if err != nil {
			t.Fatalf("decode key %d: %v", i, err)
		}
		val, err := dec.DecodeInt64()
		if err != nil {
			t.Fatalf("decode value %d: %v", i, err)
		}
		if key != want[0] || val != want[1] {
			t.Fatalf("pair %d out of order: got (%s,%d), want (%v,%v)", i, key, val, want[0], want[1])
		}
	}
}
