package codec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Value type tags, prefixed onto every encoded bin/key value.
const (
	ValueNil    byte = 0
	ValueInt    byte = 1
	ValueDouble byte = 2
	ValueString byte = 3
	ValueBlob   byte = 4
	ValueList   byte = 5
	ValueMap    byte = 6
	ValueGeo    byte = 7
	ValueHLL    byte = 8
)

// EncodeInt encodes a signed 64-bit integer value (8 bytes, big-endian).
func EncodeInt(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// DecodeInt decodes an 8-byte big-endian signed integer.
func DecodeInt(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// EncodeDouble encodes an IEEE-754 double (8 bytes, big-endian).
func EncodeDouble(v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

// DecodeDouble decodes an 8-byte big-endian IEEE-754 double.
func DecodeDouble(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// EncodeList msgpack-encodes a CDT list value.
func EncodeList(items []interface{}) ([]byte, error) {
	return msgpack.Marshal(items)
}

// DecodeList decodes a msgpack-encoded CDT list value.
func DecodeList(b []byte) ([]interface{}, error) {
	var out []interface{}
	if err := msgpack.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeMap msgpack-encodes a CDT map value. Key order is preserved by the
// caller via a slice of pairs rather than a Go map: the pairs are written
// directly to the msgpack map header and body in caller order (routing
// them through a Go map first would reorder them on every encode, since
// Go map iteration order is randomized), matching the server's
// ordered-map semantics.
func EncodeMap(pairs [][2]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(len(pairs)); err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if err := enc.Encode(p[0]); err != nil {
			return nil, err
		}
		if err := enc.Encode(p[1]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeMap decodes a msgpack-encoded CDT map value.
func DecodeMap(b []byte) (map[interface{}]interface{}, error) {
	var out map[interface{}]interface{}
	if err := msgpack.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
