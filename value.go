package aspike

import (
	"fmt"

	"github.com/synnergy-kv/aspike/internal/codec"
)

// Value is a tagged server-representable value: nil, int, double, string,
// blob, list or map. The geojson and HLL wire tags are not supported: no
// constructor builds them, and encode and decodeValue reject them. The zero
// Value is ValueNil.
type Value struct {
	tag   byte
	i     int64
	f     float64
	s     string
	bytes []byte
	list  []interface{}
	m     [][2]interface{}
}

// NewValue converts a Go value into a Value. Supported inputs mirror the
// server's value taxonomy; anything else is a client error.
func NewValue(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Value{tag: codec.ValueNil}, nil
	case int:
		return Value{tag: codec.ValueInt, i: int64(t)}, nil
	case int64:
		return Value{tag: codec.ValueInt, i: t}, nil
	case float64:
		return Value{tag: codec.ValueDouble, f: t}, nil
	case string:
		return Value{tag: codec.ValueString, s: t}, nil
	case []byte:
		return Value{tag: codec.ValueBlob, bytes: t}, nil
	case []interface{}:
		return Value{tag: codec.ValueList, list: t}, nil
	case [][2]interface{}:
		return Value{tag: codec.ValueMap, m: t}, nil
	default:
		return Value{}, newClientErr(fmt.Sprintf("unsupported value type %T", v))
	}
}

// IntValue, StringValue, BlobValue are convenience constructors.
func IntValue(v int64) Value    { return Value{tag: codec.ValueInt, i: v} }
func DoubleValue(v float64) Value { return Value{tag: codec.ValueDouble, f: v} }
func StringValue(v string) Value  { return Value{tag: codec.ValueString, s: v} }
func BlobValue(v []byte) Value    { return Value{tag: codec.ValueBlob, bytes: v} }
func ListValue(v []interface{}) Value { return Value{tag: codec.ValueList, list: v} }
func MapValue(v [][2]interface{}) Value { return Value{tag: codec.ValueMap, m: v} }

// Tag returns the wire value-type tag.
func (v Value) Tag() byte { return v.tag }

func (v Value) String() string {
	switch v.tag {
	case codec.ValueNil:
		return "<nil>"
	case codec.ValueInt:
		return fmt.Sprintf("%d", v.i)
	case codec.ValueDouble:
		return fmt.Sprintf("%g", v.f)
	case codec.ValueString:
		return v.s
	case codec.ValueBlob:
		return fmt.Sprintf("blob(%d)", len(v.bytes))
	case codec.ValueList:
		return fmt.Sprintf("list(%d)", len(v.list))
	case codec.ValueMap:
		return fmt.Sprintf("map(%d)", len(v.m))
	default:
		return "<unknown>"
	}
}

// Interface returns the underlying Go value.
func (v Value) Interface() interface{} {
	switch v.tag {
	case codec.ValueInt:
		return v.i
	case codec.ValueDouble:
		return v.f
	case codec.ValueString:
		return v.s
	case codec.ValueBlob:
		return v.bytes
	case codec.ValueList:
		return v.list
	case codec.ValueMap:
		return v.m
	default:
		return nil
	}
}

// encode serializes the value's payload bytes for use as an op's value
// field, without the leading tag byte (the tag travels in Op.ValueTag).
func (v Value) encode() ([]byte, error) {
	switch v.tag {
	case codec.ValueNil:
		return nil, nil
	case codec.ValueInt:
		return codec.EncodeInt(v.i), nil
	case codec.ValueDouble:
		return codec.EncodeDouble(v.f), nil
	case codec.ValueString:
		return []byte(v.s), nil
	case codec.ValueBlob:
		return v.bytes, nil
	case codec.ValueList:
		return codec.EncodeList(v.list)
	case codec.ValueMap:
		return codec.EncodeMap(v.m)
	default:
		return nil, newClientErr("cannot encode value with unknown tag")
	}
}

// decodeValue reconstructs a Value from a wire tag and payload bytes.
func decodeValue(tag byte, data []byte) (Value, error) {
	switch tag {
	case codec.ValueNil:
		return Value{tag: codec.ValueNil}, nil
	case codec.ValueInt:
		if len(data) != 8 {
			return Value{}, newClientErr("malformed int value")
		}
		return Value{tag: codec.ValueInt, i: codec.DecodeInt(data)}, nil
	case codec.ValueDouble:
		if len(data) != 8 {
			return Value{}, newClientErr("malformed double value")
		}
		return Value{tag: codec.ValueDouble, f: codec.DecodeDouble(data)}, nil
	case codec.ValueString:
		return Value{tag: codec.ValueString, s: string(data)}, nil
	case codec.ValueBlob:
		return Value{tag: codec.ValueBlob, bytes: append([]byte(nil), data...)}, nil
	case codec.ValueList:
		l, err := codec.DecodeList(data)
		if err != nil {
			return Value{}, err
		}
		return Value{tag: codec.ValueList, list: l}, nil
	case codec.ValueMap:
		m, err := codec.DecodeMap(data)
		if err != nil {
			return Value{}, err
		}
		pairs := make([][2]interface{}, 0, len(m))
		for k, v := range m {
			pairs = append(pairs, [2]interface{}{k, v})
		}
		return Value{tag: codec.ValueMap, m: pairs}, nil
	default:
		return Value{}, newClientErr(fmt.Sprintf("unsupported wire value tag %d", tag))
	}
}

// keyBytes returns the single-byte key-type tag and raw bytes used for
// digest computation: int keys use their 8-byte big-endian
// form, strings and blobs use their raw bytes.
func (v Value) keyBytes() (byte, []byte, error) {
	switch v.tag {
	case codec.ValueInt:
		return codec.ValueInt, codec.EncodeInt(v.i), nil
	case codec.ValueString:
		return codec.ValueString, []byte(v.s), nil
	case codec.ValueBlob:
		return codec.ValueBlob, v.bytes, nil
	default:
		return 0, nil, newClientErr("unsupported key value type for digest")
	}
}
