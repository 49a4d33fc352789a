package aspike

import "github.com/synnergy-kv/aspike/internal/codec"

// Builders for the plain operator catalogue, for composing multi-op
// Operate calls: read, write, increment, append, prepend, touch.
// CDT sub-operator builders live in cdt.go.

// GetOp reads one bin within an Operate call.
func GetOp(bin string) (codec.Op, error) {
	if err := validateBinName(bin); err != nil {
		return codec.Op{}, err
	}
	return codec.Op{Operator: codec.OpRead, BinName: bin}, nil
}

// PutOp writes a value to one bin within an Operate call.
func PutOp(bin string, v Value) (codec.Op, error) {
	if err := validateBinName(bin); err != nil {
		return codec.Op{}, err
	}
	data, err := v.encode()
	if err != nil {
		return codec.Op{}, err
	}
	return codec.Op{Operator: codec.OpWrite, ValueTag: v.Tag(), BinName: bin, Value: data}, nil
}

// AddOp atomically adds delta to an integer bin.
func AddOp(bin string, delta int64) (codec.Op, error) {
	if err := validateBinName(bin); err != nil {
		return codec.Op{}, err
	}
	return codec.Op{Operator: codec.OpIncrement, ValueTag: codec.ValueInt, BinName: bin, Value: codec.EncodeInt(delta)}, nil
}

// AppendOp appends a string or blob value to a bin of the same type.
func AppendOp(bin string, v Value) (codec.Op, error) {
	return concatOp(codec.OpAppend, bin, v)
}

// PrependOp prepends a string or blob value to a bin of the same type.
func PrependOp(bin string, v Value) (codec.Op, error) {
	return concatOp(codec.OpPrepend, bin, v)
}

func concatOp(operator byte, bin string, v Value) (codec.Op, error) {
	if err := validateBinName(bin); err != nil {
		return codec.Op{}, err
	}
	if v.Tag() != codec.ValueString && v.Tag() != codec.ValueBlob {
		return codec.Op{}, newClientErr("append/prepend requires a string or blob value")
	}
	data, err := v.encode()
	if err != nil {
		return codec.Op{}, err
	}
	return codec.Op{Operator: operator, ValueTag: v.Tag(), BinName: bin, Value: data}, nil
}

// TouchOp refreshes the record's TTL within an Operate call without
// reading or writing bin data.
func TouchOp() codec.Op {
	return codec.Op{Operator: codec.OpTouch}
}
