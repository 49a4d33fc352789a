package aspike

import "github.com/synnergy-kv/aspike/internal/codec"

// CDT operation builders for Operate: list and map sub-operators nested
// inside OpCDTList/OpCDTMap. Each returns a codec.Op ready to pass to
// Client.Operate alongside plain read/write ops.

// ListAppendOp appends value to the list stored in bin.
func ListAppendOp(bin string, value interface{}) (codec.Op, error) {
	cmd, err := codec.ListAppendCommand(value)
	if err != nil {
		return codec.Op{}, newClientErr("cdt list append: " + err.Error())
	}
	return codec.Op{Operator: codec.OpCDTList, ValueTag: codec.ValueBlob, BinName: bin, Value: cmd}, nil
}

// ListGetOp reads the element at index from the list stored in bin.
func ListGetOp(bin string, index int64) (codec.Op, error) {
	cmd, err := codec.ListGetCommand(index)
	if err != nil {
		return codec.Op{}, newClientErr("cdt list get: " + err.Error())
	}
	return codec.Op{Operator: codec.OpCDTList, ValueTag: codec.ValueBlob, BinName: bin, Value: cmd}, nil
}

// ListPopOp removes and returns the element at index from the list stored
// in bin.
func ListPopOp(bin string, index int64) (codec.Op, error) {
	cmd, err := codec.ListPopCommand(index)
	if err != nil {
		return codec.Op{}, newClientErr("cdt list pop: " + err.Error())
	}
	return codec.Op{Operator: codec.OpCDTList, ValueTag: codec.ValueBlob, BinName: bin, Value: cmd}, nil
}

// MapPutOp sets key to value in the map stored in bin.
func MapPutOp(bin string, key, value interface{}) (codec.Op, error) {
	cmd, err := codec.MapPutCommand(key, value)
	if err != nil {
		return codec.Op{}, newClientErr("cdt map put: " + err.Error())
	}
	return codec.Op{Operator: codec.OpCDTMap, ValueTag: codec.ValueBlob, BinName: bin, Value: cmd}, nil
}

// MapGetOp reads key's value from the map stored in bin.
func MapGetOp(bin string, key interface{}) (codec.Op, error) {
	cmd, err := codec.MapGetCommand(key)
	if err != nil {
		return codec.Op{}, newClientErr("cdt map get: " + err.Error())
	}
	return codec.Op{Operator: codec.OpCDTMap, ValueTag: codec.ValueBlob, BinName: bin, Value: cmd}, nil
}

// A CDT op's reply comes back through Operate's Record like any other op:
// decodeValue(op.ValueTag, op.Value) decodes the msgpack-encoded command
// result the same way it decodes a plain blob bin, so Record.Bin(name)
// works unchanged for CDT ops mixed into an Operate call.
