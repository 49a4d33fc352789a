package codec

import "github.com/vmihailenco/msgpack/v5"

// CDT command ids nested inside an OpCDTList/OpCDTMap operation's value.
// Only the handful of commands this client exposes through Operate are
// named; the full catalogue is much larger.
const (
	cdtListAppend byte = 1
	cdtListGet    byte = 3
	cdtListPop    byte = 5
	cdtMapPut     byte = 60
	cdtMapGet     byte = 44
)

// EncodeCDTCommand packs a command id and its positional arguments into the
// msgpack array `[cmd, arg...]` that follows an optional context-path
// prefix. This client never emits a context path, since nested-CDT
// addressing is out of scope for the single-level list/map operations it
// exposes.
func EncodeCDTCommand(cmd byte, args ...interface{}) ([]byte, error) {
	payload := make([]interface{}, 0, 1+len(args))
	payload = append(payload, cmd)
	payload = append(payload, args...)
	return msgpack.Marshal(payload)
}

// ListAppendCommand builds the nested command bytes for appending one
// value to a list bin.
func ListAppendCommand(value interface{}) ([]byte, error) {
	return EncodeCDTCommand(cdtListAppend, value)
}

// ListGetCommand builds the nested command bytes for reading the element
// at index from a list bin.
func ListGetCommand(index int64) ([]byte, error) {
	return EncodeCDTCommand(cdtListGet, index)
}

// ListPopCommand builds the nested command bytes for popping the element
// at index from a list bin.
func ListPopCommand(index int64) ([]byte, error) {
	return EncodeCDTCommand(cdtListPop, index)
}

// MapPutCommand builds the nested command bytes for setting key to value
// in a map bin.
func MapPutCommand(key, value interface{}) ([]byte, error) {
	return EncodeCDTCommand(cdtMapPut, key, value)
}

// MapGetCommand builds the nested command bytes for reading key's value
// from a map bin.
func MapGetCommand(key interface{}) ([]byte, error) {
	return EncodeCDTCommand(cdtMapGet, key)
}
