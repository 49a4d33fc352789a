package codec

import (
	"encoding/binary"
	"fmt"
)

// Field type ids. Numeric values are ABI-fixed by the server.
const (
	FieldNamespace     byte = 0
	FieldSet           byte = 1
	FieldKey           byte = 2
	FieldDigest        byte = 4
	FieldTxnID         byte = 5
	FieldTxnDeadline   byte = 6
	FieldReplica       byte = 21
	FieldScanOptions   byte = 22
	FieldScanTimeout   byte = 23
	FieldQueryBinList  byte = 25
	FieldQueryRange    byte = 26
	FieldIndexName     byte = 27
	FieldFilter        byte = 28
	FieldUDFModule     byte = 29
	FieldUDFFunction   byte = 30
	FieldUDFArgList    byte = 31
	FieldUDFOp         byte = 32
)

// Operator ids. Sub-operators for CDT/bit/HLL/expression types nest a
// msgpack command header behind the same outer operator code.
const (
	OpRead      byte = 1
	OpWrite     byte = 2
	OpIncrement byte = 5
	OpAppend    byte = 9
	OpPrepend   byte = 10
	OpTouch     byte = 11

	OpCDTList byte = 0x50
	OpCDTMap  byte = 0x55
	OpCDTBit  byte = 0x60
	OpCDTHLL  byte = 0x67
	OpExpr    byte = 0x98
)

// Info flag bits packed into the three info-flag bytes of the header.
const (
	InfoRead byte = 1 << iota
	InfoGetAll
	InfoWrite
	InfoDurableDelete
)

const (
	InfoScan byte = 1 << iota
	InfoQuery
	InfoXDR
	InfoReplica
	InfoGenerationEqual
	InfoGenerationGreater
)

const (
	InfoConsistencyAll byte = 1 << iota
	InfoLinearizeRead
)

// headerSize is the fixed 22-byte record-message header:
// header-size(1) + info-flags(3) + unused(1) + result-code(1) +
// generation(4) + ttl(4) + txn-ttl-ms(4) + n-fields(2) + n-ops(2).
const headerSize = 22

// Header is the fixed portion of a record message.
type Header struct {
	InfoFlags1  byte
	InfoFlags2  byte
	InfoFlags3  byte
	ResultCode  byte
	Generation  uint32
	TTL         uint32
	TxnTTLMs    uint32
	NFields     uint16
	NOps        uint16
}

// Field is a length-prefixed field: 4-byte BE size, 1-byte type, payload.
type Field struct {
	Type byte
	Data []byte
}

// Op is a length-prefixed operation entry.
type Op struct {
	Operator byte
	ValueTag byte
	Version  byte
	BinName  string
	Value    []byte
}

// Message is a fully decoded record message (header + fields + ops).
type Message struct {
	Header Header
	Fields []Field
	Ops    []Op
}

// EncodeMessage serializes a record-message header, fields and ops into the
// bytes that follow the transport envelope.
func EncodeMessage(h Header, fields []Field, ops []Op) []byte {
	h.NFields = uint16(len(fields))
	h.NOps = uint16(len(ops))

	buf := make([]byte, headerSize)
	buf[0] = headerSize
	buf[1] = h.InfoFlags1
	buf[2] = h.InfoFlags2
	buf[3] = h.InfoFlags3
	buf[4] = 0 // unused
	buf[5] = h.ResultCode
	binary.BigEndian.PutUint32(buf[6:10], h.Generation)
	binary.BigEndian.PutUint32(buf[10:14], h.TTL)
	binary.BigEndian.PutUint32(buf[14:18], h.TxnTTLMs)
	binary.BigEndian.PutUint16(buf[18:20], h.NFields)
	binary.BigEndian.PutUint16(buf[20:22], h.NOps)

	for _, f := range fields {
		size := uint32(1 + len(f.Data))
		entry := make([]byte, 4+1+len(f.Data))
		binary.BigEndian.PutUint32(entry[0:4], size)
		entry[4] = f.Type
		copy(entry[5:], f.Data)
		buf = append(buf, entry...)
	}

	for _, op := range ops {
		nameLen := len(op.BinName)
		opSize := uint32(1 + 1 + 1 + 1 + nameLen + len(op.Value))
		entry := make([]byte, 4+1+1+1+1+nameLen+len(op.Value))
		binary.BigEndian.PutUint32(entry[0:4], opSize)
		entry[4] = op.Operator
		entry[5] = op.ValueTag
		entry[6] = op.Version
		entry[7] = byte(nameLen)
		copy(entry[8:8+nameLen], op.BinName)
		copy(entry[8+nameLen:], op.Value)
		buf = append(buf, entry...)
	}
	return buf
}

// DecodeMessage parses the fixed header plus the declared fields and ops
// from a record-message payload (the bytes following the transport
// envelope, already decompressed if necessary).
func DecodeMessage(payload []byte) (*Message, error) {
	if len(payload) < 1 {
		return nil, &Error{Kind: Truncated, Msg: "empty record message"}
	}
	hdrSize := int(payload[0])
	if hdrSize < headerSize || len(payload) < hdrSize {
		return nil, &Error{Kind: Truncated, Msg: "short record header"}
	}

	h := Header{
		InfoFlags1: payload[1],
		InfoFlags2: payload[2],
		InfoFlags3: payload[3],
		ResultCode: payload[5],
		Generation: binary.BigEndian.Uint32(payload[6:10]),
		TTL:        binary.BigEndian.Uint32(payload[10:14]),
		TxnTTLMs:   binary.BigEndian.Uint32(payload[14:18]),
		NFields:    binary.BigEndian.Uint16(payload[18:20]),
		NOps:       binary.BigEndian.Uint16(payload[20:22]),
	}

	off := hdrSize
	fields := make([]Field, 0, h.NFields)
	for i := 0; i < int(h.NFields); i++ {
		if off+4 > len(payload) {
			return nil, &Error{Kind: Truncated, Msg: "truncated field size"}
		}
		size := binary.BigEndian.Uint32(payload[off : off+4])
		off += 4
		if size < 1 || off+int(size) > len(payload) {
			return nil, &Error{Kind: Truncated, Msg: "truncated field body"}
		}
		typ := payload[off]
		data := payload[off+1 : off+int(size)]
		fields = append(fields, Field{Type: typ, Data: append([]byte(nil), data...)})
		off += int(size)
	}

	ops := make([]Op, 0, h.NOps)
	for i := 0; i < int(h.NOps); i++ {
		if off+4 > len(payload) {
			return nil, &Error{Kind: Truncated, Msg: "truncated op size"}
		}
		size := binary.BigEndian.Uint32(payload[off : off+4])
		off += 4
		if off+int(size) > len(payload) {
			return nil, &Error{Kind: Truncated, Msg: "truncated op body"}
		}
		opEnd := off + int(size)
		if size < 4 {
			return nil, &Error{Kind: Truncated, Msg: "short op header"}
		}
		operator := payload[off]
		valueTag := payload[off+1]
		version := payload[off+2]
		nameLen := int(payload[off+3])
		nameStart := off + 4
		if nameStart+nameLen > opEnd {
			return nil, &Error{Kind: Truncated, Msg: "truncated bin name"}
		}
		name := string(payload[nameStart : nameStart+nameLen])
		value := payload[nameStart+nameLen : opEnd]
		ops = append(ops, Op{
			Operator: operator,
			ValueTag: valueTag,
			Version:  version,
			BinName:  name,
			Value:    append([]byte(nil), value...),
		})
		off = opEnd
	}

	return &Message{Header: h, Fields: fields, Ops: ops}, nil
}

// ValidateOperator rejects operator codes outside the known catalogue.
func ValidateOperator(op byte) error {
	switch op {
	case OpRead, OpWrite, OpIncrement, OpAppend, OpPrepend, OpTouch,
		OpCDTList, OpCDTMap, OpCDTBit, OpCDTHLL, OpExpr:
		return nil
	default:
		return &Error{Kind: UnknownOperator, Msg: fmt.Sprintf("unknown operator 0x%x", op)}
	}
}
