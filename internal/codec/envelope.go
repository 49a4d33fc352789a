// Package codec implements the wire language spoken to a cluster node: the
// transport envelope, the record-message header, the op/field catalogue,
// and the info sub-protocol. It is pure and stateless — no I/O.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Envelope types recognized on the wire.
const (
	TypeInfo       byte = 1
	TypeAdmin      byte = 2
	TypeRecord     byte = 3
	TypeCompressed byte = 4
)

const (
	protoVersion = 2

	// MaxPayloadSize bounds any single envelope payload, inbound or outbound.
	MaxPayloadSize = 128 * 1024 * 1024
)

// Envelope is the 8-byte transport header: version(8) | type(8) | size(48),
// all big-endian, preceding every message on the wire.
type Envelope struct {
	Version byte
	Type    byte
	Size    uint64 // 48-bit payload size that follows the header
}

// EncodeEnvelope writes the 8-byte header for a payload of the given size.
func EncodeEnvelope(typ byte, size uint64) ([]byte, error) {
	if size > MaxPayloadSize {
		return nil, &Error{Kind: SizeTooLarge, Msg: fmt.Sprintf("payload %d exceeds max %d", size, MaxPayloadSize)}
	}
	buf := make([]byte, 8)
	buf[0] = protoVersion
	buf[1] = typ
	// 48-bit big-endian size packed into the low 6 bytes.
	var sz [8]byte
	binary.BigEndian.PutUint64(sz[:], size)
	copy(buf[2:], sz[2:])
	return buf, nil
}

// DecodeEnvelope parses the fixed 8-byte transport header.
func DecodeEnvelope(hdr []byte) (Envelope, error) {
	if len(hdr) != 8 {
		return Envelope{}, &Error{Kind: Truncated, Msg: "short envelope header"}
	}
	if hdr[0] != protoVersion {
		return Envelope{}, &Error{Kind: BadVersion, Msg: fmt.Sprintf("unexpected version %d", hdr[0])}
	}
	var sz [8]byte
	copy(sz[2:], hdr[2:])
	size := binary.BigEndian.Uint64(sz[:])
	if size > MaxPayloadSize {
		return Envelope{}, &Error{Kind: SizeTooLarge, Msg: fmt.Sprintf("declared payload %d exceeds max", size)}
	}
	return Envelope{Version: hdr[0], Type: hdr[1], Size: size}, nil
}

// CompressPayload wraps a record-message payload (envelope included) in a
// compressed envelope: 8-byte uncompressed-size prefix followed by
// zlib-deflated bytes. Callers decide whether the threshold was crossed.
func CompressPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	var sizePrefix [8]byte
	binary.BigEndian.PutUint64(sizePrefix[:], uint64(len(raw)))
	buf.Write(sizePrefix[:])

	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, &Error{Kind: DecompressFailed, Msg: "deflate failed: " + err.Error()}
	}
	if err := zw.Close(); err != nil {
		return nil, &Error{Kind: DecompressFailed, Msg: "deflate close failed: " + err.Error()}
	}
	return buf.Bytes(), nil
}

// DecompressPayload inflates a compressed-envelope payload and validates
// that the inflated size matches the declared uncompressed size.
func DecompressPayload(payload []byte) ([]byte, error) {
	if len(payload) < 8 {
		return nil, &Error{Kind: Truncated, Msg: "short compressed payload"}
	}
	uncompressedSize := binary.BigEndian.Uint64(payload[:8])
	zr, err := zlib.NewReader(bytes.NewReader(payload[8:]))
	if err != nil {
		return nil, &Error{Kind: DecompressFailed, Msg: "zlib open failed: " + err.Error()}
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &Error{Kind: DecompressFailed, Msg: "inflate failed: " + err.Error()}
	}
	if uint64(len(out)) != uncompressedSize {
		return nil, &Error{Kind: DecompressFailed, Msg: "inflated size mismatch"}
	}
	return out, nil
}
