package codec

import (
	"golang.org/x/crypto/ripemd160"
)

// Digest computes the 20-byte RIPEMD-160 digest the server uses to route a
// record to a partition: RIPEMD160(set ‖ type-tag(user-key) ‖ user-key-bytes).
// When set is empty, the set portion is omitted.
func Digest(set string, keyTag byte, keyBytes []byte) [20]byte {
	h := ripemd160.New()
	if set != "" {
		h.Write([]byte(set))
	}
	h.Write([]byte{keyTag})
	h.Write(keyBytes)

	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// PartitionID extracts the partition id from a digest: the first two bytes
// (little-endian, per server convention) masked to the partition count.
func PartitionID(digest [20]byte, numPartitions int) int {
	id := int(digest[0]) | int(digest[1])<<8
	return id & (numPartitions - 1)
}
