package aspike

import (
	"fmt"

	"github.com/synnergy-kv/aspike/internal/codec"
)

// Key identifies a single record by namespace, optional set, and a user
// key value. The digest is computed lazily and cached.
type Key struct {
	Namespace string
	Set       string
	Value     Value

	digest    [20]byte
	digestSet bool
}

// Server-imposed name length limits: exceeding them is a client
// parameter error before any bytes hit the wire.
const (
	maxNamespaceLen = 31
	maxSetLen       = 63
	maxBinNameLen   = 15
)

// NewKey builds a Key from a namespace, set, and Go value convertible via
// NewValue.
func NewKey(namespace, set string, userKey interface{}) (*Key, error) {
	v, err := NewValue(userKey)
	if err != nil {
		return nil, err
	}
	k := &Key{Namespace: namespace, Set: set, Value: v}
	if err := k.validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// validate enforces the namespace and set length limits. Called from NewKey
// and again on every execute, since Key's fields are exported and a caller
// may construct one directly.
func (k *Key) validate() error {
	if len(k.Namespace) > maxNamespaceLen {
		return newClientErr(fmt.Sprintf("namespace %q exceeds %d bytes", k.Namespace, maxNamespaceLen))
	}
	if len(k.Set) > maxSetLen {
		return newClientErr(fmt.Sprintf("set %q exceeds %d bytes", k.Set, maxSetLen))
	}
	return nil
}

// Digest returns the 20-byte RIPEMD-160 partition-routing digest for this
// key, computing and caching it on first use.
func (k *Key) Digest() ([20]byte, error) {
	if k.digestSet {
		return k.digest, nil
	}
	tag, raw, err := k.Value.keyBytes()
	if err != nil {
		return [20]byte{}, err
	}
	k.digest = codec.Digest(k.Set, tag, raw)
	k.digestSet = true
	return k.digest, nil
}

func (k *Key) String() string {
	return fmt.Sprintf("%s:%s:%v", k.Namespace, k.Set, k.Value)
}

// keyFromStreamedMessage reconstructs a Key's identity from a scan/query
// reply's fields: the server echoes the record's digest but not its
// original user-key value, so Key.Value stays the zero Value.
func keyFromStreamedMessage(namespace, set string, msg *codec.Message) *Key {
	k := &Key{Namespace: namespace, Set: set}
	for _, f := range msg.Fields {
		if f.Type == codec.FieldDigest && len(f.Data) == 20 {
			copy(k.digest[:], f.Data)
			k.digestSet = true
		}
		if f.Type == codec.FieldSet {
			k.Set = string(f.Data)
		}
	}
	return k
}
