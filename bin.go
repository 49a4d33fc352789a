package aspike

import (
	"fmt"
	"strings"
)

// Bin is a single named value within a record.
type Bin struct {
	Name  string
	Value Value
}

// NewBin constructs a Bin from a Go value.
func NewBin(name string, v interface{}) (Bin, error) {
	if err := validateBinName(name); err != nil {
		return Bin{}, err
	}
	val, err := NewValue(v)
	if err != nil {
		return Bin{}, err
	}
	return Bin{Name: name, Value: val}, nil
}

// validateBinName enforces the bin name limits: at most 15 bytes
// of ASCII with no NUL.
func validateBinName(name string) error {
	if len(name) > maxBinNameLen {
		return newClientErr(fmt.Sprintf("bin name %q exceeds %d bytes", name, maxBinNameLen))
	}
	if strings.IndexByte(name, 0) >= 0 {
		return newClientErr("bin name contains NUL")
	}
	return nil
}

// Record is a server record: its bins plus metadata.
type Record struct {
	Key        *Key
	Bins       map[string]Value
	Generation uint32
	Expiration uint32 // seconds-from-server-epoch TTL, 0 meaning "no expiry reported"
}

// Bin returns a single bin's value and whether it was present.
func (r *Record) Bin(name string) (Value, bool) {
	v, ok := r.Bins[name]
	return v, ok
}
