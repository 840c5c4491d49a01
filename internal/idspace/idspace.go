// Package idspace implements NodeId construction, parsing, and
// classification: a NodeId is a concatenation of 16-byte layers, each
// layer a (unix-seconds << 64 | random-tail) u128 encoded big-endian.
// Byte-lexicographic order on the full id coincides with chronological
// order within the layer's one-second resolution, which is what lets
// Store range-scan content and root_list without a separate sort index.
package idspace

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/adred-codev/kanband/internal/kerr"
)

const layerSize = 16

// ID is a hierarchical node identifier: len(ID) is always a positive
// multiple of layerSize.
type ID []byte

// Validate checks invariant I1: |id| mod 16 == 0 and |id| >= 16.
func (id ID) Validate() error {
	if len(id) == 0 || len(id)%layerSize != 0 {
		return kerr.IdInvalid
	}
	return nil
}

// Layers returns the number of 16-byte layers in id.
func (id ID) Layers() int { return len(id) / layerSize }

// IsTopLevel reports whether id has exactly one layer.
func (id ID) IsTopLevel() bool { return len(id) == layerSize }

// TopPrefix returns the first layer (the top-level ancestor's id).
func (id ID) TopPrefix() ID {
	if len(id) < layerSize {
		return nil
	}
	return id[:layerSize]
}

// ParentPrefix returns id with its last layer removed. For a top-level
// id this is the empty prefix.
func (id ID) ParentPrefix() ID {
	if len(id) <= layerSize {
		return ID{}
	}
	return id[:len(id)-layerSize]
}

// LastLayerU128 deserializes the last 16 bytes of id as a 128-bit
// unsigned integer, returned as (high, low) 64-bit halves where high
// holds the unix-seconds creation timestamp and low holds the random
// tail. The halves are stored big-endian-first within the layer (see
// NewLayer) so that byte-lexicographic order on the raw id bytes
// coincides with chronological order, per spec invariant P3/I6.
func (id ID) LastLayerU128() (high, low uint64, err error) {
	if err := id.Validate(); err != nil {
		return 0, 0, err
	}
	last := id[len(id)-layerSize:]
	high = binary.BigEndian.Uint64(last[:8])
	low = binary.BigEndian.Uint64(last[8:])
	return high, low, nil
}

// Clone returns a defensive copy of id.
func (id ID) Clone() ID {
	out := make(ID, len(id))
	copy(out, id)
	return out
}

// NewLayer builds one 16-byte layer as (now_secs << 64 | tail), with
// the seconds half placed in the first 8 bytes and the tail in the
// last 8, both big-endian, and appends it to parent to produce a child
// id. An empty parent produces a top-level id.
//
// Bytes, not a native integer, are what Store compares and scans, so
// the seconds component must occupy the most-significant byte
// positions for byte-lexicographic order to track creation order.
func NewLayer(parent ID, tail uint64) ID {
	layer := make([]byte, layerSize)
	binary.BigEndian.PutUint64(layer[:8], uint64(time.Now().Unix()))
	binary.BigEndian.PutUint64(layer[8:], tail)

	out := make(ID, 0, len(parent)+layerSize)
	out = append(out, parent...)
	out = append(out, layer...)
	return out
}

// RandomTail draws 64 random bits for NewLayer's collision-resistant tail.
func RandomTail() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// New builds a fresh id under parent using a random tail.
func New(parent ID) (ID, error) {
	tail, err := RandomTail()
	if err != nil {
		return nil, err
	}
	return NewLayer(parent, tail), nil
}
