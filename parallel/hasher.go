package parallel

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// Hasher fingerprints a sequence of uint16 values that are written out of order
// by concurrent workers. Sum hashes the values in index order, so the
// fingerprint does not depend on scheduling.
type Hasher struct {
	mut     sync.Mutex
	values  []uint16
	written []bool
}

// NewUint16Hasher prepares a hasher for n values.
func NewUint16Hasher(n int) *Hasher {
	return &Hasher{
		values:  make([]uint16, n),
		written: make([]bool, n),
	}
}

// Len reports the number of positions.
func (h *Hasher) Len() int {
	return len(h.values)
}

// MustPutUint16 stores value at position n. Writing a position twice panics.
func (h *Hasher) MustPutUint16(n int, value uint16) {
	h.mut.Lock()
	defer h.mut.Unlock()
	if h.written[n] {
		panic("duplicate write")
	}
	h.written[n] = true
	h.values[n] = value
}

// Sum returns the sha256 of all values in index order. Positions never
// written hash as 0xFFFF.
func (h *Hasher) Sum() (ret [32]byte) {
	h.mut.Lock()
	defer h.mut.Unlock()
	sha := sha256.New()
	var buf [2]byte
	for i, v := range h.values {
		if !h.written[i] {
			v = 0xFFFF
		}
		binary.LittleEndian.PutUint16(buf[:], v)
		sha.Write(buf[:])
	}
	copy(ret[:], sha.Sum(nil))
	return
}
