package wire

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxSeq is the largest representable sequence number; sequence arithmetic
// wraps modulo MaxSeq+1 (2^16).
const MaxSeq = 0xffff

// HalfRange splits the 16-bit sequence space in two. A forward distance
// below HalfRange is treated as "ahead" (next-expected, or a forward jump);
// a distance at or above HalfRange is treated as a duplicate or a stale,
// already-seen value wrapping the other way.
const HalfRange = MaxSeq / 2

// ForwardDistance returns how far a is ahead of b on the circular 16-bit
// sequence space: the number of increments needed to walk from b to a.
// A result of 1 means a is the immediate successor of b.
func ForwardDistance(a, b uint16) int {
	if a >= b {
		return int(a) - int(b)
	}

	return MaxSeq + 1 - int(b) + int(a)
}

// NextSeq returns the successor of seq, wrapping from MaxSeq back to 0.
func NextSeq(seq uint16) uint16 {
	if seq == MaxSeq {
		return 0
	}

	return seq + 1
}

// ErrAllocationFailed indicates a random sequence/session id draw could not
// be obtained from the system entropy source.
var ErrAllocationFailed = errors.New("sequence allocation failed")

// RandomSeq draws a uniformly random value over the full 16-bit sequence
// space, used to seed the initial send sequence number on handshake.
func RandomSeq() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("random sequence: %w", errors.Join(err, ErrAllocationFailed))
	}

	return binary.LittleEndian.Uint16(b[:]), nil
}

// RandomSessionID draws a uniformly random nonzero session id in
// [1, 65535]. Zero is reserved to mean "no session established."
func RandomSessionID() (uint16, error) {
	for {
		var b [2]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("random session id: %w", errors.Join(err, ErrAllocationFailed))
		}

		id := binary.LittleEndian.Uint16(b[:])
		if id != 0 {
			return id, nil
		}
	}
}
