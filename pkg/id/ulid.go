// Package id generates lexicographically sortable identifiers for request
// correlation and object keys.
package id

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Crockford's Base32 alphabet (no I, L, O, U).
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewULID returns a 26-character ULID for the current time.
func NewULID() string {
	return NewULIDAt(time.Now())
}

// NewULIDAt returns a ULID whose 48-bit timestamp is t in milliseconds,
// followed by 80 random bits.
func NewULIDAt(t time.Time) string {
	var raw [16]byte

	ms := uint64(t.UnixMilli())
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], ms)
	copy(raw[:6], ts[2:])

	if _, err := rand.Read(raw[6:]); err != nil {
		binary.BigEndian.PutUint64(raw[8:], uint64(time.Now().UnixNano()))
	}

	return encode(raw)
}

// encode writes 128 bits as 26 base32 characters; the stream is left-padded
// with two zero bits so the first character only carries three bits.
func encode(raw [16]byte) string {
	var out [26]byte
	for i := range out {
		start := i*5 - 2
		var v byte
		for j := range 5 {
			v <<= 1
			if p := start + j; p >= 0 {
				v |= (raw[p/8] >> (7 - p%8)) & 1
			}
		}
		out[i] = crockford[v]
	}
	return string(out[:])
}
