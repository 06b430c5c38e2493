package id

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Crockford's Base32 alphabet (excludes I, L, O, U to avoid confusion).
const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// ULIDLen is the length of the canonical ULID text form.
const ULIDLen = 26

// NewULID generates a ULID (Universally Unique Lexicographically Sortable Identifier).
// Returns a 26-character string: 10 chars timestamp (48-bit ms) + 16 chars random (80-bit).
// ULIDs are lexicographically sortable by creation time.
func NewULID() string {
	var raw [16]byte

	ms := uint64(time.Now().UnixMilli())
	for i := 5; i >= 0; i-- {
		raw[i] = byte(ms)
		ms >>= 8
	}

	if _, err := rand.Read(raw[6:]); err != nil {
		// Degraded entropy still keeps IDs distinct within a process.
		binary.BigEndian.PutUint64(raw[6:14], uint64(time.Now().UnixNano()))
	}

	return encodeCrockford(raw)
}

// encodeCrockford writes 128 bits as 26 base32 symbols.
// The stream is left-padded with two zero bits, so the first symbol is always 0-7.
func encodeCrockford(raw [16]byte) string {
	var out [ULIDLen]byte
	for i := range out {
		var v byte
		for j := range 5 {
			bit := i*5 + j - 2
			v <<= 1
			if bit >= 0 && raw[bit/8]&(0x80>>(bit%8)) != 0 {
				v |= 1
			}
		}
		out[i] = crockfordBase32[v]
	}
	return string(out[:])
}
