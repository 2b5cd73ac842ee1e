package id

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UUID returns a random UUID v4.
func UUID() string {
	return uuid.NewString()
}

// Rule returns a new rule identifier.
func Rule() string {
	return ULID()
}

// ulidEncoding is Crockford's Base32 (no I, L, O, U).
const ulidEncoding = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	ulidMu   sync.Mutex
	ulidLast int64
	ulidSeq  uint16
)

// ULID returns a 26 character Universally Unique Lexicographically Sortable
// Identifier: 48 bits of milliseconds followed by 80 random bits. IDs made
// within the same millisecond differ in their counter-mixed random part.
func ULID() string {
	ulidMu.Lock()
	now := time.Now().UnixMilli()
	if now == ulidLast {
		ulidSeq++
	} else {
		ulidLast, ulidSeq = now, 0
	}
	seq := ulidSeq
	ulidMu.Unlock()

	var entropy [10]byte
	_, _ = rand.Read(entropy[:])
	entropy[0] ^= byte(seq >> 8)
	entropy[1] ^= byte(seq)

	return encodeULID(now, entropy)
}

func encodeULID(ms int64, entropy [10]byte) string {
	var out [26]byte
	for i := 9; i >= 0; i-- {
		out[i] = ulidEncoding[ms&0x1F]
		ms >>= 5
	}

	// 80 bits of entropy as 16 base32 characters, most significant first.
	var acc uint64
	bits := 0
	pos := 10
	for _, b := range entropy {
		acc = acc<<8 | uint64(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = ulidEncoding[(acc>>uint(bits))&0x1F]
			pos++
		}
	}
	return string(out[:])
}

// ULIDTime extracts the timestamp of a ULID.
func ULIDTime(s string) (time.Time, error) {
	if !IsValidULID(s) {
		return time.Time{}, fmt.Errorf("invalid ULID: %q", s)
	}
	var ms int64
	for i := 0; i < 10; i++ {
		ms = ms<<5 | int64(decodeULIDChar(s[i]))
	}
	return time.UnixMilli(ms), nil
}

// IsValidULID reports whether s is 26 Crockford Base32 characters.
func IsValidULID(s string) bool {
	if len(s) != 26 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if decodeULIDChar(s[i]) < 0 {
			return false
		}
	}
	return true
}

func decodeULIDChar(c byte) int {
	for i := 0; i < len(ulidEncoding); i++ {
		if ulidEncoding[i] == c {
			return i
		}
	}
	return -1
}
