package id

import "github.com/google/uuid"

// IsULID reports whether s is a ULID in canonical text form.
// Lower-case input is accepted; the first symbol must be 0-7 so the value fits in 128 bits.
func IsULID(s string) bool {
	if len(s) != ULIDLen || s[0] < '0' || s[0] > '7' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isCrockford(s[i]) {
			return false
		}
	}
	return true
}

// IsUUID reports whether s is a hyphenated UUID (xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx).
func IsUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

// IsNative reports whether s looks like any identifier this package generates or accepts
// as a record key: a ULID or a UUID.
func IsNative(s string) bool {
	return IsULID(s) || IsUUID(s)
}

func isCrockford(c byte) bool {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'L' && c != 'O' && c != 'U'
	}
	return false
}
