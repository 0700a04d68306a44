package auth

import "crypto/subtle"

// stubbed in tests
var constantTimeCompare = subtle.ConstantTimeCompare

// Verify compares a presented secret against the expected one in constant
// time. An absent or empty presented value is always rejected. A length
// mismatch returns early without running the comparison primitive: leaking
// the secret's length is acceptable, leaking per-byte timing is not.
func Verify(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	if len(presented) != len(expected) {
		return false
	}
	return constantTimeCompare([]byte(presented), []byte(expected)) == 1
}
