package utils

import (
    "crypto/sha256"
    "encoding/hex"
)

// ideaIDLen is the length of a hex-encoded SHA-256 digest.
const ideaIDLen = 64

// IdeaID derives the stable identifier of an idea from its long
// description, the content actually being sold. The same content always
// hashes to the same id, so republishing an idea collides on the
// primary key instead of creating a second listing.
func IdeaID(longDesc string) string {
    sum := sha256.Sum256([]byte(longDesc))
    return hex.EncodeToString(sum[:])
}

// ValidIdeaID reports whether s has the shape of an idea id: exactly 64
// lowercase hex characters. It rejects malformed ids before any query
// runs.
func ValidIdeaID(s string) bool {
    if len(s) != ideaIDLen {
        return false
    }
    for _, c := range s {
        if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
            return false
        }
    }
    return true
}
