package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const (
	DeviceHashLen  = 32
	SessionHashLen = 16
)

// digest returns the first n hex characters of SHA-256 over the JSON encoding of v.
// Map keys are encoded in sorted order, so equal inputs always hash the same.
func digest(v any, n int) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	h := hex.EncodeToString(sum[:])
	if n > 0 && n < len(h) {
		h = h[:n]
	}
	return h, nil
}
