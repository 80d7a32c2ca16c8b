package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey hashes a session key so raw identifiers never appear as cache keys.
func HashKey(key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}
