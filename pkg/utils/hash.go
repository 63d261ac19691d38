package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// HashKey derives a stable filesystem/cache-safe file id from an
// arbitrary string (typically a source URL). The "fid_" prefix marks
// values produced here; request validation rejects ids without it.
func HashKey(s string) string {
	sum := md5.Sum([]byte(s))
	return "fid_" + hex.EncodeToString(sum[:])
}
