// Package reporthash fingerprints trust reports so byte-identical
// regeneration can be asserted cheaply.
package reporthash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalSHA256 hashes json.Marshal(v) bytes with SHA256 hex.
// encoding/json sorts map keys and keeps struct field order, so equal
// report values always hash equal.
func CanonicalSHA256(v any) (hexHash string, bytes []byte, err error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), b, nil
}
