package main

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// digest returns the xxHash64 of data as 16 hex characters
func digest(data []byte) string {
	var b [8]byte
	h := xxhash.Sum64(data)
	for i := range b {
		b[i] = byte(h >> (56 - 8*i))
	}
	return hex.EncodeToString(b[:])
}
