package cache

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// keyPrefix versions every key; bump it when a cached payload changes shape
const keyPrefix = "biaslens:v1:"

// Key builds a namespaced cache key such as "biaslens:v1:stats:<fingerprint>"
func Key(kind, fingerprint string) string {
	return keyPrefix + kind + ":" + fingerprint
}

// Fingerprinter accumulates a BLAKE3 digest over a sequence of strings.
// Each part is length-prefixed, so ("ab", "c") and ("a", "bc") differ.
type Fingerprinter struct {
	h *blake3.Hasher
}

// NewFingerprinter returns an empty fingerprinter
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{h: blake3.New()}
}

// Add feeds parts into the digest in order
func (f *Fingerprinter) Add(parts ...string) {
	var size [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(size[:], uint64(len(p)))
		_, _ = f.h.Write(size[:])
		_, _ = f.h.WriteString(p)
	}
}

// AddBytes feeds a raw blob into the digest
func (f *Fingerprinter) AddBytes(b []byte) {
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(b)))
	_, _ = f.h.Write(size[:])
	_, _ = f.h.Write(b)
}

// Sum returns the hex digest
func (f *Fingerprinter) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}
