// Package decompile guards calls to the external decompiler with a
// content-addressed cache, a daily cost ledger and a rate limit.
package decompile

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	m "hydra.dev/pkg/hydra/internal/model"
)

// DefaultTTL is how long a decompilation may be served from the cache.
const DefaultTTL = 24 * time.Hour

var (
	// ErrDecompileTimeout means the decompiler did not answer in time.
	ErrDecompileTimeout = errors.New("decompiler timed out")
	// ErrDecompileBudgetExhausted means the daily budget refused the call.
	ErrDecompileBudgetExhausted = errors.New("daily decompilation budget exhausted")
	// ErrCacheCorruption means a stored entry failed its integrity check.
	ErrCacheCorruption = errors.New("cache entry corrupted")
)

// Clock abstracts time so TTL and ledger-day behaviour can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Fingerprint is the content hash of a bytecode blob. Identical bytecode
// always maps to the same fingerprint regardless of the owning module.
func Fingerprint(bytecode []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(bytecode))
}

func checksum(decompilation m.Decompilation) (string, error) {
	encoded, err := yaml.Marshal(decompilation)
	if err != nil {
		return "", fmt.Errorf("encode decompilation: %w", err)
	}

	return fmt.Sprintf("%x", sha256.Sum256(encoded)), nil
}
