package model

import "time"

// Decompilation is what the external decompiler returns for one bytecode blob.
type Decompilation struct {
	// Functions maps a function name to its recovered body.
	Functions  map[string]Body
	Confidence float64
}

// CacheEntry is a decompilation stored under the content hash of its input.
type CacheEntry struct {
	Fingerprint   string
	Decompilation Decompilation
	Confidence    float64
	CreatedAt     time.Time
	// Checksum covers Decompilation and is verified on every read.
	Checksum string
}

// Finding is one local invariant violation reported by the program verifier.
type Finding struct {
	Function string
	Message  string
	Location Location
}

// Verdict is the program verifier's result for one module.
type Verdict struct {
	Module   ModuleID
	Passed   bool
	Findings []Finding
}
