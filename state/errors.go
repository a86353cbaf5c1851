package state

import "errors"

// Error kinds distinguishing the three failure classes of the persistence
// layer. Callers inspect them with errors.Is to decide whether to skip a
// shard, retry, or halt the node; no retry happens internally.
var (
	// ErrIO marks filesystem or backend read/write/create failures.
	ErrIO = errors.New("state: storage failure")
	// ErrCrypto marks sealing-key unavailability and encrypt/decrypt
	// failures. Never downgraded to a default state.
	ErrCrypto = errors.New("state: sealing failure")
	// ErrDecode marks malformed serialized state or malformed shard
	// identifiers encountered during enumeration.
	ErrDecode = errors.New("state: decode failure")
)
