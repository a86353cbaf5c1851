// Package txpool holds the trusted operation pool's lifecycle pieces that
// run inside the enclave. The pool's ordering and priority structures live
// elsewhere; this package owns the rotation of stale operations.
package txpool

import (
	"github.com/ethereum/go-ethereum/common"
	"lukechampine.com/blake3"
)

// OperationSource records where an operation entered the node.
type OperationSource int

const (
	// SourceInBlock marks operations already included in a block.
	SourceInBlock OperationSource = iota
	// SourceExternal marks operations submitted from outside the node.
	SourceExternal
)

// TrustedOperation is a pending operation held by the trusted pool. The
// rotator reads only Hash and ValidTill; the remaining fields belong to the
// pool's scheduling logic.
type TrustedOperation struct {
	// Data is the encoded operation payload.
	Data []byte
	// Hash identifies the operation across the pool.
	Hash common.Hash
	// Priority orders the operation inside the pool.
	Priority uint64
	// ValidTill is the last block height at which the operation may still
	// be included.
	ValidTill uint64
	// Requires lists tags that must be satisfied before scheduling.
	Requires [][]byte
	// Provides lists tags satisfied by including this operation.
	Provides [][]byte
	// Propagate marks the operation as shareable with peers.
	Propagate bool
	// Source records how the operation reached the node.
	Source OperationSource
}

// NewTrustedOperation builds an operation from its encoded payload, deriving
// the pool hash from the payload bytes.
func NewTrustedOperation(data []byte, priority, validTill uint64, source OperationSource) *TrustedOperation {
	return &TrustedOperation{
		Data:      data,
		Hash:      HashPayload(data),
		Priority:  priority,
		ValidTill: validTill,
		Propagate: source == SourceExternal,
		Source:    source,
	}
}

// HashPayload derives the pool identity of an operation payload.
func HashPayload(data []byte) common.Hash {
	return common.Hash(blake3.Sum256(data))
}
