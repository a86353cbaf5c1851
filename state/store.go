// Package state persists per-shard application state outside the enclave's
// trust boundary. State leaves the enclave only as sealing-gateway
// ciphertext; the content hash kept alongside log lines fingerprints that
// ciphertext for audit and is never verified on read — tamper evidence
// relies entirely on the sealing scheme's authenticated encryption.
package state

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"teeworker/observability/metrics"
	"teeworker/sealing"
	"teeworker/storage"
)

// HandleState is the facade node code uses to access shard state.
type HandleState interface {
	// Load reads, unseals, and decodes the state of a shard. The returned
	// diff is always empty.
	Load(shard ShardID) (*State, error)

	// Write seals and persists the data portion of state (the diff is
	// discarded) and returns the content hash of the written ciphertext.
	Write(state *State, shard ShardID) (common.Hash, error)

	// Exists reports whether the shard has a state file.
	Exists(shard ShardID) bool

	// InitShard creates an empty state file for the shard.
	InitShard(shard ShardID) error

	// ListShards enumerates all shards known to the directory.
	ListShards() ([]ShardID, error)
}

// Store implements HandleState over a storage backend and a sealing gateway.
//
// Store does not serialize concurrent access to the same shard; an outer
// component must ensure a single writer per shard.
type Store struct {
	backend storage.Store
	sealer  sealing.Sealer
	dir     *ShardDirectory
	log     *slog.Logger
}

var _ HandleState = (*Store)(nil)

// NewStore builds a state store over the given backend, keeping sealed shard
// state under root. An empty stateFile selects DefaultStateFile.
func NewStore(backend storage.Store, sealer sealing.Sealer, root, stateFile string) *Store {
	return &Store{
		backend: backend,
		sealer:  sealer,
		dir:     NewShardDirectory(backend, root, stateFile),
		log:     slog.Default().With("component", "state"),
	}
}

// Directory exposes the underlying shard directory.
func (s *Store) Directory() *ShardDirectory { return s.dir }

// Load reads the shard's sealed state and returns the decoded data with an
// empty diff. An empty state file, or ciphertext unsealing to zero bytes,
// yields the canonical freshly-initialized state. Unseal and decode
// failures surface as ErrCrypto and ErrDecode; no fallback state is ever
// substituted for them.
func (s *Store) Load(shard ShardID) (*State, error) {
	statePath := s.dir.StatePath(shard)
	raw, err := s.backend.Read(statePath)
	if err != nil {
		s.countFailure(ErrIO)
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, statePath, err)
	}

	plaintext := raw
	if len(raw) > 0 {
		s.log.Debug("read sealed state",
			"shard", shard.String(),
			"hash", contentHash(raw).Hex(),
			"size", len(raw))
		key, err := s.sealer.UnsealKey()
		if err != nil {
			s.countFailure(ErrCrypto)
			return nil, fmt.Errorf("%w: unseal key: %v", ErrCrypto, err)
		}
		plaintext, err = key.Decrypt(raw)
		if err != nil {
			s.countFailure(ErrCrypto)
			return nil, fmt.Errorf("%w: decrypt state of shard %s: %v", ErrCrypto, shard, err)
		}
	}

	var data StateData
	if len(plaintext) == 0 {
		// Uninitialized shard: substitute the canonical initial state.
		data = make(StateData)
	} else {
		data, err = decodeStateData(plaintext)
		if err != nil {
			s.countFailure(ErrDecode)
			return nil, err
		}
	}

	metrics.State().Loads.WithLabelValues(shard.String()).Inc()
	return &State{Data: data, Diff: make(StateData)}, nil
}

// Write seals state.Data and overwrites the shard's state file with the
// resulting ciphertext. The returned hash fingerprints the ciphertext only:
// with a randomized sealing scheme, writing identical data twice produces
// different hashes. The diff is discarded, never persisted.
func (s *Store) Write(state *State, shard ShardID) (common.Hash, error) {
	encoded, err := encodeStateData(state.Data)
	if err != nil {
		s.countFailure(ErrDecode)
		return common.Hash{}, err
	}

	key, err := s.sealer.UnsealKey()
	if err != nil {
		s.countFailure(ErrCrypto)
		return common.Hash{}, fmt.Errorf("%w: unseal key: %v", ErrCrypto, err)
	}
	ciphertext, err := key.Encrypt(encoded)
	if err != nil {
		s.countFailure(ErrCrypto)
		return common.Hash{}, fmt.Errorf("%w: encrypt state of shard %s: %v", ErrCrypto, shard, err)
	}

	hash := contentHash(ciphertext)
	statePath := s.dir.StatePath(shard)
	if err := s.backend.Write(statePath, ciphertext); err != nil {
		s.countFailure(ErrIO)
		return common.Hash{}, fmt.Errorf("%w: write %s: %v", ErrIO, statePath, err)
	}

	s.log.Debug("wrote sealed state",
		"shard", shard.String(),
		"hash", hash.Hex(),
		"size", len(ciphertext))
	metrics.State().Writes.WithLabelValues(shard.String()).Inc()
	return hash, nil
}

// LoadInitialized loads the shard's state, initializing the shard first if
// it does not exist yet. This is the entry point transition logic should use
// to obtain a guaranteed-valid starting state.
func (s *Store) LoadInitialized(shard ShardID) (*State, error) {
	if s.Exists(shard) {
		return s.Load(shard)
	}
	if err := s.InitShard(shard); err != nil {
		return nil, err
	}
	return NewState(), nil
}

func (s *Store) Exists(shard ShardID) bool {
	return s.dir.Exists(shard)
}

func (s *Store) InitShard(shard ShardID) error {
	if err := s.dir.InitShard(shard); err != nil {
		s.countFailure(ErrIO)
		return err
	}
	metrics.State().InitShards.Inc()
	return nil
}

func (s *Store) ListShards() ([]ShardID, error) {
	return s.dir.ListShards()
}

func (s *Store) countFailure(kind error) {
	label := "io"
	switch {
	case errors.Is(kind, ErrCrypto):
		label = "crypto"
	case errors.Is(kind, ErrDecode):
		label = "decode"
	}
	metrics.State().Failures.WithLabelValues(label).Inc()
}

// contentHash fingerprints ciphertext for logging and audit.
func contentHash(ciphertext []byte) common.Hash {
	return common.Hash(sha256.Sum256(ciphertext))
}
