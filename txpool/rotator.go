package txpool

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"teeworker/observability/metrics"
)

// expectedSize is the expected size of the banned-operation cache. Eviction
// triggers once the cache holds more than twice this many entries.
const expectedSize = 2048

// defaultBanTime is how long an operation stays banned after going stale.
const defaultBanTime = 30 * time.Minute

// PoolRotator keeps only fresh operations in the pool. Operations that
// outlive their validity horizon are culled and temporarily banned from
// entering the pool again.
//
// A single rotator instance is shared by reference across all pool threads;
// the ban map is guarded by one read/write lock. When the map outgrows twice
// the expected size it is trimmed back to the expected size in whatever
// order map iteration yields — bounded-but-arbitrary eviction is part of the
// contract, not an accident, and callers must not rely on any recency order.
type PoolRotator struct {
	banTime time.Duration

	mu          sync.RWMutex
	bannedUntil map[common.Hash]time.Time
}

// NewPoolRotator returns a rotator with the default 30 minute ban time.
func NewPoolRotator() *PoolRotator {
	return NewPoolRotatorWithBanTime(defaultBanTime)
}

// NewPoolRotatorWithBanTime returns a rotator with a custom ban time. A
// non-positive ban time is a programmer error and is not guarded against.
func NewPoolRotatorWithBanTime(banTime time.Duration) *PoolRotator {
	return &PoolRotator{
		banTime:     banTime,
		bannedUntil: make(map[common.Hash]time.Time),
	}
}

// IsBanned reports whether the hash is currently in the ban map. Expiry is
// enforced only by ClearTimeouts sweeps, not lazily on read, so an expired
// but unswept entry still counts as banned.
func (r *PoolRotator) IsBanned(hash common.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bannedUntil[hash]
	return ok
}

// Ban inserts every hash with an expiry of now plus the ban time,
// overwriting the expiry of hashes that are already banned. If the map then
// exceeds twice the expected size it is evicted down to exactly the expected
// size.
func (r *PoolRotator) Ban(now time.Time, hashes []common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := now.Add(r.banTime)
	for _, hash := range hashes {
		r.bannedUntil[hash] = until
	}
	metrics.Pool().Bans.Add(float64(len(hashes)))

	if len(r.bannedUntil) > 2*expectedSize {
		evicted := 0
		for hash := range r.bannedUntil {
			if len(r.bannedUntil) <= expectedSize {
				break
			}
			delete(r.bannedUntil, hash)
			evicted++
		}
		metrics.Pool().Evictions.Add(float64(evicted))
	}
	metrics.Pool().BannedSize.Set(float64(len(r.bannedUntil)))
}

// BanIfStale bans the operation if its validity horizon has passed and
// reports whether it did. An operation valid exactly until the current block
// counts as stale.
func (r *PoolRotator) BanIfStale(now time.Time, currentBlock uint64, op *TrustedOperation) bool {
	if op.ValidTill > currentBlock {
		return false
	}
	r.Ban(now, []common.Hash{op.Hash})
	return true
}

// ClearTimeouts removes every ban whose expiry lies strictly before now.
func (r *PoolRotator) ClearTimeouts(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, until := range r.bannedUntil {
		if until.Before(now) {
			delete(r.bannedUntil, hash)
		}
	}
	metrics.Pool().BannedSize.Set(float64(len(r.bannedUntil)))
}

// bannedLen exposes the map size to tests.
func (r *PoolRotator) bannedLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bannedUntil)
}
