package state

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/btcsuite/btcutil/base58"

	"teeworker/storage"
)

// ShardIDLength is the byte length of a shard identifier.
const ShardIDLength = 32

// DefaultStateFile is the name of the sealed state file inside each shard
// directory.
const DefaultStateFile = "state.seal"

// ShardID names an independent state partition. Its base58 encoding doubles
// as the shard's directory name under the shards root.
type ShardID [ShardIDLength]byte

// ShardIDFromBytes builds a shard identifier from exactly ShardIDLength bytes.
func ShardIDFromBytes(b []byte) (ShardID, error) {
	var id ShardID
	if len(b) != ShardIDLength {
		return id, fmt.Errorf("%w: shard identifier must be %d bytes, got %d", ErrDecode, ShardIDLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ParseShardID decodes a base58 directory name back into a shard identifier.
func ParseShardID(name string) (ShardID, error) {
	decoded := base58.Decode(name)
	if len(decoded) != ShardIDLength {
		return ShardID{}, fmt.Errorf("%w: %q is not a base58-encoded shard identifier", ErrDecode, name)
	}
	var id ShardID
	copy(id[:], decoded)
	return id, nil
}

func (id ShardID) Bytes() []byte { return id[:] }

// String returns the base58 form used as the shard's directory name.
func (id ShardID) String() string { return base58.Encode(id[:]) }

// ShardDirectory maps shard identifiers to locations in a storage backend
// and enumerates the shards already present.
//
// Its operations are not internally synchronized: concurrent init or write
// against the same shard must be serialized by the caller.
type ShardDirectory struct {
	store     storage.Store
	root      string
	stateFile string
}

// NewShardDirectory returns a directory over the given backend rooted at
// root. An empty stateFile selects DefaultStateFile.
func NewShardDirectory(store storage.Store, root, stateFile string) *ShardDirectory {
	if stateFile == "" {
		stateFile = DefaultStateFile
	}
	return &ShardDirectory{store: store, root: root, stateFile: stateFile}
}

// StatePath returns the deterministic location of the shard's sealed state.
func (d *ShardDirectory) StatePath(shard ShardID) string {
	return path.Join(d.root, shard.String(), d.stateFile)
}

// Exists reports whether the shard's state file is present. Unlocked; the
// answer can be stale by the time the caller acts on it.
func (d *ShardDirectory) Exists(shard ShardID) bool {
	return d.store.Exists(d.StatePath(shard))
}

// InitShard creates the shard's directory and an empty state file,
// truncating any existing content. Initializing an existing shard is not an
// error.
func (d *ShardDirectory) InitShard(shard ShardID) error {
	dir := path.Join(d.root, shard.String())
	if err := d.store.EnsureDir(dir); err != nil {
		return fmt.Errorf("%w: create shard directory %s: %v", ErrIO, dir, err)
	}
	if err := d.store.Write(path.Join(dir, d.stateFile), nil); err != nil {
		return fmt.Errorf("%w: create state file for shard %s: %v", ErrIO, shard, err)
	}
	return nil
}

// ListShards enumerates every shard under the root. A missing root means a
// fresh node and yields an empty slice. Any entry whose name does not decode
// into a shard identifier fails the whole enumeration; partial results would
// hide corrupted shard metadata from the operator.
func (d *ShardDirectory) ListShards() ([]ShardID, error) {
	names, err := d.store.List(d.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []ShardID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list shards root %s: %v", ErrIO, d.root, err)
	}
	shards := make([]ShardID, 0, len(names))
	for _, name := range names {
		id, err := ParseShardID(name)
		if err != nil {
			return nil, err
		}
		shards = append(shards, id)
	}
	return shards, nil
}
