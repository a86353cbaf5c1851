package state

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"teeworker/sealing"
	"teeworker/storage"
)

func testSealer() sealing.Sealer {
	return sealing.NewAESSealer(sealing.StaticKeySource(bytes.Repeat([]byte{0x5e}, sealing.KeySize)))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemStore(), testSealer(), "shards", "")
}

func TestWriteLoadRoundTrip(t *testing.T) {
	// given
	store := testStore(t)
	shard := shardID(94)
	require.NoError(t, store.InitShard(shard))

	st := NewState()
	st.Insert([]byte("hello"), []byte("world"))

	// when
	_, err := store.Write(st, shard)
	require.NoError(t, err)
	loaded, err := store.Load(shard)
	require.NoError(t, err)

	// then
	require.Equal(t, st.Data, loaded.Data)
	require.Empty(t, loaded.Diff)
}

func TestLoadUninitializedShardYieldsFreshState(t *testing.T) {
	store := testStore(t)
	shard := shardID(1)
	require.NoError(t, store.InitShard(shard))

	// The state file exists but is empty; load must substitute the
	// canonical initial state instead of failing to decode nothing.
	loaded, err := store.Load(shard)
	require.NoError(t, err)
	require.Empty(t, loaded.Data)
	require.Empty(t, loaded.Diff)
}

func TestLoadMissingShardFails(t *testing.T) {
	store := testStore(t)

	_, err := store.Load(shardID(7))
	require.ErrorIs(t, err, ErrIO)
}

func TestLoadInitializedCreatesMissingShard(t *testing.T) {
	store := testStore(t)
	shard := shardID(2)

	st, err := store.LoadInitialized(shard)
	require.NoError(t, err)
	require.Empty(t, st.Data)
	require.True(t, store.Exists(shard))

	// Existing shards load their persisted state instead.
	st.Insert([]byte("k"), []byte("v"))
	_, err = store.Write(st, shard)
	require.NoError(t, err)

	reloaded, err := store.LoadInitialized(shard)
	require.NoError(t, err)
	require.Equal(t, st.Data, reloaded.Data)
}

func TestWriteDiscardsDiff(t *testing.T) {
	store := testStore(t)
	shard := shardID(3)
	require.NoError(t, store.InitShard(shard))

	st := NewState()
	st.Insert([]byte("committed"), []byte("yes"))
	st.Diff["staged"] = []byte("never persisted")

	_, err := store.Write(st, shard)
	require.NoError(t, err)

	loaded, err := store.Load(shard)
	require.NoError(t, err)
	require.Equal(t, StateData{"committed": []byte("yes")}, loaded.Data)
	require.Empty(t, loaded.Diff)
}

func TestWriteHashIndependentOfDiff(t *testing.T) {
	// A deterministic sealer makes the ciphertext, and therefore the
	// content hash, a pure function of the committed data.
	backend := storage.NewMemStore()
	store := NewStore(backend, sealing.InsecureSealer{}, "shards", "")
	shard := shardID(4)
	require.NoError(t, store.InitShard(shard))

	first := NewState()
	first.Insert([]byte("hello"), []byte("world"))
	first.Diff["a"] = []byte("one")

	second := NewState()
	second.Insert([]byte("hello"), []byte("world"))
	second.Diff["b"] = []byte("two")

	hashA, err := store.Write(first, shard)
	require.NoError(t, err)
	hashB, err := store.Write(second, shard)
	require.NoError(t, err)
	require.Equal(t, hashA, hashB)
}

func TestWriteHashFingerprintsCiphertext(t *testing.T) {
	backend := storage.NewMemStore()
	store := NewStore(backend, testSealer(), "shards", "")
	shard := shardID(5)
	require.NoError(t, store.InitShard(shard))

	st := NewState()
	st.Insert([]byte("hello"), []byte("world"))

	hash, err := store.Write(st, shard)
	require.NoError(t, err)

	ciphertext, err := backend.Read(store.Directory().StatePath(shard))
	require.NoError(t, err)
	require.Equal(t, common.Hash(sha256.Sum256(ciphertext)), hash)
}

func TestLoadSurfacesDecryptFailure(t *testing.T) {
	backend := storage.NewMemStore()
	writer := NewStore(backend, testSealer(), "shards", "")
	shard := shardID(6)
	require.NoError(t, writer.InitShard(shard))

	st := NewState()
	st.Insert([]byte("hello"), []byte("world"))
	_, err := writer.Write(st, shard)
	require.NoError(t, err)

	// A node holding a different sealing key must fail the load outright,
	// never fall back to a default state.
	otherKey := sealing.NewAESSealer(sealing.StaticKeySource(bytes.Repeat([]byte{0x01}, sealing.KeySize)))
	reader := NewStore(backend, otherKey, "shards", "")

	_, err = reader.Load(shard)
	require.ErrorIs(t, err, ErrCrypto)
}

func TestLoadSurfacesDecodeFailure(t *testing.T) {
	backend := storage.NewMemStore()
	store := NewStore(backend, sealing.InsecureSealer{}, "shards", "")
	shard := shardID(8)
	require.NoError(t, store.InitShard(shard))

	// Valid "ciphertext" that unseals to bytes which are not RLP state.
	require.NoError(t, backend.Write(store.Directory().StatePath(shard), []byte("garbage")))

	_, err := store.Load(shard)
	require.ErrorIs(t, err, ErrDecode)
}

func TestStoreOnFilesystemBackend(t *testing.T) {
	store := NewStore(storage.NewFilesystem(t.TempDir()), testSealer(), "shards", "")
	shard := shardID(9)

	st, err := store.LoadInitialized(shard)
	require.NoError(t, err)
	st.Insert([]byte("hello"), []byte("world"))

	_, err = store.Write(st, shard)
	require.NoError(t, err)

	loaded, err := store.Load(shard)
	require.NoError(t, err)
	require.Equal(t, st.Data, loaded.Data)

	shards, err := store.ListShards()
	require.NoError(t, err)
	require.Equal(t, []ShardID{shard}, shards)
}

func TestCodecRoundTripPreservesEntries(t *testing.T) {
	data := StateData{
		"hello": []byte("world"),
		"":      []byte("empty key"),
		"nil":   nil,
	}

	encoded, err := encodeStateData(data)
	require.NoError(t, err)
	decoded, err := decodeStateData(encoded)
	require.NoError(t, err)

	require.Len(t, decoded, len(data))
	require.Equal(t, []byte("world"), decoded["hello"])
	require.Equal(t, []byte("empty key"), decoded[""])
	require.Empty(t, decoded["nil"])
}

func TestCodecEncodingIsDeterministic(t *testing.T) {
	data := StateData{"b": []byte("2"), "a": []byte("1"), "c": []byte("3")}

	first, err := encodeStateData(data)
	require.NoError(t, err)
	second, err := encodeStateData(data)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
