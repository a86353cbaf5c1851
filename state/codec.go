package state

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// StateData is the decoded application state of one shard: an opaque
// key-value mapping owned by the state transition logic.
type StateData map[string][]byte

// State pairs a shard's committed data with the in-memory diff accumulated
// by the state transition logic since the last load or write. The diff is
// never persisted; only an explicit commit path outside this package may
// fold it into Data.
type State struct {
	Data StateData
	Diff StateData
}

// NewState returns the canonical freshly-initialized state: empty data and
// an empty diff.
func NewState() *State {
	return &State{Data: make(StateData), Diff: make(StateData)}
}

// Get returns the committed value for key, or nil when absent.
func (s *State) Get(key []byte) []byte {
	return s.Data[string(key)]
}

// Insert sets a committed value. Transition logic staging uncommitted
// changes writes to Diff instead.
func (s *State) Insert(key, value []byte) {
	s.Data[string(key)] = value
}

// stateEntry is the wire form of a single key-value pair. RLP has no map
// type, so the mapping is serialized as a list of entries in ascending key
// order, which also keeps the encoding deterministic.
type stateEntry struct {
	Key   []byte
	Value []byte
}

func encodeStateData(data StateData) ([]byte, error) {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]stateEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, stateEntry{Key: []byte(key), Value: data[key]})
	}
	encoded, err := rlp.EncodeToBytes(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: encode state: %v", ErrDecode, err)
	}
	return encoded, nil
}

func decodeStateData(encoded []byte) (StateData, error) {
	var entries []stateEntry
	if err := rlp.Decode(bytes.NewReader(encoded), &entries); err != nil {
		return nil, fmt.Errorf("%w: decode state: %v", ErrDecode, err)
	}
	data := make(StateData, len(entries))
	for _, entry := range entries {
		data[string(entry.Key)] = entry.Value
	}
	return data, nil
}
