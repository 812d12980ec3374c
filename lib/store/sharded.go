package store

import (
	"crypto/rand"
	"encoding/binary"
	"runtime"
	"sync"
	"time"

	"github.com/wirekv/wirekv/lib/protocol"
)

// --------------------------------------------------------------------------
// Sharded In-Memory Store
// --------------------------------------------------------------------------

// Sharded is an in-memory KV implementation partitioned into independently
// lockable shards. The shard for a key is chosen by a seeded FNV-1a hash of
// the key bytes, so the distribution differs between store instances.
type Sharded struct {
	shards []*shard
	seed   uint64
}

// shard is one partition of the key space with its own lock and map.
type shard struct {
	mu   sync.RWMutex
	data map[string]protocol.Value
}

// Options configures a Sharded store during initialization.
type Options struct {
	// NumShards is the number of partitions (0 = number of CPUs).
	NumShards int
}

// DefaultOptions returns the default store options.
func DefaultOptions() *Options {
	return &Options{
		NumShards: runtime.NumCPU(),
	}
}

// NewSharded creates a sharded store with the specified options (optional).
//
// Thread-safety: this function is not thread-safe and should only be called
// once during initialization; the returned store is safe for concurrent use.
func NewSharded(opts *Options) *Sharded {
	if opts == nil {
		opts = DefaultOptions()
	}
	n := opts.NumShards
	if n <= 0 {
		n = runtime.NumCPU()
	}

	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{data: make(map[string]protocol.Value)}
	}

	return &Sharded{
		shards: shards,
		seed:   generateSeed(),
	}
}

// NumShards returns the number of partitions.
func (s *Sharded) NumShards() int {
	return len(s.shards)
}

// shardFor returns the partition responsible for a key.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (s *Sharded) shardFor(key []byte) *shard {
	// shift right to use higher-quality hash bits for distribution
	shifted := hashBytes(key, s.seed) >> 7
	return s.shards[shifted%uint64(len(s.shards))]
}

// Read acquires the shared lock of the key's shard and returns a view bound
// to the key.
func (s *Sharded) Read(key []byte) ReadView {
	sh := s.shardFor(key)
	sh.mu.RLock()
	return &readView{shard: sh, key: string(key)}
}

// Write acquires the exclusive lock of the key's shard and returns a view
// bound to the key.
func (s *Sharded) Write(key []byte) WriteView {
	sh := s.shardFor(key)
	sh.mu.Lock()
	return &writeView{shard: sh, key: string(key)}
}

// --------------------------------------------------------------------------
// Views
// --------------------------------------------------------------------------

type readView struct {
	shard *shard
	key   string
}

func (v *readView) Get() (protocol.Value, bool) {
	val, ok := v.shard.data[v.key]
	return val, ok
}

func (v *readView) Release() {
	v.shard.mu.RUnlock()
}

type writeView struct {
	shard *shard
	key   string
}

func (v *writeView) Get() (protocol.Value, bool) {
	val, ok := v.shard.data[v.key]
	return val, ok
}

func (v *writeView) Insert(value protocol.Value) (protocol.Value, bool) {
	prev, existed := v.shard.data[v.key]
	v.shard.data[v.key] = value
	return prev, existed
}

func (v *writeView) Release() {
	v.shard.mu.Unlock()
}

// --------------------------------------------------------------------------
// Hash Helpers
// --------------------------------------------------------------------------

// generateSeed creates a random seed for internal hash distribution.
func generateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// hashBytes generates a hash value for a key with a seed. It uses the FNV-1a
// algorithm, which is fast and has good distribution.
func hashBytes(key []byte, seed uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64) ^ seed
	for _, b := range key {
		hash ^= uint64(b)
		hash *= prime64
	}
	return hash
}
