package store

import (
	"github.com/wirekv/wirekv/lib/protocol"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// KV is the partitioned lock-and-map contract the command layer executes
// against. Keys are byte sequences; values are owned protocol values.
//
// Implementations must guarantee that operations on keys mapping to different
// shards never block each other, and that two operations on the same key are
// fully serialized by that key's shard lock.
type KV interface {
	// Read returns a view holding the shared lock of the key's shard. The
	// caller must call Release exactly once, before performing any network
	// write.
	Read(key []byte) ReadView

	// Write returns a view holding the exclusive lock of the key's shard.
	// The caller must call Release exactly once, before performing any
	// network write.
	Write(key []byte) WriteView
}

// ReadView is a shard-scoped shared read handle bound to one key.
type ReadView interface {
	// Get returns the value stored under the view's key, if any.
	Get() (protocol.Value, bool)

	// Release unlocks the shard. The view must not be used afterwards.
	Release()
}

// WriteView is a shard-scoped exclusive write handle bound to one key.
type WriteView interface {
	// Get returns the value stored under the view's key, if any.
	Get() (protocol.Value, bool)

	// Insert stores a value under the view's key and returns the previous
	// value, if one existed. The value must be in fully owned form, see
	// protocol.Value.Owned.
	Insert(value protocol.Value) (prev protocol.Value, existed bool)

	// Release unlocks the shard. The view must not be used afterwards.
	Release()
}
