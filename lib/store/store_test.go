package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wirekv/wirekv/lib/protocol"
)

func TestInsertAndGet(t *testing.T) {
	s := NewSharded(nil)

	w := s.Write([]byte("k"))
	if _, existed := w.Insert(protocol.String("v1")); existed {
		t.Error("Insert() on fresh key reported a previous value")
	}
	w.Release()

	r := s.Read([]byte("k"))
	got, ok := r.Get()
	r.Release()
	if !ok || !got.Equal(protocol.String("v1")) {
		t.Fatalf("Get() = %s, %t; want \"v1\", true", got, ok)
	}

	w = s.Write([]byte("k"))
	prev, existed := w.Insert(protocol.String("v2"))
	w.Release()
	if !existed || !prev.Equal(protocol.String("v1")) {
		t.Fatalf("Insert() prev = %s, %t; want \"v1\", true", prev, existed)
	}
}

func TestReadAbsentKey(t *testing.T) {
	s := NewSharded(nil)
	r := s.Read([]byte("missing"))
	defer r.Release()
	if _, ok := r.Get(); ok {
		t.Error("Get() on absent key reported a value")
	}
}

// findDistinctShardKeys returns two keys that map to different shards.
func findDistinctShardKeys(t *testing.T, s *Sharded) ([]byte, []byte) {
	t.Helper()
	first := []byte("key-0")
	for i := 1; i < 10000; i++ {
		candidate := []byte(fmt.Sprintf("key-%d", i))
		if s.shardFor(candidate) != s.shardFor(first) {
			return first, candidate
		}
	}
	t.Fatal("could not find keys on distinct shards")
	return nil, nil
}

// TestDistinctShardsDoNotBlock holds an exclusive lock on one shard and
// checks that a write to a different shard still completes.
func TestDistinctShardsDoNotBlock(t *testing.T) {
	s := NewSharded(&Options{NumShards: 8})
	k1, k2 := findDistinctShardKeys(t, s)

	w1 := s.Write(k1)
	defer w1.Release()

	done := make(chan struct{})
	go func() {
		w2 := s.Write(k2)
		w2.Insert(protocol.Positive(1))
		w2.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write to a different shard blocked on an unrelated lock")
	}
}

// TestSameKeySerialized runs concurrent read-modify-write cycles under the
// write lock and checks that no update is lost.
func TestSameKeySerialized(t *testing.T) {
	s := NewSharded(nil)
	key := []byte("counter")

	const workers = 16
	const perWorker = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				w := s.Write(key)
				cur, ok := w.Get()
				if !ok {
					cur = protocol.Positive(0)
				}
				w.Insert(protocol.Positive(cur.Uint() + 1))
				w.Release()
			}
		}()
	}
	wg.Wait()

	r := s.Read(key)
	got, ok := r.Get()
	r.Release()
	if !ok || got.Uint() != workers*perWorker {
		t.Fatalf("counter = %s, %t; want %d", got, ok, workers*perWorker)
	}
}

func TestShardCountDefaults(t *testing.T) {
	if n := NewSharded(nil).NumShards(); n <= 0 {
		t.Fatalf("NumShards() = %d, want > 0", n)
	}
	if n := NewSharded(&Options{NumShards: 3}).NumShards(); n != 3 {
		t.Fatalf("NumShards() = %d, want 3", n)
	}
}
