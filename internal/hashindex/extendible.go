/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package hashindex implements an in-memory extendible hash table: a
directory of 2^globalDepth slots pointing at buckets, where each
bucket carries its own localDepth <= globalDepth. Multiple directory
slots alias the same bucket when its localDepth is less than the
current globalDepth.

It is generic over key and value type so the same implementation backs
the buffer pool's PageId->FrameId page table as well as any other
K->V mapping that wants extendible hashing's amortized-O(1) lookup
with bounded directory growth.
*/
package hashindex

import "sync"

type entry[K comparable, V any] struct {
	key   K
	value V
}

type bucket[K comparable, V any] struct {
	localDepth int
	entries    []entry[K, V]
}

func newBucket[K comparable, V any](localDepth, size int) *bucket[K, V] {
	return &bucket[K, V]{localDepth: localDepth, entries: make([]entry[K, V], 0, size)}
}

func (b *bucket[K, V]) find(key K) (V, bool) {
	for _, e := range b.entries {
		if e.key == key {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (b *bucket[K, V]) remove(key K) bool {
	for i, e := range b.entries {
		if e.key == key {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// insertOrOverwrite reports whether the bucket had room (false means
// the caller must split before the key can be placed).
func (b *bucket[K, V]) insertOrOverwrite(key K, value V, capacity int) bool {
	for i, e := range b.entries {
		if e.key == key {
			b.entries[i].value = value
			return true
		}
	}
	if len(b.entries) >= capacity {
		return false
	}
	b.entries = append(b.entries, entry[K, V]{key, value})
	return true
}

// ExtendibleHashTable is a concurrent K->V map using extendible hashing.
type ExtendibleHashTable[K comparable, V any] struct {
	mu sync.Mutex

	globalDepth int
	bucketSize  int
	hashFn      func(K) uint64
	directory   []*bucket[K, V]
}

// New creates an extendible hash table with the given per-bucket
// capacity and hash function.
func New[K comparable, V any](bucketSize int, hashFn func(K) uint64) *ExtendibleHashTable[K, V] {
	initial := newBucket[K, V](0, bucketSize)
	return &ExtendibleHashTable[K, V]{
		globalDepth: 0,
		bucketSize:  bucketSize,
		hashFn:      hashFn,
		directory:   []*bucket[K, V]{initial},
	}
}

func (h *ExtendibleHashTable[K, V]) indexOf(key K) int {
	mask := uint64(1)<<uint(h.globalDepth) - 1
	return int(h.hashFn(key) & mask)
}

// Find looks up a key.
func (h *ExtendibleHashTable[K, V]) Find(key K) (V, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.directory[h.indexOf(key)]
	return b.find(key)
}

// Remove deletes a key, reporting whether it was present.
func (h *ExtendibleHashTable[K, V]) Remove(key K) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.directory[h.indexOf(key)]
	return b.remove(key)
}

// Insert adds or overwrites a key, splitting buckets (and doubling the
// directory, if needed) until the key fits.
func (h *ExtendibleHashTable[K, V]) Insert(key K, value V) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.insertLocked(key, value)
}

func (h *ExtendibleHashTable[K, V]) insertLocked(key K, value V) {
	for {
		idx := h.indexOf(key)
		b := h.directory[idx]
		if b.insertOrOverwrite(key, value, h.bucketSize) {
			return
		}
		h.splitBucket(idx)
	}
}

// splitBucket doubles the directory if the target bucket's local depth
// has caught up to the global depth, then allocates a sibling bucket
// one depth deeper, re-partitions the original bucket's entries by the
// newly discriminating bit, and repoints every directory slot that
// selects the new-bucket side.
func (h *ExtendibleHashTable[K, V]) splitBucket(idx int) {
	old := h.directory[idx]
	d := old.localDepth

	if d == h.globalDepth {
		h.doubleDirectory()
	}

	newLocalDepth := d + 1
	sibling := newBucket[K, V](newLocalDepth, h.bucketSize)
	old.localDepth = newLocalDepth

	discriminant := uint64(1) << uint(d)
	kept := old.entries[:0:0]
	for _, e := range old.entries {
		if h.hashFn(e.key)&discriminant != 0 {
			sibling.entries = append(sibling.entries, e)
		} else {
			kept = append(kept, e)
		}
	}
	old.entries = kept

	for i := range h.directory {
		if h.directory[i] == old && uint64(i)&discriminant != 0 {
			h.directory[i] = sibling
		}
	}
}

func (h *ExtendibleHashTable[K, V]) doubleDirectory() {
	old := h.directory
	doubled := make([]*bucket[K, V], len(old)*2)
	copy(doubled, old)
	copy(doubled[len(old):], old)
	h.directory = doubled
	h.globalDepth++
}

// GetGlobalDepth returns the current directory depth.
func (h *ExtendibleHashTable[K, V]) GetGlobalDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.globalDepth
}

// GetLocalDepth returns the local depth of the bucket at directory
// index i.
func (h *ExtendibleHashTable[K, V]) GetLocalDepth(i int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.directory[i].localDepth
}

// GetNumBuckets returns the number of distinct buckets referenced by
// the directory.
func (h *ExtendibleHashTable[K, V]) GetNumBuckets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[*bucket[K, V]]struct{})
	for _, b := range h.directory {
		seen[b] = struct{}{}
	}
	return len(seen)
}
