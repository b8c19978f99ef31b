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

package hashindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func identityHash(k int) uint64 { return uint64(k) }

// TestSplitProgression walks global depth through 0 -> 1 -> 2 with
// bucket_size=2 and an identity hash, ending with 3 distinct buckets —
// the same shape as the worked split example, using key values whose
// low bits actually discriminate (1, 2, 3, 5) rather than values that
// share every low bit under an identity hash.
func TestSplitProgression(t *testing.T) {
	h := New[int, string](2, identityHash)

	h.Insert(1, "a")
	h.Insert(2, "b")
	require.Equal(t, 0, h.GetGlobalDepth())

	h.Insert(3, "c") // forces first split: global depth 0 -> 1
	require.Equal(t, 1, h.GetGlobalDepth())

	v, ok := h.Find(1)
	require.True(t, ok)
	require.Equal(t, "a", v)
	v, ok = h.Find(3)
	require.True(t, ok)
	require.Equal(t, "c", v)

	h.Insert(5, "e") // forces second split: global depth 1 -> 2
	require.Equal(t, 2, h.GetGlobalDepth())
	require.Equal(t, 3, h.GetNumBuckets())

	for k, want := range map[int]string{1: "a", 2: "b", 3: "c", 5: "e"} {
		v, ok := h.Find(k)
		require.True(t, ok, "key %d", k)
		require.Equal(t, want, v)
	}
}

func TestInsertOverwritesExistingKey(t *testing.T) {
	h := New[int, string](4, identityHash)
	h.Insert(7, "first")
	h.Insert(7, "second")

	v, ok := h.Find(7)
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestFindMissingKey(t *testing.T) {
	h := New[int, string](4, identityHash)
	_, ok := h.Find(123)
	require.False(t, ok)
}

func TestRemove(t *testing.T) {
	h := New[int, string](4, identityHash)
	h.Insert(1, "a")

	require.True(t, h.Remove(1))
	_, ok := h.Find(1)
	require.False(t, ok)
	require.False(t, h.Remove(1))
}

func TestLocalDepthNeverExceedsGlobalDepth(t *testing.T) {
	h := New[int, string](2, identityHash)
	h.Insert(1, "a")
	h.Insert(2, "b")
	h.Insert(3, "c")

	for i := 0; i < (1 << h.GetGlobalDepth()); i++ {
		require.LessOrEqual(t, h.GetLocalDepth(i), h.GetGlobalDepth())
	}
}

func TestManyInsertsRemainFindable(t *testing.T) {
	h := New[int, int](3, identityHash)
	for i := 0; i < 200; i++ {
		h.Insert(i, i*i)
	}
	for i := 0; i < 200; i++ {
		v, ok := h.Find(i)
		require.True(t, ok)
		require.Equal(t, i*i, v)
	}
	require.LessOrEqual(t, h.GetNumBuckets(), 1<<h.GetGlobalDepth())
}
