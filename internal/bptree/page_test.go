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

package bptree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pagekv/internal/buffer"
)

func newLeafBuf(id, parent buffer.PageID, maxSize int) (*LeafPage, []byte) {
	data := make([]byte, buffer.PageSize)
	return InitLeaf(data, id, parent, maxSize), data
}

func newInternalBuf(id, parent buffer.PageID, maxSize int) (*InternalPage, []byte) {
	data := make([]byte, buffer.PageSize)
	return InitInternal(data, id, parent, maxSize), data
}

func TestLeafInsertKeepsAscendingOrder(t *testing.T) {
	leaf, _ := newLeafBuf(1, buffer.InvalidPageID, 10)

	leaf.Insert(KeyFromUint64(5), RID{PageID: 1, SlotNum: 0}, ByteComparator)
	leaf.Insert(KeyFromUint64(1), RID{PageID: 1, SlotNum: 1}, ByteComparator)
	leaf.Insert(KeyFromUint64(3), RID{PageID: 1, SlotNum: 2}, ByteComparator)

	require.Equal(t, 3, leaf.Size())
	require.Equal(t, KeyFromUint64(1), leaf.KeyAt(0))
	require.Equal(t, KeyFromUint64(3), leaf.KeyAt(1))
	require.Equal(t, KeyFromUint64(5), leaf.KeyAt(2))
}

func TestLeafInsertDuplicateReportsUnchanged(t *testing.T) {
	leaf, _ := newLeafBuf(1, buffer.InvalidPageID, 10)
	leaf.Insert(KeyFromUint64(1), RID{PageID: 1, SlotNum: 0}, ByteComparator)

	size, ok := leaf.Insert(KeyFromUint64(1), RID{PageID: 2, SlotNum: 0}, ByteComparator)
	require.False(t, ok)
	require.Equal(t, 1, size)
}

func TestLeafMoveHalfToLinksNextPageID(t *testing.T) {
	leaf, _ := newLeafBuf(1, buffer.InvalidPageID, 10)
	for i := uint64(1); i <= 4; i++ {
		leaf.Insert(KeyFromUint64(i), RID{PageID: buffer.PageID(i)}, ByteComparator)
	}
	sibling, _ := newLeafBuf(2, buffer.InvalidPageID, 10)

	leaf.MoveHalfTo(sibling)

	require.Equal(t, 2, leaf.Size())
	require.Equal(t, 2, sibling.Size())
	require.Equal(t, buffer.PageID(2), leaf.NextPageID())
	require.Equal(t, KeyFromUint64(3), sibling.KeyAt(0))
}

func TestLeafRedistributionPrimitives(t *testing.T) {
	left, _ := newLeafBuf(1, buffer.InvalidPageID, 10)
	right, _ := newLeafBuf(2, buffer.InvalidPageID, 10)
	left.Insert(KeyFromUint64(1), RID{PageID: 1}, ByteComparator)
	left.Insert(KeyFromUint64(2), RID{PageID: 1}, ByteComparator)
	right.Insert(KeyFromUint64(5), RID{PageID: 2}, ByteComparator)

	left.MoveLastToFrontOf(right)
	require.Equal(t, 1, left.Size())
	require.Equal(t, 2, right.Size())
	require.Equal(t, KeyFromUint64(2), right.KeyAt(0))

	right.MoveFirstToEndOf(left)
	require.Equal(t, 2, left.Size())
	require.Equal(t, KeyFromUint64(2), left.KeyAt(1))
}

func TestInternalIndexLookup(t *testing.T) {
	node, _ := newInternalBuf(1, buffer.InvalidPageID, 10)
	node.PopulateNewRoot(buffer.PageID(10), KeyFromUint64(5), buffer.PageID(11))
	node.InsertNodeAfter(buffer.PageID(11), KeyFromUint64(9), buffer.PageID(12))

	require.Equal(t, buffer.PageID(10), node.Lookup(KeyFromUint64(1), ByteComparator))
	require.Equal(t, buffer.PageID(11), node.Lookup(KeyFromUint64(5), ByteComparator))
	require.Equal(t, buffer.PageID(11), node.Lookup(KeyFromUint64(7), ByteComparator))
	require.Equal(t, buffer.PageID(12), node.Lookup(KeyFromUint64(9), ByteComparator))
	require.Equal(t, buffer.PageID(12), node.Lookup(KeyFromUint64(100), ByteComparator))
}

func TestInternalValueIndexPanicsOnMissingChild(t *testing.T) {
	node, _ := newInternalBuf(1, buffer.InvalidPageID, 10)
	node.PopulateNewRoot(buffer.PageID(10), KeyFromUint64(5), buffer.PageID(11))

	require.Panics(t, func() { node.ValueIndex(buffer.PageID(999)) })
}

func TestInternalRemoveAndReturnOnlyChild(t *testing.T) {
	node, _ := newInternalBuf(1, buffer.InvalidPageID, 10)
	node.InsertAt(0, Key{}, buffer.PageID(42))

	require.Equal(t, buffer.PageID(42), node.RemoveAndReturnOnlyChild())
	require.Equal(t, 0, node.Size())
}

func TestInternalMoveHalfTo(t *testing.T) {
	node, _ := newInternalBuf(1, buffer.InvalidPageID, 10)
	node.PopulateNewRoot(buffer.PageID(1), KeyFromUint64(5), buffer.PageID(2))
	node.InsertNodeAfter(buffer.PageID(2), KeyFromUint64(9), buffer.PageID(3))
	node.InsertNodeAfter(buffer.PageID(3), KeyFromUint64(13), buffer.PageID(4))

	sibling, _ := newInternalBuf(2, buffer.InvalidPageID, 10)
	node.MoveHalfTo(sibling)

	require.Equal(t, 2, node.Size())
	require.Equal(t, 2, sibling.Size())
}
