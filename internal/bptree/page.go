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
	"encoding/binary"

	"pagekv/internal/buffer"
	"pagekv/internal/dberr"
)

// PageType tags a raw page's layout as leaf or internal.
type PageType int32

const (
	PageTypeInvalid  PageType = 0
	PageTypeLeaf     PageType = 1
	PageTypeInternal PageType = 2
)

// header layout, 24 bytes shared by leaf and internal pages:
//
//	0   4  page_type
//	4   4  lsn
//	8   4  size
//	12  4  max_size
//	16  4  parent_page_id
//	20  4  page_id
const headerSize = 24

// leaf pages append a 4-byte next_page_id after the shared header.
const leafHeaderSize = headerSize + 4

const internalHeaderSize = headerSize

// leafSlotSize is one (key, RID) entry: 32-byte key + 8-byte RID.
const leafSlotSize = KeySize + 8

// internalSlotSize is one (key, page_id) entry; slot 0's key is a
// dummy (every key in child 0 is less than key[1]).
const internalSlotSize = KeySize + 4

func pageType(data []byte) PageType {
	return PageType(int32(binary.BigEndian.Uint32(data[0:4])))
}

func setPageType(data []byte, t PageType) {
	binary.BigEndian.PutUint32(data[0:4], uint32(t))
}

func pageSize(data []byte) int {
	return int(binary.BigEndian.Uint32(data[8:12]))
}

func setPageSize(data []byte, size int) {
	binary.BigEndian.PutUint32(data[8:12], uint32(size))
}

func pageMaxSize(data []byte) int {
	return int(binary.BigEndian.Uint32(data[12:16]))
}

func setPageMaxSize(data []byte, max int) {
	binary.BigEndian.PutUint32(data[12:16], uint32(max))
}

func pageParentID(data []byte) buffer.PageID {
	return buffer.PageID(int32(binary.BigEndian.Uint32(data[16:20])))
}

func setPageParentID(data []byte, id buffer.PageID) {
	binary.BigEndian.PutUint32(data[16:20], uint32(int32(id)))
}

func pageID(data []byte) buffer.PageID {
	return buffer.PageID(int32(binary.BigEndian.Uint32(data[20:24])))
}

func setPageID(data []byte, id buffer.PageID) {
	binary.BigEndian.PutUint32(data[20:24], uint32(int32(id)))
}

// LeafPage is a tagged view over a raw buffer-pool page's bytes, laid
// out as a leaf node: shared header, next_page_id, then a
// key-ascending array of (key, RID) slots.
type LeafPage struct {
	data []byte
}

// WrapLeaf views data (already a leaf page) as a LeafPage.
func WrapLeaf(data []byte) *LeafPage { return &LeafPage{data: data} }

// InitLeaf formats data as a fresh, empty leaf page.
func InitLeaf(data []byte, id, parentID buffer.PageID, maxSize int) *LeafPage {
	l := &LeafPage{data: data}
	setPageType(data, PageTypeLeaf)
	setPageSize(data, 0)
	setPageMaxSize(data, maxSize)
	setPageParentID(data, parentID)
	setPageID(data, id)
	l.SetNextPageID(buffer.InvalidPageID)
	return l
}

func (l *LeafPage) PageID() buffer.PageID             { return pageID(l.data) }
func (l *LeafPage) ParentPageID() buffer.PageID       { return pageParentID(l.data) }
func (l *LeafPage) SetParentPageID(id buffer.PageID)  { setPageParentID(l.data, id) }
func (l *LeafPage) Size() int                         { return pageSize(l.data) }
func (l *LeafPage) MaxSize() int                      { return pageMaxSize(l.data) }
func (l *LeafPage) IsFull() bool                      { return l.Size() >= l.MaxSize() }
func (l *LeafPage) MinSize() int                      { return (l.MaxSize() - 1 + 1) / 2 }

func (l *LeafPage) NextPageID() buffer.PageID {
	return buffer.PageID(int32(binary.BigEndian.Uint32(l.data[headerSize : headerSize+4])))
}

func (l *LeafPage) SetNextPageID(id buffer.PageID) {
	binary.BigEndian.PutUint32(l.data[headerSize:headerSize+4], uint32(int32(id)))
}

func (l *LeafPage) slotOffset(i int) int { return leafHeaderSize + i*leafSlotSize }

// KeyAt returns the key stored at slot i.
func (l *LeafPage) KeyAt(i int) Key {
	off := l.slotOffset(i)
	var k Key
	copy(k[:], l.data[off:off+KeySize])
	return k
}

// GetItem returns the (key, value) pair at slot i.
func (l *LeafPage) GetItem(i int) (Key, RID) {
	off := l.slotOffset(i)
	var k Key
	copy(k[:], l.data[off:off+KeySize])
	return k, decodeRID(l.data[off+KeySize : off+leafSlotSize])
}

func (l *LeafPage) setItem(i int, key Key, value RID) {
	off := l.slotOffset(i)
	copy(l.data[off:off+KeySize], key[:])
	value.encode(l.data[off+KeySize : off+leafSlotSize])
}

// KeyIndex performs a lower-bound search: the smallest slot index
// whose key is >= key, or Size() if none.
func (l *LeafPage) KeyIndex(key Key, cmp Comparator) int {
	lo, hi := 0, l.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(l.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup returns the value for key if present.
func (l *LeafPage) Lookup(key Key, cmp Comparator) (RID, bool) {
	i := l.KeyIndex(key, cmp)
	if i < l.Size() && cmp(l.KeyAt(i), key) == 0 {
		_, v := l.GetItem(i)
		return v, true
	}
	return RID{}, false
}

// Insert inserts (key,value) in sorted position. Returns the new size
// and true, or the unchanged size and false if key is already present.
func (l *LeafPage) Insert(key Key, value RID, cmp Comparator) (int, bool) {
	i := l.KeyIndex(key, cmp)
	if i < l.Size() && cmp(l.KeyAt(i), key) == 0 {
		return l.Size(), false
	}
	l.InsertAt(i, key, value)
	return l.Size(), true
}

// InsertAt shifts slots [i, Size()) right by one and writes (key,
// value) at i.
func (l *LeafPage) InsertAt(i int, key Key, value RID) {
	n := l.Size()
	for j := n; j > i; j-- {
		k, v := l.GetItem(j - 1)
		l.setItem(j, k, v)
	}
	l.setItem(i, key, value)
	setPageSize(l.data, n+1)
}

// RemoveAt deletes the slot at index i, shifting later slots left.
func (l *LeafPage) RemoveAt(i int) {
	n := l.Size()
	for j := i; j < n-1; j++ {
		k, v := l.GetItem(j + 1)
		l.setItem(j, k, v)
	}
	setPageSize(l.data, n-1)
}

// Remove deletes key if present, reporting whether it was found.
func (l *LeafPage) Remove(key Key, cmp Comparator) bool {
	i := l.KeyIndex(key, cmp)
	if i >= l.Size() || cmp(l.KeyAt(i), key) != 0 {
		return false
	}
	l.RemoveAt(i)
	return true
}

// MoveHalfTo donates the upper half of this leaf's slots to recipient,
// an empty freshly allocated leaf, and links it into the next_page_id
// chain in recipient's place.
func (l *LeafPage) MoveHalfTo(recipient *LeafPage) {
	n := l.Size()
	start := n - n/2
	for j := start; j < n; j++ {
		k, v := l.GetItem(j)
		recipient.InsertAt(recipient.Size(), k, v)
	}
	setPageSize(l.data, start)
	recipient.SetNextPageID(l.NextPageID())
	l.SetNextPageID(recipient.PageID())
}

// MoveAllTo appends all of this leaf's entries onto recipient and
// propagates the next_page_id chain, used when coalescing left.
func (l *LeafPage) MoveAllTo(recipient *LeafPage) {
	n := l.Size()
	for j := 0; j < n; j++ {
		k, v := l.GetItem(j)
		recipient.InsertAt(recipient.Size(), k, v)
	}
	recipient.SetNextPageID(l.NextPageID())
	setPageSize(l.data, 0)
}

// MoveFirstToEndOf moves this leaf's first entry onto the end of
// recipient, used for right-redistribution.
func (l *LeafPage) MoveFirstToEndOf(recipient *LeafPage) {
	k, v := l.GetItem(0)
	l.RemoveAt(0)
	recipient.InsertAt(recipient.Size(), k, v)
}

// MoveLastToFrontOf moves this leaf's last entry onto the front of
// recipient, used for left-redistribution.
func (l *LeafPage) MoveLastToFrontOf(recipient *LeafPage) {
	k, v := l.GetItem(l.Size() - 1)
	l.RemoveAt(l.Size() - 1)
	recipient.InsertAt(0, k, v)
}

// CopyLastFrom appends the given entry as the new last slot.
func (l *LeafPage) CopyLastFrom(key Key, value RID) {
	l.InsertAt(l.Size(), key, value)
}

// CopyFirstFrom inserts the given entry as the new first slot.
func (l *LeafPage) CopyFirstFrom(key Key, value RID) {
	l.InsertAt(0, key, value)
}

// InternalPage is a tagged view over a raw page's bytes laid out as
// an internal node: shared header followed by size (key, child
// page id) slots, where slot 0's key is a dummy.
type InternalPage struct {
	data []byte
}

// WrapInternal views data (already an internal page) as an InternalPage.
func WrapInternal(data []byte) *InternalPage { return &InternalPage{data: data} }

// InitInternal formats data as a fresh, empty internal page.
func InitInternal(data []byte, id, parentID buffer.PageID, maxSize int) *InternalPage {
	setPageType(data, PageTypeInternal)
	setPageSize(data, 0)
	setPageMaxSize(data, maxSize)
	setPageParentID(data, parentID)
	setPageID(data, id)
	return &InternalPage{data: data}
}

func (n *InternalPage) PageID() buffer.PageID            { return pageID(n.data) }
func (n *InternalPage) ParentPageID() buffer.PageID      { return pageParentID(n.data) }
func (n *InternalPage) SetParentPageID(id buffer.PageID) { setPageParentID(n.data, id) }
func (n *InternalPage) Size() int                        { return pageSize(n.data) }
func (n *InternalPage) MaxSize() int                      { return pageMaxSize(n.data) }
func (n *InternalPage) IsFull() bool                      { return n.Size() >= n.MaxSize() }
func (n *InternalPage) MinSize() int                      { return (n.MaxSize() + 1) / 2 }

func (n *InternalPage) slotOffset(i int) int { return internalHeaderSize + i*internalSlotSize }

// KeyAt returns slot i's key; slot 0's is a dummy with no meaning.
func (n *InternalPage) KeyAt(i int) Key {
	off := n.slotOffset(i)
	var k Key
	copy(k[:], n.data[off:off+KeySize])
	return k
}

// SetKeyAt overwrites slot i's key.
func (n *InternalPage) SetKeyAt(i int, key Key) {
	off := n.slotOffset(i)
	copy(n.data[off:off+KeySize], key[:])
}

// ValueAt returns slot i's child page id.
func (n *InternalPage) ValueAt(i int) buffer.PageID {
	off := n.slotOffset(i)
	return buffer.PageID(int32(binary.BigEndian.Uint32(n.data[off+KeySize : off+internalSlotSize])))
}

// SetValueAt overwrites slot i's child page id.
func (n *InternalPage) SetValueAt(i int, id buffer.PageID) {
	off := n.slotOffset(i)
	binary.BigEndian.PutUint32(n.data[off+KeySize:off+internalSlotSize], uint32(int32(id)))
}

func (n *InternalPage) setItem(i int, key Key, value buffer.PageID) {
	n.SetKeyAt(i, key)
	n.SetValueAt(i, value)
}

// IndexLookup returns the slot whose key is the largest <= key,
// searching from slot 1 (slot 0 covers everything less than key[1]).
func (n *InternalPage) IndexLookup(key Key, cmp Comparator) int {
	lo, hi := 1, n.Size()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.KeyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// Lookup returns the child page id to descend into for key.
func (n *InternalPage) Lookup(key Key, cmp Comparator) buffer.PageID {
	return n.ValueAt(n.IndexLookup(key, cmp))
}

// ValueIndex linearly scans for value among this node's children,
// panicking if absent — a structural invariant violation.
func (n *InternalPage) ValueIndex(value buffer.PageID) int {
	for i := 0; i < n.Size(); i++ {
		if n.ValueAt(i) == value {
			return i
		}
	}
	panic(dberr.New("bptree.InternalPage.ValueIndex", dberr.Invariant))
}

// InsertAt shifts slots [i, Size()) right by one and writes (key,
// value) at i.
func (n *InternalPage) InsertAt(i int, key Key, value buffer.PageID) {
	sz := n.Size()
	for j := sz; j > i; j-- {
		n.setItem(j, n.KeyAt(j-1), n.ValueAt(j-1))
	}
	n.setItem(i, key, value)
	setPageSize(n.data, sz+1)
}

// PopulateNewRoot initializes this (empty, freshly allocated) page as
// a two-child root: slot 0 points to oldValue with a dummy key, slot 1
// holds (newKey, newValue).
func (n *InternalPage) PopulateNewRoot(oldValue buffer.PageID, newKey Key, newValue buffer.PageID) {
	n.setItem(0, Key{}, oldValue)
	n.setItem(1, newKey, newValue)
	setPageSize(n.data, 2)
}

// InsertNodeAfter inserts (newKey, newValue) immediately after the
// slot holding oldValue.
func (n *InternalPage) InsertNodeAfter(oldValue buffer.PageID, newKey Key, newValue buffer.PageID) {
	idx := n.ValueIndex(oldValue)
	n.InsertAt(idx+1, newKey, newValue)
}

// Remove deletes the slot at index i, shifting later slots left.
func (n *InternalPage) Remove(i int) {
	sz := n.Size()
	for j := i; j < sz-1; j++ {
		n.setItem(j, n.KeyAt(j+1), n.ValueAt(j+1))
	}
	setPageSize(n.data, sz-1)
}

// RemoveAndReturnOnlyChild removes this page's sole remaining entry,
// returning its child page id. Panics if size != 1.
func (n *InternalPage) RemoveAndReturnOnlyChild() buffer.PageID {
	if n.Size() != 1 {
		panic(dberr.New("bptree.InternalPage.RemoveAndReturnOnlyChild", dberr.Invariant))
	}
	only := n.ValueAt(0)
	setPageSize(n.data, 0)
	return only
}

// MoveHalfTo donates the upper half of this node's slots (and the
// separator key at the split boundary) to recipient.
func (n *InternalPage) MoveHalfTo(recipient *InternalPage) {
	sz := n.Size()
	start := sz - sz/2
	for j := start; j < sz; j++ {
		recipient.InsertAt(recipient.Size(), n.KeyAt(j), n.ValueAt(j))
	}
	setPageSize(n.data, start)
}

// MoveAllTo appends all of this node's entries onto recipient, using
// middleKey as the separator for the first moved entry (which arrives
// with a dummy key from this node).
func (n *InternalPage) MoveAllTo(recipient *InternalPage, middleKey Key) {
	if n.Size() > 0 {
		n.SetKeyAt(0, middleKey)
	}
	sz := n.Size()
	for j := 0; j < sz; j++ {
		recipient.InsertAt(recipient.Size(), n.KeyAt(j), n.ValueAt(j))
	}
	setPageSize(n.data, 0)
}

// MoveFirstToEndOf moves this node's first entry onto the end of
// recipient, re-keying it with middleKey (the parent separator) and
// leaving this node's new first slot as the dummy.
func (n *InternalPage) MoveFirstToEndOf(recipient *InternalPage, middleKey Key) {
	value := n.ValueAt(0)
	recipient.InsertAt(recipient.Size(), middleKey, value)
	n.Remove(0)
}

// MoveLastToFrontOf moves this node's last entry onto the front of
// recipient, re-keying recipient's old first slot with middleKey.
func (n *InternalPage) MoveLastToFrontOf(recipient *InternalPage, middleKey Key) {
	last := n.Size() - 1
	value := n.ValueAt(last)
	n.Remove(last)
	recipient.SetKeyAt(0, middleKey)
	recipient.InsertAt(0, Key{}, value)
}
