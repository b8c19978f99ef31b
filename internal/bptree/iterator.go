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

import "pagekv/internal/buffer"

// Iterator is a lazy, finite, non-restartable (key, value) sequence
// over a leaf chain. It holds one pinned leaf at a time and must be
// drained to End() or explicitly Close()d to release it.
type Iterator struct {
	pool *buffer.Pool
	page *buffer.Page
	leaf *LeafPage
	idx  int
}

// Begin starts an iterator at the first key >= key. An empty tree
// yields an already-ended iterator.
func (t *Tree) Begin(key Key) (*Iterator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootPageID == buffer.InvalidPageID {
		return &Iterator{}, nil
	}
	leafPage, leaf, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	it := &Iterator{pool: t.pool, page: leafPage, leaf: leaf, idx: leaf.KeyIndex(key, t.cmp)}
	if err := it.skipExhaustedLeaves(); err != nil {
		return nil, err
	}
	return it, nil
}

// BeginFirst starts an iterator at the leftmost leaf's first entry.
func (t *Tree) BeginFirst() (*Iterator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootPageID == buffer.InvalidPageID {
		return &Iterator{}, nil
	}
	id := t.rootPageID
	for {
		page, err := t.pool.FetchPage(id)
		if err != nil {
			return nil, err
		}
		if pageType(page.Data()) == PageTypeLeaf {
			it := &Iterator{pool: t.pool, page: page, leaf: WrapLeaf(page.Data()), idx: 0}
			if err := it.skipExhaustedLeaves(); err != nil {
				return nil, err
			}
			return it, nil
		}
		node := WrapInternal(page.Data())
		child := node.ValueAt(0)
		t.pool.UnpinPage(page.ID(), false)
		id = child
	}
}

// skipExhaustedLeaves advances across leaf boundaries while the
// current slot cursor has run past the resident leaf's last entry,
// releasing each leaf as it's left behind.
func (it *Iterator) skipExhaustedLeaves() error {
	for it.page != nil && it.idx >= it.leaf.Size() {
		next := it.leaf.NextPageID()
		it.pool.UnpinPage(it.page.ID(), false)
		if next == buffer.InvalidPageID {
			it.page, it.leaf = nil, nil
			return nil
		}
		page, err := it.pool.FetchPage(next)
		if err != nil {
			it.page, it.leaf = nil, nil
			return err
		}
		it.page, it.leaf, it.idx = page, WrapLeaf(page.Data()), 0
	}
	return nil
}

// End reports whether the sequence is exhausted.
func (it *Iterator) End() bool {
	return it.page == nil
}

// Next returns the current (key, value) and advances. The zero value
// and false are returned once End() is true.
func (it *Iterator) Next() (Key, RID, bool) {
	if it.page == nil {
		return Key{}, RID{}, false
	}
	k, v := it.leaf.GetItem(it.idx)
	it.idx++
	it.skipExhaustedLeaves()
	return k, v, true
}

// Close releases the iterator's pinned leaf without draining the
// sequence. Safe to call after End() is already true.
func (it *Iterator) Close() {
	if it.page != nil {
		it.pool.UnpinPage(it.page.ID(), false)
		it.page, it.leaf = nil, nil
	}
}
