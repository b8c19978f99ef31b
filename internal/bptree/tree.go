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
	"sync"

	"pagekv/internal/buffer"
	"pagekv/internal/logging"
)

// HeaderStore is the small external interface the tree depends on to
// persist its root page id across restarts. internal/header.Manager
// satisfies it.
type HeaderStore interface {
	GetRootPageID(name string) (buffer.PageID, bool, error)
	UpdateRecord(name string, rootPageID buffer.PageID) error
}

// Tree is a disk-based B+ tree index. It is not internally
// thread-safe beyond the single coarse latch held for the body of
// every public method: concurrent writers must still be externally
// serialized if more than one Tree handle is shared, which this
// package does not do.
type Tree struct {
	mu sync.Mutex

	pool   *buffer.Pool
	header HeaderStore
	name   string
	log    *logging.Logger

	cmp             Comparator
	leafMaxSize     int
	internalMaxSize int

	rootPageID buffer.PageID
}

// New constructs a tree over pool, persisting root-pointer updates to
// header under name. If header already has a record for name, the
// tree resumes from that root.
func New(pool *buffer.Pool, header HeaderStore, name string, cmp Comparator, leafMaxSize, internalMaxSize int) (*Tree, error) {
	t := &Tree{
		pool:            pool,
		header:          header,
		name:            name,
		log:             logging.NewLogger("bptree"),
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      buffer.InvalidPageID,
	}
	if header != nil {
		id, ok, err := header.GetRootPageID(name)
		if err != nil {
			return nil, err
		}
		if ok {
			t.rootPageID = id
		}
	}
	return t, nil
}

// IsEmpty reports whether the tree currently has no root page.
func (t *Tree) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootPageID == buffer.InvalidPageID
}

// RootPageID returns the current root page id, or InvalidPageID if
// the tree is empty.
func (t *Tree) RootPageID() buffer.PageID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootPageID
}

func (t *Tree) persistRoot() error {
	if t.header == nil {
		return nil
	}
	return t.header.UpdateRecord(t.name, t.rootPageID)
}

// findLeaf descends from the root to the leaf that would contain key,
// returning it pinned. Internal pages visited along the way are
// unpinned clean as soon as their child is chosen.
func (t *Tree) findLeaf(key Key) (*buffer.Page, *LeafPage, error) {
	id := t.rootPageID
	for {
		page, err := t.pool.FetchPage(id)
		if err != nil {
			return nil, nil, err
		}
		if pageType(page.Data()) == PageTypeLeaf {
			return page, WrapLeaf(page.Data()), nil
		}
		node := WrapInternal(page.Data())
		child := node.Lookup(key, t.cmp)
		t.pool.UnpinPage(page.ID(), false)
		id = child
	}
}

// GetValue looks up key, returning its value if present.
func (t *Tree) GetValue(key Key) (RID, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootPageID == buffer.InvalidPageID {
		return RID{}, false, nil
	}
	leafPage, leaf, err := t.findLeaf(key)
	if err != nil {
		return RID{}, false, err
	}
	v, ok := leaf.Lookup(key, t.cmp)
	t.pool.UnpinPage(leafPage.ID(), false)
	return v, ok, nil
}

func (t *Tree) reparentChild(childID, newParentID buffer.PageID) error {
	page, err := t.pool.FetchPage(childID)
	if err != nil {
		return err
	}
	setPageParentID(page.Data(), newParentID)
	t.pool.UnpinPage(page.ID(), true)
	return nil
}

// Insert adds (key, value). Reports false without modifying the tree
// if key is already present.
func (t *Tree) Insert(key Key, value RID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootPageID == buffer.InvalidPageID {
		page, err := t.pool.NewPage()
		if err != nil {
			return false, err
		}
		leaf := InitLeaf(page.Data(), page.ID(), buffer.InvalidPageID, t.leafMaxSize)
		leaf.Insert(key, value, t.cmp)
		t.rootPageID = page.ID()
		t.pool.UnpinPage(page.ID(), true)
		if err := t.persistRoot(); err != nil {
			return false, err
		}
		return true, nil
	}

	leafPage, leaf, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}

	newSize, inserted := leaf.Insert(key, value, t.cmp)
	if !inserted {
		t.pool.UnpinPage(leafPage.ID(), false)
		return false, nil
	}

	if newSize < leaf.MaxSize() {
		t.pool.UnpinPage(leafPage.ID(), true)
		return true, nil
	}

	parentID := leaf.ParentPageID()
	leafID := leafPage.ID()

	siblingPage, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(leafID, true)
		return false, err
	}
	sibling := InitLeaf(siblingPage.Data(), siblingPage.ID(), parentID, leaf.MaxSize())
	leaf.MoveHalfTo(sibling)
	middleKey := sibling.KeyAt(0)
	siblingID := siblingPage.ID()

	t.pool.UnpinPage(siblingID, true)
	t.pool.UnpinPage(leafID, true)

	if err := t.insertIntoParent(leafID, parentID, middleKey, siblingID); err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoParent propagates a newly split child upward, splitting
// the parent in turn if it overflows.
func (t *Tree) insertIntoParent(oldID, oldParentID buffer.PageID, key Key, newID buffer.PageID) error {
	if oldParentID == buffer.InvalidPageID {
		rootPage, err := t.pool.NewPage()
		if err != nil {
			return err
		}
		root := InitInternal(rootPage.Data(), rootPage.ID(), buffer.InvalidPageID, t.internalMaxSize)
		root.PopulateNewRoot(oldID, key, newID)
		rootID := rootPage.ID()

		if err := t.reparentChild(oldID, rootID); err != nil {
			t.pool.UnpinPage(rootID, true)
			return err
		}
		if err := t.reparentChild(newID, rootID); err != nil {
			t.pool.UnpinPage(rootID, true)
			return err
		}

		t.rootPageID = rootID
		if err := t.persistRoot(); err != nil {
			t.pool.UnpinPage(rootID, true)
			return err
		}
		t.pool.UnpinPage(rootID, true)
		t.log.Debug("grew root", "new_root_page_id", int32(rootID), "old_root_page_id", int32(oldID))
		return nil
	}

	parentPage, err := t.pool.FetchPage(oldParentID)
	if err != nil {
		return err
	}
	parent := WrapInternal(parentPage.Data())
	parent.InsertNodeAfter(oldID, key, newID)
	if err := t.reparentChild(newID, oldParentID); err != nil {
		t.pool.UnpinPage(parentPage.ID(), true)
		return err
	}

	if parent.Size() < parent.MaxSize() {
		t.pool.UnpinPage(parentPage.ID(), true)
		return nil
	}

	grandParentID := parent.ParentPageID()
	parentID := parentPage.ID()

	siblingPage, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(parentID, true)
		return err
	}
	sibling := InitInternal(siblingPage.Data(), siblingPage.ID(), grandParentID, parent.MaxSize())
	parent.MoveHalfTo(sibling)
	middleKey := sibling.KeyAt(0)
	sibling.SetKeyAt(0, Key{})
	siblingID := siblingPage.ID()

	for i := 0; i < sibling.Size(); i++ {
		if err := t.reparentChild(sibling.ValueAt(i), siblingID); err != nil {
			t.pool.UnpinPage(siblingID, true)
			t.pool.UnpinPage(parentID, true)
			return err
		}
	}

	t.pool.UnpinPage(siblingID, true)
	t.pool.UnpinPage(parentID, true)

	return t.insertIntoParent(parentID, grandParentID, middleKey, siblingID)
}

func (t *Tree) deleteRootPage(id buffer.PageID) error {
	t.rootPageID = buffer.InvalidPageID
	if err := t.persistRoot(); err != nil {
		return err
	}
	t.pool.DeletePage(id)
	return nil
}

// Remove deletes key if present. A no-op if key is absent.
func (t *Tree) Remove(key Key) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rootPageID == buffer.InvalidPageID {
		return nil
	}
	leafPage, leaf, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	if !leaf.Remove(key, t.cmp) {
		t.pool.UnpinPage(leafPage.ID(), false)
		return nil
	}

	if leaf.ParentPageID() == buffer.InvalidPageID {
		if leaf.Size() == 0 {
			id := leafPage.ID()
			t.pool.UnpinPage(id, true)
			return t.deleteRootPage(id)
		}
		t.pool.UnpinPage(leafPage.ID(), true)
		return nil
	}

	if leaf.Size() >= leaf.MinSize() {
		t.pool.UnpinPage(leafPage.ID(), true)
		return nil
	}

	return t.coalesceOrRedistributeLeaf(leafPage, leaf)
}

func (t *Tree) finishParentAfterRedistribute(parentPage *buffer.Page) error {
	t.pool.UnpinPage(parentPage.ID(), true)
	return nil
}

// handleParentAfterCoalesce decides whether parent needs to recurse
// into its own coalesce/redistribute, collapse as the root, or is
// simply unpinned unchanged in size class.
func (t *Tree) handleParentAfterCoalesce(parentPage *buffer.Page, parent *InternalPage) error {
	if parent.ParentPageID() == buffer.InvalidPageID {
		if parent.Size() == 1 {
			onlyChild := parent.RemoveAndReturnOnlyChild()
			if err := t.reparentChild(onlyChild, buffer.InvalidPageID); err != nil {
				t.pool.UnpinPage(parentPage.ID(), true)
				return err
			}
			t.rootPageID = onlyChild
			id := parentPage.ID()
			if err := t.persistRoot(); err != nil {
				t.pool.UnpinPage(id, true)
				return err
			}
			t.pool.UnpinPage(id, true)
			t.pool.DeletePage(id)
			t.log.Debug("collapsed root", "new_root_page_id", int32(onlyChild), "old_root_page_id", int32(id))
			return nil
		}
		t.pool.UnpinPage(parentPage.ID(), true)
		return nil
	}

	if parent.Size() < parent.MinSize() {
		return t.coalesceOrRedistributeInternal(parentPage, parent)
	}
	t.pool.UnpinPage(parentPage.ID(), true)
	return nil
}

func (t *Tree) coalesceOrRedistributeLeaf(nodePage *buffer.Page, node *LeafPage) error {
	parentPage, err := t.pool.FetchPage(node.ParentPageID())
	if err != nil {
		t.pool.UnpinPage(nodePage.ID(), true)
		return err
	}
	parent := WrapInternal(parentPage.Data())
	nodeIndex := parent.ValueIndex(node.PageID())

	var leftPage *buffer.Page
	var left *LeafPage
	if nodeIndex > 0 {
		leftPage, err = t.pool.FetchPage(parent.ValueAt(nodeIndex - 1))
		if err != nil {
			t.pool.UnpinPage(nodePage.ID(), true)
			t.pool.UnpinPage(parentPage.ID(), false)
			return err
		}
		left = WrapLeaf(leftPage.Data())
	}
	var rightPage *buffer.Page
	var right *LeafPage
	if nodeIndex < parent.Size()-1 {
		rightPage, err = t.pool.FetchPage(parent.ValueAt(nodeIndex + 1))
		if err != nil {
			t.pool.UnpinPage(nodePage.ID(), true)
			if leftPage != nil {
				t.pool.UnpinPage(leftPage.ID(), false)
			}
			t.pool.UnpinPage(parentPage.ID(), false)
			return err
		}
		right = WrapLeaf(rightPage.Data())
	}

	switch {
	case left != nil && left.Size() > left.MinSize():
		left.MoveLastToFrontOf(node)
		parent.SetKeyAt(nodeIndex, node.KeyAt(0))
		t.pool.UnpinPage(leftPage.ID(), true)
		if right != nil {
			t.pool.UnpinPage(rightPage.ID(), false)
		}
		t.pool.UnpinPage(nodePage.ID(), true)
		return t.finishParentAfterRedistribute(parentPage)

	case right != nil && right.Size() > right.MinSize():
		right.MoveFirstToEndOf(node)
		parent.SetKeyAt(nodeIndex+1, right.KeyAt(0))
		if left != nil {
			t.pool.UnpinPage(leftPage.ID(), false)
		}
		t.pool.UnpinPage(rightPage.ID(), true)
		t.pool.UnpinPage(nodePage.ID(), true)
		return t.finishParentAfterRedistribute(parentPage)

	case left != nil:
		node.MoveAllTo(left)
		if right != nil {
			t.pool.UnpinPage(rightPage.ID(), false)
		}
		nodeID := nodePage.ID()
		t.pool.UnpinPage(nodeID, false)
		t.pool.DeletePage(nodeID)
		t.pool.UnpinPage(leftPage.ID(), true)
		parent.Remove(nodeIndex)
		return t.handleParentAfterCoalesce(parentPage, parent)

	default:
		right.MoveAllTo(node)
		rightID := rightPage.ID()
		t.pool.UnpinPage(rightID, false)
		t.pool.DeletePage(rightID)
		t.pool.UnpinPage(nodePage.ID(), true)
		parent.Remove(nodeIndex + 1)
		return t.handleParentAfterCoalesce(parentPage, parent)
	}
}

func (t *Tree) coalesceOrRedistributeInternal(nodePage *buffer.Page, node *InternalPage) error {
	parentPage, err := t.pool.FetchPage(node.ParentPageID())
	if err != nil {
		t.pool.UnpinPage(nodePage.ID(), true)
		return err
	}
	parent := WrapInternal(parentPage.Data())
	nodeIndex := parent.ValueIndex(node.PageID())

	var leftPage *buffer.Page
	var left *InternalPage
	if nodeIndex > 0 {
		leftPage, err = t.pool.FetchPage(parent.ValueAt(nodeIndex - 1))
		if err != nil {
			t.pool.UnpinPage(nodePage.ID(), true)
			t.pool.UnpinPage(parentPage.ID(), false)
			return err
		}
		left = WrapInternal(leftPage.Data())
	}
	var rightPage *buffer.Page
	var right *InternalPage
	if nodeIndex < parent.Size()-1 {
		rightPage, err = t.pool.FetchPage(parent.ValueAt(nodeIndex + 1))
		if err != nil {
			t.pool.UnpinPage(nodePage.ID(), true)
			if leftPage != nil {
				t.pool.UnpinPage(leftPage.ID(), false)
			}
			t.pool.UnpinPage(parentPage.ID(), false)
			return err
		}
		right = WrapInternal(rightPage.Data())
	}

	switch {
	case left != nil && left.Size() > left.MinSize():
		oldSeparator := parent.KeyAt(nodeIndex)
		newSeparator := left.KeyAt(left.Size() - 1)
		movedChild := left.ValueAt(left.Size() - 1)
		left.MoveLastToFrontOf(node, oldSeparator)
		if err := t.reparentChild(movedChild, node.PageID()); err != nil {
			t.pool.UnpinPage(leftPage.ID(), true)
			if right != nil {
				t.pool.UnpinPage(rightPage.ID(), false)
			}
			t.pool.UnpinPage(nodePage.ID(), true)
			t.pool.UnpinPage(parentPage.ID(), true)
			return err
		}
		parent.SetKeyAt(nodeIndex, newSeparator)
		t.pool.UnpinPage(leftPage.ID(), true)
		if right != nil {
			t.pool.UnpinPage(rightPage.ID(), false)
		}
		t.pool.UnpinPage(nodePage.ID(), true)
		return t.finishParentAfterRedistribute(parentPage)

	case right != nil && right.Size() > right.MinSize():
		oldSeparator := parent.KeyAt(nodeIndex + 1)
		newSeparator := right.KeyAt(1)
		movedChild := right.ValueAt(0)
		right.MoveFirstToEndOf(node, oldSeparator)
		if err := t.reparentChild(movedChild, node.PageID()); err != nil {
			if left != nil {
				t.pool.UnpinPage(leftPage.ID(), false)
			}
			t.pool.UnpinPage(rightPage.ID(), true)
			t.pool.UnpinPage(nodePage.ID(), true)
			t.pool.UnpinPage(parentPage.ID(), true)
			return err
		}
		parent.SetKeyAt(nodeIndex+1, newSeparator)
		if left != nil {
			t.pool.UnpinPage(leftPage.ID(), false)
		}
		t.pool.UnpinPage(rightPage.ID(), true)
		t.pool.UnpinPage(nodePage.ID(), true)
		return t.finishParentAfterRedistribute(parentPage)

	case left != nil:
		middleKey := parent.KeyAt(nodeIndex)
		children := make([]buffer.PageID, node.Size())
		for i := range children {
			children[i] = node.ValueAt(i)
		}
		node.MoveAllTo(left, middleKey)
		for _, c := range children {
			if err := t.reparentChild(c, left.PageID()); err != nil {
				t.pool.UnpinPage(leftPage.ID(), true)
				if right != nil {
					t.pool.UnpinPage(rightPage.ID(), false)
				}
				t.pool.UnpinPage(nodePage.ID(), true)
				t.pool.UnpinPage(parentPage.ID(), true)
				return err
			}
		}
		if right != nil {
			t.pool.UnpinPage(rightPage.ID(), false)
		}
		nodeID := nodePage.ID()
		t.pool.UnpinPage(nodeID, false)
		t.pool.DeletePage(nodeID)
		t.pool.UnpinPage(leftPage.ID(), true)
		parent.Remove(nodeIndex)
		return t.handleParentAfterCoalesce(parentPage, parent)

	default:
		middleKey := parent.KeyAt(nodeIndex + 1)
		children := make([]buffer.PageID, right.Size())
		for i := range children {
			children[i] = right.ValueAt(i)
		}
		right.MoveAllTo(node, middleKey)
		for _, c := range children {
			if err := t.reparentChild(c, node.PageID()); err != nil {
				t.pool.UnpinPage(rightPage.ID(), true)
				t.pool.UnpinPage(nodePage.ID(), true)
				t.pool.UnpinPage(parentPage.ID(), true)
				return err
			}
		}
		rightID := rightPage.ID()
		t.pool.UnpinPage(rightID, false)
		t.pool.DeletePage(rightID)
		t.pool.UnpinPage(nodePage.ID(), true)
		parent.Remove(nodeIndex + 1)
		return t.handleParentAfterCoalesce(parentPage, parent)
	}
}
