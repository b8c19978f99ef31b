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
Package buffer implements the buffer pool manager: the owner of frame
memory that arbitrates every page fetch, allocation, unpin, flush and
delete between callers, the LRU-K replacer, and the disk manager.

Pin/Unpin Protocol:

A page must be pinned (via NewPage or FetchPage) before its bytes may
be read or written, and unpinned exactly once per pin when the caller
is done:

	page, err := pool.NewPage()
	// ... use page.Data() ...
	pool.UnpinPage(page.ID(), true)

A pinned frame can never be chosen as an eviction victim. Unpinning
with dirty=true marks the frame for write-back before its buffer is
ever reused; the flag is sticky and only cleared by a flush.

Acquisition order: the free list is drained before any frame is ever
evicted. When eviction is required and the victim frame is dirty, it
is flushed to disk before its buffer is handed to the new occupant.
*/
package buffer

import (
	"sync"
	"sync/atomic"

	"pagekv/internal/dberr"
	"pagekv/internal/disk"
	"pagekv/internal/hashindex"
	"pagekv/internal/logging"
	"pagekv/internal/replacer"
)

// PageID re-exports the disk manager's page identifier type so callers
// of this package don't need to import internal/disk directly.
type PageID = disk.PageID

// InvalidPageID is never a valid page allocation.
const InvalidPageID = disk.InvalidPageID

// PageSize is the fixed size in bytes of every page.
const PageSize = disk.PageSize

// DiskManager is the block-device contract the pool depends on. Any
// conforming implementation may be substituted, including a fake for
// tests; internal/disk.FileManager is the concrete production one.
type DiskManager interface {
	ReadPage(id PageID, buf []byte) error
	WritePage(id PageID, buf []byte) error
	AllocatePage() (PageID, error)
	DeallocatePage(id PageID) error
}

// Page is a pinned handle onto one frame's bytes. Its lifetime is the
// pin count: the caller that obtained it from NewPage/FetchPage must
// release it via Pool.UnpinPage.
type Page struct {
	id   PageID
	data []byte
}

// ID returns the page identifier.
func (p *Page) ID() PageID { return p.id }

// Data returns the page's raw bytes. Mutations are visible to every
// other holder of the same frame and are only made durable by a flush.
func (p *Page) Data() []byte { return p.data }

type frame struct {
	page     *Page
	pinCount int
	dirty    bool
}

// Stats is a point-in-time snapshot of buffer pool activity.
type Stats struct {
	PoolSize    int
	UsedFrames  int
	DirtyPages  int
	PinnedPages int
	Hits        int64
	Misses      int64
	Evictions   int64
	Flushes     int64
}

// Pool owns pool_size frames and arbitrates access to them through a
// single coarse latch, matching the spec's one-mutex-per-subsystem
// concurrency model.
type Pool struct {
	mu sync.Mutex

	disk     DiskManager
	log      *logging.Logger
	poolSize int

	frames    []*frame
	freeList  []int
	pageTable *hashindex.ExtendibleHashTable[PageID, int]
	replacer  *replacer.LRUKReplacer

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	flushes   atomic.Int64
}

func pageIDHash(id PageID) uint64 {
	return uint64(uint32(id))
}

// New creates a buffer pool of poolSize frames backed by dm, using an
// LRU-K replacer with history depth k.
func New(poolSize int, k int, dm DiskManager) *Pool {
	free := make([]int, poolSize)
	for i := range free {
		free[i] = i
	}
	return &Pool{
		disk:      dm,
		log:       logging.NewLogger("bufferpool"),
		poolSize:  poolSize,
		frames:    make([]*frame, poolSize),
		freeList:  free,
		pageTable: hashindex.New[PageID, int](4, pageIDHash),
		replacer:  replacer.New(poolSize, k),
	}
}

// acquireFrame returns a frame index ready for reuse: from the free
// list if available, otherwise by evicting a replacer victim,
// flushing it first if dirty. Returns dberr.Full if no frame is
// obtainable.
func (p *Pool) acquireFrame() (int, error) {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx, nil
	}

	victim, ok := p.replacer.Evict()
	if !ok {
		return 0, dberr.New("buffer.acquireFrame", dberr.Full)
	}
	idx := int(victim)
	f := p.frames[idx]
	if f != nil {
		if f.dirty {
			if err := p.disk.WritePage(f.page.id, f.page.data); err != nil {
				return 0, dberr.Wrap("buffer.acquireFrame", dberr.Invariant, err)
			}
			p.flushes.Add(1)
		}
		p.pageTable.Remove(f.page.id)
		p.evictions.Add(1)
		p.log.Debug("evicted frame", "frame_id", idx, "page_id", int32(f.page.id), "dirty", f.dirty)
	}
	return idx, nil
}

// NewPage allocates a fresh page id, binds it to an acquired frame
// with a zeroed buffer, and returns it pinned.
func (p *Pool) NewPage() (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.disk.AllocatePage()
	if err != nil {
		return nil, err
	}

	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}

	pg := &Page{id: id, data: make([]byte, PageSize)}
	p.frames[idx] = &frame{page: pg, pinCount: 1, dirty: false}
	p.pageTable.Insert(id, idx)
	p.replacer.RecordAccess(replacer.FrameID(idx))
	p.replacer.SetEvictable(replacer.FrameID(idx), false)
	return pg, nil
}

// FetchPage returns the page, pinning it. If not resident, it is
// loaded from disk into an acquired frame.
func (p *Pool) FetchPage(id PageID) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable.Find(id); ok {
		p.hits.Add(1)
		f := p.frames[idx]
		f.pinCount++
		p.replacer.RecordAccess(replacer.FrameID(idx))
		p.replacer.SetEvictable(replacer.FrameID(idx), false)
		return f.page, nil
	}

	p.misses.Add(1)
	idx, err := p.acquireFrame()
	if err != nil {
		return nil, err
	}

	data := make([]byte, PageSize)
	if err := p.disk.ReadPage(id, data); err != nil {
		p.freeList = append(p.freeList, idx)
		return nil, err
	}

	pg := &Page{id: id, data: data}
	p.frames[idx] = &frame{page: pg, pinCount: 1, dirty: false}
	p.pageTable.Insert(id, idx)
	p.replacer.RecordAccess(replacer.FrameID(idx))
	p.replacer.SetEvictable(replacer.FrameID(idx), false)
	return pg, nil
}

// UnpinPage releases one pin on id. isDirty ORs into the frame's dirty
// flag; it never clears it. Reports false if the page isn't resident
// or is already fully unpinned.
func (p *Pool) UnpinPage(id PageID, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(id)
	if !ok {
		return false
	}
	f := p.frames[idx]
	if f.pinCount <= 0 {
		return false
	}
	if isDirty {
		f.dirty = true
	}
	f.pinCount--
	if f.pinCount == 0 {
		p.replacer.SetEvictable(replacer.FrameID(idx), true)
	}
	return true
}

// FlushPage writes id's frame to disk if resident, clearing its dirty
// flag. Reports false if id is not resident.
func (p *Pool) FlushPage(id PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(id)
}

func (p *Pool) flushLocked(id PageID) bool {
	idx, ok := p.pageTable.Find(id)
	if !ok {
		return false
	}
	f := p.frames[idx]
	if err := p.disk.WritePage(id, f.page.data); err != nil {
		return false
	}
	f.dirty = false
	p.flushes.Add(1)
	return true
}

// FlushAllPages writes every resident page to disk, clean or dirty,
// clearing each frame's dirty flag.
func (p *Pool) FlushAllPages() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, f := range p.frames {
		if f != nil {
			p.flushLocked(f.page.id)
		}
	}
	p.log.Debug("flushed all pages", "pool_size", p.poolSize)
}

// DeletePage removes a page from the pool and deallocates it on disk.
// Reports false if the page is pinned.
func (p *Pool) DeletePage(id PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable.Find(id)
	if !ok {
		return true
	}
	f := p.frames[idx]
	if f.pinCount > 0 {
		return false
	}

	p.pageTable.Remove(id)
	p.replacer.SetEvictable(replacer.FrameID(idx), true)
	p.replacer.Remove(replacer.FrameID(idx))
	p.frames[idx] = nil
	p.freeList = append(p.freeList, idx)
	_ = p.disk.DeallocatePage(id)
	return true
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		PoolSize:  p.poolSize,
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
		Flushes:   p.flushes.Load(),
	}
	for _, f := range p.frames {
		if f == nil {
			continue
		}
		s.UsedFrames++
		if f.dirty {
			s.DirtyPages++
		}
		if f.pinCount > 0 {
			s.PinnedPages++
		}
	}
	return s
}

// PoolSize returns the number of frames the pool manages.
func (p *Pool) PoolSize() int { return p.poolSize }
