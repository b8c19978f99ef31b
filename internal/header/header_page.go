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
Package header persists named index roots across restarts. It is the
concrete realization of the external "header page" mechanism the B+
tree consults whenever its root page id changes: a single reserved
page (id 0) holding a small table of (index name -> root page id)
records, read and written through the buffer pool like any other page.

There is no catalog, no schema, and no multi-table metadata here —
just enough bookkeeping for a tree to find its own root again.
*/
package header

import (
	"encoding/binary"
	"sync"

	"pagekv/internal/buffer"
	"pagekv/internal/dberr"
)

const (
	nameSize     = 64
	recordSize   = nameSize + 4 // name + root page id
	countOffset  = 0
	recordsStart = 4
)

func maxRecords() int {
	return (buffer.PageSize - recordsStart) / recordSize
}

// Manager reads and writes the header page's name -> root page id
// table through a buffer pool.
type Manager struct {
	mu   sync.Mutex
	pool *buffer.Pool
}

// New wraps pool; the header page (id 0) must already exist, which is
// the case for any file created by internal/disk.CreateFileManager.
func New(pool *buffer.Pool) *Manager {
	return &Manager{pool: pool}
}

// InsertRecord adds a new (name -> rootPageID) record. Overwrites if
// name already exists.
func (m *Manager) InsertRecord(name string, rootPageID buffer.PageID) error {
	return m.UpdateRecord(name, rootPageID)
}

// UpdateRecord sets name's root page id, appending a new record if
// name is not already present.
func (m *Manager) UpdateRecord(name string, rootPageID buffer.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pool.FetchPage(buffer.PageID(0))
	if err != nil {
		return err
	}
	defer m.pool.UnpinPage(page.ID(), true)

	data := page.Data()
	count := int(binary.BigEndian.Uint32(data[countOffset : countOffset+4]))

	for i := 0; i < count; i++ {
		off := recordsStart + i*recordSize
		if recordName(data[off:off+nameSize]) == name {
			binary.BigEndian.PutUint32(data[off+nameSize:off+nameSize+4], uint32(rootPageID))
			return nil
		}
	}

	if count >= maxRecords() {
		return dberr.New("header.UpdateRecord", dberr.Full)
	}
	off := recordsStart + count*recordSize
	writeName(data[off:off+nameSize], name)
	binary.BigEndian.PutUint32(data[off+nameSize:off+nameSize+4], uint32(rootPageID))
	binary.BigEndian.PutUint32(data[countOffset:countOffset+4], uint32(count+1))
	return nil
}

// GetRootPageID looks up name's current root page id.
func (m *Manager) GetRootPageID(name string) (buffer.PageID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pool.FetchPage(buffer.PageID(0))
	if err != nil {
		return buffer.InvalidPageID, false, err
	}
	defer m.pool.UnpinPage(page.ID(), false)

	data := page.Data()
	count := int(binary.BigEndian.Uint32(data[countOffset : countOffset+4]))
	for i := 0; i < count; i++ {
		off := recordsStart + i*recordSize
		if recordName(data[off:off+nameSize]) == name {
			id := buffer.PageID(binary.BigEndian.Uint32(data[off+nameSize : off+nameSize+4]))
			return id, true, nil
		}
	}
	return buffer.InvalidPageID, false, nil
}

func recordName(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func writeName(b []byte, name string) {
	for i := range b {
		b[i] = 0
	}
	copy(b, name)
}
