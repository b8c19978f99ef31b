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

package header

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"pagekv/internal/buffer"
	"pagekv/internal/disk"
)

func newTestManager(t *testing.T) (*Manager, *buffer.Pool) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pages")
	fm, err := disk.CreateFileManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	pool := buffer.New(8, 2, fm)
	return New(pool), pool
}

func TestGetRootPageIDMissingReturnsFalse(t *testing.T) {
	m, _ := newTestManager(t)
	_, ok, err := m.GetRootPageID("orders_pk")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertThenGetRoundTrips(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.InsertRecord("orders_pk", buffer.PageID(5)))

	id, ok, err := m.GetRootPageID("orders_pk")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buffer.PageID(5), id)
}

func TestUpdateRecordOverwritesExisting(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.InsertRecord("orders_pk", buffer.PageID(5)))
	require.NoError(t, m.UpdateRecord("orders_pk", buffer.PageID(9)))

	id, ok, err := m.GetRootPageID("orders_pk")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buffer.PageID(9), id)
}

func TestMultipleIndexesCoexist(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.InsertRecord("orders_pk", buffer.PageID(5)))
	require.NoError(t, m.InsertRecord("customers_pk", buffer.PageID(11)))

	id, ok, err := m.GetRootPageID("orders_pk")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buffer.PageID(5), id)

	id, ok, err = m.GetRootPageID("customers_pk")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buffer.PageID(11), id)
}

// TestRecordSurvivesEviction confirms the header page is a page like
// any other: a pool small enough to evict it still reflects writes
// because FetchPage reads it back from disk.
func TestRecordSurvivesEviction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pages")
	fm, err := disk.CreateFileManager(path)
	require.NoError(t, err)
	t.Cleanup(func() { fm.Close() })

	pool := buffer.New(1, 2, fm)
	m := New(pool)

	require.NoError(t, m.InsertRecord("orders_pk", buffer.PageID(5)))

	// Force the header frame out by allocating more pages than the
	// pool can hold while the header page sits unpinned between calls.
	p, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.UnpinPage(p.ID(), false))

	id, ok, err := m.GetRootPageID("orders_pk")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, buffer.PageID(5), id)
}
