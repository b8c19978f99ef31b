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

// Command pagekv-demo exercises the storage core end-to-end: it opens
// a page file, wires up the buffer pool and header registry, builds a
// B+ tree index over it, inserts and looks up a handful of keys, and
// prints what it did. It is a smoke test for humans, not a server.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"pagekv/internal/bptree"
	"pagekv/internal/buffer"
	"pagekv/internal/config"
	"pagekv/internal/disk"
	"pagekv/internal/header"
	"pagekv/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pagekv-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	mgr := config.NewManager()
	if err := mgr.Load(); err != nil {
		return err
	}
	cfg := mgr.Get()

	log := logging.NewLogger("demo")

	dataDir := cfg.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "demo.pages")

	var fm *disk.FileManager
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		fm, err = disk.OpenFileManager(path)
	} else {
		fm, err = disk.CreateFileManager(path)
	}
	if err != nil {
		return fmt.Errorf("open page file: %w", err)
	}
	defer fm.Close()

	pool := buffer.New(cfg.PoolSize, cfg.ReplacerK, fm)
	defer pool.FlushAllPages()

	hdr := header.New(pool)

	tree, err := bptree.New(pool, hdr, "demo_index", bptree.ByteComparator, cfg.LeafMaxSize, cfg.InternalMaxSize)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}

	log.Info("opened index", "root_page_id", int32(tree.RootPageID()), "pool_size", cfg.PoolSize)

	for i := uint64(1); i <= 20; i++ {
		key := bptree.KeyFromUint64(i)
		if _, found, err := tree.GetValue(key); err != nil {
			return err
		} else if found {
			continue
		}
		inserted, err := tree.Insert(key, bptree.RID{PageID: buffer.PageID(i), SlotNum: 0})
		if err != nil {
			return fmt.Errorf("insert %d: %w", i, err)
		}
		if inserted {
			fmt.Printf("inserted key=%d\n", i)
		}
	}

	it, err := tree.BeginFirst()
	if err != nil {
		return fmt.Errorf("iterate: %w", err)
	}
	fmt.Println("index contents:")
	for !it.End() {
		k, v, ok := it.Next()
		if !ok {
			break
		}
		fmt.Printf("  key=%d -> rid={page=%d slot=%d}\n", decodeUint64(k), int32(v.PageID), v.SlotNum)
	}

	stats := pool.Stats()
	log.Info("buffer pool stats", "hits", stats.Hits, "misses", stats.Misses, "evictions", stats.Evictions)
	return nil
}

func decodeUint64(k bptree.Key) uint64 {
	var v uint64
	for _, b := range k[bptree.KeySize-8:] {
		v = v<<8 | uint64(b)
	}
	return v
}
