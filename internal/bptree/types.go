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
Package bptree implements a disk-based B+ tree index over pages
managed by a buffer pool: fixed-width keys, append-only leaf chaining,
and split/coalesce/redistribute maintenance on every mutation.
*/
package bptree

import (
	"bytes"
	"encoding/binary"

	"pagekv/internal/buffer"
)

// KeySize is the fixed width of every indexed key, mirroring the
// source's GenericKey<N> template parameter without carrying Go
// generics into the on-disk layout.
const KeySize = 32

// Key is a fixed-width opaque key blob compared only via a Comparator.
type Key [KeySize]byte

// KeyFromBytes left-pads/truncates b into a Key. Callers that need an
// ordering consistent with natural byte comparison should right-align
// fixed-width integers themselves before calling this.
func KeyFromBytes(b []byte) Key {
	if len(b) > KeySize {
		b = b[:KeySize]
	}
	var k Key
	copy(k[KeySize-len(b):], b)
	return k
}

// KeyFromUint64 encodes v as a big-endian integer in the low 8 bytes
// of the key, which sorts correctly under Comparator's byte-wise
// comparison.
func KeyFromUint64(v uint64) Key {
	var k Key
	binary.BigEndian.PutUint64(k[KeySize-8:], v)
	return k
}

// Comparator orders two keys: negative if a < b, zero if equal,
// positive if a > b.
type Comparator func(a, b Key) int

// ByteComparator compares keys byte-wise, the natural ordering for
// keys built with KeyFromUint64.
func ByteComparator(a, b Key) int {
	return bytes.Compare(a[:], b[:])
}

// RID is an external record identifier: the heap page holding a tuple
// plus its slot number within that page.
type RID struct {
	PageID  buffer.PageID
	SlotNum uint32
}

func (r RID) encode(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(r.PageID))
	binary.BigEndian.PutUint32(dst[4:8], r.SlotNum)
}

func decodeRID(src []byte) RID {
	return RID{
		PageID:  buffer.PageID(binary.BigEndian.Uint32(src[0:4])),
		SlotNum: binary.BigEndian.Uint32(src[4:8]),
	}
}
