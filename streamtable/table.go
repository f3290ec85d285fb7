// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package streamtable

import (
	"fmt"
	"unsafe"

	"github.com/smmuv3/smmuv3/platform"
)

// LinearTable is a contiguous, page-aligned array of Stream Table Entries
// indexed by StreamID in [0, EntryCount()). The zero value is not usable;
// call Init first.
type LinearTable struct {
	handler    platform.Handler
	base       platform.PhysAddr
	entryCount int
	mem        []byte
}

// Init allocates a Stream Table sized for 2^sidBits StreamIDs and marks
// every entry as bypass. The SMMUv3 architecture requires
// base mod (entryCount*EntrySize) == 0; when that size exceeds one page the
// table is over-allocated and rounded up to the required alignment, since a
// plain page allocator only guarantees PageSize alignment.
func (t *LinearTable) Init(h platform.Handler, sidBits uint32) error {
	t.handler = h
	t.entryCount = 1 << sidBits
	size := t.entryCount * EntrySize
	align := uint64(size)
	if align < platform.PageSize {
		align = platform.PageSize
	}

	pages := platform.PagesFor(size)
	// AllocPages only guarantees PageSize alignment, and the table's own
	// required alignment (align) can be many pages. The worst case for
	// carving an align-aligned block out of a page-granular allocation is
	// align/PageSize - 1 pages of slack on top of the block itself, so
	// request that much extra and snap the base up within it.
	alignPages := int(align) / platform.PageSize
	extra := alignPages - 1
	if extra < 0 {
		extra = 0
	}
	base, err := h.AllocPages(pages + extra)
	if err != nil {
		return fmt.Errorf("streamtable: allocating %d pages: %w", pages+extra, err)
	}
	aligned := platform.AlignUp(base, align)
	if uint64(aligned-base)+uint64(size) > uint64(pages+extra)*platform.PageSize {
		// The slack above is provably sufficient given a PageSize-aligned
		// base; this would only trip if AllocPages broke that contract.
		return fmt.Errorf("streamtable: allocator returned base 0x%x, cannot satisfy %d-byte alignment", base, align)
	}
	t.base = aligned

	va, err := h.PhysToVirt(t.base)
	if err != nil {
		return fmt.Errorf("streamtable: mapping table base: %w", err)
	}
	t.mem = unsafe.Slice((*byte)(unsafe.Pointer(uintptr(va))), size)

	for sid := 0; sid < t.entryCount; sid++ {
		t.writeEntry(sid, BypassEntry())
	}
	return nil
}

// BaseAddr returns the physical base of the Stream Table region.
func (t *LinearTable) BaseAddr() platform.PhysAddr { return t.base }

// EntryCount returns 2^sidBits, the number of StreamIDs this table covers.
func (t *LinearTable) EntryCount() int { return t.entryCount }

func (t *LinearTable) writeEntry(sid int, e Entry) {
	off := sid * EntrySize
	dst := (*Entry)(unsafe.Pointer(&t.mem[off]))
	*dst = e
}

// ReadEntry returns the entry currently stored at sid, for tests and the
// inspector tool.
func (t *LinearTable) ReadEntry(sid int) Entry {
	off := sid * EntrySize
	return *(*Entry)(unsafe.Pointer(&t.mem[off]))
}

// SetBypass writes the bypass STE template at sid.
func (t *LinearTable) SetBypass(sid int) error {
	if sid < 0 || sid >= t.entryCount {
		return fmt.Errorf("streamtable: sid %d out of range [0, %d)", sid, t.entryCount)
	}
	t.writeEntry(sid, BypassEntry())
	return nil
}

// SetS2Translated writes the stage-2 translated STE template at sid.
func (t *LinearTable) SetS2Translated(sid int, vmid uint16, s2ptBase uint64) error {
	if sid < 0 || sid >= t.entryCount {
		return fmt.Errorf("streamtable: sid %d out of range [0, %d)", sid, t.entryCount)
	}
	t.writeEntry(sid, S2TranslatedEntry(vmid, s2ptBase))
	return nil
}

// EntryOffset returns the byte offset of sid's entry within the table
// region, for callers that need to flush exactly those bytes.
func EntryOffset(sid int) int { return sid * EntrySize }
