// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package cmdqueue implements the SMMUv3 Command Queue: a producer/consumer
// circular buffer of 16-byte command slots shared with hardware, driven by
// two {wrap, idx} indices.
package cmdqueue

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/smmuv3/smmuv3/platform"
	"github.com/smmuv3/smmuv3/smmucmd"
)

// EntrySize is the width of one Command Queue slot in bytes.
const EntrySize = 16

// MaxQ is the architectural maximum log2 Command Queue size: a
// 19-bit index plus a wrap bit fits the 20-bit CMDQ_PROD/CMDQ_CONS fields.
const MaxQ = 19

// Queue is the Command Queue engine. The zero value is not usable; call
// Init first.
type Queue struct {
	handler platform.Handler
	base    platform.PhysAddr
	mem     []byte

	q    uint32 // log2 entry count
	size uint32 // 1 << q

	// prod and cons are packed {wrap, idx} values taken mod 2*size, i.e. the
	// Q+1-bit field the CMDQ_PROD/CMDQ_CONS registers carry. prod is
	// software-owned; cons mirrors the hardware's last observed value.
	prod uint32
	cons uint32
}

// clampQ saturates the requested log2 queue size to what both the hardware
// (hwMax, from IDR1.CMDQS) and the architecture (at most MaxQ = 19) allow. Using max() here instead of min() would let the driver ask hardware
// for a bigger queue than either actually allows.
func clampQ(requested, hwMax uint32) uint32 {
	q := requested
	if hwMax < q {
		q = hwMax
	}
	if MaxQ < q {
		q = MaxQ
	}
	return q
}

// Init allocates ceil(2^q*16/PageSize) contiguous pages for the queue region
// and resets prod/cons to zero. q is clamped to min(q, hwMaxQ, MaxQ).
func (c *Queue) Init(h platform.Handler, q, hwMaxQ uint32) error {
	c.handler = h
	c.q = clampQ(q, hwMaxQ)
	c.size = 1 << c.q

	bytes := int(c.size) * EntrySize
	pages := platform.PagesFor(bytes)
	if pages < 1 {
		pages = 1
	}
	base, err := h.AllocPages(pages)
	if err != nil {
		return fmt.Errorf("cmdqueue: allocating %d pages: %w", pages, err)
	}
	c.base = base

	va, err := h.PhysToVirt(base)
	if err != nil {
		return fmt.Errorf("cmdqueue: mapping queue base: %w", err)
	}
	c.mem = unsafe.Slice((*byte)(unsafe.Pointer(uintptr(va))), pages*platform.PageSize)
	c.prod, c.cons = 0, 0
	return nil
}

// BaseAddr returns the physical base of the queue region.
func (c *Queue) BaseAddr() platform.PhysAddr { return c.base }

// Q returns the clamped log2 entry count the queue was initialized with.
func (c *Queue) Q() uint32 { return c.q }

// period is 2*size: the modulus the {wrap, idx} pair is taken under.
func (c *Queue) period() uint32 { return 2 * c.size }

// ProdValue returns the 20-bit {wrap, idx} producer index for CMDQ_PROD.
func (c *Queue) ProdValue() uint32 { return c.prod }

// ConsValue returns the last-mirrored 20-bit {wrap, idx} consumer index.
func (c *Queue) ConsValue() uint32 { return c.cons }

// SetConsValue mirrors a CMDQ_CONS.RD read into software state, masking to
// Q+1 bits. A value that does not fit is logged and clamped rather than
// trusted verbatim.
func (c *Queue) SetConsValue(v uint32, logf func(format string, args ...any)) {
	mask := c.period() - 1
	if v&^mask != 0 && logf != nil {
		logf("cmdqueue: CMDQ_CONS.RD 0x%x exceeds %d-bit range, clamping", v, c.q+1)
	}
	c.cons = v & mask
}

// Empty reports whether prod and cons denote the same {wrap, idx} pair.
func (c *Queue) Empty() bool { return c.prod == c.cons }

// Full reports whether the queue holds size unconsumed entries: same idx,
// opposite wrap.
func (c *Queue) Full() bool {
	diff := (c.prod - c.cons + c.period()) % c.period()
	return diff == c.size
}

// Len returns the number of entries software believes are outstanding.
func (c *Queue) Len() uint32 {
	return (c.prod - c.cons + c.period()) % c.period()
}

// Insert writes cmd into the slot at the current producer index and
// advances prod with wrap. The caller must have already confirmed !Full().
// Insert does not publish the new prod value to hardware; the caller writes
// ProdValue() to CMDQ_PROD after Insert returns, which is the point at
// which the ordering barrier below actually matters to a real MMIO peer.
func (c *Queue) Insert(cmd smmucmd.Command) error {
	if c.Full() {
		return fmt.Errorf("cmdqueue: insert into full queue (size=%d)", c.size)
	}
	idx := c.prod & (c.size - 1)
	off := uintptr(idx) * EntrySize
	w0 := (*uint64)(unsafe.Pointer(&c.mem[off]))
	w1 := (*uint64)(unsafe.Pointer(&c.mem[off+8]))
	// Store word 0 first, word 1 second, both atomically: this is the
	// ordering barrier between slot-write completion and the MMIO publish
	// of the new prod value a caller publishes to CMDQ_PROD.
	atomic.StoreUint64(w0, cmd[0])
	atomic.StoreUint64(w1, cmd[1])

	c.prod = (c.prod + 1) % c.period()
	return nil
}
