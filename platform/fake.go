// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package platform

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/smmuv3/smmuv3/regmap"
)

// FakeConfig parameterizes the deterministic hardware model a Fake presents,
// letting tests drive end-to-end scenarios without real timing.
type FakeConfig struct {
	SIDBits  uint32
	CmdqBits uint32

	// NeverAckMask selects CR0 bits that CR0ACK must never reflect, for
	// exercising the AckTimeout path (scenario S5).
	NeverAckMask uint32

	// MemSize is the size of the simulated physical memory slab. It must be
	// large enough to hold the Stream Table and Command Queue the test
	// configures.
	MemSize int
}

// FlushRecord captures one call to Flush, for tests asserting that STE
// writes are flushed before invalidation is requested.
type FlushRecord struct {
	Start  PhysAddr
	Length int
}

// Fake is a deterministic, in-process software model of the SMMUv3 register
// file and its backing memory: "a hardware simulator or fake register bank
// + fake memory". It implements both platform.Handler and
// regmap.Backing for the register window it owns.
type Fake struct {
	mu sync.Mutex

	cfg FakeConfig

	mem      []byte
	memBase  PhysAddr
	nextFree int

	regs [regmap.WindowSize]byte

	cr0        uint32
	cmdqProd   uint32
	cmdqCons   uint32
	cmdqErrQueued uint32 // one-shot ERR value reported on next CMDQ_CONS read
	drainPaused   bool

	eventqProd uint32
	eventqCons uint32

	flushed []FlushRecord
}

// fakeMemBase is an arbitrary non-zero physical base so PhysAddr(0) stays an
// obviously-invalid sentinel, matching the uninitialized sentinels the
// original Rust source uses (0xdead_beef).
const fakeMemBase PhysAddr = 0x8000_0000

// NewFake constructs a Fake ready for use. cfg.MemSize defaults to 16 MiB
// when zero, which comfortably fits every StreamID width this core supports
// in combination with any Command Queue size.
func NewFake(cfg FakeConfig) *Fake {
	if cfg.MemSize == 0 {
		cfg.MemSize = 16 << 20
	}
	f := &Fake{
		cfg:     cfg,
		mem:     make([]byte, cfg.MemSize),
		memBase: fakeMemBase,
	}
	return f
}

// --- platform.Handler ---

func (f *Fake) AllocPages(n int) (PhysAddr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	need := n * PageSize
	if f.nextFree+need > len(f.mem) {
		return 0, fmt.Errorf("%w: requested %d pages, only %d bytes left", ErrAllocationFailed, n, len(f.mem)-f.nextFree)
	}
	base := f.memBase + PhysAddr(f.nextFree)
	f.nextFree += need
	return base, nil
}

func (f *Fake) DeallocPages(pa PhysAddr, n int) {
	// The fake is a bump allocator for the lifetime of a test; it never
	// reclaims pages, matching the "never freed during the driver's
	// lifetime" lifecycle for these regions.
}

func (f *Fake) PhysToVirt(pa PhysAddr) (VirtAddr, error) {
	if pa < f.memBase || pa >= f.memBase+PhysAddr(len(f.mem)) {
		return 0, ErrNotMapped
	}
	off := uintptr(pa - f.memBase)
	return VirtAddr(uintptr(unsafe.Pointer(&f.mem[off]))), nil
}

func (f *Fake) Flush(start PhysAddr, length int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = append(f.flushed, FlushRecord{Start: start, Length: length})
	return nil
}

func (f *Fake) MapRegisters(base PhysAddr, length int) ([]byte, error) {
	if length > len(f.regs) {
		return nil, fmt.Errorf("%w: requested %d bytes, window is %d", ErrRegisterMapFailed, length, len(f.regs))
	}
	return f.regs[:length], nil
}

func (f *Fake) SIDBitsSet() uint32        { return f.cfg.SIDBits }
func (f *Fake) CmdqEventqBitsSet() uint32 { return f.cfg.CmdqBits }

// --- test control surface ---

// FlushRecords returns every Flush call observed so far.
func (f *Fake) FlushRecords() []FlushRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FlushRecord, len(f.flushed))
	copy(out, f.flushed)
	return out
}

// PauseDrain stops CMDQ_CONS from advancing on read, letting a test fill the
// Command Queue to capacity (scenario S3).
func (f *Fake) PauseDrain(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drainPaused = paused
}

// SetNeverAckMask changes which CR0 bits CR0ACK will never reflect, for
// scenarios that need to toggle the ack-timeout condition after
// construction (scenario S5).
func (f *Fake) SetNeverAckMask(mask uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.NeverAckMask = mask
}

// SetIdentification seeds IDR0, IDR1 and AIDR, the registers a driver reads
// once during probe to learn hardware capability and sizing. A real
// platform wires these from whatever ROM/strapping exposes the SMMU
// revision; the fake requires a test to set them explicitly since it has no
// silicon to read.
func (f *Fake) SetIdentification(idr0, idr1, aidr uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	storeRaw32(f.regs[:], regmap.IDR0, idr0)
	storeRaw32(f.regs[:], regmap.IDR1, idr1)
	storeRaw32(f.regs[:], regmap.AIDR, aidr)
}

// InjectCommandError arranges for the next CMDQ_CONS read to report err in
// the ERR field (scenario S4); it is cleared after being observed once.
func (f *Fake) InjectCommandError(err uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmdqErrQueued = err & 0x7F
}

// SetEventQueueActivity makes EVENTQ_PROD/EVENTQ_CONS disagree (or agree, if
// active is false), simulating an observed translation fault.
func (f *Fake) SetEventQueueActivity(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if active {
		f.eventqProd = 1
		f.eventqCons = 0
	} else {
		f.eventqProd = 0
		f.eventqCons = 0
	}
}

// ReadEntryBytes returns a copy of length bytes of simulated physical memory
// starting at pa, for assertions in tests (e.g. re-decoding an STE that was
// supposedly flushed).
func (f *Fake) ReadEntryBytes(pa PhysAddr, length int) []byte {
	off := uintptr(pa - f.memBase)
	out := make([]byte, length)
	copy(out, f.mem[off:uintptr(off)+uintptr(length)])
	return out
}

// --- regmap.Backing: the simulated hardware peer ---

func (f *Fake) Load32(offset uintptr) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch offset {
	case regmap.CR0:
		return f.cr0
	case regmap.CR0ACK:
		return f.cr0 &^ f.cfg.NeverAckMask
	case regmap.CMDQ_CONS:
		f.advanceDrainLocked()
		v := f.cmdqCons
		if f.cmdqErrQueued != 0 {
			v |= f.cmdqErrQueued << 24
			f.cmdqErrQueued = 0
		}
		return v
	case regmap.EVENTQ_PROD:
		return f.eventqProd
	case regmap.EVENTQ_CONS:
		return f.eventqCons
	default:
		return loadRaw32(f.regs[:], offset)
	}
}

func (f *Fake) Store32(offset uintptr, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch offset {
	case regmap.CR0:
		f.cr0 = v
	case regmap.CMDQ_PROD:
		f.cmdqProd = v & uint32(regmap.CmdqProdWRMask)
	case regmap.CMDQ_CONS:
		// Software writes CMDQ_CONS only to seed it to zero during bring-up
		// during bring-up; honor it directly.
		f.cmdqCons = v & uint32(regmap.CmdqConsRDMask)
		f.cmdqErrQueued = 0
	default:
		storeRaw32(f.regs[:], offset, v)
	}
}

func (f *Fake) Load64(offset uintptr) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return loadRaw64(f.regs[:], offset)
}

func (f *Fake) Store64(offset uintptr, v uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	storeRaw64(f.regs[:], offset, v)
}

// advanceDrainLocked models the hardware draining the Command Queue: unless
// paused for a test scenario, it instantly catches cons up to the last
// published prod. f.mu must already be held.
func (f *Fake) advanceDrainLocked() {
	if f.drainPaused {
		return
	}
	f.cmdqCons = f.cmdqProd
}

func loadRaw32(mem []byte, offset uintptr) uint32 {
	return uint32(mem[offset]) | uint32(mem[offset+1])<<8 | uint32(mem[offset+2])<<16 | uint32(mem[offset+3])<<24
}

func storeRaw32(mem []byte, offset uintptr, v uint32) {
	mem[offset] = byte(v)
	mem[offset+1] = byte(v >> 8)
	mem[offset+2] = byte(v >> 16)
	mem[offset+3] = byte(v >> 24)
}

func loadRaw64(mem []byte, offset uintptr) uint64 {
	lo := loadRaw32(mem, offset)
	hi := loadRaw32(mem, offset+4)
	return uint64(lo) | uint64(hi)<<32
}

func storeRaw64(mem []byte, offset uintptr, v uint64) {
	storeRaw32(mem, offset, uint32(v))
	storeRaw32(mem, offset+4, uint32(v>>32))
}
