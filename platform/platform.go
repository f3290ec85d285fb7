// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package platform defines the collaborator contract the SMMUv3 core
// requires from its host environment: a physical page allocator, a
// physical-to-virtual translation helper, a cache-maintenance helper, and
// access to the SMMU's MMIO window.
//
// The core never implements these itself; every platform the driver runs on
// supplies its own Handler.
package platform

import "errors"

// PageSize is the platform page size the core allocates and aligns to.
const PageSize = 4096

// PhysAddr is a physical address as seen by DMA-capable hardware.
type PhysAddr uint64

// VirtAddr is a CPU-accessible virtual address.
type VirtAddr uintptr

// Errors returned by Handler implementations. Callers should compare with
// errors.Is, since a concrete Handler is free to wrap these with context.
var (
	// ErrAllocationFailed is returned by AllocPages when the platform has no
	// more contiguous physical pages to hand out.
	ErrAllocationFailed = errors.New("platform: page allocation failed")
	// ErrNotMapped is returned by PhysToVirt when the address has no known
	// virtual mapping.
	ErrNotMapped = errors.New("platform: address has no virtual mapping")
	// ErrRegisterMapFailed is returned by MapRegisters when the MMIO window
	// could not be mapped into the process.
	ErrRegisterMapFailed = errors.New("platform: register window mapping failed")
)

// Handler is the sole collaboration surface the SMMUv3 core requires from
// its host. A caller constructs one Handler per SMMU instance and passes it
// to smmu.New.
type Handler interface {
	// AllocPages returns the physical base address of n contiguous,
	// PageSize-aligned pages, or ErrAllocationFailed.
	AllocPages(n int) (PhysAddr, error)
	// DeallocPages releases a region previously returned by AllocPages.
	DeallocPages(pa PhysAddr, n int)
	// PhysToVirt maps a physical address to a CPU-accessible address.
	PhysToVirt(pa PhysAddr) (VirtAddr, error)
	// Flush cleans CPU caches over [start, start+length) to the point of
	// shared access with the SMMU.
	Flush(start PhysAddr, length int) error
	// MapRegisters returns a byte slice giving CPU access to the length
	// bytes of MMIO space starting at base.
	MapRegisters(base PhysAddr, length int) ([]byte, error)
	// SIDBitsSet returns the configured StreamID width in bits.
	SIDBitsSet() uint32
	// CmdqEventqBitsSet returns the configured Command Queue log2 size,
	// before clamping to the hardware-advertised and architectural maxima.
	CmdqEventqBitsSet() uint32
}

// AlignUp rounds pa up to the next multiple of align, which must be a power
// of two.
func AlignUp(pa PhysAddr, align uint64) PhysAddr {
	a := PhysAddr(align)
	return (pa + a - 1) &^ (a - 1)
}

// PagesFor returns the number of PageSize pages needed to hold size bytes.
func PagesFor(size int) int {
	return (size + PageSize - 1) / PageSize
}
