// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package regmap provides a typed, volatile view over the SMMUv3 128 KiB
// MMIO register window. Every access is a single, non-tearing load or store
// of the register's documented width; reserved fields are preserved on
// partial writes by reading-modifying-writing only the encoded bit range.
package regmap

import "fmt"

// Byte offsets of the registers this core reads or writes, relative to the
// driver-supplied MMIO base.
const (
	IDR0            = 0x0000
	IDR1            = 0x0004
	AIDR            = 0x001C
	CR0             = 0x0020
	CR0ACK          = 0x0024
	CR1             = 0x0028
	CR2             = 0x002C
	STRTAB_BASE     = 0x0080
	STRTAB_BASE_CFG = 0x0088
	CMDQ_BASE       = 0x0090
	CMDQ_PROD       = 0x0098
	CMDQ_CONS       = 0x009C
	EVENTQ_BASE     = 0x00A0
	EVENTQ_PROD     = 0x100A8
	EVENTQ_CONS     = 0x100AC

	// WindowSize is the full size of the MMIO region this core addresses.
	WindowSize = 128 * 1024
)

// Backing is the storage a Map reads and writes through. The production
// implementation (SliceBacking) performs atomic, non-tearing loads and
// stores over a byte slice obtained from platform.Handler.MapRegisters.
// Test doubles implement Backing directly to model a live hardware peer
// reacting to writes (see platform.Fake).
type Backing interface {
	Load32(offset uintptr) uint32
	Store32(offset uintptr, v uint32)
	Load64(offset uintptr) uint64
	Store64(offset uintptr, v uint64)
}

// Map is a typed view over one SMMUv3 register page pair.
type Map struct {
	b Backing
}

// New wraps an existing Backing, typically platform.Fake in tests.
func New(b Backing) *Map {
	return &Map{b: b}
}

// NewFromBytes wraps a raw MMIO byte slice, such as the one returned by
// platform.Handler.MapRegisters, with atomic access semantics.
func NewFromBytes(mem []byte) (*Map, error) {
	if len(mem) < WindowSize {
		return nil, fmt.Errorf("regmap: mmio window too small: got %d bytes, want at least %d", len(mem), WindowSize)
	}
	return &Map{b: &SliceBacking{mem: mem}}, nil
}

// Read32 performs a single 32-bit load at offset.
func (m *Map) Read32(offset uintptr) uint32 { return m.b.Load32(offset) }

// Write32 performs a single 32-bit store at offset.
func (m *Map) Write32(offset uintptr, v uint32) { m.b.Store32(offset, v) }

// Read64 performs a single 64-bit load at offset.
func (m *Map) Read64(offset uintptr) uint64 { return m.b.Load64(offset) }

// Write64 performs a single 64-bit store at offset.
func (m *Map) Write64(offset uintptr, v uint64) { m.b.Store64(offset, v) }

// RMW32 reads offset, replaces the bits selected by mask with value<<shift,
// and writes the result back, preserving every other bit including reserved
// ones. value must already fit within mask>>shift.
func (m *Map) RMW32(offset uintptr, mask uint32, shift uint, value uint32) {
	cur := m.Read32(offset)
	cur &^= mask
	cur |= (value << shift) & mask
	m.Write32(offset, cur)
}

// RMW64 is the 64-bit analogue of RMW32.
func (m *Map) RMW64(offset uintptr, mask uint64, shift uint, value uint64) {
	cur := m.Read64(offset)
	cur &^= mask
	cur |= (value << shift) & mask
	m.Write64(offset, cur)
}

// Field32 extracts a sub-field from a 32-bit register value.
func Field32(v uint32, mask uint32, shift uint) uint32 {
	return (v & mask) >> shift
}

// Field64 extracts a sub-field from a 64-bit register value.
func Field64(v uint64, mask uint64, shift uint) uint64 {
	return (v & mask) >> shift
}
