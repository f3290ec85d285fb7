// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package vtcr builds the stage-2 virtualization translation control word
// copied verbatim into Stream Table Entry word 2 bits [178:160] (the low 19
// bits of an AArch64 VTCR_EL2-format register). It is split out from
// streamtable because it is a pure architectural bitfield encoding, not a
// Stream Table memory-layout concern — the same separation of duties the
// original Rust source draws by depending on a standalone VTCR_EL2 bitfield
// crate rather than inlining the literal into the Stream Table module.
package vtcr

// Field bit offsets within the low 19 bits of a VTCR_EL2-format register.
const (
	t0szShift  = 0
	sl0Shift   = 6
	irgn0Shift = 8
	orgn0Shift = 10
	sh0Shift   = 12
	tg0Shift   = 14
	psShift    = 16

	// WordBits is the width of the field this core copies into the STE.
	WordBits = 19
	// WordMask selects exactly those 19 bits.
	WordMask uint64 = (1 << WordBits) - 1
)

// Named field encodings (AArch64 VTCR_EL2 / VTCR_EL1 format).
const (
	psPA40Bit1TB = 0b010 // PS: 40-bit output address, 1TB

	tg04KB = 0b00 // TG0: 4KB granule

	sh0Inner = 0b11 // SH0: Inner Shareable

	orgn0WBRAWA = 0b01 // ORGN0: Normal, Write-Back Read/Write-Allocate Cacheable
	irgn0WBRAWA = 0b01 // IRGN0: Normal, Write-Back Read/Write-Allocate Cacheable

	sl0Level1Start = 0b01 // SL0: starting-level 1 (paired with 48-bit input below)

	t0sz48BitIPA = 16 // T0SZ: 48-bit input IPA region
)

// DefaultStage2 returns the fixed stage-2 VTCR encoding this driver
// prescribe: 40-bit output PA range, 4KiB granule, inner shareable, normal
// write-back read-allocate write-allocate for both inner and outer,
// starting-level SL0=1, T0SZ=16 (48-bit input IPA). It is built field by
// field from named constants rather than stored as a literal so a change to
// any single field's architectural position does not require re-deriving a
// magic number.
func DefaultStage2() uint64 {
	var w uint64
	w |= uint64(t0sz48BitIPA) << t0szShift
	w |= uint64(sl0Level1Start) << sl0Shift
	w |= uint64(irgn0WBRAWA) << irgn0Shift
	w |= uint64(orgn0WBRAWA) << orgn0Shift
	w |= uint64(sh0Inner) << sh0Shift
	w |= uint64(tg04KB) << tg0Shift
	w |= uint64(psPA40Bit1TB) << psShift
	return w & WordMask
}
