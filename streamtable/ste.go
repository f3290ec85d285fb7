// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package streamtable implements the linear Stream Table: a contiguous
// array of 64-byte Stream Table Entries indexed by StreamID, and the
// bypass/stage-2 STE encoders.
package streamtable

import "github.com/smmuv3/smmuv3/vtcr"

// DwordCount is the number of 64-bit words in one Stream Table Entry.
const DwordCount = 8

// EntrySize is the size in bytes of one Stream Table Entry.
const EntrySize = DwordCount * 8

// Entry is one 512-bit Stream Table Entry, stored as 8 little-endian
// 64-bit words.
type Entry [DwordCount]uint64

// Bit positions and widths of the fields this core writes. See
// the ARM SMMUv3 architecture reference for the authoritative bit ranges.
const (
	steV uint64 = 1 << 0 // word0[0]: Valid

	steConfigShift            = 1
	steConfigS1BypassS2Bypass = 0b100 << steConfigShift // word0[3:1]
	steConfigS1BypassS2Trans  = 0b110 << steConfigShift // word0[3:1]

	steSHCFGShift   = 44 // word1[45:44], absolute bits [109:108]
	steSHCFGIncoming uint64 = 0b01 << steSHCFGShift

	steS2VMIDShift = 0 // word2[15:0], absolute bits [143:128]

	steS2VTCRShift = 32 // word2[50:32], absolute bits [178:160]

	steS2AA64 uint64 = 1 << 51 // word2[51], absolute bit [179]
	steS2PTW  uint64 = 1 << 54 // word2[54], absolute bit [182]
	steS2S    uint64 = 1 << 57 // word2[57], absolute bit [185]
	steS2R    uint64 = 1 << 58 // word2[58], absolute bit [186]

	steS2TTBShift = 4  // word3 bit offset, absolute bit [196]
	steS2TTBBits  = 48 // width: physical address bits [51:4]
	steS2TTBMask  = (uint64(1) << steS2TTBBits) - 1
)

// BypassEntry returns the STE template that forwards device traffic through
// the SMMU untranslated (stage 1 and stage 2 both bypass).
func BypassEntry() Entry {
	var e Entry
	e[0] = steV | steConfigS1BypassS2Bypass
	e[1] = steSHCFGIncoming
	return e
}

// S2TranslatedEntry returns the STE template for a device whose traffic is
// translated through stage 2 under vmid, rooted at s2ptBase. s2ptBase is
// masked to bits [51:4] before being placed in the entry.
func S2TranslatedEntry(vmid uint16, s2ptBase uint64) Entry {
	var e Entry
	e[0] = steV | steConfigS1BypassS2Trans
	e[1] = steSHCFGIncoming
	e[2] = uint64(vmid)<<steS2VMIDShift |
		(vtcr.DefaultStage2() << steS2VTCRShift) |
		steS2AA64 | steS2PTW | steS2R
	e[3] = ((s2ptBase >> steS2TTBShift) & steS2TTBMask) << steS2TTBShift
	return e
}

// IsValid reports whether the V bit is set.
func IsValid(e Entry) bool { return e[0]&steV != 0 }

// IsBypass reports whether e's Config field encodes S1-bypass/S2-bypass.
func IsBypass(e Entry) bool {
	return e[0]&(0b111<<steConfigShift) == steConfigS1BypassS2Bypass
}

// IsS2Translated reports whether e's Config field encodes S1-bypass/S2-translate.
func IsS2Translated(e Entry) bool {
	return e[0]&(0b111<<steConfigShift) == steConfigS1BypassS2Trans
}

// VMID extracts the S2VMID field from an entry produced by S2TranslatedEntry.
func VMID(e Entry) uint16 {
	return uint16(e[2] >> steS2VMIDShift)
}

// S2PTBase extracts the stage-2 page-table base from an entry produced by
// S2TranslatedEntry, reconstructing the masked physical address.
func S2PTBase(e Entry) uint64 {
	return ((e[3] >> steS2TTBShift) & steS2TTBMask) << steS2TTBShift
}
