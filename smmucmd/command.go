// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package smmucmd encodes the three Command Queue opcodes this driver core
// issues: CFGI_STE, CMD_SYNC, and PREFETCH_CONFIG.
package smmucmd

// Command is one 16-byte, little-endian Command Queue entry, represented as
// two 64-bit words. Word 0 carries the opcode in bits [7:0]; the remaining
// bits of both words are opcode-specific payload.
type Command [2]uint64

// Opcodes this core emits.
const (
	OpPrefetchConfig = 0x01
	OpCFGISTE        = 0x03
	OpCMDSync        = 0x46
)

const opcodeMask = 0xFF

// CFGISTE builds a CFGI_STE command invalidating the cached Stream Table
// Entry for sid. Leaf is asserted: this core never issues range
// invalidations, only single-STE ones.
func CFGISTE(sid uint32) Command {
	const leaf = 1 << 0
	return Command{
		OpCFGISTE | (uint64(sid) << 32),
		leaf,
	}
}

// CMDSync builds a CMD_SYNC ordering/completion barrier command. Its
// completion signal is CS=0: the caller observes completion only by seeing
// hardware advance CMDQ_CONS past this command's slot.
func CMDSync() Command {
	return Command{OpCMDSync, 0}
}

// PrefetchConfig builds a PREFETCH_CONFIG command hinting that the SMMU
// should pre-fetch the Stream Table Entry for sid.
func PrefetchConfig(sid uint32) Command {
	return Command{
		OpPrefetchConfig | (uint64(sid) << 32),
		0,
	}
}

// Opcode extracts the opcode byte from a command's first word.
func Opcode(c Command) uint64 {
	return c[0] & opcodeMask
}
