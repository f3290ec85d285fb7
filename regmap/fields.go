// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package regmap

// Idr0 is the IDR0 feature-ID register.
type Idr0 uint32

const (
	// STLevel, bits [28:27]. 0b00 = only linear Stream Tables supported.
	Idr0STLevelShift = 27
	Idr0STLevelMask  Idr0 = 0x3 << Idr0STLevelShift

	Idr0STLevelLinearOnly Idr0 = 0b00 << Idr0STLevelShift

	// S2P, bit [0]. Stage-2 translation supported.
	Idr0S2P Idr0 = 1 << 0
	// S1P, bit [1]. Stage-1 translation supported.
	Idr0S1P Idr0 = 1 << 1
)

// Idr1 is the IDR1 sizing register.
type Idr1 uint32

const (
	// SIDSIZE, bits [5:0]: StreamID width in bits.
	Idr1SIDSizeShift = 0
	Idr1SIDSizeMask  Idr1 = 0x3F << Idr1SIDSizeShift

	// CMDQS, bits [25:21]: Command Queue log2 entry count.
	Idr1CmdqsShift = 21
	Idr1CmdqsMask  Idr1 = 0x1F << Idr1CmdqsShift
)

// Aidr is the architecture minor revision register.
type Aidr uint32

const (
	AidrArchMinorRevShift = 0
	AidrArchMinorRevMask  Aidr = 0xF << AidrArchMinorRevShift
	AidrArchMajorRevShift = 4
	AidrArchMajorRevMask  Aidr = 0xF << AidrArchMajorRevShift
)

// Cr0 controls SMMU subsystem enablement.
type Cr0 uint32

const (
	Cr0SMMUEnable  Cr0 = 1 << 0
	Cr0PRIQEnable  Cr0 = 1 << 1
	Cr0EVENTQEnable Cr0 = 1 << 2
	Cr0CMDQEnable  Cr0 = 1 << 3
)

// Cr0Ack mirrors Cr0's bit layout; the hardware reflects the acknowledged
// value of each CR0 field here.
type Cr0Ack = Cr0

// Cr1 configures cacheability and shareability for Stream Table and Command
// Queue memory accesses.
type Cr1 uint32

const (
	Cr1QueueICShift = 0
	Cr1QueueICMask  Cr1 = 0x3 << Cr1QueueICShift
	Cr1QueueOCShift = 2
	Cr1QueueOCMask  Cr1 = 0x3 << Cr1QueueOCShift
	Cr1QueueSHShift = 4
	Cr1QueueSHMask  Cr1 = 0x3 << Cr1QueueSHShift
	Cr1TableICShift = 6
	Cr1TableICMask  Cr1 = 0x3 << Cr1TableICShift
	Cr1TableOCShift = 8
	Cr1TableOCMask  Cr1 = 0x3 << Cr1TableOCShift
	Cr1TableSHShift = 10
	Cr1TableSHMask  Cr1 = 0x3 << Cr1TableSHShift

	// Cacheability/shareability encodings shared by all Cr1 sub-fields.
	Cr1WriteBackCacheable = 0x1
	Cr1InnerShareable     = 0x3
)

// StrtabBaseCfg selects the Stream Table format and size.
type StrtabBaseCfg uint32

const (
	StrtabBaseCfgLog2SizeShift = 0
	StrtabBaseCfgLog2SizeMask  StrtabBaseCfg = 0x3F << StrtabBaseCfgLog2SizeShift
	StrtabBaseCfgFmtShift      = 16
	StrtabBaseCfgFmtMask       StrtabBaseCfg = 0x3 << StrtabBaseCfgFmtShift
	StrtabBaseCfgFmtLinear     StrtabBaseCfg = 0b00 << StrtabBaseCfgFmtShift
)

// StrtabBase holds the Stream Table physical base and its walk attribute.
type StrtabBase uint64

const (
	StrtabBaseAddrShift = 6
	StrtabBaseAddrMask  StrtabBase = 0x3FFFFFFFFFFF << StrtabBaseAddrShift
	StrtabBaseRAShift   = 62
	StrtabBaseRAMask    StrtabBase = 1 << StrtabBaseRAShift
	StrtabBaseRAEnable  StrtabBase = 1 << StrtabBaseRAShift
)

// CmdqBase holds the Command Queue physical base, its read-allocate
// attribute, and the queue's log2 size.
type CmdqBase uint64

const (
	CmdqBaseLog2SizeShift     = 0
	CmdqBaseLog2SizeMask  CmdqBase = 0x1F << CmdqBaseLog2SizeShift
	CmdqBaseAddrShift         = 5
	CmdqBaseAddrMask      CmdqBase = 0x7FFFFFFFFFFFF << CmdqBaseAddrShift
	CmdqBaseRAShift           = 62
	CmdqBaseRAMask        CmdqBase = 1 << CmdqBaseRAShift
	CmdqBaseRAReadAllocate CmdqBase = 1 << CmdqBaseRAShift
)

// CmdqProd / CmdqCons carry the {wrap, idx} producer and consumer indices.
// RD/WR occupy the low 20 bits: a Q-bit index (Q <= 19) plus the wrap bit
// immediately above it.
type CmdqProd uint32

const (
	CmdqProdWRShift = 0
	CmdqProdWRMask  CmdqProd = 0xFFFFF << CmdqProdWRShift
)

type CmdqCons uint32

const (
	CmdqConsRDShift  = 0
	CmdqConsRDMask   CmdqCons = 0xFFFFF << CmdqConsRDShift
	CmdqConsErrShift = 24
	CmdqConsErrMask  CmdqCons = 0x7F << CmdqConsErrShift
)
