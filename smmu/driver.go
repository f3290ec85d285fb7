// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package smmu implements the SMMUv3 bring-up state machine and the runtime
// operations (AddDevice, AddCommand) that depend on it. It owns a
// regmap.Map, a cmdqueue.Queue and a streamtable.LinearTable, and drives
// them through the register choreography bring-up requires.
package smmu

import (
	"fmt"

	"github.com/smmuv3/smmuv3/cmdqueue"
	"github.com/smmuv3/smmuv3/platform"
	"github.com/smmuv3/smmuv3/regmap"
	"github.com/smmuv3/smmuv3/smmuconfig"
	"github.com/smmuv3/smmuv3/streamtable"
)

// BringupState is one of the five states (plus the reachable Ready) the
// driver moves through during Init.
type BringupState int

const (
	Fresh BringupState = iota
	Probed
	QueuesProgrammed
	StreamTableProgrammed
	Enabled
	Ready
)

func (s BringupState) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Probed:
		return "Probed"
	case QueuesProgrammed:
		return "QueuesProgrammed"
	case StreamTableProgrammed:
		return "StreamTableProgrammed"
	case Enabled:
		return "Enabled"
	case Ready:
		return "Ready"
	default:
		return fmt.Sprintf("BringupState(%d)", int(s))
	}
}

// ackTimeoutIterations bounds the CR0ACK poll loops, matching the
// "bounded timeout (~16M iterations)".
const ackTimeoutIterations = 16 << 20

// Driver is the SMMUv3 core: it owns the register map, Command Queue and
// Stream Table for one SMMU instance. Driver is not internally
// synchronized; a caller sharing one across goroutines must serialize
// externally.
type Driver struct {
	handler platform.Handler
	cfg     smmuconfig.Config
	logger  Logger

	regs  *regmap.Map
	cmdq  cmdqueue.Queue
	stbl  streamtable.LinearTable

	state     BringupState
	hwCmdqMax uint32

	lastCommandError error
}

// New constructs a Driver bound to h's MMIO window at cfg.RegisterBase. A
// handler that itself implements regmap.Backing (such as platform.Fake) is
// used directly as the register backing; otherwise the window returned by
// h.MapRegisters is accessed atomically. New performs no register access;
// call Init to bring the SMMU up.
func New(h platform.Handler, cfg smmuconfig.Config, logger Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b, ok := h.(regmap.Backing); ok {
		return &Driver{handler: h, cfg: cfg, logger: logger, regs: regmap.New(b), state: Fresh}, nil
	}
	mem, err := h.MapRegisters(platform.PhysAddr(cfg.RegisterBase), regmap.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("smmu: mapping register window: %w", err)
	}
	regs, err := regmap.NewFromBytes(mem)
	if err != nil {
		return nil, fmt.Errorf("smmu: %w", err)
	}
	return &Driver{handler: h, cfg: cfg, logger: logger, regs: regs, state: Fresh}, nil
}

// State returns the bring-up state the driver last reached.
func (d *Driver) State() BringupState { return d.state }

// StreamTable returns the driver's Stream Table, for callers such as the
// terminal inspector that need to render live per-StreamID occupancy. The
// returned table must not be reinitialized by the caller.
func (d *Driver) StreamTable() *streamtable.LinearTable { return &d.stbl }

// QueueStatus reports the Command Queue's current producer/consumer indices
// and entry count, for diagnostic display.
func (d *Driver) QueueStatus() (prod, cons, size uint32) {
	return d.cmdq.ProdValue(), d.cmdq.ConsValue(), 1 << d.cmdq.Q()
}

// LastCommandError returns the most recent non-zero CMDQ_CONS.ERR code
// observed while draining, wrapped around ErrCommandError, or nil if none
// has been observed since the driver was constructed. Check with
// errors.Is(d.LastCommandError(), ErrCommandError).
func (d *Driver) LastCommandError() error { return d.lastCommandError }

// Version decodes AIDR into the human-readable form the bring-up scenarios
// checks ("SMMUv3.2" for ArchMinorRev=2).
func (d *Driver) Version() string {
	aidr := d.regs.Read32(regmap.AIDR)
	minor := regmap.Field32(aidr, uint32(regmap.AidrArchMinorRevMask), regmap.AidrArchMinorRevShift)
	return fmt.Sprintf("SMMUv3.%d", minor)
}

// Init runs the full bring-up state machine. A CapabilityMismatch or
// AllocationFailure aborts immediately with a wrapped error; an AckTimeout
// at the final enable step (scenario S5) is logged and returned as a
// non-fatal error value, leaving the driver at StreamTableProgrammed.
func (d *Driver) Init() error {
	if err := d.probe(); err != nil {
		return err
	}
	if err := d.programQueues(); err != nil {
		return err
	}
	if err := d.programStreamTable(); err != nil {
		return err
	}
	if err := d.enable(); err != nil {
		return err
	}
	d.state = Ready
	return nil
}

func (d *Driver) probe() error {
	idr1 := d.regs.Read32(regmap.IDR1)
	sidSize := regmap.Field32(idr1, uint32(regmap.Idr1SIDSizeMask), regmap.Idr1SIDSizeShift)
	d.hwCmdqMax = regmap.Field32(idr1, uint32(regmap.Idr1CmdqsMask), regmap.Idr1CmdqsShift)

	idr0 := d.regs.Read32(regmap.IDR0)
	stLevel := regmap.Field32(idr0, uint32(regmap.Idr0STLevelMask), regmap.Idr0STLevelShift)

	if sidSize >= 7 && stLevel == uint32(regmap.Idr0STLevelLinearOnly) {
		return fmt.Errorf("%w: IDR1.SIDSIZE=%d requires a two-level table, IDR0.ST_LEVEL advertises linear-only", ErrCapabilityMismatch, sidSize)
	}

	d.state = Probed
	return nil
}

func (d *Driver) programQueues() error {
	if err := d.cmdq.Init(d.handler, d.cfg.CmdqBits, d.hwCmdqMax); err != nil {
		return fmt.Errorf("%w: %w", ErrAllocationFailure, err)
	}

	d.requireCMDQDisabled()
	base := uint64(regmap.CmdqBaseRAReadAllocate) |
		(uint64(d.cmdq.BaseAddr())>>5)<<regmap.CmdqBaseAddrShift&uint64(regmap.CmdqBaseAddrMask) |
		uint64(d.cmdq.Q())<<regmap.CmdqBaseLog2SizeShift&uint64(regmap.CmdqBaseLog2SizeMask)
	d.regs.Write64(regmap.CMDQ_BASE, base)

	// Must occur after CMDQ_BASE and before CMDQEN.
	d.regs.Write32(regmap.CMDQ_PROD, 0)
	d.regs.Write32(regmap.CMDQ_CONS, 0)

	d.regs.RMW32(regmap.CR0, uint32(regmap.Cr0CMDQEnable), 0, uint32(regmap.Cr0CMDQEnable))
	if !d.pollAck(uint32(regmap.Cr0CMDQEnable)) {
		return fmt.Errorf("%w: CMDQEN", ErrAckTimeout)
	}

	d.state = QueuesProgrammed
	return nil
}

func (d *Driver) programStreamTable() error {
	if err := d.stbl.Init(d.handler, d.cfg.SIDBits); err != nil {
		return fmt.Errorf("%w: %w", ErrAllocationFailure, err)
	}

	if err := d.handler.Flush(d.stbl.BaseAddr(), d.stbl.EntryCount()*streamtable.EntrySize); err != nil {
		return fmt.Errorf("smmu: flushing stream table: %w", err)
	}

	d.requireSMMUDisabled()
	cfg := uint32(regmap.StrtabBaseCfgFmtLinear) |
		uint32(d.cfg.SIDBits)<<regmap.StrtabBaseCfgLog2SizeShift&uint32(regmap.StrtabBaseCfgLog2SizeMask)
	d.regs.Write32(regmap.STRTAB_BASE_CFG, cfg)

	base := uint64(regmap.StrtabBaseRAEnable) |
		(uint64(d.stbl.BaseAddr())>>6)<<regmap.StrtabBaseAddrShift&uint64(regmap.StrtabBaseAddrMask)
	d.regs.Write64(regmap.STRTAB_BASE, base)

	d.state = StreamTableProgrammed
	return nil
}

func (d *Driver) enable() error {
	cr1 := uint32(regmap.Cr1WriteBackCacheable)<<regmap.Cr1QueueICShift |
		uint32(regmap.Cr1WriteBackCacheable)<<regmap.Cr1QueueOCShift |
		uint32(regmap.Cr1InnerShareable)<<regmap.Cr1QueueSHShift |
		uint32(regmap.Cr1WriteBackCacheable)<<regmap.Cr1TableICShift |
		uint32(regmap.Cr1WriteBackCacheable)<<regmap.Cr1TableOCShift |
		uint32(regmap.Cr1InnerShareable)<<regmap.Cr1TableSHShift
	d.regs.Write32(regmap.CR1, cr1)
	d.regs.Write32(regmap.CR2, d.cfg.CR2Default)

	want := uint32(regmap.Cr0SMMUEnable) | uint32(regmap.Cr0CMDQEnable)
	d.regs.RMW32(regmap.CR0, want, 0, want)
	if !d.pollAck(want) {
		d.logf("smmu: CR0ACK did not reflect CR0=0x%x within %d iterations", want, ackTimeoutIterations)
		return fmt.Errorf("%w: SMMUEN|CMDQEN", ErrAckTimeout)
	}

	d.state = Enabled
	return nil
}

// pollAck busy-waits for CR0ACK to reflect every bit in want, bounded by
// ackTimeoutIterations.
func (d *Driver) pollAck(want uint32) bool {
	for i := 0; i < ackTimeoutIterations; i++ {
		ack := d.regs.Read32(regmap.CR0ACK)
		if ack&want == want {
			return true
		}
	}
	return false
}

// requireSMMUDisabled enforces the architectural rule that STRTAB_BASE* may
// only be written while SMMUEN==0, by reading the live register rather than
// trusting cached driver state, so a test that mutates CR0 out from under
// the driver still trips this check.
func (d *Driver) requireSMMUDisabled() {
	cr0 := d.regs.Read32(regmap.CR0)
	if cr0&uint32(regmap.Cr0SMMUEnable) != 0 {
		panic("smmu: attempted to program STRTAB_BASE* while CR0.SMMUEN is set")
	}
}

// requireCMDQDisabled is requireSMMUDisabled's CMDQ_BASE analogue.
func (d *Driver) requireCMDQDisabled() {
	cr0 := d.regs.Read32(regmap.CR0)
	if cr0&uint32(regmap.Cr0CMDQEnable) != 0 {
		panic("smmu: attempted to program CMDQ_BASE while CR0.CMDQEN is set")
	}
}
