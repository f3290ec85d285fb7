// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package smmu

import (
	"fmt"

	"github.com/smmuv3/smmuv3/platform"
	"github.com/smmuv3/smmuv3/regmap"
	"github.com/smmuv3/smmuv3/smmucmd"
	"github.com/smmuv3/smmuv3/streamtable"
)

// AddCommand submits cmd to the Command Queue, following the four-step
// protocol: drain if full, publish, drain to completion,
// and optionally chain a CMD_SYNC. A non-zero CMDQ_CONS.ERR is logged and
// tolerated; event queue activity observed while draining aborts the
// operation with ErrEventQueueActivity.
func (d *Driver) AddCommand(cmd smmucmd.Command, sync bool) error {
	for d.cmdq.Full() {
		if err := d.drainStep(); err != nil {
			return err
		}
	}

	if err := d.cmdq.Insert(cmd); err != nil {
		return fmt.Errorf("smmu: %w", err)
	}
	d.regs.Write32(regmap.CMDQ_PROD, d.cmdq.ProdValue())

	for !d.cmdq.Empty() {
		if err := d.drainStep(); err != nil {
			return err
		}
	}

	if sync {
		return d.AddCommand(smmucmd.CMDSync(), false)
	}
	return nil
}

// drainStep performs one observation of CMDQ_CONS (and the
// Event Queue) and mirrors the result into software state. It never blocks;
// callers loop on it.
func (d *Driver) drainStep() error {
	if active, err := d.eventQueueActive(); err != nil {
		return err
	} else if active {
		return ErrEventQueueActivity
	}

	cons := d.regs.Read32(regmap.CMDQ_CONS)
	errCode := regmap.Field32(cons, uint32(regmap.CmdqConsErrMask), regmap.CmdqConsErrShift)
	if errCode != 0 {
		d.lastCommandError = fmt.Errorf("%w: code=%#x", ErrCommandError, errCode)
		d.logf("smmu: command queue ERR=0x%x", errCode)
	}
	d.cmdq.SetConsValue(cons&uint32(regmap.CmdqConsRDMask), d.logf)
	return nil
}

// eventQueueActive reports whether EVENTQ_PROD and EVENTQ_CONS disagree,
// the signal this driver treats as an observed translation fault.
func (d *Driver) eventQueueActive() (bool, error) {
	prod := d.regs.Read32(regmap.EVENTQ_PROD)
	cons := d.regs.Read32(regmap.EVENTQ_CONS)
	return prod != cons, nil
}

// AddDevice programs sid to translate through stage 2 under vmid, rooted at
// s2ptBase, flushes the STE, then invalidates it with CFGI_STE followed by a
// CMD_SYNC. The optional PREFETCH_CONFIG hint is optional per the architecture
// and is exposed separately as PrefetchDevice, so a caller who wants it
// chooses to pay for the extra round trip explicitly.
func (d *Driver) AddDevice(sid uint32, vmid uint16, s2ptBase uint64) error {
	if int(sid) >= d.stbl.EntryCount() {
		return fmt.Errorf("smmu: sid %#x out of range [0, %#x)", sid, d.stbl.EntryCount())
	}

	if err := d.stbl.SetS2Translated(int(sid), vmid, s2ptBase); err != nil {
		return fmt.Errorf("smmu: %w", err)
	}

	off := streamtable.EntryOffset(int(sid))
	if err := d.handler.Flush(d.stbl.BaseAddr()+platform.PhysAddr(off), streamtable.EntrySize); err != nil {
		return fmt.Errorf("smmu: flushing STE for sid %#x: %w", sid, err)
	}

	return d.AddCommand(smmucmd.CFGISTE(sid), true)
}

// PrefetchDevice submits the optional PREFETCH_CONFIG hint for sid
// (an architecturally optional hint).
func (d *Driver) PrefetchDevice(sid uint32) error {
	return d.AddCommand(smmucmd.PrefetchConfig(sid), true)
}
