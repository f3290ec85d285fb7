// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package streamtable

import (
	"testing"

	"github.com/smmuv3/smmuv3/platform"
)

// TestAlignment is property 4: the Stream Table base satisfies
// base mod (entry_count*64) == 0.
func TestAlignment(t *testing.T) {
	for _, sidBits := range []uint32{0, 4, 6, 8, 12} {
		f := platform.NewFake(platform.FakeConfig{SIDBits: sidBits, CmdqBits: 4, MemSize: 64 << 20})
		var table LinearTable
		if err := table.Init(f, sidBits); err != nil {
			t.Fatalf("sidBits=%d: Init: %v", sidBits, err)
		}
		want := uint64(table.EntryCount() * EntrySize)
		if uint64(table.BaseAddr())%want != 0 {
			t.Errorf("sidBits=%d: base 0x%x not aligned to %d", sidBits, table.BaseAddr(), want)
		}
	}
}

// TestAlignmentAfterPriorAllocation reproduces the order smmu.Driver always
// allocates in: something else (here, a single odd-sized page range) claims
// memBase first, so the table's own AllocPages call does not start on a
// maximally-aligned address. The table must still land on a base aligned to
// entryCount*EntrySize.
func TestAlignmentAfterPriorAllocation(t *testing.T) {
	for _, sidBits := range []uint32{7, 8, 9, 12} {
		f := platform.NewFake(platform.FakeConfig{SIDBits: sidBits, CmdqBits: 8, MemSize: 64 << 20})
		if _, err := f.AllocPages(1); err != nil {
			t.Fatalf("sidBits=%d: priming AllocPages: %v", sidBits, err)
		}
		var table LinearTable
		if err := table.Init(f, sidBits); err != nil {
			t.Fatalf("sidBits=%d: Init: %v", sidBits, err)
		}
		want := uint64(table.EntryCount() * EntrySize)
		if uint64(table.BaseAddr())%want != 0 {
			t.Errorf("sidBits=%d: base 0x%x not aligned to %d", sidBits, table.BaseAddr(), want)
		}
	}
}

func TestInitWritesBypass(t *testing.T) {
	f := platform.NewFake(platform.FakeConfig{SIDBits: 8, CmdqBits: 4})
	var table LinearTable
	if err := table.Init(f, 8); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if table.EntryCount() != 256 {
		t.Fatalf("EntryCount() = %d, want 256", table.EntryCount())
	}
	for sid := 0; sid < table.EntryCount(); sid++ {
		e := table.ReadEntry(sid)
		if !IsBypass(e) {
			t.Fatalf("sid %d: not bypass after Init", sid)
		}
	}
}

func TestSetS2TranslatedRoundTrip(t *testing.T) {
	f := platform.NewFake(platform.FakeConfig{SIDBits: 8, CmdqBits: 4})
	var table LinearTable
	if err := table.Init(f, 8); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := table.SetS2Translated(0x10, 0x42, 0x8000_0000_0000); err != nil {
		t.Fatalf("SetS2Translated: %v", err)
	}
	e := table.ReadEntry(0x10)
	if !IsS2Translated(e) {
		t.Fatalf("sid 0x10: not stage-2 translated after SetS2Translated")
	}
	if VMID(e) != 0x42 {
		t.Fatalf("VMID = %#x, want 0x42", VMID(e))
	}
	if err := table.SetS2Translated(table.EntryCount(), 0, 0); err == nil {
		t.Fatalf("SetS2Translated with out-of-range sid did not error")
	}
}
