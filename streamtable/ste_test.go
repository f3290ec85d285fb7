// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package streamtable

import "testing"

// TestBypassTranslateDisjointness checks that bypass and stage-2
// translated entries never share an encoding.
func TestBypassTranslateDisjointness(t *testing.T) {
	b := BypassEntry()
	if !IsValid(b) {
		t.Errorf("bypass entry: V=0, want 1")
	}
	if !IsBypass(b) {
		t.Errorf("bypass entry: Config field does not decode as bypass")
	}
	if IsS2Translated(b) {
		t.Errorf("bypass entry decodes as stage-2 translated")
	}

	s := S2TranslatedEntry(0x42, 0x8000_0000_0000)
	if !IsValid(s) {
		t.Errorf("s2 entry: V=0, want 1")
	}
	if !IsS2Translated(s) {
		t.Errorf("s2 entry: Config field does not decode as stage-2 translated")
	}
	if IsBypass(s) {
		t.Errorf("s2 entry decodes as bypass")
	}
}

// TestSTERoundTrip is property 2: for vmid < 2^16 and s2ptBase 16-byte
// aligned in [0, 2^52), decoding recovers vmid and s2ptBase[51:4]<<4.
func TestSTERoundTrip(t *testing.T) {
	cases := []struct {
		vmid     uint16
		s2ptBase uint64
	}{
		{0x0000, 0},
		{0x0042, 0x8000_0000_0000},
		{0xFFFF, 0xF_FFFF_FFFF_FFF0},
		{0x1234, 0x1234_5670},
	}
	for _, c := range cases {
		e := S2TranslatedEntry(c.vmid, c.s2ptBase)
		if got := VMID(e); got != c.vmid {
			t.Errorf("VMID roundtrip: got %#x, want %#x", got, c.vmid)
		}
		want := (c.s2ptBase >> 4 & ((1 << 48) - 1)) << 4
		if got := S2PTBase(e); got != want {
			t.Errorf("S2PTBase roundtrip: got %#x, want %#x", got, want)
		}
	}
}

func TestS2TranslatedEntryWordLayout(t *testing.T) {
	e := S2TranslatedEntry(0x42, 0x8000_0000_0000)
	if e[0] != (steV | steConfigS1BypassS2Trans) {
		t.Errorf("word0 = %#x, want %#x", e[0], steV|steConfigS1BypassS2Trans)
	}
	if e[1] != steSHCFGIncoming {
		t.Errorf("word1 = %#x, want %#x", e[1], steSHCFGIncoming)
	}
}
