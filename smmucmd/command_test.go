// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package smmucmd

import "testing"

func TestCFGISTE(t *testing.T) {
	cmd := CFGISTE(0x100)
	if Opcode(cmd) != OpCFGISTE {
		t.Errorf("opcode = %#x, want %#x", Opcode(cmd), OpCFGISTE)
	}
	if sid := cmd[0] >> 32; sid != 0x100 {
		t.Errorf("sid = %#x, want 0x100", sid)
	}
	if leaf := cmd[1] & 1; leaf != 1 {
		t.Errorf("Leaf = %d, want 1", leaf)
	}
}

func TestCMDSync(t *testing.T) {
	cmd := CMDSync()
	if Opcode(cmd) != OpCMDSync {
		t.Errorf("opcode = %#x, want %#x", Opcode(cmd), OpCMDSync)
	}
	if cmd[1] != 0 {
		t.Errorf("word1 = %#x, want 0", cmd[1])
	}
}

func TestPrefetchConfig(t *testing.T) {
	cmd := PrefetchConfig(0x42)
	if Opcode(cmd) != OpPrefetchConfig {
		t.Errorf("opcode = %#x, want %#x", Opcode(cmd), OpPrefetchConfig)
	}
	if sid := cmd[0] >> 32; sid != 0x42 {
		t.Errorf("sid = %#x, want 0x42", sid)
	}
	if cmd[1] != 0 {
		t.Errorf("word1 = %#x, want 0", cmd[1])
	}
}
