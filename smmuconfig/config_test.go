// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package smmuconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() failed Validate: %v", err)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load of missing file = %+v, want %+v", cfg, Default())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smmu.toml")
	body := "sid_bits = 10\nregister_base = 0x09050000\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SIDBits != 10 {
		t.Errorf("SIDBits = %d, want 10", cfg.SIDBits)
	}
	if cfg.RegisterBase != 0x09050000 {
		t.Errorf("RegisterBase = %#x, want 0x09050000", cfg.RegisterBase)
	}
	if cfg.CmdqBits != Default().CmdqBits {
		t.Errorf("CmdqBits = %d, want untouched default %d", cfg.CmdqBits, Default().CmdqBits)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.SIDBits = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("Validate accepted sid_bits=0")
	}

	cfg = Default()
	cfg.CmdqBits = 20
	if err := cfg.Validate(); err == nil {
		t.Errorf("Validate accepted cmdq_bits=20")
	}

	cfg = Default()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Errorf("Validate accepted unrecognized log_level")
	}
}
