// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package smmuconfig loads the board-specific parameters a smmu.Driver needs
// before it can attach to hardware: the MMIO base address and the
// StreamID/Command-Queue sizing a platform integrator has chosen for this
// SoC. Everything else the core needs comes from the registers themselves.
package smmuconfig

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the set of values a deployment supplies outside of what the
// SMMUv3 hardware advertises in its own ID registers.
type Config struct {
	// RegisterBase is the physical base address of the SMMUv3 128 KiB MMIO
	// window.
	RegisterBase uint64 `toml:"register_base"`

	// SIDBits requests a Stream Table sized for 2^SIDBits StreamIDs. The
	// driver uses it as given; it is not clamped against IDR1.SIDSIZE.
	SIDBits uint32 `toml:"sid_bits"`

	// CmdqBits requests a Command Queue sized for 2^CmdqBits entries. It is
	// clamped against IDR1.CMDQS and the architectural maximum during
	// bring-up.
	CmdqBits uint32 `toml:"cmdq_bits"`

	// CR2Default is written to CR2 verbatim during bring-up; the core treats
	// it as an opaque platform-supplied value whose meaning is platform-defined.
	CR2Default uint32 `toml:"cr2_default"`

	// LogLevel names a logging verbosity: one of "debug", "info", "warn",
	// "error"; Validate rejects any other value. The smmu driver does not
	// read it and does not filter its Logger output by it.
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration a minimal single-SMMU platform needs:
// a conservative 8-bit StreamID space, a 64-entry Command Queue, and no
// platform-specific CR2 bits.
func Default() Config {
	return Config{
		RegisterBase: 0,
		SIDBits:      8,
		CmdqBits:     6,
		CR2Default:   0,
		LogLevel:     "info",
	}
}

// Load reads path as TOML over Default, so a config file only needs to
// override the fields a deployment cares about. A missing file is not an
// error; Load returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("smmuconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports a descriptive error for configuration values that can
// never correspond to real hardware, before the driver spends a bring-up
// attempt discovering the same thing.
func (c Config) Validate() error {
	if c.SIDBits == 0 || c.SIDBits > 32 {
		return fmt.Errorf("smmuconfig: sid_bits %d out of range (1..32)", c.SIDBits)
	}
	if c.CmdqBits > 19 {
		return fmt.Errorf("smmuconfig: cmdq_bits %d exceeds architectural maximum 19", c.CmdqBits)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("smmuconfig: unrecognized log_level %q", c.LogLevel)
	}
	return nil
}
