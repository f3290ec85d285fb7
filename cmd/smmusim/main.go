// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command smmusim runs the SMMUv3 bring-up and runtime scenarios against a
// platform.Fake and reports pass/fail for each, in the spirit of the
// corpus's own smoketest executables (host/bcm283xsmoketest): a small
// program that exercises a driver against real or simulated hardware.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/smmuv3/smmuv3/internal/simio"
	"github.com/smmuv3/smmuv3/platform"
	"github.com/smmuv3/smmuv3/regmap"
	"github.com/smmuv3/smmuv3/smmu"
	"github.com/smmuv3/smmuv3/smmucmd"
	"github.com/smmuv3/smmuv3/smmuconfig"
)

func fakeCommand(sid uint32) smmucmd.Command { return smmucmd.PrefetchConfig(sid) }

type stdLogger struct{}

func (stdLogger) Printf(format string, args ...any) { log.Printf(format, args...) }

type scenario struct {
	name string
	run  func() error
}

func main() {
	configPath := flag.String("config", "", "path to a smmuconfig TOML file (defaults applied if empty or missing)")
	inspect := flag.Bool("inspect", false, "launch the terminal inspector instead of printing a summary")
	flag.Parse()

	cfg, err := smmuconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("smmusim: loading config: %v", err)
	}

	if *inspect {
		runInspector(cfg)
		return
	}

	scenarios := []scenario{
		{"S1 bring-up", scenarioS1},
		{"S2 add-device", scenarioS2},
		{"S3 queue-full", scenarioS3},
		{"S4 command-error", scenarioS4},
		{"S5 ack-timeout", scenarioS5},
		{"S6 wrap", scenarioS6},
	}

	failures := 0
	for _, s := range scenarios {
		err := s.run()
		status := "PASS"
		if err != nil {
			status = "FAIL"
			failures++
		}
		fmt.Printf("%-20s %s\n", s.name, status)
		if err != nil {
			fmt.Printf("  %v\n", err)
		}
	}

	if failures > 0 {
		os.Exit(1)
	}
}

func newFakeDriver(sidBits, cmdqBits uint32) (*smmu.Driver, *platform.Fake, error) {
	cfg := smmuconfig.Default()
	cfg.SIDBits = sidBits
	cfg.CmdqBits = cmdqBits

	f := platform.NewFake(platform.FakeConfig{SIDBits: sidBits, CmdqBits: cmdqBits, MemSize: 64 << 20})
	f.SetIdentification(0, 4|19<<21, 2<<4|2)

	d, err := smmu.New(f, cfg, stdLogger{})
	if err != nil {
		return nil, nil, err
	}
	return d, f, nil
}

func scenarioS1() error {
	d, f, err := newFakeDriver(8, 8)
	if err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}
	if d.State() != smmu.Ready {
		return fmt.Errorf("state = %v, want Ready", d.State())
	}
	if cr0 := f.Load32(regmap.CR0); cr0 != 0x9 {
		return fmt.Errorf("CR0 = %#x, want 0x9", cr0)
	}
	if v := d.Version(); v != "SMMUv3.2" {
		return fmt.Errorf("version = %q, want SMMUv3.2", v)
	}
	return nil
}

func scenarioS2() error {
	d, _, err := newFakeDriver(9, 8)
	if err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}
	return d.AddDevice(0x100, 0x42, 0x8000_0000_0000)
}

func scenarioS3() error {
	d, f, err := newFakeDriver(8, 3)
	if err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}
	f.PauseDrain(true)
	for i := 0; i < 8; i++ {
		if err := d.AddCommand(fakeCommand(uint32(i)), false); err != nil {
			return err
		}
	}
	// The queue is now full. Unpausing here, rather than after the next
	// AddCommand starts, is deliberate: it's the 9th call's full-wait loop
	// that must observe CMDQ_CONS advance, the same poll-until-drained path
	// a real caller hits when it outruns consumption.
	f.PauseDrain(false)
	return d.AddCommand(fakeCommand(8), false)
}

func scenarioS4() error {
	d, f, err := newFakeDriver(8, 4)
	if err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}
	f.InjectCommandError(0x5)
	return d.AddCommand(fakeCommand(1), false)
}

func scenarioS5() error {
	d, f, err := newFakeDriver(8, 4)
	if err != nil {
		return err
	}
	f.SetNeverAckMask(uint32(regmap.Cr0SMMUEnable))
	err = d.Init()
	if err == nil {
		return errors.New("init unexpectedly succeeded")
	}
	if !errors.Is(err, smmu.ErrAckTimeout) {
		return fmt.Errorf("init error = %v, want ErrAckTimeout", err)
	}
	return nil
}

func scenarioS6() error {
	d, _, err := newFakeDriver(8, 3)
	if err != nil {
		return err
	}
	if err := d.Init(); err != nil {
		return err
	}
	// The fake drains instantly on each CMDQ_CONS read, so ten inserts
	// interleave naturally with consumer advances the way S6 describes.
	for i := 0; i < 10; i++ {
		if err := d.AddCommand(fakeCommand(uint32(i)), false); err != nil {
			return err
		}
	}
	return nil
}

func runInspector(cfg smmuconfig.Config) {
	d, _, err := newFakeDriver(cfg.SIDBits, cfg.CmdqBits)
	if err != nil {
		log.Fatalf("smmusim: %v", err)
	}
	insp := simio.New(d)
	insp.AttachTable(d.StreamTable())
	insp.Logf("running Init()")
	if err := d.Init(); err != nil {
		insp.Logf("Init: %v", err)
	}
	if err := insp.Run(); err != nil {
		log.Fatalf("smmusim: inspector: %v", err)
	}
}
