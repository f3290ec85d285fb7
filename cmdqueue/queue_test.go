// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package cmdqueue

import (
	"testing"

	"github.com/smmuv3/smmuv3/platform"
	"github.com/smmuv3/smmuv3/smmucmd"
)

func TestClampQ(t *testing.T) {
	cases := []struct {
		requested, hwMax, want uint32
	}{
		{requested: 8, hwMax: 19, want: 8},
		{requested: 25, hwMax: 19, want: 19},
		{requested: 10, hwMax: 4, want: 4},
		{requested: 0, hwMax: 19, want: 0},
	}
	for _, c := range cases {
		if got := clampQ(c.requested, c.hwMax); got != c.want {
			t.Errorf("clampQ(%d, %d) = %d, want %d", c.requested, c.hwMax, got, c.want)
		}
	}
}

// TestIndexAlgebra checks that, for every Q in a
// representative range and every insertion count k up to capacity, (wrap,
// idx) after k inserts is (k/2^Q mod 2, k mod 2^Q), and that with cons at 0
// full is exact at k==2^Q. Empty is covered by TestEmptyAfterDrain.
func TestIndexAlgebra(t *testing.T) {
	for q := uint32(0); q <= 6; q++ {
		f := platform.NewFake(platform.FakeConfig{SIDBits: 8, CmdqBits: q})
		var queue Queue
		if err := queue.Init(f, q, 19); err != nil {
			t.Fatalf("Q=%d: Init: %v", q, err)
		}
		size := uint32(1) << q
		period := 2 * size

		for k := uint32(1); k <= size; k++ {
			if queue.Full() {
				t.Fatalf("Q=%d: queue reports full after only %d inserts of %d capacity", q, k-1, size)
			}
			cmd := smmucmd.PrefetchConfig(k)
			if err := queue.Insert(cmd); err != nil {
				t.Fatalf("Q=%d: insert %d: %v", q, k, err)
			}

			wantProd := k % period
			if queue.ProdValue() != wantProd {
				t.Errorf("Q=%d k=%d: prod=%d, want %d", q, k, queue.ProdValue(), wantProd)
			}
			wantWrap := (k / size) % 2
			gotWrap := (queue.ProdValue() >> q) & 1
			if gotWrap != wantWrap {
				t.Errorf("Q=%d k=%d: wrap=%d, want %d", q, k, gotWrap, wantWrap)
			}
		}
		if !queue.Full() {
			t.Fatalf("Q=%d: queue not full after %d inserts of %d capacity", q, size, size)
		}
		if err := queue.Insert(smmucmd.CMDSync()); err == nil {
			t.Fatalf("Q=%d: insert into full queue did not error", q)
		}
	}
}

func TestEmptyAfterDrain(t *testing.T) {
	f := platform.NewFake(platform.FakeConfig{SIDBits: 8, CmdqBits: 3})
	var queue Queue
	if err := queue.Init(f, 3, 19); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !queue.Empty() {
		t.Fatalf("new queue is not empty")
	}
	if err := queue.Insert(smmucmd.CMDSync()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if queue.Empty() {
		t.Fatalf("queue reports empty after one insert")
	}
	queue.SetConsValue(queue.ProdValue(), nil)
	if !queue.Empty() {
		t.Fatalf("queue does not report empty once cons catches prod")
	}
}

// TestAlignment is property 4: the Command Queue base satisfies
// base mod max(32, 2^Q*16) == 0.
func TestAlignment(t *testing.T) {
	for q := uint32(0); q <= 10; q++ {
		f := platform.NewFake(platform.FakeConfig{SIDBits: 8, CmdqBits: q})
		var queue Queue
		if err := queue.Init(f, q, 19); err != nil {
			t.Fatalf("Q=%d: Init: %v", q, err)
		}
		want := uint64(1) << q * EntrySize
		if want < 32 {
			want = 32
		}
		if uint64(queue.BaseAddr())%want != 0 {
			t.Errorf("Q=%d: base 0x%x not aligned to %d", q, queue.BaseAddr(), want)
		}
	}
}

// TestWrapScenario is scenario S6: Q=3 (8 slots), 10 inserts interleaved
// with consumer advances, ending at {wrap=1, idx=2}.
func TestWrapScenario(t *testing.T) {
	f := platform.NewFake(platform.FakeConfig{SIDBits: 8, CmdqBits: 3})
	var queue Queue
	if err := queue.Init(f, 3, 19); err != nil {
		t.Fatalf("Init: %v", err)
	}

	inserted := 0
	for inserted < 10 {
		for queue.Full() {
			queue.SetConsValue(queue.ProdValue(), nil)
		}
		if err := queue.Insert(smmucmd.PrefetchConfig(uint32(inserted))); err != nil {
			t.Fatalf("insert %d: %v", inserted, err)
		}
		inserted++
	}

	wantProd := uint32(1)<<3 | 2 // wrap=1, idx=2
	if queue.ProdValue() != wantProd {
		t.Errorf("final prod = %#x (wrap=%d idx=%d), want %#x", queue.ProdValue(), queue.ProdValue()>>3, queue.ProdValue()&0x7, wantProd)
	}
}
