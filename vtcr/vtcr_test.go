// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package vtcr

import "testing"

func TestDefaultStage2Fields(t *testing.T) {
	w := DefaultStage2()

	if w > WordMask {
		t.Fatalf("word %#x exceeds the %d-bit field width", w, WordBits)
	}

	cases := []struct {
		name         string
		shift, width uint
		want         uint64
	}{
		{"T0SZ", t0szShift, 6, t0sz48BitIPA},
		{"SL0", sl0Shift, 2, sl0Level1Start},
		{"IRGN0", irgn0Shift, 2, irgn0WBRAWA},
		{"ORGN0", orgn0Shift, 2, orgn0WBRAWA},
		{"SH0", sh0Shift, 2, sh0Inner},
		{"TG0", tg0Shift, 2, tg04KB},
		{"PS", psShift, 3, psPA40Bit1TB},
	}
	for _, c := range cases {
		mask := (uint64(1) << c.width) - 1
		got := (w >> c.shift) & mask
		if got != c.want {
			t.Errorf("%s = %#x, want %#x", c.name, got, c.want)
		}
	}
}
