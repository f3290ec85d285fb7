// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package regmap

import (
	"sync/atomic"
	"unsafe"
)

// SliceBacking implements Backing over a plain byte slice using sync/atomic,
// giving the non-tearing, non-reordered single-instruction access the
// SMMUv3 MMIO contract requires. This is the production Backing: mem is the
// slice returned by platform.Handler.MapRegisters.
type SliceBacking struct {
	mem []byte
}

// NewSliceBacking wraps mem for atomic register access. mem must outlive the
// returned SliceBacking and must not be resized or moved by the caller.
func NewSliceBacking(mem []byte) *SliceBacking {
	return &SliceBacking{mem: mem}
}

func (s *SliceBacking) ptr32(offset uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(&s.mem[offset]))
}

func (s *SliceBacking) ptr64(offset uintptr) *uint64 {
	return (*uint64)(unsafe.Pointer(&s.mem[offset]))
}

func (s *SliceBacking) Load32(offset uintptr) uint32 {
	return atomic.LoadUint32(s.ptr32(offset))
}

func (s *SliceBacking) Store32(offset uintptr, v uint32) {
	atomic.StoreUint32(s.ptr32(offset), v)
}

func (s *SliceBacking) Load64(offset uintptr) uint64 {
	return atomic.LoadUint64(s.ptr64(offset))
}

func (s *SliceBacking) Store64(offset uintptr, v uint64) {
	atomic.StoreUint64(s.ptr64(offset), v)
}
