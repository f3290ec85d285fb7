// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package smmu

import "errors"

// Sentinel errors for the conditions a caller needs to distinguish. Callers
// should compare with errors.Is; Init and AddDevice/AddCommand wrap these
// with %w to preserve context.
var (
	// ErrCapabilityMismatch means the hardware advertises only linear
	// Stream Tables while IDR1.SIDSIZE requires a two-level table. Fatal,
	// raised during probe.
	ErrCapabilityMismatch = errors.New("smmu: hardware requires a two-level stream table, this core only implements linear tables")

	// ErrAllocationFailure is wrapped, together with the underlying
	// cmdqueue or streamtable error (such as platform.ErrAllocationFailed),
	// when the Command Queue or Stream Table cannot be set up. Fatal.
	ErrAllocationFailure = errors.New("smmu: platform allocation failed during bring-up")

	// ErrAckTimeout means CR0ACK did not reflect a requested CR0 bit within
	// the bounded poll. Init returns it wrapped, both for the CMDQEN ack
	// during queue setup and for the final SMMUEN|CMDQEN ack; only the
	// final one is also logged.
	ErrAckTimeout = errors.New("smmu: CR0ACK did not acknowledge requested CR0 bits before timeout")

	// ErrCommandError means CMDQ_CONS.ERR was non-zero while draining.
	// Tolerated; the driver logs the literal code and continues.
	ErrCommandError = errors.New("smmu: command queue reported a non-zero ERR code")

	// ErrEventQueueActivity means EVENTQ_PROD/EVENTQ_CONS disagreed while
	// draining the Command Queue, signaling an observed translation fault.
	// Fatal for the operation in progress.
	ErrEventQueueActivity = errors.New("smmu: event queue activity observed during command submission")
)

// Logger receives the non-fatal observations this driver treats as "reported as
// an error and tolerated": AckTimeout and CommandError. A nil Logger is
// valid and silently drops these.
type Logger interface {
	Printf(format string, args ...any)
}

func (d *Driver) logf(format string, args ...any) {
	if d.logger == nil {
		return
	}
	d.logger.Printf(format, args...)
}
