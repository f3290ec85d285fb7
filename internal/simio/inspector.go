// Copyright 2024 The SMMUv3 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package simio is a terminal inspector for watching a smmu.Driver run
// against a platform.Fake: Stream Table occupancy and Command Queue state,
// refreshed as a demonstration program drives the state machine. It is
// development tooling, not part of the driver's runtime surface — nothing
// in smmu, cmdqueue, or streamtable imports it.
package simio

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/smmuv3/smmuv3/smmu"
	"github.com/smmuv3/smmuv3/streamtable"
)

// Inspector is a text UI that polls a Driver and renders its Stream Table
// and Command Queue state.
type Inspector struct {
	app    *tview.Application
	layout *tview.Flex

	stateView *tview.TextView
	tableView *tview.TextView
	queueView *tview.TextView
	logView   *tview.TextView

	driver *smmu.Driver
	table  *streamtable.LinearTable
}

// New builds an Inspector attached to driver. Call AttachTable with
// driver.StreamTable() before Run to enable the Stream Table panel; New does
// not do this itself so a caller can choose not to pay for per-SID
// rendering.
func New(driver *smmu.Driver) *Inspector {
	insp := &Inspector{
		app:       tview.NewApplication(),
		driver:    driver,
		stateView: tview.NewTextView().SetDynamicColors(true),
		tableView: tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
		queueView: tview.NewTextView().SetDynamicColors(true),
		logView:   tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
	}
	insp.stateView.SetBorder(true).SetTitle(" Bring-up State ")
	insp.tableView.SetBorder(true).SetTitle(" Stream Table ")
	insp.queueView.SetBorder(true).SetTitle(" Command Queue ")
	insp.logView.SetBorder(true).SetTitle(" Log ")

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(insp.stateView, 3, 0, false).
		AddItem(insp.queueView, 5, 0, false).
		AddItem(insp.logView, 0, 1, false)
	insp.layout = tview.NewFlex().
		AddItem(left, 0, 1, false).
		AddItem(insp.tableView, 0, 2, false)

	insp.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
			insp.app.Stop()
			return nil
		}
		return ev
	})
	return insp
}

// Logf appends a line to the Log panel, for a driving program to narrate
// what scenario it is about to run.
func (insp *Inspector) Logf(format string, args ...any) {
	fmt.Fprintf(insp.logView, "%s\n", fmt.Sprintf(format, args...))
}

// Refresh redraws every panel from the driver's current state. It is safe
// to call before the application loop starts or from within it via
// QueueUpdateDraw.
func (insp *Inspector) Refresh() {
	insp.stateView.Clear()
	fmt.Fprintf(insp.stateView, "%s  (%s)", insp.driver.State(), insp.driver.Version())

	prod, cons, size := insp.driver.QueueStatus()
	insp.queueView.Clear()
	fmt.Fprintf(insp.queueView, "prod: %#05x\ncons: %#05x\nsize: %d\noutstanding: %d\n",
		prod, cons, size, (prod-cons+2*size)%(2*size))

	if insp.table != nil {
		insp.renderTable()
	}
}

// AttachTable enables the Stream Table panel, rendering t's live occupancy.
func (insp *Inspector) AttachTable(t *streamtable.LinearTable) { insp.table = t }

func (insp *Inspector) renderTable() {
	insp.tableView.Clear()
	var bypass, translated int
	var b strings.Builder
	for sid := 0; sid < insp.table.EntryCount(); sid++ {
		e := insp.table.ReadEntry(sid)
		switch {
		case streamtable.IsS2Translated(e):
			translated++
			fmt.Fprintf(&b, "[green]sid %#04x: s2 vmid=%#x[white]\n", sid, streamtable.VMID(e))
		case streamtable.IsBypass(e):
			bypass++
		}
	}
	fmt.Fprintf(insp.tableView, "bypass=%d translated=%d total=%d\n\n", bypass, translated, insp.table.EntryCount())
	insp.tableView.Write([]byte(b.String()))
}

// Run starts the terminal UI event loop. It blocks until the user quits
// (Esc or 'q') or the application is stopped programmatically.
func (insp *Inspector) Run() error {
	insp.Refresh()
	return insp.app.SetRoot(insp.layout, true).Run()
}

// QueueRefresh schedules a Refresh on the UI goroutine, for callers driving
// scenarios on a separate goroutine.
func (insp *Inspector) QueueRefresh() {
	insp.app.QueueUpdateDraw(func() { insp.Refresh() })
}

// Stop ends the UI event loop.
func (insp *Inspector) Stop() { insp.app.Stop() }
