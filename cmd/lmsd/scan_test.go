package main

import (
	"testing"
	"time"

	"lms/internal/scanstats"
)

func TestScanWaiterClosesDoneOnScanComplete(t *testing.T) {
	w := newScanWaiter()

	select {
	case <-w.done:
		t.Fatal("done closed before ScanComplete")
	default:
	}

	w.ScanComplete(scanstats.NewScanStats(time.Now()), true)

	select {
	case <-w.done:
	default:
		t.Fatal("expected done to be closed after ScanComplete")
	}
}

func TestScanWaiterIgnoresOtherEvents(t *testing.T) {
	w := newScanWaiter()
	w.ScanStarted()
	w.ScanInProgress(scanstats.StepStats{})
	w.ScanScheduled(time.Now())

	select {
	case <-w.done:
		t.Fatal("done should only close on ScanComplete")
	default:
	}
}
