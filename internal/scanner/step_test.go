package scanner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lms/internal/scanstats"
)

type recordingStep struct {
	kind scanstats.Step
	run  *[]scanstats.Step
	err  error
}

func (s recordingStep) Kind() scanstats.Step { return s.kind }

func (s recordingStep) Process(ctx context.Context, sc *ScanContext) error {
	*s.run = append(*s.run, s.kind)
	return s.err
}

func TestPipelineRunsStepsInOrder(t *testing.T) {
	var order []scanstats.Step
	p := NewPipeline(
		recordingStep{kind: scanstats.ScanFiles, run: &order},
		recordingStep{kind: scanstats.CheckForRemovedFiles, run: &order},
		recordingStep{kind: scanstats.RemoveOrphanedDbEntries, run: &order},
	)

	sc := &ScanContext{Stats: scanstats.NewScanStats(time.Now()), Cancel: &atomic.Bool{}}
	if err := p.Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []scanstats.Step{scanstats.ScanFiles, scanstats.CheckForRemovedFiles, scanstats.RemoveOrphanedDbEntries}
	if len(order) != len(want) {
		t.Fatalf("ran %d steps, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("step %d = %v, want %v", i, order[i], want[i])
		}
	}
}

func TestPipelineStopsOnStepError(t *testing.T) {
	var order []scanstats.Step
	boom := errors.New("boom")
	p := NewPipeline(
		recordingStep{kind: scanstats.ScanFiles, run: &order},
		recordingStep{kind: scanstats.CheckForRemovedFiles, run: &order, err: boom},
		recordingStep{kind: scanstats.RemoveOrphanedDbEntries, run: &order},
	)

	sc := &ScanContext{Stats: scanstats.NewScanStats(time.Now()), Cancel: &atomic.Bool{}}
	err := p.Run(context.Background(), sc)
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want %v", err, boom)
	}
	if len(order) != 2 {
		t.Fatalf("ran %d steps, want 2 (stop after failing step)", len(order))
	}
}

func TestPipelineStopsOnCancellation(t *testing.T) {
	var order []scanstats.Step
	cancel := &atomic.Bool{}
	cancel.Store(true)
	p := NewPipeline(
		recordingStep{kind: scanstats.ScanFiles, run: &order},
	)

	sc := &ScanContext{Stats: scanstats.NewScanStats(time.Now()), Cancel: cancel}
	if err := p.Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("ran %d steps, want 0 (cancelled before start)", len(order))
	}
}
