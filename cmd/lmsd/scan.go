package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lms/internal/scanstats"
)

var scanForce bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan of every configured media library and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(context.Background(), scanForce)
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "rescan every file even when its size and modification time are unchanged")
	rootCmd.AddCommand(scanCmd)
}

// scanWaiter is a scanner.Listener that reports exactly the completion of the next
// scan it observes; lmsd's scan subcommand needs the CLI to block until the one
// scan it triggered finishes, which Service's async RequestImmediateScan alone
// doesn't give it.
type scanWaiter struct {
	done chan struct{}
}

func newScanWaiter() *scanWaiter {
	return &scanWaiter{done: make(chan struct{})}
}

func (w *scanWaiter) ScanStarted()                                   {}
func (w *scanWaiter) ScanInProgress(scanstats.StepStats)              {}
func (w *scanWaiter) ScanScheduled(time.Time)                         {}
func (w *scanWaiter) ScanComplete(stats *scanstats.ScanStats, changed bool) {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}

func runScan(ctx context.Context, force bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	waiter := newScanWaiter()
	a.scanner.Subscribe(waiter)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.scanner.Run(runCtx)

	a.scanner.RequestImmediateScan(force)

	select {
	case <-waiter.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	fmt.Println("scan complete")
	return nil
}
