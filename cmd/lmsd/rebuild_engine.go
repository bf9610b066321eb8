package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildForce bool

var rebuildEngineCmd = &cobra.Command{
	Use:   "rebuild-engine",
	Short: "Force a synchronous recommendation engine retrain and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRebuildEngine(context.Background(), rebuildForce)
	},
}

func init() {
	rebuildEngineCmd.Flags().BoolVar(&rebuildForce, "force", true, "retrain even if a cached grid on disk is still valid")
	rootCmd.AddCommand(rebuildEngineCmd)
}

func runRebuildEngine(ctx context.Context, force bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.Load(ctx, force); err != nil {
		return fmt.Errorf("lmsd: rebuild engine: %w", err)
	}
	fmt.Println("engine rebuilt")
	return nil
}
