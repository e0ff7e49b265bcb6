package cmd

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"serialduplex/serialcomm"
)

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Only read from the device and log the latest payload periodically.",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", time.Second,
		"how often the latest payload is logged")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if monitorInterval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", monitorInterval)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := serialConfig(logger)
	if err != nil {
		return err
	}

	store := serialcomm.NewLastValueStore()
	receiver := serialcomm.NewSerialReceiver(cfg, store, logger.Named("reader"))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return receiver.Run(ctx) })
	g.Go(func() error { return reportSnapshots(ctx, store, monitorInterval, logger.Infof) })
	return g.Wait()
}

// reportSnapshots logs the store every interval, but only when it changed
// since the last report.
func reportSnapshots(ctx context.Context, store *serialcomm.LastValueStore, interval time.Duration,
	logf func(string, ...interface{})) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := store.Snapshot()
			if last != nil && bytes.Equal(snap, last) {
				continue
			}
			last = snap
			logf("Last Received Data: %v", snap)
		}
	}
}
