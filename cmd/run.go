package cmd

import (
	"github.com/spf13/cobra"

	"serialduplex/serialcomm"
)

var settleDelay = serialcomm.DefaultSettleDelay

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the reader and the writer, report the latest payload once and send ABC.",
	Long: `run starts the reader and the writer on their own handles, waits for the settle ` +
		`delay, logs the most recent payload and queues 0x41 0x42 0x43 for the writer. ` +
		`It then keeps running until the process is killed.`,
	Args: cobra.NoArgs,
	RunE: runSupervisor,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(c *cobra.Command) {
	c.Flags().DurationVar(&settleDelay, "settle", serialcomm.DefaultSettleDelay,
		"how long to let data accumulate before the snapshot")
}

func runSupervisor(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := serialConfig(logger)
	if err != nil {
		return err
	}

	sup := serialcomm.NewSupervisor(cfg, logger, serialcomm.WithSettleDelay(settleDelay))
	if err := sup.Run(cmd.Context()); err != nil {
		logger.Errorf("serial workers stopped: %v", err)
		return err
	}
	return nil
}
