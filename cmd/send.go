package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"serialduplex/serialcomm"
)

var sendHex bool

var sendCmd = &cobra.Command{
	Use:   "send PAYLOAD...",
	Short: "Write each payload to the device once and exit.",
	Long: `send opens one handle, queues every argument as a separate payload and exits ` +
		`once the queue is drained. Payloads are taken literally unless --hex is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, `payloads are hex strings, e.g. "41 42 43"`)
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	payloads, err := parsePayloads(args, sendHex)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := serialConfig(logger)
	if err != nil {
		return err
	}

	queue := serialcomm.NewOutgoingQueue()
	for _, p := range payloads {
		if err := queue.Send(p); err != nil {
			return err
		}
	}
	queue.Close()

	sender := serialcomm.NewSerialSender(cfg, queue, logger.Named("writer"))
	if err := sender.Run(cmd.Context()); err != nil {
		return err
	}
	if n := sender.Dropped(); n > 0 {
		return fmt.Errorf("%d of %d payloads were not written", n, len(payloads))
	}
	return nil
}

func parsePayloads(args []string, isHex bool) ([][]byte, error) {
	payloads := make([][]byte, 0, len(args))
	for _, arg := range args {
		if !isHex {
			payloads = append(payloads, []byte(arg))
			continue
		}
		clean := strings.NewReplacer(" ", "", ":", "", "0x", "", "0X", "").Replace(arg)
		b, err := hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("payload %q: %w", arg, err)
		}
		payloads = append(payloads, b)
	}
	return payloads, nil
}
