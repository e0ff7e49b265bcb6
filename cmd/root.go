// Package cmd provides the command-line interface for serialduplex.
package cmd

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"serialduplex/logging"
	"serialduplex/serialcomm"
)

var (
	logLevel    string
	driver      string
	readTimeout time.Duration

	// opener replaces the real driver in tests.
	opener serialcomm.Opener

	// exit and registerExit are atexit.Exit and atexit.Register outside tests.
	exit         = atexit.Exit
	registerExit = func(fn func()) { atexit.Register(fn) }

	flushOnce     sync.Once
	currentLogger atomic.Pointer[zap.SugaredLogger]
)

// rootCmd runs the supervisor when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "serialduplex",
	Short: "Read from and write to " + serialcomm.DefaultPortName + " at the same time.",
	Long: `serialduplex opens ` + serialcomm.DefaultPortName + ` twice at 9600 baud. One handle is polled ` +
		`and the latest payload is kept in memory, the other writes queued payloads. ` +
		`Without a subcommand it behaves like "serialduplex run".`,
	SilenceUsage: true,
	RunE:         runSupervisor,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", serialcomm.DefaultConfig().Driver,
		fmt.Sprintf("serial driver, one of %v", serialcomm.Drivers))
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "read-timeout", serialcomm.DefaultReadTimeout,
		"how long one read waits for data before it is retried")
	addRunFlags(rootCmd)
}

// Execute runs the root command. Any error, including failing to open the
// device, exits the process with status 1 after the registered exit handlers
// have flushed the logs.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		exit(1)
		return
	}
	exit(0)
}

// newLogger builds the logger for one command run. The exit handler that
// flushes it is registered only once per process.
func newLogger() (*zap.SugaredLogger, error) {
	l, err := logging.NewLogger("serialduplex", logLevel)
	if err != nil {
		return nil, err
	}
	currentLogger.Store(l)
	flushOnce.Do(func() {
		registerExit(func() {
			if l := currentLogger.Load(); l != nil {
				_ = l.Sync()
			}
		})
	})
	return l, nil
}

// serialConfig builds the device settings from the flags and warns when the
// driver cannot poll as often as asked.
func serialConfig(log *zap.SugaredLogger) (*serialcomm.SerialConfig, error) {
	if !slices.Contains(serialcomm.Drivers, driver) {
		return nil, fmt.Errorf("%w: %q", serialcomm.ErrUnknownDriver, driver)
	}
	if readTimeout <= 0 {
		return nil, fmt.Errorf("read timeout must be positive, got %v", readTimeout)
	}
	cfg := serialcomm.DefaultConfig()
	cfg.Driver = driver
	cfg.ReadTimeout = readTimeout
	cfg.Opener = opener
	if eff := serialcomm.EffectiveReadTimeout(cfg); eff != cfg.ReadTimeout {
		log.Warnf("driver %s waits %v per read instead of %v", cfg.Driver, eff, cfg.ReadTimeout)
	}
	return cfg, nil
}
