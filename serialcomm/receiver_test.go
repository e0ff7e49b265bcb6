package serialcomm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"serialduplex/logging"
)

func startReceiver(t *testing.T, r SerialReceiver) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- r.Run(ctx)
	}()
	t.Cleanup(cancel)
	return cancel, errs
}

func stopReceiver(t *testing.T, cancel context.CancelFunc, errs <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop")
	}
}

func TestReceiverOverwritesStore(t *testing.T) {
	reads := [][]byte{
		{0x10, 0x11, 0x12},
		{0x13},
		{},
		{0x14, 0x15, 0x16, 0x17},
		{0x18},
	}
	script := make([]readResult, 0, len(reads))
	for _, b := range reads {
		script = append(script, readBytes(b...))
	}
	dev := newFakeDevice(script...)
	store := NewLastValueStore()

	var (
		mu        sync.Mutex
		snapshots [][]byte
	)
	cfg := dev.config()
	cfg.ReadCallback = func(data []byte) {
		mu.Lock()
		snapshots = append(snapshots, store.Snapshot())
		mu.Unlock()
	}

	r := NewSerialReceiver(cfg, store, nil)
	cancel, errs := startReceiver(t, r)
	require.Eventually(t, func() bool { return r.Received() == uint64(len(reads)) },
		time.Second, time.Millisecond)
	stopReceiver(t, cancel, errs)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snapshots, len(reads))
	for i := range reads {
		assert.Equal(t, reads[i], snapshots[i], "after read %d", i)
	}
	assert.Equal(t, []byte{0x18}, store.Snapshot())
	assert.Equal(t, 1, dev.Opens())
	assert.Equal(t, 1, dev.Closes())
}

func TestReceiverIgnoresTimeouts(t *testing.T) {
	dev := newFakeDevice(
		readBytes(0x09),
		readErr(ErrTimeout),
		readErr(fmt.Errorf("poll: %w", ErrTimeout)),
		readErr(os.ErrDeadlineExceeded),
		readErr(ErrTimeout),
	)
	store := NewLastValueStore()
	logger, logs := logging.NewObservedTestLogger(t)

	r := NewSerialReceiver(dev.config(), store, logger)
	cancel, errs := startReceiver(t, r)
	require.Eventually(t, func() bool { return dev.ReadCalls() > 6 }, time.Second, time.Millisecond)
	stopReceiver(t, cancel, errs)

	assert.Equal(t, []byte{0x09}, store.Snapshot())
	assert.Equal(t, uint64(1), r.Received())
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Received: [9]").Len())
}

func TestReceiverLogsOtherErrorsAndContinues(t *testing.T) {
	dev := newFakeDevice(
		readBytes(0x01),
		readErr(errors.New("device reports a framing error")),
		readErr(errors.New("device reports a framing error")),
		readBytes(0x07, 0x08),
	)
	store := NewLastValueStore()
	logger, logs := logging.NewObservedTestLogger(t)

	r := NewSerialReceiver(dev.config(), store, logger)
	cancel, errs := startReceiver(t, r)
	require.Eventually(t, func() bool { return r.Received() == 2 }, time.Second, time.Millisecond)
	stopReceiver(t, cancel, errs)

	assert.Equal(t, []byte{0x07, 0x08}, store.Snapshot())
	errLogs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errLogs, 2)
	assert.Equal(t, "Serial port error: device reports a framing error", errLogs[0].Message)
	assert.Equal(t, 1, dev.Opens(), "the same handle is read again")
}

func TestReceiverKeepsBytesReturnedWithError(t *testing.T) {
	dev := newFakeDevice(
		readPartial(errors.New("input/output error"), 0x01, 0x02),
		readPartial(ErrTimeout, 0x03),
	)
	store := NewLastValueStore()
	logger, logs := logging.NewObservedTestLogger(t)

	var (
		mu   sync.Mutex
		seen [][]byte
	)
	cfg := dev.config()
	cfg.ReadCallback = func(data []byte) {
		mu.Lock()
		seen = append(seen, data)
		mu.Unlock()
	}

	r := NewSerialReceiver(cfg, store, logger)
	cancel, errs := startReceiver(t, r)
	require.Eventually(t, func() bool { return r.Received() == 2 }, time.Second, time.Millisecond)
	stopReceiver(t, cancel, errs)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]byte{{0x01, 0x02}, {0x03}}, seen)
	assert.Equal(t, []byte{0x03}, store.Snapshot())

	errLogs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errLogs, 1)
	assert.Equal(t, "Serial port error: input/output error", errLogs[0].Message)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Received: [1 2]").Len())
}

func TestReceiverSnapshotAfterFirstRead(t *testing.T) {
	dev := newFakeDevice(readBytes(0x01, 0x02))
	store := NewLastValueStore()

	r := NewSerialReceiver(dev.config(), store, nil)
	cancel, errs := startReceiver(t, r)
	require.Eventually(t, func() bool { return r.Received() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return dev.ReadCalls() > 3 }, time.Second, time.Millisecond)

	assert.Equal(t, []byte{0x01, 0x02}, store.Snapshot())
	stopReceiver(t, cancel, errs)
}

func TestReceiverBufferSize(t *testing.T) {
	big := make([]byte, 2000)
	for i := range big {
		big[i] = byte(i)
	}
	dev := newFakeDevice(readBytes(big...))
	store := NewLastValueStore()

	r := NewSerialReceiver(dev.config(), store, nil)
	cancel, errs := startReceiver(t, r)
	require.Eventually(t, func() bool { return r.Received() == 1 }, time.Second, time.Millisecond)
	stopReceiver(t, cancel, errs)

	assert.Equal(t, big[:DefaultBufferSize], store.Snapshot())
}

func TestReceiverOpenFailure(t *testing.T) {
	dev := newFakeDevice(readBytes(0x01))
	dev.openErr = errors.New("no such file or directory")
	store := NewLastValueStore()

	r := NewSerialReceiver(dev.config(), store, nil)
	err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrOpen)
	assert.Contains(t, err.Error(), "no such file or directory")
	assert.Contains(t, err.Error(), DefaultPortName)
	assert.Zero(t, dev.ReadCalls())
	assert.Empty(t, store.Snapshot())
}
