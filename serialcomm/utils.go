// serialcomm/utils.go
package serialcomm

import (
	"errors"

	"github.com/sigurn/crc16"
)

var (
	ErrOpen          = errors.New("serialcomm: open port")
	ErrTimeout       = errors.New("serialcomm: read timeout")
	ErrQueueClosed   = errors.New("serialcomm: queue closed")
	ErrUnknownDriver = errors.New("serialcomm: unknown driver")
)

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// IsTimeout reports whether err means no data arrived within the read
// timeout. Errors exposing Timeout() bool (os.ErrDeadlineExceeded, net
// errors) count as well.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// CalculateCRC16 returns the CRC16/MODBUS of data. It only fingerprints
// payloads in traces, nothing is put on the wire.
func CalculateCRC16(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
