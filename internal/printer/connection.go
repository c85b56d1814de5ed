// Package printer manages transport connections to configured printers:
// per-backend connection pools with age and idle eviction, and a TTL cache
// over liveness probes.
package printer

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tarm/serial"
	"github.com/thereceipt/print-gateway/internal/config"
)

// ErrUnsupportedBackend is returned for backend kinds the gateway does not
// implement.
var ErrUnsupportedBackend = errors.New("unsupported printer backend")

// PrinterConnection is a unified write handle for all backend kinds.
type PrinterConnection interface {
	Write(data []byte) (int, error)
	Close() error
}

// Dialer opens transport connections to printer backends.
type Dialer interface {
	Dial(b config.Backend, timeout time.Duration) (PrinterConnection, error)
}

// PoolKey derives the string that segments connection pools, one per distinct
// backend address.
func PoolKey(b config.Backend) (string, error) {
	switch b.Type {
	case config.BackendTCP9100:
		return fmt.Sprintf("tcp:%s:%d", b.Host, b.Port), nil
	case config.BackendUSB:
		return fmt.Sprintf("usb:%s:%d", b.Device, b.Baud()), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, b.Type)
	}
}

// Target describes the backend address for log and error messages.
func Target(b config.Backend) string {
	switch b.Type {
	case config.BackendTCP9100:
		return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
	case config.BackendUSB:
		return fmt.Sprintf("%s@%d", b.Device, b.Baud())
	default:
		return b.Type
	}
}

type netDialer struct{}

// NewDialer returns the production dialer: stream sockets for TCP backends,
// tarm/serial ports for USB-serial backends.
func NewDialer() Dialer {
	return netDialer{}
}

func (netDialer) Dial(b config.Backend, timeout time.Duration) (PrinterConnection, error) {
	switch b.Type {
	case config.BackendTCP9100:
		addr := net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, fmt.Errorf("TCP connect %s failed: %w", addr, err)
		}
		return conn, nil
	case config.BackendUSB:
		port, err := serial.OpenPort(&serial.Config{
			Name:        b.Device,
			Baud:        b.Baud(),
			ReadTimeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("serial open %s failed: %w", Target(b), err)
		}
		return port, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, b.Type)
	}
}
