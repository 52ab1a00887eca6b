// Package i2cbus performs single register-read transactions on an I²C bus.
//
// Every Read acquires the bus, addresses the peripheral, writes the register
// pointer, reads the response and releases the bus again. Nothing is kept
// open between calls and nothing is retried.
package i2cbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"syscall"
)

const (
	// I2CSlave is the i2c-dev ioctl request that selects the peripheral address.
	I2CSlave = 0x0703

	MaxAddress = 0x7F
	MinLength  = 2
)

var (
	ErrInvalidAddress = errors.New("i2cbus: address out of 7-bit range")
	ErrInvalidLength  = errors.New("i2cbus: response length must be at least 2")
	ErrShortRead      = errors.New("i2cbus: short read")
	ErrShortWrite     = errors.New("i2cbus: short write")
)

// IOError reports a failed bus transaction step.
type IOError struct {
	Op     string // open, address, write, read or close
	Device string
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i2cbus: %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Errno returns the underlying OS error code, or 0 when the failure did not
// come from a system call (for example a short read).
func (e *IOError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

// Transport reads length bytes from the peripheral at address.
type Transport interface {
	Read(address byte, length uint) ([]byte, error)
}

// Backend is one way of running a transaction on the bus. Implementations
// must release the bus on every return path.
type Backend interface {
	Tx(address, register byte, buf []byte) error
	String() string
}

// Bus is a Transport over a named bus. Calls are serialized.
type Bus struct {
	mu       sync.Mutex
	backend  Backend
	register byte
}

// New returns a Bus that writes register before every read.
func New(backend Backend, register byte) *Bus {
	return &Bus{backend: backend, register: register}
}

func (b *Bus) String() string { return b.backend.String() }

func (b *Bus) Read(address byte, length uint) ([]byte, error) {
	if err := checkArgs(address, length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.backend.Tx(address, b.register, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func checkArgs(address byte, length uint) error {
	if address > MaxAddress {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidAddress, address)
	}
	if length < MinLength {
		return fmt.Errorf("%w: got %d", ErrInvalidLength, length)
	}
	return nil
}

// DevicePath maps a bus name such as "1" to its character device. Names
// that already look like a path are returned unchanged.
func DevicePath(bus string) string {
	if strings.HasPrefix(bus, "/") {
		return bus
	}
	return "/dev/i2c-" + bus
}
