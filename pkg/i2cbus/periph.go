package i2cbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// OpenFunc opens a periph bus by name.
type OpenFunc func(name string) (i2c.BusCloser, error)

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Periph runs transactions through periph.io's registry of I²C buses.
type Periph struct {
	name string
	open OpenFunc
}

// NewPeriph initializes the host drivers and returns a backend for the named
// bus ("1", "I2C1" or "/dev/i2c-1").
func NewPeriph(name string) (*Periph, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	return &Periph{name: name, open: i2creg.Open}, nil
}

// NewPeriphWith uses open instead of the global registry. Host drivers are
// not initialized.
func NewPeriphWith(name string, open OpenFunc) *Periph {
	return &Periph{name: name, open: open}
}

func (p *Periph) String() string { return p.name }

func (p *Periph) Tx(address, register byte, buf []byte) (err error) {
	bus, err := p.open(p.name)
	if err != nil {
		return &IOError{Op: "open", Device: p.name, Err: err}
	}
	defer func() {
		if cerr := bus.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close", Device: p.name, Err: cerr}
		}
	}()
	dev := &i2c.Dev{Addr: uint16(address), Bus: bus}
	// periph issues the pointer write and the read as one combined transfer
	if err := dev.Tx([]byte{register}, buf); err != nil {
		return &IOError{Op: "read", Device: p.name, Err: err}
	}
	return nil
}
