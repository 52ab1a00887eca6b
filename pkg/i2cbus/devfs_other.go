//go:build !linux

package i2cbus

import "errors"

// DevFS is only available on Linux.
type DevFS struct{}

func NewDevFS(bus string) (*DevFS, error) {
	return nil, errors.New("i2cbus: devfs transport requires linux")
}

func (d *DevFS) String() string { return "devfs" }

func (d *DevFS) Tx(address, register byte, buf []byte) error {
	return errors.New("i2cbus: devfs transport requires linux")
}
