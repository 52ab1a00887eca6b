//go:build linux

package i2cbus

import (
	"golang.org/x/sys/unix"
)

// System calls used by DevFS; tests swap them out.
var (
	sysOpen  = unix.Open
	sysClose = unix.Close
	sysIoctl = unix.IoctlSetInt
	sysWrite = unix.Write
	sysRead  = unix.Read
)

// DevFS talks to the i2c-dev character device directly: open, I2C_SLAVE
// ioctl, pointer write, read, close.
type DevFS struct {
	path string
}

func NewDevFS(bus string) (*DevFS, error) {
	return &DevFS{path: DevicePath(bus)}, nil
}

func (d *DevFS) String() string { return d.path }

func (d *DevFS) Tx(address, register byte, buf []byte) (err error) {
	fd, err := sysOpen(d.path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return &IOError{Op: "open", Device: d.path, Err: err}
	}
	defer func() {
		if cerr := sysClose(fd); cerr != nil && err == nil {
			err = &IOError{Op: "close", Device: d.path, Err: cerr}
		}
	}()
	if err := sysIoctl(fd, I2CSlave, int(address)); err != nil {
		return &IOError{Op: "address", Device: d.path, Err: err}
	}
	n, err := sysWrite(fd, []byte{register})
	if err != nil {
		return &IOError{Op: "write", Device: d.path, Err: err}
	}
	if n != 1 {
		return &IOError{Op: "write", Device: d.path, Err: ErrShortWrite}
	}
	n, err = sysRead(fd, buf)
	if err != nil {
		return &IOError{Op: "read", Device: d.path, Err: err}
	}
	if n != len(buf) {
		return &IOError{Op: "read", Device: d.path, Err: ErrShortRead}
	}
	return nil
}
