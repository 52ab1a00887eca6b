// Package adt7410 decodes temperature words read from an Analog Devices
// ADT7410 sensor.
//
// In its default 13-bit mode the sensor reports temperature as a two's
// complement value with 1/16 °C resolution, left aligned in the MSB/LSB
// register pair. The three low bits of the LSB carry the T_LOW, T_HIGH and
// T_CRIT comparator flags.
package adt7410

import (
	"errors"
	"fmt"
	"math"

	"periph.io/x/conn/v3/physic"
)

const (
	DefaultAddress = 0x48

	// SampleLength is the number of registers read in one burst (0x00-0x0B).
	SampleLength = 12

	RegTempMSB = 0x00
	RegTempLSB = 0x01
	RegStatus  = 0x02
	RegConfig  = 0x03
	RegID      = 0x0B

	// MinCelsius and MaxCelsius bound the datasheet operating range.
	MinCelsius = -55.0
	MaxCelsius = 150.0

	fieldBits  = 13
	signBit    = 1 << (fieldBits - 1)
	fieldMask  = 1<<fieldBits - 1
	resolution = 16.0
)

var (
	ErrTooShort   = errors.New("adt7410: sample too short")
	ErrOutOfRange = errors.New("adt7410: temperature out of range")
)

// Status flags carried in the low bits of the temperature LSB.
const (
	StatusTLow  = 1 << 0
	StatusTHigh = 1 << 1
	StatusTCrit = 1 << 2
)

// Temperature is a reading in degrees Celsius.
type Temperature float64

func (t Temperature) String() string {
	return fmt.Sprintf("%f℃", float64(t))
}

// Physic converts t to periph's fixed-point representation.
func (t Temperature) Physic() physic.Temperature {
	return physic.Temperature(math.Round(float64(t)*float64(physic.Celsius))) + physic.ZeroCelsius
}

// Field returns the unsigned 13-bit temperature field of sample.
func Field(sample []byte) (uint16, error) {
	if len(sample) < 2 {
		return 0, ErrTooShort
	}
	raw := uint16(sample[0])<<8 | uint16(sample[1])
	return raw >> 3, nil
}

// Status returns the comparator flag bits of sample.
func Status(sample []byte) (byte, error) {
	if len(sample) < 2 {
		return 0, ErrTooShort
	}
	return sample[1] & 0x07, nil
}

// Decode converts the first two bytes of sample to degrees Celsius. Only
// the length is checked; use CheckRange to reject implausible values.
func Decode(sample []byte) (Temperature, error) {
	field, err := Field(sample)
	if err != nil {
		return 0, err
	}
	v := int(field)
	if field&signBit != 0 {
		v -= 1 << fieldBits
	}
	return Temperature(float64(v) / resolution), nil
}

// Encode returns the MSB/LSB pair the sensor would report for t, rounded to
// the sensor's resolution. Values outside the 13-bit range are clamped.
func Encode(t Temperature) [2]byte {
	v := int(math.Round(float64(t) * resolution))
	if v > signBit-1 {
		v = signBit - 1
	}
	if v < -signBit {
		v = -signBit
	}
	raw := uint16(v&fieldMask) << 3
	return [2]byte{byte(raw >> 8), byte(raw)}
}

// CheckRange reports ErrOutOfRange when t lies outside what the sensor can
// physically measure, which usually points at a framing or bus error.
func CheckRange(t Temperature) error {
	if float64(t) < MinCelsius || float64(t) > MaxCelsius {
		return fmt.Errorf("%w: %v", ErrOutOfRange, t)
	}
	return nil
}
