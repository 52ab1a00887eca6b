package adt7410

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func fieldBytes(f uint16) []byte {
	raw := f << 3
	return []byte{byte(raw >> 8), byte(raw)}
}

func TestDecodeScenarios(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want Temperature
	}{
		{"positive", []byte{0x19, 0x00}, 50.0},
		{"negative", []byte{0xE7, 0x00}, -50.0},
		{"zero", []byte{0x00, 0x00}, 0},
		{"status bits ignored", []byte{0x19, 0x07}, 50.0},
		{"trailing padding ignored", []byte{0x19, 0x00, 0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0xcb}, 50.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeTooShort(t *testing.T) {
	for _, in := range [][]byte{nil, {}, {0x19}} {
		_, err := Decode(in)
		require.ErrorIs(t, err, ErrTooShort)
	}
	_, err := Field([]byte{1})
	assert.True(t, errors.Is(err, ErrTooShort))
	_, err = Status(nil)
	assert.True(t, errors.Is(err, ErrTooShort))
}

func TestDecodeAllFields(t *testing.T) {
	for f := uint16(0); f < 8192; f++ {
		got, err := Decode(fieldBytes(f))
		require.NoError(t, err)
		want := float64(f) / 16.0
		if f >= 4096 {
			want = (float64(f) - 8192) / 16.0
			require.Less(t, float64(got), 0.0, "field %d", f)
		} else {
			require.GreaterOrEqual(t, float64(got), 0.0, "field %d", f)
		}
		require.Equal(t, want, float64(got), "field %d", f)
	}
}

func TestDecodeRollover(t *testing.T) {
	got, err := Decode(fieldBytes(4095))
	require.NoError(t, err)
	assert.Equal(t, Temperature(255.9375), got)

	got, err = Decode(fieldBytes(4096))
	require.NoError(t, err)
	assert.Equal(t, Temperature(-256.0), got)
}

func TestEncodeRoundTrip(t *testing.T) {
	for c := -60.0; c <= 160.0; c += 0.37 {
		b := Encode(Temperature(c))
		got, err := Decode(b[:])
		require.NoError(t, err)
		assert.InDelta(t, c, float64(got), 1.0/16, "celsius %v", c)
	}
}

func TestEncodeKnownValues(t *testing.T) {
	assert.Equal(t, [2]byte{0x19, 0x00}, Encode(50))
	assert.Equal(t, [2]byte{0xE7, 0x00}, Encode(-50))
	// clamped to the 13-bit range
	assert.Equal(t, Encode(255.9375), Encode(1000))
	assert.Equal(t, Encode(-256), Encode(-1000))
}

func TestStatusAndField(t *testing.T) {
	st, err := Status([]byte{0x19, 0x05})
	require.NoError(t, err)
	assert.Equal(t, byte(StatusTLow|StatusTCrit), st)

	f, err := Field([]byte{0xE7, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint16(7392), f)
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(-55))
	assert.NoError(t, CheckRange(25.5))
	assert.NoError(t, CheckRange(150))
	assert.ErrorIs(t, CheckRange(-55.0625), ErrOutOfRange)
	assert.ErrorIs(t, CheckRange(255.9375), ErrOutOfRange)
}

func TestTemperatureFormatting(t *testing.T) {
	assert.Equal(t, "50.000000℃", Temperature(50).String())
	assert.Equal(t, "-0.062500℃", Temperature(-0.0625).String())
	assert.Equal(t, 37*physic.Celsius+physic.ZeroCelsius, Temperature(37).Physic())
}
