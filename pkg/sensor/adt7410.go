package sensor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ericogr/adt7410-to-mqtt/pkg/adt7410"
	"github.com/ericogr/adt7410-to-mqtt/pkg/config"
	"github.com/ericogr/adt7410-to-mqtt/pkg/i2cbus"
	"periph.io/x/conn/v3/physic"
)

// ConversionTime is how long the ADT7410 needs for one conversion in
// continuous mode.
const ConversionTime = 240 * time.Millisecond

type ADT7410Sensor struct {
	mu        sync.Mutex
	transport i2cbus.Transport
	sensors   []sensorSettings
	length    uint
	samples   int
	strict    bool
	wait      func(time.Duration)
	now       func() time.Time
}

func NewADT7410Sensor(cfg config.Config) (Sensor, error) {
	var backend i2cbus.Backend
	switch cfg.I2C.Transport {
	case config.TransportDevFS:
		d, err := i2cbus.NewDevFS(cfg.I2C.Bus)
		if err != nil {
			return nil, err
		}
		backend = d
	default:
		p, err := i2cbus.NewPeriph(cfg.I2C.Bus)
		if err != nil {
			return nil, err
		}
		backend = p
	}
	return newADT7410Sensor(i2cbus.New(backend, byte(cfg.I2C.Register)), cfg), nil
}

func newADT7410Sensor(t i2cbus.Transport, cfg config.Config) *ADT7410Sensor {
	samples := cfg.Samples
	if samples < 1 {
		samples = 1
	}
	return &ADT7410Sensor{
		transport: t,
		sensors:   buildSensorSettings(cfg),
		length:    uint(cfg.I2C.Length),
		samples:   samples,
		strict:    cfg.StrictRange,
		wait:      time.Sleep,
		now:       time.Now,
	}
}

// Close is a no-op: the bus is only held for the duration of a transaction.
func (s *ADT7410Sensor) Close() error { return nil }

func (s *ADT7410Sensor) Read() ([]Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reading, 0, len(s.sensors))
	for _, ss := range s.sensors {
		r, err := s.readOne(ss)
		if err != nil {
			return nil, fmt.Errorf("sensor 0x%02x: %w", ss.address, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *ADT7410Sensor) readOne(ss sensorSettings) (Reading, error) {
	temps := make([]float64, 0, s.samples)
	var last []byte
	for i := 0; i < s.samples; i++ {
		if i > 0 {
			s.wait(ConversionTime)
		}
		buf, err := s.transport.Read(ss.address, s.length)
		if err != nil {
			return Reading{}, err
		}
		t, err := adt7410.Decode(buf)
		if err != nil {
			return Reading{}, err
		}
		if s.strict {
			if err := adt7410.CheckRange(t); err != nil {
				return Reading{}, err
			}
		}
		temps = append(temps, float64(t))
		last = buf
	}
	field, _ := adt7410.Field(last)
	status, _ := adt7410.Status(last)
	temp, std := summarize(temps, ss.offset)
	return Reading{
		Address:     int(ss.address),
		Name:        ss.name,
		Raw:         last,
		Field:       field,
		Status:      status,
		Temperature: temp,
		StdDev:      std,
		Timestamp:   s.now(),
	}, nil
}

// Sense fills env with the temperature of the first enabled sensor.
func (s *ADT7410Sensor) Sense(env *physic.Env) error {
	readings, err := s.Read()
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		return errors.New("sensor: no enabled sensors")
	}
	env.Temperature = readings[0].Temperature.Physic()
	return nil
}
