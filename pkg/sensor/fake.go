package sensor

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ericogr/adt7410-to-mqtt/pkg/adt7410"
	"github.com/ericogr/adt7410-to-mqtt/pkg/config"
)

// simulatedBus answers register reads like an ADT7410 sitting at room
// temperature.
type simulatedBus struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func (b *simulatedBus) Read(address byte, length uint) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := adt7410.Temperature(18 + b.rand.Float64()*10)
	buf := make([]byte, length)
	word := adt7410.Encode(t)
	copy(buf, word[:])
	if length > adt7410.RegID {
		buf[adt7410.RegID] = 0xCB
	}
	return buf, nil
}

// NewFakeSensor returns a sensor backed by a simulated bus. Samples go
// through the same decode path as real hardware.
func NewFakeSensor(cfg config.Config) (Sensor, error) {
	s := newADT7410Sensor(&simulatedBus{rand: rand.New(rand.NewSource(rand.Int63()))}, cfg)
	s.wait = func(time.Duration) {}
	return s, nil
}
