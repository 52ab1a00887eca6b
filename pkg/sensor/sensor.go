package sensor

import (
	"time"

	"github.com/ericogr/adt7410-to-mqtt/pkg/adt7410"
)

type Reading struct {
	Address     int                 `json:"address"`
	Name        string              `json:"name,omitempty"`
	Raw         []byte              `json:"raw"`
	Field       uint16              `json:"field"`
	Status      byte                `json:"status"`
	Temperature adt7410.Temperature `json:"temperature"`
	StdDev      float64             `json:"stddev,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

type Sensor interface {
	Read() ([]Reading, error)
	Close() error
}
