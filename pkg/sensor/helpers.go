package sensor

import (
	"github.com/ericogr/adt7410-to-mqtt/pkg/adt7410"
	"github.com/ericogr/adt7410-to-mqtt/pkg/config"
	"gonum.org/v1/gonum/stat"
)

// sensorSettings holds the per-address values taken from the config.
type sensorSettings struct {
	address byte
	name    string
	offset  float64
}

// buildSensorSettings returns the settings for every enabled sensor, in
// config order.
func buildSensorSettings(cfg config.Config) []sensorSettings {
	enabled := cfg.EnabledSensors()
	out := make([]sensorSettings, 0, len(enabled))
	for _, s := range enabled {
		out = append(out, sensorSettings{address: byte(s.Address), name: s.Name, offset: s.CalibrationOffset})
	}
	return out
}

// summarize averages the decoded samples and applies the calibration offset.
func summarize(temps []float64, offset float64) (adt7410.Temperature, float64) {
	mean, std := stat.MeanStdDev(temps, nil)
	if len(temps) < 2 {
		std = 0
	}
	return adt7410.Temperature(mean + offset), std
}
