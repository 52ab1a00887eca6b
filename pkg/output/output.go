package output

import "github.com/ericogr/adt7410-to-mqtt/pkg/sensor"

// Output receives every reading set the sampler produces. Implementations
// live in the console and mqtt subpackages.
type Output interface {
	Publish([]sensor.Reading) error
	Close() error
}
