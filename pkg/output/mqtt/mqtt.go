package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"regexp"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/adt7410-to-mqtt/pkg/config"
	"github.com/ericogr/adt7410-to-mqtt/pkg/output"
	"github.com/ericogr/adt7410-to-mqtt/pkg/sensor"
)

const (
	// defaults
	DefaultServer     = "tcp://localhost:1883"
	DefaultClientID   = "adt7410-client"
	DefaultStateTopic = "adt7410/%02x"
	perSensorTopicFmt = "adt7410/%02x"
	disconnectQuiesce = 250
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	unitCelsius            = "°C"
	deviceClassTemperature = "temperature"
	stateClassMeasurement  = "measurement"
	valueTemplateTemp      = "{{ value_json.temperature }}"
)

type MQTTOutput struct {
	client         mqtt.Client
	stateTopic     string
	discoveryTopic string
}

func NewMQTT(cfg config.MQTTConfig, sensors []config.SensorConfig) (output.Output, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newWithClient(client, cfg, sensors), nil
}

func newWithClient(client mqtt.Client, cfg config.MQTTConfig, sensors []config.SensorConfig) *MQTTOutput {
	st := cfg.StateTopic
	if st == "" {
		st = DefaultStateTopic
	}
	m := &MQTTOutput{client: client, stateTopic: st, discoveryTopic: cfg.DiscoveryTopic}

	// Publish Home Assistant discovery payload(s) if requested
	if m.discoveryTopic != "" {
		if hasFormatter(m.discoveryTopic) {
			for i := range sensors {
				s := &sensors[i]
				if !s.Enabled {
					continue
				}
				dTopic := formatAddress(m.discoveryTopic, s.Address)
				payload := baseDiscoveryPayload(discoveryName(cfg, s), formatStateTopic(st, s.Address), discoveryUniqueID(cfg, s))
				if err := m.publishJSON(dTopic, true, payload); err != nil {
					log.Printf("mqtt discovery publish error: %v", err)
				}
			}
		} else {
			payload := baseDiscoveryPayload(discoveryName(cfg, nil), m.stateTopic, discoveryUniqueID(cfg, nil))
			if err := m.publishJSON(m.discoveryTopic, true, payload); err != nil {
				log.Printf("mqtt discovery publish error: %v", err)
			}
		}
	}
	return m
}

func (m *MQTTOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		payload := map[string]interface{}{
			"temperature": float64(r.Temperature),
			"raw":         r.Field,
			"status":      r.Status,
			"address":     r.Address,
			"timestamp":   r.Timestamp,
		}
		if r.Name != "" {
			payload["name"] = r.Name
		}
		if r.StdDev != 0 {
			payload["stddev"] = r.StdDev
		}
		if err := m.publishJSON(formatStateTopic(m.stateTopic, r.Address), false, payload); err != nil {
			return err
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesce)
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// addressVerb matches the integer verbs a topic may use for the sensor
// address, e.g. %d, %x or %02x.
var addressVerb = regexp.MustCompile(`%[0-9]*[dxX]`)

func hasFormatter(topic string) bool {
	return addressVerb.MatchString(topic)
}

// helper: format a state topic for a sensor address using an optional formatter
func formatStateTopic(base string, address int) string {
	if base == "" {
		return fmt.Sprintf(perSensorTopicFmt, address)
	}
	return formatAddress(base, address)
}

// formatAddress expands each address verb in topic; any other % is kept as is.
func formatAddress(topic string, address int) string {
	return addressVerb.ReplaceAllStringFunc(topic, func(verb string) string {
		return fmt.Sprintf(verb, address)
	})
}

// helper: build a human-friendly discovery name; if s != nil append the sensor
func discoveryName(cfg config.MQTTConfig, s *config.SensorConfig) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("ADT7410 %s", cfg.ClientID)
	}
	if s != nil {
		if s.Name != "" {
			name = fmt.Sprintf("%s %s", name, s.Name)
		} else {
			name = fmt.Sprintf("%s 0x%02x", name, s.Address)
		}
	}
	return name
}

// helper: build a unique id for discovery; if s != nil append the address
func discoveryUniqueID(cfg config.MQTTConfig, s *config.SensorConfig) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" && s != nil {
		uid = fmt.Sprintf("%s_%02x", uid, s.Address)
	}
	return uid
}

// helper: base discovery payload map common to all entries
func baseDiscoveryPayload(name, stateTopic, uniqueID string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyUnitOfMeasurement:   unitCelsius,
		keyDeviceClass:         deviceClassTemperature,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplateTemp,
		keyJSONAttributesTopic: stateTopic,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

// helper: marshal and publish JSON payload
func (m *MQTTOutput) publishJSON(topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.PublishRaw(topic, b, retained)
}
