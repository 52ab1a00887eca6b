package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TransportPeriph = "periph"
	TransportDevFS  = "devfs"

	SensorReal       = "real"
	SensorSimulation = "simulation"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"
)

type MQTTConfig struct {
	Server            string `json:"server" yaml:"server"`
	Username          string `json:"username" yaml:"username"`
	Password          string `json:"password" yaml:"password"`
	ClientID          string `json:"client_id" yaml:"client_id"`
	StateTopic        string `json:"state_topic" yaml:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty" yaml:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty" yaml:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty" yaml:"discovery_unique_id,omitempty"`
}

type OutputConfig struct {
	Type       string      `json:"type" yaml:"type"`
	IntervalMs int         `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
	HexDump    bool        `json:"hex_dump,omitempty" yaml:"hex_dump,omitempty"`
	MQTT       *MQTTConfig `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// I2CConfig selects the bus and how a transaction is framed.
type I2CConfig struct {
	Bus       string `json:"bus" yaml:"bus"`
	Transport string `json:"transport" yaml:"transport"`
	Register  int    `json:"register" yaml:"register"`
	Length    int    `json:"length" yaml:"length"`
}

// SensorConfig describes one ADT7410 on the bus. Up to four can share a bus
// (0x48-0x4B).
type SensorConfig struct {
	Address           int     `json:"address" yaml:"address"`
	Name              string  `json:"name,omitempty" yaml:"name,omitempty"`
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	CalibrationOffset float64 `json:"calibration_offset" yaml:"calibration_offset"`
}

// sensorFields has SensorConfig's fields without its decode methods.
type sensorFields SensorConfig

// UnmarshalJSON decodes a sensor entry; enabled defaults to true when omitted.
func (s *SensorConfig) UnmarshalJSON(b []byte) error {
	v := sensorFields{Enabled: true}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = SensorConfig(v)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (s *SensorConfig) UnmarshalYAML(n *yaml.Node) error {
	v := sensorFields{Enabled: true}
	if err := n.Decode(&v); err != nil {
		return err
	}
	*s = SensorConfig(v)
	return nil
}

// RetryConfig is the caller-side retry policy for failed reads.
type RetryConfig struct {
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	InitialMs  int `json:"initial_ms" yaml:"initial_ms"`
}

type Config struct {
	I2C         I2CConfig      `json:"i2c" yaml:"i2c"`
	Sensors     []SensorConfig `json:"sensors" yaml:"sensors"`
	Samples     int            `json:"samples" yaml:"samples"`
	StrictRange bool           `json:"strict_range" yaml:"strict_range"`
	SensorType  string         `json:"sensor_type" yaml:"sensor_type"`
	IntervalMs  int            `json:"interval_ms" yaml:"interval_ms"`
	Outputs     []OutputConfig `json:"outputs" yaml:"outputs"`
	Retry       RetryConfig    `json:"retry" yaml:"retry"`
	// Once reads a single time and exits. Only settable by flag.
	Once bool `json:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		I2C: I2CConfig{
			Bus:       "1",
			Transport: TransportPeriph,
			Register:  0x00,
			Length:    12,
		},
		Sensors:     []SensorConfig{{Address: 0x48, Enabled: true}},
		Samples:     1,
		StrictRange: true,
		SensorType:  SensorReal,
		IntervalMs:  1000,
		Outputs:     []OutputConfig{{Type: OutputConsole, IntervalMs: 1000}},
		Retry:       RetryConfig{MaxRetries: 0, InitialMs: 100},
	}
}

// EnabledSensors returns the sensors that should be polled.
func (c Config) EnabledSensors() []SensorConfig {
	out := make([]SensorConfig, 0, len(c.Sensors))
	for _, s := range c.Sensors {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// LoadFromFlags loads configuration from the process command line.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[1:])
}

// Load reads an optional config file (JSON, or YAML by extension) and then
// applies flags from args on top of it.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("adt7410-to-mqtt", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON or YAML config file")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus (e.g., '1' -> /dev/i2c-1)")
	flagTransport := fs.String("i2c-transport", "", "I2C transport: periph|devfs")
	flagAddrs := fs.String("i2c-address", "", "Comma-separated sensor addresses (decimal or 0x hex)")
	flagRegister := fs.String("register", "", "Register pointer written before each read")
	flagLength := fs.Int("length", -1, "Bytes read per transaction")
	flagSamples := fs.Int("samples", -1, "Samples averaged per reading")
	flagStrict := fs.String("strict-range", "", "Reject readings outside -55..150 C (true|false)")
	flagOffsets := fs.String("calibration-offsets", "", "Per-address offsets e.g. 0x48=0.5,0x49=-0.25")
	flagEnabled := fs.String("enabled", "", "Per-address enable e.g. 0x48=true,0x49=false")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. console=1000,mqtt=5000")
	flagHexDump := fs.Bool("hex-dump", false, "Print raw bytes on the console output")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagInterval := fs.Int("interval-ms", -1, "Sampling interval in ms")
	flagRetries := fs.Int("retries", -1, "Retries after a failed read")
	flagRetryInitial := fs.Int("retry-initial-ms", -1, "Initial retry backoff in ms")
	flagOnce := fs.Bool("once", false, "Read once, publish and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		if err := loadFile(*cfgPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if *flagI2CBus != "" {
		cfg.I2C.Bus = *flagI2CBus
	}
	if *flagTransport != "" {
		cfg.I2C.Transport = strings.ToLower(*flagTransport)
	}
	if *flagAddrs != "" {
		sensors := make([]SensorConfig, 0)
		for _, p := range parseCSV(*flagAddrs) {
			v, err := parseIntOrHex(p)
			if err != nil {
				return cfg, fmt.Errorf("i2c-address: %w", err)
			}
			sensors = append(sensors, SensorConfig{Address: v, Enabled: true})
		}
		cfg.Sensors = sensors
	}
	if *flagRegister != "" {
		v, err := parseIntOrHex(*flagRegister)
		if err != nil {
			return cfg, fmt.Errorf("register: %w", err)
		}
		cfg.I2C.Register = v
	}
	if *flagLength != -1 {
		cfg.I2C.Length = *flagLength
	}
	if *flagSamples != -1 {
		cfg.Samples = *flagSamples
	}
	if *flagStrict != "" {
		v, err := strconv.ParseBool(*flagStrict)
		if err != nil {
			return cfg, fmt.Errorf("strict-range: %w", err)
		}
		cfg.StrictRange = v
	}
	if *flagOffsets != "" {
		m, err := parseKeyFloatMap(*flagOffsets)
		if err != nil {
			return cfg, fmt.Errorf("calibration-offsets: %w", err)
		}
		for i := range cfg.Sensors {
			if v, ok := m[cfg.Sensors[i].Address]; ok {
				cfg.Sensors[i].CalibrationOffset = v
			}
		}
	}
	if *flagEnabled != "" {
		m, err := parseKeyBoolMap(*flagEnabled)
		if err != nil {
			return cfg, fmt.Errorf("enabled: %w", err)
		}
		for i := range cfg.Sensors {
			if v, ok := m[cfg.Sensors[i].Address]; ok {
				cfg.Sensors[i].Enabled = v
			}
		}
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagOutputs != "" {
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p), IntervalMs: cfg.IntervalMs})
		}
		cfg.Outputs = outs
	}
	if *flagOutputIntervals != "" {
		for _, p := range parseCSV(*flagOutputIntervals) {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
			if err != nil {
				continue
			}
			for i := range cfg.Outputs {
				if cfg.Outputs[i].Type == strings.TrimSpace(kv[0]) {
					cfg.Outputs[i].IntervalMs = v
				}
			}
		}
	}
	if *flagHexDump {
		for i := range cfg.Outputs {
			if cfg.Outputs[i].Type == OutputConsole {
				cfg.Outputs[i].HexDump = true
			}
		}
	}
	applyMQTTFlags(&cfg, mqttFlags{
		server:   *flagMQTTServer,
		user:     *flagMQTTUser,
		pass:     *flagMQTTPass,
		clientID: *flagClientID,
		topic:    *flagTopic,
	})
	if *flagSensorType != "" {
		cfg.SensorType = strings.ToLower(*flagSensorType)
	}
	if *flagRetries != -1 {
		cfg.Retry.MaxRetries = *flagRetries
	}
	if *flagRetryInitial != -1 {
		cfg.Retry.InitialMs = *flagRetryInitial
	}
	cfg.Once = *flagOnce

	// ensure outputs have interval default
	for i := range cfg.Outputs {
		if cfg.Outputs[i].IntervalMs == 0 {
			cfg.Outputs[i].IntervalMs = cfg.IntervalMs
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	// lists from the file replace the defaults instead of merging into them
	sensors, outputs := cfg.Sensors, cfg.Outputs
	cfg.Sensors, cfg.Outputs = nil, nil
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	if cfg.Sensors == nil {
		cfg.Sensors = sensors
	}
	if cfg.Outputs == nil {
		cfg.Outputs = outputs
	}
	return nil
}

type mqttFlags struct {
	server, user, pass, clientID, topic string
}

func (f mqttFlags) empty() bool {
	return f == mqttFlags{}
}

func (f mqttFlags) apply(m *MQTTConfig) {
	if f.server != "" {
		m.Server = f.server
	}
	if f.user != "" {
		m.Username = f.user
	}
	if f.pass != "" {
		m.Password = f.pass
	}
	if f.clientID != "" {
		m.ClientID = f.clientID
	}
	if f.topic != "" {
		m.StateTopic = f.topic
	}
}

// applyMQTTFlags applies MQTT flags to all mqtt outputs; if none exist, one
// is created.
func applyMQTTFlags(cfg *Config, f mqttFlags) {
	if f.empty() {
		return
	}
	applied := false
	for i := range cfg.Outputs {
		if cfg.Outputs[i].Type != OutputMQTT {
			continue
		}
		if cfg.Outputs[i].MQTT == nil {
			cfg.Outputs[i].MQTT = &MQTTConfig{}
		}
		f.apply(cfg.Outputs[i].MQTT)
		applied = true
	}
	if !applied {
		out := OutputConfig{Type: OutputMQTT, IntervalMs: cfg.IntervalMs, MQTT: &MQTTConfig{}}
		f.apply(out.MQTT)
		cfg.Outputs = append(cfg.Outputs, out)
	}
}

// Validate checks configuration correctness without mutating it.
func Validate(cfg Config) error {
	switch cfg.I2C.Transport {
	case TransportPeriph, TransportDevFS:
	default:
		return fmt.Errorf("unknown i2c transport %q", cfg.I2C.Transport)
	}
	if cfg.I2C.Bus == "" {
		return errors.New("i2c bus must be set")
	}
	if cfg.I2C.Register < 0 || cfg.I2C.Register > 0xFF {
		return fmt.Errorf("register 0x%x out of range", cfg.I2C.Register)
	}
	if cfg.I2C.Length < 2 {
		return fmt.Errorf("length must be >= 2, got %d", cfg.I2C.Length)
	}
	seen := make(map[int]bool)
	for _, s := range cfg.Sensors {
		if s.Address < 0 || s.Address > 0x7F {
			return fmt.Errorf("sensor address 0x%x is not a 7-bit address", s.Address)
		}
		if seen[s.Address] {
			return fmt.Errorf("duplicate sensor address 0x%x", s.Address)
		}
		seen[s.Address] = true
	}
	if len(cfg.EnabledSensors()) == 0 {
		return errors.New("no enabled sensors")
	}
	if cfg.Samples < 1 {
		return errors.New("samples must be >= 1")
	}
	if cfg.IntervalMs <= 0 {
		return errors.New("interval-ms must be > 0")
	}
	switch cfg.SensorType {
	case SensorReal, SensorSimulation:
	default:
		return fmt.Errorf("unknown sensor type %q", cfg.SensorType)
	}
	for _, o := range cfg.Outputs {
		switch o.Type {
		case OutputConsole, OutputMQTT:
		default:
			return fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New("retries must be >= 0")
	}
	return nil
}

func parseIntOrHex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseKeyValues splits "k=v,k=v" into address-keyed raw values.
func parseKeyValues(s string) (map[int]string, error) {
	out := make(map[int]string)
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry %q", p)
		}
		k, err := parseIntOrHex(kv[0])
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", kv[0], err)
		}
		out[k] = strings.TrimSpace(kv[1])
	}
	return out, nil
}

func parseKeyFloatMap(s string) (map[int]float64, error) {
	kv, err := parseKeyValues(s)
	if err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(kv))
	for k, v := range kv {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %d: %w", k, err)
		}
		out[k] = f
	}
	return out, nil
}

func parseKeyBoolMap(s string) (map[int]bool, error) {
	kv, err := parseKeyValues(s)
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(kv))
	for k, v := range kv {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %d: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}
