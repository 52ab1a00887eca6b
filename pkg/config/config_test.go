package config

import (
	"reflect"
	"testing"
)

func TestParseKeyFloatMap(t *testing.T) {
	tests := []struct {
		in   string
		want map[int]float64
		ok   bool
	}{
		{"", map[int]float64{}, true},
		{"72=1.23,73=0.98", map[int]float64{72: 1.23, 73: 0.98}, true},
		{" 0x48 = 1 , 0x4a = -0.5", map[int]float64{0x48: 1.0, 0x4a: -0.5}, true},
		{"bad", nil, false},
		{"0x48=warm", nil, false},
	}
	for _, tt := range tests {
		got, err := parseKeyFloatMap(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseKeyFloatMap(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseKeyFloatMap(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseKeyBoolMap(t *testing.T) {
	tests := []struct {
		in   string
		want map[int]bool
		ok   bool
	}{
		{"", map[int]bool{}, true},
		{"0x48=true,0x49=false", map[int]bool{0x48: true, 0x49: false}, true},
		{"72=true, 74=true", map[int]bool{72: true, 74: true}, true},
		{"bad", nil, false},
	}
	for _, tt := range tests {
		got, err := parseKeyBoolMap(tt.in)
		if (err == nil) != tt.ok {
			t.Fatalf("parseKeyBoolMap(%q) ok=%v err=%v", tt.in, tt.ok, err)
		}
		if tt.ok && !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("parseKeyBoolMap(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseIntOrHex(t *testing.T) {
	for in, want := range map[string]int{"72": 72, "0x48": 0x48, "0X4B": 0x4b, " 0x49 ": 0x49} {
		got, err := parseIntOrHex(in)
		if err != nil || got != want {
			t.Fatalf("parseIntOrHex(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := parseIntOrHex("0xzz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("defaults changed by Load:\n got %+v\nwant %+v", cfg, DefaultConfig())
	}
	if cfg.I2C.Bus != "1" || cfg.I2C.Length != 12 || cfg.I2C.Register != 0 {
		t.Fatalf("i2c defaults: %+v", cfg.I2C)
	}
	if len(cfg.Sensors) != 1 || cfg.Sensors[0].Address != 0x48 {
		t.Fatalf("sensor defaults: %+v", cfg.Sensors)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load([]string{
		"-i2c-bus", "/dev/i2c-2",
		"-i2c-transport", "devfs",
		"-i2c-address", "0x48,0x49",
		"-calibration-offsets", "0x49=-0.5",
		"-enabled", "0x48=false",
		"-samples", "4",
		"-strict-range", "false",
		"-outputs", "console,mqtt",
		"-output-intervals", "mqtt=5000",
		"-interval-ms", "2000",
		"-hex-dump",
		"-mqtt-server", "tcp://broker:1883",
		"-mqtt-topic", "home/adt7410/%x",
		"-retries", "3",
		"-once",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.I2C.Bus != "/dev/i2c-2" || cfg.I2C.Transport != TransportDevFS {
		t.Fatalf("i2c: %+v", cfg.I2C)
	}
	want := []SensorConfig{
		{Address: 0x48, Enabled: false},
		{Address: 0x49, Enabled: true, CalibrationOffset: -0.5},
	}
	if !reflect.DeepEqual(cfg.Sensors, want) {
		t.Fatalf("sensors: %+v", cfg.Sensors)
	}
	if en := cfg.EnabledSensors(); len(en) != 1 || en[0].Address != 0x49 {
		t.Fatalf("enabled sensors: %+v", en)
	}
	if cfg.Samples != 4 || cfg.StrictRange || !cfg.Once || cfg.Retry.MaxRetries != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Outputs) != 2 {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if cfg.Outputs[0].IntervalMs != 2000 || !cfg.Outputs[0].HexDump {
		t.Fatalf("console output: %+v", cfg.Outputs[0])
	}
	m := cfg.Outputs[1]
	if m.IntervalMs != 5000 || m.MQTT == nil || m.MQTT.Server != "tcp://broker:1883" || m.MQTT.StateTopic != "home/adt7410/%x" {
		t.Fatalf("mqtt output: %+v %+v", m, m.MQTT)
	}
}

func TestLoadMQTTFlagsCreateOutput(t *testing.T) {
	cfg, err := Load([]string{"-mqtt-server", "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Outputs) != 2 || cfg.Outputs[1].Type != OutputMQTT {
		t.Fatalf("outputs: %+v", cfg.Outputs)
	}
	if cfg.Outputs[1].IntervalMs != cfg.IntervalMs {
		t.Fatalf("mqtt interval: %d", cfg.Outputs[1].IntervalMs)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := [][]string{
		{"-i2c-address", "0x80"},
		{"-i2c-address", "0x48,72"},
		{"-i2c-address", "nope"},
		{"-length", "1"},
		{"-register", "0x100"},
		{"-samples", "0"},
		{"-i2c-transport", "spi"},
		{"-sensor-type", "mock"},
		{"-outputs", "influx"},
		{"-strict-range", "maybe"},
		{"-interval-ms", "0"},
		{"-unknown-flag"},
	}
	for _, args := range cases {
		if _, err := Load(args); err == nil {
			t.Fatalf("Load(%v): expected error", args)
		}
	}
}
