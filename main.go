package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ericogr/adt7410-to-mqtt/pkg/config"
	"github.com/ericogr/adt7410-to-mqtt/pkg/output"
	"github.com/ericogr/adt7410-to-mqtt/pkg/output/console"
	mqttout "github.com/ericogr/adt7410-to-mqtt/pkg/output/mqtt"
	"github.com/ericogr/adt7410-to-mqtt/pkg/sensor"
)

type outputEntry struct {
	Out        output.Output
	Type       string
	IntervalMs int
	last       time.Time
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Printf("config: %v", err)
		return 2
	}

	s, err := newSensor(cfg)
	if err != nil {
		log.Printf("sensor: %v", err)
		return 1
	}
	defer s.Close()

	interval := computeSensorInterval(cfg)
	if cfg.IntervalMs > interval {
		interval = cfg.IntervalMs
	}
	entries, err := initOutputs(&cfg, interval)
	if err != nil {
		log.Printf("outputs: %v", err)
		return 1
	}
	defer func() {
		for _, e := range entries {
			if err := e.Out.Close(); err != nil {
				log.Printf("close %s output: %v", e.Type, err)
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := sensor.RetryPolicy{
		MaxRetries: cfg.Retry.MaxRetries,
		Initial:    time.Duration(cfg.Retry.InitialMs) * time.Millisecond,
	}

	if cfg.Once {
		readings, err := sensor.ReadWithRetry(ctx, s, policy)
		if err != nil {
			log.Printf("read: %v", err)
			return 1
		}
		publish(entries, readings, time.Now())
		return 0
	}

	log.Printf("sampling %d sensor(s) on bus %s every %dms", len(cfg.EnabledSensors()), cfg.I2C.Bus, interval)
	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	defer ticker.Stop()
	for {
		readings, err := sensor.ReadWithRetry(ctx, s, policy)
		if err != nil {
			log.Printf("read: %v", err)
		} else {
			publish(entries, readings, time.Now())
		}
		select {
		case <-ctx.Done():
			log.Printf("shutting down")
			return 0
		case <-ticker.C:
		}
	}
}

func newSensor(cfg config.Config) (sensor.Sensor, error) {
	switch cfg.SensorType {
	case config.SensorSimulation:
		return sensor.NewFakeSensor(cfg)
	default:
		return sensor.NewADT7410Sensor(cfg)
	}
}

// computeSensorInterval returns the minimum time in ms one read cycle takes:
// every extra sample waits for a fresh conversion. Sensors on the same bus
// convert in parallel, so the count of sensors does not matter.
func computeSensorInterval(cfg config.Config) int {
	convMs := int(sensor.ConversionTime / time.Millisecond)
	if len(cfg.EnabledSensors()) == 0 || cfg.Samples < 1 {
		return convMs
	}
	return convMs * cfg.Samples
}

// initOutputs builds the configured outputs. No output publishes faster than
// the sensor is sampled.
func initOutputs(cfg *config.Config, sensorIntervalMs int) ([]*outputEntry, error) {
	entries := make([]*outputEntry, 0, len(cfg.Outputs))
	for i := range cfg.Outputs {
		o := &cfg.Outputs[i]
		if o.IntervalMs < sensorIntervalMs {
			o.IntervalMs = sensorIntervalMs
		}
		var out output.Output
		switch o.Type {
		case config.OutputConsole:
			out = console.NewConsole(o.HexDump)
		case config.OutputMQTT:
			mc := config.MQTTConfig{}
			if o.MQTT != nil {
				mc = *o.MQTT
			}
			m, err := mqttout.NewMQTT(mc, cfg.Sensors)
			if err != nil {
				closeEntries(entries)
				return nil, err
			}
			out = m
		default:
			closeEntries(entries)
			return nil, fmt.Errorf("unknown output type %q", o.Type)
		}
		entries = append(entries, &outputEntry{Out: out, Type: o.Type, IntervalMs: o.IntervalMs})
	}
	return entries, nil
}

func closeEntries(entries []*outputEntry) {
	for _, e := range entries {
		_ = e.Out.Close()
	}
}

// publish hands readings to every output whose interval has elapsed.
func publish(entries []*outputEntry, readings []sensor.Reading, now time.Time) {
	for _, e := range entries {
		if !e.last.IsZero() && now.Sub(e.last) < time.Duration(e.IntervalMs)*time.Millisecond {
			continue
		}
		if err := e.Out.Publish(readings); err != nil {
			log.Printf("publish %s: %v", e.Type, err)
			continue
		}
		e.last = now
	}
}
