package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ericogr/adt7410-to-mqtt/pkg/output"
	"github.com/ericogr/adt7410-to-mqtt/pkg/sensor"
)

type ConsoleOutput struct {
	w       io.Writer
	hexDump bool
}

func NewConsole(hexDump bool) output.Output {
	return &ConsoleOutput{w: os.Stdout, hexDump: hexDump}
}

func (c *ConsoleOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		name := ""
		if r.Name != "" {
			name = " name=" + r.Name
		}
		if _, err := fmt.Fprintf(c.w, "%s address=0x%02x%s temperature=%s\n", r.Timestamp.Format(time.RFC3339), r.Address, name, r.Temperature); err != nil {
			return err
		}
		if c.hexDump {
			if _, err := fmt.Fprintln(c.w, hexDump(r.Raw)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }

func hexDump(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}
