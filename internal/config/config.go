/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config reads the ppsmonitord daemon configuration.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// DeviceConfig describes one GNSS receiver to monitor.
type DeviceConfig struct {
	// Path is the serial device, e.g. /dev/ttyS0.
	Path string
	// BaudRate is the line speed used to open Path.
	BaudRate int
	// NTPUnit is the ntpd SHM driver-28 unit this device publishes to.
	NTPUnit int
}

// Config represents the configuration read from the daemon's yaml file.
type Config struct {
	// Devices are the receivers to monitor.
	Devices []DeviceConfig
	// LogLevel: debug, info, warning or error.
	LogLevel string
	// MetricsAddr is the host:port the Prometheus exporter listens on. A
	// blank value disables the exporter.
	MetricsAddr string
	// PidFile is where to write the daemon's pid.
	PidFile string
	// BootDelay postpones startup by this long after boot, giving serial
	// adapters and NTP time to settle.
	BootDelay time.Duration
}

// EvalAndValidate makes sure the config is usable.
func (c *Config) EvalAndValidate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("bad config: at least one device is required")
	}
	for i, d := range c.Devices {
		if d.Path == "" {
			return fmt.Errorf("bad config: devices[%d].path is required", i)
		}
		if d.BaudRate <= 0 {
			return fmt.Errorf("bad config: devices[%d].baudrate must be >0", i)
		}
		if d.NTPUnit < 0 {
			return fmt.Errorf("bad config: devices[%d].ntpunit must be >=0", i)
		}
	}
	switch c.LogLevel {
	case "", "debug", "info", "warning", "error":
	default:
		return fmt.Errorf("bad config: 'loglevel' %q is not recognized", c.LogLevel)
	}
	if c.BootDelay < 0 {
		return fmt.Errorf("bad config: 'bootdelay' must not be negative")
	}
	return nil
}

// Read reads and unmarshals the config at path.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Config{LogLevel: "warning", PidFile: "/var/run/ppsmonitord.pid"}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
