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

// Package serialfeed reads a GNSS receiver's in-band NMEA stream and stashes
// each fix's UTC time into a pps.MonitorContext, closing the loop between
// the serial line reader and the pulse-per-second worker.
package serialfeed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ItWillBeSkrskr/gpsd/pps"
	"github.com/ItWillBeSkrskr/gpsd/timespec"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// ListPorts returns the serial device paths visible to the host, for the
// CLI's list-ports subcommand.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Feeder opens a serial device, reads its NMEA stream line by line, and
// stashes each recognized fix time into ctx.
type Feeder struct {
	device string
	port   serial.Port
	ctx    *pps.MonitorContext
}

// Open opens device at baud and returns a Feeder bound to ctx.
func Open(device string, baud int, ctx *pps.MonitorContext) (*Feeder, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	return &Feeder{device: device, port: port, ctx: ctx}, nil
}

// Close closes the underlying serial port. The port is its own descriptor,
// separate from the MonitorContext's DeviceFD, so closing it does not
// unblock a Monitor's in-progress edge wait.
func (f *Feeder) Close() error {
	return f.port.Close()
}

// Run reads lines from the port until it errors (typically because Close
// was called), stashing a fix time for every recognized sentence. now is
// injected so tests can control the host-clock reading taken per fix.
func (f *Feeder) Run(now func() time.Time) error {
	scanner := bufio.NewScanner(f.port)
	for scanner.Scan() {
		line := scanner.Text()
		real, ok := parseFixTime(line, now())
		if !ok {
			continue
		}
		clockTS := timespec.FromUnix(now().Unix(), int32(now().Nanosecond())) //#nosec G115
		f.ctx.StashFixtime(real, clockTS)
		log.WithField("device", f.device).Debugf("stashed fix time %s", real)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// parseFixTime recognizes $--RMC and $--ZDA sentences and returns the UTC
// instant they carry. date comes from the reference clock reading `now`
// when the sentence itself doesn't carry a date (RMC does; many cheap
// receivers' ZDA implementations are unreliable about the date fields, so
// we only trust ZDA's time-of-day and keep the rest of now's date).
func parseFixTime(line string, now time.Time) (timespec.T, bool) {
	if len(line) < 7 || line[0] != '$' {
		return timespec.T{}, false
	}
	fields := strings.Split(line, ",")
	sentence := fields[0][3:]

	switch sentence {
	case "RMC":
		if len(fields) < 10 || fields[1] == "" || fields[9] == "" {
			return timespec.T{}, false
		}
		return parseRMC(fields[1], fields[9])
	case "ZDA":
		if len(fields) < 2 || fields[1] == "" {
			return timespec.T{}, false
		}
		return parseTimeOfDay(fields[1], now)
	default:
		return timespec.T{}, false
	}
}

func parseRMC(hhmmss, ddmmyy string) (timespec.T, bool) {
	if len(hhmmss) < 6 || len(ddmmyy) != 6 {
		return timespec.T{}, false
	}
	layout := "020106150405"
	t, err := time.Parse(layout, ddmmyy+hhmmss[:6])
	if err != nil {
		return timespec.T{}, false
	}
	return timespec.FromUnix(t.UTC().Unix(), 0), true
}

func parseTimeOfDay(hhmmss string, now time.Time) (timespec.T, bool) {
	if len(hhmmss) < 6 {
		return timespec.T{}, false
	}
	h, err1 := strconv.Atoi(hhmmss[0:2])
	m, err2 := strconv.Atoi(hhmmss[2:4])
	s, err3 := strconv.Atoi(hhmmss[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return timespec.T{}, false
	}
	u := now.UTC()
	t := time.Date(u.Year(), u.Month(), u.Day(), h, m, s, 0, time.UTC)
	return timespec.FromUnix(t.Unix(), 0), true
}
