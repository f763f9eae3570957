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

// Package ppslog adapts pps.LogFunc onto the process-wide logrus logger,
// the way the rest of this codebase logs.
package ppslog

import (
	"fmt"

	"github.com/ItWillBeSkrskr/gpsd/pps"

	log "github.com/sirupsen/logrus"
)

// SetLevel maps a CLI-style level name onto logrus, fatal on an unknown
// value.
func SetLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", level)
	}
}

// New returns a pps.LogFunc that logs through logrus, tagged with the
// device it belongs to so multi-device daemons can tell sources apart.
func New(device string) pps.LogFunc {
	entry := log.WithField("device", device)
	return func(level pps.LogLevel, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		switch level {
		case pps.LevelError:
			entry.Error(msg)
		case pps.LevelWarn:
			entry.Warning(msg)
		case pps.LevelInfo:
			entry.Info(msg)
		case pps.LevelProgress:
			entry.Debug(msg)
		case pps.LevelRaw:
			entry.Trace(msg)
		default:
			entry.Debug(msg)
		}
	}
}
