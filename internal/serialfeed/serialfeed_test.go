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

package serialfeed

import (
	"testing"
	"time"

	"github.com/ItWillBeSkrskr/gpsd/timespec"
	"github.com/stretchr/testify/require"
)

func TestParseFixTimeRMC(t *testing.T) {
	line := "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	ts, ok := parseFixTime(line, time.Now())
	require.True(t, ok)
	require.Equal(t, timespec.T{Sec: time.Date(1994, 3, 23, 12, 35, 19, 0, time.UTC).Unix()}, ts)
}

func TestParseFixTimeZDA(t *testing.T) {
	line := "$GPZDA,201530.00,04,07,2002,00,00"
	now := time.Date(2002, 7, 4, 0, 0, 0, 0, time.UTC)
	ts, ok := parseFixTime(line, now)
	require.True(t, ok)
	want := time.Date(2002, 7, 4, 20, 15, 30, 0, time.UTC).Unix()
	require.Equal(t, timespec.T{Sec: want}, ts)
}

func TestParseFixTimeRejectsGarbage(t *testing.T) {
	_, ok := parseFixTime("not a sentence", time.Now())
	require.False(t, ok)

	_, ok = parseFixTime("$GPGGA,123519,A", time.Now())
	require.False(t, ok)
}
