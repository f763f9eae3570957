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

package pps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMonitor() *Monitor {
	ctx := NewMonitorContext(-1, "/dev/test", Hooks{})
	return newMonitor(ctx, nil, nil)
}

func TestCorrelateAcceptsFirstFix(t *testing.T) {
	m := newTestMonitor()
	wr := WaitResult{FixinReal: mkTS(100, 0), FixinClock: mkTS(100, 50_000_000)}
	delta, err := m.correlate(wr, mkTS(100, 60_000_000), false)
	require.Nil(t, err)
	require.Equal(t, mkTS(101, 0), delta.Real)
}

func TestCorrelateDedupsBySecond(t *testing.T) {
	m := newTestMonitor()
	wr := WaitResult{FixinReal: mkTS(100, 0), FixinClock: mkTS(100, 0)}
	_, err := m.correlate(wr, mkTS(100, 10_000_000), false)
	require.Nil(t, err)

	_, err = m.correlate(wr, mkTS(100, 20_000_000), false)
	require.NotNil(t, err)
	require.Equal(t, ClassClassifierReject, err.Class)
}

func TestCorrelateRejectsFiveHz(t *testing.T) {
	m := newTestMonitor()
	wr := WaitResult{FixinReal: mkTS(100, 0), FixinClock: mkTS(100, 0)}
	_, err := m.correlate(wr, mkTS(100, 10_000_000), true)
	require.NotNil(t, err)
}

func TestCorrelateRejectsClockWentBackwards(t *testing.T) {
	m := newTestMonitor()
	wr := WaitResult{FixinReal: mkTS(100, 0), FixinClock: mkTS(100, 500_000_000)}
	_, err := m.correlate(wr, mkTS(100, 100_000_000), false)
	require.NotNil(t, err)
}

func TestCorrelateStaleDelayBoundary(t *testing.T) {
	m := newTestMonitor()
	wr := WaitResult{FixinReal: mkTS(100, 0), FixinClock: mkTS(100, 0)}
	_, err := m.correlate(wr, mkTS(101, 100_000_000), false)
	require.NotNil(t, err, "delay of exactly (1s, 100ms) must be rejected")

	m2 := newTestMonitor()
	delta, err2 := m2.correlate(wr, mkTS(101, 99_999_999), false)
	require.Nil(t, err2, "delay just under (1s, 100ms) must be accepted")
	require.Equal(t, mkTS(101, 0), delta.Real)
}

func TestCorrelateAllowsAdvancingSeconds(t *testing.T) {
	m := newTestMonitor()
	wr1 := WaitResult{FixinReal: mkTS(100, 0), FixinClock: mkTS(100, 0)}
	_, err := m.correlate(wr1, mkTS(100, 10_000_000), false)
	require.Nil(t, err)

	wr2 := WaitResult{FixinReal: mkTS(101, 0), FixinClock: mkTS(101, 0)}
	delta, err := m.correlate(wr2, mkTS(101, 10_000_000), false)
	require.Nil(t, err)
	require.Equal(t, mkTS(102, 0), delta.Real)
}
