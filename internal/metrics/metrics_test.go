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

package metrics

import (
	"testing"

	"github.com/ItWillBeSkrskr/gpsd/pps"
	"github.com/ItWillBeSkrskr/gpsd/timespec"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObservePublicationUpdatesGauges(t *testing.T) {
	e := New()
	e.ObservePublication("/dev/ttyS0", pps.TimeDelta{
		Real:  timespec.T{Sec: 1_700_000_001, Nsec: 0},
		Clock: timespec.T{Sec: 1_700_000_000, Nsec: 950_000_000},
	})

	require.Equal(t, float64(1), testutil.ToFloat64(e.published.WithLabelValues("/dev/ttyS0")))
	require.Equal(t, float64(1_700_000_001), testutil.ToFloat64(e.lastPPSUnix.WithLabelValues("/dev/ttyS0")))
}

func TestHooksForwardsToBase(t *testing.T) {
	e := New()
	var published pps.TimeDelta
	base := pps.Hooks{Publish: func(d pps.TimeDelta) { published = d }}

	hooks := e.Hooks("/dev/ttyS0", base)
	delta := pps.TimeDelta{Real: timespec.T{Sec: 100}, Clock: timespec.T{Sec: 100}}
	hooks.Publish(delta)

	require.Equal(t, delta, published)
	require.Equal(t, float64(1), testutil.ToFloat64(e.published.WithLabelValues("/dev/ttyS0")))
}
