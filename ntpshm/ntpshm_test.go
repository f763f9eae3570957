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

package ntpshm

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestNTPSHMStruct(t *testing.T) {
	testBytes := []byte{1, 0, 0, 0, 240, 64, 0, 0, 189, 86, 202, 96, 0, 0, 0, 0, 51, 1, 0, 0, 0, 0, 0, 0, 189, 86, 202, 96, 0, 0, 0, 0, 34, 252, 0, 0, 0, 0, 0, 0, 236, 255, 255, 255, 3, 0, 0, 0, 0, 0, 0, 0, 121, 176, 4, 0, 182, 231, 216, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	testNTPSHM := NTPSHM{
		Mode:                 1,
		Count:                16624,
		ClockTimeStampSec:    1623873213,
		ClockTimeStampUSec:   307,
		ReceiveTimeStampSec:  1623873213,
		ReceiveTimeStampUSec: 64546,
		Leap:                 0,
		Precision:            -20,
		Nsamples:             3,
		Valid:                0,
		ClockTimeStampNSec:   307321,
		ReceiveTimeStampNSec: 64546742,
		Dummy:                [8]int32{0, 0, 0, 0, 0, 0, 0, 0},
	}

	s, err := ptrToNTPSHM(uintptr(unsafe.Pointer(&testBytes[0])))
	require.NoError(t, err)
	require.Equal(t, testNTPSHM, *s)

	require.True(t, time.Unix(1623873213, 307321).Equal(s.ClockTimeStamp()))
	require.True(t, time.Unix(1623873213, 64546742).Equal(s.ReceiveTimeStamp()))
}

func TestNTPSHMRoundTrip(t *testing.T) {
	s := &NTPSHM{
		Mode:                 1,
		Count:                7,
		ClockTimeStampSec:    1_700_000_001,
		ClockTimeStampNSec:   0,
		ReceiveTimeStampSec:  1_700_000_001,
		ReceiveTimeStampNSec: 50_000_000,
		Leap:                 LeapNoWarning,
		Precision:            -20,
		Nsamples:             3,
		Valid:                1,
	}
	b, err := ntpshmToBytes(s)
	require.NoError(t, err)
	require.Len(t, b, Size)

	got, err := ptrToNTPSHM(uintptr(unsafe.Pointer(&b[0])))
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestWriterReadBack(t *testing.T) {
	w, err := NewWriter(11)
	if err != nil {
		t.Skipf("no shm permissions in this environment: %v", err)
	}
	defer w.Close()

	clockTime := time.Unix(1_700_000_001, 0)
	receiveTime := time.Unix(1_700_000_001, 20_000_000)
	require.NoError(t, w.Write(clockTime, receiveTime, -20, LeapNoWarning))

	got, err := ptrToNTPSHM(w.shmptr)
	require.NoError(t, err)
	require.Equal(t, int32(1), got.Count)
	require.Equal(t, int32(1), got.Valid)
	require.True(t, clockTime.Equal(got.ClockTimeStamp()))
}
