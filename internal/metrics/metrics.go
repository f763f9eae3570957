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

// Package metrics exports ppsmonitord's per-device counters over
// Prometheus's text format.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/ItWillBeSkrskr/gpsd/pps"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Exporter serves a Prometheus /metrics endpoint for one or more PPS
// monitor devices.
type Exporter struct {
	registry *prometheus.Registry

	published   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	fiveHzSeen  *prometheus.CounterVec
	offsetNS    *prometheus.GaugeVec
	lastPPSUnix *prometheus.GaugeVec
}

// New builds an Exporter with its collectors registered.
func New() *Exporter {
	e := &Exporter{registry: prometheus.NewRegistry()}

	e.published = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ppsout_count",
		Help: "number of pps pulses published",
	}, []string{"device"})

	e.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ppsout_rejected_count",
		Help: "number of edges or correlations rejected, by reason",
	}, []string{"device", "reason"})

	e.fiveHzSeen = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ppsout_fivehz_seen_count",
		Help: "number of classified-but-unpublished 5 Hz edges",
	}, []string{"device"})

	e.offsetNS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ppsout_offset_nanoseconds",
		Help: "real minus clock offset of the most recent published pulse",
	}, []string{"device"})

	e.lastPPSUnix = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ppsout_last_unix_seconds",
		Help: "unix timestamp of the most recently published pulse",
	}, []string{"device"})

	for _, c := range []prometheus.Collector{e.published, e.rejected, e.fiveHzSeen, e.offsetNS, e.lastPPSUnix} {
		e.registry.MustRegister(c)
	}
	return e
}

// ObservePublication records a successful publication.
func (e *Exporter) ObservePublication(device string, delta pps.TimeDelta) {
	e.published.WithLabelValues(device).Inc()
	offsetNS := (delta.Real.Sec-delta.Clock.Sec)*1_000_000_000 + int64(delta.Real.Nsec-delta.Clock.Nsec)
	e.offsetNS.WithLabelValues(device).Set(float64(offsetNS))
	e.lastPPSUnix.WithLabelValues(device).Set(float64(delta.Real.Sec))
}

// ObserveReject records a rejected edge or correlation, tagged with the
// reason string the classifier or correlator produced.
func (e *Exporter) ObserveReject(device, reason string) {
	e.rejected.WithLabelValues(device, reason).Inc()
}

// ObserveFiveHz records a classified, deliberately-unpublished 5 Hz edge.
func (e *Exporter) ObserveFiveHz(device string) {
	e.fiveHzSeen.WithLabelValues(device).Inc()
}

// ListenAndServe blocks serving /metrics on addr. It is meant to run in its
// own goroutine.
func (e *Exporter) ListenAndServe(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	log.Fatal(http.ListenAndServe(addr, mux)) //#nosec G114
}

// Hooks wires Publish/Log observation into a pps.Hooks value, composing
// with whatever hooks the caller already supplies (typically an
// ntpshm.Writer-backed Publish and a ppslog Log).
func (e *Exporter) Hooks(device string, base pps.Hooks) pps.Hooks {
	basePublish := base.Publish
	out := base
	out.Publish = func(d pps.TimeDelta) {
		e.ObservePublication(device, d)
		if basePublish != nil {
			basePublish(d)
		}
	}
	baseLog := base.Log
	out.Log = func(level pps.LogLevel, format string, args ...any) {
		// pps.Monitor only logs at LevelRaw for classifier/correlator
		// rejects (see pps/monitor.go); capture-transient failures such
		// as a failed kernel PPS fetch log at LevelWarn instead, so they
		// don't inflate this reject counter with unbounded error text.
		if level == pps.LevelRaw {
			msg := fmt.Sprintf(format, args...)
			e.ObserveReject(device, msg)
		}
		if baseLog != nil {
			baseLog(level, format, args...)
		}
	}
	return out
}
