// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes this runtime's internal counters through
// prometheus/client_golang, the way gcsfuse's common/otel_metrics.go and
// common/oc_metrics.go expose GCS request metrics: a small set of
// registered collectors plus an optional HTTP handler for /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector this runtime registers. Only
// DispatchLatency and DispatchErrors are updated (by the grate
// dispatcher); nothing in this module sets NodePoolHighWater,
// FDOccupancy or PipeBlockSeconds, so they stay at their zero values.
type Metrics struct {
	NodePoolHighWater prometheus.Gauge
	FDOccupancy       *prometheus.GaugeVec // labeled by cage_id
	PipeBlockSeconds  prometheus.Histogram
	DispatchLatency   *prometheus.HistogramVec // labeled by syscall
	DispatchErrors    *prometheus.CounterVec   // labeled by syscall
}

// New registers every collector against reg and returns the bundle.
// Passing prometheus.NewRegistry() (rather than the global default
// registry) keeps metrics registration safe to call more than once in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		NodePoolHighWater: factory.NewGauge(prometheus.GaugeOpts{
			Name: "imfs_node_pool_high_water",
			Help: "Highest node-pool index ever allocated.",
		}),
		FDOccupancy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "imfs_fd_occupancy",
			Help: "Live file descriptors per cage.",
		}, []string{"cage_id"}),
		PipeBlockSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "imfs_pipe_read_block_seconds",
			Help:    "Time a pipe read spent busy-waiting for data or writer close.",
			Buckets: prometheus.DefBuckets,
		}),
		DispatchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grate_dispatch_latency_seconds",
			Help:    "Grate dispatcher handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"syscall"}),
		DispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grate_dispatch_errors_total",
			Help: "Grate dispatcher invocations that returned a negative result.",
		}, []string{"syscall"}),
	}
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
