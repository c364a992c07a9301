// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package analysis

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsAnalysis is a lazily-registered, sync.Once-guarded bundle of
// Prometheus collectors grouped by concern.
type metricsAnalysis struct {
	once sync.Once

	EnricherDuration *prometheus.HistogramVec
	BudgetBytesUsed  prometheus.Gauge
	RunsTotal        *prometheus.CounterVec
}

var defaultMetrics = &metricsAnalysis{}

func (m *metricsAnalysis) register(reg prometheus.Registerer) {
	m.once.Do(func() {
		m.EnricherDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tokmd",
			Subsystem: "analysis",
			Name:      "enricher_duration_seconds",
			Help:      "Duration of a single enricher's contribution to an analysis run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"enricher"})

		m.BudgetBytesUsed = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tokmd",
			Subsystem: "analysis",
			Name:      "budget_bytes_used",
			Help:      "Cumulative bytes consumed against the run's byte budget.",
		})

		m.RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tokmd",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Analysis runs by terminal status.",
		}, []string{"status"})

		if reg != nil {
			reg.MustRegister(m.EnricherDuration, m.BudgetBytesUsed, m.RunsTotal)
		}
	})
}

// observeEnricher records how long a single enricher took, when metrics
// registration has been configured for this run.
func observeEnricher(m *metricsAnalysis, name string, seconds float64) {
	if m == nil || m.EnricherDuration == nil {
		return
	}
	m.EnricherDuration.WithLabelValues(name).Observe(seconds)
}
