// Copyright 2025 The Tsaudit Authors.
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

package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/researchspace/tsaudit/pkg/status"
)

// Metrics aggregates pipeline counters. Register one instance per process.
type Metrics struct {
	checks           *prometheus.CounterVec
	tsaRequests      *prometheus.CounterVec
	tsaLatency       prometheus.Histogram
	verifierFailures prometheus.Counter
}

// NewMetrics creates and registers pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsaudit",
			Name:      "checks_total",
			Help:      "Verification passes by resulting status code.",
		}, []string{"status"}),
		tsaRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tsaudit",
			Name:      "tsa_requests_total",
			Help:      "Timestamp authority requests by outcome.",
		}, []string{"outcome"}),
		tsaLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tsaudit",
			Name:      "tsa_request_seconds",
			Help:      "Timestamp authority request latency, including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		verifierFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tsaudit",
			Name:      "verifier_failures_total",
			Help:      "OpenSSL invocations that could not run to completion.",
		}),
	}
	reg.MustRegister(m.checks, m.tsaRequests, m.tsaLatency, m.verifierFailures)
	return m
}

func (m *Metrics) observeCheck(code status.Code) {
	m.checks.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

func (m *Metrics) observeTSARequest(d time.Duration, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.tsaRequests.WithLabelValues(outcome).Inc()
	m.tsaLatency.Observe(d.Seconds())
}

func (m *Metrics) observeVerifierFailure() {
	m.verifierFailures.Inc()
}
