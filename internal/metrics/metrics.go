// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of one process. Each instance owns its
// registry so tests do not share state.
type Metrics struct {
	registry      *prometheus.Registry
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	modelRequests *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	runs          *prometheus.CounterVec
}

// New creates and registers the toolloop metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolloop_tool_calls_total",
				Help: "Total number of dispatched tool calls",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolloop_tool_duration_seconds",
				Help:    "Duration of tool executions",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"tool"},
		),
		modelRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolloop_model_requests_total",
				Help: "Total number of chat completion requests",
			},
			[]string{"outcome"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolloop_tokens_total",
				Help: "Tokens reported by the model service",
			},
			[]string{"kind"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolloop_runs_total",
				Help: "Completed runs by final status",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(m.toolCalls, m.toolDuration, m.modelRequests, m.tokens, m.runs)
	return m
}

// ObserveToolCall records one dispatched call.
func (m *Metrics) ObserveToolCall(tool, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveModelRequest records one chat completion request.
func (m *Metrics) ObserveModelRequest(outcome string, promptTokens, completionTokens int) {
	m.modelRequests.WithLabelValues(outcome).Inc()
	if promptTokens > 0 {
		m.tokens.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.tokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

// ObserveRun records how a run ended.
func (m *Metrics) ObserveRun(status string) {
	m.runs.WithLabelValues(status).Inc()
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
