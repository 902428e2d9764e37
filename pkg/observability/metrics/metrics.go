// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "convgw"

// Metrics is a set of collectors bound to a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	conversationsStarted *prometheus.CounterVec
	messages             *prometheus.CounterVec
	toolCalls            *prometheus.CounterVec
	toolCallLatency      *prometheus.HistogramVec
	runStatus            *prometheus.CounterVec
	cleanupRemoved       prometheus.Counter
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

// New registers the collectors, plus Go and process collectors, on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		conversationsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_started_total",
			Help:      "Conversation start requests by result (created, resumed, error).",
		}, []string{"result"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_messages_total",
			Help:      "Posted messages by result.",
		}, []string{"result"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls resolved by function and result.",
		}, []string{"function", "result"}),
		toolCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Latency of tool call execution.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"function"}),
		runStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_status_total",
			Help:      "Settled provider runs by status.",
		}, []string{"status"}),
		cleanupRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_removed_total",
			Help:      "Conversations purged by cleanup.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConversationStarted(result string) {
	if m == nil {
		return
	}
	m.conversationsStarted.WithLabelValues(result).Inc()
}

func (m *Metrics) MessagePosted(result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(result).Inc()
}

func (m *Metrics) ToolCall(function, result string, seconds float64) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(function, result).Inc()
	m.toolCallLatency.WithLabelValues(function).Observe(seconds)
}

func (m *Metrics) RunSettled(status string) {
	if m == nil {
		return
	}
	m.runStatus.WithLabelValues(status).Inc()
}

func (m *Metrics) CleanupRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupRemoved.Add(float64(n))
}

func (m *Metrics) HTTPRequest(method, route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}
