// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Frame result labels
const (
	ResultOK       = "ok"
	ResultChecksum = "checksum"
	ResultStream   = "stream"
)

// AppMetrics holds the link and RPC counters
type AppMetrics struct {
	FramesTotal    *prometheus.CounterVec // labels: result=ok|checksum|stream
	BytesReceived  prometheus.Counter
	FramesSent     prometheus.Counter
	StaleTotal     prometheus.Counter
	SetParamsTotal *prometheus.CounterVec // labels: field, result=ok|error
	LinkConnected  prometheus.Gauge
	MQTTMessages   *prometheus.CounterVec // labels: direction=in|out
}

// NewAppMetrics registers and returns the application metrics
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mhiac_frames_total",
			Help: "Uplink frames decoded from the indoor unit.",
		}, []string{"result"}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mhiac_bytes_received_total",
			Help: "Total bytes read from the link.",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mhiac_frames_sent_total",
			Help: "Downlink frames written to the link.",
		}),
		StaleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mhiac_stale_total",
			Help: "Frames where the unit reported a change by the remote.",
		}),
		SetParamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mhiac_setparam_total",
			Help: "SetParams field updates.",
		}, []string{"field", "result"}),
		LinkConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mhiac_link_connected",
			Help: "1 while frames are arriving from the indoor unit.",
		}),
		MQTTMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mhiac_mqtt_messages_total",
			Help: "MQTT messages by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.FramesTotal, m.BytesReceived, m.FramesSent, m.StaleTotal, m.SetParamsTotal, m.LinkConnected, m.MQTTMessages)
	return m
}

// ObserveSet records the per-field outcome of a SetParams call
func (m *AppMetrics) ObserveSet(results map[string]bool) {
	if m == nil {
		return
	}
	for field, ok := range results {
		result := "ok"
		if !ok {
			result = "error"
		}
		m.SetParamsTotal.WithLabelValues(field, result).Inc()
	}
}

// SetConnected updates the link gauge
func (m *AppMetrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.LinkConnected.Set(1)
	} else {
		m.LinkConnected.Set(0)
	}
}

// ObserveFrame counts one decoded uplink frame by result
func (m *AppMetrics) ObserveFrame(result string, stale bool) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(result).Inc()
	if stale {
		m.StaleTotal.Inc()
	}
}

// ObserveBytes counts bytes read from the link
func (m *AppMetrics) ObserveBytes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesReceived.Add(float64(n))
}

// ObserveSent counts one downlink frame
func (m *AppMetrics) ObserveSent() {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
}

// ObserveMQTT counts one MQTT message, direction "in" or "out"
func (m *AppMetrics) ObserveMQTT(direction string) {
	if m == nil {
		return
	}
	m.MQTTMessages.WithLabelValues(direction).Inc()
}
