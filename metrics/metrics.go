// Package metrics exposes the conductor's Prometheus instrumentation,
// following the registration style of the teacher's
// op-interop-mon/metrics package: a small interface backed by a real
// Prometheus implementation, plus a Noop implementation for tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "conductor"

// Metrics is the conductor's metrics surface.
type Metrics interface {
	RecordSoftHead(height uint64)
	RecordFirmHead(height uint64)
	RecordRPCCall(method string)
	RecordRPCError(method string)
	RecordVerification(result string)
	RecordCelestiaHeight(height uint64)
}

type prometheusMetrics struct {
	softHead     prometheus.Gauge
	firmHead     prometheus.Gauge
	celestiaHead prometheus.Gauge
	rpcCalls     *prometheus.CounterVec
	rpcErrors    *prometheus.CounterVec
	verify       *prometheus.CounterVec
}

// New registers the conductor's metrics against reg.
func New(reg prometheus.Registerer) Metrics {
	m := &prometheusMetrics{
		softHead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "soft_head", Help: "Highest rollup height executed from the soft path.",
		}),
		firmHead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "firm_head", Help: "Highest rollup height finalized from the firm path.",
		}),
		celestiaHead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "celestia_cursor_height", Help: "Next Celestia height the DA reader will process.",
		}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "execution_rpc_calls_total", Help: "Rollup execution RPC calls by method.",
		}, []string{"method"}),
		rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "execution_rpc_errors_total", Help: "Rollup execution RPC errors by method.",
		}, []string{"method"}),
		verify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "block_verifications_total", Help: "DA blob verification outcomes.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.softHead, m.firmHead, m.celestiaHead, m.rpcCalls, m.rpcErrors, m.verify)
	return m
}

func (m *prometheusMetrics) RecordSoftHead(height uint64)     { m.softHead.Set(float64(height)) }
func (m *prometheusMetrics) RecordFirmHead(height uint64)     { m.firmHead.Set(float64(height)) }
func (m *prometheusMetrics) RecordCelestiaHeight(height uint64) { m.celestiaHead.Set(float64(height)) }
func (m *prometheusMetrics) RecordRPCCall(method string)      { m.rpcCalls.WithLabelValues(method).Inc() }
func (m *prometheusMetrics) RecordRPCError(method string)     { m.rpcErrors.WithLabelValues(method).Inc() }
func (m *prometheusMetrics) RecordVerification(result string) { m.verify.WithLabelValues(result).Inc() }

// Noop is a Metrics implementation that discards everything, used in
// tests and whenever metrics are disabled.
type Noop struct{}

func (Noop) RecordSoftHead(uint64)       {}
func (Noop) RecordFirmHead(uint64)       {}
func (Noop) RecordCelestiaHeight(uint64) {}
func (Noop) RecordRPCCall(string)        {}
func (Noop) RecordRPCError(string)       {}
func (Noop) RecordVerification(string)   {}

var _ Metrics = Noop{}
