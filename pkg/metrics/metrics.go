// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "logscope"

// SessionMetrics mirrors the pipeline and writer counters into prometheus.
// A nil *SessionMetrics is valid and records nothing.
type SessionMetrics struct {
	Enqueued    prometheus.Counter
	Dropped     prometheus.Counter
	Written     prometheus.Counter
	Flushes     prometheus.Counter
	WriteErrors prometheus.Counter
	QueueDepth  prometheus.Gauge
	Sessions    prometheus.Counter
}

// MakeSessionMetrics creates the collectors and registers them with reg (if non-nil)
func MakeSessionMetrics(reg prometheus.Registerer) (*SessionMetrics, error) {
	m := &SessionMetrics{
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lines_enqueued_total",
			Help:      "Log lines accepted into the pipeline.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lines_dropped_total",
			Help:      "Log lines rejected because the pipeline was full.",
		}),
		Written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lines_written_total",
			Help:      "Log lines written to the session file.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flushes_total",
			Help:      "Flushes of the session file to stable storage.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "write_errors_total",
			Help:      "Failed line writes or flushes.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "queue_depth",
			Help:      "Lines waiting in the pipeline.",
		}),
		Sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started by this process.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SessionMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Enqueued, m.Dropped, m.Written, m.Flushes, m.WriteErrors, m.QueueDepth, m.Sessions}
}

func (m *SessionMetrics) ObserveEnqueue(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.Enqueued.Inc()
	} else {
		m.Dropped.Inc()
	}
}

func (m *SessionMetrics) ObserveWrite(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WriteErrors.Inc()
		return
	}
	m.Written.Inc()
}

func (m *SessionMetrics) ObserveFlush(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WriteErrors.Inc()
		return
	}
	m.Flushes.Inc()
}

func (m *SessionMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *SessionMetrics) ObserveSessionStart() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}
