// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package metrics exposes Prometheus counters/gauges for the session's
// modem-mode transitions, HDLC frame delivery, and T.38 packet flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the session-observability instruments.
type Metrics struct {
	ModemModeTransitionsTotal *prometheus.CounterVec
	HDLCFramesDeliveredTotal  prometheus.Counter
	HDLCFramesDroppedTotal    prometheus.Counter
	MidReceiveTimeoutsTotal   prometheus.Counter
	CarrierErrorsTotal        prometheus.Counter
	BufferHighWaterTotal      prometheus.Counter
	T38PacketsSentTotal       *prometheus.CounterVec
	T38PacketsReceivedTotal   *prometheus.CounterVec
	ActiveSessions            prometheus.Gauge
}

// New creates and registers the metrics instruments.
func New() *Metrics {
	m := &Metrics{
		ModemModeTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "t31modem_modem_mode_transitions_total",
			Help: "Number of modem-mode transitions, by destination mode",
		}, []string{"mode"}),
		HDLCFramesDeliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "t31modem_hdlc_frames_delivered_total",
			Help: "Number of HDLC frames delivered to the DTE or queued",
		}),
		HDLCFramesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "t31modem_hdlc_frames_dropped_total",
			Help: "Number of HDLC frames dropped (bad FCS, missing data, overflow)",
		}),
		MidReceiveTimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "t31modem_mid_receive_timeouts_total",
			Help: "Number of times a receive burst stalled past MID_RX_TIMEOUT",
		}),
		CarrierErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "t31modem_carrier_errors_total",
			Help: "Number of fast-modem-detected-as-V.21-preamble carrier errors",
		}),
		BufferHighWaterTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "t31modem_buffer_high_water_total",
			Help: "Number of times the TX byte buffer crossed its high-water mark",
		}),
		T38PacketsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "t31modem_t38_packets_sent_total",
			Help: "Number of T.38 IFP packets sent, by field type",
		}, []string{"type"}),
		T38PacketsReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "t31modem_t38_packets_received_total",
			Help: "Number of T.38 IFP packets received, by field type",
		}, []string{"type"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "t31modem_active_sessions",
			Help: "Number of currently active modem sessions",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.ModemModeTransitionsTotal,
		m.HDLCFramesDeliveredTotal,
		m.HDLCFramesDroppedTotal,
		m.MidReceiveTimeoutsTotal,
		m.CarrierErrorsTotal,
		m.BufferHighWaterTotal,
		m.T38PacketsSentTotal,
		m.T38PacketsReceivedTotal,
		m.ActiveSessions,
	)
}
