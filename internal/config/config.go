// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package config holds the process-wide configuration for the t31modem
// daemon: transport endpoints, timeout overrides, and ambient service
// settings (logging, metrics, tracing).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config stores the application configuration.
type Config struct {
	LogLevel LogLevel

	// DTE is the transport the AT command / data stream is read from.
	DTE DTEConfig

	// Audio is the 8kHz PCM line transport used outside of T.38 mode.
	Audio AudioConfig

	// T38 configures the packetized fax-relay transport. When Enabled is
	// false the session runs in audio mode.
	T38 T38Config

	// Timeouts overrides the session's three deadlines.
	Timeouts TimeoutConfig

	// Defaults seed the session's boolean mode flags before the DTE has
	// issued any AT commands.
	Defaults SessionDefaults

	Metrics MetricsConfig

	OTLPEndpoint string
}

// DTEConfig describes how the DTE byte stream is attached.
type DTEConfig struct {
	Transport DTETransport
	Address   string // device path for Serial, host:port for TCP
	BaudRate  int    // only meaningful for Transport == DTETransportSerial
}

// AudioConfig describes the 8kHz line-audio transport.
type AudioConfig struct {
	Transport AudioTransport
	Address   string // file path or host:port depending on Transport
}

// T38Config describes the T.38 IFP relay transport.
type T38Config struct {
	Enabled       bool
	ListenAddr    string
	PeerAddr      string
	WithoutPacing bool // true => TCP-style streaming, false => UDP pacing
}

// TimeoutConfig overrides the session's timing constants. A zero value
// means "use the built-in default"; each is resolved into session.Options by
// the caller that constructs the session (see cmd/root.go's buildRig).
type TimeoutConfig struct {
	MidReceiveTimeout time.Duration
	DTEDataTimeout    time.Duration
	AnswerTimeout     time.Duration // S7
}

// SessionDefaults seeds boolean session flags at startup.
type SessionDefaults struct {
	TransmitOnIdle  bool
	TEPMode         bool
	AdaptiveReceive bool
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool
	Bind    string
	Port    int
}

// Default returns the configuration a fresh install should start from.
func Default() Config {
	return Config{
		LogLevel: LogLevelInfo,
		DTE: DTEConfig{
			Transport: DTETransportStdio,
			BaudRate:  9600,
		},
		Audio: AudioConfig{
			Transport: AudioTransportUDP,
			Address:   "127.0.0.1:8000",
		},
		T38: T38Config{
			Enabled:       false,
			ListenAddr:    "0.0.0.0:10001",
			WithoutPacing: false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Bind:    "0.0.0.0",
			Port:    9112,
		},
	}
}

// FromEnv overlays environment variables onto Default().
func FromEnv() Config {
	cfg := Default()

	if v := os.Getenv("T31MODEM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = LogLevel(v)
	}
	if v := os.Getenv("T31MODEM_DTE_TRANSPORT"); v != "" {
		cfg.DTE.Transport = DTETransport(v)
	}
	if v := os.Getenv("T31MODEM_DTE_ADDRESS"); v != "" {
		cfg.DTE.Address = v
	}
	if v := os.Getenv("T31MODEM_DTE_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DTE.BaudRate = n
		}
	}
	if v := os.Getenv("T31MODEM_AUDIO_TRANSPORT"); v != "" {
		cfg.Audio.Transport = AudioTransport(v)
	}
	if v := os.Getenv("T31MODEM_AUDIO_ADDRESS"); v != "" {
		cfg.Audio.Address = v
	}
	if v := os.Getenv("T31MODEM_T38_ENABLED"); v != "" {
		cfg.T38.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("T31MODEM_T38_LISTEN"); v != "" {
		cfg.T38.ListenAddr = v
	}
	if v := os.Getenv("T31MODEM_T38_PEER"); v != "" {
		cfg.T38.PeerAddr = v
	}
	if v := os.Getenv("T31MODEM_T38_WITHOUT_PACING"); v != "" {
		cfg.T38.WithoutPacing = v == "true" || v == "1"
	}
	if v := os.Getenv("T31MODEM_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = n
		}
	}
	if v := os.Getenv("T31MODEM_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if d, ok := envDuration("T31MODEM_MID_RX_TIMEOUT"); ok {
		cfg.Timeouts.MidReceiveTimeout = d
	}
	if d, ok := envDuration("T31MODEM_DTE_DATA_TIMEOUT"); ok {
		cfg.Timeouts.DTEDataTimeout = d
	}
	if d, ok := envDuration("T31MODEM_ANSWER_TIMEOUT"); ok {
		cfg.Timeouts.AnswerTimeout = d
	}

	return cfg
}

// envDuration parses name as a Go duration string ("5s", "1m30s"),
// reporting ok only when the variable is set and parses.
func envDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
