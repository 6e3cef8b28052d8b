// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrInvalidDTETransport indicates that the provided DTE transport is not valid.
	ErrInvalidDTETransport = errors.New("invalid DTE transport provided")
	// ErrDTEAddressRequired indicates that a DTE address is required for the configured transport.
	ErrDTEAddressRequired = errors.New("DTE address is required for serial or tcp transport")
	// ErrInvalidAudioTransport indicates that the provided audio transport is not valid.
	ErrInvalidAudioTransport = errors.New("invalid audio transport provided")
	// ErrT38ListenRequired indicates that a T.38 listen address is required when T.38 is enabled.
	ErrT38ListenRequired = errors.New("T.38 listen address is required when T.38 mode is enabled")
	// ErrInvalidMetricsPort indicates that the provided metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
)

// Validate checks that the configuration is internally consistent. It does
// not reach out to the network or filesystem; that is deferred to the
// transports themselves when they open.
func (c Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}

	switch c.DTE.Transport {
	case DTETransportStdio:
	case DTETransportSerial, DTETransportTCP:
		if c.DTE.Address == "" {
			return ErrDTEAddressRequired
		}
	default:
		return ErrInvalidDTETransport
	}

	if !c.T38.Enabled {
		switch c.Audio.Transport {
		case AudioTransportFile, AudioTransportUDP:
		default:
			return ErrInvalidAudioTransport
		}
	}

	if c.T38.Enabled && c.T38.ListenAddr == "" {
		return ErrT38ListenRequired
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return ErrInvalidMetricsPort
	}

	return nil
}
