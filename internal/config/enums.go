// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

// LogLevel represents the logging level for the application.
type LogLevel string

const (
	// LogLevelDebug is the debug logging level, providing detailed information.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the informational logging level, providing general information.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the warning logging level, indicating potential issues.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the error logging level, indicating serious issues.
	LogLevelError LogLevel = "error"
)

// DTETransport selects how the AT/data byte stream reaches the session.
type DTETransport string

const (
	// DTETransportStdio pipes the DTE stream over the process's stdin/stdout,
	// the simplest way to drive the emulator from a terminal or test harness.
	DTETransportStdio DTETransport = "stdio"
	// DTETransportSerial attaches to a real or pseudo TTY, the usual way a
	// class-1 DCE is wired to a DTE in practice.
	DTETransportSerial DTETransport = "serial"
	// DTETransportTCP exposes the DTE stream over a TCP listener.
	DTETransportTCP DTETransport = "tcp"
)

// AudioTransport selects the source/sink for 8kHz linear PCM line samples.
type AudioTransport string

const (
	// AudioTransportFile reads/writes raw PCM to/from a file, useful for tests.
	AudioTransportFile AudioTransport = "file"
	// AudioTransportUDP streams PCM frames over UDP.
	AudioTransportUDP AudioTransport = "udp"
)
