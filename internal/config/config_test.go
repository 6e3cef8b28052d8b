// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config_test

import (
	"testing"
	"time"

	"github.com/gofax/t31modem/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = config.LogLevel("verbose")
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidLogLevel)
}

func TestValidateRequiresDTEAddressForSerial(t *testing.T) {
	cfg := config.Default()
	cfg.DTE.Transport = config.DTETransportSerial
	cfg.DTE.Address = ""
	assert.ErrorIs(t, cfg.Validate(), config.ErrDTEAddressRequired)
}

func TestValidateRequiresT38ListenAddrWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.T38.Enabled = true
	cfg.T38.ListenAddr = ""
	assert.ErrorIs(t, cfg.Validate(), config.ErrT38ListenRequired)
}

func TestValidateRejectsBadMetricsPort(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Port = 70000
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidMetricsPort)
}

func TestFromEnvParsesTimeoutOverrides(t *testing.T) {
	t.Setenv("T31MODEM_MID_RX_TIMEOUT", "3s")
	t.Setenv("T31MODEM_DTE_DATA_TIMEOUT", "2s")
	t.Setenv("T31MODEM_ANSWER_TIMEOUT", "not-a-duration")

	cfg := config.FromEnv()
	assert.Equal(t, 3*time.Second, cfg.Timeouts.MidReceiveTimeout)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.DTEDataTimeout)
	assert.Zero(t, cfg.Timeouts.AnswerTimeout, "unparseable override falls back to the built-in default")
}

func TestFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("T31MODEM_LOG_LEVEL", "debug")
	t.Setenv("T31MODEM_T38_ENABLED", "true")
	t.Setenv("T31MODEM_T38_LISTEN", "0.0.0.0:5000")

	cfg := config.FromEnv()
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
	assert.True(t, cfg.T38.Enabled)
	assert.Equal(t, "0.0.0.0:5000", cfg.T38.ListenAddr)
	assert.NoError(t, cfg.Validate())
}
