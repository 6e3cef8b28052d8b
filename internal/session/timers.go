// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package session

import (
	"time"

	"github.com/gofax/t31modem/internal/atcmd"
)

// The three session deadlines' spec defaults, all expressed in 8 kHz
// samples (seconds for the answer timeout, which arms in whole seconds).
// A Session overrides these from Options when constructed.
const (
	defaultMidRxTimeoutSamples   = 15 * sampleRate
	defaultDTEDataTimeoutSamples = 5 * sampleRate
	defaultAnswerTimeoutS        = 60 // S7 register default
)

// samplesFromDuration converts d to a sample count at sampleRate, falling
// back to def when d is zero.
func samplesFromDuration(d time.Duration, def int64) int64 {
	if d <= 0 {
		return def
	}
	return int64(d / (time.Second / sampleRate))
}

// secondsFromDuration truncates d to whole seconds, falling back to def
// when d is zero.
func secondsFromDuration(d time.Duration, def int64) int64 {
	if d <= 0 {
		return def
	}
	return int64(d / time.Second)
}

// armMidReceiveTimeout arms the mid-burst inactivity deadline.
func (s *Session) armMidReceiveTimeout() {
	s.timeoutRxSamples = s.samples + s.midRxTimeoutSamples
}

// disarmMidReceiveTimeout clears the mid-burst deadline.
func (s *Session) disarmMidReceiveTimeout() {
	s.timeoutRxSamples = 0
}

// checkMidReceiveTimeout reports (and disarms) a stalled receive burst:
// 15s without expected frames logs and disarms.
func (s *Session) checkMidReceiveTimeout() {
	if s.timeoutRxSamples == 0 {
		return
	}
	if s.samples < s.timeoutRxSamples {
		return
	}
	s.timeoutRxSamples = 0
	if s.metrics != nil {
		s.metrics.MidReceiveTimeoutsTotal.Inc()
	}
	if s.log != nil {
		s.log.Warn("timeout mid-receive", "samples", s.samples)
	}
}

// armDTEDataTimeout arms the 5s inactivity deadline used while waiting
// for DTE bytes in HDLC transmit mode.
func (s *Session) armDTEDataTimeout() {
	s.dteDataDeadline = s.samples + s.dteDataTimeoutSamples
}

// disarmDTEDataTimeout clears the DTE-data deadline.
func (s *Session) disarmDTEDataTimeout() {
	s.dteDataDeadline = 0
}

// checkDTEDataTimeout reports ERROR and restarts into SILENCE_TX when the
// DTE has supplied no bytes within dteDataTimeoutSamples while in HDLC TX.
func (s *Session) checkDTEDataTimeout() {
	if s.dteDataDeadline == 0 || s.samples < s.dteDataDeadline {
		return
	}
	s.dteDataDeadline = 0
	s.atTx.PutResponseCode(atcmd.ResponseError)
	s.restartModem(ModeSilenceTx)
	s.atRxMode = ATModeOffhookCommand
}

// ArmAnswerTimeout arms the S7 off-hook-without-carrier deadline, in
// seconds, called when the session goes off-hook awaiting an answer tone.
// A non-positive seconds falls back to the configured/spec default, so a
// caller that hasn't yet read an S7 override can still arm a sane deadline.
func (s *Session) ArmAnswerTimeout(seconds int) {
	if seconds <= 0 {
		seconds = int(s.answerTimeoutDefaultS)
	}
	s.answerDeadline = s.samples + int64(seconds)*sampleRate
}

// checkAnswerTimeout emits NO_CARRIER and hangs up once S7 seconds have
// elapsed off-hook without finding a carrier.
func (s *Session) checkAnswerTimeout() {
	if s.answerDeadline == 0 || s.samples < s.answerDeadline {
		return
	}
	s.answerDeadline = 0
	s.atTx.PutResponseCode(atcmd.ResponseNoCarrier)
	if s.modemControl != nil {
		s.modemControl(atcmd.ControlHangup)
	}
	s.restartModem(ModeSilenceRx)
	s.atRxMode = ATModeOnhookCommand
}
