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
	"github.com/gofax/t31modem/internal/atcmd"
	"github.com/gofax/t31modem/internal/modem"
	"github.com/gofax/t31modem/internal/t38"
)

const (
	cngToneMillis    = 500
	cngSilenceMillis = 3000
	cngDBm0          = -11
	cedSilenceMillis = 200
	cedToneMillis    = 2600
	cedDBm0          = -11
	v21PreambleFlags = 32 // ~1s of flags at 300 baud, +/- 15%
)

// restartModem is the modem-mode FSM's only entry point. It is idempotent
// (a no-op if mode already equals newMode); otherwise it flushes the
// queued frame buffer, resets the per-burst flags, and installs the
// TX/RX handler pair appropriate for newMode.
func (s *Session) restartModem(newMode Mode) {
	if s.mode == newMode {
		return
	}
	s.queue = newRingQueue()
	s.flags.reset()
	s.rxHandler = noopReceiver{}
	s.fastDemod = nil
	s.v21Demod = nil
	s.mode = newMode

	if s.metrics != nil {
		s.metrics.ModemModeTransitionsTotal.WithLabelValues(newMode.String()).Inc()
	}

	// In T.38 mode the line audio path is bypassed entirely; the
	// timed-step pump below drives IFP emission directly off the same
	// hdlcTxBuf/txData byte buffers instead of an audio modulator.
	if !s.t38Mode {
		switch newMode {
		case ModeCNG:
			s.wireCNG()
		case ModeCED:
			s.wireCED()
		case ModeV21Tx:
			s.wireV21Tx()
		case ModeV21Rx:
			s.wireV21Rx()
		case ModeV17Tx:
			s.wireFastTx(modem.FastV17)
		case ModeV27terTx:
			s.wireFastTx(modem.FastV27ter)
		case ModeV29Tx:
			s.wireFastTx(modem.FastV29)
		case ModeV17Rx:
			s.wireFastRx(modem.FastV17)
		case ModeV27terRx:
			s.wireFastRx(modem.FastV27ter)
		case ModeV29Rx:
			s.wireFastRx(modem.FastV29)
		case ModeSilenceTx:
			s.wireSilenceTx()
		case ModeSilenceRx, ModeNoCNG:
			s.txHandler = modem.NewSilenceGenerator(0)
		case ModeFlush:
			s.txHandler = modem.NewSilenceGenerator(200 * sampleRate / 1000)
		}
	} else {
		s.onT38ModeChange(newMode)
	}
}

func (s *Session) wireCNG() {
	gen := modem.NewToneGenerator(1100, cngDBm0, cngToneMillis, cngSilenceMillis)
	s.txHandler = gen
	deframer := modem.NewHDLCDeframer(func(frame []byte, fcsOK bool) {
		// First valid HDLC preamble/frame drops CNG to plain V.21 receive.
		s.restartModem(ModeV21Rx)
		s.hdlcAccept(frame, fcsOK)
	})
	s.v21Demod = modem.NewV21Demodulator(deframer)
	s.rxHandler = noopReceiver{}
}

func (s *Session) wireCED() {
	gen := modem.NewToneGenerator(2100, cedDBm0, cedToneMillis, 0)
	s.txHandler = prependSilence{silence: modem.NewSilenceGenerator(cedSilenceMillis * sampleRate / 1000), tone: gen}
}

func (s *Session) wireV21Tx() {
	if len(s.hdlcTxBuf) <= s.hdlcTxPtr {
		// No frame from the DTE yet; hold the line silent until the first
		// DLE-ETX submits one.
		s.txHandler = modem.NewSilenceGenerator(0)
		s.hdlcTxResponded = true
		return
	}
	frame := append([]byte{}, s.hdlcTxBuf[s.hdlcTxPtr:]...)
	framer := modem.NewHDLCFramer(frame, v21PreambleFlags)
	s.txHandler = modem.NewV21Modulator(framer)
	s.hdlcTxBuf = s.hdlcTxBuf[:0]
	s.hdlcTxPtr = 0
	s.hdlcTxResponded = false
}

// beginHDLCTransmit sends the accumulated hdlcTxBuf frame over whichever
// transport is active: an audio V.21 modulator, or (in T.38 mode) the
// timed-step pump reading the same buffer directly.
func (s *Session) beginHDLCTransmit() {
	if s.t38Mode {
		if s.timedStep == t38.StepNone {
			s.currentTxIndicator = t38.IndV21Preamble
			s.enterStep(t38.StepHDLC1, 0)
		}
		return
	}
	if s.mode == ModeV21Tx {
		// Already transmitting: restartModem would no-op, so re-wire
		// explicitly to frame the next accumulated buffer.
		s.wireV21Tx()
		return
	}
	s.restartModem(ModeV21Tx)
}

func (s *Session) wireV21Rx() {
	deframer := modem.NewHDLCDeframer(func(frame []byte, fcsOK bool) {
		s.hdlcAccept(frame, fcsOK)
	})
	s.v21Demod = modem.NewV21Demodulator(&carrierWatchingSink{s: s, next: deframer})
}

// carrierWatchingSink intercepts the V.21 demodulator's sideband events
// to track rxSignalPresent and flush any deferred OK on carrier-down,
// forwarding data bits through to next unchanged.
type carrierWatchingSink struct {
	s    *Session
	next modem.BitSink
}

func (c *carrierWatchingSink) PutBit(bit int) {
	switch modem.Event(bit) {
	case modem.EventCarrierUp:
		c.s.flags.rxSignalPresent = true
		c.s.armMidReceiveTimeout()
	case modem.EventCarrierDown:
		c.s.flags.rxSignalPresent = false
		c.s.disarmMidReceiveTimeout()
		c.s.onCarrierDown()
	}
	c.next.PutBit(bit)
}

func (s *Session) wireFastTx(family modem.FastFamily) {
	src := s.newNonECMBitSource()
	s.txHandler = modem.NewFastModulator(src, family, int(s.bitRate), s.shortTrain)
}

// wireFastRx installs the dual-rail handler: the fast demodulator and a
// V.21 demodulator both run on every sample. The first to yield a signal
// wins; the other is discarded (see onFastTrained / onV21MessageDuringFastRx).
func (s *Session) wireFastRx(family modem.FastFamily) {
	sink := s.newNonECMBitSink()
	s.fastDemod = modem.NewFastDemodulator(sink, family, int(s.bitRate), s.shortTrain)
	deframer := modem.NewHDLCDeframer(func(frame []byte, fcsOK bool) {
		s.flags.rxMessageReceived = true
		s.onV21MessageDuringFastRx(frame, fcsOK)
	})
	s.v21Demod = modem.NewV21Demodulator(deframer)
}

// onFastTrained handles the fast demodulator reaching EventTrainingSucceeded
// first: the V.21 branch is discarded and the fast-only handler remains.
func (s *Session) onFastTrained() {
	if s.v21Demod == nil {
		return
	}
	s.v21Demod = nil
}

// onV21MessageDuringFastRx handles the V.21 branch delivering a frame
// before the fast demodulator trains: this is the adaptive-receive path.
// When adaptiveReceive is enabled, the dual-rail loses the race
// gracefully, reporting +FRH:3/CONNECT and switching to V.21-only; when
// disabled, it is reported as a carrier error (+FCERROR).
func (s *Session) onV21MessageDuringFastRx(frame []byte, fcsOK bool) {
	if s.fastDemod != nil {
		s.fastDemod = nil
	}
	if s.metrics != nil {
		s.metrics.CarrierErrorsTotal.Inc()
	}
	if s.adaptiveReceive {
		s.atTx.PutResponseCode(atcmd.ResponseFRH3)
		s.atTx.PutResponseCode(atcmd.ResponseConnect)
		s.mode = ModeV21Rx
		s.hdlcAccept(frame, fcsOK)
		return
	}
	s.atTx.PutResponseCode(atcmd.ResponseFCError)
}

// wireSilenceTx installs the SILENCE_TX transmitter. Only the class-1
// 'S' send path (which sets silenceReportOK before restarting) gets the
// OK-on-exhaustion wrapper; the abort and timeout paths that park the
// session in SILENCE_TX emit their own response and must not have a
// second OK fire behind them.
func (s *Session) wireSilenceTx() {
	if s.silenceReportOK {
		s.silenceReportOK = false
		s.txHandler = &silenceTxHandler{s: s, gen: modem.NewSilenceGenerator(s.silenceTxSamples)}
		return
	}
	s.txHandler = modem.NewSilenceGenerator(0)
}

// silenceTxHandler wraps a bounded silence generator installed for
// AT+FTS-style silence pacing (class1Silence send direction). Once the
// requested duration has been emitted it reports OK to the DTE exactly
// once and returns the session to OFFHOOK_COMMAND (tx returns silence,
// then OK is emitted on exhaustion).
type silenceTxHandler struct {
	s    *Session
	gen  *modem.SilenceGenerator
	done bool
}

func (h *silenceTxHandler) Generate(out []int16) int {
	n := h.gen.Generate(out)
	if !h.done && h.gen.Exhausted() {
		h.done = true
		h.s.atTx.PutResponseCode(atcmd.ResponseOK)
		h.s.atRxMode = ATModeOffhookCommand
	}
	return n
}

// noopReceiver implements modem.Receiver by discarding samples; it is
// installed whenever restartModem has no active receive handler.
type noopReceiver struct{}

func (noopReceiver) Process(amp []int16) {}

// prependSilence is a Transmitter that emits silence.Remaining samples of
// silence before handing generation over to tone for the remainder of the
// call (used for CED's 200ms lead-in).
type prependSilence struct {
	silence *modem.SilenceGenerator
	tone    modem.Transmitter
}

func (p prependSilence) Generate(out []int16) int {
	if !p.silence.Exhausted() {
		remaining := p.silence.Remaining()
		if remaining > int64(len(out)) {
			return p.silence.Generate(out)
		}
		n := p.silence.Generate(out[:remaining])
		rest := p.tone.Generate(out[n:])
		return n + rest
	}
	return p.tone.Generate(out)
}
