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
	"log/slog"
	"time"

	"github.com/gofax/t31modem/internal/atcmd"
	"github.com/gofax/t31modem/internal/metrics"
	"github.com/gofax/t31modem/internal/modem"
	"github.com/gofax/t31modem/internal/t38"
)

const sampleRate = 8000

// Session owns every piece of per-call state described by the data
// model: modem selection, the DTE session FSM, the TX/HDLC byte buffers,
// dual-rail receive state, clocks, T.38 parameters, and the received
// frame queue. External handlers are borrowed for the session's lifetime.
type Session struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	atTx          atcmd.Sink
	modemControl  atcmd.ModemControlHandler
	t38Packets    t38.PacketHandler // nil unless t38Mode

	// Modem selection.
	mode       Mode
	bitRate    BitRate
	shortTrain bool

	txHandler modem.Transmitter
	rxHandler modem.Receiver

	// dual-rail receive state, populated only while mode is one of the
	// early V17/V27ter/V29 RX modes.
	fastDemod *modem.FastDemodulator
	v21Demod  *modem.V21Demodulator

	// powerMeter backs the RX "pace silence" wait (class-1 'S', receive
	// direction): it runs over every Rx call while flags.awaitingSilence
	// is set, independent of whichever demodulator is also listening.
	powerMeter *modem.PowerMeter

	// DTE session.
	atRxMode    ATRxMode
	transmit    bool // DTE is sending to us, vs. us delivering to it
	flags       flags
	dle         dleUnstuffer
	commandSink CommandSink

	// Transmit byte buffer.
	txData        [TxBufLen]byte
	txInBytes     int
	txOutBytes    int
	txDataStarted bool

	// HDLC TX/RX byte buffers.
	hdlcTxBuf       []byte
	hdlcTxPtr       int
	hdlcFinal       bool
	hdlcTxResponded bool // per-frame CONNECT/OK already sent for the current frame
	hdlcRxBuf   []byte
	missingData bool

	// Clocks, all in samples at 8 kHz unless noted.
	samples          int64
	callSamples      int64
	nextTxSamples    int64
	timeoutRxSamples int64 // 0 == disarmed
	silenceHeard     int   // in 10ms units
	silenceAwaited   int   // in 10ms units
	silenceTxSamples int64
	silenceReportOK  bool // next SILENCE_TX wiring reports OK on exhaustion
	dteDataDeadline  int64 // absolute sample count; 0 == disarmed
	answerDeadline   int64 // S7 timeout deadline; 0 == disarmed

	// T.38 parameters.
	t38Mode             bool
	timedStep           t38.TimedStep
	stepDeadlineSamples int64
	indicatorTxCount    int
	dataEndTxCount      int
	msPerTxChunk        int
	octetsPerDataPacket int
	useTEP              bool
	mergeTxFields       bool
	currentTxIndicator  t38.Indicator
	currentRxIndicator  t38.Indicator
	trailerBytes        int
	chunksSentInStep    int

	transmitOnIdle  bool
	adaptiveReceive bool

	// Overridable deadlines (samples/seconds), seeded from Options and
	// falling back to the defaults in timers.go when unset.
	midRxTimeoutSamples   int64
	dteDataTimeoutSamples int64
	answerTimeoutDefaultS int64

	queue *ringQueue
}

// Options bundles the construction-time dependencies of a Session beyond
// its three borrowed handlers.
type Options struct {
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	TransmitOnIdle  bool
	TEPMode         bool
	AdaptiveReceive bool
	MergeTxFields   bool

	// Timeout overrides. Zero means "use the built-in default" (see
	// defaultMidRxTimeoutSamples/defaultDTEDataTimeoutSamples/
	// defaultAnswerTimeoutS in timers.go).
	MidReceiveTimeout time.Duration
	DTEDataTimeout    time.Duration
	AnswerTimeout     time.Duration
}

// Init constructs a Session wired to the given borrowed handlers. t38Packets
// may be nil when the session never enters T.38 mode.
func Init(atTx atcmd.Sink, modemControl atcmd.ModemControlHandler, t38Packets t38.PacketHandler, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		log:                   log,
		metrics:               opts.Metrics,
		atTx:                  atTx,
		modemControl:          modemControl,
		t38Packets:            t38Packets,
		mode:                  ModeNone,
		atRxMode:              ATModeOnhookCommand,
		queue:                 newRingQueue(),
		powerMeter:            modem.NewPowerMeter(),
		useTEP:                opts.TEPMode,
		transmitOnIdle:        opts.TransmitOnIdle,
		adaptiveReceive:       opts.AdaptiveReceive,
		midRxTimeoutSamples:   samplesFromDuration(opts.MidReceiveTimeout, defaultMidRxTimeoutSamples),
		dteDataTimeoutSamples: samplesFromDuration(opts.DTEDataTimeout, defaultDTEDataTimeoutSamples),
		answerTimeoutDefaultS: secondsFromDuration(opts.AnswerTimeout, defaultAnswerTimeoutS),
	}
	s.flags.ctsAsserted = true
	s.setT38Pacing(false)
	s.mergeTxFields = opts.MergeTxFields
	s.restartModem(ModeSilenceRx)
	return s
}

// Rx ingests line audio samples. It is one of the session's three
// reentrancy-disjoint entry points and must not be called concurrently
// with Tx, AtRx, or the T.38 callbacks.
func (s *Session) Rx(amp []int16) {
	s.samples += int64(len(amp))
	s.callSamples += int64(len(amp))
	if s.rxHandler != nil {
		s.rxHandler.Process(amp)
	}
	if s.fastDemod != nil {
		s.fastDemod.Process(amp)
		if s.fastDemod.Trained() {
			s.onFastTrained()
		}
	}
	if s.v21Demod != nil {
		s.v21Demod.Process(amp)
	}
	if s.flags.awaitingSilence {
		s.powerMeter.Update(amp, s.onSilenceWindow)
	}
	s.checkMidReceiveTimeout()
	s.checkDTEDataTimeout()
	s.checkAnswerTimeout()
}

// Tx produces up to maxLen line audio samples into amp (which must have
// at least maxLen capacity) and returns the number written. When
// transmitOnIdle is set, the tail is padded with silence to maxLen.
func (s *Session) Tx(amp []int16, maxLen int) int {
	s.samples += int64(maxLen)
	n := 0
	if s.txHandler != nil {
		n = s.txHandler.Generate(amp[:maxLen])
	}
	s.checkNonECMTxDrain()
	s.checkHDLCTxDrain()
	if s.transmitOnIdle {
		for i := n; i < maxLen; i++ {
			amp[i] = 0
		}
		n = maxLen
	}
	return n
}

// checkNonECMTxDrain closes out a stuffed-data transmit: data_final (set
// by feedStuffedMode on DLE-ETX) only ends the STUFFED call once the
// active fast modulator's bit pump has itself drained and reported
// EndOfData, which starts modem shutdown.
func (s *Session) checkNonECMTxDrain() {
	if s.atRxMode != ATModeStuffed || !s.flags.dataFinal {
		return
	}
	done, ok := s.txHandler.(interface{ Done() bool })
	if !ok || !done.Done() {
		return
	}
	s.flags.dataFinal = false
	s.atRxMode = ATModeOffhookCommand
	s.atTx.PutResponseCode(atcmd.ResponseOK)
}

// checkHDLCTxDrain answers the DTE once the V.21 modulator has finished
// the current frame: OK (and back to OFFHOOK_COMMAND) for the final
// frame of a batch, CONNECT to prompt the next frame otherwise.
func (s *Session) checkHDLCTxDrain() {
	if s.atRxMode != ATModeHDLC || s.mode != ModeV21Tx || s.hdlcTxResponded {
		return
	}
	done, ok := s.txHandler.(interface{ Done() bool })
	if !ok || !done.Done() {
		return
	}
	s.hdlcTxResponded = true
	if s.hdlcFinal {
		s.disarmDTEDataTimeout()
		s.atRxMode = ATModeOffhookCommand
		s.atTx.PutResponseCode(atcmd.ResponseOK)
		return
	}
	s.armDTEDataTimeout()
	s.atTx.PutResponseCode(atcmd.ResponseConnect)
}

// AtRx ingests a run of DTE bytes per the current ATRxMode.
func (s *Session) AtRx(b []byte) {
	s.handleATRx(b)
}

// CallEvent notifies the session of a ring/answer/hangup transition.
func (s *Session) CallEvent(ev atcmd.CallEvent) {
	switch ev {
	case atcmd.CallEventAnswer:
		s.callSamples = 0
		s.answerDeadline = 0
	case atcmd.CallEventHangup:
		if s.log != nil && s.callSamples > 0 {
			s.log.Info("call ended", "duration", nowSamplesToDuration(s.callSamples))
		}
		s.callSamples = 0
		s.restartModem(ModeSilenceRx)
		s.atRxMode = ATModeOnhookCommand
		s.answerDeadline = 0
		s.timeoutRxSamples = 0
		s.dteDataDeadline = 0
	case atcmd.CallEventRing:
	}
}

// SetTransmitOnIdle controls whether Tx pads unfilled output with silence.
func (s *Session) SetTransmitOnIdle(v bool) { s.transmitOnIdle = v }

// SetTEPMode controls whether T.38 training-time lookups add the TEP
// extension.
func (s *Session) SetTEPMode(v bool) { s.useTEP = v }

// SetAdaptiveReceive controls the +FAR behavior: whether a carrier-error
// during dual-rail receive is reported as +FRH:3/CONNECT (true) or
// +FCERROR (false).
func (s *Session) SetAdaptiveReceive(v bool) { s.adaptiveReceive = v }

// SetT38Config switches between UDP pacing and TCP streaming timing:
// withoutPacing zeroes the indicator/end redundancy and inter-chunk
// delay for streaming transports. It also defaults mergeTxFields to the
// streaming case (true), since a reliable byte-stream transport has
// nothing to gain from redundant indicator copies but benefits from
// fewer, larger IFP messages; SetMergeTxFields overrides this afterwards.
func (s *Session) SetT38Config(withoutPacing bool) {
	s.setT38Pacing(withoutPacing)
	s.mergeTxFields = withoutPacing
}

// SetMergeTxFields controls whether the last HDLC data chunk of a frame
// is combined with its FCS field into a single multi-field IFP packet
// (true) or sent as two separate packets (false).
func (s *Session) SetMergeTxFields(v bool) { s.mergeTxFields = v }

func (s *Session) setT38Pacing(withoutPacing bool) {
	if withoutPacing {
		s.indicatorTxCount = 0
		s.dataEndTxCount = 1
		s.msPerTxChunk = 0
	} else {
		s.indicatorTxCount = 3
		s.dataEndTxCount = 3
		s.msPerTxChunk = 30
	}
	s.octetsPerDataPacket = 20
}

// T38SendTimeout advances the T.38 egress clock by samplesElapsed and
// drives the timed-step FSM (see t38pump.go).
func (s *Session) T38SendTimeout(samplesElapsed int64) {
	s.advanceT38Clock(samplesElapsed)
}

// Mode reports the currently active modem mode.
func (s *Session) Mode() Mode { return s.mode }

// CallSamples returns the number of samples elapsed since the most recent
// off-hook transition, consulted by the maintenance sweep to detect a
// session whose clock has stopped advancing.
func (s *Session) CallSamples() int64 { return s.callSamples }

// Release tears down the session's handlers; the borrowed external
// handlers are the caller's to dispose of.
func (s *Session) Release() {
	s.txHandler = nil
	s.rxHandler = nil
	s.fastDemod = nil
	s.v21Demod = nil
}

func nowSamplesToDuration(samples int64) time.Duration {
	return time.Duration(samples) * time.Second / sampleRate
}
