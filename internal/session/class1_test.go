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
	"testing"

	"github.com/gofax/t31modem/internal/atcmd"
	"github.com/gofax/t31modem/internal/modem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records every PutResponseCode/PutBytes call in order, for
// assertions against the exact response-code sequence a path emits.
type fakeSink struct {
	codes []atcmd.ResponseCode
	bytes [][]byte
}

func (f *fakeSink) PutResponseCode(c atcmd.ResponseCode) { f.codes = append(f.codes, c) }
func (f *fakeSink) PutBytes(b []byte)                    { f.bytes = append(f.bytes, append([]byte{}, b...)) }

// TestClass1SilenceTxUsesRequestedDuration: AT+FTS=8 must enter
// SILENCE_TX with a bounded 6400-sample generator and emit OK on
// exhaustion. Before the fix this read silenceTxSamples into the
// generator before it was set, so the first call always got an unbounded
// generator.
func TestClass1SilenceTxUsesRequestedDuration(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})

	require.True(t, s.ProcessClass1Cmd('S', true, 80))
	assert.Equal(t, ModeSilenceTx, s.mode)
	assert.Equal(t, int64(6400), s.silenceTxSamples)
	assert.Equal(t, ATModeOffhookCommand, s.atRxMode)

	buf := make([]int16, 6400)
	n := s.Tx(buf, len(buf))
	assert.Equal(t, 6400, n)
	assert.Contains(t, sink.codes, atcmd.ResponseOK)
}

func TestClass1SilenceRejectsNegativeVal(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	assert.False(t, s.ProcessClass1Cmd('S', true, -1))
}

// TestClass1HDLCReceiveEntersDelivery: AT+FRH=3 with no queued frames
// moves the session to DELIVERY with dte_is_waiting set, ready for a
// frame arriving over the audio path.
func TestClass1HDLCReceiveEntersDelivery(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	require.True(t, s.ProcessClass1Cmd('H', false, 3))
	assert.Equal(t, ModeV21Rx, s.mode)
	assert.Equal(t, ATModeDelivery, s.atRxMode)
	assert.True(t, s.flags.dteIsWaiting)
}

func TestClass1HDLCRejectsValOtherThan3(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	assert.False(t, s.ProcessClass1Cmd('H', true, 0))
}

func TestClass1ModulationRejectsUnmappedVal(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	assert.False(t, s.ProcessClass1Cmd(0, true, 999))
}

// TestClass1ModulationSendDrainsToOK: AT+FTM=96 enters STUFFED with
// CONNECT issued; DTE data followed by
// DLE-ETX sets data_final, but OK/OFFHOOK_COMMAND only follow once the
// fast modulator's bit pump itself reports EndOfData.
func TestClass1ModulationSendDrainsToOK(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})

	require.True(t, s.ProcessClass1Cmd(0, true, 96))
	assert.Equal(t, ModeV29Tx, s.mode)
	assert.Equal(t, ATModeStuffed, s.atRxMode)
	assert.Contains(t, sink.codes, atcmd.ResponseConnect)

	s.AtRx([]byte{0x01, 0x02, dleByte, etxByte})
	assert.True(t, s.flags.dataFinal)
	assert.Equal(t, ATModeStuffed, s.atRxMode, "OK must wait for the modem to drain, not fire on ETX itself")

	buf := make([]int16, 8000)
	for i := 0; i < 5 && s.atRxMode != ATModeOffhookCommand; i++ {
		s.Tx(buf, len(buf))
	}
	assert.Equal(t, ATModeOffhookCommand, s.atRxMode)
	assert.Contains(t, sink.codes, atcmd.ResponseOK)
}

// TestClass1SilenceAwaitedCompletesAfterEnoughQuietWindows exercises the
// power-meter-backed silence predicate added for the RX "pace silence"
// path (class-1 'S', receive direction): silence_heard must reach
// silence_awaited, counted in 10ms windows, before OK fires.
func TestClass1SilenceAwaitedCompletesAfterEnoughQuietWindows(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})

	require.True(t, s.ProcessClass1Cmd('S', false, 2))
	assert.Equal(t, ATModeDelivery, s.atRxMode)
	assert.True(t, s.flags.dteIsWaiting)
	assert.True(t, s.flags.awaitingSilence)

	quiet := make([]int16, modem.PowerMeterWindowSamples)
	s.Rx(quiet)
	assert.Equal(t, 1, s.silenceHeard)
	assert.True(t, s.flags.awaitingSilence)

	s.Rx(quiet)
	assert.Equal(t, 2, s.silenceHeard)
	assert.False(t, s.flags.awaitingSilence)
	assert.False(t, s.flags.dteIsWaiting)
	assert.Equal(t, ATModeOffhookCommand, s.atRxMode)
	assert.Contains(t, sink.codes, atcmd.ResponseOK)
}

// TestDeliveryAbortDoesNotDoubleOK: aborting DELIVERY parks the session
// in SILENCE_TX and answers OK once; the silence transmitter the abort
// path wires must not report a second OK when it runs out.
func TestDeliveryAbortDoesNotDoubleOK(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})
	require.True(t, s.ProcessClass1Cmd('H', false, 3))

	s.AtRx([]byte{'A'}) // any DTE byte aborts delivery
	assert.Equal(t, ModeSilenceTx, s.mode)
	assert.Equal(t, ATModeOffhookCommand, s.atRxMode)

	buf := make([]int16, 8000)
	s.Tx(buf, len(buf))
	s.Tx(buf, len(buf))

	okCount := 0
	for _, c := range sink.codes {
		if c == atcmd.ResponseOK {
			okCount++
		}
	}
	assert.Equal(t, 1, okCount)
}

// TestClass1SilenceTxBackToBackRewires: a second AT+FTS arriving while
// the session is still parked in SILENCE_TX must re-wire a fresh bounded
// generator (restartModem alone would no-op on the unchanged mode).
func TestClass1SilenceTxBackToBackRewires(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})

	require.True(t, s.ProcessClass1Cmd('S', true, 80))
	buf := make([]int16, 6400)
	s.Tx(buf, len(buf))

	require.True(t, s.ProcessClass1Cmd('S', true, 40))
	assert.Equal(t, ModeSilenceTx, s.mode)
	s.Tx(buf, 3200)

	okCount := 0
	for _, c := range sink.codes {
		if c == atcmd.ResponseOK {
			okCount++
		}
	}
	assert.Equal(t, 2, okCount)
}

// TestClass1ModulationSendResetsTxCursors: each new stuffed burst rewinds
// the raw tx_data cursors so the watermark boundaries hold per burst,
// and reasserts CTS if the previous burst left it off.
func TestClass1ModulationSendResetsTxCursors(t *testing.T) {
	var events []atcmd.ControlEvent
	s := Init(discardSink{}, func(e atcmd.ControlEvent) { events = append(events, e) }, nil, Options{})
	s.txInBytes = 4000
	s.txOutBytes = 4000
	s.txDataStarted = true
	s.flags.ctsAsserted = false

	require.True(t, s.ProcessClass1Cmd(0, true, 96))
	assert.Zero(t, s.txInBytes)
	assert.Zero(t, s.txOutBytes)
	assert.False(t, s.txDataStarted)
	assert.True(t, s.flags.ctsAsserted)
	assert.Contains(t, events, atcmd.ControlCTSOn)
}

func TestClass1SilenceAwaitedResetsOnNoise(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	require.True(t, s.ProcessClass1Cmd('S', false, 2))

	quiet := make([]int16, modem.PowerMeterWindowSamples)
	noisy := make([]int16, modem.PowerMeterWindowSamples)
	for i := range noisy {
		noisy[i] = 30000
	}

	s.Rx(quiet)
	assert.Equal(t, 1, s.silenceHeard)
	s.Rx(noisy)
	assert.Equal(t, 0, s.silenceHeard)
	assert.True(t, s.flags.awaitingSilence, "two windows requested, one noisy window must not complete the wait")
}
