// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestV21RoundTripRecoversFrame modulates an HDLC frame to line samples
// and demodulates it back, the full audio-path V.21 cycle.
func TestV21RoundTripRecoversFrame(t *testing.T) {
	payload := []byte{0xFF, 0x03, 0x2F, 0x10, 0x55}

	var frames [][]byte
	var oks []bool
	deframer := NewHDLCDeframer(func(frame []byte, fcsOK bool) {
		frames = append(frames, append([]byte{}, frame...))
		oks = append(oks, fcsOK)
	})
	demod := NewV21Demodulator(deframer)
	mod := NewV21Modulator(NewHDLCFramer(payload, 16))

	buf := make([]int16, 320)
	for i := 0; i < 300 && len(frames) == 0; i++ {
		mod.Generate(buf)
		demod.Process(buf)
	}

	require.NotEmpty(t, frames)
	assert.True(t, oks[0])
	require.Len(t, frames[0], len(payload)+2)
	assert.Equal(t, payload, frames[0][:len(payload)])
}

func TestV21DemodulatorReportsCarrierUpAndDown(t *testing.T) {
	var events []Event
	sink := sinkFunc(func(bit int) {
		if bit < 0 {
			events = append(events, Event(bit))
		}
	})
	demod := NewV21Demodulator(sink)
	mod := NewV21Modulator(NewHDLCFramer([]byte{0xFF, 0x03, 0x2F}, 16))

	buf := make([]int16, 320)
	for i := 0; i < 40; i++ {
		mod.Generate(buf)
		demod.Process(buf)
	}
	require.Contains(t, events, EventCarrierUp)

	quiet := make([]int16, 320)
	for i := 0; i < 40 && !containsEvent(events, EventCarrierDown); i++ {
		demod.Process(quiet)
	}
	assert.Contains(t, events, EventCarrierDown)
}

type sinkFunc func(bit int)

func (f sinkFunc) PutBit(bit int) { f(bit) }

func containsEvent(events []Event, want Event) bool {
	for _, e := range events {
		if e == want {
			return true
		}
	}
	return false
}

func TestFastDemodulatorTrainsOnlyWithSignalPresent(t *testing.T) {
	var trained bool
	sink := sinkFunc(func(bit int) {
		if Event(bit) == EventTrainingSucceeded {
			trained = true
		}
	})
	demod := NewFastDemodulator(sink, FastV29, 9600, false)

	quiet := make([]int16, 8000)
	demod.Process(quiet)
	assert.False(t, demod.Trained(), "training clock must not run without carrier")

	loud := make([]int16, 8000)
	for i := range loud {
		loud[i] = 5000
	}
	for i := 0; i < 3 && !demod.Trained(); i++ {
		demod.Process(loud)
	}
	assert.True(t, demod.Trained())
	assert.True(t, trained)
}
