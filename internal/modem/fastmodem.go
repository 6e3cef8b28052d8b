// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package modem

import "math"

// FastFamily identifies the V.17 / V.27ter / V.29 modulation family used
// by a fast-modem instance; the session-mode FSM picks the family and
// rate, the fast modem itself only needs enough to shape timing.
type FastFamily int

const (
	FastV27ter FastFamily = iota
	FastV29
	FastV17
)

// trainSamples approximates the carrier training run at 8 kHz for each
// family/short-train combination, matching the order of magnitude of the
// T.38 training-time table without reproducing exact QAM constellations:
// full symbol-accurate demodulation is outside this module's scope.
func trainSamples(family FastFamily, shortTrain bool) int64 {
	ms := 943
	if shortTrain {
		ms = 173
	}
	if family == FastV27ter {
		ms = 708
		if shortTrain {
			ms = 173
		}
	}
	return int64(ms) * sampleRate / 1000
}

// FastModulator is a stand-in transmitter for the fast fax modems. It
// reproduces the carrier-present/training/data timing envelope the
// session core depends on without claiming bit-accurate QAM modulation,
// which belongs to an external DSP library.
type FastModulator struct {
	src        BitSource
	family     FastFamily
	bitRate    int
	shortTrain bool
	phase      float64
	freq       float64
	trainLeft  int64
	done       bool
}

// NewFastModulator builds a transmitter for family at bitRate, pulling
// bits from src once training completes.
func NewFastModulator(src BitSource, family FastFamily, bitRate int, shortTrain bool) *FastModulator {
	return &FastModulator{
		src:        src,
		family:     family,
		bitRate:    bitRate,
		shortTrain: shortTrain,
		freq:       1800, // nominal carrier center frequency
		trainLeft:  trainSamples(family, shortTrain),
	}
}

// Done reports whether src has signaled EndOfData.
func (f *FastModulator) Done() bool { return f.done }

// Generate fills out with a training/data carrier envelope and returns
// len(out).
func (f *FastModulator) Generate(out []int16) int {
	amp := dBm0ToAmplitude(-10)
	symbolSamples := sampleRate / (f.bitRate / 4)
	if symbolSamples < 1 {
		symbolSamples = 1
	}
	samplesInSymbol := 0
	for i := range out {
		if f.done {
			out[i] = 0
			continue
		}
		if f.trainLeft > 0 {
			f.trainLeft--
			out[i] = int16(amp * 0.25 * math.Sin(f.phase))
		} else {
			if samplesInSymbol == 0 {
				bit := f.src.GetBit()
				if bit == EndOfData {
					f.done = true
					out[i] = 0
					continue
				}
				samplesInSymbol = symbolSamples
			}
			out[i] = int16(amp * math.Sin(f.phase))
			samplesInSymbol--
		}
		f.phase += 2 * math.Pi * f.freq / sampleRate
		if f.phase > 2*math.Pi {
			f.phase -= 2 * math.Pi
		}
	}
	return len(out)
}

// FastDemodulator is the dual-rail fast-modem receive counterpart. It
// reports EventTrainingSucceeded once its (approximated) training window
// elapses while the carrier stays present, then forwards zero bits for
// the remainder of the burst; real constellation decoding belongs to the
// external DSP layer this module stands in for.
type FastDemodulator struct {
	sink          BitSink
	family        FastFamily
	trainLeft     int64
	trained       bool
	symbolSamples int
	symbolPos     int
}

// NewFastDemodulator builds a receiver for family, delivering bits and
// sideband events to sink.
func NewFastDemodulator(sink BitSink, family FastFamily, bitRate int, shortTrain bool) *FastDemodulator {
	symbolSamples := sampleRate / (bitRate / 4)
	if symbolSamples < 1 {
		symbolSamples = 1
	}
	return &FastDemodulator{sink: sink, family: family, trainLeft: trainSamples(family, shortTrain), symbolSamples: symbolSamples}
}

// Trained reports whether the simulated training window has completed.
func (f *FastDemodulator) Trained() bool { return f.trained }

// Process consumes amp, counting down the training window and emitting
// EventTrainingSucceeded once it elapses with signal present.
func (f *FastDemodulator) Process(amp []int16) {
	var energy float64
	for _, s := range amp {
		v := float64(s)
		energy += v * v
	}
	if len(amp) > 0 {
		energy /= float64(len(amp))
	}
	if !f.trained {
		if energy < 1.0 {
			return // no signal yet; training clock only runs while carrier present
		}
		f.trainLeft -= int64(len(amp))
		if f.trainLeft <= 0 {
			f.trained = true
			f.sink.PutBit(int(EventTrainingSucceeded))
		}
		return
	}
	// Post-training: symbol-clocked placeholder bits stand in for real
	// constellation decoding, which belongs to an external DSP library.
	f.symbolPos += len(amp)
	for f.symbolPos >= f.symbolSamples {
		f.symbolPos -= f.symbolSamples
		f.sink.PutBit(Bit0)
	}
}
