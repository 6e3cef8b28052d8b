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

const sampleRate = 8000

// dBm0ToAmplitude converts a power level in dBm0 to a linear int16 peak
// amplitude, referencing full scale (32767) as 0 dBm0.
func dBm0ToAmplitude(dBm0 float64) float64 {
	return 32767.0 * math.Pow(10, dBm0/20.0)
}

// ToneGenerator emits a steady or pulsed sine tone, used for CED and CNG.
// A pulsed tone alternates toneMillis of signal with silenceMillis of
// silence; a zero silenceMillis makes it steady.
type ToneGenerator struct {
	freqHz       float64
	amplitude    float64
	toneSamples  int64
	silenceSamples int64
	phase        float64
	phaseStep    float64
	pos          int64
	done         bool
}

// NewToneGenerator builds a generator for a tone at freqHz and level
// dBm0, repeating toneMillis on / silenceMillis off.
func NewToneGenerator(freqHz, dBm0 float64, toneMillis, silenceMillis int) *ToneGenerator {
	return &ToneGenerator{
		freqHz:         freqHz,
		amplitude:      dBm0ToAmplitude(dBm0),
		toneSamples:    int64(toneMillis) * sampleRate / 1000,
		silenceSamples: int64(silenceMillis) * sampleRate / 1000,
		phaseStep:      2 * math.Pi * freqHz / sampleRate,
	}
}

// Done reports whether a non-repeating tone (silenceSamples == 0 and
// toneSamples set) has finished; repeating tones never report done.
func (t *ToneGenerator) Done() bool {
	return t.done
}

// Generate fills out with the tone/silence cycle and returns len(out).
func (t *ToneGenerator) Generate(out []int16) int {
	period := t.toneSamples + t.silenceSamples
	for i := range out {
		if period == 0 || t.done {
			out[i] = 0
			continue
		}
		cyclePos := t.pos % period
		if cyclePos < t.toneSamples {
			out[i] = int16(t.amplitude * math.Sin(t.phase))
			t.phase += t.phaseStep
			if t.phase > 2*math.Pi {
				t.phase -= 2 * math.Pi
			}
		} else {
			out[i] = 0
		}
		t.pos++
		if t.silenceSamples == 0 && t.pos >= t.toneSamples {
			t.done = true
		}
	}
	return len(out)
}
