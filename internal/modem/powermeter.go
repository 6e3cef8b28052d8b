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

// PowerMeterWindowSamples is 10ms at 8kHz, the unit silence waits are
// counted in.
const PowerMeterWindowSamples = sampleRate / 100

// SilenceThresholdDBm0 is the power-meter cutoff below which a 10ms
// window counts as silence.
const SilenceThresholdDBm0 = -36.0

// PowerMeter measures the RMS power of incoming line samples in
// consecutive 10ms windows, reporting each completed window's
// below-threshold verdict to a caller-supplied sink.
type PowerMeter struct {
	sumSquares float64
	count      int
}

// NewPowerMeter builds a power meter with an empty window.
func NewPowerMeter() *PowerMeter {
	return &PowerMeter{}
}

// Update folds amp into the current window, invoking onWindow(silent)
// once per completed PowerMeterWindowSamples window, where silent
// reports whether that window's RMS power was below SilenceThresholdDBm0.
func (p *PowerMeter) Update(amp []int16, onWindow func(silent bool)) {
	for _, s := range amp {
		p.sumSquares += float64(s) * float64(s)
		p.count++
		if p.count >= PowerMeterWindowSamples {
			rms := math.Sqrt(p.sumSquares / float64(p.count))
			onWindow(ampToDBm0(rms) < SilenceThresholdDBm0)
			p.sumSquares = 0
			p.count = 0
		}
	}
}

// ampToDBm0 is the inverse of dBm0ToAmplitude: it converts a linear
// amplitude (referencing full scale 32767 as 0 dBm0) to a power level in
// dBm0.
func ampToDBm0(amp float64) float64 {
	if amp <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amp/32767.0)
}
