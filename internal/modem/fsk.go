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

// V.21 channel-2 (fax control channel) mark/space tone pair and baud rate.
const (
	v21MarkHz  = 1650.0
	v21SpaceHz = 1850.0
	v21Baud    = 300
	v21DBm0    = -10.0

	v21CarrierOnThreshold  = 64.0
	v21CarrierOffThreshold = 16.0
	v21CarrierOffRunLen    = 80 // consecutive low-energy bit windows before reporting carrier-down
)

// V21Modulator generates the 300-baud FSK signal for HDLC preamble and
// frame transmission, pulling each bit from src.
type V21Modulator struct {
	src           BitSource
	samplesPerBit float64
	pos           float64
	phase         float64
	curFreq       float64
	done          bool
}

// NewV21Modulator builds a transmitter pulling bits from src.
func NewV21Modulator(src BitSource) *V21Modulator {
	return &V21Modulator{src: src, samplesPerBit: sampleRate / float64(v21Baud)}
}

// Done reports whether src has signaled EndOfData.
func (m *V21Modulator) Done() bool { return m.done }

// Generate fills out with FSK samples and returns len(out).
func (m *V21Modulator) Generate(out []int16) int {
	amp := dBm0ToAmplitude(v21DBm0)
	for i := range out {
		if m.done {
			out[i] = 0
			continue
		}
		if m.pos <= 0 {
			bit := m.src.GetBit()
			if bit == EndOfData {
				m.done = true
				out[i] = 0
				continue
			}
			freq := v21SpaceHz
			if bit == Bit1 {
				freq = v21MarkHz
			}
			m.curFreq = freq
			m.pos += m.samplesPerBit
		}
		out[i] = int16(amp * math.Sin(m.phase))
		m.phase += 2 * math.Pi * m.curFreq / sampleRate
		if m.phase > 2*math.Pi {
			m.phase -= 2 * math.Pi
		}
		m.pos--
	}
	return len(out)
}

// V21Demodulator recovers bits from a V.21 signal using per-bit Goertzel
// power comparison between the mark and space tones, and reports
// carrier-up/carrier-down sideband events to sink.
type V21Demodulator struct {
	sink          BitSink
	samplesPerBit float64
	nextEdge      float64 // samples until the current bit window closes
	buf           []float64
	carrierUp     bool
	lowRun        int
}

// NewV21Demodulator builds a receiver delivering bits and sideband events
// to sink.
func NewV21Demodulator(sink BitSink) *V21Demodulator {
	spb := sampleRate / float64(v21Baud)
	return &V21Demodulator{sink: sink, samplesPerBit: spb, nextEdge: spb, buf: make([]float64, 0, int(spb)+1)}
}

// Process consumes amp, emitting one bit (or sideband event) to sink per
// complete bit window. Window boundaries accumulate fractionally so the
// demodulator tracks the modulator's 26.67-sample bit period instead of
// drifting a third of a sample every bit.
func (d *V21Demodulator) Process(amp []int16) {
	for _, s := range amp {
		d.buf = append(d.buf, float64(s))
		d.nextEdge--
		if d.nextEdge > 0 {
			continue
		}
		d.nextEdge += d.samplesPerBit
		markPower := goertzelPower(d.buf, v21MarkHz, sampleRate)
		spacePower := goertzelPower(d.buf, v21SpaceHz, sampleRate)
		energy := markPower + spacePower

		switch {
		case energy >= v21CarrierOnThreshold:
			d.lowRun = 0
			if !d.carrierUp {
				d.carrierUp = true
				d.sink.PutBit(int(EventCarrierUp))
			}
			if markPower >= spacePower {
				d.sink.PutBit(Bit1)
			} else {
				d.sink.PutBit(Bit0)
			}
		case energy < v21CarrierOffThreshold:
			if d.carrierUp {
				d.lowRun++
				if d.lowRun >= v21CarrierOffRunLen {
					d.carrierUp = false
					d.lowRun = 0
					d.sink.PutBit(int(EventCarrierDown))
				}
			}
		}
		d.buf = d.buf[:0]
	}
}

// goertzelPower computes the single-bin Goertzel power of samples at
// freqHz for the given sample rate.
func goertzelPower(samples []float64, freqHz, rate float64) float64 {
	n := float64(len(samples))
	if n == 0 {
		return 0
	}
	w := 2 * math.Pi * freqHz / rate
	cw := math.Cos(w)
	coeff := 2 * cw
	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = coeff*s1 - s2 + x
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	return power / (n * n / 4)
}
