// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package modem holds the DSP-facing primitives the session-mode FSM wires
// up: tone and silence generators, the V.21 FSK modem, the fast (V.17 /
// V.27ter / V.29) modem, and the bit-level HDLC framer. These are plain
// bit-in/bit-out or sample-in/sample-out building blocks; they carry no
// T.30 or T.31 semantics of their own.
package modem

// BitSource is pulled by a transmit modem, one bit per call, to get the
// next bit to modulate. Returning EndOfData tells the modem to finish its
// current symbol and stop.
type BitSource interface {
	GetBit() int
}

// BitSink receives demodulated bits, one per call, from a receive modem.
// Values below zero are sideband Events rather than data bits.
type BitSink interface {
	PutBit(bit int)
}

// Bit values returned by BitSource.GetBit.
const (
	Bit0 = 0
	Bit1 = 1

	// EndOfData tells the transmit side that no more bits are available
	// and the current symbol should be the last one sent.
	EndOfData = 2
)

// Event values are delivered to BitSink.PutBit in place of a data bit to
// report demodulator state transitions.
type Event int

const (
	EventTrainingSucceeded Event = -1
	EventTrainingFailed    Event = -2
	EventCarrierUp         Event = -3
	EventCarrierDown       Event = -4
)

// Transmitter produces line samples into out, returning the number
// written. It is driven once per Session.Tx call.
type Transmitter interface {
	Generate(out []int16) int
}

// Receiver consumes line samples, driving its configured BitSink (and any
// other sideband reporting) as a side effect.
type Receiver interface {
	Process(amp []int16)
}
