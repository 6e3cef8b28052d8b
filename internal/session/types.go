// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package session implements the three interlocking state machines that
// bridge a DLE-stuffed DTE byte stream to a fax transport: the modem-mode
// FSM, the DTE-facing session FSM, and (in t38.go) the T.38 timed-step
// glue. It owns all per-call state; the AT interpreter, DSP primitives,
// and T.38 packetization layer are borrowed collaborators.
package session

// Mode identifies which of the logical modem behaviors is active.
type Mode int

const (
	ModeNone Mode = iota
	ModeFlush
	ModeSilenceTx
	ModeSilenceRx
	ModeCED
	ModeCNG
	ModeNoCNG
	ModeV21Tx
	ModeV17Tx
	ModeV27terTx
	ModeV29Tx
	ModeV21Rx
	ModeV17Rx
	ModeV27terRx
	ModeV29Rx
)

func (m Mode) String() string {
	names := [...]string{
		"NONE", "FLUSH", "SILENCE_TX", "SILENCE_RX", "CED", "CNG", "NOCNG",
		"V21_TX", "V17_TX", "V27TER_TX", "V29_TX",
		"V21_RX", "V17_RX", "V27TER_RX", "V29_RX",
	}
	if int(m) < 0 || int(m) >= len(names) {
		return "UNKNOWN_MODE"
	}
	return names[m]
}

// BitRate is one of the fax modem rates in bits per second.
type BitRate int

const (
	BitRateNone  BitRate = 0
	BitRate300   BitRate = 300
	BitRate2400  BitRate = 2400
	BitRate4800  BitRate = 4800
	BitRate7200  BitRate = 7200
	BitRate9600  BitRate = 9600
	BitRate12000 BitRate = 12000
	BitRate14400 BitRate = 14400
)

// ATRxMode is the DTE-facing session's inbound byte-interpretation mode.
type ATRxMode int

const (
	ATModeOnhookCommand ATRxMode = iota
	ATModeOffhookCommand
	ATModeHDLC
	ATModeStuffed
	ATModeDelivery
)

func (a ATRxMode) String() string {
	names := [...]string{"ONHOOK_COMMAND", "OFFHOOK_COMMAND", "HDLC", "STUFFED", "DELIVERY"}
	if int(a) < 0 || int(a) >= len(names) {
		return "UNKNOWN_AT_MODE"
	}
	return names[a]
}

// Fixed sizes from the data model.
const (
	TxBufLen        = 4096
	HDLCRxBufMaxLen = 256 - 2 // leaves room to read 2 FCS bytes past the end
	HighWaterMark   = TxBufLen - 1024
	LowWaterMark    = 1024
)

// flags groups the session booleans that are mutated from many call
// sites, with transition helpers instead of ad-hoc field writes.
type flags struct {
	dteIsWaiting      bool
	okIsPending       bool
	rxSignalPresent   bool
	rxTrained         bool
	dataFinal         bool
	rxMessageReceived bool
	ctsAsserted       bool
	awaitingSilence   bool
}

func (f *flags) reset() {
	f.rxSignalPresent = false
	f.rxTrained = false
	f.dataFinal = false
	f.rxMessageReceived = false
	f.awaitingSilence = false
}
