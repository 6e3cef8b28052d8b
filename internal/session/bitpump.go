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
)

// nonECMBitSource adapts the TX byte buffer to modem.BitSource, pulling
// one data bit per call, LSB-first within a byte.
type nonECMBitSource struct {
	s       *Session
	curByte byte
	bitPos  int
	haveByte bool
}

func (s *Session) newNonECMBitSource() *nonECMBitSource {
	return &nonECMBitSource{s: s}
}

// GetBit implements modem.BitSource per non_ecm_get_bit: pull the next
// byte from tx_data on a byte boundary; if none is available and
// data_final was set, report EndOfData (starts modem shutdown);
// otherwise fill with 0xFF before any real data has been sent, 0x00
// after, per T.31/T.30 convention.
func (b *nonECMBitSource) GetBit() int {
	if !b.haveByte {
		s := b.s
		if s.txOutBytes < s.txInBytes {
			b.curByte = s.txData[s.txOutBytes%TxBufLen]
			s.txOutBytes++
			s.txDataStarted = true
			s.checkFlowControlLowWater()
		} else if s.flags.dataFinal {
			return modem.EndOfData
		} else if !s.txDataStarted {
			b.curByte = 0xFF
		} else {
			b.curByte = 0x00
		}
		b.haveByte = true
		b.bitPos = 0
	}
	bit := int((b.curByte >> uint(b.bitPos)) & 1)
	b.bitPos++
	if b.bitPos == 8 {
		b.haveByte = false
	}
	return bit
}

// nonECMBitSink adapts the DTE delivery path to modem.BitSink, accumulating
// bits MSB-first into a byte and forwarding completed bytes to the DTE
// with DLE literals doubled, per non_ecm_put_bit.
type nonECMBitSink struct {
	s       *Session
	cur     byte
	bitPos  int
}

func (s *Session) newNonECMBitSink() *nonECMBitSink {
	return &nonECMBitSink{s: s}
}

// PutBit implements modem.BitSink. Negative values carry sideband events:
// TrainingSucceeded emits CONNECT and sets rxTrained; CarrierDown
// terminates the delivery with DLE-ETX, emits NO_CARRIER, and returns the
// FSM to OFFHOOK_COMMAND; TrainingFailed/CarrierUp are noted only.
func (b *nonECMBitSink) PutBit(bit int) {
	s := b.s
	switch modem.Event(bit) {
	case modem.EventTrainingSucceeded:
		s.flags.rxTrained = true
		s.atTx.PutResponseCode(atcmd.ResponseConnect)
		return
	case modem.EventCarrierDown:
		s.deliverDLEByte(etxByte, true)
		s.atTx.PutResponseCode(atcmd.ResponseNoCarrier)
		s.atRxMode = ATModeOffhookCommand
		s.flags.rxSignalPresent = false
		return
	case modem.EventTrainingFailed, modem.EventCarrierUp:
		return
	}
	if bit < 0 {
		return
	}
	b.cur = (b.cur << 1) | byte(bit&1)
	b.bitPos++
	if b.bitPos == 8 {
		out := b.cur
		b.cur = 0
		b.bitPos = 0
		s.deliverDLEByte(out, false)
	}
}

// deliverDLEBytes writes a run of literal bytes to the AT TX handler
// with each DLE doubled, for the T.38 non-ECM delivery path where whole
// chunks arrive at once instead of bit-by-bit.
func (s *Session) deliverDLEBytes(buf []byte) {
	out := make([]byte, 0, len(buf)+2)
	for _, b := range buf {
		if b == dleByte {
			out = append(out, dleByte, dleByte)
		} else {
			out = append(out, b)
		}
	}
	s.atTx.PutBytes(out)
}

// deliverDLEByte writes a single byte to the AT TX handler with DLE
// doubling, or (when raw) the literal two-byte DLE-ETX terminator.
func (s *Session) deliverDLEByte(b byte, rawEtx bool) {
	if rawEtx {
		s.atTx.PutBytes([]byte{dleByte, b})
		return
	}
	if b == dleByte {
		s.atTx.PutBytes([]byte{dleByte, dleByte})
		return
	}
	s.atTx.PutBytes([]byte{b})
}
