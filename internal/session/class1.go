// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package session

import "github.com/gofax/t31modem/internal/atcmd"

// class1Family identifies the modulation family a class-1 command
// selects, independent of TX/RX direction.
type class1Family int

const (
	familyV27ter class1Family = iota
	familyV29
	familyV17
)

type class1Entry struct {
	family     class1Family
	rate       BitRate
	shortTrain bool
}

// class1Table maps the class-1 numeric parameter to (family, rate,
// short-train), per the ITU-T T.31 +FTM/+FRM value table.
var class1Table = map[int]class1Entry{
	24: {familyV27ter, BitRate2400, false},
	48: {familyV27ter, BitRate4800, false},
	72: {familyV29, BitRate7200, false},
	96: {familyV29, BitRate9600, false},

	73: {familyV17, BitRate7200, false},
	74: {familyV17, BitRate7200, true},
	97: {familyV17, BitRate9600, false},
	98: {familyV17, BitRate9600, true},

	121: {familyV17, BitRate12000, false},
	122: {familyV17, BitRate12000, true},
	145: {familyV17, BitRate14400, false},
	146: {familyV17, BitRate14400, true},
}

func (e class1Entry) txMode() Mode {
	switch e.family {
	case familyV27ter:
		return ModeV27terTx
	case familyV29:
		return ModeV29Tx
	default:
		return ModeV17Tx
	}
}

func (e class1Entry) rxMode() Mode {
	switch e.family {
	case familyV27ter:
		return ModeV27terRx
	case familyV29:
		return ModeV29Rx
	default:
		return ModeV17Rx
	}
}

// ProcessClass1Cmd dispatches a numeric class-1 command: operation is
// 'S' (pace silence), 'H' (HDLC), or 0 for the modulation lookup table;
// send selects the transmit direction. It returns false for an unmapped
// val, which the AT interpreter surfaces as ERROR.
func (s *Session) ProcessClass1Cmd(operation byte, send bool, val int) bool {
	switch operation {
	case 'S':
		return s.class1Silence(send, val)
	case 'H':
		if val != 3 {
			return false
		}
		return s.class1HDLC(send)
	default:
		return s.class1Modulation(send, val)
	}
}

func (s *Session) class1Silence(send bool, val int) bool {
	if val < 0 {
		return false
	}
	s.transmit = send
	if send {
		if val == 0 {
			s.atTx.PutResponseCode(atcmd.ResponseOK)
			s.atRxMode = ATModeOffhookCommand
			return true
		}
		s.silenceTxSamples = int64(val) * 80
		s.silenceReportOK = true
		if s.mode == ModeSilenceTx {
			// Already silent: restartModem would no-op, so re-wire the
			// bounded generator explicitly, as beginHDLCTransmit does for
			// back-to-back V.21 frames.
			s.wireSilenceTx()
		} else {
			s.restartModem(ModeSilenceTx)
		}
		s.atRxMode = ATModeOffhookCommand
		return true
	}
	s.atRxMode = ATModeDelivery
	s.flags.dteIsWaiting = true
	s.flags.awaitingSilence = true
	s.silenceAwaited = val
	s.silenceHeard = 0
	s.tryDeliverFromQueue()
	return true
}

// onSilenceWindow is the power meter's per-10ms-window callback while
// awaiting silence (class-1 'S', receive direction): silence_heard
// advances on a below-threshold window and resets on any other. Once it
// reaches silence_awaited, the DELIVERY wait resolves with OK.
func (s *Session) onSilenceWindow(silent bool) {
	if !s.flags.awaitingSilence {
		return
	}
	if silent {
		s.silenceHeard++
	} else {
		s.silenceHeard = 0
	}
	if s.silenceHeard >= s.silenceAwaited {
		s.flags.awaitingSilence = false
		s.flags.dteIsWaiting = false
		s.atRxMode = ATModeOffhookCommand
		s.atTx.PutResponseCode(atcmd.ResponseOK)
	}
}

func (s *Session) class1HDLC(send bool) bool {
	s.transmit = send
	if send {
		s.restartModem(ModeV21Tx)
		s.atTx.PutResponseCode(atcmd.ResponseConnect)
		s.atRxMode = ATModeHDLC
		s.armDTEDataTimeout()
		return true
	}
	s.restartModem(ModeV21Rx)
	s.atRxMode = ATModeDelivery
	s.flags.dteIsWaiting = true
	s.tryDeliverFromQueue()
	return true
}

func (s *Session) class1Modulation(send bool, val int) bool {
	entry, ok := class1Table[val]
	if !ok {
		return false
	}
	s.transmit = send
	s.bitRate = entry.rate
	s.shortTrain = entry.shortTrain
	if send {
		// Fresh burst: the watermark comparisons in hdlc.go read the raw
		// cursors, so both rewind to zero and CTS reasserts here.
		s.txInBytes = 0
		s.txOutBytes = 0
		s.txDataStarted = false
		s.flags.dataFinal = false
		if !s.flags.ctsAsserted {
			s.setCTS(true)
		}
		s.restartModem(entry.txMode())
		s.atTx.PutResponseCode(atcmd.ResponseConnect)
		s.atRxMode = ATModeStuffed
		return true
	}
	s.restartModem(entry.rxMode())
	s.atRxMode = ATModeDelivery
	s.flags.dteIsWaiting = true
	s.armMidReceiveTimeout()
	s.tryDeliverFromQueue()
	return true
}
