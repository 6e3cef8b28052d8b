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
	"github.com/gofax/t31modem/internal/t38"
)

// EnableT38 switches the session into T.38 mode, bypassing the line
// audio path: from then on restartModem wires no audio modulator or
// demodulator and re-enters the timed-step pump instead, and IFP packets
// drive/are driven by T38SendTimeout and the ingress callbacks below. Rx
// and Tx do not check the mode; they run whatever handlers are installed.
func (s *Session) EnableT38(packets t38.PacketHandler) {
	s.t38Mode = true
	s.t38Packets = packets
}

// DisableT38 returns the session to audio-path operation.
func (s *Session) DisableT38() {
	s.t38Mode = false
}

// onT38ModeChange re-enters the timed-step pump whenever restartModem
// picks a new mode while t38Mode is set; the step machinery itself lives
// in t38pump.go and is driven by advanceT38Clock.
func (s *Session) onT38ModeChange(newMode Mode) {
	s.startTimedStepForMode(newMode)
}

// ProcessRxIndicator is the T.38 ingress entry for a received indicator.
// Duplicates of the current indicator are ignored; NO_SIGNAL while
// currently receiving V.21/CNG marks carrier-down; any training
// indicator arms the mid-receive timeout and marks signal present.
func (s *Session) ProcessRxIndicator(ind t38.Indicator) {
	if s.metrics != nil {
		s.metrics.T38PacketsReceivedTotal.WithLabelValues("indicator").Inc()
	}
	if ind == s.currentRxIndicator {
		return
	}
	s.currentRxIndicator = ind
	s.hdlcRxBuf = s.hdlcRxBuf[:0]
	s.missingData = false

	if ind == t38.IndNoSignal {
		if s.mode == ModeV21Rx || s.mode == ModeCNG {
			s.flags.rxSignalPresent = false
			s.onCarrierDown()
		}
		return
	}
	s.armMidReceiveTimeout()
	s.flags.rxSignalPresent = true
}

// ProcessRxData is the T.38 ingress entry for a received IFP data-field
// message, dispatching on the field type.
func (s *Session) ProcessRxData(dt t38.DataType, ft t38.FieldType, buf []byte) {
	if s.metrics != nil {
		s.metrics.T38PacketsReceivedTotal.WithLabelValues(ft.String()).Inc()
	}
	switch ft {
	case t38.FieldHDLCData:
		s.t38RxHDLCData(buf)
	case t38.FieldHDLCFCSOK:
		s.hdlcAccept(append([]byte{}, s.hdlcRxBuf...), true)
		s.hdlcRxBuf = s.hdlcRxBuf[:0]
	case t38.FieldHDLCFCSOKSigEnd:
		s.hdlcAccept(append([]byte{}, s.hdlcRxBuf...), true)
		s.hdlcRxBuf = s.hdlcRxBuf[:0]
		s.flags.rxSignalPresent = false
		s.onCarrierDown()
	case t38.FieldHDLCFCSBad, t38.FieldHDLCFCSBadSigEnd, t38.FieldHDLCSigEnd:
		s.hdlcRxBuf = s.hdlcRxBuf[:0]
		if ft != t38.FieldHDLCFCSBad {
			s.flags.rxSignalPresent = false
			s.onCarrierDown()
		}
	case t38.FieldT4NonECMData:
		s.t38RxNonECMData(buf)
	case t38.FieldT4NonECMSigEnd:
		s.t38RxNonECMSigEnd(buf)
	}
}

func (s *Session) t38RxHDLCData(buf []byte) {
	if s.timeoutRxSamples == 0 {
		s.armMidReceiveTimeout()
		if len(buf) > 0 && buf[0] != 0xFF {
			s.missingData = true
		}
	}
	rev := modem.BitReverse(buf)
	if len(s.hdlcRxBuf)+len(rev) <= HDLCRxBufMaxLen {
		s.hdlcRxBuf = append(s.hdlcRxBuf, rev...)
	}
}

func (s *Session) t38RxNonECMData(buf []byte) {
	if !s.flags.rxTrained {
		s.flags.rxTrained = true
		s.atTx.PutResponseCode(atcmd.ResponseConnect)
	}
	s.deliverDLEBytes(modem.BitReverse(buf))
}

func (s *Session) t38RxNonECMSigEnd(buf []byte) {
	if s.flags.rxMessageReceived {
		return // duplicate: peers may repeat the SIG_END field
	}
	s.flags.rxMessageReceived = true
	if len(buf) > 0 {
		s.deliverDLEBytes(modem.BitReverse(buf))
	}
	s.deliverDLEByte(etxByte, true)
	s.atTx.PutResponseCode(atcmd.ResponseOK)
	s.disarmMidReceiveTimeout()
	s.atRxMode = ATModeOffhookCommand
}

// ProcessRxMissing reports lost octets from the transport; the core has
// no retransmission request to make, so recovery is best-effort.
func (s *Session) ProcessRxMissing() {
	s.missingData = true
}
