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

// CommandSink is the boundary the AT interpreter feeds command bytes
// through when atRxMode is ONHOOK_COMMAND/OFFHOOK_COMMAND; the
// interpreter itself lives outside this package, so forwarding is left
// to the caller via SetCommandSink.
type CommandSink interface {
	Command(b []byte)
}

var _ CommandSink = (*commandForwarder)(nil)

type commandForwarder struct{ fn func([]byte) }

func (c *commandForwarder) Command(b []byte) { c.fn(b) }

// SetCommandSink installs the destination for bytes received while in a
// COMMAND mode. It defaults to nil (bytes dropped) until set.
func (s *Session) SetCommandSink(sink CommandSink) {
	s.commandSink = sink
}

// handleATRx routes each DTE byte according to the current ATRxMode.
func (s *Session) handleATRx(b []byte) {
	switch s.atRxMode {
	case ATModeOnhookCommand, ATModeOffhookCommand:
		if s.commandSink != nil {
			s.commandSink.Command(b)
		}
	case ATModeHDLC:
		s.feedHDLCMode(b)
	case ATModeStuffed:
		s.feedStuffedMode(b)
	case ATModeDelivery:
		s.feedDeliveryMode(b)
	}
}

// feedHDLCMode implements the HDLC inbound rules: bytes pass
// through dle_unstuff_hdlc. A DLE-ETX submits the accumulated buffer as
// an HDLC frame, recording hdlc_final from the poll/final bit (0x10 of
// the second octet).
func (s *Session) feedHDLCMode(data []byte) {
	if len(data) > 0 {
		s.armDTEDataTimeout()
	}
	for _, b := range data {
		res, lit := s.dle.step(b)
		switch res {
		case dleResultByte:
			s.hdlcTxBuf = append(s.hdlcTxBuf, lit...)
			s.checkHDLCTxOverflow()
		case dleResultEndOfData:
			if len(s.hdlcTxBuf) > 1 {
				s.hdlcFinal = s.hdlcTxBuf[1]&0x10 != 0
			}
			s.beginHDLCTransmit()
			s.armDTEDataTimeout()
		}
	}
}

func (s *Session) checkHDLCTxOverflow() {
	const maxHDLCTx = 256
	if len(s.hdlcTxBuf) > maxHDLCTx {
		s.hdlcTxBuf = s.hdlcTxBuf[:maxHDLCTx]
		if s.log != nil {
			s.log.Warn("hdlc tx buffer overflow, dropping bytes")
		}
	}
}

// feedStuffedMode implements the STUFFED inbound rules: same escape
// handling as HDLC mode, but a DLE-ETX sets data_final; bytes are
// appended to tx_data. The FSM does not leave STUFFED on the ETX itself,
// since the bit pump still has buffered bytes to drain; checkNonECMTxDrain
// emits OK and moves to OFFHOOK_COMMAND once the modem actually reports
// EndOfData. Flow control toggles on the high/low watermarks.
func (s *Session) feedStuffedMode(data []byte) {
	for _, b := range data {
		res, lit := s.dle.step(b)
		switch res {
		case dleResultByte:
			for _, l := range lit {
				if s.txInBytes-s.txOutBytes >= TxBufLen {
					if s.log != nil {
						s.log.Warn("tx buffer exhausted, dropping byte")
					}
					continue
				}
				s.txData[s.txInBytes%TxBufLen] = l
				s.txInBytes++
			}
			s.checkFlowControlHighWater()
		case dleResultEndOfData:
			s.flags.dataFinal = true
		}
	}
}

// feedDeliveryMode implements the DELIVERY inbound rule: any byte
// from the DTE aborts delivery, emitting DLE-ETX (if a receive signal was
// active), flushing RX, installing SILENCE_TX, and responding OK.
func (s *Session) feedDeliveryMode(data []byte) {
	if len(data) == 0 {
		return
	}
	if s.flags.rxSignalPresent {
		s.deliverDLEByte(etxByte, true)
	}
	s.restartModem(ModeSilenceTx)
	s.atRxMode = ATModeOffhookCommand
	s.flags.dteIsWaiting = false
	s.flags.awaitingSilence = false
	s.atTx.PutResponseCode(atcmd.ResponseOK)
}
