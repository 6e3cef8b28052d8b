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

const dcnSecondOctet = 0x13

// hdlcAccept implements the frame-delivery rule. A frame with a bad FCS,
// or one marked by missing data, is dropped and counted; nothing is sent
// to the DTE for it. If a DTE command is currently waiting, the frame is
// DLE-stuffed and flushed to the AT TX handler followed by OK, unless it
// is the DCN frame of a batch (msg[1] == 0x13), in which case OK is
// deferred until carrier-down. If no command is waiting, the frame (plus trailing FCS,
// already present in frame) is enqueued on the received-frame queue.
func (s *Session) hdlcAccept(frame []byte, fcsOK bool) {
	if s.missingData {
		s.missingData = false
		if s.metrics != nil {
			s.metrics.HDLCFramesDroppedTotal.Inc()
		}
		return
	}
	if !fcsOK || len(frame) == 0 {
		if s.metrics != nil {
			s.metrics.HDLCFramesDroppedTotal.Inc()
		}
		return
	}

	if s.metrics != nil {
		s.metrics.HDLCFramesDeliveredTotal.Inc()
	}
	if !s.flags.dteIsWaiting {
		s.queue.push(atcmd.ResponseOK, frame)
		return
	}

	s.atTx.PutResponseCode(atcmd.ResponseConnect)
	s.atTx.PutBytes(dleStuff(frame))

	isFinalOfBatch := len(frame) > 1 && frame[1] == dcnSecondOctet
	if isFinalOfBatch {
		s.flags.okIsPending = true
		return
	}
	s.atTx.PutResponseCode(atcmd.ResponseOK)
	s.flags.dteIsWaiting = false
	s.timeoutRxSamples = 0
}

// tryDeliverFromQueue delivers the oldest queued frame (if any) to the
// DTE now that a command is waiting for one; called from the
// DELIVERY-mode entry path, since the delivery path can race ahead of a
// waiting command and park frames on the received-frame queue.
func (s *Session) tryDeliverFromQueue() bool {
	rec, ok := s.queue.pop()
	if !ok {
		return false
	}
	s.atTx.PutResponseCode(atcmd.ResponseConnect)
	s.atTx.PutBytes(dleStuff(rec.data))
	s.atTx.PutResponseCode(rec.code)
	s.flags.dteIsWaiting = false
	return true
}

// onCarrierDown flushes any pending deferred OK (for a DCN-terminated
// batch) once the line carrier actually drops.
func (s *Session) onCarrierDown() {
	if s.flags.okIsPending {
		s.atTx.PutResponseCode(atcmd.ResponseOK)
		s.flags.okIsPending = false
		s.flags.dteIsWaiting = false
	}
}

func (s *Session) checkFlowControlHighWater() {
	if s.txInBytes > HighWaterMark && !ctsIsOff(s) {
		s.setCTS(false)
		if s.metrics != nil {
			s.metrics.BufferHighWaterTotal.Inc()
		}
	}
}

func (s *Session) checkFlowControlLowWater() {
	if s.txOutBytes > LowWaterMark && ctsIsOff(s) {
		s.setCTS(true)
	}
}

func ctsIsOff(s *Session) bool { return !s.flags.ctsAsserted }

func (s *Session) setCTS(on bool) {
	s.flags.ctsAsserted = on
	if s.modemControl == nil {
		return
	}
	if on {
		s.modemControl(atcmd.ControlCTSOn)
	} else {
		s.modemControl(atcmd.ControlCTSOff)
	}
}
