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

// startTimedStepForMode enters the timed-step sequence appropriate for a
// freshly-restarted modem mode while in T.38 operation.
func (s *Session) startTimedStepForMode(newMode Mode) {
	switch newMode {
	case ModeCNG:
		s.enterStep(t38.StepCNG1, 0)
	case ModeCED:
		s.enterStep(t38.StepCED1, 0)
	case ModeV21Tx, ModeV17Tx, ModeV27terTx, ModeV29Tx:
		if newMode == ModeV21Tx {
			s.currentTxIndicator = t38.IndV21Preamble
			s.enterStep(t38.StepHDLC1, 0)
		} else {
			s.currentTxIndicator = fastIndicator(s.bitRate, s.shortTrain)
			s.enterStep(t38.StepNonECM1, 0)
		}
	default:
		s.enterStep(t38.StepNone, 0)
	}
}

func fastIndicator(rate BitRate, shortTrain bool) t38.Indicator {
	switch rate {
	case BitRate2400:
		return t38.IndV27ter2400
	case BitRate4800:
		return t38.IndV27ter4800
	case BitRate7200:
		if shortTrain {
			return t38.IndV17_7200ShortTrain
		}
		return t38.IndV17_7200
	case BitRate9600:
		if shortTrain {
			return t38.IndV17_9600ShortTrain
		}
		return t38.IndV17_9600
	case BitRate12000:
		if shortTrain {
			return t38.IndV17_12000ShortTrain
		}
		return t38.IndV17_12000
	case BitRate14400:
		if shortTrain {
			return t38.IndV17_14400ShortTrain
		}
		return t38.IndV17_14400
	default:
		return t38.IndV29_7200
	}
}

func (s *Session) enterStep(step t38.TimedStep, waitMillis int) {
	s.timedStep = step
	s.chunksSentInStep = 0
	s.stepDeadlineSamples = s.samples + t38.MillisToSamples(waitMillis)
}

// advanceT38Clock drives the timed-step FSM: advance samples, and once
// the deadline has passed, perform exactly one step.
func (s *Session) advanceT38Clock(samplesElapsed int64) {
	s.samples += samplesElapsed
	s.callSamples += samplesElapsed
	s.checkMidReceiveTimeout()
	s.checkDTEDataTimeout()
	s.checkAnswerTimeout()
	if s.samples < s.stepDeadlineSamples {
		return
	}
	s.runTimedStep()
}

// send emits ind, repeated indicatorTxCount times (or once, for a
// streaming transport configured with indicatorTxCount == 0) to tolerate
// a lossy UDP peer dropping one or more copies.
func (s *Session) send(ind t38.Indicator) {
	if s.t38Packets == nil {
		return
	}
	count := s.indicatorTxCount
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		_ = s.t38Packets.SendIndicator(ind)
	}
	if s.metrics != nil {
		s.metrics.T38PacketsSentTotal.WithLabelValues("indicator").Add(float64(count))
	}
}

func (s *Session) sendData(dt t38.DataType, ft t38.FieldType, buf []byte) {
	if s.t38Packets == nil {
		return
	}
	_ = s.t38Packets.SendData(dt, ft, buf)
	if s.metrics != nil {
		s.metrics.T38PacketsSentTotal.WithLabelValues(ft.String()).Inc()
	}
}

// sendDataFields emits a single multi-field IFP packet.
func (s *Session) sendDataFields(dt t38.DataType, fields []t38.Field) {
	if s.t38Packets == nil {
		return
	}
	_ = s.t38Packets.SendDataFields(dt, fields)
	if s.metrics != nil {
		for _, f := range fields {
			s.metrics.T38PacketsSentTotal.WithLabelValues(f.Type.String()).Inc()
		}
	}
}

func (s *Session) runTimedStep() {
	switch s.timedStep {
	case t38.StepNonECM1:
		s.send(t38.IndNoSignal)
		s.enterStep(t38.StepNonECM2, 75)
	case t38.StepNonECM2:
		s.send(s.currentTxIndicator)
		s.enterStep(t38.StepNonECM3, t38.TrainingMillis(s.currentTxIndicator, s.useTEP, false))
	case t38.StepNonECM3:
		s.stepNonECM3()
	case t38.StepNonECM4:
		s.stepNonECM4()
	case t38.StepNonECM5:
		s.send(t38.IndNoSignal)
		s.enterStep(t38.StepNone, 0)
		if s.atRxMode == ATModeStuffed && s.flags.dataFinal {
			s.flags.dataFinal = false
			s.atRxMode = ATModeOffhookCommand
			s.atTx.PutResponseCode(atcmd.ResponseOK)
		}
	case t38.StepHDLC1:
		s.send(s.currentTxIndicator)
		s.enterStep(t38.StepHDLC2, t38.TrainingMillis(s.currentTxIndicator, s.useTEP, true))
	case t38.StepHDLC2:
		s.stepHDLC2()
	case t38.StepHDLC3:
		ft := t38.FieldHDLCFCSOK
		if s.hdlcFinal {
			ft = t38.FieldHDLCFCSOKSigEnd
		}
		s.sendData(t38.DataTypeHDLC, ft, nil)
		s.enterStep(t38.StepHDLC4, 0)
	case t38.StepHDLC4:
		s.send(t38.IndNoSignal)
		if len(s.hdlcTxBuf) > s.hdlcTxPtr {
			s.enterStep(t38.StepHDLC1, 0)
			return
		}
		s.hdlcTxBuf = s.hdlcTxBuf[:0]
		s.hdlcTxPtr = 0
		s.enterStep(t38.StepNone, 0)
		if s.atRxMode == ATModeHDLC {
			if s.hdlcFinal {
				s.disarmDTEDataTimeout()
				s.atRxMode = ATModeOffhookCommand
				s.atTx.PutResponseCode(atcmd.ResponseOK)
			} else {
				s.armDTEDataTimeout()
				s.atTx.PutResponseCode(atcmd.ResponseConnect)
			}
		}
	case t38.StepCED1:
		s.send(t38.IndNoSignal)
		s.enterStep(t38.StepCED2, 200)
	case t38.StepCED2:
		s.send(t38.IndCED)
		s.enterStep(t38.StepPause, 3000)
	case t38.StepCNG1:
		s.send(t38.IndNoSignal)
		s.enterStep(t38.StepCNG2, 200)
	case t38.StepCNG2:
		s.send(t38.IndCNG)
		s.enterStep(t38.StepNone, 3000)
	case t38.StepPause:
		s.enterStep(t38.StepNone, 0)
	}
}

// stepNonECM3 emits one octetsPerDataPacket chunk of non-ECM data per
// tick, bit-reversed from the source buffer, until the source runs dry;
// it then pads the final chunk and transitions to the trailer step.
func (s *Session) stepNonECM3() {
	buf, short := s.fillNonECMChunk()
	s.sendData(t38.DataTypeT4NonECM, t38.FieldT4NonECMData, modem.BitReverse(buf))
	if short >= 0 {
		s.trailerBytes = 3*s.octetsPerDataPacket + short
		s.enterStep(t38.StepNonECM4, s.msPerTxChunk)
		return
	}
	s.enterStep(t38.StepNonECM3, s.msPerTxChunk)
}

// fillNonECMChunk pulls up to octetsPerDataPacket bytes from the TX byte
// buffer. It returns the (possibly zero-padded) chunk and, when the
// source ran dry mid-chunk, the short length actually produced (else -1).
func (s *Session) fillNonECMChunk() ([]byte, int) {
	buf := make([]byte, s.octetsPerDataPacket)
	n := 0
	for n < len(buf) {
		if s.txOutBytes >= s.txInBytes {
			if s.flags.dataFinal {
				return buf, n
			}
			break
		}
		buf[n] = s.txData[s.txOutBytes%TxBufLen]
		s.txOutBytes++
		n++
	}
	s.checkFlowControlLowWater()
	return buf, -1
}

func (s *Session) stepNonECM4() {
	octets := s.octetsPerDataPacket
	if s.trailerBytes <= octets {
		buf := make([]byte, s.trailerBytes)
		for i := 0; i < s.dataEndTxCount; i++ {
			s.sendData(t38.DataTypeT4NonECM, t38.FieldT4NonECMSigEnd, buf)
		}
		s.enterStep(t38.StepNonECM5, 60)
		return
	}
	buf := make([]byte, octets)
	s.sendData(t38.DataTypeT4NonECM, t38.FieldT4NonECMData, buf)
	s.trailerBytes -= octets
	s.enterStep(t38.StepNonECM4, s.msPerTxChunk)
}

func (s *Session) stepHDLC2() {
	remaining := len(s.hdlcTxBuf) - s.hdlcTxPtr
	if remaining <= 0 {
		s.enterStep(t38.StepHDLC3, 0)
		return
	}
	n := s.octetsPerDataPacket
	if n > remaining {
		n = remaining
	}
	chunk := modem.BitReverse(s.hdlcTxBuf[s.hdlcTxPtr : s.hdlcTxPtr+n])
	s.hdlcTxPtr += n

	if s.hdlcTxPtr >= len(s.hdlcTxBuf) {
		if s.mergeTxFields {
			ft := t38.FieldHDLCFCSOK
			if s.hdlcFinal {
				ft = t38.FieldHDLCFCSOKSigEnd
			}
			s.sendDataFields(t38.DataTypeHDLC, []t38.Field{
				{Type: t38.FieldHDLCData, Data: chunk},
				{Type: ft},
			})
			// The FCS field rode along in that packet; StepHDLC3 exists
			// only to send it separately, so skip straight past it.
			s.enterStep(t38.StepHDLC4, 0)
			return
		}
		s.sendData(t38.DataTypeHDLC, t38.FieldHDLCData, chunk)
		s.enterStep(t38.StepHDLC3, 0)
		return
	}
	s.sendData(t38.DataTypeHDLC, t38.FieldHDLCData, chunk)
	s.enterStep(t38.StepHDLC2, s.msPerTxChunk)
}
