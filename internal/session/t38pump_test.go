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
	"testing"

	"github.com/gofax/t31modem/internal/atcmd"
	"github.com/gofax/t31modem/internal/modem"
	"github.com/gofax/t31modem/internal/t38"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dataCall struct {
	dt  t38.DataType
	ft  t38.FieldType
	buf []byte
}

type fieldsCall struct {
	dt     t38.DataType
	fields []t38.Field
}

// fakeT38 is a PacketHandler double recording every indicator/data send
// in order, for assertions against the exact IFP sequence a timed-step
// chain produces.
type fakeT38 struct {
	indicators  []t38.Indicator
	dataCalls   []dataCall
	fieldsCalls []fieldsCall
}

func (f *fakeT38) SendIndicator(ind t38.Indicator) error {
	f.indicators = append(f.indicators, ind)
	return nil
}

func (f *fakeT38) SendData(dt t38.DataType, ft t38.FieldType, buf []byte) error {
	f.dataCalls = append(f.dataCalls, dataCall{dt, ft, append([]byte{}, buf...)})
	return nil
}

func (f *fakeT38) SendDataFields(dt t38.DataType, fields []t38.Field) error {
	cp := make([]t38.Field, len(fields))
	for i, fl := range fields {
		cp[i] = t38.Field{Type: fl.Type, Data: append([]byte{}, fl.Data...)}
	}
	f.fieldsCalls = append(f.fieldsCalls, fieldsCall{dt, cp})
	return nil
}

func TestSendRepeatsIndicatorByIndicatorTxCount(t *testing.T) {
	fk := &fakeT38{}
	s := Init(discardSink{}, nil, fk, Options{})
	s.indicatorTxCount = 3
	s.send(t38.IndCNG)
	assert.Len(t, fk.indicators, 3)
}

func TestSendSendsOnceWhenIndicatorTxCountZero(t *testing.T) {
	fk := &fakeT38{}
	s := Init(discardSink{}, nil, fk, Options{})
	s.indicatorTxCount = 0
	s.send(t38.IndCNG)
	assert.Len(t, fk.indicators, 1)
}

// TestHDLCEgressSeparateFCSHonorsFinalFlag exercises the non-merged path:
// StepHDLC3 is a distinct step that must pick FieldHDLCFCSOKSigEnd when
// hdlc_final is set, rather than always sending plain FieldHDLCFCSOK.
func TestHDLCEgressSeparateFCSHonorsFinalFlag(t *testing.T) {
	fk := &fakeT38{}
	s := Init(discardSink{}, nil, fk, Options{})
	s.SetMergeTxFields(false)
	s.hdlcTxBuf = []byte{0x01, 0x02}
	s.hdlcFinal = true
	s.octetsPerDataPacket = 20
	s.currentTxIndicator = t38.IndV21Preamble

	s.enterStep(t38.StepHDLC2, 0)
	s.runTimedStep() // sends the data chunk, enters StepHDLC3
	s.runTimedStep() // sends the FCS field, enters StepHDLC4

	require.Len(t, fk.dataCalls, 2)
	assert.Equal(t, t38.FieldHDLCData, fk.dataCalls[0].ft)
	assert.Equal(t, t38.FieldHDLCFCSOKSigEnd, fk.dataCalls[1].ft)
	assert.Equal(t, t38.StepHDLC4, s.timedStep)
}

func TestHDLCEgressSeparateFCSNonFinalSendsPlainFCSOK(t *testing.T) {
	fk := &fakeT38{}
	s := Init(discardSink{}, nil, fk, Options{})
	s.SetMergeTxFields(false)
	s.hdlcTxBuf = []byte{0x01, 0x02}
	s.hdlcFinal = false
	s.octetsPerDataPacket = 20
	s.currentTxIndicator = t38.IndV21Preamble

	s.enterStep(t38.StepHDLC2, 0)
	s.runTimedStep()
	s.runTimedStep()

	require.Len(t, fk.dataCalls, 2)
	assert.Equal(t, t38.FieldHDLCFCSOK, fk.dataCalls[1].ft)
}

// TestHDLCEgressMergedFieldsSendsSingleMultiFieldPacket: merge mode must
// fold the final data chunk and its FCS field into one multi-field IFP
// packet, and StepHDLC3 must not run afterwards and send the FCS again.
func TestHDLCEgressMergedFieldsSendsSingleMultiFieldPacket(t *testing.T) {
	fk := &fakeT38{}
	s := Init(discardSink{}, nil, fk, Options{})
	s.SetMergeTxFields(true)
	s.hdlcTxBuf = []byte{0x01, 0x02}
	s.hdlcFinal = true
	s.octetsPerDataPacket = 20
	s.currentTxIndicator = t38.IndV21Preamble

	s.enterStep(t38.StepHDLC2, 0)
	s.runTimedStep()

	assert.Empty(t, fk.dataCalls, "merged send must not emit separate single-field packets")
	require.Len(t, fk.fieldsCalls, 1)
	fields := fk.fieldsCalls[0].fields
	require.Len(t, fields, 2)
	assert.Equal(t, t38.FieldHDLCData, fields[0].Type)
	assert.Equal(t, t38.FieldHDLCFCSOKSigEnd, fields[1].Type)
	assert.Equal(t, t38.StepHDLC4, s.timedStep)
}

// TestNonECMEgressStepSequenceEndsWithNoSignal: the first IFP sent in a
// burst is an indicator and the last is NO_SIGNAL, with the SIG_END
// field repeated dataEndTxCount times for UDP pacing redundancy.
func TestNonECMEgressStepSequenceEndsWithNoSignal(t *testing.T) {
	fk := &fakeT38{}
	s := Init(discardSink{}, nil, fk, Options{})
	s.setT38Pacing(false)
	s.txData[0] = 0x41
	s.txInBytes = 1
	s.flags.dataFinal = true
	s.currentTxIndicator = t38.IndV29_9600

	s.enterStep(t38.StepNonECM1, 0)
	for i := 0; i < 10 && s.timedStep != t38.StepNone; i++ {
		s.runTimedStep()
	}

	require.NotEmpty(t, fk.indicators)
	assert.Equal(t, t38.IndNoSignal, fk.indicators[0])
	assert.Equal(t, t38.IndNoSignal, fk.indicators[len(fk.indicators)-1])

	sigEndCount := 0
	for _, dc := range fk.dataCalls {
		if dc.ft == t38.FieldT4NonECMSigEnd {
			sigEndCount++
		}
	}
	assert.Equal(t, s.dataEndTxCount, sigEndCount)
}

// TestHDLCEgressStepHDLC4ResetsBufferWhenBatchDone: once the batch is
// fully sent, the shared frame buffer rewinds so the next call's frames
// start from a clean slate instead of growing it for the whole session.
func TestHDLCEgressStepHDLC4ResetsBufferWhenBatchDone(t *testing.T) {
	fk := &fakeT38{}
	s := Init(discardSink{}, nil, fk, Options{})
	s.hdlcTxBuf = []byte{0x01, 0x02}
	s.hdlcTxPtr = 2

	s.enterStep(t38.StepHDLC4, 0)
	s.runTimedStep()

	assert.Empty(t, s.hdlcTxBuf)
	assert.Zero(t, s.hdlcTxPtr)
	assert.Equal(t, t38.StepNone, s.timedStep)
}

// TestT38RxNonECMDataDoublesDLEOnDelivery: non-ECM chunks delivered to
// the DTE go through the same DLE doubling as the audio-path bit sink; a
// literal 0x10 in the image data must arrive as DLE-DLE.
func TestT38RxNonECMDataDoublesDLEOnDelivery(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})

	s.ProcessRxData(t38.DataTypeT4NonECM, t38.FieldT4NonECMData, []byte{modem.BitReverseByte(dleByte)})

	assert.Contains(t, sink.codes, atcmd.ResponseConnect)
	require.Len(t, sink.bytes, 1)
	assert.Equal(t, []byte{dleByte, dleByte}, sink.bytes[0])
}

func TestT38RxHDLCDataWithoutPrecedingIndicatorSetsMissingData(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})

	s.ProcessRxData(t38.DataTypeHDLC, t38.FieldHDLCData, []byte{0x21, 0x03})
	assert.True(t, s.missingData)

	s.flags.dteIsWaiting = true
	s.ProcessRxData(t38.DataTypeHDLC, t38.FieldHDLCFCSOK, nil)
	assert.False(t, s.missingData)
	assert.True(t, s.queue.empty())
	assert.True(t, s.flags.dteIsWaiting, "discarded frame must not consume the waiting command")
}

func TestT38RxHDLCDataWithPrecedingIndicatorDelivers(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})
	s.flags.dteIsWaiting = true

	s.ProcessRxIndicator(t38.IndV21Preamble)
	s.ProcessRxData(t38.DataTypeHDLC, t38.FieldHDLCData, []byte{0xFF, 0x03})
	s.ProcessRxData(t38.DataTypeHDLC, t38.FieldHDLCFCSOK, nil)

	assert.False(t, s.missingData)
	require.NotEmpty(t, sink.bytes)
}
