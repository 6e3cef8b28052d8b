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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readByte(src *nonECMBitSource) byte {
	var b byte
	for i := 0; i < 8; i++ {
		b |= byte(src.GetBit()) << uint(i)
	}
	return b
}

func TestNonECMBitSourceFillsFFBeforeAnyDataSent(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	src := s.newNonECMBitSource()
	assert.Equal(t, byte(0xFF), readByte(src))
}

func TestNonECMBitSourcePullsQueuedBytes(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	s.txData[0] = 0xA5
	s.txInBytes = 1

	src := s.newNonECMBitSource()
	assert.Equal(t, byte(0xA5), readByte(src))
	assert.True(t, s.txDataStarted)
	assert.Equal(t, 1, s.txOutBytes)
}

func TestNonECMBitSourceFillsZeroAfterDataStartedNotFinal(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	s.txData[0] = 0x01
	s.txInBytes = 1

	src := s.newNonECMBitSource()
	readByte(src) // consume the one queued byte
	assert.Equal(t, byte(0x00), readByte(src))
}

// TestNonECMBitSourceReturnsEndOfDataWhenDrainedAndFinal: once tx_data
// is drained and data_final is set, the bit pump reports EndOfData,
// starting modem shutdown.
func TestNonECMBitSourceReturnsEndOfDataWhenDrainedAndFinal(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	s.flags.dataFinal = true
	src := s.newNonECMBitSource()
	assert.Equal(t, modem.EndOfData, src.GetBit())
}

func TestNonECMBitSinkTrainingSucceededEmitsConnect(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})
	bs := s.newNonECMBitSink()
	bs.PutBit(int(modem.EventTrainingSucceeded))
	assert.Contains(t, sink.codes, atcmd.ResponseConnect)
	assert.True(t, s.flags.rxTrained)
}

func TestNonECMBitSinkCarrierDownEmitsNoCarrierAndETX(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})
	s.atRxMode = ATModeDelivery
	s.flags.rxSignalPresent = true

	bs := s.newNonECMBitSink()
	bs.PutBit(int(modem.EventCarrierDown))

	assert.Contains(t, sink.codes, atcmd.ResponseNoCarrier)
	assert.Equal(t, ATModeOffhookCommand, s.atRxMode)
	assert.False(t, s.flags.rxSignalPresent)
	require.Len(t, sink.bytes, 1)
	assert.Equal(t, []byte{dleByte, etxByte}, sink.bytes[0])
}

func TestNonECMBitSinkAssemblesByteMSBFirst(t *testing.T) {
	sink := &fakeSink{}
	s := Init(sink, nil, nil, Options{})
	bs := s.newNonECMBitSink()

	for _, bit := range []int{1, 0, 1, 0, 0, 1, 0, 1} { // 0xA5
		bs.PutBit(bit)
	}

	require.Len(t, sink.bytes, 1)
	assert.Equal(t, []byte{0xA5}, sink.bytes[0])
}
