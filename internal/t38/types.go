// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package t38 holds the T.38 IFP fax-relay vocabulary used by package
// session: the indicator, data-type, field-type and timed-step enums, the
// training-time table, the outbound PacketHandler boundary, and
// UDPHandler, a minimal UDP transport. The timed-step egress FSM and the
// ingress indicator/data/missing processing live in package session; a
// full IFP packetization layer with retransmission is not part of it.
package t38

// Indicator is a T.38 IFP indicator value.
type Indicator int

const (
	IndNoSignal Indicator = iota
	IndCNG
	IndCED
	IndV21Preamble
	IndV27ter2400
	IndV27ter4800
	IndV29_7200
	IndV29_9600
	IndV17_7200
	IndV17_7200ShortTrain
	IndV17_9600
	IndV17_9600ShortTrain
	IndV17_12000
	IndV17_12000ShortTrain
	IndV17_14400
	IndV17_14400ShortTrain
)

func (i Indicator) String() string {
	names := [...]string{
		"NO_SIGNAL", "CNG", "CED", "V21_PREAMBLE",
		"V27TER_2400", "V27TER_4800", "V29_7200", "V29_9600",
		"V17_7200", "V17_7200_SHORT_TRAIN", "V17_9600", "V17_9600_SHORT_TRAIN",
		"V17_12000", "V17_12000_SHORT_TRAIN", "V17_14400", "V17_14400_SHORT_TRAIN",
	}
	if int(i) < 0 || int(i) >= len(names) {
		return "UNKNOWN_INDICATOR"
	}
	return names[i]
}

// DataType distinguishes HDLC control-channel data from raw non-ECM image
// data within an IFP data-field message.
type DataType int

const (
	DataTypeHDLC DataType = iota
	DataTypeT4NonECM
)

// FieldType is the IFP data-field type, carried alongside DataType.
type FieldType int

const (
	FieldHDLCData FieldType = iota
	FieldHDLCFCSOK
	FieldHDLCFCSBad
	FieldHDLCFCSOKSigEnd
	FieldHDLCFCSBadSigEnd
	FieldHDLCSigEnd
	FieldT4NonECMData
	FieldT4NonECMSigEnd
)

func (f FieldType) String() string {
	names := [...]string{
		"HDLC_DATA", "HDLC_FCS_OK", "HDLC_FCS_BAD",
		"HDLC_FCS_OK_SIG_END", "HDLC_FCS_BAD_SIG_END", "HDLC_SIG_END",
		"T4_NON_ECM_DATA", "T4_NON_ECM_SIG_END",
	}
	if int(f) < 0 || int(f) >= len(names) {
		return "UNKNOWN_FIELD"
	}
	return names[f]
}

// TimedStep is a step of the outbound timed-step pump. It is a plain
// ordinal enum: the wait after each step and the step that follows are
// decided by the pump in package session, not carried by the value.
type TimedStep int

const (
	StepNone TimedStep = iota
	StepNonECM1
	StepNonECM2
	StepNonECM3
	StepNonECM4
	StepNonECM5
	StepHDLC1
	StepHDLC2
	StepHDLC3
	StepHDLC4
	StepCED1
	StepCED2
	StepCNG1
	StepCNG2
	StepPause
)

func (s TimedStep) String() string {
	names := [...]string{
		"NONE", "NON_ECM_1", "NON_ECM_2", "NON_ECM_3", "NON_ECM_4", "NON_ECM_5",
		"HDLC_1", "HDLC_2", "HDLC_3", "HDLC_4",
		"CED_1", "CED_2", "CNG_1", "CNG_2", "PAUSE",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "UNKNOWN_STEP"
	}
	return names[s]
}

// SampleRate is the fixed 8 kHz clock every timing computation in this
// package is derived from.
const SampleRate = 8000

// Field is one data field of an IFP packet; a packet may carry several
// (e.g. a final HDLC data chunk paired with its FCS field).
type Field struct {
	Type FieldType
	Data []byte
}

// PacketHandler is the outbound boundary: sending one IFP indicator, one
// IFP data-field message, or one multi-field IFP message. Implementations
// are responsible for actual datagram transport (and, for TCP streaming,
// framing).
type PacketHandler interface {
	SendIndicator(ind Indicator) error
	SendData(dt DataType, ft FieldType, buf []byte) error
	// SendDataFields emits a single IFP packet carrying all of fields, in
	// order.
	SendDataFields(dt DataType, fields []Field) error
}

// trainingEntry holds the four training-time variants (with/without TEP,
// plain/with-flags) tabulated per indicator, in milliseconds.
type trainingEntry struct {
	withoutTEP          int
	withTEP             int
	withoutTEPWithFlags int
	withTEPWithFlags    int
}

// trainingTime is keyed by indicator. The V.21 preamble entry is used for
// HDLC sends; the others for non-ECM sends. Values follow the well-known
// T.38 training-time table (ITU-T T.38 Annex A / common implementations).
var trainingTime = map[Indicator]trainingEntry{
	IndV21Preamble:             {withoutTEP: 1000, withTEP: 1000, withoutTEPWithFlags: 1000, withTEPWithFlags: 1000},
	IndV27ter2400:              {withoutTEP: 943, withTEP: 1143, withoutTEPWithFlags: 973, withTEPWithFlags: 1173},
	IndV27ter4800:              {withoutTEP: 708, withTEP: 908, withoutTEPWithFlags: 738, withTEPWithFlags: 938},
	IndV29_7200:                {withoutTEP: 943, withTEP: 1143, withoutTEPWithFlags: 973, withTEPWithFlags: 1173},
	IndV29_9600:                {withoutTEP: 943, withTEP: 1143, withoutTEPWithFlags: 973, withTEPWithFlags: 1173},
	IndV17_7200:                {withoutTEP: 1093, withTEP: 1293, withoutTEPWithFlags: 1123, withTEPWithFlags: 1323},
	IndV17_7200ShortTrain:      {withoutTEP: 173, withTEP: 373, withoutTEPWithFlags: 203, withTEPWithFlags: 403},
	IndV17_9600:                {withoutTEP: 1093, withTEP: 1293, withoutTEPWithFlags: 1123, withTEPWithFlags: 1323},
	IndV17_9600ShortTrain:      {withoutTEP: 173, withTEP: 373, withoutTEPWithFlags: 203, withTEPWithFlags: 403},
	IndV17_12000:               {withoutTEP: 1093, withTEP: 1293, withoutTEPWithFlags: 1123, withTEPWithFlags: 1323},
	IndV17_12000ShortTrain:     {withoutTEP: 173, withTEP: 373, withoutTEPWithFlags: 203, withTEPWithFlags: 403},
	IndV17_14400:               {withoutTEP: 1093, withTEP: 1293, withoutTEPWithFlags: 1123, withTEPWithFlags: 1323},
	IndV17_14400ShortTrain:     {withoutTEP: 173, withTEP: 373, withoutTEPWithFlags: 203, withTEPWithFlags: 403},
}

// TrainingMillis returns the training wait, in milliseconds, for sending
// ind given the session's TEP and HDLC-flags configuration.
func TrainingMillis(ind Indicator, useTEP, withFlags bool) int {
	e, ok := trainingTime[ind]
	if !ok {
		return 0
	}
	switch {
	case !useTEP && !withFlags:
		return e.withoutTEP
	case useTEP && !withFlags:
		return e.withTEP
	case !useTEP && withFlags:
		return e.withoutTEPWithFlags
	default:
		return e.withTEPWithFlags
	}
}

// MillisToSamples converts a millisecond duration to an 8 kHz sample count.
func MillisToSamples(ms int) int64 {
	return int64(ms) * SampleRate / 1000
}
