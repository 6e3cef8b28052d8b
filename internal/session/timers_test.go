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
	"time"

	"github.com/gofax/t31modem/internal/atcmd"
	"github.com/stretchr/testify/assert"
)

func TestInitDefaultsTimeoutsWhenUnset(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{})
	assert.Equal(t, int64(defaultMidRxTimeoutSamples), s.midRxTimeoutSamples)
	assert.Equal(t, int64(defaultDTEDataTimeoutSamples), s.dteDataTimeoutSamples)
	assert.Equal(t, int64(defaultAnswerTimeoutS), s.answerTimeoutDefaultS)
}

func TestInitHonorsTimeoutOverrides(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{
		MidReceiveTimeout: 3 * time.Second,
		DTEDataTimeout:    2 * time.Second,
		AnswerTimeout:     10 * time.Second,
	})
	assert.Equal(t, int64(3*sampleRate), s.midRxTimeoutSamples)
	assert.Equal(t, int64(2*sampleRate), s.dteDataTimeoutSamples)
	assert.Equal(t, int64(10), s.answerTimeoutDefaultS)
}

func TestArmAnswerTimeoutFallsBackToDefault(t *testing.T) {
	s := Init(discardSink{}, nil, nil, Options{AnswerTimeout: 5 * time.Second})
	s.samples = 1000
	s.ArmAnswerTimeout(0)
	assert.Equal(t, int64(1000+5*sampleRate), s.answerDeadline)
}

type discardSink struct{}

func (discardSink) PutResponseCode(atcmd.ResponseCode) {}
func (discardSink) PutBytes([]byte)                    {}
