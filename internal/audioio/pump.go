// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package audioio

import "time"

// SessionTransport is the subset of *session.Session the audio pump
// drives: one Rx push and one Tx pull per frame.
type SessionTransport interface {
	Rx(amp []int16)
	Tx(amp []int16, maxLen int) int
}

// Pump alternates pulling a frame of outgoing samples from a session and
// pushing one frame of incoming samples into it, at a cadence held by a
// platform sleeper (see pacing_linux.go / pacing_other.go) so the
// session's 8kHz sample clock tracks wall time.
type Pump struct {
	session      SessionTransport
	src          Source
	dst          Sink
	frameSamples int
	sleeper      frameSleeper
	stop         chan struct{}
}

// NewPump builds a pump moving FrameSamples-sized frames between session
// and the given transports.
func NewPump(session SessionTransport, src Source, dst Sink) *Pump {
	return &Pump{
		session:      session,
		src:          src,
		dst:          dst,
		frameSamples: FrameSamples,
		sleeper:      newFrameSleeper(time.Duration(FrameSamples) * time.Second / SampleRate),
		stop:         make(chan struct{}),
	}
}

// Run drives the pump until Stop is called or a transport read fails.
func (p *Pump) Run() error {
	in := make([]int16, p.frameSamples)
	out := make([]int16, p.frameSamples)
	for {
		select {
		case <-p.stop:
			return nil
		default:
		}
		n, err := p.src.ReadFrame(in)
		if err != nil {
			return err
		}
		if n > 0 {
			p.session.Rx(in[:n])
		}
		written := p.session.Tx(out, p.frameSamples)
		if written > 0 {
			if err := p.dst.WriteFrame(out[:written]); err != nil {
				return err
			}
		}
		p.sleeper.sleep()
	}
}

// Stop signals Run to return on its next frame boundary.
func (p *Pump) Stop() {
	close(p.stop)
}
