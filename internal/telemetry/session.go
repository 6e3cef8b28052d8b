// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package telemetry

import (
	"context"

	"github.com/gofax/t31modem/internal/atcmd"
)

// session is the subset of *session.Session that TracedSession wraps. It is
// declared locally to avoid an import cycle: internal/session has no
// reason to depend on internal/telemetry.
type session interface {
	Rx(amp []int16)
	Tx(amp []int16, maxLen int) int
	AtRx(b []byte)
	CallEvent(ev atcmd.CallEvent)
}

// TracedSession wraps a session's entry points with spans, so a trace
// backend can show per-call timing for the audio and DTE boundaries
// alongside whatever transport spans the caller starts.
type TracedSession struct {
	inner session
	ctx   context.Context
}

// NewTracedSession wraps s for span recording under ctx. ctx is normally
// context.Background(); callers that plumb a request-scoped context into
// the audio/DTE pumps should pass it here instead.
func NewTracedSession(ctx context.Context, s session) *TracedSession {
	return &TracedSession{inner: s, ctx: ctx}
}

func (t *TracedSession) Rx(amp []int16) {
	_, span := Tracer().Start(t.ctx, "session.Rx")
	defer span.End()
	t.inner.Rx(amp)
}

func (t *TracedSession) Tx(amp []int16, maxLen int) int {
	_, span := Tracer().Start(t.ctx, "session.Tx")
	defer span.End()
	return t.inner.Tx(amp, maxLen)
}

func (t *TracedSession) AtRx(b []byte) {
	_, span := Tracer().Start(t.ctx, "session.AtRx")
	defer span.End()
	t.inner.AtRx(b)
}

func (t *TracedSession) CallEvent(ev atcmd.CallEvent) {
	_, span := Tracer().Start(t.ctx, "session.CallEvent")
	defer span.End()
	t.inner.CallEvent(ev)
}
