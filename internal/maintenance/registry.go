// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package maintenance runs the periodic sweep that notices a session whose
// call clock has stopped advancing (a wedged transport, a DTE that vanished
// mid-call) and releases it.
package maintenance

import (
	"sync"

	"github.com/gofax/t31modem/internal/session"
)

// trackedSession is the subset of *session.Session the sweep needs.
type trackedSession interface {
	Mode() session.Mode
	CallSamples() int64
	Release()
}

// Registry tracks live sessions by an opaque caller-assigned key (e.g. a
// connection ID) so the sweep can iterate them without the caller having to
// wire up its own bookkeeping.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]trackedSession
	lastSeen map[string]int64
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]trackedSession),
		lastSeen: make(map[string]int64),
	}
}

// Add registers s under key, replacing any previous entry for that key.
func (r *Registry) Add(key string, s trackedSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = s
	r.lastSeen[key] = -1
}

// Remove drops key from the registry without releasing the session; the
// caller is assumed to have already released it.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
	delete(r.lastSeen, key)
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweep visits every tracked session not in ModeNone (sessions in every
// other mode, silence-rx included, are checked) and releases any whose
// call-sample counter has not advanced since the previous sweep, then
// forgets it. It returns the keys it released.
func (r *Registry) sweep() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []string
	for key, s := range r.sessions {
		if s.Mode() == session.ModeNone {
			r.lastSeen[key] = -1
			continue
		}
		cur := s.CallSamples()
		prev, seenBefore := r.lastSeen[key]
		r.lastSeen[key] = cur
		if seenBefore && prev >= 0 && prev == cur {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		r.sessions[key].Release()
		delete(r.sessions, key)
		delete(r.lastSeen, key)
	}
	return stale
}
