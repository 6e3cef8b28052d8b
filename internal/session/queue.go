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
	"sync/atomic"

	"github.com/gofax/t31modem/internal/atcmd"
)

// frameQueueCapacity is the received-frame queue's bound, in bytes of
// record payload (not counting the 1-byte response-code prefix).
const frameQueueCapacity = 4096

// queuedFrame is one record of the received-frame queue: an AT response
// code and the frame bytes it is attached to (empty for a bare code).
type queuedFrame struct {
	code atcmd.ResponseCode
	data []byte
}

// ringQueue is the bounded, atomically-indexed byte-record queue used to
// buffer delivered frames while no DTE command is waiting for them. Its
// read and write cursors are atomic because the delivery path can run
// (from rx/t38 ingress) before a waiting AT command arrives (from at_rx),
// and the two entry points never run concurrently but may interleave
// across calls without an explicit lock.
type ringQueue struct {
	records    []queuedFrame
	usedBytes  int64 // atomic: total payload bytes currently queued
	readIndex  int64 // atomic
	writeIndex int64 // atomic
}

func newRingQueue() *ringQueue {
	return &ringQueue{}
}

// push enqueues a record if doing so would not exceed frameQueueCapacity
// bytes of payload; it returns false (and drops the record) otherwise.
func (q *ringQueue) push(code atcmd.ResponseCode, data []byte) bool {
	used := atomic.LoadInt64(&q.usedBytes)
	if used+int64(len(data)) > frameQueueCapacity {
		return false
	}
	q.records = append(q.records, queuedFrame{code: code, data: append([]byte{}, data...)})
	atomic.AddInt64(&q.writeIndex, 1)
	atomic.AddInt64(&q.usedBytes, int64(len(data)))
	return true
}

// pop removes and returns the oldest record, if any.
func (q *ringQueue) pop() (queuedFrame, bool) {
	if len(q.records) == 0 {
		return queuedFrame{}, false
	}
	rec := q.records[0]
	q.records = q.records[1:]
	atomic.AddInt64(&q.readIndex, 1)
	atomic.AddInt64(&q.usedBytes, -int64(len(rec.data)))
	return rec, true
}

// empty reports whether the queue currently holds no records.
func (q *ringQueue) empty() bool {
	return len(q.records) == 0
}
