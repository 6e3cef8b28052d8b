// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

//go:build linux

package audioio

import (
	"time"

	"golang.org/x/sys/unix"
)

// frameSleeper paces frame emission to wall-clock time.
type frameSleeper interface {
	sleep()
}

// linuxSleeper uses clock_nanosleep via golang.org/x/sys/unix for tighter
// frame-to-frame timing than time.Sleep offers under scheduler load, which
// would otherwise leak jitter into the line clock.
type linuxSleeper struct {
	period unix.Timespec
}

func newFrameSleeper(d time.Duration) frameSleeper {
	return &linuxSleeper{period: unix.NsecToTimespec(d.Nanoseconds())}
}

func (s *linuxSleeper) sleep() {
	rem := s.period
	for {
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, 0, &rem, &rem)
		if err == nil || err != unix.EINTR {
			return
		}
	}
}
