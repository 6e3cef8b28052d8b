// SPDX-License-Identifier: AGPL-3.0-or-later
// t31modem - a T.31 Class 1 fax modem emulator
// Copyright (C) 2026 t31modem contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package maintenance

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gofax/t31modem/internal/metrics"
	"github.com/go-co-op/gocron/v2"
)

// defaultSweepInterval is how often the stale-session sweep runs. A call
// with no progress for two consecutive sweeps is released.
const defaultSweepInterval = 30 * time.Second

// StartSweeper schedules the stale-session sweep on scheduler and returns
// the created job so the caller can remove it independently of other jobs.
func StartSweeper(scheduler gocron.Scheduler, registry *Registry, m *metrics.Metrics) (gocron.Job, error) {
	job, err := scheduler.NewJob(
		gocron.DurationJob(defaultSweepInterval),
		gocron.NewTask(func() {
			stale := registry.sweep()
			if len(stale) == 0 {
				return
			}
			slog.Warn("released stale sessions", "count", len(stale), "keys", stale)
			if m != nil {
				for range stale {
					m.ActiveSessions.Dec()
				}
			}
		}),
		gocron.WithName("stale-session-sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule stale-session sweep: %w", err)
	}
	return job, nil
}
