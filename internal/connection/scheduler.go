// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package connection

import "time"

// ScheduledTask is a pending timer or ticker. Once Cancel returns the task is
// dead; the owner must stop reading C.
type ScheduledTask interface {
	C() <-chan time.Time
	Cancel()
}

// Scheduler creates tasks.
type Scheduler interface {
	// Every fires repeatedly with period d.
	Every(d time.Duration) ScheduledTask
	// After fires once after d.
	After(d time.Duration) ScheduledTask
}

// SystemScheduler schedules on the wall clock.
type SystemScheduler struct{}

func (SystemScheduler) Every(d time.Duration) ScheduledTask {
	return &tickerTask{t: time.NewTicker(d)}
}

func (SystemScheduler) After(d time.Duration) ScheduledTask {
	return &timerTask{t: time.NewTimer(d)}
}

type tickerTask struct{ t *time.Ticker }

func (k *tickerTask) C() <-chan time.Time { return k.t.C }
func (k *tickerTask) Cancel()             { k.t.Stop() }

type timerTask struct{ t *time.Timer }

func (k *timerTask) C() <-chan time.Time { return k.t.C }
func (k *timerTask) Cancel()             { k.t.Stop() }
