// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"time"
)

// LimitsType carries the limits of one "go" command.
type LimitsType struct {
	Time      [ColorArraySize]int // remaining milliseconds
	Inc       [ColorArraySize]int
	Byoyomi   int
	MoveTime  int
	Depth     Depth
	Nodes     int64
	Mate      int
	Infinite  bool
	Ponder    bool
	StartTime time.Time

	// Restrict the root to these moves, all if empty.
	SearchMoves []Move
}

// UseTimeManagement returns whether the clock drives the search.
func (l *LimitsType) UseTimeManagement() bool {
	return l.Mate == 0 && l.MoveTime == 0 && l.Depth == 0 && l.Nodes == 0 && !l.Infinite
}

// TimeManagement derives a per-move budget from the clock. optimum is
// the soft target, maximum the hard ceiling.
type TimeManagement struct {
	startTime        time.Time
	optimum          int
	maximum          int
	unstablePvFactor float64
}

// Init computes the budget for the side to move.
func (tm *TimeManagement) Init(limits *LimitsType, us Color, byoyomiMargin int) {
	tm.startTime = limits.StartTime
	tm.unstablePvFactor = 1

	const optimumMoveFactor = 35
	const maximumMoveFactor = 10
	tm.optimum = limits.Time[us] / optimumMoveFactor
	tm.maximum = limits.Time[us] / maximumMoveFactor

	if limits.Byoyomi > 0 {
		byoyomi := limits.Byoyomi - byoyomiMargin
		tm.optimum += byoyomi
		tm.maximum += byoyomi
		if tm.optimum < byoyomi {
			tm.optimum += byoyomi
		}
		if tm.maximum < byoyomi {
			tm.maximum += byoyomi
		}
	}
	if limits.Inc[us] > 0 {
		tm.optimum += limits.Inc[us]
		tm.maximum += limits.Inc[us]
	}

	if tm.optimum < 1000 {
		tm.optimum = 900
	}
	if tm.maximum < 1000 {
		tm.maximum = 900
	}
}

// PvInstability widens the soft budget when the best move keeps
// changing between iterations.
func (tm *TimeManagement) PvInstability(bestMoveChanges float64) {
	tm.unstablePvFactor = 1 + bestMoveChanges
}

// Elapsed returns milliseconds since the search started.
func (tm *TimeManagement) Elapsed() int {
	return int(time.Since(tm.startTime) / time.Millisecond)
}

// Optimum returns the soft budget in milliseconds.
func (tm *TimeManagement) Optimum() int {
	return tm.optimum
}

// Maximum returns the hard ceiling in milliseconds.
func (tm *TimeManagement) Maximum() int {
	return tm.maximum
}

// AvailableTime is the soft budget scaled by PV instability.
func (tm *TimeManagement) AvailableTime() int {
	return int(float64(tm.optimum) * tm.unstablePvFactor)
}
