// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeManagementBudget(t *testing.T) {
	var tm TimeManagement
	limits := &LimitsType{StartTime: time.Now()}
	limits.Time[Black] = 350000 // 350s

	tm.Init(limits, Black, 0)
	require.Equal(t, 350000/35, tm.Optimum())
	require.Equal(t, 350000/10, tm.Maximum())
}

func TestTimeManagementByoyomi(t *testing.T) {
	var tm TimeManagement
	limits := &LimitsType{StartTime: time.Now(), Byoyomi: 10000}
	limits.Time[White] = 70000

	tm.Init(limits, White, 1000)
	// Time share plus byoyomi minus the margin.
	require.Equal(t, 70000/35+9000, tm.Optimum())
	require.Equal(t, 70000/10+9000, tm.Maximum())
}

func TestTimeManagementMinimumBudget(t *testing.T) {
	var tm TimeManagement
	limits := &LimitsType{StartTime: time.Now()}
	limits.Time[Black] = 1000 // nearly out of time

	tm.Init(limits, Black, 0)
	require.Equal(t, 900, tm.Optimum())
	require.Equal(t, 900, tm.Maximum())
}

func TestTimeManagementIncrement(t *testing.T) {
	var tm TimeManagement
	limits := &LimitsType{StartTime: time.Now()}
	limits.Time[Black] = 350000
	limits.Inc[Black] = 5000

	tm.Init(limits, Black, 0)
	require.Equal(t, 350000/35+5000, tm.Optimum())
	require.Equal(t, 350000/10+5000, tm.Maximum())
}

func TestTimeManagementInstability(t *testing.T) {
	var tm TimeManagement
	limits := &LimitsType{StartTime: time.Now()}
	limits.Time[Black] = 350000

	tm.Init(limits, Black, 0)
	base := tm.AvailableTime()
	tm.PvInstability(2)
	require.Equal(t, base*3, tm.AvailableTime())
}

func TestUseTimeManagement(t *testing.T) {
	l := &LimitsType{}
	require.True(t, l.UseTimeManagement())
	require.False(t, (&LimitsType{Depth: 3}).UseTimeManagement())
	require.False(t, (&LimitsType{Infinite: true}).UseTimeManagement())
	require.False(t, (&LimitsType{MoveTime: 100}).UseTimeManagement())
	require.False(t, (&LimitsType{Nodes: 100}).UseTimeManagement())
	require.False(t, (&LimitsType{Mate: 5}).UseTimeManagement())
}
