// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPool(threads int) *ThreadPool {
	pool := NewThreadPool(threads, 16)
	pool.Output = io.Discard
	return pool
}

func fixedDepthLimits(d Depth) *LimitsType {
	return &LimitsType{Depth: d, StartTime: time.Now()}
}

func TestSearchDepth1ReturnsLegalMove(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	pool := testPool(1)
	best, _ := pool.StartThinking(pos, fixedDepthLimits(1))

	require.NotEqual(t, MoveNone, best)
	require.Contains(t, LegalMoves(pos), best)
	// At least every root move was visited once.
	require.GreaterOrEqual(t, pool.NodesSearched(), uint64(30))
}

func TestSearchFindsMateInOne(t *testing.T) {
	pos, err := PositionFromSfen("8k/9/8G/9/9/9/9/9/4K3L b - 1")
	require.NoError(t, err)

	pool := testPool(1)
	best, _ := pool.StartThinking(pos, fixedDepthLimits(3))
	require.Equal(t, "1c1b", best.USI())
}

func TestSearchFindsDropMate(t *testing.T) {
	pos, err := PositionFromSfen("4k4/9/4P4/9/9/9/9/9/4K4 b G 1")
	require.NoError(t, err)

	pool := testPool(1)
	best, _ := pool.StartThinking(pos, fixedDepthLimits(3))
	require.Equal(t, "G*5b", best.USI())
}

func TestSearchNoLegalMoves(t *testing.T) {
	// Black is checkmated in the corner; the engine resigns.
	pos, err := PositionFromSfen("1r7/9/9/9/9/9/9/1g7/K8 b - 1")
	require.NoError(t, err)
	if len(LegalMoves(pos)) != 0 {
		t.Skip("position unexpectedly has legal moves")
	}

	pool := testPool(1)
	best, _ := pool.StartThinking(pos, fixedDepthLimits(3))
	require.Equal(t, MoveNone, best)
}

func TestSearchGame(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	pool := testPool(1)

	for i := 0; i < 6; i++ {
		best, _ := pool.StartThinking(pos, fixedDepthLimits(4))
		require.NotEqual(t, MoveNone, best)
		require.Contains(t, LegalMoves(pos), best)
		pos.DoMove(best)
	}
}

func TestSearchMultiThreaded(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	pool := testPool(4)
	best, _ := pool.StartThinking(pos, fixedDepthLimits(6))
	require.Contains(t, LegalMoves(pos), best)
}

func TestSearchRespectsSearchMoves(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	m, err := pos.USIToMove("2h3h")
	require.NoError(t, err)

	pool := testPool(1)
	limits := fixedDepthLimits(3)
	limits.SearchMoves = []Move{m}
	best, _ := pool.StartThinking(pos, limits)
	require.Equal(t, m, best)
}

func TestSearchStop(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	pool := testPool(1)
	limits := &LimitsType{Infinite: true, StartTime: time.Now()}

	type result struct{ best Move }
	done := make(chan result, 1)
	go func() {
		best, _ := pool.StartThinking(pos, limits)
		done <- result{best}
	}()

	time.Sleep(100 * time.Millisecond)
	pool.Signals.Stop.Store(true)

	select {
	case res := <-done:
		require.Contains(t, LegalMoves(pos), res.best)
	case <-time.After(10 * time.Second):
		t.Fatal("search did not stop")
	}
}

func TestSearchNodeLimit(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	pool := testPool(1)
	limits := &LimitsType{Nodes: 20000, StartTime: time.Now(), Depth: 64}
	best, _ := pool.StartThinking(pos, limits)
	require.NotEqual(t, MoveNone, best)
	// The periodic check fires every few thousand calls, so allow slack.
	require.Less(t, pool.NodesSearched(), uint64(400000))
}

func TestSearchMultiPV(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	pool := testPool(1)
	pool.Options.MultiPV = 3
	best, _ := pool.StartThinking(pos, fixedDepthLimits(4))
	require.Contains(t, LegalMoves(pos), best)

	main := pool.main()
	require.GreaterOrEqual(t, len(main.rootMoves), 3)
	// The first slots are sorted by score.
	require.GreaterOrEqual(t, main.rootMoves[0].Score, main.rootMoves[1].Score)
	require.GreaterOrEqual(t, main.rootMoves[1].Score, main.rootMoves[2].Score)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	stack := newSearchStack()
	ss := &stack[2]
	ss.Prev(1).CurrentMove = MoveNone

	v1 := Evaluate(pos, ss)
	v2 := Evaluate(pos, ss)
	require.Equal(t, v1, v2)

	// The start position is symmetric: the eval is the tempo bonus.
	require.Equal(t, Tempo, v1-Value(pos.Material()))
}

func TestEvaluateSideToMovePOV(t *testing.T) {
	// A rook up for black.
	pos, err := PositionFromSfen("4k4/9/9/9/4R4/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	stack := newSearchStack()
	ss := &stack[2]
	vBlack := Evaluate(pos, ss)
	require.Greater(t, vBlack, ValueZero)

	pos.SideToMove = White
	stack2 := newSearchStack()
	vWhite := Evaluate(pos, &stack2[2])
	require.Less(t, vWhite, ValueZero)
}
