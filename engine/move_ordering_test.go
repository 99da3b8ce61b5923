// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// pickerStack builds a minimal search stack for the picker.
func pickerStack() *SearchStack {
	stack := newSearchStack()
	return &stack[4]
}

// The picker must yield every pseudo-legal move exactly once, with no
// extras and no repeats.
func TestMovePickerYieldsAllMoves(t *testing.T) {
	for _, sfen := range testSfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err)
		th := newThread(NewThreadPool(1, 1), 0)
		pos = pos.Clone(th)

		want := make(map[Move]bool)
		if pos.InCheck() {
			for _, em := range Generate(pos, GenEvasions, nil) {
				want[em.Move] = true
			}
		} else {
			for _, em := range Generate(pos, GenNonEvasions, nil) {
				want[em.Move] = true
			}
		}

		got := make(map[Move]bool)
		mp := NewMovePicker(pos, MoveNone, 8*OnePly, pickerStack())
		for m := mp.NextMove(); m != MoveNone; m = mp.NextMove() {
			require.False(t, got[m], "%s yielded twice in %s", m, sfen)
			got[m] = true
		}

		require.Equal(t, len(want), len(got), "move sets differ in %s", sfen)
		for m := range want {
			require.True(t, got[m], "missing %s in %s", m, sfen)
		}
	}
}

// A pseudo-legal TT move comes first and is not repeated.
func TestMovePickerTTMoveFirst(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	th := newThread(NewThreadPool(1, 1), 0)
	pos = pos.Clone(th)

	ttMove, err := pos.USIToMove("7g7f")
	require.NoError(t, err)

	mp := NewMovePicker(pos, ttMove, 8*OnePly, pickerStack())
	first := mp.NextMove()
	require.Equal(t, ttMove, first)

	for m := mp.NextMove(); m != MoveNone; m = mp.NextMove() {
		require.NotEqual(t, ttMove, m, "tt move repeated")
	}
}

// An illegal TT move is filtered by the pseudo-legality check.
func TestMovePickerRejectsBogusTTMove(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	th := newThread(NewThreadPool(1, 1), 0)
	pos = pos.Clone(th)

	bogus := MakeMove(RankFile(4, 5), RankFile(0, 5), Rook, NoPieceType, false)
	mp := NewMovePicker(pos, bogus, 8*OnePly, pickerStack())
	for m := mp.NextMove(); m != MoveNone; m = mp.NextMove() {
		require.NotEqual(t, bogus, m)
	}
}

// Captures that win material come out before the quiet moves.
func TestMovePickerGoodCapturesFirst(t *testing.T) {
	// Black rook can take an undefended pawn.
	pos, err := PositionFromSfen("4k4/9/4p4/9/4R4/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	th := newThread(NewThreadPool(1, 1), 0)
	pos = pos.Clone(th)

	mp := NewMovePicker(pos, MoveNone, 8*OnePly, pickerStack())
	first := mp.NextMove()
	require.True(t, first.IsCapture(), "expected a capture first, got %s", first)
}

// The qsearch picker at recapture depth only yields recaptures.
func TestMovePickerRecaptureOnly(t *testing.T) {
	pos, err := PositionFromSfen("4k4/9/4p4/9/4R4/8B/9/9/4K4 b - 1")
	require.NoError(t, err)
	th := newThread(NewThreadPool(1, 1), 0)
	pos = pos.Clone(th)

	sq := RankFile(2, 5) // 5c
	mp := NewQMovePicker(pos, MoveNone, DepthQsRecaptures, sq)
	for m := mp.NextMove(); m != MoveNone; m = mp.NextMove() {
		require.Equal(t, sq, m.To(), "non-recapture %s yielded", m)
	}
}

func TestPartialInsertionSort(t *testing.T) {
	moves := []ExtMove{
		{Move: 1, Value: 5},
		{Move: 2, Value: -100},
		{Move: 3, Value: 50},
		{Move: 4, Value: 0},
		{Move: 5, Value: -7},
	}
	partialInsertionSort(moves, -5)

	// Everything scoring >= -5 is sorted descending at the front.
	require.Equal(t, int32(50), moves[0].Value)
	require.Equal(t, int32(5), moves[1].Value)
	require.Equal(t, int32(0), moves[2].Value)
}
