// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// mateProblems pairs positions with their unique mating move, or ""
// when no mate in one exists.
var mateProblems = []struct {
	sfen string
	best string
}{
	// Gold drop backed by the pawn.
	{"4k4/9/4P4/9/9/9/9/9/4K4 b G 1", "G*5b"},
	// A lone gold drop can always be captured by the king.
	{"4k4/9/9/9/9/9/9/9/4K4 b G 1", ""},
	// Gold on the board, no drop, no mate.
	{"4k4/9/4G4/9/9/9/9/9/4K4 b - 1", ""},
	// Board move: gold steps in, backed by the lance behind it.
	{"8k/9/8G/9/9/9/9/9/4K3L b - 1", "1c1b"},
	// Rook drop next to the king, supported by the dragon.
	{"8k/9/7+R1/9/9/9/9/9/4K4 b R 1", "R*2a"},
	// No mate: the same drop without support.
	{"8k/9/9/9/9/9/9/9/4K4 b R 1", ""},
}

func TestMate1Ply(t *testing.T) {
	for _, d := range mateProblems {
		pos, err := PositionFromSfen(d.sfen)
		require.NoError(t, err, d.sfen)
		require.False(t, pos.InCheck(), d.sfen)

		m := SearchMate1Ply(pos)
		if d.best == "" {
			require.Equal(t, MoveNone, m, "false mate %s in %s", m, d.sfen)
			continue
		}
		require.NotEqual(t, MoveNone, m, "missed mate in %s", d.sfen)
		require.Equal(t, d.best, m.USI(), d.sfen)
	}
}

// Whatever the mate searcher returns must be a legal checkmate.
func TestMate1PlySoundness(t *testing.T) {
	for _, sfen := range testSfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err)
		if pos.InCheck() {
			continue
		}

		m := SearchMate1Ply(pos)
		if m == MoveNone {
			continue
		}

		legal := false
		for _, lm := range LegalMoves(pos) {
			if lm == m {
				legal = true
			}
		}
		require.True(t, legal, "mate move %s not legal in %s", m, sfen)

		pos.DoMove(m)
		require.True(t, pos.InCheck(), "mate move %s does not check", m)
		require.Empty(t, LegalMoves(pos), "mate move %s is not mate in %s", m, sfen)
		pos.UndoMove(m)
	}
}

// Exhaustive cross-check on small positions: the searcher finds a mate
// exactly when one of the legal moves is a checkmate.
func TestMate1PlyCompleteness(t *testing.T) {
	sfens := []string{
		"4k4/9/4P4/9/9/9/9/9/4K4 b G 1",
		"4k4/9/4P4/9/9/9/9/9/4K4 b S 1",
		"8k/9/8G/9/9/9/9/9/4K3L b - 1",
		"8k/7l1/9/9/9/9/9/9/4K4 b RG 1",
		"4k4/9/9/9/9/9/9/9/4K4 b RBGSNLP 1",
		"ln7/ks7/pp7/9/9/9/9/9/8K b 2G 1",
	}
	for _, sfen := range sfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err, sfen)
		if pos.InCheck() {
			continue
		}

		hasMate := false
		for _, m := range LegalMoves(pos) {
			pos.DoMove(m)
			if pos.InCheck() && len(LegalMoves(pos)) == 0 {
				hasMate = true
			}
			pos.UndoMove(m)
			if hasMate {
				break
			}
		}

		got := SearchMate1Ply(pos)
		require.Equal(t, hasMate, got != MoveNone,
			"mate searcher disagrees with brute force in %s (got %s)", sfen, got)
	}
}
