// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// If a move meets threshold v1, it meets every smaller threshold.
func TestSeeMonotonic(t *testing.T) {
	thresholds := []Value{-2000, -600, -100, 0, 100, 600, 2000}
	for _, sfen := range testSfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err)

		for _, em := range Generate(pos, GenCaptures, nil) {
			seenFalse := false
			for _, v := range thresholds {
				ok := pos.SeeGe(em.Move, v)
				if seenFalse {
					require.False(t, ok,
						"see_ge(%s, %d) true above a failed threshold in %s", em.Move, v, sfen)
				}
				if !ok {
					seenFalse = true
				}
			}
		}
	}
}

func TestSeeSimpleExchanges(t *testing.T) {
	// Pawn takes an undefended pawn.
	pos, err := PositionFromSfen("4k4/9/4p4/4P4/9/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	m, err := pos.USIToMove("5d5c")
	require.NoError(t, err)
	require.True(t, pos.SeeGe(m, ValueZero))
	require.True(t, pos.SeeGe(m, exchangePieceValueTable[Pawn]))

	// Rook takes a pawn defended by a gold: loses the rook.
	pos, err = PositionFromSfen("4k4/4g4/4p4/9/4R4/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	m, err = pos.USIToMove("5e5c")
	require.NoError(t, err)
	require.False(t, pos.SeeGe(m, ValueZero))
	// Still a capture of a pawn, so the floor is pawn minus rook.
	require.True(t, pos.SeeGe(m, exchangePieceValueTable[Pawn]-exchangePieceValueTable[Rook]))

	// Undefended piece is simply won.
	pos, err = PositionFromSfen("4k4/9/4p4/9/4R4/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	m, err = pos.USIToMove("5e5c")
	require.NoError(t, err)
	require.True(t, pos.SeeGe(m, exchangePieceValueTable[Pawn]))
}

// A drop never gains material: it meets only thresholds <= 0.
func TestSeeDrop(t *testing.T) {
	pos, err := PositionFromSfen("4k4/9/9/9/9/9/9/9/4K4 b G 1")
	require.NoError(t, err)
	m := MakeDrop(Gold, RankFile(4, 5))
	require.True(t, pos.PseudoLegal(m))
	require.True(t, pos.SeeGe(m, ValueZero))
	require.False(t, pos.SeeGe(m, 1))
}

// X-ray: the recapture behind the first capturer is seen.
func TestSeeXRay(t *testing.T) {
	// Black lance behind a pawn pushes the exchange on 5c in black's
	// favor: pawn takes, silver recaptures, lance recaptures.
	pos, err := PositionFromSfen("4k4/3s5/4p4/4P4/4L4/9/9/9/4K4 b - 1")
	require.NoError(t, err)
	m, err := pos.USIToMove("5d5c")
	require.NoError(t, err)
	// Pawn for pawn, then silver for lance at worst.
	require.True(t, pos.SeeGe(m, ValueZero))
}
