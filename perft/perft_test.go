// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package perft

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shogine/shogine/engine"
)

// Reference counts from the standard initial position.
var startposData = []struct {
	depth int
	nodes uint64
}{
	{1, 30},
	{2, 900},
	{3, 25470},
	{4, 719731},
	{5, 19861490},
}

func TestPerftStartPos(t *testing.T) {
	for _, d := range startposData {
		if testing.Short() && d.depth > 4 {
			break
		}
		pos, err := engine.PositionFromSfen(engine.SfenStartPos)
		require.NoError(t, err)
		got := ParallelPerft(pos, d.depth)
		require.Equalf(t, d.nodes, got, "depth %d", d.depth)
	}
}

// The position with the most known legal moves.
func TestPerftMaxMoves(t *testing.T) {
	pos, err := engine.PositionFromSfen("R8/2K1S1SSk/4B4/9/9/9/9/9/1L1L1L3 b RBGSNLP3g3n17p 1")
	require.NoError(t, err)
	require.Equal(t, uint64(593), Perft(pos, 1))
}

// Tactical positions: perft is checked for internal consistency, the
// serial and parallel drivers and do/undo stability must agree.
var tacticalSfens = []string{
	"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
	"8l/1l+R2P3/p2pBG1pp/kps1p4/Nn1P2G2/P1P1P2PP/1PS6/1KSG3+r1/LN2+p3L w Sbgn3p 1",
	"lr6l/4g1k1p/1s1p1pgp1/p3P1N1P/2Pl5/PPn2P3/3+nPSGP1/2+b2K3/L4G1NR b 2BS2Psp 1",
	"4k4/4p4/9/9/9/9/9/4P4/4K4 b RBrb 1",
	"4k4/9/4P4/9/9/9/9/9/4K4 b 2G 1",
}

func TestPerftTactical(t *testing.T) {
	for _, sfen := range tacticalSfens {
		pos, err := engine.PositionFromSfen(sfen)
		require.NoError(t, err)
		require.True(t, pos.Validate(), sfen)

		before := pos.String()
		serial := Perft(pos, 3)
		require.Equal(t, before, pos.String(), "perft must not mutate the position")

		parallel := ParallelPerft(pos, 3)
		require.Equalf(t, serial, parallel, "serial and parallel disagree on %s", sfen)
		require.NotZero(t, serial, sfen)
	}
}
