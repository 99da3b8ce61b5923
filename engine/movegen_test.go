// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSfens = []string{
	SfenStartPos,
	"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
	"8l/1l+R2P3/p2pBG1pp/kps1p4/Nn1P2G2/P1P1P2PP/1PS6/1KSG3+r1/LN2+p3L w Sbgn3p 1",
	"lr6l/4g1k1p/1s1p1pgp1/p3P1N1P/2Pl5/PPn2P3/3+nPSGP1/2+b2K3/L4G1NR b 2BS2Psp 1",
	"4k4/9/4P4/9/9/9/9/9/4K4 b 2G 1",
	"7lk/9/7G1/9/9/9/9/9/4K4 b P 1",
}

// wouldBeStuck returns true for a non-promoting move that leaves the
// piece with no further moves, which the rules forbid.
func wouldBeStuck(c Color, pt PieceType, to Square) bool {
	switch pt {
	case Pawn, Lance:
		if c == Black {
			return to < 9
		}
		return to > 71
	case Knight:
		if c == Black {
			return to < 18
		}
		return to > 62
	}
	return false
}

// bruteForceLegal enumerates every representable move and filters it
// through PseudoLegal and Legal.
func bruteForceLegal(pos *Position) map[Move]bool {
	res := make(map[Move]bool)
	us := pos.SideToMove
	pinned := pos.PinnedPieces(us)

	add := func(m Move) {
		if pos.PseudoLegal(m) && pos.Legal(m, pinned) {
			res[m] = true
		}
	}

	for from := Square(0); from < BoardSquare; from++ {
		pi := pos.Get(from)
		if pi == NoPiece || pi.Color() != us {
			continue
		}
		for to := Square(0); to < BoardSquare; to++ {
			if from == to {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if !wouldBeStuck(us, pi.Type(), to) {
				add(MakeMove(from, to, pi.Type(), capture, false))
			}
			if CanPromoteFromTo(us, from, to) && pi.Type() <= Rook {
				add(MakeMove(from, to, pi.Type(), capture, true))
			}
		}
	}

	for pt := Pawn; pt <= Gold; pt++ {
		if !pos.Hand(us).Has(pt) {
			continue
		}
		for to := Square(0); to < BoardSquare; to++ {
			if wouldBeStuck(us, pt, to) {
				continue
			}
			add(MakeDrop(pt, to))
		}
	}
	return res
}

// The staged generator must agree with the brute-force enumeration.
func TestLegalAgreesWithBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for _, sfen := range testSfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err, sfen)

		for step := 0; step < 30; step++ {
			want := bruteForceLegal(pos)
			got := make(map[Move]bool)
			for _, m := range LegalMoves(pos) {
				require.False(t, got[m], "%s generated twice in %s", m, pos)
				got[m] = true
			}
			require.Equal(t, len(want), len(got), "move count in %s", pos)
			for m := range want {
				require.True(t, got[m], "missing %s in %s", m, pos)
			}

			moves := LegalMoves(pos)
			if len(moves) == 0 {
				break
			}
			pos.DoMove(moves[r.Intn(len(moves))])
		}
	}
}

// No generated move may leave the own king attacked.
func TestNoIllegalMovePastFilter(t *testing.T) {
	for _, sfen := range testSfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err)
		us := pos.SideToMove

		for _, m := range LegalMoves(pos) {
			pos.DoMove(m)
			attacked := pos.IsAttacked(pos.KingSquare(us), us, pos.Occupied())
			pos.UndoMove(m)
			require.False(t, attacked, "move %s leaves the king en prise in %s", m, sfen)
		}
	}
}

func TestStartPosMoveCount(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	require.Len(t, LegalMoves(pos), 30)
}

// Captures plus quiets must cover exactly the non-evasion moves.
func TestStagedGeneratorsPartition(t *testing.T) {
	for _, sfen := range testSfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err)
		if pos.InCheck() {
			continue
		}

		all := make(map[Move]bool)
		for _, em := range Generate(pos, GenCaptures, nil) {
			require.True(t, em.Move.IsCapture(), "%s in captures", em.Move)
			all[em.Move] = true
		}
		for _, em := range Generate(pos, GenQuiets, nil) {
			require.False(t, em.Move.IsCapture(), "%s in quiets", em.Move)
			require.False(t, all[em.Move])
			all[em.Move] = true
		}

		nonEvasions := Generate(pos, GenNonEvasions, nil)
		require.Equal(t, len(all), len(nonEvasions), sfen)
		for _, em := range nonEvasions {
			require.True(t, all[em.Move], "%s missing from staged union", em.Move)
		}
	}
}

// Every move from the checks stage must give check.
func TestChecksStageGivesCheck(t *testing.T) {
	for _, sfen := range testSfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err)
		if pos.InCheck() {
			continue
		}
		ci := NewCheckInfo(pos)
		for _, em := range Generate(pos, GenQuietChecks, nil) {
			require.True(t, pos.GivesCheck(em.Move, ci), "%s from quiet checks in %s", em.Move, sfen)
			require.False(t, em.Move.IsCapture())
		}
	}
}

// Evasions must resolve the check.
func TestEvasionsResolveCheck(t *testing.T) {
	pos, err := PositionFromSfen("4k4/9/9/9/9/9/4r4/9/4K4 b G 1")
	require.NoError(t, err)
	require.True(t, pos.InCheck())

	us := pos.SideToMove
	evasions := Generate(pos, GenEvasions, nil)
	require.NotEmpty(t, evasions)
	pinned := pos.PinnedPieces(us)
	for _, em := range evasions {
		if !pos.Legal(em.Move, pinned) {
			continue
		}
		pos.DoMove(em.Move)
		attacked := pos.IsAttacked(pos.KingSquare(us), us, pos.Occupied())
		pos.UndoMove(em.Move)
		require.False(t, attacked, "%s does not resolve the check", em.Move)
	}
}

func TestDropGenerationMasks(t *testing.T) {
	// All seven piece kinds in hand on an almost empty board.
	pos, err := PositionFromSfen("4k4/9/9/9/9/9/9/9/4K4 b RBGSNLP 1")
	require.NoError(t, err)

	for _, em := range Generate(pos, GenNonEvasions, nil) {
		m := em.Move
		if !m.IsDrop() {
			continue
		}
		to := m.To()
		switch m.DropPieceType() {
		case Pawn, Lance:
			require.Greater(t, to.Rank(), 0, "%s dropped on the back rank", m)
		case Knight:
			require.Greater(t, to.Rank(), 1, "%s dropped too deep", m)
		}
	}
}
