// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// snapshot captures everything a make/unmake pair must restore.
type snapshot struct {
	pieceBoard [ColorArraySize][PieceTypeArraySize]BitBoard
	hand       [ColorArraySize]Hand
	squares    [BoardSquare]Piece
	kingSquare [ColorArraySize]Square
	sideToMove Color
	gamePly    int
	boardKey   uint64
	handKey    uint64
	material   Value
	checkers   BitBoard
	blackList  [EvalListSize]KPPIndex
	whiteList  [EvalListSize]KPPIndex
}

func takeSnapshot(pos *Position) snapshot {
	s := snapshot{
		pieceBoard: pos.pieceBoard,
		hand:       pos.hand,
		squares:    pos.squares,
		kingSquare: pos.kingSquare,
		sideToMove: pos.SideToMove,
		gamePly:    pos.GamePly,
		boardKey:   pos.st().BoardKey,
		handKey:    pos.st().HandKey,
		material:   pos.st().Material,
		checkers:   pos.st().Checkers,
	}
	// The lists are a set; order depends on move history.
	s.blackList = pos.st().BlackKPPList
	s.whiteList = pos.st().WhiteKPPList
	sortList(s.blackList[:])
	sortList(s.whiteList[:])
	return s
}

func sortList(l []KPPIndex) {
	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
}

func TestSfenRoundTrip(t *testing.T) {
	sfens := []string{
		SfenStartPos,
		"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
		"8l/1l+R2P3/p2pBG1pp/kps1p4/Nn1P2G2/P1P1P2PP/1PS6/1KSG3+r1/LN2+p3L w Sbgn3p 1",
		"4k4/9/9/9/9/9/9/9/4K4 b G 1",
	}
	for _, sfen := range sfens {
		pos, err := PositionFromSfen(sfen)
		require.NoError(t, err, sfen)
		require.Equal(t, sfen, pos.String())
	}
}

func TestSfenErrors(t *testing.T) {
	for _, sfen := range []string{"", "lnsgkgsnl", "xxx b - 1"} {
		if _, err := PositionFromSfen(sfen); err == nil {
			t.Errorf("expected error for %q", sfen)
		}
	}
}

// TestDoUndoMove plays random games and verifies that undo restores the
// position bit-exactly, including keys, material and feature lists.
func TestDoUndoMove(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for game := 0; game < 20; game++ {
		pos, err := PositionFromSfen(SfenStartPos)
		require.NoError(t, err)

		var played []Move
		var snapshots []snapshot
		for ply := 0; ply < 200; ply++ {
			moves := LegalMoves(pos)
			if len(moves) == 0 {
				break
			}
			m := moves[r.Intn(len(moves))]

			before := takeSnapshot(pos)
			pos.DoMove(m)
			pos.UndoMove(m)
			require.Equal(t, before, takeSnapshot(pos), "do/undo at ply %d, move %s", ply, m)

			snapshots = append(snapshots, before)
			played = append(played, m)
			pos.DoMove(m)

			require.True(t, pos.Validate(), "position after %s", m)
		}

		// Unwind the whole game.
		for i := len(played) - 1; i >= 0; i-- {
			pos.UndoMove(played[i])
			require.Equal(t, snapshots[i], takeSnapshot(pos))
		}
	}
}

// The keys maintained incrementally must match a from-scratch rebuild.
func TestZobristIncremental(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	for ply := 0; ply < 120; ply++ {
		moves := LegalMoves(pos)
		if len(moves) == 0 {
			break
		}
		pos.DoMove(moves[r.Intn(len(moves))])

		fresh, err := PositionFromSfen(pos.String())
		require.NoError(t, err)
		require.Equal(t, fresh.st().BoardKey, pos.st().BoardKey, "board key at ply %d", ply)
		require.Equal(t, fresh.st().HandKey, pos.st().HandKey, "hand key at ply %d", ply)
		require.Equal(t, fresh.st().Material, pos.st().Material, "material at ply %d", ply)
	}
}

func TestUndoSequenceRestoresStart(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	before := takeSnapshot(pos)

	var moves []Move
	for _, s := range []string{"7g7f", "3c3d", "7f7e"} {
		m, err := pos.USIToMove(s)
		require.NoError(t, err)
		pos.DoMove(m)
		moves = append(moves, m)
	}
	for i := len(moves) - 1; i >= 0; i-- {
		pos.UndoMove(moves[i])
	}
	require.Equal(t, before, takeSnapshot(pos))
}

func TestGivesCheck(t *testing.T) {
	// Black rook on 2b promotes next to the white king on 1a.
	pos, err := PositionFromSfen("8k/7R1/9/9/9/9/9/9/4K4 b - 1")
	require.NoError(t, err)

	m, err := pos.USIToMove("2b2a+")
	require.NoError(t, err)
	require.True(t, pos.GivesCheck(m, NewCheckInfo(pos)))

	quiet, err := pos.USIToMove("2b2h")
	require.NoError(t, err)
	require.False(t, pos.GivesCheck(quiet, NewCheckInfo(pos)))
}

func TestGivesCheckDiscovered(t *testing.T) {
	// Lance behind a silver: the silver stepping aside uncovers check.
	pos, err := PositionFromSfen("4k4/9/4S4/9/4L4/9/9/9/4K4 b - 1")
	require.NoError(t, err)

	m, err := pos.USIToMove("5c6d")
	require.NoError(t, err)
	require.True(t, pos.GivesCheck(m, NewCheckInfo(pos)))
}

func TestRepetitionDraw(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	shuffle := []string{"5i5h", "5a5b", "5h5i", "5b5a"}
	for i, s := range shuffle {
		require.Equal(t, NoRepetition, pos.InRepetition(), "ply %d", i)
		m, err := pos.USIToMove(s)
		require.NoError(t, err)
		pos.DoMove(m)
	}
	// The start position has recurred with identical hands.
	require.Equal(t, RepetitionDraw, pos.InRepetition())

	// Further cycles keep reporting the draw.
	for _, s := range shuffle {
		m, err := pos.USIToMove(s)
		require.NoError(t, err)
		pos.DoMove(m)
	}
	require.Equal(t, RepetitionDraw, pos.InRepetition())
}

func TestRepetitionPerpetualCheck(t *testing.T) {
	// Black checks with the rook on alternating files, white dodges
	// with the king; the repetition is perpetual check by black.
	pos, err := PositionFromSfen("4k4/9/9/9/5R3/9/9/9/8K w - 1")
	require.NoError(t, err)

	seq := []string{"5a5b", "4e5e", "5b4a", "5e4e", "4a5b", "4e5e", "5b4a", "5e4e"}
	for _, s := range seq {
		m, err := pos.USIToMove(s)
		require.NoError(t, err)
		pos.DoMove(m)
	}
	// White to move and in check; black repeated the position by
	// checking continuously, so the escape wins for white.
	require.Equal(t, PerpetualCheckWin, pos.InRepetition())
}

// Same board with a dominating hand: the classifier picks the winner
// from the black-hand comparison.
func TestRepetitionSuperiorHand(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	pos.pushState()
	pos.pushState()
	st := pos.st()
	prev := pos.prevSt(2)
	prev.BoardKey = st.BoardKey
	prev.HandKey = st.HandKey + 1
	prev.HandBlack = HandZero
	st.HandBlack = HandZero.Add(Pawn)
	st.PliesFromNull = 2

	require.Equal(t, BlackWinRepetition, pos.InRepetition())

	st.HandBlack, prev.HandBlack = prev.HandBlack, st.HandBlack
	require.Equal(t, BlackLoseRepetition, pos.InRepetition())
}

// The same-board score is suppressed exactly on ply 2.
func TestSamePositionPlyGuard(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)

	require.Equal(t, ValueNone, repetitionValue(pos, BlackWinRepetition, 2))
	require.Equal(t, ValueSamePosition, repetitionValue(pos, BlackWinRepetition, 3))
	require.Equal(t, -ValueSamePosition, repetitionValue(pos, BlackLoseRepetition, 3))
	require.Equal(t, MateIn(5), repetitionValue(pos, PerpetualCheckWin, 5))
	require.Equal(t, MatedIn(5), repetitionValue(pos, PerpetualCheckLose, 5))
	require.Equal(t, ValueNone, repetitionValue(pos, NoRepetition, 5))
}

func TestDeclarationWin(t *testing.T) {
	// Black: king plus enough zone pieces and both majors, with hand
	// pieces pushing the weighted count to 29, past the 28 black needs.
	pos, err := PositionFromSfen("G1SGKGS2/1R5B1/PPPPPPPPP/9/9/9/9/9/4k4 b G2S2L 1")
	require.NoError(t, err)
	require.True(t, pos.Validate())
	require.True(t, pos.IsDeclarationWin())

	// Not from the other side.
	pos2, err := PositionFromSfen("G1SGKGS2/1R5B1/PPPPPPPPP/9/9/9/9/9/4k4 w G2S2L 1")
	require.NoError(t, err)
	require.False(t, pos2.IsDeclarationWin())
}

func TestDropPawnMateForbidden(t *testing.T) {
	// The pawn drop on 1b would be instant mate: forbidden. The white
	// king is boxed in by its own lance and the gold guards both the
	// drop square and the flight square.
	pos, err := PositionFromSfen("7lk/9/7G1/9/9/9/9/9/4K4 b P 1")
	require.NoError(t, err)
	require.True(t, pos.GivesMateByDropPawn(RankFile(1, 1)))
	require.False(t, pos.PseudoLegal(MakeDrop(Pawn, RankFile(1, 1))))

	for _, m := range LegalMoves(pos) {
		if m.IsDrop() && m.DropPieceType() == Pawn && m.To() == RankFile(1, 1) {
			t.Fatalf("drop pawn mate generated: %s", m)
		}
	}
}

func TestNoTwoPawnsOnFile(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	m, err := pos.USIToMove("7g7f")
	require.NoError(t, err)
	pos.DoMove(m)
	m, err = pos.USIToMove("3c3d")
	require.NoError(t, err)
	pos.DoMove(m)

	// No pawn may be dropped anywhere: every file has an own pawn.
	// (Black has no pawn in hand anyway; force one for the test.)
	pos.hand[Black] = pos.hand[Black].Add(Pawn)
	for _, m := range Generate(pos, GenNonEvasions, nil) {
		if m.Move.IsDrop() && m.Move.DropPieceType() == Pawn {
			t.Fatalf("pawn dropped on an occupied file: %s", m.Move)
		}
	}
}

func TestNullMove(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	before := takeSnapshot(pos)
	key := pos.Key()

	pos.DoNullMove()
	require.Equal(t, White, pos.SideToMove)
	require.NotEqual(t, key, pos.Key())
	require.Equal(t, 0, pos.PliesFromNull())
	pos.UndoNullMove()
	require.Equal(t, before, takeSnapshot(pos))
}

func TestKeyAfter(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	for _, m := range LegalMoves(pos)[:10] {
		expected := pos.KeyAfter(m)
		pos.DoMove(m)
		require.Equal(t, expected, pos.Key(), "%s", m)
		pos.UndoMove(m)
	}
}

func TestExclusionKeyDiffers(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	require.NotEqual(t, pos.Key(), pos.ExclusionKey())
}

func TestCloneIsIndependent(t *testing.T) {
	pos, err := PositionFromSfen(SfenStartPos)
	require.NoError(t, err)
	clone := pos.Clone(nil)
	require.Equal(t, takeSnapshot(pos), takeSnapshot(clone))

	m, err := clone.USIToMove("7g7f")
	require.NoError(t, err)
	clone.DoMove(m)
	require.Equal(t, Black, pos.SideToMove)
	require.NotEqual(t, pos.Key(), clone.Key())
}
