// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"testing"
)

func TestBitBoardBasics(t *testing.T) {
	var b BitBoard
	if b.Test() {
		t.Error("empty board tests true")
	}

	for _, sq := range []Square{0, 40, 62, 63, 80} {
		b.XorBit(sq)
		if !b.Has(sq) {
			t.Errorf("square %d not set", sq)
		}
	}
	if b.Popcount() != 5 {
		t.Errorf("popcount = %d, want 5", b.Popcount())
	}
	if b.FirstOne() != 0 || b.LastOne() != 80 {
		t.Errorf("first/last = %d/%d", b.FirstOne(), b.LastOne())
	}

	c := b
	if c.PopBit() != 0 || c.Popcount() != 4 {
		t.Error("PopBit broken")
	}

	if BbFull.Popcount() != 81 {
		t.Errorf("full board has %d squares", BbFull.Popcount())
	}
	if !b.Not().Test() || b.Not().Popcount() != 76 {
		t.Error("Not broken")
	}
}

func TestBitBoardLaneBoundary(t *testing.T) {
	// Squares 62 and 63 sit in different lanes.
	var b BitBoard
	b.XorBit(62)
	b.XorBit(63)
	if b[0] != 1<<62 || b[1] != 1 {
		t.Errorf("lane split wrong: %x %x", b[0], b[1])
	}
	if b.FirstOne() != 62 || b.LastOne() != 63 {
		t.Error("first/last across lanes wrong")
	}
}

func TestPawnAttackShift(t *testing.T) {
	// Black pawns move one rank up, including across the lane split.
	for _, sq := range []Square{40, 63, 64, 71, 72} {
		b := maskTable[sq]
		up := pawnAttack(Black, b)
		if !up.Has(sq-9) || up.Popcount() != 1 {
			t.Errorf("black pawn shift from %v wrong", sq)
		}
		if sq+9 < BoardSquare {
			down := pawnAttack(White, b)
			if !down.Has(sq+9) || down.Popcount() != 1 {
				t.Errorf("white pawn shift from %v wrong", sq)
			}
		}
	}
	// Pawns on the last rank shift off the board.
	if pawnAttack(Black, rankMaskTable[0]).Test() {
		t.Error("black pawns fell off the top")
	}
	if pawnAttack(White, rankMaskTable[8]).Test() {
		t.Error("white pawns fell off the bottom")
	}
}

func TestSlidingAttacks(t *testing.T) {
	empty := BitBoard{}
	center := RankFile(4, 5) // 5e

	if n := rookAttack(empty, center).Popcount(); n != 16 {
		t.Errorf("rook from 5e on empty board attacks %d squares, want 16", n)
	}
	if n := bishopAttack(empty, center).Popcount(); n != 16 {
		t.Errorf("bishop from 5e on empty board attacks %d squares, want 16", n)
	}
	if n := lanceAttack(empty, Black, center).Popcount(); n != 4 {
		t.Errorf("black lance from 5e attacks %d squares, want 4", n)
	}

	// A blocker stops the ray and is included as a target.
	blocker := maskTable[RankFile(2, 5)] // 5c
	att := lanceAttack(blocker, Black, center)
	if att.Popcount() != 2 || !att.Has(RankFile(2, 5)) || !att.Has(RankFile(3, 5)) {
		t.Errorf("blocked lance attack wrong:\n%v", att)
	}

	rk := rookAttack(blocker, center)
	if rk.Has(RankFile(1, 5)) || !rk.Has(RankFile(2, 5)) {
		t.Error("blocked rook ray wrong")
	}

	// Horse and dragon add the king neighborhood.
	if !horseAttack(empty, center).Has(RankFile(3, 5)) {
		t.Error("horse misses the forward step")
	}
	if !dragonAttack(empty, center).Has(RankFile(3, 4)) {
		t.Error("dragon misses the diagonal step")
	}
}

func TestStepAttacks(t *testing.T) {
	center := RankFile(4, 5)
	if n := kingAttacksTable[center].Popcount(); n != 8 {
		t.Errorf("king attacks %d, want 8", n)
	}
	if n := goldAttacksTable[Black][center].Popcount(); n != 6 {
		t.Errorf("gold attacks %d, want 6", n)
	}
	if n := silverAttacksTable[Black][center].Popcount(); n != 5 {
		t.Errorf("silver attacks %d, want 5", n)
	}
	if n := knightAttacksTable[Black][center].Popcount(); n != 2 {
		t.Errorf("knight attacks %d, want 2", n)
	}
	// White silver mirrors black silver.
	if silverAttacksTable[White][center].Popcount() != 5 {
		t.Error("white silver wrong")
	}
	// Knight on the edge has one move, near the top none.
	if knightAttacksTable[Black][RankFile(4, 1)].Popcount() != 1 {
		t.Error("edge knight wrong")
	}
	if knightAttacksTable[Black][RankFile(1, 5)].Test() {
		t.Error("knight on rank b should have no attacks")
	}
}

func TestBetweenAndDirection(t *testing.T) {
	a, b := RankFile(0, 5), RankFile(4, 5) // 5a, 5e
	if directionTable[a][b] != DirFile {
		t.Error("file direction wrong")
	}
	if betweenTable[a][b].Popcount() != 3 {
		t.Errorf("between 5a and 5e = %d squares, want 3", betweenTable[a][b].Popcount())
	}

	c := RankFile(4, 1) // 1e
	if directionTable[b][c] != DirRank {
		t.Error("rank direction wrong")
	}

	d := RankFile(0, 1) // 1a: diagonal from 5e
	if directionTable[b][d]&DirFlagDiag == 0 {
		t.Error("diagonal direction wrong")
	}
	if directionTable[b][RankFile(1, 7)] != DirMisc {
		t.Error("unrelated squares must be DirMisc")
	}

	if !aligned(a, RankFile(2, 5), b) {
		t.Error("aligned on a file broken")
	}
	if aligned(a, RankFile(2, 4), b) {
		t.Error("aligned false positive")
	}
}

func TestMagicIndexRoundTrip(t *testing.T) {
	// Every subset of a mask must map to a distinct index.
	for _, sq := range []Square{0, 4, 40, 76, 80} {
		mask := rookMaskTable[sq]
		seen := make(map[uint]bool)
		sqs := maskSquares(mask)
		for idx := 0; idx < 1<<uint(len(sqs)); idx++ {
			occ := BitBoard{}
			for i, s := range sqs {
				if idx&(1<<uint(i)) != 0 {
					occ.XorBit(s)
				}
			}
			mi := occ.MagicIndex(mask)
			if seen[mi] {
				t.Fatalf("magic index collision on square %v", sq)
			}
			seen[mi] = true
		}
	}
}

func TestDropMasks(t *testing.T) {
	if pawnDropableTable[0][Black] != lanceDropableMaskTable[Black] {
		t.Error("no pawns anywhere must allow drops on all but the back rank")
	}
	// A pawn on every file forbids all pawn drops.
	if pawnDropableTable[0x1ff][Black].Test() {
		t.Error("full file mask must forbid every pawn drop")
	}
	if knightDropableMaskTable[Black].Popcount() != 63 {
		t.Error("knight drop mask wrong")
	}
	if lanceDropableMaskTable[White].Contract(rankMaskTable[8]) {
		t.Error("white lance droppable on rank i")
	}
}
