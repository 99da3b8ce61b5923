// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"testing"
)

func TestSquare(t *testing.T) {
	data := []struct {
		sq   Square
		str  string
		file int
		rank int
	}{
		{0, "9a", 9, 0},
		{8, "1a", 1, 0},
		{40, "5e", 5, 4},
		{72, "9i", 9, 8},
		{80, "1i", 1, 8},
	}
	for _, d := range data {
		if got := d.sq.String(); got != d.str {
			t.Errorf("%d.String() = %s, want %s", d.sq, got, d.str)
		}
		if d.sq.File() != d.file || d.sq.Rank() != d.rank {
			t.Errorf("%d: file/rank = %d/%d, want %d/%d",
				d.sq, d.sq.File(), d.sq.Rank(), d.file, d.rank)
		}
		if got, err := SquareFromString(d.str); err != nil || got != d.sq {
			t.Errorf("SquareFromString(%s) = %v, %v", d.str, got, err)
		}
		if d.sq.Inverse().Inverse() != d.sq {
			t.Errorf("%d: double inverse broken", d.sq)
		}
	}
}

func TestMovePacking(t *testing.T) {
	m := MakeMove(RankFile(6, 7), RankFile(5, 7), Pawn, NoPieceType, false)
	if m.From() != RankFile(6, 7) || m.To() != RankFile(5, 7) {
		t.Errorf("from/to lost: %v", m)
	}
	if m.PieceType() != Pawn || m.Capture() != NoPieceType || m.IsPromotion() || m.IsDrop() {
		t.Errorf("fields lost: %v", m)
	}
	if m.USI() != "7g7f" {
		t.Errorf("USI = %s, want 7g7f", m.USI())
	}

	m = MakeMove(RankFile(1, 2), RankFile(2, 3), Bishop, Silver, true)
	if !m.IsPromotion() || m.Capture() != Silver || m.USI() != "2b3c+" {
		t.Errorf("promotion capture broken: %s", m.USI())
	}

	d := MakeDrop(Gold, RankFile(4, 5))
	if !d.IsDrop() || d.DropPieceType() != Gold || d.USI() != "G*5e" {
		t.Errorf("drop broken: %s", d.USI())
	}
	if d.Capture() != NoPieceType {
		t.Errorf("drop captures: %s", d.USI())
	}
}

func TestMoveSentinels(t *testing.T) {
	if MoveNone.IsOK() || MoveNull.IsOK() {
		t.Error("sentinels must not be ok")
	}
	m := MakeMove(RankFile(6, 7), RankFile(5, 7), Pawn, NoPieceType, false)
	if !m.IsOK() {
		t.Error("real move must be ok")
	}
}

func TestPiece(t *testing.T) {
	for c := Black; c <= White; c++ {
		for pt := Pawn; pt <= Dragon; pt++ {
			pi := ColorPiece(c, pt)
			if pi.Color() != c || pi.Type() != pt {
				t.Errorf("ColorPiece(%v, %v) round trip failed", c, pt)
			}
		}
	}
	// Promotion flips one bit, demotion strips it.
	if Pawn+Promoted != PromotedPawn || PromotedPawn.Demoted() != Pawn {
		t.Error("promotion bit broken for pawn")
	}
	if Rook+Promoted != Dragon || Dragon.Demoted() != Rook {
		t.Error("promotion bit broken for rook")
	}
}

func TestHand(t *testing.T) {
	h := HandZero
	for i := 0; i < 18; i++ {
		h = h.Add(Pawn)
	}
	h = h.Add(Rook).Add(Rook).Add(Bishop)
	h = h.Add(Gold).Add(Gold).Add(Gold).Add(Gold)

	if h.Count(Pawn) != 18 || h.Count(Rook) != 2 || h.Count(Bishop) != 1 || h.Count(Gold) != 4 {
		t.Errorf("counts broken: %d %d %d %d",
			h.Count(Pawn), h.Count(Rook), h.Count(Bishop), h.Count(Gold))
	}
	if h.Count(Lance) != 0 || h.Count(Silver) != 0 {
		t.Error("fields bleed into each other")
	}
	if !h.Has(Pawn) || h.Has(Knight) {
		t.Error("Has broken")
	}
	if !h.HasExceptPawn() {
		t.Error("HasExceptPawn broken")
	}

	h = h.Sub(Pawn)
	if h.Count(Pawn) != 17 {
		t.Error("Sub broken")
	}

	// Captured promoted pieces enter as their base type.
	h2 := HandZero.Add(PromotedPawn).Add(Dragon)
	if h2.Count(Pawn) != 1 || h2.Count(Rook) != 1 {
		t.Error("promoted captures must demote")
	}
}

func TestHandDomination(t *testing.T) {
	a := HandZero.Add(Pawn).Add(Pawn).Add(Gold)
	b := HandZero.Add(Pawn)

	if !a.DominatesOrEquals(b) || !a.DominatesOrEquals(a) {
		t.Error("domination broken")
	}
	if b.DominatesOrEquals(a) {
		t.Error("reverse domination broken")
	}

	// Incomparable hands dominate in neither direction.
	c := HandZero.Add(Rook)
	d := HandZero.Add(Gold)
	if c.DominatesOrEquals(d) || d.DominatesOrEquals(c) {
		t.Error("incomparable hands")
	}
}

func TestCanPromote(t *testing.T) {
	if !CanPromote(Black, RankFile(2, 5)) || CanPromote(Black, RankFile(3, 5)) {
		t.Error("black promotion zone wrong")
	}
	if !CanPromote(White, RankFile(6, 5)) || CanPromote(White, RankFile(5, 5)) {
		t.Error("white promotion zone wrong")
	}
	// Leaving the zone still allows promotion.
	if !CanPromoteFromTo(Black, RankFile(2, 5), RankFile(3, 5)) {
		t.Error("promotion when leaving the zone wrong")
	}
}
