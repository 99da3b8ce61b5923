// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// see.go implements static exchange evaluation as a threshold
// predicate, iterating least-valuable attacker first and revealing
// x-ray attackers through sliders.
// https://www.chessprogramming.org/Static_Exchange_Evaluation

package engine

// seeOrder lists attackers from least to most valuable.
var seeOrder = [...]PieceType{
	Pawn, Lance, Knight, PromotedPawn, PromotedLance, Silver,
	PromotedKnight, PromotedSilver, Gold, Bishop, Rook, Horse, Dragon, King,
}

// minAttacker removes the least valuable defender attacking to, adds
// any x-ray attacker it uncovers, and returns its piece type.
func minAttacker(pos *Position, to Square, defendSide Color, defenders BitBoard, attackers, occupied *BitBoard) PieceType {
	var b BitBoard
	var pt PieceType
	for _, pt = range seeOrder {
		if pt == King {
			return King
		}
		b = defenders.And(pos.Pieces(pt, defendSide))
		if b.Test() {
			break
		}
	}

	sq := b.FirstOne()
	occupied.XorBit(sq)

	// Capturing along a line may reveal a new slider behind.
	switch directionTable[to][sq] {
	case DirFile:
		attacks := pos.RookDragon(defendSide)
		attacks.AndOr(pos.Pieces(Lance, defendSide), lanceAttacksTable[defendSide.Opposite()][to][0])
		attacks = attacks.And(rookAttack(*occupied, to)).And(fileMaskTable[to.column()])
		*attackers = attackers.Or(attacks)
	case DirRank:
		attacks := pos.RookDragon(defendSide)
		attacks = attacks.And(rookAttack(*occupied, to)).And(rankMaskTable[to.Rank()])
		*attackers = attackers.Or(attacks)
	case DirLeft45:
		attacks := pos.BishopHorse(defendSide)
		attacks = attacks.And(bishopAttack(*occupied, to)).And(left45MaskTable[to.Rank()-to.column()+8])
		*attackers = attackers.Or(attacks)
	case DirRight45:
		attacks := pos.BishopHorse(defendSide)
		attacks = attacks.And(bishopAttack(*occupied, to)).And(right45MaskTable[to.Rank()+to.column()])
		*attackers = attackers.Or(attacks)
	}
	*attackers = attackers.And(*occupied)
	return pt
}

// SeeGe returns whether the capture sequence started by m on its
// destination square yields at least v for the side to move.
func (pos *Position) SeeGe(m Move, v Value) bool {
	return pos.seeGe(m, v, pos.SideToMove)
}

// SeeGeReverseMove estimates the exchange if the opponent undid m: a
// quick check whether the vacated square is safe to return to.
func (pos *Position) SeeGeReverseMove(m Move, v Value) bool {
	to := m.From()
	if to >= BoardSquare {
		return v <= ValueZero
	}
	from := m.To()
	// Captures are ignored; callers only pass quiet moves.
	return pos.seeGe(MakeMove(from, to, m.PieceType(), NoPieceType, false), v, pos.SideToMove.Opposite())
}

func (pos *Position) seeGe(m Move, v Value, c Color) bool {
	to := m.To()
	from := m.From()
	sideToMove := c.Opposite()
	occupied := pos.Occupied()

	var balance Value
	var nextVictim PieceType
	var attackers BitBoard

	if from < BoardSquare {
		occupied.XorBit(from)
		balance = exchangePieceValueTable[m.Capture()]
		nextVictim = m.PieceType()

		if balance < v {
			return false
		}
		if nextVictim == King {
			return true
		}

		attackers = pos.AttacksTo(to, sideToMove, occupied)
		if !attackers.Test() {
			return true
		}

		balance -= exchangePieceValueTable[nextVictim]
		if balance >= v {
			return true
		}
	} else {
		nextVictim = m.DropPieceType()
		balance = ValueZero
		if balance < v {
			return false
		}

		attackers = pos.AttacksTo(to, sideToMove, occupied)
		if !attackers.Test() {
			return true
		}

		balance -= exchangePieceValueTable[nextVictim]
		if balance >= v {
			return true
		}
		occupied.XorBit(to)
	}

	attackers = attackers.Or(pos.AttacksTo(to, sideToMove.Opposite(), occupied)).And(occupied)
	relativeSideToMove := true

	for {
		sideToMoveAttackers := attackers.And(pos.pieceBoard[sideToMove][Occupied])
		if !sideToMoveAttackers.Test() {
			return relativeSideToMove
		}

		nextVictim = minAttacker(pos, to, sideToMove, sideToMoveAttackers, &attackers, &occupied)

		if nextVictim == King {
			// The king recaptures only when the opponent cannot answer.
			return relativeSideToMove == attackers.Contract(pos.pieceBoard[sideToMove.Opposite()][Occupied])
		}

		if relativeSideToMove {
			balance += exchangePieceValueTable[nextVictim]
		} else {
			balance -= exchangePieceValueTable[nextVictim]
		}

		relativeSideToMove = !relativeSideToMove
		if relativeSideToMove == (balance >= v) {
			return relativeSideToMove
		}

		sideToMove = sideToMove.Opposite()
	}
}

// SeeSign returns whether the static exchange of m is at least zero.
func (pos *Position) SeeSign(m Move) bool {
	return pos.SeeGe(m, ValueZero)
}
