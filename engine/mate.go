// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// mate.go implements the specialized 1-ply mate search. It tries drops
// that check from a square next to the king (knights from their jump
// squares) and, for each moving piece category, only the destinations
// that attack the enemy king; a candidate mates when the king cannot
// step out and no defender can capture the checker. Rook, bishop and
// lance drops that check from a distance are not tried.

package engine

// canKingEscapeAttack returns true if the checked king has a flight
// square outside checkAttack that is not attacked on occupied. sq is
// the checker's square and is never an escape: the caller has already
// established it is defended.
func canKingEscapeAttack(pos *Position, sq Square, checkAttack BitBoard, c Color, occupied BitBoard) bool {
	movable := kingAttacksTable[pos.kingSquare[c]].AndNot(pos.pieceBoard[c][Occupied])
	movable.NotAnd(checkAttack)
	movable = movable.AndNot(maskTable[sq])
	for movable.Test() {
		to := movable.PopBit()
		if !pos.IsAttacked(to, c, occupied) {
			return true
		}
	}
	return false
}

// canKingEscape is canKingEscapeAttack without a checker mask.
func canKingEscape(pos *Position, c Color, occupied BitBoard) bool {
	movable := pos.pieceBoard[c][Occupied].Not().And(kingAttacksTable[pos.kingSquare[c]])
	for movable.Test() {
		to := movable.PopBit()
		if !pos.IsAttacked(to, c, occupied) {
			return true
		}
	}
	return false
}

// canPieceCapture returns true if any of c's pieces can take the
// checker on sq without exposing the own king.
func canPieceCapture(pos *Position, sq Square, pinned BitBoard, c Color, occupied BitBoard) bool {
	enemy := c.Opposite()
	attack := pos.pieceBoard[c][Pawn].And(pawnAttacksTable[enemy][sq])
	attack.AndOr(pos.pieceBoard[c][Knight], knightAttacksTable[enemy][sq])
	attack.AndOr(pos.pieceBoard[c][Silver], silverAttacksTable[enemy][sq])
	attack.AndOr(pos.TotalGold(c), goldAttacksTable[enemy][sq])
	attack.AndOr(pos.pieceBoard[c][Horse].Or(pos.pieceBoard[c][Dragon]), kingAttacksTable[sq])
	attack.AndOr(pos.BishopHorse(c), bishopAttack(occupied, sq))
	attack.AndOr(pos.RookDragon(c), rookAttack(occupied, sq))
	attack.AndOr(pos.pieceBoard[c][Lance], lanceAttack(occupied, enemy, sq))

	for attack.Test() {
		from := attack.PopBit()
		if !pos.IsKingDiscover(from, sq, c, pinned) {
			return true
		}
	}
	return false
}

// canPieceCaptureFresh is canPieceCapture with pins recomputed on the
// given occupancy.
func canPieceCaptureFresh(pos *Position, sq Square, c Color, occupied BitBoard) bool {
	return canPieceCapture(pos, sq, pos.PinnedPiecesOn(c, occupied), c, occupied)
}

// searchDropMate looks for a mating drop onto bb. Drop-pawn-mate is
// forbidden by rule, so pawns are never tried.
func searchDropMate(pos *Position, bb BitBoard) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	occupied := pos.Occupied()
	hand := pos.hand[us]
	pinned := pos.PinnedPieces(enemy)

	if hand.Has(Rook) {
		// Adjacent checks only; distant rook drops are not tried.
		dest := bb.And(rookStepAttacksTable[king])
		for dest.Test() {
			sq := dest.PopBit()
			if !pos.IsAttacked(sq, enemy, occupied) {
				continue
			}
			newOccupied := occupied.Xor(maskTable[sq])
			if !canKingEscapeAttack(pos, sq, rookAttacksTable[sq][0], enemy, newOccupied) &&
				!canPieceCapture(pos, sq, pinned, enemy, newOccupied) {
				return MakeDrop(Rook, sq)
			}
		}
	} else if hand.Has(Lance) {
		// If a rook cannot mate a lance cannot either, hence else-if.
		dest := bb.And(pawnAttacksTable[enemy][king]).And(lanceDropableMaskTable[us])
		if dest.Test() {
			var sq Square
			if us == Black {
				sq = king + 9
			} else {
				sq = king - 9
			}
			if pos.IsAttacked(sq, enemy, occupied) {
				newOccupied := occupied.Xor(maskTable[sq])
				if !canKingEscapeAttack(pos, sq, lanceAttacksTable[us][sq][0], enemy, newOccupied) &&
					!canPieceCapture(pos, sq, pinned, enemy, newOccupied) {
					return MakeDrop(Lance, sq)
				}
			}
		}
	}

	if hand.Has(Bishop) {
		dest := bb.And(bishopStepAttacksTable[king])
		for dest.Test() {
			sq := dest.PopBit()
			if !pos.IsAttacked(sq, enemy, occupied) {
				continue
			}
			newOccupied := occupied.Xor(maskTable[sq])
			if !canKingEscapeAttack(pos, sq, bishopAttacksTable[sq][0], enemy, newOccupied) &&
				!canPieceCapture(pos, sq, pinned, enemy, newOccupied) {
				return MakeDrop(Bishop, sq)
			}
		}
	}

	if hand.Has(Gold) {
		var dest BitBoard
		if hand.Has(Rook) {
			// The square behind was already tried with the rook.
			dest = bb.And(goldAttacksTable[enemy][king].Xor(pawnAttacksTable[us][king]))
		} else {
			dest = bb.And(goldAttacksTable[enemy][king])
		}
		for dest.Test() {
			sq := dest.PopBit()
			if !pos.IsAttacked(sq, enemy, occupied) {
				continue
			}
			newOccupied := occupied.Xor(maskTable[sq])
			if !canKingEscapeAttack(pos, sq, goldAttacksTable[us][sq], enemy, newOccupied) &&
				!canPieceCapture(pos, sq, pinned, enemy, newOccupied) {
				return MakeDrop(Gold, sq)
			}
		}
	}

	if hand.Has(Silver) {
		var dest BitBoard
		if hand.Has(Gold) {
			if hand.Has(Bishop) {
				// Gold and bishop drops cover every silver mate.
				goto silverEnd
			}
			dest = bb.And(silverAttacksTable[enemy][king].And(goldAttacksTable[us][king]))
		} else if hand.Has(Bishop) {
			dest = bb.And(silverAttacksTable[enemy][king].And(goldAttacksTable[enemy][king]))
		} else {
			dest = bb.And(silverAttacksTable[enemy][king])
		}
		for dest.Test() {
			sq := dest.PopBit()
			if !pos.IsAttacked(sq, enemy, occupied) {
				continue
			}
			newOccupied := occupied.Xor(maskTable[sq])
			if !canKingEscapeAttack(pos, sq, silverAttacksTable[us][sq], enemy, newOccupied) &&
				!canPieceCapture(pos, sq, pinned, enemy, newOccupied) {
				return MakeDrop(Silver, sq)
			}
		}
	}
silverEnd:

	if hand.Has(Knight) {
		dest := bb.And(knightAttacksTable[enemy][king]).And(knightDropableMaskTable[us])
		for dest.Test() {
			sq := dest.PopBit()
			// A knight checks from afar; the king can never take it.
			newOccupied := occupied.Xor(maskTable[sq])
			if !canKingEscape(pos, enemy, newOccupied) &&
				!canPieceCapture(pos, sq, pinned, enemy, newOccupied) {
				return MakeDrop(Knight, sq)
			}
		}
	}

	return MoveNone
}

// mateCandidate applies the move to the piece boards only, asks
// whether it mates, and undoes it. attackOf is evaluated on the moved
// occupancy.
func mateCandidate(pos *Position, from, to Square, pt, capture PieceType, promote bool, attackOf func() BitBoard) bool {
	mated := false
	if promote {
		pos.moveWithPromotionTemporary(from, to, pt, capture)
	} else {
		pos.moveTemporary(from, to, pt, capture)
	}
	enemy := pos.SideToMove.Opposite()
	if pos.IsAttacked(to, enemy, pos.Occupied()) {
		mated = !canKingEscapeAttack(pos, to, attackOf(), enemy, pos.Occupied()) &&
			!canPieceCaptureFresh(pos, to, enemy, pos.Occupied())
	}
	if promote {
		pos.moveWithPromotionTemporary(from, to, pt, capture)
	} else {
		pos.moveTemporary(from, to, pt, capture)
	}
	return mated
}

func searchPawnMate(pos *Position, movable BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	dest := movable.And(pawnAttack(us, pos.pieceBoard[us][Pawn]))

	enemyField := dest.And(promotableMaskTable[us])
	for enemyField.Test() {
		to := enemyField.PopBit()
		var from Square
		if us == Black {
			from = to + 9
		} else {
			from = to - 9
		}
		if !goldAttacksTable[us][to].Contract(maskTable[king]) ||
			pos.IsKingDiscover(from, to, us, ci.Pinned) {
			continue
		}
		capture := pos.PieceTypeAt(to)
		if mateCandidate(pos, from, to, Pawn, capture, true, func() BitBoard {
			return goldAttacksTable[us][to]
		}) {
			return MakeMove(from, to, Pawn, capture, true)
		}
	}

	rest := dest.And(notPromotableMaskTable[us])
	for rest.Test() {
		to := rest.PopBit()
		var from Square
		if us == Black {
			from = to + 9
		} else {
			from = to - 9
		}
		if !pawnAttacksTable[us][to].Contract(maskTable[king]) ||
			pos.IsKingDiscover(from, to, us, ci.Pinned) {
			continue
		}
		capture := pos.PieceTypeAt(to)
		if mateCandidate(pos, from, to, Pawn, capture, false, func() BitBoard {
			return pawnAttacksTable[us][to]
		}) {
			return MakeMove(from, to, Pawn, capture, false)
		}
	}
	return MoveNone
}

func searchLanceMate(pos *Position, movable BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Lance]

	for piece.Test() {
		from := piece.PopBit()
		dest := movable.And(lanceAttack(pos.Occupied(), us, from))

		attack := dest.And(promotableMaskTable[us]).And(goldAttacksTable[enemy][king])
		for attack.Test() {
			to := attack.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, Lance, capture, true, func() BitBoard {
				return goldAttacksTable[us][to]
			}) {
				return MakeMove(from, to, Lance, capture, true)
			}
		}

		// An unpromoted lance mates only from directly below (above),
		// and outside the must-promote ranks.
		attack = dest.AndNot(mustPromoteMaskTable[us]).And(pawnAttacksTable[enemy][king])
		for attack.Test() {
			to := attack.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, Lance, capture, false, func() BitBoard {
				return lanceAttacksTable[us][to][0]
			}) {
				return MakeMove(from, to, Lance, capture, false)
			}
		}
	}
	return MoveNone
}

func searchKnightMate(pos *Position, target BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Knight]

	for piece.Test() {
		from := piece.PopBit()
		dest := target.And(knightAttacksTable[us][from])

		attack := dest.And(knightAttacksTable[enemy][king])
		for attack.Test() {
			to := attack.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			mated := false
			pos.moveTemporary(from, to, Knight, capture)
			mated = !canKingEscape(pos, enemy, pos.Occupied()) &&
				!canPieceCaptureFresh(pos, to, enemy, pos.Occupied())
			pos.moveTemporary(from, to, Knight, capture)
			if mated {
				return MakeMove(from, to, Knight, capture, false)
			}
		}

		attack = dest.And(promotableMaskTable[us]).And(goldAttacksTable[enemy][king])
		for attack.Test() {
			to := attack.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, Knight, capture, true, func() BitBoard {
				return goldAttacksTable[us][to]
			}) {
				return MakeMove(from, to, Knight, capture, true)
			}
		}
	}
	return MoveNone
}

func searchSilverMate(pos *Position, movable BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Silver]

	trySilver := func(from Square, dest BitBoard) Move {
		attack := dest.And(silverAttacksTable[enemy][king])
		for attack.Test() {
			to := attack.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, Silver, capture, false, func() BitBoard {
				return silverAttacksTable[us][to]
			}) {
				return MakeMove(from, to, Silver, capture, false)
			}
		}
		attack = dest.And(goldAttacksTable[enemy][king])
		for attack.Test() {
			to := attack.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			if !CanPromoteFromTo(us, from, to) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, Silver, capture, true, func() BitBoard {
				return goldAttacksTable[us][to]
			}) {
				return MakeMove(from, to, Silver, capture, true)
			}
		}
		return MoveNone
	}

	for piece.Test() {
		from := piece.PopBit()
		dest := movable.And(silverAttacksTable[us][from])
		if m := trySilver(from, dest); m != MoveNone {
			return m
		}
	}
	return MoveNone
}

func searchTotalGoldMate(pos *Position, movable BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.TotalGold(us)

	for piece.Test() {
		from := piece.PopBit()
		place := pos.PieceTypeAt(from)
		attack := movable.And(goldAttacksTable[us][from]).And(goldAttacksTable[enemy][king])
		for attack.Test() {
			to := attack.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, place, capture, false, func() BitBoard {
				return goldAttacksTable[us][to]
			}) {
				return MakeMove(from, to, place, capture, false)
			}
		}
	}
	return MoveNone
}

func searchBishopMate(pos *Position, movable, occupied BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Bishop]

	tryOne := func(from, to Square, promote bool) Move {
		if pos.IsKingDiscover(from, to, us, ci.Pinned) {
			return MoveNone
		}
		capture := pos.PieceTypeAt(to)
		attackOf := func() BitBoard {
			if promote {
				return bishopAttacksTable[to][0].Or(kingAttacksTable[to])
			}
			return bishopAttacksTable[to][0]
		}
		if mateCandidate(pos, from, to, Bishop, capture, promote, attackOf) {
			return MakeMove(from, to, Bishop, capture, promote)
		}
		return MoveNone
	}

	enemyField := piece.And(promotableMaskTable[us])
	for enemyField.Test() {
		from := enemyField.PopBit()
		dest := movable.And(bishopAttack(occupied, from))
		for dest.Test() {
			if m := tryOne(from, dest.PopBit(), true); m != MoveNone {
				return m
			}
		}
	}

	rest := piece.And(notPromotableMaskTable[us])
	for rest.Test() {
		from := rest.PopBit()
		dest := movable.And(bishopAttack(occupied, from))

		promotable := dest.And(promotableMaskTable[us])
		for promotable.Test() {
			if m := tryOne(from, promotable.PopBit(), true); m != MoveNone {
				return m
			}
		}

		// Without promotion a bishop mates only diagonally adjacent.
		notPromotable := dest.And(notPromotableMaskTable[us]).
			And(silverAttacksTable[Black][king]).And(silverAttacksTable[White][king])
		for notPromotable.Test() {
			if m := tryOne(from, notPromotable.PopBit(), false); m != MoveNone {
				return m
			}
		}
	}
	return MoveNone
}

func searchRookMate(pos *Position, movable, occupied BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Rook]

	tryOne := func(from, to Square, promote bool) Move {
		if pos.IsKingDiscover(from, to, us, ci.Pinned) {
			return MoveNone
		}
		capture := pos.PieceTypeAt(to)
		attackOf := func() BitBoard {
			if promote {
				return dragonAttack(pos.Occupied(), to)
			}
			return rookAttacksTable[to][0]
		}
		if mateCandidate(pos, from, to, Rook, capture, promote, attackOf) {
			return MakeMove(from, to, Rook, capture, promote)
		}
		return MoveNone
	}

	enemyField := piece.And(promotableMaskTable[us])
	for enemyField.Test() {
		from := enemyField.PopBit()
		dest := movable.And(rookAttack(occupied, from))
		for dest.Test() {
			if m := tryOne(from, dest.PopBit(), true); m != MoveNone {
				return m
			}
		}
	}

	rest := piece.And(notPromotableMaskTable[us])
	for rest.Test() {
		from := rest.PopBit()
		dest := movable.And(rookAttack(occupied, from))

		promotable := dest.And(promotableMaskTable[us])
		for promotable.Test() {
			if m := tryOne(from, promotable.PopBit(), true); m != MoveNone {
				return m
			}
		}

		notPromotable := dest.And(notPromotableMaskTable[us]).
			And(goldAttacksTable[Black][king]).And(goldAttacksTable[White][king])
		for notPromotable.Test() {
			if m := tryOne(from, notPromotable.PopBit(), false); m != MoveNone {
				return m
			}
		}
	}
	return MoveNone
}

func searchHorseMate(pos *Position, movable, occupied BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Horse]

	for piece.Test() {
		from := piece.PopBit()
		dest := movable.And(horseAttack(occupied, from))
		for dest.Test() {
			to := dest.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, Horse, capture, false, func() BitBoard {
				return bishopAttacksTable[to][0].Or(kingAttacksTable[to])
			}) {
				return MakeMove(from, to, Horse, capture, false)
			}
		}
	}
	return MoveNone
}

func searchDragonMate(pos *Position, movable, occupied BitBoard, ci *CheckInfo) Move {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Dragon]

	for piece.Test() {
		from := piece.PopBit()
		dest := movable.And(dragonAttack(occupied, from))
		for dest.Test() {
			to := dest.PopBit()
			if pos.IsKingDiscover(from, to, us, ci.Pinned) {
				continue
			}
			capture := pos.PieceTypeAt(to)
			if mateCandidate(pos, from, to, Dragon, capture, false, func() BitBoard {
				return dragonAttack(pos.Occupied(), to)
			}) {
				return MakeMove(from, to, Dragon, capture, false)
			}
		}
	}
	return MoveNone
}

// SearchMate1Ply returns a legal mating move or MoveNone. It must be
// called with the side to move not in check.
func SearchMate1Ply(pos *Position) Move {
	us := pos.SideToMove
	ci := NewCheckInfo(pos)
	occupied := pos.Occupied()

	if pos.hand[us] != HandZero {
		if m := searchDropMate(pos, pos.Occupied().Not()); m != MoveNone {
			return m
		}
	}

	target := pos.pieceBoard[us][Occupied].Not()
	movable := target.And(kingAttacksTable[pos.kingSquare[us.Opposite()]])

	if m := searchDragonMate(pos, movable, occupied, ci); m != MoveNone {
		return m
	}
	if m := searchHorseMate(pos, movable, occupied, ci); m != MoveNone {
		return m
	}
	if m := searchRookMate(pos, movable, occupied, ci); m != MoveNone {
		return m
	}
	if m := searchBishopMate(pos, movable, occupied, ci); m != MoveNone {
		return m
	}
	if m := searchTotalGoldMate(pos, movable, ci); m != MoveNone {
		return m
	}
	if m := searchSilverMate(pos, movable, ci); m != MoveNone {
		return m
	}
	// Only the knight checks without standing next to the king.
	if m := searchKnightMate(pos, target, ci); m != MoveNone {
		return m
	}
	if m := searchLanceMate(pos, movable, ci); m != MoveNone {
		return m
	}
	if m := searchPawnMate(pos, movable, ci); m != MoveNone {
		return m
	}
	return MoveNone
}
