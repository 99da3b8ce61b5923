// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// movegen.go generates pseudo-legal moves by stage. Generators append
// into a caller-provided slice and never allocate on the search path.

package engine

// GenType selects a generation stage.
type GenType int32

const (
	GenCaptures GenType = iota
	GenQuiets
	GenEvasions
	GenNonEvasions
	GenChecks
	GenQuietChecks
	GenLegalForSearch
	GenLegal
)

// ExtMove is a move with an ordering score.
type ExtMove struct {
	Move  Move
	Value int32
}

// Generate appends the moves of kind t to moves and returns the slice.
// Moves are pseudo-legal: they may still leave the own king in check.
func Generate(pos *Position, t GenType, moves []ExtMove) []ExtMove {
	switch t {
	case GenCaptures:
		return generateAll(pos, pos.pieceBoard[pos.SideToMove.Opposite()][Occupied], false, moves)
	case GenQuiets:
		return generateAll(pos, pos.Occupied().Not(), true, moves)
	case GenNonEvasions:
		moves = generateAll(pos, pos.pieceBoard[pos.SideToMove][Occupied].Not(), false, moves)
		if pos.hand[pos.SideToMove] != HandZero {
			moves = generateDrop(pos, pos.Occupied().Not(), moves)
		}
		return moves
	case GenEvasions:
		return generateEvasions(pos, false, moves)
	case GenChecks:
		return generateChecks(pos, pos.pieceBoard[pos.SideToMove][Occupied].Not(), moves)
	case GenQuietChecks:
		return generateChecks(pos, pos.Occupied().Not(), moves)
	case GenLegalForSearch, GenLegal:
		return generateLegal(pos, t, moves)
	}
	return moves
}

// generateAll generates board moves onto movable; withDrops adds drops
// onto the same mask. The kLegal variants are produced separately.
func generateAll(pos *Position, movable BitBoard, withDrops bool, moves []ExtMove) []ExtMove {
	moves = generatePawn(pos, movable, false, moves)
	moves = generateLance(pos, movable, false, moves)
	moves = generateKnight(pos, movable, moves)
	moves = generateSilver(pos, movable, moves)
	moves = generateTotalGold(pos, movable, moves)
	moves = generateBishop(pos, movable, false, moves)
	moves = generateRook(pos, movable, false, moves)
	moves = generateHorse(pos, movable, moves)
	moves = generateDragon(pos, movable, moves)
	moves = generateKing(pos, movable, moves)
	if withDrops && pos.hand[pos.SideToMove] != HandZero {
		moves = generateDrop(pos, movable, moves)
	}
	return moves
}

func push(moves []ExtMove, m Move) []ExtMove {
	return append(moves, ExtMove{Move: m})
}

// generatePawn generates pawn moves onto movable. In search mode only
// the promoting variant is emitted inside the zone; allVariants also
// keeps the non-promotion where legal, for the strict generator.
func generatePawn(pos *Position, movable BitBoard, allVariants bool, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	dest := pawnAttack(us, pos.pieceBoard[us][Pawn]).And(movable)
	for dest.Test() {
		to := dest.PopBit()
		var from Square
		if us == Black {
			from = to + 9
		} else {
			from = to - 9
		}
		promote := CanPromote(us, to)
		capture := pos.PieceTypeAt(to)

		if allVariants {
			if (us == Black && to > 8) || (us == White && to < 72) {
				moves = push(moves, MakeMove(from, to, Pawn, capture, false))
			}
			if promote {
				moves = push(moves, MakeMove(from, to, Pawn, capture, true))
			}
		} else {
			moves = push(moves, MakeMove(from, to, Pawn, capture, promote))
		}
	}
	return moves
}

func generateLance(pos *Position, movable BitBoard, allVariants bool, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Lance]
	for piece.Test() {
		from := piece.PopBit()
		dest := lanceAttack(pos.Occupied(), us, from).And(movable)
		for dest.Test() {
			to := dest.PopBit()
			capture := pos.PieceTypeAt(to)

			if allVariants {
				if (us == Black && to > 8) || (us == White && to < 72) {
					moves = push(moves, MakeMove(from, to, Lance, capture, false))
				}
			} else {
				// Stopping unpromoted on rank b is pointless.
				if (us == Black && to > 17) || (us == White && to < 63) {
					moves = push(moves, MakeMove(from, to, Lance, capture, false))
				}
			}
			if CanPromote(us, to) {
				moves = push(moves, MakeMove(from, to, Lance, capture, true))
			}
		}
	}
	return moves
}

func generateKnight(pos *Position, movable BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Knight]
	for piece.Test() {
		from := piece.PopBit()
		dest := knightAttacksTable[us][from].And(movable)
		for dest.Test() {
			to := dest.PopBit()
			capture := pos.PieceTypeAt(to)
			if (us == Black && to > 17) || (us == White && to < 63) {
				moves = push(moves, MakeMove(from, to, Knight, capture, false))
			}
			if CanPromote(us, to) {
				moves = push(moves, MakeMove(from, to, Knight, capture, true))
			}
		}
	}
	return moves
}

func generateSilver(pos *Position, movable BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Silver]
	for piece.Test() {
		from := piece.PopBit()
		dest := silverAttacksTable[us][from].And(movable)
		for dest.Test() {
			to := dest.PopBit()
			capture := pos.PieceTypeAt(to)
			moves = push(moves, MakeMove(from, to, Silver, capture, false))
			if CanPromoteFromTo(us, from, to) {
				moves = push(moves, MakeMove(from, to, Silver, capture, true))
			}
		}
	}
	return moves
}

func generateTotalGold(pos *Position, movable BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.TotalGold(us)
	for piece.Test() {
		from := piece.PopBit()
		place := pos.PieceTypeAt(from)
		dest := goldAttacksTable[us][from].And(movable)
		for dest.Test() {
			to := dest.PopBit()
			moves = push(moves, MakeMove(from, to, place, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

func generateBishop(pos *Position, movable BitBoard, allVariants bool, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Bishop]
	for piece.Test() {
		from := piece.PopBit()
		dest := bishopAttack(pos.Occupied(), from).And(movable)
		for dest.Test() {
			to := dest.PopBit()
			capture := pos.PieceTypeAt(to)
			promote := CanPromoteFromTo(us, from, to)
			if allVariants {
				moves = push(moves, MakeMove(from, to, Bishop, capture, false))
				if promote {
					moves = push(moves, MakeMove(from, to, Bishop, capture, true))
				}
			} else {
				moves = push(moves, MakeMove(from, to, Bishop, capture, promote))
			}
		}
	}
	return moves
}

func generateRook(pos *Position, movable BitBoard, allVariants bool, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Rook]
	for piece.Test() {
		from := piece.PopBit()
		dest := rookAttack(pos.Occupied(), from).And(movable)
		for dest.Test() {
			to := dest.PopBit()
			capture := pos.PieceTypeAt(to)
			promote := CanPromoteFromTo(us, from, to)
			if allVariants {
				moves = push(moves, MakeMove(from, to, Rook, capture, false))
				if promote {
					moves = push(moves, MakeMove(from, to, Rook, capture, true))
				}
			} else {
				moves = push(moves, MakeMove(from, to, Rook, capture, promote))
			}
		}
	}
	return moves
}

func generateHorse(pos *Position, movable BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Horse]
	for piece.Test() {
		from := piece.PopBit()
		dest := horseAttack(pos.Occupied(), from).And(movable)
		for dest.Test() {
			to := dest.PopBit()
			moves = push(moves, MakeMove(from, to, Horse, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

func generateDragon(pos *Position, movable BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Dragon]
	for piece.Test() {
		from := piece.PopBit()
		dest := dragonAttack(pos.Occupied(), from).And(movable)
		for dest.Test() {
			to := dest.PopBit()
			moves = push(moves, MakeMove(from, to, Dragon, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

func generateKing(pos *Position, movable BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	from := pos.kingSquare[us]
	dest := kingAttacksTable[from].And(movable)
	for dest.Test() {
		to := dest.PopBit()
		moves = push(moves, MakeMove(from, to, King, pos.PieceTypeAt(to), false))
	}
	return moves
}

// generateDropPawn drops pawns onto bb, skipping files with an own pawn
// and drops that would be an illegal drop-pawn mate.
func generateDropPawn(pos *Position, bb BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	p := pos.pieceBoard[us][Pawn]
	// Fold the nine ranks into one 9-bit has-pawn-on-column mask.
	pawnExist := uint64(0)
	for shift := uint(0); shift < 63; shift += 9 {
		pawnExist |= p[0] >> shift & 0x1ff
	}
	pawnExist |= p[1] & 0x1ff
	pawnExist |= p[1] >> 9 & 0x1ff
	target := bb.And(pawnDropableTable[pawnExist][us])
	for target.Test() {
		to := target.PopBit()
		if !pos.GivesMateByDropPawn(to) {
			moves = push(moves, MakeDrop(Pawn, to))
		}
	}
	return moves
}

// generateDrop drops every hand piece type onto bb.
func generateDrop(pos *Position, bb BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	hand := pos.hand[us]
	if hand.Has(Pawn) {
		moves = generateDropPawn(pos, bb, moves)
	}
	if !hand.HasExceptPawn() {
		return moves
	}

	if hand.Has(Lance) {
		target := bb.And(lanceDropableMaskTable[us])
		for target.Test() {
			moves = push(moves, MakeDrop(Lance, target.PopBit()))
		}
	}
	if hand.Has(Knight) {
		target := bb.And(knightDropableMaskTable[us])
		for target.Test() {
			moves = push(moves, MakeDrop(Knight, target.PopBit()))
		}
	}
	for _, pt := range []PieceType{Silver, Gold, Bishop, Rook} {
		if !hand.Has(pt) {
			continue
		}
		target := bb
		for target.Test() {
			moves = push(moves, MakeDrop(pt, target.PopBit()))
		}
	}
	return moves
}

// generateDropCheck drops onto the squares from which each hand piece
// would check the enemy king on the current occupancy.
func generateDropCheck(pos *Position, bb BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	hand := pos.hand[us]

	if hand.Has(Pawn) {
		moves = generateDropPawn(pos, bb.And(pawnAttacksTable[enemy][king]), moves)
	}
	if !hand.HasExceptPawn() {
		return moves
	}

	if hand.Has(Lance) {
		dest := bb.And(lanceAttack(pos.Occupied(), enemy, king)).And(lanceDropableMaskTable[us])
		for dest.Test() {
			moves = push(moves, MakeDrop(Lance, dest.PopBit()))
		}
	}
	if hand.Has(Knight) {
		dest := bb.And(knightAttacksTable[enemy][king]).And(knightDropableMaskTable[us])
		for dest.Test() {
			moves = push(moves, MakeDrop(Knight, dest.PopBit()))
		}
	}
	if hand.Has(Silver) {
		dest := bb.And(silverAttacksTable[enemy][king])
		for dest.Test() {
			moves = push(moves, MakeDrop(Silver, dest.PopBit()))
		}
	}
	if hand.Has(Gold) {
		dest := bb.And(goldAttacksTable[enemy][king])
		for dest.Test() {
			moves = push(moves, MakeDrop(Gold, dest.PopBit()))
		}
	}
	if hand.Has(Bishop) {
		dest := bb.And(bishopAttack(pos.Occupied(), king))
		for dest.Test() {
			moves = push(moves, MakeDrop(Bishop, dest.PopBit()))
		}
	}
	if hand.Has(Rook) {
		dest := bb.And(rookAttack(pos.Occupied(), king))
		for dest.Test() {
			moves = push(moves, MakeDrop(Rook, dest.PopBit()))
		}
	}
	return moves
}

// generateEvasions generates check evasions: king moves first, then,
// against a single checker, interpositions and captures of it. A double
// check allows only king moves.
func generateEvasions(pos *Position, allVariants bool, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	oc := pos.pieceBoard[us][Occupied].Not().Or(pos.pieceBoard[us.Opposite()][Occupied])
	moves = generateKing(pos, oc, moves)

	checker := pos.Checkers()
	if checker.Popcount() > 1 {
		return moves
	}

	checkSq := checker.FirstOne()
	inter := betweenTable[pos.kingSquare[us]][checkSq]
	target := inter.Or(checker)

	moves = generatePawn(pos, target, allVariants, moves)
	moves = generateLance(pos, target, allVariants, moves)
	moves = generateKnight(pos, target, moves)
	moves = generateSilver(pos, target, moves)
	moves = generateTotalGold(pos, target, moves)
	moves = generateBishop(pos, target, allVariants, moves)
	moves = generateRook(pos, target, allVariants, moves)
	moves = generateHorse(pos, target, moves)
	moves = generateDragon(pos, target, moves)
	if pos.hand[us] != HandZero && inter.Test() {
		moves = generateDrop(pos, inter, moves)
	}
	return moves
}

// generateChecks generates board moves and drops onto movable that give
// check, including discovered checks.
func generateChecks(pos *Position, movable BitBoard, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	ci := NewCheckInfo(pos)

	moves = generatePawnCheck(pos, movable, ci, moves)
	moves = generateLanceCheck(pos, movable, ci, moves)
	moves = generateKnightCheck(pos, movable, ci, moves)
	moves = generateSilverCheck(pos, movable, ci, moves)
	moves = generateTotalGoldCheck(pos, movable, ci, moves)
	moves = generateBishopCheck(pos, movable, ci, moves)
	moves = generateRookCheck(pos, movable, ci, moves)
	moves = generateHorseCheck(pos, movable, ci, moves)
	moves = generateDragonCheck(pos, movable, ci, moves)
	moves = generateKingCheck(pos, movable, ci, moves)

	if pos.hand[us] != HandZero {
		moves = generateDropCheck(pos, pos.Occupied().Not().And(movable), moves)
	}
	return moves
}

func discovers(ci *CheckInfo, from Square) bool {
	return ci.DiscoverCheckCandidates.Contract(maskTable[from])
}

func generatePawnCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	target := pawnAttack(us, pos.pieceBoard[us][Pawn]).And(movable)

	promotable := target.And(promotableMaskTable[us])
	for promotable.Test() {
		to := promotable.PopBit()
		var from Square
		if us == Black {
			from = to + 9
		} else {
			from = to - 9
		}
		direct := ci.CheckSquares[PromotedPawn].Contract(maskTable[to])
		if direct || (discovers(ci, from) && !aligned(from, to, pos.kingSquare[enemy])) {
			moves = push(moves, MakeMove(from, to, Pawn, pos.PieceTypeAt(to), true))
		}
	}

	rest := target.And(notPromotableMaskTable[us])
	for rest.Test() {
		to := rest.PopBit()
		var from Square
		if us == Black {
			from = to + 9
		} else {
			from = to - 9
		}
		direct := ci.CheckSquares[Pawn].Contract(maskTable[to])
		if direct || (discovers(ci, from) && !aligned(from, to, pos.kingSquare[enemy])) {
			moves = push(moves, MakeMove(from, to, Pawn, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

func generateLanceCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	piece := pos.pieceBoard[us][Lance]
	for piece.Test() {
		from := piece.PopBit()
		dest := lanceAttack(pos.Occupied(), us, from).And(movable)
		// A lance uncovers a check unless it stays on the king's file.
		if discovers(ci, from) && directionTable[from][pos.kingSquare[enemy]] != DirFile {
			for dest.Test() {
				to := dest.PopBit()
				capture := pos.PieceTypeAt(to)
				if (us == Black && to > 17) || (us == White && to < 63) {
					moves = push(moves, MakeMove(from, to, Lance, capture, false))
				}
				if CanPromote(us, to) {
					moves = push(moves, MakeMove(from, to, Lance, capture, true))
				}
			}
			continue
		}

		noPromote := dest.And(ci.CheckSquares[Lance])
		noPromote.NotAnd(mustPromoteMaskTable[us])
		for noPromote.Test() {
			to := noPromote.PopBit()
			moves = push(moves, MakeMove(from, to, Lance, pos.PieceTypeAt(to), false))
		}

		promote := dest.And(ci.CheckSquares[PromotedLance]).And(promotableMaskTable[us])
		for promote.Test() {
			to := promote.PopBit()
			moves = push(moves, MakeMove(from, to, Lance, pos.PieceTypeAt(to), true))
		}
	}
	return moves
}

func generateKnightCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	piece := pos.pieceBoard[us][Knight]
	for piece.Test() {
		from := piece.PopBit()
		dest := knightAttacksTable[us][from].And(movable)
		// A knight leaving a pin line always uncovers the check.
		if discovers(ci, from) {
			for dest.Test() {
				to := dest.PopBit()
				capture := pos.PieceTypeAt(to)
				if (us == Black && to > 17) || (us == White && to < 63) {
					moves = push(moves, MakeMove(from, to, Knight, capture, false))
				}
				if CanPromote(us, to) {
					moves = push(moves, MakeMove(from, to, Knight, capture, true))
				}
			}
			continue
		}

		attack := dest.And(ci.CheckSquares[Knight])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, Knight, pos.PieceTypeAt(to), false))
		}
		attack = dest.And(ci.CheckSquares[PromotedKnight]).And(promotableMaskTable[us])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, Knight, pos.PieceTypeAt(to), true))
		}
	}
	return moves
}

func generateSilverCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Silver]
	for piece.Test() {
		from := piece.PopBit()
		dest := silverAttacksTable[us][from].And(movable)
		if discovers(ci, from) {
			for dest.Test() {
				to := dest.PopBit()
				capture := pos.PieceTypeAt(to)
				promote := CanPromoteFromTo(us, from, to)
				if directionTable[king][from] != directionTable[king][to] {
					moves = push(moves, MakeMove(from, to, Silver, capture, false))
					if promote {
						moves = push(moves, MakeMove(from, to, Silver, capture, true))
					}
				} else {
					if ci.CheckSquares[Silver].Contract(maskTable[to]) {
						moves = push(moves, MakeMove(from, to, Silver, capture, false))
					}
					if promote && ci.CheckSquares[PromotedSilver].Contract(maskTable[to]) {
						moves = push(moves, MakeMove(from, to, Silver, capture, true))
					}
				}
			}
			continue
		}

		attack := dest.And(ci.CheckSquares[Silver])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, Silver, pos.PieceTypeAt(to), false))
		}
		attack = dest.And(ci.CheckSquares[PromotedSilver])
		for attack.Test() {
			to := attack.PopBit()
			if CanPromoteFromTo(us, from, to) {
				moves = push(moves, MakeMove(from, to, Silver, pos.PieceTypeAt(to), true))
			}
		}
	}
	return moves
}

func generateTotalGoldCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.TotalGold(us)
	for piece.Test() {
		from := piece.PopBit()
		place := pos.PieceTypeAt(from)
		dest := goldAttacksTable[us][from].And(movable)
		if discovers(ci, from) {
			for dest.Test() {
				to := dest.PopBit()
				if directionTable[king][from] != directionTable[king][to] ||
					ci.CheckSquares[Gold].Contract(maskTable[to]) {
					moves = push(moves, MakeMove(from, to, place, pos.PieceTypeAt(to), false))
				}
			}
			continue
		}

		attack := dest.And(ci.CheckSquares[Gold])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, place, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

func generateBishopCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	piece := pos.pieceBoard[us][Bishop]
	for piece.Test() {
		from := piece.PopBit()
		dest := bishopAttack(pos.Occupied(), from).And(movable)
		if discovers(ci, from) {
			// Only a rook or lance behind the bishop uncovers a check,
			// so every destination checks.
			for dest.Test() {
				to := dest.PopBit()
				moves = push(moves, MakeMove(from, to, Bishop, pos.PieceTypeAt(to), CanPromoteFromTo(us, from, to)))
			}
			continue
		}

		attack := dest.And(ci.CheckSquares[Bishop])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, Bishop, pos.PieceTypeAt(to), CanPromoteFromTo(us, from, to)))
		}
		attack = dest.And(ci.CheckSquares[Horse])
		for attack.Test() {
			to := attack.PopBit()
			if CanPromoteFromTo(us, from, to) &&
				directionTable[pos.kingSquare[enemy]][to]&DirFlagDiag == 0 {
				moves = push(moves, MakeMove(from, to, Bishop, pos.PieceTypeAt(to), true))
			}
		}
	}
	return moves
}

func generateRookCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	piece := pos.pieceBoard[us][Rook]
	for piece.Test() {
		from := piece.PopBit()
		dest := rookAttack(pos.Occupied(), from).And(movable)
		if discovers(ci, from) {
			for dest.Test() {
				to := dest.PopBit()
				moves = push(moves, MakeMove(from, to, Rook, pos.PieceTypeAt(to), CanPromoteFromTo(us, from, to)))
			}
			continue
		}

		attack := dest.And(ci.CheckSquares[Rook])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, Rook, pos.PieceTypeAt(to), CanPromoteFromTo(us, from, to)))
		}
		attack = dest.And(ci.CheckSquares[Dragon])
		for attack.Test() {
			to := attack.PopBit()
			if CanPromoteFromTo(us, from, to) &&
				directionTable[pos.kingSquare[enemy]][to]&DirFlagCross == 0 {
				moves = push(moves, MakeMove(from, to, Rook, pos.PieceTypeAt(to), true))
			}
		}
	}
	return moves
}

func generateHorseCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Horse]
	for piece.Test() {
		from := piece.PopBit()
		dest := horseAttack(pos.Occupied(), from).And(movable)
		if discovers(ci, from) {
			for dest.Test() {
				to := dest.PopBit()
				if directionTable[king][from] != directionTable[king][to] ||
					ci.CheckSquares[Horse].Contract(maskTable[to]) {
					moves = push(moves, MakeMove(from, to, Horse, pos.PieceTypeAt(to), false))
				}
			}
			continue
		}

		attack := dest.And(ci.CheckSquares[Horse])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, Horse, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

func generateDragonCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	king := pos.kingSquare[enemy]
	piece := pos.pieceBoard[us][Dragon]
	for piece.Test() {
		from := piece.PopBit()
		dest := dragonAttack(pos.Occupied(), from).And(movable)
		if discovers(ci, from) {
			for dest.Test() {
				to := dest.PopBit()
				if directionTable[king][from] != directionTable[king][to] ||
					ci.CheckSquares[Dragon].Contract(maskTable[to]) {
					moves = push(moves, MakeMove(from, to, Dragon, pos.PieceTypeAt(to), false))
				}
			}
			continue
		}

		attack := dest.And(ci.CheckSquares[Dragon])
		for attack.Test() {
			to := attack.PopBit()
			moves = push(moves, MakeMove(from, to, Dragon, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

func generateKingCheck(pos *Position, movable BitBoard, ci *CheckInfo, moves []ExtMove) []ExtMove {
	us := pos.SideToMove
	enemy := us.Opposite()
	from := pos.kingSquare[us]
	if !discovers(ci, from) {
		return moves
	}
	king := pos.kingSquare[enemy]
	dest := kingAttacksTable[from].And(movable)
	for dest.Test() {
		to := dest.PopBit()
		if directionTable[king][from] != directionTable[king][to] {
			moves = push(moves, MakeMove(from, to, King, pos.PieceTypeAt(to), false))
		}
	}
	return moves
}

// generateLegal generates strictly legal moves. GenLegal also keeps the
// non-promoting variants sliders normally skip; use it where the full
// move set matters, not in search.
func generateLegal(pos *Position, t GenType, moves []ExtMove) []ExtMove {
	start := len(moves)
	allVariants := t == GenLegal

	if pos.InCheck() {
		moves = generateEvasions(pos, allVariants, moves)
	} else if allVariants {
		target := pos.pieceBoard[pos.SideToMove][Occupied].Not()
		moves = generatePawn(pos, target, true, moves)
		moves = generateLance(pos, target, true, moves)
		moves = generateKnight(pos, target, moves)
		moves = generateSilver(pos, target, moves)
		moves = generateTotalGold(pos, target, moves)
		moves = generateBishop(pos, target, true, moves)
		moves = generateRook(pos, target, true, moves)
		moves = generateHorse(pos, target, moves)
		moves = generateDragon(pos, target, moves)
		moves = generateKing(pos, target, moves)
		moves = generateDrop(pos, pos.Occupied().Not(), moves)
	} else {
		moves = Generate(pos, GenNonEvasions, moves)
	}

	pinned := pos.PinnedPieces(pos.SideToMove)
	end := len(moves)
	for i := start; i < end; {
		if !pos.Legal(moves[i].Move, pinned) {
			end--
			moves[i] = moves[end]
		} else {
			i++
		}
	}
	return moves[:end]
}

// LegalMoves returns all legal moves of pos.
func LegalMoves(pos *Position) []Move {
	ext := Generate(pos, GenLegal, make([]ExtMove, 0, MaxMoves))
	res := make([]Move, len(ext))
	for i, em := range ext {
		res[i] = em.Move
	}
	return res
}
