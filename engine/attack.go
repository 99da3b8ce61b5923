// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// attack.go builds the precomputed attack tables. Sliding pieces use
// dense per-square tables indexed by a bit extract of the masked
// occupancy, the scheme magic bitboards compute with a multiply:
// https://www.chessprogramming.org/Magic_Bitboards

package engine

// Direction classifies the line through two squares.
type Direction int32

const (
	DirMisc    Direction = 0
	DirFile    Direction = 0x02
	DirRank    Direction = 0x03
	DirRight45 Direction = 0x04
	DirLeft45  Direction = 0x05

	DirFlagCross Direction = 0x02
	DirFlagDiag  Direction = 0x04
)

var (
	maskTable [BoardSquare]BitBoard

	fileMaskTable [9]BitBoard // by column, 0 = file 9
	rankMaskTable [9]BitBoard

	left45MaskTable  [17]BitBoard
	right45MaskTable [17]BitBoard

	pawnAttacksTable   [ColorArraySize][BoardSquare]BitBoard
	knightAttacksTable [ColorArraySize][BoardSquare]BitBoard
	silverAttacksTable [ColorArraySize][BoardSquare]BitBoard
	goldAttacksTable   [ColorArraySize][BoardSquare]BitBoard
	kingAttacksTable   [BoardSquare]BitBoard

	lanceMaskTable  [ColorArraySize][BoardSquare]BitBoard
	rookMaskTable   [BoardSquare]BitBoard
	bishopMaskTable [BoardSquare]BitBoard

	lanceAttacksTable  [ColorArraySize][BoardSquare][]BitBoard
	rookAttacksTable   [BoardSquare][]BitBoard
	bishopAttacksTable [BoardSquare][]BitBoard

	// Single-step rook and bishop neighborhoods.
	rookStepAttacksTable   [BoardSquare]BitBoard
	bishopStepAttacksTable [BoardSquare]BitBoard

	directionTable [BoardSquare][BoardSquare]Direction
	betweenTable   [BoardSquare][BoardSquare]BitBoard

	pawnDropableTable       [512][ColorArraySize]BitBoard
	lanceDropableMaskTable  [ColorArraySize]BitBoard
	knightDropableMaskTable [ColorArraySize]BitBoard

	promotableMaskTable    [ColorArraySize]BitBoard
	mustPromoteMaskTable   [ColorArraySize]BitBoard
	notPromotableMaskTable [ColorArraySize]BitBoard
)

var (
	rookDeltas   = [][2]int{{-1, 0}, {+1, 0}, {0, -1}, {0, +1}}
	bishopDeltas = [][2]int{{-1, -1}, {-1, +1}, {+1, -1}, {+1, +1}}
)

func init() {
	initMasks()
	initStepAttacks()
	initSlidingAttacks()
	initLines()
	initDropMasks()
}

// rc returns the square on rank r, column c; ok is false off the board.
func rc(r, c int) (Square, bool) {
	if r < 0 || r >= 9 || c < 0 || c >= 9 {
		return 0, false
	}
	return Square(r*9 + c), true
}

func initMasks() {
	for sq := Square(0); sq < BoardSquare; sq++ {
		if sq < 63 {
			maskTable[sq] = BitBoard{1 << uint(sq), 0}
		} else {
			maskTable[sq] = BitBoard{0, 1 << uint(sq-63)}
		}
	}
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			sqf, _ := rc(j, i)
			fileMaskTable[i] = fileMaskTable[i].Or(maskTable[sqf])
			sqr, _ := rc(i, j)
			rankMaskTable[i] = rankMaskTable[i].Or(maskTable[sqr])
		}
	}
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			sq, _ := rc(r, c)
			right45MaskTable[r+c] = right45MaskTable[r+c].Or(maskTable[sq])
			left45MaskTable[r-c+8] = left45MaskTable[r-c+8].Or(maskTable[sq])
		}
	}

	promotableMaskTable[Black] = rankMaskTable[0].Or(rankMaskTable[1]).Or(rankMaskTable[2])
	promotableMaskTable[White] = rankMaskTable[6].Or(rankMaskTable[7]).Or(rankMaskTable[8])
	mustPromoteMaskTable[Black] = rankMaskTable[0].Or(rankMaskTable[1])
	mustPromoteMaskTable[White] = rankMaskTable[7].Or(rankMaskTable[8])
	notPromotableMaskTable[Black] = promotableMaskTable[Black].Not()
	notPromotableMaskTable[White] = promotableMaskTable[White].Not()
}

// initJumpAttack fills attack with the destination sets of jump.
func initJumpAttack(jump [][2]int, attack []BitBoard) {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			bb := BitBoard{}
			for _, d := range jump {
				if to, ok := rc(r+d[0], c+d[1]); ok {
					bb = bb.Or(maskTable[to])
				}
			}
			sq, _ := rc(r, c)
			attack[sq] = bb
		}
	}
}

// mirror flips the rank sign of deltas for the white side.
func mirror(jump [][2]int) [][2]int {
	m := make([][2]int, len(jump))
	for i, d := range jump {
		m[i] = [2]int{-d[0], d[1]}
	}
	return m
}

func initStepAttacks() {
	pawnJump := [][2]int{{-1, 0}}
	knightJump := [][2]int{{-2, -1}, {-2, +1}}
	silverJump := [][2]int{{-1, -1}, {-1, 0}, {-1, +1}, {+1, -1}, {+1, +1}}
	goldJump := [][2]int{{-1, -1}, {-1, 0}, {-1, +1}, {0, -1}, {0, +1}, {+1, 0}}
	kingJump := [][2]int{
		{-1, -1}, {-1, 0}, {-1, +1}, {0, -1},
		{0, +1}, {+1, -1}, {+1, 0}, {+1, +1},
	}

	initJumpAttack(pawnJump, pawnAttacksTable[Black][:])
	initJumpAttack(mirror(pawnJump), pawnAttacksTable[White][:])
	initJumpAttack(knightJump, knightAttacksTable[Black][:])
	initJumpAttack(mirror(knightJump), knightAttacksTable[White][:])
	initJumpAttack(silverJump, silverAttacksTable[Black][:])
	initJumpAttack(mirror(silverJump), silverAttacksTable[White][:])
	initJumpAttack(goldJump, goldAttacksTable[Black][:])
	initJumpAttack(mirror(goldJump), goldAttacksTable[White][:])
	initJumpAttack(kingJump, kingAttacksTable[:])
}

// slidingAttack walks deltas from sq until the edge or a blocker.
func slidingAttack(sq Square, deltas [][2]int, occupied BitBoard) BitBoard {
	r0, c0 := sq.Rank(), sq.column()
	bb := BitBoard{}
	for _, d := range deltas {
		r, c := r0, c0
		for {
			r, c = r+d[0], c+d[1]
			to, ok := rc(r, c)
			if !ok {
				break
			}
			bb = bb.Or(maskTable[to])
			if occupied.Has(to) {
				break
			}
		}
	}
	return bb
}

// slidingMask is the attack set on the empty board minus the final
// square of every ray; blockers there cannot change the attack set.
func slidingMask(sq Square, deltas [][2]int) BitBoard {
	r0, c0 := sq.Rank(), sq.column()
	bb := BitBoard{}
	for _, d := range deltas {
		r, c := r0, c0
		for {
			r, c = r+d[0], c+d[1]
			to, ok := rc(r, c)
			if !ok {
				break
			}
			if _, more := rc(r+d[0], c+d[1]); !more {
				break
			}
			bb = bb.Or(maskTable[to])
		}
	}
	return bb
}

// maskSquares lists the mask squares in magic-index bit order.
func maskSquares(mask BitBoard) []Square {
	var sqs []Square
	for b := mask; b.Test(); {
		sqs = append(sqs, b.PopBit())
	}
	return sqs
}

// buildSlidingTable enumerates every occupancy subset of mask and
// stores the resulting attack set at its magic index.
func buildSlidingTable(sq Square, deltas [][2]int, mask BitBoard) []BitBoard {
	sqs := maskSquares(mask)
	table := make([]BitBoard, 1<<uint(len(sqs)))
	for idx := 0; idx < len(table); idx++ {
		occ := BitBoard{}
		for i, s := range sqs {
			if idx&(1<<uint(i)) != 0 {
				occ.XorBit(s)
			}
		}
		table[occ.MagicIndex(mask)] = slidingAttack(sq, deltas, occ)
	}
	return table
}

func initSlidingAttacks() {
	lanceDeltas := [ColorArraySize][][2]int{
		{{-1, 0}},
		{{+1, 0}},
	}
	for sq := Square(0); sq < BoardSquare; sq++ {
		rookMaskTable[sq] = slidingMask(sq, rookDeltas)
		bishopMaskTable[sq] = slidingMask(sq, bishopDeltas)
		rookAttacksTable[sq] = buildSlidingTable(sq, rookDeltas, rookMaskTable[sq])
		bishopAttacksTable[sq] = buildSlidingTable(sq, bishopDeltas, bishopMaskTable[sq])
		rookStepAttacksTable[sq] = slidingAttack(sq, rookDeltas, BbFull)
		bishopStepAttacksTable[sq] = slidingAttack(sq, bishopDeltas, BbFull)

		for c := Black; c <= White; c++ {
			lanceMaskTable[c][sq] = slidingMask(sq, lanceDeltas[c])
			lanceAttacksTable[c][sq] = buildSlidingTable(sq, lanceDeltas[c], lanceMaskTable[c][sq])
		}
	}
}

func initLines() {
	for s1 := Square(0); s1 < BoardSquare; s1++ {
		r1, c1 := s1.Rank(), s1.column()
		for s2 := Square(0); s2 < BoardSquare; s2++ {
			r2, c2 := s2.Rank(), s2.column()
			switch {
			case s1 == s2:
				directionTable[s1][s2] = DirMisc
			case c1 == c2:
				directionTable[s1][s2] = DirFile
			case r1 == r2:
				directionTable[s1][s2] = DirRank
			case r1+c1 == r2+c2:
				directionTable[s1][s2] = DirRight45
			case r1-c1 == r2-c2:
				directionTable[s1][s2] = DirLeft45
			default:
				directionTable[s1][s2] = DirMisc
			}

			if directionTable[s1][s2] != DirMisc {
				dr, dc := sign(r2-r1), sign(c2-c1)
				bb := BitBoard{}
				for r, c := r1+dr, c1+dc; ; r, c = r+dr, c+dc {
					sq, _ := rc(r, c)
					if sq == s2 {
						break
					}
					bb = bb.Or(maskTable[sq])
				}
				betweenTable[s1][s2] = bb
			}
		}
	}
}

func sign(x int) int {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

func initDropMasks() {
	lanceDropableMaskTable[Black] = rankMaskTable[0].Not()
	lanceDropableMaskTable[White] = rankMaskTable[8].Not()
	knightDropableMaskTable[Black] = rankMaskTable[0].Or(rankMaskTable[1]).Not()
	knightDropableMaskTable[White] = rankMaskTable[7].Or(rankMaskTable[8]).Not()

	// Index bit c means an own pawn already sits on column c.
	for idx := 0; idx < 512; idx++ {
		var free BitBoard
		for c := 0; c < 9; c++ {
			if idx&(1<<uint(c)) == 0 {
				free = free.Or(fileMaskTable[c])
			}
		}
		pawnDropableTable[idx][Black] = free.And(lanceDropableMaskTable[Black])
		pawnDropableTable[idx][White] = free.And(lanceDropableMaskTable[White])
	}
}

// lanceAttack returns lance attacks for color from sq given occupied.
func lanceAttack(occupied BitBoard, c Color, sq Square) BitBoard {
	mask := lanceMaskTable[c][sq]
	return lanceAttacksTable[c][sq][occupied.And(mask).MagicIndex(mask)]
}

// bishopAttack returns bishop attacks from sq given occupied.
func bishopAttack(occupied BitBoard, sq Square) BitBoard {
	mask := bishopMaskTable[sq]
	return bishopAttacksTable[sq][occupied.And(mask).MagicIndex(mask)]
}

// rookAttack returns rook attacks from sq given occupied.
func rookAttack(occupied BitBoard, sq Square) BitBoard {
	mask := rookMaskTable[sq]
	return rookAttacksTable[sq][occupied.And(mask).MagicIndex(mask)]
}

// horseAttack is bishop plus king.
func horseAttack(occupied BitBoard, sq Square) BitBoard {
	return bishopAttack(occupied, sq).Or(kingAttacksTable[sq])
}

// dragonAttack is rook plus king.
func dragonAttack(occupied BitBoard, sq Square) BitBoard {
	return rookAttack(occupied, sq).Or(kingAttacksTable[sq])
}

// pawnAttack shifts a whole pawn set one rank forward.
func pawnAttack(c Color, piece BitBoard) BitBoard {
	if c == Black {
		return BitBoard{
			(piece[0] >> 9) | (piece[1]&0x1ff)<<54,
			piece[1] >> 9,
		}
	}
	return BitBoard{
		piece[0] << 9 & lane0Mask,
		(piece[0]&(0x1ff<<54))>>54 | piece[1]<<9&lane1Mask,
	}
}

// aligned reports whether s1, s2, s3 sit on one line.
func aligned(s1, s2, s3 Square) bool {
	return directionTable[s1][s2] != DirMisc && directionTable[s1][s2] == directionTable[s1][s3]
}
