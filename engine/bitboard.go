// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// bitboard.go implements the 81-square board set as two 64-bit lanes.
// Lane 0 holds squares 0-62, lane 1 holds squares 63-80 in its low 18
// bits. Everything is plain word arithmetic so it stays portable; the
// original implementation sits on SSE and PEXT, see
// https://www.chessprogramming.org/BMI2#PEXTBitboards

package engine

import (
	"math/bits"
)

// BitBoard is a set of board squares.
type BitBoard [2]uint64

const (
	lane0Mask uint64 = 0x7fffffffffffffff // squares 0-62
	lane1Mask uint64 = 0x3ffff            // squares 63-80
)

// BbEmpty is the empty board.
var BbEmpty = BitBoard{}

// BbFull has all 81 squares set.
var BbFull = BitBoard{lane0Mask, lane1Mask}

// Test returns true if any square is set.
func (b BitBoard) Test() bool {
	return b[0]|b[1] != 0
}

// Contract returns true if b and o intersect.
func (b BitBoard) Contract(o BitBoard) bool {
	return b[0]&o[0]|b[1]&o[1] != 0
}

// Popcount counts the set squares.
func (b BitBoard) Popcount() int {
	return bits.OnesCount64(b[0]) + bits.OnesCount64(b[1])
}

// Has returns true if sq is set.
func (b BitBoard) Has(sq Square) bool {
	return b.Contract(maskTable[sq])
}

// And returns the intersection of b and o.
func (b BitBoard) And(o BitBoard) BitBoard {
	return BitBoard{b[0] & o[0], b[1] & o[1]}
}

// Or returns the union of b and o.
func (b BitBoard) Or(o BitBoard) BitBoard {
	return BitBoard{b[0] | o[0], b[1] | o[1]}
}

// Xor returns the symmetric difference of b and o.
func (b BitBoard) Xor(o BitBoard) BitBoard {
	return BitBoard{b[0] ^ o[0], b[1] ^ o[1]}
}

// AndNot returns b minus o.
func (b BitBoard) AndNot(o BitBoard) BitBoard {
	return BitBoard{b[0] &^ o[0], b[1] &^ o[1]}
}

// Not complements b within the 81 squares.
func (b BitBoard) Not() BitBoard {
	return BitBoard{^b[0] & lane0Mask, ^b[1] & lane1Mask}
}

// AndOr sets b to b | (b1 & b2).
func (b *BitBoard) AndOr(b1, b2 BitBoard) {
	b[0] |= b1[0] & b2[0]
	b[1] |= b1[1] & b2[1]
}

// NotAnd removes o's squares from b.
func (b *BitBoard) NotAnd(o BitBoard) {
	b[0] &^= o[0]
	b[1] &^= o[1]
}

// XorBit flips sq.
func (b *BitBoard) XorBit(sq Square) {
	*b = b.Xor(maskTable[sq])
}

// FirstOne returns the lowest set square.
// Result is undefined on the empty board.
func (b BitBoard) FirstOne() Square {
	if b[0] != 0 {
		return Square(bits.TrailingZeros64(b[0]))
	}
	return Square(bits.TrailingZeros64(b[1]) + 63)
}

// LastOne returns the highest set square.
// Result is undefined on the empty board.
func (b BitBoard) LastOne() Square {
	if b[1] != 0 {
		return Square(63 + 63 - bits.LeadingZeros64(b[1]))
	}
	return Square(63 - bits.LeadingZeros64(b[0]))
}

// PopBit removes and returns the lowest set square.
func (b *BitBoard) PopBit() Square {
	sq := b.FirstOne()
	b.XorBit(sq)
	return sq
}

// pext is the software fallback of the BMI2 parallel bit extract.
func pext(val, mask uint64) uint64 {
	var res, one uint64
	one = 1
	for ; mask != 0; mask &= mask - 1 {
		if val&mask&-mask != 0 {
			res |= one
		}
		one <<= 1
	}
	return res
}

// MagicIndex extracts the masked occupancy into a dense attack-table
// index. Each lane is extracted separately so the mapping is always a
// perfect hash regardless of how the mask straddles the lanes.
func (b BitBoard) MagicIndex(mask BitBoard) uint {
	lo := pext(b[0], mask[0])
	hi := pext(b[1], mask[1])
	return uint(lo | hi<<uint(bits.OnesCount64(mask[0])))
}

// String renders the board for debugging, rank a at the top.
func (b BitBoard) String() string {
	s := ""
	for r := 0; r < 9; r++ {
		for f := 9; f >= 1; f-- {
			if b.Has(RankFile(r, f)) {
				s += "X"
			} else {
				s += "."
			}
		}
		s += "\n"
	}
	return s
}
