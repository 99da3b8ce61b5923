// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
)

var errorInvalidSquare = fmt.Errorf("invalid square")

const (
	// MaxMoves bounds the number of moves in any shogi position.
	MaxMoves = 600
	// MaxPly bounds the search depth.
	MaxPly = 128
)

// Color represents a side. Black moves first.
type Color int32

const (
	Black Color = iota
	White
	NoColor

	ColorArraySize = int(iota) - 1
)

// Opposite returns the reversed color.
// Result is undefined if c is not Black or White.
func (c Color) Opposite() Color {
	return c ^ White
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Value is a centipawn-scaled score from the side to move's point of view.
type Value int32

const (
	ValueZero        Value = 0
	ValueDraw        Value = 0
	ValueKnownWin    Value = 10000
	ValueMaxEvaluate Value = 30000
	ValueMate        Value = 32000
	ValueInfinite    Value = 32001
	ValueNone        Value = 32002

	ValueMateInMaxPly  = ValueMate - MaxPly
	ValueMatedInMaxPly = -ValueMate + MaxPly

	// Score of a repetition with an identical board but a strictly
	// dominated hand. Just below a proven mate.
	ValueSamePosition = ValueMateInMaxPly - 1
)

// MateIn returns the score of mating in ply moves.
func MateIn(ply int) Value {
	return ValueMate - Value(ply)
}

// MatedIn returns the score of being mated in ply moves.
func MatedIn(ply int) Value {
	return -ValueMate + Value(ply)
}

// Depth is the remaining search depth in plies.
type Depth = int32

const (
	OnePly            Depth = 1
	DepthZero         Depth = 0
	DepthQsChecks     Depth = 0
	DepthQsNoChecks   Depth = -1
	DepthQsRecaptures Depth = -5
	DepthNone         Depth = -6
	DepthMax          Depth = MaxPly
)

// Bound is the type of a transposition table score.
type Bound uint8

const (
	BoundNone Bound = iota
	BoundUpper
	BoundLower
	BoundExact = BoundUpper | BoundLower
)

// PieceType is a piece without a color. The promoted variant of a base
// piece is obtained by adding Promoted.
type PieceType int32

const (
	NoPieceType PieceType = iota
	Pawn
	Lance
	Knight
	Silver
	Bishop
	Rook
	Gold
	King
	PromotedPawn
	PromotedLance
	PromotedKnight
	PromotedSilver
	Horse  // promoted bishop
	Dragon // promoted rook

	PieceTypeArraySize = int(iota)

	// Occupied aliases slot 0 of the per-type boards and holds the
	// full occupancy of one color.
	Occupied = NoPieceType

	// Promoted is the promotion flag inside a piece type.
	Promoted PieceType = 8
)

// Demoted strips the promotion flag.
func (pt PieceType) Demoted() PieceType {
	return pt & 0x7
}

// IsSlider returns true for pieces whose attacks depend on occupancy.
func (pt PieceType) IsSlider() bool {
	return pt == Lance || pt == Bishop || pt == Rook || pt == Horse || pt == Dragon
}

var pieceTypeNames = [PieceTypeArraySize]string{
	"", "P", "L", "N", "S", "B", "R", "G", "K", "+P", "+L", "+N", "+S", "+B", "+R",
}

func (pt PieceType) String() string {
	if pt < 0 || int(pt) >= len(pieceTypeNames) {
		return "?"
	}
	return pieceTypeNames[pt]
}

// Piece is a colored piece type: bit 4 is the color, bits 0-3 the type.
type Piece int32

const (
	NoPiece   Piece = 0
	FlagWhite Piece = 16

	PieceArraySize = 31
)

// ColorPiece returns a piece of type pt owned by c.
func ColorPiece(c Color, pt PieceType) Piece {
	return Piece(c<<4) | Piece(pt)
}

// Type returns the piece's type.
func (pi Piece) Type() PieceType {
	return PieceType(pi & 0xf)
}

// Color returns the piece's color.
// Result is undefined for NoPiece.
func (pi Piece) Color() Color {
	return Color(pi >> 4)
}

// Square identifies a board square, rank A (top) through rank I, file 9
// (left) through file 1 inside each rank. Values of BoardSquare and above
// are hand slots used as drop-move sources and evaluation list keys.
type Square int32

const (
	SquareA9    Square = iota // file 9, rank a
	BoardSquare        = Square(81)

	// Hand slots. Slot+count addresses the n-th captured piece of a kind.
	BlackHandPawn   = BoardSquare - 1
	BlackHandLance  = BlackHandPawn + 18
	BlackHandKnight = BlackHandLance + 4
	BlackHandSilver = BlackHandKnight + 4
	BlackHandGold   = BlackHandSilver + 4
	BlackHandBishop = BlackHandGold + 4
	BlackHandRook   = BlackHandBishop + 2
	WhiteHandPawn   = BlackHandRook + 2
	WhiteHandLance  = WhiteHandPawn + 18
	WhiteHandKnight = WhiteHandLance + 4
	WhiteHandSilver = WhiteHandKnight + 4
	WhiteHandGold   = WhiteHandSilver + 4
	WhiteHandBishop = WhiteHandGold + 4
	WhiteHandRook   = WhiteHandBishop + 2
	SquareHand      = WhiteHandRook + 3
)

// RankFile returns the square on rank r (0 = a) and shogi file f (1-9).
func RankFile(r, f int) Square {
	return Square(r*9 + 9 - f)
}

// SquareFromString parses a square in USI format, e.g. "7g".
func SquareFromString(s string) (Square, error) {
	if len(s) != 2 {
		return SquareA9, errorInvalidSquare
	}
	f, r := -1, -1
	if '1' <= s[0] && s[0] <= '9' {
		f = int(s[0] - '0')
	}
	if 'a' <= s[1] && s[1] <= 'i' {
		r = int(s[1] - 'a')
	}
	if f == -1 || r == -1 {
		return SquareA9, errorInvalidSquare
	}
	return RankFile(r, f), nil
}

// Rank returns the rank, 0 (top) to 8.
func (sq Square) Rank() int {
	return int(sq / 9)
}

// File returns the shogi file, 1 (rightmost) to 9.
func (sq Square) File() int {
	return 9 - int(sq%9)
}

// column returns the left-to-right column index, 0 to 8.
func (sq Square) column() int {
	return int(sq % 9)
}

// IsOnBoard returns true for the 81 board squares.
func (sq Square) IsOnBoard() bool {
	return sq >= 0 && sq < BoardSquare
}

// Inverse returns the square rotated 180 degrees.
func (sq Square) Inverse() Square {
	return BoardSquare - 1 - sq
}

func (sq Square) String() string {
	return string([]byte{
		byte('0' + sq.File()),
		byte('a' + sq.Rank()),
	})
}

// CanPromote returns whether a move of color landing on to may promote.
func CanPromote(c Color, to Square) bool {
	if c == Black {
		return to < 27
	}
	return to > 53
}

// CanPromoteFromTo is like CanPromote but also accepts leaving the zone.
func CanPromoteFromTo(c Color, from, to Square) bool {
	if c == Black {
		return to < 27 || from < 27
	}
	return to > 53 || from > 53
}

// Move is a 32-bit packed move:
//
//	xxxxxxxx xxxxxxxx x1111111  destination
//	xxxxxxxx xx111111 1xxxxxxx  source; >= 81 encodes the dropped piece type
//	xxxxxxxx x1xxxxxx xxxxxxxx  promotion flag
//	xxxxx111 1xxxxxxx xxxxxxxx  moving piece type
//	x1111xxx xxxxxxxx xxxxxxxx  captured piece type
type Move uint32

const (
	MoveNone Move = 0
	MoveNull Move = 0x800000

	movePromotionFlag Move = 1 << 14
)

// MakeMove packs a board move.
func MakeMove(from, to Square, piece, capture PieceType, promote bool) Move {
	m := Move(from)<<7 | Move(to) | Move(piece)<<15 | Move(capture)<<19
	if promote {
		m |= movePromotionFlag
	}
	return m
}

// MakeDrop packs a drop of piece type pt onto to.
func MakeDrop(pt PieceType, to Square) Move {
	return Move(Square(pt)+BoardSquare-1)<<7 | Move(to)
}

// From returns the source square; values >= BoardSquare encode drops.
func (m Move) From() Square {
	return Square(m>>7) & 0x7f
}

// To returns the destination square.
func (m Move) To() Square {
	return Square(m) & 0x7f
}

// IsDrop returns true if m drops a piece from the hand.
func (m Move) IsDrop() bool {
	return m.From() >= BoardSquare
}

// DropPieceType returns the piece type encoded in a drop source square.
func (m Move) DropPieceType() PieceType {
	return PieceType(m.From() - BoardSquare + 1)
}

// PieceType returns the moving piece type before promotion.
// For drops use DropPieceType.
func (m Move) PieceType() PieceType {
	return PieceType(m>>15) & 0xf
}

// Piece returns the moving piece colored for c, handling drops.
func (m Move) Piece(c Color) Piece {
	if m.IsDrop() {
		return ColorPiece(c, m.DropPieceType())
	}
	return ColorPiece(c, m.PieceType())
}

// Capture returns the captured piece type, NoPieceType if none.
func (m Move) Capture() PieceType {
	return PieceType(m>>19) & 0xf
}

// IsPromotion returns true if the mover promotes.
func (m Move) IsPromotion() bool {
	return m&movePromotionFlag != 0
}

// IsCapture returns true if a piece is captured.
func (m Move) IsCapture() bool {
	return m.Capture() != NoPieceType
}

// IsCaptureOrPromotion returns true for moves that change material.
func (m Move) IsCaptureOrPromotion() bool {
	return m.IsCapture() || m.IsPromotion()
}

// IsOK rejects the sentinels: a real move never has From == To.
func (m Move) IsOK() bool {
	return m.From() != m.To()
}

var dropLetters = [8]byte{0, 'P', 'L', 'N', 'S', 'B', 'R', 'G'}

// USI formats the move in USI notation, e.g. "7g7f", "2b3c+" or "P*5e".
func (m Move) USI() string {
	if m == MoveNone {
		return "resign"
	}
	if m == MoveNull {
		return "0000"
	}
	if m.IsDrop() {
		return string([]byte{dropLetters[m.DropPieceType()], '*'}) + m.To().String()
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += "+"
	}
	return s
}

func (m Move) String() string {
	return m.USI()
}

// Hand packs the seven captured piece counts of one side into one word.
// The layout follows Apery:
//
//	xxxxxxxx xxxxxxxx xxxxxxxx xxx11111  pawn
//	xxxxxxxx xxxxxxxx xxxxxxx1 11xxxxxx  lance
//	xxxxxxxx xxxxxxxx xxx111xx xxxxxxxx  knight
//	xxxxxxxx xxxxxxx1 11xxxxxx xxxxxxxx  silver
//	xxxxxxxx xxx111xx xxxxxxxx xxxxxxxx  gold
//	xxxxxxxx 11xxxxxx xxxxxxxx xxxxxxxx  bishop
//	xxxxx11x xxxxxxxx xxxxxxxx xxxxxxxx  rook
type Hand uint32

const HandZero Hand = 0

var handShift = [PieceTypeArraySize]uint{
	0, 0, 6, 10, 14, 22, 25, 18, 0, 0, 6, 10, 14, 22, 25,
}

var handMask = [PieceTypeArraySize]Hand{
	0,
	0x1f << 0,
	0x7 << 6,
	0x7 << 10,
	0x7 << 14,
	0x3 << 22,
	0x3 << 25,
	0x7 << 18,
	0,
	0x1f << 0,
	0x7 << 6,
	0x7 << 10,
	0x7 << 14,
	0x3 << 22,
	0x3 << 25,
}

var handOne = [PieceTypeArraySize]Hand{
	0,
	1 << 0,
	1 << 6,
	1 << 10,
	1 << 14,
	1 << 22,
	1 << 25,
	1 << 18,
	0,
	1 << 0,
	1 << 6,
	1 << 10,
	1 << 14,
	1 << 22,
	1 << 25,
}

// handBorrowMask has a guard bit above every count field so that hand
// domination is a single subtract-and-mask.
const handBorrowMask Hand = 153231904

// Has returns true if the hand holds at least one piece of type pt.
func (h Hand) Has(pt PieceType) bool {
	return h&handMask[pt] != 0
}

// HasExceptPawn returns true if the hand holds any non-pawn piece.
func (h Hand) HasExceptPawn() bool {
	return h>>handShift[Lance] != 0
}

// Count returns the number of pieces of type pt in the hand.
func (h Hand) Count(pt PieceType) int {
	return int((h & handMask[pt]) >> handShift[pt])
}

// Add adds one piece of type pt. Promoted types demote to their base.
func (h Hand) Add(pt PieceType) Hand {
	return h + handOne[pt]
}

// Sub removes one piece of type pt.
func (h Hand) Sub(pt PieceType) Hand {
	return h - handOne[pt]
}

// DominatesOrEquals returns true if h holds at least as many pieces of
// every kind as ref.
func (h Hand) DominatesOrEquals(ref Hand) bool {
	return (h-ref)&handBorrowMask == 0
}
