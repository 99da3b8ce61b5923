// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// eval.go implements the KPP/KKPT evaluation. The Position maintains a
// 38-entry feature list per point of view; evaluation is the sum of all
// feature pairs relative to each king plus a king-king-piece term, and
// is updated incrementally from the previous search-stack frame using
// the change hints Position records on every move.

package engine

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// KPPIndex identifies one evaluation feature: a piece in a hand or on a
// square, seen from one side.
type KPPIndex int16

const (
	FHandPawn   KPPIndex = 0
	EHandPawn   KPPIndex = FHandPawn + 19
	FHandLance  KPPIndex = EHandPawn + 19
	EHandLance  KPPIndex = FHandLance + 5
	FHandKnight KPPIndex = EHandLance + 5
	EHandKnight KPPIndex = FHandKnight + 5
	FHandSilver KPPIndex = EHandKnight + 5
	EHandSilver KPPIndex = FHandSilver + 5
	FHandGold   KPPIndex = EHandSilver + 5
	EHandGold   KPPIndex = FHandGold + 5
	FHandBishop KPPIndex = EHandGold + 5
	EHandBishop KPPIndex = FHandBishop + 3
	FHandRook   KPPIndex = EHandBishop + 3
	EHandRook   KPPIndex = FHandRook + 3
	FEHandEnd   KPPIndex = EHandRook + 3

	FPawn   KPPIndex = FEHandEnd
	EPawn   KPPIndex = FPawn + 81
	FLance  KPPIndex = EPawn + 81
	ELance  KPPIndex = FLance + 81
	FKnight KPPIndex = ELance + 81
	EKnight KPPIndex = FKnight + 81
	FSilver KPPIndex = EKnight + 81
	ESilver KPPIndex = FSilver + 81
	FGold   KPPIndex = ESilver + 81
	EGold   KPPIndex = FGold + 81
	FBishop KPPIndex = EGold + 81
	EBishop KPPIndex = FBishop + 81
	FHorse  KPPIndex = EBishop + 81
	EHorse  KPPIndex = FHorse + 81
	FRook   KPPIndex = EHorse + 81
	ERook   KPPIndex = FRook + 81
	FDragon KPPIndex = ERook + 81
	EDragon KPPIndex = FDragon + 81
	FEEnd   KPPIndex = EDragon + 81
	FENone  KPPIndex = FEEnd
)

// EvalListSize is the length of the per-side feature lists.
const EvalListSize = 38

// FvScale divides the summed feature values into centipawns.
const FvScale = 32

// Tempo is the side-to-move bonus added to every evaluation. Across a
// null move the child's evaluation is derived from the parent's as
// -parent + 2*Tempo.
const Tempo Value = 20

// Piece values.
const (
	PawnValue      Value = 88
	LanceValue     Value = 238
	KnightValue    Value = 259
	SilverValue    Value = 370
	GoldValue      Value = 448
	ProSilverValue Value = 488
	ProLanceValue  Value = 493
	ProKnightValue Value = 518
	ProPawnValue   Value = 551
	BishopValue    Value = 565
	RookValue      Value = 637
	HorseValue     Value = 831
	DragonValue    Value = 954
	KingValue      Value = 15000
)

var pieceValueTable = [PieceTypeArraySize]Value{
	0,
	PawnValue,
	LanceValue,
	KnightValue,
	SilverValue,
	BishopValue,
	RookValue,
	GoldValue,
	KingValue,
	ProPawnValue,
	ProLanceValue,
	ProKnightValue,
	ProSilverValue,
	HorseValue,
	DragonValue,
}

// promotePieceValueTable is the gain of promoting, indexed by the base
// piece type.
var promotePieceValueTable = [8]Value{
	0,
	ProPawnValue - PawnValue,
	ProLanceValue - LanceValue,
	ProKnightValue - KnightValue,
	ProSilverValue - SilverValue,
	HorseValue - BishopValue,
	DragonValue - RookValue,
	0,
}

// exchangePieceValueTable is the swing of capturing a piece: it leaves
// the board and its base type enters the capturer's hand.
var exchangePieceValueTable = [PieceTypeArraySize]Value{
	0,
	PawnValue * 2,
	LanceValue * 2,
	KnightValue * 2,
	SilverValue * 2,
	BishopValue * 2,
	RookValue * 2,
	GoldValue * 2,
	0,
	ProPawnValue + PawnValue,
	ProLanceValue + LanceValue,
	ProKnightValue + KnightValue,
	ProSilverValue + SilverValue,
	HorseValue + BishopValue,
	DragonValue + RookValue,
}

var blackHandKPPBase = [8]KPPIndex{
	0, FHandPawn, FHandLance, FHandKnight, FHandSilver, FHandBishop, FHandRook, FHandGold,
}

var whiteHandKPPBase = [8]KPPIndex{
	0, EHandPawn, EHandLance, EHandKnight, EHandSilver, EHandBishop, EHandRook, EHandGold,
}

// pieceToIndexBlackTable maps a board piece to the black-POV feature
// base; the square is added. Promoted minors evaluate as golds.
var pieceToIndexBlackTable = [PieceArraySize + 1]KPPIndex{
	FENone, FPawn, FLance, FKnight, FSilver, FBishop, FRook, FGold,
	FENone, FGold, FGold, FGold, FGold, FHorse, FDragon, FENone,
	FENone, EPawn, ELance, EKnight, ESilver, EBishop, ERook, EGold,
	FENone, EGold, EGold, EGold, EGold, EHorse, EDragon, FENone,
}

var pieceToIndexWhiteTable = [PieceArraySize + 1]KPPIndex{
	FENone, EPawn, ELance, EKnight, ESilver, EBishop, ERook, EGold,
	FENone, EGold, EGold, EGold, EGold, EHorse, EDragon, FENone,
	FENone, FPawn, FLance, FKnight, FSilver, FBishop, FRook, FGold,
	FENone, FGold, FGold, FGold, FGold, FHorse, FDragon, FENone,
}

// pieceTypeToBlackHandIndexTable maps (capturing color, captured type)
// to the black-POV hand feature base.
var pieceTypeToBlackHandIndexTable = [ColorArraySize][PieceTypeArraySize]KPPIndex{
	{
		FEHandEnd, FHandPawn, FHandLance, FHandKnight, FHandSilver, FHandBishop, FHandRook, FHandGold,
		FEHandEnd, FHandPawn, FHandLance, FHandKnight, FHandSilver, FHandBishop, FHandRook,
	},
	{
		FEHandEnd, EHandPawn, EHandLance, EHandKnight, EHandSilver, EHandBishop, EHandRook, EHandGold,
		FEHandEnd, EHandPawn, EHandLance, EHandKnight, EHandSilver, EHandBishop, EHandRook,
	},
}

var pieceTypeToWhiteHandIndexTable = [ColorArraySize][PieceTypeArraySize]KPPIndex{
	{
		FEHandEnd, EHandPawn, EHandLance, EHandKnight, EHandSilver, EHandBishop, EHandRook, EHandGold,
		FEHandEnd, EHandPawn, EHandLance, EHandKnight, EHandSilver, EHandBishop, EHandRook,
	},
	{
		FEHandEnd, FHandPawn, FHandLance, FHandKnight, FHandSilver, FHandBishop, FHandRook, FHandGold,
		FEHandEnd, FHandPawn, FHandLance, FHandKnight, FHandSilver, FHandBishop, FHandRook,
	},
}

// pieceTypeToSquareHandTable maps (color, piece type) to the hand slot
// base used in the feature-list reverse index.
var pieceTypeToSquareHandTable = [ColorArraySize][PieceTypeArraySize]Square{
	{
		SquareHand, BlackHandPawn, BlackHandLance, BlackHandKnight, BlackHandSilver,
		BlackHandBishop, BlackHandRook, BlackHandGold,
		SquareHand, BlackHandPawn, BlackHandLance, BlackHandKnight, BlackHandSilver,
		BlackHandBishop, BlackHandRook,
	},
	{
		SquareHand, WhiteHandPawn, WhiteHandLance, WhiteHandKnight, WhiteHandSilver,
		WhiteHandBishop, WhiteHandRook, WhiteHandGold,
		SquareHand, WhiteHandPawn, WhiteHandLance, WhiteHandKnight, WhiteHandSilver,
		WhiteHandBishop, WhiteHandRook,
	},
}

// EvalParts carries the three summands of the evaluation so that child
// frames can update them incrementally.
type EvalParts struct {
	BlackKPP Value
	WhiteKPP Value
	KKPT     Value
}

const evalHashSize = 1 << 16

type evalHashEntry struct {
	key   uint64
	parts EvalParts
}

// EvalHash is a small per-thread cache of evaluation parts keyed by the
// position's Zobrist key.
type EvalHash [evalHashSize]evalHashEntry

func (eh *EvalHash) get(key uint64) *evalHashEntry {
	return &eh[uint32(key)&(evalHashSize-1)]
}

var (
	// kppTable[king][i][j] and kkptTable[bk][wk][i][side] are the
	// trained parameters. nil until LoadEval succeeds; evaluation then
	// degrades to material only.
	kppTable  []int16 // [81][FEEnd][FEEnd]
	kkptTable []int16 // [81][81][FEEnd][2]

	evalLoaded bool
)

func kpp(king Square, i, j KPPIndex) Value {
	return Value(kppTable[(int(king)*int(FEEnd)+int(i))*int(FEEnd)+int(j)])
}

func kkpt(bk, wk Square, i KPPIndex, side Color) Value {
	return Value(kkptTable[((int(bk)*81+int(wk))*int(FEEnd)+int(i))*2+int(side)])
}

// LoadEval reads the binary KPP and KKPT tensors from path, laid out
// back to back in little-endian int16. A missing or short file leaves
// the tables zeroed and the engine keeps running on material alone;
// this is a policy choice, not an error the caller must stop for.
func LoadEval(path string) error {
	kppLen := 81 * int(FEEnd) * int(FEEnd)
	kkptLen := 81 * 81 * int(FEEnd) * 2

	kppTable = nil
	kkptTable = nil
	evalLoaded = false

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("eval: %v", err)
	}
	defer f.Close()

	kppData, err := readInt16Table(f, kppLen)
	if err != nil {
		return fmt.Errorf("eval: %s: %v", path, err)
	}
	kkptData, err := readInt16Table(f, kkptLen)
	if err != nil {
		return fmt.Errorf("eval: %s: %v", path, err)
	}

	kppTable = kppData
	kkptTable = kkptData
	evalLoaded = true
	return nil
}

// EvalLoaded returns whether trained parameters are in use.
func EvalLoaded() bool {
	return evalLoaded
}

func readInt16Table(r io.Reader, n int) ([]int16, error) {
	buf := make([]byte, 2*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("short read: %v", err)
	}
	table := make([]int16, n)
	for i := range table {
		table[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return table, nil
}

// calcFull computes the evaluation parts from scratch.
func calcFull(pos *Position, parts *EvalParts) {
	st := pos.st()
	bk := pos.KingSquare(Black)
	wk := pos.KingSquare(White)
	invWk := wk.Inverse()
	side := pos.SideToMove

	blackKPP, whiteKPP := Value(0), Value(0)
	kkptSum := kkpt(bk, wk, st.BlackKPPList[0], side)
	for i := 1; i < EvalListSize; i++ {
		k0 := st.BlackKPPList[i]
		k1 := st.WhiteKPPList[i]
		for j := 0; j < i; j++ {
			blackKPP += kpp(bk, k0, st.BlackKPPList[j])
			whiteKPP -= kpp(invWk, k1, st.WhiteKPPList[j])
		}
		kkptSum += kkpt(bk, wk, k0, side)
	}

	parts.BlackKPP = blackKPP
	parts.WhiteKPP = whiteKPP
	parts.KKPT = kkptSum
}

// calcNoCaptureDifference updates the parts for a move that changed a
// single list entry.
func calcNoCaptureDifference(pos *Position, last *EvalParts, parts *EvalParts) {
	st := pos.st()
	prev := pos.prevSt(1)
	bk := pos.KingSquare(Black)
	wk := pos.KingSquare(White)
	invWk := wk.Inverse()
	side := pos.SideToMove
	moved := int(st.ListIndexMove)

	blackDiff, whiteDiff, kkptSum := Value(0), Value(0), Value(0)
	for i := 0; i < EvalListSize; i++ {
		blackDiff -= kpp(bk, prev.BlackKPPList[moved], prev.BlackKPPList[i])
		blackDiff += kpp(bk, st.BlackKPPList[moved], st.BlackKPPList[i])
		whiteDiff += kpp(invWk, prev.WhiteKPPList[moved], prev.WhiteKPPList[i])
		whiteDiff -= kpp(invWk, st.WhiteKPPList[moved], st.WhiteKPPList[i])
		kkptSum += kkpt(bk, wk, st.BlackKPPList[i], side)
	}

	parts.BlackKPP = last.BlackKPP + blackDiff
	parts.WhiteKPP = last.WhiteKPP + whiteDiff
	parts.KKPT = kkptSum
}

// calcCaptureDifference updates the parts for a capture, which rewrites
// two list entries.
func calcCaptureDifference(pos *Position, last *EvalParts, parts *EvalParts) {
	st := pos.st()
	prev := pos.prevSt(1)
	bk := pos.KingSquare(Black)
	wk := pos.KingSquare(White)
	invWk := wk.Inverse()
	side := pos.SideToMove
	moved := int(st.ListIndexMove)
	captured := int(st.ListIndexCapture)

	blackDiff, whiteDiff, kkptSum := Value(0), Value(0), Value(0)
	for i := 0; i < EvalListSize; i++ {
		blackDiff -= kpp(bk, prev.BlackKPPList[moved], prev.BlackKPPList[i])
		blackDiff -= kpp(bk, prev.BlackKPPList[captured], prev.BlackKPPList[i])
		blackDiff += kpp(bk, st.BlackKPPList[moved], st.BlackKPPList[i])
		blackDiff += kpp(bk, st.BlackKPPList[captured], st.BlackKPPList[i])

		whiteDiff += kpp(invWk, prev.WhiteKPPList[moved], prev.WhiteKPPList[i])
		whiteDiff += kpp(invWk, prev.WhiteKPPList[captured], prev.WhiteKPPList[i])
		whiteDiff -= kpp(invWk, st.WhiteKPPList[moved], st.WhiteKPPList[i])
		whiteDiff -= kpp(invWk, st.WhiteKPPList[captured], st.WhiteKPPList[i])

		kkptSum += kkpt(bk, wk, st.BlackKPPList[i], side)
	}

	// The pair of the two rewritten entries was handled twice above.
	blackDiff += kpp(bk, prev.BlackKPPList[moved], prev.BlackKPPList[captured])
	blackDiff -= kpp(bk, st.BlackKPPList[moved], st.BlackKPPList[captured])
	whiteDiff -= kpp(invWk, prev.WhiteKPPList[moved], prev.WhiteKPPList[captured])
	whiteDiff += kpp(invWk, st.WhiteKPPList[moved], st.WhiteKPPList[captured])

	parts.BlackKPP = last.BlackKPP + blackDiff
	parts.WhiteKPP = last.WhiteKPP + whiteDiff
	parts.KKPT = kkptSum
}

// calcKKPT recomputes just the king-king-piece term.
func calcKKPT(pos *Position) Value {
	st := pos.st()
	bk := pos.KingSquare(Black)
	wk := pos.KingSquare(White)
	side := pos.SideToMove

	sum := Value(0)
	for i := 0; i < EvalListSize; i++ {
		sum += kkpt(bk, wk, st.BlackKPPList[i], side)
	}
	return sum
}

// Evaluate scores pos from the side to move's point of view. It may
// reuse the previous frame's cached parts and the per-thread eval hash.
// Deterministic given the position.
func Evaluate(pos *Position, ss *SearchStack) Value {
	material := pos.Material()
	if pos.SideToMove == White {
		material = -material
	}
	ss.Material = pos.Material() * FvScale

	if !evalLoaded {
		ss.EvalParts = EvalParts{}
		ss.Evaluated = true
		return material + Tempo
	}

	var entry *evalHashEntry
	if th := pos.Thread(); th != nil {
		entry = th.evalHash.get(pos.Key())
		if entry.key == pos.Key() {
			ss.EvalParts = entry.parts
			ss.Evaluated = true
			return pos.sumParts(&ss.EvalParts)
		}
	}

	prev := ss.Prev(1)
	lastMove := prev.CurrentMove
	kingMove := !lastMove.IsDrop() && lastMove.PieceType() == King
	switch {
	case prev.Evaluated && lastMove == MoveNull:
		// A null move keeps every feature; only the turn term moves.
		ss.EvalParts.BlackKPP = prev.EvalParts.BlackKPP
		ss.EvalParts.WhiteKPP = prev.EvalParts.WhiteKPP
		ss.EvalParts.KKPT = calcKKPT(pos)
	case prev.Evaluated && lastMove.IsOK() && !kingMove:
		if lastMove.IsCapture() {
			calcCaptureDifference(pos, &prev.EvalParts, &ss.EvalParts)
		} else {
			calcNoCaptureDifference(pos, &prev.EvalParts, &ss.EvalParts)
		}
	default:
		// King moves rebase a whole KPP sum; recompute from scratch.
		calcFull(pos, &ss.EvalParts)
	}

	if entry != nil {
		entry.key = pos.Key()
		entry.parts = ss.EvalParts
	}
	ss.Evaluated = true
	return pos.sumParts(&ss.EvalParts)
}

// sumParts folds the cached parts, the material and the side to move
// into a scalar score.
func (pos *Position) sumParts(parts *EvalParts) Value {
	score := parts.BlackKPP + parts.WhiteKPP + pos.Material()*FvScale + parts.KKPT
	if pos.SideToMove == White {
		score = -score
	}
	return score/FvScale + Tempo
}
