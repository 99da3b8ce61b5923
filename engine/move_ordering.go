// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// move_ordering.go yields moves for one node in stages, advancing only
// when the current stage runs dry. Generation and sorting of a stage
// are postponed until a move from it is actually requested.

package engine

const (
	// Move picker stages.

	msMainTT = iota
	msCapturesInit
	msGoodCaptures
	msKiller0
	msKiller1
	msCounterMove
	msQuietInit
	msQuiet
	msBadCaptures

	msEvasionTT
	msEvasionsInit
	msAllEvasions

	msProbCutTT
	msProbCutInit
	msProbCutCaptures

	msQSearchTT
	msQCapturesInit
	msQCaptures
	msQChecksInit
	msQChecks

	msDone
)

// rawPieceValueTable scores captures by the victim's base value.
var rawPieceValueTable = [PieceTypeArraySize]int32{
	0,
	int32(PawnValue),
	int32(LanceValue),
	int32(KnightValue),
	int32(SilverValue),
	int32(BishopValue),
	int32(RookValue),
	int32(GoldValue),
	0,
	int32(PawnValue),
	int32(LanceValue),
	int32(KnightValue),
	int32(SilverValue),
	int32(BishopValue),
	int32(RookValue),
}

const historyMax = 1 << 28

// MovePicker is a stateful cursor over the moves of one node.
type MovePicker struct {
	pos *Position
	ss  *SearchStack

	ttMove      Move
	killers     [2]Move
	countermove Move

	stage int
	depth Depth

	recaptureSquare Square
	threshold       Value

	moves          []ExtMove
	cur            int
	endBadCaptures int

	buf [MaxMoves]ExtMove
}

// NewMovePicker builds the picker for a main-search node.
func NewMovePicker(pos *Position, ttm Move, depth Depth, ss *SearchStack) *MovePicker {
	mp := &MovePicker{pos: pos, ss: ss, depth: depth}

	th := pos.Thread()
	prev := ss.Prev(1)
	prevPiece := prev.CurrentMove.Piece(pos.SideToMove.Opposite())
	mp.countermove = th.counterMoves.Get(prevPiece, prev.CurrentMove.To())
	mp.killers[0] = ss.Killers[0]
	mp.killers[1] = ss.Killers[1]

	if pos.InCheck() {
		mp.stage = msEvasionTT
	} else {
		mp.stage = msMainTT
	}
	if ttm != MoveNone && pos.PseudoLegal(ttm) {
		mp.ttMove = ttm
	} else {
		mp.stage++
	}
	return mp
}

// NewQMovePicker builds the picker for a quiescence node. At very
// shallow depths only recaptures on recaptureSquare are considered.
func NewQMovePicker(pos *Position, ttm Move, depth Depth, recaptureSquare Square) *MovePicker {
	mp := &MovePicker{pos: pos, depth: depth, recaptureSquare: recaptureSquare}

	if pos.InCheck() {
		mp.stage = msEvasionTT
	} else {
		mp.stage = msQSearchTT
	}
	if ttm != MoveNone && pos.PseudoLegal(ttm) &&
		(depth > DepthQsRecaptures || ttm.To() == recaptureSquare) {
		mp.ttMove = ttm
	} else {
		mp.stage++
	}
	return mp
}

// NewProbCutMovePicker yields only captures whose static exchange meets
// the threshold.
func NewProbCutMovePicker(pos *Position, ttm Move, threshold Value) *MovePicker {
	mp := &MovePicker{pos: pos, threshold: threshold, stage: msProbCutTT}

	if ttm != MoveNone && pos.PseudoLegal(ttm) && ttm.IsCapture() &&
		pos.SeeGe(ttm, threshold) {
		mp.ttMove = ttm
	} else {
		mp.stage++
	}
	return mp
}

func (mp *MovePicker) scoreCaptures() {
	th := mp.pos.Thread()
	for i := mp.cur; i < len(mp.moves); i++ {
		m := mp.moves[i].Move
		capture := m.Capture()
		mp.moves[i].Value = rawPieceValueTable[capture] +
			th.captureHistory.Get(m.Piece(mp.pos.SideToMove), m.To(), capture)
	}
}

func (mp *MovePicker) scoreQuiets() {
	th := mp.pos.Thread()
	us := mp.pos.SideToMove
	cmh := mp.ss.Prev(1).CounterMoves
	fmh := mp.ss.Prev(2).CounterMoves
	fm2 := mp.ss.Prev(4).CounterMoves

	for i := mp.cur; i < len(mp.moves); i++ {
		m := mp.moves[i].Move
		pi, to := m.Piece(us), m.To()
		v := th.history.Get(pi, to)
		if cmh != nil {
			v += cmh.Get(pi, to)
		}
		if fmh != nil {
			v += fmh.Get(pi, to)
		}
		if fm2 != nil {
			v += fm2.Get(pi, to)
		}
		v += th.fromTo.Get(us, m)
		mp.moves[i].Value = v
	}
}

func (mp *MovePicker) scoreEvasions() {
	th := mp.pos.Thread()
	us := mp.pos.SideToMove
	for i := mp.cur; i < len(mp.moves); i++ {
		m := mp.moves[i].Move
		if m.IsCapture() {
			mp.moves[i].Value = rawPieceValueTable[m.Capture()] + historyMax
		} else {
			mp.moves[i].Value = th.history.Get(m.Piece(us), m.To()) + th.fromTo.Get(us, m)
		}
	}
}

// pickBest swaps the best remaining move to the front and returns it.
func (mp *MovePicker) pickBest() Move {
	best := mp.cur
	for i := mp.cur + 1; i < len(mp.moves); i++ {
		if mp.moves[i].Value > mp.moves[best].Value {
			best = i
		}
	}
	mp.moves[mp.cur], mp.moves[best] = mp.moves[best], mp.moves[mp.cur]
	m := mp.moves[mp.cur].Move
	mp.cur++
	return m
}

// partialInsertionSort sorts every move scoring at least limit to the
// front, in descending order; the order of the remaining moves is not
// preserved.
func partialInsertionSort(moves []ExtMove, limit int32) {
	sortedEnd := 0
	for p := 1; p < len(moves); p++ {
		if moves[p].Value >= limit {
			tmp := moves[p]
			sortedEnd++
			moves[p] = moves[sortedEnd]
			q := sortedEnd
			for ; q > 0 && moves[q-1].Value < tmp.Value; q-- {
				moves[q] = moves[q-1]
			}
			moves[q] = tmp
		}
	}
}

// NextMove returns the next move to try, MoveNone when exhausted.
func (mp *MovePicker) NextMove() Move {
	for {
		switch mp.stage {
		case msMainTT, msEvasionTT, msQSearchTT, msProbCutTT:
			mp.stage++
			return mp.ttMove

		case msCapturesInit:
			mp.moves = Generate(mp.pos, GenCaptures, mp.buf[:0])
			mp.cur, mp.endBadCaptures = 0, 0
			mp.scoreCaptures()
			mp.stage++

		case msGoodCaptures:
			for mp.cur < len(mp.moves) {
				m := mp.pickBest()
				if m == mp.ttMove {
					continue
				}
				if m.Capture() >= Silver && mp.moves[mp.cur-1].Value > 1090 {
					return m
				}
				if mp.pos.SeeGe(m, ValueZero) {
					return m
				}
				// Keep losing captures for the last stage.
				mp.buf[mp.endBadCaptures] = ExtMove{Move: m}
				mp.endBadCaptures++
			}
			mp.stage++

		case msKiller0, msKiller1:
			m := mp.killers[mp.stage-msKiller0]
			mp.stage++
			if m != MoveNone && m != mp.ttMove && !m.IsCapture() && mp.pos.PseudoLegal(m) {
				return m
			}

		case msCounterMove:
			mp.stage++
			m := mp.countermove
			if m != MoveNone && m != mp.ttMove && m != mp.killers[0] && m != mp.killers[1] &&
				!m.IsCapture() && mp.pos.PseudoLegal(m) {
				return m
			}

		case msQuietInit:
			mp.cur = mp.endBadCaptures
			mp.moves = Generate(mp.pos, GenQuiets, mp.buf[:mp.cur])
			mp.scoreQuiets()
			partialInsertionSort(mp.moves[mp.cur:], -4000*mp.depth)
			mp.stage++

		case msQuiet:
			for mp.cur < len(mp.moves) {
				m := mp.moves[mp.cur].Move
				mp.cur++
				if m != mp.ttMove && m != mp.killers[0] && m != mp.killers[1] && m != mp.countermove {
					return m
				}
			}
			mp.stage++
			mp.cur = 0

		case msBadCaptures:
			if mp.cur < mp.endBadCaptures {
				m := mp.buf[mp.cur].Move
				mp.cur++
				return m
			}
			return MoveNone

		case msEvasionsInit:
			mp.moves = Generate(mp.pos, GenEvasions, mp.buf[:0])
			mp.cur = 0
			mp.scoreEvasions()
			mp.stage++

		case msAllEvasions:
			for mp.cur < len(mp.moves) {
				m := mp.pickBest()
				if m != mp.ttMove {
					return m
				}
			}
			return MoveNone

		case msProbCutInit:
			mp.moves = Generate(mp.pos, GenCaptures, mp.buf[:0])
			mp.cur = 0
			mp.scoreCaptures()
			mp.stage++

		case msProbCutCaptures:
			for mp.cur < len(mp.moves) {
				m := mp.pickBest()
				if m != mp.ttMove && mp.pos.SeeGe(m, mp.threshold) {
					return m
				}
			}
			return MoveNone

		case msQCapturesInit:
			if mp.depth > DepthQsRecaptures {
				mp.moves = Generate(mp.pos, GenCaptures, mp.buf[:0])
			} else {
				mp.moves = generateRecaptures(mp.pos, mp.recaptureSquare, mp.buf[:0])
			}
			mp.cur = 0
			mp.scoreCaptures()
			mp.stage++

		case msQCaptures:
			for mp.cur < len(mp.moves) {
				m := mp.pickBest()
				if m != mp.ttMove {
					return m
				}
			}
			if mp.depth <= DepthQsNoChecks {
				return MoveNone
			}
			mp.stage++

		case msQChecksInit:
			mp.moves = Generate(mp.pos, GenQuietChecks, mp.buf[:0])
			mp.cur = 0
			mp.stage++

		case msQChecks:
			for mp.cur < len(mp.moves) {
				m := mp.moves[mp.cur].Move
				mp.cur++
				if m != mp.ttMove {
					return m
				}
			}
			return MoveNone

		default:
			return MoveNone
		}
	}
}

// generateRecaptures generates captures landing on sq only.
func generateRecaptures(pos *Position, sq Square, moves []ExtMove) []ExtMove {
	if sq < 0 || sq >= BoardSquare || pos.squares[sq] == NoPiece ||
		pos.squares[sq].Color() == pos.SideToMove {
		return moves
	}
	return generateAll(pos, maskTable[sq], false, moves)
}
