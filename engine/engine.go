// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine implements the board, move generation and position
// searching for a USI shogi engine.
//
// Position (basic.go, bitboard.go, position.go) uses:
//
//   - Two-lane bitboards for the 81 squares
//   - Dense attack tables indexed by occupancy bit extraction - https://www.chessprogramming.org/Magic_Bitboards
//   - Incremental Zobrist keys over board and hands
//
// Search (engine.go) features implemented are:
//
//   - Iterative deepening with aspiration windows - https://www.chessprogramming.org/Aspiration_Windows
//   - Principal variation search - https://www.chessprogramming.org/Principal_Variation_Search
//   - Transposition table with age-based replacement (hash_table.go)
//   - Null move pruning - https://www.chessprogramming.org/Null_Move_Pruning
//   - Razoring and futility pruning - https://www.chessprogramming.org/Futility_Pruning
//   - ProbCut - https://www.chessprogramming.org/ProbCut
//   - Late move reductions - https://www.chessprogramming.org/Late_Move_Reductions
//   - Singular extensions - https://www.chessprogramming.org/Singular_Extensions
//   - Specialized 1-ply mate search (mate.go)
//   - Shogi repetition handling: draws, perpetual checks and
//     same-board-different-hand repetitions
//
// Move ordering (move_ordering.go) consists of hash move, staged
// captures, killers, countermove and history-sorted quiets. The worker
// pool (thread.go) runs Lazy SMP over the shared transposition table.
package engine

// SearchStack is one frame of the search stack. Frames support a
// lookbehind of up to four plies and a lookahead of two.
type SearchStack struct {
	stack []SearchStack
	idx   int

	PV               []Move
	Ply              int
	CurrentMove      Move
	ExcludedMove     Move
	Killers          [2]Move
	StaticEval       Value
	Material         Value
	EvalParts        EvalParts
	Evaluated        bool
	MoveCount        int
	History          int32
	SkipEarlyPruning bool
	CounterMoves     *CounterMoveStats
}

// Prev returns the frame n plies above.
func (ss *SearchStack) Prev(n int) *SearchStack {
	return &ss.stack[ss.idx-n]
}

// Next returns the frame n plies below.
func (ss *SearchStack) Next(n int) *SearchStack {
	return &ss.stack[ss.idx+n]
}

// newSearchStack allocates a linked stack with a four-frame lookbehind
// cushion and two frames of lookahead.
func newSearchStack() []SearchStack {
	stack := make([]SearchStack, MaxPly+9)
	for i := range stack {
		stack[i].stack = stack
		stack[i].idx = i
	}
	return stack
}

func razorMargin(d Depth) Value {
	return Value(512 + 32*d)
}

func futilityMargin(d Depth) Value {
	return Value(180 * d)
}

var (
	// futilityMoveCounts is indexed by [improving][depth].
	futilityMoveCounts [2][16]int
	// reductions is indexed by [pv][improving][depth][moveNumber].
	reductions [2][2][64][64]Depth
)

func init() {
	k := [2][2]float64{{0.90, 2.25}, {0.50, 3.00}}
	for pv := 0; pv <= 1; pv++ {
		for improving := 0; improving <= 1; improving++ {
			for depth := 1; depth < 64; depth++ {
				for mc := 1; mc < 64; mc++ {
					r := k[pv][0] + logf(depth)*logf(mc)/k[pv][1]
					if r >= 1.5 {
						reductions[pv][improving][depth][mc] = Depth(r)
					}
					// Reduce more at non-PV nodes when the eval is
					// getting worse.
					if pv == 0 && improving == 0 && reductions[pv][improving][depth][mc] >= 2 {
						reductions[pv][improving][depth][mc]++
					}
				}
			}
		}
	}
	for depth := 0; depth < 16; depth++ {
		futilityMoveCounts[0][depth] = int(2.4 + 0.773*powf(float64(depth)+0.00, 1.8))
		futilityMoveCounts[1][depth] = int(2.9 + 1.045*powf(float64(depth)+0.49, 1.8))
	}
}

func reduction(pvNode, improving bool, d Depth, moveCount int) Depth {
	pv, imp := b2i(pvNode), b2i(improving)
	return reductions[pv][imp][min(int(d), 63)][min(moveCount, 63)]
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// drawValue holds the draw score per side, offset by contempt.
var drawValue = [ColorArraySize]Value{ValueDraw, ValueDraw}

// valueToTT shifts mate scores by ply so "mate in N" stays correct when
// the entry is probed from another node.
func valueToTT(v Value, ply int) Value {
	if v >= ValueMateInMaxPly {
		return v + Value(ply)
	}
	if v <= ValueMatedInMaxPly {
		return v - Value(ply)
	}
	return v
}

// valueFromTT reverses valueToTT.
func valueFromTT(v Value, ply int) Value {
	if v == ValueNone {
		return ValueNone
	}
	if v >= ValueMateInMaxPly {
		return v - Value(ply)
	}
	if v <= ValueMatedInMaxPly {
		return v + Value(ply)
	}
	return v
}

func updatePV(ss *SearchStack, move Move, child *SearchStack) {
	ss.PV = append(ss.PV[:0], move)
	ss.PV = append(ss.PV, child.PV...)
}

// repetitionValue turns a Repetition into a score, or ValueNone when
// the search should continue. The same-board outcome is suppressed on
// ply 2, matching long-standing engine behavior.
func repetitionValue(pos *Position, repetition Repetition, ply int) Value {
	switch repetition {
	case PerpetualCheckWin:
		return MateIn(ply)
	case PerpetualCheckLose:
		return MatedIn(ply)
	case BlackWinRepetition, BlackLoseRepetition:
		if ply == 2 {
			return ValueNone
		}
		winner := Black
		if repetition == BlackLoseRepetition {
			winner = White
		}
		if pos.SideToMove == winner {
			return ValueSamePosition
		}
		return -ValueSamePosition
	}
	return ValueNone
}

// search is the main alpha-beta node. It fails soft.
func (th *Thread) search(pos *Position, ss *SearchStack, alpha, beta Value, depth Depth, cutNode, pvNode bool) Value {
	rootNode := pvNode && ss.Prev(1).Ply == 0

	var quietsSearched [64]Move
	quietCount := 0

	inCheck := pos.InCheck()
	bestValue := -ValueInfinite
	bestMove := MoveNone
	moveCount := 0
	ss.MoveCount = 0
	ss.Ply = ss.Prev(1).Ply + 1

	// Periodic time check, driven by a per-thread counter.
	if th.resetCalls.Load() {
		th.resetCalls.Store(false)
		th.callsCount = 0
	}
	th.callsCount++
	if th.callsCount > 4096 {
		for _, t := range th.pool.threads {
			t.resetCalls.Store(true)
		}
		th.pool.checkTime()
	}

	if pvNode && th.maxPly < ss.Ply {
		th.maxPly = ss.Ply
	}

	if !rootNode {
		repetition := NoRepetition
		if ss.Prev(1).CurrentMove != MoveNull {
			repetition = pos.InRepetition()
		}
		if th.pool.Signals.Stop.Load() || repetition == RepetitionDraw || ss.Ply >= MaxPly {
			if ss.Ply >= MaxPly && !inCheck {
				return Evaluate(pos, ss)
			}
			return drawValue[pos.SideToMove]
		}
		if v := repetitionValue(pos, repetition, ss.Ply); v != ValueNone {
			return v
		}

		// Mate distance pruning.
		alpha = max(MatedIn(ss.Ply), alpha)
		beta = min(MateIn(ss.Ply+1), beta)
		if alpha >= beta {
			return alpha
		}
	}

	ss.CurrentMove = MoveNone
	ss.Next(1).ExcludedMove = MoveNone
	ss.Next(1).SkipEarlyPruning = false
	ss.Next(2).Killers[0] = MoveNone
	ss.Next(2).Killers[1] = MoveNone

	// Transposition table lookup. The excluded move of a singular
	// search probes a different key.
	excludedMove := ss.ExcludedMove
	positionKey := pos.Key()
	if excludedMove != MoveNone {
		positionKey = pos.ExclusionKey()
	}
	tte, ttHit := th.pool.TT.Probe(positionKey)
	var ttMove Move
	if rootNode {
		ttMove = th.rootMoves[th.pvIndex].PV[0]
	} else if ttHit {
		ttMove = tte.Move()
	}
	ttValue := ValueNone
	if ttHit {
		ttValue = valueFromTT(tte.Value(), ss.Ply)
	}

	// PV nodes never cut on a TT hit; the move is still used for
	// ordering below.
	if !pvNode && ttHit && Depth(tte.Depth()) >= depth && ttValue != ValueNone &&
		boundAllows(tte.Bound(), ttValue, beta) {
		ss.CurrentMove = ttMove
		if ttValue >= beta && ttMove != MoveNone && !ttMove.IsCapture() {
			th.updateStats(pos, ss, ttMove, depth, quietsSearched[:0])
		}
		return ttValue
	}

	// 1-ply mate probe. Heavy, so only at sufficient depth and only
	// when the table knows nothing about this node.
	if !rootNode && depth > 2*OnePly && !ttHit && !inCheck &&
		ss.Prev(1).CurrentMove != MoveNull {
		if mateMove := SearchMate1Ply(pos); mateMove != MoveNone {
			bestValue = MateIn(ss.Ply + 1)
			ss.StaticEval = bestValue
			tte.Save(positionKey, valueToTT(bestValue, ss.Ply), BoundExact, depth,
				mateMove, ss.StaticEval, th.pool.TT.Generation())
			return bestValue
		}
	}

	// Static evaluation. In check every eval-based pruning is skipped.
	var eval Value
	if inCheck {
		ss.StaticEval = ValueNone
		eval = ValueNone
		goto movesLoop
	} else if ttHit {
		ss.StaticEval = tte.EvalValue()
		if ss.StaticEval == ValueNone {
			ss.StaticEval = Evaluate(pos, ss)
		}
		eval = ss.StaticEval
		if ttValue != ValueNone && boundAllows(tte.Bound(), ttValue, eval) {
			eval = ttValue
		}
	} else {
		if ss.Prev(1).CurrentMove != MoveNull {
			ss.StaticEval = Evaluate(pos, ss)
		} else {
			ss.StaticEval = -ss.Prev(1).StaticEval + 2*Tempo
		}
		eval = ss.StaticEval
		tte.Save(positionKey, ValueNone, BoundNone, DepthNone, MoveNone,
			ss.StaticEval, th.pool.TT.Generation())
	}

	if ss.SkipEarlyPruning {
		goto movesLoop
	}

	// Razoring.
	if !pvNode && depth < 4*OnePly && eval+razorMargin(depth) <= alpha && ttMove == MoveNone {
		if depth <= OnePly && eval+razorMargin(3*OnePly) <= alpha {
			return th.qsearch(pos, ss, alpha, beta, DepthZero, false, false)
		}
		ralpha := alpha - razorMargin(depth)
		v := th.qsearch(pos, ss, ralpha, ralpha+1, DepthZero, false, false)
		if v <= ralpha {
			return v
		}
	}

	// Futility pruning, child node.
	if !pvNode && depth < 7*OnePly && eval-futilityMargin(depth) >= beta && eval < ValueKnownWin {
		return eval - futilityMargin(depth)
	}

	// Null move search with verification. PliesFromNull keeps null
	// moves from chaining back to back.
	if !pvNode && depth >= 2*OnePly && eval >= beta && pos.PliesFromNull() > 0 {
		ss.CurrentMove = MoveNull

		re := Depth((823+67*int(depth))/256 + min(int(eval-beta)/int(PawnValue), 3))

		pos.DoNullMove()
		ss.Next(1).Evaluated = false
		ss.Next(1).SkipEarlyPruning = true
		var nullValue Value
		if depth-re < OnePly {
			nullValue = -th.qsearch(pos, ss.Next(1), -beta, -beta+1, DepthZero, false, false)
		} else {
			nullValue = -th.search(pos, ss.Next(1), -beta, -beta+1, depth-re, !cutNode, false)
		}
		ss.Next(1).SkipEarlyPruning = false
		pos.UndoNullMove()

		if nullValue >= beta {
			if nullValue >= ValueMateInMaxPly {
				nullValue = beta
			}
			if depth < 12*OnePly && abs(beta) < ValueKnownWin {
				return nullValue
			}

			// Verify at reduced depth without the null move.
			ss.SkipEarlyPruning = true
			var v Value
			if depth-re < OnePly {
				v = th.qsearch(pos, ss, beta-1, beta, DepthZero, false, false)
			} else {
				v = th.search(pos, ss, beta-1, beta, depth-re, false, false)
			}
			ss.SkipEarlyPruning = false

			if v >= beta {
				return nullValue
			}
		}
	}

	// ProbCut: a capture above beta plus margin confirmed by a reduced
	// search proves the cutoff.
	if !pvNode && depth >= 5*OnePly && abs(beta) < ValueMateInMaxPly {
		rbeta := min(beta+200, ValueInfinite)
		rdepth := depth - 4*OnePly

		threshold := exchangePieceValueTable[ss.Prev(1).CurrentMove.Capture()]
		if ss.Prev(1).CurrentMove.IsPromotion() {
			threshold += promotePieceValueTable[ss.Prev(1).CurrentMove.PieceType().Demoted()]
		}
		mp := NewProbCutMovePicker(pos, ttMove, threshold)
		ci := NewCheckInfo(pos)
		for m := mp.NextMove(); m != MoveNone; m = mp.NextMove() {
			if !pos.Legal(m, ci.Pinned) {
				continue
			}
			ss.CurrentMove = m
			pos.DoMoveWithCheck(m, pos.GivesCheck(m, ci))
			ss.Next(1).Evaluated = false
			value := -th.search(pos, ss.Next(1), -rbeta, -rbeta+1, rdepth, !cutNode, false)
			pos.UndoMove(m)
			if value >= rbeta {
				return value
			}
		}
	}

	// Internal iterative deepening.
	if ttMove == MoveNone &&
		depth >= iidDepth(pvNode) &&
		(pvNode || ss.StaticEval+256 >= beta) {
		d := depth - 2*OnePly
		if !pvNode {
			d -= depth / 4
		}
		ss.SkipEarlyPruning = true
		th.search(pos, ss, alpha, beta, d, true, pvNode)
		ss.SkipEarlyPruning = false

		tte, ttHit = th.pool.TT.Probe(positionKey)
		ttMove = MoveNone
		if ttHit {
			ttMove = tte.Move()
		}
	}

movesLoop:

	prevMove := ss.Prev(1).CurrentMove
	prevOwnMove := ss.Prev(2).CurrentMove
	prevMovePiece := prevMove.Piece(pos.SideToMove.Opposite())
	prevOwnPiece := prevOwnMove.Piece(pos.SideToMove)
	cmh := th.counterMoveHistory.Get(prevMovePiece, prevMove.To())
	ss.CounterMoves = cmh

	mp := NewMovePicker(pos, ttMove, depth, ss)
	ci := NewCheckInfo(pos)
	improving := ss.StaticEval >= ss.Prev(2).StaticEval ||
		ss.StaticEval == ValueNone || ss.Prev(2).StaticEval == ValueNone

	singularExtensionNode := !rootNode && depth >= 8*OnePly && ttMove != MoveNone &&
		abs(ttValue) < ValueKnownWin && excludedMove == MoveNone &&
		tte.Bound()&BoundLower != 0 && Depth(tte.Depth()) >= depth-3*OnePly

	for m := mp.NextMove(); m != MoveNone; m = mp.NextMove() {
		if m == excludedMove {
			continue
		}
		if rootNode && !th.hasRootMoveAfter(m, th.pvIndex) {
			continue
		}

		moveCount++
		ss.MoveCount = moveCount

		if rootNode && th.isMain() && th.pool.Time.Elapsed() > 3000 {
			th.pool.log("info depth %d currmove %s currmovenumber %d",
				depth, m.USI(), moveCount+th.pvIndex)
		}

		if pvNode {
			ss.Next(1).PV = nil
		}

		ext := DepthZero
		capture := m.IsCapture()
		givesCheck := pos.GivesCheck(m, ci)

		// Extend safe checks.
		if givesCheck && pos.SeeSign(m) {
			ext = OnePly
		}

		// Singular extension: if the TT move alone does not fail low at
		// a reduced depth, it is singular and gets extended.
		if singularExtensionNode && m == ttMove && ext == DepthZero && pos.Legal(m, ci.Pinned) {
			rBeta := ttValue - Value(8*depth)
			ss.ExcludedMove = m
			ss.SkipEarlyPruning = true
			value := th.search(pos, ss, rBeta-1, rBeta, depth/2, cutNode, false)
			ss.SkipEarlyPruning = false
			ss.ExcludedMove = MoveNone

			if value < rBeta {
				ext = OnePly
			}
		}

		newDepth := depth - OnePly + ext

		// Shallow-depth prunings for quiets.
		if !pvNode && !capture && !inCheck && !givesCheck && bestValue > ValueMatedInMaxPly {
			// Move count based pruning.
			if depth < 16*OnePly && moveCount >= futilityMoveCounts[b2i(improving)][depth] {
				continue
			}

			// History based pruning.
			if depth <= 4*OnePly && m != ss.Killers[0] &&
				th.history.Get(m.Piece(pos.SideToMove), m.To()) < 0 &&
				cmh.Get(m.Piece(pos.SideToMove), m.To()) < 0 {
				continue
			}

			predictedDepth := max(newDepth-reduction(pvNode, improving, depth, moveCount), DepthZero)

			// Futility pruning, parent node.
			if predictedDepth < 7*OnePly {
				futilityValue := ss.StaticEval + futilityMargin(predictedDepth) + 256
				if futilityValue <= alpha {
					bestValue = max(bestValue, futilityValue)
					continue
				}
			}

			if predictedDepth < 4*OnePly && !pos.SeeSign(m) {
				continue
			}
		}

		if !rootNode && !pos.Legal(m, ci.Pinned) {
			moveCount--
			ss.MoveCount = moveCount
			continue
		}

		ss.CurrentMove = m
		pos.DoMoveWithCheck(m, givesCheck)
		ss.Next(1).Evaluated = false

		var value Value
		doFullDepthSearch := true

		// Late move reductions.
		if depth >= 3*OnePly && moveCount > 1 && !capture {
			r := reduction(pvNode, improving, depth, moveCount)
			hValue := th.history.Get(m.Piece(pos.SideToMove.Opposite()), m.To())
			cmhValue := cmh.Get(m.Piece(pos.SideToMove.Opposite()), m.To())

			if (!pvNode && cutNode) ||
				(prevMove.IsOK() && hValue < 0 && cmhValue <= 0) {
				r += OnePly
			}

			rHist := Depth((hValue + cmhValue) / 14980)
			r = max(DepthZero, r-rHist)
			ss.History = hValue + cmhValue

			if r > 0 && !pos.SeeGeReverseMove(m, ValueZero) {
				r = max(DepthZero, r-OnePly)
			}

			d := max(newDepth-r, OnePly)
			value = -th.search(pos, ss.Next(1), -(alpha + 1), -alpha, d, true, false)
			doFullDepthSearch = value > alpha && r != DepthZero
		} else {
			doFullDepthSearch = !pvNode || moveCount > 1
		}

		// Null-window search at full depth.
		if doFullDepthSearch {
			if newDepth < OnePly {
				value = -th.qsearch(pos, ss.Next(1), -(alpha + 1), -alpha, DepthZero, givesCheck, false)
			} else {
				value = -th.search(pos, ss.Next(1), -(alpha + 1), -alpha, newDepth, !cutNode, false)
			}
		}

		// Full window search on the first move of a PV node, or after a
		// null-window search improved alpha.
		if pvNode && (moveCount == 1 || (value > alpha && (rootNode || value < beta))) {
			ss.Next(1).PV = ss.Next(1).PV[:0]
			if newDepth < OnePly {
				value = -th.qsearch(pos, ss.Next(1), -beta, -alpha, DepthZero, givesCheck, true)
			} else {
				value = -th.search(pos, ss.Next(1), -beta, -alpha, newDepth, false, true)
			}
		}

		pos.UndoMove(m)

		// A cancelled sub-search returns garbage; drop it.
		if th.pool.Signals.Stop.Load() {
			return ValueZero
		}

		if rootNode {
			rm := th.findRootMove(m)
			if moveCount == 1 || value > alpha {
				rm.Score = value
				rm.PV = rm.PV[:1]
				rm.PV = append(rm.PV, ss.Next(1).PV...)
				if moveCount > 1 && th.isMain() {
					th.bestMoveChanges++
				}
			} else {
				rm.Score = -ValueInfinite
			}
		}

		if value > bestValue {
			bestValue = value
			if value > alpha {
				bestMove = m
				if pvNode && !rootNode {
					updatePV(ss, m, ss.Next(1))
				}
				if pvNode && value < beta {
					alpha = value
				} else {
					break // fail high
				}
			}
		}

		if !capture && m != bestMove && quietCount < 64 {
			quietsSearched[quietCount] = m
			quietCount++
		}
	}

	if moveCount == 0 {
		// No legal move: mated, unless a move was excluded.
		if excludedMove != MoveNone {
			bestValue = alpha
		} else {
			bestValue = MatedIn(ss.Ply - 1)
		}
	} else if bestValue >= beta && !bestMove.IsCapture() {
		th.updateStats(pos, ss, bestMove, depth, quietsSearched[:quietCount])
	} else if depth >= 3*OnePly && bestMove == MoveNone && !inCheck &&
		!prevMove.IsCapture() && prevMove.IsOK() && prevOwnMove.IsOK() {
		// The previous quiet move refuted this whole node; reward it.
		bonus := int32(depth)*int32(depth) + int32(depth) - 1
		prevCmh := th.counterMoveHistory.Get(prevOwnPiece, prevOwnMove.To())
		prevCmh.Update(prevMovePiece, prevMove.To(), bonus)
	}

	bound := BoundUpper
	if bestValue >= beta {
		bound = BoundLower
	} else if pvNode && bestMove != MoveNone {
		bound = BoundExact
	}
	tte.Save(positionKey, valueToTT(bestValue, ss.Ply), bound, depth, bestMove,
		ss.StaticEval, th.pool.TT.Generation())

	return bestValue
}

// boundAllows returns whether a stored bound proves v usable against
// the reference value.
func boundAllows(b Bound, ttValue, ref Value) bool {
	if ttValue >= ref {
		return b&BoundLower != 0
	}
	return b&BoundUpper != 0
}

func iidDepth(pvNode bool) Depth {
	if pvNode {
		return 5 * OnePly
	}
	return 8 * OnePly
}

// qsearch resolves captures (and, near the horizon, quiet checks) at
// leaf nodes.
func (th *Thread) qsearch(pos *Position, ss *SearchStack, alpha, beta Value, depth Depth, inCheck, pvNode bool) Value {
	oldAlpha := alpha
	if pvNode {
		ss.PV = ss.PV[:0]
	}

	ss.CurrentMove = MoveNone
	bestMove := MoveNone
	ss.Ply = ss.Prev(1).Ply + 1

	repetition := NoRepetition
	if ss.Prev(1).CurrentMove != MoveNull {
		repetition = pos.InRepetition()
	}
	if repetition == RepetitionDraw || ss.Ply >= MaxPly {
		if ss.Ply >= MaxPly && !inCheck {
			return Evaluate(pos, ss)
		}
		return drawValue[pos.SideToMove]
	}
	switch repetition {
	case PerpetualCheckWin:
		return MateIn(ss.Ply)
	case PerpetualCheckLose:
		return MatedIn(ss.Ply)
	case BlackWinRepetition, BlackLoseRepetition:
		winner := Black
		if repetition == BlackLoseRepetition {
			winner = White
		}
		if pos.SideToMove == winner {
			return ValueSamePosition
		}
		return -ValueSamePosition
	}

	ttDepth := DepthQsNoChecks
	if inCheck || depth >= DepthQsChecks {
		ttDepth = DepthQsChecks
	}

	positionKey := pos.Key()
	tte, ttHit := th.pool.TT.Probe(positionKey)
	ttMove := MoveNone
	if ttHit {
		ttMove = tte.Move()
	}
	ttValue := ValueNone
	if ttHit {
		ttValue = valueFromTT(tte.Value(), ss.Ply)
	}

	if !pvNode && ttHit && Depth(tte.Depth()) >= ttDepth && ttValue != ValueNone &&
		boundAllows(tte.Bound(), ttValue, beta) {
		ss.CurrentMove = ttMove
		return ttValue
	}

	var bestValue, futilityBase Value
	if inCheck {
		ss.StaticEval = ValueNone
		bestValue = -ValueInfinite
		futilityBase = -ValueInfinite
	} else {
		// Try the 1-ply mate probe once if the table knows nothing.
		if !ttHit && ss.Prev(1).CurrentMove != MoveNull {
			if mateMove := SearchMate1Ply(pos); mateMove != MoveNone {
				tte.Save(positionKey, valueToTT(MateIn(ss.Ply+1), ss.Ply), BoundExact,
					ttDepth, mateMove, ValueNone, th.pool.TT.Generation())
				return MateIn(ss.Ply + 1)
			}
		}

		if ttHit {
			ss.StaticEval = tte.EvalValue()
			if ss.StaticEval == ValueNone {
				ss.StaticEval = Evaluate(pos, ss)
			}
			bestValue = ss.StaticEval
			if ttValue != ValueNone && boundAllows(tte.Bound(), ttValue, bestValue) {
				bestValue = ttValue
			}
		} else {
			if ss.Prev(1).CurrentMove != MoveNull {
				ss.StaticEval = Evaluate(pos, ss)
			} else {
				ss.StaticEval = -ss.Prev(1).StaticEval + 2*Tempo
			}
			bestValue = ss.StaticEval
		}

		// Stand pat.
		if bestValue >= beta {
			if !ttHit {
				tte.Save(positionKey, valueToTT(bestValue, ss.Ply), BoundLower,
					DepthNone, MoveNone, ss.StaticEval, th.pool.TT.Generation())
			}
			return bestValue
		}

		if pvNode && bestValue > alpha {
			alpha = bestValue
		}
		futilityBase = bestValue + 128
	}

	mp := NewQMovePicker(pos, ttMove, depth, ss.Prev(1).CurrentMove.To())
	ci := NewCheckInfo(pos)

	for m := mp.NextMove(); m != MoveNone; m = mp.NextMove() {
		givesCheck := pos.GivesCheck(m, ci)

		// Futility pruning of losing captures.
		if !inCheck && !givesCheck && futilityBase > -ValueKnownWin {
			futilityValue := futilityBase + exchangePieceValueTable[m.Capture()]
			if m.IsPromotion() {
				futilityValue += promotePieceValueTable[m.PieceType().Demoted()]
			}
			if futilityValue <= alpha {
				bestValue = max(bestValue, futilityValue)
				continue
			}
			if futilityBase <= alpha && !pos.SeeGe(m, 1) {
				bestValue = max(bestValue, futilityBase)
				continue
			}
		}

		evasionPrunable := inCheck && bestValue > ValueMatedInMaxPly && !m.IsCapture()
		if (!inCheck || evasionPrunable) && !pos.SeeSign(m) {
			continue
		}

		if !pos.Legal(m, ci.Pinned) {
			continue
		}

		ss.CurrentMove = m
		pos.DoMoveWithCheck(m, givesCheck)
		ss.Next(1).Evaluated = false
		value := -th.qsearch(pos, ss.Next(1), -beta, -alpha, depth-OnePly, givesCheck, pvNode)
		pos.UndoMove(m)

		if value > bestValue {
			bestValue = value
			if value > alpha {
				if pvNode {
					updatePV(ss, m, ss.Next(1))
				}
				if pvNode && value < beta {
					alpha = value
					bestMove = m
				} else {
					// Fail high.
					tte.Save(positionKey, valueToTT(value, ss.Ply), BoundLower,
						ttDepth, m, ss.StaticEval, th.pool.TT.Generation())
					return value
				}
			}
		}
	}

	if inCheck && bestValue == -ValueInfinite {
		return MatedIn(ss.Ply - 1)
	}

	bound := BoundUpper
	if pvNode && bestValue > oldAlpha {
		bound = BoundExact
	}
	tte.Save(positionKey, valueToTT(bestValue, ss.Ply), bound, ttDepth, bestMove,
		ss.StaticEval, th.pool.TT.Generation())

	return bestValue
}

// updateStats rewards the cutoff move in the history tables and
// penalizes the quiets searched before it.
func (th *Thread) updateStats(pos *Position, ss *SearchStack, move Move, depth Depth, quiets []Move) {
	if ss.Killers[0] != move {
		ss.Killers[1] = ss.Killers[0]
		ss.Killers[0] = move
	}

	bonus := int32(depth)*int32(depth) + int32(depth) - 1
	prevMove := ss.Prev(1).CurrentMove
	prevOwnMove := ss.Prev(2).CurrentMove
	prevPiece := prevMove.Piece(pos.SideToMove.Opposite())
	prevOwnPiece := prevOwnMove.Piece(pos.SideToMove)
	cmh := th.counterMoveHistory.Get(prevPiece, prevMove.To())
	fmh := th.counterMoveHistory.Get(prevOwnPiece, prevOwnMove.To())

	pi := move.Piece(pos.SideToMove)
	th.history.Update(pi, move.To(), bonus)
	th.fromTo.Update(pos.SideToMove, move, bonus)

	if prevMove.IsOK() {
		th.counterMoves.Update(prevPiece, prevMove.To(), move)
		cmh.Update(pi, move.To(), bonus)
	}
	if prevOwnMove.IsOK() {
		fmh.Update(pi, move.To(), bonus)
	}

	for _, q := range quiets {
		qi := q.Piece(pos.SideToMove)
		th.history.Update(qi, q.To(), -bonus)
		th.fromTo.Update(pos.SideToMove, q, -bonus)
		if prevMove.IsOK() {
			cmh.Update(qi, q.To(), -bonus)
		}
		if prevOwnMove.IsOK() {
			fmh.Update(qi, q.To(), -bonus)
		}
	}

	// If the previous quiet move lost instantly to the first reply,
	// punish it in its own slice.
	if prevOwnMove.IsOK() && ss.Prev(1).MoveCount == 1 && !prevMove.IsCapture() {
		prevCmh := th.counterMoveHistory.Get(prevOwnPiece, prevOwnMove.To())
		prevCmh.Update(prevPiece, prevMove.To(), -bonus-2*int32(depth+1))
	}
}

func abs(v Value) Value {
	if v < 0 {
		return -v
	}
	return v
}
