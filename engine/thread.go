// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// thread.go runs the Lazy SMP worker pool: every worker iteratively
// deepens over a private position and private history tables, sharing
// only the transposition table. A staggered depth schedule keeps the
// workers from all hammering the same depths.

package engine

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// RootMove is one root move with its principal variation and scores.
type RootMove struct {
	PV            []Move
	Score         Value
	PreviousScore Value
}

// SignalsType carries the cross-thread stop flags.
type SignalsType struct {
	Stop            atomic.Bool
	StopOnPonderHit atomic.Bool
	Ponder          atomic.Bool
}

// Options are the engine options the protocol layer may set.
type Options struct {
	MultiPV       int
	Contempt      int // centipawns added to the draw score
	ByoyomiMargin int
	OwnBook       bool
	BookFile      string
	BestBookMove  bool
	MinBookScore  int
}

// Thread is one search worker. Workers differ only in their index;
// index 0 is the main thread.
type Thread struct {
	pool  *ThreadPool
	index int

	pos            *Position
	rootMoves      []RootMove
	rootDepth      Depth
	completedDepth Depth
	pvIndex        int
	maxPly         int
	callsCount     int
	resetCalls     atomic.Bool

	stack []SearchStack

	history            *HistoryStats
	counterMoves       *MovesStats
	counterMoveHistory *CounterMoveHistoryStats
	fromTo             *FromToStats
	captureHistory     *CapturePieceToHistory
	evalHash           *EvalHash

	// Main thread only.
	bestMoveChanges float64
	failedLow       bool
	previousScore   Value
}

func newThread(pool *ThreadPool, index int) *Thread {
	return &Thread{
		pool:               pool,
		index:              index,
		stack:              newSearchStack(),
		history:            &HistoryStats{},
		counterMoves:       &MovesStats{},
		counterMoveHistory: &CounterMoveHistoryStats{},
		fromTo:             &FromToStats{},
		captureHistory:     &CapturePieceToHistory{},
		evalHash:           &EvalHash{},
		previousScore:      ValueInfinite,
	}
}

func (th *Thread) isMain() bool {
	return th.index == 0
}

// Clear resets the thread's history tables for a new game.
func (th *Thread) Clear() {
	th.history.Clear()
	th.counterMoves.Clear()
	th.counterMoveHistory.Clear()
	th.fromTo.Clear()
	th.captureHistory.Clear()
}

func (th *Thread) findRootMove(m Move) *RootMove {
	for i := range th.rootMoves {
		if th.rootMoves[i].PV[0] == m {
			return &th.rootMoves[i]
		}
	}
	return nil
}

// hasRootMoveAfter reports whether m is still schedulable in this
// MultiPV iteration.
func (th *Thread) hasRootMoveAfter(m Move, from int) bool {
	for i := from; i < len(th.rootMoves); i++ {
		if th.rootMoves[i].PV[0] == m {
			return true
		}
	}
	return false
}

// halfDensity maps (worker index, iteration) to a skip flag so that
// different workers sit out different depths. Dropping this in favor
// of a uniform schedule measurably weakens the pool.
var halfDensity = [][]int{
	{0, 1},
	{1, 0},
	{0, 0, 1, 1},
	{0, 1, 1, 0},
	{1, 1, 0, 0},
	{1, 0, 0, 1},
	{0, 0, 0, 1, 1, 1},
	{0, 0, 1, 1, 1, 0},
	{0, 1, 1, 1, 0, 0},
	{1, 1, 1, 0, 0, 0},
	{1, 1, 0, 0, 0, 1},
	{1, 0, 0, 0, 1, 1},
	{0, 0, 0, 0, 1, 1, 1, 1},
	{0, 0, 0, 1, 1, 1, 1, 0},
	{0, 0, 1, 1, 1, 1, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 1, 1, 1, 0, 0, 0, 0},
	{1, 1, 1, 0, 0, 0, 0, 1},
	{1, 1, 0, 0, 0, 0, 1, 1},
	{1, 0, 0, 0, 0, 1, 1, 1},
}

// idSearch is the iterative-deepening loop every worker runs.
func (th *Thread) idSearch() {
	pool := th.pool
	// Root frame at index 4: the picker looks back up to four plies.
	ss := &th.stack[4]
	for i := 0; i < 7; i++ {
		th.stack[i] = SearchStack{stack: th.stack, idx: i}
	}

	bestValue := -ValueInfinite
	alpha, beta := -ValueInfinite, ValueInfinite
	delta := -ValueInfinite
	th.completedDepth = DepthZero
	th.maxPly = 0
	th.rootDepth = DepthZero

	if th.isMain() {
		th.bestMoveChanges = 0
		th.failedLow = false
		pool.TT.NewSearch()
	}

	multiPV := max(pool.Options.MultiPV, 1)

	for {
		th.rootDepth++
		if th.rootDepth >= DepthMax || pool.Signals.Stop.Load() ||
			(pool.Limits.Depth != 0 && th.rootDepth > pool.Limits.Depth) {
			break
		}

		// The Lazy SMP schedule: helpers skip depths per the
		// half-density table.
		if !th.isMain() {
			row := halfDensity[(th.index-1)%len(halfDensity)]
			if row[(int(th.rootDepth)+th.pos.GamePly)%len(row)] == 1 {
				continue
			}
		}

		if th.isMain() {
			th.bestMoveChanges *= 0.505
			th.failedLow = false
		}

		for i := range th.rootMoves {
			th.rootMoves[i].PreviousScore = th.rootMoves[i].Score
		}

		for th.pvIndex = 0; th.pvIndex < multiPV && !pool.Signals.Stop.Load(); th.pvIndex++ {
			if th.pvIndex >= len(th.rootMoves) {
				break
			}
			if th.rootDepth >= 5*OnePly {
				delta = Value(64)
				alpha = max(th.rootMoves[th.pvIndex].PreviousScore-delta, -ValueInfinite)
				beta = min(th.rootMoves[th.pvIndex].PreviousScore+delta, ValueInfinite)
			} else {
				alpha, beta = -ValueInfinite, ValueInfinite
			}

			// Aspiration loop: widen the failing bound gradually.
			for {
				bestValue = th.search(th.pos, ss, alpha, beta, th.rootDepth, false, true)

				sort.SliceStable(th.rootMoves[th.pvIndex:], func(i, j int) bool {
					a := &th.rootMoves[th.pvIndex+i]
					b := &th.rootMoves[th.pvIndex+j]
					return a.Score > b.Score
				})
				for i := 0; i <= th.pvIndex; i++ {
					th.insertPVInTT(&th.rootMoves[i])
				}

				if pool.Signals.Stop.Load() {
					break
				}

				if th.isMain() && multiPV == 1 &&
					(bestValue <= alpha || bestValue >= beta) &&
					pool.Time.Elapsed() > 3000 {
					pool.log("%s", pool.usiPV(th, th.rootDepth, alpha, beta))
				}

				if bestValue <= alpha {
					beta = (alpha + beta) / 2
					alpha = max(bestValue-delta, -ValueInfinite)
					if th.isMain() {
						th.failedLow = true
						pool.Signals.StopOnPonderHit.Store(false)
					}
				} else if bestValue >= beta {
					alpha = (alpha + beta) / 2
					beta = min(bestValue+delta, ValueInfinite)
				} else {
					break
				}

				delta += delta/4 + 5
			}

			sort.SliceStable(th.rootMoves[:th.pvIndex+1], func(i, j int) bool {
				return th.rootMoves[i].Score > th.rootMoves[j].Score
			})

			if !th.isMain() {
				break
			}

			if pool.Signals.Stop.Load() {
				pool.log("info nodes %d time %d", pool.NodesSearched(), pool.Time.Elapsed())
			} else if th.pvIndex+1 == multiPV || pool.Time.Elapsed() > 3000 {
				pool.log("%s", pool.usiPV(th, th.rootDepth, alpha, beta))
			}
		}

		if !pool.Signals.Stop.Load() {
			th.completedDepth = th.rootDepth
		}

		if !th.isMain() {
			continue
		}

		// A mate within the requested bound ends a "go mate" search.
		if pool.Limits.Mate != 0 && bestValue >= ValueMateInMaxPly &&
			int(ValueMate-bestValue) <= 2*pool.Limits.Mate {
			pool.Signals.Stop.Store(true)
		}

		if pool.Limits.UseTimeManagement() && !pool.Signals.Stop.Load() &&
			!pool.Signals.StopOnPonderHit.Load() {
			if th.rootDepth > 4*OnePly && multiPV == 1 {
				pool.Time.PvInstability(th.bestMoveChanges)
			}

			if len(th.rootMoves) == 1 || pool.Time.Elapsed() > pool.Time.AvailableTime() {
				// If pondering, defer the stop until ponderhit.
				if pool.Signals.Ponder.Load() {
					pool.Signals.StopOnPonderHit.Store(true)
				} else {
					pool.Signals.Stop.Store(true)
				}
			}
		}
	}
}

// insertPVInTT re-seeds the table with the PV so that it survives
// overwrites between iterations.
func (th *Thread) insertPVInTT(rm *RootMove) {
	pos := th.pos
	var done []Move
	for _, m := range rm.PV {
		tte, ttHit := th.pool.TT.Probe(pos.Key())
		if !ttHit || tte.Move() != m {
			tte.Save(pos.Key(), ValueNone, BoundNone, DepthNone, m, ValueNone,
				th.pool.TT.Generation())
		}
		if !pos.PseudoLegal(m) || !pos.Legal(m, pos.PinnedPieces(pos.SideToMove)) {
			break
		}
		pos.DoMove(m)
		done = append(done, m)
	}
	for i := len(done) - 1; i >= 0; i-- {
		pos.UndoMove(done[i])
	}
}

// extractPonderFromTT fetches a ponder move for a one-move PV.
func (th *Thread) extractPonderFromTT(rm *RootMove) bool {
	pos := th.pos
	if len(rm.PV) != 1 {
		return len(rm.PV) > 1
	}
	pos.DoMove(rm.PV[0])
	defer pos.UndoMove(rm.PV[0])
	if tte, ttHit := th.pool.TT.Probe(pos.Key()); ttHit {
		m := tte.Move()
		if m != MoveNone && pos.PseudoLegal(m) && pos.Legal(m, pos.PinnedPieces(pos.SideToMove)) {
			rm.PV = append(rm.PV, m)
			return true
		}
	}
	return false
}

// ThreadPool owns the workers and everything they share.
type ThreadPool struct {
	threads []*Thread

	TT      *TranspositionTable
	Time    TimeManagement
	Signals SignalsType
	Limits  LimitsType
	Options Options
	Book    BookSource

	// Output receives the protocol lines (info, bestmove).
	Output io.Writer
}

// NewThreadPool builds a pool of n workers sharing a table of the
// given size.
func NewThreadPool(n, hashSizeMB int) *ThreadPool {
	pool := &ThreadPool{
		TT:     NewTranspositionTable(hashSizeMB),
		Output: os.Stdout,
	}
	pool.Options.MultiPV = 1
	pool.Resize(n)
	return pool
}

// Resize adjusts the number of workers.
func (pool *ThreadPool) Resize(n int) {
	if n < 1 {
		n = 1
	}
	for len(pool.threads) < n {
		pool.threads = append(pool.threads, newThread(pool, len(pool.threads)))
	}
	pool.threads = pool.threads[:n]
}

// Size returns the number of workers.
func (pool *ThreadPool) Size() int {
	return len(pool.threads)
}

func (pool *ThreadPool) main() *Thread {
	return pool.threads[0]
}

// Clear resets all per-thread state and the shared table.
func (pool *ThreadPool) Clear() {
	pool.TT.Clear()
	for _, th := range pool.threads {
		th.Clear()
	}
	pool.main().previousScore = ValueInfinite
}

// NodesSearched sums the node counters of all workers.
func (pool *ThreadPool) NodesSearched() uint64 {
	var nodes uint64
	for _, th := range pool.threads {
		if th.pos != nil {
			nodes += th.pos.Nodes()
		}
	}
	return nodes
}

func (pool *ThreadPool) log(format string, a ...interface{}) {
	fmt.Fprintf(pool.Output, format+"\n", a...)
}

// checkTime stops the search when a limit is exceeded. Called from the
// workers every few thousand nodes.
func (pool *ThreadPool) checkTime() {
	if pool.Signals.Ponder.Load() {
		return
	}

	elapsed := pool.Time.Elapsed()
	if (pool.Limits.UseTimeManagement() && elapsed > pool.Time.Maximum()-10) ||
		(pool.Limits.MoveTime != 0 && elapsed >= pool.Limits.MoveTime) ||
		(pool.Limits.Nodes != 0 && pool.NodesSearched() >= uint64(pool.Limits.Nodes)) {
		pool.Signals.Stop.Store(true)
	}
}

// StartThinking runs a full search for pos under limits and returns
// the best and ponder moves. It blocks until the search ends; "stop"
// and "ponderhit" arrive through the Signals.
func (pool *ThreadPool) StartThinking(pos *Position, limits *LimitsType) (Move, Move) {
	pool.Signals.StopOnPonderHit.Store(false)
	pool.Signals.Stop.Store(false)
	pool.Signals.Ponder.Store(limits.Ponder)
	pool.Limits = *limits

	us := pos.SideToMove
	pool.Time.Init(limits, us, pool.Options.ByoyomiMargin)
	contempt := Value(pool.Options.Contempt) * PawnValue / 100
	drawValue[us] = ValueDraw + contempt
	drawValue[us.Opposite()] = ValueDraw - contempt

	// Build the root move list, restricted to searchmoves if given.
	var rootMoves []RootMove
	for _, m := range LegalMoves(pos) {
		if len(limits.SearchMoves) == 0 || containsMove(limits.SearchMoves, m) {
			rootMoves = append(rootMoves, RootMove{
				PV:            []Move{m},
				Score:         -ValueInfinite,
				PreviousScore: -ValueInfinite,
			})
		}
	}

	main := pool.main()
	searchBestThread := true

	if len(rootMoves) == 0 {
		pool.log("info depth 0 score mate -1")
		pool.waitWhilePondering()
		return MoveNone, MoveNone
	}

	// Opening book: play a known move without searching.
	if pool.Options.OwnBook && pool.Book != nil && !limits.Infinite && limits.Mate == 0 {
		if bookMove := pool.Book.Probe(pos); bookMove != MoveNone {
			for i := range rootMoves {
				if rootMoves[i].PV[0] == bookMove {
					rootMoves[0], rootMoves[i] = rootMoves[i], rootMoves[0]
					searchBestThread = false
					break
				}
			}
		}
	}

	if searchBestThread {
		for _, th := range pool.threads {
			th.pos = pos.Clone(th)
			th.pos.ResetNodes()
			th.rootMoves = cloneRootMoves(rootMoves)
			th.pvIndex = 0
		}

		var g errgroup.Group
		for _, th := range pool.threads[1:] {
			th := th
			g.Go(func() error {
				th.idSearch()
				return nil
			})
		}
		main.idSearch()

		// Under ponder or infinite, hold the result until told to stop.
		if !pool.Signals.Stop.Load() && (pool.Signals.Ponder.Load() || limits.Infinite) {
			pool.Signals.StopOnPonderHit.Store(true)
			for !pool.Signals.Stop.Load() {
				time.Sleep(time.Millisecond)
			}
		}

		pool.Signals.Stop.Store(true)
		g.Wait()
	} else {
		main.pos = pos.Clone(main)
		main.rootMoves = cloneRootMoves(rootMoves)
		main.completedDepth = DepthZero
	}

	// The final decision: deepest worker with the best root score.
	best := main
	if pool.Options.MultiPV <= 1 && searchBestThread {
		for _, th := range pool.threads {
			if th.completedDepth > best.completedDepth &&
				th.rootMoves[0].Score > best.rootMoves[0].Score {
				best = th
			}
		}
	}

	bestRoot := &best.rootMoves[0]
	if bestRoot.PV[0] == MoveNone {
		pool.log("bestmove resign")
		return MoveNone, MoveNone
	}

	if best != main {
		pool.log("%s", pool.usiPV(best, best.completedDepth, -ValueInfinite, ValueInfinite))
	}

	ponder := MoveNone
	if len(bestRoot.PV) > 1 || best.extractPonderFromTT(bestRoot) {
		ponder = bestRoot.PV[1]
	}
	return bestRoot.PV[0], ponder
}

// waitWhilePondering blocks a no-move result until stop or ponderhit,
// as the protocol demands.
func (pool *ThreadPool) waitWhilePondering() {
	if pool.Signals.Ponder.Load() || pool.Limits.Infinite {
		pool.Signals.StopOnPonderHit.Store(true)
		for !pool.Signals.Stop.Load() {
			time.Sleep(time.Millisecond)
		}
	}
	pool.Signals.Stop.Store(true)
}

// PonderHit switches from pondering to normal time accounting.
func (pool *ThreadPool) PonderHit() {
	pool.Signals.Ponder.Store(false)
	if pool.Signals.StopOnPonderHit.Load() {
		pool.Signals.Stop.Store(true)
	}
}

// usiPV formats the "info ... pv ..." lines for all MultiPV slots.
func (pool *ThreadPool) usiPV(th *Thread, depth Depth, alpha, beta Value) string {
	elapsed := pool.Time.Elapsed() + 1
	nodes := pool.NodesSearched()
	multiPV := min(max(pool.Options.MultiPV, 1), len(th.rootMoves))

	s := ""
	for i := 0; i < multiPV; i++ {
		updated := i <= th.pvIndex
		if depth == OnePly && !updated {
			continue
		}

		d := depth
		v := th.rootMoves[i].Score
		if !updated {
			d = depth - OnePly
			v = th.rootMoves[i].PreviousScore
		}

		if s != "" {
			s += "\n"
		}
		s += fmt.Sprintf("info depth %d seldepth %d multipv %d score %s",
			d, th.maxPly, i+1, FormatValue(v))
		if i == th.pvIndex {
			if v >= beta {
				s += " lowerbound"
			} else if v <= alpha {
				s += " upperbound"
			}
		}
		s += fmt.Sprintf(" nodes %d nps %d time %d pv",
			nodes, nodes*1000/uint64(elapsed), elapsed)
		for _, m := range th.rootMoves[i].PV {
			s += " " + m.USI()
		}
	}
	return s
}

// FormatValue renders a score in USI terms, "cp N" or "mate N".
func FormatValue(v Value) string {
	if v >= ValueMateInMaxPly {
		return fmt.Sprintf("mate %d", int(ValueMate-v))
	}
	if v <= ValueMatedInMaxPly {
		return fmt.Sprintf("mate %d", -int(ValueMate+v))
	}
	return fmt.Sprintf("cp %d", int(v))
}

func containsMove(moves []Move, m Move) bool {
	for _, x := range moves {
		if x == m {
			return true
		}
	}
	return false
}

func cloneRootMoves(rootMoves []RootMove) []RootMove {
	clone := make([]RootMove, len(rootMoves))
	for i := range rootMoves {
		clone[i] = RootMove{
			PV:            append([]Move(nil), rootMoves[i].PV...),
			Score:         rootMoves[i].Score,
			PreviousScore: rootMoves[i].PreviousScore,
		}
	}
	return clone
}
