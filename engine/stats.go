// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// stats.go holds the tables that remember how moves performed: plain
// history, countermoves, countermove history and from-to history. All
// are per thread; updates decay by the entry's own magnitude so the
// values stay bounded.

package engine

// HistoryStats records move quality by (piece, destination).
type HistoryStats [PieceArraySize][BoardSquare]int32

// Get returns the history score of piece pi moving to to.
func (h *HistoryStats) Get(pi Piece, to Square) int32 {
	return h[pi][to]
}

// Update applies a signed bonus with the standard decay.
func (h *HistoryStats) Update(pi Piece, to Square, v int32) {
	if abs32(v) >= 324 {
		return
	}
	h[pi][to] -= h[pi][to] * abs32(v) / 324
	h[pi][to] += v * 32
}

// Clear zeroes the table.
func (h *HistoryStats) Clear() {
	*h = HistoryStats{}
}

// CounterMoveStats is a history slice keyed by the previous move's
// (piece, destination).
type CounterMoveStats [PieceArraySize][BoardSquare]int32

// Get returns the score of pi moving to to.
func (h *CounterMoveStats) Get(pi Piece, to Square) int32 {
	return h[pi][to]
}

// Update applies a signed bonus; countermove history decays slower.
func (h *CounterMoveStats) Update(pi Piece, to Square, v int32) {
	if abs32(v) >= 324 {
		return
	}
	h[pi][to] -= h[pi][to] * abs32(v) / 936
	h[pi][to] += v * 32
}

// Clear zeroes the table.
func (h *CounterMoveStats) Clear() {
	*h = CounterMoveStats{}
}

// CounterMoveHistoryStats is the two-level table: one CounterMoveStats
// per previous (piece, destination).
type CounterMoveHistoryStats [PieceArraySize][BoardSquare]CounterMoveStats

// Get returns the slice for the previous move (pi, to).
func (h *CounterMoveHistoryStats) Get(pi Piece, to Square) *CounterMoveStats {
	return &h[pi][to]
}

// Clear zeroes every slice.
func (h *CounterMoveHistoryStats) Clear() {
	*h = CounterMoveHistoryStats{}
}

// MovesStats stores the best reply per previous (piece, destination).
type MovesStats [PieceArraySize][BoardSquare]Move

// Get returns the stored countermove.
func (h *MovesStats) Get(pi Piece, to Square) Move {
	return h[pi][to]
}

// Update stores m as the reply to (pi, to).
func (h *MovesStats) Update(pi Piece, to Square, m Move) {
	h[pi][to] = m
}

// Clear zeroes the table.
func (h *MovesStats) Clear() {
	*h = MovesStats{}
}

// FromToStats records move quality by (color, source, destination).
// Drop sources index beyond the board squares.
type FromToStats [ColorArraySize][SquareHand][BoardSquare]int32

// Get returns the from-to score of m for color c.
func (f *FromToStats) Get(c Color, m Move) int32 {
	return f[c][m.From()][m.To()]
}

// Update applies a signed bonus with the standard decay.
func (f *FromToStats) Update(c Color, m Move, v int32) {
	if abs32(v) >= 324 {
		return
	}
	from, to := m.From(), m.To()
	f[c][from][to] -= f[c][from][to] * abs32(v) / 324
	f[c][from][to] += v * 32
}

// Clear zeroes the table.
func (f *FromToStats) Clear() {
	*f = FromToStats{}
}

// CapturePieceToHistory records capture quality by (moving piece,
// destination, captured type).
type CapturePieceToHistory [PieceArraySize][BoardSquare][PieceTypeArraySize]int32

// Get returns the capture-history score.
func (h *CapturePieceToHistory) Get(pi Piece, to Square, captured PieceType) int32 {
	return h[pi][to][captured]
}

// Update applies a signed bonus with the standard decay.
func (h *CapturePieceToHistory) Update(pi Piece, to Square, captured PieceType, v int32) {
	if abs32(v) >= 324 {
		return
	}
	h[pi][to][captured] -= h[pi][to][captured] * abs32(v) / 324
	h[pi][to][captured] += v * 32
}

// Clear zeroes the table.
func (h *CapturePieceToHistory) Clear() {
	*h = CapturePieceToHistory{}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
