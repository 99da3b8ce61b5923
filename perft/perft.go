// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package perft implements the performance test which counts the legal
// move paths of given depth from a position. Used to verify the move
// generator against reference counts.
package perft

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/shogine/shogine/engine"
)

// Perft returns the number of leaf nodes at exactly depth plies.
func Perft(pos *engine.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := engine.LegalMoves(pos)
	if depth == 1 {
		return uint64(len(moves))
	}

	var nodes uint64
	for _, m := range moves {
		pos.DoMove(m)
		nodes += Perft(pos, depth-1)
		pos.UndoMove(m)
	}
	return nodes
}

// ParallelPerft splits the root moves over goroutines.
func ParallelPerft(pos *engine.Position, depth int) uint64 {
	if depth <= 1 {
		return Perft(pos, depth)
	}

	var nodes atomic.Uint64
	var g errgroup.Group
	for _, m := range engine.LegalMoves(pos) {
		m := m
		child := pos.Clone(nil)
		g.Go(func() error {
			child.DoMove(m)
			nodes.Add(Perft(child, depth-1))
			return nil
		})
	}
	g.Wait()
	return nodes.Load()
}
