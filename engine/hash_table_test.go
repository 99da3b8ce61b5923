// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTTProbeStoreIdempotent(t *testing.T) {
	tt := NewTranspositionTable(1)
	r := rand.New(rand.NewSource(5))

	for i := 0; i < 1000; i++ {
		key := uint64(r.Int63())<<32 ^ uint64(r.Int63())
		move := MakeMove(Square(r.Intn(81)), Square(r.Intn(81)), Pawn, NoPieceType, false)
		value := Value(r.Intn(2000) - 1000)
		eval := Value(r.Intn(2000) - 1000)
		depth := Depth(r.Intn(60))
		bound := Bound(1 + r.Intn(3))

		e, _ := tt.Probe(key)
		e.Save(key, value, bound, depth, move, eval, tt.Generation())

		e2, found := tt.Probe(key)
		require.True(t, found, "entry lost immediately after store")
		require.Equal(t, move, e2.Move())
		require.Equal(t, value, e2.Value())
		require.Equal(t, eval, e2.EvalValue())
		require.Equal(t, int(depth), e2.Depth())
		require.Equal(t, bound, e2.Bound())
	}
}

func TestTTDeeperEntrySurvives(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0xdeadbeef12345678)

	e, _ := tt.Probe(key)
	e.Save(key, 100, BoundExact, 20, MoveNull, 0, tt.Generation())

	// A much shallower store for the same key must not clobber the
	// depth-20 data, but a fresh exact bound always may.
	e2, found := tt.Probe(key)
	require.True(t, found)
	e2.Save(key, 50, BoundUpper, 2, MoveNull, 0, tt.Generation())
	require.Equal(t, 20, e2.Depth())
	require.Equal(t, Value(100), e2.Value())
}

func TestTTResizePowerOfTwo(t *testing.T) {
	for _, mb := range []int{1, 3, 7, 64, 100} {
		tt := NewTranspositionTable(mb)
		n := len(tt.table)
		require.Zero(t, n&(n-1), "cluster count %d not a power of two", n)
	}
}

func TestTTClear(t *testing.T) {
	tt := NewTranspositionTable(1)
	key := uint64(0x1122334455667788)
	e, _ := tt.Probe(key)
	e.Save(key, 1, BoundExact, 1, MoveNull, 0, tt.Generation())
	tt.Clear()
	_, found := tt.Probe(key)
	require.False(t, found)
}

func TestTTGenerationReplacement(t *testing.T) {
	tt := NewTranspositionTable(1)

	// Fill one cluster with old-generation entries.
	base := uint64(0x42) // cluster index bits
	var keys []uint64
	for i := 0; i < ttClusterSize; i++ {
		key := base | uint64(i+1)<<32
		keys = append(keys, key)
		e, _ := tt.Probe(key)
		e.Save(key, Value(i), BoundExact, 10, MoveNull, 0, tt.Generation())
	}

	tt.NewSearch()

	// A new store in the full cluster evicts one of the aged entries.
	newKey := base | uint64(99)<<32
	e, found := tt.Probe(newKey)
	require.False(t, found)
	e.Save(newKey, 7, BoundExact, 5, MoveNull, 0, tt.Generation())
	_, found = tt.Probe(newKey)
	require.True(t, found)
}

func TestValueToTTRoundTrip(t *testing.T) {
	for _, ply := range []int{0, 1, 5, 60} {
		for _, v := range []Value{0, 500, -500, MateIn(ply + 3), MatedIn(ply + 3)} {
			stored := valueToTT(v, ply)
			require.Equal(t, v, valueFromTT(stored, ply), "v=%d ply=%d", v, ply)
		}
	}
}
