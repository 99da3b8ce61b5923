// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// hash_table.go implements the shared transposition table: clusters of
// four 16-byte entries, probed by the high half of the Zobrist key.
// Entries are read and written without locks; a torn entry at worst
// fails the key match or yields a move the caller re-validates with
// PseudoLegal.

package engine

// DefaultHashTableSizeMB is the default size in MiB.
const DefaultHashTableSizeMB = 256

const ttClusterSize = 4

// TTEntry is one transposition table slot.
type TTEntry struct {
	key32    uint32
	move32   uint32
	value16  int16
	eval16   int16
	genBound uint8 // 6-bit generation | 2-bit bound
	depth8   int8
}

// Move returns the stored move.
func (e *TTEntry) Move() Move {
	return Move(e.move32)
}

// Value returns the stored search value, still ply-shifted.
func (e *TTEntry) Value() Value {
	return Value(e.value16)
}

// EvalValue returns the stored static evaluation.
func (e *TTEntry) EvalValue() Value {
	return Value(e.eval16)
}

// Depth returns the stored depth in plies.
func (e *TTEntry) Depth() int {
	return int(e.depth8)
}

// Bound returns the stored bound type.
func (e *TTEntry) Bound() Bound {
	return Bound(e.genBound & 0x3)
}

func (e *TTEntry) generation() uint8 {
	return e.genBound & 0xfc
}

// Save overwrites the entry. The stored move is kept only when m is
// MoveNone and the position is the same; the rest is replaced only for
// a different position, a depth within a small slack of the stored one,
// or an exact bound.
func (e *TTEntry) Save(key uint64, v Value, b Bound, d Depth, m Move, ev Value, generation uint8) {
	if m != MoveNone || uint32(key>>32) != e.key32 {
		e.move32 = uint32(m)
	}
	if uint32(key>>32) != e.key32 || int(d) > int(e.depth8)-4 || b == BoundExact {
		e.key32 = uint32(key >> 32)
		e.value16 = int16(v)
		e.eval16 = int16(ev)
		e.genBound = generation | uint8(b)
		e.depth8 = int8(d)
	}
}

type ttCluster struct {
	entry [ttClusterSize]TTEntry
}

// TranspositionTable is the shared, lock-free position cache.
type TranspositionTable struct {
	table      []ttCluster
	generation uint8
}

// NewTranspositionTable builds a table of at most sizeMB megabytes,
// rounded down to a power-of-two cluster count.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	tt := &TranspositionTable{}
	tt.Resize(sizeMB)
	return tt
}

// Resize reallocates the table. All entries are lost.
func (tt *TranspositionTable) Resize(sizeMB int) {
	clusterCount := uint64(sizeMB) << 20 / 64
	for clusterCount&(clusterCount-1) != 0 {
		clusterCount &= clusterCount - 1
	}
	if clusterCount == 0 {
		clusterCount = 1
	}
	tt.table = make([]ttCluster, clusterCount)
}

// Clear zeroes the table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.table {
		tt.table[i] = ttCluster{}
	}
}

// NewSearch ages every existing entry by bumping the generation. Must
// only be called while all workers are idle.
func (tt *TranspositionTable) NewSearch() {
	tt.generation += 8 // the low 3 bits hold the bound and a spare
}

// Generation returns the current generation tag.
func (tt *TranspositionTable) Generation() uint8 {
	return tt.generation
}

// Probe looks up key. On a hit the entry is refreshed to the current
// generation. On a miss the returned entry is the cluster's replacement
// victim, picked by depth minus aged generation.
func (tt *TranspositionTable) Probe(key uint64) (*TTEntry, bool) {
	cluster := &tt.table[key&uint64(len(tt.table)-1)]
	key32 := uint32(key >> 32)

	for i := range cluster.entry {
		e := &cluster.entry[i]
		if e.key32 == 0 {
			return e, false
		}
		if e.key32 == key32 {
			e.genBound = tt.generation | uint8(e.Bound()) // refresh age
			return e, true
		}
	}

	replace := &cluster.entry[0]
	for i := 1; i < ttClusterSize; i++ {
		e := &cluster.entry[i]
		// Prefer shallower entries from older generations.
		if int(e.depth8)-relativeAge(tt.generation, e.generation()) <
			int(replace.depth8)-relativeAge(tt.generation, replace.generation()) {
			replace = e
		}
	}
	return replace, false
}

// relativeAge weighs how stale an entry's generation is.
func relativeAge(current, entry uint8) int {
	return int((current-entry)&0xfc) * 2
}

// Hashfull estimates the table usage in permill.
func (tt *TranspositionTable) Hashfull() int {
	count := 0
	probe := min(len(tt.table), 250)
	for i := 0; i < probe; i++ {
		for j := range tt.table[i].entry {
			e := &tt.table[i].entry[j]
			if e.generation() == tt.generation && e.Bound() != BoundNone {
				count++
			}
		}
	}
	return count * 1000 / (probe * ttClusterSize)
}
