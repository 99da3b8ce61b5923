// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// book.go reads opening books. Two on-disk layouts are supported: the
// native format, a key-sorted sequence of fixed 16-byte records, and
// the Apery format with its own Zobrist scheme and move encoding.
// A missing or unreadable file simply yields no move.

package engine

import (
	"encoding/binary"
	"math/rand"
	"os"
	"sort"

	"github.com/shogine/shogine/logging"
)

var bookLog = logging.GetLog("book")

// BookSource supplies one opening move for a position, MoveNone when
// out of book.
type BookSource interface {
	Probe(pos *Position) Move
}

// BookEntry is one native book record: Zobrist key, packed move and a
// weight used for the weighted random pick.
type BookEntry struct {
	Key   uint64
	Move  uint32
	Score uint32
}

const bookEntrySize = 16

// Book is the native opening book: records sorted by key, searched by
// bisection.
type Book struct {
	entries []BookEntry
	rng     *rand.Rand
}

// OpenBook loads the book at path into memory.
func OpenBook(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	n := len(data) / bookEntrySize
	entries := make([]BookEntry, n)
	for i := 0; i < n; i++ {
		rec := data[i*bookEntrySize:]
		entries[i] = BookEntry{
			Key:   binary.LittleEndian.Uint64(rec),
			Move:  binary.LittleEndian.Uint32(rec[8:]),
			Score: binary.LittleEndian.Uint32(rec[12:]),
		}
	}
	return &Book{
		entries: entries,
		rng:     rand.New(rand.NewSource(int64(len(entries)) + 1)),
	}, nil
}

// Probe returns a book move for pos, weighted-random by score among
// the stored continuations, and validated against the position.
func (b *Book) Probe(pos *Position) Move {
	key := pos.Key()
	lo := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Key >= key
	})

	total := uint32(0)
	for i := lo; i < len(b.entries) && b.entries[i].Key == key; i++ {
		total += b.entries[i].Score
	}
	if total == 0 {
		return MoveNone
	}

	pick := uint32(b.rng.Int63()) % total
	for i := lo; i < len(b.entries) && b.entries[i].Key == key; i++ {
		if pick < b.entries[i].Score {
			m := Move(b.entries[i].Move)
			if pos.PseudoLegal(m) && pos.Legal(m, pos.PinnedPieces(pos.SideToMove)) {
				return m
			}
			bookLog.Warningf("book move %s not legal here", m.USI())
			return MoveNone
		}
		pick -= b.entries[i].Score
	}
	return MoveNone
}

// Apery book Zobrist tables. The scheme is fixed by the file format
// and independent of the engine's own keys.
var (
	aperyZobPiece [PieceArraySize + 1][BoardSquare]uint64
	aperyZobHand  [8][19]uint64
	aperyZobTurn  uint64
)

func init() {
	r := rand.New(rand.NewSource(106039))
	for pi := 1; pi <= PieceArraySize; pi++ {
		for sq := Square(0); sq < BoardSquare; sq++ {
			aperyZobPiece[pi][sq] = rand64src(r)
		}
	}
	for pt := Pawn; pt <= Gold; pt++ {
		for n := 0; n < 19; n++ {
			aperyZobHand[pt][n] = rand64src(r)
		}
	}
	aperyZobTurn = rand64src(r)
}

func rand64src(r *rand.Rand) uint64 {
	return uint64(r.Int63())<<32 ^ uint64(r.Int63())
}

// AperyBookKey hashes pos with the Apery book scheme.
func AperyBookKey(pos *Position) uint64 {
	key := uint64(0)
	for sq := Square(0); sq < BoardSquare; sq++ {
		if pi := pos.Get(sq); pi != NoPiece {
			key ^= aperyZobPiece[pi][sq]
		}
	}
	for pt := Pawn; pt <= Gold; pt++ {
		key ^= aperyZobHand[pt][pos.Hand(pos.SideToMove).Count(pt)]
	}
	if pos.SideToMove == White {
		key ^= aperyZobTurn
	}
	return key
}

// AperyBookEntry is one record of the Apery layout.
type AperyBookEntry struct {
	Key       uint64
	FromToPro uint16
	Count     uint16
	Score     int32
}

const aperyBookEntrySize = 16

// AperyBook reads the Apery book layout. PickBest selects the
// most-played legal move instead of a weighted pick; entries scoring
// below MinScore are ignored.
type AperyBook struct {
	entries  []AperyBookEntry
	rng      *rand.Rand
	PickBest bool
	MinScore int32
}

// OpenAperyBook loads the Apery-format book at path.
func OpenAperyBook(path string) (*AperyBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	n := len(data) / aperyBookEntrySize
	entries := make([]AperyBookEntry, n)
	for i := 0; i < n; i++ {
		rec := data[i*aperyBookEntrySize:]
		entries[i] = AperyBookEntry{
			Key:       binary.LittleEndian.Uint64(rec),
			FromToPro: binary.LittleEndian.Uint16(rec[8:]),
			Count:     binary.LittleEndian.Uint16(rec[10:]),
			Score:     int32(binary.LittleEndian.Uint32(rec[12:])),
		}
	}
	return &AperyBook{
		entries: entries,
		rng:     rand.New(rand.NewSource(int64(n) + 1)),
	}, nil
}

// decodeAperyMove rebuilds a full move from the 16-bit from/to/promote
// encoding; drops carry the piece type in the source field above 81.
func decodeAperyMove(pos *Position, fromToPro uint16) Move {
	to := Square(fromToPro & 0x7f)
	from := Square(fromToPro >> 7 & 0x7f)
	promote := fromToPro&(1<<14) != 0

	if from >= BoardSquare {
		return MakeDrop(PieceType(from-BoardSquare+1), to)
	}
	pi := pos.Get(from)
	if pi == NoPiece || pi.Color() != pos.SideToMove {
		return MoveNone
	}
	return MakeMove(from, to, pi.Type(), pos.PieceTypeAt(to), promote)
}

// Probe returns a book move for pos per the configured policy.
func (b *AperyBook) Probe(pos *Position) Move {
	key := AperyBookKey(pos)
	lo := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Key >= key
	})

	var candidates []AperyBookEntry
	for i := lo; i < len(b.entries) && b.entries[i].Key == key; i++ {
		if b.entries[i].Score >= b.MinScore {
			candidates = append(candidates, b.entries[i])
		}
	}
	if len(candidates) == 0 {
		return MoveNone
	}

	pick := func(e AperyBookEntry) Move {
		m := decodeAperyMove(pos, e.FromToPro)
		if m != MoveNone && pos.PseudoLegal(m) && pos.Legal(m, pos.PinnedPieces(pos.SideToMove)) {
			return m
		}
		return MoveNone
	}

	if b.PickBest {
		best, bestCount := MoveNone, uint16(0)
		for _, e := range candidates {
			if m := pick(e); m != MoveNone && (best == MoveNone || e.Count > bestCount) {
				best, bestCount = m, e.Count
			}
		}
		return best
	}

	total := uint32(0)
	for _, e := range candidates {
		total += uint32(e.Count)
	}
	if total == 0 {
		return pick(candidates[0])
	}
	n := uint32(b.rng.Int63()) % total
	for _, e := range candidates {
		if n < uint32(e.Count) {
			return pick(e)
		}
		n -= uint32(e.Count)
	}
	return MoveNone
}
