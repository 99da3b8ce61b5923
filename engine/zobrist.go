// zobrist.go contains the random keys used for position hashing.
//
// More information on Zobrist hashing can be found in the paper:
// http://research.cs.wisc.edu/techreports/1970/TR88.pdf

package engine

import (
	"math/rand"
)

var (
	// zobristPiece is keyed by (color, piece type, square). The low bit
	// of every key, and of the singular-search exclusion constant, is
	// cleared: it is reserved for the side-to-move marker.
	zobristPiece [ColorArraySize][PieceTypeArraySize][BoardSquare]uint64
	// zobristHand is keyed by (color, base piece type); a count of n
	// adds the key n times.
	zobristHand [ColorArraySize][8]uint64

	zobristSide      uint64 = 1
	zobristExclusion uint64
)

func rand64(r *rand.Rand) uint64 {
	return uint64(r.Int63())<<32 ^ uint64(r.Int63())
}

func init() {
	r := rand.New(rand.NewSource(1))
	zobristExclusion = rand64(r) &^ 1
	for c := Black; c <= White; c++ {
		for pt := 0; pt < PieceTypeArraySize; pt++ {
			for sq := Square(0); sq < BoardSquare; sq++ {
				zobristPiece[c][pt][sq] = rand64(r) &^ 1
			}
		}
	}
	for c := Black; c <= White; c++ {
		for pt := Pawn; pt <= Gold; pt++ {
			zobristHand[c][pt] = rand64(r) &^ 1
		}
	}
}
