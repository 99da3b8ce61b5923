// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// SfenStartPos is the shogi starting position.
var SfenStartPos = "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1"

// Repetition classifies the outcome of a repeated position.
type Repetition int32

const (
	NoRepetition Repetition = iota
	RepetitionDraw
	// The side to move just broke out of the opponent's perpetual check.
	PerpetualCheckWin
	PerpetualCheckLose
	// Same board, black's hand strictly dominates the earlier one.
	BlackWinRepetition
	BlackLoseRepetition
)

// CheckInfo caches, for the side to move, which destination squares give
// check and which own pieces may uncover one.
type CheckInfo struct {
	DiscoverCheckCandidates BitBoard
	Pinned                  BitBoard
	CheckSquares            [PieceTypeArraySize]BitBoard
}

// NewCheckInfo computes the check info of pos.
func NewCheckInfo(pos *Position) *CheckInfo {
	ci := &CheckInfo{}
	enemy := pos.SideToMove.Opposite()
	king := pos.KingSquare(enemy)
	occupied := pos.Occupied()

	ci.Pinned = pos.PinnedPieces(pos.SideToMove)
	ci.DiscoverCheckCandidates = pos.DiscoveredCheckCandidates()

	ci.CheckSquares[Pawn] = pawnAttacksTable[enemy][king]
	ci.CheckSquares[Lance] = lanceAttack(occupied, enemy, king)
	ci.CheckSquares[Knight] = knightAttacksTable[enemy][king]
	ci.CheckSquares[Silver] = silverAttacksTable[enemy][king]
	ci.CheckSquares[Bishop] = bishopAttack(occupied, king)
	ci.CheckSquares[Rook] = rookAttack(occupied, king)
	ci.CheckSquares[Gold] = goldAttacksTable[enemy][king]
	ci.CheckSquares[King] = BbEmpty
	ci.CheckSquares[PromotedPawn] = ci.CheckSquares[Gold]
	ci.CheckSquares[PromotedLance] = ci.CheckSquares[Gold]
	ci.CheckSquares[PromotedKnight] = ci.CheckSquares[Gold]
	ci.CheckSquares[PromotedSilver] = ci.CheckSquares[Gold]
	ci.CheckSquares[Horse] = ci.CheckSquares[Bishop].Or(kingAttacksTable[king])
	ci.CheckSquares[Dragon] = ci.CheckSquares[Rook].Or(kingAttacksTable[king])
	return ci
}

// StateInfo is the per-ply undo record plus the incrementally maintained
// state: keys, material, check counters and the evaluation feature lists.
type StateInfo struct {
	Material         Value
	PliesFromNull    int
	ContinuousChecks [ColorArraySize]int

	// Reverse index: square or hand slot -> position in the KPP lists.
	kppListIndex [SquareHand]uint8
	BlackKPPList [EvalListSize]KPPIndex
	WhiteKPPList [EvalListSize]KPPIndex
	// List entries rewritten by the last move, for the evaluator.
	ListIndexMove    uint8
	ListIndexCapture uint8

	BoardKey  uint64
	HandKey   uint64
	HandBlack Hand
	Checkers  BitBoard
}

// Position encodes the shogi board, both hands and the state stack.
type Position struct {
	pieceBoard [ColorArraySize][PieceTypeArraySize]BitBoard
	hand       [ColorArraySize]Hand
	squares    [BoardSquare]Piece
	kingSquare [ColorArraySize]Square

	SideToMove Color
	GamePly    int

	// One StateInfo per ply, addressed by index. stateIdx points at the
	// current ply; UndoMove steps back one slot.
	states   []StateInfo
	stateIdx int

	nodes  uint64
	thread *Thread
}

// NewPosition returns an empty position.
func NewPosition() *Position {
	pos := &Position{
		states: make([]StateInfo, 1, MaxPly+16),
	}
	return pos
}

// PositionFromSfen parses an SFEN string.
func PositionFromSfen(sfen string) (*Position, error) {
	pos := NewPosition()
	if err := pos.SetSfen(sfen, nil); err != nil {
		return nil, err
	}
	return pos, nil
}

var sfenPieceLetters = map[byte]Piece{
	'K': ColorPiece(Black, King), 'k': ColorPiece(White, King),
	'G': ColorPiece(Black, Gold), 'g': ColorPiece(White, Gold),
	'S': ColorPiece(Black, Silver), 's': ColorPiece(White, Silver),
	'N': ColorPiece(Black, Knight), 'n': ColorPiece(White, Knight),
	'L': ColorPiece(Black, Lance), 'l': ColorPiece(White, Lance),
	'P': ColorPiece(Black, Pawn), 'p': ColorPiece(White, Pawn),
	'R': ColorPiece(Black, Rook), 'r': ColorPiece(White, Rook),
	'B': ColorPiece(Black, Bishop), 'b': ColorPiece(White, Bishop),
}

// SetSfen resets the position from an SFEN description and assigns the
// owning thread. The resulting position should be checked with Validate.
func (pos *Position) SetSfen(sfen string, t *Thread) error {
	fields := strings.Fields(sfen)
	if len(fields) < 3 {
		return fmt.Errorf("sfen has too few fields")
	}

	pos.clear()
	pos.thread = t
	st := pos.st()

	// Board.
	sq := 0
	promote := false
	for i := 0; i < len(fields[0]); i++ {
		tok := fields[0][i]
		switch {
		case tok == '+':
			promote = true
		case tok == '/':
			// next rank
		case '1' <= tok && tok <= '9':
			sq += int(tok - '0')
		default:
			pi, ok := sfenPieceLetters[tok]
			if !ok {
				return fmt.Errorf("sfen has unknown piece %q", tok)
			}
			if sq >= int(BoardSquare) {
				return fmt.Errorf("sfen board overflows")
			}
			if promote {
				pi += Piece(Promoted)
				promote = false
			}
			pos.putPiece(pi, Square(sq))
			sq++
		}
	}

	// Side to move.
	switch fields[1] {
	case "b":
		pos.SideToMove = Black
	case "w":
		pos.SideToMove = White
		st.BoardKey += zobristSide
	default:
		return fmt.Errorf("sfen has bad side to move %q", fields[1])
	}

	// Hands.
	if fields[2] != "-" {
		num := 1
		pending := false
		for i := 0; i < len(fields[2]); i++ {
			tok := fields[2][i]
			if '0' <= tok && tok <= '9' {
				if pending {
					num = num*10 + int(tok-'0')
				} else {
					num = int(tok - '0')
				}
				pending = true
				continue
			}
			pi, ok := sfenPieceLetters[tok]
			if !ok {
				return fmt.Errorf("sfen has unknown hand piece %q", tok)
			}
			c, pt := pi.Color(), pi.Type()
			for j := 0; j < num; j++ {
				pos.hand[c] = pos.hand[c].Add(pt)
				st.HandKey += zobristHand[c][pt]
			}
			num = 1
			pending = false
		}
	}

	if len(fields) > 3 {
		if ply, err := strconv.Atoi(fields[3]); err == nil {
			pos.GamePly = ply
		}
	}

	st.HandBlack = pos.hand[Black]
	st.Material = pos.computeMaterial()
	st.Checkers = pos.AttacksTo(pos.kingSquare[pos.SideToMove], pos.SideToMove.Opposite(), pos.Occupied())
	if st.Checkers.Test() {
		st.ContinuousChecks[pos.SideToMove.Opposite()] = 1
	}

	pos.buildEvalLists()
	return nil
}

// String returns the position in SFEN format.
func (pos *Position) String() string {
	var sb strings.Builder
	for r := 0; r < 9; r++ {
		empty := 0
		for c := 0; c < 9; c++ {
			pi := pos.squares[r*9+c]
			if pi == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteString(pieceSfen(pi))
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if r != 8 {
			sb.WriteByte('/')
		}
	}
	if pos.SideToMove == Black {
		sb.WriteString(" b ")
	} else {
		sb.WriteString(" w ")
	}
	hands := ""
	for _, c := range []Color{Black, White} {
		for _, pt := range []PieceType{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn} {
			n := pos.hand[c].Count(pt)
			if n == 0 {
				continue
			}
			if n > 1 {
				hands += strconv.Itoa(n)
			}
			hands += pieceSfen(ColorPiece(c, pt))
		}
	}
	if hands == "" {
		hands = "-"
	}
	sb.WriteString(hands)
	sb.WriteString(" " + strconv.Itoa(pos.GamePly))
	return sb.String()
}

func pieceSfen(pi Piece) string {
	letters := " PLNSBRGK"
	pt := pi.Type()
	s := ""
	if pt >= PromotedPawn {
		s = "+"
		pt = pt.Demoted()
	}
	l := letters[pt]
	if pi.Color() == White {
		l += 'a' - 'A'
	}
	return s + string(l)
}

func (pos *Position) clear() {
	*pos = Position{
		states: pos.states[:1],
	}
	pos.states[0] = StateInfo{}
	pos.stateIdx = 0
}

// st returns the current StateInfo.
func (pos *Position) st() *StateInfo {
	return &pos.states[pos.stateIdx]
}

// prevSt returns the StateInfo n plies back.
func (pos *Position) prevSt(n int) *StateInfo {
	return &pos.states[pos.stateIdx-n]
}

// pushState adds one ply, seeded with a copy of the current state.
func (pos *Position) pushState() {
	if pos.stateIdx+1 < len(pos.states) {
		pos.states[pos.stateIdx+1] = pos.states[pos.stateIdx]
	} else {
		pos.states = append(pos.states, pos.states[pos.stateIdx])
	}
	pos.stateIdx++
}

func (pos *Position) popState() {
	pos.stateIdx--
}

func (pos *Position) putPiece(pi Piece, sq Square) {
	c, pt := pi.Color(), pi.Type()
	pos.squares[sq] = pi
	pos.pieceBoard[c][Occupied].XorBit(sq)
	pos.pieceBoard[c][pt].XorBit(sq)
	pos.st().BoardKey += zobristPiece[c][pt][sq]
	if pt == King {
		pos.kingSquare[c] = sq
	}
}

// Pieces returns the bitboard of color's pieces of the given type.
func (pos *Position) Pieces(pt PieceType, c Color) BitBoard {
	return pos.pieceBoard[c][pt]
}

// Occupied returns the joint occupancy.
func (pos *Position) Occupied() BitBoard {
	return pos.pieceBoard[Black][Occupied].Or(pos.pieceBoard[White][Occupied])
}

// Get returns the piece at sq.
func (pos *Position) Get(sq Square) Piece {
	return pos.squares[sq]
}

// PieceTypeAt returns the piece type at sq.
func (pos *Position) PieceTypeAt(sq Square) PieceType {
	return pos.squares[sq].Type()
}

// KingSquare returns color's king square.
func (pos *Position) KingSquare(c Color) Square {
	return pos.kingSquare[c]
}

// Hand returns color's hand.
func (pos *Position) Hand(c Color) Hand {
	return pos.hand[c]
}

// Nodes returns the number of moves made on this position.
func (pos *Position) Nodes() uint64 {
	return pos.nodes
}

// ResetNodes zeroes the node counter.
func (pos *Position) ResetNodes() {
	pos.nodes = 0
}

// Thread returns the owning search thread, nil outside a search.
func (pos *Position) Thread() *Thread {
	return pos.thread
}

// RookDragon returns color's rooks and dragons.
func (pos *Position) RookDragon(c Color) BitBoard {
	return pos.pieceBoard[c][Rook].Or(pos.pieceBoard[c][Dragon])
}

// BishopHorse returns color's bishops and horses.
func (pos *Position) BishopHorse(c Color) BitBoard {
	return pos.pieceBoard[c][Bishop].Or(pos.pieceBoard[c][Horse])
}

// TotalGold returns color's golds and gold-moving promoted pieces.
func (pos *Position) TotalGold(c Color) BitBoard {
	b := pos.pieceBoard[c][Gold]
	b = b.Or(pos.pieceBoard[c][PromotedPawn])
	b = b.Or(pos.pieceBoard[c][PromotedLance])
	b = b.Or(pos.pieceBoard[c][PromotedKnight])
	b = b.Or(pos.pieceBoard[c][PromotedSilver])
	return b
}

// HorseDragonKing returns color's horses, dragons and king.
func (pos *Position) HorseDragonKing(c Color) BitBoard {
	return pos.pieceBoard[c][Horse].Or(pos.pieceBoard[c][Dragon]).Or(pos.pieceBoard[c][King])
}

// AttacksTo enumerates color's pieces attacking sq on occupied.
func (pos *Position) AttacksTo(sq Square, c Color, occupied BitBoard) BitBoard {
	enemy := c.Opposite()
	bb := pos.pieceBoard[c][Pawn].And(pawnAttacksTable[enemy][sq])
	bb.AndOr(pos.pieceBoard[c][Lance], lanceAttack(occupied, enemy, sq))
	bb.AndOr(pos.pieceBoard[c][Knight], knightAttacksTable[enemy][sq])
	bb.AndOr(pos.pieceBoard[c][Silver], silverAttacksTable[enemy][sq])
	bb.AndOr(pos.TotalGold(c), goldAttacksTable[enemy][sq])
	bb.AndOr(pos.HorseDragonKing(c), kingAttacksTable[sq])
	bb.AndOr(pos.BishopHorse(c), bishopAttack(occupied, sq))
	bb.AndOr(pos.RookDragon(c), rookAttack(occupied, sq))
	return bb
}

// IsAttacked returns true if the enemy of color attacks sq on occupied.
func (pos *Position) IsAttacked(sq Square, c Color, occupied BitBoard) bool {
	return pos.AttacksTo(sq, c.Opposite(), occupied).Test()
}

// InCheck returns true if the side to move is in check.
func (pos *Position) InCheck() bool {
	return pos.st().Checkers.Test()
}

// Checkers returns the pieces giving check.
func (pos *Position) Checkers() BitBoard {
	return pos.st().Checkers
}

// Key returns the position's Zobrist key, board and hand combined.
func (pos *Position) Key() uint64 {
	return pos.st().BoardKey + pos.st().HandKey
}

// ExclusionKey is a distinct key probed during singular-extension search.
func (pos *Position) ExclusionKey() uint64 {
	return pos.Key() ^ zobristExclusion
}

// Material returns the incrementally maintained material balance,
// positive for black.
func (pos *Position) Material() Value {
	return pos.st().Material
}

// ContinuousChecks returns how many consecutive checks c has given.
func (pos *Position) ContinuousChecks(c Color) int {
	return pos.st().ContinuousChecks[c]
}

// checkBlockers returns c's pieces that alone block a slider line to
// kingColor's king.
func (pos *Position) checkBlockers(c, kingColor Color, occupied BitBoard) BitBoard {
	var result BitBoard
	king := pos.kingSquare[kingColor]
	enemy := kingColor.Opposite()

	pinners := pos.pieceBoard[enemy][Lance].And(lanceAttacksTable[kingColor][king][0])
	pinners.AndOr(pos.RookDragon(enemy), rookAttacksTable[king][0])
	pinners.AndOr(pos.BishopHorse(enemy), bishopAttacksTable[king][0])

	for pinners.Test() {
		sq := pinners.PopBit()
		b := betweenTable[king][sq].And(occupied)
		if b.Popcount() == 1 {
			result = result.Or(b.And(pos.pieceBoard[c][Occupied]))
		}
	}
	return result
}

// PinnedPieces returns c's pieces pinned to the own king.
func (pos *Position) PinnedPieces(c Color) BitBoard {
	return pos.checkBlockers(c, c, pos.Occupied())
}

// PinnedPiecesOn is PinnedPieces on an explicit occupancy.
func (pos *Position) PinnedPiecesOn(c Color, occupied BitBoard) BitBoard {
	return pos.checkBlockers(c, c, occupied)
}

// DiscoveredCheckCandidates returns the mover's pieces whose departure
// may uncover a check.
func (pos *Position) DiscoveredCheckCandidates() BitBoard {
	return pos.checkBlockers(pos.SideToMove, pos.SideToMove.Opposite(), pos.Occupied())
}

// IsKingDiscover returns true if moving color's piece from from to to
// uncovers the own king.
func (pos *Position) IsKingDiscover(from, to Square, c Color, pinned BitBoard) bool {
	return pinned.Contract(maskTable[from]) && !aligned(from, to, pos.kingSquare[c])
}

// DoMove makes m computing the check hint itself.
func (pos *Position) DoMove(m Move) {
	pos.DoMoveWithCheck(m, pos.GivesCheck(m, NewCheckInfo(pos)))
}

// DoMoveWithCheck makes m. givesCheck must be GivesCheck(m).
// Exactly one StateInfo is pushed; UndoMove restores everything.
func (pos *Position) DoMoveWithCheck(m Move, givesCheck bool) {
	pos.nodes++
	pos.GamePly++

	boardKey := pos.st().BoardKey
	handKey := pos.st().HandKey
	from, to := m.From(), m.To()

	pos.pushState()
	st := pos.st()
	st.PliesFromNull++

	us := pos.SideToMove
	boardKey ^= zobristSide

	if from >= BoardSquare {
		drop := m.DropPieceType()
		pos.pieceBoard[us][drop].XorBit(to)
		pos.squares[to] = ColorPiece(us, drop)
		pos.pieceBoard[us][Occupied].XorBit(to)
		pos.hand[us] = pos.hand[us].Sub(drop)
		handKey -= zobristHand[us][drop]
		boardKey += zobristPiece[us][drop][to]

		handNum := pos.hand[us].Count(drop) + 1
		listIndex := st.kppListIndex[pieceTypeToSquareHandTable[us][drop]+Square(handNum)]
		st.BlackKPPList[listIndex] = pieceToIndexBlackTable[pos.squares[to]] + KPPIndex(to)
		st.WhiteKPPList[listIndex] = pieceToIndexWhiteTable[pos.squares[to]] + KPPIndex(to.Inverse())
		st.kppListIndex[to] = listIndex
		st.ListIndexMove = listIndex
	} else {
		pieceMove := m.PieceType()
		setClear := maskTable[from].Or(maskTable[to])
		pos.pieceBoard[us][Occupied] = pos.pieceBoard[us][Occupied].Xor(setClear)
		pos.squares[from] = NoPiece
		if m.IsPromotion() {
			pos.pieceBoard[us][pieceMove].XorBit(from)
			pos.pieceBoard[us][pieceMove+Promoted].XorBit(to)
			pos.squares[to] = ColorPiece(us, pieceMove+Promoted)
			boardKey -= zobristPiece[us][pieceMove][from]
			boardKey += zobristPiece[us][pieceMove+Promoted][to]
			if us == Black {
				st.Material += promotePieceValueTable[pieceMove]
			} else {
				st.Material -= promotePieceValueTable[pieceMove]
			}
		} else {
			pos.pieceBoard[us][pieceMove] = pos.pieceBoard[us][pieceMove].Xor(setClear)
			pos.squares[to] = ColorPiece(us, pieceMove)
			boardKey -= zobristPiece[us][pieceMove][from]
			boardKey += zobristPiece[us][pieceMove][to]
			if pieceMove == King {
				pos.kingSquare[us] = to
			}
		}

		if capture := m.Capture(); capture != NoPieceType {
			enemy := us.Opposite()
			pos.pieceBoard[enemy][capture].XorBit(to)
			pos.hand[us] = pos.hand[us].Add(capture)
			pos.pieceBoard[enemy][Occupied].XorBit(to)
			boardKey -= zobristPiece[enemy][capture][to]
			handKey += zobristHand[us][capture.Demoted()]
			if us == Black {
				st.Material += exchangePieceValueTable[capture]
			} else {
				st.Material -= exchangePieceValueTable[capture]
			}

			capturedIndex := st.kppListIndex[to]
			handNum := pos.hand[us].Count(capture)
			st.BlackKPPList[capturedIndex] = pieceTypeToBlackHandIndexTable[us][capture] + KPPIndex(handNum)
			st.WhiteKPPList[capturedIndex] = pieceTypeToWhiteHandIndexTable[us][capture] + KPPIndex(handNum)
			st.kppListIndex[pieceTypeToSquareHandTable[us][capture]+Square(handNum)] = capturedIndex
			st.ListIndexCapture = capturedIndex
		}

		if pieceMove != King {
			kppIndex := st.kppListIndex[from]
			st.kppListIndex[to] = kppIndex
			st.BlackKPPList[kppIndex] = pieceToIndexBlackTable[pos.squares[to]] + KPPIndex(to)
			st.WhiteKPPList[kppIndex] = pieceToIndexWhiteTable[pos.squares[to]] + KPPIndex(to.Inverse())
			st.ListIndexMove = kppIndex
		}
	}

	st.BoardKey = boardKey
	st.HandKey = handKey
	st.HandBlack = pos.hand[Black]
	pos.SideToMove = pos.SideToMove.Opposite()
	if givesCheck {
		st.ContinuousChecks[us]++
		st.Checkers = pos.AttacksTo(pos.kingSquare[pos.SideToMove], us, pos.Occupied())
	} else {
		st.ContinuousChecks[us] = 0
		st.Checkers = BbEmpty
	}
}

// UndoMove takes back m, the last move made.
func (pos *Position) UndoMove(m Move) {
	pos.SideToMove = pos.SideToMove.Opposite()
	pos.GamePly--

	from, to := m.From(), m.To()
	us := pos.SideToMove
	if from >= BoardSquare {
		drop := m.DropPieceType()
		pos.pieceBoard[us][drop].XorBit(to)
		pos.hand[us] = pos.hand[us].Add(drop)
		pos.squares[to] = NoPiece
		pos.pieceBoard[us][Occupied].XorBit(to)
	} else {
		pieceMove := m.PieceType()
		setClear := maskTable[from].Or(maskTable[to])
		pos.pieceBoard[us][Occupied] = pos.pieceBoard[us][Occupied].Xor(setClear)
		if m.IsPromotion() {
			pos.pieceBoard[us][pieceMove].XorBit(from)
			pos.pieceBoard[us][pieceMove+Promoted].XorBit(to)
		} else {
			pos.pieceBoard[us][pieceMove] = pos.pieceBoard[us][pieceMove].Xor(setClear)
			if pieceMove == King {
				pos.kingSquare[us] = from
			}
		}
		pos.squares[from] = ColorPiece(us, pieceMove)

		if capture := m.Capture(); capture != NoPieceType {
			enemy := us.Opposite()
			pos.pieceBoard[enemy][capture].XorBit(to)
			pos.hand[us] = pos.hand[us].Sub(capture)
			pos.squares[to] = ColorPiece(enemy, capture)
			pos.pieceBoard[enemy][Occupied].XorBit(to)
		} else {
			pos.squares[to] = NoPiece
		}
	}
	pos.popState()
}

// DoNullMove flips the side to move. Forbidden in check.
func (pos *Position) DoNullMove() {
	pos.pushState()
	st := pos.st()
	st.BoardKey ^= zobristSide
	st.PliesFromNull = 0
	pos.SideToMove = pos.SideToMove.Opposite()
}

// PliesFromNull returns the number of plies since the last null move.
func (pos *Position) PliesFromNull() int {
	return pos.st().PliesFromNull
}

// UndoNullMove takes back a null move.
func (pos *Position) UndoNullMove() {
	pos.popState()
	pos.SideToMove = pos.SideToMove.Opposite()
}

// moveTemporary toggles only the piece boards, without keys, squares or
// state. Used by the 1-ply mate search; calling it twice undoes it.
func (pos *Position) moveTemporary(from, to Square, pt, capture PieceType) {
	setClear := maskTable[from].Or(maskTable[to])
	pos.pieceBoard[pos.SideToMove][Occupied] = pos.pieceBoard[pos.SideToMove][Occupied].Xor(setClear)
	pos.pieceBoard[pos.SideToMove][pt] = pos.pieceBoard[pos.SideToMove][pt].Xor(setClear)
	if capture != NoPieceType {
		enemy := pos.SideToMove.Opposite()
		pos.pieceBoard[enemy][capture].XorBit(to)
		pos.pieceBoard[enemy][Occupied].XorBit(to)
	}
}

// moveWithPromotionTemporary is moveTemporary for a promoting move.
func (pos *Position) moveWithPromotionTemporary(from, to Square, pt, capture PieceType) {
	setClear := maskTable[from].Or(maskTable[to])
	pos.pieceBoard[pos.SideToMove][Occupied] = pos.pieceBoard[pos.SideToMove][Occupied].Xor(setClear)
	pos.pieceBoard[pos.SideToMove][pt].XorBit(from)
	pos.pieceBoard[pos.SideToMove][pt+Promoted].XorBit(to)
	if capture != NoPieceType {
		enemy := pos.SideToMove.Opposite()
		pos.pieceBoard[enemy][capture].XorBit(to)
		pos.pieceBoard[enemy][Occupied].XorBit(to)
	}
}

// GivesCheck returns true if m checks the enemy king, either directly
// or by uncovering a slider.
func (pos *Position) GivesCheck(m Move, ci *CheckInfo) bool {
	to := m.To()
	from := m.From()

	if from >= BoardSquare {
		return ci.CheckSquares[m.DropPieceType()].Contract(maskTable[to])
	}

	pt := m.PieceType()
	if m.IsPromotion() {
		pt += Promoted
	}
	if ci.CheckSquares[pt].Contract(maskTable[to]) {
		return true
	}

	enemy := pos.SideToMove.Opposite()
	if ci.DiscoverCheckCandidates.Test() &&
		ci.DiscoverCheckCandidates.Contract(maskTable[from]) &&
		!aligned(from, to, pos.kingSquare[enemy]) {
		return true
	}
	return false
}

// GivesMateByDropPawn returns true if dropping a pawn on sq would be an
// immediate checkmate. The rules forbid such a drop.
func (pos *Position) GivesMateByDropPawn(sq Square) bool {
	us := pos.SideToMove
	enemy := us.Opposite()

	// The drop must check the king from directly below/above.
	if us == Black {
		if sq < 9 || pos.squares[sq-9] != ColorPiece(White, King) {
			return false
		}
	} else {
		if sq >= 72 || pos.squares[sq+9] != ColorPiece(Black, King) {
			return false
		}
	}

	// Any king escape square free of our attacks refutes the mate.
	occupied := pos.Occupied()
	occupied.XorBit(sq)
	movable := kingAttacksTable[pos.kingSquare[enemy]].AndNot(pos.pieceBoard[enemy][Occupied])
	for movable.Test() {
		to := movable.PopBit()
		if !pos.IsAttacked(to, enemy, occupied) {
			return false
		}
	}

	// A non-king piece may capture the pawn unless pinned. Lances only
	// move forward so they can never take it.
	occupied = pos.Occupied()
	sum := pos.pieceBoard[enemy][Knight].And(knightAttacksTable[us][sq])
	sum.AndOr(pos.pieceBoard[enemy][Silver], silverAttacksTable[us][sq])
	sum.AndOr(pos.TotalGold(enemy), goldAttacksTable[us][sq])
	sum.AndOr(pos.BishopHorse(enemy), bishopAttack(occupied, sq))
	sum.AndOr(pos.RookDragon(enemy), rookAttack(occupied, sq))
	sum.AndOr(pos.pieceBoard[enemy][Horse].Or(pos.pieceBoard[enemy][Dragon]), kingAttacksTable[sq])
	pinned := pos.PinnedPieces(enemy)
	for sum.Test() {
		from := sum.PopBit()
		if !pos.IsKingDiscover(from, sq, enemy, pinned) {
			return false
		}
	}

	return true
}

// isPawnOnFile returns true if color has an unpromoted pawn on sq's file.
func (pos *Position) isPawnOnFile(sq Square, c Color) bool {
	return pos.pieceBoard[c][Pawn].Contract(fileMaskTable[sq.column()])
}

// PseudoLegal verifies that a transposition-table move can be replayed
// in this position. King discovery is not tested; use Legal.
func (pos *Position) PseudoLegal(m Move) bool {
	if m == MoveNone {
		return false
	}
	from, to := m.From(), m.To()
	us := pos.SideToMove

	if from >= BoardSquare {
		if pos.squares[to] != NoPiece {
			return false
		}
		drop := m.DropPieceType()
		if !pos.hand[us].Has(drop) {
			return false
		}
		if drop == Pawn {
			if pos.GivesMateByDropPawn(to) {
				return false
			}
			if pos.isPawnOnFile(to, us) {
				return false
			}
		}
		if pos.InCheck() {
			target := pos.st().Checkers
			sq := target.PopBit()
			if target.Test() {
				// double check
				return false
			}
			if !betweenTable[sq][pos.kingSquare[us]].Contract(maskTable[to]) {
				return false
			}
		}
		return true
	}

	pt := m.PieceType()
	if pt == NoPieceType || pos.squares[from] != ColorPiece(us, pt) {
		return false
	}
	if pos.squares[to] != NoPiece && pos.squares[to].Color() == us {
		return false
	}

	capture := m.Capture()
	if capture == NoPieceType {
		if pos.squares[to] != NoPiece {
			return false
		}
	} else {
		if capture == King {
			return false
		}
		if pos.squares[to] != ColorPiece(us.Opposite(), capture) {
			return false
		}
	}

	if m.IsPromotion() && (pt > Rook || !CanPromoteFromTo(us, from, to)) {
		return false
	}

	var bb BitBoard
	switch pt {
	case Pawn:
		bb = pawnAttacksTable[us][from]
	case Lance:
		bb = lanceAttack(pos.Occupied(), us, from)
	case Knight:
		bb = knightAttacksTable[us][from]
	case Silver:
		bb = silverAttacksTable[us][from]
	case Gold, PromotedPawn, PromotedLance, PromotedKnight, PromotedSilver:
		bb = goldAttacksTable[us][from]
	case Bishop:
		bb = bishopAttack(pos.Occupied(), from)
	case Rook:
		bb = rookAttack(pos.Occupied(), from)
	case Horse:
		bb = horseAttack(pos.Occupied(), from)
	case Dragon:
		bb = dragonAttack(pos.Occupied(), from)
	case King:
		bb = kingAttacksTable[from]
	default:
		return false
	}
	if !bb.Contract(maskTable[to]) {
		return false
	}

	if pos.InCheck() {
		if pt == King {
			oc := pos.Occupied()
			oc.XorBit(from)
			if pos.IsAttacked(to, us, oc) {
				return false
			}
		} else {
			target := pos.st().Checkers
			sq := target.PopBit()
			if target.Test() {
				// double check
				return false
			}
			target = betweenTable[sq][pos.kingSquare[us]].Or(pos.st().Checkers)
			if !target.Contract(maskTable[to]) {
				return false
			}
		}
	}
	return true
}

// Legal returns true if the pseudo-legal m does not expose the own king.
func (pos *Position) Legal(m Move, pinned BitBoard) bool {
	from := m.From()
	if from >= BoardSquare {
		return true
	}

	us := pos.SideToMove
	to := m.To()
	if m.PieceType() == King {
		oc := pos.Occupied()
		oc.XorBit(from)
		return !pos.IsAttacked(to, us, oc)
	}
	return !pinned.Test() || !pinned.Contract(maskTable[from]) || aligned(from, to, pos.kingSquare[us])
}

// Validate checks the board-level shogi invariants.
func (pos *Position) Validate() bool {
	// No black pawn, lance or knight on rank a, no knight on rank b.
	blackStuck := pos.pieceBoard[Black][Pawn].Or(pos.pieceBoard[Black][Lance]).Or(pos.pieceBoard[Black][Knight])
	if blackStuck.Contract(rankMaskTable[0]) {
		return false
	}
	if pos.pieceBoard[Black][Knight].Contract(rankMaskTable[1]) {
		return false
	}

	whiteStuck := pos.pieceBoard[White][Pawn].Or(pos.pieceBoard[White][Lance]).Or(pos.pieceBoard[White][Knight])
	if whiteStuck.Contract(rankMaskTable[8]) {
		return false
	}
	if pos.pieceBoard[White][Knight].Contract(rankMaskTable[7]) {
		return false
	}

	// No two unpromoted pawns of a color on one file.
	for f := 0; f < 9; f++ {
		for c := Black; c <= White; c++ {
			if pos.pieceBoard[c][Pawn].And(fileMaskTable[f]).Popcount() > 1 {
				return false
			}
		}
	}

	// The side not to move must not be left in check.
	enemy := pos.SideToMove.Opposite()
	if pos.IsAttacked(pos.kingSquare[enemy], enemy, pos.Occupied()) {
		return false
	}
	return true
}

// computeMaterial recomputes the material balance from scratch.
func (pos *Position) computeMaterial() Value {
	material := Value(0)
	for pt := Pawn; pt <= Gold; pt++ {
		num := pos.pieceBoard[Black][pt].Popcount() + pos.hand[Black].Count(pt)
		num -= pos.pieceBoard[White][pt].Popcount() + pos.hand[White].Count(pt)
		material += Value(num) * pieceValueTable[pt]
	}
	for pt := PromotedPawn; pt <= Dragon; pt++ {
		num := pos.pieceBoard[Black][pt].Popcount() - pos.pieceBoard[White][pt].Popcount()
		material += Value(num) * pieceValueTable[pt]
	}
	return material
}

// KeyAfter returns the Zobrist key the position would have after m.
func (pos *Position) KeyAfter(m Move) uint64 {
	boardKey := pos.st().BoardKey
	handKey := pos.st().HandKey
	from, to := m.From(), m.To()
	us := pos.SideToMove

	boardKey ^= zobristSide
	if from >= BoardSquare {
		drop := m.DropPieceType()
		handKey -= zobristHand[us][drop]
		boardKey += zobristPiece[us][drop][to]
	} else {
		pt := m.PieceType()
		boardKey -= zobristPiece[us][pt][from]
		if m.IsPromotion() {
			boardKey += zobristPiece[us][pt+Promoted][to]
		} else {
			boardKey += zobristPiece[us][pt][to]
		}
		if capture := m.Capture(); capture != NoPieceType {
			boardKey -= zobristPiece[us.Opposite()][capture][to]
			handKey += zobristHand[us][capture.Demoted()]
		}
	}
	return boardKey + handKey
}

// InRepetition walks the state stack at strides of two plies, comparing
// board and hand keys. Perpetual check is told apart from an ordinary
// repetition by the consecutive-check counters.
func (pos *Position) InRepetition() Repetition {
	st := pos.st()
	for i := 2; i <= st.PliesFromNull && i <= pos.stateIdx; i += 2 {
		prev := pos.prevSt(i)
		if prev.BoardKey != st.BoardKey {
			continue
		}
		if prev.HandKey == st.HandKey {
			if st.ContinuousChecks[pos.SideToMove]*2 >= i {
				return PerpetualCheckLose
			}
			if st.ContinuousChecks[pos.SideToMove.Opposite()]*2 >= i {
				return PerpetualCheckWin
			}
			return RepetitionDraw
		}
		if st.HandBlack.DominatesOrEquals(prev.HandBlack) {
			return BlackWinRepetition
		}
		if prev.HandBlack.DominatesOrEquals(st.HandBlack) {
			return BlackLoseRepetition
		}
	}
	return NoRepetition
}

// IsDeclarationWin implements the entering-king declaration rule.
func (pos *Position) IsDeclarationWin() bool {
	us := pos.SideToMove

	// Own king inside the opposing promotion zone.
	if us == Black {
		if pos.kingSquare[Black] > 26 {
			return false
		}
	} else {
		if pos.kingSquare[White] < 54 {
			return false
		}
	}

	// At least ten own pieces in the zone besides the king.
	inZone := pos.pieceBoard[us][Occupied].Xor(pos.pieceBoard[us][King]).And(promotableMaskTable[us])
	if inZone.Popcount() < 10 {
		return false
	}

	if pos.InCheck() {
		return false
	}

	large := pos.pieceBoard[us][Bishop].Or(pos.pieceBoard[us][Rook]).
		Or(pos.pieceBoard[us][Dragon]).Or(pos.pieceBoard[us][Horse])
	small := pos.pieceBoard[us][Occupied].Xor(pos.pieceBoard[us][King])
	small.NotAnd(large)
	large = large.And(promotableMaskTable[us])
	small = small.And(promotableMaskTable[us])

	largeScore := large.Popcount() + pos.hand[us].Count(Bishop) + pos.hand[us].Count(Rook)
	smallScore := small.Popcount() +
		pos.hand[us].Count(Pawn) + pos.hand[us].Count(Lance) + pos.hand[us].Count(Knight) +
		pos.hand[us].Count(Silver) + pos.hand[us].Count(Gold)

	score := smallScore + 5*largeScore
	if us == Black {
		return score >= 28
	}
	return score >= 27
}

// Clone copies the position, including the state history, for another
// search thread.
func (pos *Position) Clone(t *Thread) *Position {
	next := &Position{}
	*next = *pos
	next.states = make([]StateInfo, len(pos.states), cap(pos.states))
	copy(next.states, pos.states)
	next.nodes = 0
	next.thread = t
	return next
}

// USIToMove parses a move in USI format against the current position.
// Moves not replayable here come back as an error.
func (pos *Position) USIToMove(s string) (Move, error) {
	if len(s) < 4 {
		return MoveNone, fmt.Errorf("invalid move %q", s)
	}

	if s[1] == '*' {
		var pt PieceType
		for i, l := range dropLetters {
			if l == s[0] {
				pt = PieceType(i)
			}
		}
		if pt == NoPieceType {
			return MoveNone, fmt.Errorf("invalid drop %q", s)
		}
		to, err := SquareFromString(s[2:4])
		if err != nil {
			return MoveNone, err
		}
		m := MakeDrop(pt, to)
		if !pos.PseudoLegal(m) {
			return MoveNone, fmt.Errorf("illegal move %q", s)
		}
		return m, nil
	}

	from, err := SquareFromString(s[0:2])
	if err != nil {
		return MoveNone, err
	}
	to, err := SquareFromString(s[2:4])
	if err != nil {
		return MoveNone, err
	}
	promote := len(s) >= 5 && s[4] == '+'

	pi := pos.squares[from]
	if pi == NoPiece || pi.Color() != pos.SideToMove {
		return MoveNone, fmt.Errorf("no own piece on %v", from)
	}
	m := MakeMove(from, to, pi.Type(), pos.squares[to].Type(), promote)
	if !pos.PseudoLegal(m) {
		return MoveNone, fmt.Errorf("illegal move %q", s)
	}
	if !pos.Legal(m, pos.PinnedPieces(pos.SideToMove)) {
		return MoveNone, fmt.Errorf("illegal move %q", s)
	}
	return m, nil
}

// buildEvalLists fills the 38-entry KPP feature lists from scratch.
func (pos *Position) buildEvalLists() {
	st := pos.st()
	listIndex := 0

	for _, pt := range []PieceType{Pawn, Lance, Knight, Silver, Gold, Bishop, Rook} {
		for _, c := range []Color{Black, White} {
			fBase, eBase := handKPPBase(c, pt)
			slot := pieceTypeToSquareHandTable[c][pt]
			for i := 1; i <= pos.hand[c].Count(pt); i++ {
				st.BlackKPPList[listIndex] = fBase + KPPIndex(i)
				st.WhiteKPPList[listIndex] = eBase + KPPIndex(i)
				st.kppListIndex[slot+Square(i)] = uint8(listIndex)
				listIndex++
			}
		}
	}

	for sq := Square(0); sq < BoardSquare; sq++ {
		pi := pos.squares[sq]
		if pi == NoPiece || pi.Type() == King {
			continue
		}
		st.kppListIndex[sq] = uint8(listIndex)
		st.BlackKPPList[listIndex] = pieceToIndexBlackTable[pi] + KPPIndex(sq)
		st.WhiteKPPList[listIndex] = pieceToIndexWhiteTable[pi] + KPPIndex(sq.Inverse())
		listIndex++
	}
}

// handKPPBase returns the friend/enemy hand feature bases from black's
// point of view for c's captured pt.
func handKPPBase(c Color, pt PieceType) (KPPIndex, KPPIndex) {
	if c == Black {
		return blackHandKPPBase[pt], whiteHandKPPBase[pt]
	}
	return whiteHandKPPBase[pt], blackHandKPPBase[pt]
}
