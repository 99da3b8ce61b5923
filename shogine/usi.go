// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// usi.go implements the USI protocol described at
// http://hgm.nubati.net/usi.html. Two non-standard commands are kept:
// "d" prints the current board and "bench" searches a fixed set of
// positions.

package main

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/shogine/shogine/engine"
	"github.com/shogine/shogine/logging"
)

var errQuit = errors.New("quit")

var usiLog = logging.GetLog("usi")

const maxMultiPV = 16

// USI wires the protocol to the thread pool.
type USI struct {
	pool *engine.ThreadPool
	pos  *engine.Position

	// buffer of 1, if empty then the engine is searching
	idle chan struct{}

	evalFile string
	bookKind string
}

// NewUSI builds the protocol handler around a configured pool.
// bookKind selects the book layout, "apery" or "native".
func NewUSI(pool *engine.ThreadPool, evalFile, bookKind string) *USI {
	pos, _ := engine.PositionFromSfen(engine.SfenStartPos)
	if bookKind == "" {
		bookKind = "apery"
	}
	u := &USI{
		pool:     pool,
		pos:      pos,
		idle:     make(chan struct{}, 1),
		evalFile: evalFile,
		bookKind: bookKind,
	}
	u.idle <- struct{}{}
	return u
}

var reCmd = regexp.MustCompile(`^[[:word:]]+\b`)

// Execute runs one protocol line.
func (u *USI) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	cmd := reCmd.FindString(line)
	if cmd == "" {
		return fmt.Errorf("invalid command line")
	}

	// These commands do not expect the engine to be idle.
	switch cmd {
	case "usi":
		return u.usi()
	case "isready":
		return u.isready()
	case "stop":
		return u.stop()
	case "ponderhit":
		u.pool.PonderHit()
		return nil
	case "quit":
		u.stop()
		return errQuit
	}

	// Make sure the engine is idle.
	<-u.idle
	u.idle <- struct{}{}

	switch cmd {
	case "usinewgame":
		u.pool.Clear()
		return nil
	case "position":
		return u.position(line)
	case "go":
		return u.go_(line)
	case "setoption":
		return u.setoption(line)
	case "gameover":
		return nil
	case "d":
		u.printBoard()
		return nil
	case "bench":
		return u.bench()
	default:
		return fmt.Errorf("unhandled command %s", cmd)
	}
}

func (u *USI) usi() error {
	fmt.Printf("id name shogine %s\n", buildVersion)
	fmt.Printf("id author The Shogine Authors\n")
	fmt.Printf("option name USI_Hash type spin default %d min 1 max 65536\n", engine.DefaultHashTableSizeMB)
	fmt.Printf("option name Threads type spin default %d min 1 max 128\n", u.pool.Size())
	fmt.Printf("option name MultiPV type spin default 1 min 1 max %d\n", maxMultiPV)
	fmt.Printf("option name USI_Ponder type check default true\n")
	fmt.Printf("option name OwnBook type check default %v\n", u.pool.Options.OwnBook)
	fmt.Printf("option name BookFile type string default %s\n", orNone(u.pool.Options.BookFile))
	fmt.Printf("option name Best_Book_Move type check default false\n")
	fmt.Printf("option name Min_Book_Score type spin default 0 min -32000 max 32000\n")
	fmt.Printf("option name Contempt type spin default 0 min -300 max 300\n")
	fmt.Printf("option name ByoyomiMargin type spin default 0 min 0 max 10000\n")
	fmt.Printf("option name Clear_Hash type button\n")
	fmt.Println("usiok")
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "<empty>"
	}
	return s
}

func (u *USI) isready() error {
	// Heavy startup work belongs here, not in "usi".
	if u.evalFile != "" && !engine.EvalLoaded() {
		if err := engine.LoadEval(u.evalFile); err != nil {
			usiLog.Warningf("running without evaluation parameters: %v", err)
		}
	}
	if u.pool.Options.OwnBook && u.pool.Book == nil {
		u.openBook()
	}
	fmt.Println("readyok")
	return nil
}

func (u *USI) openBook() {
	path := u.pool.Options.BookFile
	if path == "" {
		return
	}
	var err error
	if u.bookKind == "apery" {
		var book *engine.AperyBook
		if book, err = engine.OpenAperyBook(path); err == nil {
			book.PickBest = u.pool.Options.BestBookMove
			book.MinScore = int32(u.pool.Options.MinBookScore)
			u.pool.Book = book
		}
	} else {
		u.pool.Book, err = engine.OpenBook(path)
	}
	if err != nil {
		usiLog.Warningf("book disabled: %v", err)
		u.pool.Book = nil
	}
}

func (u *USI) position(line string) error {
	args := strings.Fields(line)[1:]
	if len(args) == 0 {
		return fmt.Errorf("expected argument for 'position'")
	}

	var pos *engine.Position
	var err error
	i := 0
	switch args[i] {
	case "startpos":
		pos, err = engine.PositionFromSfen(engine.SfenStartPos)
		i++
	case "sfen":
		for i < len(args) && args[i] != "moves" {
			i++
		}
		pos, err = engine.PositionFromSfen(strings.Join(args[1:i], " "))
	default:
		err = fmt.Errorf("unknown position command: %s", args[0])
	}
	if err != nil {
		return err
	}
	if !pos.Validate() {
		return fmt.Errorf("invalid position")
	}

	if i < len(args) {
		if args[i] != "moves" {
			return fmt.Errorf("expected 'moves', got %q", args[i])
		}
		for _, s := range args[i+1:] {
			m, err := pos.USIToMove(s)
			if err != nil {
				// Residual tokens after a bad move are ignored.
				usiLog.Warningf("ignoring move %q: %v", s, err)
				break
			}
			pos.DoMove(m)
		}
	}

	u.pos = pos
	return nil
}

func (u *USI) go_(line string) error {
	limits := &engine.LimitsType{StartTime: time.Now()}

	args := strings.Fields(line)[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "searchmoves":
			for j := i + 1; j < len(args); j++ {
				m, err := u.pos.USIToMove(args[j])
				if err != nil {
					break
				}
				limits.SearchMoves = append(limits.SearchMoves, m)
				i++
			}
		case "ponder":
			limits.Ponder = true
		case "infinite":
			limits.Infinite = true
		case "btime":
			i++
			limits.Time[engine.Black], _ = strconv.Atoi(args[i])
		case "wtime":
			i++
			limits.Time[engine.White], _ = strconv.Atoi(args[i])
		case "binc":
			i++
			limits.Inc[engine.Black], _ = strconv.Atoi(args[i])
		case "winc":
			i++
			limits.Inc[engine.White], _ = strconv.Atoi(args[i])
		case "byoyomi":
			i++
			limits.Byoyomi, _ = strconv.Atoi(args[i])
		case "movetime":
			i++
			limits.MoveTime, _ = strconv.Atoi(args[i])
		case "depth":
			i++
			d, _ := strconv.Atoi(args[i])
			limits.Depth = engine.Depth(d)
		case "nodes":
			i++
			n, _ := strconv.Atoi(args[i])
			limits.Nodes = int64(n)
		case "mate":
			i++
			limits.Mate, _ = strconv.Atoi(args[i])
		default:
			return fmt.Errorf("invalid go command %s", args[i])
		}
	}

	<-u.idle
	go u.play(limits)
	return nil
}

// play runs the search on its own goroutine and emits bestmove.
func (u *USI) play(limits *engine.LimitsType) {
	// The entering-king rule lets the side to move claim the win.
	if u.pos.IsDeclarationWin() {
		fmt.Println("bestmove win")
		u.idle <- struct{}{}
		return
	}

	best, ponder := u.pool.StartThinking(u.pos, limits)

	if best == engine.MoveNone {
		fmt.Println("bestmove resign")
	} else if ponder != engine.MoveNone {
		fmt.Printf("bestmove %s ponder %s\n", best.USI(), ponder.USI())
	} else {
		fmt.Printf("bestmove %s\n", best.USI())
	}

	u.idle <- struct{}{}
}

func (u *USI) stop() error {
	u.pool.Signals.Ponder.Store(false)
	u.pool.Signals.Stop.Store(true)
	// Wait until the search goroutine has finished.
	<-u.idle
	u.idle <- struct{}{}
	return nil
}

var reOption = regexp.MustCompile(`^setoption\s+name\s+(.+?)(\s+value\s+(.*))?$`)

func (u *USI) setoption(line string) error {
	option := reOption.FindStringSubmatch(line)
	if option == nil {
		return fmt.Errorf("invalid setoption arguments")
	}

	name, value := option[1], option[3]
	switch name {
	case "Clear_Hash":
		u.pool.TT.Clear()
	case "USI_Hash":
		mb, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		u.pool.TT.Resize(mb)
	case "Threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		u.pool.Resize(n)
	case "MultiPV":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if n < 1 || n > maxMultiPV {
			return fmt.Errorf("MultiPV must be between 1 and %d", maxMultiPV)
		}
		u.pool.Options.MultiPV = n
	case "USI_Ponder":
		// Pondering is driven entirely by "go ponder".
	case "OwnBook":
		u.pool.Options.OwnBook = value == "true"
	case "BookFile":
		u.pool.Options.BookFile = value
		u.pool.Book = nil
	case "Best_Book_Move":
		u.pool.Options.BestBookMove = value == "true"
		u.pool.Book = nil
	case "Min_Book_Score":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		u.pool.Options.MinBookScore = n
		u.pool.Book = nil
	case "Contempt":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		u.pool.Options.Contempt = n
	case "ByoyomiMargin":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		u.pool.Options.ByoyomiMargin = n
	default:
		return fmt.Errorf("unhandled option %s", name)
	}
	return nil
}

// printBoard renders the board for interactive debugging.
func (u *USI) printBoard() {
	black := color.New(color.FgHiWhite, color.Bold)
	white := color.New(color.FgHiBlue)
	fmt.Println("  9  8  7  6  5  4  3  2  1")
	for r := 0; r < 9; r++ {
		for f := 9; f >= 1; f-- {
			pi := u.pos.Get(engine.RankFile(r, f))
			if pi == engine.NoPiece {
				fmt.Print(" . ")
				continue
			}
			s := fmt.Sprintf("%2s ", pi.Type().String())
			if pi.Color() == engine.Black {
				black.Print(s)
			} else {
				white.Print(s)
			}
		}
		fmt.Printf(" %c\n", 'a'+r)
	}
	fmt.Printf("sfen: %s\n", u.pos.String())
	fmt.Printf("key:  %016x\n", u.pos.Key())
}

// benchSfens is a small fixed suite for "bench".
var benchSfens = []string{
	engine.SfenStartPos,
	"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
	"8l/1l+R2P3/p2pBG1pp/kps1p4/Nn1P2G2/P1P1P2PP/1PS6/1KSG3+r1/LN2+p3L w Sbgn3p 1",
	"lr6l/4g1k1p/1s1p1pgp1/p3P1N1P/2Pl5/PPn2P3/3+nPSGP1/2+b2K3/L4G1NR b 2BS2Psp 1",
}

func (u *USI) bench() error {
	saved := u.pos
	totalNodes := uint64(0)
	start := time.Now()
	for _, sfen := range benchSfens {
		pos, err := engine.PositionFromSfen(sfen)
		if err != nil {
			return err
		}
		u.pos = pos
		limits := &engine.LimitsType{Depth: 8, StartTime: time.Now()}
		u.pool.StartThinking(pos, limits)
		totalNodes += u.pool.NodesSearched()
	}
	elapsed := time.Since(start)
	u.pos = saved
	fmt.Printf("info string bench nodes %d time %d nps %d\n",
		totalNodes, elapsed.Milliseconds(),
		int64(float64(totalNodes)/elapsed.Seconds()))
	return nil
}
