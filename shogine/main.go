// Copyright 2018-2021 The Shogine Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/op/go-logging"
	"github.com/pkg/profile"
	flag "github.com/spf13/pflag"

	"github.com/shogine/shogine/engine"
	logpkg "github.com/shogine/shogine/logging"
)

var (
	buildVersion = "(devel)"

	configPath = flag.String("config", "shogine.toml", "configuration file")
	cpuprofile = flag.Bool("cpuprofile", false, "write a cpu profile")
	version    = flag.Bool("version", false, "only print version and exit")
	verbose    = flag.BoolP("verbose", "v", false, "debug logging to stderr")
)

var log = logpkg.GetLog("main")

// config mirrors the optional shogine.toml. Options set over USI
// override these defaults.
type config struct {
	Hash          int
	Threads       int
	MultiPV       int
	Contempt      int
	ByoyomiMargin int
	OwnBook       bool
	BookFile      string
	BestBookMove  bool
	MinBookScore  int
	BookFormat    string // "apery" or "native"
	EvalFile      string
}

func defaultConfig() config {
	return config{
		Hash:     engine.DefaultHashTableSizeMB,
		Threads:  runtime.NumCPU(),
		MultiPV:  1,
		EvalFile: "kpp_kkpt.bin",
	}
}

func loadConfig(path string) config {
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !os.IsNotExist(err) {
			log.Warningf("config %s: %v", path, err)
		}
	}
	return cfg
}

func main() {
	flag.Parse()
	fmt.Printf("shogine %s, built with %s on %s\n", buildVersion, runtime.Version(), runtime.GOARCH)
	if *version {
		return
	}
	if *cpuprofile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}
	if *verbose {
		logpkg.SetLevel(logging.DEBUG)
	}

	cfg := loadConfig(*configPath)

	pool := engine.NewThreadPool(cfg.Threads, cfg.Hash)
	pool.Options.MultiPV = cfg.MultiPV
	pool.Options.Contempt = cfg.Contempt
	pool.Options.ByoyomiMargin = cfg.ByoyomiMargin
	pool.Options.OwnBook = cfg.OwnBook
	pool.Options.BookFile = cfg.BookFile
	pool.Options.BestBookMove = cfg.BestBookMove
	pool.Options.MinBookScore = cfg.MinBookScore

	usi := NewUSI(pool, cfg.EvalFile, cfg.BookFormat)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1<<16), 1<<20)
	for scanner.Scan() {
		if err := usi.Execute(scanner.Text()); err != nil {
			if err == errQuit {
				break
			}
			log.Warningf("%v (line %q)", err, scanner.Text())
		}
	}
}
