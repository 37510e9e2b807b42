package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"mycoscheduler.dev/sim/engine"
	"mycoscheduler.dev/sim/internal/layout"
	"mycoscheduler.dev/sim/internal/simconfig"
)

type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := simconfig.DefaultConfig()
	cfg := defaults
	var chunkPaths multiStringFlag

	fs := flag.NewFlagSet("mycosim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Var(&chunkPaths, "chunk", "path to a .myc chunk binary (repeatable)")
	linksPath := fs.String("links", "", "path to a link binary wiring the loaded chunks")
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "population data directory")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&cfg.CyclePolicy, "cycle-policy", defaults.CyclePolicy, "freeze_last_stable|clamp_commutative|parity_quench")
	ticks := fs.Int("ticks", 1, "number of atomic ticks to run")
	maxRounds := fs.Uint("max-rounds", 0, "override every chunk's max rounds for this run (0 = chunk default)")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := simconfig.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if *dryRun {
		if err := printConfig(stdout, cfg); err != nil {
			_, _ = fmt.Fprintf(stderr, "config encode failed: %v\n", err)
			return 1
		}
		return 0
	}
	if len(chunkPaths) == 0 {
		_, _ = fmt.Fprintln(stderr, "at least one --chunk is required")
		return 2
	}

	blobs := make([][]byte, len(chunkPaths))
	for i, p := range chunkPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "read chunk %s: %v\n", p, err)
			return 2
		}
		blobs[i] = b
	}

	e, err := engine.New(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "engine init failed: %v\n", err)
		return 2
	}
	defer func() { _ = e.Close() }()

	ids, err := e.LoadChunks(blobs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load chunks failed: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "loaded %d chunk(s)\n", len(ids))

	if *linksPath != "" {
		b, err := os.ReadFile(*linksPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "read links %s: %v\n", *linksPath, err)
			return 2
		}
		if err := e.LoadLinks(b); err != nil {
			_, _ = fmt.Fprintf(stderr, "load links failed: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintln(stdout, "links loaded")
	}

	for t := 0; t < *ticks; t++ {
		summary, err := e.Tick(uint32(*maxRounds))
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "tick %d failed: %v\n", t, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "tick %d: rounds=%d effects=%d\n", t, summary.Rounds, summary.Effects)
	}

	for _, id := range ids {
		_, no, _, err := e.BitCounts(id)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "chunk %d: %v\n", id, err)
			return 1
		}
		out := make([]uint32, layout.WordCount(no))
		if err := e.GetOutputs(id, out); err != nil {
			_, _ = fmt.Fprintf(stderr, "get outputs for chunk %d: %v\n", id, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "chunk %d outputs: %v\n", id, layout.WordsToBytes(out, no))
	}
	return 0
}

func printConfig(w io.Writer, cfg simconfig.Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
