package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sprintstat/cmd/mockgen/engine"
	"sprintstat/internal/eventlog"
)

func main() {
	scenario := flag.String("scenario", engine.Steady, "Scenario to generate: steady, churn, rejects")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	out := flag.String("out", "./snapshots/mock.jsonl", "Snapshot file to write")
	count := flag.Int("count", 200, "Number of issues to generate")
	repos := flag.String("repos", "sprintstat/mock", "Comma-separated repositories to spread the issues over")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Count:        *count,
		Repos:        strings.Split(*repos, ","),
		Now:          time.Now(),
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, *out)

	issues, err := engine.Generate(cfg)
	if err != nil {
		fmt.Printf("Failed to generate mock data: %v\n", err)
		os.Exit(1)
	}
	if err := eventlog.SaveSnapshot(*out, issues); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
