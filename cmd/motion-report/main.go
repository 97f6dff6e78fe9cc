package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/motion.report/internal/version"
)

const defaultDBPath = "motion.db"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "migrate":
		err = runMigrate(args, os.Stdout)
	case "import":
		err = runImport(ctx, args, os.Stdout)
	case "analyse", "analyze":
		err = runAnalyse(ctx, args, os.Stdout)
	case "stats":
		err = runStats(ctx, args, os.Stdout)
	case "runs":
		err = runRuns(ctx, args, os.Stdout)
	case "play":
		err = runPlay(ctx, args, os.Stdout)
	case "version":
		fmt.Printf("motion-report %s\n", version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`motion-report - F-formation analysis for wall display motion capture sessions

Usage: motion-report <command> [options]

Commands:
  migrate    Manage the session database schema (up, down, status, version, force)
  import     Import tracker and touch CSV logs into the session database
  analyse    Detect F-formations, record the run and write reports
  stats      Print per-user statistics for an interval
  runs       List, show or delete recorded analysis runs
  play       Export playback frames of the stroke scene as PNG
  version    Show version information
  help       Show this help message

Common Flags:
  --db <path>          Session database (default: motion.db)
  --config <file>      Analysis configuration JSON (default: built-in defaults)

Examples:
  motion-report migrate up
  motion-report import --head tracker.csv --touch touch.csv --date 2016-03-17
  motion-report analyse --out reports/
  motion-report stats --start 60000 --end 120000
  motion-report play --out frames/ --frames 100 --fps 10`)
}
