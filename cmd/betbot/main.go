package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"toto-gobet/internal/audit"
	"toto-gobet/internal/auth"
	"toto-gobet/internal/dotenv"
	"toto-gobet/internal/jsonl"
	"toto-gobet/internal/ledger"
	"toto-gobet/internal/protocol"
	"toto-gobet/internal/run"
	"toto-gobet/internal/session"
)

type args struct {
	username    string
	password    string
	gameURL     string
	spreadsheet string

	minDelay time.Duration
	maxDelay time.Duration
	maxPrice float64

	runLogFile string
	auditFile  string
}

const defaultRunLogFile = "./out/runs.jsonl"

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseArgs() (args, error) {
	var parsed args

	flag.StringVar(&parsed.username, "username", envOr("TOTO_USERNAME", ""), "login username (env TOTO_USERNAME)")
	flag.StringVar(&parsed.password, "password", envOr("TOTO_PASSWORD", ""), "login password (env TOTO_PASSWORD)")
	flag.StringVar(&parsed.gameURL, "game-url", envOr("TOTO_GAME_URL", ""), "betting page URL (env TOTO_GAME_URL)")
	flag.StringVar(&parsed.spreadsheet, "spreadsheet", envOr("TOTO_SPREADSHEET", ""), "combinations .xlsx path (env TOTO_SPREADSHEET)")
	flag.DurationVar(&parsed.minDelay, "min-delay", run.DefaultMinDelay, "minimum delay between batches")
	flag.DurationVar(&parsed.maxDelay, "max-delay", run.DefaultMaxDelay, "maximum delay between batches")
	flag.Float64Var(&parsed.maxPrice, "max-price", protocol.DefaultMaxPrice, "bet price ceiling; a higher confirmed price aborts the run")
	flag.StringVar(&parsed.runLogFile, "run-log", defaultRunLogFile, "run event log path (JSONL); empty disables")
	flag.StringVar(&parsed.auditFile, "audit-log", audit.FileName, "confirmed-bet audit log path (HTML, append-only)")
	flag.Parse()

	if parsed.username == "" || parsed.password == "" {
		return args{}, fmt.Errorf("username and password are required")
	}
	if parsed.gameURL == "" {
		return args{}, fmt.Errorf("game-url is required")
	}
	if parsed.spreadsheet == "" {
		return args{}, fmt.Errorf("spreadsheet is required")
	}
	if parsed.minDelay <= 0 || parsed.maxDelay < parsed.minDelay {
		return args{}, fmt.Errorf("bad delay range [%s, %s]", parsed.minDelay, parsed.maxDelay)
	}
	return parsed, nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	transcript := newTranscript(os.Stderr)
	log.SetOutput(transcript)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	parsed, err := parseArgs()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	// Pre-flight spreadsheet check, same as the operator upload check.
	completed, total, hasCombination := ledger.Validate(parsed.spreadsheet)
	if !hasCombination {
		log.Fatalf("[fatal] spreadsheet %s: combination column not found", parsed.spreadsheet)
	}
	log.Printf("Spreadsheet: %s (%d/%d completed)", parsed.spreadsheet, completed, total)
	log.Printf("Game URL: %s", parsed.gameURL)
	log.Printf("Delay: %s to %s", parsed.minDelay, parsed.maxDelay)
	log.Printf("Price ceiling: %g", parsed.maxPrice)
	if parsed.runLogFile != "" {
		log.Printf("Run log: %s (JSONL)", parsed.runLogFile)
	}

	ctrl := newSignalControl(parsed.minDelay, parsed.maxDelay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				switch sig {
				case syscall.SIGHUP:
					if ctrl.TogglePause() == run.Pause {
						log.Printf("Pause requested (SIGHUP again to resume)")
					} else {
						log.Printf("Resuming")
					}
				default:
					if ctrl.RequestStop() {
						log.Printf("Stop requested; finishing the current batch (signal again to abort)")
					} else {
						log.Printf("Aborting")
						cancel()
						return
					}
				}
			}
		}
	}()

	runLog := jsonl.New(parsed.runLogFile)
	defer func() {
		if err := runLog.Close(); err != nil {
			log.Printf("[warn] run log close: %v", err)
		}
	}()

	store := session.NewStore(".")
	runner := run.New(run.Config{
		Creds: auth.Credentials{
			Username: parsed.username,
			Password: parsed.password,
			GameURL:  parsed.gameURL,
		},
		SpreadsheetPath: parsed.spreadsheet,
		MinDelay:        parsed.minDelay,
		MaxDelay:        parsed.maxDelay,
		MaxPrice:        parsed.maxPrice,
		AuditPath:       parsed.auditFile,
	}, ctrl, progressLogger{}, auth.New(store), runLog)

	switch err := runner.Run(ctx); {
	case err == nil:
		log.Printf("Run completed")
	case errors.Is(err, run.ErrStopped):
		log.Printf("Run stopped by operator")
	default:
		if path, werr := transcript.SaveErrorLog(); werr != nil {
			log.Printf("[warn] save error log: %v", werr)
		} else {
			log.Printf("Error log saved to %s", path)
		}
		log.Fatalf("[fatal] %v", err)
	}
}

// progressLogger is the CLI's progress sink.
type progressLogger struct{}

func (progressLogger) OnProgress(total, completed int) {
	log.Printf("Processing %d/%d", completed, total)
}

func (progressLogger) OnProcessedCount(n int) {
	log.Printf("Combinations processed this run: %d", n)
}
