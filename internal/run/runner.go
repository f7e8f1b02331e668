// Package run drives the end-to-end batch loop: authenticate once, then
// repeatedly pull a batch of pending combinations, play it through the
// form protocol, commit the ledger and report progress, honoring the
// operator's pause/stop control and the inter-batch pacing delay.
package run

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"toto-gobet/internal/audit"
	"toto-gobet/internal/auth"
	"toto-gobet/internal/jsonl"
	"toto-gobet/internal/ledger"
	"toto-gobet/internal/protocol"
)

const (
	// DefaultMinDelay / DefaultMaxDelay bound the random pause between
	// batches, pacing requests to resemble manual play.
	DefaultMinDelay = 20 * time.Second
	DefaultMaxDelay = 37 * time.Second

	// DefaultPausePoll is how often the worker re-reads the control state
	// while paused.
	DefaultPausePoll = 5 * time.Second
)

// Config is the per-run input.
type Config struct {
	Creds           auth.Credentials
	SpreadsheetPath string

	MinDelay time.Duration // 0 means DefaultMinDelay
	MaxDelay time.Duration // 0 means DefaultMaxDelay
	MaxPrice float64       // 0 means protocol.DefaultMaxPrice

	BatchSize int           // 0 means protocol.SectionCount
	AuditPath string        // "" means audit.FileName in the working directory
	PausePoll time.Duration // 0 means DefaultPausePoll
}

// DelayProvider lets a control surface retune the delay range while the
// run is in flight. Optional: controls that don't implement it keep the
// configured range.
type DelayProvider interface {
	DelayRange() (min, max time.Duration)
}

// Runner owns one run. It executes on a single worker goroutine; the
// control surface runs elsewhere and talks to it only through Control and
// ProgressSink.
type Runner struct {
	cfg     Config
	control Control
	sink    ProgressSink
	auth    *auth.Authenticator
	runLog  *jsonl.Writer
	runID   string
}

type nopSink struct{}

func (nopSink) OnProgress(total, completed int) {}
func (nopSink) OnProcessedCount(n int)          {}

// New wires a runner. runLog may be nil.
func New(cfg Config, control Control, sink ProgressSink, authenticator *auth.Authenticator, runLog *jsonl.Writer) *Runner {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = protocol.SectionCount
	}
	if cfg.AuditPath == "" {
		cfg.AuditPath = audit.FileName
	}
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = DefaultPausePoll
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Runner{
		cfg:     cfg,
		control: control,
		sink:    sink,
		auth:    authenticator,
		runLog:  runLog,
		runID:   uuid.NewString(),
	}
}

// Run executes the whole batch loop. It returns nil when every pending
// combination is committed, ErrStopped on an operator stop, and a
// classified error otherwise. Teardown (the final run-log event) happens
// exactly once regardless of outcome.
func (r *Runner) Run(ctx context.Context) (err error) {
	startedAt := time.Now()
	logRunEvent(r.runLog, runLogEvent{
		TsMs:        time.Now().UnixMilli(),
		Event:       "start",
		RunID:       r.runID,
		GameURL:     r.cfg.Creds.GameURL,
		Spreadsheet: r.cfg.SpreadsheetPath,
	})
	defer func() {
		ev := runLogEvent{
			TsMs:     time.Now().UnixMilli(),
			Event:    "summary",
			RunID:    r.runID,
			Ok:       err == nil || errors.Is(err, ErrStopped),
			UptimeMs: uptimeMs(startedAt),
		}
		if err != nil {
			ev.Err = err.Error()
		}
		logRunEvent(r.runLog, ev)
	}()

	led, err := ledger.Load(r.cfg.SpreadsheetPath)
	if err != nil {
		return err
	}
	completed, total := led.Status()
	log.Printf("Spreadsheet: %s (%d/%d completed)", led.Path(), completed, total)

	sess, err := r.auth.LoginSession(ctx, r.cfg.Creds)
	if err != nil {
		return err
	}

	client := protocol.NewClient(sess, r.cfg.MaxPrice, audit.New(r.cfg.AuditPath))
	processed := 0

	for {
		if err := r.waitControl(ctx); err != nil {
			return err
		}

		batch := led.NextBatch(r.cfg.BatchSize)
		if len(batch) == 0 {
			log.Printf("All combinations completed")
			return nil
		}

		combos := make([]string, len(batch))
		for i, rec := range batch {
			combos[i] = rec.Combination
		}

		if err := client.PlayBatch(ctx, r.cfg.Creds.GameURL, combos, r.cfg.Creds.Password); err != nil {
			logRunEvent(r.runLog, runLogEvent{
				TsMs:         time.Now().UnixMilli(),
				Event:        "batch",
				RunID:        r.runID,
				BatchSize:    len(batch),
				Combinations: combos,
				Err:          err.Error(),
				UptimeMs:     uptimeMs(startedAt),
			})
			return err
		}

		if err := led.Commit(batch); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		processed += len(batch)
		completed, total = led.Status()
		r.sink.OnProgress(total, completed)
		r.sink.OnProcessedCount(processed)
		logRunEvent(r.runLog, runLogEvent{
			TsMs:         time.Now().UnixMilli(),
			Event:        "batch",
			RunID:        r.runID,
			BatchSize:    len(batch),
			Combinations: combos,
			Completed:    completed,
			Total:        total,
			Ok:           true,
			UptimeMs:     uptimeMs(startedAt),
		})
		log.Printf("Batch committed (%d/%d)", completed, total)

		if err := r.sleepDelay(ctx); err != nil {
			return err
		}
	}
}

// waitControl is the between-batches safe point: it blocks while paused
// (re-polling every 5s) and converts an observed stop into ErrStopped. An
// in-flight batch is never interrupted; this is the only place a stop
// takes effect.
func (r *Runner) waitControl(ctx context.Context) error {
	paused := false
	for {
		if r.control.StopRequested() {
			log.Printf("Stop requested by operator")
			return ErrStopped
		}
		if r.control.State() == Play {
			return nil
		}
		if !paused {
			paused = true
			log.Printf("Paused; waiting for play")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PausePoll):
		}
	}
}

// sleepDelay waits a duration drawn uniformly from the configured range.
func (r *Runner) sleepDelay(ctx context.Context) error {
	min, max := r.cfg.MinDelay, r.cfg.MaxDelay
	if dp, ok := r.control.(DelayProvider); ok {
		min, max = dp.DelayRange()
	}
	d := min
	if max > min {
		d += rand.N(max - min)
	}
	log.Printf("Sleeping %s before the next batch", d.Round(time.Second))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
