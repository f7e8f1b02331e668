package run

import (
	"log"
	"time"

	"toto-gobet/internal/jsonl"
)

type runLogEvent struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`
	RunID string `json:"run_id,omitempty"`

	GameURL     string `json:"game_url,omitempty"`
	Spreadsheet string `json:"spreadsheet,omitempty"`

	// Per-batch fields.
	BatchSize    int      `json:"batch_size,omitempty"`
	Combinations []string `json:"combinations,omitempty"`
	Completed    int      `json:"completed,omitempty"`
	Total        int      `json:"total,omitempty"`

	Ok  bool   `json:"ok,omitempty"`
	Err string `json:"err,omitempty"`

	UptimeMs int64 `json:"uptime_ms,omitempty"`
}

func logRunEvent(w *jsonl.Writer, ev runLogEvent) {
	if w == nil {
		return
	}
	if err := w.Write(ev); err != nil {
		log.Printf("[warn] run log write failed: %v", err)
	}
}

func uptimeMs(startedAt time.Time) int64 {
	return time.Since(startedAt).Milliseconds()
}
