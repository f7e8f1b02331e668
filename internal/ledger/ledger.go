// Package ledger tracks wager combinations and their pending/completed
// status, backed by the operator's spreadsheet. The file is the single
// source of durable progress: a batch is only as done as the last saved
// sheet says it is.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Status of one combination row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Record is one spreadsheet row's combination and status. Row is the
// zero-based data row index (header excluded).
type Record struct {
	Row         int
	Combination string
	Status      Status
}

// InvalidInputError means the spreadsheet path or shape is unusable. The
// run never starts on one of these.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid spreadsheet: " + e.Reason
}

// fileMu serializes every spreadsheet read/write in the process. The
// pre-flight Validate and the worker's Load/Commit touch the same file
// from different goroutines.
var fileMu sync.Mutex

// Ledger is the loaded sheet: all columns are preserved so the file
// round-trips on save, with the combination and status columns tracked.
type Ledger struct {
	path      string
	sheet     string
	header    []string
	rows      [][]string
	combIdx   int
	statusIdx int
	records   []Record
}

func checkPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &InvalidInputError{Reason: fmt.Sprintf("path %s does not exist", path)}
	}
	if !info.Mode().IsRegular() {
		return &InvalidInputError{Reason: fmt.Sprintf("path %s is not a file", path)}
	}
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return &InvalidInputError{Reason: fmt.Sprintf("path %s is not an .xlsx spreadsheet", path)}
	}
	return nil
}

func readSheet(path string) (sheet string, rows [][]string, err error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheet = f.GetSheetName(0)
	rows, err = f.GetRows(sheet)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	return sheet, rows, nil
}

// Load reads the spreadsheet and normalizes it: a case-insensitive
// "combination" column is required; a missing status column initializes
// every row to pending, and any unrecognized status value is coerced back
// to pending.
func Load(path string) (*Ledger, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := checkPath(path); err != nil {
		return nil, err
	}
	sheet, raw, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &InvalidInputError{Reason: "spreadsheet has no header row"}
	}

	l := &Ledger{
		path:      path,
		sheet:     sheet,
		header:    raw[0],
		combIdx:   -1,
		statusIdx: -1,
	}
	for i, name := range l.header {
		switch {
		case strings.EqualFold(name, "combination"):
			l.combIdx = i
			l.header[i] = "Combination"
		case strings.EqualFold(name, "status"):
			l.statusIdx = i
			l.header[i] = "Status"
		}
	}
	if l.combIdx < 0 {
		return nil, &InvalidInputError{Reason: "combination column not found"}
	}
	if l.statusIdx < 0 {
		l.header = append(l.header, "Status")
		l.statusIdx = len(l.header) - 1
	}

	for _, row := range raw[1:] {
		for len(row) < len(l.header) {
			row = append(row, "")
		}
		if Status(row[l.statusIdx]) != StatusCompleted {
			row[l.statusIdx] = string(StatusPending)
		}
		l.rows = append(l.rows, row)
		l.records = append(l.records, Record{
			Row:         len(l.rows) - 1,
			Combination: strings.TrimSpace(row[l.combIdx]),
			Status:      Status(row[l.statusIdx]),
		})
	}
	return l, nil
}

// Validate is the read-only pre-flight check: progress counts plus whether
// a combination column exists. Any read error reports (0, 0, false).
func Validate(path string) (completed, total int, hasCombination bool) {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := checkPath(path); err != nil {
		return 0, 0, false
	}
	_, raw, err := readSheet(path)
	if err != nil || len(raw) == 0 {
		return 0, 0, false
	}

	statusIdx := -1
	for i, name := range raw[0] {
		switch {
		case strings.EqualFold(name, "combination"):
			hasCombination = true
		case strings.EqualFold(name, "status"):
			statusIdx = i
		}
	}
	total = len(raw) - 1
	if statusIdx >= 0 {
		for _, row := range raw[1:] {
			if statusIdx < len(row) && Status(row[statusIdx]) == StatusCompleted {
				completed++
			}
		}
	}
	return completed, total, hasCombination
}

// Path returns the spreadsheet location the ledger was loaded from.
func (l *Ledger) Path() string {
	return l.path
}

// NextBatch returns up to size pending records in row order. An empty
// slice means every combination is done.
func (l *Ledger) NextBatch(size int) []Record {
	var batch []Record
	for _, r := range l.records {
		if r.Status != StatusPending {
			continue
		}
		batch = append(batch, r)
		if len(batch) == size {
			break
		}
	}
	return batch
}

// Commit marks every record in batch completed and rewrites the whole
// sheet in place. The batch transitions as a unit: the file is written
// atomically (tmp + rename), so a crash leaves the previous consistent
// state on disk.
func (l *Ledger) Commit(batch []Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	for _, r := range batch {
		if r.Row < 0 || r.Row >= len(l.rows) {
			return fmt.Errorf("commit: row %d out of range", r.Row)
		}
	}
	for _, r := range batch {
		l.rows[r.Row][l.statusIdx] = string(StatusCompleted)
		l.records[r.Row].Status = StatusCompleted
	}
	return l.save()
}

func (l *Ledger) save() error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if l.sheet != "" && l.sheet != sheet {
		if err := f.SetSheetName(sheet, l.sheet); err != nil {
			return err
		}
		sheet = l.sheet
	}

	if err := f.SetSheetRow(sheet, "A1", &l.header); err != nil {
		return err
	}
	for i := range l.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &l.rows[i]); err != nil {
			return err
		}
	}

	// Write through a tmp file and rename so a crash mid-write leaves the
	// previous sheet intact. SaveAs insists on an .xlsx extension, so the
	// tmp file is written directly.
	tmp := l.path + ".tmp"
	tf, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := f.Write(tf); err != nil {
		tf.Close()
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// Status counts completed rows over the in-memory state.
func (l *Ledger) Status() (completed, total int) {
	for _, r := range l.records {
		if r.Status == StatusCompleted {
			completed++
		}
	}
	return completed, len(l.records)
}
