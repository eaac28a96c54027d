package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report appends one CSV row per send result to a per-day file. Each
// Append opens, writes, syncs and closes the file so rows survive an
// interrupted run.
type Report struct {
	path string
}

func NewReport(dir string, day time.Time) *Report {
	return &Report{path: filepath.Join(dir, day.Format("20060102")+"_delivery_log.csv")}
}

func (r *Report) Path() string {
	return r.path
}

func deliveredFlag(delivered bool) string {
	if delivered {
		return "SI"
	}
	return "NO"
}

func (r *Report) Append(res SendResult) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write([]string{string(res.Address), deliveredFlag(res.Delivered), res.Detail}); err != nil {
		file.Close()
		return fmt.Errorf("failed to write report row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write report row: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync report: %w", err)
	}
	return file.Close()
}
