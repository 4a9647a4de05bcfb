package importer

import (
	"context"
	"time"
)

// Report is the archived summary of a finished run.
type Report struct {
	BatchID     string         `json:"batchId"`
	Filename    string         `json:"filename"`
	Checksum    string         `json:"checksum"`
	Result      *ProcessResult `json:"result"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// ReportSink stores run reports. Failures are logged and never change the
// outcome of a run.
type ReportSink interface {
	WriteReport(ctx context.Context, r *Report) error
}
