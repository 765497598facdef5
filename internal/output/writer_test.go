package output

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/chrscato/bph-tic/internal/orchestrator"
)

func TestWriteReportReadReportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	report := &orchestrator.Report{
		PayersProcessed:  2,
		FilesProcessed:   5,
		FilesSucceeded:   4,
		FilesFailed:      1,
		RecordsExtracted: 1000,
		Errors:           []string{"payer aetna: file x: timeout"},
		ProcessingStart:  time.Unix(0, 0).UTC(),
		CompletionTime:   time.Unix(10, 0).UTC(),
	}

	if err := WriteReport(path, report); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	got, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}

	if got.PayersProcessed != report.PayersProcessed {
		t.Errorf("PayersProcessed = %d, want %d", got.PayersProcessed, report.PayersProcessed)
	}
	if got.FilesFailed != report.FilesFailed {
		t.Errorf("FilesFailed = %d, want %d", got.FilesFailed, report.FilesFailed)
	}
	if len(got.Errors) != 1 || got.Errors[0] != report.Errors[0] {
		t.Errorf("Errors = %v, want %v", got.Errors, report.Errors)
	}
}

func TestReadReportMissingFile(t *testing.T) {
	if _, err := ReadReport(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing report file")
	}
}
