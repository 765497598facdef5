// Package output writes and reads the run report JSON document a pipeline
// invocation emits, grounded on the teacher's internal/output.WriteResults.
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chrscato/bph-tic/internal/orchestrator"
)

// WriteReport writes a run Report as indented JSON to outputPath, or to
// stdout when outputPath is "-".
func WriteReport(outputPath string, report *orchestrator.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if outputPath == "-" {
		_, err = os.Stdout.Write(data)
		fmt.Fprintln(os.Stdout)
		return err
	}

	return os.WriteFile(outputPath, data, 0o644)
}

// ReadReport reads a previously written run Report back from disk, used by
// the report CLI subcommand.
func ReadReport(path string) (*orchestrator.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}

	var report orchestrator.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &report, nil
}
