package orchestrator

import "time"

// Report is the JSON summary emitted at the end of a run, mirroring the
// statistics dict the original pipeline accumulates across process_all_payers
// / process_payer / process_mrf_file.
type Report struct {
	PayersProcessed        int       `json:"payers_processed"`
	TotalFilesFound        int       `json:"total_files_found"`
	FilesProcessed         int       `json:"files_processed"`
	FilesSucceeded         int       `json:"files_succeeded"`
	FilesFailed            int       `json:"files_failed"`
	RecordsExtracted       int64     `json:"records_extracted"`
	RecordsValidated       int64     `json:"records_validated"`
	Uploads                int       `json:"uploads"`
	ProcessingStart        time.Time `json:"processing_start"`
	ProcessingTimeSeconds  float64   `json:"processing_time_seconds"`
	ProcessingRatePerSecond float64  `json:"processing_rate_per_second"`
	CompletionTime         time.Time `json:"completion_time"`
	Errors                 []string  `json:"errors"`
}

// finalize computes the derived timing fields once a run has finished.
func (r *Report) finalize(now time.Time) {
	r.CompletionTime = now
	r.ProcessingTimeSeconds = now.Sub(r.ProcessingStart).Seconds()
	if r.ProcessingTimeSeconds > 0 {
		r.ProcessingRatePerSecond = float64(r.RecordsExtracted) / r.ProcessingTimeSeconds
	}
}
