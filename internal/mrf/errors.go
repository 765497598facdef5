package mrf

import "fmt"

// ConfigError signals a fatal problem with the run configuration. It is the
// only error kind allowed to cross the run boundary (spec.md §7).
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config error: " + e.Reason }

// UnknownIndexShapeError is raised when a Table-of-Contents document carries
// none of the three recognized top-level keys. Fatal for the payer it was
// discovered under, not for the run.
type UnknownIndexShapeError struct {
	URL string
}

func (e *UnknownIndexShapeError) Error() string {
	return fmt.Sprintf("unknown index shape at %s: expected one of reporting_structure, blobs, in_network_files", e.URL)
}

// TransientHTTPError wraps a retryable HTTP failure (5xx, connection reset,
// timeout, 408, 429). The Fetcher retries internally and only surfaces this
// after exhausting its retry budget.
type TransientHTTPError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientHTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient http error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("transient http error for %s: status %d", e.URL, e.StatusCode)
}

func (e *TransientHTTPError) Unwrap() error { return e.Err }

// PermanentHTTPError wraps a non-retryable HTTP failure (4xx other than 408
// and 429). Fatal for the file it was encountered on.
type PermanentHTTPError struct {
	URL        string
	StatusCode int
}

func (e *PermanentHTTPError) Error() string {
	return fmt.Sprintf("permanent http error for %s: status %d", e.URL, e.StatusCode)
}

// ParseError signals structural corruption that prevents the streaming
// parser from advancing further. Fatal for the current file; partial
// batches accumulated before the error are still flushed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SinkError wraps a batch flush or upload failure. Retried per-batch by the
// emitter; escalates to a per-file fatal error once retries are exhausted.
type SinkError struct {
	Target string
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error writing %s: %v", e.Target, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// RecordSkip is not an error in the Go sense — callers use SkipReason as a
// plain string to annotate a counter, never wrapped or returned as `error`.
// Kept here as named constants so the reasons are consistent across
// internal/stream, internal/normalize, and internal/orchestrator.
type SkipReason string

const (
	SkipNoRate             SkipReason = "skipping_price_no_rate"
	SkipNotWhitelisted     SkipReason = "billing_code_not_whitelisted"
	SkipRateNotPositive    SkipReason = "rate_not_positive"
	SkipMissingProviderRef SkipReason = "missing_provider_ref"
)
