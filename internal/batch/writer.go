package batch

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/chrscato/bph-tic/internal/mrf"
)

const (
	uploadMaxAttempts = 3
	uploadMaxBackoff  = 10 * time.Second
)

// Sink is the destination a flushed batch file is handed to after being
// written locally. A nil Sink means local-only output, per spec.md §4.8
// ("writes are local when no remote sink is configured").
type Sink interface {
	UploadFile(ctx context.Context, localPath, key string) error
}

// Writer accumulates rate/organization/provider rows and flushes them to
// partitioned Parquet files, grounded on gyeh-pricetool/in_network/parquet.go's
// parquet.GenericWriter[T] + Snappy pattern.
type Writer struct {
	localDir   string
	prefix     string
	sink       Sink
	batchSize  int
	payer      string
	plan       string
	runTS      string

	rateBatch []RateRow
	orgBatch  []OrganizationRow
	provBatch []ProviderRow

	rateBatchIdx int
	orgBatchIdx  int
	provBatchIdx int

	seenOrgs  map[string]struct{}
	seenProvs map[string]struct{}

	uploadCount int
}

// New creates a Writer for one (payer, file) pair. runTS is a timestamp the
// caller shares across the files it writes together, so their batch file
// names sort together.
func New(localDir, prefix string, sink Sink, batchSize int, payerName, planName string, runTS time.Time) *Writer {
	return &Writer{
		localDir:  localDir,
		prefix:    prefix,
		sink:      sink,
		batchSize: batchSize,
		payer:     payerName,
		plan:      planName,
		runTS:     runTS.UTC().Format("20060102T150405"),
		seenOrgs:  map[string]struct{}{},
		seenProvs: map[string]struct{}{},
	}
}

// AddRate appends a rate row, flushing the rates batch if it has reached
// batchSize.
func (w *Writer) AddRate(ctx context.Context, row RateRow) error {
	w.rateBatch = append(w.rateBatch, row)
	if len(w.rateBatch) >= w.batchSize {
		return w.flushRates(ctx)
	}
	return nil
}

// AddOrganization appends an organization row if its UUID hasn't already
// been emitted for this file, matching the per-file dedup set in spec.md §3.
func (w *Writer) AddOrganization(row OrganizationRow) {
	if _, seen := w.seenOrgs[row.OrganizationUUID]; seen {
		return
	}
	w.seenOrgs[row.OrganizationUUID] = struct{}{}
	w.orgBatch = append(w.orgBatch, row)
}

// AddProvider appends a provider row if its UUID hasn't already been
// emitted for this file.
func (w *Writer) AddProvider(row ProviderRow) {
	if _, seen := w.seenProvs[row.ProviderUUID]; seen {
		return
	}
	w.seenProvs[row.ProviderUUID] = struct{}{}
	w.provBatch = append(w.provBatch, row)
}

// FlushTail drains all remaining batches, regardless of size, matching the
// orchestrator's FLUSH_TAIL transition.
func (w *Writer) FlushTail(ctx context.Context) error {
	if err := w.flushRates(ctx); err != nil {
		return err
	}
	if err := w.flushOrganizations(ctx); err != nil {
		return err
	}
	return w.flushProviders(ctx)
}

func (w *Writer) flushRates(ctx context.Context) error {
	if len(w.rateBatch) == 0 {
		return nil
	}
	w.rateBatchIdx++
	path, key := w.artifactPaths("rates", w.rateBatchIdx)
	if err := writeParquet(path, w.rateBatch); err != nil {
		return err
	}
	w.rateBatch = w.rateBatch[:0]
	return w.upload(ctx, path, key)
}

func (w *Writer) flushOrganizations(ctx context.Context) error {
	if len(w.orgBatch) == 0 {
		return nil
	}
	w.orgBatchIdx++
	path, key := w.artifactPaths("organizations", w.orgBatchIdx)
	if err := writeParquet(path, w.orgBatch); err != nil {
		return err
	}
	w.orgBatch = w.orgBatch[:0]
	return w.upload(ctx, path, key)
}

func (w *Writer) flushProviders(ctx context.Context) error {
	if len(w.provBatch) == 0 {
		return nil
	}
	w.provBatchIdx++
	path, key := w.artifactPaths("providers", w.provBatchIdx)
	if err := writeParquet(path, w.provBatch); err != nil {
		return err
	}
	w.provBatch = w.provBatch[:0]
	return w.upload(ctx, path, key)
}

// upload retries a failed sink upload with exponential backoff, grounded on
// fetch.Client's doWithRetry. Once attempts are exhausted, it escalates to a
// per-file fatal mrf.SinkError.
func (w *Writer) upload(ctx context.Context, path, key string) error {
	if w.sink == nil {
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < uploadMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			if delay > uploadMaxBackoff {
				delay = uploadMaxBackoff
			}
			select {
			case <-ctx.Done():
				return &mrf.SinkError{Target: key, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		if err := w.sink.UploadFile(ctx, path, key); err != nil {
			lastErr = err
			continue
		}
		w.uploadCount++
		return nil
	}

	return &mrf.SinkError{Target: key, Err: lastErr}
}

// UploadCount returns how many batch artifacts this Writer has
// successfully uploaded to its Sink so far. Always 0 for local-only
// writers (nil Sink).
func (w *Writer) UploadCount() int { return w.uploadCount }

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// artifactPaths builds the local path and remote key for one batch file,
// following the partition template from spec.md §4.8:
// <prefix>/<table>/payer=<payer>/date=<YYYY-MM-DD>/<payer>_<plan_safe>_<run_ts>_<table>_batch_<NNNN>_<hhmmss>.parquet
func (w *Writer) artifactPaths(table string, batchIdx int) (localPath, remoteKey string) {
	planSafe := nonAlphanumeric.ReplaceAllString(w.plan, "_")
	date := time.Now().UTC().Format("2006-01-02")
	hhmmss := time.Now().UTC().Format("150405")

	name := fmt.Sprintf("%s_%s_%s_%s_batch_%04d_%s.parquet",
		w.payer, planSafe, w.runTS, table, batchIdx, hhmmss)

	relDir := filepath.Join(table, fmt.Sprintf("payer=%s", w.payer), fmt.Sprintf("date=%s", date))
	localPath = filepath.Join(w.localDir, relDir, name)
	remoteKey = strings.TrimPrefix(filepath.ToSlash(filepath.Join(w.prefix, relDir, name)), "/")
	return localPath, remoteKey
}

// writeParquet writes rows to a new Snappy-compressed Parquet file at path,
// creating parent directories as needed.
func writeParquet[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating batch directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating parquet file %s: %w", path, err)
	}

	w := parquet.NewGenericWriter[T](f, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		w.Close()
		f.Close()
		return fmt.Errorf("writing parquet rows to %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing parquet writer for %s: %w", path, err)
	}
	return f.Close()
}
