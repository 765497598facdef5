// Package orchestrator implements the Pipeline Orchestrator (C9): the
// top-level payer→file→row state machine described in spec.md §4.9,
// grounded on production_etl_pipeline.py's process_all_payers /
// process_payer / process_mrf_file and on the teacher's internal/worker
// (bounded concurrency over a list of work items, per-item progress
// tracking, accumulated results returned to the caller).
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/chrscato/bph-tic/internal/batch"
	"github.com/chrscato/bph-tic/internal/fetch"
	"github.com/chrscato/bph-tic/internal/identity"
	"github.com/chrscato/bph-tic/internal/mrf"
	"github.com/chrscato/bph-tic/internal/normalize"
	"github.com/chrscato/bph-tic/internal/payer"
	"github.com/chrscato/bph-tic/internal/progress"
	"github.com/chrscato/bph-tic/internal/quality"
	"github.com/chrscato/bph-tic/internal/stream"
	"github.com/chrscato/bph-tic/internal/toc"
	"github.com/chrscato/bph-tic/internal/worker"
)

// Config carries the run-wide settings the orchestrator needs, narrowed
// from internal/config.Config to exactly what this package consumes (the
// config loader itself is out of scope per spec.md §1).
type Config struct {
	PayerEndpoints     map[string]string
	CPTWhitelist       map[string]struct{}
	BatchSize          int
	ParallelWorkers    int
	MaxFilesPerPayer   int
	MaxRecordsPerFile  int
	OutputLocalDir     string
	OutputPrefix       string
	ProcessingVersion  string
}

// Orchestrator drives a full pipeline run: DISCOVER_PAYER → FOR_EACH_FILE →
// STREAM → FLUSH_TAIL → NEXT_PAYER → REPORT, per spec.md §4.9.
type Orchestrator struct {
	Fetch    *fetch.Client
	Sink     batch.Sink // nil: local-only output, per spec.md §4.8
	Progress progress.Manager
	Config   Config
}

// New builds an Orchestrator wired with a fresh Fetcher and the given sink
// (nil for local-only runs).
func New(cfg Config, sink batch.Sink, mgr progress.Manager) *Orchestrator {
	if mgr == nil {
		mgr = &progress.NoopManager{}
	}
	return &Orchestrator{
		Fetch:    fetch.New(),
		Sink:     sink,
		Progress: mgr,
		Config:   cfg,
	}
}

// payerOutcome is the bounded message one payer worker sends back to Run;
// Report is mutated only on the calling goroutine, per spec.md §5's "no
// global locks; per-payer state confined to its worker" rule.
type payerOutcome struct {
	payerName       string
	filesFound      int
	filesProcessed  int
	filesSucceeded  int
	filesFailed     int
	recordsExtracted int64
	recordsValidated int64
	uploads         int
	errors          []string
}

// Run executes one full pipeline invocation and returns the final Report.
// It never returns an error for per-payer or per-file failures — those are
// recorded in Report.Errors, per spec.md §7 ("no exceptions cross the run
// boundary except ConfigError"). Cancellation via ctx is cooperative: it is
// observed at the next suspension point (an HTTP read, a JSON event
// boundary, a Parquet flush, an upload) in each in-flight worker.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	report := &Report{ProcessingStart: time.Now()}

	if o.Config.OutputLocalDir != "" {
		o.Progress.StartDiskMonitor(o.Config.OutputLocalDir)
		defer o.Progress.StopDiskMonitor()
	}

	names := make([]string, 0, len(o.Config.PayerEndpoints))
	for name := range o.Config.PayerEndpoints {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic payer order across reruns

	pool := worker.NewPool[payerOutcome](o.Config.ParallelWorkers)
	outcomes := pool.Run(ctx, names, func(ctx context.Context, name string) payerOutcome {
		return o.processPayer(ctx, name, o.Config.PayerEndpoints[name])
	})

	for _, out := range outcomes {
		report.PayersProcessed++
		report.TotalFilesFound += out.filesFound
		report.FilesProcessed += out.filesProcessed
		report.FilesSucceeded += out.filesSucceeded
		report.FilesFailed += out.filesFailed
		report.RecordsExtracted += out.recordsExtracted
		report.RecordsValidated += out.recordsValidated
		report.Uploads += out.uploads
		report.Errors = append(report.Errors, out.errors...)
	}

	o.Progress.SetOverallStats(report.FilesSucceeded, report.FilesFailed, report.RecordsExtracted)

	report.finalize(time.Now())
	return report
}

// processPayer implements DISCOVER_PAYER → FOR_EACH_FILE → STREAM →
// FLUSH_TAIL for one payer. A discovery failure marks the whole payer
// failed (non-fatal to the run); a per-file failure marks only that file
// failed and processing continues with the next file.
func (o *Orchestrator) processPayer(ctx context.Context, name, indexURL string) payerOutcome {
	out := payerOutcome{payerName: name}
	logger := slog.With("payer", name)

	descriptors, err := toc.FetchAndResolve(ctx, o.Fetch, indexURL)
	if err != nil {
		msg := fmt.Sprintf("payer %s: discovering files: %v", name, err)
		logger.Error("discover_payer_failed", "error", err)
		out.errors = append(out.errors, msg)
		return out
	}
	out.filesFound = len(descriptors)

	if o.Config.MaxFilesPerPayer > 0 && len(descriptors) > o.Config.MaxFilesPerPayer {
		descriptors = descriptors[:o.Config.MaxFilesPerPayer]
	}

	payerUUID := identity.Payer(name, "")
	handler := payer.Get(name)
	runTS := time.Now()

	for _, d := range descriptors {
		if ctx.Err() != nil {
			out.errors = append(out.errors, fmt.Sprintf("payer %s: cancelled", name))
			break
		}

		// allowed_amounts files are recognized and routed, not parsed —
		// the allowed-amounts variant is out of scope per spec.md §1.
		if d.Kind == mrf.KindAllowedAmounts {
			logger.Info("routing_allowed_amounts", "url", d.URL)
			continue
		}

		out.filesProcessed++
		tracker := o.Progress.NewTracker(out.filesProcessed-1, len(descriptors), fileNameFromURL(d.URL))
		tracker.SetStage("streaming")

		extracted, validated, uploads, err := o.processFile(ctx, name, payerUUID, handler, d, runTS, tracker)
		out.recordsExtracted += extracted
		out.recordsValidated += validated
		out.uploads += uploads
		if err != nil {
			out.filesFailed++
			msg := fmt.Sprintf("payer %s: file %s: %v", name, d.URL, err)
			logger.Error("file_failed", "url", d.URL, "error", err)
			out.errors = append(out.errors, msg)
			tracker.LogWarning(err.Error())
			tracker.Done()
			continue
		}
		out.filesSucceeded++
		tracker.SetCounter("records", extracted)
		tracker.Done()
	}
	o.Progress.Wait()

	return out
}

// processFile implements STREAM → FLUSH_TAIL for one MRF file: fetch the
// provider-reference table (if any), stream-parse the body, normalize and
// score each tuple, and write the three output batches. Partial batches
// accumulated before a parse error are still flushed, per spec.md §4.9.
func (o *Orchestrator) processFile(ctx context.Context, payerName, payerUUID string, handler payer.Handler, d mrf.Descriptor, runTS time.Time, tracker progress.Tracker) (extracted, validated int64, uploads int, err error) {
	var refTable map[string]mrf.ProviderInfo
	if d.ProviderReferenceURL != "" {
		refTable, err = o.loadReferenceTable(ctx, d.ProviderReferenceURL)
		if err != nil {
			// A missing/unreadable reference file degrades to unresolved
			// references (spec.md §4.4); it is not fatal to the file.
			slog.Warn("provider_reference_fetch_failed", "url", d.ProviderReferenceURL, "error", err)
		}
	}

	rc, size, err := o.Fetch.OpenStream(ctx, d.URL)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("opening stream: %w", err)
	}
	defer rc.Close()

	var reader io.Reader = rc
	if tracker != nil && size > 0 {
		reader = &trackedReader{r: rc, total: size, tracker: tracker}
	}

	w := batch.New(o.Config.OutputLocalDir, o.Config.OutputPrefix, o.Sink, o.Config.BatchSize, payerName, d.PlanName, runTS)

	normCfg := normalize.Config{CPTWhitelist: o.Config.CPTWhitelist, ProcessingVersion: o.Config.ProcessingVersion}
	extractedAt := time.Now().UTC()

	var recordCount int64
	skipCounts := map[mrf.SkipReason]int{}

	emit := func(t mrf.RawRateTuple) {
		if o.Config.MaxRecordsPerFile > 0 && recordCount >= int64(o.Config.MaxRecordsPerFile) {
			return
		}
		rate, skipReason, ok := normalize.Normalize(normCfg, t, extractedAt)
		if !ok {
			skipCounts[skipReason]++
			return
		}

		orgTIN, orgName, provNPI, provName := providerFields(t.ProviderInfo)
		orgUUID := identity.Organization(orgTIN, orgName)
		rate.PayerUUID = payerUUID
		rate.OrganizationUUID = orgUUID
		rate.PlanDetails = mrf.PlanDetails{
			PlanName:   d.PlanName,
			PlanID:     d.PlanID,
			MarketType: d.PlanMarketType,
		}
		rate.RateUUID = identity.Rate(payerUUID, orgUUID, rate.ServiceCode, rate.NegotiatedRate, rate.ContractPeriod.Expiration)
		quality.Validate(&rate)

		recordCount++
		extracted++
		if rate.QualityFlags.IsValidated {
			validated++
		}

		if err := w.AddRate(ctx, batch.RateRowFrom(rate)); err != nil {
			slog.Error("rate_flush_failed", "url", d.URL, "error", err)
		}
		w.AddOrganization(batch.OrganizationRowFrom(mrf.Organization{
			OrganizationUUID: orgUUID,
			TIN:              orgTIN,
			Name:             normalize.OrganizationName(orgTIN, orgName),
			NPICount:         rate.ProviderNetwork.NPICount,
		}))
		if provNPI != "" {
			w.AddProvider(batch.ProviderRowFrom(mrf.Provider{
				ProviderUUID:     identity.Provider(provNPI),
				NPI:              provNPI,
				OrganizationUUID: orgUUID,
				Name:             provName,
			}))
		}
	}

	onSkip := func(reason mrf.SkipReason) {
		skipCounts[reason]++
		slog.Info(string(reason), "url", d.URL)
	}

	parseErr := stream.Parse(reader, d.URL, handler, refTable, emit, onSkip, stream.WithWhitelistFilter(o.Config.CPTWhitelist))

	// Partial batches from rows emitted before a structural parse error
	// are still valid and must be flushed, per spec.md §4.9.
	if flushErr := w.FlushTail(ctx); flushErr != nil {
		if parseErr == nil {
			parseErr = fmt.Errorf("flushing tail batches: %w", flushErr)
		}
	}
	uploads = w.UploadCount()

	return extracted, validated, uploads, parseErr
}

// loadReferenceTable fetches and decodes a standalone provider-reference
// document referenced by an MRF descriptor.
func (o *Orchestrator) loadReferenceTable(ctx context.Context, url string) (map[string]mrf.ProviderInfo, error) {
	rc, _, err := o.Fetch.OpenStream(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return stream.DecodeReferenceFile(rc)
}

// providerFields extracts the organization/provider attribution fields a
// ProviderInfo carries. internal/stream reads those fields from any of several
// shapes (direct scalars, nested tin.value, or a providers[] entry) and has
// already flattened them into a single ProviderInfo by the time it reaches
// here.
func providerFields(p *mrf.ProviderInfo) (orgTIN, orgName, npi, provName string) {
	if p == nil || p.Missing {
		return "", "", "", ""
	}
	return p.TIN.Value, p.Name, p.NPI, p.Name
}

// fileNameFromURL derives a short label for progress display from an MRF
// descriptor's URL, stripping query parameters.
func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return rawURL
	}
	return name
}

// trackedReader reports bytes read against a known total to a Tracker,
// mirroring the teacher's progressReader (internal/worker/download.go).
type trackedReader struct {
	r       io.Reader
	total   int64
	read    int64
	tracker progress.Tracker
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.read += int64(n)
	t.tracker.SetProgress(t.read, t.total)
	return n, err
}

