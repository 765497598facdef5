package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrscato/bph-tic/internal/mrf"
)

type fakeSink struct {
	uploaded []string
}

func (f *fakeSink) UploadFile(ctx context.Context, localPath, key string) error {
	if _, err := os.Stat(localPath); err != nil {
		return err
	}
	f.uploaded = append(f.uploaded, key)
	return nil
}

type alwaysFailSink struct{}

func (alwaysFailSink) UploadFile(ctx context.Context, localPath, key string) error {
	return errors.New("upload rejected")
}

func testRow(serviceCode string) RateRow {
	return RateRowFrom(mrf.Rate{
		RateUUID:       "rate-" + serviceCode,
		PayerUUID:      "payer-1",
		ServiceCode:    serviceCode,
		NegotiatedRate: 100,
		QualityFlags:   mrf.QualityFlags{IsValidated: true, ConfidenceScore: 1.0},
	})
}

func TestAddRateFlushesAtThreshold(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	w := New(dir, "mrf-output", sink, 2, "aetna", "Open Access Plan", time.Unix(0, 0))

	ctx := context.Background()
	if err := w.AddRate(ctx, testRow("11")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.uploaded) != 0 {
		t.Fatalf("expected no flush before threshold, got %d uploads", len(sink.uploaded))
	}
	if err := w.AddRate(ctx, testRow("22")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.uploaded) != 1 {
		t.Fatalf("expected exactly 1 upload at threshold, got %d", len(sink.uploaded))
	}
	if len(w.rateBatch) != 0 {
		t.Errorf("expected batch to be cleared after flush, got %d rows", len(w.rateBatch))
	}
}

func TestFlushTailDrainsPartialBatches(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	w := New(dir, "mrf-output", sink, 100, "centene", "Ambetter", time.Unix(0, 0))

	ctx := context.Background()
	if err := w.AddRate(ctx, testRow("11")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.AddOrganization(OrganizationRowFrom(mrf.Organization{OrganizationUUID: "org-1", TIN: "12-3456789"}))
	w.AddProvider(ProviderRowFrom(mrf.Provider{ProviderUUID: "prov-1", NPI: "1234567890"}))

	if err := w.FlushTail(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.uploaded) != 3 {
		t.Fatalf("expected 3 uploads (rates, organizations, providers), got %d: %v", len(sink.uploaded), sink.uploaded)
	}
}

func TestAddOrganizationDedupesWithinFile(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "mrf-output", nil, 100, "horizon", "PPO", time.Unix(0, 0))

	row := OrganizationRowFrom(mrf.Organization{OrganizationUUID: "dup-org", TIN: "00-0000000"})
	w.AddOrganization(row)
	w.AddOrganization(row)
	if len(w.orgBatch) != 1 {
		t.Errorf("expected duplicate organization to be suppressed, got %d rows", len(w.orgBatch))
	}
}

func TestAddProviderDedupesWithinFile(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "mrf-output", nil, 100, "horizon", "PPO", time.Unix(0, 0))

	row := ProviderRowFrom(mrf.Provider{ProviderUUID: "dup-prov", NPI: "9999999999"})
	w.AddProvider(row)
	w.AddProvider(row)
	if len(w.provBatch) != 1 {
		t.Errorf("expected duplicate provider to be suppressed, got %d rows", len(w.provBatch))
	}
}

func TestArtifactPathsSanitizesPlanNameAndPartitionsByPayer(t *testing.T) {
	w := New("/tmp/out", "mrf-output", nil, 100, "bcbs_fl", "Blue Options (HMO)", time.Unix(0, 0))
	local, key := w.artifactPaths("rates", 1)

	wantDir := filepath.Join("rates", "payer=bcbs_fl")
	if !contains(local, wantDir) {
		t.Errorf("expected local path to contain %q, got %q", wantDir, local)
	}
	if !contains(key, "mrf-output/rates/payer=bcbs_fl") {
		t.Errorf("expected remote key to be prefixed, got %q", key)
	}
	if contains(key, "(") || contains(key, ")") || contains(key, " ") {
		t.Errorf("expected plan name to be sanitized in filename, got %q", key)
	}
}

func TestFlushNoopWhenBatchEmpty(t *testing.T) {
	sink := &fakeSink{}
	w := New(t.TempDir(), "mrf-output", sink, 10, "aetna", "Plan", time.Unix(0, 0))
	if err := w.FlushTail(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.uploaded) != 0 {
		t.Errorf("expected no uploads for empty batches, got %d", len(sink.uploaded))
	}
}

func TestFlushReturnsSinkErrorWhenUploadFails(t *testing.T) {
	w := New(t.TempDir(), "mrf-output", alwaysFailSink{}, 10, "aetna", "Plan", time.Unix(0, 0))
	if err := w.AddRate(context.Background(), testRow("11")); err != nil {
		t.Fatalf("unexpected error adding rate: %v", err)
	}

	// The deadline ends the wait before the first retry, so the failed
	// upload comes back as a SinkError without sleeping through the backoff.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := w.FlushTail(ctx)
	if err == nil {
		t.Fatal("expected an error from a sink that always fails")
	}
	var sinkErr *mrf.SinkError
	if !errors.As(err, &sinkErr) {
		t.Fatalf("expected *mrf.SinkError, got %T: %v", err, err)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
