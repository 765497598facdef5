package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/chrscato/bph-tic/internal/progress"
)

const tocDoc = `{
	"reporting_structure": [
		{
			"reporting_plans": [
				{"plan_name": "Open Access Plan", "plan_id": "12345", "plan_market_type": "individual"}
			],
			"in_network_files": [
				{"description": "in-network rates", "location": "%s/in-network.json"}
			]
		}
	]
}`

const inNetworkDoc = `{
	"in_network": [
		{
			"billing_code": "99213",
			"billing_code_type": "CPT",
			"negotiated_rates": [
				{
					"provider_groups": [
						{"npi": "1234567890", "tin": "12-3456789"}
					],
					"negotiated_prices": [
						{"negotiated_rate": 125.00, "billing_class": "professional", "service_code": "11"}
					]
				}
			]
		}
	]
}`

func TestRunEndToEndSinglePayerSingleFile(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/toc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fmt.Sprintf(tocDoc, srv.URL)))
	})
	mux.HandleFunc("/in-network.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(inNetworkDoc))
	})

	dir := t.TempDir()
	cfg := Config{
		PayerEndpoints:    map[string]string{"testpayer": srv.URL + "/toc.json"},
		CPTWhitelist:      map[string]struct{}{"99213": {}},
		BatchSize:         100,
		ParallelWorkers:   2,
		OutputLocalDir:    dir,
		OutputPrefix:      "mrf-output",
		ProcessingVersion: "1.0.0-test",
	}

	orch := New(cfg, nil, &progress.NoopManager{})
	report := orch.Run(context.Background())

	if report.PayersProcessed != 1 {
		t.Errorf("PayersProcessed = %d, want 1", report.PayersProcessed)
	}
	if report.FilesSucceeded != 1 {
		t.Errorf("FilesSucceeded = %d, want 1; errors: %v", report.FilesSucceeded, report.Errors)
	}
	if report.RecordsExtracted != 1 {
		t.Errorf("RecordsExtracted = %d, want 1", report.RecordsExtracted)
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "rates", "payer=testpayer", "date=*", "*.parquet"))
	if len(matches) != 1 {
		t.Errorf("expected 1 rates parquet file, found %v", matches)
	}
}

func TestRunUnknownIndexShapeRecordsPayerError(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/toc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": true}`))
	})

	dir := t.TempDir()
	cfg := Config{
		PayerEndpoints:  map[string]string{"badpayer": srv.URL + "/toc.json"},
		CPTWhitelist:    map[string]struct{}{"99213": {}},
		BatchSize:       100,
		ParallelWorkers: 1,
		OutputLocalDir:  dir,
	}

	orch := New(cfg, nil, nil)
	report := orch.Run(context.Background())

	if report.PayersProcessed != 1 {
		t.Errorf("PayersProcessed = %d, want 1", report.PayersProcessed)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly 1", report.Errors)
	}
}
