package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, `
payer_endpoints:
  aetna: https://example.test/aetna/toc.json
cpt_whitelist:
  - "99213"
  - "99214"
batch_size: 5000
parallel_workers: 2
output:
  local_dir: /tmp/mrf
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BatchSize != 5000 {
		t.Errorf("expected batch_size 5000, got %d", cfg.BatchSize)
	}
	if cfg.PayerEndpoints["aetna"] != "https://example.test/aetna/toc.json" {
		t.Errorf("unexpected payer_endpoints: %+v", cfg.PayerEndpoints)
	}
	if cfg.SchemaVersion != "1.0" {
		t.Errorf("expected default schema_version to survive merge, got %q", cfg.SchemaVersion)
	}
}

func TestLoadMissingPayerEndpointsFails(t *testing.T) {
	path := writeTestConfig(t, `
cpt_whitelist: ["99213"]
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing payer_endpoints")
	}
}

func TestLoadEmptyWhitelistDisablesFiltering(t *testing.T) {
	path := writeTestConfig(t, `
payer_endpoints:
  aetna: https://example.test/toc.json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("empty cpt_whitelist should be a valid no-filtering config, got: %v", err)
	}
	if len(cfg.CPTWhitelist) != 0 {
		t.Errorf("expected empty whitelist, got %v", cfg.CPTWhitelist)
	}
}

func TestEnvOverridesS3Bucket(t *testing.T) {
	path := writeTestConfig(t, `
payer_endpoints:
  aetna: https://example.test/toc.json
cpt_whitelist: ["99213"]
`)
	t.Setenv("PIPELINE_S3_BUCKET", "my-override-bucket")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.S3Bucket != "my-override-bucket" {
		t.Errorf("expected env override to win, got %q", cfg.Output.S3Bucket)
	}
}

func TestWhitelistSetContainsAllCodes(t *testing.T) {
	cfg := Default()
	cfg.CPTWhitelist = []string{"99213", "99214"}
	set := cfg.WhitelistSet()
	if _, ok := set["99213"]; !ok {
		t.Error("expected 99213 in whitelist set")
	}
	if _, ok := set["99999"]; ok {
		t.Error("expected 99999 not in whitelist set")
	}
}
