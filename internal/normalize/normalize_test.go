package normalize

import (
	"testing"
	"time"

	"github.com/chrscato/bph-tic/internal/mrf"
)

func whitelist(codes ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}

func TestNormalizeDropsNonWhitelistedCode(t *testing.T) {
	cfg := Config{CPTWhitelist: whitelist("99213")}
	tuple := mrf.RawRateTuple{BillingCode: "99214", HasRate: true, NegotiatedRate: 100}

	_, reason, ok := Normalize(cfg, tuple, time.Now())
	if ok {
		t.Fatal("expected drop for non-whitelisted billing code")
	}
	if reason != mrf.SkipNotWhitelisted {
		t.Errorf("expected SkipNotWhitelisted, got %q", reason)
	}
}

func TestNormalizeEmptyWhitelistAcceptsAnyCode(t *testing.T) {
	cfg := Config{CPTWhitelist: nil}
	tuple := mrf.RawRateTuple{BillingCode: "99214", HasRate: true, NegotiatedRate: 100}

	_, reason, ok := Normalize(cfg, tuple, time.Now())
	if !ok {
		t.Fatalf("expected empty whitelist to disable filtering, got skip reason %q", reason)
	}
}

func TestNormalizeDropsMissingRate(t *testing.T) {
	cfg := Config{CPTWhitelist: whitelist("99213")}
	tuple := mrf.RawRateTuple{BillingCode: "99213", HasRate: false}

	_, reason, ok := Normalize(cfg, tuple, time.Now())
	if ok {
		t.Fatal("expected drop for absent rate")
	}
	if reason != mrf.SkipNoRate {
		t.Errorf("expected SkipNoRate, got %q", reason)
	}
}

func TestNormalizeDropsNonPositiveRate(t *testing.T) {
	cfg := Config{CPTWhitelist: whitelist("99213")}
	tuple := mrf.RawRateTuple{BillingCode: "99213", HasRate: true, NegotiatedRate: 0}

	_, reason, ok := Normalize(cfg, tuple, time.Now())
	if ok {
		t.Fatal("expected drop for non-positive rate")
	}
	if reason != mrf.SkipRateNotPositive {
		t.Errorf("expected SkipRateNotPositive, got %q", reason)
	}
}

func TestNormalizeKeepsRateAboveTenThousand(t *testing.T) {
	cfg := Config{CPTWhitelist: whitelist("99213")}
	tuple := mrf.RawRateTuple{BillingCode: "99213", HasRate: true, NegotiatedRate: 15000}

	r, reason, ok := Normalize(cfg, tuple, time.Now())
	if !ok {
		t.Fatalf("expected rate above 10000 to pass through normalization, got skip reason %q", reason)
	}
	if r.NegotiatedRate != 15000 {
		t.Errorf("expected negotiated rate preserved, got %v", r.NegotiatedRate)
	}
}

func TestNormalizeDefaultsRateType(t *testing.T) {
	cfg := Config{CPTWhitelist: whitelist("99213")}
	tuple := mrf.RawRateTuple{BillingCode: "99213", HasRate: true, NegotiatedRate: 150}

	r, _, ok := Normalize(cfg, tuple, time.Now())
	if !ok {
		t.Fatal("expected valid tuple to normalize")
	}
	if r.RateType != "negotiated" {
		t.Errorf("expected default rate_type=negotiated, got %q", r.RateType)
	}
}

func TestNormalizeFlattensProviderNPI(t *testing.T) {
	cfg := Config{CPTWhitelist: whitelist("99213")}
	tuple := mrf.RawRateTuple{
		BillingCode:    "99213",
		HasRate:        true,
		NegotiatedRate: 150,
		ProviderInfo:   &mrf.ProviderInfo{NPI: "1234567890"},
	}

	r, _, ok := Normalize(cfg, tuple, time.Now())
	if !ok {
		t.Fatal("expected valid tuple to normalize")
	}
	if len(r.ProviderNetwork.NPIList) != 1 || r.ProviderNetwork.NPIList[0] != "1234567890" {
		t.Errorf("unexpected npi list: %v", r.ProviderNetwork.NPIList)
	}
	if r.ProviderNetwork.NPICount != 1 {
		t.Errorf("expected npi_count=1, got %d", r.ProviderNetwork.NPICount)
	}
}

func TestNormalizeMissingProviderYieldsEmptyNPIList(t *testing.T) {
	cfg := Config{CPTWhitelist: whitelist("99213")}
	tuple := mrf.RawRateTuple{
		BillingCode:    "99213",
		HasRate:        true,
		NegotiatedRate: 150,
		ProviderInfo:   &mrf.ProviderInfo{Missing: true},
	}

	r, _, ok := Normalize(cfg, tuple, time.Now())
	if !ok {
		t.Fatal("expected valid tuple to normalize")
	}
	if len(r.ProviderNetwork.NPIList) != 0 {
		t.Errorf("expected empty npi list for missing provider reference, got %v", r.ProviderNetwork.NPIList)
	}
}

func TestOrganizationNameFallback(t *testing.T) {
	if got := OrganizationName("12-3456789", ""); got != "Organization-12-3456789" {
		t.Errorf("unexpected fallback name: %q", got)
	}
	if got := OrganizationName("12-3456789", "Acme Health"); got != "Acme Health" {
		t.Errorf("expected name to take precedence, got %q", got)
	}
}
