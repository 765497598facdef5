package stream

import (
	"strings"
	"testing"

	"github.com/chrscato/bph-tic/internal/mrf"
	"github.com/chrscato/bph-tic/internal/payer"
)

type defaultPassthrough struct{}

func (defaultPassthrough) ParseInNetwork(item payer.Item) []payer.Item { return []payer.Item{item} }

func TestParseStandardShapeEmitsOneTuplePerProvider(t *testing.T) {
	doc := `{
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

	var tuples []mrf.RawRateTuple
	err := Parse(strings.NewReader(doc), "https://example.test/mrf.json", defaultPassthrough{}, nil,
		func(t mrf.RawRateTuple) { tuples = append(tuples, t) },
		func(mrf.SkipReason) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tuples) != 1 {
		t.Fatalf("expected 1 tuple, got %d", len(tuples))
	}
	tup := tuples[0]
	if tup.BillingCode != "99213" || tup.NegotiatedRate != 125.00 {
		t.Errorf("unexpected tuple: %+v", tup)
	}
	if len(tup.ServiceCodes) != 1 || tup.ServiceCodes[0] != "11" {
		t.Errorf("expected service_codes=[11], got %v", tup.ServiceCodes)
	}
	if tup.ProviderInfo == nil || tup.ProviderInfo.NPI != "1234567890" {
		t.Errorf("expected provider npi 1234567890, got %+v", tup.ProviderInfo)
	}
}

func TestParseSkipsNullRateOncePerFile(t *testing.T) {
	doc := `{
		"in_network": [
			{"billing_code": "99213", "negotiated_rates": [
				{"negotiated_prices": [{"negotiated_rate": 100}]}
			]},
			{"billing_code": "99214", "negotiated_rates": [
				{"negotiated_prices": [{"negotiated_rate": null}]}
			]},
			{"billing_code": "99215", "negotiated_rates": [
				{"negotiated_prices": [{"negotiated_rate": 200}]}
			]}
		]
	}`

	var tuples []mrf.RawRateTuple
	var skips []mrf.SkipReason
	err := Parse(strings.NewReader(doc), "u", defaultPassthrough{}, nil,
		func(t mrf.RawRateTuple) { tuples = append(tuples, t) },
		func(r mrf.SkipReason) { skips = append(skips, r) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tuples) != 2 {
		t.Fatalf("expected 2 tuples, got %d", len(tuples))
	}
	noRateSkips := 0
	for _, s := range skips {
		if s == mrf.SkipNoRate {
			noRateSkips++
		}
	}
	if noRateSkips != 1 {
		t.Errorf("expected exactly 1 skipping_price_no_rate event, got %d", noRateSkips)
	}
}

func TestParseResolvesProviderReferenceTable(t *testing.T) {
	doc := `{
		"in_network": [
			{
				"billing_code": "99213",
				"negotiated_rates": [
					{
						"provider_references": [42],
						"negotiated_prices": [{"negotiated_rate": 10}]
					}
				]
			}
		]
	}`

	refTable := map[string]mrf.ProviderInfo{
		"42": {NPI: "1111111111", Name: "Acme Group"},
	}

	var tuples []mrf.RawRateTuple
	err := Parse(strings.NewReader(doc), "u", defaultPassthrough{}, refTable,
		func(t mrf.RawRateTuple) { tuples = append(tuples, t) },
		func(mrf.SkipReason) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tuples) != 1 {
		t.Fatalf("expected 1 tuple, got %d", len(tuples))
	}
	if tuples[0].ProviderInfo == nil || tuples[0].ProviderInfo.NPI != "1111111111" {
		t.Errorf("expected resolved provider npi 1111111111, got %+v", tuples[0].ProviderInfo)
	}
}

func TestParseUnresolvedProviderReferenceMarksMissing(t *testing.T) {
	doc := `{
		"in_network": [
			{
				"billing_code": "99213",
				"negotiated_rates": [
					{
						"provider_references": [99],
						"negotiated_prices": [{"negotiated_rate": 10}]
					}
				]
			}
		]
	}`

	var tuples []mrf.RawRateTuple
	var skips []mrf.SkipReason
	err := Parse(strings.NewReader(doc), "u", defaultPassthrough{}, map[string]mrf.ProviderInfo{},
		func(t mrf.RawRateTuple) { tuples = append(tuples, t) },
		func(r mrf.SkipReason) { skips = append(skips, r) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tuples) != 1 || !tuples[0].ProviderInfo.Missing {
		t.Fatalf("expected one tuple with a missing provider reference, got %+v", tuples)
	}
	if len(skips) != 1 || skips[0] != mrf.SkipMissingProviderRef {
		t.Errorf("expected missing_provider_ref skip event, got %v", skips)
	}
}

func TestParseAllowedAmountsRootIsOutOfScope(t *testing.T) {
	doc := `{"allowed_amounts": [{"billing_code": "99213"}]}`

	called := false
	err := Parse(strings.NewReader(doc), "u", defaultPassthrough{}, nil,
		func(mrf.RawRateTuple) { called = true },
		func(mrf.SkipReason) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected no tuples emitted for an allowed_amounts root")
	}
}

func TestParseLegacyArrayRoot(t *testing.T) {
	doc := `[
		{"billing_code": "99213", "negotiated_rates": [
			{"negotiated_prices": [{"negotiated_rate": 50}]}
		]}
	]`

	var tuples []mrf.RawRateTuple
	err := Parse(strings.NewReader(doc), "u", defaultPassthrough{}, nil,
		func(t mrf.RawRateTuple) { tuples = append(tuples, t) },
		func(mrf.SkipReason) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tuples) != 1 || tuples[0].NegotiatedRate != 50 {
		t.Fatalf("expected 1 tuple from legacy array root, got %+v", tuples)
	}
}

func TestParseBCBSILFlattenedShape(t *testing.T) {
	doc := `{
		"in_network": [
			{
				"billing_code": "99213",
				"billing_code_type": "CPT",
				"negotiated_rates": [
					{
						"negotiated_prices": [
							{"negotiated_rate": 125.0, "negotiated_type": "negotiated", "billing_class": "professional", "service_code": "11"}
						],
						"provider_references": [1001, 1002]
					}
				]
			}
		]
	}`

	var tuples []mrf.RawRateTuple
	err := Parse(strings.NewReader(doc), "u", payer.Get("bcbs_il"), nil,
		func(t mrf.RawRateTuple) { tuples = append(tuples, t) },
		func(mrf.SkipReason) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tuples) != 2 {
		t.Fatalf("expected 2 tuples (one per provider reference), got %d", len(tuples))
	}
}
