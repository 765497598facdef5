// Package normalize implements the Record Normalizer (C5): it turns a
// mrf.RawRateTuple produced by the streaming parser into a mrf.Rate ready
// for identity assignment and quality scoring, grounded on
// transform/normalize.py's normalize_record and
// production_etl_pipeline.py's create_rate_record/create_organization_record.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/chrscato/bph-tic/internal/mrf"
)

// Config carries the run-wide settings the normalizer needs per record.
type Config struct {
	CPTWhitelist      map[string]struct{}
	ProcessingVersion string
}

// Normalize drops a tuple that fails the whitelist or carries no usable
// rate, and otherwise maps it into a Rate with UUID fields left blank for
// internal/identity to fill in. A non-empty SkipReason means the tuple was
// dropped; ok is false in that case and the returned Rate is zero-valued.
//
// A rate above 10000 is never dropped here — only absent or non-positive
// rates are. The Quality Validator (internal/quality) is responsible for
// flagging out-of-bounds-high rates.
func Normalize(cfg Config, t mrf.RawRateTuple, extractedAt time.Time) (mrf.Rate, mrf.SkipReason, bool) {
	if len(cfg.CPTWhitelist) > 0 {
		if _, ok := cfg.CPTWhitelist[t.BillingCode]; !ok {
			return mrf.Rate{}, mrf.SkipNotWhitelisted, false
		}
	}

	if !t.HasRate {
		return mrf.Rate{}, mrf.SkipNoRate, false
	}
	if t.NegotiatedRate <= 0 {
		return mrf.Rate{}, mrf.SkipRateNotPositive, false
	}

	npiList := npiListFrom(t.ProviderInfo)

	rateType := t.NegotiatedType
	if rateType == "" {
		rateType = "negotiated"
	}

	r := mrf.Rate{
		ServiceCode:        t.BillingCode,
		ServiceDescription: t.Description,
		BillingCodeType:    t.BillingCodeType,
		NegotiatedRate:     t.NegotiatedRate,
		BillingClass:       t.BillingClass,
		RateType:           rateType,
		ServiceCodes:       t.ServiceCodes,
		ContractPeriod: mrf.ContractPeriod{
			Expiration: t.ExpirationDate,
		},
		ProviderNetwork: mrf.ProviderNetwork{
			NPIList:      npiList,
			NPICount:     len(npiList),
			CoverageType: "Organization",
		},
		DataLineage: mrf.DataLineage{
			SourceURL:         t.SourceURL,
			SourceURLHash:     hashSourceURL(t.SourceURL),
			ExtractedAt:       extractedAt,
			ProcessingVersion: cfg.ProcessingVersion,
		},
	}

	return r, "", true
}

// npiListFrom flattens the provider attribution resolved for one price
// entry into the flat NPI list a Rate carries, matching create_rate_record's
// int/str/list normalization of provider_npi.
func npiListFrom(p *mrf.ProviderInfo) []string {
	if p == nil || p.Missing || p.NPI == "" {
		return nil
	}
	return []string{p.NPI}
}

// hashSourceURL replaces the Python original's hashlib.md5(url) with
// sha256, truncated to the same 32 hex characters an md5 digest would
// produce — the digest algorithm is incidental, not a semantic requirement
// (see SPEC_FULL.md §3).
func hashSourceURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:32]
}

// OrganizationName falls back to "Organization-<tin>" when no name was
// resolved, matching create_organization_record's fallback.
func OrganizationName(tin, name string) string {
	if name != "" {
		return name
	}
	return "Organization-" + tin
}
