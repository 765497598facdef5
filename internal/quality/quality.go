// Package quality implements the Quality Validator (C7): the exact
// subtract-and-clamp confidence scoring from production_etl_pipeline.py's
// DataQualityValidator.validate_rate_record, reproduced in internal/mrf.Rate
// terms per spec.md §4.7.
package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/chrscato/bph-tic/internal/mrf"
)

// Validate scores a Rate in place, returning the populated QualityFlags.
// Scoring never drops the record — out-of-bounds or incomplete rates are
// always kept, only flagged, per spec.md §8's invariant that every rate is
// either in (0, 10000] or carries has_conflicts=true.
func Validate(r *mrf.Rate) mrf.QualityFlags {
	flags := mrf.QualityFlags{
		IsValidated:     true,
		HasConflicts:    false,
		ConfidenceScore: 1.0,
	}
	var notes []string

	missing := missingRequiredFields(r)
	if len(missing) > 0 {
		flags.IsValidated = false
		flags.ConfidenceScore -= 0.3
		notes = append(notes, fmt.Sprintf("Missing required fields: %s", formatFieldList(missing)))
	}

	if r.NegotiatedRate <= 0 || r.NegotiatedRate > 10000 {
		flags.HasConflicts = true
		flags.ConfidenceScore -= 0.2
		notes = append(notes, fmt.Sprintf("Unusual rate value: $%v", r.NegotiatedRate))
	}

	if len(r.ProviderNetwork.NPIList) == 0 {
		flags.ConfidenceScore -= 0.1
		notes = append(notes, "No NPIs associated")
	}

	if flags.ConfidenceScore < 0 {
		flags.ConfidenceScore = 0
	}
	if flags.ConfidenceScore > 1 {
		flags.ConfidenceScore = 1
	}
	// Drop the floating-point residue of the subtractions, so that e.g.
	// 1.0 - 0.3 - 0.2 scores exactly 0.5.
	flags.ConfidenceScore = math.Round(flags.ConfidenceScore*100) / 100

	flags.Notes = strings.Join(notes, "; ")
	r.QualityFlags = flags
	return flags
}

func missingRequiredFields(r *mrf.Rate) []string {
	var missing []string
	if r.ServiceCode == "" {
		missing = append(missing, "service_code")
	}
	if r.NegotiatedRate == 0 {
		missing = append(missing, "negotiated_rate")
	}
	if r.PayerUUID == "" {
		missing = append(missing, "payer_uuid")
	}
	if r.OrganizationUUID == "" {
		missing = append(missing, "organization_uuid")
	}
	return missing
}

// formatFieldList renders a Go string slice the way Python's str() renders a
// list of strings, so log output matches the original's validation notes.
func formatFieldList(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = "'" + f + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
