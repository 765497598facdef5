// Package toc implements the ToC Resolver (C2): it parses a payer's
// Table-of-Contents index, in any of the three shapes spec.md §4.2
// recognizes, into a uniform, source-ordered list of mrf.Descriptor values.
// Grounded on the teacher's internal/toc/toc.go, which streamed only the
// reporting_structure shape for NPI search; this package handles all three
// shapes, decoding the whole index document in one pass rather than
// streaming it, and drops the plan-ID filter since the pipeline enumerates
// every file for a payer rather than searching for one plan.
package toc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/chrscato/bph-tic/internal/fetch"
	"github.com/chrscato/bph-tic/internal/mrf"
)

// reportingStructureEntry mirrors one element of a standard ToC's
// reporting_structure array.
type reportingStructureEntry struct {
	ReportingPlans []struct {
		PlanName       string `json:"plan_name"`
		PlanID         string `json:"plan_id"`
		PlanMarketType string `json:"plan_market_type"`
	} `json:"reporting_plans"`
	InNetworkFiles []struct {
		Description string `json:"description"`
		Location    string `json:"location"`
	} `json:"in_network_files"`
	AllowedAmountFile *struct {
		Description string `json:"description"`
		Location    string `json:"location"`
	} `json:"allowed_amount_file"`
	ProviderReferences []struct {
		Location string `json:"location"`
	} `json:"provider_references"`
}

// blobEntry mirrors one element of the legacy "blobs" shape, which carries
// no kind information at all.
type blobEntry struct {
	Description string `json:"description"`
	Location    string `json:"location"`
}

// inNetworkFileEntry mirrors one element of a root-level in_network_files
// array (the direct shape, no reporting_structure wrapper).
type inNetworkFileEntry struct {
	Description string `json:"description"`
	Location    string `json:"location"`
}

// Resolve reads a ToC document from r and returns its descriptors in
// source order. It recognizes exactly the three shapes spec.md §4.2 names;
// if none of reporting_structure, blobs, or in_network_files is present at
// the root, it returns mrf.UnknownIndexShapeError. It does not follow any
// referenced file — only enumeration happens here.
func Resolve(r io.Reader, indexURL string) ([]mrf.Descriptor, error) {
	var root struct {
		ReportingStructure []reportingStructureEntry `json:"reporting_structure"`
		Blobs              []blobEntry                `json:"blobs"`
		InNetworkFiles     []inNetworkFileEntry        `json:"in_network_files"`
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding index at %s: %w", indexURL, err)
	}

	switch {
	case len(root.ReportingStructure) > 0:
		return resolveReportingStructure(root.ReportingStructure), nil
	case len(root.Blobs) > 0:
		return resolveBlobs(root.Blobs), nil
	case len(root.InNetworkFiles) > 0:
		return resolveInNetworkFiles(root.InNetworkFiles), nil
	default:
		return nil, &mrf.UnknownIndexShapeError{URL: indexURL}
	}
}

func resolveReportingStructure(entries []reportingStructureEntry) []mrf.Descriptor {
	var out []mrf.Descriptor
	for _, entry := range entries {
		var planName, planID, marketType string
		if len(entry.ReportingPlans) > 0 {
			planName = entry.ReportingPlans[0].PlanName
			planID = entry.ReportingPlans[0].PlanID
			marketType = entry.ReportingPlans[0].PlanMarketType
		}

		var providerRefURL string
		if len(entry.ProviderReferences) > 0 {
			providerRefURL = entry.ProviderReferences[0].Location
		}

		for _, f := range entry.InNetworkFiles {
			if f.Location == "" {
				continue
			}
			out = append(out, mrf.Descriptor{
				URL:                  f.Location,
				Kind:                 mrf.KindInNetworkRates,
				PlanName:             planName,
				PlanID:               planID,
				PlanMarketType:       marketType,
				Description:          f.Description,
				ProviderReferenceURL: providerRefURL,
			})
		}

		if entry.AllowedAmountFile != nil && entry.AllowedAmountFile.Location != "" {
			out = append(out, mrf.Descriptor{
				URL:            entry.AllowedAmountFile.Location,
				Kind:           mrf.KindAllowedAmounts,
				PlanName:       planName,
				PlanID:         planID,
				PlanMarketType: marketType,
				Description:    entry.AllowedAmountFile.Description,
			})
		}
	}
	return out
}

func resolveBlobs(entries []blobEntry) []mrf.Descriptor {
	out := make([]mrf.Descriptor, 0, len(entries))
	for _, b := range entries {
		if b.Location == "" {
			continue
		}
		out = append(out, mrf.Descriptor{
			URL:         b.Location,
			Kind:        mrf.KindUnknown,
			Description: b.Description,
		})
	}
	return out
}

func resolveInNetworkFiles(entries []inNetworkFileEntry) []mrf.Descriptor {
	out := make([]mrf.Descriptor, 0, len(entries))
	for _, f := range entries {
		if f.Location == "" {
			continue
		}
		out = append(out, mrf.Descriptor{
			URL:         f.Location,
			Kind:        mrf.KindInNetworkRates,
			Description: f.Description,
		})
	}
	return out
}

// FetchAndResolve downloads a ToC document (transparently gzip-decoded by
// the fetch.Client) and resolves it into descriptors.
func FetchAndResolve(ctx context.Context, client *fetch.Client, indexURL string) ([]mrf.Descriptor, error) {
	rc, _, err := client.OpenStream(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("fetching index %s: %w", indexURL, err)
	}
	defer rc.Close()

	return Resolve(rc, indexURL)
}
