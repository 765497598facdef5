// Package batch implements the Batch Emitter (C8): three in-memory row
// batches (rates, organizations, providers), flushed to Snappy-compressed
// Parquet artifacts with partitioned names, then uploaded to the object
// store. The writer shape (parquet.GenericWriter[T], periodic Flush,
// Snappy compression) is grounded on the sibling example repo
// gyeh-pricetool/in_network/parquet.go — the teacher itself never emits
// Parquet, so this is the one component SPEC_FULL.md §2 grounds outside
// the teacher.
package batch

import "github.com/chrscato/bph-tic/internal/mrf"

// RateRow is the Parquet schema for the rates table, flattened from
// mrf.Rate's nested struct fields per spec.md §3/§6.
type RateRow struct {
	RateUUID           string   `parquet:"rate_uuid"`
	PayerUUID          string   `parquet:"payer_uuid"`
	OrganizationUUID   string   `parquet:"organization_uuid"`
	ServiceCode        string   `parquet:"service_code"`
	ServiceDescription string   `parquet:"service_description"`
	BillingCodeType    string   `parquet:"billing_code_type"`
	NegotiatedRate     float64  `parquet:"negotiated_rate"`
	BillingClass       string   `parquet:"billing_class"`
	RateType           string   `parquet:"rate_type"`
	ServiceCodes       []string `parquet:"service_codes,list,optional"`
	PlanName           string   `parquet:"plan_name"`
	PlanID             string   `parquet:"plan_id"`
	PlanType           string   `parquet:"plan_type"`
	MarketType         string   `parquet:"market_type"`
	EffectiveDate      string   `parquet:"effective_date,optional"`
	ExpirationDate     string   `parquet:"expiration_date,optional"`
	NPIList            []string `parquet:"npi_list,list,optional"`
	NPICount           int32    `parquet:"npi_count"`
	CoverageType       string   `parquet:"coverage_type"`
	SourceURL          string   `parquet:"source_url"`
	SourceURLHash      string   `parquet:"source_url_hash"`
	ExtractedAt        int64    `parquet:"extracted_at"` // unix seconds, UTC
	ProcessingVersion  string   `parquet:"processing_version"`
	IsValidated        bool     `parquet:"is_validated"`
	HasConflicts       bool     `parquet:"has_conflicts"`
	ConfidenceScore    float64  `parquet:"confidence_score"`
	QualityNotes       string   `parquet:"quality_notes,optional"`
}

// OrganizationRow is the Parquet schema for the organizations table.
type OrganizationRow struct {
	OrganizationUUID string `parquet:"organization_uuid"`
	TIN              string `parquet:"tin"`
	Name             string `parquet:"organization_name"`
	NPICount         int32  `parquet:"npi_count"`
}

// ProviderRow is the Parquet schema for the providers table.
type ProviderRow struct {
	ProviderUUID     string `parquet:"provider_uuid"`
	NPI              string `parquet:"npi"`
	OrganizationUUID string `parquet:"organization_uuid"`
	Name             string `parquet:"name"`
}

// RateRowFrom flattens a normalized, identified, and scored Rate into its
// Parquet row representation.
func RateRowFrom(r mrf.Rate) RateRow {
	return RateRow{
		RateUUID:           r.RateUUID,
		PayerUUID:          r.PayerUUID,
		OrganizationUUID:   r.OrganizationUUID,
		ServiceCode:        r.ServiceCode,
		ServiceDescription: r.ServiceDescription,
		BillingCodeType:    r.BillingCodeType,
		NegotiatedRate:     r.NegotiatedRate,
		BillingClass:       r.BillingClass,
		RateType:           r.RateType,
		ServiceCodes:       r.ServiceCodes,
		PlanName:           r.PlanDetails.PlanName,
		PlanID:             r.PlanDetails.PlanID,
		PlanType:           r.PlanDetails.PlanType,
		MarketType:         r.PlanDetails.MarketType,
		EffectiveDate:      r.ContractPeriod.Effective,
		ExpirationDate:     r.ContractPeriod.Expiration,
		NPIList:            r.ProviderNetwork.NPIList,
		NPICount:           int32(r.ProviderNetwork.NPICount),
		CoverageType:       r.ProviderNetwork.CoverageType,
		SourceURL:          r.DataLineage.SourceURL,
		SourceURLHash:      r.DataLineage.SourceURLHash,
		ExtractedAt:        r.DataLineage.ExtractedAt.Unix(),
		ProcessingVersion:  r.DataLineage.ProcessingVersion,
		IsValidated:        r.QualityFlags.IsValidated,
		HasConflicts:       r.QualityFlags.HasConflicts,
		ConfidenceScore:    r.QualityFlags.ConfidenceScore,
		QualityNotes:       r.QualityFlags.Notes,
	}
}

// OrganizationRowFrom flattens an Organization into its Parquet row.
func OrganizationRowFrom(o mrf.Organization) OrganizationRow {
	return OrganizationRow{
		OrganizationUUID: o.OrganizationUUID,
		TIN:              o.TIN,
		Name:             o.Name,
		NPICount:         int32(o.NPICount),
	}
}

// ProviderRowFrom flattens a Provider into its Parquet row.
func ProviderRowFrom(p mrf.Provider) ProviderRow {
	return ProviderRow{
		ProviderUUID:     p.ProviderUUID,
		NPI:              p.NPI,
		OrganizationUUID: p.OrganizationUUID,
		Name:             p.Name,
	}
}
