// Package mrf holds the domain types shared across the extraction pipeline:
// discovered file descriptors, the flat tuples the streaming parser emits,
// and the normalized Rate/Organization/Provider records the pipeline writes.
package mrf

import "time"

// DescriptorKind classifies a discovered MRF file.
type DescriptorKind string

const (
	KindInNetworkRates    DescriptorKind = "in_network_rates"
	KindAllowedAmounts    DescriptorKind = "allowed_amounts"
	KindProviderReference DescriptorKind = "provider_reference"
	KindUnknown           DescriptorKind = "unknown"
)

// Descriptor is one MRF file discovered via a payer's Table of Contents.
// It is transient: it lives only for the duration of a pipeline run.
type Descriptor struct {
	URL                  string
	Kind                 DescriptorKind
	PlanName             string
	PlanID               string
	PlanMarketType       string
	Description          string
	ProviderReferenceURL string
}

// TIN is a tax identification number, either raw or typed ("ein"/"npi").
type TIN struct {
	Type  string
	Value string
}

// ProviderInfo is the provider attribution resolved for one negotiated
// price entry — a direct NPI/TIN pair, a named group, or nothing.
type ProviderInfo struct {
	NPI     string
	TIN     TIN
	Name    string
	Missing bool // true when a provider_reference id could not be resolved
}

// RawRateTuple is one (billing code x rate group x price entry x provider
// attribution) tuple as produced by the streaming parser, per spec.md §3.
type RawRateTuple struct {
	BillingCode     string
	BillingCodeType string
	Description     string
	NegotiatedRate  float64
	HasRate         bool // false when negotiated_rate was null/absent
	ServiceCodes    []string
	BillingClass    string
	NegotiatedType  string
	ExpirationDate  string
	ProviderInfo    *ProviderInfo
	SourceURL       string
}

// PlanDetails is the plan metadata a rate was sourced under.
type PlanDetails struct {
	PlanName   string
	PlanID     string
	PlanType   string
	MarketType string
}

// ContractPeriod bounds the validity window of a negotiated price.
type ContractPeriod struct {
	Effective  string
	Expiration string
}

// ProviderNetwork summarizes the providers attributed to a Rate.
type ProviderNetwork struct {
	NPIList      []string
	NPICount     int
	CoverageType string
}

// DataLineage records where a Rate came from and when it was extracted.
type DataLineage struct {
	SourceURL         string
	SourceURLHash     string
	ExtractedAt       time.Time
	ProcessingVersion string
}

// QualityFlags is the per-row confidence envelope from the Quality
// Validator (C7), per spec.md §3 and §4.7.
type QualityFlags struct {
	IsValidated     bool
	HasConflicts    bool
	ConfidenceScore float64
	Notes           string
}

// Rate is a single negotiated price observation — the principal output row.
type Rate struct {
	RateUUID           string
	PayerUUID          string
	OrganizationUUID   string
	ServiceCode        string
	ServiceDescription string
	BillingCodeType    string
	NegotiatedRate     float64
	BillingClass       string
	RateType           string
	ServiceCodes       []string
	PlanDetails        PlanDetails
	ContractPeriod     ContractPeriod
	ProviderNetwork    ProviderNetwork
	DataLineage        DataLineage
	QualityFlags       QualityFlags
}

// Organization is a billing entity identified by TIN. May be emitted at
// most once per source file per run (cross-file duplicates resolve
// downstream by UUID).
type Organization struct {
	OrganizationUUID string
	TIN              string
	Name             string
	NPICount         int
}

// Provider is an individual or group identified by NPI, linked to one
// organization within the context of a single rate record.
type Provider struct {
	ProviderUUID     string
	NPI              string
	OrganizationUUID string
	Name             string
}

// Payer is the named issuer of MRFs. Created once per pipeline invocation
// and never mutated thereafter.
type Payer struct {
	PayerUUID          string
	Name               string
	ParentOrganization string
	IndexURL           string
}
