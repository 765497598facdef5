// Package identity generates deterministic UUID v5 identifiers for payers,
// organizations, providers, and rates, grounded on production_etl_pipeline.py's
// UUIDGenerator class in original_source/.
package identity

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// namespaceFor builds the category namespace the same way the Python
// original does: a UUID5 of "healthcare.<category>" under NAMESPACE_DNS.
// Every identifier in this package is rooted through one of these.
func namespaceFor(category string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte("healthcare."+category))
}

// generate hashes the pipe-joined components under the category namespace.
func generate(category string, components ...string) string {
	ns := namespaceFor(category)
	name := strings.Join(components, "|")
	return uuid.NewSHA1(ns, []byte(name)).String()
}

// Payer returns the deterministic UUID for a payer, identified by name and,
// where known, its parent organization.
func Payer(name, parentOrg string) string {
	return generate("payers", name, parentOrg)
}

// Organization returns the deterministic UUID for a billing organization,
// identified by TIN and name.
func Organization(tin, name string) string {
	return generate("organizations", tin, name)
}

// Provider returns the deterministic UUID for an individual provider,
// identified by NPI.
func Provider(npi string) string {
	return generate("providers", npi)
}

// Rate returns the deterministic UUID for a negotiated price observation.
// The rate is formatted to two decimal places before hashing, matching the
// Python original's f"{rate:.2f}" — callers must not pre-round the rate
// themselves or the digest will diverge.
func Rate(payerUUID, organizationUUID, serviceCode string, negotiatedRate float64, expirationDate string) string {
	rateStr := strconv.FormatFloat(negotiatedRate, 'f', 2, 64)
	return generate("rates", payerUUID, organizationUUID, serviceCode, rateStr, expirationDate)
}
