package payer

import "strings"

// aetnaHandler handles Aetna's hybrid provider reference structure: rate
// groups may carry both embedded provider_groups and referenced
// provider_references, CVS Health integration fields, and state-specific
// metadata. Grounded on payers/aetna.py.
type aetnaHandler struct{}

func (aetnaHandler) ParseInNetwork(item Item) []Item {
	for _, rateGroup := range asMapSlice(item["negotiated_rates"]) {
		normalizeAetnaHybridProviders(rateGroup)
		normalizeAetnaPricing(rateGroup)
	}
	normalizeAetnaMetadata(item)
	return []Item{item}
}

func normalizeAetnaHybridProviders(rateGroup Item) {
	groups := asMapSlice(rateGroup["provider_groups"])
	refs, _ := rateGroup["provider_references"].([]interface{})

	if len(groups) > 0 && len(refs) > 0 {
		for i, pg := range groups {
			if _, hasNPI := pg["npi"]; !hasNPI && i < len(refs) {
				pg["provider_reference_id"] = refs[i]
			}
			if _, hasProviders := pg["providers"]; !hasProviders {
				if npi, ok := pg["npi"]; ok {
					name, _ := pg["provider_name"].(string)
					pg["providers"] = []interface{}{
						Item{"npi": npi, "provider_name": name},
					}
				}
			}
		}
	}

	for _, pg := range groups {
		normalizeAetnaProviderGroup(pg)
	}
}

func normalizeAetnaProviderGroup(providerGroup Item) {
	tinToObject(providerGroup)

	providers := asMapSlice(providerGroup["providers"])
	for _, p := range providers {
		if loc, ok := p["cvs_location_id"]; ok {
			p["location_id"] = loc
			delete(p, "cvs_location_id")
		}
		npiToInt(p)
	}
}

func normalizeAetnaPricing(rateGroup Item) {
	prices := asMapSlice(rateGroup["negotiated_prices"])
	for _, price := range prices {
		if bc, ok := price["billing_class"].(string); ok {
			price["billing_class"] = strings.ToLower(bc)
		}
		if tier, ok := price["cvs_pricing_tier"]; ok {
			price["pricing_tier"] = tier
			delete(price, "cvs_pricing_tier")
		}
		if sc, ok := price["service_code"].(string); ok {
			price["service_code"] = []interface{}{sc}
		}
	}
}

func normalizeAetnaMetadata(item Item) {
	if v, ok := item["state_specific_id"]; ok {
		item["regional_id"] = v
		delete(item, "state_specific_id")
	}
	if _, ok := item["plan_type"]; ok {
		desc, _ := item["description"].(string)
		if strings.Contains(strings.ToLower(desc), "florida") {
			item["state_plan"] = "FL"
		}
	}
}
