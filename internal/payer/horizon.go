package payer

import "strings"

// horizonHandler handles Horizon Blue Cross Blue Shield's geographic region
// codes and provider group normalization. Grounded on payers/horizon.py.
type horizonHandler struct{}

func (horizonHandler) ParseInNetwork(item Item) []Item {
	for _, rateGroup := range asMapSlice(item["negotiated_rates"]) {
		normalizeHorizonGeographicData(rateGroup)
		normalizeHorizonProviderGroups(rateGroup)
	}
	return []Item{item}
}

func normalizeHorizonGeographicData(rateGroup Item) {
	for _, price := range asMapSlice(rateGroup["negotiated_prices"]) {
		if region, ok := price["geographic_region"].(string); ok {
			delete(price, "geographic_region")
			price["service_geography"] = parseHorizonRegion(region)
		}
		if bc, ok := price["billing_class"].(string); ok {
			price["billing_class"] = strings.ToLower(bc)
		}
	}
}

// parseHorizonRegion splits codes like "NJ_NORTH" into state/region parts;
// codes without an underscore are treated as statewide.
func parseHorizonRegion(region string) Item {
	if state, area, found := strings.Cut(region, "_"); found {
		return Item{
			"state":     state,
			"region":    strings.ToLower(area),
			"full_code": region,
		}
	}
	return Item{
		"state":     region,
		"region":    "statewide",
		"full_code": region,
	}
}

func normalizeHorizonProviderGroups(rateGroup Item) {
	for _, providerGroup := range asMapSlice(rateGroup["provider_groups"]) {
		tinToObject(providerGroup)
		for _, p := range asMapSlice(providerGroup["providers"]) {
			npiToInt(p)
		}
	}
}
