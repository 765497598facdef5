package payer

import "strings"

// centeneHandler handles Centene-family payers, which sometimes place
// provider info directly under provider_groups instead of nesting it under
// a providers array, and which emit negotiated_type/negotiation_arrangement
// in upper case. Grounded on payers/centene.py.
type centeneHandler struct{}

func (centeneHandler) ParseInNetwork(item Item) []Item {
	rates := asMapSlice(item["negotiated_rates"])
	for _, group := range rates {
		if arrangement, ok := group["negotiation_arrangement"].(string); ok {
			group["negotiation_arrangement"] = strings.ToLower(arrangement)
		}

		for _, price := range asMapSlice(group["negotiated_prices"]) {
			if negType, ok := price["negotiated_type"].(string); ok {
				price["negotiated_type"] = strings.ToLower(negType)
			}
		}

		groups := asMapSlice(group["provider_groups"])
		normalized := make([]Item, 0, len(groups))
		for _, pg := range groups {
			if _, hasNPI := pg["npi"]; hasNPI {
				normalized = append(normalized, Item{"providers": []interface{}{pg}})
			} else {
				normalized = append(normalized, pg)
			}
		}
		if len(normalized) > 0 {
			arr := make([]interface{}, len(normalized))
			for i, n := range normalized {
				arr[i] = n
			}
			group["provider_groups"] = arr
		}
	}
	return []Item{item}
}
