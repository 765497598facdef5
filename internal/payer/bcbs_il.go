package payer

import (
	"strconv"
	"strings"
)

// bcbsILHandler fans a single BCBS-IL in_network record out into one flat
// record per (negotiated_price x provider_reference) pair. Grounded on
// payers/bcbs_il.py's _parse_complex_structure — the only reachable path in
// the original (a parallel "simple" branch referencing an undefined
// `patterns` object never fires, per spec.md §9's Open Question).
type bcbsILHandler struct{}

func (bcbsILHandler) ParseInNetwork(item Item) []Item {
	billingCode, _ := item["billing_code"].(string)
	billingCodeType, _ := item["billing_code_type"].(string)
	description, _ := item["description"].(string)

	if rate, ok := asFloat(item["negotiated_rates"]); ok {
		return []Item{{
			"billing_code":      billingCode,
			"billing_code_type":  billingCodeType,
			"description":        description,
			"negotiated_rate":    rate,
			"negotiated_type":    "",
			"billing_class":      "",
			"service_codes":      []interface{}{},
			"provider_group_id":  "",
			"provider_groups":    []interface{}{},
			"payer_name":         "bcbs_il",
		}}
	}

	var results []Item
	for _, rateGroup := range asMapSlice(item["negotiated_rates"]) {
		prices := asMapSlice(rateGroup["negotiated_prices"])
		refs, _ := rateGroup["provider_references"].([]interface{})

		for _, price := range prices {
			negotiatedRate := price["negotiated_rate"]
			negotiatedType, _ := price["negotiated_type"].(string)
			billingClass, _ := price["billing_class"].(string)

			var serviceCodes []interface{}
			switch sc := price["service_code"].(type) {
			case string:
				serviceCodes = []interface{}{sc}
			case []interface{}:
				serviceCodes = sc
			}

			for _, ref := range refs {
				var providerGroupID string
				var providerGroups []interface{}

				if n, ok := asFloat(ref); ok {
					providerGroupID = formatFloatID(n)
				} else if refMap, ok := ref.(Item); ok {
					providerGroupID, _ = refMap["provider_group_id"].(string)
					if pg, ok := refMap["provider_groups"].([]interface{}); ok {
						providerGroups = pg
					}
				}

				results = append(results, Item{
					"billing_code":      billingCode,
					"billing_code_type":  billingCodeType,
					"description":        description,
					"negotiated_rate":    negotiatedRate,
					"negotiated_type":    negotiatedType,
					"billing_class":      billingClass,
					"service_codes":      serviceCodes,
					"provider_group_id":  providerGroupID,
					"provider_groups":    providerGroups,
					"payer_name":         "bcbs_il",
				})
			}
		}
	}
	return results
}

// formatFloatID renders a bare numeric provider reference id the way
// Python's str(float) would for a whole number, e.g. 42.0 -> "42.0".
func formatFloatID(n float64) string {
	s := strconv.FormatFloat(n, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
