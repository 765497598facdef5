package payer

// bcbsFLHandler handles the BCBS-FL record shape. Most BCBS-FL items carry a
// standard negotiated_rates[] array and pass through unchanged, letting the
// stream package's default rate-group expansion handle them. Some items omit
// negotiated_rates entirely or carry it as a bare scalar rate; for those,
// this handler emits a single degenerate tuple built from the record-level
// fields instead, mirroring bcbs_il.go's scalar branch. Grounded on
// payers/bcbs_fl.py.
type bcbsFLHandler struct{}

func (bcbsFLHandler) ParseInNetwork(item Item) []Item {
	switch item["negotiated_rates"].(type) {
	case []interface{}:
		return []Item{item}
	default:
		return []Item{degenerateBCBSFLTuple(item)}
	}
}

// degenerateBCBSFLTuple flattens a record that never nested its rate under
// negotiated_rates[] into the same flat shape emitFlatTuple expects.
func degenerateBCBSFLTuple(item Item) Item {
	billingCode, _ := item["billing_code"].(string)
	billingCodeType, _ := item["billing_code_type"].(string)
	description, _ := item["description"].(string)
	negotiatedType, _ := item["negotiated_type"].(string)
	billingClass, _ := item["billing_class"].(string)

	rate, _ := asFloat(item["negotiated_rates"])

	var serviceCodes []interface{}
	switch sc := item["service_code"].(type) {
	case string:
		serviceCodes = []interface{}{sc}
	case []interface{}:
		serviceCodes = sc
	default:
		serviceCodes = []interface{}{}
	}

	return Item{
		"billing_code":      billingCode,
		"billing_code_type":  billingCodeType,
		"description":        description,
		"negotiated_rate":    rate,
		"negotiated_type":    negotiatedType,
		"billing_class":      billingClass,
		"service_codes":      serviceCodes,
		"payer_name":         "bcbs_fl",
	}
}
