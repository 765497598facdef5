// Package stream implements the Streaming Parser (C4): incremental JSON
// traversal over one MRF file, flattening nested rate/provider/price
// structures into mrf.RawRateTuple events without materializing the whole
// document. Grounded on the teacher's internal/mrf/stream.go (the
// json.Decoder Token()/More() walking technique, generalized here from
// NPI-search lookups to full tuple emission) and on
// stream/parser.py's root-shape dispatch (in_network vs provider_references
// vs a bare array) in original_source/.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/chrscato/bph-tic/internal/mrf"
	"github.com/chrscato/bph-tic/internal/payer"
)

// Emit is called once per flattened price-entry x provider tuple, in
// document order.
type Emit func(mrf.RawRateTuple)

// OnSkip is called with the reason for a dropped/skipped sub-record — a
// counter increment, never a Go error, per spec.md §7. Unresolved provider
// references and flat records without a rate are reported each time; a
// price without a rate inside a negotiated_rates group is reported only for
// the first such price in the file.
type OnSkip func(mrf.SkipReason)

// Option configures an optional Parse behavior beyond the required
// arguments, so new knobs (the whitelist pre-filter) don't churn every call
// site.
type Option func(*parseOptions)

type parseOptions struct {
	whitelist map[string]struct{}
}

// WithWhitelistFilter enables the SIMD-accelerated billing-code pre-filter
// (internal/stream/simd.go): in_network items whose billing_code can be
// confirmed absent from whitelist are skipped before the (relatively
// expensive) generic json.Unmarshal into a payer.Item. An empty whitelist
// disables the filter. This is purely a throughput optimization —
// internal/normalize enforces the whitelist exactly regardless of whether
// this option is set.
func WithWhitelistFilter(whitelist map[string]struct{}) Option {
	return func(o *parseOptions) { o.whitelist = whitelist }
}

// Parse walks the root document read from r and emits one RawRateTuple per
// (in_network item x rate group x price entry x provider attribution), per
// spec.md §4.4's emission rules. handler is applied to each in_network item
// before tuple emission, and refTable resolves provider_references ids
// (nil when the descriptor carried no provider_reference_url). sourceURL
// is attached to every emitted tuple's DataLineage via the caller.
func Parse(r io.Reader, sourceURL string, handler payer.Handler, refTable map[string]mrf.ProviderInfo, emit Emit, onSkip OnSkip, opts ...Option) error {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}
	filter := newWhitelistFilter(o.whitelist)

	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return &mrf.ParseError{URL: sourceURL, Err: fmt.Errorf("reading root token: %w", err)}
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObjectRoot(dec, sourceURL, handler, refTable, filter, emit, onSkip)
		case '[':
			return parseArrayRoot(dec, sourceURL, handler, refTable, filter, emit, onSkip)
		}
	}
	return &mrf.ParseError{URL: sourceURL, Err: fmt.Errorf("unexpected root token %v", tok)}
}

// parseObjectRoot handles the standard {provider_references?, in_network}
// shape and recognizes allowed_amounts as out-of-scope.
func parseObjectRoot(dec *json.Decoder, sourceURL string, handler payer.Handler, refTable map[string]mrf.ProviderInfo, filter *whitelistFilter, emit Emit, onSkip OnSkip) error {
	skippedNoRate := false

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return &mrf.ParseError{URL: sourceURL, Err: err}
		}
		key, ok := tok.(string)
		if !ok {
			return &mrf.ParseError{URL: sourceURL, Err: fmt.Errorf("expected string key, got %T", tok)}
		}

		switch key {
		case "allowed_amounts":
			// Out-of-scope root; recognize and stop without yielding.
			return skipValue(dec)

		case "provider_references":
			// Top-level table: held in full, it is small relative to
			// in_network (spec.md §4.4's bounded-memory contract).
			inline, err := decodeTopLevelReferences(dec)
			if err != nil {
				return &mrf.ParseError{URL: sourceURL, Err: err}
			}
			if refTable == nil {
				refTable = inline
			} else {
				for k, v := range inline {
					if _, exists := refTable[k]; !exists {
						refTable[k] = v
					}
				}
			}

		case "in_network":
			if err := walkInNetwork(dec, sourceURL, handler, refTable, filter, emit, onSkip, &skippedNoRate); err != nil {
				return err
			}

		default:
			if err := skipValue(dec); err != nil {
				return &mrf.ParseError{URL: sourceURL, Err: err}
			}
		}
	}

	if _, err := dec.Token(); err != nil {
		return &mrf.ParseError{URL: sourceURL, Err: err}
	}
	return nil
}

// parseArrayRoot treats a bare root array as a legacy flat list: each
// element is handed to the same per-item emission logic, unmodified by any
// root-level wrapping.
func parseArrayRoot(dec *json.Decoder, sourceURL string, handler payer.Handler, refTable map[string]mrf.ProviderInfo, filter *whitelistFilter, emit Emit, onSkip OnSkip) error {
	skippedNoRate := false
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return &mrf.ParseError{URL: sourceURL, Err: err}
		}
		if !filter.allows(raw) {
			continue
		}
		var item payer.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		emitItem(item, sourceURL, handler, refTable, emit, onSkip, &skippedNoRate)
	}
	if _, err := dec.Token(); err != nil {
		return &mrf.ParseError{URL: sourceURL, Err: err}
	}
	return nil
}

func walkInNetwork(dec *json.Decoder, sourceURL string, handler payer.Handler, refTable map[string]mrf.ProviderInfo, filter *whitelistFilter, emit Emit, onSkip OnSkip, skippedNoRate *bool) error {
	tok, err := dec.Token()
	if err != nil {
		return &mrf.ParseError{URL: sourceURL, Err: err}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return &mrf.ParseError{URL: sourceURL, Err: fmt.Errorf("expected in_network array, got %v", tok)}
	}

	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return &mrf.ParseError{URL: sourceURL, Err: err}
		}
		if !filter.allows(raw) {
			continue
		}
		var item payer.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			continue // malformed element: skip, don't abort the whole file
		}
		emitItem(item, sourceURL, handler, refTable, emit, onSkip, skippedNoRate)
	}

	_, err = dec.Token() // closing ']'
	return err
}

// emitItem runs one in_network item through the payer handler, then emits
// tuples for each of the (possibly several) adapted items it returns.
func emitItem(item payer.Item, sourceURL string, handler payer.Handler, refTable map[string]mrf.ProviderInfo, emit Emit, onSkip OnSkip, skippedNoRate *bool) {
	for _, adapted := range handler.ParseInNetwork(item) {
		emitAdaptedItem(adapted, sourceURL, refTable, emit, onSkip, skippedNoRate)
	}
}

// emitAdaptedItem dispatches between the already-flattened shape some
// handlers (BCBS-IL) produce and the standard negotiated_rates[] shape.
func emitAdaptedItem(item payer.Item, sourceURL string, refTable map[string]mrf.ProviderInfo, emit Emit, onSkip OnSkip, skippedNoRate *bool) {
	if _, isFlat := item["negotiated_rate"]; isFlat {
		emitFlatTuple(item, sourceURL, emit, onSkip)
		return
	}

	billingCode, _ := item["billing_code"].(string)
	billingCodeType, _ := item["billing_code_type"].(string)
	description, _ := item["description"].(string)

	rateGroups, _ := item["negotiated_rates"].([]interface{})
	for _, rg := range rateGroups {
		group, ok := rg.(payer.Item)
		if !ok {
			continue
		}
		emitRateGroup(group, billingCode, billingCodeType, description, sourceURL, refTable, emit, onSkip, skippedNoRate)
	}
}

// emitFlatTuple handles a record a handler has already reduced to a single
// price entry (BCBS-IL's _parse_complex_structure output).
func emitFlatTuple(item payer.Item, sourceURL string, emit Emit, onSkip OnSkip) {
	rate, hasRate := numericField(item["negotiated_rate"])
	if !hasRate {
		onSkip(mrf.SkipNoRate)
		return
	}

	billingCode, _ := item["billing_code"].(string)
	billingCodeType, _ := item["billing_code_type"].(string)
	description, _ := item["description"].(string)
	negotiatedType, _ := item["negotiated_type"].(string)
	billingClass, _ := item["billing_class"].(string)
	serviceCodes := stringsFromField(item["service_codes"])

	var providerInfo *mrf.ProviderInfo
	if id, ok := item["provider_group_id"].(string); ok && id != "" {
		providerInfo = &mrf.ProviderInfo{Missing: true}
		_ = id // BCBS-IL's provider_group_id is opaque; not resolvable via refTable
	}

	emit(mrf.RawRateTuple{
		BillingCode:     billingCode,
		BillingCodeType: billingCodeType,
		Description:     description,
		NegotiatedRate:  rate,
		HasRate:         true,
		ServiceCodes:    serviceCodes,
		BillingClass:    billingClass,
		NegotiatedType:  negotiatedType,
		ProviderInfo:    providerInfo,
		SourceURL:       sourceURL,
	})
}

// emitRateGroup implements the three-way provider-attribution dispatch from
// spec.md §4.4: provider_references table lookup, then provider_groups
// (direct npi/tin, nested providers[], or generic), then no attribution.
func emitRateGroup(group payer.Item, billingCode, billingCodeType, description, sourceURL string, refTable map[string]mrf.ProviderInfo, emit Emit, onSkip OnSkip, skippedNoRate *bool) {
	prices, _ := group["negotiated_prices"].([]interface{})

	refs, hasRefs := group["provider_references"].([]interface{})
	groups, hasGroups := group["provider_groups"].([]interface{})

	for _, pv := range prices {
		price, ok := pv.(payer.Item)
		if !ok {
			continue
		}
		rate, hasRate := numericField(price["negotiated_rate"])
		if !hasRate {
			if !*skippedNoRate {
				onSkip(mrf.SkipNoRate)
				*skippedNoRate = true
			}
			continue
		}

		negotiatedType, _ := price["negotiated_type"].(string)
		billingClass, _ := price["billing_class"].(string)
		expiration, _ := price["expiration_date"].(string)
		serviceCodes := stringsFromField(price["service_code"])

		base := mrf.RawRateTuple{
			BillingCode:     billingCode,
			BillingCodeType: billingCodeType,
			Description:     description,
			NegotiatedRate:  rate,
			HasRate:         true,
			ServiceCodes:    serviceCodes,
			BillingClass:    billingClass,
			NegotiatedType:  negotiatedType,
			ExpirationDate:  expiration,
			SourceURL:       sourceURL,
		}

		switch {
		case hasRefs && len(refs) > 0:
			for _, rv := range refs {
				key := keyString(rv)
				if info, found := refTable[key]; found {
					t := base
					t.ProviderInfo = &info
					emit(t)
				} else {
					t := base
					t.ProviderInfo = &mrf.ProviderInfo{Missing: true}
					emit(t)
					onSkip(mrf.SkipMissingProviderRef)
				}
			}

		case hasGroups && len(groups) > 0:
			for _, gv := range groups {
				pg, ok := gv.(payer.Item)
				if !ok {
					continue
				}
				emitProviderGroupTuples(pg, base, emit)
			}

		default:
			t := base
			emit(t)
		}
	}
}

// emitProviderGroupTuples handles one provider_groups[] entry: a direct
// npi/tin pair, a nested providers[] list, or a generic attribution.
func emitProviderGroupTuples(pg payer.Item, base mrf.RawRateTuple, emit Emit) {
	if npi, ok := pg["npi"]; ok {
		t := base
		t.ProviderInfo = providerInfoFromGroup(pg, npi)
		emit(t)
		return
	}

	if providers, ok := pg["providers"].([]interface{}); ok && len(providers) > 0 {
		for _, pv := range providers {
			p, ok := pv.(payer.Item)
			if !ok {
				continue
			}
			t := base
			npi := p["npi"]
			info := providerInfoFromGroup(p, npi)
			if info.Name == "" {
				if name, ok := pg["provider_name"].(string); ok {
					info.Name = name
				}
			}
			if info.TIN.Value == "" {
				info.TIN = tinFromGroup(pg)
			}
			t.ProviderInfo = info
			emit(t)
		}
		return
	}

	t := base
	t.ProviderInfo = providerInfoFromGroup(pg, nil)
	emit(t)
}

func providerInfoFromGroup(pg payer.Item, npi interface{}) *mrf.ProviderInfo {
	info := &mrf.ProviderInfo{TIN: tinFromGroup(pg)}
	if s, ok := npi.(string); ok {
		info.NPI = s
	} else if n, ok := numericField(npi); ok {
		info.NPI = strconv.FormatInt(int64(n), 10)
	}
	if name, ok := pg["provider_name"].(string); ok {
		info.Name = name
	} else if name, ok := pg["provider_group_name"].(string); ok {
		info.Name = name
	}
	if info.NPI == "" && info.Name == "" && info.TIN.Value == "" {
		info.Missing = true
	}
	return info
}

func tinFromGroup(pg payer.Item) mrf.TIN {
	raw, ok := pg["tin"]
	if !ok {
		return mrf.TIN{}
	}
	switch v := raw.(type) {
	case string:
		return mrf.TIN{Type: "ein", Value: v}
	case payer.Item:
		t, _ := v["type"].(string)
		val, _ := v["value"].(string)
		return mrf.TIN{Type: t, Value: val}
	}
	return mrf.TIN{}
}

// decodeTopLevelReferences reads the top-level provider_references array
// into a lookup table keyed by id.
func decodeTopLevelReferences(dec *json.Decoder) (map[string]mrf.ProviderInfo, error) {
	var entries []struct {
		ID                json.Number `json:"id"`
		ProviderGroupName string      `json:"provider_group_name"`
		NPI               json.Number `json:"npi"`
		TIN               struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"tin"`
	}
	if err := dec.Decode(&entries); err != nil {
		return nil, err
	}

	table := make(map[string]mrf.ProviderInfo, len(entries))
	for _, e := range entries {
		table[e.ID.String()] = mrf.ProviderInfo{
			NPI:  e.NPI.String(),
			Name: e.ProviderGroupName,
			TIN:  mrf.TIN{Type: e.TIN.Type, Value: e.TIN.Value},
		}
	}
	return table, nil
}

// DecodeReferenceFile reads a standalone provider-reference document (the
// file a descriptor's provider_reference_url points at) into the same
// lookup table shape as an inline provider_references block, keyed by id.
func DecodeReferenceFile(r io.Reader) (map[string]mrf.ProviderInfo, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch tok {
	case json.Delim('['):
		return decodeReferenceArray(dec)
	case json.Delim('{'):
		for dec.More() {
			key, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if key == "provider_references" {
				return decodeReferenceArray(dec)
			}
			if err := skipValue(dec); err != nil {
				return nil, err
			}
		}
		return map[string]mrf.ProviderInfo{}, nil
	default:
		return nil, fmt.Errorf("unexpected root token in reference file: %v", tok)
	}
}

func decodeReferenceArray(dec *json.Decoder) (map[string]mrf.ProviderInfo, error) {
	table, err := decodeTopLevelReferences(dec)
	if err != nil {
		return nil, fmt.Errorf("decoding provider reference array: %w", err)
	}
	return table, nil
}

// numericField coerces a JSON-decoded number (json.Number, float64, or a
// numeric string) into a float64, reporting false for null/absent/non-numeric.
func numericField(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// stringsFromField promotes a string field to a singleton list, passes
// through a list of strings, and returns nil otherwise.
func stringsFromField(v interface{}) []string {
	switch sc := v.(type) {
	case string:
		return []string{sc}
	case []interface{}:
		out := make([]string, 0, len(sc))
		for _, e := range sc {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// keyString normalizes a provider-reference id (number or string) to a
// stable lookup key.
func keyString(v interface{}) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// skipValue reads and discards the next JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); ok {
		switch delim {
		case '{':
			for dec.More() {
				if _, err := dec.Token(); err != nil {
					return err
				}
				if err := skipValue(dec); err != nil {
					return err
				}
			}
			_, err = dec.Token()
			return err
		case '[':
			for dec.More() {
				if err := skipValue(dec); err != nil {
					return err
				}
			}
			_, err = dec.Token()
			return err
		}
	}
	return nil
}
