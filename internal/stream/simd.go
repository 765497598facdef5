// SIMD-accelerated billing-code pre-filter, grounded on the teacher's
// internal/mrf/parse.go (the useSimd/DisableSimd switch and the
// byte-pattern-then-simdjson confirm pipeline) and parse_simd.go (the
// simdjson.Parse/ForEach/FindElement usage), repointed here from matching
// NPI numbers in provider_references lines to matching billing codes in
// in_network items.
package stream

import (
	"bytes"
	"encoding/json"

	simdjson "github.com/minio/simdjson-go"
)

// useSimd is true if the CPU supports AVX2+CLMUL for simdjson acceleration.
var useSimd = simdjson.SupportedCPU()

// DisableSimd forces the stdlib JSON parser even on CPUs that support
// simdjson, matching the teacher's escape hatch for CPUs where simdjson
// misbehaves.
func DisableSimd() {
	useSimd = false
}

// whitelistPatterns builds the quoted byte patterns a raw in_network item
// must contain for any whitelisted code to possibly match, mirroring
// npiBytePatterns.
func whitelistPatterns(whitelist map[string]struct{}) [][]byte {
	patterns := make([][]byte, 0, len(whitelist))
	for code := range whitelist {
		patterns = append(patterns, []byte(`"`+code+`"`))
	}
	return patterns
}

// containsAny mirrors lineContainsAny.
func containsAny(raw []byte, patterns [][]byte) bool {
	for _, p := range patterns {
		if bytes.Contains(raw, p) {
			return true
		}
	}
	return false
}

// whitelistFilter pre-filters raw in_network item bytes against the CPT
// whitelist before the item is unmarshaled into a payer.Item. An empty
// whitelist disables filtering entirely (every item passes). The filter is
// a performance optimization only: internal/normalize still drops any item
// whose billing_code isn't whitelisted, so a false positive here (an item
// that passes the filter but isn't actually whitelisted) is corrected
// downstream, never a correctness issue.
type whitelistFilter struct {
	whitelist map[string]struct{}
	patterns  [][]byte
	pj        *simdjson.ParsedJson // reused across calls
}

func newWhitelistFilter(whitelist map[string]struct{}) *whitelistFilter {
	if len(whitelist) == 0 {
		return nil
	}
	return &whitelistFilter{whitelist: whitelist, patterns: whitelistPatterns(whitelist)}
}

// allows reports whether raw's billing_code field could plausibly be in the
// whitelist. It returns true whenever the code can't be confirmed cheaply
// (no sense blocking a record the normalizer can still evaluate exactly).
func (f *whitelistFilter) allows(raw []byte) bool {
	if f == nil {
		return true
	}
	if !containsAny(raw, f.patterns) {
		return false
	}
	code, ok := f.billingCode(raw)
	if !ok {
		return true
	}
	_, found := f.whitelist[code]
	return found
}

func (f *whitelistFilter) billingCode(raw []byte) (string, bool) {
	if useSimd {
		if code, ok := f.billingCodeSimd(raw); ok {
			return code, true
		}
	}
	var probe struct {
		BillingCode string `json:"billing_code"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.BillingCode == "" {
		return "", false
	}
	return probe.BillingCode, true
}

func (f *whitelistFilter) billingCodeSimd(raw []byte) (string, bool) {
	pj, err := simdjson.Parse(raw, f.pj)
	if err != nil {
		return "", false
	}
	f.pj = pj

	var code string
	var found bool
	pj.ForEach(func(i simdjson.Iter) error {
		elem, err := i.FindElement(nil, "billing_code")
		if err != nil {
			return nil
		}
		s, err := elem.Iter.String()
		if err != nil {
			return nil
		}
		code, found = s, true
		return nil
	})
	return code, found
}
