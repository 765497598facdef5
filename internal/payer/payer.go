// Package payer implements the Payer Handler Registry (C3): a per-payer
// structural adapter applied to each in_network item before it reaches the
// normalizer, grounded on payers/__init__.py and payers/{aetna,centene,
// horizon,bcbs_fl,bcbs_il}.py in original_source/. Items are represented as
// map[string]interface{}, matching the shape encoding/json produces for
// arbitrary JSON and mirroring the Python originals' dict mutation closely
// enough that each handler reads as a direct translation.
package payer

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// Item is one in_network element, decoded generically.
type Item = map[string]interface{}

// Handler adapts one payer's in_network items into the shape the streaming
// parser expects before normalization. ParseInNetwork may return more than
// one item (BCBS-IL fans a single complex record out into several flat
// ones) or the item unchanged (the default/standard handler).
type Handler interface {
	ParseInNetwork(item Item) []Item
}

// defaultHandler passes records through unchanged, matching
// PayerHandler.parse_in_network's base implementation.
type defaultHandler struct{}

func (defaultHandler) ParseInNetwork(item Item) []Item { return []Item{item} }

// registration pairs a handler with whether it overrides the identity
// behavior, so Register can reproduce the base class's registration-time
// warning for handlers that don't.
type registration struct {
	handler    Handler
	overridden bool
}

var (
	mu       sync.RWMutex
	registry = map[string]registration{}
)

// Register binds a handler to a payer name (case-insensitive). overridden
// should be false only for handlers that are functionally identical to the
// default pass-through; registering one logs a warning, matching
// register_handler's UserWarning when parse_in_network isn't overridden.
func Register(name string, h Handler, overridden bool) {
	mu.Lock()
	defer mu.Unlock()
	if !overridden {
		slog.Warn("handler_does_not_override_parse_in_network",
			"payer", name,
			"note", "copy the base implementation or provide custom logic if needed")
	}
	registry[strings.ToLower(name)] = registration{handler: h, overridden: overridden}
}

// Get returns the handler registered for name, or the default pass-through
// handler if none was registered, matching get_handler's fallback.
func Get(name string) Handler {
	mu.RLock()
	defer mu.RUnlock()
	if reg, ok := registry[strings.ToLower(name)]; ok {
		return reg.handler
	}
	return defaultHandler{}
}

func init() {
	Register("bcbs_fl", bcbsFLHandler{}, true)
	Register("centene", centeneHandler{}, true)
	Register("centene_fidelis", centeneHandler{}, true)
	Register("aetna", aetnaHandler{}, true)
	Register("aetna_florida", aetnaHandler{}, true)
	Register("aetna_health_inc", aetnaHandler{}, true)
	Register("horizon", horizonHandler{}, true)
	Register("horizon_bcbs", horizonHandler{}, true)
	Register("horizon_healthcare", horizonHandler{}, true)
	Register("bcbs_il", bcbsILHandler{}, true)
}

// asMapSlice coerces a JSON array field decoded into interface{} down to
// []Item, skipping elements that aren't objects.
func asMapSlice(v interface{}) []Item {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Item, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(Item); ok {
			out = append(out, m)
		}
	}
	return out
}

// asFloat reports whether v decodes to a JSON number and its value.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// npiToInt mirrors the Python handlers' best-effort int(npi) coercion: on
// parse failure the original value is left untouched.
func npiToInt(provider Item) {
	raw, ok := provider["npi"]
	if !ok {
		return
	}
	s, ok := raw.(string)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(s); err == nil {
		provider["npi"] = float64(n)
	}
}

// tinToObject mirrors the Python handlers' string-TIN-to-object upgrade:
// {"tin": "12-3456789"} becomes {"tin": {"type": "ein", "value": "12-3456789"}}.
func tinToObject(group Item) {
	raw, ok := group["tin"]
	if !ok {
		return
	}
	if s, ok := raw.(string); ok {
		group["tin"] = Item{"type": "ein", "value": s}
	}
}
