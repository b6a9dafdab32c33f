package server

import "strings"

// HeaderMap is a case-insensitive store of HTTP header name/value pairs.
// Names are folded to lowercase on every operation; values are stored
// verbatim. No two entries in a HeaderMap ever differ only in case.
type HeaderMap struct {
	values map[string]string
}

// NewHeaderMap returns an empty HeaderMap ready for use.
func NewHeaderMap() *HeaderMap {
	return &HeaderMap{values: make(map[string]string)}
}

// Set stores value under the lowercased name, overwriting any prior entry.
func (h *HeaderMap) Set(name, value string) {
	if h.values == nil {
		h.values = make(map[string]string)
	}
	h.values[strings.ToLower(name)] = value
}

// Remove deletes the entry for name, if any.
func (h *HeaderMap) Remove(name string) {
	delete(h.values, strings.ToLower(name))
}

// Get returns the stored value for name and whether it was present.
func (h *HeaderMap) Get(name string) (string, bool) {
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Has reports whether name has a stored value.
func (h *HeaderMap) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// HasValue reports whether the stored value for name is exactly v
// (case-sensitive on the value).
func (h *HeaderMap) HasValue(name, v string) bool {
	stored, ok := h.Get(name)
	return ok && stored == v
}

// HasKeyword reports whether the stored value for name, split on commas
// and trimmed, contains kw under a case-insensitive comparison. This is
// the comma-list membership test used for Connection and Upgrade headers
// during handshake validation.
func (h *HeaderMap) HasKeyword(name, kw string) bool {
	stored, ok := h.Get(name)
	if !ok {
		return false
	}
	needle := strings.ToLower(kw)
	for _, tok := range strings.Split(stored, ",") {
		if strings.ToLower(strings.TrimSpace(tok)) == needle {
			return true
		}
	}
	return false
}

// Len returns the number of distinct header names currently stored.
func (h *HeaderMap) Len() int {
	return len(h.values)
}
