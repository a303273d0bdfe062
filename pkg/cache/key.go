package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached document.
type Key struct {
	// Namespace groups related entries (e.g. "search", "geocode")
	Namespace string

	// Params are the request parameters that determine the response
	Params url.Values
}

// String generates a deterministic key string.
// Format: datasource:namespace:param1=val1:param2=val2
//
// Example:
//
//	datasource:search:count=100:q=golang:result_type=mixed
func (k Key) String() string {
	parts := []string{"datasource"}

	if ns := strings.Trim(k.Namespace, ":"); ns != "" {
		parts = append(parts, ns)
	}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, url.QueryEscape(k.Params.Get(key))))
		}
	}

	return strings.Join(parts, ":")
}
