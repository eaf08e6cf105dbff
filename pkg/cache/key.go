package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key written by this package.
const KeyPrefix = "browser"

// Key identifies a cached response.
type Key struct {
	// Endpoint is the request path (e.g., "/ajax/folders")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"id": "folder-4"})
	QueryParams url.Values

	// Scope separates entries of different users sharing one Redis (empty for shared)
	Scope string
}

// String generates a deterministic cache key string.
// Format: browser:endpoint:query1=val1:query2=val2:scope=abc
//
// Example:
//
//	browser:ajax/folders:id=folder-4
func (k Key) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := append([]string(nil), k.QueryParams[key]...)
			sort.Strings(values)
			parts = append(parts, key+"="+strings.Join(values, ","))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}

// KeyFromURL builds a Key from a request URL.
func KeyFromURL(u *url.URL, scope string) Key {
	return Key{
		Endpoint:    u.Path,
		QueryParams: u.Query(),
		Scope:       scope,
	}
}
