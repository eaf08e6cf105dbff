package cache

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// EntryFromResponse converts a response and its already-read body into an Entry.
// Freshness comes from Cache-Control max-age, then Expires, then fallback.
// Returns nil when the response forbids storing (Cache-Control no-store).
func EntryFromResponse(resp *http.Response, body []byte, fallback time.Duration) *Entry {
	if resp == nil {
		return nil
	}
	if hasDirective(resp.Header, "no-store") {
		return nil
	}

	entry := &Entry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		CachedAt:   time.Now(),
		Expires:    parseExpires(resp.Header, fallback),
	}

	if lastModStr := resp.Header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry
}

// parseExpires returns the expiration time announced by the headers,
// or now + fallback if they announce none.
func parseExpires(headers http.Header, fallback time.Duration) time.Time {
	now := time.Now()

	if maxAge, ok := maxAgeDirective(headers); ok {
		return now.Add(maxAge)
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return now.Add(fallback)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return now.Add(fallback)
	}

	if expires.Before(now) {
		return now
	}
	return expires
}

func maxAgeDirective(headers http.Header) (time.Duration, bool) {
	for _, directive := range strings.Split(headers.Get("Cache-Control"), ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

func hasDirective(headers http.Header, name string) bool {
	for _, directive := range strings.Split(headers.Get("Cache-Control"), ",") {
		if strings.EqualFold(strings.TrimSpace(directive), name) {
			return true
		}
	}
	return false
}

// AddConditionalHeaders adds If-None-Match (ETag) or If-Modified-Since headers
// to the request if the cache entry supports conditional requests.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}

	// Prefer ETag over Last-Modified
	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.Format(http.TimeFormat))
	}
}
