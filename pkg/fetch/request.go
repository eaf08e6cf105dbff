package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Method is the HTTP verb used for a remote fetch.
type Method string

const (
	// MethodGet sends arguments as a query string.
	MethodGet Method = http.MethodGet

	// MethodPost sends arguments as a form-encoded body.
	MethodPost Method = http.MethodPost
)

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	return m == MethodGet || m == MethodPost
}

// Request describes one remote fetch.
type Request struct {
	// URL is the absolute or base-relative endpoint URL.
	URL string

	// Method defaults to GET when empty.
	Method Method

	// Args are appended to the query string for GET and sent as the
	// form body for POST.
	Args url.Values
}

// Fetcher is the remote fetch capability the tree and the paginator are driven by.
// Implementations return the elements of the JSON array the endpoint responds with,
// in order.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]json.RawMessage, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) ([]json.RawMessage, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req Request) ([]json.RawMessage, error) {
	return f(ctx, req)
}

// HTTPRequest builds the *http.Request for req, resolving relative URLs against base.
func (r Request) HTTPRequest(ctx context.Context, base *url.URL) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = MethodGet
	}
	if !method.Valid() {
		return nil, fmt.Errorf("unsupported method %q", method)
	}

	target, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if base != nil {
		target = base.ResolveReference(target)
	}

	if method == MethodGet {
		if len(r.Args) > 0 {
			query := target.Query()
			for key, values := range r.Args {
				for _, v := range values {
					query.Add(key, v)
				}
			}
			target.RawQuery = query.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(r.Args.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// String renders the request for logs.
func (r Request) String() string {
	method := r.Method
	if method == "" {
		method = MethodGet
	}
	if len(r.Args) == 0 {
		return string(method) + " " + r.URL
	}
	return string(method) + " " + r.URL + " " + r.Args.Encode()
}
