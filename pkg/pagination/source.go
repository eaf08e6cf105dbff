package pagination

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Sternrassler/media-browser/pkg/fetch"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Template placeholders.
const (
	// PagePlaceholder is replaced by the requested page index.
	PagePlaceholder = "{page}"

	// ParamFolderID names the folder in FolderSource templates.
	ParamFolderID = "folder_id"
)

// Server routes for the built-in sources.
const (
	FolderItemsTemplate = "/ajax/html/items/{folder_id}/{page}"
	SearchURL           = "/ajax/html/search"
)

// ArgsProvider returns the request arguments for page: the query string of a
// GET source or the form body of a POST source.
type ArgsProvider func(page int) url.Values

// Source describes where pages come from.
type Source struct {
	// Kind labels the source in logs and metrics ("folder", "search")
	Kind string

	// URLTemplate may contain {page} and {name} placeholders for Params
	URLTemplate string

	// Method defaults to GET
	Method fetch.Method

	// Args is optional
	Args ArgsProvider

	// Params are contextual IDs substituted into URLTemplate
	Params map[string]string
}

// Validate checks the source before it is installed.
func (s Source) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.URLTemplate, validation.Required),
		validation.Field(&s.Method, validation.In(fetch.MethodGet, fetch.MethodPost)),
	)
}

// URL substitutes page and Params into URLTemplate. Params are path-escaped.
func (s Source) URL(page int) string {
	pairs := []string{PagePlaceholder, strconv.Itoa(page)}

	names := make([]string, 0, len(s.Params))
	for name := range s.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pairs = append(pairs, "{"+name+"}", url.PathEscape(s.Params[name]))
	}

	return strings.NewReplacer(pairs...).Replace(s.URLTemplate)
}

// Request builds the fetch for page.
func (s Source) Request(page int) fetch.Request {
	method := s.Method
	if method == "" {
		method = fetch.MethodGet
	}
	req := fetch.Request{URL: s.URL(page), Method: method}
	if s.Args != nil {
		req.Args = s.Args(page)
	}
	return req
}

func (s Source) kind() string {
	if s.Kind == "" {
		return "custom"
	}
	return s.Kind
}

// FolderSource pages through the items of a folder.
func FolderSource(folderID string) Source {
	return Source{
		Kind:        "folder",
		URLTemplate: FolderItemsTemplate,
		Method:      fetch.MethodGet,
		Params:      map[string]string{ParamFolderID: folderID},
	}
}

// SearchSource pages through the results of a query, arguments in the query string.
func SearchSource(query string) Source {
	return Source{
		Kind:        "search",
		URLTemplate: SearchURL,
		Method:      fetch.MethodGet,
		Args: func(page int) url.Values {
			return url.Values{
				"query": {query},
				"page":  {strconv.Itoa(page)},
			}
		},
	}
}

// SearchFormSource posts a search form, with "page" set for each request.
// form is copied; later changes by the caller do not affect the source.
func SearchFormSource(form url.Values) Source {
	base := url.Values{}
	for k, v := range form {
		base[k] = append([]string(nil), v...)
	}
	return Source{
		Kind:        "search",
		URLTemplate: SearchURL,
		Method:      fetch.MethodPost,
		Args: func(page int) url.Values {
			body := url.Values{}
			for k, v := range base {
				body[k] = append([]string(nil), v...)
			}
			body.Set("page", strconv.Itoa(page))
			return body
		},
	}
}
