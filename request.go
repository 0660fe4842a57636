package oauth

import (
	"fmt"
	"net/http"
	"net/url"
)

// Request is the transport-neutral view of an incoming request: query
// parameters, parsed body parameters, and headers. The HTTP adapter in
// handler.go converts *http.Request values into this form; tests construct
// it directly.
type Request struct {
	query  url.Values
	body   url.Values
	header http.Header
}

// NewRequest builds a request from already-parsed parameter sets.
// Nil maps are treated as empty.
func NewRequest(query, body url.Values, header http.Header) *Request {
	if query == nil {
		query = url.Values{}
	}
	if body == nil {
		body = url.Values{}
	}
	if header == nil {
		header = http.Header{}
	}
	return &Request{query: query, body: body, header: header}
}

// RequestFromHTTP converts an *http.Request, parsing the form body
func RequestFromHTTP(r *http.Request) (*Request, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse request form: %w", err)
	}
	return NewRequest(r.URL.Query(), r.PostForm, r.Header), nil
}

// QueryParam returns the named query parameter, empty if absent
func (r *Request) QueryParam(name string) string {
	return r.query.Get(name)
}

// BodyParam returns the named body parameter, empty if absent
func (r *Request) BodyParam(name string) string {
	return r.body.Get(name)
}

// HasHeader reports whether the named header is present
func (r *Request) HasHeader(name string) bool {
	return len(r.header.Values(name)) > 0
}

// HeaderLine returns the first value of the named header, empty if absent
func (r *Request) HeaderLine(name string) string {
	return r.header.Get(name)
}
