package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the transport-neutral result of a core operation: a status
// code, headers, and either a JSON body, a redirect, or nothing. The HTTP
// adapter writes it to an http.ResponseWriter; tests inspect it directly.
type Response struct {
	status int
	header http.Header
	body   any
	// location is set for redirect responses and wins over body
	location string
}

// NewResponse creates an empty 200 response
func NewResponse() *Response {
	return &Response{
		status: http.StatusOK,
		header: http.Header{},
	}
}

// SetStatus sets the HTTP status code
func (r *Response) SetStatus(status int) {
	r.status = status
}

// Status returns the HTTP status code
func (r *Response) Status() int {
	return r.status
}

// SetHeader sets a response header
func (r *Response) SetHeader(name, value string) {
	r.header.Set(name, value)
}

// Header returns the first value of the named response header
func (r *Response) Header(name string) string {
	return r.header.Get(name)
}

// SetJSON sets a JSON body and the matching Content-Type
func (r *Response) SetJSON(body any) {
	r.body = body
	r.header.Set("Content-Type", "application/json")
}

// Body returns the JSON body value, nil if none
func (r *Response) Body() any {
	return r.body
}

// SetRedirect turns the response into a 302 redirect to the given location
func (r *Response) SetRedirect(location string) {
	r.status = http.StatusFound
	r.location = location
	r.header.Set("Location", location)
}

// Location returns the redirect target, empty for non-redirect responses
func (r *Response) Location() string {
	return r.location
}

// Write renders the response onto an http.ResponseWriter
func (r *Response) Write(w http.ResponseWriter) error {
	for name, values := range r.header {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(r.status)

	if r.location != "" || r.body == nil {
		return nil
	}

	if err := json.NewEncoder(w).Encode(r.body); err != nil {
		return fmt.Errorf("failed to encode response body: %w", err)
	}
	return nil
}
