package oauth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRequestNilSafety(t *testing.T) {
	req := NewRequest(nil, nil, nil)
	if req.QueryParam("x") != "" || req.BodyParam("x") != "" {
		t.Error("absent params must be empty")
	}
	if req.HasHeader("Authorization") {
		t.Error("absent header reported present")
	}
}

func TestRequestFromHTTP(t *testing.T) {
	body := url.Values{"grant_type": {"password"}}
	r := httptest.NewRequest(http.MethodPost, "/token?response_type=code",
		strings.NewReader(body.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Authorization", "Basic abc")

	req, err := RequestFromHTTP(r)
	if err != nil {
		t.Fatal(err)
	}
	if got := req.QueryParam("response_type"); got != "code" {
		t.Errorf("QueryParam = %q", got)
	}
	if got := req.BodyParam("grant_type"); got != "password" {
		t.Errorf("BodyParam = %q", got)
	}
	// Query parameters never leak into the body view.
	if req.BodyParam("response_type") != "" {
		t.Error("query parameter visible as a body parameter")
	}
	if got := req.HeaderLine("Authorization"); got != "Basic abc" {
		t.Errorf("HeaderLine = %q", got)
	}
}

func TestResponseRedirect(t *testing.T) {
	resp := NewResponse()
	resp.SetRedirect("http://example.com/cb?code=x")

	rec := httptest.NewRecorder()
	if err := resp.Write(rec); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "http://example.com/cb?code=x" {
		t.Errorf("Location = %q", got)
	}
}

func TestResponseJSONBody(t *testing.T) {
	resp := NewResponse()
	resp.SetJSON(ErrorResponse{Error: "invalid_request"})
	resp.SetStatus(http.StatusBadRequest)

	rec := httptest.NewRecorder()
	if err := resp.Write(rec); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), `"invalid_request"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}
