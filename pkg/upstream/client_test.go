package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestHeaderClient(t *testing.T) {
	t.Parallel()

	var seen string
	base := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("Authorization")
		return okResponse("{}"), nil
	})}

	client := HeaderClient(base, "Authorization", "Bearer key-123")
	req, err := http.NewRequest(http.MethodGet, "http://upstream.test/v1/search", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if seen != "Bearer key-123" {
		t.Fatalf("upstream saw Authorization %q", seen)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("original request was mutated: %q", got)
	}
	if base.Transport == client.Transport {
		t.Fatalf("base client transport was replaced")
	}
}

func TestQueryClient(t *testing.T) {
	t.Parallel()

	var seenURL string
	base := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seenURL = r.URL.String()
		return okResponse("{}"), nil
	})}

	client := QueryClient(base, "api_key", "key-9")
	req, err := http.NewRequest(http.MethodGet, "http://upstream.test/people?email=a%40b.c", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()

	if !strings.Contains(seenURL, "api_key=key-9") {
		t.Fatalf("credential parameter missing from %q", seenURL)
	}
	if !strings.Contains(seenURL, "email=a%40b.c") {
		t.Fatalf("existing parameters dropped from %q", seenURL)
	}
	if strings.Contains(req.URL.RawQuery, "api_key") {
		t.Fatalf("original request URL was mutated: %q", req.URL)
	}
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"name":"ada"}`)
	}))
	t.Cleanup(server.Close)

	var out struct {
		Name string `json:"name"`
	}
	if err := GetJSON(context.Background(), server.Client(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Name != "ada" {
		t.Fatalf("decoded %+v", out)
	}
}

func TestGetJSONErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusPaymentRequired)
	}))
	t.Cleanup(server.Close)

	err := GetJSON(context.Background(), server.Client(), server.URL, &map[string]any{})
	if err == nil {
		t.Fatalf("expected an error for status 402")
	}
	if !strings.Contains(err.Error(), "402") || !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("error lacks status detail: %v", err)
	}
}

func TestPostJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"to":"ops@example.com"`) {
			t.Errorf("unexpected body %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg-1"}`)
	}))
	t.Cleanup(server.Close)

	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"to": "ops@example.com"}
	if err := PostJSON(context.Background(), server.Client(), server.URL, in, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.ID != "msg-1" {
		t.Fatalf("decoded %+v", out)
	}
}

func TestAuthorizationValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header, credential, want string
	}{
		{"Authorization", "key-123", "Bearer key-123"},
		{"authorization", "key-123", "Bearer key-123"},
		{"Authorization", "Bearer key-123", "Bearer key-123"},
		{"X-Api-Key", "key-123", "key-123"},
	}
	for _, tc := range cases {
		if got := AuthorizationValue(tc.header, tc.credential); got != tc.want {
			t.Errorf("AuthorizationValue(%q, %q) = %q, want %q", tc.header, tc.credential, got, tc.want)
		}
	}
}
