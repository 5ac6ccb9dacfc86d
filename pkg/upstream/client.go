// Package upstream provides the outbound HTTP plumbing shared by
// integration adapters: per-call credential injection and small JSON
// request helpers.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HeaderClient returns a copy of base whose transport sets header name to
// value on every request. The base client is never modified; credentials
// vary per call, so adapters decorate at call time.
func HeaderClient(base *http.Client, name, value string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	clone := *base
	clone.Transport = &headerTransport{
		next:  defaultRoundTripper(base.Transport),
		name:  name,
		value: value,
	}
	return &clone
}

// QueryClient returns a copy of base whose transport sets query parameter
// name to value on every request.
func QueryClient(base *http.Client, name, value string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	clone := *base
	clone.Transport = &queryTransport{
		next:  defaultRoundTripper(base.Transport),
		name:  name,
		value: value,
	}
	return &clone
}

// AuthorizationValue formats a credential for the named header. Bare
// credentials bound for the Authorization header get the Bearer prefix.
func AuthorizationValue(header, credential string) string {
	if http.CanonicalHeaderKey(header) == "Authorization" && !strings.HasPrefix(credential, "Bearer ") {
		return "Bearer " + credential
	}
	return credential
}

func defaultRoundTripper(rt http.RoundTripper) http.RoundTripper {
	if rt != nil {
		return rt
	}
	return http.DefaultTransport
}

type headerTransport struct {
	next  http.RoundTripper
	name  string
	value string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set(t.name, t.value)
	return t.next.RoundTrip(clone)
}

type queryTransport struct {
	next  http.RoundTripper
	name  string
	value string
}

func (t *queryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	q := clone.URL.Query()
	q.Set(t.name, t.value)
	clone.URL.RawQuery = q.Encode()
	return t.next.RoundTrip(clone)
}

// GetJSON issues a GET and decodes the JSON response into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("upstream: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return do(client, req, out)
}

// PostJSON issues a POST with a JSON body and decodes the response into
// out. Pass a nil out to discard the response body.
func PostJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("upstream: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("upstream: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return do(client, req, out)
}

func do(client *http.Client, req *http.Request, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream: %s %s: status %d: %s",
			req.Method, req.URL, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("upstream: decoding response from %s: %w", req.URL, err)
	}
	return nil
}
