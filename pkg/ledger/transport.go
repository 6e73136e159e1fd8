package ledger

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is the public YNAB API base URL.
const DefaultEndpoint = "https://api.ynab.com/v1"

// The YNAB client has its base URL compiled in; these are the hosts it may
// target depending on the library version.
var ynabHosts = map[string]bool{
	"api.ynab.com":           true,
	"api.youneedabudget.com": true,
}

// endpointTransport redirects YNAB API requests to another base URL, for
// self-hosted proxies and tests.
type endpointTransport struct {
	base   http.RoundTripper
	target *url.URL
}

func (t *endpointTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !ynabHosts[req.URL.Host] {
		return t.base.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	r.URL.Path = strings.TrimSuffix(t.target.Path, "/") + strings.TrimPrefix(req.URL.Path, "/v1")
	r.URL.RawPath = ""
	r.Host = t.target.Host
	return t.base.RoundTrip(r)
}

// useEndpoint points the YNAB client at endpoint. The client always goes
// through http.DefaultClient, so the override is process-wide; the returned
// func restores the previous transport.
func useEndpoint(endpoint string) (func(), error) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" || endpoint == DefaultEndpoint {
		return func() {}, nil
	}

	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger endpoint %q: %w", endpoint, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid ledger endpoint %q: scheme and host required", endpoint)
	}

	prev := http.DefaultClient.Transport
	base := prev
	if base == nil {
		base = http.DefaultTransport
	}
	http.DefaultClient.Transport = &endpointTransport{base: base, target: target}
	return func() { http.DefaultClient.Transport = prev }, nil
}
