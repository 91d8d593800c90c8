package geocode

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

func unlimited() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient returns an HTTP client that sends any request under
// providerBase to serverURL instead, keeping the path suffix and query.
func newRewriteClient(serverURL, providerBase string) *http.Client {
	target, err := url.Parse(serverURL)
	if err != nil {
		panic(err)
	}
	return &http.Client{Transport: providerRedirect{target: target, base: providerBase}}
}

type providerRedirect struct {
	target *url.URL
	base   string
}

func (p providerRedirect) RoundTrip(req *http.Request) (*http.Response, error) {
	u := req.URL.String()
	if !strings.HasPrefix(u, p.base) {
		return http.DefaultTransport.RoundTrip(req)
	}
	dest, err := p.target.Parse(strings.TrimSuffix(p.target.Path, "/") + strings.TrimPrefix(u, p.base))
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL = dest
	out.Host = dest.Host
	return http.DefaultTransport.RoundTrip(out)
}
