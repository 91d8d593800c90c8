// Package geocode resolves canonical address strings to coordinates through
// an external geocoding provider (Mapbox by default, Google optionally).
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Provider names accepted by NewClient.
const (
	ProviderMapbox = "mapbox"
	ProviderGoogle = "google"
)

var (
	// ErrNotConfigured means no provider access token was supplied.
	ErrNotConfigured = eris.New("geocode: access token not configured")
	// ErrMalformedToken means the token does not look like one the provider issues.
	ErrMalformedToken = eris.New("geocode: access token is malformed")
	// ErrUnknownProvider means the configured provider name is not supported.
	ErrUnknownProvider = eris.New("geocode: unknown provider")
)

// Client geocodes one address per call.
type Client interface {
	// GeocodeOnce resolves address to a coordinate pair. It returns nil on
	// no match and on any provider, configuration or transport failure; the
	// reason is logged, never returned.
	GeocodeOnce(ctx context.Context, address string) *Result

	// Configured reports whether the client can issue lookups at all.
	Configured() error
}

// Result holds a single geocoding match.
type Result struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	Zip string  `json:"zip,omitempty"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client for provider requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit caps provider requests per second across all callers of the client.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithCountry restricts Mapbox results to a country code (default "us").
func WithCountry(cc string) Option {
	return func(g *geocoder) {
		g.country = cc
	}
}

type geocoder struct {
	provider   string
	token      string
	baseURL    string
	country    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      retryPolicy
}

// NewClient creates a Client for the named provider. A missing or malformed
// token does not fail construction; every lookup then returns nil and
// Configured reports the problem.
func NewClient(provider, token string, opts ...Option) Client {
	g := &geocoder{
		provider:   strings.ToLower(strings.TrimSpace(provider)),
		token:      strings.TrimSpace(token),
		country:    "us",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      defaultRetryPolicy(),
	}
	if g.provider == "" {
		g.provider = ProviderMapbox
	}
	switch g.provider {
	case ProviderGoogle:
		g.baseURL = googleGeocodeURL
	default:
		g.baseURL = mapboxGeocodeURL
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured implements Client.
func (g *geocoder) Configured() error {
	switch g.provider {
	case ProviderMapbox:
		if g.token == "" {
			return ErrNotConfigured
		}
		if !validMapboxToken(g.token) {
			return ErrMalformedToken
		}
	case ProviderGoogle:
		if g.token == "" {
			return ErrNotConfigured
		}
		if strings.ContainsAny(g.token, " \t\r\n") {
			return ErrMalformedToken
		}
	default:
		return eris.Wrapf(ErrUnknownProvider, "provider %q", g.provider)
	}
	return nil
}

// GeocodeOnce implements Client.
func (g *geocoder) GeocodeOnce(ctx context.Context, address string) *Result {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	log := zap.L().With(
		zap.String("provider", g.provider),
		zap.String("address", address),
	)

	if err := g.Configured(); err != nil {
		log.Warn("geocode: provider not configured", zap.String("reason", "config"), zap.Error(err))
		return nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			log.Debug("geocode: rate limit wait aborted", zap.String("reason", "transport"), zap.Error(err))
			return nil
		}
	}

	lookup := g.geocodeMapbox
	if g.provider == ProviderGoogle {
		lookup = g.geocodeGoogle
	}
	result, err := g.retry.do(ctx, address, func(ctx context.Context) (*Result, error) {
		return lookup(ctx, address)
	})
	if err != nil {
		log.Warn("geocode: lookup failed", zap.String("reason", failureReason(err)), zap.Error(err))
		return nil
	}
	if result == nil {
		log.Debug("geocode: no match", zap.String("reason", "no_match"))
	}
	return result
}

// statusError is returned when a provider answers with a non-success status.
type statusError struct {
	provider string
	code     int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("geocode: %s returned status %d", e.provider, e.code)
}

// failureReason buckets a lookup error for the log side channel.
func failureReason(err error) string {
	var se *statusError
	switch {
	case eris.As(err, &se):
		return "http_status"
	case strings.Contains(err.Error(), "parse response"):
		return "decode"
	default:
		return "transport"
	}
}
