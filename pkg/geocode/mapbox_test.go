package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMapboxToken = "pk.eyJ1IjoidGVzdCJ9.signature"

func newMapboxTestServer(t *testing.T, status int, body string) (*httptest.Server, *url.URL) {
	t.Helper()
	captured := new(url.URL)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = *r.URL
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestMapboxGeocode_ContextPostcode(t *testing.T) {
	srv, reqURL := newMapboxTestServer(t, http.StatusOK, `{
		"features": [{
			"center": [-89.6501, 39.7817],
			"place_name": "123 Main St, Springfield, Illinois 62704, United States",
			"properties": {"postcode": "99999"},
			"context": [
				{"id": "neighborhood.1", "text": "Downtown"},
				{"id": "postcode.8734", "text": "62704"},
				{"id": "place.2", "text": "Springfield"}
			]
		}]
	}`)

	c := NewClient(ProviderMapbox, testMapboxToken, WithHTTPClient(newRewriteClient(srv.URL, mapboxGeocodeURL)))
	result := c.GeocodeOnce(context.Background(), "123 Main St, Springfield, IL 62704")

	require.NotNil(t, result)
	assert.InDelta(t, 39.7817, result.Lat, 0.0001)
	assert.InDelta(t, -89.6501, result.Lng, 0.0001)
	assert.Equal(t, "62704", result.Zip)

	q := reqURL.Query()
	assert.Equal(t, "1", q.Get("limit"))
	assert.Equal(t, "address,place,postcode", q.Get("types"))
	assert.Equal(t, testMapboxToken, q.Get("access_token"))
	assert.True(t, strings.HasSuffix(reqURL.Path, ".json"))
	assert.Contains(t, reqURL.Path, "123 Main St")
}

func TestMapboxGeocode_PropertyPostcodeFallback(t *testing.T) {
	srv, _ := newMapboxTestServer(t, http.StatusOK, `{
		"features": [{"center": [-87.6298, 41.8781], "properties": {"postcode": "60601"}}]
	}`)

	c := NewClient(ProviderMapbox, testMapboxToken, WithHTTPClient(newRewriteClient(srv.URL, mapboxGeocodeURL)))
	result := c.GeocodeOnce(context.Background(), "1 Lake St, Chicago, IL")

	require.NotNil(t, result)
	assert.Equal(t, "60601", result.Zip)
}

func TestMapboxGeocode_NoPostcode(t *testing.T) {
	srv, _ := newMapboxTestServer(t, http.StatusOK, `{"features": [{"center": [-87.6, 41.8]}]}`)

	c := NewClient(ProviderMapbox, testMapboxToken, WithHTTPClient(newRewriteClient(srv.URL, mapboxGeocodeURL)))
	result := c.GeocodeOnce(context.Background(), "Chicago, IL")

	require.NotNil(t, result)
	assert.Empty(t, result.Zip)
}

func TestMapboxGeocode_NoFeatures(t *testing.T) {
	srv, _ := newMapboxTestServer(t, http.StatusOK, `{"features": []}`)

	c := NewClient(ProviderMapbox, testMapboxToken, WithHTTPClient(newRewriteClient(srv.URL, mapboxGeocodeURL)))
	assert.Nil(t, c.GeocodeOnce(context.Background(), "000 Nowhere"))
}

func TestMapboxGeocode_HTTPError(t *testing.T) {
	srv, _ := newMapboxTestServer(t, http.StatusUnauthorized, `{"message": "Not Authorized - Invalid Token"}`)

	c := NewClient(ProviderMapbox, testMapboxToken, WithHTTPClient(newRewriteClient(srv.URL, mapboxGeocodeURL)))
	assert.Nil(t, c.GeocodeOnce(context.Background(), "123 Main St"))

	g := c.(*geocoder)
	_, err := g.geocodeMapbox(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, "http_status", failureReason(err))
}

func TestMapboxGeocode_BadJSON(t *testing.T) {
	srv, _ := newMapboxTestServer(t, http.StatusOK, `{not json`)

	c := NewClient(ProviderMapbox, testMapboxToken, WithHTTPClient(newRewriteClient(srv.URL, mapboxGeocodeURL)))
	assert.Nil(t, c.GeocodeOnce(context.Background(), "123 Main St"))

	_, err := c.(*geocoder).geocodeMapbox(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.Equal(t, "decode", failureReason(err))
}

func TestMapboxGeocode_ShortCenter(t *testing.T) {
	srv, _ := newMapboxTestServer(t, http.StatusOK, `{"features": [{"center": [-87.6]}]}`)

	c := NewClient(ProviderMapbox, testMapboxToken, WithHTTPClient(newRewriteClient(srv.URL, mapboxGeocodeURL)))
	assert.Nil(t, c.GeocodeOnce(context.Background(), "123 Main St"))
}

func TestMapboxGeocode_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewClient(ProviderMapbox, testMapboxToken, WithBaseURL(srv.URL))
	assert.Nil(t, c.GeocodeOnce(context.Background(), "123 Main St"))
}

func TestValidMapboxToken(t *testing.T) {
	tests := []struct {
		tok  string
		want bool
	}{
		{testMapboxToken, true},
		{"sk.abc.def", true},
		{"pk.abc", false},
		{"abc.def.ghi", false},
		{"pk.abc def.ghi", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validMapboxToken(tt.tok), "token=%q", tt.tok)
	}
}
