package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const mapboxGeocodeURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// mapboxResultTypes restricts matches to street addresses, places and postcodes.
const mapboxResultTypes = "address,place,postcode"

// mapboxResponse is the subset of the Mapbox Places response we consume.
type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	// Center is [longitude, latitude].
	Center     []float64 `json:"center"`
	PlaceName  string    `json:"place_name"`
	Properties struct {
		Postcode string `json:"postcode"`
	} `json:"properties"`
	Context []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"context"`
}

// validMapboxToken accepts public (pk.) and secret (sk.) tokens of the
// three-part "prefix.payload.signature" shape.
func validMapboxToken(tok string) bool {
	if strings.ContainsAny(tok, " \t\r\n") {
		return false
	}
	if !strings.HasPrefix(tok, "pk.") && !strings.HasPrefix(tok, "sk.") {
		return false
	}
	return strings.Count(tok, ".") >= 2
}

// geocodeMapbox issues one forward-geocoding request. A nil result with a
// nil error means the provider answered but had no candidate.
func (g *geocoder) geocodeMapbox(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"access_token": {g.token},
		"limit":        {"1"},
		"types":        {mapboxResultTypes},
	}
	if g.country != "" {
		params.Set("country", g.country)
	}

	reqURL := g.baseURL + "/" + url.PathEscape(address) + ".json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{provider: ProviderMapbox, code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox read body")
	}

	var mbResp mapboxResponse
	if err := json.Unmarshal(body, &mbResp); err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox parse response")
	}

	if len(mbResp.Features) == 0 {
		return nil, nil
	}

	f := mbResp.Features[0]
	if len(f.Center) < 2 {
		return nil, eris.New("geocode: mapbox parse response: feature has no center")
	}

	return &Result{
		Lng: f.Center[0],
		Lat: f.Center[1],
		Zip: mapboxPostcode(f),
	}, nil
}

// mapboxPostcode prefers the postcode context entry and falls back to the
// flat property.
func mapboxPostcode(f mapboxFeature) string {
	for _, c := range f.Context {
		if strings.HasPrefix(c.ID, "postcode") && c.Text != "" {
			return c.Text
		}
	}
	return f.Properties.Postcode
}
