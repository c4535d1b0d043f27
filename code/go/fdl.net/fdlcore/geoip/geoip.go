package geoip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
)

const apiBase = "https://api.ipinfodb.com/v3/ip-city/"

// Location is the city-level result of an IP lookup. Latitude and longitude
// come back as strings from the API and are stored as given.
type Location struct {
	Country   string `json:"countryName"`
	Region    string `json:"regionName"`
	City      string `json:"cityName"`
	Zip       string `json:"zipCode"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Status    string `json:"statusCode"`
	Message   string `json:"statusMessage"`
}

// Geolocation renders the coordinate pair as the JSON blob the download
// ledger stores. Empty when the API returned no coordinates.
func (l *Location) Geolocation() string {
	if l.Latitude == "" && l.Longitude == "" {
		return ""
	}
	geo, err := json.Marshal(map[string]string{
		"latitude":  l.Latitude,
		"longitude": l.Longitude,
	})
	if err != nil {
		return ""
	}
	return string(geo)
}

// Client looks up city-level geolocation at IPInfoDB. Lookups are best
// effort; callers log failures and move on.
type Client struct {
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Lookup(ctx context.Context, ip string) (*Location, error) {
	if c.apiKey == "" {
		return nil, common.NewError("geoip_disabled", "no api key configured")
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("ip", ip)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, common.NewErrorf("geoip_lookup", "%v", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, common.NewErrorf("geoip_lookup", "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.NewErrorf("geoip_lookup", "unexpected status %v", resp.StatusCode)
	}

	loc := &Location{}
	if err := json.NewDecoder(resp.Body).Decode(loc); err != nil {
		return nil, common.NewErrorf("geoip_lookup", "decoding response: %v", err)
	}
	if loc.Status != "OK" {
		return nil, common.NewErrorf("geoip_lookup", "api status %v: %v", loc.Status, loc.Message)
	}
	return loc, nil
}
