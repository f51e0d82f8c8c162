package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/biogas-sitemap/internal/isochrone"
)

// DefaultBaseURL is the public OpenRouteService endpoint.
const DefaultBaseURL = "https://api.openrouteservice.org"

const (
	profile        = "driving-hgv"
	maxErrorDetail = 512
)

// Client implements isochrone.Transport against the OpenRouteService
// isochrones API. When relay is set, every call is wrapped in the CORS relay
// URL and the key travels as a query parameter instead of a header.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	relay      string
	logger     *slog.Logger
}

// NewClient creates a client that calls the provider directly.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// NewRelayClient creates a client that reaches the provider through the CORS
// relay at relayURL. The encoded target URL is appended to relayURL.
func NewRelayClient(apiKey, baseURL, relayURL string, timeout time.Duration, logger *slog.Logger) *Client {
	c := NewClient(apiKey, baseURL, timeout, logger)
	c.relay = relayURL
	return c
}

// Isochrones requests one polygon per range around req.Origin.
func (c *Client) Isochrones(ctx context.Context, req isochrone.Request) ([]isochrone.Polygon, error) {
	body, err := json.Marshal(requestBody{
		Locations: [][2]float64{{req.Origin.Lon, req.Origin.Lat}},
		Range:     req.Ranges,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/geo+json, application/json")
	if c.relay == "" {
		httpReq.Header.Set("Authorization", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("isochrone request: %w", ctxErr)
		}
		return nil, &isochrone.NetworkError{Err: err}
	}
	// Drain so the connection can be reused.
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		detail := http.StatusText(resp.StatusCode)
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		if readErr == nil {
			detail = errorDetail(body)
		}
		c.logger.Debug("isochrone provider rejected request",
			"site_id", req.SiteID,
			"status", resp.StatusCode,
			"relay", c.relay != "",
			"read_error", readErr,
		)
		return nil, &isochrone.ProviderError{Status: resp.StatusCode, Detail: detail}
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, &isochrone.ProviderError{Status: resp.StatusCode, Detail: fmt.Sprintf("decode response: %v", err)}
	}
	return fc.polygons(resp.StatusCode)
}

func (c *Client) endpoint() string {
	target := fmt.Sprintf("%s/v2/isochrones/%s", c.baseURL, profile)
	if c.relay == "" {
		return target
	}
	return c.relay + url.QueryEscape(target+"?"+url.Values{"api_key": {c.apiKey}}.Encode())
}

// errorDetail extracts the provider's message from an error body.
func errorDetail(body []byte) string {
	var withObject struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &withObject); err == nil && withObject.Error.Message != "" {
		return withObject.Error.Message
	}
	var withString struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &withString); err == nil && withString.Error != "" {
		return withString.Error
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "empty response body"
}

// OpenRouteService API types.

type requestBody struct {
	Locations [][2]float64 `json:"locations"` // [lon, lat]
	Range     []int        `json:"range"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties struct {
		Value float64 `json:"value"`
	} `json:"properties"`
	Geometry json.RawMessage `json:"geometry"`
}

func (fc featureCollection) polygons(status int) ([]isochrone.Polygon, error) {
	if len(fc.Features) == 0 {
		return nil, &isochrone.ProviderError{Status: status, Detail: "response contains no isochrone features"}
	}
	out := make([]isochrone.Polygon, 0, len(fc.Features))
	for i, f := range fc.Features {
		if len(f.Geometry) == 0 || bytes.Equal(f.Geometry, []byte("null")) {
			return nil, &isochrone.ProviderError{Status: status, Detail: fmt.Sprintf("feature %d has no geometry", i)}
		}
		out = append(out, isochrone.Polygon{Range: int(f.Properties.Value), Geometry: f.Geometry})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range < out[j].Range })
	return out, nil
}

var _ isochrone.Transport = (*Client)(nil)
