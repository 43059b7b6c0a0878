package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/properties"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	maxAttempts = 5
	baseBackoff = 2 * time.Second
)

// Client is the HTTP implementation of Backend, authenticated with
// OAuth2 client credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient() (*Client, error) {
	baseURL := properties.RasterAPIURL()
	clientID := properties.RasterClientID()
	clientSecret := properties.RasterClientSecret()
	tokenURL := properties.RasterTokenURL()
	if baseURL == "" || clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf("missing required environment variables: RASTER_API_URL, RASTER_CLIENT_ID, RASTER_CLIENT_SECRET, or RASTER_TOKEN_URL")
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &Client{baseURL: baseURL, httpClient: config.Client(context.Background())}, nil
}

func (c *Client) Search(ctx context.Context, filter AcquisitionFilter) ([]SceneRef, error) {
	bound := filter.Region.Bound()
	payload := map[string]interface{}{
		"collection": filter.ArchiveID,
		"bbox":       []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]},
		"datetime": map[string]string{
			"from": filter.Start.UTC().Format(time.RFC3339),
			"to":   filter.End.UTC().Format(time.RFC3339),
		},
	}

	body, err := c.post(ctx, c.baseURL+"/catalog/search", payload)
	if err != nil {
		return nil, fmt.Errorf("scene search failed: %w", err)
	}

	var result struct {
		Scenes []SceneRef `json:"scenes"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return result.Scenes, nil
}

func (c *Client) Fetch(ctx context.Context, ref SceneRef, filter AcquisitionFilter) (*Scene, error) {
	geometry, err := filter.Region.GeoJSONGeometry()
	if err != nil {
		return nil, fmt.Errorf("failed to export region geometry: %w", err)
	}
	var geometryMap map[string]interface{}
	if err := json.Unmarshal(geometry, &geometryMap); err != nil {
		return nil, fmt.Errorf("failed to parse region geometry: %w", err)
	}

	payload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{"geometry": geometryMap},
			"data": []map[string]interface{}{
				{
					"type": filter.ArchiveID,
					"dataFilter": map[string]interface{}{
						"sceneId": ref.ID,
					},
				},
			},
		},
		"output": map[string]interface{}{
			"bands": SourceBands,
			"responses": []map[string]interface{}{
				{"identifier": "default", "format": map[string]string{"type": "image/tiff"}},
			},
		},
	}

	content, err := c.post(ctx, c.baseURL+"/process", payload)
	if err != nil {
		return nil, fmt.Errorf("scene fetch for %s failed: %w", ref.ID, err)
	}

	bands, err := raster.ReadTIFFBytes(content, BandRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to decode scene %s: %w", ref.ID, err)
	}
	return &Scene{ID: ref.ID, Date: ref.Date, BandOrder: BandRoles, Bands: bands}, nil
}

func (c *Client) ResolveAsset(ctx context.Context, ref string) (*roi.Region, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/assets/%s", c.baseURL, ref))
	if err != nil {
		return nil, fmt.Errorf("asset resolve for %s failed: %w", ref, err)
	}
	return roi.FromGeoJSON(ref, body)
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return c.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// doWithRetry retries transient failures (network errors, 429, 5xx)
// with doubling backoff, a bounded number of times. Anything else
// fails immediately.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	wait := baseBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		response, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(response.Body)
			response.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read response body: %w", readErr)
			} else if response.StatusCode == http.StatusOK {
				return body, nil
			} else if response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500 {
				lastErr = fmt.Errorf("backend returned %d: %s", response.StatusCode, string(body))
			} else {
				return nil, fmt.Errorf("backend returned %d: %s", response.StatusCode, string(body))
			}
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}
