package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchRegionGeoJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[150.0,-27.0],[150.1,-27.0],[150.1,-26.9],[150.0,-26.9],[150.0,-27.0]]]}}]}`

func testClient(server *httptest.Server) *Client {
	return &Client{baseURL: server.URL, httpClient: server.Client()}
}

func TestSearchParsesSceneRefs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/catalog/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"scenes":[{"id":"S2A_20210110","date":"2021-01-10T00:00:00Z","cloud_cover":12.5}]}`))
	}))
	defer server.Close()

	region, err := roi.FromGeoJSON("test", []byte(searchRegionGeoJSON))
	require.NoError(t, err)

	refs, err := testClient(server).Search(context.Background(), AcquisitionFilter{
		ArchiveID: "sentinel-2-l2a",
		Start:     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC),
		Region:    region,
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "S2A_20210110", refs[0].ID)
	assert.Equal(t, 12.5, refs[0].CloudCover)
}

func TestDoWithRetryRecoversFromRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer server.Close()

	body, err := testClient(server).get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoWithRetryFailsFastOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`bad bbox`))
	}))
	defer server.Close()

	_, err := testClient(server).get(context.Background(), server.URL)
	require.ErrorContains(t, err, "backend returned 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx other than 429 is not retried")
}

func TestDoWithRetryStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(server).get(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientRequiresEnvironment(t *testing.T) {
	t.Setenv("RASTER_API_URL", "")
	t.Setenv("RASTER_CLIENT_ID", "")
	t.Setenv("RASTER_CLIENT_SECRET", "")
	t.Setenv("RASTER_TOKEN_URL", "")

	_, err := NewClient()
	assert.ErrorContains(t, err, "missing required environment variables")
}
