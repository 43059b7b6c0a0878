// Package archive talks to the hosted raster backend: scene search,
// scene fetch and per-pixel cloud masking.
package archive

import (
	"context"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
)

// AcquisitionFilter selects scenes from a remote image archive.
// Immutable value object.
type AcquisitionFilter struct {
	ArchiveID      string
	Start          time.Time
	End            time.Time
	CloudThreshold float64
	Region         *roi.Region
}

// SceneRef is a search hit: enough to fetch the scene later.
type SceneRef struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	CloudCover float64   `json:"cloud_cover"`
}

// Scene is one source image. BandOrder is the fixed ordered band set;
// Bands holds one grid per band. Scenes are never mutated after the
// cloud mask is applied.
type Scene struct {
	ID        string
	Date      time.Time
	BandOrder []string
	Bands     map[string]*raster.Grid
}

// Backend is the remote raster-computation service. Implementations
// must be safe to call sequentially from a single goroutine; all
// retries happen inside the implementation.
type Backend interface {
	Search(ctx context.Context, filter AcquisitionFilter) ([]SceneRef, error)
	Fetch(ctx context.Context, ref SceneRef, filter AcquisitionFilter) (*Scene, error)
	ResolveAsset(ctx context.Context, ref string) (*roi.Region, error)
}

// Spectral roles requested from the archive, in wire order. The cloud
// probability band rides along for masking and is dropped before the
// scene reaches the cube builder.
var (
	SourceBands = []string{"B02", "B03", "B04", "B08", "B05", "B06", "B07", "B8A", "B11", "B12", "CLD"}
	BandRoles   = []string{"BLUE", "GREEN", "RED", "NIR", "RE1", "RE2", "RE3", "RE4", "SWIR1", "SWIR2", "CLD"}

	cloudBand = "CLD"
)
