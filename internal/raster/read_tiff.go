package raster

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
)

// ReadTIFF decodes every band of a GeoTIFF into grids, in file band
// order. bandNames labels the result and must match the band count.
func ReadTIFF(path string, bandNames []string) (map[string]*Grid, error) {
	godal.RegisterInternalDrivers()
	dataset, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal error %d: %s", code, msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open TIFF file %s: %w", path, err)
	}
	defer dataset.Close()

	bands := dataset.Bands()
	if len(bands) != len(bandNames) {
		return nil, fmt.Errorf("expected %d bands in %s, got %d", len(bandNames), path, len(bands))
	}

	geoTransform, err := dataset.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to get geotransform: %w", err)
	}

	width := dataset.Structure().SizeX
	height := dataset.Structure().SizeY

	grids := make(map[string]*Grid, len(bands))
	for i, band := range bands {
		data := make([]float64, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("failed to read band %s: %w", bandNames[i], err)
		}
		grids[bandNames[i]] = &Grid{Width: width, Height: height, Transform: geoTransform, Data: data}
	}
	return grids, nil
}

// ReadTIFFBytes writes the raw response to a scratch file and decodes
// it. GDAL wants a path, not a reader.
func ReadTIFFBytes(content []byte, bandNames []string) (map[string]*Grid, error) {
	tmp, err := os.CreateTemp("", "scene-*.tiff")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return ReadTIFF(filepath.Clean(path), bandNames)
}
