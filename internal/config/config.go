package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the pre-validated run configuration. The pipeline core
// trusts it after Validate and never re-checks individual fields.
type Config struct {
	AreaName  string `json:"area_name"`
	YieldYear int    `json:"yield_year"`

	RegionPath  string `json:"region_path,omitempty"`
	RegionAsset string `json:"region_asset,omitempty"`

	ArchiveID      string  `json:"archive_id"`
	DateStart      string  `json:"date_start"`
	DateEnd        string  `json:"date_end"`
	CloudThreshold float64 `json:"cloud_threshold"`

	Indices []string `json:"indices"`

	Granularity    string            `json:"granularity"`
	Reducers       map[string]string `json:"reducers,omitempty"`
	DefaultReducer string            `json:"default_reducer"`

	SampleCount    int    `json:"sample_count"`
	SampleStrategy string `json:"sample_strategy"`
	RandomSeed     int64  `json:"random_seed"`

	ExportRoot  string `json:"export_root"`
	MakeParquet bool   `json:"make_parquet"`
	MakeCSV     bool   `json:"make_csv"`

	FetchClimate     bool     `json:"fetch_climate"`
	ClimateVariables []string `json:"climate_variables,omitempty"`
	FetchSoil        bool     `json:"fetch_soil"`
	SoilAttributes   []string `json:"soil_attributes,omitempty"`

	FetchFractions   bool     `json:"fetch_fractions"`
	FractionFamilies []string `json:"fraction_families,omitempty"`
	Fractions        []string `json:"fractions,omitempty"`
	FractionStat     string   `json:"fraction_stat,omitempty"`
}

func Default(areaName string, yieldYear int) Config {
	return Config{
		AreaName:       areaName,
		YieldYear:      yieldYear,
		ArchiveID:      "sentinel-2-l2a",
		DateStart:      fmt.Sprintf("%d-01-01", yieldYear),
		DateEnd:        fmt.Sprintf("%d-12-31", yieldYear),
		CloudThreshold: 40,
		Indices:        []string{"NDVI"},
		Granularity:    "month",
		DefaultReducer: "median",
		SampleCount:    1000,
		SampleStrategy: "uniform",
		RandomSeed:     42,
		ExportRoot:     "Outputs",
		MakeParquet:    true,
		MakeCSV:        true,
	}
}

func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.AreaName == "" {
		return fmt.Errorf("area_name must be provided")
	}
	if c.RegionPath == "" && c.RegionAsset == "" {
		return fmt.Errorf("provide region_path or region_asset")
	}
	start, err := c.StartDate()
	if err != nil {
		return err
	}
	end, err := c.EndDate()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("date_start must be <= date_end")
	}
	if c.Granularity != "month" && c.Granularity != "year" {
		return fmt.Errorf("unknown granularity %q", c.Granularity)
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

func (c Config) StartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.DateStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date_start: %w", err)
	}
	return t, nil
}

func (c Config) EndDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.DateEnd)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date_end: %w", err)
	}
	return t, nil
}

func (c Config) ExportDir() string {
	return filepath.Join(c.ExportRoot, c.AreaName, fmt.Sprintf("%d", c.YieldYear))
}

// ExportName builds a stable artifact file stem.
func (c Config) ExportName(stem string) string {
	return fmt.Sprintf("%s_%d_%s", c.AreaName, c.YieldYear, stem)
}
