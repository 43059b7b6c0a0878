// Package pipeline wires the components into the fixed run sequence:
// filter, stack, indices, compose, then sampling, summary and export.
// Component failures are caught here, attributed to their step, and
// never unwind steps that do not depend on the failed artifact.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/climate"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/config"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/export"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/graph"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/indices"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/preview"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/properties"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/report"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/sampling"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/sof"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/soil"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/timeseries"
	"golang.org/x/sync/errgroup"
)

// Run executes the whole pipeline for one configuration and always
// returns a report, even when every step failed.
func Run(ctx context.Context, cfg config.Config, backend archive.Backend) *report.RunReport {
	rep := report.New()

	if err := cfg.Validate(); err != nil {
		rep.AddError("config", err)
		return rep
	}

	region, err := loadRegion(ctx, cfg, backend)
	if err != nil {
		rep.AddError("load_region", err)
		return rep
	}
	rep.AddStep("region loaded", map[string]string{"name": region.Name})

	start, _ := cfg.StartDate()
	end, _ := cfg.EndDate()

	// Imagery branch. Its failures never stop the aux connectors.
	runImagery(ctx, cfg, backend, region, start, end, rep)

	// Aux connectors are independent collaborators; fan out.
	runConnectors(ctx, cfg, region, start, end, rep)

	if err := rep.ToJSON(filepath.Join(cfg.ExportDir(), "run_report.json")); err != nil {
		rep.AddError("report", err)
	}
	return rep
}

func loadRegion(ctx context.Context, cfg config.Config, backend archive.Backend) (*roi.Region, error) {
	if cfg.RegionAsset != "" {
		return backend.ResolveAsset(ctx, cfg.RegionAsset)
	}
	return roi.Load(properties.RootPath(), cfg.RegionPath)
}

func runImagery(ctx context.Context, cfg config.Config, backend archive.Backend, region *roi.Region, start, end time.Time, rep *report.RunReport) {
	registry := indices.Defaults()
	defs, unknown := registry.Resolve(cfg.Indices)
	for _, name := range unknown {
		rep.AddError("indices", fmt.Errorf("unknown index %q", name))
	}

	filterNode := &graph.Filter{Spec: archive.AcquisitionFilter{
		ArchiveID:      cfg.ArchiveID,
		Start:          start,
		End:            end,
		CloudThreshold: cfg.CloudThreshold,
		Region:         region,
	}}
	indexNode := &graph.WithIndices{
		Input: &graph.Stack{Input: filterNode},
		Defs:  defs,
		OnSkip: func(s indices.Skip) {
			rep.AddStep("index skipped", map[string]string{"band": s.String()})
		},
	}
	composeNode := &graph.Composite{
		Input:       indexNode,
		Granularity: timeseries.Granularity(cfg.Granularity),
		Reducers:    reducerConfig(cfg),
		Start:       start,
		End:         end,
		OnGap: func(g timeseries.Gap) {
			rep.AddGap("empty composite period", map[string]string{"variable": g.Variable, "period": g.PeriodKey})
		},
	}

	ev := graph.NewEvaluator(backend)
	scenes, err := ev.Collection(ctx, filterNode)
	if err != nil {
		rep.AddError("filter", err)
		return
	}
	if len(scenes) == 0 {
		rep.AddGap("imagery filter returned no scenes", map[string]string{
			"archive": cfg.ArchiveID, "from": cfg.DateStart, "to": cfg.DateEnd,
		})
		return
	}
	rep.AddStep("scenes filtered and masked", map[string]string{"count": fmt.Sprintf("%d", len(scenes))})

	composite, err := ev.Composite(ctx, composeNode)
	if err != nil {
		rep.AddError("compose", err)
		return
	}
	rep.AddStep("composite cube assembled", map[string]string{
		"bands": fmt.Sprintf("%d", len(composite.BandNames())),
	})

	exportTables(cfg, "cube_stats", export.SummaryTable(composite), rep)

	points, err := sampling.GeneratePoints(region, cfg.SampleCount, cfg.SampleStrategy, cfg.RandomSeed)
	if err != nil {
		// Fatal to the sampling step only; the summary export above
		// already completed.
		rep.AddError("sampling", err)
	} else {
		rep.AddStep("sample points generated", map[string]string{"count": fmt.Sprintf("%d", len(points))})
		rows := sampling.Extract(composite, points)
		exportTables(cfg, "samples", export.SampleTable(composite, rows), rep)
	}

	renderPreview(cfg, composite, points, rep)
}

func reducerConfig(cfg config.Config) timeseries.ReducerConfig {
	rc := timeseries.ReducerConfig{Default: timeseries.ReducerKind(cfg.DefaultReducer)}
	if len(cfg.Reducers) > 0 {
		rc.PerVariable = make(map[string]timeseries.ReducerKind, len(cfg.Reducers))
		for variable, kind := range cfg.Reducers {
			rc.PerVariable[variable] = timeseries.ReducerKind(kind)
		}
	}
	return rc
}

func exportTables(cfg config.Config, stem string, table *export.Table, rep *report.RunReport) {
	if cfg.MakeCSV {
		dest := filepath.Join(cfg.ExportDir(), cfg.ExportName(stem)+".csv")
		if err := export.WriteCSV(table, dest); err != nil {
			rep.AddError("export_"+stem, err)
		} else {
			rep.AddArtifact(dest, "csv")
		}
	}
	if cfg.MakeParquet {
		dest := filepath.Join(cfg.ExportDir(), cfg.ExportName(stem)+".parquet")
		if err := export.WriteParquet(table, dest); err != nil {
			rep.AddError("export_"+stem, err)
		} else {
			rep.AddArtifact(dest, "parquet")
		}
	}
}

func runConnectors(ctx context.Context, cfg config.Config, region *roi.Region, start, end time.Time, rep *report.RunReport) {
	g, gctx := errgroup.WithContext(ctx)

	if cfg.FetchClimate {
		g.Go(func() error {
			scenes, err := climate.Fetch(gctx, region, start, end, cfg.ClimateVariables)
			if err != nil {
				rep.AddError("climate", err)
				return nil
			}
			composeAux(gctx, cfg, "climate", scenes, start, end, rep)
			return nil
		})
	}
	if cfg.FetchSoil {
		g.Go(func() error {
			scenes, err := soil.Fetch(gctx, region, start, cfg.SoilAttributes)
			if err != nil {
				rep.AddError("soil", err)
				return nil
			}
			composeAux(gctx, cfg, "soil", scenes, start, end, rep)
			return nil
		})
	}
	if cfg.FetchFractions {
		g.Go(func() error {
			scenes, skipped, err := sof.Fetch(gctx, region, start, cfg.FractionFamilies, cfg.Fractions, cfg.FractionStat)
			if err != nil {
				rep.AddError("soil_fractions", err)
				return nil
			}
			for _, reason := range skipped {
				rep.AddGap("soil fractions layer skipped", map[string]string{"layer": reason})
			}
			composeAux(gctx, cfg, "soil_fractions", scenes, start, end, rep)
			return nil
		})
	}
	_ = g.Wait()
}

// composeAux runs Scene-shaped connector output through the same
// stack/compose machinery as imagery, then exports its summary.
func composeAux(ctx context.Context, cfg config.Config, name string, scenes []archive.Scene, start, end time.Time, rep *report.RunReport) {
	if len(scenes) == 0 {
		rep.AddGap(name+" connector returned no data", nil)
		return
	}

	node := &graph.Composite{
		Input:       &graph.Stack{Input: &graph.Static{Name: name, Scenes: scenes}},
		Granularity: timeseries.Granularity(cfg.Granularity),
		Reducers:    timeseries.ReducerConfig{Default: timeseries.Mean},
		Start:       start,
		End:         end,
	}
	composite, err := graph.NewEvaluator(nil).Composite(ctx, node)
	if err != nil {
		rep.AddError(name, err)
		return
	}
	rep.AddStep(name+" composite assembled", map[string]string{
		"bands": fmt.Sprintf("%d", len(composite.BandNames())),
	})
	exportTables(cfg, name, export.SummaryTable(composite), rep)
}

func renderPreview(cfg config.Config, composite *timeseries.CompositeCube, points []sampling.Point, rep *report.RunReport) {
	names := composite.BandNames()
	if len(names) == 0 {
		return
	}
	band := names[0]
	for _, name := range names {
		if grid, ok := composite.Band(name); ok && !allNoData(grid.Data) {
			band = name
			break
		}
	}
	dest := filepath.Join(cfg.ExportDir(), cfg.ExportName("preview")+".png")
	if err := preview.RenderBand(composite, band, points, dest); err != nil {
		rep.AddError("preview", err)
		return
	}
	rep.AddArtifact(dest, "png")
}

func allNoData(data []float64) bool {
	for _, v := range data {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}
