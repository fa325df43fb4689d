package pipeline

import (
	"context"
	"errors"

	"car-sales-pipeline/internal/config"
	"car-sales-pipeline/internal/model"
	"car-sales-pipeline/internal/store"
	"car-sales-pipeline/pkg/log"

	"github.com/google/uuid"
)

// Pipeline runs the fixed sequence load, clean, persist, kpi, aggregate,
// charts, export. Any failure stops the run; files written by earlier
// stages stay on disk.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	loader   *Loader
	cleaner  *Cleaner
	exporter *Exporter
	charts   *ChartRenderer
	tracker  *Tracker
	log      log.Logger
}

// New wires a pipeline for one run. Every run gets a fresh run id.
func New(cfg *config.Config, st store.Store, logger log.Logger) (*Pipeline, error) {
	runID := uuid.NewString()
	logger = logger.WithField("run_id", runID)

	charts, err := NewChartRenderer(cfg.Charts, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:      cfg,
		store:    st,
		loader:   NewLoader(cfg.Cleaning.Sheet, logger),
		cleaner:  NewCleaner(cfg.Cleaning, logger),
		exporter: NewExporter(logger),
		charts:   charts,
		tracker:  NewTracker(runID, logger),
		log:      logger,
	}, nil
}

// Tracker returns the run tracker
func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

// Run executes every stage in order.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	p.log.WithFields(log.Fields{
		"input":    p.cfg.Paths.RawData,
		"database": p.cfg.Database.Path,
	}).Info("pipeline started")

	defer func() {
		if err != nil {
			p.tracker.Fail(err)
		} else {
			p.tracker.Complete()
		}
		if path := p.cfg.Metrics.TextfilePath; path != "" {
			if werr := p.tracker.WriteTextfile(path); werr != nil {
				p.log.WithError(werr).Warn("metrics textfile not written")
			}
		}
	}()

	var (
		raw       *model.RawTable
		table     *model.SalesTable
		kpis      []model.RegionSummary
		summaries model.Summaries
	)

	err = p.stage(ctx, StageLoad, func() (int, error) {
		raw, err = p.loader.Load(ctx, p.cfg.Paths.RawData)
		return raw.Len(), err
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, StageClean, func() (int, error) {
		if table, err = p.cleaner.Clean(raw); err != nil {
			return 0, err
		}
		return table.Len(), p.exporter.WriteCleaned(p.cfg.Paths.CleanedData, table)
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, StagePersist, func() (int, error) {
		if err := p.store.ReplaceSales(ctx, table); err != nil {
			return 0, newStageError(StagePersist, p.cfg.Database.Path, ErrStore, err)
		}
		return table.Len(), nil
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, StageKPI, func() (int, error) {
		if kpis, err = p.store.RegionKPIs(ctx); err != nil {
			return 0, newStageError(StageKPI, p.cfg.Database.Path, ErrStore, err)
		}
		return len(kpis), p.exporter.WriteKPIs(p.cfg.Paths.KPIOutput, kpis)
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, StageAggregate, func() (int, error) {
		summaries = Aggregate(table)
		return len(summaries.ByRegion) + len(summaries.ByModel) + len(summaries.ByMonth), nil
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, StageCharts, func() (int, error) {
		return 3, p.charts.RenderAll(p.cfg, kpis, summaries)
	})
	if err != nil {
		return err
	}

	return p.stage(ctx, StageExport, func() (int, error) {
		if err := p.exporter.WriteAggregates(p.cfg, summaries); err != nil {
			return 0, err
		}
		if path := p.cfg.Export.WorkbookPath; path != "" {
			if err := p.exporter.WriteWorkbook(path, summaries); err != nil {
				return 0, err
			}
		}
		return len(summaries.ByRegion) + len(summaries.ByModel) + len(summaries.ByMonth), nil
	})
}

// stage runs fn as the named stage. Failures that are not already stage
// errors are attributed to the stage.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() (int, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.tracker.StartStage(name)
	records, err := fn()
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			err = &StageError{Stage: name, Err: err}
		}
		p.tracker.FailStage(name, err)
		return err
	}
	p.tracker.EndStage(name, int64(records))
	return nil
}
