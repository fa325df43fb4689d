package pipeline

import (
	"sync"
	"time"

	"car-sales-pipeline/pkg/log"
	"car-sales-pipeline/pkg/utils"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Run and stage statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const metricsNamespace = "carsales_pipeline"

// StageMetrics tracks one pipeline stage
type StageMetrics struct {
	Name             string        `json:"name"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          *time.Time    `json:"end_time,omitempty"`
	Duration         time.Duration `json:"duration,omitempty"`
	RecordsProcessed int64         `json:"records_processed"`
	Status           string        `json:"status"`
	Error            string        `json:"error,omitempty"`
}

// RunMetrics tracks a whole run
type RunMetrics struct {
	RunID     string         `json:"run_id"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Stages    []StageMetrics `json:"stages"`
}

// Tracker records stage timings and record counts for one run and mirrors
// them into a private Prometheus registry.
type Tracker struct {
	mu      sync.RWMutex
	metrics RunMetrics
	stages  map[string]int
	log     log.Logger
	now     func() time.Time

	registry      *prometheus.Registry
	stageDuration *prometheus.GaugeVec
	stageRecords  *prometheus.GaugeVec
	runDuration   prometheus.Gauge
	runSuccess    prometheus.Gauge
	runTimestamp  prometheus.Gauge
}

// NewTracker starts tracking a run.
func NewTracker(runID string, logger log.Logger) *Tracker {
	labels := prometheus.Labels{"run_id": runID}
	t := &Tracker{
		metrics: RunMetrics{
			RunID:     runID,
			StartTime: time.Now(),
			Status:    StatusRunning,
		},
		stages:   make(map[string]int),
		log:      logger,
		now:      time.Now,
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "stage_duration_seconds",
			Help:        "Wall time spent in each stage of the last run.",
			ConstLabels: labels,
		}, []string{"stage"}),
		stageRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "stage_records",
			Help:        "Records handled by each stage of the last run.",
			ConstLabels: labels,
		}, []string{"stage"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_duration_seconds",
			Help:        "Duration of the last run.",
			ConstLabels: labels,
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_success",
			Help:        "1 if the last run completed, 0 if it failed.",
			ConstLabels: labels,
		}),
		runTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: labels,
		}),
	}
	t.registry.MustRegister(t.stageDuration, t.stageRecords, t.runDuration, t.runSuccess, t.runTimestamp)
	return t
}

// RunID returns the run identifier
func (t *Tracker) RunID() string {
	return t.metrics.RunID
}

// Registry exposes the run's metrics
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// StartStage marks the start of a stage.
func (t *Tracker) StartStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stages[stage] = len(t.metrics.Stages)
	t.metrics.Stages = append(t.metrics.Stages, StageMetrics{
		Name:      stage,
		StartTime: t.now(),
		Status:    StatusRunning,
	})
	t.log.WithField("stage", stage).Debug("stage started")
}

// EndStage marks a stage completed with the number of records it handled.
func (t *Tracker) EndStage(stage string, records int64) {
	t.finishStage(stage, records, nil)
}

// FailStage marks a stage failed.
func (t *Tracker) FailStage(stage string, err error) {
	t.finishStage(stage, 0, err)
}

func (t *Tracker) finishStage(stage string, records int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.stages[stage]
	if !ok {
		return
	}
	s := &t.metrics.Stages[i]
	now := t.now()
	s.EndTime = &now
	s.Duration = now.Sub(s.StartTime)
	s.RecordsProcessed = records
	s.Status = StatusCompleted
	if err != nil {
		s.Status = StatusFailed
		s.Error = err.Error()
	}

	t.stageDuration.WithLabelValues(stage).Set(s.Duration.Seconds())
	t.stageRecords.WithLabelValues(stage).Set(float64(records))

	t.log.WithFields(log.Fields{
		"stage":       stage,
		"status":      s.Status,
		"records":     records,
		"duration_ms": s.Duration.Milliseconds(),
	}).Info("stage finished")
}

// Complete marks the run as completed
func (t *Tracker) Complete() {
	t.finish(nil)
}

// Fail marks the run as failed
func (t *Tracker) Fail(err error) {
	t.finish(err)
}

func (t *Tracker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.metrics.EndTime = &now
	t.metrics.Duration = now.Sub(t.metrics.StartTime)
	t.metrics.Status = StatusCompleted
	t.runSuccess.Set(1)
	if err != nil {
		t.metrics.Status = StatusFailed
		t.metrics.Error = err.Error()
		t.runSuccess.Set(0)
	}
	t.runDuration.Set(t.metrics.Duration.Seconds())
	t.runTimestamp.Set(float64(now.Unix()))

	entry := t.log.WithFields(log.Fields{
		"status":      t.metrics.Status,
		"stages":      len(t.metrics.Stages),
		"duration_ms": t.metrics.Duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("pipeline failed")
		return
	}
	entry.Info("pipeline completed")
}

// Metrics returns a copy of the current run metrics.
func (t *Tracker) Metrics() RunMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := t.metrics
	m.Stages = append([]StageMetrics(nil), t.metrics.Stages...)
	return m
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (t *Tracker) WriteTextfile(path string) error {
	if err := utils.NewOutputManager().EnsureParentDir(path); err != nil {
		return err
	}
	return errors.Wrap(prometheus.WriteToTextfile(path, t.registry), "write metrics textfile")
}
