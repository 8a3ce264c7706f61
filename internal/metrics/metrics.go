// Package metrics collects job counters and exports them in Prometheus
// textfile-collector format at the end of a run. A batch job has no endpoint
// to scrape, so the registry is serialized to disk instead.
package metrics

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Job holds the metrics of one pipeline run on a private registry.
type Job struct {
	reg *prometheus.Registry

	RecordsLoaded   *prometheus.CounterVec
	PromptsBuilt    prometheus.Counter
	TrainSteps      prometheus.Counter
	TrainSeconds    prometheus.Gauge
	Generations     prometheus.Counter
	GenerateSeconds prometheus.Gauge
}

// NewJob constructs a Job with all metrics registered.
func NewJob() *Job {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Job{
		reg: reg,
		RecordsLoaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gemmaft_records_loaded_total",
			Help: "Dataset records loaded, by split.",
		}, []string{"split"}),
		PromptsBuilt: f.NewCounter(prometheus.CounterOpts{
			Name: "gemmaft_prompts_built_total",
			Help: "Prompts rendered across all splits.",
		}),
		TrainSteps: f.NewCounter(prometheus.CounterOpts{
			Name: "gemmaft_train_steps_total",
			Help: "Optimizer steps reported by the training runtime.",
		}),
		TrainSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "gemmaft_train_duration_seconds",
			Help: "Wall-clock duration of the fine-tuning stage.",
		}),
		Generations: f.NewCounter(prometheus.CounterOpts{
			Name: "gemmaft_generations_total",
			Help: "Comments generated for the test split.",
		}),
		GenerateSeconds: f.NewGauge(prometheus.GaugeOpts{
			Name: "gemmaft_generate_duration_seconds",
			Help: "Wall-clock duration of the inference stage.",
		}),
	}
}

// WriteTextfile serializes the registry to path in text exposition format.
func (j *Job) WriteTextfile(path string) error {
	families, err := j.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
