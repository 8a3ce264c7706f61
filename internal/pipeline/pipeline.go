// Package pipeline runs the full fine-tune-and-generate job:
// load splits, render prompts, train the adapter, generate comments.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"gemmaft/internal/config"
	"gemmaft/internal/dataset"
	"gemmaft/internal/engine"
	"gemmaft/internal/infer"
	"gemmaft/internal/metrics"
	"gemmaft/internal/output"
	"gemmaft/internal/prompt"
	"gemmaft/internal/registry"
	"gemmaft/internal/tuning"
)

// Sampling temperature for comment generation.
const genTemperature = 0.1

// Pipeline owns one end-to-end run. Stages execute strictly in order with no
// feedback edges; the first error aborts the run.
type Pipeline struct {
	Cfg     config.Config
	Trainer engine.TrainerAdapter
	Infer   engine.InferenceAdapter
	Log     zerolog.Logger
	Out     io.Writer
	Metrics *metrics.Job
}

// Run executes loader, prompt builder, trainer, and inference runner, then
// prints and persists the generated comments.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Cfg.Validate(); err != nil {
		return err
	}
	if p.Metrics == nil {
		p.Metrics = metrics.NewJob()
	}

	models, err := registry.LoadDir(p.Cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("scan models dir %s: %w", p.Cfg.ModelsDir, err)
	}
	model, err := registry.Resolve(models, p.Cfg.Model)
	if err != nil {
		return err
	}
	p.Log.Info().Str("model", model.ID).Str("quant", model.Quant).Msg("resolved base model")
	quant := tuning.DefaultQuantization()
	if quant.LoadIn4Bit && model.Quant != "" && !strings.Contains(model.Quant, "Q4") {
		p.Log.Warn().Str("model", model.ID).Str("quant", model.Quant).
			Msg("4-bit loading configured but the base gguf advertises a different quantization")
	}

	ds, err := dataset.LoadDir(p.Cfg.DataDir, dataset.Files{
		Train: p.Cfg.DataFiles.Train,
		Valid: p.Cfg.DataFiles.Valid,
		Test:  p.Cfg.DataFiles.Test,
	})
	if err != nil {
		return err
	}
	for _, s := range ds.Splits() {
		p.Metrics.RecordsLoaded.WithLabelValues(string(s.Name)).Add(float64(len(s.Records)))
		p.Log.Info().Str("split", string(s.Name)).Int("records", len(s.Records)).Msg("loaded split")
	}

	opts := prompt.Options{
		WithOldComment:  p.Cfg.WithOldComment,
		WithInstruction: p.Cfg.WithInstruction,
	}
	for _, s := range ds.Splits() {
		name := s.Name
		if err := s.AttachPrompts(func(rec dataset.Record) string {
			return prompt.Build(rec, name, opts)
		}); err != nil {
			return err
		}
		p.Metrics.PromptsBuilt.Add(float64(len(s.Records)))
	}

	trainer := &tuning.Trainer{
		Adapter:   p.Trainer,
		Quant:     quant,
		Lora:      tuning.DefaultLora(),
		Args:      trainingArgs(p.Cfg),
		BaseModel: model.Path,
		Seed:      p.Cfg.Seed,
		Threads:   p.Cfg.Threads,
		CtxSize:   p.Cfg.CtxSize,
		Log:       p.Log,
	}
	trainRes, err := trainer.Train(ctx, ds.Train, ds.Valid)
	if err != nil {
		return fmt.Errorf("fine-tuning: %w", err)
	}
	p.Metrics.TrainSteps.Add(float64(trainRes.Steps))
	p.Metrics.TrainSeconds.Set(trainRes.Duration.Seconds())
	p.Log.Info().
		Str("job_id", trainRes.JobID).
		Str("adapter", trainRes.AdapterPath).
		Dur("took", trainRes.Duration).
		Msg("fine-tuning finished")

	runner := &infer.Runner{Adapter: p.Infer, Log: p.Log}
	params := engine.InferParams{
		Temperature: genTemperature,
		MaxTokens:   p.Cfg.MaxNewTokens,
		Seed:        p.Cfg.Seed,
		Threads:     p.Cfg.Threads,
		CtxSize:     p.Cfg.CtxSize,
		LoraAdapter: trainRes.AdapterPath,
	}
	gens, err := runner.Run(ctx, model.Path, params, ds.Test)
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}
	p.Metrics.Generations.Add(float64(len(gens)))
	var genSeconds float64
	for _, g := range gens {
		genSeconds += g.Duration.Seconds()
	}
	p.Metrics.GenerateSeconds.Set(genSeconds)

	if err := output.Print(p.Out, gens); err != nil {
		return err
	}
	outDir := trainRes.OutputDir
	if err := output.WriteCSV(filepath.Join(outDir, "results.csv"), gens); err != nil {
		return err
	}
	if err := output.WriteJSON(filepath.Join(outDir, "results.json"), gens); err != nil {
		return err
	}
	if err := p.Metrics.WriteTextfile(filepath.Join(outDir, "metrics.prom")); err != nil {
		return err
	}
	p.Log.Info().Int("generated", len(gens)).Str("output_dir", outDir).Msg("run complete")
	return nil
}

// trainingArgs applies the config's output dir on top of the fixed schedule.
func trainingArgs(cfg config.Config) tuning.TrainingArguments {
	args := tuning.DefaultTrainingArguments()
	if cfg.OutputDir != "" {
		args.OutputDir = cfg.OutputDir
	}
	return args
}
