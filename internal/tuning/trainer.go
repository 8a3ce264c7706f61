package tuning

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gemmaft/internal/dataset"
	"gemmaft/internal/engine"
)

const (
	adapterFile  = "lora-adapter.gguf"
	manifestFile = "manifest.json"
	workDirName  = "work"
)

// Trainer runs one supervised fine-tuning job over prompt-augmented splits.
type Trainer struct {
	Adapter engine.TrainerAdapter
	Quant   QuantizationConfig
	Lora    LoraConfig
	Args    TrainingArguments

	BaseModel string // path to the base gguf
	Seed      int
	Threads   int
	CtxSize   int

	Log zerolog.Logger
}

// Result summarizes a completed fine-tuning job.
type Result struct {
	JobID           string        `json:"job_id"`
	AdapterPath     string        `json:"adapter_path"`
	OutputDir       string        `json:"output_dir"`
	Steps           int           `json:"steps"`
	FinalLoss       float64       `json:"final_loss,omitempty"`
	TrainableParams int64         `json:"trainable_params,omitempty"`
	TotalParams     int64         `json:"total_params,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
}

// manifest is the job record persisted next to the checkpoint artifacts.
type manifest struct {
	JobID        string             `json:"job_id"`
	BaseModel    string             `json:"base_model"`
	Quantization QuantizationConfig `json:"quantization"`
	Lora         LoraConfig         `json:"lora"`
	Training     TrainingArguments  `json:"training"`
	TrainRecords int                `json:"train_records"`
	ValidRecords int                `json:"valid_records"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Result       Result             `json:"result"`
}

// Train materializes the rendered prompts, invokes the training runtime, and
// persists the job manifest into the output directory. Any runtime failure is
// fatal and propagates to the caller; there is no retry.
func (t *Trainer) Train(ctx context.Context, train, valid *dataset.Split) (Result, error) {
	if t.Adapter == nil {
		return Result{}, fmt.Errorf("tuning: no trainer adapter configured")
	}
	jobID := uuid.NewString()
	// The training runtime runs with its own working directory, so every path
	// handed to it must not depend on this process's cwd.
	outDir, err := filepath.Abs(t.Args.OutputDir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve output dir: %w", err)
	}
	workDir := filepath.Join(outDir, workDirName)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	trainData := filepath.Join(workDir, "train.txt")
	if err := writePrompts(trainData, train); err != nil {
		return Result{}, err
	}
	evalData := filepath.Join(workDir, "valid.txt")
	if err := writePrompts(evalData, valid); err != nil {
		return Result{}, err
	}

	spec := engine.TrainSpec{
		BaseModel:  t.BaseModel,
		TrainData:  trainData,
		EvalData:   evalData,
		OutDir:     outDir,
		AdapterOut: filepath.Join(outDir, adapterFile),

		LoraR:         t.Lora.R,
		LoraAlpha:     t.Lora.Alpha,
		LoraDropout:   t.Lora.Dropout,
		TargetModules: t.Lora.TargetModules,

		LearningRate: t.Args.LearningRate,
		BatchSize:    t.Args.PerDeviceTrainBatchSize,
		GradAccum:    t.Args.GradientAccumulationSteps,
		MaxSteps:     t.Args.MaxSteps,
		Optimizer:    t.Args.Optim,
		FP16:         t.Args.FP16,

		LoadIn4Bit:   t.Quant.LoadIn4Bit,
		DoubleQuant:  t.Quant.UseDoubleQuant,
		QuantType:    t.Quant.QuantType,
		ComputeDtype: t.Quant.ComputeDtype,

		Seed:    t.Seed,
		Threads: t.Threads,
		CtxSize: t.CtxSize,
	}

	t.Log.Info().
		Str("job_id", jobID).
		Str("base_model", filepath.Base(t.BaseModel)).
		Int("train_records", len(train.Records)).
		Int("valid_records", len(valid.Records)).
		Int("lora_r", t.Lora.R).
		Int("max_steps", t.Args.MaxSteps).
		Msg("starting fine-tuning")

	started := time.Now()
	tr, err := t.Adapter.Train(ctx, spec, func(p engine.Progress) error {
		t.Log.Info().Str("job_id", jobID).Int("step", p.Step).Float64("loss", p.Loss).Msg("train step")
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{
		JobID:           jobID,
		AdapterPath:     tr.AdapterPath,
		OutputDir:       outDir,
		Steps:           tr.Steps,
		FinalLoss:       tr.FinalLoss,
		TrainableParams: tr.TrainableParams,
		TotalParams:     tr.TotalParams,
		Duration:        time.Since(started),
	}
	if tr.TrainableParams > 0 && tr.TotalParams > 0 {
		t.Log.Info().
			Int64("trainable", tr.TrainableParams).
			Int64("total", tr.TotalParams).
			Float64("percentage", float64(tr.TrainableParams)/float64(tr.TotalParams)*100).
			Msg("trainable parameters")
	}

	m := manifest{
		JobID:        jobID,
		BaseModel:    t.BaseModel,
		Quantization: t.Quant,
		Lora:         t.Lora,
		Training:     t.Args,
		TrainRecords: len(train.Records),
		ValidRecords: len(valid.Records),
		StartedAt:    started,
		FinishedAt:   time.Now(),
		Result:       res,
	}
	if err := writeManifest(filepath.Join(outDir, manifestFile), m); err != nil {
		return Result{}, err
	}
	return res, nil
}

// writePrompts renders a split's prompt column into a training text file, one
// sample after another. The runtime re-splits samples on the user-turn marker.
func writePrompts(path string, s *dataset.Split) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("split %s: %w", s.Name, err)
	}
	for i := range s.Records {
		if _, err := f.WriteString(s.Records[i].Prompt + "\n"); err != nil {
			f.Close()
			return fmt.Errorf("split %s: %w", s.Name, err)
		}
	}
	return f.Close()
}

func writeManifest(path string, m manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
