// Package engine abstracts the llama.cpp runtimes used for fine-tuning and
// generation. Concrete implementations run out of process (finetune binary)
// or in process (go-llama.cpp, behind the 'llama' build tag).
package engine

import "context"

// TrainSpec describes one fine-tuning job handed to a TrainerAdapter.
// Fields mirror the tuning configuration flattened to what runtimes consume.
type TrainSpec struct {
	BaseModel  string // path to the base gguf
	TrainData  string // path to the rendered training prompts
	EvalData   string // path to the rendered validation prompts
	OutDir     string // checkpoint directory
	AdapterOut string // target path for the trained LoRA adapter

	LoraR         int
	LoraAlpha     int
	LoraDropout   float64
	TargetModules []string

	LearningRate float64
	BatchSize    int
	GradAccum    int
	MaxSteps     int
	Optimizer    string
	FP16         bool

	LoadIn4Bit   bool
	DoubleQuant  bool
	QuantType    string
	ComputeDtype string

	Seed    int
	Threads int
	CtxSize int
}

// Progress is one parsed training progress event.
type Progress struct {
	Step int
	Loss float64
	Line string
}

// TrainResult summarizes a completed fine-tuning run.
type TrainResult struct {
	AdapterPath     string
	Steps           int
	FinalLoss       float64
	TrainableParams int64
	TotalParams     int64
}

// TrainerAdapter abstracts the fine-tuning runtime. onProgress may be nil;
// returning an error from it aborts the run.
type TrainerAdapter interface {
	Train(ctx context.Context, spec TrainSpec, onProgress func(Progress) error) (TrainResult, error)
}

// InferenceAdapter abstracts the generation runtime.
type InferenceAdapter interface {
	// Start loads the model (and LoRA adapter, when set) for generation.
	Start(modelPath string, params InferParams) (InferSession, error)
}

// InferSession owns one loaded model for the lifetime of the inference stage.
type InferSession interface {
	// Generate produces the continuation of prompt. The returned content is
	// newly generated text only; the prompt prefix is never echoed back.
	// onToken may be nil; returning an error from it stops generation.
	Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error)
	// Close releases the model.
	Close() error
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	Temperature float32
	TopP        float32
	TopK        int
	MaxTokens   int
	Seed        int
	Threads     int
	CtxSize     int
	// LoraAdapter is the path of a trained adapter applied on top of the base
	// model; empty means base model only.
	LoraAdapter string
}

// FinalResult summarizes one generation.
type FinalResult struct {
	Content      string
	FinishReason string
}
