// Package tuning configures and orchestrates LoRA fine-tuning runs.
package tuning

// QuantizationConfig mirrors the bitsandbytes-style 4-bit scheme the base
// model is loaded under. With a gguf runtime the scheme is baked into the
// model file; the config is validated against it and recorded in the manifest.
type QuantizationConfig struct {
	LoadIn4Bit     bool   `json:"load_in_4bit" yaml:"load_in_4bit" toml:"load_in_4bit"`
	UseDoubleQuant bool   `json:"bnb_4bit_use_double_quant" yaml:"use_double_quant" toml:"use_double_quant"`
	QuantType      string `json:"bnb_4bit_quant_type" yaml:"quant_type" toml:"quant_type"`
	ComputeDtype   string `json:"bnb_4bit_compute_dtype" yaml:"compute_dtype" toml:"compute_dtype"`
}

// LoraConfig describes the low-rank adapter attached to the base model.
type LoraConfig struct {
	R             int      `json:"r" yaml:"r" toml:"r"`
	Alpha         int      `json:"lora_alpha" yaml:"alpha" toml:"alpha"`
	Dropout       float64  `json:"lora_dropout" yaml:"dropout" toml:"dropout"`
	Bias          string   `json:"bias" yaml:"bias" toml:"bias"`
	TargetModules []string `json:"target_modules" yaml:"target_modules" toml:"target_modules"`
	TaskType      string   `json:"task_type" yaml:"task_type" toml:"task_type"`
}

// TrainingArguments holds the optimizer and schedule settings for one run.
type TrainingArguments struct {
	OutputDir                 string  `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	LearningRate              float64 `json:"learning_rate" yaml:"learning_rate" toml:"learning_rate"`
	PerDeviceTrainBatchSize   int     `json:"per_device_train_batch_size" yaml:"train_batch_size" toml:"train_batch_size"`
	PerDeviceEvalBatchSize    int     `json:"per_device_eval_batch_size" yaml:"eval_batch_size" toml:"eval_batch_size"`
	MaxSteps                  int     `json:"max_steps" yaml:"max_steps" toml:"max_steps"`
	LoggingStrategy           string  `json:"logging_strategy" yaml:"logging_strategy" toml:"logging_strategy"`
	EvaluationStrategy        string  `json:"evaluation_strategy" yaml:"evaluation_strategy" toml:"evaluation_strategy"`
	SaveStrategy              string  `json:"save_strategy" yaml:"save_strategy" toml:"save_strategy"`
	LoadBestModelAtEnd        bool    `json:"load_best_model_at_end" yaml:"load_best_model_at_end" toml:"load_best_model_at_end"`
	GradientAccumulationSteps int     `json:"gradient_accumulation_steps" yaml:"gradient_accumulation_steps" toml:"gradient_accumulation_steps"`
	FP16                      bool    `json:"fp16" yaml:"fp16" toml:"fp16"`
	Optim                     string  `json:"optim" yaml:"optim" toml:"optim"`
}

// DefaultQuantization returns the 4-bit nf4 double-quant scheme with bfloat16
// compute used for the Gemma base model.
func DefaultQuantization() QuantizationConfig {
	return QuantizationConfig{
		LoadIn4Bit:     true,
		UseDoubleQuant: true,
		QuantType:      "nf4",
		ComputeDtype:   "bfloat16",
	}
}

// DefaultLora returns the rank-8 adapter over the seven attention and MLP
// projection sublayers.
func DefaultLora() LoraConfig {
	return LoraConfig{
		R:       8,
		Alpha:   32,
		Dropout: 0.05,
		Bias:    "none",
		TargetModules: []string{
			"q_proj", "k_proj", "v_proj", "o_proj",
			"down_proj", "up_proj", "gate_proj",
		},
		TaskType: "CAUSAL_LM",
	}
}

// DefaultTrainingArguments returns the single-step smoke-test schedule.
func DefaultTrainingArguments() TrainingArguments {
	return TrainingArguments{
		OutputDir:                 "./gemma-7b-it-ft",
		LearningRate:              2e-4,
		PerDeviceTrainBatchSize:   4,
		PerDeviceEvalBatchSize:    4,
		MaxSteps:                  1,
		LoggingStrategy:           "epoch",
		EvaluationStrategy:        "epoch",
		SaveStrategy:              "epoch",
		LoadBestModelAtEnd:        true,
		GradientAccumulationSteps: 2,
		FP16:                      true,
		Optim:                     "paged_adamw_8bit",
	}
}
