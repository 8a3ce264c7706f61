package types

import "time"

// Model represents a base model file discovered on disk.
type Model struct {
	// Stable identifier for the model (the gguf filename).
	ID string `json:"id"`
	// Human-friendly name.
	Name string `json:"name"`
	// Absolute path to the model file on disk.
	Path string `json:"path"`
	// Quantization level or variant string parsed from the filename.
	Quant string `json:"quant,omitempty"`
	// Optional family (e.g., gemma, llama, mistral).
	Family string `json:"family,omitempty"`
}

// Generation is one generated comment for one test record.
type Generation struct {
	// Zero-based position of the source record in the test split.
	Index int `json:"index"`
	// Prompt the comment was generated from.
	Prompt string `json:"prompt"`
	// Reference target comment from the dataset, kept for later scoring.
	Reference string `json:"reference,omitempty"`
	// Newly generated text only; the prompt prefix is never included.
	Text string `json:"text"`
	// Wall-clock time spent generating this record.
	Duration time.Duration `json:"duration_ns"`
}
