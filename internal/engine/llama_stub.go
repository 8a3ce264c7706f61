//go:build !llama

package engine

// This file provides a no-CGO stub for the llama inference adapter. It is
// compiled when the 'llama' build tag is NOT set, keeping default builds and
// CI CGO-free. The real adapter lives in llama.go (tagged 'llama').

import (
	"context"
)

// llamaBuilt indicates this binary was compiled without real llama support.
var llamaBuilt = false

// llamaAdapter is a stub that satisfies InferenceAdapter but refuses to run
// inference without the 'llama' build tag. This avoids any mocked behavior in
// binaries built without CGO support.
type llamaAdapter struct {
	ctxSize int
	threads int
}

// NewLlamaAdapter constructs the stub adapter.
func NewLlamaAdapter(ctxSize, threads int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads}
}

type llamaSession struct{}

func (a *llamaAdapter) Start(modelPath string, params InferParams) (InferSession, error) {
	// Fail fast: llama runtime not available in this build.
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	select {
	case <-ctx.Done():
		return FinalResult{}, ctx.Err()
	default:
	}
	return FinalResult{}, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}

func (s *llamaSession) Close() error { return nil }
