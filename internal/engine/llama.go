//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaAdapter holds global config used to initialize a model instance.
type llamaAdapter struct {
	ctxSize int
	threads int
}

// NewLlamaAdapter constructs an in-process go-llama.cpp inference adapter.
func NewLlamaAdapter(ctxSize, threads int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads}
}

// llamaSession owns the loaded model.
type llamaSession struct {
	model      *llama.LLama
	threads    int
	baseParams InferParams
}

func (a *llamaAdapter) Start(modelPath string, params InferParams) (InferSession, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	ctxSize := a.ctxSize
	if params.CtxSize > 0 {
		ctxSize = params.CtxSize
	}
	mo := []llama.ModelOption{
		llama.SetContext(ctxSize),
	}
	if params.LoraAdapter != "" {
		mo = append(mo,
			llama.SetLoraAdapter(params.LoraAdapter),
			llama.SetLoraBase(modelPath),
		)
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	threads := a.threads
	if params.Threads > 0 {
		threads = params.Threads
	}
	return &llamaSession{model: m, threads: threads, baseParams: params}, nil
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	if s.model == nil {
		return FinalResult{}, errors.New("llama model not initialized")
	}
	// Bridge token streaming to onToken and respect cancellation.
	s.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return false
			}
		}
		return true
	})
	po := predictOptions(s.baseParams, s.threads)
	// Predict returns the continuation only, so the prompt prefix never needs
	// stripping on our side.
	text, err := s.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return FinalResult{}, ctx.Err()
		}
		return FinalResult{}, err
	}
	return FinalResult{Content: text, FinishReason: "stop"}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

// predictOptions converts adapter params into go-llama.cpp options.
func predictOptions(params InferParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(maxInt(1, params.MaxTokens)),
		llama.SetThreads(maxInt(1, threads)),
		llama.SetTemperature(nonZeroF(params.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetTopP(nonZeroF(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(nonZeroN(params.TopK, llama.DefaultOptions.TopK)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	return po
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func nonZeroN(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func nonZeroF(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}
