// Package infer generates comments for the test split, one record at a time.
package infer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gemmaft/internal/dataset"
	"gemmaft/internal/engine"
	"gemmaft/pkg/types"
)

// Runner drives sampling-based generation over the test split. Records are
// processed strictly in input order with no batching; the first error aborts
// the run.
type Runner struct {
	Adapter engine.InferenceAdapter
	Log     zerolog.Logger
}

// Run loads the model once and generates one continuation per test record.
func (r *Runner) Run(ctx context.Context, modelPath string, params engine.InferParams, test *dataset.Split) ([]types.Generation, error) {
	if r.Adapter == nil {
		return nil, fmt.Errorf("infer: no inference adapter configured")
	}
	sess, err := r.Adapter.Start(modelPath, params)
	if err != nil {
		return nil, fmt.Errorf("start inference session: %w", err)
	}
	defer sess.Close()

	gens := make([]types.Generation, 0, len(test.Records))
	for i := range test.Records {
		rec := test.Records[i]
		started := time.Now()
		res, err := sess.Generate(ctx, rec.Prompt, nil)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		g := types.Generation{
			Index:     i,
			Prompt:    rec.Prompt,
			Reference: rec.DstJavadoc,
			Text:      res.Content,
			Duration:  time.Since(started),
		}
		r.Log.Info().
			Int("record", i).
			Dur("took", g.Duration).
			Int("chars", len(g.Text)).
			Msg("generated comment")
		gens = append(gens, g)
	}
	return gens, nil
}
