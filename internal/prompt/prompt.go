// Package prompt renders Gemma chat-turn prompts from dataset records.
package prompt

import (
	"fmt"

	"gemmaft/internal/dataset"
)

// Instruction preamble used by the instructed template variant.
const instruction = "Below is an instruction that describes a task. Write a response that " +
	"appropriately completes the request.\n\nGo through the code changes from old " +
	"code to new code and generate an updated code summary."

// Variant selects the user-turn template.
type Variant int

const (
	// VariantCodeOnly renders the new code only.
	VariantCodeOnly Variant = iota
	// VariantOldComment renders the prior comment plus the new code.
	VariantOldComment
	// VariantInstructed prepends the instruction preamble to the old-comment
	// form. Selection never yields it: upstream checks the old-comment flag
	// first, so the combined case resolves to VariantOldComment. Kept as a
	// distinct variant until the intended priority is confirmed.
	VariantInstructed
)

// Options are the two flags controlling the user-turn shape.
type Options struct {
	WithOldComment  bool
	WithInstruction bool
}

// Variant resolves the template for the given flags, preserving the observed
// selection order: the old-comment form wins whenever WithOldComment is set.
func (o Options) Variant() Variant {
	if o.WithOldComment {
		return VariantOldComment
	}
	return VariantCodeOnly
}

// Build renders the full prompt for one record. For the test split only the
// user turn is produced; train and valid append the model turn carrying the
// target comment. Pure function of its inputs.
func Build(rec dataset.Record, split dataset.SplitName, opts Options) string {
	user := userTurn(rec, opts.Variant())
	if split == dataset.Test {
		return user
	}
	return user + modelTurn(rec)
}

func userTurn(rec dataset.Record, v Variant) string {
	switch v {
	case VariantOldComment:
		return fmt.Sprintf("<start_of_turn>user\nOld Comment:\n%s\nNew Code:\n%s\n<end_of_turn>\n",
			rec.SrcJavadoc, rec.DstMethod)
	case VariantInstructed:
		return fmt.Sprintf("<start_of_turn>user\n%s\n\nOld Comment:\n%s\nNew Code:\n%s\n<end_of_turn>\n",
			instruction, rec.SrcJavadoc, rec.DstMethod)
	default:
		return fmt.Sprintf("<start_of_turn>user\nCode:\n%s\n<end_of_turn>\n", rec.DstMethod)
	}
}

func modelTurn(rec dataset.Record) string {
	return fmt.Sprintf("<start_of_turn>model\nTarget Comment:\n%s<end_of_turn>", rec.DstJavadoc)
}
