package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Sample delimiter passed to the finetune binary so it can split the rendered
// prompt stream back into individual training examples.
const sampleStart = "<start_of_turn>user"

// finetuneAdapter drives the llama.cpp finetune binary as a subprocess.
// Training stays entirely inside llama.cpp; this adapter only maps TrainSpec
// fields to CLI arguments and watches the process.
type finetuneAdapter struct {
	bin string
}

// NewFinetuneAdapter constructs a TrainerAdapter backed by the llama.cpp
// finetune binary. bin may be empty, in which case common install locations
// and PATH are searched at Train time.
func NewFinetuneAdapter(bin string) TrainerAdapter {
	return &finetuneAdapter{bin: bin}
}

func (a *finetuneAdapter) Train(ctx context.Context, spec TrainSpec, onProgress func(Progress) error) (TrainResult, error) {
	bin := strings.TrimSpace(a.bin)
	if bin == "" {
		bin = discoverFinetuneBin()
	}
	if bin == "" {
		return TrainResult{}, ErrDependencyUnavailable("llama-finetune not found: set --finetune-bin or install llama.cpp")
	}
	if fi, err := os.Stat(bin); err != nil || fi.IsDir() {
		return TrainResult{}, ErrDependencyUnavailable(fmt.Sprintf("llama-finetune not found or not a file: %s", bin))
	}
	// The subprocess runs from the model's directory; any path that still
	// depends on this process's cwd would resolve against the wrong root.
	if err := absSpecPaths(&spec); err != nil {
		return TrainResult{}, err
	}

	cmd := exec.CommandContext(ctx, bin, finetuneArgs(spec)...)
	cmd.Dir = filepath.Dir(spec.BaseModel)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return TrainResult{}, err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return TrainResult{}, fmt.Errorf("start %s: %w", bin, err)
	}

	res := TrainResult{AdapterPath: spec.AdapterOut}
	scanErr := scanTrainingLog(stdout, &res, onProgress)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if scanErr != nil {
		return res, scanErr
	}
	if waitErr != nil {
		return res, fmt.Errorf("finetune exited: %w", waitErr)
	}
	if _, err := os.Stat(spec.AdapterOut); err != nil {
		return res, fmt.Errorf("finetune produced no adapter at %s: %w", spec.AdapterOut, err)
	}
	return res, nil
}

// absSpecPaths rewrites every file path in the TrainSpec to absolute form so
// the subprocess and the parent agree on where artifacts live.
func absSpecPaths(spec *TrainSpec) error {
	for _, p := range []*string{&spec.BaseModel, &spec.TrainData, &spec.EvalData, &spec.OutDir, &spec.AdapterOut} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// finetuneArgs maps a TrainSpec to llama.cpp finetune CLI arguments.
// The finetune tool has no separate eval stream; checkpoint selection falls
// back to the final checkpoint, which for MaxSteps=1 is also the best one.
func finetuneArgs(spec TrainSpec) []string {
	args := []string{
		"--model-base", spec.BaseModel,
		"--train-data", spec.TrainData,
		"--lora-out", spec.AdapterOut,
		"--checkpoint-out", filepath.Join(spec.OutDir, "checkpoint-LATEST.gguf"),
		"--lora-r", strconv.Itoa(spec.LoraR),
		"--lora-alpha", strconv.Itoa(spec.LoraAlpha),
		"--adam-iter", strconv.Itoa(spec.MaxSteps),
		"--adam-alpha", strconv.FormatFloat(spec.LearningRate, 'g', -1, 64),
		"--batch", strconv.Itoa(spec.BatchSize),
		"--grad-acc", strconv.Itoa(spec.GradAccum),
		"--sample-start", sampleStart,
		"--save-every", "1",
	}
	if spec.Seed != 0 {
		args = append(args, "--seed", strconv.Itoa(spec.Seed))
	}
	if spec.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(spec.Threads))
	}
	if spec.CtxSize > 0 {
		args = append(args, "--ctx", strconv.Itoa(spec.CtxSize))
	}
	if !spec.FP16 {
		args = append(args, "--no-flash")
	}
	return args
}

var (
	// train_opt_callback: iter=     1 sample=1/8 sched=0.0 loss=2.341963 ...
	progressRe = regexp.MustCompile(`train_opt_callback:\s+iter=\s*(\d+)\b.*?loss=([0-9]+(?:\.[0-9]+)?)`)
	// print_params / print_lora_params style summaries
	paramsRe = regexp.MustCompile(`(?:lora|train)[ _]params(?:[^\d]*)=?\s*(\d+)`)
	totalRe  = regexp.MustCompile(`model[ _]params(?:[^\d]*)=?\s*(\d+)`)
)

// scanTrainingLog consumes the merged stdout/stderr of the finetune process,
// extracting step/loss progress and parameter counts where present.
func scanTrainingLog(r io.Reader, res *TrainResult, onProgress func(Progress) error) error {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for s.Scan() {
		line := s.Text()
		if p, ok := parseProgress(line); ok {
			res.Steps = p.Step
			res.FinalLoss = p.Loss
			if onProgress != nil {
				if err := onProgress(p); err != nil {
					return err
				}
			}
			continue
		}
		if m := paramsRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				res.TrainableParams = n
			}
		}
		if m := totalRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				res.TotalParams = n
			}
		}
	}
	return s.Err()
}

func parseProgress(line string) (Progress, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	step, err := strconv.Atoi(m[1])
	if err != nil {
		return Progress{}, false
	}
	loss, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Progress{}, false
	}
	return Progress{Step: step, Loss: loss, Line: line}, true
}

// discoverFinetuneBin attempts to locate a llama.cpp finetune binary in
// common paths. Callers should pass --finetune-bin to override.
func discoverFinetuneBin() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "apps", "llama.cpp", "build", "bin", "llama-finetune"),
		filepath.Join(home, "apps", "llama.cpp", "build", "bin", "finetune"),
		"/usr/local/bin/llama-finetune",
		"/usr/local/bin/finetune",
		"/opt/homebrew/bin/llama-finetune",
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	for _, name := range []string{"llama-finetune", "finetune"} {
		if lp, err := exec.LookPath(name); err == nil {
			return lp
		}
	}
	return ""
}
