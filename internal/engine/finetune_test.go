package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func sampleSpec() TrainSpec {
	return TrainSpec{
		BaseModel:    "/models/gemma-7b-it.Q4_K_M.gguf",
		TrainData:    "/out/work/train.txt",
		EvalData:     "/out/work/valid.txt",
		OutDir:       "/out",
		AdapterOut:   "/out/lora-adapter.gguf",
		LoraR:        8,
		LoraAlpha:    32,
		LoraDropout:  0.05,
		LearningRate: 2e-4,
		BatchSize:    4,
		GradAccum:    2,
		MaxSteps:     1,
		FP16:         true,
		LoadIn4Bit:   true,
		QuantType:    "nf4",
		Seed:         42,
		Threads:      8,
		CtxSize:      2048,
	}
}

func TestFinetuneArgs(t *testing.T) {
	args := strings.Join(finetuneArgs(sampleSpec()), " ")
	for _, want := range []string{
		"--model-base /models/gemma-7b-it.Q4_K_M.gguf",
		"--train-data /out/work/train.txt",
		"--lora-out /out/lora-adapter.gguf",
		"--lora-r 8",
		"--lora-alpha 32",
		"--adam-iter 1",
		"--adam-alpha 0.0002",
		"--batch 4",
		"--grad-acc 2",
		"--seed 42",
		"--threads 8",
		"--ctx 2048",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("args missing %q: %s", want, args)
		}
	}
	if strings.Contains(args, "--no-flash") {
		t.Fatalf("fp16 spec should not disable flash: %s", args)
	}
}

func TestFinetuneArgsOmitsZeroValues(t *testing.T) {
	spec := sampleSpec()
	spec.Seed = 0
	spec.Threads = 0
	spec.CtxSize = 0
	args := strings.Join(finetuneArgs(spec), " ")
	for _, absent := range []string{"--seed", "--threads", "--ctx "} {
		if strings.Contains(args, absent) {
			t.Fatalf("args should omit %q: %s", absent, args)
		}
	}
}

func TestParseProgress(t *testing.T) {
	cases := []struct {
		line string
		ok   bool
		step int
		loss float64
	}{
		{"train_opt_callback: iter=     1 sample=1/8 sched=0.000000 loss=2.341963 dt=00:00:12", true, 1, 2.341963},
		{"train_opt_callback: iter=12 loss=0.5", true, 12, 0.5},
		{"main: total train_iterations 0", false, 0, 0},
		{"random noise", false, 0, 0},
	}
	for _, c := range cases {
		p, ok := parseProgress(c.line)
		if ok != c.ok {
			t.Fatalf("%q: ok=%v, want %v", c.line, ok, c.ok)
		}
		if ok && (p.Step != c.step || p.Loss != c.loss) {
			t.Fatalf("%q: got %+v", c.line, p)
		}
	}
}

func TestScanTrainingLog(t *testing.T) {
	log := strings.NewReader(strings.Join([]string{
		"main: seed: 42",
		"train_opt_callback: iter=     1 sample=1/8 sched=0.0 loss=2.30",
		"train_opt_callback: iter=     2 sample=5/8 sched=0.0 loss=1.90",
		"n_lora_params = 12345678",
		"n_model_params = 8537680896",
	}, "\n"))
	var res TrainResult
	var steps []int
	err := scanTrainingLog(log, &res, func(p Progress) error {
		steps = append(steps, p.Step)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Steps != 2 || res.FinalLoss != 1.90 {
		t.Fatalf("result: %+v", res)
	}
	if len(steps) != 2 || steps[0] != 1 || steps[1] != 2 {
		t.Fatalf("progress callbacks: %v", steps)
	}
	if res.TrainableParams != 12345678 || res.TotalParams != 8537680896 {
		t.Fatalf("param counts: %+v", res)
	}
}

func TestTrainMissingBinary(t *testing.T) {
	a := NewFinetuneAdapter(filepath.Join(t.TempDir(), "no-such-binary"))
	_, err := a.Train(context.Background(), sampleSpec(), nil)
	if !IsDependencyUnavailable(err) {
		t.Fatalf("expected dependency-unavailable, got %v", err)
	}
}

// writeFakeFinetune installs a shell script standing in for llama-finetune.
// Like the real tool it reads its training data and writes the adapter from
// its own working directory, so paths that depend on the parent's cwd fail.
func writeFakeFinetune(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	script := `#!/bin/sh
train=""
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --train-data) train="$2"; shift 2 ;;
    --lora-out) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
[ -f "$train" ] || exit 3
printf adapter > "$out"
`
	bin := filepath.Join(dir, "llama-finetune")
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake bin: %v", err)
	}
	return bin
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestTrainResolvesRelativePaths(t *testing.T) {
	bin := writeFakeFinetune(t, t.TempDir())
	modelDir := t.TempDir()
	base := filepath.Join(modelDir, "gemma-7b-it.Q4_K_M.gguf")
	if err := os.WriteFile(base, nil, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	runDir := t.TempDir()
	chdir(t, runDir)
	if err := os.MkdirAll(filepath.Join("gemma-7b-it-ft", "work"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	trainData := filepath.Join("gemma-7b-it-ft", "work", "train.txt")
	if err := os.WriteFile(trainData, []byte("sample\n"), 0o644); err != nil {
		t.Fatalf("write train data: %v", err)
	}

	spec := sampleSpec()
	spec.BaseModel = base
	spec.TrainData = trainData
	spec.EvalData = ""
	spec.OutDir = "gemma-7b-it-ft"
	spec.AdapterOut = filepath.Join("gemma-7b-it-ft", "lora-adapter.gguf")

	a := NewFinetuneAdapter(bin)
	res, err := a.Train(context.Background(), spec, nil)
	if err != nil {
		t.Fatalf("train with cwd-relative paths: %v", err)
	}
	if !filepath.IsAbs(res.AdapterPath) {
		t.Fatalf("adapter path not absolute: %s", res.AdapterPath)
	}
	if _, err := os.Stat(filepath.Join(runDir, "gemma-7b-it-ft", "lora-adapter.gguf")); err != nil {
		t.Fatalf("adapter not written under run dir: %v", err)
	}
}

func TestTrainAcceptsNonQ4Base(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeFinetune(t, dir)
	spec := sampleSpec()
	spec.BaseModel = filepath.Join(dir, "gemma-7b-it.F16.gguf")
	spec.TrainData = filepath.Join(dir, "train.txt")
	spec.OutDir = dir
	spec.AdapterOut = filepath.Join(dir, "lora-adapter.gguf")
	if err := os.WriteFile(spec.TrainData, []byte("sample\n"), 0o644); err != nil {
		t.Fatalf("write train data: %v", err)
	}

	a := NewFinetuneAdapter(bin)
	if _, err := a.Train(context.Background(), spec, nil); err != nil {
		t.Fatalf("4-bit load with a non-Q4 base name should train: %v", err)
	}
}

func TestTrainContextCanceled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "llama-finetune")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatalf("write fake bin: %v", err)
	}
	spec := sampleSpec()
	spec.BaseModel = filepath.Join(dir, "gemma-7b-it.Q4_K_M.gguf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	a := NewFinetuneAdapter(bin)
	go func() {
		_, err := a.Train(ctx, spec, nil)
		errc <- err
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context error after cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("train did not return after cancellation")
	}
}
