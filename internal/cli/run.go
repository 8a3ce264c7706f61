package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gemmaft/internal/config"
	"gemmaft/internal/engine"
	"gemmaft/internal/pipeline"
)

func buildRunCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var flags struct {
		dataDir      string
		withOComment bool
		withInst     bool
		maxNewTokens int
		modelsDir    string
		model        string
		finetuneBin  string
		threads      int
		ctxSize      int
		seed         int
		outputDir    string
	}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full fine-tune-and-generate pipeline",
		Example: "  gemmaft run --data-dir ./data --model gemma-7b-it.Q4_K_M.gguf\n" +
			"  gemmaft run --data-dir ./data --with-ocomment --max-new-tokens 64",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Flags set by the user override config file values.
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = flags.dataDir
			}
			if cmd.Flags().Changed("with-ocomment") {
				cfg.WithOldComment = flags.withOComment
			}
			if cmd.Flags().Changed("with-inst") {
				cfg.WithInstruction = flags.withInst
			}
			if cmd.Flags().Changed("max-new-tokens") {
				cfg.MaxNewTokens = flags.maxNewTokens
			}
			if cmd.Flags().Changed("models-dir") {
				cfg.ModelsDir = flags.modelsDir
			}
			if cmd.Flags().Changed("model") {
				cfg.Model = flags.model
			}
			if cmd.Flags().Changed("finetune-bin") {
				cfg.FinetuneBin = flags.finetuneBin
			}
			if cmd.Flags().Changed("threads") {
				cfg.Threads = flags.threads
			}
			if cmd.Flags().Changed("ctx-size") {
				cfg.CtxSize = flags.ctxSize
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = flags.seed
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.OutputDir = flags.outputDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p := &pipeline.Pipeline{
				Cfg:     cfg,
				Trainer: engine.NewFinetuneAdapter(cfg.FinetuneBin),
				Infer:   engine.NewLlamaAdapter(cfg.CtxSize, cfg.Threads),
				Log:     logger,
				Out:     os.Stdout,
			}
			return p.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "Directory containing the split CSV files (required)")
	cmd.Flags().BoolVar(&flags.withOComment, "with-ocomment", false, "Include the prior comment in the prompt")
	cmd.Flags().BoolVar(&flags.withInst, "with-inst", false, "Include the instruction preamble in the prompt")
	cmd.Flags().IntVar(&flags.maxNewTokens, "max-new-tokens", 128, "Cap on newly generated tokens per record")
	cmd.Flags().StringVar(&flags.modelsDir, "models-dir", "~/models/llm", "Directory to scan for *.gguf base models")
	cmd.Flags().StringVar(&flags.model, "model", "", "Base model id (gguf filename); may be omitted when exactly one exists")
	cmd.Flags().StringVar(&flags.finetuneBin, "finetune-bin", "", "Path to the llama.cpp finetune binary")
	cmd.Flags().IntVar(&flags.threads, "threads", 0, "Worker threads for the runtimes (0=auto)")
	cmd.Flags().IntVar(&flags.ctxSize, "ctx-size", 0, "Context window size")
	cmd.Flags().IntVar(&flags.seed, "seed", 0, "Random seed (0=runtime default)")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Checkpoint and results directory")
	return cmd
}
