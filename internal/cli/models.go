package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gemmaft/internal/config"
	"gemmaft/internal/registry"
)

func buildModelsCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var modelsDir string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List base models discovered in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("models-dir") {
				cfg.ModelsDir = modelsDir
			}
			models, err := registry.LoadDir(cfg.ModelsDir)
			if err != nil {
				return fmt.Errorf("scan models dir %s: %w", cfg.ModelsDir, err)
			}
			if len(models) == 0 {
				fmt.Println("no models found")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tQUANT\tFAMILY\tPATH")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Quant, m.Family, m.Path)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&modelsDir, "models-dir", "~/models/llm", "Directory to scan for *.gguf base models")
	return cmd
}
