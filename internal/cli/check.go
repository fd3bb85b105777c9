package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tbourn/don-confiado-backend/internal/config"
)

func newCheckCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and exit",
		Long: `Loads the .env files and the environment exactly as serve does and
prints the effective settings. Exits non-zero when the configuration is
invalid. Missing record-store credentials are reported but do not fail.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(o.envFiles...); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			printSummary(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printSummary(out io.Writer, cfg config.Config) {
	ok := color.GreenString("✓")
	warn := color.YellowString("!")

	model := cfg.LLM.Gemini.Model
	if cfg.LLM.Provider == config.ProviderOpenRouter {
		model = cfg.LLM.OpenRouter.Model
	}
	fmt.Fprintf(out, "%s server      :%s (gin %s)\n", ok, cfg.Port, cfg.GinMode)
	fmt.Fprintf(out, "%s api base    %s\n", ok, cfg.APIBasePath)
	fmt.Fprintf(out, "%s model       %s / %s (timeout %s)\n", ok, cfg.LLM.Provider, model, cfg.LLM.Timeout)
	fmt.Fprintf(out, "%s local db    %s\n", ok, cfg.DBPath)

	mark := ok
	note := ""
	switch cfg.PersistenceBackend {
	case config.BackendSupabase:
		if !cfg.Supabase.HasREST() {
			mark, note = warn, " (Missing Supabase credentials)"
		}
	case config.BackendPostgres:
		if cfg.Supabase.DBURL == "" {
			mark, note = warn, " (SUPABASE_DB_URL not set)"
		}
	}
	fmt.Fprintf(out, "%s persistence %s%s\n", mark, cfg.PersistenceBackend, note)

	otel := "off"
	if cfg.OTEL.Enabled {
		otel = cfg.OTEL.Endpoint
	}
	fmt.Fprintf(out, "%s tracing     %s\n", ok, otel)
}
