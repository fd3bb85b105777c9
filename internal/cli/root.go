// Package cli implements the donconfiado command: the HTTP server, a local
// console chat driving the same conversation router, and a configuration
// check.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tbourn/don-confiado-backend/internal/config"
	"github.com/tbourn/don-confiado-backend/internal/sysutil"
)

type rootOptions struct {
	version  string
	envFiles []string
}

// load reads the .env files, then the configuration, and installs the global
// logger writing to logOut.
func (o *rootOptions) load(logOut *os.File) (config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	sysutil.SetupLogger(logOut, cfg.LogLevel, cfg.LogPretty)
	return cfg, nil
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	o := &rootOptions{version: version}

	root := &cobra.Command{
		Use:           "donconfiado",
		Short:         "Don Confiado, the business assistant for small shops",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVar(&o.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")

	root.AddCommand(newServeCommand(o), newChatCommand(o), newCheckCommand(o))
	return root
}
