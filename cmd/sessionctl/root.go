package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	goSession "github.com/MrEthical07/goSession"
	"github.com/spf13/cobra"
)

type globals struct {
	envPrefix string
	verbose   bool
	jsonOut   bool
	logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Session engine toolbox",
		Long: `sessionctl validates route tables, decodes access tokens, and runs logins
against an auth API with the same engine an application embeds.

Engine settings come from the environment, e.g.
  GOSESSION_AUTH_BASE_URL=http://localhost:8080 sessionctl login --email ada@example.com

Example usage:
  sessionctl routes validate routes.yaml
  sessionctl routes check routes.yaml /admin/users --role ADMIN
  sessionctl token inspect "$TOKEN"
  sessionctl status --redis-addr localhost:6379`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if g.verbose {
				level = slog.LevelDebug
			}
			g.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}

	root.PersistentFlags().StringVar(&g.envPrefix, "env-prefix", goSession.DefaultEnvPrefix, "environment variable prefix for engine settings")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "output as JSON")

	root.AddCommand(newRoutesCmd(g), newTokenCmd(g), newLoginCmd(g), newStatusCmd(g), newBenchCmd())
	return root
}

func (g *globals) log() *slog.Logger {
	if g.logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return g.logger
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
