// Command routectl resolves delivery routes and quotes from the command line
// using the same components as the API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuogn/logistics-front-sub000/internal/app"
	"github.com/cuogn/logistics-front-sub000/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

const serviceName = "routectl"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "routectl",
		Short: "Resolve delivery routes and fees",
		Long: `
routectl resolves a driving route between two Vietnamese locations and prices
it the way the quote API does. Configuration comes from the environment and an
optional .env file; without HERE_API_KEY routes use the great-circle estimate.
`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log component activity to stderr")

	root.AddCommand(
		newQuoteCmd(&verbose),
		newProvincesCmd(&verbose),
		newWardsCmd(&verbose),
		newDecodeCmd(),
	)
	return root
}

// buildApp loads configuration and wires the components. The caller closes
// the returned App.
func buildApp(ctx context.Context, cmd *cobra.Command, verbose bool) (*app.App, error) {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().
		Timestamp().
		Logger()

	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	for _, w := range cfg.Warnings {
		logger.Warn().Msg(w)
	}

	return app.Build(ctx, cfg, logger, app.Options{})
}
