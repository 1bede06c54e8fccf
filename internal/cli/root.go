// Package cli implements the image-handler command line.
package cli

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-image-handler/internal/config"
	"github.com/tendant/simple-image-handler/internal/logging"
	"github.com/tendant/simple-image-handler/internal/params"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigDir string
	Verbose   bool
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "image-handler",
		Short: "Dynamic image transformation with a content-addressed cache",
		Long: `Renders images from a source plus query parameters, caching every
rendition under a key derived from the canonical parameter set.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", ".", "directory holding config.toml and .env")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewRenderCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))
	cmd.AddCommand(NewWarmCommand(opts))

	return cmd
}

// load reads configuration and builds a logger
func (o *RootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.Verbose {
		cfg.Logging.Level = logging.LevelDebug
	}
	return cfg, logging.NewWithWriter(&cfg.Logging, os.Stderr), nil
}

// argValues turns key=value arguments into a query
func argValues(args []string) url.Values {
	values := url.Values{}
	for k, v := range params.ParseArgs(args).Map() {
		values.Set(k, v)
	}
	return values
}
