package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-image-handler/pkg/runner"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Out string
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render key=value...",
		Short: "Render an image in-process",
		Long: `Render an image in-process through the configured provider, tool and store.

Example:
  image-handler render src=photos/cat.jpg width=320 effect=grayscale --out cat.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return render(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (required)")
	cmd.MarkFlagRequired("out")

	return cmd
}

func render(cmd *cobra.Command, opts *RenderOptions, args []string) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	r, err := runner.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer r.Shutdown(cfg.ShutdownTimeoutDuration())

	res, err := r.Render(cmd.Context(), argValues(args))
	if err != nil {
		return err
	}

	if err := os.WriteFile(opts.Out, res.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Out, err)
	}

	cache := "miss"
	if res.Hit {
		cache = "hit"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\t%s\n", res.Key, res.ContentType, len(res.Data), cache)
	return nil
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "key key=value...",
		Short: "Print the cache key for a parameter set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}

			r, err := runner.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer r.Shutdown(cfg.ShutdownTimeoutDuration())

			key, err := r.Key(argValues(args))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
