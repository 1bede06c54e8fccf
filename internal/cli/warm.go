package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-image-handler/pkg/client"
	"github.com/tendant/simple-image-handler/pkg/pipeline"
)

// WarmOptions holds flags for the warm command.
type WarmOptions struct {
	*RootOptions
	Server string
	Wait   time.Duration
}

// NewWarmCommand creates the warm command.
func NewWarmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WarmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "warm key=value...",
		Short: "Ask a running server to render ahead of demand",
		Long: `Ask a running server to render a parameter set so the first client
request is a cache hit. Servers with DBOS queue the render; --wait polls
until it finishes.

Example:
  image-handler warm src=photos/cat.jpg width=320 --wait 30s`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return warm(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "http://localhost:8080", "image handler base URL")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 0, "wait up to this long for a queued warm to finish")

	return cmd
}

func warm(cmd *cobra.Command, opts *WarmOptions, args []string) error {
	c := client.New(opts.Server)
	ctx := cmd.Context()

	req := pipeline.WarmRequest{Params: map[string]string{}}
	for k, vs := range argValues(args) {
		req.Params[k] = vs[0]
	}

	out, err := c.Warm(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if !out.Queued() {
		return enc.Encode(out.Result)
	}
	if opts.Wait <= 0 {
		return enc.Encode(out.Response)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Wait)
	defer cancel()

	status, err := c.WaitForWarm(waitCtx, out.Response.RunID, 500*time.Millisecond)
	if err != nil {
		return err
	}
	return enc.Encode(status)
}
