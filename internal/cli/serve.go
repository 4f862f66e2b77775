package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/seamcarve/pkg/cache"
	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
	"github.com/matzehuels/seamcarve/pkg/pipeline"
	"github.com/matzehuels/seamcarve/pkg/server"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr         string
	maxBodyBytes int64
	maxPixels    int
	noCache      bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP carving service",
		Long: `Serve the carving pipeline over HTTP.

Endpoints:
  GET  /healthz
  POST /v1/carve?n=N&format=png&cropped=true
  POST /v1/seam
  POST /v1/stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				opts.addr = c.Config.Serve.Addr
			}
			if !cmd.Flags().Changed("max-body") {
				opts.maxBodyBytes = c.Config.Serve.MaxBodyBytes
			}
			if !cmd.Flags().Changed("max-pixels") {
				opts.maxPixels = c.Config.Serve.MaxPixels
			}
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().Int64Var(&opts.maxBodyBytes, "max-body", server.DefaultMaxBodyBytes, "maximum request body size in bytes")
	cmd.Flags().IntVar(&opts.maxPixels, "max-pixels", errors.MaxPixels, "maximum decoded image size in pixels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	cc, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(cc, cache.NewScopedKeyer(nil, "serve:"), c.Logger)
	defer runner.Close()

	format, err := imageio.ParseFormat(c.Config.Carve.Format)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:          opts.addr,
		Runner:        runner,
		Logger:        c.Logger.WithPrefix("http"),
		DefaultFormat: format,
		MaxBodyBytes:  opts.maxBodyBytes,
		MaxPixels:     opts.maxPixels,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
