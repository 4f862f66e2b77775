package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/seamcarve/pkg/errors"
	"github.com/matzehuels/seamcarve/pkg/imageio"
	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// carveOpts holds the command-line flags for the carve command.
type carveOpts struct {
	seams    int    // seams to remove; negative or too large means all
	output   string // output file path
	format   string // output format; inferred from output when empty
	cropped  bool   // write only the remaining columns
	progress bool   // show an interactive progress bar
	noCache  bool   // disable the result cache
	refresh  bool   // recompute even if cached
}

// carveCommand creates the carve command.
func (c *CLI) carveCommand() *cobra.Command {
	opts := carveOpts{seams: pipeline.AllSeams}

	cmd := &cobra.Command{
		Use:   "carve [file]",
		Short: "Remove vertical seams from an image",
		Long: `Remove the N lowest-energy vertical seams from an image.

The image keeps its size: every removed seam appends a black column on the
right. Use --cropped to write only the remaining columns. A negative N or one
larger than the image width removes every column.`,
		Example: `  seamcarve carve photo.ppm -n 50
  seamcarve carve photo.png -n 120 -o narrow.png --cropped`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("cropped") {
				opts.cropped = c.Config.Carve.Cropped
			}
			return c.runCarve(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.seams, "seams", "n", opts.seams, "number of seams to remove (negative: all)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default "+defaultOutput+")")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: ppm, ppmraw, png, jpeg, bmp, tiff (default from output extension)")
	cmd.Flags().BoolVar(&opts.cropped, "cropped", false, "write only the remaining columns")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show a progress bar")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")

	return cmd
}

func (c *CLI) runCarve(ctx context.Context, input string, opts carveOpts) error {
	logger := loggerFromContext(ctx)

	format, output, err := c.resolveOutput(opts.format, opts.output)
	if err != nil {
		return err
	}
	data, err := readInput(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	popts := pipeline.Options{
		N:       opts.seams,
		Clamp:   true,
		Format:  format,
		Cropped: opts.cropped,
		Refresh: opts.refresh,
		Logger:  logger,
	}

	prog := newProgress(logger)
	var res *pipeline.Result
	if opts.progress && isatty.IsTerminal(os.Stderr.Fd()) {
		res, err = runWithProgress(ctx, filepath.Base(input), func(ctx context.Context, report func(done, total int)) (*pipeline.Result, error) {
			popts.Progress = report
			return runner.Execute(ctx, data, popts)
		})
	} else {
		res, err = runner.Execute(ctx, data, popts)
	}
	if err != nil {
		return err
	}
	prog.done("Carving complete")

	if err := os.WriteFile(output, res.Encoded, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", output)
	}

	printSuccess("Carved %s", input)
	printFile(output)
	fmt.Println(carveSummary(res.Image.Width, res.Image.Height, res.Image.ActiveWidth(), len(res.Seams), res.CacheHit))
	return nil
}

// resolveOutput picks the output format and path. An explicit format wins,
// then the output file extension, then the configured default.
func (c *CLI) resolveOutput(format, output string) (imageio.Format, string, error) {
	if format != "" {
		f, err := imageio.ParseFormat(format)
		if err != nil {
			return "", "", err
		}
		if output == "" {
			output = "out" + f.Ext()
		}
		return f, output, nil
	}
	if output != "" {
		if f, err := imageio.FormatFromPath(output); err == nil {
			return f, output, nil
		}
	}
	f, err := imageio.ParseFormat(c.Config.Carve.Format)
	if err != nil {
		return "", "", err
	}
	if output == "" {
		output = defaultOutput
		if f != imageio.FormatPPM && f != imageio.FormatPPMRaw {
			output = "out" + f.Ext()
		}
	}
	return f, output, nil
}
