package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// seamCommand creates the seam command.
func (c *CLI) seamCommand() *cobra.Command {
	var (
		asJSON  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "seam [file]",
		Short: "Print the minimum-energy seam of an image",
		Long: `Print the column of the minimum-energy vertical seam for every row,
top row first, one number per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeam(cmd.Context(), args[0], asJSON, noCache)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the seam as a JSON array")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runSeam(ctx context.Context, input string, asJSON, noCache bool) error {
	data, err := readInput(input)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	s, hit, err := runner.FindSeamWithCacheInfo(ctx, data, pipeline.Options{Logger: loggerFromContext(ctx)})
	if err != nil {
		return err
	}
	loggerFromContext(ctx).Debug("found seam", "rows", len(s), "cached", hit)

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode([]int(s))
	}
	w := bufio.NewWriter(os.Stdout)
	for _, col := range s {
		w.WriteString(strconv.Itoa(col))
		w.WriteByte('\n')
	}
	return w.Flush()
}
