package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// statsCommand creates the stats command.
func (c *CLI) statsCommand() *cobra.Command {
	var (
		asJSON  bool
		pretty  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "stats [file]",
		Short: "Print image width, height and brightness",
		Long: `Print the width, height and mean brightness of an image.

Brightness is the mean over all pixels of (r+g+b)/3, rounded down.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && pretty {
				return fmt.Errorf("--json and --pretty are mutually exclusive")
			}
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			return c.runStats(cmd.Context(), data, asJSON, pretty, noCache)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "print statistics as a table")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runStats(ctx context.Context, data []byte, asJSON, pretty, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	st, err := runner.Stats(ctx, data, pipeline.Options{Logger: loggerFromContext(ctx)})
	if err != nil {
		return err
	}

	switch {
	case asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case pretty:
		fmt.Println(statsTable(st))
		return nil
	default:
		return writeStatsPlain(os.Stdout, st)
	}
}
