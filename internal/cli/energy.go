package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/seamcarve/pkg/imageio"
	"github.com/matzehuels/seamcarve/pkg/pipeline"
)

// energyCommand creates the energy command, a debugging aid that writes the
// cumulative energy table as a grayscale image.
func (c *CLI) energyCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "energy [file]",
		Short: "Write the cumulative energy map as a grayscale image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEnergy(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "energy.png", "output file; format from extension")

	return cmd
}

func (c *CLI) runEnergy(ctx context.Context, input, output string) error {
	logger := loggerFromContext(ctx)

	format, err := imageio.FormatFromPath(output)
	if err != nil {
		return err
	}
	data, err := readInput(input)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	img, _, err := pipeline.Decode(data, "")
	if err != nil {
		return err
	}
	m, err := pipeline.EnergyMap(img)
	if err != nil {
		return err
	}
	if err := imageio.WriteFile(output, m, format); err != nil {
		return err
	}
	prog.done("Computed energy map")

	printSuccess("Energy map of %s", input)
	printFile(output)
	return nil
}
