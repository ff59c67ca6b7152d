package commands

import (
	"github.com/spf13/cobra"

	"github.com/Conceptual-Machines/magda-groove/internal/services"
	"github.com/Conceptual-Machines/magda-groove/internal/songfile"
)

func newBarsCommand(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "bars <song.yaml>",
		Short: "Show the bar sequence of a song design",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			design, err := songfile.Load(args[0])
			if err != nil {
				return err
			}
			bars, err := services.NewGrooveService(root.cfg.TimelineOptions(), 0).Bars(design)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), bars)
			}
			renderBars(cmd.OutOrStdout(), bars)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
