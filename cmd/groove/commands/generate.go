package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Conceptual-Machines/magda-groove/internal/services"
	"github.com/Conceptual-Machines/magda-groove/internal/songfile"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

type generateOptions struct {
	seed   uint64
	seeds  []string
	format string
	roles  []string
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <song.yaml>",
		Short: "Generate a track from a song design",
		Example: `  groove generate examples/pop.yaml --seed 42
  groove generate examples/pop.yaml --seeds 1,2,3 --format json
  groove generate examples/pop.yaml --roles kick,snare,bass`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "generation seed")
	cmd.Flags().StringSliceVar(&opts.seeds, "seeds", nil, "generate one track per seed, concurrently")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "output format: table or json")
	cmd.Flags().StringSliceVar(&opts.roles, "roles", nil, "only generate these roles")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions, path string) error {
	if opts.format != formatTable && opts.format != formatJSON {
		return fmt.Errorf("unknown format %q (want %s or %s)", opts.format, formatTable, formatJSON)
	}
	design, err := songfile.Load(path)
	if err != nil {
		return err
	}
	if len(opts.roles) > 0 {
		design.Roles = opts.roles
	}

	// no batch limit on the command line
	svc := services.NewGrooveService(root.cfg.TimelineOptions(), 0)
	ctx := cmd.Context()

	var results []*services.Result
	if len(opts.seeds) > 0 {
		seeds, err := parseSeeds(opts.seeds)
		if err != nil {
			return err
		}
		results, err = svc.GenerateBatch(ctx, design, seeds)
		if err != nil {
			return err
		}
	} else {
		res, err := svc.Generate(ctx, design, opts.seed)
		if err != nil {
			return err
		}
		results = []*services.Result{res}
	}

	out := cmd.OutOrStdout()
	if opts.format == formatJSON {
		if len(results) == 1 {
			return writeJSON(out, results[0].Track)
		}
		tracks := make([]any, 0, len(results))
		for _, r := range results {
			tracks = append(tracks, r.Track)
		}
		return writeJSON(out, tracks)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := renderTrack(out, r); err != nil {
			return err
		}
	}
	return nil
}

func parseSeeds(raw []string) ([]uint64, error) {
	seeds := make([]uint64, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q: %w", s, err)
		}
		seeds = append(seeds, n)
	}
	return seeds, nil
}
