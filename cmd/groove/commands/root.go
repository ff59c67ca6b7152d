package commands

import (
	"fmt"
	"io"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Conceptual-Machines/magda-groove/internal/config"
	"github.com/Conceptual-Machines/magda-groove/internal/logger"
)

type rootOptions struct {
	verbose bool
	cfg     *config.Config
}

// NewRootCommand builds the groove command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "groove",
		Short: "groove - deterministic drum and bass track generator",
		Long: `groove turns a song design (meter, sections, protection layers, patterns
and chords) into a per-bar drum and bass track. The same design and seed
always produce the same track.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// a missing .env is fine; the environment wins anyway
			_ = godotenv.Load()
			opts.cfg = config.Load()

			logger.SetDebug(opts.verbose && opts.cfg.LogDebug)
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print generation logs to stderr")

	root.AddCommand(newGenerateCommand(opts))
	root.AddCommand(newBarsCommand(opts))
	return root
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(root *cobra.Command, v, c, d string) {
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
