package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	flagVerbose     bool
	flagProjectRoot string

	logger = log.New(os.Stderr)
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "relgen",
		Short:         "Generate versioned dataset releases with augmented images and labels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logger.SetLevel(log.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&flagProjectRoot, "project-root", ".", "root directory for project release trees")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newFormatsCmd())
	root.AddCommand(newPreviewCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}
