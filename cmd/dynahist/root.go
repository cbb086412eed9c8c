package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logger = &logrus.Logger{
	Out:       logrus.StandardLogger().Out,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.InfoLevel,
}

func newRootCommand() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:           "dynahist",
		Short:         "Inspect serialized dynahist histograms",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(newInspectCommand())
	return rootCmd
}
