// Package cmd provides the command-line interface for zkmemsim.
package cmd

import (
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCmd creates the base command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "zkmemsim",
		Short: "zkmemsim generates the memory traffic of a ZK proof " +
			"accelerator.",
		Long: `zkmemsim generates the memory traffic of a ZK proof ` +
			`accelerator, removes traffic that is already on chip, and ` +
			`writes the remaining requests as a trace for a RAM timing ` +
			`simulator.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd)
		},
	}

	rootCmd.PersistentFlags().String("log", "info",
		"Log level (trace, debug, info, warn, error).")
	rootCmd.PersistentFlags().String("log-file", "",
		"Also write logs to this file, rotated hourly.")

	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newMemCpyCmd())
	rootCmd.AddCommand(newVecOpCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// Execute runs the root command and exits the process. Registered exit
// handlers, such as data recorder flushes, run before the exit.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func setupLogging(cmd *cobra.Command) error {
	levelName, _ := cmd.Flags().GetString("log")

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return err
	}

	logrus.SetLevel(level)

	logFile, _ := cmd.Flags().GetString("log-file")
	if logFile == "" {
		return nil
	}

	rl, err := rotatelogs.New(
		logFile+".%Y%m%d%H",
		rotatelogs.WithLinkName(logFile),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(time.Hour),
	)
	if err != nil {
		return err
	}

	logrus.SetOutput(io.MultiWriter(os.Stderr, rl))

	return nil
}
