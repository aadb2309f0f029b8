package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	root        string
	configPath  string
	output      string
	logFile     string
	verbose     bool
	quiet       bool
	showVersion bool
}

func run(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "prolet",
		Short:         "Mirror documents from a GitHub repository and build reader fragments",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "prolet %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.root, "root", "", "project root (default: $PROLET_ROOT or the current directory)")
	pf.StringVarP(&g.configPath, "config", "c", "", "project config file (default: <root>/reader/config.toml, or config.json if only it exists)")
	pf.StringVarP(&g.output, "output", "o", "", "output directory (default: <root>/reader/source)")
	pf.StringVar(&g.logFile, "log", "", "write structured JSON log to FILE")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().BoolVar(&g.showVersion, "version", false, "print version and exit")

	rootCmd.AddCommand(newSyncCmd(g))
	rootCmd.AddCommand(newBuildCmd(g))
	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
