// Package cmd implements patchloop's CLI parser: one cobra subcommand per
// mode (install, update, generate), plus the legacy "-u"/"--update" bare
// flag compatibility shim ahead of cobra's own flag parsing.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "patchloop",
	Short: "Self-contained installer and auto-updater",
	Long: `patchloop diffs a source file tree against an installed target, stages
and atomically applies the difference, and self-replaces when its own
executable changed. Run with no subcommand to install from the directory
the binary currently lives in, prompting for the installation directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd, nil)
	},
}

var versionCmd = &cobra.Command{
	Use:   "info",
	Short: "Print version and installed-target information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "detailed output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimal output (errors only)")
	rootCmd.AddCommand(versionCmd)
}

// Execute parses argv (with the legacy shim applied) and runs the selected
// subcommand.
func Execute() error {
	rootCmd.SetArgs(applyLegacyShim(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// applyLegacyShim rewrites a bare "-u"/"--update" flag, wherever it appears
// in args, into an explicit leading "update" subcommand, for compatibility
// with older callers that wrote "-u -s <source>".
func applyLegacyShim(args []string) []string {
	for i, a := range args {
		if a == "-u" || a == "--update" {
			rest := append(append([]string{}, args[:i]...), args[i+1:]...)
			return append([]string{"update"}, rest...)
		}
	}
	return args
}

func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

func detail(format string, args ...any) {
	if verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
