// Package cli implements the htmllex command-line client.
package cli

import (
	"fmt"
	"runtime"

	"github.com/htmllex/analyzer/internal/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand creates the root command. Each call gets its own viper
// instance so commands can be built repeatedly in tests.
func NewRootCommand(version, commit, date string) *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "htmllex",
		Short: "Submit HTML files to the lexical analysis service",
		Long: `htmllex sends one or more files to an HTML lexical analysis server and
shows, for every file, the errors found and the recognized tokens.

Settings come from flags, then HTMLLEX_* environment variables, then an
optional .htmllex.yaml in the current or home directory.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file path")
	flags.StringP("endpoint", "e", client.DefaultEndpoint, "analysis endpoint URL")
	flags.Duration("timeout", defaultTimeout, "request timeout")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.Bool("no-color", false, "disable colored output")
	flags.Bool("msgpack", false, "request msgpack responses instead of JSON")

	for _, name := range []string{"endpoint", "timeout", "verbose", "no-color", "msgpack"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(newSubmitCommand(v))
	rootCmd.AddCommand(newTUICommand(v))
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version == "dev" || version == "" {
				version = "development"
			}
			if commit == "none" || commit == "" {
				commit = "local-build"
			}
			if date == "unknown" || date == "" {
				date = "local-build"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "htmllex %s (%s) built on %s\n", version, commit, date)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
