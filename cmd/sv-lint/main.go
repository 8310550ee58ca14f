// sv-lint runs SystemVerilog sources through external rule plugins.
//
// Each file is preprocessed and parsed once. Its raw text, preprocessed
// text, CST IR and declaration/usage tables are then sent, one stage at a
// time, to the configured plugin command as a JSON request on stdin; the
// plugin answers with the violations it found.
//
// Exit status: 0 clean, 2 violations reported, 3 something failed.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv-lint/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "sv-lint [flags] <file|dir>...",
	Short: "Lint SystemVerilog with external rule plugins",
	Long: `sv-lint parses SystemVerilog files and hands each enabled stage
(raw_text, pp_text, cst, ast) to the configured plugin command.

Configuration is read from --config, ./sv-lint.toml, ./.sv-lint.toml,
<first input>/sv-lint.toml or ~/.config/sv-lint/config.toml, in that order.
Run 'sv-lint init' to write a commented default.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLint,
}

// exitStatus carries a lint result out of Execute.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func main() {
	rootCmd.Version = version
	addLintFlags(rootCmd.Flags())

	rootCmd.PersistentFlags().String("config", "", "config file (default: search order above)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text|json)")
	rootCmd.PersistentFlags().String("color", "", "colorize output (auto|always|never)")

	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	os.Exit(execute())
}

func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return pipeline.ExitClean
	}
	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	fmt.Fprintf(os.Stderr, "sv-lint: %v\n", err)
	return pipeline.ExitError
}
