package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv-lint/internal/payload"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
)

var dumpCmd = &cobra.Command{
	Use:   "dump --stage <stage> <file>",
	Short: "Print the plugin request of one stage as JSON",
	Long: `Print the CheckFileStage request sv-lint would send to the plugin for
one stage of one file, without running the plugin.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	addLintFlags(dumpCmd.Flags())
	dumpCmd.Flags().String("stage", string(protocol.Ast), "stage to dump (raw_text|pp_text|cst|ast)")
	dumpCmd.Flags().Bool("compact", false, "print on one line")
}

func runDump(cmd *cobra.Command, args []string) error {
	name, err := cmd.Flags().GetString("stage")
	if err != nil {
		return fmt.Errorf("failed to get stage flag: %w", err)
	}
	stage, err := protocol.ParseStage(name)
	if err != nil {
		return err
	}
	compact, err := cmd.Flags().GetBool("compact")
	if err != nil {
		return fmt.Errorf("failed to get compact flag: %w", err)
	}

	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	p, err := s.pipeline(nil)
	if err != nil {
		return err
	}
	art, err := p.Artifacts(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if art.ParseErr != nil {
		s.log.Warn("parsed without a syntax tree", "path", args[0], "error", art.ParseErr)
	}
	req, err := payload.Request(stage, art.Artifacts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(req); err != nil {
		return err
	}
	return s.close(cmd.Context())
}
