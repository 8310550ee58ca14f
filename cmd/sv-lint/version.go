package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/sv-lint/internal/payload"
	"github.com/robert-at-pretension-io/sv-lint/internal/protocol"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

type versionPayload struct {
	Tool         string           `json:"tool"`
	Version      string           `json:"version"`
	Commit       string           `json:"commit,omitempty"`
	GoVersion    string           `json:"go_version"`
	Stages       []protocol.Stage `json:"stages"`
	ASTSchema    int              `json:"ast_schema_version"`
	RequestType  string           `json:"request_type"`
	ResponseType string           `json:"response_type"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and protocol information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		info := versionPayload{
			Tool:         "sv-lint",
			Version:      version,
			Commit:       vcsRevision(),
			GoVersion:    runtime.Version(),
			Stages:       protocol.AllStages,
			ASTSchema:    payload.ASTSchemaVersion,
			RequestType:  protocol.RequestType,
			ResponseType: protocol.ResponseType,
		}
		w := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case "", "pretty":
			fmt.Fprintf(w, "sv-lint %s (%s)\n", info.Version, info.GoVersion)
			if info.Commit != "" {
				fmt.Fprintf(w, "commit: %s\n", info.Commit)
			}
			fmt.Fprintf(w, "protocol: %s -> %s, ast schema v%d\n", info.RequestType, info.ResponseType, info.ASTSchema)
			return nil
		}
		return fmt.Errorf("unknown format %q (want pretty|json)", format)
	},
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
