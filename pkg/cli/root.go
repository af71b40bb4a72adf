// Package cli implements the protomock command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// Build-time version info, set by Execute.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "protomock",
	Short: "Mock gRPC server that synthesizes responses from proto definitions",
	Long: `protomock compiles .proto files and serves every service they declare.
Responses are synthesized from the message schemas: nested messages are
filled recursively, streaming methods push fresh payloads on a timer, and
no per-method mock configuration is required.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with build-time version info.
func Execute(v, c, d string) error {
	version, commit, buildDate = v, c, d
	return rootCmd.Execute()
}
