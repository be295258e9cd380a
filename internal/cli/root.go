// Package cli holds the eseal commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Log flags
const (
	LogLevelFlag  = "log-level"
	LogFormatFlag = "log-format"
)

// New returns the root command with all subcommands attached.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eseal",
		Short: "Build, verify and serve GM/T 0031 electronic seals",
		Long: `eseal builds electronic seals (SES_Signature v1 structures) signed with SM2/SM3
or ECDSA P-256, verifies them, and runs a seal registry and verification service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: setupLogging,
		SilenceUsage:      true,
	}

	cmd.PersistentFlags().String(LogLevelFlag, "info", "log level: debug, info, warn or error (env ESEAL_LOG_LEVEL)")
	cmd.PersistentFlags().String(LogFormatFlag, "text", "log format: text or json")

	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	levelName := flagOrEnv(cmd, LogLevelFlag, "ESEAL_LOG_LEVEL")
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	format, _ := cmd.Flags().GetString(LogFormatFlag)
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// flagOrEnv returns the flag value when it was set on the command line,
// else the environment variable when present, else the flag default.
func flagOrEnv(cmd *cobra.Command, name, env string) string {
	val, _ := cmd.Flags().GetString(name)
	if cmd.Flags().Changed(name) {
		return val
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return val
}
