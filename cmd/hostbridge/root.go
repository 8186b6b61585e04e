package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/hostbridge/internal/bridge"
)

// rootFlags carries the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func (f *rootFlags) options() bridge.Options {
	return bridge.Options{
		ConfigPath: f.configPath,
		LogLevel:   f.logLevel,
	}
}

// NewRootCmd builds the hostbridge command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "hostbridge",
		Short:         "Run a VSCode extension host under IDE supervision",
		Long: `hostbridge provisions a Node.js runtime, captures the login-shell
environment, and supervises a VSCode-compatible extension host process.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"config file (default: the per-user hostbridge.toml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "",
		"override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newResolveCmd(flags))
	rootCmd.AddCommand(newEnvCmd(flags))
	rootCmd.AddCommand(newDoctorCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
