// Package cli implements the opspilot command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/opspilot/opspilot/internal/app/config"
	"github.com/opspilot/opspilot/internal/infrastructure/di"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig config.Config

// NewRoot builds the root command with all subcommands attached.
func NewRoot() *cobra.Command {
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "opspilot",
		Short:         "Operational request orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs.
			// Priority: YAML file > OPSPILOT_* env > defaults.
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			globalConfig = cfg

			level := cfg.LogLevel()
			if logLevel != "" {
				level = logLevel
			}
			InitGlobalLogger(level)
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to opspilot.yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newApproveCmd())
	cmd.AddCommand(newRejectCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// newContainer wires the object graph from the loaded configuration,
// routing component logs through the global logger.
func newContainer() (*di.Container, error) {
	logger := GetLogger()
	return di.NewContainer(globalConfig, func(format string, args ...interface{}) {
		logger.Debug(format, args...)
	})
}
