package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/corvidlabs/reludp/internal/config"
)

// configCmd groups configuration-related subcommands.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect reludpd configuration",
	}

	cmd.AddCommand(configDumpCmd())

	return cmd
}

// configDumpCmd prints the daemon's built-in default configuration as YAML,
// the same shape an operator would write to a config file to override it.
func configDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the default configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return fmt.Errorf("marshal default config: %w", err)
			}

			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
