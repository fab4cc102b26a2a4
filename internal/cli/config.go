// config.go implements the "gitflow config" command, which prints the
// effective configuration after all layers are applied.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/gitflow/internal/config"
)

// NewConfigCommand creates the "config" cobra command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the configuration hotfix-start would use in this repository:
built-in defaults, overridden by the repository config file, overridden by
git-flow keys in git config (gitflow.branch.master, gitflow.prefix.hotfix).

Examples:
  gitflow config
  gitflow config --json
  gitflow config --config ci/gitflow.toml`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			_, loaded, err := loadConfig(ctx, config.Layer{}, "")
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), loaded)
		},
	}
}

// printConfig writes the configuration as YAML, or JSON with --json.
func printConfig(w io.Writer, loaded *config.Loaded) error {
	if jsonOutput {
		data, err := json.MarshalIndent(map[string]interface{}{
			"file":   loaded.File,
			"config": loaded.Config,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	source := loaded.File
	if source == "" {
		source = "none"
	}
	fmt.Fprintf(w, "# config file: %s\n", source)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(loaded.Config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
