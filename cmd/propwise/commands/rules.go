package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRulesCommand(global *globalFlags) *cobra.Command {
	var (
		rulesPath string
		rulesMode string
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rule set as YAML",
		Long: `Print the side-effect rules, pattern keywords and inverse naming
conventions that analyze would use, after merging any rules file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("rules") {
				cfg.Rules.File = rulesPath
			}

			if cmd.Flags().Changed("rules-mode") {
				cfg.Rules.Mode = rulesMode
			}

			set, err := loadRules(cfg.Rules.File, cfg.Rules.Mode)
			if err != nil {
				return err
			}

			data, err := set.Marshal()
			if err != nil {
				return fmt.Errorf("marshal rules: %w", err)
			}

			_, err = cmd.OutOrStdout().Write(data)
			if err != nil {
				return fmt.Errorf("write rules: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rules file (YAML)")
	cmd.Flags().StringVar(&rulesMode, "rules-mode", "", "How the rules file combines with the defaults: extend, replace")

	return cmd
}
