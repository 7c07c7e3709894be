package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/core"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect or export the threat policy",
}

var policyExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write the built-in policy as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := core.SavePolicy(core.DefaultPolicy(), args[0]); err != nil {
			return err
		}
		pterm.Success.Println("Policy written to " + args[0])
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "List the rules of a policy file or of the built-in policy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy := core.DefaultPolicy()
		if len(args) == 1 {
			loaded, err := core.LoadPolicy(args[0])
			if err != nil {
				return err
			}
			policy = loaded
		}
		printRules(policy)
		return nil
	},
}

func init() {
	policyCmd.AddCommand(policyExportCmd, policyShowCmd)
	rootCmd.AddCommand(policyCmd)
}
