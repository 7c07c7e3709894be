package main

import (
	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/config"
)

var rootCmd = &cobra.Command{
	Use:   "callbridge",
	Short: "callbridge logs AI phone calls to Follow Up Boss",
	Long: `callbridge receives completed voice-agent calls, screens every text field for
prompt injection and records admissible calls as Follow Up Boss events. The same
CRM operations are exposed as MCP tools over stdio, SSE and streamable HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default $"+config.EnvConfigPath+" or ./"+config.DefaultConfigFile+")")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
