package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/logger"
	"github.com/SamuelRCrider/callbridge/mcpclient"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List or call the tools of an MCP server",
	Long: `Connects to an MCP server over streamable HTTP (--url .../mcp), SSE
(--url .../sse) or stdio (--command), or to this binary's own tool set
in-process (--local), and lists or calls its tools.`,
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools the server offers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := connectTools(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		tools, err := c.ListTools(cmd.Context())
		if err != nil {
			return err
		}

		info := c.ServerInfo()
		pterm.Info.Printf("%s %s: %d tools\n", info.Name, info.Version, len(tools))
		data := [][]string{{"Tool", "Description"}}
		for _, t := range tools {
			data = append(data, []string{pterm.FgCyan.Sprint(t.Name), preview(t.Description)})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <tool> [key=value...]",
	Short: "Call one tool and print its text result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolArgs, err := mcpclient.ParseArgs(args[1:])
		if err != nil {
			return err
		}

		c, cleanup, err := connectTools(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := c.CallTool(cmd.Context(), args[0], toolArgs)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		if res.IsError {
			return exitCode(1)
		}
		return nil
	},
}

func init() {
	toolsCmd.PersistentFlags().String("url", "", "Streamable HTTP or SSE endpoint (default $"+mcpclient.EnvServerURL+")")
	toolsCmd.PersistentFlags().String("command", "", "Start a stdio server with this command (default $"+mcpclient.EnvServerPath+")")
	toolsCmd.PersistentFlags().StringSlice("arg", nil, "Argument for --command, repeatable")
	toolsCmd.PersistentFlags().Bool("local", false, "Use this binary's tool set in-process, configured like serve")
	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}

// connectTools opens the session selected by the flags. cleanup closes it
// and anything opened for --local.
func connectTools(cmd *cobra.Command) (*mcpclient.Client, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	local, _ := cmd.Flags().GetBool("local")

	if local {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, nil, err
		}
		cfg.Log.Stderr = true
		log, err := logger.New(cfg.Log)
		if err != nil {
			return nil, nil, err
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		c, err := mcpclient.NewInProcess(ctx, a.mcp, log)
		if err != nil {
			a.Close()
			return nil, nil, err
		}
		return c, func() { c.Close(); a.Close() }, nil
	}

	url, _ := cmd.Flags().GetString("url")
	command, _ := cmd.Flags().GetString("command")
	commandArgs, _ := cmd.Flags().GetStringSlice("arg")
	target, err := mcpclient.ResolveTarget(strings.TrimSpace(url), strings.TrimSpace(command), commandArgs, os.Getenv)
	if err != nil {
		return nil, nil, err
	}

	c, err := mcpclient.Connect(ctx, target, zerolog.Nop())
	if err != nil {
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}
