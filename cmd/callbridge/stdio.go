package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/logger"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the MCP tools over stdin and stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// stdout carries protocol frames
		cfg.Log.Stderr = true

		log, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stdio := server.NewStdioServer(a.mcp)
		stdio.SetErrorLogger(stdlog.New(log.With().Str("component", "stdio").Logger(), "", 0))

		log.Info().Str("server", cfg.MCP.Name).Int("tools", len(a.tools)).Msg("MCP stdio server starting")
		err = stdio.Listen(ctx, os.Stdin, os.Stdout)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}
