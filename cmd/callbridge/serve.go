package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SamuelRCrider/callbridge/logger"
	"github.com/SamuelRCrider/callbridge/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook, REST bridge and MCP HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}

		log, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		deps := webhook.Dependencies{
			MCP:             a.mcp,
			MCPConfig:       cfg.MCP,
			Tools:           a.tools,
			ServiceName:     cfg.Server.ServiceName,
			Logger:          log,
			ReadTimeout:     time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout:    time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second,
		}
		if a.processor != nil {
			deps.Processor = a.processor
		}
		if a.client != nil {
			deps.CRM = a.client
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return webhook.New(cfg.Server.Addr(), deps).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Listen port (overrides config and $PORT)")
	rootCmd.AddCommand(serveCmd)
}
