package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/SamuelRCrider/callbridge/config"
	"github.com/SamuelRCrider/callbridge/core"
	"github.com/SamuelRCrider/callbridge/crm"
	"github.com/SamuelRCrider/callbridge/extract"
	"github.com/SamuelRCrider/callbridge/intake"
	"github.com/SamuelRCrider/callbridge/mcptools"
	"github.com/SamuelRCrider/callbridge/notify"
	"github.com/SamuelRCrider/callbridge/store"
)

// app holds the wired collaborators shared by serve and stdio
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	audit     *core.AuditLogger
	ledger    *store.Ledger
	client    *crm.Client
	processor *intake.Processor
	mcp       *server.MCPServer
	tools     []mcp.Tool
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	validator, err := loadValidator(cfg.Security.PolicyPath, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Security.Audit.Path != "" {
		a.audit, err = core.NewAuditLogger(core.AuditConfig{
			Path:       cfg.Security.Audit.Path,
			Level:      core.AuditLogLevel(cfg.Security.Audit.Level),
			MaxSizeMB:  cfg.Security.Audit.MaxSizeMB,
			MaxBackups: cfg.Security.Audit.MaxBackups,
			MaxAgeDays: cfg.Security.Audit.MaxAgeDays,
			Compress:   cfg.Security.Audit.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	if cfg.Storage.SQLitePath != "" {
		a.ledger, err = store.Open(cfg.Storage.SQLitePath, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.CRM.APIKey != "" {
		a.client, err = crm.NewClient(cfg.CRM.APIKey,
			crm.WithBaseURL(cfg.CRM.BaseURL),
			crm.WithTimeout(time.Duration(cfg.CRM.TimeoutSecs)*time.Second),
			crm.WithRateLimit(cfg.CRM.RequestsPerSecond, cfg.CRM.Burst),
			crm.WithLogger(logger),
		)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Warn().Msg("FOLLOWUP_BOSS_API_KEY not set; CRM routes and tools will report it missing")
	}

	notifier := notify.NewService(notify.NewDiscordNotifier(logger, nil), notify.Options{
		LeadWebhookURL:     cfg.Notifications.DiscordWebhookURL,
		SecurityWebhookURL: cfg.Notifications.SecurityWebhookURL,
		Username:           cfg.Notifications.Username,
		NotifyOnLead:       cfg.Notifications.NotifyOnLead,
		AlertsPerWindow:    cfg.Notifications.AlertsPerWindow,
		AlertWindow:        time.Duration(cfg.Notifications.AlertWindowMins) * time.Minute,
	}, logger)

	deps := mcptools.Deps{Logger: logger}
	if a.client != nil {
		opts := []intake.Option{
			intake.WithNotifier(notifier),
			intake.WithAudit(a.audit),
			intake.WithAssigner(extract.NewAssigner(cfg.Assignment.DefaultAgent, cfg.Assignment.ByState)),
			intake.WithLogger(logger),
			intake.WithOptions(intake.Options{
				EventType:    cfg.CRM.EventType,
				EventSource:  cfg.CRM.EventSource,
				PersonSource: cfg.CRM.PersonSource,
				Tags:         cfg.CRM.Tags,
			}),
		}
		if a.ledger != nil {
			opts = append(opts, intake.WithLedger(a.ledger))
		}
		a.processor = intake.NewProcessor(validator, a.client, opts...)

		deps.CRM = a.client
		deps.Processor = a.processor
	}

	a.mcp = mcptools.NewServer(cfg.MCP.Name, cfg.MCP.Version, deps)
	a.tools = mcptools.DescribeTools(deps)
	return a, nil
}

// Close releases the ledger and the audit log.
func (a *app) Close() error {
	var errs []error
	if a.ledger != nil {
		errs = append(errs, a.ledger.Close())
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	return errors.Join(errs...)
}

// loadValidator builds the field validator over the policy at path, or over
// the built-in catalog when path is empty.
func loadValidator(path string, logger zerolog.Logger) (*core.Validator, error) {
	detector, err := loadDetector(path)
	if err != nil {
		return nil, err
	}
	return core.NewValidator(detector, core.WithLogger(logger)), nil
}

func loadDetector(path string) (*core.Detector, error) {
	if path == "" {
		return core.NewDetector(nil), nil
	}
	policy, err := core.LoadPolicy(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	catalog, err := policy.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy: %w", err)
	}
	return core.NewDetector(catalog), nil
}
