package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SamuelRCrider/callbridge/utils"
)

// Lead is a newly logged caller
type Lead struct {
	ConversationID string
	EventID        string
	Name           string
	Phone          string
	Outcome        string
	Duration       int
	County         string
	State          string
	Acreage        string
	Source         string
	Agent          string
	Summary        string
}

// Alert describes a blocked call record
type Alert struct {
	ConversationID string
	CallerKey      string
	Field          string
	Message        string
	Source         string
	Findings       []utils.ThreatFinding
}

// Options configures a Service
type Options struct {
	LeadWebhookURL     string
	SecurityWebhookURL string
	Username           string
	NotifyOnLead       bool
	AlertsPerWindow    int
	AlertWindow        time.Duration
}

// Service formats leads and alerts and sends them through a DiscordNotifier
type Service struct {
	discord  *DiscordNotifier
	opts     Options
	throttle *Throttle
	logger   zerolog.Logger
}

// NewService creates a Service. Security alerts fall back to the lead
// webhook when no dedicated URL is set.
func NewService(discord *DiscordNotifier, opts Options, logger zerolog.Logger) *Service {
	if opts.SecurityWebhookURL == "" {
		opts.SecurityWebhookURL = opts.LeadWebhookURL
	}
	if opts.AlertsPerWindow < 1 {
		opts.AlertsPerWindow = 5
	}
	if opts.AlertWindow <= 0 {
		opts.AlertWindow = 10 * time.Minute
	}
	return &Service{
		discord:  discord,
		opts:     opts,
		throttle: NewThrottle(opts.AlertsPerWindow, opts.AlertWindow),
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// NotifyLead announces a new lead when lead notifications are enabled.
func (s *Service) NotifyLead(ctx context.Context, lead Lead) error {
	if s == nil || !s.opts.NotifyOnLead || s.opts.LeadWebhookURL == "" {
		return nil
	}
	payload := MessagePayload{
		Username: s.opts.Username,
		Embeds:   []Embed{LeadEmbed(lead, time.Now())},
	}
	return s.discord.SendNotification(ctx, s.opts.LeadWebhookURL, payload)
}

// NotifySecurity sends a security alert unless the caller has exceeded the
// alert budget for the current window.
func (s *Service) NotifySecurity(ctx context.Context, alert Alert) error {
	if s == nil || s.opts.SecurityWebhookURL == "" {
		return nil
	}

	key := alert.CallerKey
	if key == "" {
		key = "unknown"
	}
	exceeded, count, reset := s.throttle.CheckLimit(key)
	if exceeded {
		s.logger.Warn().
			Str("caller", key).
			Int("count", count).
			Time("reset", reset).
			Msg("Security alert suppressed")
		return nil
	}

	payload := MessagePayload{
		Username: s.opts.Username,
		Embeds:   []Embed{AlertEmbed(alert, time.Now())},
	}
	return s.discord.SendNotification(ctx, s.opts.SecurityWebhookURL, payload)
}

// LeadEmbed renders a lead.
func LeadEmbed(lead Lead, at time.Time) Embed {
	b := NewEmbedBuilder().
		WithTitle("📞 New Lead from AI Call").
		WithColor(ColorSuccess).
		WithTimestamp(at).
		WithFooter("CallBridge").
		AddField("Name", lead.Name, true).
		AddField("Phone", lead.Phone, true).
		AddField("Outcome", lead.Outcome, true)

	if lead.Duration > 0 {
		b.AddField("Duration", FormatDuration(lead.Duration), true)
	}
	var property []string
	if lead.Acreage != "" {
		property = append(property, lead.Acreage+" acres")
	}
	if lead.County != "" {
		property = append(property, lead.County+" County")
	}
	if lead.State != "" {
		property = append(property, lead.State)
	}
	b.AddField("Property", strings.Join(property, ", "), false).
		AddField("Source", lead.Source, true).
		AddField("Assigned To", lead.Agent, true).
		AddField("Event ID", lead.EventID, true).
		AddField("Summary", lead.Summary, false)

	return b.Build()
}

// AlertEmbed renders a security alert. Matched text is never included.
func AlertEmbed(alert Alert, at time.Time) Embed {
	counts := utils.CountBySeverity(alert.Findings)
	b := NewEmbedBuilder().
		WithTitle("🚨 Call Record Blocked").
		WithDescription(alert.Message).
		WithColor(ColorDanger).
		WithTimestamp(at).
		WithFooter("CallBridge security").
		AddField("Field", alert.Field, true).
		AddField("Source", alert.Source, true).
		AddField("Conversation", alert.ConversationID, true).
		AddField("Findings", fmt.Sprintf("high: %d, medium: %d, low: %d",
			counts[utils.SeverityHigh], counts[utils.SeverityMedium], counts[utils.SeverityLow]), false)

	var rules []string
	seen := map[string]bool{}
	for _, f := range alert.Findings {
		if f.Severity != utils.SeverityHigh || f.RuleID == "" || seen[f.RuleID] {
			continue
		}
		seen[f.RuleID] = true
		rules = append(rules, f.RuleID)
	}
	b.AddField("Rules", strings.Join(rules, ", "), false)

	return b.Build()
}

// FormatDuration renders seconds as "Xm Ys".
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
