package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/SamuelRCrider/callbridge/utils"
)

// AuditLogLevel defines the verbosity of audit logging
type AuditLogLevel string

const (
	// AuditLogLevelMinimal logs only warnings and above, without content
	AuditLogLevelMinimal AuditLogLevel = "minimal"

	// AuditLogLevelStandard logs a redacted, truncated input preview
	AuditLogLevelStandard AuditLogLevel = "standard"

	// AuditLogLevelVerbose logs all details including content
	AuditLogLevelVerbose AuditLogLevel = "verbose"
)

// AuditLogSeverity defines the severity of audit log events
type AuditLogSeverity string

const (
	// SeverityInfo for normal operations
	SeverityInfo AuditLogSeverity = "info"

	// SeverityWarning for potential security issues
	SeverityWarning AuditLogSeverity = "warning"

	// SeverityError for blocked input or failed deliveries
	SeverityError AuditLogSeverity = "error"
)

// Audit event types
const (
	EventCallBlocked   = "call_blocked"
	EventCallAccepted  = "call_accepted"
	EventCallDuplicate = "call_duplicate"
	EventCRMError      = "crm_error"
)

// previewLimit bounds the input preview in standard mode
const previewLimit = 200

// AuditLog represents one security audit entry
type AuditLog struct {
	// Core fields for traceability
	RequestID    string           `json:"request_id"`
	Timestamp    string           `json:"timestamp"`
	EventType    string           `json:"event_type"`
	ActionSource string           `json:"action_source"` // e.g. "webhook", "mcp"
	Severity     AuditLogSeverity `json:"severity"`

	// Screening information
	Context  string                `json:"context,omitempty"`
	Input    string                `json:"input,omitempty"`
	Findings []utils.ThreatFinding `json:"findings,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// AuditConfig configures a file-backed audit logger
type AuditConfig struct {
	Path       string
	Level      AuditLogLevel
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AuditLogger writes audit entries as JSON lines
type AuditLogger struct {
	mu     sync.Mutex
	level  AuditLogLevel
	writer io.Writer
	closer io.Closer
	now    func() time.Time
}

// NewAuditLogger opens a rotating audit log file.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	level, err := ParseAuditLogLevel(string(cfg.Level))
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	logger := NewAuditLoggerWithWriter(rotator, level)
	logger.closer = rotator
	return logger, nil
}

// ParseAuditLogLevel accepts a level in any case. Empty means standard.
func ParseAuditLogLevel(s string) (AuditLogLevel, error) {
	switch level := AuditLogLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case "":
		return AuditLogLevelStandard, nil
	case AuditLogLevelMinimal, AuditLogLevelStandard, AuditLogLevelVerbose:
		return level, nil
	}
	return "", fmt.Errorf("unknown audit log level %q", s)
}

// NewAuditLoggerWithWriter creates an audit logger over any writer. An
// unknown level falls back to standard.
func NewAuditLoggerWithWriter(w io.Writer, level AuditLogLevel) *AuditLogger {
	level, err := ParseAuditLogLevel(string(level))
	if err != nil {
		level = AuditLogLevelStandard
	}
	return &AuditLogger{
		level:  level,
		writer: w,
		now:    time.Now,
	}
}

// LogEvent writes an audit event, filtering content by level
func (l *AuditLogger) LogEvent(log AuditLog) error {
	if l == nil {
		return nil
	}

	if log.Severity == "" {
		log.Severity = SeverityInfo
	}
	if log.Timestamp == "" {
		log.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	}
	if log.RequestID == "" {
		log.RequestID = uuid.NewString()
	}

	switch l.level {
	case AuditLogLevelMinimal:
		if log.Severity == SeverityInfo {
			return nil
		}
		log.Input = ""
		log.Findings = stripMatchedText(log.Findings)
	case AuditLogLevelStandard:
		log.Input = truncatePreview(RedactFindings(log.Input, log.Findings))
	}

	entry, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.writer.Write(append(entry, '\n')); err != nil {
		return fmt.Errorf("failed to write to log: %w", err)
	}
	return nil
}

// LogScreening records the verdict of a field validation.
func (l *AuditLogger) LogScreening(requestID, source string, result ValidationResult, input string, metadata map[string]string) error {
	entry := AuditLog{
		RequestID:    requestID,
		EventType:    EventCallAccepted,
		ActionSource: source,
		Severity:     SeverityInfo,
		Context:      result.Field,
		Findings:     result.Findings,
		Metadata:     metadata,
	}
	if !result.OK {
		entry.EventType = EventCallBlocked
		entry.Severity = SeverityError
		entry.Input = input
		entry.Findings = fieldFindings(result.Findings, result.Field)
	} else if utils.HasSeverity(result.Findings, utils.SeverityMedium) {
		entry.Severity = SeverityWarning
	}
	return l.LogEvent(entry)
}

// LogSecurityEvent is a helper to log events that carry only metadata
func (l *AuditLogger) LogSecurityEvent(requestID, eventType string, severity AuditLogSeverity, source string, metadata map[string]string) error {
	return l.LogEvent(AuditLog{
		RequestID:    requestID,
		EventType:    eventType,
		ActionSource: source,
		Severity:     severity,
		Metadata:     metadata,
	})
}

// Close closes the underlying file, if any.
func (l *AuditLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func truncatePreview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit]) + "... [truncated]"
}

func stripMatchedText(findings []utils.ThreatFinding) []utils.ThreatFinding {
	if len(findings) == 0 {
		return nil
	}
	out := make([]utils.ThreatFinding, len(findings))
	for i, f := range findings {
		f.MatchedText = ""
		out[i] = f
	}
	return out
}

// fieldFindings keeps the findings that belong to the blocked field, so the
// offsets line up with the logged input.
func fieldFindings(findings []utils.ThreatFinding, field string) []utils.ThreatFinding {
	var out []utils.ThreatFinding
	for _, f := range findings {
		if f.Context == field {
			out = append(out, f)
		}
	}
	return out
}
