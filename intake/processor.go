// Package intake runs a call record through screening, deduplication and
// delivery to the CRM.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SamuelRCrider/callbridge/core"
	"github.com/SamuelRCrider/callbridge/crm"
	"github.com/SamuelRCrider/callbridge/extract"
	"github.com/SamuelRCrider/callbridge/notify"
	"github.com/SamuelRCrider/callbridge/store"
	"github.com/SamuelRCrider/callbridge/utils"
)

// Status is the outcome of LogCall
type Status string

const (
	StatusLogged    Status = "logged"
	StatusBlocked   Status = "blocked"
	StatusDuplicate Status = "duplicate"
	StatusInvalid   Status = "invalid"
)

// Sources passed to LogCall
const (
	SourceWebhook = "webhook"
	SourceMCP     = "mcp"
	SourceBridge  = "bridge"
)

// EventCreator posts CRM events
type EventCreator interface {
	CreateEvent(ctx context.Context, in crm.EventInput) (*crm.Event, error)
}

// Ledger remembers processed conversations and blocked records. A
// conversation is claimed before delivery and recorded after it; a claim
// whose delivery failed is released.
type Ledger interface {
	ClaimCall(ctx context.Context, conversationID string) (bool, error)
	ReleaseCall(ctx context.Context, conversationID string) error
	LookupCall(ctx context.Context, conversationID string) (*store.CallEntry, error)
	RecordCall(ctx context.Context, entry store.CallEntry) (bool, error)
	RecordSecurityEvent(ctx context.Context, event store.SecurityEvent) (int64, error)
}

// Notifier announces leads and security alerts
type Notifier interface {
	NotifyLead(ctx context.Context, lead notify.Lead) error
	NotifySecurity(ctx context.Context, alert notify.Alert) error
}

// Request is one call to log
type Request struct {
	Call      *extract.Call
	Source    string
	RequestID string
	// Strict rejects a missing or malformed phone and a too-short name
	// instead of dropping or defaulting them.
	Strict bool
}

// Result describes what LogCall did
type Result struct {
	Status         Status                `json:"status"`
	Message        string                `json:"message"`
	RequestID      string                `json:"request_id"`
	ConversationID string                `json:"conversation_id,omitempty"`
	EventID        string                `json:"event_id,omitempty"`
	Field          string                `json:"field,omitempty"`
	Findings       []utils.ThreatFinding `json:"-"`
}

// Options holds the CRM event defaults
type Options struct {
	EventType    string
	EventSource  string
	PersonSource string
	Tags         []string
}

// Processor is safe for concurrent use
type Processor struct {
	validator *core.Validator
	details   *core.Validator
	crm       EventCreator
	ledger    Ledger
	notifier  Notifier
	audit     *core.AuditLogger
	assigner  *extract.Assigner
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Processor
type Option func(*Processor)

func WithLedger(l Ledger) Option {
	return func(p *Processor) { p.ledger = l }
}

func WithNotifier(n Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

func WithAudit(a *core.AuditLogger) Option {
	return func(p *Processor) { p.audit = a }
}

func WithAssigner(a *extract.Assigner) Option {
	return func(p *Processor) { p.assigner = a }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) { p.logger = logger.With().Str("component", "intake").Logger() }
}

func WithOptions(opts Options) Option {
	return func(p *Processor) { p.opts = opts }
}

// NewProcessor wires a processor. The ledger, notifier, audit log and
// assigner are optional.
func NewProcessor(validator *core.Validator, events EventCreator, opts ...Option) *Processor {
	p := &Processor{
		validator: validator,
		details:   validator.ForFields(core.LeadDetailFields),
		crm:       events,
		opts: Options{
			EventType:    "call",
			EventSource:  "ElevenLabs",
			PersonSource: extract.SourceAICall,
		},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LogCall screens the call and its lead details and, if admissible and not
// seen before, creates a CRM event for it. Blocked, duplicate and invalid
// calls are reported in the Result; the error is reserved for CRM failures.
// req.Call is not modified.
func (p *Processor) LogCall(ctx context.Context, req Request) (Result, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	call := &extract.Call{}
	if req.Call != nil {
		copied := *req.Call
		call = &copied
	}
	res := Result{RequestID: req.RequestID, ConversationID: call.ConversationID}
	log := p.logger.With().
		Str("request_id", req.RequestID).
		Str("source", req.Source).
		Str("conversation_id", call.ConversationID).
		Logger()

	call.Duration = ClampDuration(call.Duration)
	call.CallerPhone = strings.TrimSpace(call.CallerPhone)
	if !ValidPhone(call.CallerPhone) {
		if req.Strict {
			return p.invalid(res, "Invalid phone number format"), nil
		}
		if call.CallerPhone != "" {
			log.Warn().Msg("Dropping malformed caller phone")
		}
		call.CallerPhone = ""
	}
	if req.Strict && !ValidName(call.CallerName) {
		return p.invalid(res, "Invalid caller name"), nil
	}

	input := call.Record()
	for k, v := range call.LeadDetails() {
		input[k] = v
	}
	verdict := p.validator.ValidateCallData(input)
	if verdict.OK {
		details := p.details.ValidateCallData(input)
		findings := append(verdict.Findings[:len(verdict.Findings):len(verdict.Findings)], details.Findings...)
		if details.OK {
			call.County = details.Text(core.FieldPropertyCounty)
			call.State = details.Text(core.FieldPropertyState)
			call.Acreage = details.Text(core.FieldAcreage)
			call.Source = details.Text(core.FieldLeadSource)
			verdict.Findings = findings
		} else {
			verdict = details
			verdict.Findings = findings
		}
	}
	metadata := map[string]string{"conversation_id": call.ConversationID}

	if !verdict.OK {
		blockedText, _ := input[verdict.Field].(string)
		_ = p.audit.LogScreening(req.RequestID, req.Source, verdict, blockedText, metadata)
		p.recordBlocked(ctx, log, req, call, verdict)

		res.Status = StatusBlocked
		res.Message = verdict.Message
		res.Field = verdict.Field
		res.Findings = verdict.Findings
		return res, nil
	}
	res.Findings = verdict.Findings

	claimed, dup := p.claim(ctx, log, call.ConversationID)
	if dup != nil {
		_ = p.audit.LogSecurityEvent(req.RequestID, core.EventCallDuplicate, core.SeverityInfo, req.Source, metadata)
		res.Status = StatusDuplicate
		res.Message = "Call already processed"
		res.EventID = dup.EventID
		return res, nil
	}

	rec := verdict.CallRecord()
	rec.CallerName = nameOrUnknown(rec.CallerName)
	if call.Source == "" {
		call.Source = p.opts.PersonSource
	}
	if p.assigner != nil {
		p.assigner.Apply(call)
	}

	event, err := p.crm.CreateEvent(ctx, crm.EventInput{
		Type:   p.opts.EventType,
		Source: p.opts.EventSource,
		Note:   FormatNote(rec, call, p.now()),
		Person: p.person(rec, call),
	})
	if err != nil {
		crm.LogError(log, err, "Failed to create CRM event")
		metadata["error"] = crm.Message(err)
		_ = p.audit.LogSecurityEvent(req.RequestID, core.EventCRMError, core.SeverityError, req.Source, metadata)
		if claimed {
			if err := p.ledger.ReleaseCall(context.WithoutCancel(ctx), call.ConversationID); err != nil {
				log.Error().Err(err).Msg("Failed to release ledger claim")
			}
		}
		return res, fmt.Errorf("failed to create crm event: %w", err)
	}
	res.EventID = string(event.ID)

	_ = p.audit.LogScreening(req.RequestID, req.Source, verdict, "", metadata)

	if p.ledger != nil && call.ConversationID != "" {
		if _, err := p.ledger.RecordCall(ctx, store.CallEntry{
			ConversationID: call.ConversationID,
			EventID:        res.EventID,
			CallerName:     rec.CallerName,
			Outcome:        rec.CallOutcome,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to record call in ledger")
		}
	}

	if p.notifier != nil {
		lead := notify.Lead{
			ConversationID: call.ConversationID,
			EventID:        res.EventID,
			Name:           rec.CallerName,
			Phone:          rec.CallerPhone,
			Outcome:        rec.CallOutcome,
			Duration:       rec.CallDuration,
			County:         call.County,
			State:          call.State,
			Acreage:        call.Acreage,
			Source:         call.Source,
			Agent:          call.Agent,
			Summary:        rec.CallSummary,
		}
		if err := p.notifier.NotifyLead(ctx, lead); err != nil {
			log.Warn().Err(err).Msg("Lead notification failed")
		}
	}

	log.Info().Str("event_id", res.EventID).Msg("Call logged")
	res.Status = StatusLogged
	res.Message = "Call logged successfully"
	return res, nil
}

func (p *Processor) invalid(res Result, msg string) Result {
	p.logger.Warn().Str("request_id", res.RequestID).Msg(msg)
	res.Status = StatusInvalid
	res.Message = msg
	return res
}

// claim reserves the conversation in the ledger. A non-nil entry means
// another delivery already claimed or recorded it. Ledger errors are logged
// and the call proceeds unclaimed.
func (p *Processor) claim(ctx context.Context, log zerolog.Logger, conversationID string) (bool, *store.CallEntry) {
	if p.ledger == nil || conversationID == "" {
		return false, nil
	}
	claimed, err := p.ledger.ClaimCall(ctx, conversationID)
	if err != nil {
		log.Error().Err(err).Msg("Ledger claim failed")
		return false, nil
	}
	if claimed {
		return true, nil
	}

	entry, err := p.ledger.LookupCall(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("Ledger lookup failed")
		}
		entry = &store.CallEntry{ConversationID: conversationID}
	}
	return false, entry
}

func (p *Processor) recordBlocked(ctx context.Context, log zerolog.Logger, req Request, call *extract.Call, verdict core.ValidationResult) {
	findings := verdict.Findings
	if p.ledger != nil {
		if _, err := p.ledger.RecordSecurityEvent(ctx, store.SecurityEvent{
			ConversationID: call.ConversationID,
			Field:          verdict.Field,
			Message:        verdict.Message,
			Findings:       findings,
		}); err != nil {
			log.Error().Err(err).Msg("Failed to record security event")
		}
	}
	if p.notifier != nil {
		key := call.CallerPhone
		if key == "" {
			key = call.ConversationID
		}
		if err := p.notifier.NotifySecurity(ctx, notify.Alert{
			ConversationID: call.ConversationID,
			CallerKey:      key,
			Field:          verdict.Field,
			Message:        verdict.Message,
			Source:         req.Source,
			Findings:       findings,
		}); err != nil {
			log.Warn().Err(err).Msg("Security alert failed")
		}
	}
}

func (p *Processor) person(rec core.CallRecord, call *extract.Call) crm.Fields {
	person := crm.Fields{
		"name":   rec.CallerName,
		"source": call.Source,
	}
	if rec.CallerPhone != "" {
		person["phones"] = []map[string]any{{"value": rec.CallerPhone, "type": "mobile"}}
	}
	if call.Agent != "" {
		person["assignedTo"] = call.Agent
	}
	if len(p.opts.Tags) > 0 {
		person["tags"] = p.opts.Tags
	}
	return person
}
