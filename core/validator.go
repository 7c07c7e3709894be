package core

import (
	"github.com/rs/zerolog"

	"github.com/SamuelRCrider/callbridge/utils"
)

// Record keys of a call log.
const (
	FieldCallerName   = "caller_name"
	FieldCallerPhone  = "caller_phone"
	FieldTranscript   = "transcript"
	FieldCallSummary  = "call_summary"
	FieldCallOutcome  = "call_outcome"
	FieldCallDuration = "call_duration"
)

// Lead detail keys collected alongside a call.
const (
	FieldPropertyCounty = "property_county"
	FieldPropertyState  = "property_state"
	FieldAcreage        = "acreage"
	FieldLeadSource     = "lead_source"
)

// MessageValidated is returned with every accepted record.
const MessageValidated = "Input validated successfully"

// Screener decides whether a single field may be admitted.
type Screener interface {
	IsSafe(text, context string) (bool, []utils.ThreatFinding)
}

// FieldSpec describes one screened text field of a record
type FieldSpec struct {
	// Record key, also used as the scan context label
	Name string

	// Maximum length in characters after sanitizing
	MaxLength int

	// Message returned when the field is blocked
	RejectMessage string
}

// CallRecordFields are the screened fields of a call record, in the order
// they are checked.
var CallRecordFields = []FieldSpec{
	{Name: FieldCallerName, MaxLength: 100, RejectMessage: "Caller name contains suspicious content"},
	{Name: FieldTranscript, MaxLength: 5000, RejectMessage: "Transcript contains potential prompt injection"},
	{Name: FieldCallSummary, MaxLength: 500, RejectMessage: "Call summary contains suspicious content"},
	{Name: FieldCallOutcome, MaxLength: 50, RejectMessage: "Call outcome contains suspicious content"},
}

// LeadDetailFields are the caller-supplied lead details stored next to a
// call, screened like the record fields.
var LeadDetailFields = []FieldSpec{
	{Name: FieldPropertyCounty, MaxLength: 100, RejectMessage: "Property county contains suspicious content"},
	{Name: FieldPropertyState, MaxLength: 50, RejectMessage: "Property state contains suspicious content"},
	{Name: FieldAcreage, MaxLength: 50, RejectMessage: "Acreage contains suspicious content"},
	{Name: FieldLeadSource, MaxLength: 100, RejectMessage: "Lead source contains suspicious content"},
}

// ValidationResult is the outcome of validating one record
type ValidationResult struct {
	// OK is false when a field was blocked
	OK bool `json:"ok"`

	// Human readable outcome
	Message string `json:"message"`

	// Field names the blocked field, empty on success
	Field string `json:"field,omitempty"`

	// Record holds the six sanitized keys on success and is empty otherwise
	Record map[string]any `json:"record"`

	// Findings from every field that was scanned
	Findings []utils.ThreatFinding `json:"findings,omitempty"`
}

// Validator screens and sanitizes call records
type Validator struct {
	screener Screener
	fields   []FieldSpec
	logger   zerolog.Logger
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithLogger logs medium findings at warn level and low findings at debug.
func WithLogger(logger zerolog.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger.With().Str("component", "validator").Logger()
	}
}

// WithFields replaces the screened field list.
func WithFields(fields []FieldSpec) ValidatorOption {
	return func(v *Validator) {
		v.fields = fields
	}
}

// NewValidator creates a validator that admits fields through screener.
func NewValidator(screener Screener, opts ...ValidatorOption) *Validator {
	v := &Validator{
		screener: screener,
		fields:   CallRecordFields,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ForFields returns a validator with the same screener and logger that
// screens fields instead.
func (v *Validator) ForFields(fields []FieldSpec) *Validator {
	return NewValidator(v.screener, WithFields(fields), func(c *Validator) { c.logger = v.logger })
}

// ValidateCallData screens each text field in order and stops at the first
// blocked one; fields after it are never scanned. Accepted fields are
// sanitized. caller_phone and call_duration are copied through untouched.
func (v *Validator) ValidateCallData(data map[string]any) ValidationResult {
	record := make(map[string]any, len(v.fields)+2)
	var all []utils.ThreatFinding

	for _, field := range v.fields {
		text := textValue(data[field.Name])

		allowed, findings := v.screener.IsSafe(text, field.Name)
		all = append(all, findings...)
		if !allowed {
			v.logger.Warn().
				Str("field", field.Name).
				Int("findings", len(findings)).
				Msg("field blocked")
			return ValidationResult{
				OK:       false,
				Message:  field.RejectMessage,
				Field:    field.Name,
				Record:   map[string]any{},
				Findings: all,
			}
		}
		v.logAdvisory(field.Name, findings)

		record[field.Name] = Sanitize(text, field.MaxLength)
	}

	record[FieldCallerPhone] = valueOr(data, FieldCallerPhone, "")
	record[FieldCallDuration] = valueOr(data, FieldCallDuration, 0)

	return ValidationResult{
		OK:       true,
		Message:  MessageValidated,
		Record:   record,
		Findings: all,
	}
}

func (v *Validator) logAdvisory(field string, findings []utils.ThreatFinding) {
	for _, f := range findings {
		switch f.Severity {
		case utils.SeverityMedium:
			v.logger.Warn().Str("field", field).Str("rule", f.RuleID).Str("match", f.MatchedText).Msg(f.Description)
		case utils.SeverityLow:
			v.logger.Debug().Str("field", field).Str("rule", f.RuleID).Msg(f.Description)
		}
	}
}

// Text returns the sanitized string stored under key, or "".
func (r ValidationResult) Text(key string) string {
	return textValue(r.Record[key])
}

// CallRecord is a typed view of an accepted record
type CallRecord struct {
	CallerName   string
	CallerPhone  string
	Transcript   string
	CallSummary  string
	CallOutcome  string
	CallDuration int
}

// CallRecord converts the sanitized record into a CallRecord. Values of an
// unexpected type read as their zero value.
func (r ValidationResult) CallRecord() CallRecord {
	return CallRecord{
		CallerName:   textValue(r.Record[FieldCallerName]),
		CallerPhone:  textValue(r.Record[FieldCallerPhone]),
		Transcript:   textValue(r.Record[FieldTranscript]),
		CallSummary:  textValue(r.Record[FieldCallSummary]),
		CallOutcome:  textValue(r.Record[FieldCallOutcome]),
		CallDuration: intValue(r.Record[FieldCallDuration]),
	}
}

// textValue treats anything that is not a string as empty.
func textValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return 0
}

func valueOr(data map[string]any, key string, fallback any) any {
	if v, ok := data[key]; ok {
		return v
	}
	return fallback
}
