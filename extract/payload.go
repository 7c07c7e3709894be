// Package extract turns voice-agent webhook payloads into call records.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/SamuelRCrider/callbridge/core"
)

// EventPostCallTranscription is the ElevenLabs webhook type carrying a transcript
const EventPostCallTranscription = "post_call_transcription"

var (
	// ErrInvalidPayload means the body is not a JSON object
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrUnsupportedEvent means the webhook type carries no call to log
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
)

// Turn is one message of a conversation
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Call is a normalized inbound call
type Call struct {
	ConversationID string
	CallerName     string
	CallerPhone    string
	Transcript     string
	Turns          []Turn
	Summary        string
	Outcome        string
	Duration       int
	Timestamp      string

	County  string
	State   string
	Acreage string
	Source  string
	Agent   string
}

// Record returns the screened view of the call.
func (c *Call) Record() map[string]any {
	return map[string]any{
		core.FieldCallerName:   c.CallerName,
		core.FieldCallerPhone:  c.CallerPhone,
		core.FieldTranscript:   c.Transcript,
		core.FieldCallSummary:  c.Summary,
		core.FieldCallOutcome:  c.Outcome,
		core.FieldCallDuration: c.Duration,
	}
}

// LeadDetails returns the screened view of the property and source fields.
func (c *Call) LeadDetails() map[string]any {
	return map[string]any{
		core.FieldPropertyCounty: c.County,
		core.FieldPropertyState:  c.State,
		core.FieldAcreage:        c.Acreage,
		core.FieldLeadSource:     c.Source,
	}
}

type elevenLabsEnvelope struct {
	Type           string          `json:"type"`
	EventTimestamp json.Number     `json:"event_timestamp"`
	Data           *elevenLabsData `json:"data"`
}

type elevenLabsData struct {
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	Transcript     []Turn `json:"transcript"`
	Metadata       struct {
		CallDurationSecs json.Number `json:"call_duration_secs"`
		StartTimeUnix    json.Number `json:"start_time_unix_secs"`
		PhoneCall        struct {
			ExternalNumber string `json:"external_number"`
		} `json:"phone_call"`
	} `json:"metadata"`
	Analysis struct {
		CallSuccessful        string                     `json:"call_successful"`
		TranscriptSummary     string                     `json:"transcript_summary"`
		DataCollectionResults map[string]collectedValue `json:"data_collection_results"`
	} `json:"analysis"`
	ClientData struct {
		DynamicVariables map[string]any `json:"dynamic_variables"`
	} `json:"conversation_initiation_client_data"`
}

type collectedValue struct {
	Value any `json:"value"`
}

// Parse decodes either the ElevenLabs post-call payload or the flat bridge
// form, then fills missing fields from the transcript.
func Parse(raw []byte) (*Call, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, ErrInvalidPayload
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	var call *Call
	if _, ok := probe["data"]; ok {
		var env elevenLabsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if env.Type != "" && env.Type != EventPostCallTranscription {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, env.Type)
		}
		if env.Data == nil {
			return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
		}
		call = fromElevenLabs(env)
	} else {
		var flat map[string]any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&flat); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		call = FromMap(flat)
		return call, nil
	}

	fillFromTurns(call)
	return call, nil
}

func fromElevenLabs(env elevenLabsEnvelope) *Call {
	d := env.Data
	call := &Call{
		ConversationID: d.ConversationID,
		Turns:          d.Transcript,
		Transcript:     FormatTurns(d.Transcript),
		Summary:        d.Analysis.TranscriptSummary,
		Outcome:        outcomeFromAnalysis(d.Analysis.CallSuccessful),
		Duration:       toInt(d.Metadata.CallDurationSecs),
		Timestamp:      string(env.EventTimestamp),
		CallerPhone:    d.Metadata.PhoneCall.ExternalNumber,
	}

	if call.CallerPhone == "" {
		call.CallerPhone = stringValue(d.ClientData.DynamicVariables["system__caller_id"])
	}

	collected := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := d.Analysis.DataCollectionResults[k]; ok {
				if s := stringValue(v.Value); s != "" {
					return s
				}
			}
		}
		return ""
	}
	if v := collected("caller_name", "name"); v != "" {
		call.CallerName = v
	}
	if v := collected("caller_phone", "phone"); v != "" {
		call.CallerPhone = v
	}
	call.County = collected("property_county", "county")
	call.State = collected("property_state", "state")
	call.Acreage = collected("acreage", "property_acreage")
	call.Source = collected("lead_source", "source")

	return call
}

func outcomeFromAnalysis(successful string) string {
	switch strings.ToLower(strings.TrimSpace(successful)) {
	case "", "success":
		return "completed"
	case "failure":
		return "unsuccessful"
	default:
		return successful
	}
}

// FromMap reads the flat bridge form. Transcript may be a string or a list of
// turns.
func FromMap(m map[string]any) *Call {
	call := &Call{
		ConversationID: firstString(m, "conversation_id", "call_id"),
		CallerName:     firstString(m, "caller_name", "name"),
		CallerPhone:    firstString(m, "caller_phone", "phone"),
		Summary:        firstString(m, "call_summary", "summary"),
		Outcome:        firstString(m, "call_outcome", "outcome"),
		Duration:       toInt(m["call_duration"]),
		Timestamp:      firstString(m, "timestamp"),
		County:         firstString(m, "property_county"),
		State:          firstString(m, "property_state"),
		Acreage:        firstString(m, "acreage"),
		Source:         firstString(m, "lead_source", "source"),
	}

	switch t := m["transcript"].(type) {
	case string:
		call.Transcript = t
	case []any:
		for _, item := range t {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			call.Turns = append(call.Turns, Turn{
				Role:    stringValue(entry["role"]),
				Message: stringValue(entry["message"]),
			})
		}
		call.Transcript = FormatTurns(call.Turns)
	}

	fillFromTurns(call)
	return call
}

// FormatTurns renders turns as "Role: message" lines.
func FormatTurns(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		msg := strings.TrimSpace(t.Message)
		if msg == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(roleLabel(t.Role))
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

func roleLabel(role string) string {
	switch strings.ToLower(role) {
	case "user", "caller":
		return "Caller"
	case "agent", "assistant":
		return "Agent"
	case "":
		return "Unknown"
	default:
		first, size := utf8.DecodeRuneInString(role)
		return string(unicode.ToUpper(first)) + strings.ToLower(role[size:])
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringValue(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func toInt(v any) int {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
		if f, err := val.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return 0
}
