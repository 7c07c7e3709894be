package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/SamuelRCrider/callbridge/crm"
	"github.com/SamuelRCrider/callbridge/extract"
	"github.com/SamuelRCrider/callbridge/intake"
)

const maxBodyBytes = 4 << 20

// EventCallCompleted is the generic webhook type that carries a call
const EventCallCompleted = "call_completed"

type callResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	EventID   string `json:"event_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleElevenLabs(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return
	}

	call, err := extract.Parse(body)
	switch {
	case errors.Is(err, extract.ErrUnsupportedEvent):
		s.logger.Debug().Err(err).Msg("Ignoring webhook event")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "message": "Event type not handled"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON payload"))
		return
	}

	s.logCall(w, r, call)
}

func (s *Server) handleCallCompleted(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}
	s.logCall(w, r, extract.FromMap(payload))
}

func (s *Server) handleGeneric(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeObject(w, r)
	if !ok {
		return
	}

	eventType, _ := payload["event_type"].(string)
	if eventType != EventCallCompleted {
		s.logger.Info().Str("event_type", eventType).Msg("Generic webhook received")
		writeJSON(w, http.StatusOK, map[string]string{"status": "received", "message": "Webhook processed"})
		return
	}

	data, ok := payload["data"].(map[string]any)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("Missing call data"))
		return
	}
	s.logCall(w, r, extract.FromMap(data))
}

func (s *Server) logCall(w http.ResponseWriter, r *http.Request, call *extract.Call) {
	requestID := GetRequestID(r.Context())
	if s.deps.Processor == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("API key not configured"))
		return
	}

	res, err := s.deps.Processor.LogCall(r.Context(), intake.Request{
		Call:      call,
		Source:    intake.SourceWebhook,
		RequestID: requestID,
	})
	if err != nil {
		writeJSON(w, http.StatusBadGateway, callResponse{
			Status:    "error",
			Message:   crm.Message(err),
			RequestID: requestID,
		})
		return
	}

	switch res.Status {
	case intake.StatusLogged:
		writeJSON(w, http.StatusOK, callResponse{
			Status:    "success",
			Message:   "Contact created in FollowUp Boss",
			EventID:   res.EventID,
			RequestID: requestID,
		})
	case intake.StatusDuplicate:
		writeJSON(w, http.StatusOK, callResponse{
			Status:    "success",
			Message:   res.Message,
			EventID:   res.EventID,
			Duplicate: true,
			RequestID: requestID,
		})
	case intake.StatusBlocked:
		writeJSON(w, http.StatusUnprocessableEntity, callResponse{
			Status:    "rejected",
			Message:   res.Message,
			Field:     res.Field,
			RequestID: requestID,
		})
	default:
		writeJSON(w, http.StatusBadRequest, callResponse{
			Status:    "error",
			Message:   res.Message,
			RequestID: requestID,
		})
	}
}

type personRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Phone  string   `json:"phone"`
	Source string   `json:"source"`
	Tags   []string `json:"tags"`
}

func (p personRequest) fields() crm.Fields {
	f := crm.Fields{"name": p.Name, "source": p.Source}
	if email := strings.TrimSpace(p.Email); email != "" {
		f["emails"] = []map[string]any{{"value": email}}
	}
	if phone := strings.TrimSpace(p.Phone); phone != "" {
		f["phones"] = []map[string]any{{"value": phone}}
	}
	if len(p.Tags) > 0 {
		f["tags"] = p.Tags
	}
	return f
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRM(w) {
		return
	}
	var req personRequest
	if !decodeInto(w, r, &req) {
		return
	}

	person, err := s.deps.CRM.CreatePerson(r.Context(), req.fields())
	if err != nil {
		s.writeCRMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRM(w) {
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 25)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("offset must be an integer"))
		return
	}

	filters := map[string]string{}
	for _, key := range []string{"name", "email", "phone", "source"} {
		if v := q.Get(key); v != "" {
			filters[key] = v
		}
	}

	people, err := s.deps.CRM.ListPeople(r.Context(), crm.ListOptions{Limit: limit, Offset: offset, Filters: filters})
	if err != nil {
		s.writeCRMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

type eventRequest struct {
	Type    string        `json:"type"`
	Person  personRequest `json:"person"`
	Note    string        `json:"note"`
	Message string        `json:"message"`
	Source  string        `json:"source"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRM(w) {
		return
	}
	var req eventRequest
	if !decodeInto(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = "other"
	}

	event, err := s.deps.CRM.CreateEvent(r.Context(), crm.EventInput{
		Type:    req.Type,
		Source:  req.Source,
		Note:    req.Note,
		Message: req.Message,
		Person:  req.Person.fields(),
	})
	if err != nil {
		s.writeCRMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type noteRequest struct {
	PersonID string `json:"person_id"`
	Body     string `json:"body"`
	Subject  string `json:"subject"`
	IsHTML   bool   `json:"is_html"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	if !s.requireCRM(w) {
		return
	}
	var req noteRequest
	if !decodeInto(w, r, &req) {
		return
	}

	note, err := s.deps.CRM.CreateNote(r.Context(), crm.NoteInput{
		PersonID: req.PersonID,
		Body:     req.Body,
		Subject:  req.Subject,
		IsHTML:   req.IsHTML,
	})
	if err != nil {
		s.writeCRMError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) requireCRM(w http.ResponseWriter) bool {
	if s.deps.CRM == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("API key not configured"))
		return false
	}
	return true
}

func (s *Server) writeCRMError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, crm.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, crm.ErrNotFound):
		status = http.StatusNotFound
	default:
		crm.LogError(s.logger.With().Str("request_id", GetRequestID(r.Context())).Logger(), err, "CRM request failed")
	}
	writeJSON(w, status, errorBody(crm.Message(err)))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// decodeObject reads a JSON object with numbers kept as json.Number.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || payload == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON payload"))
		return nil, false
	}
	return payload, true
}

func decodeInto(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request body"))
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON payload"))
		return false
	}
	return true
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
