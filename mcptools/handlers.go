package mcptools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/SamuelRCrider/callbridge/crm"
	"github.com/SamuelRCrider/callbridge/extract"
	"github.com/SamuelRCrider/callbridge/intake"
)

type handlers struct {
	crm       CRM
	processor *intake.Processor
}

func (h *handlers) requireCRM(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if h.crm == nil {
			return toolError(crm.ErrMissingAPIKey), nil
		}
		return next(ctx, req)
	}
}

// toolError reports CRM and validation errors by message and hides anything
// else.
func toolError(err error) *mcp.CallToolResult {
	var crmErr *crm.Error
	switch {
	case errors.As(err, &crmErr):
		return mcp.NewToolResultError("Error: " + crmErr.Message)
	case errors.Is(err, crm.ErrMissingAPIKey), errors.Is(err, errArgument):
		return mcp.NewToolResultError("Error: " + err.Error())
	default:
		return mcp.NewToolResultError("An unexpected error occurred")
	}
}

var errArgument = errors.New("invalid argument")

func requireArg(req mcp.CallToolRequest, key string) (string, error) {
	v, err := req.RequireString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errArgument, err.Error())
	}
	return v, nil
}

// stringArg reads a string argument, accepting numbers as IDs are often
// sent unquoted.
func stringArg(req mcp.CallToolRequest, key string) string {
	switch v := req.GetArguments()[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func idArg(req mcp.CallToolRequest, key string) (string, error) {
	if _, ok := req.GetArguments()[key]; !ok {
		return "", fmt.Errorf("%w: required argument %q not found", errArgument, key)
	}
	return stringArg(req, key), nil
}

func listOptions(req mcp.CallToolRequest, filterKeys map[string]string) crm.ListOptions {
	opts := crm.ListOptions{
		Limit:   req.GetInt("limit", 25),
		Offset:  req.GetInt("offset", 0),
		Filters: map[string]string{},
	}
	for arg, param := range filterKeys {
		if v := stringArg(req, arg); v != "" {
			opts.Filters[param] = v
		}
	}
	return opts
}

func personFields(req mcp.CallToolRequest) crm.Fields {
	fields := crm.Fields{
		"name":       stringArg(req, "name"),
		"source":     stringArg(req, "source"),
		"stage":      stringArg(req, "stage"),
		"assignedTo": stringArg(req, "assigned_to"),
	}
	if email := stringArg(req, "email"); email != "" {
		fields["emails"] = []map[string]any{{"value": email}}
	}
	if phone := stringArg(req, "phone"); phone != "" {
		fields["phones"] = []map[string]any{{"value": phone}}
	}
	return fields
}

func (h *handlers) listPeople(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.crm.ListPeople(ctx, listOptions(req, map[string]string{
		"email": "email", "phone": "phone", "name": "name", "source": "source",
	}))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatPeople(list.People)), nil
}

func (h *handlers) getPerson(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "person_id")
	if err != nil {
		return toolError(err), nil
	}
	person, err := h.crm.GetPerson(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatPerson(person)), nil
}

func (h *handlers) createPerson(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	person, err := h.crm.CreatePerson(ctx, personFields(req))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully created contact:\nName: %s\nID: %s\n", orUnknown(person.Name), person.ID)), nil
}

func (h *handlers) createEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	person, _ := req.GetArguments()["person"].(map[string]any)
	fields := crm.Fields{}
	for k, v := range person {
		switch k {
		case "email":
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				fields["emails"] = []map[string]any{{"value": strings.TrimSpace(s)}}
			}
		case "phone":
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				fields["phones"] = []map[string]any{{"value": strings.TrimSpace(s)}}
			}
		default:
			fields[k] = v
		}
	}

	event, err := h.crm.CreateEvent(ctx, crm.EventInput{
		Type:   stringArg(req, "type"),
		Source: stringArg(req, "source"),
		Note:   stringArg(req, "note"),
		Person: fields,
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully created event:\nType: %s\nID: %s\n", orUnknown(event.Type), event.ID)), nil
}

func (h *handlers) updatePerson(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "person_id")
	if err != nil {
		return toolError(err), nil
	}
	person, err := h.crm.UpdatePerson(ctx, id, personFields(req))
	if err != nil {
		return toolError(err), nil
	}

	text := fmt.Sprintf("Successfully updated contact ID: %s\n", id)
	if person != nil && person.Name != "" {
		text += fmt.Sprintf("Name: %s\n", person.Name)
	}
	return mcp.NewToolResultText(text), nil
}

func (h *handlers) deletePerson(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "person_id")
	if err != nil {
		return toolError(err), nil
	}
	if err := h.crm.DeletePerson(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Successfully deleted contact with ID: " + id), nil
}

func (h *handlers) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.crm.ListNotes(ctx, listOptions(req, nil), stringArg(req, "person_id"))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatNotes(list.Notes)), nil
}

func (h *handlers) getNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "note_id")
	if err != nil {
		return toolError(err), nil
	}
	note, err := h.crm.GetNote(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatNote(note)), nil
}

func (h *handlers) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	personID, err := idArg(req, "person_id")
	if err != nil {
		return toolError(err), nil
	}
	body, err := requireArg(req, "body")
	if err != nil {
		return toolError(err), nil
	}

	note, err := h.crm.CreateNote(ctx, crm.NoteInput{
		PersonID: personID,
		Body:     body,
		IsHTML:   req.GetBool("is_html", false),
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully created note:\nID: %s\nPerson ID: %s\n", note.ID, personID)), nil
}

func (h *handlers) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := listOptions(req, map[string]string{"person_id": "personId", "assigned_to": "assignedTo"})
	if _, ok := req.GetArguments()["completed"]; ok {
		opts.Filters["completed"] = strconv.FormatBool(req.GetBool("completed", false))
	}
	list, err := h.crm.ListTasks(ctx, opts)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(formatTasks(list.Tasks)), nil
}

func (h *handlers) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc, err := requireArg(req, "description")
	if err != nil {
		return toolError(err), nil
	}
	task, err := h.crm.CreateTask(ctx, crm.TaskInput{
		Description: desc,
		PersonID:    stringArg(req, "person_id"),
		DueDate:     stringArg(req, "due_date"),
		AssignedTo:  stringArg(req, "assigned_to"),
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully created task:\nDescription: %s\nID: %s\n", orUnknown(task.Description), task.ID)), nil
}

func (h *handlers) updateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "task_id")
	if err != nil {
		return toolError(err), nil
	}

	args := req.GetArguments()
	var update crm.TaskUpdate
	optional := func(key string) *string {
		if _, ok := args[key]; !ok {
			return nil
		}
		v := stringArg(req, key)
		return &v
	}
	update.Description = optional("description")
	update.DueDate = optional("due_date")
	update.AssignedTo = optional("assigned_to")
	if _, ok := args["completed"]; ok {
		done := req.GetBool("completed", false)
		update.Completed = &done
	}

	task, err := h.crm.UpdateTask(ctx, id, update)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Successfully updated task:\nDescription: %s\nID: %s\nCompleted: %s\n",
		orUnknown(task.Description), task.ID, yesNo(task.Completed))), nil
}

func (h *handlers) createCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	personID, err := idArg(req, "person_id")
	if err != nil {
		return toolError(err), nil
	}
	outcome := stringArg(req, "outcome")

	call, err := h.crm.CreateCall(ctx, crm.CallInput{
		PersonID: personID,
		Outcome:  outcome,
		Note:     stringArg(req, "note"),
		Duration: req.GetInt("duration", 0),
		CallTime: stringArg(req, "call_time"),
	})
	if err != nil {
		return toolError(err), nil
	}

	text := fmt.Sprintf("Successfully logged call:\nID: %s\nPerson ID: %s\n", call.ID, personID)
	if outcome != "" {
		text += "Outcome: " + outcome + "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (h *handlers) logCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	call := &extract.Call{
		ConversationID: stringArg(req, "conversation_id"),
		CallerName:     stringArg(req, "caller_name"),
		CallerPhone:    stringArg(req, "caller_phone"),
		Transcript:     stringArg(req, "transcript"),
		Summary:        stringArg(req, "call_summary"),
		Outcome:        stringArg(req, "call_outcome"),
		Duration:       req.GetInt("call_duration", 0),
		County:         stringArg(req, "property_county"),
		State:          extract.NormalizeState(stringArg(req, "property_state")),
		Acreage:        stringArg(req, "acreage"),
	}

	res, err := h.processor.LogCall(ctx, intake.Request{Call: call, Source: intake.SourceMCP, Strict: true})
	if err != nil {
		return mcp.NewToolResultError("❌ Failed to log call - please try again"), nil
	}

	switch res.Status {
	case intake.StatusLogged:
		return mcp.NewToolResultText(fmt.Sprintf("✅ Call logged successfully (Event ID: %s)", orUnknown(res.EventID))), nil
	case intake.StatusDuplicate:
		return mcp.NewToolResultText(fmt.Sprintf("Call already logged (Event ID: %s)", orUnknown(res.EventID))), nil
	default:
		return mcp.NewToolResultError("❌ " + res.Message), nil
	}
}
