// Package mcptools exposes the Follow Up Boss client and the call intake
// pipeline as MCP tools.
package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/SamuelRCrider/callbridge/crm"
	"github.com/SamuelRCrider/callbridge/intake"
)

// DefaultServerName is reported to MCP clients during initialize
const DefaultServerName = "followup-boss-mcp"

// CRM is the subset of *crm.Client the tools use
type CRM interface {
	ListPeople(ctx context.Context, opts crm.ListOptions) (*crm.PeopleList, error)
	GetPerson(ctx context.Context, personID string) (*crm.Person, error)
	CreatePerson(ctx context.Context, data crm.Fields) (*crm.Person, error)
	UpdatePerson(ctx context.Context, personID string, data crm.Fields) (*crm.Person, error)
	DeletePerson(ctx context.Context, personID string) error
	ListNotes(ctx context.Context, opts crm.ListOptions, personID string) (*crm.NotesList, error)
	GetNote(ctx context.Context, noteID string) (*crm.Note, error)
	CreateNote(ctx context.Context, in crm.NoteInput) (*crm.Note, error)
	ListTasks(ctx context.Context, opts crm.ListOptions) (*crm.TasksList, error)
	CreateTask(ctx context.Context, in crm.TaskInput) (*crm.Task, error)
	UpdateTask(ctx context.Context, taskID string, in crm.TaskUpdate) (*crm.Task, error)
	CreateEvent(ctx context.Context, in crm.EventInput) (*crm.Event, error)
	CreateCall(ctx context.Context, in crm.CallInput) (*crm.Call, error)
}

// Deps are the collaborators behind the tools. A nil CRM makes every CRM
// tool report the missing API key; a nil Processor hides log_call.
type Deps struct {
	CRM       CRM
	Processor *intake.Processor
	Logger    zerolog.Logger
}

// NewServer builds the MCP server with every tool registered.
func NewServer(name, version string, deps Deps) *server.MCPServer {
	if name == "" {
		name = DefaultServerName
	}
	s := server.NewMCPServer(name, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(LoggingMiddleware(deps.Logger)),
		server.WithInstructions("Tools for managing Follow Up Boss contacts, notes, tasks and calls, and for logging completed AI phone calls."),
	)
	s.AddTools(Tools(deps)...)
	return s
}

// Tools returns the tool set for deps.
func Tools(deps Deps) []server.ServerTool {
	h := &handlers{crm: deps.CRM, processor: deps.Processor}

	tools := []server.ServerTool{
		{Tool: listPeopleTool(), Handler: h.requireCRM(h.listPeople)},
		{Tool: getPersonTool(), Handler: h.requireCRM(h.getPerson)},
		{Tool: createPersonTool(), Handler: h.requireCRM(h.createPerson)},
		{Tool: createEventTool(), Handler: h.requireCRM(h.createEvent)},
		{Tool: updatePersonTool(), Handler: h.requireCRM(h.updatePerson)},
		{Tool: deletePersonTool(), Handler: h.requireCRM(h.deletePerson)},
		{Tool: listNotesTool(), Handler: h.requireCRM(h.listNotes)},
		{Tool: getNoteTool(), Handler: h.requireCRM(h.getNote)},
		{Tool: createNoteTool(), Handler: h.requireCRM(h.createNote)},
		{Tool: listTasksTool(), Handler: h.requireCRM(h.listTasks)},
		{Tool: createTaskTool(), Handler: h.requireCRM(h.createTask)},
		{Tool: updateTaskTool(), Handler: h.requireCRM(h.updateTask)},
		{Tool: createCallTool(), Handler: h.requireCRM(h.createCall)},
	}
	if deps.Processor != nil {
		tools = append(tools, server.ServerTool{Tool: logCallTool(), Handler: h.logCall})
	}
	return tools
}

// ToolNames lists the registered tool names, in registration order.
func ToolNames(deps Deps) []string {
	tools := Tools(deps)
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Tool.Name)
	}
	return names
}

// DescribeTools returns name and description pairs for discovery endpoints.
func DescribeTools(deps Deps) []mcp.Tool {
	tools := Tools(deps)
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Tool)
	}
	return out
}
