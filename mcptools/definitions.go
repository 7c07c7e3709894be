package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/SamuelRCrider/callbridge/intake"
)

func pagingOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("limit", mcp.Description("Number of results to return (max 100)"), mcp.Min(1), mcp.Max(100), mcp.DefaultNumber(25)),
		mcp.WithNumber("offset", mcp.Description("Number of results to skip"), mcp.Min(0), mcp.DefaultNumber(0)),
	}
}

func listPeopleTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("List contacts from FollowUp Boss with optional filters"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("email", mcp.Description("Filter by email address")),
		mcp.WithString("phone", mcp.Description("Filter by phone number")),
		mcp.WithString("name", mcp.Description("Filter by name")),
		mcp.WithString("source", mcp.Description("Filter by lead source")),
	}, pagingOptions()...)
	return mcp.NewTool("list_people", opts...)
}

func getPersonTool() mcp.Tool {
	return mcp.NewTool("get_person",
		mcp.WithDescription("Get detailed information about a specific contact"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("person_id", mcp.Required(), mcp.Description("The ID of the person to retrieve")),
	)
}

func createPersonTool() mcp.Tool {
	return mcp.NewTool("create_person",
		mcp.WithDescription("Create a new contact in FollowUp Boss"),
		mcp.WithString("name", mcp.Description("Full name of the contact")),
		mcp.WithString("email", mcp.Description("Email address")),
		mcp.WithString("phone", mcp.Description("Phone number")),
		mcp.WithString("source", mcp.Description("Lead source")),
		mcp.WithString("stage", mcp.Description("Lead stage")),
		mcp.WithString("assigned_to", mcp.Description("Agent to assign the contact to")),
	)
}

func createEventTool() mcp.Tool {
	return mcp.NewTool("create_event",
		mcp.WithDescription("Create an event (preferred way to add leads to FollowUp Boss)"),
		mcp.WithString("type", mcp.Required(), mcp.Description("Type of event"), mcp.Enum("call", "email", "text", "meeting", "other")),
		mcp.WithObject("person", mcp.Required(), mcp.Description("Person information"), mcp.Properties(map[string]any{
			"name":  map[string]any{"type": "string"},
			"email": map[string]any{"type": "string"},
			"phone": map[string]any{"type": "string"},
		})),
		mcp.WithString("note", mcp.Description("Event notes")),
		mcp.WithString("source", mcp.Description("Event source")),
	)
}

func updatePersonTool() mcp.Tool {
	return mcp.NewTool("update_person",
		mcp.WithDescription("Update an existing contact"),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("person_id", mcp.Required(), mcp.Description("The ID of the person to update")),
		mcp.WithString("name", mcp.Description("Full name")),
		mcp.WithString("email", mcp.Description("Email address")),
		mcp.WithString("phone", mcp.Description("Phone number")),
		mcp.WithString("source", mcp.Description("Lead source")),
		mcp.WithString("stage", mcp.Description("Lead stage")),
		mcp.WithString("assigned_to", mcp.Description("Assigned agent")),
	)
}

func deletePersonTool() mcp.Tool {
	return mcp.NewTool("delete_person",
		mcp.WithDescription("Delete a contact from FollowUp Boss"),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("person_id", mcp.Required(), mcp.Description("The ID of the person to delete")),
	)
}

func listNotesTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("List notes, optionally filtered by person"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("person_id", mcp.Description("Only notes for this person")),
	}, pagingOptions()...)
	return mcp.NewTool("list_notes", opts...)
}

func getNoteTool() mcp.Tool {
	return mcp.NewTool("get_note",
		mcp.WithDescription("Get a specific note"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("The ID of the note")),
	)
}

func createNoteTool() mcp.Tool {
	return mcp.NewTool("create_note",
		mcp.WithDescription("Add a note to a contact"),
		mcp.WithString("person_id", mcp.Required(), mcp.Description("The ID of the person")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Note content")),
		mcp.WithBoolean("is_html", mcp.Description("Whether the body is HTML"), mcp.DefaultBool(false)),
	)
}

func listTasksTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("List tasks with optional filters"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("person_id", mcp.Description("Filter by person")),
		mcp.WithString("assigned_to", mcp.Description("Filter by assigned agent")),
		mcp.WithBoolean("completed", mcp.Description("Filter by completion status")),
	}, pagingOptions()...)
	return mcp.NewTool("list_tasks", opts...)
}

func createTaskTool() mcp.Tool {
	return mcp.NewTool("create_task",
		mcp.WithDescription("Create a new task"),
		mcp.WithString("description", mcp.Required(), mcp.Description("Task description")),
		mcp.WithString("person_id", mcp.Description("Related person")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD)")),
		mcp.WithString("assigned_to", mcp.Description("Agent to assign the task to")),
	)
}

func updateTaskTool() mcp.Tool {
	return mcp.NewTool("update_task",
		mcp.WithDescription("Update an existing task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("The ID of the task")),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("due_date", mcp.Description("Due date (YYYY-MM-DD)")),
		mcp.WithString("assigned_to", mcp.Description("Assigned agent")),
		mcp.WithBoolean("completed", mcp.Description("Completion status")),
	)
}

func createCallTool() mcp.Tool {
	return mcp.NewTool("create_call",
		mcp.WithDescription("Log a phone call against a contact"),
		mcp.WithString("person_id", mcp.Required(), mcp.Description("The ID of the person")),
		mcp.WithString("outcome", mcp.Description("Call outcome")),
		mcp.WithString("note", mcp.Description("Call notes")),
		mcp.WithNumber("duration", mcp.Description("Duration in seconds"), mcp.Min(0)),
		mcp.WithString("call_time", mcp.Description("When the call happened (ISO 8601)")),
	)
}

func logCallTool() mcp.Tool {
	return mcp.NewTool("log_call",
		mcp.WithDescription("Securely log a completed call to FollowUp Boss CRM"),
		mcp.WithString("caller_name", mcp.Required(), mcp.MaxLength(100), mcp.Description("Caller's name")),
		mcp.WithString("caller_phone", mcp.Required(), mcp.Pattern(intake.PhonePattern), mcp.Description("Caller's phone number")),
		mcp.WithString("transcript", mcp.MaxLength(5000), mcp.Description("Call transcript")),
		mcp.WithNumber("call_duration", mcp.Min(0), mcp.Max(intake.MaxCallDuration), mcp.Description("Call duration in seconds")),
		mcp.WithString("call_outcome", mcp.MaxLength(50), mcp.Description("Call outcome")),
		mcp.WithString("call_summary", mcp.MaxLength(500), mcp.Description("Short call summary")),
		mcp.WithString("property_county", mcp.Description("County of the property")),
		mcp.WithString("property_state", mcp.Description("State of the property")),
		mcp.WithString("acreage", mcp.Description("Property acreage")),
		mcp.WithString("conversation_id", mcp.Description("Conversation ID used to skip duplicates")),
	)
}
