package crm

import (
	"context"
	"net/http"
	"strings"
)

// ListTasks returns a page of tasks. Filters include personId, assignedTo
// and completed.
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) (*TasksList, error) {
	var out TasksList
	if err := c.do(ctx, http.MethodGet, "tasks", pageQuery(opts), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask creates a task; only the description is required
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, invalid("Task description is required")
	}

	body := Fields{
		"description": in.Description,
		"personId":    in.PersonID,
		"dueDate":     in.DueDate,
		"assignedTo":  in.AssignedTo,
	}.clean()

	var out Task
	if err := c.doObject(ctx, http.MethodPost, "tasks", body, "task", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask applies the non-nil fields of in
func (c *Client) UpdateTask(ctx context.Context, taskID string, in TaskUpdate) (*Task, error) {
	id, err := requireID(taskID, "Task")
	if err != nil {
		return nil, err
	}

	body := Fields{}
	if in.Description != nil {
		body["description"] = strings.TrimSpace(*in.Description)
	}
	if in.DueDate != nil {
		body["dueDate"] = strings.TrimSpace(*in.DueDate)
	}
	if in.AssignedTo != nil {
		body["assignedTo"] = strings.TrimSpace(*in.AssignedTo)
	}
	if in.Completed != nil {
		body["completed"] = *in.Completed
	}
	if len(body) == 0 {
		return nil, invalid("No valid update data provided")
	}

	var out Task
	if err := c.doObject(ctx, http.MethodPut, "tasks/"+id, body, "task", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
