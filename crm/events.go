package crm

import (
	"context"
	"net/http"
	"strings"
)

// CreateEvent posts an event. Follow Up Boss creates or matches the person
// from the embedded person data, so this is the preferred way to add leads.
func (c *Client) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	person := in.Person.clean()
	if len(person) == 0 {
		return nil, invalid("Person data is required for events")
	}

	body := Fields{
		"type":    in.Type,
		"source":  in.Source,
		"note":    in.Note,
		"message": in.Message,
	}.clean()
	body["person"] = person

	var out Event
	if err := c.doObject(ctx, http.MethodPost, "events", body, "event", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCall logs a phone call against a person
func (c *Client) CreateCall(ctx context.Context, in CallInput) (*Call, error) {
	if strings.TrimSpace(in.PersonID) == "" {
		return nil, invalid("Person ID is required for calls")
	}

	body := Fields{
		"personId": in.PersonID,
		"outcome":  in.Outcome,
		"note":     in.Note,
		"callTime": in.CallTime,
	}.clean()
	if in.Duration > 0 {
		body["duration"] = in.Duration
	}

	var out Call
	if err := c.doObject(ctx, http.MethodPost, "calls", body, "call", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
