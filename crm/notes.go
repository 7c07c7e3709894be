package crm

import (
	"context"
	"net/http"
	"strings"
)

// ListNotes returns a page of notes, optionally for one person
func (c *Client) ListNotes(ctx context.Context, opts ListOptions, personID string) (*NotesList, error) {
	q := pageQuery(opts)
	if id := strings.TrimSpace(personID); id != "" {
		q.Set("personId", id)
	}

	var out NotesList
	if err := c.do(ctx, http.MethodGet, "notes", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetNote fetches one note
func (c *Client) GetNote(ctx context.Context, noteID string) (*Note, error) {
	id, err := requireID(noteID, "Note")
	if err != nil {
		return nil, err
	}

	var out Note
	if err := c.doObject(ctx, http.MethodGet, "notes/"+id, nil, "note", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNote adds a note to a person
func (c *Client) CreateNote(ctx context.Context, in NoteInput) (*Note, error) {
	if strings.TrimSpace(in.PersonID) == "" {
		return nil, invalid("Person ID is required for notes")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, invalid("Note body is required")
	}

	body := Fields{
		"personId": strings.TrimSpace(in.PersonID),
		"body":     strings.TrimSpace(in.Body),
		"subject":  in.Subject,
	}.clean()
	if in.IsHTML {
		body["isHtml"] = true
	}

	var out Note
	if err := c.doObject(ctx, http.MethodPost, "notes", body, "note", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
