package crm

import (
	"context"
	"net/http"
)

// ListPeople returns a page of contacts. Filters such as email, phone, name
// and source are passed as query parameters.
func (c *Client) ListPeople(ctx context.Context, opts ListOptions) (*PeopleList, error) {
	var out PeopleList
	if err := c.do(ctx, http.MethodGet, "people", pageQuery(opts), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPerson fetches one contact
func (c *Client) GetPerson(ctx context.Context, personID string) (*Person, error) {
	id, err := requireID(personID, "Person")
	if err != nil {
		return nil, err
	}

	var out Person
	if err := c.doObject(ctx, http.MethodGet, "people/"+id, nil, "person", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePerson creates a contact. Either name or email is required.
func (c *Client) CreatePerson(ctx context.Context, data Fields) (*Person, error) {
	body := data.clean()
	if !body.has("name") && !body.has("email") && !body.has("emails") {
		return nil, invalid("Either name or email is required")
	}

	var out Person
	if err := c.doObject(ctx, http.MethodPost, "people", body, "person", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePerson changes the given fields of a contact
func (c *Client) UpdatePerson(ctx context.Context, personID string, data Fields) (*Person, error) {
	id, err := requireID(personID, "Person")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, invalid("Update data is required")
	}
	body := data.clean()
	if len(body) == 0 {
		return nil, invalid("No valid update data provided")
	}

	var out Person
	if err := c.doObject(ctx, http.MethodPut, "people/"+id, body, "person", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePerson removes a contact
func (c *Client) DeletePerson(ctx context.Context, personID string) error {
	id, err := requireID(personID, "Person")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "people/"+id, nil, nil, nil)
}
