package crm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is a Follow Up Boss identifier. The API returns numbers; callers
// pass strings. Both decode into ID.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the ID or "Unknown" when empty.
func (id ID) String() string {
	if id == "" {
		return "Unknown"
	}
	return string(id)
}

// Fields is a request body. Strings are trimmed and empty values dropped
// before sending.
type Fields map[string]any

func (f Fields) clean() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if s := strings.TrimSpace(val); s != "" {
				out[k] = s
			}
		case map[string]any:
			if nested := Fields(val).clean(); len(nested) > 0 {
				out[k] = nested
			}
		case Fields:
			if nested := val.clean(); len(nested) > 0 {
				out[k] = nested
			}
		case []string:
			if len(val) > 0 {
				out[k] = val
			}
		default:
			out[k] = val
		}
	}
	return out
}

func (f Fields) has(key string) bool {
	v, ok := f[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// ContactValue is one email address or phone number
type ContactValue struct {
	Value     string `json:"value"`
	Type      string `json:"type,omitempty"`
	IsPrimary bool   `json:"isPrimary,omitempty"`
}

// Person is a CRM contact
type Person struct {
	ID         ID             `json:"id"`
	Name       string         `json:"name"`
	FirstName  string         `json:"firstName,omitempty"`
	LastName   string         `json:"lastName,omitempty"`
	Source     string         `json:"source,omitempty"`
	Stage      string         `json:"stage,omitempty"`
	AssignedTo string         `json:"assignedTo,omitempty"`
	Emails     []ContactValue `json:"emails,omitempty"`
	Phones     []ContactValue `json:"phones,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Created    string         `json:"created,omitempty"`
	Updated    string         `json:"updated,omitempty"`
}

// DisplayName prefers the full name, then first and last name.
func (p Person) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if full := strings.TrimSpace(p.FirstName + " " + p.LastName); full != "" {
		return full
	}
	return "No name"
}

// PrimaryEmail returns the first email or "No email".
func (p Person) PrimaryEmail() string {
	if len(p.Emails) > 0 && p.Emails[0].Value != "" {
		return p.Emails[0].Value
	}
	return "No email"
}

// PrimaryPhone returns the first phone or "No phone".
func (p Person) PrimaryPhone() string {
	if len(p.Phones) > 0 && p.Phones[0].Value != "" {
		return p.Phones[0].Value
	}
	return "No phone"
}

// ListMetadata is the paging block of list responses
type ListMetadata struct {
	Collection string `json:"collection,omitempty"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
}

// PeopleList is a page of people
type PeopleList struct {
	People   []Person     `json:"people"`
	Metadata ListMetadata `json:"_metadata"`
}

// PersonRef is the embedded person summary on notes
type PersonRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Note is a CRM note
type Note struct {
	ID       ID         `json:"id"`
	PersonID ID         `json:"personId"`
	Person   *PersonRef `json:"person,omitempty"`
	Subject  string     `json:"subject,omitempty"`
	Body     string     `json:"body"`
	IsHTML   bool       `json:"isHtml,omitempty"`
	Created  string     `json:"created,omitempty"`
}

// PersonName returns the embedded person name or "Unknown".
func (n Note) PersonName() string {
	if n.Person != nil && n.Person.Name != "" {
		return n.Person.Name
	}
	return "Unknown"
}

// NotesList is a page of notes
type NotesList struct {
	Notes    []Note       `json:"notes"`
	Metadata ListMetadata `json:"_metadata"`
}

// Task is a CRM task
type Task struct {
	ID          ID     `json:"id"`
	PersonID    ID     `json:"personId,omitempty"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate,omitempty"`
	AssignedTo  string `json:"assignedTo,omitempty"`
	Completed   bool   `json:"completed"`
}

// TasksList is a page of tasks
type TasksList struct {
	Tasks    []Task       `json:"tasks"`
	Metadata ListMetadata `json:"_metadata"`
}

// Event is the result of posting an event
type Event struct {
	ID       ID     `json:"id"`
	Type     string `json:"type"`
	PersonID ID     `json:"personId,omitempty"`
}

// Call is a logged phone call
type Call struct {
	ID       ID     `json:"id"`
	PersonID ID     `json:"personId,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// ListOptions pages and filters list requests
type ListOptions struct {
	Limit   int
	Offset  int
	Filters map[string]string
}

// EventInput is the body of POST /events
type EventInput struct {
	Type    string
	Source  string
	Note    string
	Message string
	Person  Fields
}

// NoteInput is the body of POST /notes
type NoteInput struct {
	PersonID string
	Body     string
	Subject  string
	IsHTML   bool
}

// TaskInput is the body of POST /tasks
type TaskInput struct {
	Description string
	PersonID    string
	DueDate     string
	AssignedTo  string
}

// TaskUpdate holds optional task changes; nil fields are left alone
type TaskUpdate struct {
	Description *string
	DueDate     *string
	AssignedTo  *string
	Completed   *bool
}

// CallInput is the body of POST /calls
type CallInput struct {
	PersonID string
	Outcome  string
	Note     string
	Duration int
	CallTime string
}
