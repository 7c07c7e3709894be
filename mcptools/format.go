package mcptools

import (
	"fmt"
	"strings"

	"github.com/SamuelRCrider/callbridge/crm"
)

const notePreviewLimit = 100

func formatPeople(people []crm.Person) string {
	if len(people) == 0 {
		return "No contacts found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d contact(s):\n\n", len(people))
	for _, p := range people {
		fmt.Fprintf(&b, "• %s\n  Email: %s\n  Phone: %s\n  ID: %s\n\n",
			p.DisplayName(), p.PrimaryEmail(), p.PrimaryPhone(), p.ID)
	}
	return b.String()
}

func formatPerson(p *crm.Person) string {
	var b strings.Builder
	b.WriteString("Contact Details:\n")
	fmt.Fprintf(&b, "Name: %s\n", p.DisplayName())
	fmt.Fprintf(&b, "ID: %s\n", p.ID)
	fmt.Fprintf(&b, "Source: %s\n", orUnknown(p.Source))
	if len(p.Emails) > 0 {
		fmt.Fprintf(&b, "Emails: %s\n", joinValues(p.Emails))
	}
	if len(p.Phones) > 0 {
		fmt.Fprintf(&b, "Phones: %s\n", joinValues(p.Phones))
	}
	return b.String()
}

func formatNotes(notes []crm.Note) string {
	if len(notes) == 0 {
		return "No notes found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d note(s):\n\n", len(notes))
	for _, n := range notes {
		fmt.Fprintf(&b, "• Note ID: %s\n  Person: %s\n  Content: %s\n\n", n.ID, n.PersonName(), preview(n.Body))
	}
	return b.String()
}

func formatNote(n *crm.Note) string {
	body := n.Body
	if body == "" {
		body = "No content"
	}
	return fmt.Sprintf("Note Details:\nID: %s\nPerson: %s\nContent:\n%s\n", n.ID, n.PersonName(), body)
}

func formatTasks(tasks []crm.Task) string {
	if len(tasks) == 0 {
		return "No tasks found"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d task(s):\n\n", len(tasks))
	for _, t := range tasks {
		status := "○"
		if t.Completed {
			status = "✓"
		}
		desc := t.Description
		if desc == "" {
			desc = "No description"
		}
		due := t.DueDate
		if due == "" {
			due = "No due date"
		}
		fmt.Fprintf(&b, "%s %s\n  ID: %s\n  Due: %s\n\n", status, desc, t.ID, due)
	}
	return b.String()
}

func preview(body string) string {
	if body == "" {
		return "No content"
	}
	r := []rune(body)
	if len(r) <= notePreviewLimit {
		return body
	}
	return string(r[:notePreviewLimit]) + "..."
}

func joinValues(values []crm.ContactValue) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.Value)
	}
	return strings.Join(parts, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
