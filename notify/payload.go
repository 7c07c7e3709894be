package notify

import "time"

// Embed colors
const (
	ColorSuccess = 0x2ECC71
	ColorWarning = 0xF1C40F
	ColorDanger  = 0xE74C3C
)

const (
	maxFieldValue   = 1024
	maxDescription  = 4096
	maxEmbedFields  = 25
	truncatedSuffix = "..."
)

// MessagePayload is the JSON body of a Discord webhook call
type MessagePayload struct {
	Content   string  `json:"content,omitempty"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord embed object
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedFooter is the footer of an embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedField is one name/value pair of an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedBuilder builds an Embed, enforcing Discord's size limits
type EmbedBuilder struct {
	embed Embed
}

func NewEmbedBuilder() *EmbedBuilder {
	return &EmbedBuilder{}
}

func (b *EmbedBuilder) WithTitle(title string) *EmbedBuilder {
	b.embed.Title = title
	return b
}

func (b *EmbedBuilder) WithDescription(desc string) *EmbedBuilder {
	b.embed.Description = truncate(desc, maxDescription)
	return b
}

func (b *EmbedBuilder) WithColor(color int) *EmbedBuilder {
	b.embed.Color = color
	return b
}

func (b *EmbedBuilder) WithTimestamp(t time.Time) *EmbedBuilder {
	b.embed.Timestamp = t.UTC().Format(time.RFC3339)
	return b
}

func (b *EmbedBuilder) WithFooter(text string) *EmbedBuilder {
	b.embed.Footer = &EmbedFooter{Text: text}
	return b
}

// AddField appends a field. Empty values are skipped.
func (b *EmbedBuilder) AddField(name, value string, inline bool) *EmbedBuilder {
	if value == "" || len(b.embed.Fields) >= maxEmbedFields {
		return b
	}
	b.embed.Fields = append(b.embed.Fields, EmbedField{
		Name:   name,
		Value:  truncate(value, maxFieldValue),
		Inline: inline,
	})
	return b
}

func (b *EmbedBuilder) Build() Embed {
	return b.embed
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-len(truncatedSuffix)]) + truncatedSuffix
}
