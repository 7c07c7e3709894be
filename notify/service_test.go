package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelRCrider/callbridge/utils"
)

type capture struct {
	mu       sync.Mutex
	payloads []MessagePayload
}

func (c *capture) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p MessagePayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServiceNotifyLead(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	svc := NewService(NewDiscordNotifier(zerolog.Nop(), srv.Client()), Options{
		LeadWebhookURL: srv.URL,
		Username:       "CallBridge",
		NotifyOnLead:   true,
	}, zerolog.Nop())

	err := svc.NotifyLead(context.Background(), Lead{Name: "Ann", Phone: "5125550100", Duration: 95, Acreage: "40", County: "Travis", State: "TX", Agent: "Jordan"})
	require.NoError(t, err)

	require.Len(t, c.payloads, 1)
	embed := c.payloads[0].Embeds[0]
	values := map[string]string{}
	for _, f := range embed.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "1m 35s", values["Duration"])
	assert.Equal(t, "40 acres, Travis County, TX", values["Property"])
	assert.Equal(t, "Jordan", values["Assigned To"])
	assert.NotContains(t, values, "Event ID")
}

func TestServiceLeadDisabled(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	svc := NewService(NewDiscordNotifier(zerolog.Nop(), srv.Client()), Options{LeadWebhookURL: srv.URL}, zerolog.Nop())

	require.NoError(t, svc.NotifyLead(context.Background(), Lead{Name: "Ann"}))
	assert.Empty(t, c.payloads)
}

func TestServiceSecurityThrottled(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	svc := NewService(NewDiscordNotifier(zerolog.Nop(), srv.Client()), Options{
		LeadWebhookURL:  srv.URL,
		AlertsPerWindow: 2,
		AlertWindow:     time.Hour,
	}, zerolog.Nop())

	alert := Alert{
		CallerKey: "+15125550100",
		Field:     "transcript",
		Message:   "Transcript contains potential prompt injection",
		Findings: []utils.ThreatFinding{
			{Severity: utils.SeverityHigh, RuleID: "instruction-override", MatchedText: "ignore previous instructions"},
			{Severity: utils.SeverityHigh, RuleID: "instruction-override"},
			{Severity: utils.SeverityLow, RuleID: "help-words"},
		},
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, svc.NotifySecurity(context.Background(), alert))
	}

	require.Len(t, c.payloads, 2)
	embed := c.payloads[0].Embeds[0]
	assert.Equal(t, ColorDanger, embed.Color)
	raw, err := json.Marshal(embed)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ignore previous instructions")
	assert.Contains(t, string(raw), "high: 2, medium: 0, low: 1")
	assert.Contains(t, string(raw), `"value":"instruction-override"`)
}

func TestNilServiceIsNoop(t *testing.T) {
	var svc *Service
	assert.NoError(t, svc.NotifyLead(context.Background(), Lead{}))
	assert.NoError(t, svc.NotifySecurity(context.Background(), Alert{}))
}

func TestEmbedBuilderTruncates(t *testing.T) {
	long := make([]rune, 2000)
	for i := range long {
		long[i] = 'é'
	}
	embed := NewEmbedBuilder().AddField("Summary", string(long), false).AddField("Empty", "", false).Build()
	require.Len(t, embed.Fields, 1)
	assert.Len(t, []rune(embed.Fields[0].Value), maxFieldValue)
}
