package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelRCrider/callbridge/utils"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndLookupCall(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	_, err := l.LookupCall(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inserted, err := l.RecordCall(ctx, CallEntry{ConversationID: "conv-1", EventID: "55", CallerName: "Ann", Outcome: "completed", CreatedAt: created})
	require.NoError(t, err)
	assert.True(t, inserted)

	entry, err := l.LookupCall(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "55", entry.EventID)
	assert.Equal(t, "Ann", entry.CallerName)
	assert.True(t, created.Equal(entry.CreatedAt))
}

func TestRecordCallIsIdempotent(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first, err := l.RecordCall(ctx, CallEntry{ConversationID: "dup", EventID: "1"})
	require.NoError(t, err)
	second, err := l.RecordCall(ctx, CallEntry{ConversationID: "dup", EventID: "2"})
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)

	entry, err := l.LookupCall(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "1", entry.EventID)
}

func TestClaimCall(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	claimed, err := l.ClaimCall(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = l.ClaimCall(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, claimed, "a pending claim blocks a second delivery")

	entry, err := l.LookupCall(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, entry.EventID)

	require.NoError(t, l.ReleaseCall(ctx, "conv-1"))
	_, err = l.LookupCall(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)

	claimed, err = l.ClaimCall(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, claimed)

	inserted, err := l.RecordCall(ctx, CallEntry{ConversationID: "conv-1", EventID: "77", CallerName: "Ann"})
	require.NoError(t, err)
	assert.True(t, inserted, "recording completes the claim")

	require.NoError(t, l.ReleaseCall(ctx, "conv-1"))
	entry, err = l.LookupCall(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "77", entry.EventID, "recorded calls survive a release")

	_, err = l.ClaimCall(ctx, " ")
	assert.Error(t, err)
}

func TestRecordCallRequiresID(t *testing.T) {
	_, err := openTestLedger(t).RecordCall(context.Background(), CallEntry{})
	assert.Error(t, err)
}

func TestSecurityEvents(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	findings := []utils.ThreatFinding{{
		Severity:    utils.SeverityHigh,
		Category:    utils.CategoryPromptInjection,
		Context:     "transcript",
		MatchedText: "ignore previous instructions",
	}}
	for i := 0; i < 3; i++ {
		_, err := l.RecordSecurityEvent(ctx, SecurityEvent{
			ConversationID: "conv-x",
			Field:          "transcript",
			Message:        "Transcript contains potential prompt injection",
			Findings:       findings,
		})
		require.NoError(t, err)
	}

	events, err := l.RecentSecurityEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Greater(t, events[0].ID, events[1].ID)
	assert.Equal(t, "conv-x", events[0].ConversationID)
	require.Len(t, events[0].Findings, 1)
	assert.Equal(t, "ignore previous instructions", events[0].Findings[0].MatchedText)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	l, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.FileExists(t, path)
}
