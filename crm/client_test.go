package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   map[string]any
	User   string
}

func newTestClient(t *testing.T, status int, response string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Query = map[string]string{}
		for k := range r.URL.Query() {
			rec.Query[k] = r.URL.Query().Get(k)
		}
		rec.User, _, _ = r.BasicAuth()
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0, 0))
	require.NoError(t, err)
	return c, rec
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("  ")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, "FOLLOWUP_BOSS_API_KEY environment variable not set", err.Error())
}

func TestListPeopleClampsPaging(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"people":[{"id":12,"name":"Ann Lee","emails":[{"value":"ann@example.com"}]}],"_metadata":{"total":1}}`)

	list, err := c.ListPeople(context.Background(), ListOptions{
		Limit:   500,
		Offset:  -3,
		Filters: map[string]string{"email": "ann@example.com", "name": " "},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.Method)
	assert.Equal(t, "/people", rec.Path)
	assert.Equal(t, "test-key", rec.User)
	assert.Equal(t, "100", rec.Query["limit"])
	assert.Equal(t, "0", rec.Query["offset"])
	assert.Equal(t, "ann@example.com", rec.Query["email"])
	assert.NotContains(t, rec.Query, "name")

	require.Len(t, list.People, 1)
	assert.Equal(t, ID("12"), list.People[0].ID)
	assert.Equal(t, "ann@example.com", list.People[0].PrimaryEmail())
	assert.Equal(t, "No phone", list.People[0].PrimaryPhone())
	assert.Equal(t, 1, list.Metadata.Total)
}

func TestListDefaultsLimit(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"tasks":[]}`)
	_, err := c.ListTasks(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "25", rec.Query["limit"])
}

func TestGetPersonUnwrapsEnvelope(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"person":{"id":"7","firstName":"Bo","lastName":"Diaz"}}`)

	p, err := c.GetPerson(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "/people/7", rec.Path)
	assert.Equal(t, ID("7"), p.ID)
	assert.Equal(t, "Bo Diaz", p.DisplayName())
}

func TestCreatePersonValidation(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{}`)

	_, err := c.CreatePerson(context.Background(), Fields{"phone": "555-123-4567", "name": "  "})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "Either name or email is required", Message(err))
}

func TestCreatePersonSendsCleanBody(t *testing.T) {
	c, rec := newTestClient(t, http.StatusCreated, `{"id":99,"name":"Ann"}`)

	p, err := c.CreatePerson(context.Background(), Fields{"name": " Ann ", "stage": "", "source": "Google"})
	require.NoError(t, err)
	assert.Equal(t, ID("99"), p.ID)
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, map[string]any{"name": "Ann", "source": "Google"}, rec.Body)
}

func TestUpdatePersonValidation(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{}`)
	ctx := context.Background()

	_, err := c.UpdatePerson(ctx, "", Fields{"name": "x"})
	assert.Equal(t, "Person ID is required", Message(err))

	_, err = c.UpdatePerson(ctx, "1", nil)
	assert.Equal(t, "Update data is required", Message(err))

	_, err = c.UpdatePerson(ctx, "1", Fields{"name": " "})
	assert.Equal(t, "No valid update data provided", Message(err))
}

func TestDeletePersonNoContent(t *testing.T) {
	c, rec := newTestClient(t, http.StatusNoContent, "")
	require.NoError(t, c.DeletePerson(context.Background(), "42"))
	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/people/42", rec.Path)
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
		category ErrorCategory
		message  string
	}{
		{http.StatusUnauthorized, ErrUnauthorized, ErrorCategoryAuthentication, "Invalid API key or insufficient permissions"},
		{http.StatusForbidden, ErrForbidden, ErrorCategoryAuthorization, "Access forbidden - check user permissions"},
		{http.StatusTooManyRequests, ErrRateLimited, ErrorCategoryRateLimit, "Rate limit exceeded - please try again later"},
		{http.StatusNotFound, ErrNotFound, ErrorCategoryNotFound, "API request failed: 404"},
		{http.StatusInternalServerError, ErrAPI, ErrorCategorySystem, "API request failed: 500"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestClient(t, tt.status, `{"errorMessage":"nope"}`)
			_, err := c.GetPerson(context.Background(), "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var crmErr *Error
			require.True(t, errors.As(err, &crmErr))
			assert.Equal(t, tt.category, crmErr.Category)
			assert.Equal(t, tt.status, crmErr.StatusCode)
			assert.Equal(t, tt.message, crmErr.Message)
		})
	}
}

func TestConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient("k", WithBaseURL(url))
	require.NoError(t, err)

	_, err = c.GetNote(context.Background(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, "Failed to connect to FollowUp Boss API", Message(err))
}

func TestNotes(t *testing.T) {
	ctx := context.Background()

	t.Run("list filters by person", func(t *testing.T) {
		c, rec := newTestClient(t, http.StatusOK, `{"notes":[{"id":3,"personId":5,"body":"hi","person":{"id":5,"name":"Ann"}}]}`)
		list, err := c.ListNotes(ctx, ListOptions{Limit: 10}, "5")
		require.NoError(t, err)
		assert.Equal(t, "5", rec.Query["personId"])
		require.Len(t, list.Notes, 1)
		assert.Equal(t, "Ann", list.Notes[0].PersonName())
	})

	t.Run("create requires person and body", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{}`)
		_, err := c.CreateNote(ctx, NoteInput{Body: "x"})
		assert.Equal(t, "Person ID is required for notes", Message(err))
		_, err = c.CreateNote(ctx, NoteInput{PersonID: "5"})
		assert.Equal(t, "Note body is required", Message(err))
	})

	t.Run("create", func(t *testing.T) {
		c, rec := newTestClient(t, http.StatusCreated, `{"id":8,"personId":5,"body":"hello"}`)
		note, err := c.CreateNote(ctx, NoteInput{PersonID: "5", Body: "hello", IsHTML: true})
		require.NoError(t, err)
		assert.Equal(t, ID("8"), note.ID)
		assert.Equal(t, "5", rec.Body["personId"])
		assert.Equal(t, true, rec.Body["isHtml"])
	})

	t.Run("get requires id", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{}`)
		_, err := c.GetNote(ctx, "")
		assert.Equal(t, "Note ID is required", Message(err))
	})
}

func TestTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("create requires description", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{}`)
		_, err := c.CreateTask(ctx, TaskInput{PersonID: "1"})
		assert.Equal(t, "Task description is required", Message(err))
	})

	t.Run("update sends only set fields", func(t *testing.T) {
		c, rec := newTestClient(t, http.StatusOK, `{"task":{"id":4,"description":"Call back","completed":true}}`)
		done := true
		task, err := c.UpdateTask(ctx, "4", TaskUpdate{Completed: &done})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, rec.Method)
		assert.Equal(t, map[string]any{"completed": true}, rec.Body)
		assert.True(t, task.Completed)
	})

	t.Run("update requires changes", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{}`)
		_, err := c.UpdateTask(ctx, "4", TaskUpdate{})
		assert.Equal(t, "No valid update data provided", Message(err))
		_, err = c.UpdateTask(ctx, " ", TaskUpdate{})
		assert.Equal(t, "Task ID is required", Message(err))
	})
}

func TestCreateEvent(t *testing.T) {
	ctx := context.Background()

	c, rec := newTestClient(t, http.StatusOK, `{"id":"evt-1","type":"call"}`)
	_, err := c.CreateEvent(ctx, EventInput{Type: "call"})
	assert.Equal(t, "Person data is required for events", Message(err))

	event, err := c.CreateEvent(ctx, EventInput{
		Type:   "call",
		Source: "ElevenLabs",
		Note:   "AI call completed",
		Person: Fields{"name": "Ann", "phones": []map[string]any{{"value": "5551234567"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, ID("evt-1"), event.ID)
	assert.Equal(t, "/events", rec.Path)
	person, ok := rec.Body["person"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ann", person["name"])
}

func TestCreateCall(t *testing.T) {
	c, rec := newTestClient(t, http.StatusCreated, `{"call":{"id":11,"personId":5,"outcome":"Interested"}}`)

	_, err := c.CreateCall(context.Background(), CallInput{Outcome: "x"})
	assert.Equal(t, "Person ID is required for calls", Message(err))

	call, err := c.CreateCall(context.Background(), CallInput{PersonID: "5", Outcome: "Interested", Duration: 90})
	require.NoError(t, err)
	assert.Equal(t, ID("11"), call.ID)
	assert.Equal(t, float64(90), rec.Body["duration"])
}

func TestRateLimitHonorsContext(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{}`)
	WithRateLimit(0.001, 1)(c)
	c.limiter.Allow() // drain the only token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListPeople(ctx, ListOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
