package xapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-sim/backend/config"
)

func testEvent() Event {
	team := uuid.New()
	return Event{
		Verb:   VerbPosted,
		Actor:  Actor{ID: uuid.New(), Name: "Ada"},
		Object: Activity{ID: uuid.New(), Type: "article", Name: "Port closed"},
		Parent: &Activity{ID: uuid.New(), Type: "exhibit", Name: "Exercise"},
		TeamID: &team,
	}
}

func TestRecordEventPostsStatement(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xapi/statements", r.URL.Path)
		assert.Equal(t, version, r.Header.Get("X-Experience-API-Version"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`["id"]`))
	}))
	defer srv.Close()

	c := NewClient(config.XAPIConfig{
		Endpoint: srv.URL + "/xapi/", Username: "key", Password: "secret",
		Platform: "Gallery", ActivityBase: "https://gallery.example.com",
	}, nil)
	ev := testEvent()

	require.True(t, c.RecordEvent(context.Background(), ev))
	require.NotNil(t, got)
	verb, ok := got["verb"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(VerbPosted), verb["id"])
	object := got["object"].(map[string]interface{})
	assert.Equal(t, "https://gallery.example.com/article/"+ev.Object.ID.String(), object["id"])
	sctx := got["context"].(map[string]interface{})
	assert.Equal(t, "Gallery", sctx["platform"])
	assert.Contains(t, sctx, "contextActivities")
}

func TestRecordEventFailureIsBoolean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(config.XAPIConfig{Endpoint: srv.URL}, nil)
	assert.False(t, c.RecordEvent(context.Background(), testEvent()))
}

func TestUnconfiguredClientRecordsNothing(t *testing.T) {
	c := NewClient(config.XAPIConfig{}, nil)
	assert.False(t, c.IsConfigured())
	assert.False(t, c.RecordEvent(context.Background(), testEvent()))

	var nilClient *Client
	assert.False(t, nilClient.IsConfigured())
}
