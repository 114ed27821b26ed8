package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-chatclient/internal/api"
	"github.com/npezzotti/go-chatclient/internal/config"
	"github.com/npezzotti/go-chatclient/internal/testutil"
	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEventStore(t *testing.T, handler http.Handler) *EventStore {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg, err := config.NewConfig(srv.URL, 5*time.Second, 50*time.Millisecond, 100*time.Millisecond, "")
	require.NoError(t, err, "expected no error building config")

	logger := testutil.TestLogger(t)
	apiClient, err := api.NewClient(logger, cfg)
	require.NoError(t, err, "expected no error creating api client")

	return NewEventStore(logger, apiClient)
}

func TestEventStoreLoad(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"title":"standup","date":"2025-01-02","creator":"alice"},
			{"id":2,"title":"review","date":"2025-01-03","creator":"bob"}
		]`))
	})

	es := newTestEventStore(t, mux)
	err := es.Load(context.Background())
	assert.NoError(t, err, "expected load to succeed")
	assert.Len(t, es.Events(), 2, "expected both events")
}

func TestEventStoreLoadErrorKeepsState(t *testing.T) {
	var fail bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"id":1,"title":"standup","date":"2025-01-02","creator":"alice"}]`))
	})

	es := newTestEventStore(t, mux)
	require.NoError(t, es.Load(context.Background()), "expected first load to succeed")

	fail = true
	err := es.Load(context.Background())
	assert.Error(t, err, "expected second load to fail")
	assert.Len(t, es.Events(), 1, "expected prior events to be kept on failure")
}

func TestEventStoreCreate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events", func(w http.ResponseWriter, r *http.Request) {
		var ev types.CalendarEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev), "expected a json body")

		ev.Id = 5
		json.NewEncoder(w).Encode(ev)
	})

	es := newTestEventStore(t, mux)

	t.Run("success", func(t *testing.T) {
		err := es.Create(context.Background(), types.CalendarEvent{
			Title: "standup",
			Date:  "2025-01-02",
		})
		assert.NoError(t, err, "expected create to succeed")

		events := es.Events()
		require.Len(t, events, 1, "expected the created event to be listed")
		assert.Equal(t, 5, events[0].Id, "expected the server-issued id")
	})
	t.Run("empty title", func(t *testing.T) {
		err := es.Create(context.Background(), types.CalendarEvent{Date: "2025-01-02"})
		assert.Error(t, err, "expected an error for an empty title")
	})
	t.Run("empty date", func(t *testing.T) {
		err := es.Create(context.Background(), types.CalendarEvent{Title: "standup"})
		assert.Error(t, err, "expected an error for an empty date")
	})
}

func TestEventStoreDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"title":"standup","date":"2025-01-02","creator":"alice"},
			{"id":2,"title":"review","date":"2025-01-03","creator":"bob"}
		]`))
	})
	mux.HandleFunc("DELETE /api/events/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	es := newTestEventStore(t, mux)
	require.NoError(t, es.Load(context.Background()), "expected load to succeed")

	err := es.Delete(context.Background(), 1)
	assert.NoError(t, err, "expected delete to succeed")

	events := es.Events()
	require.Len(t, events, 1, "expected one event left")
	assert.Equal(t, 2, events[0].Id, "expected the other event to remain")
}

func TestEventStoreByDate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"title":"standup","date":"2025-01-03","creator":"alice"},
			{"id":2,"title":"review","date":"2025-01-02","creator":"bob"},
			{"id":3,"title":"retro","date":"2025-01-03","creator":"alice"}
		]`))
	})

	es := newTestEventStore(t, mux)
	require.NoError(t, es.Load(context.Background()), "expected load to succeed")

	grouped := es.ByDate()
	assert.Len(t, grouped["2025-01-03"], 2, "expected two events on the third")
	assert.Len(t, grouped["2025-01-02"], 1, "expected one event on the second")

	assert.Equal(t, []string{"2025-01-02", "2025-01-03"}, es.Dates(), "expected sorted dates")
}
