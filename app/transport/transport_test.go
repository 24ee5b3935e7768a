package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncmon/syncmon/app/tracker"
)

func staticToken(tkn string) TokenProvider {
	return func() (string, error) { return tkn, nil }
}

func TestClient_Listen(t *testing.T) {
	jobID := uuid.New().String()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/"+jobID+"/events", r.URL.Path)
		require.Equal(t, "Bearer tkn-123", r.Header.Get("Authorization"))
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		fl := w.(http.Flusher)
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: progress\ndata: {\"status\":\"active\",\"stage\":\"fetching\",\"overall_percent\":25}\n\n")
		fmt.Fprint(w, "event: whoknows\ndata: {\"status\":\"active\"}\n\n") // unknown kind, skipped
		fmt.Fprint(w, "event: terminal\ndata: {\"status\":\"completed\",\"overall_percent\":100}\n\n")
		fl.Flush()
	}))
	defer ts.Close()

	client := NewClient(ts.URL, staticToken("tkn-123"))
	ch, err := client.Listen(context.Background(), jobID)
	require.NoError(t, err)

	upd := <-ch
	assert.Equal(t, tracker.KindProgress, upd.Kind)
	require.NotNil(t, upd.Status)
	assert.Equal(t, tracker.StatusActive, *upd.Status)
	require.NotNil(t, upd.Stage)
	assert.Equal(t, "fetching", *upd.Stage)
	require.NotNil(t, upd.PercentComplete)
	assert.Equal(t, 25, *upd.PercentComplete)

	upd = <-ch
	assert.Equal(t, tracker.KindTerminal, upd.Kind)
	require.NotNil(t, upd.Status)
	assert.Equal(t, tracker.StatusComplete, *upd.Status, "completed alias normalized")

	// server closed the stream, a single broken update then channel close
	upd = <-ch
	assert.Equal(t, tracker.KindConnectionBroken, upd.Kind)
	_, open := <-ch
	assert.False(t, open)
}

func TestClient_ListenMultilineData(t *testing.T) {
	jobID := uuid.New().String()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: snapshot\n")
		fmt.Fprint(w, "data: {\"status\":\"awaiting_selection\",\n")
		fmt.Fprint(w, "data: \"documents\":[{\"id\":\"d1\",\"title\":\"general\"}]}\n\n")
	}))
	defer ts.Close()

	client := NewClient(ts.URL, staticToken("x"))
	ch, err := client.Listen(context.Background(), jobID)
	require.NoError(t, err)

	upd := <-ch
	assert.Equal(t, tracker.KindSnapshot, upd.Kind)
	require.NotNil(t, upd.Status)
	assert.Equal(t, tracker.StatusAwaitingInput, *upd.Status)
	require.Len(t, upd.Documents, 1)
	assert.Equal(t, "general", upd.Documents[0].Title)
}

func TestClient_ListenRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, staticToken("x"))
	_, err := client.Listen(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestClient_ListenCanceledNotBroken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done() // hold the stream open until the client goes away
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(ts.URL, staticToken("x"))
	ch, err := client.Listen(ctx, uuid.New().String())
	require.NoError(t, err)

	cancel()
	for upd := range ch {
		assert.NotEqual(t, tracker.KindConnectionBroken, upd.Kind, "local cancel is not a transport failure")
	}
}

func TestClient_Snapshot(t *testing.T) {
	jobID := uuid.New().String()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/jobs/"+jobID+"/status", r.URL.Path)
		require.Equal(t, "Bearer tkn-123", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"success":true,"status":"running","stage":"parsing","total_items":50,"processed_items":12,"percent_complete":24}`)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, staticToken("tkn-123"))
	upd, err := client.Snapshot(context.Background(), jobID)
	require.NoError(t, err)

	assert.Equal(t, tracker.KindSnapshot, upd.Kind)
	require.NotNil(t, upd.Status)
	assert.Equal(t, tracker.StatusActive, *upd.Status, "running alias normalized")
	assert.Equal(t, 50, *upd.TotalItems)
	assert.Equal(t, 12, *upd.ProcessedItems)
	assert.Equal(t, 24, *upd.PercentComplete)
}

func TestClient_SnapshotTerminal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"status":"error","error":"upstream timeout","overall_percent":80}`)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, staticToken("x"))
	upd, err := client.Snapshot(context.Background(), uuid.New().String())
	require.NoError(t, err)

	assert.Equal(t, tracker.KindTerminal, upd.Kind, "terminal status promotes the update kind")
	require.NotNil(t, upd.ErrorMsg)
	assert.Equal(t, "upstream timeout", *upd.ErrorMsg)
	assert.Equal(t, 80, *upd.PercentComplete)
}

func TestClient_SnapshotErrors(t *testing.T) {
	tbl := []struct {
		name string
		resp func(w http.ResponseWriter)
		want error
	}{
		{"http 404", func(w http.ResponseWriter) { w.WriteHeader(http.StatusNotFound) }, tracker.ErrUnknownJob},
		{"job_not_found code", func(w http.ResponseWriter) { fmt.Fprint(w, `{"success":false,"code":"job_not_found"}`) }, tracker.ErrUnknownJob},
		{"server error", func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }, tracker.ErrNoData},
		{"success false", func(w http.ResponseWriter) { fmt.Fprint(w, `{"success":false,"error":"busy"}`) }, tracker.ErrNoData},
		{"garbage body", func(w http.ResponseWriter) { fmt.Fprint(w, `not json`) }, tracker.ErrNoData},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { tt.resp(w) }))
			defer ts.Close()

			client := NewClient(ts.URL, staticToken("x"))
			_, err := client.Snapshot(context.Background(), uuid.New().String())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_TokenReReadPerAttempt(t *testing.T) {
	var calls int32
	token := func() (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return fmt.Sprintf("tkn-%d", n), nil
	}
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"success":true,"status":"active"}`)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, token)
	jobID := uuid.New().String()
	_, err := client.Snapshot(context.Background(), jobID)
	require.NoError(t, err)
	_, err = client.Snapshot(context.Background(), jobID)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Bearer tkn-1", got[0])
	assert.Equal(t, "Bearer tkn-2", got[1], "refreshed token picked up on the next attempt")
}

func TestClient_TokenFailure(t *testing.T) {
	client := NewClient("http://localhost:1", func() (string, error) { return "", fmt.Errorf("keychain locked") })
	_, err := client.Snapshot(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, tracker.ErrNoData, "token failure is a no-data tick, not fatal")

	_, err = client.Listen(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth token")
}

func TestClient_CreateJob(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/sync/jira", r.URL.Path)
		fmt.Fprint(w, `{"success":true,"job_id":"job-42"}`)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, staticToken("x"))
	id, err := client.CreateJob(context.Background(), "/api/sync/jira")
	require.NoError(t, err)
	assert.Equal(t, "job-42", id)
}

func TestClient_CreateJobFailures(t *testing.T) {
	tbl := []struct {
		name string
		resp func(w http.ResponseWriter)
	}{
		{"rejected", func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) }},
		{"success false", func(w http.ResponseWriter) { fmt.Fprint(w, `{"success":false,"error":"already running"}`) }},
		{"no job id", func(w http.ResponseWriter) { fmt.Fprint(w, `{"success":true}`) }},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { tt.resp(w) }))
			defer ts.Close()

			client := NewClient(ts.URL, staticToken("x"))
			_, err := client.CreateJob(context.Background(), "/api/sync/jira")
			require.Error(t, err)
		})
	}
}

func TestClient_SnapshotTimeoutBounded(t *testing.T) {
	if testing.Short() {
		t.Skip("slow test")
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	client := NewClient(ts.URL, staticToken("x"))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Snapshot(ctx, uuid.New().String())
	require.ErrorIs(t, err, tracker.ErrNoData)
}
