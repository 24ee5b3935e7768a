package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_NoDestinations(t *testing.T) {
	assert.Nil(t, NewService(Params{EnabledError: true}, SendersParams{}))
	assert.Nil(t, NewService(Params{}, SendersParams{ToEmails: []string{"a@b.com"}}), "emails without smtp host ignored")
	assert.Nil(t, NewService(Params{}, SendersParams{SlackToken: "xoxb-1"}), "slack token without channels ignored")
}

func TestNewService_Destinations(t *testing.T) {
	svc := NewService(Params{EnabledError: true, EnabledCompletion: true}, SendersParams{
		ToEmails:      []string{"ops@example.com"},
		SMTPHost:      "smtp.example.com",
		SMTPPort:      587,
		SlackToken:    "xoxb-1",
		SlackChannels: []string{"general", "alerts"},
		WebhookURLs:   []string{"https://hooks.example.com/abc"},
	})
	require.NotNil(t, svc)
	assert.Equal(t, []string{"mailto:ops@example.com", "slack:general", "slack:alerts", "https://hooks.example.com/abc"},
		svc.destinations)
	assert.Len(t, svc.notifiers, 3, "one notifier per sender type")
	assert.Equal(t, 30*time.Second, svc.SendTimeOut, "default timeout applied")
}

func TestService_SendWebhook(t *testing.T) {
	var received string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received = string(body)
	}))
	defer ts.Close()

	svc := NewService(Params{EnabledCompletion: true}, SendersParams{WebhookURLs: []string{ts.URL}})
	require.NotNil(t, svc)

	err := svc.Send(context.Background(), "completed sync jira", "<html>done</html>")
	require.NoError(t, err)
	assert.Equal(t, "<html>done</html>", received)
}

func TestService_SendNoMatchingNotifier(t *testing.T) {
	svc := NewService(Params{}, SendersParams{WebhookURLs: []string{"http://localhost:9"}})
	require.NotNil(t, svc)
	svc.destinations = []string{"gopher:whatever"}

	err := svc.Send(context.Background(), "subj", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gopher:whatever")
}

func TestService_NilSafe(t *testing.T) {
	var svc *Service
	assert.False(t, svc.IsOnError())
	assert.False(t, svc.IsOnCompletion())
	assert.NoError(t, svc.Send(context.Background(), "subj", "text"))
}

func TestService_Flags(t *testing.T) {
	svc := NewService(Params{EnabledError: true}, SendersParams{WebhookURLs: []string{"http://localhost:9"}})
	require.NotNil(t, svc)
	assert.True(t, svc.IsOnError())
	assert.False(t, svc.IsOnCompletion())
}

func TestWithSubject(t *testing.T) {
	tbl := []struct {
		dest, subj, want string
	}{
		{"mailto:a@b.com", "failed sync jira", "mailto:a@b.com?subject=failed+sync+jira"},
		{"mailto:a@b.com?from=x@y.com", "done", "mailto:a@b.com?from=x@y.com&subject=done"},
		{"mailto:a@b.com", "", "mailto:a@b.com"},
		{"slack:general", "failed sync jira", "slack:general"},
		{"https://hooks.example.com/abc", "done", "https://hooks.example.com/abc"},
	}
	for _, tt := range tbl {
		assert.Equal(t, tt.want, withSubject(tt.dest, tt.subj), tt.dest)
	}
}

func TestService_PickSchema(t *testing.T) {
	svc := NewService(Params{}, SendersParams{WebhookURLs: []string{"https://hooks.example.com/abc"}})
	require.NotNil(t, svc)

	n := svc.pick("https://hooks.example.com/abc")
	require.NotNil(t, n, "https destinations served by the http webhook notifier")
	assert.Equal(t, "http", n.Schema())

	assert.Nil(t, svc.pick("slack:general"), "no slack notifier configured")
}

func TestService_MakeErrorHTML(t *testing.T) {
	svc := NewService(Params{EnabledError: true, HostName: "devbox"},
		SendersParams{WebhookURLs: []string{"http://localhost:9"}})
	require.NotNil(t, svc)

	html, err := svc.MakeErrorHTML("jira", "job-42", "rate limited by upstream")
	require.NoError(t, err)
	assert.Contains(t, html, "devbox")
	assert.Contains(t, html, "jira")
	assert.Contains(t, html, "job-42")
	assert.Contains(t, html, "rate limited by upstream")
	assert.Contains(t, html, "failed")
}

func TestService_MakeCompletionHTML(t *testing.T) {
	svc := NewService(Params{EnabledCompletion: true, HostName: "devbox"},
		SendersParams{WebhookURLs: []string{"http://localhost:9"}})
	require.NotNil(t, svc)

	html, err := svc.MakeCompletionHTML("notion", "job-7")
	require.NoError(t, err)
	assert.Contains(t, html, "completed")
	assert.Contains(t, html, "notion")
	assert.Contains(t, html, "job-7")
}

func TestService_TemplateFileOverride(t *testing.T) {
	file := filepath.Join(t.TempDir(), "completion.tmpl")
	require.NoError(t, os.WriteFile(file, []byte("done: {{.JobKind}}/{{.JobID}} on {{.Host}}"), 0o600))

	svc := NewService(Params{CompletionTemplate: file, HostName: "devbox"},
		SendersParams{WebhookURLs: []string{"http://localhost:9"}})
	require.NotNil(t, svc)

	html, err := svc.MakeCompletionHTML("jira", "job-42")
	require.NoError(t, err)
	assert.Equal(t, "done: jira/job-42 on devbox", html)
}

func TestService_TemplateFallbacks(t *testing.T) {
	svc := NewService(Params{ErrorTemplate: "/no/such/file.tmpl", HostName: "devbox"},
		SendersParams{WebhookURLs: []string{"http://localhost:9"}})
	require.NotNil(t, svc)

	html, err := svc.MakeErrorHTML("jira", "job-42", "boom")
	require.NoError(t, err, "unreadable file falls back to the embedded template")
	assert.Contains(t, html, "boom")

	bad := filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(bad, []byte("{{.Unclosed"), 0o600))
	svc.ErrorTemplate = bad

	html, err = svc.MakeErrorHTML("jira", "job-42", "boom")
	require.NoError(t, err, "unparsable file falls back to the embedded template")
	assert.Contains(t, html, "boom")
}
