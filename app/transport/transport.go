// Package transport implements the two delivery channels for job state: a
// server-sent-events push subscription and a point-in-time poll snapshot.
// Both produce tracker.Update messages; recovery policy lives in the tracker,
// not here.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/syncmon/syncmon/app/tracker"
)

// TokenProvider returns the current bearer credential. Called fresh on every
// transport attempt so a token refresh mid-job is honored.
type TokenProvider func() (string, error)

// Client talks to the backend job executor
type Client struct {
	BaseURL string
	Token   TokenProvider
	HTTP    *http.Client
}

// NewClient makes a transport client for the backend
func NewClient(baseURL string, token TokenProvider) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{}, // no overall timeout, the SSE stream is long-lived
	}
}

// wirePayload is the field set both channels deliver, see the backend contract
type wirePayload struct {
	Success         *bool              `json:"success,omitempty"`
	Status          string             `json:"status,omitempty"`
	Stage           string             `json:"stage,omitempty"`
	CurrentItem     string             `json:"current_item,omitempty"`
	TotalItems      *int               `json:"total_items,omitempty"`
	ProcessedItems  *int               `json:"processed_items,omitempty"`
	FailedItems     *int               `json:"failed_items,omitempty"`
	OverallPercent  *int               `json:"overall_percent,omitempty"`
	PercentComplete *int               `json:"percent_complete,omitempty"`
	Error           string             `json:"error,omitempty"`
	Code            string             `json:"code,omitempty"`
	Documents       []tracker.Document `json:"documents,omitempty"`
}

// toUpdate maps a wire payload to the internal update shape
func (p wirePayload) toUpdate(kind tracker.UpdateKind) tracker.Update {
	upd := tracker.Update{Kind: kind}

	if st, ok := tracker.ParseStatus(p.Status); ok {
		upd.Status = &st
	}

	stage := p.Stage
	if stage == "" {
		stage = p.CurrentItem
	}
	if stage != "" {
		upd.Stage = &stage
	}

	upd.TotalItems = p.TotalItems
	upd.ProcessedItems = p.ProcessedItems
	upd.FailedItems = p.FailedItems

	// first non-null wins between the two percent spellings
	if p.OverallPercent != nil {
		upd.PercentComplete = p.OverallPercent
	} else if p.PercentComplete != nil {
		upd.PercentComplete = p.PercentComplete
	}

	if p.Error != "" {
		errMsg := p.Error
		upd.ErrorMsg = &errMsg
	}
	upd.Documents = p.Documents
	return upd
}

func (c *Client) request(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to make request for %s: %w", url, err)
	}
	token, err := c.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// Listen opens the push channel for a job. Events arrive in server send
// order; on any read failure a single connection-broken update is delivered
// and the channel closed. Retry is the caller's decision.
func (c *Client) Listen(ctx context.Context, jobID string) (<-chan tracker.Update, error) {
	req, err := c.request(ctx, http.MethodGet, fmt.Sprintf("%s/jobs/%s/events", c.BaseURL, jobID))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open push channel for %s: %w", jobID, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("push channel for %s rejected: %s", jobID, resp.Status)
	}

	ch := make(chan tracker.Update)
	go c.readEvents(ctx, jobID, resp.Body, ch)
	return ch, nil
}

// readEvents parses the SSE wire format: "event:" names the update kind,
// "data:" lines accumulate the JSON payload, a blank line dispatches.
func (c *Client) readEvents(ctx context.Context, jobID string, body io.ReadCloser, ch chan<- tracker.Update) {
	defer close(ch)
	defer func() {
		if err := body.Close(); err != nil {
			log.Printf("[DEBUG] can't close push channel body for %s, %v", jobID, err)
		}
	}()

	var event string
	var data strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	dispatch := func() {
		defer func() { event = ""; data.Reset() }()
		if data.Len() == 0 {
			return
		}
		kind, ok := eventKind(event)
		if !ok {
			log.Printf("[DEBUG] unknown push event %q for %s, skipped", event, jobID)
			return
		}
		var payload wirePayload
		if err := json.Unmarshal([]byte(data.String()), &payload); err != nil {
			log.Printf("[WARN] bad push payload for %s, %v", jobID, err)
			return
		}
		select {
		case ch <- payload.toUpdate(kind):
		case <-ctx.Done():
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			dispatch()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// comment/keep-alive frame
		}
	}

	if ctx.Err() != nil {
		return // canceled locally, not a transport failure
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[DEBUG] push channel for %s broken, %v", jobID, err)
	}
	select {
	case ch <- tracker.Update{Kind: tracker.KindConnectionBroken}:
	case <-ctx.Done():
	}
}

func eventKind(event string) (tracker.UpdateKind, bool) {
	switch event {
	case "snapshot", "":
		return tracker.KindSnapshot, true
	case "progress":
		return tracker.KindProgress, true
	case "terminal":
		return tracker.KindTerminal, true
	}
	return "", false
}

// Snapshot issues one poll request for the job status. A non-2xx response or
// success=false envelope means "no data this tick" (tracker.ErrNoData), not a
// job failure. A 404 or job_not_found code means the server doesn't know the
// job (tracker.ErrUnknownJob).
func (c *Client) Snapshot(ctx context.Context, jobID string) (tracker.Update, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := c.request(reqCtx, http.MethodGet, fmt.Sprintf("%s/jobs/%s/status", c.BaseURL, jobID))
	if err != nil {
		return tracker.Update{}, fmt.Errorf("%w: %v", tracker.ErrNoData, err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return tracker.Update{}, fmt.Errorf("%w: %v", tracker.ErrNoData, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[DEBUG] can't close poll body for %s, %v", jobID, err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return tracker.Update{}, tracker.ErrUnknownJob
	}
	if resp.StatusCode != http.StatusOK {
		return tracker.Update{}, fmt.Errorf("%w: status %s", tracker.ErrNoData, resp.Status)
	}

	var payload wirePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return tracker.Update{}, fmt.Errorf("%w: %v", tracker.ErrNoData, err)
	}
	if payload.Code == "job_not_found" {
		return tracker.Update{}, tracker.ErrUnknownJob
	}
	if payload.Success != nil && !*payload.Success {
		return tracker.Update{}, tracker.ErrNoData
	}

	kind := tracker.KindSnapshot
	if st, ok := tracker.ParseStatus(payload.Status); ok && st.Terminal() {
		kind = tracker.KindTerminal
	}
	return payload.toUpdate(kind), nil
}

// CreateJob asks the backend to start a new sync job and returns its id.
// Used by the scheduled trigger; interactive job creation flows live outside
// this agent.
func (c *Client) CreateJob(ctx context.Context, path string) (string, error) {
	req, err := c.request(ctx, http.MethodPost, c.BaseURL+"/"+strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create job via %s: %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[DEBUG] can't close create body, %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("job creation via %s rejected: %s", path, resp.Status)
	}

	var body struct {
		Success *bool  `json:"success,omitempty"`
		JobID   string `json:"job_id"`
		Error   string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode job creation response: %w", err)
	}
	if body.Success != nil && !*body.Success {
		return "", fmt.Errorf("job creation via %s failed: %s", path, body.Error)
	}
	if body.JobID == "" {
		return "", fmt.Errorf("job creation via %s returned no job id", path)
	}
	return body.JobID, nil
}
