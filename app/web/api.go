package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/syncmon/syncmon/app/tracker"
)

// APIJobsResponse is the JSON response for GET /api/v1/jobs
type APIJobsResponse struct {
	Jobs      []APIJob  `json:"jobs"`
	Stats     APIStats  `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

// APIJob represents a tracked job in JSON API responses
type APIJob struct {
	JobID           string             `json:"job_id"`
	JobKind         string             `json:"job_kind"`
	Status          string             `json:"status"`
	Stage           string             `json:"stage,omitempty"`
	TotalItems      int                `json:"total_items"`
	ProcessedItems  int                `json:"processed_items"`
	FailedItems     int                `json:"failed_items"`
	PercentComplete int                `json:"percent_complete"`
	StartedAt       time.Time          `json:"started_at"`
	Error           string             `json:"error,omitempty"`
	Documents       []tracker.Document `json:"documents,omitempty"`
}

// APIStats represents aggregated statistics in JSON API response
type APIStats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	AwaitingInput int `json:"awaiting_input"`
	Complete      int `json:"complete"`
	Failed        int `json:"failed"`
}

func toAPIJob(rec tracker.JobRecord) APIJob {
	return APIJob{
		JobID:           rec.JobID,
		JobKind:         rec.JobKind,
		Status:          string(rec.Status),
		Stage:           rec.Stage,
		TotalItems:      rec.TotalItems,
		ProcessedItems:  rec.ProcessedItems,
		FailedItems:     rec.FailedItems,
		PercentComplete: rec.PercentComplete,
		StartedAt:       rec.StartedAt,
		Error:           rec.ErrorMsg,
		Documents:       rec.Documents,
	}
}

// handleJobs returns the current registry snapshot
func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.registry.Snapshot()

	resp := APIJobsResponse{Jobs: make([]APIJob, 0, len(snapshot)), Timestamp: time.Now()}
	for _, rec := range snapshot {
		resp.Jobs = append(resp.Jobs, toAPIJob(rec))
		resp.Stats.Total++
		switch rec.Status {
		case tracker.StatusConnecting, tracker.StatusActive:
			resp.Stats.Active++
		case tracker.StatusAwaitingInput:
			resp.Stats.AwaitingInput++
		case tracker.StatusComplete:
			resp.Stats.Complete++
		case tracker.StatusError:
			resp.Stats.Failed++
		}
	}
	// stable order for consumers, map iteration is random
	sort.Slice(resp.Jobs, func(i, j int) bool {
		if resp.Jobs[i].StartedAt.Equal(resp.Jobs[j].StartedAt) {
			return resp.Jobs[i].JobID < resp.Jobs[j].JobID
		}
		return resp.Jobs[i].StartedAt.Before(resp.Jobs[j].StartedAt)
	})

	renderJSON(w, resp)
}

// handleJob returns a single tracked job
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, found := s.registry.Get(id)
	if !found {
		http.Error(w, "job not tracked", http.StatusNotFound)
		return
	}
	renderJSON(w, toAPIJob(rec))
}

// handleStopJob cancels tracking for a job on user request
func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, found := s.registry.Get(id); !found {
		http.Error(w, "job not tracked", http.StatusNotFound)
		return
	}
	s.registry.Stop(id)
	log.Printf("[INFO] tracking for %s stopped by user", id)
	renderJSON(w, struct {
		Stopped string `json:"stopped"`
	}{Stopped: id})
}

func renderJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode response: %v", err)
	}
}
