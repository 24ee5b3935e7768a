// Package tracker implements the client-side registry of server-executed sync jobs.
// It reconciles state delivered by the push and poll transports into a single
// in-memory map, persists the active set for resume after restart and guarantees
// single-shot completion handling.
package tracker

import (
	"time"
)

// Status represents the lifecycle state of a tracked job
type Status string

// job statuses, terminal are StatusComplete and StatusError
const (
	StatusConnecting    Status = "connecting"
	StatusActive        Status = "active"
	StatusAwaitingInput Status = "awaiting_input"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// Terminal reports whether no further progress updates are expected
func (s Status) Terminal() bool { return s == StatusComplete || s == StatusError }

// ParseStatus maps a server-reported status string to the internal enum.
// Servers report a few aliases ("completed", "awaiting_selection", "failed");
// anything else non-empty is treated as an active sub-phase carried in Stage.
func ParseStatus(v string) (Status, bool) {
	switch v {
	case "":
		return "", false
	case string(StatusConnecting):
		return StatusConnecting, true
	case string(StatusActive), "running", "in_progress":
		return StatusActive, true
	case string(StatusAwaitingInput), "awaiting_selection":
		return StatusAwaitingInput, true
	case string(StatusComplete), "completed":
		return StatusComplete, true
	case string(StatusError), "failed":
		return StatusError, true
	}
	return StatusActive, true
}

// Document is an item attached to a job awaiting user selection
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// JobRecord is the tracked state of one sync job. Mutated only by Registry.reconcile
type JobRecord struct {
	JobID              string     `json:"job_id"`
	JobKind            string     `json:"job_kind"`
	Status             Status     `json:"status"`
	Stage              string     `json:"stage,omitempty"`
	TotalItems         int        `json:"total_items"`
	ProcessedItems     int        `json:"processed_items"`
	FailedItems        int        `json:"failed_items"`
	PercentComplete    int        `json:"percent_complete"`
	NotifyOnCompletion bool       `json:"notify_on_completion"`
	StartedAt          time.Time  `json:"started_at"`
	ErrorMsg           string     `json:"error_msg,omitempty"`
	Documents          []Document `json:"documents,omitempty"`
}

// UpdateKind identifies the source event of an Update
type UpdateKind string

// update kinds, one per transport event type
const (
	KindSnapshot         UpdateKind = "snapshot"
	KindProgress         UpdateKind = "progress"
	KindTerminal         UpdateKind = "terminal"
	KindConnectionBroken UpdateKind = "connection_broken"
)

// Update is the single typed message both transports produce. Nil fields are
// absent and leave the corresponding JobRecord field untouched on merge.
type Update struct {
	Kind            UpdateKind
	Status          *Status
	Stage           *string
	TotalItems      *int
	ProcessedItems  *int
	FailedItems     *int
	PercentComplete *int
	ErrorMsg        *string
	Documents       []Document
}

// reconcile merges an update into the record. Pure merge semantics: present
// fields overwrite, PercentComplete is monotone non-decreasing unless the
// incoming status is error (a failing job may report less than forecast).
// Terminal status is sticky: once the record is terminal a stale non-terminal
// status from a late poll response cannot revive it.
func reconcile(rec *JobRecord, upd Update) {
	incomingError := upd.Status != nil && *upd.Status == StatusError

	if upd.Status != nil {
		if !rec.Status.Terminal() || upd.Status.Terminal() {
			rec.Status = *upd.Status
		}
	}
	if upd.Stage != nil {
		rec.Stage = *upd.Stage
	}
	if upd.TotalItems != nil {
		rec.TotalItems = *upd.TotalItems
	}
	if upd.ProcessedItems != nil {
		rec.ProcessedItems = *upd.ProcessedItems
	}
	if upd.FailedItems != nil {
		rec.FailedItems = *upd.FailedItems
	}
	if upd.PercentComplete != nil {
		if incomingError || *upd.PercentComplete > rec.PercentComplete {
			rec.PercentComplete = *upd.PercentComplete
		}
	}
	if upd.ErrorMsg != nil {
		rec.ErrorMsg = *upd.ErrorMsg
	}
	if upd.Documents != nil {
		if rec.Status == StatusAwaitingInput {
			rec.Documents = upd.Documents
		} else {
			rec.Documents = nil
		}
	}
	if rec.Status != StatusAwaitingInput {
		rec.Documents = nil
	}
}
