package tracker

import (
	"context"
	"errors"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
)

// Resume re-attaches tracking for jobs persisted by a previous session. Runs
// once; entries older than the staleness threshold are dropped without any
// server round trip. Resumed jobs go straight to polling-only, the push
// channel is never attempted after an unknown gap. Blocks until the initial
// catch-up polls complete.
func (r *Registry) Resume(ctx context.Context) error {
	r.mu.Lock()
	if r.resumed {
		r.mu.Unlock()
		return nil
	}
	r.resumed = true
	r.mu.Unlock()

	if r.params.Store == nil {
		return nil
	}

	entries, err := r.params.Store.LoadActive()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	reconnecting := "reconnecting"
	resumable := entries[:0]
	for _, e := range entries {
		if time.Since(e.StartedAt) > r.params.StalenessThreshold {
			log.Printf("[INFO] persisted job %s too old (%s), not resumed", e.JobID, time.Since(e.StartedAt).Truncate(time.Second))
			continue
		}
		resumable = append(resumable, e)
	}

	gr := syncs.NewSizedGroup(r.params.ResumeConcurrency, syncs.Context(ctx))
	for _, e := range resumable {
		r.mu.Lock()
		if _, found := r.jobs[e.JobID]; found {
			r.mu.Unlock()
			continue
		}
		r.jobs[e.JobID] = &JobRecord{
			JobID:     e.JobID,
			JobKind:   e.JobKind,
			Status:    StatusActive,
			Stage:     reconnecting,
			StartedAt: e.StartedAt,
		}
		jobCtx, cancel := context.WithCancel(r.baseCtx)
		r.resources[e.JobID] = &jobResources{cancel: cancel, polling: true, resumed: true}
		r.mu.Unlock()

		log.Printf("[INFO] resuming %s (%s), polling only", e.JobID, e.JobKind)
		jobID := e.JobID
		gr.Go(func(gctx context.Context) { r.resumePoll(jobCtx, jobID) })
	}
	gr.Wait()

	// rewrites the stored set without the stale entries
	r.persist()
	r.notifySubs()
	return nil
}

// resumePoll issues the immediate catch-up poll for a resumed job and hands
// off to the interval loop. The first real server answer is authoritative:
// a job the server doesn't know is removed rather than polled forever.
func (r *Registry) resumePoll(ctx context.Context, jobID string) {
	upd, err := r.params.Transport.Snapshot(ctx, jobID)
	switch {
	case err == nil:
		r.Reconcile(jobID, upd)
		go r.pollLoop(ctx, jobID, false)
	case errors.Is(err, ErrUnknownJob):
		log.Printf("[INFO] resumed job %s unknown to server, dropped", jobID)
		r.Stop(jobID)
	default:
		// nothing this tick, keep authoritative handling in the loop
		go r.pollLoop(ctx, jobID, true)
	}
}
