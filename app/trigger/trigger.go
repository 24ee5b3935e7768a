// Package trigger schedules periodic creation of sync jobs against the
// backend and hands the returned job ids to the tracker. Creation is gated by
// optional host-load conditions so heavy syncs don't pile onto a busy machine.
package trigger

import (
	"context"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/syncmon/syncmon/app/conditions"
	"github.com/syncmon/syncmon/app/config"
)

//go:generate moq -out mocks/cron.go -pkg mocks -skip-ensure -fmt goimports . Cron
//go:generate moq -out mocks/creator.go -pkg mocks -skip-ensure -fmt goimports . JobCreator
//go:generate moq -out mocks/tracker.go -pkg mocks -skip-ensure -fmt goimports . Tracker

// Cron interface defines basic robfig/cron methods used by scheduler
type Cron interface {
	Start()
	Stop() context.Context
	Schedule(schedule cron.Schedule, cmd cron.Job) cron.EntryID
}

// JobCreator asks the backend to start a new sync job
type JobCreator interface {
	CreateJob(ctx context.Context, path string) (jobID string, err error)
}

// Tracker begins client-side tracking of a created job
type Tracker interface {
	Start(jobID, jobKind string, notifyOnCompletion bool)
}

// ConditionChecker verifies host-load conditions before a trigger fires
type ConditionChecker interface {
	Check(conditions conditions.Config) (bool, string)
}

// Scheduler wires cron, the job creator and the tracker. Do blocks until the
// context is canceled.
type Scheduler struct {
	Cron
	Creator          JobCreator
	Tracker          Tracker
	ConditionChecker ConditionChecker
	Triggers         []config.Trigger
	CreateTimeout    time.Duration
}

// Do schedules all triggers and runs the blocking loop
func (s *Scheduler) Do(ctx context.Context) error {
	if s.CreateTimeout <= 0 {
		s.CreateTimeout = time.Minute
	}

	for _, tr := range s.Triggers {
		if err := s.schedule(ctx, tr); err != nil {
			return fmt.Errorf("can't schedule trigger %s (%s): %w", tr.Kind, tr.Spec, err)
		}
	}

	s.Start()
	<-ctx.Done()
	log.Print("[DEBUG] trigger scheduler terminate")
	<-s.Stop().Done()
	return nil
}

func (s *Scheduler) schedule(ctx context.Context, tr config.Trigger) error {
	sched, err := cron.ParseStandard(tr.Spec)
	if err != nil {
		return fmt.Errorf("can't parse %s: %w", tr.Spec, err)
	}

	id := s.Schedule(sched, s.triggerFunc(ctx, tr))
	log.Printf("[INFO] trigger %s scheduled, first: %s (%v)", tr.Kind, sched.Next(time.Now()).Format(time.RFC3339), id)
	return nil
}

func (s *Scheduler) triggerFunc(ctx context.Context, tr config.Trigger) cron.FuncJob {
	return func() {
		if tr.Conditions != nil && !s.waitForConditions(ctx, *tr.Conditions, tr.Kind) {
			return
		}

		createCtx, cancel := context.WithTimeout(ctx, s.CreateTimeout)
		defer cancel()

		jobID, err := s.Creator.CreateJob(createCtx, tr.Endpoint)
		if err != nil {
			log.Printf("[WARN] failed to create %s job, %v", tr.Kind, err)
			return
		}
		log.Printf("[INFO] created %s job %s", tr.Kind, jobID)
		s.Tracker.Start(jobID, tr.Kind, tr.Notify)
	}
}

// waitForConditions checks host-load conditions, optionally postponing the
// trigger until they are met or the postpone deadline passes.
// Returns true if the job should be created, false if skipped.
func (s *Scheduler) waitForConditions(ctx context.Context, cond conditions.Config, kind string) bool {
	if s.ConditionChecker == nil || cond.Empty() {
		return true
	}

	met, reason := s.ConditionChecker.Check(cond)
	if met {
		return true
	}

	if cond.MaxPostpone == nil {
		log.Printf("[INFO] trigger %s skipped: %s", kind, reason)
		return false
	}

	deadline := time.Now().Add(*cond.MaxPostpone)
	log.Printf("[INFO] trigger %s postponed: %s, deadline: %s", kind, reason, deadline.Format(time.RFC3339))

	checkInterval := 30 * time.Second
	if cond.CheckInterval != nil {
		checkInterval = *cond.CheckInterval
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	deadlineTimer := time.NewTimer(*cond.MaxPostpone)
	defer deadlineTimer.Stop()

	for {
		select {
		case <-ticker.C:
			met, reason = s.ConditionChecker.Check(cond)
			if met {
				log.Printf("[INFO] conditions met, firing postponed trigger %s", kind)
				return true
			}
			log.Printf("[DEBUG] conditions not met yet for %s: %s", kind, reason)

		case <-deadlineTimer.C:
			log.Printf("[WARN] max postpone reached, firing trigger %s anyway", kind)
			return true

		case <-ctx.Done():
			log.Printf("[INFO] postponed trigger %s canceled", kind)
			return false
		}
	}
}
