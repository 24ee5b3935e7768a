package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/syncmon/syncmon/app/store"
)

//go:generate moq -out mocks/transport.go -pkg mocks -skip-ensure -fmt goimports . Transport
//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// Transport delivers job state from the backend over both channels
type Transport interface {
	// Listen opens the push channel for the job. The returned channel carries
	// updates in server send order; a connection-broken update is sent and the
	// channel closed when the subscription fails. No self-retry.
	Listen(ctx context.Context, jobID string) (<-chan Update, error)
	// Snapshot issues one point-in-time poll for the job
	Snapshot(ctx context.Context, jobID string) (Update, error)
}

// Store persists the non-terminal active set between restarts
type Store interface {
	SaveActive(jobs []store.ActiveJob) error
	LoadActive() ([]store.ActiveJob, error)
}

// Notifier delivers terminal-state notifications
type Notifier interface {
	Send(ctx context.Context, subj, text string) error
	IsOnError() bool
	IsOnCompletion() bool
	MakeErrorHTML(jobKind, jobID, errorLog string) (string, error)
	MakeCompletionHTML(jobKind, jobID string) (string, error)
}

// ErrUnknownJob is returned by Transport.Snapshot when the server doesn't
// recognize the job id. Polling started by resume fails closed on it.
var ErrUnknownJob = errors.New("job unknown to server")

// ErrNoData is returned by Transport.Snapshot when the tick produced no
// usable data (transport failure, non-2xx, success=false envelope)
var ErrNoData = errors.New("no data this tick")

// Params configures Registry
type Params struct {
	Transport          Transport
	Store              Store
	Notifier           Notifier
	PollInterval       time.Duration // fixed poll fallback cadence
	GraceWindow        time.Duration // terminal record stays visible this long
	StalenessThreshold time.Duration // max age of a persisted entry eligible for resume
	NotifyTimeout      time.Duration
	ResumeConcurrency  int
}

// jobResources bundles everything active for one tracked job so teardown is
// guaranteed and idempotent
type jobResources struct {
	cancel      context.CancelFunc // stops push listener and poll loop
	polling     bool               // interval poller engaged
	resumed     bool               // polling started by resume, first answer authoritative
	removeTimer *time.Timer        // grace-window removal, set once by the completion gate
}

// Registry is the authoritative in-memory map of tracked jobs. All mutations
// go through reconcile under one lock; UI code only reads snapshots.
type Registry struct {
	params Params

	mu        sync.Mutex
	jobs      map[string]*JobRecord
	resources map[string]*jobResources
	fired     map[string]bool // completion gate: terminal action done
	subs      []chan struct{}
	resumed   bool // Resume guard, runs once per session

	baseCtx context.Context
	close   context.CancelFunc
}

// NewRegistry makes a registry with given collaborators. Defaults applied for
// zero intervals.
func NewRegistry(p Params) *Registry {
	if p.PollInterval <= 0 {
		p.PollInterval = 2 * time.Second
	}
	if p.GraceWindow <= 0 {
		p.GraceWindow = 5 * time.Second
	}
	if p.StalenessThreshold <= 0 {
		p.StalenessThreshold = 30 * time.Minute
	}
	if p.NotifyTimeout <= 0 {
		p.NotifyTimeout = 30 * time.Second
	}
	if p.ResumeConcurrency <= 0 {
		p.ResumeConcurrency = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		params:    p,
		jobs:      map[string]*JobRecord{},
		resources: map[string]*jobResources{},
		fired:     map[string]bool{},
		baseCtx:   ctx,
		close:     cancel,
	}
}

// Start begins tracking a job. Idempotent: a second call for an id already
// tracked is a no-op, so overlapping callers can't double the transports.
func (r *Registry) Start(jobID, jobKind string, notifyOnCompletion bool) {
	r.mu.Lock()
	if _, found := r.jobs[jobID]; found {
		r.mu.Unlock()
		log.Printf("[DEBUG] already tracking %s, ignored", jobID)
		return
	}

	r.jobs[jobID] = &JobRecord{
		JobID:              jobID,
		JobKind:            jobKind,
		Status:             StatusConnecting,
		NotifyOnCompletion: notifyOnCompletion,
		StartedAt:          time.Now(),
	}
	ctx, cancel := context.WithCancel(r.baseCtx)
	r.resources[jobID] = &jobResources{cancel: cancel}
	r.mu.Unlock()

	log.Printf("[INFO] tracking started for %s (%s)", jobID, jobKind)

	go r.listenPush(ctx, jobID)
	go r.safetyPoll(ctx, jobID) // one immediate poll in case push is slow to connect

	r.persist()
	r.notifySubs()
}

// Stop ends tracking on user cancel: tears down resources and removes the
// record immediately, bypassing the grace window. Safe in any state.
func (r *Registry) Stop(jobID string) {
	r.mu.Lock()
	res, found := r.resources[jobID]
	if found {
		res.cancel()
		if res.removeTimer != nil {
			res.removeTimer.Stop()
		}
	}
	_, hadRecord := r.jobs[jobID]
	delete(r.jobs, jobID)
	delete(r.resources, jobID)
	delete(r.fired, jobID)
	r.mu.Unlock()

	if !hadRecord {
		return
	}
	log.Printf("[INFO] tracking stopped for %s", jobID)
	r.persist()
	r.notifySubs()
}

// Close tears down all tracked jobs, used on application shutdown
func (r *Registry) Close() {
	r.close()
	r.mu.Lock()
	for id, res := range r.resources {
		res.cancel()
		if res.removeTimer != nil {
			res.removeTimer.Stop()
		}
		delete(r.resources, id)
	}
	r.mu.Unlock()
}

// Snapshot returns a deep copy of the current registry for rendering
func (r *Registry) Snapshot() map[string]JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make(map[string]JobRecord, len(r.jobs))
	for id, rec := range r.jobs {
		cp := *rec
		cp.Documents = append([]Document(nil), rec.Documents...)
		res[id] = cp
	}
	return res
}

// Get returns one record and whether it is tracked
func (r *Registry) Get(jobID string) (JobRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, found := r.jobs[jobID]
	if !found {
		return JobRecord{}, false
	}
	cp := *rec
	cp.Documents = append([]Document(nil), rec.Documents...)
	return cp, true
}

// Subscribe returns a channel signaled (non-blocking) after every registry
// change. Multiple UI surfaces can subscribe independently.
func (r *Registry) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// Reconcile merges an update for a job into the registry. The single entry
// point for both transports; an update for an id no longer tracked is a
// silent no-op (covers in-flight responses racing Stop).
func (r *Registry) Reconcile(jobID string, upd Update) {
	if upd.Kind == KindConnectionBroken {
		r.pushBroken(jobID)
		return
	}

	r.mu.Lock()
	rec, found := r.jobs[jobID]
	if !found {
		r.mu.Unlock()
		log.Printf("[DEBUG] update for untracked %s discarded", jobID)
		return
	}

	reconcile(rec, upd)

	var fireTerminal bool
	var recCopy JobRecord
	if rec.Status.Terminal() && !r.fired[jobID] {
		r.fired[jobID] = true
		fireTerminal = true
		recCopy = *rec
		if res, ok := r.resources[jobID]; ok {
			res.cancel() // terminal reached, all transports down
			res.removeTimer = time.AfterFunc(r.params.GraceWindow, func() { r.remove(jobID) })
		}
	}
	r.mu.Unlock()

	if fireTerminal {
		log.Printf("[INFO] job %s reached %s", jobID, recCopy.Status)
		r.sendNotification(recCopy)
	}

	r.persist()
	r.notifySubs()
}

// pushBroken engages the poll fallback on the first broken signal. Push
// failures are common in this environment, a redundant poll is cheaper than a
// silent stall, so the transition is not debounced.
func (r *Registry) pushBroken(jobID string) {
	r.mu.Lock()
	res, found := r.resources[jobID]
	if !found || res.polling || r.fired[jobID] {
		r.mu.Unlock()
		return
	}
	res.polling = true
	ctx, cancel := context.WithCancel(r.baseCtx)
	prev := res.cancel
	res.cancel = func() { prev(); cancel() }
	r.mu.Unlock()

	log.Printf("[INFO] push channel broken for %s, falling back to polling", jobID)
	go r.pollLoop(ctx, jobID, false)
}

// listenPush runs the push subscription until terminal teardown or broken
func (r *Registry) listenPush(ctx context.Context, jobID string) {
	ch, err := r.params.Transport.Listen(ctx, jobID)
	if err != nil {
		log.Printf("[WARN] can't open push channel for %s, %v", jobID, err)
		r.pushBroken(jobID)
		return
	}
	for upd := range ch {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.Reconcile(jobID, upd)
		if upd.Kind == KindConnectionBroken {
			return
		}
	}
}

// safetyPoll fires the single immediate poll issued at Start
func (r *Registry) safetyPoll(ctx context.Context, jobID string) {
	upd, err := r.params.Transport.Snapshot(ctx, jobID)
	if err != nil {
		log.Printf("[DEBUG] safety poll for %s got nothing, %v", jobID, err)
		return
	}
	r.Reconcile(jobID, upd)
}

// pollLoop polls on the fixed interval until canceled. Each tick is an
// independent cheap idempotent read, no overlap control needed. When the loop
// was started by resume the first server answer is authoritative and an
// unknown job fails closed.
func (r *Registry) pollLoop(ctx context.Context, jobID string, resumed bool) {
	ticker := time.NewTicker(r.params.PollInterval)
	defer ticker.Stop()

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			upd, err := r.params.Transport.Snapshot(ctx, jobID)
			if err != nil {
				if resumed && first && errors.Is(err, ErrUnknownJob) {
					log.Printf("[INFO] resumed job %s unknown to server, dropped", jobID)
					r.Stop(jobID)
					return
				}
				if !errors.Is(err, ErrNoData) && ctx.Err() == nil {
					log.Printf("[DEBUG] poll for %s failed, %v", jobID, err)
				}
				continue
			}
			first = false
			r.Reconcile(jobID, upd)
		}
	}
}

// remove deletes the record after the grace window expired
func (r *Registry) remove(jobID string) {
	r.mu.Lock()
	_, found := r.jobs[jobID]
	delete(r.jobs, jobID)
	delete(r.resources, jobID)
	delete(r.fired, jobID)
	r.mu.Unlock()

	if !found {
		return
	}
	log.Printf("[DEBUG] removed %s after grace window", jobID)
	r.persist()
	r.notifySubs()
}

// persist mirrors the non-terminal set to durable storage. Full-replace
// snapshot, so concurrent writers can't corrupt each other.
func (r *Registry) persist() {
	if r.params.Store == nil {
		return
	}
	r.mu.Lock()
	active := make([]store.ActiveJob, 0, len(r.jobs))
	for _, rec := range r.jobs {
		if rec.Status.Terminal() {
			continue
		}
		active = append(active, store.ActiveJob{JobID: rec.JobID, JobKind: rec.JobKind, StartedAt: rec.StartedAt})
	}
	r.mu.Unlock()

	if err := r.params.Store.SaveActive(active); err != nil {
		log.Printf("[WARN] failed to persist active set, %v", err)
	}
}

func (r *Registry) notifySubs() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// sendNotification dispatches the one-time terminal notification
func (r *Registry) sendNotification(rec JobRecord) {
	if r.params.Notifier == nil || !rec.NotifyOnCompletion {
		return
	}

	ctx, cancel := context.WithTimeout(r.baseCtx, r.params.NotifyTimeout)
	defer cancel()

	var subj, msg string
	var err error
	switch {
	case rec.Status == StatusError && r.params.Notifier.IsOnError():
		subj = "failed sync " + rec.JobKind
		msg, err = r.params.Notifier.MakeErrorHTML(rec.JobKind, rec.JobID, rec.ErrorMsg)
	case rec.Status == StatusComplete && r.params.Notifier.IsOnCompletion():
		subj = "completed sync " + rec.JobKind
		msg, err = r.params.Notifier.MakeCompletionHTML(rec.JobKind, rec.JobID)
	default:
		return
	}
	if err != nil {
		log.Printf("[WARN] can't make notification for %s, %v", rec.JobID, err)
		return
	}
	if err := r.params.Notifier.Send(ctx, subj, msg); err != nil {
		log.Printf("[WARN] failed to send notification for %s, %v", rec.JobID, err)
	}
}
