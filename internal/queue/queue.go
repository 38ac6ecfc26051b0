package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/videowizard/render-api/internal/engine"
	"github.com/videowizard/render-api/internal/model"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotCancellable = errors.New("job is not cancellable")
)

// Config holds the queue's output settings.
type Config struct {
	// RendersDir is where output files are written, named by job id.
	RendersDir string

	// PublicURL is the base used to build result locators.
	PublicURL string

	// RenderTimeout bounds a single render. Zero disables the watchdog,
	// matching the engine's own contract: a render that never settles
	// stalls the queue.
	RenderTimeout time.Duration
}

// Notifier observes job snapshots as the queue writes them.
type Notifier func(job model.Job)

// Queue serializes render jobs onto a single execution pipeline. The
// composition engine is a singleton resource: at most one render is in flight
// at any time, and jobs run in strict creation order. One job's failure never
// stops the pipeline.
type Queue struct {
	cfg      Config
	eng      engine.Engine
	registry *Registry
	log      *logrus.Logger
	notify   Notifier

	// mu guards status transitions and the cancel handles; the registry
	// has its own lock for plain reads.
	mu      sync.Mutex
	cancels map[string]func()

	// pending is the unbounded FIFO of job ids awaiting their turn.
	// Appends never block, so CreateJob stays synchronous no matter how
	// deep the backlog gets.
	pendingMu sync.Mutex
	pending   []string
	wake      chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg Config, eng engine.Engine, registry *Registry, log *logrus.Logger) *Queue {
	return &Queue{
		cfg:      cfg,
		eng:      eng,
		registry: registry,
		log:      log,
		cancels:  make(map[string]func()),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// SetNotifier registers a hook invoked with every snapshot the queue writes.
// Must be called before Start.
func (q *Queue) SetNotifier(fn Notifier) {
	q.notify = fn
}

// Start launches the worker loop.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
}

// Stop shuts the worker down after the in-flight render settles.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
		q.wg.Wait()
	})
}

// CreateJob registers a queued job and appends it to the execution pipeline.
// It returns the job id immediately and never fails: execution-time errors
// are absorbed into job state, discovered by polling.
func (q *Queue) CreateJob(req model.RenderRequest) string {
	id := uuid.New().String()
	job := model.Job{
		ID:        id,
		Status:    model.JobStatusQueued,
		Request:   req,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	q.registry.Set(id, job)
	// Not started yet: the handle drops the entry so its turn is skipped.
	q.cancels[id] = func() {
		q.registry.Delete(id)
	}
	q.mu.Unlock()

	q.enqueue(id)

	subtitles := 0
	if req.InputProps != nil {
		subtitles = len(req.InputProps.Subtitles)
	}
	q.log.WithFields(logrus.Fields{
		"job_id":      id,
		"composition": req.CompositionID,
		"subtitles":   subtitles,
	}).Info("render job queued")

	return id
}

// Get returns the current snapshot for a job.
func (q *Queue) Get(id string) (model.Job, bool) {
	return q.registry.Get(id)
}

// List returns snapshots of all tracked jobs.
func (q *Queue) List() []model.Job {
	return q.registry.List()
}

// Cancel requests cooperative cancellation of a job. A queued job never
// starts; an in-progress job has its engine cancel signal raised and settles
// as failed once the engine aborts.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	job, ok := q.registry.Get(id)
	if !ok {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	if !job.Status.Cancellable() {
		q.mu.Unlock()
		return ErrJobNotCancellable
	}
	cancel := q.cancels[id]
	delete(q.cancels, id)
	if cancel != nil {
		cancel()
	}
	q.mu.Unlock()

	q.log.WithField("job_id", id).Info("render job cancelled")
	return nil
}

// EvictTerminal removes completed and failed jobs older than ttl along with
// their output files, and returns how many were evicted. A ttl of zero or
// less evicts nothing.
func (q *Queue) EvictTerminal(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for _, job := range q.registry.List() {
		if !job.Status.Terminal() || job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		q.mu.Lock()
		q.registry.Delete(job.ID)
		q.mu.Unlock()
		if err := os.Remove(q.outputPath(job.ID)); err != nil && !os.IsNotExist(err) {
			q.log.WithError(err).WithField("job_id", job.ID).Warn("failed to remove evicted output file")
		}
		evicted++
	}
	if evicted > 0 {
		q.log.WithField("evicted", evicted).Info("evicted terminal render jobs")
	}
	return evicted
}

func (q *Queue) enqueue(id string) {
	q.pendingMu.Lock()
	q.pending = append(q.pending, id)
	q.pendingMu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) popPending() (string, bool) {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()
	if len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	return id, true
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		id, ok := q.popPending()
		if !ok {
			select {
			case <-q.stopCh:
				return
			case <-q.wake:
			}
			continue
		}
		q.process(id)
	}
}

func (q *Queue) process(id string) {
	q.mu.Lock()
	job, ok := q.registry.Get(id)
	if !ok || job.Status != model.JobStatusQueued {
		q.mu.Unlock()
		q.log.WithField("job_id", id).Debug("skipping job removed before its turn")
		return
	}
	sig := engine.NewCancelSignal()
	q.cancels[id] = sig.Signal
	started := time.Now()
	fraction := 0.0
	job.Status = model.JobStatusInProgress
	job.Progress = &fraction
	job.StartedAt = &started
	q.registry.Set(id, job)
	q.mu.Unlock()
	q.notifyJob(job)

	err := q.render(job, sig)

	completed := time.Now()
	q.mu.Lock()
	delete(q.cancels, id)
	job.Progress = nil
	job.CompletedAt = &completed
	if err != nil {
		job.Status = model.JobStatusFailed
		job.Error = &model.JobError{Message: err.Error(), Cause: causeOf(err)}
	} else {
		job.Status = model.JobStatusCompleted
		job.VideoURL = q.resultURL(id)
	}
	q.registry.Set(id, job)
	q.mu.Unlock()
	q.notifyJob(job)

	if err != nil {
		q.log.WithError(err).WithField("job_id", id).Error("render job failed")
	} else {
		q.log.WithFields(logrus.Fields{
			"job_id":   id,
			"duration": completed.Sub(started).String(),
			"output":   job.VideoURL,
		}).Info("render job completed")
	}
}

func (q *Queue) render(job model.Job, sig *engine.CancelSignal) error {
	ctx := context.Background()
	if q.cfg.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.RenderTimeout)
		defer cancel()
	}

	props, err := json.Marshal(job.Request.InputProps)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal input props")
	}

	comp, err := q.eng.SelectComposition(ctx, job.Request.CompositionID, props)
	if err != nil {
		return err
	}

	return q.eng.Render(ctx, engine.RenderSpec{
		CompositionID: comp.ID,
		InputProps:    props,
		OutputPath:    q.outputPath(job.ID),
		Cancel:        sig,
		OnProgress: func(fraction float64) {
			q.mu.Lock()
			cur, ok := q.registry.Get(job.ID)
			if !ok || cur.Status != model.JobStatusInProgress {
				q.mu.Unlock()
				return
			}
			cur.Progress = &fraction
			q.registry.Set(job.ID, cur)
			q.mu.Unlock()
			q.notifyJob(cur)
		},
	})
}

func (q *Queue) notifyJob(job model.Job) {
	if q.notify != nil {
		q.notify(job)
	}
}

func (q *Queue) outputPath(id string) string {
	return filepath.Join(q.cfg.RendersDir, id+".mp4")
}

func (q *Queue) resultURL(id string) string {
	return fmt.Sprintf("%s/renders/%s.mp4", strings.TrimRight(q.cfg.PublicURL, "/"), id)
}

func causeOf(err error) string {
	if cause := pkgerrors.Cause(err); cause != nil && cause != err {
		return cause.Error()
	}
	return ""
}
