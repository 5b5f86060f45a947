package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"facilitysync/internal/logger"
	"facilitysync/internal/util"
)

// Workflow runs one action. The returned value is recorded in the job report.
type Workflow func(ctx context.Context, params Params) (any, error)

// Recorder observes job outcomes.
type Recorder interface {
	JobCreated(action string)
	JobFinished(action, status string, elapsed time.Duration)
}

// Report is what gets archived once a job reaches a terminal state.
type Report struct {
	Job      Job           `json:"job"`
	Result   any           `json:"result,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Archiver stores job reports.
type Archiver interface {
	ArchiveReport(ctx context.Context, report Report) error
}

type Options struct {
	MaxConcurrent int64
	Recorder      Recorder
	Archiver      Archiver
	Logger        *slog.Logger
	Now           func() time.Time
	// StatusWriteAttempts bounds retries of a status write that fails; the
	// delay starts at StatusWriteBackoff and doubles.
	StatusWriteAttempts int
	StatusWriteBackoff  time.Duration
}

type Dispatcher struct {
	store     Store
	workflows map[Action]Workflow
	slots     *semaphore.Weighted
	recorder  Recorder
	archiver  Archiver
	logger    *slog.Logger
	now       func() time.Time
	attempts  int
	backoff   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(store Store, workflows map[Action]Workflow, opts Options) *Dispatcher {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.StatusWriteAttempts <= 0 {
		opts.StatusWriteAttempts = 5
	}
	if opts.StatusWriteBackoff <= 0 {
		opts.StatusWriteBackoff = 200 * time.Millisecond
	}
	return &Dispatcher{
		store:     store,
		workflows: workflows,
		slots:     semaphore.NewWeighted(opts.MaxConcurrent),
		recorder:  opts.Recorder,
		archiver:  opts.Archiver,
		logger:    opts.Logger,
		now:       opts.Now,
		attempts:  opts.StatusWriteAttempts,
		backoff:   opts.StatusWriteBackoff,
	}
}

// CreateJob stores a pending job and starts its workflow in the background.
// It returns as soon as the job is stored. Duplicate submissions for the
// same target are accepted.
func (d *Dispatcher) CreateJob(ctx context.Context, action Action, params Params) (Job, error) {
	if err := params.Validate(action); err != nil {
		return Job{}, err
	}
	workflow, ok := d.workflows[action]
	if !ok {
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	now := d.now()
	job := Job{
		ID:        util.NewID(""),
		Action:    action,
		Params:    params,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.Create(ctx, job); err != nil {
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	if d.recorder != nil {
		d.recorder.JobCreated(string(action))
	}

	// The job outlives the request that created it.
	runCtx := logger.WithJobID(context.WithoutCancel(ctx), job.ID)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(runCtx, job, workflow)
	}()
	return job, nil
}

func (d *Dispatcher) Job(ctx context.Context, id string) (Job, error) {
	return d.store.Get(ctx, id)
}

func (d *Dispatcher) Status(ctx context.Context, id string) (Status, error) {
	job, err := d.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// Wait blocks until every started job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) Ping(ctx context.Context) error {
	return d.store.Ping(ctx)
}

func (d *Dispatcher) run(ctx context.Context, job Job, workflow Workflow) {
	log := logger.FromContext(ctx, d.logger).With("action", string(job.Action))

	if err := d.slots.Acquire(ctx, 1); err != nil {
		d.abandon(ctx, log, job, fmt.Errorf("acquire job slot: %w", err))
		return
	}
	defer d.slots.Release(1)

	started := time.Now()
	if _, err := d.transition(ctx, log, job.ID, StatusRunning, ""); err != nil {
		d.abandon(ctx, log, job, fmt.Errorf("mark job running: %w", err))
		return
	}
	log.Info("job started")

	result, runErr := runSafely(ctx, log, workflow, job.Params)

	status, message := StatusSucceeded, ""
	if runErr != nil {
		status, message = StatusFailed, runErr.Error()
		log.Error("job failed", "error", runErr)
	} else {
		log.Info("job succeeded", "duration", time.Since(started).String())
	}

	final, err := d.transition(ctx, log, job.ID, status, message)
	if err != nil {
		log.Error("record job outcome failed", "status", string(status), "error", err)
		return
	}
	d.finish(ctx, log, final, result, time.Since(started))
}

// abandon fails a job that never started running.
func (d *Dispatcher) abandon(ctx context.Context, log *slog.Logger, job Job, cause error) {
	log.Error("job could not start", "error", cause)
	final, err := d.transition(ctx, log, job.ID, StatusFailed, cause.Error())
	if err != nil {
		log.Error("record job outcome failed", "status", string(StatusFailed), "error", err)
		return
	}
	d.finish(ctx, log, final, nil, 0)
}

func (d *Dispatcher) finish(ctx context.Context, log *slog.Logger, final Job, result any, elapsed time.Duration) {
	if d.recorder != nil {
		d.recorder.JobFinished(string(final.Action), string(final.Status), elapsed)
	}
	if d.archiver != nil {
		if err := d.archiver.ArchiveReport(ctx, Report{Job: final, Result: result, Duration: elapsed}); err != nil {
			log.Warn("archive job report failed", "error", err)
		}
	}
}

// transition writes a status change, retrying store failures with
// exponential backoff. Rejected transitions and unknown jobs are not retried.
func (d *Dispatcher) transition(ctx context.Context, log *slog.Logger, id string, to Status, message string) (Job, error) {
	ctx = context.WithoutCancel(ctx)
	delay := d.backoff
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		var job Job
		job, err = d.store.Transition(ctx, id, to, message, d.now())
		if err == nil {
			return job, nil
		}
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrJobNotFound) || attempt == d.attempts {
			break
		}
		log.Warn("job status write failed, retrying", "status", string(to), "attempt", attempt, "error", err)
		time.Sleep(delay)
		delay *= 2
	}
	return Job{}, err
}

func runSafely(ctx context.Context, log *slog.Logger, workflow Workflow, params Params) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error("workflow panicked", "panic", fmt.Sprint(recovered), "stack", string(debug.Stack()))
			err = fmt.Errorf("workflow panicked: %v", recovered)
		}
	}()
	return workflow(ctx, params)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidParams) || errors.Is(err, ErrUnknownAction)
}
