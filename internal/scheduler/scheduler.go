package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is what one job invocation reports.
type Result struct {
	Processed int
	Failed    int
	Skipped   bool
	Reason    string
}

func skipped(reason string) Result {
	return Result{Skipped: true, Reason: reason}
}

// Job is one periodically-triggered unit of background work. Run must be
// idempotent and safe to invoke concurrently with itself; overlap safety
// comes from row claims inside the job, not from the scheduler.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) (Result, error)
}

// Runner drives each job on its own ticker. A failing invocation is retried
// with backoff up to maxRetries; nothing partial ever commits, so the next
// scheduled run simply picks up the unprocessed rows.
type Runner struct {
	jobs       []Job
	log        *logrus.Logger
	maxRetries int
	timeout    time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewRunner(log *logrus.Logger, maxRetries int, timeout time.Duration, jobs ...Job) *Runner {
	return &Runner{
		jobs:       jobs,
		log:        log,
		maxRetries: maxRetries,
		timeout:    timeout,
	}
}

// Start launches one goroutine per job. Each waits a full interval before
// its first run so startup does not stampede the database.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, job := range r.jobs {
		r.wg.Add(1)
		go func(job Job) {
			defer r.wg.Done()
			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					r.runOnce(ctx, job, now.UTC())
				}
			}
		}(job)
	}
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Trigger runs one job by name immediately. Used by the admin surface; the
// jobs' row claims make an overlap with a scheduled run harmless.
func (r *Runner) Trigger(ctx context.Context, name string) (Result, error) {
	for _, job := range r.jobs {
		if job.Name == name {
			return r.invoke(ctx, job, time.Now().UTC())
		}
	}
	return Result{}, fmt.Errorf("unknown job %q", name)
}

// JobNames lists the registered jobs for the admin surface.
func (r *Runner) JobNames() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name)
	}
	return names
}

func (r *Runner) runOnce(ctx context.Context, job Job, now time.Time) {
	start := time.Now()
	result, err := r.invoke(ctx, job, now)
	entry := r.log.WithFields(logrus.Fields{
		"job":      job.Name,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("job failed")
		return
	}
	if result.Skipped {
		entry.WithField("reason", result.Reason).Debug("job skipped")
		return
	}
	entry.WithFields(logrus.Fields{
		"processed": result.Processed,
		"failed":    result.Failed,
	}).Info("job finished")
}

// invoke runs the job with a bounded timeout, retrying on error with
// quadratic backoff.
func (r *Runner) invoke(ctx context.Context, job Job, now time.Time) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		result, err := job.Run(runCtx, now)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < r.maxRetries {
			select {
			case <-ctx.Done():
				return Result{}, lastErr
			case <-time.After(time.Duration(attempt*attempt) * 250 * time.Millisecond):
			}
		}
	}
	return Result{}, lastErr
}
