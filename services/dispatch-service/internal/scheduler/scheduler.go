// services/dispatch-service/internal/scheduler/scheduler.go

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job is already running")
)

// Job is one scheduled task. Run returns a summary that is logged and
// handed back to manual triggers.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (any, error)
}

// Scheduler runs jobs on cron specs. Every run, scheduled or manual, holds
// the job's lock so a tick runs once even with several replicas.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	timeout time.Duration
	log     logrus.FieldLogger

	mu   sync.RWMutex
	jobs map[string]Job

	ctx    context.Context
	cancel context.CancelFunc
}

func New(loc *time.Location, locker Locker, log logrus.FieldLogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		locker:  locker,
		lockTTL: 30 * time.Minute,
		timeout: 25 * time.Minute,
		log:     log,
		jobs:    make(map[string]Job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job on its cron spec.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.tick(job.Name) }); err != nil {
		return fmt.Errorf("invalid spec %q for job %q: %w", job.Spec, job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

// Jobs lists registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) Start() {
	s.log.WithField("jobs", s.Jobs()).Info("scheduler started")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out, jobs still running")
	}
}

// tick is the cron entry point. RunNow logs the outcome.
func (s *Scheduler) tick(name string) {
	_, _ = s.RunNow(s.ctx, name)
}

// RunNow runs the named job immediately under its lock.
func (s *Scheduler) RunNow(ctx context.Context, name string) (any, error) {
	s.mu.RLock()
	job, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	log := s.log.WithField("job", name)
	lock, acquired, err := s.locker.Acquire(ctx, lockKey(name), s.lockTTL)
	if err != nil {
		log.WithError(err).Error("failed to acquire job lock")
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		log.Info("job already running elsewhere, skipping tick")
		return nil, ErrJobRunning
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.WithError(err).Warn("failed to release job lock")
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	summary, err := job.Run(runCtx)
	log = log.WithField("took", time.Since(start).String())
	if err != nil {
		log.WithError(err).Error("job failed")
		return nil, err
	}
	log.WithField("summary", summary).Info("job finished")
	return summary, nil
}

func lockKey(name string) string {
	return "dispatch:job-lock:" + name
}
