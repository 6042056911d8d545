package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs registered jobs on their cron schedules. A job whose
// previous tick is still running skips the new tick.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     []Job
	names    map[string]struct{}
	locks    map[string]*sync.Mutex
	ids      map[string]cron.EntryID
	location *time.Location
	logger   *slog.Logger
	cancel   context.CancelFunc
}

// NewScheduler creates a scheduler evaluating schedules in loc (UTC when
// nil). Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger, loc *time.Location) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		names:    make(map[string]struct{}),
		locks:    make(map[string]*sync.Mutex),
		ids:      make(map[string]cron.EntryID),
		location: loc,
		logger:   logger,
	}
}

// ParseSchedule checks a 5-field cron expression.
func ParseSchedule(expr string) error {
	_, err := parser().Parse(expr)
	return err
}

func parser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// RegisterJob adds a job. Names must be unique.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start validates every schedule and begins executing jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = cron.New(cron.WithParser(parser()), cron.WithLocation(s.location))

	for _, job := range s.jobs {
		lock := s.locks[job.Name()]
		id, err := s.cron.AddFunc(job.Schedule(), func() { s.run(ctx, job, lock) })
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		s.ids[job.Name()] = id
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs), "location", s.location.String())
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job, lock *sync.Mutex) {
	if !lock.TryLock() {
		s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
		return
	}
	defer lock.Unlock()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
		return
	}
	s.logger.Debug("cron: job completed", "job", job.Name(), "elapsed", time.Since(start))
}

// RunNow executes the named job once, outside its schedule, honouring the
// same no-overlap rule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	lock, ok := s.locks[name]
	var job Job
	for _, j := range s.jobs {
		if j.Name() == name {
			job = j
		}
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("cron: unknown job %q", name)
	}
	if !lock.TryLock() {
		return fmt.Errorf("cron: job %q is already running", name)
	}
	defer lock.Unlock()
	return job.Run(ctx)
}

// Next reports the next activation of each job. Empty before Start.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.jobs))
	if s.cron == nil {
		return out
	}
	for name, id := range s.ids {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
