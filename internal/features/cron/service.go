package cron_feature

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = time.Minute

var ErrJobNotFound = errors.New("cron job not found")

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

type CronService interface {
	ListCronJobs() []CronJob
	ExecuteCronJob(ctx context.Context, name string) error
	GetCronJobLogs(name string, limit int) ([]CronJobLog, error)
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
	RegisterJob(job CronJob, fn JobFunc) error
}

type registeredJob struct {
	CronJob
	fn      JobFunc
	entryID cron.EntryID
}

type CronServiceImpl struct {
	repo   CronRepository
	logger *zap.Logger

	scheduler *cron.Cron
	jobs      map[string]*registeredJob
	mu        sync.RWMutex
}

func NewCronService(repo CronRepository, logger *zap.Logger) CronService {
	return &CronServiceImpl{
		repo:      repo,
		logger:    logger,
		scheduler: cron.New(),
		jobs:      make(map[string]*registeredJob),
	}
}

// RegisterJob parses the schedule and adds the job to the scheduler. Inactive
// jobs are listed and can be executed by hand but never fire on their own.
func (s *CronServiceImpl) RegisterJob(job CronJob, fn JobFunc) error {
	schedule, err := cron.ParseStandard(job.Schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("cron job %q already registered", job.Name)
	}

	rj := &registeredJob{CronJob: job, fn: fn}
	if job.Active {
		name := job.Name
		rj.entryID = s.scheduler.Schedule(schedule, cron.FuncJob(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			_ = s.run(ctx, name, "schedule")
		}))
	}
	s.jobs[job.Name] = rj
	return nil
}

func (s *CronServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.logger.Info("Initializing cron scheduler", zap.Int("jobs", len(s.ListCronJobs())))
	s.scheduler.Start()
	return nil
}

func (s *CronServiceImpl) StopScheduler() error {
	ctx := s.scheduler.Stop()
	<-ctx.Done()
	return nil
}

func (s *CronServiceImpl) ListCronJobs() []CronJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CronJob, 0, len(s.jobs))
	for _, rj := range s.jobs {
		job := rj.CronJob
		if rj.entryID != 0 {
			if next := s.scheduler.Entry(rj.entryID).Next; !next.IsZero() {
				job.NextRun = &next
			}
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *CronServiceImpl) ExecuteCronJob(ctx context.Context, name string) error {
	return s.run(ctx, name, "manual")
}

func (s *CronServiceImpl) GetCronJobLogs(name string, limit int) ([]CronJobLog, error) {
	s.mu.RLock()
	_, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	return s.repo.ListLogs(name, limit), nil
}

func (s *CronServiceImpl) run(ctx context.Context, name, trigger string) error {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}

	entry := CronJobLog{CronJobName: name, StartTime: time.Now(), Trigger: trigger}
	err := rj.fn(ctx)
	end := time.Now()
	entry.EndTime = &end
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
		s.logger.Error("Cron job failed", zap.String("job", name), zap.Error(err))
	} else {
		entry.Status = "success"
		s.logger.Debug("Cron job finished", zap.String("job", name), zap.Duration("took", end.Sub(entry.StartTime)))
	}
	s.repo.AppendLog(entry)

	s.mu.Lock()
	rj.LastRun = &entry.StartTime
	s.mu.Unlock()
	return err
}
