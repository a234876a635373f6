package jobs

import (
	"context"
	"log/slog"
	"time"
)

const (
	JobAuditRecord = "audit_record"

	defaultQueueSize  = 128
	defaultJobTimeout = 5 * time.Second
)

type Service struct {
	queue   chan job
	timeout time.Duration
}

type job struct {
	Type      string
	CompanyID string
	Run       func(context.Context) error
}

func New(queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Service{
		queue:   make(chan job, queueSize),
		timeout: defaultJobTimeout,
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Enqueue schedules run on the worker. A full queue drops the job.
func (s *Service) Enqueue(jobType, companyID string, run func(context.Context) error) bool {
	select {
	case s.queue <- job{Type: jobType, CompanyID: companyID, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "companyId", companyID)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, companyID string, run func(context.Context) error) error {
	return s.runJob(ctx, job{Type: jobType, CompanyID: companyID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "companyId", j.CompanyID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) error {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	start := time.Now()
	err := j.Run(jobCtx)
	slog.Debug("job finished", "jobType", j.Type, "companyId", j.CompanyID, "durationMs", time.Since(start).Milliseconds(), "failed", err != nil)
	return err
}
