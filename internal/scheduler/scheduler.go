package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	auditcontext "github.com/smallbiznis/taskboard/internal/auditcontext"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	notificationdomain "github.com/smallbiznis/taskboard/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	"github.com/smallbiznis/taskboard/internal/ratelimit"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log           *zap.Logger
	Notifications notificationdomain.Service
	AuthSvc       authdomain.Service
	Settings      *config.BoardSettings
	GenID         *snowflake.Node
	Clock         clock.Clock
	Locker        *ratelimit.Locker `optional:"true"`
	Config        Config            `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	genID         *snowflake.Node
	clock         clock.Clock
	notifications notificationdomain.Service
	authSvc       authdomain.Service
	settings      *config.BoardSettings
	locker        *ratelimit.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Notifications == nil || p.AuthSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		genID:         p.GenID,
		clock:         p.Clock,
		notifications: p.Notifications,
		authSvc:       p.AuthSvc,
		settings:      p.Settings,
		locker:        p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()

	release, ok := s.acquireJobLock(parent, name, timeout)
	if !ok {
		schedMetrics.IncBatchDeferred(name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		return nil
	}
	defer release()

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobDispatchOutbox, func(ctx context.Context) error {
			return s.runJob(ctx, JobDispatchOutbox, s.cfg.BatchSize, 30*time.Second, s.DispatchOutboxJob)
		}},
		{JobDueReminders, func(ctx context.Context) error {
			return s.runJob(ctx, JobDueReminders, s.cfg.BatchSize, time.Minute, s.DueRemindersJob)
		}},
		{JobPurgeSessions, func(ctx context.Context) error {
			return s.runJob(ctx, JobPurgeSessions, s.cfg.SessionPurgeBatch, 30*time.Second, s.PurgeSessionsJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// isJobEnabled treats an empty job list as every job enabled.
func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) DispatchOutboxJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	res, err := s.notifications.Dispatch(ctx, s.cfg.BatchSize)
	run.AddProcessed(res.Published)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobDispatchOutbox, "outbox_events", res.Published)
	if res.Claimed == 0 && err == nil {
		schedMetrics.IncBatchDeferred(JobDispatchOutbox, obsmetrics.SchedulerBatchDeferredReasonEmpty)
	}
	for i := 0; i < res.Failed; i++ {
		run.IncError()
	}
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.dispatch.failed", JobDispatchOutbox, 0, err)
		return err
	}
	return nil
}

// DueRemindersJob enqueues reminders for tasks due ReminderLead from now in
// the board timezone.
func (s *Scheduler) DueRemindersJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	day := s.reminderDay()
	n, err := s.notifications.EnqueueDueReminders(ctx, day, s.cfg.BatchSize)
	run.AddProcessed(n)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobDueReminders, "tasks", n)
	if errors.Is(err, notificationdomain.ErrReminderLocked) {
		schedMetrics.IncBatchDeferred(JobDueReminders, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		return nil
	}
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.reminders.failed", JobDueReminders, 0, err,
			zap.String("due_date", day.String()),
		)
		return err
	}
	return nil
}

func (s *Scheduler) PurgeSessionsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	n, err := s.authSvc.PurgeExpiredSessions(ctx, s.cfg.SessionPurgeBatch)
	run.AddProcessed(int(n))
	obsmetrics.Scheduler().AddBatchProcessed(JobPurgeSessions, "sessions", int(n))
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.sessions.purge_failed", JobPurgeSessions, 0, err)
		return err
	}
	return nil
}

func (s *Scheduler) reminderDay() caldate.Date {
	board := s.settings.Get()
	lead := board.Notifications.ReminderLead
	if lead <= 0 {
		lead = config.DefaultBoard().Notifications.ReminderLead
	}
	return caldate.Of(s.clock.Now().In(board.Location()).Add(lead))
}
