package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const jobLockPrefix = "scheduler:job:"

// acquireJobLock holds a Redis lease for the job so only one replica runs it
// per tick. Without a locker every call succeeds.
func (s *Scheduler) acquireJobLock(ctx context.Context, job string, ttl time.Duration) (func(), bool) {
	if s.locker == nil {
		return func() {}, true
	}
	lease, err := s.locker.Acquire(ctx, jobLockPrefix+job, ttl)
	if err != nil {
		s.log.Warn("scheduler lock unavailable, running unlocked",
			zap.String("job", job),
			zap.Error(err),
		)
		return func() {}, true
	}
	if lease == nil {
		s.log.Debug("scheduler job held by another replica", zap.String("job", job))
		return nil, false
	}
	return func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("scheduler lock release failed", zap.String("job", job), zap.Error(err))
		}
	}, true
}
