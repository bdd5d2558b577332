package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	notificationdomain "github.com/smallbiznis/taskboard/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotifications struct {
	dispatched  int
	result      notificationdomain.DispatchResult
	dispatchErr error
	reminderDay caldate.Date
	reminderErr error
}

func (f *fakeNotifications) Dispatch(ctx context.Context, limit int) (notificationdomain.DispatchResult, error) {
	f.dispatched++
	return f.result, f.dispatchErr
}

func (f *fakeNotifications) EnqueueDueReminders(ctx context.Context, day caldate.Date, limit int) (int, error) {
	f.reminderDay = day
	return 2, f.reminderErr
}

type fakeAuth struct {
	authdomain.Service
	purged int
}

func (f *fakeAuth) PurgeExpiredSessions(ctx context.Context, limit int) (int64, error) {
	f.purged++
	return 3, nil
}

func newTestScheduler(t *testing.T, notifications *fakeNotifications, auth *fakeAuth, board config.Board, jobs ...string) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	s, err := New(Params{
		Log:           zap.NewNop(),
		Notifications: notifications,
		AuthSvc:       auth,
		Settings:      config.NewStaticBoardSettings(board),
		GenID:         node,
		Clock:         clock.NewFakeClock(time.Date(2026, 3, 9, 20, 30, 0, 0, time.UTC)),
		Config:        Config{EnabledJobs: jobs},
	})
	require.NoError(t, err)
	return s
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "taskboard",
		Environment: "test",
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{
		"service": "taskboard",
		"env":     "test",
		"job":     "timeout_job",
	}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "taskboard_scheduler_job_timeouts_total", labels))

	errorLabels := map[string]string{
		"service": "taskboard",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	assert.Equal(t, 1.0, getCounterValue(t, registry, "taskboard_scheduler_job_errors_total", errorLabels))
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	restore := swapPrometheusRegistry(prometheus.NewRegistry())
	defer restore()

	notifications := &fakeNotifications{result: notificationdomain.DispatchResult{Claimed: 2, Published: 2}}
	auth := &fakeAuth{}
	s := newTestScheduler(t, notifications, auth, config.DefaultBoard())

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, notifications.dispatched)
	assert.Equal(t, 1, auth.purged)
	assert.Equal(t, "2026-03-10", notifications.reminderDay.String())
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	restore := swapPrometheusRegistry(prometheus.NewRegistry())
	defer restore()

	notifications := &fakeNotifications{}
	auth := &fakeAuth{}
	s := newTestScheduler(t, notifications, auth, config.DefaultBoard(), "PURGE_SESSIONS")

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, notifications.dispatched)
	assert.Equal(t, 1, auth.purged)
}

func TestRunOnceWrapsJobErrors(t *testing.T) {
	restore := swapPrometheusRegistry(prometheus.NewRegistry())
	defer restore()

	boom := errors.New("db down")
	notifications := &fakeNotifications{dispatchErr: boom, reminderErr: notificationdomain.ErrReminderLocked}
	s := newTestScheduler(t, notifications, &fakeAuth{}, config.DefaultBoard())

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), JobDispatchOutbox)
	assert.NotErrorIs(t, err, notificationdomain.ErrReminderLocked)
}

func TestReminderDayUsesBoardTimezone(t *testing.T) {
	board := config.DefaultBoard()
	board.Timezone = "Asia/Jakarta"
	s := newTestScheduler(t, &fakeNotifications{}, &fakeAuth{}, board)

	// 20:30 UTC is 03:30 on the 10th in Jakarta, so tomorrow is the 11th.
	assert.Equal(t, "2026-03-11", s.reminderDay().String())
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	obsmetrics.ResetSchedulerMetricsForTest()
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			require.NotNil(t, metric.Counter, "metric %s is not a counter", name)
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
