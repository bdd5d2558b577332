package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	outboxdomain "github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/internal/providers/email"
	"github.com/smallbiznis/taskboard/internal/providers/sms"
	"github.com/smallbiznis/taskboard/internal/ratelimit"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	claimLease       = 2 * time.Minute
	reminderLockTTL  = 5 * time.Minute
	reminderLockKey  = "notification:due_reminders:"
	defaultBatchSize = 50
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Outbox    outboxdomain.Repository
	Publisher outboxdomain.Publisher
	Orgs      orgdomain.Service
	Teams     teamdomain.Service
	Tasks     taskdomain.Service
	SMS       sms.Provider   `optional:"true"`
	Email     email.Provider `optional:"true"`
	Settings  *config.BoardSettings
	Clock     clock.Clock
	Locker    *ratelimit.Locker   `optional:"true"`
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	outbox    outboxdomain.Repository
	publisher outboxdomain.Publisher
	orgs      orgdomain.Service
	teams     teamdomain.Service
	tasks     taskdomain.Service
	sms       sms.Provider
	email     email.Provider
	settings  *config.BoardSettings
	clock     clock.Clock
	locker    *ratelimit.Locker
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	smsProvider := p.SMS
	if smsProvider == nil {
		smsProvider = &sms.NoOpProvider{}
	}
	mailer := p.Email
	if mailer == nil {
		mailer = &email.NoOpProvider{}
	}
	return &Service{
		log:       p.Log.Named("notification.service"),
		outbox:    p.Outbox,
		publisher: p.Publisher,
		orgs:      p.Orgs,
		teams:     p.Teams,
		tasks:     p.Tasks,
		sms:       smsProvider,
		email:     mailer,
		settings:  p.Settings,
		clock:     p.Clock,
		locker:    p.Locker,
		metrics:   p.Metrics,
	}
}

func (s *Service) Dispatch(ctx context.Context, limit int) (domain.DispatchResult, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}
	board := s.settings.Get()
	now := s.clock.Now()

	events, err := s.outbox.Claim(ctx, now, claimLease, limit, board.Notifications.MaxAttempts)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	result := domain.DispatchResult{Claimed: len(events)}
	var errs error
	for i := range events {
		event := events[i]
		if err := ctx.Err(); err != nil {
			return result, errors.Join(errs, err)
		}
		log := s.log.With(
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", event.EventType),
			zap.String("org_id", event.OrgID.String()),
		)

		if deliverErr := s.deliver(ctx, event, board); deliverErr != nil {
			result.Failed++
			log.Warn("notification delivery failed",
				zap.Int("attempt", event.Attempts+1),
				zap.Error(deliverErr),
			)
			if err := s.outbox.MarkFailed(ctx, event.ID, deliverErr.Error()); err != nil {
				errs = errors.Join(errs, err)
			}
			continue
		}
		if err := s.outbox.MarkPublished(ctx, event.ID, s.clock.Now()); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		result.Published++
	}
	return result, errs
}

func (s *Service) deliver(ctx context.Context, event outboxdomain.Event, board config.Board) error {
	payload := map[string]any(event.Payload)
	msg, ok, err := Render(event.EventType, payload)
	if err != nil || !ok {
		return err
	}

	userIDs, err := s.recipients(ctx, event.OrgID, event.EventType, payload)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	profiles, err := s.orgs.ListProfiles(ctx, event.OrgID, userIDs)
	if err != nil {
		return err
	}

	var errs error
	for _, profile := range profiles {
		if board.Notifications.SMS {
			errs = errors.Join(errs, s.sendSMS(ctx, event.EventType, profile, msg))
		}
		if board.Notifications.Email {
			errs = errors.Join(errs, s.sendEmail(ctx, event.EventType, profile, msg))
		}
	}
	return errs
}

func (s *Service) recipients(ctx context.Context, orgID snowflake.ID, eventType string, payload map[string]any) ([]snowflake.ID, error) {
	switch eventType {
	case outboxdomain.EventTaskAssigned, outboxdomain.EventTaskDueSoon:
		id, ok := payloadID(payload, "assignee_id")
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		return []snowflake.ID{id}, nil
	case outboxdomain.EventTeamMemberAdded:
		id, ok := payloadID(payload, "user_id")
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		return []snowflake.ID{id}, nil
	case outboxdomain.EventProjectTeamAttached:
		teamID, ok := payloadID(payload, "team_id")
		if !ok {
			return nil, domain.ErrInvalidPayload
		}
		members, err := s.teams.ListMembers(ctx, orgID, teamID)
		if err != nil {
			if errors.Is(err, teamdomain.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		ids := make([]snowflake.ID, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		return ids, nil
	default:
		return nil, nil
	}
}

func (s *Service) sendSMS(ctx context.Context, eventType string, profile orgdomain.Profile, msg domain.Message) error {
	if profile.PhoneE164 == nil || strings.TrimSpace(*profile.PhoneE164) == "" {
		s.log.Debug("recipient has no phone number",
			zap.String("event_type", eventType),
			zap.String("user_id", profile.ID.String()),
		)
		return nil
	}
	err := s.sms.Send(ctx, strings.TrimSpace(*profile.PhoneE164), msg.Text)
	s.metrics.RecordNotification(ctx, domain.ChannelSMS, eventType, err)
	if err != nil {
		return fmt.Errorf("sms to user %s: %w", profile.ID, err)
	}
	return nil
}

func (s *Service) sendEmail(ctx context.Context, eventType string, profile orgdomain.Profile, msg domain.Message) error {
	to := strings.TrimSpace(profile.Email)
	if to == "" {
		return nil
	}
	var err error
	if msg.Template != "" {
		data := make(map[string]any, len(msg.Data)+1)
		for k, v := range msg.Data {
			data[k] = v
		}
		data["name"] = profile.FullName
		err = s.email.SendTemplate(ctx, []string{to}, msg.Template, data)
	} else {
		err = s.email.Send(ctx, []string{to}, msg.Text, "<p>"+html.EscapeString(msg.Text)+"</p>")
	}
	s.metrics.RecordNotification(ctx, domain.ChannelEmail, eventType, err)
	if err != nil {
		return fmt.Errorf("email to user %s: %w", profile.ID, err)
	}
	return nil
}

// EnqueueDueReminders pages through tasks due on day. Each reminder is keyed
// by task and day so reruns on the same day publish nothing new.
func (s *Service) EnqueueDueReminders(ctx context.Context, day caldate.Date, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}

	if s.locker != nil {
		lease, err := s.locker.Acquire(ctx, reminderLockKey+day.String(), reminderLockTTL)
		if err != nil {
			return 0, err
		}
		if lease == nil {
			return 0, domain.ErrReminderLocked
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("failed to release reminder lock", zap.Error(err))
			}
		}()
	}

	var (
		afterID  snowflake.ID
		enqueued int
	)
	for {
		tasks, err := s.tasks.ListDue(ctx, day, afterID, limit)
		if err != nil {
			return enqueued, err
		}
		for _, task := range tasks {
			afterID = task.ID
			if task.AssigneeID == nil {
				continue
			}
			err := s.publisher.Publish(ctx, nil, outboxdomain.NewEvent{
				OrgID: task.OrgID,
				Type:  outboxdomain.EventTaskDueSoon,
				Payload: map[string]any{
					"task_id":     task.ID.String(),
					"project_id":  task.ProjectID.String(),
					"assignee_id": task.AssigneeID.String(),
					"title":       task.Title,
					"due_date":    day.String(),
				},
				DedupeKey: fmt.Sprintf("%s:%s:%s", outboxdomain.EventTaskDueSoon, task.ID, day),
			})
			if err != nil {
				return enqueued, err
			}
			enqueued++
		}
		if len(tasks) < limit {
			return enqueued, nil
		}
	}
}
