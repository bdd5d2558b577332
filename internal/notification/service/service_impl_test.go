package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/notification/domain"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	"github.com/smallbiznis/taskboard/internal/outbox"
	outboxdomain "github.com/smallbiznis/taskboard/internal/outbox/domain"
	outboxrepo "github.com/smallbiznis/taskboard/internal/outbox/repository"
	"github.com/smallbiznis/taskboard/internal/providers/email"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentSMS struct {
	to, body string
}

type fakeSMS struct {
	sent []sentSMS
	err  error
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentSMS{to: to, body: body})
	return nil
}

type fakeEmail struct {
	email.NoOpProvider
	templates []string
	data      []map[string]any
}

func (f *fakeEmail) SendTemplate(ctx context.Context, to []string, name string, data map[string]any) error {
	f.templates = append(f.templates, name)
	f.data = append(f.data, data)
	return nil
}

type fakeOrgs struct {
	orgdomain.Service
	profiles map[snowflake.ID]orgdomain.Profile
}

func (f *fakeOrgs) ListProfiles(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID) ([]orgdomain.Profile, error) {
	var out []orgdomain.Profile
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok && p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeTeams struct {
	teamdomain.Service
	members map[snowflake.ID][]teamdomain.TeamMemberUser
}

func (f *fakeTeams) ListMembers(ctx context.Context, orgID, teamID snowflake.ID) ([]teamdomain.TeamMemberUser, error) {
	return f.members[teamID], nil
}

type fakeTasks struct {
	taskdomain.Service
	due []taskdomain.Task
}

func (f *fakeTasks) ListDue(ctx context.Context, day caldate.Date, afterID snowflake.ID, limit int) ([]taskdomain.Task, error) {
	var out []taskdomain.Task
	for _, t := range f.due {
		if t.ID > afterID && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

type fixture struct {
	svc       *Service
	repo      outboxdomain.Repository
	publisher outboxdomain.Publisher
	sms       *fakeSMS
	email     *fakeEmail
	clock     *clock.FakeClock
	orgID     snowflake.ID
}

func phone(v string) *string { return &v }

func newFixture(t *testing.T, name string, board config.Board, tasks []taskdomain.Task) *fixture {
	t.Helper()
	conn, err := db.OpenSQLiteMemory(name)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&outboxdomain.Event{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC))
	repo := outboxrepo.Provide(conn)
	pub := outbox.NewPublisher(repo, node, clk)

	orgID := snowflake.ID(100)
	orgs := &fakeOrgs{profiles: map[snowflake.ID]orgdomain.Profile{
		1: {ID: 1, OrgID: orgID, FullName: "Ana", Email: "ana@example.com", PhoneE164: phone("+6281100000001")},
		2: {ID: 2, OrgID: orgID, FullName: "Budi", Email: "budi@example.com"},
		3: {ID: 3, OrgID: orgID, FullName: "Citra", Email: "citra@example.com", PhoneE164: phone("+6281100000003")},
	}}
	teams := &fakeTeams{members: map[snowflake.ID][]teamdomain.TeamMemberUser{
		50: {{TeamID: 50, UserID: 1}, {TeamID: 50, UserID: 2}, {TeamID: 50, UserID: 3}},
	}}

	smsProvider := &fakeSMS{}
	mailer := &fakeEmail{}
	svc := NewService(Params{
		Log:       zap.NewNop(),
		Outbox:    repo,
		Publisher: pub,
		Orgs:      orgs,
		Teams:     teams,
		Tasks:     &fakeTasks{due: tasks},
		SMS:       smsProvider,
		Email:     mailer,
		Settings:  config.NewStaticBoardSettings(board),
		Clock:     clk,
	})
	return &fixture{svc: svc, repo: repo, publisher: pub, sms: smsProvider, email: mailer, clock: clk, orgID: orgID}
}

func TestRenderMessages(t *testing.T) {
	msg, ok, err := Render(outboxdomain.EventTaskAssigned, map[string]any{"title": "Ship v2", "due_date": "2026-03-10"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `New task assigned: "Ship v2" (due 2026-03-10)`, msg.Text)

	msg, _, err = Render(outboxdomain.EventTaskAssigned, map[string]any{"title": "No date"})
	require.NoError(t, err)
	assert.Equal(t, `New task assigned: "No date"`, msg.Text)

	msg, _, err = Render(outboxdomain.EventTeamMemberAdded, map[string]any{"team_name": "Ops"})
	require.NoError(t, err)
	assert.Equal(t, `You joined team "Ops"`, msg.Text)

	msg, _, err = Render(outboxdomain.EventProjectTeamAttached, map[string]any{"project_name": "Website"})
	require.NoError(t, err)
	assert.Equal(t, `Your team was added to project "Website"`, msg.Text)

	_, ok, err = Render(outboxdomain.EventOrganizationCreated, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = Render("billing.something", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)

}

func TestRenderFallsBackToDefaultNames(t *testing.T) {
	msg, ok, err := Render(outboxdomain.EventTeamMemberAdded, map[string]any{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `You joined team "Team"`, msg.Text)

	msg, _, err = Render(outboxdomain.EventProjectTeamAttached, map[string]any{"project_name": "  "})
	require.NoError(t, err)
	assert.Equal(t, `Your team was added to project "Project"`, msg.Text)

	msg, _, err = Render(outboxdomain.EventTaskAssigned, map[string]any{"title": nil})
	require.NoError(t, err)
	assert.Equal(t, `New task assigned: "Task"`, msg.Text)
	assert.Equal(t, "Task", msg.Data["title"])

	msg, _, err = Render(outboxdomain.EventTaskDueSoon, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, `Reminder: "Task" is due soon`, msg.Text)
}

func TestDispatchSendsSMSAndSkipsMissingPhones(t *testing.T) {
	f := newFixture(t, "notify_dispatch", config.DefaultBoard(), nil)
	ctx := context.Background()

	require.NoError(t, f.publisher.Publish(ctx, nil, outboxdomain.NewEvent{
		OrgID: f.orgID,
		Type:  outboxdomain.EventTaskAssigned,
		Payload: map[string]any{
			"task_id": "9", "project_id": "8", "assignee_id": "1",
			"title": "Ship v2", "due_date": "2026-03-10",
		},
	}))
	require.NoError(t, f.publisher.Publish(ctx, nil, outboxdomain.NewEvent{
		OrgID:   f.orgID,
		Type:    outboxdomain.EventTeamMemberAdded,
		Payload: map[string]any{"team_id": "50", "team_name": "Ops", "user_id": "2"},
	}))
	require.NoError(t, f.publisher.Publish(ctx, nil, outboxdomain.NewEvent{
		OrgID:   f.orgID,
		Type:    outboxdomain.EventProjectTeamAttached,
		Payload: map[string]any{"project_id": "8", "project_name": "Website", "team_id": "50"},
	}))

	res, err := f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Claimed)
	assert.Equal(t, 3, res.Published)
	assert.Zero(t, res.Failed)

	require.Len(t, f.sms.sent, 3)
	assert.Equal(t, sentSMS{"+6281100000001", `New task assigned: "Ship v2" (due 2026-03-10)`}, f.sms.sent[0])
	assert.Equal(t, sentSMS{"+6281100000001", `Your team was added to project "Website"`}, f.sms.sent[1])
	assert.Equal(t, sentSMS{"+6281100000003", `Your team was added to project "Website"`}, f.sms.sent[2])
	assert.Empty(t, f.email.templates)

	pending, err := f.repo.CountPending(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestDispatchMarksFailuresForRetry(t *testing.T) {
	f := newFixture(t, "notify_retry", config.DefaultBoard(), nil)
	ctx := context.Background()
	f.sms.err = errors.New("twilio 503")

	require.NoError(t, f.publisher.Publish(ctx, nil, outboxdomain.NewEvent{
		OrgID:   f.orgID,
		Type:    outboxdomain.EventTeamMemberAdded,
		Payload: map[string]any{"team_id": "50", "team_name": "Ops", "user_id": "1"},
	}))

	res, err := f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	f.sms.err = nil
	f.clock.Advance(time.Second)
	res, err = f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, `You joined team "Ops"`, f.sms.sent[0].body)
}

func TestDispatchSendsEmailWhenEnabled(t *testing.T) {
	board := config.DefaultBoard()
	board.Notifications.SMS = false
	board.Notifications.Email = true
	f := newFixture(t, "notify_email", board, nil)
	ctx := context.Background()

	require.NoError(t, f.publisher.Publish(ctx, nil, outboxdomain.NewEvent{
		OrgID:   f.orgID,
		Type:    outboxdomain.EventTaskAssigned,
		Payload: map[string]any{"assignee_id": "2", "title": "Write docs"},
	}))

	_, err := f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, f.sms.sent)
	require.Equal(t, []string{email.TemplateTaskAssigned}, f.email.templates)
	assert.Equal(t, "Budi", f.email.data[0]["name"])
	assert.Equal(t, "Write docs", f.email.data[0]["title"])
}

func TestEnqueueDueRemindersOncePerDay(t *testing.T) {
	assignee := snowflake.ID(3)
	day := caldate.New(2026, time.March, 10)
	tasks := []taskdomain.Task{
		{ID: 11, OrgID: 100, ProjectID: 8, Title: "Renew domain", AssigneeID: &assignee},
		{ID: 12, OrgID: 100, ProjectID: 8, Title: "Unassigned"},
		{ID: 13, OrgID: 100, ProjectID: 8, Title: "Pay vendor", AssigneeID: &assignee},
	}
	f := newFixture(t, "notify_reminders", config.DefaultBoard(), tasks)
	ctx := context.Background()

	n, err := f.svc.EnqueueDueReminders(ctx, day, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.EnqueueDueReminders(ctx, day, 2)
	require.NoError(t, err)

	pending, err := f.repo.CountPending(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	_, err = f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, f.sms.sent, 2)
	assert.Equal(t, `Reminder: "Renew domain" is due 2026-03-10`, f.sms.sent[0].body)
	assert.Equal(t, "+6281100000003", f.sms.sent[0].to)
}
