package service

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/password"
	"github.com/smallbiznis/taskboard/internal/auth/repository"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedMail struct {
	to       []string
	template string
	data     map[string]any
}

type captureEmail struct {
	mu   sync.Mutex
	sent []capturedMail
}

func (c *captureEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (c *captureEmail) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, capturedMail{to: to, template: templateName, data: data})
	return nil
}

type denyAfter struct {
	calls int
	limit int
}

func (d *denyAfter) Allow(ctx context.Context, ip, email string) (bool, time.Duration, error) {
	d.calls++
	return d.calls <= d.limit, time.Second, nil
}

type fixture struct {
	svc   authdomain.Service
	repo  authdomain.Repository
	clock *clock.FakeClock
	mail  *captureEmail
}

func newFixture(t *testing.T, limiter AttemptLimiter) fixture {
	t.Helper()

	dbConn, err := db.OpenSQLiteMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}, &authdomain.PasswordReset{}))

	repo, sessionRepo, resetRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	mail := &captureEmail{}
	svc := New(Params{
		Log:         zap.NewNop(),
		Cfg:         config.Config{PublicBaseURL: "http://board.local"},
		Repo:        repo,
		SessionRepo: sessionRepo,
		ResetRepo:   resetRepo,
		GenID:       node,
		Clock:       clk,
		Limiter:     limiter,
		Email:       mail,
	})
	return fixture{svc: svc, repo: repo, clock: clk, mail: mail}
}

func TestCreateUserValidates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "not-an-email", Password: "long-enough"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidEmail)

	_, err = f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "ana@example.com", Password: "short"})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)

	user, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: " Ana@Example.com ", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "ana", user.DisplayName)
	require.NotNil(t, user.PasswordHash)
	assert.NotContains(t, *user.PasswordHash, "long-enough")

	_, err = f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "ana@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "alice@example.com", Password: "correct-password", DisplayName: "Alice"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Email: "nobody@example.com", Password: "correct-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	result, err := f.svc.Login(ctx, authdomain.LoginRequest{Email: "ALICE@example.com", Password: "correct-password", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RawToken)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), result.ExpiresAt)
	assert.Equal(t, "Alice", result.Session.Metadata["display_name"])

	session, err := f.svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, session.ID)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, authdomain.ErrInvalidSession)

	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionExpired)

	second, err := f.svc.Login(ctx, authdomain.LoginRequest{Email: "alice@example.com", Password: "correct-password"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx, second.RawToken))
	_, err = f.svc.Authenticate(ctx, second.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)

	purged, err := f.svc.PurgeExpiredSessions(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestSessionOrgContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "org@example.com", Password: "correct-password"})
	require.NoError(t, err)
	result, err := f.svc.Login(ctx, authdomain.LoginRequest{Email: "org@example.com", Password: "correct-password"})
	require.NoError(t, err)

	active := int64(42)
	require.NoError(t, f.svc.UpdateSessionOrgContext(ctx, result.SessionID, &active, []int64{42, 43}))

	session, err := f.svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	require.NotNil(t, session.ActiveOrgID)
	assert.Equal(t, int64(42), *session.ActiveOrgID)
	assert.Equal(t, []int64{42, 43}, []int64(session.OrgIDs))
}

func TestLoginUpgradesOutdatedHash(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	current := password.Current
	password.Current = password.Params{Memory: 8 * 1024, Time: 1, Threads: 1, KeyLen: 32}
	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "old@example.com", Password: "correct-password"})
	password.Current = current
	require.NoError(t, err)

	before, err := f.repo.FindByEmail(ctx, "old@example.com")
	require.NoError(t, err)
	require.True(t, password.NeedsRehash(*before.PasswordHash))

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Email: "old@example.com", Password: "correct-password"})
	require.NoError(t, err)

	after, err := f.repo.FindByEmail(ctx, "old@example.com")
	require.NoError(t, err)
	assert.False(t, password.NeedsRehash(*after.PasswordHash))
	assert.True(t, password.Verify("correct-password", *after.PasswordHash))
}

func TestLoginThrottled(t *testing.T) {
	f := newFixture(t, &denyAfter{limit: 1})
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "bob@example.com", Password: "correct-password"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Email: "bob@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Email: "bob@example.com", Password: "correct-password"})
	assert.ErrorIs(t, err, authdomain.ErrTooManyAttempts)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	user, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "carol@example.com", Password: "first-password", IsDefault: true})
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, user.ID, "not-the-password", "second-password")
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	err = f.svc.ChangePassword(ctx, user.ID, "first-password", "short")
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "first-password", "second-password"))

	updated, err := f.svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsDefault)

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Email: "carol@example.com", Password: "second-password"})
	assert.NoError(t, err)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "dave@example.com", Password: "first-password"})
	require.NoError(t, err)
	login, err := f.svc.Login(ctx, authdomain.LoginRequest{Email: "dave@example.com", Password: "first-password"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "unknown@example.com"))
	assert.Empty(t, f.mail.sent)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "Dave@example.com"))
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, []string{"dave@example.com"}, f.mail.sent[0].to)

	resetURL, err := url.Parse(f.mail.sent[0].data["reset_url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "board.local", resetURL.Host)
	token := resetURL.Query().Get("token")
	require.NotEmpty(t, token)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "bogus", "second-password"), authdomain.ErrInvalidResetToken)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "short"), authdomain.ErrWeakPassword)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "second-password"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "third-password"), authdomain.ErrInvalidResetToken)

	_, err = f.svc.Authenticate(ctx, login.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Email: "dave@example.com", Password: "second-password"})
	assert.NoError(t, err)
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "erin@example.com", Password: "first-password"})
	require.NoError(t, err)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "erin@example.com"))
	resetURL, err := url.Parse(f.mail.sent[0].data["reset_url"].(string))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, resetURL.Query().Get("token"), "second-password"), authdomain.ErrInvalidResetToken)
}

func TestListUsersPages(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, addr := range []string{"u1@example.com", "u2@example.com", "u3@example.com"} {
		_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: addr, Password: "long-enough"})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	page, err := f.svc.ListUsers(ctx, authdomain.ListUsersRequest{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "u3@example.com", page.Users[0].Email)

	page, err = f.svc.ListUsers(ctx, authdomain.ListUsersRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PerPage)
	assert.Len(t, page.Users, 3)
}
