package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/password"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/observability/metrics"
	"github.com/smallbiznis/taskboard/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	sessionTTL        = 7 * 24 * time.Hour
	resetTokenTTL     = time.Hour

	defaultPerPage = 10
	maxPerPage     = 100
)

// AttemptLimiter throttles login attempts. A nil limiter allows everything.
type AttemptLimiter interface {
	Allow(ctx context.Context, ip, email string) (bool, time.Duration, error)
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Cfg         config.Config
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	ResetRepo   domain.PasswordResetRepository
	GenID       *snowflake.Node
	Clock       clock.Clock
	Limiter     AttemptLimiter   `optional:"true"`
	Email       email.Provider   `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	cfg         config.Config
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	resetRepo   domain.PasswordResetRepository
	genID       *snowflake.Node
	clock       clock.Clock
	limiter     AttemptLimiter
	email       email.Provider
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	mailer := p.Email
	if mailer == nil {
		mailer = &email.NoOpProvider{}
	}
	return &Service{
		log:         p.Log.Named("auth.service"),
		cfg:         p.Cfg,
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		resetRepo:   p.ResetRepo,
		genID:       p.GenID,
		clock:       clk,
		limiter:     p.Limiter,
		email:       mailer,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !password.Strong(req.Password) {
		return nil, domain.ErrWeakPassword
	}

	if _, err := s.repo.FindByEmail(ctx, addr); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = defaultDisplayName(addr)
	}
	user := &domain.User{
		ID:                  s.genID.Generate(),
		DisplayName:         displayName,
		Email:               addr,
		PasswordHash:        &hashed,
		IsDefault:           req.IsDefault,
		LastPasswordChanged: &now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if s.limiter != nil {
		allowed, retryAfter, err := s.limiter.Allow(ctx, req.IPAddress, addr)
		if err != nil {
			return nil, err
		}
		if !allowed {
			s.metrics.RecordRateLimitDenied(ctx, "auth.login")
			s.log.Warn("login throttled", zap.Duration("retry_after", retryAfter))
			return nil, domain.ErrTooManyAttempts
		}
	}

	user, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil || !password.Verify(req.Password, *user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if password.NeedsRehash(*user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, req.Password)
	}

	rawToken, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		OrgIDs:           []int64{},
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	passwordState := "rotated"
	if user.IsDefault || user.LastPasswordChanged == nil {
		passwordState = "default"
	}

	return &domain.LoginResult{
		Session: &domain.SessionView{
			Metadata: map[string]any{
				"user_id":               user.ID.String(),
				"display_name":          user.DisplayName,
				"email":                 user.Email,
				"is_default":            user.IsDefault,
				"last_password_changed": user.LastPasswordChanged,
				"password_state":        passwordState,
			},
		},
		User:      user,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now().UTC())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}
	session.LastSeenAt = now

	return session, nil
}

func (s *Service) UpdateSessionOrgContext(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64, orgIDs []int64) error {
	return s.sessionRepo.UpdateOrgContext(ctx, sessionID, activeOrgID, orgIDs)
}

func (s *Service) ChangePassword(ctx context.Context, userID snowflake.ID, currentPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == nil || !password.Verify(currentPassword, *user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

func (s *Service) GetUser(ctx context.Context, userID snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context, req domain.ListUsersRequest) (*domain.ListUsersResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	switch {
	case perPage <= 0:
		perPage = defaultPerPage
	case perPage > maxPerPage:
		perPage = maxPerPage
	}

	users, total, err := s.repo.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return &domain.ListUsersResponse{
		Users:   users,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

// RequestPasswordReset never reports whether the address exists.
func (s *Service) RequestPasswordReset(ctx context.Context, rawEmail string) error {
	addr, err := normalizeEmail(rawEmail)
	if err != nil {
		return domain.ErrInvalidEmail
	}

	user, err := s.repo.FindByEmail(ctx, addr)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rawToken, err := newToken()
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	reset := &domain.PasswordReset{
		ID:        s.genID.Generate(),
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	}
	if err := s.resetRepo.CreateReset(ctx, reset); err != nil {
		return err
	}

	resetURL := s.cfg.PublicBaseURL + "/reset-password?token=" + url.QueryEscape(rawToken)
	if err := s.email.SendTemplate(ctx, []string{user.Email}, email.TemplatePasswordReset, map[string]any{
		"name":       user.DisplayName,
		"reset_url":  resetURL,
		"expires_in": "1 hour",
	}); err != nil {
		s.log.Warn("password reset email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidResetToken
	}
	if !password.Strong(newPassword) {
		return domain.ErrWeakPassword
	}

	reset, err := s.resetRepo.ConsumeReset(ctx, hashToken(token), s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, reset.UserID, newPassword); err != nil {
		return err
	}
	return s.sessionRepo.RevokeUserSessions(ctx, reset.UserID, s.clock.Now().UTC())
}

func (s *Service) PurgeExpiredSessions(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.sessionRepo.PurgeSessions(ctx, s.clock.Now().UTC(), limit)
}

func (s *Service) setPassword(ctx context.Context, userID snowflake.ID, newPassword string) error {
	if !password.Strong(newPassword) {
		return domain.ErrWeakPassword
	}
	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	return s.repo.UpdateFields(ctx, userID, map[string]any{
		"password_hash":         hashed,
		"last_password_changed": &now,
		"is_default":            false,
		"updated_at":            now,
	})
}

// upgradeHash re-encodes a verified password with the current cost settings.
// Failure leaves the old hash in place.
func (s *Service) upgradeHash(ctx context.Context, userID snowflake.ID, plain string) {
	hashed, err := password.Hash(plain)
	if err == nil {
		err = s.repo.UpdateFields(ctx, userID, map[string]any{
			"password_hash": hashed,
			"updated_at":    s.clock.Now().UTC(),
		})
	}
	if err != nil {
		s.log.Warn("password rehash failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(raw string) (string, error) {
	addr, err := normalizeEmail(raw)
	if err != nil {
		return "", domain.ErrInvalidEmail
	}
	return addr, nil
}

func defaultDisplayName(addr string) string {
	parts := strings.Split(addr, "@")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return addr
}

func newToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
