package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/cache"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/organization/domain"
	outboxdomain "github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugLength = 48

var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Repo      domain.Repository
	GenID     *snowflake.Node
	Clock     clock.Clock
	Profiles  *cache.ProfileCache
	Publisher outboxdomain.Publisher `optional:"true"`
	AuditSvc  auditdomain.Service    `optional:"true"`
	Email     email.Provider         `optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	profiles  *cache.ProfileCache
	publisher outboxdomain.Publisher
	auditSvc  auditdomain.Service
	email     email.Provider
}

func NewService(p Params) domain.Service {
	profiles := p.Profiles
	if profiles == nil {
		profiles = cache.NewProfileCache()
	}
	mailer := p.Email
	if mailer == nil {
		mailer = &email.NoOpProvider{}
	}
	return &service{
		db:        p.DB,
		log:       p.Log.Named("organization.service"),
		cfg:       p.Cfg,
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		profiles:  profiles,
		publisher: p.Publisher,
		auditSvc:  p.AuditSvc,
		email:     mailer,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = strings.Split(addr, "@")[0]
	}

	now := s.clock.Now().UTC()
	org := &domain.Organization{
		ID:        s.genID.Generate(),
		Name:      name,
		IsDefault: req.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orgSlug, err := s.uniqueSlug(ctx, repo, name)
		if err != nil {
			return err
		}
		org.Slug = orgSlug
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		profile := &domain.Profile{
			ID:        userID,
			OrgID:     org.ID,
			FullName:  fullName,
			Email:     addr,
			IsAdmin:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateProfile(ctx, profile); err != nil {
			return err
		}

		if s.publisher == nil {
			return nil
		}
		return s.publisher.Publish(ctx, tx, outboxdomain.NewEvent{
			OrgID: org.ID,
			Type:  outboxdomain.EventOrganizationCreated,
			Payload: map[string]any{
				"organization_id": org.ID.String(),
				"owner_user_id":   userID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, org.ID, "organization.create", "organization", org.ID.String(), map[string]any{
		"name": org.Name,
		"slug": org.Slug,
	})

	return toOrganizationResponse(org), nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.OrganizationResponse, error) {
	if id == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	return toOrganizationResponse(org), nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		role := domain.RoleMember
		if item.IsAdmin {
			role = domain.RoleAdmin
		}
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Slug:      item.Slug,
			Role:      role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	_, err := s.GetProfile(ctx, orgID, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) ResolveOrgID(ctx context.Context, userID snowflake.ID) (snowflake.ID, error) {
	if userID == 0 {
		return 0, domain.ErrInvalidUser
	}
	return s.repo.FirstOrgForUser(ctx, userID)
}

func (s *service) GetProfile(ctx context.Context, orgID, userID snowflake.ID) (*domain.Profile, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	return s.profiles.Get(ctx, orgID, userID, func(ctx context.Context) (*domain.Profile, error) {
		return s.repo.GetProfile(ctx, orgID, userID)
	})
}

func (s *service) UpdateProfile(ctx context.Context, orgID, userID snowflake.ID, req domain.UpdateProfileRequest) (*domain.Profile, error) {
	fields := map[string]any{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["full_name"] = name
	}
	if req.PhoneE164 != nil {
		phone := strings.ReplaceAll(strings.TrimSpace(*req.PhoneE164), " ", "")
		if phone == "" {
			fields["phone_e164"] = nil
		} else {
			if !e164Pattern.MatchString(phone) {
				return nil, domain.ErrInvalidPhone
			}
			fields["phone_e164"] = phone
		}
	}

	if len(fields) > 0 {
		fields["updated_at"] = s.clock.Now().UTC()
		if err := s.repo.UpdateProfile(ctx, orgID, userID, fields); err != nil {
			return nil, err
		}
		s.profiles.Invalidate(orgID, userID)
	}
	return s.GetProfile(ctx, orgID, userID)
}

func (s *service) ListUsers(ctx context.Context, orgID snowflake.ID) ([]domain.OrgUser, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	users, err := s.repo.ListUsers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.OrgUser{}
	}
	return users, nil
}

func (s *service) ListProfiles(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID) ([]domain.Profile, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListProfiles(ctx, orgID, userIDs)
}

func (s *service) SetAdmin(ctx context.Context, orgID, userID snowflake.ID, isAdmin bool) (*domain.Profile, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.GetProfile(ctx, orgID, userID)
		if err != nil {
			return err
		}
		if current.IsAdmin == isAdmin {
			return nil
		}
		if !isAdmin {
			admins, err := repo.CountAdmins(ctx, orgID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return domain.ErrLastAdmin
			}
		}
		return repo.UpdateProfile(ctx, orgID, userID, map[string]any{
			"is_admin":   isAdmin,
			"updated_at": s.clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.profiles.Invalidate(orgID, userID)

	s.audit(ctx, orgID, "user.role_change", "user", userID.String(), map[string]any{
		"is_admin": isAdmin,
	})
	return s.GetProfile(ctx, orgID, userID)
}

func (s *service) InviteMembers(ctx context.Context, orgID, inviterID snowflake.ID, invites []domain.InviteRequest) ([]domain.InviteResponse, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	inviter, err := s.GetProfile(ctx, orgID, inviterID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	rows := make([]domain.OrganizationInvite, 0, len(invites))
	resp := make([]domain.InviteResponse, 0, len(invites))
	seen := map[string]struct{}{}
	for _, invite := range invites {
		addr, err := normalizeEmail(invite.Email)
		if err != nil {
			return nil, domain.ErrInvalidEmail
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		code, err := newInviteCode()
		if err != nil {
			return nil, err
		}
		row := domain.OrganizationInvite{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			Email:     addr,
			IsAdmin:   invite.IsAdmin,
			Status:    domain.InviteStatusPending,
			CodeHash:  hashCode(code),
			InvitedBy: inviterID,
			CreatedAt: now,
		}
		rows = append(rows, row)
		resp = append(resp, domain.InviteResponse{ID: row.ID.String(), Email: addr, Code: code})
	}

	if err := s.repo.CreateInvites(ctx, rows); err != nil {
		return nil, err
	}

	for _, invite := range resp {
		acceptURL := fmt.Sprintf("%s/invite?code=%s", s.cfg.PublicBaseURL, url.QueryEscape(invite.Code))
		if err := s.email.SendTemplate(ctx, []string{invite.Email}, email.TemplateInviteMember, map[string]any{
			"org_name":   org.Name,
			"inviter":    inviter.FullName,
			"accept_url": acceptURL,
		}); err != nil {
			s.log.Warn("invite email failed", zap.String("invite_id", invite.ID), zap.Error(err))
		}
		s.audit(ctx, orgID, "user.invite", "invite", invite.ID, map[string]any{"email": invite.Email})
	}
	return resp, nil
}

func (s *service) AcceptInvite(ctx context.Context, req domain.AcceptInviteRequest) (*domain.Profile, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, domain.ErrInvalidInvite
	}
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	var profile *domain.Profile
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invite, err := repo.GetInviteByCode(ctx, hashCode(code))
		if err != nil {
			return err
		}
		if invite.Status != domain.InviteStatusPending {
			return domain.ErrInvalidInvite
		}
		if !strings.EqualFold(invite.Email, addr) {
			return domain.ErrInviteEmailMismatch
		}
		if _, err := repo.GetProfile(ctx, invite.OrgID, req.UserID); err == nil {
			return domain.ErrAlreadyMember
		} else if !errors.Is(err, domain.ErrProfileNotFound) {
			return err
		}

		now := s.clock.Now().UTC()
		fullName := strings.TrimSpace(req.FullName)
		if fullName == "" {
			fullName = strings.Split(addr, "@")[0]
		}
		profile = &domain.Profile{
			ID:        req.UserID,
			OrgID:     invite.OrgID,
			FullName:  fullName,
			Email:     addr,
			IsAdmin:   invite.IsAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateProfile(ctx, profile); err != nil {
			return err
		}
		return repo.MarkInviteAccepted(ctx, invite.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, profile.OrgID, "user.join", "user", profile.ID.String(), nil)
	return profile, nil
}

func (s *service) uniqueSlug(ctx context.Context, repo domain.Repository, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}
	if len(base) > maxSlugLength {
		base = strings.Trim(base[:maxSlugLength], "-")
	}
	candidate := base
	for i := 2; ; i++ {
		taken, err := repo.SlugTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, targetType, &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func toOrganizationResponse(org *domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:        org.ID.String(),
		Name:      org.Name,
		Slug:      org.Slug,
		IsDefault: org.IsDefault,
		CreatedAt: org.CreatedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func newInviteCode() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
