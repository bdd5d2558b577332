package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/taskboard/internal/audit/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	outboxdomain "github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"github.com/smallbiznis/taskboard/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	GenID     *snowflake.Node
	Clock     clock.Clock
	Publisher outboxdomain.Publisher `optional:"true"`
	AuditSvc  auditdomain.Service    `optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	publisher outboxdomain.Publisher
	auditSvc  auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("team.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		publisher: p.Publisher,
		auditSvc:  p.AuditSvc,
	}
}

func (s *service) Upsert(ctx context.Context, orgID snowflake.ID, req domain.UpsertRequest) (*domain.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	now := s.clock.Now().UTC()

	if req.ID == nil {
		team := &domain.Team{
			ID:        s.genID.Generate(),
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if req.Description != nil {
			if desc := strings.TrimSpace(*req.Description); desc != "" {
				team.Description = &desc
			}
		}
		err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Teams().Insert(ctx, orgID, team)
		})
		if err != nil {
			return nil, err
		}
		s.audit(ctx, orgID, "team.create", team.ID, map[string]any{"name": team.Name})
		return team, nil
	}

	if *req.ID == 0 {
		return nil, domain.ErrInvalidTeam
	}
	patch := map[string]any{
		"name":       name,
		"updated_at": now,
	}
	if req.Description != nil {
		patch["description"] = strings.TrimSpace(*req.Description)
	}

	var team *domain.Team
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).Teams().Update(ctx, orgID, map[string]any{"id": int64(*req.ID)}, patch)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return domain.ErrNotFound
		}
		team = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, orgID, "team.update", team.ID, map[string]any{"name": team.Name})
	return team, nil
}

func (s *service) Delete(ctx context.Context, orgID, teamID snowflake.ID) error {
	if teamID == 0 {
		return domain.ErrInvalidTeam
	}
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		match := map[string]any{"team_id": int64(teamID)}
		if _, err := repo.Members().Delete(ctx, orgID, match); err != nil {
			return err
		}
		deleted, err := repo.Teams().Delete(ctx, orgID, map[string]any{"id": int64(teamID)})
		if err != nil {
			return err
		}
		if deleted == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, orgID, "team.delete", teamID, nil)
	return nil
}

func (s *service) AddMember(ctx context.Context, orgID snowflake.ID, req domain.AddMemberRequest) (*domain.TeamMember, error) {
	if req.TeamID == 0 {
		return nil, domain.ErrInvalidTeam
	}
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.DefaultMemberRole
	}

	var (
		member *domain.TeamMember
		added  bool
	)
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		team, err := repo.Teams().SelectOne(ctx, orgID, map[string]any{"id": int64(req.TeamID)})
		if err != nil {
			return err
		}
		if team == nil {
			return domain.ErrNotFound
		}
		ok, err := repo.IsOrgMember(ctx, orgID, req.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotOrgMember
		}

		match := map[string]any{"team_id": int64(req.TeamID), "user_id": int64(req.UserID)}
		existing, err := repo.Members().SelectOne(ctx, orgID, match)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Role == role {
				member = existing
				return nil
			}
			rows, err := repo.Members().Update(ctx, orgID, match, map[string]any{"role": role})
			if err != nil {
				return err
			}
			member = rows[0]
			return nil
		}

		member = &domain.TeamMember{
			ID:        s.genID.Generate(),
			TeamID:    req.TeamID,
			UserID:    req.UserID,
			Role:      role,
			CreatedAt: s.clock.Now().UTC(),
		}
		if err := repo.Members().Insert(ctx, orgID, member); err != nil {
			return err
		}
		added = true

		if s.publisher == nil {
			return nil
		}
		return s.publisher.Publish(ctx, tx, outboxdomain.NewEvent{
			OrgID: orgID,
			Type:  outboxdomain.EventTeamMemberAdded,
			Payload: map[string]any{
				"team_id":   req.TeamID.String(),
				"team_name": team.Name,
				"user_id":   req.UserID.String(),
				"role":      role,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if added {
		s.audit(ctx, orgID, "team.member_add", req.TeamID, map[string]any{
			"user_id": req.UserID.String(),
			"role":    role,
		})
	}
	return member, nil
}

func (s *service) RemoveMember(ctx context.Context, orgID, teamID, userID snowflake.ID) error {
	if teamID == 0 {
		return domain.ErrInvalidTeam
	}
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	var deleted int64
	err := rls.InTenant(ctx, s.db, orgID, func(tx *gorm.DB) error {
		var err error
		deleted, err = s.repo.WithTx(tx).Members().Delete(ctx, orgID, map[string]any{
			"team_id": int64(teamID),
			"user_id": int64(userID),
		})
		return err
	})
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.audit(ctx, orgID, "team.member_remove", teamID, map[string]any{"user_id": userID.String()})
	}
	return nil
}

func (s *service) Get(ctx context.Context, orgID, teamID snowflake.ID) (*domain.Team, error) {
	if teamID == 0 {
		return nil, domain.ErrInvalidTeam
	}
	team, err := s.repo.Teams().SelectOne(ctx, orgID, map[string]any{"id": int64(teamID)})
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, domain.ErrNotFound
	}
	return team, nil
}

func (s *service) List(ctx context.Context, orgID snowflake.ID) ([]*domain.Team, error) {
	return s.repo.Teams().SelectMany(ctx, orgID, option.WithOrder("name", false), option.WithOrder("id", false))
}

func (s *service) ListMembers(ctx context.Context, orgID, teamID snowflake.ID) ([]domain.TeamMemberUser, error) {
	if teamID == 0 {
		return nil, domain.ErrInvalidTeam
	}
	return s.repo.ListMemberUsers(ctx, orgID, teamID)
}

func (s *service) MyTeamIDs(ctx context.Context, orgID, userID snowflake.ID) ([]snowflake.ID, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	ids, err := s.repo.TeamIDsForUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []snowflake.ID{}
	}
	return ids, nil
}

func (s *service) Count(ctx context.Context, orgID snowflake.ID) (int64, error) {
	return s.repo.Teams().Count(ctx, orgID, nil)
}

func (s *service) audit(ctx context.Context, orgID snowflake.ID, action string, teamID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := teamID.String()
	if err := s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, "team", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
