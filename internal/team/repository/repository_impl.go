package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db      *gorm.DB
	teams   repository.OrgStore[domain.Team]
	members repository.OrgStore[domain.TeamMember]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{
		db:      db,
		teams:   repository.NewOrgStore[domain.Team](db),
		members: repository.NewOrgStore[domain.TeamMember](db),
	}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return Provide(tx)
}

func (r *repo) Teams() repository.OrgStore[domain.Team] { return r.teams }

func (r *repo) Members() repository.OrgStore[domain.TeamMember] { return r.members }

func (r *repo) ListMemberUsers(ctx context.Context, orgID, teamID snowflake.ID) ([]domain.TeamMemberUser, error) {
	var rows []domain.TeamMemberUser
	err := r.db.WithContext(ctx).Raw(
		`SELECT tm.team_id, tm.user_id, tm.org_id, tm.role, p.full_name AS name, p.email, tm.created_at
		 FROM team_members tm
		 JOIN profiles p ON p.id = tm.user_id AND p.org_id = tm.org_id
		 WHERE tm.org_id = ? AND tm.team_id = ?
		 ORDER BY tm.created_at ASC, tm.id ASC`,
		int64(orgID),
		int64(teamID),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) TeamIDsForUser(ctx context.Context, orgID, userID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).
		Model(&domain.TeamMember{}).
		Where("org_id = ? AND user_id = ?", int64(orgID), int64(userID)).
		Order("created_at ASC").
		Pluck("team_id", &ids).Error
	return ids, err
}

func (r *repo) IsOrgMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("profiles").
		Where("org_id = ? AND id = ?", int64(orgID), int64(userID)).
		Count(&count).Error
	return count > 0, err
}
