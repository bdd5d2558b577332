package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/password"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"gorm.io/gorm"
)

const (
	defaultOrgName      = "Main"
	defaultOrgSlug      = "main"
	defaultAdminDisplay = "Taskboard Admin"
	defaultTeamName     = "General"
)

// Admin describes the bootstrap administrator.
type Admin struct {
	Email    string
	Password string
}

// EnsureMainOrg seeds the default organization. A non-zero id pins the
// organization id for fresh databases.
func EnsureMainOrg(db *gorm.DB, orgID int64) (organizationdomain.Organization, error) {
	if db == nil {
		return organizationdomain.Organization{}, errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return organizationdomain.Organization{}, err
	}

	ctx := context.Background()
	var org organizationdomain.Organization
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		org, err = ensureMainOrgTx(ctx, tx, node, snowflake.ID(orgID))
		return err
	})
	return org, err
}

// EnsureMainOrgAndAdmin seeds the default organization, its admin account
// and profile, and the General team with the admin as member.
func EnsureMainOrgAndAdmin(db *gorm.DB, orgID int64, admin Admin) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || admin.Password == "" {
		return errors.New("seed admin email and password are required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node, snowflake.ID(orgID))
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		var user authdomain.User
		err = tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hashed, err := password.Hash(admin.Password)
			if err != nil {
				return err
			}
			user = authdomain.User{
				ID:                  node.Generate(),
				DisplayName:         defaultAdminDisplay,
				Email:               email,
				PasswordHash:        &hashed,
				LastPasswordChanged: &now,
				IsDefault:           true,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
				return err
			}
		}

		var profile organizationdomain.Profile
		err = tx.WithContext(ctx).
			Where("org_id = ? AND id = ?", org.ID, user.ID).
			First(&profile).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			profile = organizationdomain.Profile{
				ID:        user.ID,
				OrgID:     org.ID,
				FullName:  user.DisplayName,
				Email:     user.Email,
				IsAdmin:   true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&profile).Error; err != nil {
				return err
			}
		}

		return ensureGeneralTeamTx(ctx, tx, node, org.ID, user.ID, now)
	})
}

func ensureMainOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, pinnedID snowflake.ID) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}
	id := pinnedID
	if id == 0 {
		id = node.Generate()
	}
	now := time.Now().UTC()
	org = organizationdomain.Organization{
		ID:        id,
		Name:      defaultOrgName,
		Slug:      defaultOrgSlug,
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

func ensureGeneralTeamTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID, userID snowflake.ID, now time.Time) error {
	var team teamdomain.Team
	err := tx.WithContext(ctx).
		Where("org_id = ? AND name = ?", orgID, defaultTeamName).
		Order("created_at ASC").
		First(&team).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		team = teamdomain.Team{
			ID:        node.Generate(),
			OrgID:     orgID,
			Name:      defaultTeamName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&team).Error; err != nil {
			return err
		}
	}

	var count int64
	if err := tx.WithContext(ctx).
		Model(&teamdomain.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&teamdomain.TeamMember{
		ID:        node.Generate(),
		OrgID:     orgID,
		TeamID:    team.ID,
		UserID:    userID,
		Role:      teamdomain.DefaultMemberRole,
		CreatedAt: now,
	}).Error
}
