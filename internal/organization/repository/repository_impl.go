package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/organization/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Organization{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, p.is_admin, o.created_at
		 FROM organizations o
		 JOIN profiles p ON p.org_id = o.id
		 WHERE p.id = ?
		 ORDER BY o.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *repository) GetProfile(ctx context.Context, orgID, userID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, userID).
		Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) UpdateProfile(ctx context.Context, orgID, userID snowflake.ID, fields map[string]any) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("org_id = ? AND id = ?", orgID, userID).
		Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *repository) CountAdmins(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("org_id = ? AND is_admin = ?", orgID, true).
		Count(&count).Error
	return count, err
}

func (r *repository) ListUsers(ctx context.Context, orgID snowflake.ID) ([]domain.OrgUser, error) {
	var users []domain.OrgUser
	err := r.db.WithContext(ctx).
		Model(&domain.Profile{}).
		Select("id, full_name AS name, email").
		Where("org_id = ?", orgID).
		Order("full_name ASC").
		Order("id ASC").
		Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) ListProfiles(ctx context.Context, orgID snowflake.ID, userIDs []snowflake.ID) ([]domain.Profile, error) {
	if len(userIDs) == 0 {
		return []domain.Profile{}, nil
	}
	var profiles []domain.Profile
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id IN ?", orgID, userIDs).
		Find(&profiles).Error
	return profiles, err
}

func (r *repository) FirstOrgForUser(ctx context.Context, userID snowflake.ID) (snowflake.ID, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		Order("created_at ASC").
		Order("org_id ASC").
		Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.ErrNoOrganization
	}
	if err != nil {
		return 0, err
	}
	return profile.OrgID, nil
}

func (r *repository) CreateInvites(ctx context.Context, invites []domain.OrganizationInvite) error {
	if len(invites) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&invites).Error
}

func (r *repository) GetInviteByCode(ctx context.Context, codeHash string) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	err := r.db.WithContext(ctx).Where("code_hash = ?", codeHash).Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvalidInvite
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *repository) MarkInviteAccepted(ctx context.Context, id snowflake.ID, at time.Time) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.OrganizationInvite{}).
		Where("id = ? AND status = ?", id, domain.InviteStatusPending).
		Updates(map[string]any{"status": domain.InviteStatusAccepted, "accepted_at": at})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrInvalidInvite
	}
	return nil
}
