package signup

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	"github.com/smallbiznis/taskboard/internal/signup/domain"
	"go.uber.org/zap"
)

type service struct {
	log         *zap.Logger
	authsvc     authdomain.Service
	orgsvc      orgdomain.Service
	provisioner domain.Provisioner
}

func NewService(log *zap.Logger, authsvc authdomain.Service, orgsvc orgdomain.Service, provisioner domain.Provisioner) domain.Service {
	return &service{
		log:         log.Named("signup.service"),
		authsvc:     authsvc,
		orgsvc:      orgsvc,
		provisioner: provisioner,
	}
}

func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}

	fullName := strings.TrimSpace(req.FullName)
	orgName := strings.TrimSpace(req.OrgName)
	if orgName == "" {
		orgName = workspaceName(fullName, email)
	}

	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       email,
		Password:    req.Password,
		DisplayName: fullName,
	})
	if err != nil {
		return nil, err
	}

	org, err := s.orgsvc.Create(ctx, user.ID, orgdomain.CreateOrganizationRequest{
		Name:     orgName,
		FullName: fullName,
		Email:    user.Email,
	})
	if err != nil {
		return nil, err
	}

	orgID, err := snowflake.ParseString(org.ID)
	if err != nil {
		return nil, err
	}
	if err := s.provisioner.Provision(ctx, orgID, user.ID); err != nil {
		s.log.Warn("failed to provision organization",
			zap.String("org_id", org.ID),
			zap.Error(err),
		)
	}

	session, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Session:   session.Session,
		RawToken:  session.RawToken,
		ExpiresAt: session.ExpiresAt,
		OrgID:     org.ID,
		UserID:    user.ID.String(),
	}, nil
}

func workspaceName(fullName, email string) string {
	owner := fullName
	if owner == "" {
		owner = strings.Split(email, "@")[0]
	}
	return owner + "'s workspace"
}
