package signup

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/signup/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
)

const (
	DefaultTeamName        = "General"
	defaultTeamDescription = "Everyone in the workspace"
)

type noopProvisioner struct{}

func NewNoopProvisioner() domain.Provisioner {
	return &noopProvisioner{}
}

func (p *noopProvisioner) Provision(ctx context.Context, orgID, ownerID snowflake.ID) error {
	return nil
}

// TeamProvisioner gives every new organization a default team with the
// owner as its first member.
type TeamProvisioner struct {
	teams teamdomain.Service
}

func NewTeamProvisioner(teams teamdomain.Service) domain.Provisioner {
	return &TeamProvisioner{teams: teams}
}

func (p *TeamProvisioner) Provision(ctx context.Context, orgID, ownerID snowflake.ID) error {
	description := defaultTeamDescription
	team, err := p.teams.Upsert(ctx, orgID, teamdomain.UpsertRequest{
		Name:        DefaultTeamName,
		Description: &description,
	})
	if err != nil {
		return err
	}
	_, err = p.teams.AddMember(ctx, orgID, teamdomain.AddMemberRequest{
		TeamID: team.ID,
		UserID: ownerID,
	})
	return err
}
