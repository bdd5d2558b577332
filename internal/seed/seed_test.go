package seed

import (
	"testing"

	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/password"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureMainOrgAndAdminIsIdempotent(t *testing.T) {
	conn, err := db.OpenSQLiteMemory("seed_admin")
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&organizationdomain.Organization{},
		&organizationdomain.Profile{},
		&authdomain.User{},
		&teamdomain.Team{},
		&teamdomain.TeamMember{},
	))

	admin := Admin{Email: "Admin@Taskboard.local", Password: "admin12345"}
	for i := 0; i < 2; i++ {
		require.NoError(t, EnsureMainOrgAndAdmin(conn, 1001, admin))
	}

	var orgs []organizationdomain.Organization
	require.NoError(t, conn.Find(&orgs).Error)
	require.Len(t, orgs, 1)
	assert.EqualValues(t, 1001, orgs[0].ID)
	assert.True(t, orgs[0].IsDefault)

	var user authdomain.User
	require.NoError(t, conn.Where("email = ?", "admin@taskboard.local").First(&user).Error)
	require.NotNil(t, user.PasswordHash)
	assert.True(t, password.Verify("admin12345", *user.PasswordHash))

	var profile organizationdomain.Profile
	require.NoError(t, conn.Where("org_id = ? AND id = ?", orgs[0].ID, user.ID).First(&profile).Error)
	assert.Equal(t, organizationdomain.RoleAdmin, profile.Role())

	var members int64
	require.NoError(t, conn.Model(&teamdomain.TeamMember{}).Count(&members).Error)
	assert.EqualValues(t, 1, members)
}

func TestEnsureMainOrgRequiresHandle(t *testing.T) {
	_, err := EnsureMainOrg(nil, 0)
	assert.Error(t, err)
	assert.Error(t, EnsureMainOrgAndAdmin(nil, 0, Admin{}))
}
