package authorization

import "github.com/casbin/casbin/v2"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions
		{"role:member", ObjectOrganization, ActionOrganizationView},
		{"role:member", ObjectUser, ActionUserView},
		{"role:member", ObjectTeam, ActionTeamView},
		{"role:member", ObjectProject, ActionProjectView},
		{"role:member", ObjectProject, ActionProjectReport},
		{"role:member", ObjectTask, ActionTaskView},
		{"role:member", ObjectTask, ActionTaskWrite},
		{"role:member", ObjectTask, ActionTaskDelete},
		{"role:member", ObjectCalendarEvent, ActionCalendarEventView},
		{"role:member", ObjectCalendarEvent, ActionCalendarEventWrite},
		{"role:member", ObjectCalendarEvent, ActionCalendarEventDelete},

		// Admin permissions
		{"role:admin", ObjectOrganization, ActionOrganizationView},
		{"role:admin", ObjectOrganization, ActionOrganizationUpdate},
		{"role:admin", ObjectUser, ActionUserView},
		{"role:admin", ObjectUser, ActionUserInvite},
		{"role:admin", ObjectUser, ActionUserManage},
		{"role:admin", ObjectTeam, ActionTeamView},
		{"role:admin", ObjectTeam, ActionTeamWrite},
		{"role:admin", ObjectTeam, ActionTeamDelete},
		{"role:admin", ObjectTeam, ActionTeamManageMembers},
		{"role:admin", ObjectProject, ActionProjectView},
		{"role:admin", ObjectProject, ActionProjectWrite},
		{"role:admin", ObjectProject, ActionProjectDelete},
		{"role:admin", ObjectProject, ActionProjectReport},
		{"role:admin", ObjectTask, ActionTaskView},
		{"role:admin", ObjectTask, ActionTaskWrite},
		{"role:admin", ObjectTask, ActionTaskDelete},
		{"role:admin", ObjectCalendarEvent, ActionCalendarEventView},
		{"role:admin", ObjectCalendarEvent, ActionCalendarEventWrite},
		{"role:admin", ObjectCalendarEvent, ActionCalendarEventDelete},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		// System permissions (scheduler and maintenance commands)
		{"role:system", ObjectNotification, ActionNotificationDispatch},
		{"role:system", ObjectTask, ActionTaskView},
		{"role:system", ObjectTeam, ActionTeamView},
		{"role:system", ObjectUser, ActionUserView},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
