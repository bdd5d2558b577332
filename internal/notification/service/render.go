package service

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/notification/domain"
	outboxdomain "github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/internal/providers/email"
)

// Names used when an event payload lacks a display name.
const (
	defaultTaskTitle   = "Task"
	defaultTeamName    = "Team"
	defaultProjectName = "Project"
)

// Render builds the message for an event. ok is false for event types that
// carry no notification.
func Render(eventType string, payload map[string]any) (domain.Message, bool, error) {
	switch eventType {
	case outboxdomain.EventTaskAssigned:
		title := payloadStringOr(payload, "title", defaultTaskTitle)
		text := fmt.Sprintf(`New task assigned: "%s"`, title)
		if due := payloadString(payload, "due_date"); due != "" {
			text += " (due " + due + ")"
		}
		return domain.Message{
			Text:     text,
			Template: email.TemplateTaskAssigned,
			Data:     map[string]any{"title": title, "due_date": payloadString(payload, "due_date")},
		}, true, nil
	case outboxdomain.EventTaskDueSoon:
		title := payloadStringOr(payload, "title", defaultTaskTitle)
		due := payloadStringOr(payload, "due_date", "soon")
		return domain.Message{
			Text:     fmt.Sprintf(`Reminder: "%s" is due %s`, title, due),
			Template: email.TemplateTaskDueSoon,
			Data:     map[string]any{"title": title, "due_date": due},
		}, true, nil
	case outboxdomain.EventTeamMemberAdded:
		name := payloadStringOr(payload, "team_name", defaultTeamName)
		return domain.Message{Text: fmt.Sprintf(`You joined team "%s"`, name)}, true, nil
	case outboxdomain.EventProjectTeamAttached:
		name := payloadStringOr(payload, "project_name", defaultProjectName)
		return domain.Message{Text: fmt.Sprintf(`Your team was added to project "%s"`, name)}, true, nil
	case outboxdomain.EventOrganizationCreated, outboxdomain.EventMemberInvited:
		return domain.Message{}, false, nil
	default:
		return domain.Message{}, false, domain.ErrUnknownEvent
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func payloadStringOr(payload map[string]any, key, fallback string) string {
	if v := payloadString(payload, key); v != "" {
		return v
	}
	return fallback
}

func payloadID(payload map[string]any, key string) (snowflake.ID, bool) {
	raw := payloadString(payload, key)
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
