// Package domain describes outbound notifications rendered from outbox events.
package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/taskboard/pkg/caldate"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Message is the text delivered to every recipient of one event.
type Message struct {
	Text     string
	Template string
	Data     map[string]any
}

// DispatchResult summarises one dispatch pass.
type DispatchResult struct {
	Claimed   int
	Published int
	Failed    int
}

type Service interface {
	// Dispatch claims pending outbox events and delivers them.
	Dispatch(ctx context.Context, limit int) (DispatchResult, error)
	// EnqueueDueReminders publishes task.due_soon for open assigned tasks due on day.
	EnqueueDueReminders(ctx context.Context, day caldate.Date, limit int) (int, error)
}

var (
	ErrUnknownEvent   = errors.New("unknown_event")
	ErrInvalidPayload = errors.New("invalid_event_payload")
	ErrReminderLocked = errors.New("reminder_run_locked")
)
