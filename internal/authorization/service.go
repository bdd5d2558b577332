package authorization

import "context"

// Service decides whether an actor may perform action on object inside an org.
// Actors are "system" or "user:<id>".
type Service interface {
	Authorize(ctx context.Context, actor string, orgID string, object string, action string) error
}
