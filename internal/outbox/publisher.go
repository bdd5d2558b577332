package outbox

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/outbox/domain"
	"github.com/smallbiznis/taskboard/pkg/telemetry/correlation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrInvalidEvent = errors.New("invalid_event")

type publisher struct {
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func NewPublisher(repo domain.Repository, genID *snowflake.Node, clk clock.Clock) domain.Publisher {
	return &publisher{repo: repo, genID: genID, clock: clk}
}

func (p *publisher) Publish(ctx context.Context, tx *gorm.DB, event domain.NewEvent) error {
	eventType := strings.TrimSpace(event.Type)
	if event.OrgID == 0 || eventType == "" {
		return ErrInvalidEvent
	}

	payload := make(map[string]any, len(event.Payload)+4)
	for k, v := range event.Payload {
		payload[k] = v
	}
	payload = correlation.InjectTrace(ctx, payload)
	cid, _ := payload["correlation_id"].(string)

	row := &domain.Event{
		ID:            p.genID.Generate(),
		OrgID:         event.OrgID,
		EventType:     eventType,
		Payload:       datatypes.JSONMap(payload),
		CorrelationID: cid,
		CreatedAt:     p.clock.Now().UTC(),
	}
	if key := strings.TrimSpace(event.DedupeKey); key != "" {
		row.DedupeKey = &key
	}
	return p.repo.Insert(ctx, tx, row)
}
