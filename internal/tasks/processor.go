package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"englishmastery/internal/queue"
	"englishmastery/internal/service"
)

type DailyRefresher interface {
	Refresh(ctx context.Context) (service.RefreshResult, error)
}

type UploadActivator interface {
	ActivateUploaded(ctx context.Context, challengeID, key string) error
}

// Processor dispatches stream entries to the service that owns the task type.
type Processor struct {
	daily   DailyRefresher
	uploads UploadActivator
	logger  zerolog.Logger
}

type TaskPayload struct {
	Type string
	Data map[string]string
}

func NewProcessor(daily DailyRefresher, uploads UploadActivator, logger zerolog.Logger) *Processor {
	return &Processor{
		daily:   daily,
		uploads: uploads,
		logger:  logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	payload, err := decodePayload(msg.Values)
	if err != nil {
		// Redelivery cannot fix a malformed entry.
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("undecodable task, dropping")
		return nil
	}

	switch payload.Type {
	case service.TaskDailyRefresh:
		return p.handleDailyRefresh(ctx, payload)
	case service.TaskMediaIngest:
		return p.handleMediaIngest(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}) (TaskPayload, error) {
	typ, _ := values[queue.FieldType].(string)
	if typ == "" {
		return TaskPayload{}, fmt.Errorf("missing %q field", queue.FieldType)
	}
	out := TaskPayload{Type: typ, Data: map[string]string{}}

	raw, _ := values[queue.FieldPayload].(string)
	if raw == "" {
		return out, nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return TaskPayload{}, err
	}
	for k, v := range fields {
		out.Data[k] = fmt.Sprint(v)
	}
	return out, nil
}

func (p *Processor) handleDailyRefresh(ctx context.Context, payload TaskPayload) error {
	result, err := p.daily.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("daily refresh: %w", err)
	}
	p.logger.Info().
		Str("requested_by", payload.Data["requestedBy"]).
		Int("deactivated", result.Deactivated).
		Int("created", result.Created).
		Msg("daily challenges refreshed")
	return nil
}

func (p *Processor) handleMediaIngest(ctx context.Context, payload TaskPayload) error {
	challengeID, key := payload.Data["challengeId"], payload.Data["object"]
	if challengeID == "" || key == "" {
		p.logger.Warn().Interface("data", payload.Data).Msg("media ingest task without target, dropping")
		return nil
	}
	if err := p.uploads.ActivateUploaded(ctx, challengeID, key); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			p.logger.Warn().Str("challenge_id", challengeID).Msg("challenge removed before activation, dropping")
			return nil
		}
		return fmt.Errorf("activate challenge %s: %w", challengeID, err)
	}
	p.logger.Info().Str("challenge_id", challengeID).Str("object", key).Msg("uploaded challenge activated")
	return nil
}
