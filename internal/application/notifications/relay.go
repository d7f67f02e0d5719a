package notifications

import (
	"context"

	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/pkg/clock"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 5
)

// Relay moves pending outbox rows to a Sink. It only reads and updates
// outbox_events, so a sink outage can never touch committed ledger state.
type Relay struct {
	DB          *gorm.DB
	Sink        Sink
	BatchSize   int
	MaxAttempts int
	Clock       clock.Clock
}

func NewRelay(db *gorm.DB, sink Sink, clk clock.Clock) *Relay {
	if clk == nil {
		clk = clock.System{}
	}
	return &Relay{DB: db, Sink: sink, BatchSize: defaultBatchSize, MaxAttempts: defaultMaxAttempts, Clock: clk}
}

// RelayResult counts one pass.
type RelayResult struct {
	Published int `json:"published"`
	Retrying  int `json:"retrying"`
	Failed    int `json:"failed"`
}

// RelayOnce publishes one batch of pending events, oldest first.
func (r *Relay) RelayOnce(ctx context.Context) (RelayResult, error) {
	var res RelayResult
	batch := r.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var rows []domain.OutboxEvent
	if err := r.DB.WithContext(ctx).
		Where("status = ?", domain.OutboxPending).
		Order("created_at ASC").
		Limit(batch).
		Find(&rows).Error; err != nil {
		return res, err
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		now := r.Clock.Now()
		if err := r.Sink.Publish(ctx, eventFromRow(row)); err != nil {
			attempts := row.Attempts + 1
			status := domain.OutboxPending
			if attempts >= maxAttempts {
				status = domain.OutboxFailed
				res.Failed++
			} else {
				res.Retrying++
			}
			log.Warn().Err(err).
				Str("event_id", row.ID.String()).
				Str("event_type", row.EventType).
				Int("attempts", attempts).
				Msg("Outbox publish failed")
			if uerr := r.DB.WithContext(ctx).Model(&domain.OutboxEvent{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"attempts":   attempts,
					"last_error": err.Error(),
					"status":     status,
					"updated_at": now,
				}).Error; uerr != nil {
				return res, uerr
			}
			continue
		}
		if err := r.DB.WithContext(ctx).Model(&domain.OutboxEvent{}).
			Where("id = ?", row.ID).
			Updates(map[string]interface{}{
				"status":       domain.OutboxPublished,
				"published_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return res, err
		}
		res.Published++
	}
	return res, nil
}
