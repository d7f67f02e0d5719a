package penalties

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"lendpool-backend/internal/application/ledger"
	"lendpool-backend/internal/application/notifications"
	"lendpool-backend/internal/domain"
	"lendpool-backend/internal/infrastructure/database"
	"lendpool-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var holdingStatuses = []domain.BorrowingStatus{domain.BorrowingApproved, domain.BorrowingBorrowed}

type Service struct {
	DB        *gorm.DB
	Ledger    *ledger.Service
	Policy    Policy
	Clock     clock.Clock
	Markers   OverdueMarker
	MarkerTTL time.Duration
}

func NewService(db *gorm.DB, l *ledger.Service, policy Policy, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{DB: db, Ledger: l, Policy: policy, Clock: clk, MarkerTTL: 24 * time.Hour}
}

// Report summarises one accrual run.
type Report struct {
	Period     string `json:"period"`
	Candidates int    `json:"candidates"`
	Charged    int    `json:"charged"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Total      int64  `json:"total"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCharged
)

// AccruePenalties charges every overdue, not fully returned borrowing at most
// once for the current accrual period. Each candidate runs in its own
// transaction; a failing candidate is logged and left for the next run.
func (s *Service) AccruePenalties(ctx context.Context) (Report, error) {
	now := s.Clock.Now()
	report := Report{Period: s.Policy.AccrualPeriod(now)}
	start := s.Policy.PeriodStart(now)

	var ids []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.BorrowingTransaction{}).
		Where("status IN ? AND total_returned < quantity_borrowed AND expected_return_date < ?", holdingStatuses, now).
		Where("last_penalty_date IS NULL OR last_penalty_date < ?", start).
		Order("expected_return_date ASC").
		Pluck("id", &ids).Error; err != nil {
		return report, err
	}
	report.Candidates = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		res, amount, err := s.accrueOne(ctx, id, now, report.Period, start)
		switch {
		case err != nil:
			report.Failed++
			log.Error().Err(err).Str("borrowing_id", id.String()).Str("period", report.Period).Msg("Penalty accrual failed")
		case res == outcomeCharged:
			report.Charged++
			report.Total += amount
		default:
			report.Skipped++
		}
	}

	log.Info().
		Str("period", report.Period).
		Int("candidates", report.Candidates).
		Int("charged", report.Charged).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int64("total", report.Total).
		Msg("Penalty accrual finished")
	return report, nil
}

func (s *Service) accrueOne(ctx context.Context, id uuid.UUID, now time.Time, period string, start time.Time) (outcome, int64, error) {
	res := outcomeSkipped
	var charged int64

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b domain.BorrowingTransaction
		if err := database.ForUpdate(tx).Where("id = ?", id).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if !due(&b, now, start) {
			return nil
		}

		missing := b.Outstanding()
		// Bill from the last charge, not the due date, so a run only charges
		// time no earlier run has charged. The first charge still spans
		// now - expected_return_date.
		from := b.ExpectedReturnDate
		if b.LastPenaltyDate != nil && b.LastPenaltyDate.After(from) {
			from = *b.LastPenaltyDate
		}
		elapsed := s.Policy.Elapsed(from, now)
		amount := s.Policy.Amount(elapsed, missing)
		if amount <= 0 {
			return nil
		}

		gate := domain.PartialReturnPenalty{
			BorrowingID:     b.ID,
			AccrualPeriod:   period,
			Amount:          amount,
			MissingQuantity: missing,
			ElapsedUnits:    int64(math.Ceil(elapsed)),
			CreatedAt:       now,
		}
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&gate)
		if ins.Error != nil {
			return ins.Error
		}
		if ins.RowsAffected == 0 {
			return nil
		}

		if _, err := s.Ledger.Apply(tx, ledger.Entry{
			MemberID:    b.MemberID,
			Amount:      -amount,
			Type:        domain.CreditPenalty,
			BorrowingID: &b.ID,
			Description: fmt.Sprintf("overdue penalty %s: %d item(s) missing", period, missing),
		}); err != nil {
			return err
		}

		if err := tx.Model(&b).Updates(map[string]interface{}{
			"last_penalty_date":   now,
			"last_penalty_amount": amount,
			"accumulated_penalty": gorm.Expr("accumulated_penalty + ?", amount),
		}).Error; err != nil {
			return err
		}

		if err := notifications.Enqueue(tx, notifications.PenaltyCharged, b.ID, map[string]interface{}{
			"borrowing_id": b.ID,
			"member_id":    b.MemberID,
			"amount":       amount,
			"missing":      missing,
			"period":       period,
		}, now); err != nil {
			return err
		}

		res = outcomeCharged
		charged = amount
		return nil
	})
	if err != nil {
		return outcomeSkipped, 0, err
	}
	return res, charged, nil
}

func due(b *domain.BorrowingTransaction, now, periodStart time.Time) bool {
	if !b.Status.Holding() || b.Outstanding() <= 0 {
		return false
	}
	if !b.ExpectedReturnDate.Before(now) {
		return false
	}
	return b.LastPenaltyDate == nil || b.LastPenaltyDate.Before(periodStart)
}

// DetectOverdue emits one borrowing.overdue notice per overdue borrowing per
// accrual period and returns how many were emitted.
func (s *Service) DetectOverdue(ctx context.Context) (int, error) {
	now := s.Clock.Now()
	period := s.Policy.AccrualPeriod(now)
	start := s.Policy.PeriodStart(now)

	var overdue []domain.BorrowingTransaction
	if err := s.DB.WithContext(ctx).
		Where("status IN ? AND total_returned < quantity_borrowed AND expected_return_date < ?", holdingStatuses, now).
		Order("expected_return_date ASC").
		Find(&overdue).Error; err != nil {
		return 0, err
	}

	emitted := 0
	for i := range overdue {
		b := &overdue[i]
		key := fmt.Sprintf("%s:%s", b.ID, period)

		if s.Markers != nil {
			first, err := s.Markers.Mark(ctx, key, s.MarkerTTL)
			if err != nil {
				log.Warn().Err(err).Str("borrowing_id", b.ID.String()).Msg("Overdue marker unavailable, falling back to outbox check")
			} else if !first {
				continue
			}
		}

		var existing int64
		if err := s.DB.WithContext(ctx).Model(&domain.OutboxEvent{}).
			Where("event_type = ? AND aggregate_id = ? AND created_at >= ?", notifications.BorrowingOverdue, b.ID, start).
			Count(&existing).Error; err != nil {
			return emitted, err
		}
		if existing > 0 {
			continue
		}

		if err := notifications.Enqueue(s.DB.WithContext(ctx), notifications.BorrowingOverdue, b.ID, map[string]interface{}{
			"borrowing_id":         b.ID,
			"member_id":            b.MemberID,
			"missing":              b.Outstanding(),
			"expected_return_date": b.ExpectedReturnDate,
			"period":               period,
		}, now); err != nil {
			if s.Markers != nil {
				_ = s.Markers.Clear(ctx, key)
			}
			return emitted, err
		}
		emitted++
	}

	if emitted > 0 {
		log.Info().Int("emitted", emitted).Str("period", period).Msg("Overdue notices queued")
	}
	return emitted, nil
}
