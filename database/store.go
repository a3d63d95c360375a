package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the Postgres-backed implementation of the engine's store
// contract. The atomic operations the concurrency model names are realized
// as single transactions with row locks or compare-and-swap updates.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("booking not found")
		}
		return nil, apperr.Wrap(err, "failed to load booking")
	}
	return &booking, nil
}

func (s *GormStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus) error {
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to).Error
	if err != nil {
		return apperr.Wrap(err, "failed to update booking status")
	}
	return nil
}

func (s *GormStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("payment not found")
		}
		return nil, apperr.Wrap(err, "failed to load payment")
	}
	return &payment, nil
}

func (s *GormStore) GetBookingPayment(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("booking_id = ? AND purpose = ? AND status = ?", bookingID, models.PurposeBooking, models.PaymentCompleted).
		Order("created_at desc").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("no settled payment found for this booking")
		}
		return nil, apperr.Wrap(err, "failed to load booking payment")
	}
	return &payment, nil
}

func (s *GormStore) FindPaymentByTransaction(ctx context.Context, key string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("transaction_id = ? OR reference = ?", key, key).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("payment not found")
		}
		return nil, apperr.Wrap(err, "failed to look up payment")
	}
	return &payment, nil
}

// CreatePaymentIfVacant runs the vacancy check and the insert inside one
// transaction, with the booking's payment rows locked, so two concurrent
// initiations cannot both pass the check.
func (s *GormStore) CreatePaymentIfVacant(ctx context.Context, p *models.Payment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.Payment
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if p.Purpose == models.PurposeTransfer {
			q = q.Where("transfer_id = ? AND status = ?", p.TransferID, models.PaymentPending)
		} else {
			q = q.Where("booking_id = ? AND purpose = ? AND status IN ?",
				p.BookingID, models.PurposeBooking,
				[]models.PaymentStatus{models.PaymentPending, models.PaymentCompleted})
		}
		if err := q.Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperr.ConflictErr("Payment already initiated for this booking")
		}
		return tx.Create(p).Error
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Wrap(err, "failed to create payment")
	}
	return nil
}

func (s *GormStore) SavePayment(ctx context.Context, p *models.Payment) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return apperr.Wrap(err, "failed to save payment")
	}
	return nil
}

// TransitionPayment compares against the caller's view of the status and
// swaps in the new one, appending the event in the same transaction. Zero
// rows updated means a concurrent transition won; the caller gets a
// conflict and nothing is written.
func (s *GormStore) TransitionPayment(ctx context.Context, p *models.Payment, to models.PaymentStatus, ev *models.PaymentEvent) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", p.ID, p.Status).
			Updates(map[string]interface{}{
				"status":         to,
				"failure_reason": p.FailureReason,
				"refund_amount":  p.RefundAmount,
				"refund_reason":  p.RefundReason,
				"transaction_id": p.TransactionID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ConflictErr("payment status changed concurrently")
		}
		return tx.Create(ev).Error
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Wrap(err, "failed to transition payment")
	}
	return nil
}

func (s *GormStore) AppendPaymentEvent(ctx context.Context, ev *models.PaymentEvent) error {
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return apperr.Wrap(err, "failed to append payment event")
	}
	return nil
}

func (s *GormStore) ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("status = ? AND method <> ? AND transaction_id IS NOT NULL AND updated_at < ?",
			models.PaymentPending, models.MethodCash, olderThan).
		Find(&payments).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list stale pending payments")
	}
	return payments, nil
}

func (s *GormStore) SeatTaken(ctx context.Context, routeID uuid.UUID, travelDate time.Time, seat string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("route_id = ? AND travel_date = ? AND seat_number = ? AND status IN ?",
			routeID, travelDate.Format("2006-01-02"), seat,
			[]models.BookingStatus{models.BookingPending, models.BookingConfirmed}).
		Count(&count).Error
	if err != nil {
		return false, apperr.Wrap(err, "failed to check seat availability")
	}
	return count > 0, nil
}

func (s *GormStore) GetRoute(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	var route models.Route
	if err := s.db.WithContext(ctx).First(&route, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("route not found")
		}
		return nil, apperr.Wrap(err, "failed to load route")
	}
	return &route, nil
}

func (s *GormStore) ActiveVariations(ctx context.Context, routeID uuid.UUID) ([]models.PriceVariation, error) {
	var variations []models.PriceVariation
	err := s.db.WithContext(ctx).
		Where("route_id = ? AND active = ?", routeID, true).
		Order("created_at asc").
		Find(&variations).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load price variations")
	}
	return variations, nil
}

func (s *GormStore) CreateTransferIfVacant(ctx context.Context, t *models.BookingTransfer) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.BookingTransfer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("booking_id = ? AND status IN ?", t.BookingID,
				[]models.TransferStatus{models.TransferPending, models.TransferApproved}).
			Find(&existing).Error
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperr.ConflictErr("a transfer request already exists for this booking")
		}
		return tx.Create(t).Error
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return err
		}
		return apperr.Wrap(err, "failed to create transfer")
	}
	return nil
}

func (s *GormStore) GetTransfer(ctx context.Context, id uuid.UUID) (*models.BookingTransfer, error) {
	var transfer models.BookingTransfer
	if err := s.db.WithContext(ctx).First(&transfer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("transfer not found")
		}
		return nil, apperr.Wrap(err, "failed to load transfer")
	}
	return &transfer, nil
}

func (s *GormStore) SaveTransfer(ctx context.Context, t *models.BookingTransfer) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return apperr.Wrap(err, "failed to save transfer")
	}
	return nil
}

// UpdateBookingForTransfer commits the seat history row, the booking's new
// route/date/seat/amounts, and the transfer completion as one unit.
func (s *GormStore) UpdateBookingForTransfer(ctx context.Context, t *models.BookingTransfer, h *models.SeatHistory) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(h).Error; err != nil {
			return err
		}
		err := tx.Model(&models.Booking{}).
			Where("id = ?", t.BookingID).
			Updates(map[string]interface{}{
				"route_id":     t.ToRouteID,
				"travel_date":  t.ToTravelDate,
				"seat_number":  t.ToSeat,
				"total_amount": t.NewAmount,
				"actual_price": t.NewAmount,
			}).Error
		if err != nil {
			return err
		}
		return tx.Save(t).Error
	})
	if err != nil {
		return apperr.Wrap(err, "failed to execute transfer")
	}
	return nil
}

func (s *GormStore) CreateWebhookLog(ctx context.Context, l *models.WebhookLog) error {
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return apperr.Wrap(err, "failed to write webhook log")
	}
	return nil
}

func (s *GormStore) ListWebhookLogs(ctx context.Context, paymentID uuid.UUID) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := s.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at asc").
		Find(&logs).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list webhook logs")
	}
	return logs, nil
}

func (s *GormStore) CreateRefundTask(ctx context.Context, rt *models.RefundTask) error {
	if err := s.db.WithContext(ctx).Create(rt).Error; err != nil {
		return apperr.Wrap(err, "failed to create refund task")
	}
	return nil
}

func (s *GormStore) GetRefundTask(ctx context.Context, id uuid.UUID) (*models.RefundTask, error) {
	var task models.RefundTask
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundErr("refund task not found")
		}
		return nil, apperr.Wrap(err, "failed to load refund task")
	}
	return &task, nil
}

func (s *GormStore) SaveRefundTask(ctx context.Context, rt *models.RefundTask) error {
	if err := s.db.WithContext(ctx).Save(rt).Error; err != nil {
		return apperr.Wrap(err, "failed to save refund task")
	}
	return nil
}

func (s *GormStore) ListRefundTasks(ctx context.Context, status models.RefundTaskStatus) ([]models.RefundTask, error) {
	var tasks []models.RefundTask
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at asc").
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list refund tasks")
	}
	return tasks, nil
}
