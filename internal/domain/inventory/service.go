package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/account"
	"github.com/vitalink/vitalink/internal/domain/blood"
	"github.com/vitalink/vitalink/internal/platform/db"
	"github.com/vitalink/vitalink/internal/platform/notification"
)

// BankLedger is the slice of the account layer holding the blood bank stat
// counters. Satisfied by account.BloodBankRepository.
type BankLedger interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.BloodBank, error)
	AdjustStock(ctx context.Context, id uuid.UUID, stockDelta, dispatchedDelta int) error
	IncrementSuccessfulSends(ctx context.Context, id uuid.UUID) error
}

// EmergencyCrediter credits dispatched units against an open emergency.
// Satisfied by emergency.Service; it joins the dispatch transaction through
// the context.
type EmergencyCrediter interface {
	CreditReceivedUnits(ctx context.Context, emergencyID uuid.UUID, units int) error
}

type Service struct {
	repo     Repository
	banks    BankLedger
	crediter EmergencyCrediter
	resolver account.ContactResolver
	tx       db.TxRunner
	notifier *notification.Service
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, banks BankLedger, crediter EmergencyCrediter,
	resolver account.ContactResolver, tx db.TxRunner, notifier *notification.Service,
	logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		banks:    banks,
		crediter: crediter,
		resolver: resolver,
		tx:       tx,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// AddBatchInput carries the fields for a new preservation batch.
type AddBatchInput struct {
	BloodType       blood.Type `json:"blood_type"`
	Units           int        `json:"units"`
	CollectionDate  time.Time  `json:"collection_date"`
	ExpiryDate      time.Time  `json:"expiry_date"`
	StorageLocation string     `json:"storage_location"`
	DonorInfo       string     `json:"donor_info"`
}

// AddBatch stores a batch and moves the bank's total_stock in the same
// transaction.
func (s *Service) AddBatch(ctx context.Context, bloodBankID uuid.UUID, in AddBatchInput) (*Preservation, error) {
	if !blood.Valid(in.BloodType) {
		return nil, fmt.Errorf("%w: invalid blood_type %q", ErrInvalidInput, in.BloodType)
	}
	if in.Units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", ErrInvalidInput)
	}
	if in.ExpiryDate.IsZero() {
		return nil, fmt.Errorf("%w: expiry_date is required", ErrInvalidInput)
	}
	if in.CollectionDate.IsZero() {
		in.CollectionDate = s.now()
	}
	if !in.ExpiryDate.After(in.CollectionDate) {
		return nil, fmt.Errorf("%w: expiry_date must be after collection_date", ErrInvalidInput)
	}

	p := &Preservation{
		BloodBankID:     bloodBankID,
		BatchID:         NewBatchID(),
		BloodType:       in.BloodType,
		Units:           in.Units,
		CollectionDate:  in.CollectionDate,
		ExpiryDate:      in.ExpiryDate,
		Status:          BatchAvailable,
		StorageLocation: in.StorageLocation,
		DonorInfo:       in.DonorInfo,
		CreatedAt:       s.now(),
	}
	err := s.tx.RunTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateBatch(ctx, p); err != nil {
			return err
		}
		return s.banks.AdjustStock(ctx, bloodBankID, in.Units, 0)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListBatches returns the bank's batches with derived expiry state.
func (s *Service) ListBatches(ctx context.Context, bloodBankID uuid.UUID, limit, offset int) ([]*BatchView, int, error) {
	items, total, err := s.repo.ListBatches(ctx, bloodBankID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	views := make([]*BatchView, len(items))
	for i, p := range items {
		views[i] = NewBatchView(p, now)
	}
	return views, total, nil
}

// DispatchInput carries the fields for a dispatch.
type DispatchInput struct {
	PreservationID   uuid.UUID    `json:"preservation_id"`
	RecipientKind    account.Kind `json:"recipient_kind"`
	RecipientID      uuid.UUID    `json:"recipient_id"`
	Units            int          `json:"units"`
	ExpectedDelivery *time.Time   `json:"expected_delivery,omitempty"`
	EmergencyID      *uuid.UUID   `json:"emergency_id,omitempty"`
	Notes            string       `json:"notes,omitempty"`
}

// Dispatch moves units out of a batch, writes the send record, updates the
// bank counters, and credits the linked emergency, all inside one
// transaction. Any failure rolls the whole dispatch back.
func (s *Service) Dispatch(ctx context.Context, bloodBankID uuid.UUID, in DispatchInput) (*SendRecord, error) {
	if in.Units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", ErrInvalidInput)
	}
	if in.RecipientKind != account.KindHospital && in.RecipientKind != account.KindBloodBank {
		return nil, fmt.Errorf("%w: recipient kind %q cannot receive dispatches", ErrInvalidInput, in.RecipientKind)
	}
	recipient, err := s.resolver.Resolve(ctx, in.RecipientKind, in.RecipientID)
	if err != nil {
		return nil, err
	}

	record := &SendRecord{
		BloodBankID:      bloodBankID,
		PreservationID:   in.PreservationID,
		RecipientKind:    in.RecipientKind,
		RecipientID:      in.RecipientID,
		RecipientName:    recipient.Name,
		Units:            in.Units,
		DispatchDate:     s.now(),
		ExpectedDelivery: in.ExpectedDelivery,
		Status:           SendPending,
		TrackingNumber:   NewTrackingNumber(),
		EmergencyID:      in.EmergencyID,
		Notes:            in.Notes,
	}

	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		batch, err := s.repo.GetBatchByIDForUpdate(ctx, in.PreservationID)
		if err != nil {
			return err
		}
		// A batch owned by another bank is indistinguishable from a missing one.
		if batch.BloodBankID != bloodBankID {
			return ErrNotFound
		}
		if batch.Status != BatchAvailable {
			return ErrInvalidState
		}
		if batch.Units < in.Units {
			return ErrInsufficientUnits
		}

		batch.Units -= in.Units
		if batch.Units == 0 {
			batch.Status = BatchDispatched
		} else {
			batch.Status = BatchReserved
		}
		if err := s.repo.UpdateBatch(ctx, batch); err != nil {
			return err
		}

		record.BloodType = batch.BloodType
		if err := s.repo.CreateSendRecord(ctx, record); err != nil {
			return err
		}
		if err := s.banks.AdjustStock(ctx, bloodBankID, -in.Units, in.Units); err != nil {
			return err
		}
		if in.EmergencyID != nil && s.crediter != nil {
			return s.crediter.CreditReceivedUnits(ctx, *in.EmergencyID, in.Units)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateSendStatus advances a send record. Delivered and failed are terminal;
// a transition to delivered bumps the bank's successful_sends in the same
// transaction.
func (s *Service) UpdateSendStatus(ctx context.Context, recordID, bloodBankID uuid.UUID, status string, actualDelivery *time.Time) (*SendRecord, error) {
	if status != SendInTransit && status != SendDelivered && status != SendFailed {
		return nil, fmt.Errorf("%w: invalid send status %q", ErrInvalidInput, status)
	}

	var record *SendRecord
	err := s.tx.RunTx(ctx, func(ctx context.Context) error {
		var err error
		record, err = s.repo.GetSendRecordByIDForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if record.BloodBankID != bloodBankID {
			return ErrNotFound
		}
		if TerminalSendStatus(record.Status) {
			return ErrInvalidState
		}

		record.Status = status
		if status == SendDelivered {
			if actualDelivery == nil {
				now := s.now()
				actualDelivery = &now
			}
			record.ActualDelivery = actualDelivery
			if err := s.banks.IncrementSuccessfulSends(ctx, bloodBankID); err != nil {
				return err
			}
		}
		return s.repo.UpdateSendRecord(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	if status == SendInTransit {
		s.notifyInTransit(ctx, record)
	}
	return record, nil
}

func (s *Service) ListSendRecords(ctx context.Context, bloodBankID uuid.UUID, limit, offset int) ([]*SendRecord, int, error) {
	return s.repo.ListSendRecords(ctx, bloodBankID, limit, offset)
}

func (s *Service) StockSummary(ctx context.Context, bloodBankID uuid.UUID) ([]StockEntry, error) {
	return s.repo.StockSummary(ctx, bloodBankID)
}

// BankStats is the dashboard aggregate for one blood bank.
type BankStats struct {
	TotalStock      int          `json:"total_stock"`
	TotalDispatched int          `json:"total_dispatched"`
	SuccessfulSends int          `json:"successful_sends"`
	SuccessRate     float64      `json:"success_rate"`
	Stock           []StockEntry `json:"stock"`
}

func (s *Service) Stats(ctx context.Context, bloodBankID uuid.UUID) (*BankStats, error) {
	bank, err := s.banks.GetByID(ctx, bloodBankID)
	if err != nil {
		return nil, err
	}
	total, delivered, err := s.repo.CountSendRecords(ctx, bloodBankID)
	if err != nil {
		return nil, err
	}
	stock, err := s.repo.StockSummary(ctx, bloodBankID)
	if err != nil {
		return nil, err
	}
	return &BankStats{
		TotalStock:      bank.TotalStock,
		TotalDispatched: bank.TotalDispatched,
		SuccessfulSends: bank.SuccessfulSends,
		SuccessRate:     SuccessRatePercent(delivered, total),
		Stock:           stock,
	}, nil
}

func (s *Service) notifyInTransit(ctx context.Context, record *SendRecord) {
	if s.notifier == nil {
		return
	}
	recipient, err := s.resolver.Resolve(ctx, record.RecipientKind, record.RecipientID)
	if err != nil {
		s.logger.Error().Err(err).Str("record", record.ID.String()).Msg("inventory: resolve recipient")
		return
	}
	s.notifier.SendAsync(&notification.Notification{
		Type:       notification.TypeSMS,
		Recipient:  recipient.Phone,
		TemplateID: "dispatch-in-transit",
		TemplateData: map[string]string{
			"tracking_number": record.TrackingNumber,
			"units":           strconv.Itoa(record.Units),
			"blood_type":      string(record.BloodType),
		},
	})
}
