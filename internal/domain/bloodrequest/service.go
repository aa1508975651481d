package bloodrequest

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
	"github.com/vitalink/vitalink/internal/platform/realtime"
)

// PatientDirectory is the slice of the account layer needed for requesters.
// Satisfied by account.PatientUserRepository.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.PatientUser, error)
}

// BankDirectory is the slice of the account layer needed for responders.
// Satisfied by account.BloodBankRepository.
type BankDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.BloodBank, error)
}

type Service struct {
	repo      Repository
	patients  PatientDirectory
	banks     BankDirectory
	tx        db.TxRunner
	publisher realtime.Publisher
	notifier  *notification.Service
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, patients PatientDirectory, banks BankDirectory,
	tx db.TxRunner, publisher realtime.Publisher, notifier *notification.Service,
	logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		patients:  patients,
		banks:     banks,
		tx:        tx,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateInput carries the caller-supplied fields for a new request.
// Demographics default to the patient's account values when omitted.
type CreateInput struct {
	PatientName string     `json:"patient_name"`
	Age         int        `json:"age"`
	BloodGroup  blood.Type `json:"blood_group"`
	UnitsNeeded int        `json:"units_needed"`
	Urgency     string     `json:"urgency"`
	Description string     `json:"description"`
}

// Create opens a blood request and broadcasts it to the city room and the
// blood bank role room.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, in CreateInput) (*BloodRequest, error) {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if in.PatientName == "" {
		in.PatientName = patient.Name
	}
	if in.Age == 0 {
		in.Age = patient.Age
	}
	if in.BloodGroup == "" {
		in.BloodGroup = blood.Type(patient.BloodGroup)
	}
	if !blood.Valid(in.BloodGroup) {
		return nil, fmt.Errorf("%w: invalid blood_group %q", ErrInvalidInput, in.BloodGroup)
	}
	if in.UnitsNeeded < 1 {
		return nil, fmt.Errorf("%w: units_needed must be at least 1", ErrInvalidInput)
	}
	if in.Urgency == "" {
		in.Urgency = UrgencyMedium
	}
	if !ValidUrgency(in.Urgency) {
		return nil, fmt.Errorf("%w: invalid urgency %q", ErrInvalidInput, in.Urgency)
	}

	r := &BloodRequest{
		PatientID:   patientID,
		PatientName: in.PatientName,
		Age:         in.Age,
		BloodGroup:  in.BloodGroup,
		UnitsNeeded: in.UnitsNeeded,
		Phone:       patient.Phone,
		City:        patient.City,
		Location:    patient.Location,
		Urgency:     in.Urgency,
		Status:      StatusPending,
		Description: in.Description,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	s.broadcast("blood.request.created", r,
		realtime.CityRoom(r.City), realtime.RoleRoom("bloodbank"))
	return r, nil
}

// AcceptResult pairs the accepted request with the patient's contact details
// so the blood bank can reach them.
type AcceptResult struct {
	Request        *BloodRequest    `json:"request"`
	PatientContact *account.Contact `json:"patient_contact"`
}

// Accept claims a pending request for a blood bank. The row lock makes two
// competing banks serialize: the second sees status accepted and fails.
func (s *Service) Accept(ctx context.Context, requestID, bloodBankID uuid.UUID) (*AcceptResult, error) {
	bank, err := s.banks.GetByID(ctx, bloodBankID)
	if err != nil {
		return nil, err
	}

	var r *BloodRequest
	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		r, err = s.repo.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusPending {
			return ErrInvalidState
		}
		now := s.now()
		r.Status = StatusAccepted
		r.AcceptedByID = &bank.ID
		r.AcceptedByName = &bank.Name
		r.AcceptedAt = &now
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		return s.repo.AddResponse(ctx, &RequestResponse{
			RequestID:     requestID,
			BloodBankID:   bank.ID,
			BloodBankName: bank.Name,
			Status:        ResponseAccepted,
			RespondedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.GetByID(ctx, r.PatientID)
	if err != nil {
		return nil, err
	}
	contact := &account.Contact{
		ID: patient.ID, Kind: account.KindPatient, Name: patient.Name,
		Email: patient.Email, Phone: patient.Phone, City: patient.City, Location: patient.Location,
	}

	s.broadcast("blood.request.accepted", map[string]interface{}{
		"request_id":      r.ID,
		"blood_bank_id":   bank.ID,
		"blood_bank_name": bank.Name,
	}, realtime.UserRoom(r.PatientID))
	s.notifyAccepted(r, bank.Name, patient.Phone)

	return &AcceptResult{Request: r, PatientContact: contact}, nil
}

// Respond records an interested or declined response without claiming the
// request.
func (s *Service) Respond(ctx context.Context, requestID, bloodBankID uuid.UUID, status, message string) (*RequestResponse, error) {
	if status != ResponseInterested && status != ResponseDeclined {
		return nil, fmt.Errorf("%w: status must be %q or %q", ErrInvalidInput, ResponseInterested, ResponseDeclined)
	}
	bank, err := s.banks.GetByID(ctx, bloodBankID)
	if err != nil {
		return nil, err
	}

	resp := &RequestResponse{
		RequestID:     requestID,
		BloodBankID:   bank.ID,
		BloodBankName: bank.Name,
		Status:        status,
		Message:       message,
		RespondedAt:   s.now(),
	}
	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusPending {
			return ErrInvalidState
		}
		dup, err := s.repo.HasResponse(ctx, requestID, bloodBankID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateResponse
		}
		return s.repo.AddResponse(ctx, resp)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Fulfill closes an accepted request. Only the accepting bank may fulfill.
func (s *Service) Fulfill(ctx context.Context, requestID, bloodBankID uuid.UUID) (*BloodRequest, error) {
	var r *BloodRequest
	err := s.tx.RunTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repo.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status != StatusAccepted {
			return ErrInvalidState
		}
		if r.AcceptedByID == nil || *r.AcceptedByID != bloodBankID {
			return ErrForbidden
		}
		r.Status = StatusFulfilled
		return s.repo.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Cancel withdraws a request. Fulfilled and already-cancelled requests stay
// as they are.
func (s *Service) Cancel(ctx context.Context, requestID, patientID uuid.UUID, reason string) (*BloodRequest, error) {
	if reason == "" {
		reason = DefaultCancellationReason
	}
	var r *BloodRequest
	err := s.tx.RunTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repo.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if r.PatientID != patientID {
			return ErrForbidden
		}
		if r.Status == StatusFulfilled || r.Status == StatusCancelled {
			return ErrInvalidState
		}
		now := s.now()
		r.Status = StatusCancelled
		r.CancelledAt = &now
		r.CancellationReason = &reason
		return s.repo.Update(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("blood.request.cancelled", map[string]interface{}{
		"request_id": r.ID,
		"reason":     reason,
	}, realtime.CityRoom(r.City))
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByCity(ctx context.Context, city, status string, limit, offset int) ([]*BloodRequest, int, error) {
	return s.repo.ListByCity(ctx, city, status, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*BloodRequest, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListResponses(ctx context.Context, requestID uuid.UUID) ([]*RequestResponse, error) {
	return s.repo.ListResponses(ctx, requestID)
}

func (s *Service) broadcast(event string, payload interface{}, rooms ...string) {
	if s.publisher == nil {
		return
	}
	for _, room := range rooms {
		s.publisher.Publish(room, event, payload)
	}
}

func (s *Service) notifyAccepted(r *BloodRequest, bankName, phone string) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendAsync(&notification.Notification{
		Type:       notification.TypeSMS,
		Recipient:  phone,
		TemplateID: "request-accepted",
		TemplateData: map[string]string{
			"patient_name":    r.PatientName,
			"blood_bank_name": bankName,
			"units":           strconv.Itoa(r.UnitsNeeded),
			"blood_group":     string(r.BloodGroup),
			"phone":           r.Phone,
		},
	})
}
