package emergency

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

// pledgeReputation is the reputation credited to a donor per pledge.
const pledgeReputation = 5

// DonorDirectory is the slice of the account layer the coordinator needs for
// donors. Satisfied by account.DonorRepository.
type DonorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Donor, error)
	RecordPledge(ctx context.Context, id uuid.UUID, reputationDelta int) (int, error)
	ListEmailsByCity(ctx context.Context, city string) ([]string, error)
}

// HospitalCounter bumps the hospital stat counters. Satisfied by
// account.HospitalRepository.
type HospitalCounter interface {
	IncrementEmergenciesCreated(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo      Repository
	donors    DonorDirectory
	hospitals HospitalCounter
	resolver  account.ContactResolver
	tx        db.TxRunner
	publisher realtime.Publisher
	notifier  *notification.Service
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, donors DonorDirectory, hospitals HospitalCounter,
	resolver account.ContactResolver, tx db.TxRunner, publisher realtime.Publisher,
	notifier *notification.Service, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		donors:    donors,
		hospitals: hospitals,
		resolver:  resolver,
		tx:        tx,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateInput carries the caller-supplied fields for a new emergency.
// City, location, and contact phone come from the creator's account.
type CreateInput struct {
	BloodType   blood.Type `json:"blood_type"`
	UnitsNeeded int        `json:"units_needed"`
	Priority    string     `json:"priority"`
	Description string     `json:"description"`
}

// Create opens an emergency on behalf of a hospital or blood bank, counts it
// against the hospital's stats in the same transaction, and broadcasts it to
// the city room and both responder role rooms.
func (s *Service) Create(ctx context.Context, creatorKind account.Kind, creatorID uuid.UUID, in CreateInput) (*Emergency, error) {
	if creatorKind != account.KindHospital && creatorKind != account.KindBloodBank {
		return nil, fmt.Errorf("%w: creator kind %q cannot open emergencies", ErrInvalidInput, creatorKind)
	}
	if !blood.Valid(in.BloodType) {
		return nil, fmt.Errorf("%w: invalid blood_type %q", ErrInvalidInput, in.BloodType)
	}
	if in.UnitsNeeded < 1 {
		return nil, fmt.Errorf("%w: units_needed must be at least 1", ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = PriorityHigh
	}
	if !ValidPriority(in.Priority) {
		return nil, fmt.Errorf("%w: invalid priority %q", ErrInvalidInput, in.Priority)
	}

	creator, err := s.resolver.Resolve(ctx, creatorKind, creatorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	e := &Emergency{
		CreatorKind:  creatorKind,
		CreatorID:    creatorID,
		CreatorName:  creator.Name,
		BloodType:    in.BloodType,
		UnitsNeeded:  in.UnitsNeeded,
		City:         creator.City,
		Location:     creator.Location,
		ContactPhone: creator.Phone,
		Status:       StatusActive,
		Priority:     in.Priority,
		Description:  in.Description,
		ExpiresAt:    now.Add(DefaultTTL),
		CreatedAt:    now,
	}

	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, e); err != nil {
			return err
		}
		if creatorKind == account.KindHospital {
			return s.hospitals.IncrementEmergenciesCreated(ctx, creatorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("emergency.created", e, realtime.CityRoom(e.City),
		realtime.RoleRoom("donor"), realtime.RoleRoom("bloodbank"))
	s.alertCityDonors(ctx, e)

	return e, nil
}

// RespondResult is returned to the pledging donor.
type RespondResult struct {
	Emergency  *Emergency `json:"emergency"`
	Reputation int        `json:"reputation"`
}

// Respond records a donor's pledge. The emergency row is locked for the whole
// transaction, so two pledges from the same donor cannot interleave and the
// duplicate check holds under concurrency.
func (s *Service) Respond(ctx context.Context, emergencyID, donorID uuid.UUID, units int) (*RespondResult, error) {
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", ErrInvalidInput)
	}
	donor, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, err
	}

	var (
		e          *Emergency
		reputation int
	)
	err = s.tx.RunTx(ctx, func(ctx context.Context) error {
		e, err = s.repo.GetByIDForUpdate(ctx, emergencyID)
		if err != nil {
			return err
		}
		if e.Status != StatusActive || e.Expired(s.now()) {
			return ErrInvalidState
		}
		dup, err := s.repo.HasResponse(ctx, emergencyID, donorID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateResponse
		}
		if err := s.repo.AddResponse(ctx, &Response{
			EmergencyID:  emergencyID,
			DonorID:      donorID,
			DonorName:    donor.Name,
			UnitsPledged: units,
			Status:       ResponseStatusPledged,
			RespondedAt:  s.now(),
		}); err != nil {
			return err
		}
		e.UnitsPledged += units
		if err := s.repo.Update(ctx, e); err != nil {
			return err
		}
		reputation, err = s.donors.RecordPledge(ctx, donorID, pledgeReputation)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("emergency.response", map[string]interface{}{
		"emergency_id":  e.ID,
		"donor_name":    donor.Name,
		"units_pledged": units,
		"total_pledged": e.UnitsPledged,
	}, realtime.UserRoom(e.CreatorID))
	s.notifyPledge(ctx, e, donor.Name, units)

	return &RespondResult{Emergency: e, Reputation: reputation}, nil
}

// ListCompatible lists active emergencies the donor's blood can serve,
// restricted to a city (the donor's own when none given).
func (s *Service) ListCompatible(ctx context.Context, donorID uuid.UUID, city string, limit int) ([]*Emergency, error) {
	donor, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if city == "" {
		city = donor.City
	}
	if limit <= 0 {
		limit = 50
	}
	all, err := s.repo.ListActive(ctx, city, limit)
	if err != nil {
		return nil, err
	}
	matches := make([]*Emergency, 0, len(all))
	for _, e := range all {
		if blood.CompatibleDonor(blood.Type(donor.BloodGroup), e.BloodType) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// ListLatest is the public feed of active emergencies.
func (s *Service) ListLatest(ctx context.Context, city string, limit int) ([]*Emergency, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.ListActive(ctx, city, limit)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListResponses(ctx context.Context, emergencyID uuid.UUID) ([]*Response, error) {
	return s.repo.ListResponses(ctx, emergencyID)
}

// Cancel withdraws an active emergency. Only its creator may cancel.
func (s *Service) Cancel(ctx context.Context, emergencyID uuid.UUID, creatorKind account.Kind, creatorID uuid.UUID) (*Emergency, error) {
	var e *Emergency
	err := s.tx.RunTx(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.repo.GetByIDForUpdate(ctx, emergencyID)
		if err != nil {
			return err
		}
		if e.CreatorKind != creatorKind || e.CreatorID != creatorID {
			return ErrForbidden
		}
		if e.Status != StatusActive {
			return ErrInvalidState
		}
		e.Status = StatusCancelled
		return s.repo.Update(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CreditReceivedUnits applies delivered units against an emergency, flipping
// it to fulfilled once the need is met. Called from the dispatch transaction;
// it joins the enclosing transaction through the context.
func (s *Service) CreditReceivedUnits(ctx context.Context, emergencyID uuid.UUID, units int) error {
	e, err := s.repo.GetByIDForUpdate(ctx, emergencyID)
	if err != nil {
		return err
	}
	e.ApplyReceivedUnits(units)
	return s.repo.Update(ctx, e)
}

func (s *Service) broadcast(event string, payload interface{}, rooms ...string) {
	if s.publisher == nil {
		return
	}
	for _, room := range rooms {
		s.publisher.Publish(room, event, payload)
	}
}

func (s *Service) alertCityDonors(ctx context.Context, e *Emergency) {
	if s.notifier == nil {
		return
	}
	emails, err := s.donors.ListEmailsByCity(ctx, e.City)
	if err != nil {
		s.logger.Error().Err(err).Str("city", e.City).Msg("emergency: list donor emails")
		return
	}
	data := map[string]string{
		"blood_type":   string(e.BloodType),
		"city":         e.City,
		"creator_name": e.CreatorName,
		"units":        strconv.Itoa(e.UnitsNeeded),
	}
	for _, email := range emails {
		s.notifier.SendAsync(&notification.Notification{
			Type:         notification.TypeEmail,
			Recipient:    email,
			TemplateID:   "emergency-alert",
			TemplateData: data,
		})
	}
}

func (s *Service) notifyPledge(ctx context.Context, e *Emergency, donorName string, units int) {
	if s.notifier == nil {
		return
	}
	creator, err := s.resolver.Resolve(ctx, e.CreatorKind, e.CreatorID)
	if err != nil {
		s.logger.Error().Err(err).Str("emergency", e.ID.String()).Msg("emergency: resolve creator")
		return
	}
	s.notifier.SendAsync(&notification.Notification{
		Type:       notification.TypeEmail,
		Recipient:  creator.Email,
		TemplateID: "pledge-received",
		TemplateData: map[string]string{
			"donor_name": donorName,
			"units":      strconv.Itoa(units),
			"blood_type": string(e.BloodType),
		},
	})
}
