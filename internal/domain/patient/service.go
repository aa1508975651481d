package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/domain/blood"
	"github.com/vitalink/vitalink/internal/platform/db"
)

// HospitalCounter bumps the hospital roster counter. Satisfied by
// account.HospitalRepository.
type HospitalCounter interface {
	AdjustTotalPatients(ctx context.Context, id uuid.UUID, delta int) error
}

type Service struct {
	repo      Repository
	hospitals HospitalCounter
	tx        db.TxRunner
}

func NewService(repo Repository, hospitals HospitalCounter, tx db.TxRunner) *Service {
	return &Service{repo: repo, hospitals: hospitals, tx: tx}
}

// AddInput carries the fields for a new roster entry.
type AddInput struct {
	Name        string     `json:"name"`
	Age         int        `json:"age"`
	BloodType   blood.Type `json:"blood_type"`
	UnitsNeeded int        `json:"units_needed"`
	Ward        string     `json:"ward"`
	Notes       string     `json:"notes"`
}

// Add puts a patient on the hospital's roster and bumps total_patients in
// the same transaction.
func (s *Service) Add(ctx context.Context, hospitalID uuid.UUID, in AddInput) (*View, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !blood.Valid(in.BloodType) {
		return nil, fmt.Errorf("%w: invalid blood_type %q", ErrInvalidInput, in.BloodType)
	}
	if in.UnitsNeeded < 1 {
		return nil, fmt.Errorf("%w: units_needed must be at least 1", ErrInvalidInput)
	}

	p := &Patient{
		HospitalID:  hospitalID,
		Name:        in.Name,
		Age:         in.Age,
		BloodType:   in.BloodType,
		UnitsNeeded: in.UnitsNeeded,
		Ward:        in.Ward,
		Notes:       in.Notes,
	}
	err := s.tx.RunTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.hospitals.AdjustTotalPatients(ctx, hospitalID, 1)
	})
	if err != nil {
		return nil, err
	}
	return NewView(p), nil
}

// List returns the hospital's roster with derived statuses.
func (s *Service) List(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*View, int, error) {
	items, total, err := s.repo.ListByHospital(ctx, hospitalID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*View, len(items))
	for i, p := range items {
		views[i] = NewView(p)
	}
	return views, total, nil
}

// AddReceivedUnits credits transfused units to a roster patient. The entry
// must belong to the calling hospital.
func (s *Service) AddReceivedUnits(ctx context.Context, patientID, hospitalID uuid.UUID, units int) (*View, error) {
	if units < 1 {
		return nil, fmt.Errorf("%w: units must be at least 1", ErrInvalidInput)
	}
	var p *Patient
	err := s.tx.RunTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByIDForUpdate(ctx, patientID)
		if err != nil {
			return err
		}
		if p.HospitalID != hospitalID {
			return ErrNotFound
		}
		p.UnitsReceived += units
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return NewView(p), nil
}
