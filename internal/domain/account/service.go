package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/domain/blood"
	"github.com/vitalink/vitalink/internal/platform/auth"
)

// ContactResolver resolves a (kind, id) reference to the contact details of
// the account it points at, whichever table that is.
type ContactResolver interface {
	Resolve(ctx context.Context, kind Kind, id uuid.UUID) (*Contact, error)
}

// RegisterInput carries the fields accepted at sign-up. Role decides which
// table the account lands in and which extra fields are required.
type RegisterInput struct {
	Role       string `json:"role"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone"`
	City       string `json:"city"`
	Location   string `json:"location"`
	BloodGroup string `json:"blood_group,omitempty"`
	Age        int    `json:"age,omitempty"`
}

// LoginInput carries the fields accepted at sign-in.
type LoginInput struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned from both Register and Login.
type AuthResult struct {
	Token string    `json:"token"`
	ID    uuid.UUID `json:"id"`
	Role  string    `json:"role"`
	Name  string    `json:"name"`
}

type Service struct {
	hospitals HospitalRepository
	banks     BloodBankRepository
	donors    DonorRepository
	patients  PatientUserRepository
	tokens    *auth.TokenService
}

func NewService(hospitals HospitalRepository, banks BloodBankRepository, donors DonorRepository, patients PatientUserRepository, tokens *auth.TokenService) *Service {
	return &Service{hospitals: hospitals, banks: banks, donors: donors, patients: patients, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !auth.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if in.City == "" {
		return nil, fmt.Errorf("%w: city is required", ErrInvalidInput)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var id uuid.UUID
	switch in.Role {
	case auth.RoleHospital:
		h := &Hospital{Name: in.Name, Email: in.Email, PasswordHash: hash,
			Phone: in.Phone, City: in.City, Location: in.Location}
		if err := s.hospitals.Create(ctx, h); err != nil {
			return nil, createErr(err)
		}
		id = h.ID
	case auth.RoleBloodBank:
		b := &BloodBank{Name: in.Name, Email: in.Email, PasswordHash: hash,
			Phone: in.Phone, City: in.City, Location: in.Location}
		if err := s.banks.Create(ctx, b); err != nil {
			return nil, createErr(err)
		}
		id = b.ID
	case auth.RoleDonor:
		if !blood.Valid(blood.Type(in.BloodGroup)) {
			return nil, fmt.Errorf("%w: invalid blood_group %q", ErrInvalidInput, in.BloodGroup)
		}
		d := &Donor{Name: in.Name, Email: in.Email, PasswordHash: hash,
			Phone: in.Phone, City: in.City, Location: in.Location, BloodGroup: in.BloodGroup}
		if err := s.donors.Create(ctx, d); err != nil {
			return nil, createErr(err)
		}
		id = d.ID
	case auth.RolePatient:
		if !blood.Valid(blood.Type(in.BloodGroup)) {
			return nil, fmt.Errorf("%w: invalid blood_group %q", ErrInvalidInput, in.BloodGroup)
		}
		if in.Age <= 0 {
			return nil, fmt.Errorf("%w: age is required", ErrInvalidInput)
		}
		p := &PatientUser{Name: in.Name, Email: in.Email, PasswordHash: hash,
			Phone: in.Phone, City: in.City, Location: in.Location, Age: in.Age, BloodGroup: in.BloodGroup}
		if err := s.patients.Create(ctx, p); err != nil {
			return nil, createErr(err)
		}
		id = p.ID
	}

	token, err := s.tokens.Issue(id, in.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ID: id, Role: in.Role, Name: in.Name}, nil
}

// createErr keeps unique-violation noise out of callers: a duplicate email is
// the only constraint an insert can trip on these tables.
func createErr(err error) error {
	if strings.Contains(err.Error(), "duplicate key") {
		return ErrEmailTaken
	}
	return err
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if !auth.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}

	var (
		id   uuid.UUID
		name string
		hash string
		err  error
	)
	switch in.Role {
	case auth.RoleHospital:
		var h *Hospital
		if h, err = s.hospitals.GetByEmail(ctx, in.Email); err == nil {
			id, name, hash = h.ID, h.Name, h.PasswordHash
		}
	case auth.RoleBloodBank:
		var b *BloodBank
		if b, err = s.banks.GetByEmail(ctx, in.Email); err == nil {
			id, name, hash = b.ID, b.Name, b.PasswordHash
		}
	case auth.RoleDonor:
		var d *Donor
		if d, err = s.donors.GetByEmail(ctx, in.Email); err == nil {
			id, name, hash = d.ID, d.Name, d.PasswordHash
		}
	case auth.RolePatient:
		var p *PatientUser
		if p, err = s.patients.GetByEmail(ctx, in.Email); err == nil {
			id, name, hash = p.ID, p.Name, p.PasswordHash
		}
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(hash, in.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(id, in.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ID: id, Role: in.Role, Name: name}, nil
}

// Resolve implements ContactResolver over the four account tables.
func (s *Service) Resolve(ctx context.Context, kind Kind, id uuid.UUID) (*Contact, error) {
	switch kind {
	case KindHospital:
		h, err := s.hospitals.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Contact{ID: h.ID, Kind: kind, Name: h.Name, Email: h.Email,
			Phone: h.Phone, City: h.City, Location: h.Location}, nil
	case KindBloodBank:
		b, err := s.banks.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Contact{ID: b.ID, Kind: kind, Name: b.Name, Email: b.Email,
			Phone: b.Phone, City: b.City, Location: b.Location}, nil
	case KindDonor:
		d, err := s.donors.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Contact{ID: d.ID, Kind: kind, Name: d.Name, Email: d.Email,
			Phone: d.Phone, City: d.City, Location: d.Location}, nil
	case KindPatient:
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Contact{ID: p.ID, Kind: kind, Name: p.Name, Email: p.Email,
			Phone: p.Phone, City: p.City, Location: p.Location}, nil
	}
	return nil, fmt.Errorf("%w: unknown account kind %q", ErrInvalidInput, kind)
}

func (s *Service) GetDonor(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return s.donors.GetByID(ctx, id)
}

func (s *Service) GetBloodBank(ctx context.Context, id uuid.UUID) (*BloodBank, error) {
	return s.banks.GetByID(ctx, id)
}

func (s *Service) DonorEmailsByCity(ctx context.Context, city string) ([]string, error) {
	return s.donors.ListEmailsByCity(ctx, city)
}

var _ ContactResolver = (*Service)(nil)
