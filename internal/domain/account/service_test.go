package account

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/platform/auth"
)

// -- Mock Repositories --

type mockHospitalRepo struct {
	byID map[uuid.UUID]*Hospital
}

func newMockHospitalRepo() *mockHospitalRepo {
	return &mockHospitalRepo{byID: make(map[uuid.UUID]*Hospital)}
}

func (m *mockHospitalRepo) Create(_ context.Context, h *Hospital) error {
	for _, existing := range m.byID {
		if existing.Email == h.Email {
			return fmt.Errorf(`duplicate key value violates unique constraint "hospital_email_key"`)
		}
	}
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	m.byID[h.ID] = h
	return nil
}

func (m *mockHospitalRepo) GetByID(_ context.Context, id uuid.UUID) (*Hospital, error) {
	h, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

func (m *mockHospitalRepo) GetByEmail(_ context.Context, email string) (*Hospital, error) {
	for _, h := range m.byID {
		if h.Email == email {
			return h, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockHospitalRepo) IncrementEmergenciesCreated(_ context.Context, id uuid.UUID) error {
	h, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	h.EmergenciesCreated++
	return nil
}

func (m *mockHospitalRepo) AdjustTotalPatients(_ context.Context, id uuid.UUID, delta int) error {
	h, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	h.TotalPatients += delta
	return nil
}

type mockBloodBankRepo struct {
	byID map[uuid.UUID]*BloodBank
}

func newMockBloodBankRepo() *mockBloodBankRepo {
	return &mockBloodBankRepo{byID: make(map[uuid.UUID]*BloodBank)}
}

func (m *mockBloodBankRepo) Create(_ context.Context, b *BloodBank) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	m.byID[b.ID] = b
	return nil
}

func (m *mockBloodBankRepo) GetByID(_ context.Context, id uuid.UUID) (*BloodBank, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *mockBloodBankRepo) GetByEmail(_ context.Context, email string) (*BloodBank, error) {
	for _, b := range m.byID {
		if b.Email == email {
			return b, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockBloodBankRepo) AdjustStock(_ context.Context, id uuid.UUID, stockDelta, dispatchedDelta int) error {
	b, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	b.TotalStock += stockDelta
	b.TotalDispatched += dispatchedDelta
	return nil
}

func (m *mockBloodBankRepo) IncrementSuccessfulSends(_ context.Context, id uuid.UUID) error {
	b, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	b.SuccessfulSends++
	return nil
}

type mockDonorRepo struct {
	byID map[uuid.UUID]*Donor
}

func newMockDonorRepo() *mockDonorRepo {
	return &mockDonorRepo{byID: make(map[uuid.UUID]*Donor)}
}

func (m *mockDonorRepo) Create(_ context.Context, d *Donor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.byID[d.ID] = d
	return nil
}

func (m *mockDonorRepo) GetByID(_ context.Context, id uuid.UUID) (*Donor, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *mockDonorRepo) GetByEmail(_ context.Context, email string) (*Donor, error) {
	for _, d := range m.byID {
		if d.Email == email {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDonorRepo) RecordPledge(_ context.Context, id uuid.UUID, reputationDelta int) (int, error) {
	d, ok := m.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	d.TotalPledges++
	d.Reputation += reputationDelta
	return d.Reputation, nil
}

func (m *mockDonorRepo) ListEmailsByCity(_ context.Context, city string) ([]string, error) {
	var emails []string
	for _, d := range m.byID {
		if d.City == city {
			emails = append(emails, d.Email)
		}
	}
	return emails, nil
}

type mockPatientUserRepo struct {
	byID map[uuid.UUID]*PatientUser
}

func newMockPatientUserRepo() *mockPatientUserRepo {
	return &mockPatientUserRepo{byID: make(map[uuid.UUID]*PatientUser)}
}

func (m *mockPatientUserRepo) Create(_ context.Context, p *PatientUser) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.byID[p.ID] = p
	return nil
}

func (m *mockPatientUserRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientUser, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPatientUserRepo) GetByEmail(_ context.Context, email string) (*PatientUser, error) {
	for _, p := range m.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func newTestService() *Service {
	tokens := auth.NewTokenService([]byte("test-secret-test-secret"), time.Hour)
	return NewService(newMockHospitalRepo(), newMockBloodBankRepo(), newMockDonorRepo(), newMockPatientUserRepo(), tokens)
}

// -- Tests --

func TestRegisterAndLoginDonor(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{
		Role: auth.RoleDonor, Name: "Asha", Email: "Asha@Example.com",
		Password: "supersafe1", Phone: "555-0101", City: "Pune", BloodGroup: "O-",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.Token == "" || reg.ID == uuid.Nil {
		t.Fatal("expected token and id")
	}

	login, err := svc.Login(ctx, LoginInput{Role: auth.RoleDonor, Email: "asha@example.com", Password: "supersafe1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.ID != reg.ID {
		t.Errorf("login id %s, want %s", login.ID, reg.ID)
	}
	if login.Name != "Asha" {
		t.Errorf("login name %q, want Asha", login.Name)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []RegisterInput{
		{Role: "superuser", Name: "x", Email: "x@y.z", Password: "longenough", City: "Pune"},
		{Role: auth.RoleDonor, Email: "x@y.z", Password: "longenough", City: "Pune", BloodGroup: "A+"},
		{Role: auth.RoleDonor, Name: "x", Email: "not-an-email", Password: "longenough", City: "Pune", BloodGroup: "A+"},
		{Role: auth.RoleDonor, Name: "x", Email: "x@y.z", Password: "short", City: "Pune", BloodGroup: "A+"},
		{Role: auth.RoleDonor, Name: "x", Email: "x@y.z", Password: "longenough", BloodGroup: "A+"},
		{Role: auth.RoleDonor, Name: "x", Email: "x@y.z", Password: "longenough", City: "Pune", BloodGroup: "Q+"},
		{Role: auth.RolePatient, Name: "x", Email: "x@y.z", Password: "longenough", City: "Pune", BloodGroup: "A+"},
	}
	for i, in := range cases {
		if _, err := svc.Register(ctx, in); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	in := RegisterInput{
		Role: auth.RoleHospital, Name: "City General", Email: "ops@citygeneral.org",
		Password: "supersafe1", City: "Pune",
	}
	if _, err := svc.Register(ctx, in); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, in); err != ErrEmailTaken {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{
		Role: auth.RoleBloodBank, Name: "Central Bank", Email: "central@bank.org",
		Password: "supersafe1", City: "Pune",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, LoginInput{Role: auth.RoleBloodBank, Email: "central@bank.org", Password: "wrongpass1"}); err != ErrInvalidCredentials {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Role: auth.RoleBloodBank, Email: "nobody@bank.org", Password: "supersafe1"}); err != ErrInvalidCredentials {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Role: auth.RoleDonor, Email: "central@bank.org", Password: "supersafe1"}); err != ErrInvalidCredentials {
		t.Errorf("wrong role table: got %v, want ErrInvalidCredentials", err)
	}
}

func TestResolveContact(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{
		Role: auth.RoleHospital, Name: "City General", Email: "ops@citygeneral.org",
		Password: "supersafe1", Phone: "555-0199", City: "Pune", Location: "FC Road",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	contact, err := svc.Resolve(ctx, KindHospital, reg.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if contact.Name != "City General" || contact.Phone != "555-0199" || contact.City != "Pune" {
		t.Errorf("unexpected contact %+v", contact)
	}

	if _, err := svc.Resolve(ctx, KindDonor, reg.ID); err != ErrNotFound {
		t.Errorf("cross-kind resolve: got %v, want ErrNotFound", err)
	}
	if _, err := svc.Resolve(ctx, Kind("ghost"), reg.ID); err == nil {
		t.Error("unknown kind: expected error")
	}
}
