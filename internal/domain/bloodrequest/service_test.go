package bloodrequest

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/account"
	"github.com/vitalink/vitalink/internal/domain/blood"
	"github.com/vitalink/vitalink/internal/platform/db"
)

// -- Mock Repositories --

type mockRepo struct {
	requests  map[uuid.UUID]*BloodRequest
	responses []*RequestResponse
}

func newMockRepo() *mockRepo {
	return &mockRepo{requests: make(map[uuid.UUID]*BloodRequest)}
}

func (m *mockRepo) Create(_ context.Context, r *BloodRequest) error {
	r.ID = uuid.New()
	m.requests[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*BloodRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return m.GetByID(ctx, id)
}

func (m *mockRepo) Update(_ context.Context, r *BloodRequest) error {
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *mockRepo) ListByCity(_ context.Context, city, status string, limit, offset int) ([]*BloodRequest, int, error) {
	var items []*BloodRequest
	for _, r := range m.requests {
		if city != "" && r.City != city {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, len(items), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*BloodRequest, int, error) {
	var items []*BloodRequest
	for _, r := range m.requests {
		if r.PatientID == patientID {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) AddResponse(_ context.Context, resp *RequestResponse) error {
	resp.ID = uuid.New()
	m.responses = append(m.responses, resp)
	return nil
}

func (m *mockRepo) HasResponse(_ context.Context, requestID, bloodBankID uuid.UUID) (bool, error) {
	for _, r := range m.responses {
		if r.RequestID == requestID && r.BloodBankID == bloodBankID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ListResponses(_ context.Context, requestID uuid.UUID) ([]*RequestResponse, error) {
	var items []*RequestResponse
	for _, r := range m.responses {
		if r.RequestID == requestID {
			items = append(items, r)
		}
	}
	return items, nil
}

type mockPatients struct {
	patients map[uuid.UUID]*account.PatientUser
}

func (m *mockPatients) GetByID(_ context.Context, id uuid.UUID) (*account.PatientUser, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return p, nil
}

type mockBanks struct {
	banks map[uuid.UUID]*account.BloodBank
}

func (m *mockBanks) GetByID(_ context.Context, id uuid.UUID) (*account.BloodBank, error) {
	b, ok := m.banks[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return b, nil
}

type published struct {
	room  string
	event string
}

type mockPublisher struct {
	events []published
}

func (m *mockPublisher) Publish(room, event string, _ interface{}) {
	m.events = append(m.events, published{room: room, event: event})
}

func (m *mockPublisher) rooms(event string) []string {
	var rooms []string
	for _, p := range m.events {
		if p.event == event {
			rooms = append(rooms, p.room)
		}
	}
	sort.Strings(rooms)
	return rooms
}

type fixture struct {
	svc       *Service
	repo      *mockRepo
	publisher *mockPublisher
	patientID uuid.UUID
	bankID    uuid.UUID
}

func newFixture() *fixture {
	patientID := uuid.New()
	bankID := uuid.New()

	repo := newMockRepo()
	patients := &mockPatients{patients: map[uuid.UUID]*account.PatientUser{
		patientID: {ID: patientID, Name: "Ravi", Email: "ravi@example.com", Phone: "555-0102",
			City: "Pune", Location: "Kothrud", Age: 34, BloodGroup: "B+"},
	}}
	banks := &mockBanks{banks: map[uuid.UUID]*account.BloodBank{
		bankID: {ID: bankID, Name: "Central Bank", City: "Pune"},
	}}
	publisher := &mockPublisher{}

	svc := NewService(repo, patients, banks, db.NopRunner{}, publisher, nil, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, publisher: publisher, patientID: patientID, bankID: bankID}
}

func (f *fixture) create(t *testing.T, in CreateInput) *BloodRequest {
	t.Helper()
	r, err := f.svc.Create(context.Background(), f.patientID, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

// -- Tests --

func TestCreateRequestCopiesDemographics(t *testing.T) {
	f := newFixture()
	r := f.create(t, CreateInput{UnitsNeeded: 2})

	if r.PatientName != "Ravi" || r.Age != 34 || r.BloodGroup != blood.BPositive {
		t.Errorf("demographics not copied: %+v", r)
	}
	if r.Phone != "555-0102" || r.City != "Pune" {
		t.Errorf("contact fields not copied: %+v", r)
	}
	if r.Status != StatusPending || r.Urgency != UrgencyMedium {
		t.Errorf("defaults wrong: status=%q urgency=%q", r.Status, r.Urgency)
	}

	rooms := f.publisher.rooms("blood.request.created")
	want := []string{"city:Pune", "role:bloodbank"}
	if len(rooms) != 2 || rooms[0] != want[0] || rooms[1] != want[1] {
		t.Errorf("broadcast rooms %v, want %v", rooms, want)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, uuid.New(), CreateInput{UnitsNeeded: 1}); err != account.ErrNotFound {
		t.Errorf("unknown patient: got %v, want account.ErrNotFound", err)
	}
	if _, err := f.svc.Create(ctx, f.patientID, CreateInput{UnitsNeeded: 0}); err == nil {
		t.Error("zero units: expected error")
	}
	if _, err := f.svc.Create(ctx, f.patientID, CreateInput{UnitsNeeded: 1, BloodGroup: "Z+"}); err == nil {
		t.Error("bad blood group: expected error")
	}
	if _, err := f.svc.Create(ctx, f.patientID, CreateInput{UnitsNeeded: 1, Urgency: "now"}); err == nil {
		t.Error("bad urgency: expected error")
	}
}

func TestAccept(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.create(t, CreateInput{UnitsNeeded: 2})

	result, err := f.svc.Accept(ctx, r.ID, f.bankID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if result.Request.Status != StatusAccepted {
		t.Errorf("status %q, want accepted", result.Request.Status)
	}
	if result.Request.AcceptedByName == nil || *result.Request.AcceptedByName != "Central Bank" {
		t.Errorf("accepted_by_name not set: %+v", result.Request)
	}
	if result.PatientContact == nil || result.PatientContact.Phone != "555-0102" {
		t.Errorf("patient contact missing: %+v", result.PatientContact)
	}

	rooms := f.publisher.rooms("blood.request.accepted")
	if len(rooms) != 1 || rooms[0] != "user:"+f.patientID.String() {
		t.Errorf("accept broadcast rooms %v, want patient user room", rooms)
	}

	responses, _ := f.svc.ListResponses(ctx, r.ID)
	if len(responses) != 1 || responses[0].Status != ResponseAccepted {
		t.Errorf("unexpected responses %+v", responses)
	}

	// Second bank loses the race.
	if _, err := f.svc.Accept(ctx, r.ID, f.bankID); err != ErrInvalidState {
		t.Errorf("second accept: got %v, want ErrInvalidState", err)
	}
}

func TestRespondInterestedAndDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.create(t, CreateInput{UnitsNeeded: 2})

	resp, err := f.svc.Respond(ctx, r.ID, f.bankID, ResponseInterested, "can supply tomorrow")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.BloodBankName != "Central Bank" || resp.Message != "can supply tomorrow" {
		t.Errorf("unexpected response %+v", resp)
	}

	if _, err := f.svc.Respond(ctx, r.ID, f.bankID, ResponseDeclined, ""); err != ErrDuplicateResponse {
		t.Errorf("duplicate: got %v, want ErrDuplicateResponse", err)
	}
	if _, err := f.svc.Respond(ctx, r.ID, f.bankID, "accepted", ""); err == nil {
		t.Error("accepted via Respond: expected error")
	}
}

func TestFulfill(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.create(t, CreateInput{UnitsNeeded: 2})

	if _, err := f.svc.Fulfill(ctx, r.ID, f.bankID); err != ErrInvalidState {
		t.Errorf("fulfill pending: got %v, want ErrInvalidState", err)
	}

	if _, err := f.svc.Accept(ctx, r.ID, f.bankID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Fulfill(ctx, r.ID, uuid.New()); err != ErrForbidden {
		t.Errorf("fulfill by stranger: got %v, want ErrForbidden", err)
	}

	fulfilled, err := f.svc.Fulfill(ctx, r.ID, f.bankID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.Status != StatusFulfilled {
		t.Errorf("status %q, want fulfilled", fulfilled.Status)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.create(t, CreateInput{UnitsNeeded: 2})

	if _, err := f.svc.Cancel(ctx, r.ID, uuid.New(), ""); err != ErrForbidden {
		t.Errorf("stranger cancel: got %v, want ErrForbidden", err)
	}

	cancelled, err := f.svc.Cancel(ctx, r.ID, f.patientID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status %q, want cancelled", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != DefaultCancellationReason {
		t.Errorf("reason %v, want default", cancelled.CancellationReason)
	}
	if cancelled.CancelledAt == nil || time.Since(*cancelled.CancelledAt) > time.Minute {
		t.Errorf("cancelled_at not set: %+v", cancelled)
	}

	rooms := f.publisher.rooms("blood.request.cancelled")
	if len(rooms) != 1 || rooms[0] != "city:Pune" {
		t.Errorf("cancel broadcast rooms %v, want city room", rooms)
	}

	if _, err := f.svc.Cancel(ctx, r.ID, f.patientID, ""); err != ErrInvalidState {
		t.Errorf("double cancel: got %v, want ErrInvalidState", err)
	}
}

func TestCancelFulfilledRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	r := f.create(t, CreateInput{UnitsNeeded: 1})

	if _, err := f.svc.Accept(ctx, r.ID, f.bankID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Fulfill(ctx, r.ID, f.bankID); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, r.ID, f.patientID, "changed my mind"); err != ErrInvalidState {
		t.Errorf("cancel fulfilled: got %v, want ErrInvalidState", err)
	}
}
