package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/account"
	"github.com/vitalink/vitalink/internal/domain/blood"
)

// -- Mock Repositories --

type mockRepo struct {
	batches map[uuid.UUID]*Preservation
	sends   map[uuid.UUID]*SendRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		batches: make(map[uuid.UUID]*Preservation),
		sends:   make(map[uuid.UUID]*SendRecord),
	}
}

func (m *mockRepo) CreateBatch(_ context.Context, p *Preservation) error {
	p.ID = uuid.New()
	cp := *p
	m.batches[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetBatchByID(_ context.Context, id uuid.UUID) (*Preservation, error) {
	p, ok := m.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetBatchByIDForUpdate(ctx context.Context, id uuid.UUID) (*Preservation, error) {
	return m.GetBatchByID(ctx, id)
}

func (m *mockRepo) UpdateBatch(_ context.Context, p *Preservation) error {
	if _, ok := m.batches[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.batches[p.ID] = &cp
	return nil
}

func (m *mockRepo) ListBatches(_ context.Context, bankID uuid.UUID, limit, offset int) ([]*Preservation, int, error) {
	var items []*Preservation
	for _, p := range m.batches {
		if p.BloodBankID == bankID {
			items = append(items, p)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) StockSummary(_ context.Context, bankID uuid.UUID) ([]StockEntry, error) {
	now := time.Now()
	byType := make(map[blood.Type]int)
	for _, p := range m.batches {
		if p.BloodBankID == bankID && p.Status == BatchAvailable && !p.IsExpired(now) {
			byType[p.BloodType] += p.Units
		}
	}
	var entries []StockEntry
	for bt, units := range byType {
		entries = append(entries, StockEntry{BloodType: bt, Units: units})
	}
	return entries, nil
}

func (m *mockRepo) CreateSendRecord(_ context.Context, r *SendRecord) error {
	r.ID = uuid.New()
	cp := *r
	m.sends[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetSendRecordByIDForUpdate(_ context.Context, id uuid.UUID) (*SendRecord, error) {
	r, ok := m.sends[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) UpdateSendRecord(_ context.Context, r *SendRecord) error {
	if _, ok := m.sends[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.sends[r.ID] = &cp
	return nil
}

func (m *mockRepo) ListSendRecords(_ context.Context, bankID uuid.UUID, limit, offset int) ([]*SendRecord, int, error) {
	var items []*SendRecord
	for _, r := range m.sends {
		if r.BloodBankID == bankID {
			items = append(items, r)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) CountSendRecords(_ context.Context, bankID uuid.UUID) (int, int, error) {
	var total, delivered int
	for _, r := range m.sends {
		if r.BloodBankID == bankID {
			total++
			if r.Status == SendDelivered {
				delivered++
			}
		}
	}
	return total, delivered, nil
}

// snapshot captures the mutable mock state so the test runner can mimic a
// rollback.
func (m *mockRepo) snapshot() (map[uuid.UUID]Preservation, map[uuid.UUID]SendRecord) {
	batches := make(map[uuid.UUID]Preservation, len(m.batches))
	for id, p := range m.batches {
		batches[id] = *p
	}
	sends := make(map[uuid.UUID]SendRecord, len(m.sends))
	for id, r := range m.sends {
		sends[id] = *r
	}
	return batches, sends
}

func (m *mockRepo) restore(batches map[uuid.UUID]Preservation, sends map[uuid.UUID]SendRecord) {
	m.batches = make(map[uuid.UUID]*Preservation, len(batches))
	for id, p := range batches {
		cp := p
		m.batches[id] = &cp
	}
	m.sends = make(map[uuid.UUID]*SendRecord, len(sends))
	for id, r := range sends {
		cp := r
		m.sends[id] = &cp
	}
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

func (m *mockBanks) AdjustStock(_ context.Context, id uuid.UUID, stockDelta, dispatchedDelta int) error {
	b, ok := m.banks[id]
	if !ok {
		return account.ErrNotFound
	}
	b.TotalStock += stockDelta
	b.TotalDispatched += dispatchedDelta
	return nil
}

func (m *mockBanks) IncrementSuccessfulSends(_ context.Context, id uuid.UUID) error {
	b, ok := m.banks[id]
	if !ok {
		return account.ErrNotFound
	}
	b.SuccessfulSends++
	return nil
}

func (m *mockBanks) snapshot() map[uuid.UUID]account.BloodBank {
	out := make(map[uuid.UUID]account.BloodBank, len(m.banks))
	for id, b := range m.banks {
		out[id] = *b
	}
	return out
}

func (m *mockBanks) restore(banks map[uuid.UUID]account.BloodBank) {
	m.banks = make(map[uuid.UUID]*account.BloodBank, len(banks))
	for id, b := range banks {
		cp := b
		m.banks[id] = &cp
	}
}

type mockCrediter struct {
	credited map[uuid.UUID]int
	err      error
}

func (m *mockCrediter) CreditReceivedUnits(_ context.Context, id uuid.UUID, units int) error {
	if m.err != nil {
		return m.err
	}
	m.credited[id] += units
	return nil
}

type mockResolver struct {
	contacts map[uuid.UUID]*account.Contact
}

func (m *mockResolver) Resolve(_ context.Context, kind account.Kind, id uuid.UUID) (*account.Contact, error) {
	c, ok := m.contacts[id]
	if !ok || c.Kind != kind {
		return nil, account.ErrNotFound
	}
	return c, nil
}

// rollbackRunner restores the mock state when fn fails, mirroring a real
// transaction rollback.
type rollbackRunner struct {
	repo  *mockRepo
	banks *mockBanks
}

func (r rollbackRunner) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	batches, sends := r.repo.snapshot()
	banks := r.banks.snapshot()
	if err := fn(ctx); err != nil {
		r.repo.restore(batches, sends)
		r.banks.restore(banks)
		return err
	}
	return nil
}

type fixture struct {
	svc        *Service
	repo       *mockRepo
	banks      *mockBanks
	crediter   *mockCrediter
	bankID     uuid.UUID
	hospitalID uuid.UUID
}

func newFixture() *fixture {
	bankID := uuid.New()
	hospitalID := uuid.New()

	repo := newMockRepo()
	banks := &mockBanks{banks: map[uuid.UUID]*account.BloodBank{
		bankID: {ID: bankID, Name: "Central Bank", City: "Pune"},
	}}
	crediter := &mockCrediter{credited: make(map[uuid.UUID]int)}
	resolver := &mockResolver{contacts: map[uuid.UUID]*account.Contact{
		hospitalID: {ID: hospitalID, Kind: account.KindHospital, Name: "City General", Phone: "555-0199"},
	}}

	svc := NewService(repo, banks, crediter, resolver, rollbackRunner{repo: repo, banks: banks}, nil, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, banks: banks, crediter: crediter,
		bankID: bankID, hospitalID: hospitalID}
}

func (f *fixture) addBatch(t *testing.T, units int) *Preservation {
	t.Helper()
	p, err := f.svc.AddBatch(context.Background(), f.bankID, AddBatchInput{
		BloodType:  blood.ONegative,
		Units:      units,
		ExpiryDate: time.Now().Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("add batch: %v", err)
	}
	return p
}

// -- Tests --

func TestAddBatch(t *testing.T) {
	f := newFixture()
	p := f.addBatch(t, 10)

	if p.Status != BatchAvailable {
		t.Errorf("status %q, want available", p.Status)
	}
	if p.BatchID == "" {
		t.Error("batch id not generated")
	}
	if f.banks.banks[f.bankID].TotalStock != 10 {
		t.Errorf("total_stock = %d, want 10", f.banks.banks[f.bankID].TotalStock)
	}
}

func TestAddBatchValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	future := time.Now().Add(24 * time.Hour)

	cases := []AddBatchInput{
		{BloodType: "X", Units: 1, ExpiryDate: future},
		{BloodType: blood.APositive, Units: 0, ExpiryDate: future},
		{BloodType: blood.APositive, Units: 1},
		{BloodType: blood.APositive, Units: 1, CollectionDate: future, ExpiryDate: time.Now()},
	}
	for i, in := range cases {
		if _, err := f.svc.AddBatch(ctx, f.bankID, in); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestDispatchPartial(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addBatch(t, 10)

	record, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID,
		RecipientKind:  account.KindHospital,
		RecipientID:    f.hospitalID,
		Units:          4,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if record.Status != SendPending || record.RecipientName != "City General" {
		t.Errorf("unexpected record %+v", record)
	}
	if record.BloodType != blood.ONegative {
		t.Errorf("blood type %q, want copied from batch", record.BloodType)
	}
	if record.TrackingNumber == "" {
		t.Error("tracking number not generated")
	}

	batch, _ := f.repo.GetBatchByID(ctx, p.ID)
	if batch.Units != 6 || batch.Status != BatchReserved {
		t.Errorf("partial dispatch: units=%d status=%q, want 6/reserved", batch.Units, batch.Status)
	}

	bank := f.banks.banks[f.bankID]
	if bank.TotalStock != 6 || bank.TotalDispatched != 4 {
		t.Errorf("bank counters stock=%d dispatched=%d, want 6/4", bank.TotalStock, bank.TotalDispatched)
	}
}

func TestDispatchDrainsBatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addBatch(t, 3)

	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 3,
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	batch, _ := f.repo.GetBatchByID(ctx, p.ID)
	if batch.Units != 0 || batch.Status != BatchDispatched {
		t.Errorf("drained batch: units=%d status=%q, want 0/dispatched", batch.Units, batch.Status)
	}

	// A drained batch refuses further dispatches.
	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 1,
	}); err != ErrInvalidState {
		t.Errorf("dispatch from drained batch: got %v, want ErrInvalidState", err)
	}
}

func TestDispatchErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addBatch(t, 2)

	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: uuid.New(), RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 1,
	}); err != ErrNotFound {
		t.Errorf("missing batch: got %v, want ErrNotFound", err)
	}

	if _, err := f.svc.Dispatch(ctx, uuid.New(), DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 1,
	}); !errors.Is(err, account.ErrNotFound) && err != ErrNotFound {
		t.Errorf("foreign bank: got %v, want not found", err)
	}

	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 5,
	}); err != ErrInsufficientUnits {
		t.Errorf("too many units: got %v, want ErrInsufficientUnits", err)
	}

	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindDonor,
		RecipientID: f.hospitalID, Units: 1,
	}); err == nil {
		t.Error("donor recipient: expected error")
	}

	batch, _ := f.repo.GetBatchByID(ctx, p.ID)
	if batch.Units != 2 || batch.Status != BatchAvailable {
		t.Errorf("failed dispatches must not touch the batch: %+v", batch)
	}
}

func TestDispatchCreditsEmergency(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addBatch(t, 5)
	emergencyID := uuid.New()

	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 2, EmergencyID: &emergencyID,
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if f.crediter.credited[emergencyID] != 2 {
		t.Errorf("credited %d units, want 2", f.crediter.credited[emergencyID])
	}
}

func TestDispatchRollsBackOnCreditFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addBatch(t, 5)
	emergencyID := uuid.New()
	f.crediter.err = errors.New("emergency gone")

	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 2, EmergencyID: &emergencyID,
	}); err == nil {
		t.Fatal("expected credit failure to abort dispatch")
	}

	batch, _ := f.repo.GetBatchByID(ctx, p.ID)
	if batch.Units != 5 || batch.Status != BatchAvailable {
		t.Errorf("batch decrement not rolled back: %+v", batch)
	}
	bank := f.banks.banks[f.bankID]
	if bank.TotalStock != 5 || bank.TotalDispatched != 0 {
		t.Errorf("bank counters not rolled back: stock=%d dispatched=%d", bank.TotalStock, bank.TotalDispatched)
	}
	if _, total, _ := f.repo.ListSendRecords(ctx, f.bankID, 10, 0); total != 0 {
		t.Errorf("send record not rolled back: %d records", total)
	}
}

func TestUpdateSendStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addBatch(t, 5)

	record, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 2,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if _, err := f.svc.UpdateSendStatus(ctx, record.ID, f.bankID, "lost", nil); err == nil {
		t.Error("invalid status: expected error")
	}
	if _, err := f.svc.UpdateSendStatus(ctx, record.ID, uuid.New(), SendInTransit, nil); err != ErrNotFound {
		t.Errorf("foreign bank: got %v, want ErrNotFound", err)
	}

	updated, err := f.svc.UpdateSendStatus(ctx, record.ID, f.bankID, SendInTransit, nil)
	if err != nil {
		t.Fatalf("in transit: %v", err)
	}
	if updated.Status != SendInTransit {
		t.Errorf("status %q, want in_transit", updated.Status)
	}

	delivered, err := f.svc.UpdateSendStatus(ctx, record.ID, f.bankID, SendDelivered, nil)
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if delivered.ActualDelivery == nil {
		t.Error("actual_delivery not defaulted")
	}
	if f.banks.banks[f.bankID].SuccessfulSends != 1 {
		t.Errorf("successful_sends = %d, want 1", f.banks.banks[f.bankID].SuccessfulSends)
	}

	// Delivered is terminal.
	if _, err := f.svc.UpdateSendStatus(ctx, record.ID, f.bankID, SendFailed, nil); err != ErrInvalidState {
		t.Errorf("terminal transition: got %v, want ErrInvalidState", err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.addBatch(t, 10)

	r1, _ := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 3,
	})
	if _, err := f.svc.UpdateSendStatus(ctx, r1.ID, f.bankID, SendDelivered, nil); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	p2 := f.addBatch(t, 4)
	if _, err := f.svc.Dispatch(ctx, f.bankID, DispatchInput{
		PreservationID: p2.ID, RecipientKind: account.KindHospital,
		RecipientID: f.hospitalID, Units: 4,
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// An untouched batch is the only thing the availability summary counts;
	// reserved remainders stay in total_stock but out of the summary.
	if _, err := f.svc.AddBatch(ctx, f.bankID, AddBatchInput{
		BloodType: blood.APositive, Units: 2, ExpiryDate: time.Now().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("add batch: %v", err)
	}

	stats, err := f.svc.Stats(ctx, f.bankID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalStock != 9 || stats.TotalDispatched != 7 || stats.SuccessfulSends != 1 {
		t.Errorf("counters %+v", stats)
	}
	if stats.SuccessRate != 50.0 {
		t.Errorf("success rate %v, want 50.0", stats.SuccessRate)
	}
	if len(stats.Stock) != 1 || stats.Stock[0].BloodType != blood.APositive || stats.Stock[0].Units != 2 {
		t.Errorf("stock summary %+v, want 2 A+ units", stats.Stock)
	}
}
