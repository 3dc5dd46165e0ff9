package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/autopesu/backend/internal/models"
	"github.com/autopesu/backend/internal/notify"
	"github.com/autopesu/backend/internal/wallet"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- lockTx emulates row locks held until commit or rollback ---

type lockTx struct {
	noopTx
	mu      sync.Mutex
	unlocks []func()
}

func (t *lockTx) addUnlock(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unlocks = append(t.unlocks, fn)
}

func (t *lockTx) release() {
	t.mu.Lock()
	fns := t.unlocks
	t.unlocks = nil
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (t *lockTx) Commit(context.Context) error   { t.release(); return nil }
func (t *lockTx) Rollback(context.Context) error { t.release(); return nil }

// --- TxBeginner mock ---

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return &lockTx{}, nil }

// --- VendorRepo mock ---

type mockVendors struct {
	mu      sync.Mutex
	vendors map[uuid.UUID]*models.Vendor
}

func newMockVendors(vs ...*models.Vendor) *mockVendors {
	m := &mockVendors{vendors: make(map[uuid.UUID]*models.Vendor)}
	for _, v := range vs {
		m.vendors[v.ID] = v
	}
	return m
}

func (m *mockVendors) GetByID(_ context.Context, id uuid.UUID) (*models.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *v
	return &cp, nil
}

// --- ServiceRepo mock ---

type mockServices struct {
	mu       sync.Mutex
	services map[uuid.UUID]*models.Service
}

func newMockServices(ss ...*models.Service) *mockServices {
	m := &mockServices{services: make(map[uuid.UUID]*models.Service)}
	for _, s := range ss {
		m.services[s.ID] = s
	}
	return m
}

func (m *mockServices) GetByID(_ context.Context, id uuid.UUID) (*models.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *mockServices) GetByIDTx(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.Service, error) {
	return m.GetByID(ctx, id)
}

// --- AppointmentRepo mock ---

type mockAppointments struct {
	mu       sync.Mutex
	appts    map[uuid.UUID]*models.Appointment
	rowLocks map[uuid.UUID]*sync.Mutex

	// When set, GetByID rendezvouses its callers here so concurrent updates
	// all observe the same starting row.
	loadBarrier *sync.WaitGroup
}

func newMockAppointments() *mockAppointments {
	return &mockAppointments{
		appts:    make(map[uuid.UUID]*models.Appointment),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *mockAppointments) CreateTx(_ context.Context, _ pgx.Tx, a *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointments) GetByID(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	m.mu.Lock()
	a, ok := m.appts[id]
	var cp models.Appointment
	if ok {
		cp = *a
	}
	barrier := m.loadBarrier
	m.mu.Unlock()
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	return &cp, nil
}

// GetByIDForUpdate takes the per-row lock and parks its release on the
// transaction, so a second locker blocks until the first commits or rolls
// back, the way FOR UPDATE behaves.
func (m *mockAppointments) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*models.Appointment, error) {
	m.mu.Lock()
	lock, found := m.rowLocks[id]
	if !found {
		lock = &sync.Mutex{}
		m.rowLocks[id] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	if lt, isLock := tx.(*lockTx); isLock {
		lt.addUnlock(lock.Unlock)
	} else {
		defer lock.Unlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (m *mockAppointments) UpdateTx(_ context.Context, _ pgx.Tx, a *models.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[a.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointments) get(id uuid.UUID) *models.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appts[id]
}

func (m *mockAppointments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appts)
}

// --- wallet backing stores (the real wallet.Service runs on top of these) ---

type memAccounts struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemAccounts(users ...*models.User) *memAccounts {
	m := &memAccounts{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *memAccounts) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memAccounts) AddCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	u.CoinBalance += amount
	return u.CoinBalance, nil
}

func (m *memAccounts) DeductCoins(_ context.Context, _ pgx.Tx, id uuid.UUID, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.CoinBalance < amount {
		return 0, pgx.ErrNoRows
	}
	u.CoinBalance -= amount
	return u.CoinBalance, nil
}

func (m *memAccounts) balance(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].CoinBalance
}

type memLedger struct {
	mu      sync.Mutex
	entries []*models.WalletTransaction
}

func (m *memLedger) CreateTx(_ context.Context, _ pgx.Tx, t *models.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memLedger) sumFor(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := 0
	for _, e := range m.entries {
		if e.UserID == id {
			sum += e.Amount
		}
	}
	return sum
}

func (m *memLedger) countFor(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == id {
			n++
		}
	}
	return n
}

// --- email enqueue spy ---

type emailSpy struct {
	mu   sync.Mutex
	jobs []notify.AppointmentEmailJobArgs
	fail bool
}

func (e *emailSpy) insert(_ context.Context, _ pgx.Tx, args notify.AppointmentEmailJobArgs) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return errors.New("queue down")
	}
	e.jobs = append(e.jobs, args)
	return nil
}

func (e *emailSpy) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.jobs)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc          *Service
	vendorID     uuid.UUID
	vendorUserID uuid.UUID
	svcID        uuid.UUID
	custID       uuid.UUID
	accounts     *memAccounts
	ledger       *memLedger
	appts        *mockAppointments
	emails       *emailSpy
}

// newFixture builds a booking service over in-memory stores: one vendor, one
// 50 EUR wash with a 20-coin reward, and one customer holding `coins`.
func newFixture(t *testing.T, coins int) *fixture {
	t.Helper()

	vendorID := uuid.New()
	vendorUserID := uuid.New()
	svcID := uuid.New()
	custID := uuid.New()

	vendors := newMockVendors(&models.Vendor{ID: vendorID, UserID: vendorUserID, Name: "Pesula Kiilto", Verified: true})
	services := newMockServices(&models.Service{
		ID:              svcID,
		VendorID:        vendorID,
		Name:            "Peruspesu",
		Price:           decimal.NewFromInt(50),
		CoinReward:      20,
		DurationMinutes: 45,
		Available:       true,
	})
	appts := newMockAppointments()
	accounts := newMemAccounts(&models.User{ID: custID, CoinBalance: coins})
	ledger := &memLedger{}
	emails := &emailSpy{}

	svc := NewService(mockPool{}, vendors, services, appts, wallet.NewService(accounts, ledger), emails.insert, nil)
	return &fixture{
		svc:          svc,
		vendorID:     vendorID,
		vendorUserID: vendorUserID,
		svcID:        svcID,
		custID:       custID,
		accounts:     accounts,
		ledger:       ledger,
		appts:        appts,
		emails:       emails,
	}
}

// asVendor applies upd acting as the vendor's own user.
func (f *fixture) asVendor(ctx context.Context, id uuid.UUID, upd Update) error {
	return f.svc.UpdateStatus(ctx, id, upd, f.vendorUserID, models.RoleVendor)
}

func (f *fixture) createInput(coins int) CreateInput {
	return CreateInput{
		VendorID:      f.vendorID,
		ServiceID:     f.svcID,
		CustomerID:    f.custID,
		Date:          time.Now().Add(24 * time.Hour),
		CoinsToUse:    coins,
		CustomerName:  "Matti Meikäläinen",
		CustomerPhone: "+358401234567",
		CustomerEmail: "matti@example.fi",
	}
}

func completed() *string {
	s := models.AppointmentStatusCompleted
	return &s
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_WithCoins(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	appt := f.appts.get(id)
	if appt == nil {
		t.Fatal("appointment not persisted")
	}
	if appt.Status != models.AppointmentStatusConfirmed {
		t.Errorf("status: got %q, want confirmed", appt.Status)
	}
	if appt.CoinsUsed != 10 {
		t.Errorf("coins_used: got %d, want 10", appt.CoinsUsed)
	}
	// 50 EUR wash minus 10 coins at 1 EUR each.
	if !appt.TotalPrice.Equal(decimal.NewFromInt(40)) {
		t.Errorf("total price: got %s, want 40", appt.TotalPrice)
	}
	if got := f.accounts.balance(f.custID); got != 0 {
		t.Errorf("balance after debit: got %d, want 0", got)
	}
	if got := f.ledger.countFor(f.custID); got != 1 {
		t.Errorf("ledger entries: got %d, want 1", got)
	}
	if f.emails.count() != 1 {
		t.Errorf("booking confirmation jobs: got %d, want 1", f.emails.count())
	}
}

func TestCreate_ZeroCoins(t *testing.T) {
	f := newFixture(t, 10)

	id, err := f.svc.Create(context.Background(), f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	appt := f.appts.get(id)
	if !appt.TotalPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("total price: got %s, want 50", appt.TotalPrice)
	}
	if got := f.accounts.balance(f.custID); got != 10 {
		t.Errorf("balance: got %d, want 10 (untouched)", got)
	}
	if got := f.ledger.countFor(f.custID); got != 0 {
		t.Errorf("ledger entries: got %d, want 0", got)
	}
}

func TestCreate_InsufficientCoins(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.Create(context.Background(), f.createInput(10))
	if !errors.Is(err, ErrInsufficientCoins) {
		t.Fatalf("expected ErrInsufficientCoins, got: %v", err)
	}
	if f.appts.count() != 0 {
		t.Error("no appointment should be created on a failed debit")
	}
	if got := f.accounts.balance(f.custID); got != 5 {
		t.Errorf("balance: got %d, want 5 (untouched)", got)
	}
	if got := f.ledger.countFor(f.custID); got != 0 {
		t.Error("no ledger entry should exist")
	}
}

func TestCreate_BannedVendor(t *testing.T) {
	f := newFixture(t, 10)
	f.svcBanVendor()

	_, err := f.svc.Create(context.Background(), f.createInput(0))
	if !errors.Is(err, ErrVendorUnavailable) {
		t.Fatalf("expected ErrVendorUnavailable, got: %v", err)
	}
	if f.appts.count() != 0 {
		t.Error("no appointment should be created for a banned vendor")
	}
}

func (f *fixture) svcBanVendor() {
	vendors := f.svc.vendors.(*mockVendors)
	vendors.mu.Lock()
	defer vendors.mu.Unlock()
	vendors.vendors[f.vendorID].Banned = true
}

func TestCreate_UnknownVendor(t *testing.T) {
	f := newFixture(t, 10)
	in := f.createInput(0)
	in.VendorID = uuid.New()

	_, err := f.svc.Create(context.Background(), in)
	if !errors.Is(err, ErrVendorUnavailable) {
		t.Fatalf("expected ErrVendorUnavailable, got: %v", err)
	}
}

func TestCreate_UnavailableService(t *testing.T) {
	f := newFixture(t, 10)
	services := f.svc.services.(*mockServices)
	services.mu.Lock()
	services.services[f.svcID].Available = false
	services.mu.Unlock()

	_, err := f.svc.Create(context.Background(), f.createInput(0))
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got: %v", err)
	}
}

func TestCreate_ServiceOfOtherVendor(t *testing.T) {
	f := newFixture(t, 10)
	services := f.svc.services.(*mockServices)
	services.mu.Lock()
	services.services[f.svcID].VendorID = uuid.New()
	services.mu.Unlock()

	_, err := f.svc.Create(context.Background(), f.createInput(0))
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got: %v", err)
	}
}

func TestCreate_CoinsExceedPrice(t *testing.T) {
	f := newFixture(t, 100)

	id, err := f.svc.Create(context.Background(), f.createInput(100))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt := f.appts.get(id); !appt.TotalPrice.Equal(decimal.Zero) {
		t.Errorf("total price floors at zero, got %s", appt.TotalPrice)
	}
}

func TestCreate_NotifyFailureDoesNotSinkBooking(t *testing.T) {
	f := newFixture(t, 10)
	f.emails.fail = true

	id, err := f.svc.Create(context.Background(), f.createInput(10))
	if err != nil {
		t.Fatalf("Create should succeed despite enqueue failure: %v", err)
	}
	if f.appts.get(id) == nil {
		t.Error("appointment should be persisted")
	}
	if got := f.accounts.balance(f.custID); got != 0 {
		t.Errorf("debit should still apply, balance: got %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus / completion reward
// ---------------------------------------------------------------------------

func TestUpdateStatus_CompletionReward(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	appt := f.appts.get(id)
	if appt.Status != models.AppointmentStatusCompleted {
		t.Errorf("status: got %q, want completed", appt.Status)
	}
	if !appt.CoinRewardProcessed {
		t.Error("coin reward should be marked processed")
	}
	if appt.CoinRewardAmount != 20 {
		t.Errorf("coin reward amount: got %d, want 20", appt.CoinRewardAmount)
	}
	// Started with 10, spent 10 on the booking, earned 20 on completion.
	if got := f.accounts.balance(f.custID); got != 20 {
		t.Errorf("balance: got %d, want 20", got)
	}
	if got := f.ledger.countFor(f.custID); got != 2 {
		t.Errorf("ledger entries: got %d, want 2 (debit + reward)", got)
	}
}

func TestUpdateStatus_RewardExactlyOnce(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	// Duplicate completion call.
	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("repeat completion: %v", err)
	}
	// Bounce through another status and complete again; the processed flag
	// must still block a second credit.
	noShow := models.AppointmentStatusNoShow
	if err := f.asVendor(ctx, id, Update{Status: &noShow}); err != nil {
		t.Fatalf("status bounce: %v", err)
	}
	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("re-completion: %v", err)
	}

	if got := f.accounts.balance(f.custID); got != 20 {
		t.Errorf("balance: got %d, want 20 (single reward)", got)
	}
	if got := f.ledger.countFor(f.custID); got != 1 {
		t.Errorf("ledger entries: got %d, want 1", got)
	}
}

func TestUpdateStatus_ZeroRewardService(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	services := f.svc.services.(*mockServices)
	services.mu.Lock()
	services.services[f.svcID].CoinReward = 0
	services.mu.Unlock()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	appt := f.appts.get(id)
	if !appt.CoinRewardProcessed {
		t.Error("zero-reward completion still marks the reward processed")
	}
	if appt.CoinRewardAmount != 0 {
		t.Errorf("coin reward amount: got %d, want 0", appt.CoinRewardAmount)
	}
	if got := f.ledger.countFor(f.custID); got != 0 {
		t.Error("zero reward must not produce a ledger entry")
	}
}

func TestUpdateStatus_ServiceRowGone(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	services := f.svc.services.(*mockServices)
	services.mu.Lock()
	delete(services.services, f.svcID)
	services.mu.Unlock()

	err = f.asVendor(ctx, id, Update{Status: completed()})
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got: %v", err)
	}
	// Whole operation aborted: status unchanged, no reward.
	appt := f.appts.get(id)
	if appt.Status != models.AppointmentStatusConfirmed {
		t.Errorf("status: got %q, want confirmed (unchanged)", appt.Status)
	}
	if appt.CoinRewardProcessed {
		t.Error("reward must not be marked processed")
	}
}

func TestUpdateStatus_MissingCustomerReference(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Simulate a legacy record with no customer reference.
	f.appts.mu.Lock()
	f.appts.appts[id].CustomerID = uuid.Nil
	f.appts.mu.Unlock()

	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	appt := f.appts.get(id)
	if appt.Status != models.AppointmentStatusCompleted {
		t.Errorf("status change should still apply, got %q", appt.Status)
	}
	if got := f.ledger.countFor(f.custID); got != 0 {
		t.Error("no reward may be credited without a customer reference")
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	bogus := "teleported"
	err = f.asVendor(ctx, id, Update{Status: &bogus})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	f := newFixture(t, 0)
	err := f.asVendor(context.Background(), uuid.New(), Update{Status: completed()})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("expected ErrAppointmentNotFound, got: %v", err)
	}
}

func TestUpdateStatus_PatchFieldsOnly(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	notes := "avaimet postilaatikossa"
	newDate := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	if err := f.asVendor(ctx, id, Update{Notes: &notes, Date: &newDate}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	appt := f.appts.get(id)
	if appt.Notes != notes {
		t.Errorf("notes: got %q, want %q", appt.Notes, notes)
	}
	if !appt.Date.Equal(newDate) {
		t.Errorf("date: got %v, want %v", appt.Date, newDate)
	}
	if appt.Status != models.AppointmentStatusConfirmed {
		t.Errorf("status must not change, got %q", appt.Status)
	}
	if got := f.ledger.countFor(f.custID); got != 0 {
		t.Error("a field patch must not touch the ledger")
	}
}

// Two completions racing on the same appointment: both load the row before
// either writes, then serialize on the row lock. Exactly one credits the
// reward; the loser applies the status and nothing else.
func TestUpdateStatus_ConcurrentCompletionSingleReward(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	f.appts.mu.Lock()
	f.appts.loadBarrier = barrier
	f.appts.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.asVendor(ctx, id, Update{Status: completed()})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
	}
	if got := f.accounts.balance(f.custID); got != 20 {
		t.Errorf("balance: got %d, want 20 (single reward)", got)
	}
	if got := f.ledger.countFor(f.custID); got != 1 {
		t.Errorf("reward ledger entries: got %d, want 1", got)
	}
	appt := f.appts.get(id)
	if appt.Status != models.AppointmentStatusCompleted {
		t.Errorf("status: got %q, want completed", appt.Status)
	}
	if !appt.CoinRewardProcessed || appt.CoinRewardAmount != 20 {
		t.Errorf("reward flags: processed=%v amount=%d", appt.CoinRewardProcessed, appt.CoinRewardAmount)
	}
}

// The reward amount is whatever the service pays at completion time, not at
// booking time.
func TestUpdateStatus_RewardAmountReadAtCompletion(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	services := f.svc.services.(*mockServices)
	services.mu.Lock()
	services.services[f.svcID].CoinReward = 35
	services.mu.Unlock()

	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got := f.accounts.balance(f.custID); got != 35 {
		t.Errorf("balance: got %d, want 35", got)
	}
	if appt := f.appts.get(id); appt.CoinRewardAmount != 35 {
		t.Errorf("coin reward amount: got %d, want 35", appt.CoinRewardAmount)
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus authorization
// ---------------------------------------------------------------------------

func TestUpdateStatus_CustomerCannotComplete(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = f.svc.UpdateStatus(ctx, id, Update{Status: completed()}, f.custID, models.RoleCustomer)
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got: %v", err)
	}
	appt := f.appts.get(id)
	if appt.Status != models.AppointmentStatusConfirmed {
		t.Errorf("status: got %q, want confirmed (unchanged)", appt.Status)
	}
	if got := f.ledger.countFor(f.custID); got != 0 {
		t.Error("no reward may be minted by the customer")
	}
}

func TestUpdateStatus_CustomerCancelsOwn(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cancelled := models.AppointmentStatusCancelledByCustomer
	err = f.svc.UpdateStatus(ctx, id, Update{Status: &cancelled}, f.custID, models.RoleCustomer)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if appt := f.appts.get(id); appt.Status != models.AppointmentStatusCancelledByCustomer {
		t.Errorf("status: got %q, want cancelled_by_customer", appt.Status)
	}
}

func TestUpdateStatus_StrangerForbidden(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	notes := "joku muu"
	err = f.svc.UpdateStatus(ctx, id, Update{Notes: &notes}, uuid.New(), models.RoleCustomer)
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got: %v", err)
	}
}

// A vendor-role user who does not own this appointment's vendor gets the
// customer rules, and as a non-customer of the booking is rejected.
func TestUpdateStatus_OtherVendorUserForbidden(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = f.svc.UpdateStatus(ctx, id, Update{Status: completed()}, uuid.New(), models.RoleVendor)
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed, got: %v", err)
	}
	if got := f.ledger.countFor(f.custID); got != 0 {
		t.Error("no reward may be credited")
	}
}

func TestUpdateStatus_AdminMayComplete(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = f.svc.UpdateStatus(ctx, id, Update{Status: completed()}, uuid.New(), models.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got := f.accounts.balance(f.custID); got != 20 {
		t.Errorf("balance: got %d, want 20", got)
	}
}

// Wallet conservation across a full booking lifecycle: final balance equals
// initial balance plus the sum of all ledger entries.
func TestLifecycle_WalletConservation(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	id, err := f.svc.Create(ctx, f.createInput(10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.asVendor(ctx, id, Update{Status: completed()}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	want := 10 + f.ledger.sumFor(f.custID)
	if got := f.accounts.balance(f.custID); got != want {
		t.Errorf("balance %d does not equal initial + ledger sum %d", got, want)
	}
}
