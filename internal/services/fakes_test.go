package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"achievements/internal/events"
	"achievements/internal/models"
	"achievements/internal/store"

	"github.com/jmoiron/sqlx"
)

const (
	testAuthority = "authority-1"
	testPrincipal = "credential-registry"
)

var errStoreDown = errors.New("store down")

// memWorld is an in-memory stand-in for the Postgres tables the services
// touch. memTxRunner snapshots it before each transaction and restores the
// snapshot when the callback fails.
type memWorld struct {
	mu       sync.Mutex
	accounts map[string]models.PointAccount
	entries  []store.EntryInput
	creds    map[int64]models.Credential
	audit    []models.AuditLog
	settings map[string]string
	nextID   int64

	failAudit  bool
	failCreate bool
}

type memSnapshot struct {
	accounts map[string]models.PointAccount
	entries  []store.EntryInput
	creds    map[int64]models.Credential
	audit    []models.AuditLog
	settings map[string]string
}

func newMemWorld() *memWorld {
	return &memWorld{
		accounts: map[string]models.PointAccount{},
		creds:    map[int64]models.Credential{},
		settings: map[string]string{},
	}
}

func (w *memWorld) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts: make(map[string]models.PointAccount, len(w.accounts)),
		entries:  append([]store.EntryInput(nil), w.entries...),
		creds:    make(map[int64]models.Credential, len(w.creds)),
		audit:    append([]models.AuditLog(nil), w.audit...),
		settings: make(map[string]string, len(w.settings)),
	}
	for k, v := range w.settings {
		snap.settings[k] = v
	}
	for k, v := range w.accounts {
		snap.accounts[k] = v
	}
	for k, v := range w.creds {
		snap.creds[k] = v
	}
	return snap
}

// restore keeps nextID so ids are never reused, like a sequence.
func (w *memWorld) restore(snap memSnapshot) {
	w.accounts = snap.accounts
	w.entries = snap.entries
	w.creds = snap.creds
	w.audit = snap.audit
	w.settings = snap.settings
}

func (w *memWorld) actions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.audit))
	for _, entry := range w.audit {
		out = append(out, entry.Action)
	}
	return out
}

type memTxRunner struct {
	world *memWorld
	mu    sync.Mutex
}

func (r *memTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.world.mu.Lock()
	snap := r.world.snapshot()
	r.world.mu.Unlock()
	if err := fn(nil); err != nil {
		r.world.mu.Lock()
		r.world.restore(snap)
		r.world.mu.Unlock()
		return err
	}
	return nil
}

type memAccounts struct{ w *memWorld }

func (m memAccounts) Ensure(ctx context.Context, tx store.Execer, accountID string) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if _, ok := m.w.accounts[accountID]; !ok {
		m.w.accounts[accountID] = models.PointAccount{AccountID: accountID}
	}
	return nil
}

func (m memAccounts) Get(ctx context.Context, accountID string) (models.PointAccount, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	acct, ok := m.w.accounts[accountID]
	if !ok {
		return models.PointAccount{AccountID: accountID}, nil
	}
	return acct, nil
}

func (m memAccounts) GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.PointAccount, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	acct, ok := m.w.accounts[accountID]
	if !ok {
		return models.PointAccount{}, sql.ErrNoRows
	}
	return acct, nil
}

func (m memAccounts) Save(ctx context.Context, tx store.Execer, account models.PointAccount) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if _, ok := m.w.accounts[account.AccountID]; !ok {
		return sql.ErrNoRows
	}
	m.w.accounts[account.AccountID] = account
	return nil
}

func (m memAccounts) Totals(ctx context.Context) (models.SupplyTotals, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	var totals models.SupplyTotals
	for _, acct := range m.w.accounts {
		totals.TotalSupply += acct.Balance
		totals.TotalMinted += acct.TotalEarned
		totals.TotalBurned += acct.TotalBurned
	}
	return totals, nil
}

type memLedger struct{ w *memWorld }

func (m memLedger) InsertEntries(ctx context.Context, tx store.Execer, entries []store.EntryInput) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	m.w.entries = append(m.w.entries, entries...)
	return nil
}

func (m memLedger) Reconcile(ctx context.Context) ([]models.AccountReconciliation, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	rows := map[string]*models.AccountReconciliation{}
	for id, acct := range m.w.accounts {
		rows[id] = &models.AccountReconciliation{
			AccountID:   id,
			Balance:     acct.Balance,
			TotalEarned: acct.TotalEarned,
			TotalBurned: acct.TotalBurned,
		}
	}
	for _, entry := range m.w.entries {
		row, ok := rows[entry.AccountID]
		if !ok {
			row = &models.AccountReconciliation{AccountID: entry.AccountID}
			rows[entry.AccountID] = row
		}
		row.EntrySum += entry.Amount
		switch entry.Kind {
		case models.EntryTransferIn:
			row.TransferIn += entry.Amount
		case models.EntryTransferOut:
			row.TransferOut -= entry.Amount
		}
	}
	out := make([]models.AccountReconciliation, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

type memAudit struct{ w *memWorld }

func (m memAudit) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if m.w.failAudit {
		return errStoreDown
	}
	m.w.audit = append(m.w.audit, models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Data:       data,
	})
	return nil
}

type memSettings struct{ w *memWorld }

func (m memSettings) Get(ctx context.Context, key string) (string, bool, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	value, ok := m.w.settings[key]
	return value, ok, nil
}

func (m memSettings) Put(ctx context.Context, tx store.Execer, key, value, updatedBy string) error {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	m.w.settings[key] = value
	return nil
}

type memCreds struct{ w *memWorld }

func (m memCreds) Create(ctx context.Context, tx store.Getter, input store.CredentialInput) (int64, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	if m.w.failCreate {
		return 0, errStoreDown
	}
	m.w.nextID++
	id := m.w.nextID
	m.w.creds[id] = models.Credential{
		ID:           id,
		OwnerID:      input.OwnerID,
		TrackID:      input.TrackID,
		Name:         input.Name,
		Description:  input.Description,
		ImageRef:     input.ImageRef,
		RewardAmount: input.RewardAmount,
		CreatedAt:    input.CreatedAt,
	}
	return id, nil
}

func (m memCreds) GetByID(ctx context.Context, id int64) (models.Credential, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	cred, ok := m.w.creds[id]
	if !ok {
		return models.Credential{}, sql.ErrNoRows
	}
	return cred, nil
}

func (m memCreds) GetForUpdate(ctx context.Context, tx store.Selecter, ids []int64) ([]models.Credential, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	out := []models.Credential{}
	for _, id := range ids {
		if cred, ok := m.w.creds[id]; ok {
			out = append(out, cred)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memCreds) Reassign(ctx context.Context, tx store.Execer, ids []int64, fromOwner, toOwner string) (int64, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	var moved int64
	for _, id := range ids {
		cred, ok := m.w.creds[id]
		if !ok || cred.OwnerID != fromOwner {
			continue
		}
		cred.OwnerID = toOwner
		m.w.creds[id] = cred
		moved++
	}
	return moved, nil
}

func (m memCreds) ListIDsByOwner(ctx context.Context, ownerID string) ([]int64, error) {
	creds, _ := m.ListByOwner(ctx, ownerID)
	ids := make([]int64, 0, len(creds))
	for _, cred := range creds {
		ids = append(ids, cred.ID)
	}
	return ids, nil
}

func (m memCreds) ListByOwner(ctx context.Context, ownerID string) ([]models.Credential, error) {
	m.w.mu.Lock()
	defer m.w.mu.Unlock()
	out := []models.Credential{}
	for _, cred := range m.w.creds {
		if cred.OwnerID == ownerID {
			out = append(out, cred)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type recordingHub struct {
	mu     sync.Mutex
	events []events.Event
}

func (h *recordingHub) Publish(ev events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Type)
	}
	return out
}

type countingRecorder struct {
	mu       sync.Mutex
	recorded int
	failed   map[string]int
}

func (r *countingRecorder) Record(events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded++
}

func (r *countingRecorder) Failed(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed == nil {
		r.failed = map[string]int{}
	}
	r.failed[op]++
}

type fixture struct {
	world    *memWorld
	hub      *recordingHub
	recorder *countingRecorder
	points   *PointsService
	creds    *CredentialService
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newFixture wires both services the way cmd/server does on a fresh
// database: the registry becomes the points collaborator and, withLedger,
// has the ledger attached.
func newFixture(withLedger bool) *fixture {
	return bootFixture(newMemWorld(), withLedger)
}

// bootFixture builds fresh services over world, as a server restart would.
func bootFixture(world *memWorld, settlement bool) *fixture {
	runner := &memTxRunner{world: world}
	hub := &recordingHub{}
	recorder := &countingRecorder{}

	pointsSvc := NewPointsService(runner, memAccounts{world}, memLedger{world}, memAudit{world}, memSettings{world}, hub, recorder, testAuthority)
	pointsSvc.now = func() time.Time { return fixedNow }
	credSvc := NewCredentialService(runner, memCreds{world}, memAudit{world}, memSettings{world}, hub, recorder, testAuthority, testPrincipal)
	credSvc.now = func() time.Time { return fixedNow }

	if err := RestoreSettings(context.Background(), pointsSvc, credSvc, BootDefaults{
		Authority:  testAuthority,
		Principal:  testPrincipal,
		Settlement: settlement,
	}); err != nil {
		panic(err)
	}
	return &fixture{world: world, hub: hub, recorder: recorder, points: pointsSvc, creds: credSvc}
}

func (f *fixture) balance(account string) int64 {
	bal, _ := f.points.Balance(context.Background(), account)
	return bal
}
