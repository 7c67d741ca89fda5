package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"achievements/internal/db"
	"achievements/internal/events"
	"achievements/internal/models"
	"achievements/internal/points"
	"achievements/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AccountStore interface {
	Ensure(ctx context.Context, tx store.Execer, accountID string) error
	Get(ctx context.Context, accountID string) (models.PointAccount, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.PointAccount, error)
	Save(ctx context.Context, tx store.Execer, account models.PointAccount) error
	Totals(ctx context.Context) (models.SupplyTotals, error)
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.EntryInput) error
	Reconcile(ctx context.Context) ([]models.AccountReconciliation, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// SettingsStore holds authority-managed configuration that must survive
// restarts.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, tx store.Execer, key, value, updatedBy string) error
}

// Recorder receives committed events and failed operations for metrics.
type Recorder interface {
	Record(ev events.Event)
	Failed(op string)
}

// PointsService is the fungible points ledger. Minting and forced burns are
// restricted to the authority and at most one collaborator principal.
type PointsService struct {
	txRunner  db.TxRunner
	accounts  AccountStore
	ledger    LedgerStore
	audit     AuditStore
	settings  SettingsStore
	hub       events.Publisher
	recorder  Recorder
	authority string
	now       func() time.Time

	mu           sync.RWMutex
	collaborator string
}

func NewPointsService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, audit AuditStore, settings SettingsStore, hub events.Publisher, recorder Recorder, authority string) *PointsService {
	return &PointsService{
		txRunner:  txRunner,
		accounts:  accounts,
		ledger:    ledger,
		audit:     audit,
		settings:  settings,
		hub:       hub,
		recorder:  recorder,
		authority: authority,
		now:       time.Now,
	}
}

type MintRequest struct {
	Caller  string
	Account string
	Amount  int64
	Reason  string
}

type BurnRequest struct {
	Caller  string
	Account string
	Amount  int64
	Reason  string
}

type TransferRequest struct {
	Caller string
	To     string
	Amount int64
}

type Supply struct {
	TotalSupply int64  `json:"total_supply"`
	TotalMinted int64  `json:"total_minted"`
	TotalBurned int64  `json:"total_burned"`
	BurnRate    string `json:"burn_rate"`
	Circulating string `json:"circulating_percent"`
}

func (s *PointsService) Collaborator() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collaborator
}

// SetCollaborator registers the second principal allowed to mint and burn
// on behalf of accounts, normally the credential registry.
func (s *PointsService) SetCollaborator(ctx context.Context, caller, principal string) error {
	if caller == "" || caller != s.authority {
		s.recorder.Failed("set_collaborator")
		return ErrUnauthorized
	}
	if principal == "" {
		s.recorder.Failed("set_collaborator")
		return ErrInvalidReference
	}
	ev := s.newEvent(events.TypePointsCollaboratorSet, caller, events.EntityConfig, "points.collaborator")
	ev.Recipient = principal
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.settings.Put(ctx, tx, store.SettingPointsCollaborator, principal, caller); err != nil {
			return fmt.Errorf("store collaborator: %w", err)
		}
		return s.logEvent(ctx, tx, ev)
	})
	if err != nil {
		s.recorder.Failed("set_collaborator")
		return err
	}
	s.mu.Lock()
	s.collaborator = principal
	s.mu.Unlock()
	s.publish(ev)
	return nil
}

// LoadCollaborator restores the collaborator last stored by SetCollaborator.
// It reports false when none was ever stored.
func (s *PointsService) LoadCollaborator(ctx context.Context) (bool, error) {
	principal, ok, err := s.settings.Get(ctx, store.SettingPointsCollaborator)
	if err != nil {
		return false, fmt.Errorf("load collaborator: %w", err)
	}
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	s.collaborator = principal
	s.mu.Unlock()
	return true, nil
}

func (s *PointsService) Mint(ctx context.Context, req MintRequest) error {
	var ev events.Event
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ev, err = s.MintTx(ctx, tx, req.Caller, req.Account, req.Amount, req.Reason)
		return err
	})
	if err != nil {
		s.recorder.Failed("mint")
		return err
	}
	s.publish(ev)
	return nil
}

// MintTx mints inside a transaction owned by the caller. The returned event
// must be published by the caller once the transaction commits.
func (s *PointsService) MintTx(ctx context.Context, tx *sqlx.Tx, caller, account string, amount int64, reason string) (events.Event, error) {
	if !s.isPrivileged(caller) {
		return events.Event{}, ErrUnauthorized
	}
	if account == "" {
		return events.Event{}, ErrInvalidAccount
	}
	if amount <= 0 {
		return events.Event{}, ErrInvalidAmount
	}
	acct, err := s.lockAccount(ctx, tx, account)
	if err != nil {
		return events.Event{}, err
	}
	balance, ok := points.CheckedAdd(acct.Balance, amount)
	if !ok {
		return events.Event{}, ErrInvalidAmount
	}
	earned, ok := points.CheckedAdd(acct.TotalEarned, amount)
	if !ok {
		return events.Event{}, ErrInvalidAmount
	}
	acct.Balance = balance
	acct.TotalEarned = earned
	if err := s.accounts.Save(ctx, tx, acct); err != nil {
		return events.Event{}, fmt.Errorf("save account: %w", err)
	}
	if err := s.ledger.InsertEntries(ctx, tx, []store.EntryInput{{
		ID:        uuid.NewString(),
		AccountID: account,
		Kind:      models.EntryMint,
		Amount:    amount,
		Reason:    reason,
	}}); err != nil {
		return events.Event{}, fmt.Errorf("insert entries: %w", err)
	}
	ev := s.newEvent(events.TypePointsMinted, caller, events.EntityPointAccount, account)
	ev.Accounts = []string{account}
	ev.Amount = amount
	ev.Reason = reason
	if err := s.logEvent(ctx, tx, ev); err != nil {
		return events.Event{}, err
	}
	return ev, nil
}

// BurnSelf burns from the caller's own balance.
func (s *PointsService) BurnSelf(ctx context.Context, req BurnRequest) error {
	if req.Caller == "" {
		s.recorder.Failed("burn")
		return ErrInvalidAccount
	}
	var ev events.Event
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ev, err = s.burnTx(ctx, tx, req.Caller, req.Caller, req.Amount, req.Reason)
		return err
	})
	if err != nil {
		s.recorder.Failed("burn")
		return err
	}
	s.publish(ev)
	return nil
}

func (s *PointsService) BurnFrom(ctx context.Context, req BurnRequest) error {
	var ev events.Event
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		ev, err = s.BurnFromTx(ctx, tx, req.Caller, req.Account, req.Amount, req.Reason)
		return err
	})
	if err != nil {
		s.recorder.Failed("burn_from")
		return err
	}
	s.publish(ev)
	return nil
}

// BurnFromTx is the privileged burn used by exit settlement.
func (s *PointsService) BurnFromTx(ctx context.Context, tx *sqlx.Tx, caller, account string, amount int64, reason string) (events.Event, error) {
	if !s.isPrivileged(caller) {
		return events.Event{}, ErrUnauthorized
	}
	if account == "" {
		return events.Event{}, ErrInvalidAccount
	}
	return s.burnTx(ctx, tx, caller, account, amount, reason)
}

// BalanceTx reads and locks the account inside the caller's transaction so
// a following burn sees the same balance.
func (s *PointsService) BalanceTx(ctx context.Context, tx *sqlx.Tx, account string) (int64, error) {
	if account == "" {
		return 0, ErrInvalidAccount
	}
	acct, err := s.lockAccount(ctx, tx, account)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (s *PointsService) burnTx(ctx context.Context, tx *sqlx.Tx, caller, account string, amount int64, reason string) (events.Event, error) {
	if amount <= 0 {
		return events.Event{}, ErrInvalidAmount
	}
	acct, err := s.lockAccount(ctx, tx, account)
	if err != nil {
		return events.Event{}, err
	}
	if acct.Balance < amount {
		return events.Event{}, ErrInsufficientBalance
	}
	acct.Balance -= amount
	acct.TotalBurned += amount
	if err := s.accounts.Save(ctx, tx, acct); err != nil {
		return events.Event{}, fmt.Errorf("save account: %w", err)
	}
	if err := s.ledger.InsertEntries(ctx, tx, []store.EntryInput{{
		ID:        uuid.NewString(),
		AccountID: account,
		Kind:      models.EntryBurn,
		Amount:    -amount,
		Reason:    reason,
	}}); err != nil {
		return events.Event{}, fmt.Errorf("insert entries: %w", err)
	}
	ev := s.newEvent(events.TypePointsBurned, caller, events.EntityPointAccount, account)
	ev.Accounts = []string{account}
	ev.Amount = amount
	ev.Reason = reason
	if err := s.logEvent(ctx, tx, ev); err != nil {
		return events.Event{}, err
	}
	return ev, nil
}

// Transfer moves balance only. Lifetime earned/burned counters of both
// parties are left untouched.
func (s *PointsService) Transfer(ctx context.Context, req TransferRequest) (bool, error) {
	if req.Caller == "" || req.To == "" {
		s.recorder.Failed("transfer")
		return false, ErrInvalidAccount
	}
	if req.Amount <= 0 {
		s.recorder.Failed("transfer")
		return false, ErrInvalidAmount
	}
	ev := s.newEvent(events.TypePointsTransferred, req.Caller, events.EntityPointAccount, req.Caller)
	ev.Accounts = uniqueAccounts(req.Caller, req.To)
	ev.Recipient = req.To
	ev.Amount = req.Amount
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		from, to, err := s.lockTwoAccounts(ctx, tx, req.Caller, req.To)
		if err != nil {
			return err
		}
		if from.Balance < req.Amount {
			return ErrInsufficientBalance
		}
		if req.Caller != req.To {
			newTo, ok := points.CheckedAdd(to.Balance, req.Amount)
			if !ok {
				return ErrInvalidAmount
			}
			from.Balance -= req.Amount
			to.Balance = newTo
			if err := s.accounts.Save(ctx, tx, from); err != nil {
				return fmt.Errorf("save sender: %w", err)
			}
			if err := s.accounts.Save(ctx, tx, to); err != nil {
				return fmt.Errorf("save recipient: %w", err)
			}
			sender, recipient := req.Caller, req.To
			if err := s.ledger.InsertEntries(ctx, tx, []store.EntryInput{
				{ID: uuid.NewString(), AccountID: sender, Kind: models.EntryTransferOut, Amount: -req.Amount, Counterparty: &recipient},
				{ID: uuid.NewString(), AccountID: recipient, Kind: models.EntryTransferIn, Amount: req.Amount, Counterparty: &sender},
			}); err != nil {
				return fmt.Errorf("insert entries: %w", err)
			}
		}
		return s.logEvent(ctx, tx, ev)
	})
	if err != nil {
		s.recorder.Failed("transfer")
		return false, err
	}
	s.publish(ev)
	return true, nil
}

func (s *PointsService) Summary(ctx context.Context, account string) (models.PointAccount, error) {
	if account == "" {
		return models.PointAccount{}, ErrInvalidAccount
	}
	return s.accounts.Get(ctx, account)
}

func (s *PointsService) Balance(ctx context.Context, account string) (int64, error) {
	acct, err := s.Summary(ctx, account)
	return acct.Balance, err
}

func (s *PointsService) Earned(ctx context.Context, account string) (int64, error) {
	acct, err := s.Summary(ctx, account)
	return acct.TotalEarned, err
}

func (s *PointsService) Burned(ctx context.Context, account string) (int64, error) {
	acct, err := s.Summary(ctx, account)
	return acct.TotalBurned, err
}

func (s *PointsService) TotalSupply(ctx context.Context) (int64, error) {
	totals, err := s.accounts.Totals(ctx)
	return totals.TotalSupply, err
}

func (s *PointsService) Supply(ctx context.Context) (Supply, error) {
	totals, err := s.accounts.Totals(ctx)
	if err != nil {
		return Supply{}, err
	}
	return Supply{
		TotalSupply: totals.TotalSupply,
		TotalMinted: totals.TotalMinted,
		TotalBurned: totals.TotalBurned,
		BurnRate:    points.BurnRate(totals.TotalMinted, totals.TotalBurned),
		Circulating: points.Circulating(totals.TotalMinted, totals.TotalSupply),
	}, nil
}

// Reconcile returns the accounts whose stored counters disagree with the
// point journal.
func (s *PointsService) Reconcile(ctx context.Context) ([]models.AccountReconciliation, error) {
	rows, err := s.ledger.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	mismatches := []models.AccountReconciliation{}
	for _, row := range rows {
		if !row.Consistent() {
			mismatches = append(mismatches, row)
		}
	}
	return mismatches, nil
}

func (s *PointsService) isPrivileged(caller string) bool {
	if caller == "" {
		return false
	}
	if caller == s.authority {
		return true
	}
	return caller == s.Collaborator()
}

func (s *PointsService) lockAccount(ctx context.Context, tx *sqlx.Tx, accountID string) (models.PointAccount, error) {
	if err := s.accounts.Ensure(ctx, tx, accountID); err != nil {
		return models.PointAccount{}, fmt.Errorf("ensure account: %w", err)
	}
	acct, err := s.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return models.PointAccount{}, fmt.Errorf("lock account: %w", err)
	}
	return acct, nil
}

// lockTwoAccounts locks in id order so concurrent transfers cannot deadlock.
func (s *PointsService) lockTwoAccounts(ctx context.Context, tx *sqlx.Tx, firstID, secondID string) (models.PointAccount, models.PointAccount, error) {
	if firstID == secondID {
		acct, err := s.lockAccount(ctx, tx, firstID)
		return acct, acct, err
	}
	leftID, rightID := orderedIDs(firstID, secondID)
	left, err := s.lockAccount(ctx, tx, leftID)
	if err != nil {
		return models.PointAccount{}, models.PointAccount{}, err
	}
	right, err := s.lockAccount(ctx, tx, rightID)
	if err != nil {
		return models.PointAccount{}, models.PointAccount{}, err
	}
	if firstID == leftID {
		return left, right, nil
	}
	return right, left, nil
}

func (s *PointsService) newEvent(eventType, actor, entityType, entityID string) events.Event {
	return events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		OccurredAt: s.now().UTC(),
	}
}

func (s *PointsService) logEvent(ctx context.Context, tx *sqlx.Tx, ev events.Event) error {
	if err := s.audit.Log(ctx, tx, ev.Actor, ev.Type, ev.EntityType, ev.EntityID, ev.Data()); err != nil {
		return fmt.Errorf("audit %s: %w", ev.Type, err)
	}
	return nil
}

func (s *PointsService) publish(ev events.Event) {
	s.recorder.Record(ev)
	s.hub.Publish(ev)
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}

func uniqueAccounts(first, second string) []string {
	if first == second {
		return []string{first}
	}
	return []string{first, second}
}
