package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
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

const (
	issueReason = "achievement earned"
	exitReason  = "one-time transfer"

	ledgerAttached = "points"
)

// PointsLedger is what the registry needs from the points ledger. Every
// method joins the caller's transaction.
type PointsLedger interface {
	MintTx(ctx context.Context, tx *sqlx.Tx, caller, account string, amount int64, reason string) (events.Event, error)
	BurnFromTx(ctx context.Context, tx *sqlx.Tx, caller, account string, amount int64, reason string) (events.Event, error)
	BalanceTx(ctx context.Context, tx *sqlx.Tx, account string) (int64, error)
}

type CredentialStore interface {
	Create(ctx context.Context, tx store.Getter, input store.CredentialInput) (int64, error)
	GetByID(ctx context.Context, id int64) (models.Credential, error)
	GetForUpdate(ctx context.Context, tx store.Selecter, ids []int64) ([]models.Credential, error)
	Reassign(ctx context.Context, tx store.Execer, ids []int64, fromOwner, toOwner string) (int64, error)
	ListIDsByOwner(ctx context.Context, ownerID string) ([]int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Credential, error)
}

// CredentialService issues soulbound achievement credentials. A credential
// changes owner only through ExitOnce, which also settles its reward against
// the holder's points.
type CredentialService struct {
	txRunner  db.TxRunner
	creds     CredentialStore
	audit     AuditStore
	settings  SettingsStore
	hub       events.Publisher
	recorder  Recorder
	authority string
	principal string
	now       func() time.Time

	mu     sync.RWMutex
	ledger PointsLedger
}

func NewCredentialService(txRunner db.TxRunner, creds CredentialStore, audit AuditStore, settings SettingsStore, hub events.Publisher, recorder Recorder, authority, principal string) *CredentialService {
	return &CredentialService{
		txRunner:  txRunner,
		creds:     creds,
		audit:     audit,
		settings:  settings,
		hub:       hub,
		recorder:  recorder,
		authority: authority,
		principal: principal,
		now:       time.Now,
	}
}

type IssueRequest struct {
	Caller       string
	Recipient    string
	TrackID      int64
	Name         string
	Description  string
	ImageRef     string
	RewardAmount int64
}

type BatchIssueRequest struct {
	Caller       string
	Recipients   []string
	TrackID      int64
	Name         string
	Description  string
	ImageRef     string
	RewardAmount int64
}

type ExitRequest struct {
	Caller        string
	NewOwner      string
	CredentialIDs []int64
}

type ExitResult struct {
	CredentialIDs []int64 `json:"credential_ids"`
	NewOwner      string  `json:"new_owner"`
	RewardTotal   int64   `json:"reward_total"`
	Burned        int64   `json:"burned"`
}

// ConfigureLedger attaches the points ledger used for reward minting and
// exit settlement. It may be called again to swap the ledger.
func (s *CredentialService) ConfigureLedger(ctx context.Context, caller string, ledger PointsLedger) error {
	if caller == "" || caller != s.authority {
		s.recorder.Failed("configure_ledger")
		return ErrUnauthorized
	}
	if ledger == nil {
		s.recorder.Failed("configure_ledger")
		return ErrInvalidReference
	}
	ev := s.newEvent(events.TypeCredentialLedgerLinked, caller, events.EntityConfig, "credentials.ledger")
	ev.Recipient = s.principal
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.settings.Put(ctx, tx, store.SettingCredentialsLedger, ledgerAttached, caller); err != nil {
			return fmt.Errorf("store ledger setting: %w", err)
		}
		return s.logEvent(ctx, tx, ev)
	})
	if err != nil {
		s.recorder.Failed("configure_ledger")
		return err
	}
	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()
	s.publish(ev)
	return nil
}

// LoadLedger attaches ledger when a previous ConfigureLedger was stored.
// It reports false when the ledger was never configured.
func (s *CredentialService) LoadLedger(ctx context.Context, ledger PointsLedger) (bool, error) {
	value, ok, err := s.settings.Get(ctx, store.SettingCredentialsLedger)
	if err != nil {
		return false, fmt.Errorf("load ledger setting: %w", err)
	}
	if !ok || value != ledgerAttached {
		return false, nil
	}
	if ledger == nil {
		return false, ErrInvalidReference
	}
	s.mu.Lock()
	s.ledger = ledger
	s.mu.Unlock()
	return true, nil
}

func (s *CredentialService) LedgerConfigured() bool {
	return s.currentLedger() != nil
}

func (s *CredentialService) Issue(ctx context.Context, req IssueRequest) (int64, error) {
	if err := s.validateIssue(req.Caller, req.Name, req.RewardAmount); err != nil {
		s.recorder.Failed("issue")
		return 0, err
	}
	if req.Recipient == "" {
		s.recorder.Failed("issue")
		return 0, ErrInvalidRecipient
	}
	id, err := s.issueOne(ctx, req)
	if err != nil {
		s.recorder.Failed("issue")
		return 0, err
	}
	return id, nil
}

// IssueBatch issues one credential per non-empty recipient, each in its own
// transaction. On failure the ids issued so far are returned with the error.
func (s *CredentialService) IssueBatch(ctx context.Context, req BatchIssueRequest) ([]int64, error) {
	if err := s.validateIssue(req.Caller, req.Name, req.RewardAmount); err != nil {
		s.recorder.Failed("issue_batch")
		return nil, err
	}
	ids := make([]int64, 0, len(req.Recipients))
	for _, recipient := range req.Recipients {
		if recipient == "" {
			continue
		}
		id, err := s.issueOne(ctx, IssueRequest{
			Caller:       req.Caller,
			Recipient:    recipient,
			TrackID:      req.TrackID,
			Name:         req.Name,
			Description:  req.Description,
			ImageRef:     req.ImageRef,
			RewardAmount: req.RewardAmount,
		})
		if err != nil {
			s.recorder.Failed("issue_batch")
			return ids, fmt.Errorf("issue to %s: %w", recipient, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *CredentialService) issueOne(ctx context.Context, req IssueRequest) (int64, error) {
	ledger := s.currentLedger()
	createdAt := s.now().UTC()
	var (
		id      int64
		issued  events.Event
		minted  events.Event
		didMint bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		didMint = false
		var err error
		id, err = s.creds.Create(ctx, tx, store.CredentialInput{
			OwnerID:      req.Recipient,
			TrackID:      req.TrackID,
			Name:         req.Name,
			Description:  req.Description,
			ImageRef:     req.ImageRef,
			RewardAmount: req.RewardAmount,
			CreatedAt:    createdAt,
		})
		if err != nil {
			return fmt.Errorf("create credential: %w", err)
		}
		issued = s.newEvent(events.TypeCredentialIssued, req.Caller, events.EntityCredential, strconv.FormatInt(id, 10))
		issued.Accounts = []string{req.Recipient}
		issued.Recipient = req.Recipient
		issued.Amount = req.RewardAmount
		issued.CredentialIDs = []int64{id}
		if err := s.logEvent(ctx, tx, issued); err != nil {
			return err
		}
		if ledger == nil {
			return nil
		}
		minted, err = ledger.MintTx(ctx, tx, s.principal, req.Recipient, req.RewardAmount, issueReason)
		if err != nil {
			return fmt.Errorf("mint reward: %w", err)
		}
		didMint = true
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.publish(issued)
	if didMint {
		s.publish(minted)
	}
	return id, nil
}

// ExitOnce hands the caller's credentials to newOwner and burns their summed
// reward from the caller's balance, capped at what the caller holds.
func (s *CredentialService) ExitOnce(ctx context.Context, req ExitRequest) (ExitResult, error) {
	if req.Caller == "" {
		s.recorder.Failed("exit")
		return ExitResult{}, ErrNotOwner
	}
	if req.NewOwner == "" {
		s.recorder.Failed("exit")
		return ExitResult{}, ErrInvalidRecipient
	}
	if len(req.CredentialIDs) == 0 {
		s.recorder.Failed("exit")
		return ExitResult{}, ErrEmptyList
	}
	ids := dedupeIDs(req.CredentialIDs)
	ledger := s.currentLedger()

	var (
		result  ExitResult
		exited  events.Event
		burned  events.Event
		didBurn bool
	)
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		didBurn = false
		var balance int64
		if ledger != nil {
			var err error
			balance, err = ledger.BalanceTx(ctx, tx, req.Caller)
			if err != nil {
				return fmt.Errorf("read balance: %w", err)
			}
		}
		creds, err := s.creds.GetForUpdate(ctx, tx, ids)
		if err != nil {
			return fmt.Errorf("lock credentials: %w", err)
		}
		if len(creds) != len(ids) {
			return ErrNotOwner
		}
		var total int64
		for _, cred := range creds {
			if cred.OwnerID != req.Caller {
				return ErrNotOwner
			}
			var ok bool
			total, ok = points.CheckedAdd(total, cred.RewardAmount)
			if !ok {
				return ErrInvalidAmount
			}
		}
		moved, err := s.creds.Reassign(ctx, tx, ids, req.Caller, req.NewOwner)
		if err != nil {
			return fmt.Errorf("reassign credentials: %w", err)
		}
		if moved != int64(len(ids)) {
			return ErrNotOwner
		}

		burn := min(total, balance)
		if ledger != nil && burn > 0 {
			burned, err = ledger.BurnFromTx(ctx, tx, s.principal, req.Caller, burn, exitReason)
			if err != nil {
				return fmt.Errorf("settle reward: %w", err)
			}
			didBurn = true
		}

		result = ExitResult{
			CredentialIDs: ids,
			NewOwner:      req.NewOwner,
			RewardTotal:   total,
			Burned:        burn,
		}
		exited = s.newEvent(events.TypeCredentialExited, req.Caller, events.EntityCredential, strconv.FormatInt(ids[0], 10))
		exited.Accounts = uniqueAccounts(req.Caller, req.NewOwner)
		exited.Recipient = req.NewOwner
		exited.CredentialIDs = ids
		exited.Amount = burn
		exited.Nominal = total
		exited.Reason = exitReason
		return s.logEvent(ctx, tx, exited)
	})
	if err != nil {
		s.recorder.Failed("exit")
		return ExitResult{}, err
	}
	if didBurn {
		s.publish(burned)
	}
	s.publish(exited)
	return result, nil
}

func (s *CredentialService) OwnedBy(ctx context.Context, account string) ([]int64, error) {
	if account == "" {
		return []int64{}, nil
	}
	return s.creds.ListIDsByOwner(ctx, account)
}

func (s *CredentialService) Get(ctx context.Context, id int64) (models.Credential, error) {
	cred, err := s.creds.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, ErrNotFound
	}
	if err != nil {
		return models.Credential{}, err
	}
	return cred, nil
}

func (s *CredentialService) Summary(ctx context.Context, account string) (models.CredentialSummary, error) {
	summary := models.CredentialSummary{AccountID: account, TrackIDs: []int64{}}
	if account == "" {
		return summary, nil
	}
	creds, err := s.creds.ListByOwner(ctx, account)
	if err != nil {
		return models.CredentialSummary{}, err
	}
	for _, cred := range creds {
		summary.Count++
		summary.TotalReward += cred.RewardAmount
		summary.TrackIDs = append(summary.TrackIDs, cred.TrackID)
	}
	return summary, nil
}

func (s *CredentialService) Metadata(ctx context.Context, id int64) (Metadata, error) {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return Metadata{}, err
	}
	return RenderMetadata(cred), nil
}

func (s *CredentialService) validateIssue(caller, name string, reward int64) error {
	if caller == "" || caller != s.authority {
		return ErrUnauthorized
	}
	if name == "" {
		return ErrEmptyName
	}
	if reward <= 0 {
		return ErrInvalidReward
	}
	return nil
}

func (s *CredentialService) currentLedger() PointsLedger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

func (s *CredentialService) newEvent(eventType, actor, entityType, entityID string) events.Event {
	return events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		OccurredAt: s.now().UTC(),
	}
}

func (s *CredentialService) logEvent(ctx context.Context, tx *sqlx.Tx, ev events.Event) error {
	if err := s.audit.Log(ctx, tx, ev.Actor, ev.Type, ev.EntityType, ev.EntityID, ev.Data()); err != nil {
		return fmt.Errorf("audit %s: %w", ev.Type, err)
	}
	return nil
}

func (s *CredentialService) publish(ev events.Event) {
	s.recorder.Record(ev)
	s.hub.Publish(ev)
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
