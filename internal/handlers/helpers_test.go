package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"achievements/internal/auth"
	"achievements/internal/config"
	"achievements/internal/events"
	"achievements/internal/models"
	"achievements/internal/services"
	"achievements/internal/store"

	"github.com/jmoiron/sqlx"
)

const testAuthority = "authority-1"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubAccountStore struct {
	ensureFn func(ctx context.Context, tx store.Execer, accountID string) error
}

func (s stubAccountStore) Ensure(ctx context.Context, tx store.Execer, accountID string) error {
	if s.ensureFn == nil {
		return nil
	}
	return s.ensureFn(ctx, tx, accountID)
}

type stubEntryStore struct {
	listFn func(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error)
}

func (s stubEntryStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error) {
	if s.listFn == nil {
		return []models.PointEntry{}, nil
	}
	return s.listFn(ctx, accountID, limit, offset)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return []models.AuditLog{}, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubPoints struct {
	setCollaboratorFn func(ctx context.Context, caller, principal string) error
	mintFn            func(ctx context.Context, req services.MintRequest) error
	burnSelfFn        func(ctx context.Context, req services.BurnRequest) error
	burnFromFn        func(ctx context.Context, req services.BurnRequest) error
	transferFn        func(ctx context.Context, req services.TransferRequest) (bool, error)
	summaryFn         func(ctx context.Context, account string) (models.PointAccount, error)
	supplyFn          func(ctx context.Context) (services.Supply, error)
	reconcileFn       func(ctx context.Context) ([]models.AccountReconciliation, error)
}

func (s stubPoints) SetCollaborator(ctx context.Context, caller, principal string) error {
	if s.setCollaboratorFn == nil {
		return nil
	}
	return s.setCollaboratorFn(ctx, caller, principal)
}

func (s stubPoints) Mint(ctx context.Context, req services.MintRequest) error {
	if s.mintFn == nil {
		return nil
	}
	return s.mintFn(ctx, req)
}

func (s stubPoints) BurnSelf(ctx context.Context, req services.BurnRequest) error {
	if s.burnSelfFn == nil {
		return nil
	}
	return s.burnSelfFn(ctx, req)
}

func (s stubPoints) BurnFrom(ctx context.Context, req services.BurnRequest) error {
	if s.burnFromFn == nil {
		return nil
	}
	return s.burnFromFn(ctx, req)
}

func (s stubPoints) Transfer(ctx context.Context, req services.TransferRequest) (bool, error) {
	if s.transferFn == nil {
		return true, nil
	}
	return s.transferFn(ctx, req)
}

func (s stubPoints) Summary(ctx context.Context, account string) (models.PointAccount, error) {
	if s.summaryFn == nil {
		return models.PointAccount{AccountID: account}, nil
	}
	return s.summaryFn(ctx, account)
}

func (s stubPoints) Supply(ctx context.Context) (services.Supply, error) {
	if s.supplyFn == nil {
		return services.Supply{}, nil
	}
	return s.supplyFn(ctx)
}

func (s stubPoints) Reconcile(ctx context.Context) ([]models.AccountReconciliation, error) {
	if s.reconcileFn == nil {
		return []models.AccountReconciliation{}, nil
	}
	return s.reconcileFn(ctx)
}

type stubCredentials struct {
	configureFn  func(ctx context.Context, caller string, ledger services.PointsLedger) error
	issueFn      func(ctx context.Context, req services.IssueRequest) (int64, error)
	issueBatchFn func(ctx context.Context, req services.BatchIssueRequest) ([]int64, error)
	exitFn       func(ctx context.Context, req services.ExitRequest) (services.ExitResult, error)
	ownedByFn    func(ctx context.Context, account string) ([]int64, error)
	getFn        func(ctx context.Context, id int64) (models.Credential, error)
	summaryFn    func(ctx context.Context, account string) (models.CredentialSummary, error)
	metadataFn   func(ctx context.Context, id int64) (services.Metadata, error)
}

func (s stubCredentials) ConfigureLedger(ctx context.Context, caller string, ledger services.PointsLedger) error {
	if s.configureFn == nil {
		return nil
	}
	return s.configureFn(ctx, caller, ledger)
}

func (s stubCredentials) Issue(ctx context.Context, req services.IssueRequest) (int64, error) {
	if s.issueFn == nil {
		return 1, nil
	}
	return s.issueFn(ctx, req)
}

func (s stubCredentials) IssueBatch(ctx context.Context, req services.BatchIssueRequest) ([]int64, error) {
	if s.issueBatchFn == nil {
		return []int64{}, nil
	}
	return s.issueBatchFn(ctx, req)
}

func (s stubCredentials) ExitOnce(ctx context.Context, req services.ExitRequest) (services.ExitResult, error) {
	if s.exitFn == nil {
		return services.ExitResult{}, nil
	}
	return s.exitFn(ctx, req)
}

func (s stubCredentials) OwnedBy(ctx context.Context, account string) ([]int64, error) {
	if s.ownedByFn == nil {
		return []int64{}, nil
	}
	return s.ownedByFn(ctx, account)
}

func (s stubCredentials) Get(ctx context.Context, id int64) (models.Credential, error) {
	if s.getFn == nil {
		return models.Credential{ID: id}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubCredentials) Summary(ctx context.Context, account string) (models.CredentialSummary, error) {
	if s.summaryFn == nil {
		return models.CredentialSummary{AccountID: account}, nil
	}
	return s.summaryFn(ctx, account)
}

func (s stubCredentials) Metadata(ctx context.Context, id int64) (services.Metadata, error) {
	if s.metadataFn == nil {
		return services.Metadata{}, nil
	}
	return s.metadataFn(ctx, id)
}

type stubLedger struct{}

func (stubLedger) MintTx(context.Context, *sqlx.Tx, string, string, int64, string) (events.Event, error) {
	return events.Event{}, nil
}

func (stubLedger) BurnFromTx(context.Context, *sqlx.Tx, string, string, int64, string) (events.Event, error) {
	return events.Event{}, nil
}

func (stubLedger) BalanceTx(context.Context, *sqlx.Tx, string) (int64, error) {
	return 0, nil
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:            "test",
		Port:              "0",
		JWTSecret:         "secret",
		TokenTTL:          time.Minute,
		AllowedOrigins:    "*",
		AuthorityID:       testAuthority,
		RegistryPrincipal: "credential-registry",
	}
}

// newTestHandler fills every dependency not given in deps with a stub.
func newTestHandler(deps Deps) *Handler {
	if deps.TxRunner == nil {
		deps.TxRunner = fakeTxRunner{}
	}
	if deps.Config.JWTSecret == "" {
		deps.Config = testConfig()
	}
	if deps.Users == nil {
		deps.Users = stubUserStore{}
	}
	if deps.Accounts == nil {
		deps.Accounts = stubAccountStore{}
	}
	if deps.Entries == nil {
		deps.Entries = stubEntryStore{}
	}
	if deps.Audit == nil {
		deps.Audit = stubAuditStore{}
	}
	if deps.Points == nil {
		deps.Points = stubPoints{}
	}
	if deps.Credentials == nil {
		deps.Credentials = stubCredentials{}
	}
	if deps.Ledger == nil {
		deps.Ledger = stubLedger{}
	}
	return New(deps)
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			payload.WriteString(raw)
		} else if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken("secret", userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}
