package handlers

import (
	"context"

	"achievements/internal/models"
	"achievements/internal/services"
	"achievements/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type AccountStore interface {
	Ensure(ctx context.Context, tx store.Execer, accountID string) error
}

type EntryStore interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

type PointsService interface {
	SetCollaborator(ctx context.Context, caller, principal string) error
	Mint(ctx context.Context, req services.MintRequest) error
	BurnSelf(ctx context.Context, req services.BurnRequest) error
	BurnFrom(ctx context.Context, req services.BurnRequest) error
	Transfer(ctx context.Context, req services.TransferRequest) (bool, error)
	Summary(ctx context.Context, account string) (models.PointAccount, error)
	Supply(ctx context.Context) (services.Supply, error)
	Reconcile(ctx context.Context) ([]models.AccountReconciliation, error)
}

type CredentialService interface {
	ConfigureLedger(ctx context.Context, caller string, ledger services.PointsLedger) error
	Issue(ctx context.Context, req services.IssueRequest) (int64, error)
	IssueBatch(ctx context.Context, req services.BatchIssueRequest) ([]int64, error)
	ExitOnce(ctx context.Context, req services.ExitRequest) (services.ExitResult, error)
	OwnedBy(ctx context.Context, account string) ([]int64, error)
	Get(ctx context.Context, id int64) (models.Credential, error)
	Summary(ctx context.Context, account string) (models.CredentialSummary, error)
	Metadata(ctx context.Context, id int64) (services.Metadata, error)
}
