package store

import (
	"context"

	"achievements/internal/models"
)

// LedgerStore is the append-only point journal. Every balance change writes
// one signed entry per affected account.
type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

type EntryInput struct {
	ID           string
	AccountID    string
	Kind         string
	Amount       int64
	Counterparty *string
	Reason       string
}

func (s *LedgerStore) InsertEntries(ctx context.Context, tx Execer, entries []EntryInput) error {
	query := `
		INSERT INTO point_entries (id, account_id, kind, amount, counterparty, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.AccountID, entry.Kind, entry.Amount, entry.Counterparty, entry.Reason); err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.PointEntry, error) {
	var rows []models.PointEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, kind, amount, counterparty, reason, created_at
		FROM point_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reconcile returns every account's counters next to its journal totals.
func (s *LedgerStore) Reconcile(ctx context.Context) ([]models.AccountReconciliation, error) {
	var rows []models.AccountReconciliation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.account_id,
		       a.balance,
		       a.total_earned,
		       a.total_burned,
		       COALESCE(SUM(e.amount), 0) AS entry_sum,
		       COALESCE(SUM(e.amount) FILTER (WHERE e.kind = 'transfer_in'), 0) AS transfer_in,
		       COALESCE(-SUM(e.amount) FILTER (WHERE e.kind = 'transfer_out'), 0) AS transfer_out
		FROM point_accounts a
		LEFT JOIN point_entries e ON e.account_id = a.account_id
		GROUP BY a.account_id, a.balance, a.total_earned, a.total_burned
		ORDER BY a.account_id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
