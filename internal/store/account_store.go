package store

import (
	"context"
	"database/sql"
	"errors"

	"achievements/internal/models"
)

// AccountStore persists point_accounts rows.
type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

// Ensure creates a zero row for accountID if none exists yet.
func (s *AccountStore) Ensure(ctx context.Context, tx Execer, accountID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO point_accounts (account_id)
		VALUES ($1)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	return err
}

// Get returns the stored counters, or a zero account when the row is absent.
func (s *AccountStore) Get(ctx context.Context, accountID string) (models.PointAccount, error) {
	var row models.PointAccount
	err := s.db.GetContext(ctx, &row, `
		SELECT account_id, balance, total_earned, total_burned
		FROM point_accounts
		WHERE account_id = $1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PointAccount{AccountID: accountID}, nil
	}
	if err != nil {
		return models.PointAccount{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.PointAccount, error) {
	var row models.PointAccount
	err := tx.GetContext(ctx, &row, `
		SELECT account_id, balance, total_earned, total_burned
		FROM point_accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.PointAccount{}, err
	}
	return row, nil
}

func (s *AccountStore) Save(ctx context.Context, tx Execer, account models.PointAccount) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE point_accounts
		SET balance = $1, total_earned = $2, total_burned = $3, updated_at = NOW()
		WHERE account_id = $4
	`, account.Balance, account.TotalEarned, account.TotalBurned, account.AccountID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows != 1 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *AccountStore) Totals(ctx context.Context) (models.SupplyTotals, error) {
	var totals models.SupplyTotals
	err := s.db.GetContext(ctx, &totals, `
		SELECT COALESCE(SUM(balance), 0) AS total_supply,
		       COALESCE(SUM(total_earned), 0) AS total_minted,
		       COALESCE(SUM(total_burned), 0) AS total_burned
		FROM point_accounts
	`)
	return totals, err
}
