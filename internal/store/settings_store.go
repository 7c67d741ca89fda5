package store

import (
	"context"
	"database/sql"
	"errors"
)

const (
	SettingPointsCollaborator = "points.collaborator"
	SettingCredentialsLedger  = "credentials.ledger"
)

// SettingsStore persists runtime configuration changed by the authority.
type SettingsStore struct {
	db DB
}

func NewSettingsStore(db DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get reports ok=false when the key was never written.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `
		SELECT value
		FROM registry_settings
		WHERE key = $1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *SettingsStore) Put(ctx context.Context, tx Execer, key, value, updatedBy string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO registry_settings (key, value, updated_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()
	`, key, value, updatedBy)
	return err
}
