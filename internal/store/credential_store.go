package store

import (
	"context"
	"time"

	"achievements/internal/models"

	"github.com/lib/pq"
)

// CredentialStore persists credentials. owner_id is the only source of
// ownership; per-account id lists are read through credentials_owner_idx.
type CredentialStore struct {
	db DB
}

func NewCredentialStore(db DB) *CredentialStore {
	return &CredentialStore{db: db}
}

type CredentialInput struct {
	OwnerID      string
	TrackID      int64
	Name         string
	Description  string
	ImageRef     string
	RewardAmount int64
	CreatedAt    time.Time
}

// Create inserts a credential and returns its sequential id.
func (s *CredentialStore) Create(ctx context.Context, tx Getter, input CredentialInput) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO credentials (owner_id, track_id, name, description, image_ref, reward_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, input.OwnerID, input.TrackID, input.Name, input.Description, input.ImageRef, input.RewardAmount, input.CreatedAt)
	return id, err
}

func (s *CredentialStore) GetByID(ctx context.Context, id int64) (models.Credential, error) {
	var row models.Credential
	err := s.db.GetContext(ctx, &row, `
		SELECT id, owner_id, track_id, name, description, image_ref, reward_amount, created_at
		FROM credentials
		WHERE id = $1
	`, id)
	if err != nil {
		return models.Credential{}, err
	}
	return row, nil
}

// GetForUpdate locks the listed credentials in id order. Ids that do not
// exist are simply missing from the result.
func (s *CredentialStore) GetForUpdate(ctx context.Context, tx Selecter, ids []int64) ([]models.Credential, error) {
	var rows []models.Credential
	err := tx.SelectContext(ctx, &rows, `
		SELECT id, owner_id, track_id, name, description, image_ref, reward_amount, created_at
		FROM credentials
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Reassign moves the listed credentials from one owner to another and
// reports how many rows changed.
func (s *CredentialStore) Reassign(ctx context.Context, tx Execer, ids []int64, fromOwner, toOwner string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE credentials
		SET owner_id = $1
		WHERE id = ANY($2) AND owner_id = $3
	`, toOwner, pq.Array(ids), fromOwner)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *CredentialStore) ListIDsByOwner(ctx context.Context, ownerID string) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM credentials
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *CredentialStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Credential, error) {
	var rows []models.Credential
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, owner_id, track_id, name, description, image_ref, reward_amount, created_at
		FROM credentials
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
