package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PointAccount is the per-account row of the points ledger. Accounts that
// were never written read as the zero value.
type PointAccount struct {
	AccountID   string `db:"account_id" json:"account_id"`
	Balance     int64  `db:"balance" json:"balance"`
	TotalEarned int64  `db:"total_earned" json:"total_earned"`
	TotalBurned int64  `db:"total_burned" json:"total_burned"`
}

const (
	EntryMint        = "mint"
	EntryBurn        = "burn"
	EntryTransferIn  = "transfer_in"
	EntryTransferOut = "transfer_out"
)

type PointEntry struct {
	ID           string    `db:"id" json:"id"`
	AccountID    string    `db:"account_id" json:"account_id"`
	Kind         string    `db:"kind" json:"kind"`
	Amount       int64     `db:"amount" json:"amount"`
	Counterparty *string   `db:"counterparty" json:"counterparty,omitempty"`
	Reason       string    `db:"reason" json:"reason"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Credential is an achievement record. Only OwnerID ever changes after
// issuance.
type Credential struct {
	ID           int64     `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"owner"`
	TrackID      int64     `db:"track_id" json:"track_id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	ImageRef     string    `db:"image_ref" json:"image_ref"`
	RewardAmount int64     `db:"reward_amount" json:"reward_amount"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type CredentialSummary struct {
	AccountID   string  `json:"account_id"`
	Count       int     `json:"count"`
	TotalReward int64   `json:"total_reward"`
	TrackIDs    []int64 `json:"track_ids"`
}

type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Data       string    `db:"data" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AccountReconciliation compares an account's stored counters with its
// journal entries.
type AccountReconciliation struct {
	AccountID   string `db:"account_id" json:"account_id"`
	Balance     int64  `db:"balance" json:"balance"`
	TotalEarned int64  `db:"total_earned" json:"total_earned"`
	TotalBurned int64  `db:"total_burned" json:"total_burned"`
	EntrySum    int64  `db:"entry_sum" json:"entry_sum"`
	TransferIn  int64  `db:"transfer_in" json:"transfer_in"`
	TransferOut int64  `db:"transfer_out" json:"transfer_out"`
}

// Expected is the balance implied by the lifetime counters and transfers.
func (r AccountReconciliation) Expected() int64 {
	return r.TotalEarned - r.TotalBurned + r.TransferIn - r.TransferOut
}

func (r AccountReconciliation) Consistent() bool {
	return r.Balance == r.EntrySum && r.Balance == r.Expected()
}

type SupplyTotals struct {
	TotalSupply int64 `db:"total_supply" json:"total_supply"`
	TotalMinted int64 `db:"total_minted" json:"total_minted"`
	TotalBurned int64 `db:"total_burned" json:"total_burned"`
}
