// Package events defines the audit vocabulary written for every successful
// mutation of the points ledger or the credential registry. Indexers rebuild
// history from these records, so type names and payload keys are stable.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypePointsMinted           = "points.minted"
	TypePointsBurned           = "points.burned"
	TypePointsTransferred      = "points.transferred"
	TypePointsCollaboratorSet  = "points.collaborator_set"
	TypeCredentialIssued       = "credential.issued"
	TypeCredentialExited       = "credential.exited"
	TypeCredentialLedgerLinked = "credential.ledger_configured"
	TypeUserRegistered         = "user.registered"
	TypeUserLoggedIn           = "user.logged_in"
)

const (
	EntityPointAccount = "point_account"
	EntityCredential   = "credential"
	EntityUser         = "user"
	EntityConfig       = "config"
)

// Event is one audit record. Accounts lists every account whose state the
// event touched; live subscribers are routed by it.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Actor         string    `json:"actor"`
	Accounts      []string  `json:"accounts,omitempty"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Amount        int64     `json:"amount"`
	Reason        string    `json:"reason,omitempty"`
	CredentialIDs []int64   `json:"credential_ids,omitempty"`
	Recipient     string    `json:"recipient,omitempty"`
	Nominal       int64     `json:"nominal,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Data is the JSON document stored alongside the audit row.
func (e Event) Data() string {
	payload, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(payload)
}

// Publisher fans committed events out to live subscribers.
type Publisher interface {
	Publish(Event)
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) {}
