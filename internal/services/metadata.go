package services

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"achievements/internal/models"
)

type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Metadata is the token-metadata document served for a credential.
type Metadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []MetadataAttribute `json:"attributes"`
}

// RenderMetadata derives the document from immutable credential fields only,
// so repeated renders are identical.
func RenderMetadata(cred models.Credential) Metadata {
	return Metadata{
		Name:        cred.Name,
		Description: cred.Description,
		Image:       cred.ImageRef,
		Attributes: []MetadataAttribute{
			{TraitType: "Track ID", Value: cred.TrackID},
			{TraitType: "Reward Amount", Value: cred.RewardAmount},
			{TraitType: "Created At", Value: cred.CreatedAt.UTC().Format(time.RFC3339)},
		},
	}
}

// TokenURI encodes the metadata as a base64 JSON data URI.
func (m Metadata) TokenURI() (string, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(payload), nil
}
