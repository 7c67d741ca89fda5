package services

import (
	"context"
	"fmt"
)

// BootDefaults are applied only for settings that were never stored.
type BootDefaults struct {
	Authority  string
	Principal  string
	Settlement bool
}

// RestoreSettings brings both services back to their stored configuration.
// Defaults are written through the regular authority operations, so they
// are persisted and audited exactly once.
func RestoreSettings(ctx context.Context, pointsSvc *PointsService, registry *CredentialService, defaults BootDefaults) error {
	restored, err := pointsSvc.LoadCollaborator(ctx)
	if err != nil {
		return err
	}
	if !restored && defaults.Authority != "" && defaults.Principal != "" {
		if err := pointsSvc.SetCollaborator(ctx, defaults.Authority, defaults.Principal); err != nil {
			return fmt.Errorf("set default collaborator: %w", err)
		}
	}

	attached, err := registry.LoadLedger(ctx, pointsSvc)
	if err != nil {
		return err
	}
	if !attached && defaults.Settlement && defaults.Authority != "" {
		if err := registry.ConfigureLedger(ctx, defaults.Authority, pointsSvc); err != nil {
			return fmt.Errorf("attach default ledger: %w", err)
		}
	}
	return nil
}
