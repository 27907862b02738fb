package usecase

import (
	"context"

	"github.com/example/insect-id/internal/store"
)

// GetSummary aggregates the device's collection.
func (uc *IdentificationUseCase) GetSummary(ctx context.Context, deviceID string) store.Summary {
	return uc.stores(deviceID).Summary(ctx)
}
