// Package interfaces defines service contracts for vire-recon
package interfaces

import (
	"context"

	"github.com/bobmcallan/vire-recon/internal/models"
)

// ExpectedValuesSource decodes a PMS export into expected values
type ExpectedValuesSource interface {
	// Name identifies the export format
	Name() string

	// Parse decodes the export; absent figures are simply left out
	Parse(data []byte) (*models.ExpectedValues, error)
}

// ExpectedValuesFetcher pulls expected values from a live PMS
type ExpectedValuesFetcher interface {
	Fetch(ctx context.Context, portfolioID string) (*models.ExpectedValues, error)
}
