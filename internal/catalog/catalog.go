// Package catalog serves the credit-pack plans a purchase can select.
package catalog

import (
	"context"

	"github.com/pixmart/pixmart/internal/models"
	"github.com/sirupsen/logrus"
)

// Source is the external plan provider.
type Source interface {
	ListActive(ctx context.Context) ([]models.Plan, error)
}

// FallbackPlans is the fixed built-in two-tier catalog used when the
// external source has no active plans, so a purchase can always complete.
func FallbackPlans() []models.Plan {
	return []models.Plan{
		{ID: 1, Name: "Starter", PriceMinor: 500, Credits: 500, Active: true},
		{ID: 2, Name: "Standard", PriceMinor: 1000, Credits: 1100, Active: true},
	}
}

type Catalog struct {
	source Source
	logger *logrus.Logger
}

func New(source Source, logger *logrus.Logger) *Catalog {
	return &Catalog{
		source: source,
		logger: logger,
	}
}

// ActivePlans returns the active plans, substituting the built-in fallback
// when the source errors or is empty. The substitution is transparent to
// callers; fallback plans have the same shape as catalog plans.
func (c *Catalog) ActivePlans(ctx context.Context) []models.Plan {
	plans, err := c.source.ListActive(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Plan catalog unavailable, using fallback plans")
		return FallbackPlans()
	}
	if len(plans) == 0 {
		c.logger.Warn("Plan catalog empty, using fallback plans")
		return FallbackPlans()
	}
	return plans
}
