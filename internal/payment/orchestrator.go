package payment

import (
	"context"

	"github.com/pixmart/pixmart/internal/catalog"
	"github.com/pixmart/pixmart/internal/gateway"
	"github.com/sirupsen/logrus"
)

// Orchestrator composes the purchase flow with the plan catalog and fixes
// the gateway adapter for every flow it creates. The host only sees the
// success/cancel/error callbacks it passes in.
type Orchestrator struct {
	catalog *catalog.Catalog
	adapter gateway.Adapter
	logger  *logrus.Logger
}

func NewOrchestrator(cat *catalog.Catalog, adapter gateway.Adapter, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		catalog: cat,
		adapter: adapter,
		logger:  logger,
	}
}

// NewPurchase opens a purchase flow for the user against the current active
// catalog. If the catalog is unavailable the built-in fallback plans are
// substituted transparently; the flow sees the same plan shape either way.
func (o *Orchestrator) NewPurchase(ctx context.Context, userID string, cb Callbacks) *Flow {
	plans := o.catalog.ActivePlans(ctx)
	return NewFlow(userID, plans, o.adapter, cb, o.logger)
}
