package bundling

import (
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

const defaultMaxWeight = 50000

// WeightPolicy maps an origin to the weight budget a single bundle from that
// sub-domain may carry.
type WeightPolicy struct {
	byOrigin map[enums.Origin]int
}

// NewWeightPolicy builds the per-origin budgets from configuration.
func NewWeightPolicy(cfg config.PostOfficeConfig) *WeightPolicy {
	return &WeightPolicy{byOrigin: map[enums.Origin]int{
		enums.OriginTimeSeries:     cfg.TimeSeriesMaxWeight,
		enums.OriginCharges:        cfg.ChargesMaxWeight,
		enums.OriginMarketRoles:    cfg.MarketRolesMaxWeight,
		enums.OriginMeteringPoints: cfg.MeteringPointsMaxWeight,
		enums.OriginWholesale:      cfg.WholesaleMaxWeight,
		enums.OriginAggregations:   cfg.AggregationsMaxWeight,
	}}
}

// MaxWeight returns the bundle weight budget for the origin. Unknown or
// misconfigured origins fall back to the default budget.
func (p *WeightPolicy) MaxWeight(origin enums.Origin) int {
	if weight, ok := p.byOrigin[origin]; ok && weight > 0 {
		return weight
	}
	return defaultMaxWeight
}
