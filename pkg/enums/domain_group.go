package enums

import "fmt"

// DomainGroup is the logical notification group a market operator peeks
// against. Each group maps to an ordered list of origins; the first origin
// with pending data wins.
type DomainGroup string

const (
	DomainGroupTimeSeries   DomainGroup = "timeseries"
	DomainGroupAggregations DomainGroup = "aggregations"
	DomainGroupMasterData   DomainGroup = "masterdata"
	DomainGroupAll          DomainGroup = "all"
)

var validDomainGroups = []DomainGroup{
	DomainGroupTimeSeries,
	DomainGroupAggregations,
	DomainGroupMasterData,
	DomainGroupAll,
}

// Origins returns the group's origins in priority order.
func (g DomainGroup) Origins() []Origin {
	switch g {
	case DomainGroupTimeSeries:
		return []Origin{OriginTimeSeries, OriginWholesale}
	case DomainGroupAggregations:
		return []Origin{OriginAggregations}
	case DomainGroupMasterData:
		return []Origin{OriginCharges, OriginMarketRoles, OriginMeteringPoints}
	case DomainGroupAll:
		return []Origin{
			OriginTimeSeries,
			OriginAggregations,
			OriginWholesale,
			OriginCharges,
			OriginMarketRoles,
			OriginMeteringPoints,
		}
	default:
		return nil
	}
}

func (g DomainGroup) IsValid() bool {
	for _, candidate := range validDomainGroups {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseDomainGroup converts raw strings into DomainGroup.
func ParseDomainGroup(value string) (DomainGroup, error) {
	for _, candidate := range validDomainGroups {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid domain group %q", value)
}
