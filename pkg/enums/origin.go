package enums

import "fmt"

// Origin identifies the sub-domain that produced a notification and owns its
// underlying data.
type Origin string

const (
	OriginTimeSeries     Origin = "timeseries"
	OriginCharges        Origin = "charges"
	OriginMarketRoles    Origin = "marketroles"
	OriginMeteringPoints Origin = "meteringpoints"
	OriginWholesale      Origin = "wholesale"
	OriginAggregations   Origin = "aggregations"
)

var validOrigins = []Origin{
	OriginTimeSeries,
	OriginCharges,
	OriginMarketRoles,
	OriginMeteringPoints,
	OriginWholesale,
	OriginAggregations,
}

// IsValid checks whether the given origin matches the canonical enum.
func (o Origin) IsValid() bool {
	for _, candidate := range validOrigins {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrigin converts raw strings into Origin.
func ParseOrigin(value string) (Origin, error) {
	for _, candidate := range validOrigins {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid origin %q", value)
}
