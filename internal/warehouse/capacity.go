package warehouse

import (
	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
)

// Load is the outcome of a passed capacity check: the shipment total with
// the pallet included and the headroom left under the limit.
type Load struct {
	Total     decimal.Decimal
	Remaining decimal.Decimal
}

// SumLoad adds up the weight of every pallet bound to shipmentID. Unweighed
// pallets count as zero.
func SumLoad(pallets []*model.Pallet, shipmentID string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range pallets {
		if p.InShipment(shipmentID) {
			total = total.Add(p.EffectiveWeight())
		}
	}
	return total
}

// CheckCapacity guards a shipment against overload. It fails with
// KindCapacityExceeded when current+weight is strictly greater than limit.
func CheckCapacity(current, weight, limit decimal.Decimal) (Load, error) {
	total := current.Add(weight)
	if total.GreaterThan(limit) {
		return Load{}, newError(KindCapacityExceeded, map[string]string{
			"current_load":    current.String(),
			"pallet_weight":   weight.String(),
			"limit":           limit.String(),
			"attempted_total": total.String(),
		}, "shipment overloaded: current load %skg, pallet %skg, limit %skg", current, weight, limit)
	}
	return Load{Total: total, Remaining: limit.Sub(total)}, nil
}
