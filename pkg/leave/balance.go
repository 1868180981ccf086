// Package leave aggregates ERP leave allocations and usage into balances.
package leave

import (
	"sort"
	"time"
)

// Allocation is one Leave Allocation row, already date-parsed by the caller.
type Allocation struct {
	LeaveType string
	From      time.Time
	To        time.Time
	Days      float64
}

// Balance is the derived available figure for one leave type.
type Balance struct {
	LeaveType string
	Allocated float64
	Used      float64
	Available float64
}

// ComputeBalances sums allocations per leave type and subtracts approved
// usage, flooring at zero.
//
// Only allocations active today (today within [From, To]) count; when that
// filter empties the set the unfiltered allocations are used instead, so a
// site with malformed allocation date ranges still shows balances. Leave
// types that appear in usage but have no allocation row are merged in with
// zero allocated. Output is sorted alphabetically by leave type.
func ComputeBalances(allocations []Allocation, usedByType map[string]float64, today time.Time) []Balance {
	active := make([]Allocation, 0, len(allocations))
	for _, a := range allocations {
		if activeOn(a, today) {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		active = allocations
	}

	allocated := make(map[string]float64, len(active))
	for _, a := range active {
		allocated[a.LeaveType] += a.Days
	}

	// Usage recorded without a matching allocation still shows up.
	for leaveType := range usedByType {
		if _, ok := allocated[leaveType]; !ok {
			allocated[leaveType] = 0
		}
	}

	balances := make([]Balance, 0, len(allocated))
	for leaveType, total := range allocated {
		used := usedByType[leaveType]
		available := total - used
		if available < 0 {
			available = 0
		}
		balances = append(balances, Balance{
			LeaveType: leaveType,
			Allocated: total,
			Used:      used,
			Available: available,
		})
	}

	sort.Slice(balances, func(i, j int) bool {
		return balances[i].LeaveType < balances[j].LeaveType
	})

	return balances
}

func activeOn(a Allocation, day time.Time) bool {
	if a.From.IsZero() || a.To.IsZero() {
		return false
	}
	return !day.Before(a.From) && !day.After(a.To)
}
