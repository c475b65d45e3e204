// Package conflict groups same-day occurrences whose time ranges overlap.
package conflict

import (
	"sort"

	"eventcal/internal/model"
	"eventcal/internal/timeofday"
)

// Detect partitions occurrences by date and returns one ConflictGroup per
// date that has at least two overlapping occurrences. Each group lists every
// occurrence overlapping some other occurrence that day, exactly once,
// sorted by start time (ties keep input order). Groups follow the order in
// which their dates first appear in the input.
//
// Every pair within a date is compared.
func Detect(occurrences []model.Occurrence) []model.ConflictGroup {
	byDate := make(map[string][]model.Occurrence)
	order := make([]string, 0)

	for _, occ := range occurrences {
		if _, seen := byDate[occ.Date]; !seen {
			order = append(order, occ.Date)
		}
		byDate[occ.Date] = append(byDate[occ.Date], occ)
	}

	groups := make([]model.ConflictGroup, 0)
	for _, date := range order {
		day := byDate[date]
		if len(day) < 2 {
			continue
		}

		starts := make([]int, len(day))
		ends := make([]int, len(day))
		for i, occ := range day {
			starts[i] = occ.StartMinutes()
			ends[i] = occ.EndMinutes()
		}

		marked := make([]bool, len(day))
		found := false
		for i := 0; i < len(day); i++ {
			for j := i + 1; j < len(day); j++ {
				if timeofday.Overlap(starts[i], ends[i], starts[j], ends[j]) {
					marked[i], marked[j] = true, true
					found = true
				}
			}
		}
		if !found {
			continue
		}

		conflicting := make([]model.Occurrence, 0)
		for i, occ := range day {
			if marked[i] {
				conflicting = append(conflicting, occ)
			}
		}
		sort.SliceStable(conflicting, func(a, b int) bool {
			return conflicting[a].StartMinutes() < conflicting[b].StartMinutes()
		})

		groups = append(groups, model.ConflictGroup{Date: date, Events: conflicting})
	}

	return groups
}

// Count returns the total number of conflicting occurrences across groups.
func Count(groups []model.ConflictGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Events)
	}
	return n
}
