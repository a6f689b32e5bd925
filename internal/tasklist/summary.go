package tasklist

import (
	"sort"

	"github.com/workmgmt/tasklens/internal/models"
)

// Summarize rolls a fully assembled filtered task set up into per-project
// summaries: task count, total hours and total amount, where the amount is
// summed per task (rates may differ between tasks of one project).
//
// The currency of a group is taken from the first task carrying one; tasks
// of one project are assumed to share a currency and mixed currencies within
// a group are undefined behavior pending a product decision.
//
// The result is sorted by descending total amount, ties broken by project
// name for stable output.
func Summarize(tasks []models.Task) []models.ProjectSummary {
	type key struct {
		id   int64
		name string
	}

	groups := make(map[key]*models.ProjectSummary)
	order := make([]key, 0)

	for _, task := range tasks {
		groupKey := key{id: task.ProjectID, name: task.ProjectName}
		group, ok := groups[groupKey]
		if !ok {
			group = &models.ProjectSummary{
				ProjectID:   task.ProjectID,
				ProjectName: task.ProjectName,
			}
			groups[groupKey] = group
			order = append(order, groupKey)
		}

		group.TaskCount++
		group.TotalHours += task.HoursWorked
		group.TotalAmount += task.Amount()
		if group.Currency == "" {
			group.Currency = task.Currency
		}
	}

	summaries := make([]models.ProjectSummary, 0, len(groups))
	for _, groupKey := range order {
		summaries = append(summaries, *groups[groupKey])
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].TotalAmount != summaries[j].TotalAmount {
			return summaries[i].TotalAmount > summaries[j].TotalAmount
		}
		return summaries[i].ProjectName < summaries[j].ProjectName
	})

	return summaries
}
