package inventory

import (
	"stockbutler/internal/models"
)

// Reconcile collapses records sharing a merge key into one, summing the
// quantities. The first record of each group keeps its identity and fields;
// a used_up group keeps the latest usedUpAt, or today when none is known.
// Group order follows first appearance, so reconciling twice is a no-op.
func Reconcile(records []models.InventoryRecord, today string) []models.InventoryRecord {
	index := make(map[string]int, len(records))
	merged := make([]models.InventoryRecord, 0, len(records))

	for _, rec := range records {
		if rec.Status != models.StatusUsedUp {
			rec.Status = models.StatusInStock
		}
		key := rec.MergeKey()
		pos, seen := index[key]
		if !seen {
			head := rec
			head.Quantity = 0
			head.UsedUpAt = ""
			index[key] = len(merged)
			merged = append(merged, head)
			pos = len(merged) - 1
		}

		group := &merged[pos]
		group.Quantity += rec.Quantity
		if rec.Status == models.StatusUsedUp && rec.UsedUpAt > group.UsedUpAt {
			group.UsedUpAt = rec.UsedUpAt
		}
	}

	for i := range merged {
		if merged[i].Status == models.StatusUsedUp {
			if merged[i].UsedUpAt == "" {
				merged[i].UsedUpAt = today
			}
		} else {
			merged[i].UsedUpAt = ""
		}
	}
	return merged
}
