package inventory

import (
	"math"
	"time"

	"stockbutler/internal/models"
)

// Split is the outcome of consuming part of a batch: the original batch
// with its reduced quantity and a new used_up batch holding what was used.
type Split struct {
	Remaining models.InventoryRecord
	Consumed  models.InventoryRecord
	Used      float64
}

// SplitUse clamps amount to [0, quantity] and splits the batch. ok is false
// when nothing would be consumed.
func SplitUse(rec models.InventoryRecord, amount float64, today string) (Split, bool) {
	used := amount
	if used < 0 || math.IsNaN(used) {
		used = 0
	}
	if used > rec.Quantity {
		used = rec.Quantity
	}
	if used <= 0 {
		return Split{Remaining: rec}, false
	}

	remaining := rec
	remaining.Quantity = rec.Quantity - used
	if remaining.Quantity <= 0 {
		remaining.Quantity = 0
		remaining.MarkUsedUp(today)
	}

	consumed := models.InventoryRecord{
		ID:               NewID(),
		Name:             rec.Name,
		Brand:            rec.Brand,
		Category1:        rec.Category1,
		Category2:        rec.Category2,
		Quantity:         used,
		UnitPrice:        rec.UnitPrice,
		PurchaseDate:     rec.PurchaseDate,
		ExpiryDate:       rec.ExpiryDate,
		Note:             rec.Note,
		RemindBeforeDays: rec.RemindBeforeDays,
	}
	consumed.MarkUsedUp(today)

	return Split{Remaining: remaining, Consumed: consumed, Used: used}, true
}

// RetentionCutoff is today minus weeks*7 calendar days.
func RetentionCutoff(today time.Time, weeks int) string {
	return ShiftDays(today, -weeks*7)
}

// PurgeAged drops used_up records whose usedUpAt is older than the cutoff.
// A record used up exactly on the cutoff date is kept, and so is any
// used_up record without a usedUpAt since its age cannot be known.
func PurgeAged(records []models.InventoryRecord, cutoff string) (kept []models.InventoryRecord, removed int) {
	kept = make([]models.InventoryRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status == models.StatusUsedUp && rec.UsedUpAt != "" && dateOnly(rec.UsedUpAt) < cutoff {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	return kept, removed
}
