package database

import (
	"stockbutler/internal/models"
)

// storedRecord lets GetItems tell a missing remindBeforeDays from an
// explicit 0 in files written before the field existed.
type storedRecord struct {
	models.InventoryRecord
	RemindBeforeDays *int `json:"remindBeforeDays"`
}

// GetItems reads the whole items collection.
func GetItems(q Querier) ([]models.InventoryRecord, error) {
	var stored []storedRecord
	if _, err := GetBlob(q, KeyItems, &stored); err != nil {
		return nil, err
	}

	items := make([]models.InventoryRecord, 0, len(stored))
	for _, s := range stored {
		item := s.InventoryRecord
		item.RemindBeforeDays = models.DefaultRemindBeforeDays
		if s.RemindBeforeDays != nil {
			item.RemindBeforeDays = *s.RemindBeforeDays
		}
		if item.Status == "" {
			item.Status = models.StatusInStock
		}
		items = append(items, item)
	}
	return items, nil
}

// SaveItems replaces the whole items collection.
func SaveItems(q Querier, items []models.InventoryRecord) error {
	if items == nil {
		items = []models.InventoryRecord{}
	}
	return PutBlob(q, KeyItems, items)
}
