package inventory

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"stockbutler/internal/models"

	"github.com/google/uuid"
)

// RawRecord is loosely typed input as decoded from JSON or a form.
type RawRecord map[string]any

// NewID generates record identifiers.
var NewID = func() string {
	return uuid.New().String()
}

// Normalize coerces raw input into a canonical record. It never fails:
// strings are trimmed, numbers fall back to 0, a missing id is generated and
// an unknown status becomes in_stock.
func Normalize(raw RawRecord, today string) models.InventoryRecord {
	rec := models.InventoryRecord{
		ID:           coerceString(raw["id"]),
		ExternalRef:  coerceString(raw["externalRef"]),
		Name:         coerceString(raw["name"]),
		Brand:        coerceString(raw["brand"]),
		Category1:    coerceString(raw["category1"]),
		Category2:    coerceString(raw["category2"]),
		Quantity:     nonNegative(coerceNumber(raw["quantity"])),
		UnitPrice:    nonNegative(coerceNumber(raw["unitPrice"])),
		PurchaseDate: dateOnly(coerceString(raw["purchaseDate"])),
		ExpiryDate:   dateOnly(coerceString(raw["expiryDate"])),
		Note:         coerceString(raw["note"]),
		Status:       models.ParseStatus(coerceString(raw["status"])),
	}
	if rec.ExternalRef == "" {
		rec.ExternalRef = coerceString(raw["notionPageId"])
	}
	if rec.ID == "" {
		rec.ID = NewID()
	}
	rec.RemindBeforeDays = coerceRemindDays(raw["remindBeforeDays"])

	if rec.Quantity == 0 {
		rec.Status = models.StatusUsedUp
	}
	if rec.Status == models.StatusUsedUp {
		usedUpAt := dateOnly(coerceString(raw["usedUpAt"]))
		if usedUpAt == "" {
			usedUpAt = today
		}
		rec.MarkUsedUp(usedUpAt)
	} else {
		rec.MarkInStock()
	}
	return rec
}

// Canonicalize runs an already typed record through Normalize.
func Canonicalize(rec models.InventoryRecord, today string) models.InventoryRecord {
	return Normalize(ToRaw(rec), today)
}

// ToRaw flattens a record back into loosely typed form.
func ToRaw(rec models.InventoryRecord) RawRecord {
	raw := RawRecord{
		"id":               rec.ID,
		"name":             rec.Name,
		"brand":            rec.Brand,
		"category1":        rec.Category1,
		"category2":        rec.Category2,
		"quantity":         rec.Quantity,
		"unitPrice":        rec.UnitPrice,
		"purchaseDate":     rec.PurchaseDate,
		"expiryDate":       rec.ExpiryDate,
		"note":             rec.Note,
		"status":           string(rec.Status),
		"remindBeforeDays": rec.RemindBeforeDays,
		"usedUpAt":         rec.UsedUpAt,
	}
	if rec.ExternalRef != "" {
		raw["externalRef"] = rec.ExternalRef
	}
	return raw
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func coerceNumber(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		f, _ = t.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case bool:
		if t {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}

func coerceRemindDays(v any) int {
	var n float64
	switch t := v.(type) {
	case float64, float32, int, int64, json.Number:
		n = coerceNumber(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return models.DefaultRemindBeforeDays
		}
		n = f
	default:
		return models.DefaultRemindBeforeDays
	}
	if n < 0 {
		return models.DefaultRemindBeforeDays
	}
	return int(n)
}
