package inventory

import (
	"encoding/json"
	"testing"

	"stockbutler/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCoercesLooseInput(t *testing.T) {
	rec := Normalize(RawRecord{
		"name":         "  牛奶 ",
		"brand":        "X",
		"category1":    "乳品",
		"category2":    " 鲜奶",
		"quantity":     "2.5",
		"unitPrice":    json.Number("10"),
		"expiryDate":   "2024-03-10T00:00:00.000Z",
		"purchaseDate": "2024-03-01",
		"status":       "bogus",
	}, "2024-03-01")

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "牛奶", rec.Name)
	assert.Equal(t, "鲜奶", rec.Category2)
	assert.Equal(t, 2.5, rec.Quantity)
	assert.Equal(t, 10.0, rec.UnitPrice)
	assert.Equal(t, "2024-03-10", rec.ExpiryDate)
	assert.Equal(t, models.StatusInStock, rec.Status)
	assert.Equal(t, models.DefaultRemindBeforeDays, rec.RemindBeforeDays)
	assert.Empty(t, rec.UsedUpAt)
}

func TestNormalizeDefaultsBadNumbersToZero(t *testing.T) {
	rec := Normalize(RawRecord{"id": "a", "quantity": "lots", "unitPrice": -3.0}, "2024-03-01")

	assert.Equal(t, "a", rec.ID)
	assert.Equal(t, 0.0, rec.UnitPrice)
	assert.Equal(t, 0.0, rec.Quantity)
	// zero quantity forces used_up
	assert.Equal(t, models.StatusUsedUp, rec.Status)
	assert.Equal(t, "2024-03-01", rec.UsedUpAt)
}

func TestNormalizeUsedUpAtBackfill(t *testing.T) {
	kept := Normalize(RawRecord{"quantity": 1.0, "status": "used_up", "usedUpAt": "2024-02-02"}, "2024-03-01")
	assert.Equal(t, "2024-02-02", kept.UsedUpAt)

	filled := Normalize(RawRecord{"quantity": 1.0, "status": "used_up"}, "2024-03-01")
	assert.Equal(t, "2024-03-01", filled.UsedUpAt)

	cleared := Normalize(RawRecord{"quantity": 1.0, "status": "in_stock", "usedUpAt": "2024-02-02"}, "2024-03-01")
	assert.Empty(t, cleared.UsedUpAt)
}

func TestNormalizeRemindBeforeDays(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{nil, 30},
		{7.0, 7},
		{0.0, 0},
		{"14", 14},
		{"", 30},
		{"soon", 30},
		{-1.0, 30},
	}
	for _, tc := range cases {
		rec := Normalize(RawRecord{"quantity": 1.0, "remindBeforeDays": tc.in}, "2024-03-01")
		assert.Equal(t, tc.want, rec.RemindBeforeDays, "input %v", tc.in)
	}
}

func TestNormalizeKeepsLegacyMirrorReference(t *testing.T) {
	rec := Normalize(RawRecord{"quantity": 1.0, "notionPageId": "page-1"}, "2024-03-01")
	assert.Equal(t, "page-1", rec.ExternalRef)
}

func TestCanonicalizeIsStable(t *testing.T) {
	rec := Normalize(RawRecord{"name": "米", "quantity": 3.0, "unitPrice": 2.0, "expiryDate": "2024-05-01"}, "2024-03-01")
	assert.Equal(t, rec, Canonicalize(rec, "2024-03-01"))
}
