package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusInStock Status = "in_stock"
	StatusUsedUp  Status = "used_up"
)

// ParseStatus maps anything other than "used_up" to in_stock.
func ParseStatus(s string) Status {
	if strings.TrimSpace(s) == string(StatusUsedUp) {
		return StatusUsedUp
	}
	return StatusInStock
}

const DefaultRemindBeforeDays = 30

// InventoryRecord is one batch of a SKU. Dates are zero-padded YYYY-MM-DD
// strings so lexicographic order equals chronological order.
type InventoryRecord struct {
	ID               string  `json:"id"`
	ExternalRef      string  `json:"externalRef,omitempty"`
	Name             string  `json:"name"`
	Brand            string  `json:"brand"`
	Category1        string  `json:"category1"`
	Category2        string  `json:"category2"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unitPrice"`
	PurchaseDate     string  `json:"purchaseDate"`
	ExpiryDate       string  `json:"expiryDate"`
	Note             string  `json:"note"`
	Status           Status  `json:"status"`
	RemindBeforeDays int     `json:"remindBeforeDays"`
	UsedUpAt         string  `json:"usedUpAt,omitempty"`
}

// MarkUsedUp is the only way a record should enter the used_up state.
func (r *InventoryRecord) MarkUsedUp(date string) {
	r.Status = StatusUsedUp
	r.UsedUpAt = date
}

// MarkInStock clears usedUpAt along with the status.
func (r *InventoryRecord) MarkInStock() {
	r.Status = StatusInStock
	r.UsedUpAt = ""
}

func (r InventoryRecord) IsUsedUp() bool {
	return r.Status == StatusUsedUp
}

// SkuKey identifies "the same product" regardless of batch.
func (r InventoryRecord) SkuKey() string {
	return strings.Join([]string{r.Name, r.Category1, r.Category2, r.Brand}, "\n")
}

// MergeKey identifies one physical batch in one lifecycle state.
func (r InventoryRecord) MergeKey() string {
	return strings.Join([]string{r.SkuKey(), r.ExpiryDate, string(r.Status)}, "\n")
}

// CategoryCatalog maps category1 to the known category2 values.
type CategoryCatalog map[string][]string

// Add registers the pair if absent and reports whether the catalog changed.
func (c CategoryCatalog) Add(category1, category2 string) bool {
	known, exists := c[category1]
	if category2 == "" {
		if exists {
			return false
		}
		c[category1] = []string{}
		return true
	}
	for _, v := range known {
		if v == category2 {
			return false
		}
	}
	c[category1] = append(known, category2)
	return true
}

type Settings struct {
	RemindCycleDays    int    `json:"remindCycleDays" yaml:"remind_cycle_days"`
	NotifyEmail        string `json:"notifyEmail" yaml:"notify_email"`
	SummaryWeeks       int    `json:"summaryWeeks" yaml:"summary_weeks"`
	MirrorEnabled      bool   `json:"mirrorEnabled" yaml:"mirror_enabled"`
	MirrorToken        string `json:"mirrorToken" yaml:"mirror_token"`
	MirrorDatabaseID   string `json:"mirrorDatabaseId" yaml:"mirror_database_id"`
	PurgeUsedUpEnabled bool   `json:"purgeUsedUpEnabled" yaml:"purge_used_up_enabled"`
	PurgeUsedUpWeeks   int    `json:"purgeUsedUpWeeks" yaml:"purge_used_up_weeks"`
	AutoReportEnabled  bool   `json:"autoReportEnabled" yaml:"auto_report_enabled"`
}

func DefaultSettings() Settings {
	return Settings{
		RemindCycleDays:    7,
		SummaryWeeks:       4,
		PurgeUsedUpEnabled: true,
		PurgeUsedUpWeeks:   8,
	}
}

// Normalize trims strings and pulls out-of-range values back to defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.RemindCycleDays <= 0 {
		s.RemindCycleDays = d.RemindCycleDays
	}
	if s.SummaryWeeks < 1 || s.SummaryWeeks > 52 {
		s.SummaryWeeks = d.SummaryWeeks
	}
	if s.PurgeUsedUpWeeks < 1 || s.PurgeUsedUpWeeks > 52 {
		s.PurgeUsedUpWeeks = d.PurgeUsedUpWeeks
	}
	s.NotifyEmail = strings.TrimSpace(s.NotifyEmail)
	s.MirrorToken = strings.TrimSpace(s.MirrorToken)
	s.MirrorDatabaseID = strings.TrimSpace(s.MirrorDatabaseID)
	return s
}

// MirrorActive reports whether the remote-mirrored backend should be used.
func (s Settings) MirrorActive() bool {
	return s.MirrorEnabled && s.MirrorToken != "" && s.MirrorDatabaseID != ""
}

// SkuGroup is one SKU with its batches sorted by expiry date.
type SkuGroup struct {
	Name       string            `json:"name"`
	Category1  string            `json:"category1"`
	Category2  string            `json:"category2"`
	Brand      string            `json:"brand"`
	TotalQty   float64           `json:"totalQty"`
	TotalPrice float64           `json:"totalPrice"`
	ExpiryMin  string            `json:"expiryMin"`
	ExpiryMax  string            `json:"expiryMax"`
	Rows       []InventoryRecord `json:"rows"`
}

type CategoryTotal struct {
	Category1  string            `json:"category1"`
	TotalPrice float64           `json:"totalPrice"`
	Items      []InventoryRecord `json:"items,omitempty"`
}

type Summary struct {
	NewEntries []CategoryTotal `json:"newEntries"`
	Used       []CategoryTotal `json:"used"`
}

type WeeklySummary struct {
	ExpiringCount int               `json:"expiringCount"`
	ExpiringItems []InventoryRecord `json:"expiringItems"`
	InStockCount  int               `json:"inStockCount"`
	UsedUpCount   int               `json:"usedUpCount"`
}

type MonthlySummary struct {
	AddedCount   int     `json:"addedCount"`
	InStockCount int     `json:"inStockCount"`
	UsedUpCount  int     `json:"usedUpCount"`
	TotalSpent   float64 `json:"totalSpent"`
}

type ReportItem struct {
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	Category1  string `json:"category1"`
	Category2  string `json:"category2"`
	ExpiryDate string `json:"expiryDate"`
}

// Report is the payload handed to the mail sender and stored as a
// subscriber snapshot.
type Report struct {
	UrgingText           string          `json:"urgingText"`
	ExpiringItems        []ReportItem    `json:"expiringItems"`
	NewEntriesByCategory []CategoryTotal `json:"newEntriesByCategory"`
	UsedByCategory       []CategoryTotal `json:"usedByCategory"`
	WindowWeeks          int             `json:"windowWeeks"`
}

type Subscriber struct {
	RemindCycleDays int        `json:"remindCycleDays"`
	LastReport      *Report    `json:"lastReport"`
	LastSentAt      *time.Time `json:"lastSentAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
