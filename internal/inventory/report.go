package inventory

import (
	"math"
	"sort"
	"strings"
	"time"

	"stockbutler/internal/models"
)

// UncategorizedLabel is the category1 bucket for blank categories.
const UncategorizedLabel = "其他"

const (
	urgingMild      = "有几样快到期啦，记得先用哦～"
	urgingStrong    = "快吃快用啊！别浪费！"
	urgingStrongest = "到期的东西太多了，快吃快用啊！别浪费！"
)

// RoundCents rounds to two decimals, half away from zero.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// RowTotalPrice is quantity × unitPrice for one batch.
func RowTotalPrice(rec models.InventoryRecord, absQty bool) float64 {
	q := rec.Quantity
	if absQty {
		q = math.Abs(q)
	}
	return RoundCents(q * rec.UnitPrice)
}

// FilterStatus returns the records in the given lifecycle state.
func FilterStatus(records []models.InventoryRecord, status models.Status) []models.InventoryRecord {
	out := make([]models.InventoryRecord, 0, len(records))
	for _, rec := range records {
		if models.ParseStatus(string(rec.Status)) == status {
			out = append(out, rec)
		}
	}
	return out
}

// GroupByStatus groups records of one status by SKU. An empty status groups
// everything. Used-up quantities are summed as absolute values.
func GroupByStatus(records []models.InventoryRecord, status models.Status) []models.SkuGroup {
	if status != "" {
		records = FilterStatus(records, status)
	}
	absQty := status == models.StatusUsedUp

	index := make(map[string]int)
	var groups []models.SkuGroup
	for _, rec := range records {
		key := rec.SkuKey()
		pos, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, models.SkuGroup{
				Name:      rec.Name,
				Category1: rec.Category1,
				Category2: rec.Category2,
				Brand:     rec.Brand,
			})
			pos = len(groups) - 1
		}
		groups[pos].Rows = append(groups[pos].Rows, rec)
	}

	for i := range groups {
		g := &groups[i]
		sort.SliceStable(g.Rows, func(a, b int) bool {
			return g.Rows[a].ExpiryDate < g.Rows[b].ExpiryDate
		})

		var totalQty, totalPrice float64
		for _, row := range g.Rows {
			q := row.Quantity
			if absQty {
				q = math.Abs(q)
			}
			totalQty += q
			totalPrice += q * row.UnitPrice
		}
		g.TotalQty = totalQty
		g.TotalPrice = RoundCents(totalPrice)
		g.ExpiryMin = g.Rows[0].ExpiryDate
		g.ExpiryMax = g.Rows[0].ExpiryDate
		for _, row := range g.Rows[1:] {
			if row.ExpiryDate < g.ExpiryMin {
				g.ExpiryMin = row.ExpiryDate
			}
			if row.ExpiryDate > g.ExpiryMax {
				g.ExpiryMax = row.ExpiryDate
			}
		}
	}
	return groups
}

type categoryAccumulator struct {
	index  map[string]int
	totals []models.CategoryTotal
	raw    []float64
}

func newCategoryAccumulator() *categoryAccumulator {
	return &categoryAccumulator{index: make(map[string]int)}
}

func (a *categoryAccumulator) add(rec models.InventoryRecord, amount float64) {
	c1 := rec.Category1
	if c1 == "" {
		c1 = UncategorizedLabel
	}
	pos, ok := a.index[c1]
	if !ok {
		a.index[c1] = len(a.totals)
		a.totals = append(a.totals, models.CategoryTotal{Category1: c1})
		a.raw = append(a.raw, 0)
		pos = len(a.totals) - 1
	}
	a.raw[pos] += amount
	a.totals[pos].Items = append(a.totals[pos].Items, rec)
}

func (a *categoryAccumulator) result() []models.CategoryTotal {
	out := make([]models.CategoryTotal, len(a.totals))
	for i, t := range a.totals {
		t.TotalPrice = RoundCents(a.raw[i])
		out[i] = t
	}
	return out
}

// AggregateByCategory1 sums spend over the window [today - weeks*7, today].
// New entries are matched on purchaseDate inside both bounds. Used entries
// are matched on usedUpAt against the lower bound only.
func AggregateByCategory1(records []models.InventoryRecord, weeks int, today time.Time) models.Summary {
	start := ShiftDays(today, -weeks*7)
	end := FormatDate(today)

	newEntries := newCategoryAccumulator()
	used := newCategoryAccumulator()
	for _, rec := range records {
		if rec.PurchaseDate != "" && rec.PurchaseDate >= start && rec.PurchaseDate <= end {
			newEntries.add(rec, rec.Quantity*rec.UnitPrice)
		}
		if rec.Status == models.StatusUsedUp && rec.UsedUpAt != "" && rec.UsedUpAt >= start {
			used.add(rec, math.Abs(rec.Quantity)*rec.UnitPrice)
		}
	}
	return models.Summary{
		NewEntries: newEntries.result(),
		Used:       used.result(),
	}
}

// DueForReminder returns in-stock records whose expiry falls within their
// own remindBeforeDays window, counting today as day 0.
func DueForReminder(records []models.InventoryRecord, today time.Time) []models.InventoryRecord {
	var due []models.InventoryRecord
	for _, rec := range FilterStatus(records, models.StatusInStock) {
		days, ok := DaysUntil(today, rec.ExpiryDate)
		if !ok {
			continue
		}
		if days >= 0 && days <= rec.RemindBeforeDays {
			due = append(due, rec)
		}
	}
	return due
}

// ExpiringWithin returns in-stock records expiring in the next n days.
func ExpiringWithin(records []models.InventoryRecord, today time.Time, n int) []models.InventoryRecord {
	var out []models.InventoryRecord
	for _, rec := range FilterStatus(records, models.StatusInStock) {
		days, ok := DaysUntil(today, rec.ExpiryDate)
		if ok && days >= 0 && days <= n {
			out = append(out, rec)
		}
	}
	return out
}

// UrgingText picks the nag message for n due items.
func UrgingText(n int) string {
	switch {
	case n <= 0:
		return ""
	case n <= 2:
		return urgingMild
	case n <= 5:
		return urgingStrong
	default:
		return urgingStrongest
	}
}

func BuildWeeklySummary(records []models.InventoryRecord, today time.Time) models.WeeklySummary {
	expiring := ExpiringWithin(records, today, 7)
	return models.WeeklySummary{
		ExpiringCount: len(expiring),
		ExpiringItems: expiring,
		InStockCount:  len(FilterStatus(records, models.StatusInStock)),
		UsedUpCount:   len(FilterStatus(records, models.StatusUsedUp)),
	}
}

// BuildMonthlySummary reports purchases made in today's calendar month.
func BuildMonthlySummary(records []models.InventoryRecord, today time.Time) models.MonthlySummary {
	month := today.Format("2006-01")
	var added int
	var spent float64
	for _, rec := range records {
		if strings.HasPrefix(rec.PurchaseDate, month) {
			added++
			spent += rec.Quantity * rec.UnitPrice
		}
	}
	return models.MonthlySummary{
		AddedCount:   added,
		InStockCount: len(FilterStatus(records, models.StatusInStock)),
		UsedUpCount:  len(FilterStatus(records, models.StatusUsedUp)),
		TotalSpent:   RoundCents(spent),
	}
}

// FutureExpiringByCategory1 totals the value of in-stock batches expiring in
// the next n days per category1.
func FutureExpiringByCategory1(records []models.InventoryRecord, today time.Time, n int) []models.CategoryTotal {
	acc := newCategoryAccumulator()
	for _, rec := range ExpiringWithin(records, today, n) {
		acc.add(rec, rec.Quantity*rec.UnitPrice)
	}
	return acc.result()
}

// CopyCandidates returns one record per SKU whose name, categories or brand
// contain keyword, case-insensitively. A blank keyword matches nothing.
func CopyCandidates(records []models.InventoryRecord, keyword string) []models.InventoryRecord {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []models.InventoryRecord
	for _, rec := range records {
		key := rec.SkuKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if strings.Contains(strings.ToLower(rec.Name), k) ||
			strings.Contains(strings.ToLower(rec.Category1), k) ||
			strings.Contains(strings.ToLower(rec.Category2), k) ||
			strings.Contains(strings.ToLower(rec.Brand), k) {
			out = append(out, rec)
		}
	}
	return out
}

// BuildReport assembles the digest payload for the mail sender.
func BuildReport(records []models.InventoryRecord, weeks int, today time.Time) models.Report {
	due := DueForReminder(records, today)
	summary := AggregateByCategory1(records, weeks, today)

	items := make([]models.ReportItem, 0, len(due))
	for _, rec := range due {
		items = append(items, models.ReportItem{
			Name:       rec.Name,
			Brand:      rec.Brand,
			Category1:  rec.Category1,
			Category2:  rec.Category2,
			ExpiryDate: rec.ExpiryDate,
		})
	}
	return models.Report{
		UrgingText:           UrgingText(len(due)),
		ExpiringItems:        items,
		NewEntriesByCategory: stripItems(summary.NewEntries),
		UsedByCategory:       stripItems(summary.Used),
		WindowWeeks:          weeks,
	}
}

func stripItems(totals []models.CategoryTotal) []models.CategoryTotal {
	out := make([]models.CategoryTotal, len(totals))
	for i, t := range totals {
		out[i] = models.CategoryTotal{Category1: t.Category1, TotalPrice: t.TotalPrice}
	}
	return out
}
