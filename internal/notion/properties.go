package notion

import (
	"stockbutler/internal/inventory"
	"stockbutler/internal/models"
)

// Property names of the mirror database.
const (
	PropName         = "名称"
	PropBrand        = "品牌"
	PropCategory1    = "一级品类"
	PropCategory2    = "二级品类"
	PropQuantity     = "数量"
	PropPurchaseDate = "购买日期"
	PropExpiryDate   = "到期日"
	PropUnitPrice    = "单价"
	PropNote         = "备注"
	PropStatus       = "状态"
	PropUsedUpAt     = "用完时间"
	PropRemindBefore = "提前提醒天"
	PropLocalID      = "本地ID"

	StatusLabelInStock = "在库"
	StatusLabelUsedUp  = "已用完"

	CollectionTitle = "存货小管家"
)

const maxTextLength = 2000

func collectionSchema(parentPageID string) map[string]any {
	empty := map[string]any{}
	return map[string]any{
		"parent": map[string]any{"type": "page_id", "page_id": parentPageID},
		"title":  []any{map[string]any{"text": map[string]any{"content": CollectionTitle}}},
		"properties": map[string]any{
			PropName:         map[string]any{"title": empty},
			PropBrand:        map[string]any{"rich_text": empty},
			PropCategory1:    map[string]any{"rich_text": empty},
			PropCategory2:    map[string]any{"rich_text": empty},
			PropQuantity:     map[string]any{"number": empty},
			PropPurchaseDate: map[string]any{"date": empty},
			PropExpiryDate:   map[string]any{"date": empty},
			PropUnitPrice:    map[string]any{"number": empty},
			PropNote:         map[string]any{"rich_text": empty},
			PropStatus: map[string]any{"select": map[string]any{
				"options": []any{
					map[string]any{"name": StatusLabelInStock, "color": "green"},
					map[string]any{"name": StatusLabelUsedUp, "color": "gray"},
				},
			}},
			PropUsedUpAt:     map[string]any{"date": empty},
			PropRemindBefore: map[string]any{"number": empty},
			PropLocalID:      map[string]any{"rich_text": empty},
		},
	}
}

func clip(s string) string {
	r := []rune(s)
	if len(r) > maxTextLength {
		return string(r[:maxTextLength])
	}
	return s
}

func textValue(key, s string) map[string]any {
	return map[string]any{key: []any{map[string]any{"text": map[string]any{"content": clip(s)}}}}
}

func dateValue(s string) map[string]any {
	if s == "" {
		return map[string]any{"date": nil}
	}
	return map[string]any{"date": map[string]any{"start": s}}
}

// ToProperties maps a record onto the mirror database's property bag.
func ToProperties(rec models.InventoryRecord) map[string]any {
	statusLabel := StatusLabelInStock
	usedUpAt := ""
	if rec.IsUsedUp() {
		statusLabel = StatusLabelUsedUp
		usedUpAt = rec.UsedUpAt
	}
	return map[string]any{
		PropName:         textValue("title", rec.Name),
		PropBrand:        textValue("rich_text", rec.Brand),
		PropCategory1:    textValue("rich_text", rec.Category1),
		PropCategory2:    textValue("rich_text", rec.Category2),
		PropQuantity:     map[string]any{"number": rec.Quantity},
		PropPurchaseDate: dateValue(rec.PurchaseDate),
		PropExpiryDate:   dateValue(rec.ExpiryDate),
		PropUnitPrice:    map[string]any{"number": rec.UnitPrice},
		PropNote:         textValue("rich_text", rec.Note),
		PropStatus:       map[string]any{"select": map[string]any{"name": statusLabel}},
		PropUsedUpAt:     dateValue(usedUpAt),
		PropRemindBefore: map[string]any{"number": rec.RemindBeforeDays},
		PropLocalID:      textValue("rich_text", rec.ID),
	}
}

type richText struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

type property struct {
	Title    []richText `json:"title"`
	RichText []richText `json:"rich_text"`
	Number   *float64   `json:"number"`
	Date     *struct {
		Start string `json:"start"`
	} `json:"date"`
	Select *struct {
		Name string `json:"name"`
	} `json:"select"`
}

// Page is one row of the mirror database.
type Page struct {
	ID         string              `json:"id"`
	Archived   bool                `json:"archived"`
	Properties map[string]property `json:"properties"`
}

func firstText(parts []richText) string {
	if len(parts) == 0 {
		return ""
	}
	if parts[0].PlainText != "" {
		return parts[0].PlainText
	}
	if parts[0].Text != nil {
		return parts[0].Text.Content
	}
	return ""
}

func (p Page) text(name string) string {
	prop, ok := p.Properties[name]
	if !ok {
		return ""
	}
	if len(prop.Title) > 0 {
		return firstText(prop.Title)
	}
	return firstText(prop.RichText)
}

func (p Page) number(name string) any {
	prop, ok := p.Properties[name]
	if !ok || prop.Number == nil {
		return nil
	}
	return *prop.Number
}

func (p Page) date(name string) string {
	prop, ok := p.Properties[name]
	if !ok || prop.Date == nil {
		return ""
	}
	return prop.Date.Start
}

func (p Page) status() string {
	prop, ok := p.Properties[PropStatus]
	if ok && prop.Select != nil && prop.Select.Name == StatusLabelUsedUp {
		return string(models.StatusUsedUp)
	}
	return string(models.StatusInStock)
}

// ToRecord converts a page into a canonical record. The local id written
// by this service is reused when present so ids survive a round trip.
func (p Page) ToRecord(today string) models.InventoryRecord {
	id := p.text(PropLocalID)
	if id == "" {
		id = p.ID
	}
	raw := inventory.RawRecord{
		"id":               id,
		"externalRef":      p.ID,
		"name":             p.text(PropName),
		"brand":            p.text(PropBrand),
		"category1":        p.text(PropCategory1),
		"category2":        p.text(PropCategory2),
		"quantity":         p.number(PropQuantity),
		"unitPrice":        p.number(PropUnitPrice),
		"purchaseDate":     p.date(PropPurchaseDate),
		"expiryDate":       p.date(PropExpiryDate),
		"note":             p.text(PropNote),
		"status":           p.status(),
		"remindBeforeDays": p.number(PropRemindBefore),
		"usedUpAt":         p.date(PropUsedUpAt),
	}
	return inventory.Normalize(raw, today)
}
