package email

import (
	"fmt"
	"html"
	"strings"

	"stockbutler/internal/models"
)

const (
	noExpiringText = "今天没有快过期的东西，真棒！"
	emptyText      = "暂无"
	footerText     = "存货小管家 · 手帐风保质期管理"
)

func windowLabel(weeks int) string {
	if weeks <= 0 {
		return "过去一个月"
	}
	return fmt.Sprintf("过去 %d 周", weeks)
}

func price(v float64) string {
	return fmt.Sprintf("¥%.2f", v)
}

func renderCategoryTable(b *strings.Builder, totals []models.CategoryTotal) {
	if len(totals) == 0 {
		fmt.Fprintf(b, `<p style="margin:0;color:#6b635a;">%s</p>`, emptyText)
		return
	}
	b.WriteString(`<table style="width:100%;border-collapse:collapse;font-size:13px;">`)
	b.WriteString(`<thead><tr><th style="text-align:left;padding:6px 12px;color:#6b635a;">一级品类</th>`)
	b.WriteString(`<th style="text-align:left;padding:6px 12px;color:#6b635a;">总价</th></tr></thead><tbody>`)
	for _, t := range totals {
		fmt.Fprintf(b, `<tr><td style="padding:6px 12px;">%s</td><td style="padding:6px 12px;">%s</td></tr>`,
			html.EscapeString(t.Category1), price(t.TotalPrice))
	}
	b.WriteString(`</tbody></table>`)
}

func renderReportHTML(report models.Report) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>` + ReportSubject + `</title>
</head>
<body style="margin:0;padding:0;background:#faf6f0;font-family:'PingFang SC',sans-serif;font-size:15px;color:#3d3630;line-height:1.5;">
<div style="max-width:560px;margin:0 auto;padding:24px 16px;">
<div style="background:#fef9e7;border:1px solid #ddd6c8;border-radius:12px;padding:20px;">
<h1 style="margin:0 0 16px;font-size:1.25rem;text-align:center;">今日报告</h1>
<p style="margin:0 0 16px;color:#6b635a;text-align:center;">存货小管家 · 保质期与库存提醒</p>
<div style="background:#fff;border-radius:8px;padding:14px;margin-bottom:16px;border-left:4px solid #c4a77d;">
<h2 style="margin:0 0 10px;font-size:1rem;">今日提醒</h2>
`)

	if len(report.ExpiringItems) > 0 {
		fmt.Fprintf(&b, `<p style="margin:0 0 8px;font-weight:500;color:#c4a77d;">%s</p>`, html.EscapeString(report.UrgingText))
		b.WriteString(`<table style="width:100%;border-collapse:collapse;font-size:13px;">`)
		b.WriteString(`<thead><tr><th style="text-align:left;padding:8px 12px;">物品</th><th style="text-align:left;padding:8px 12px;">品类 · 品牌</th><th style="text-align:left;padding:8px 12px;">到期日</th></tr></thead><tbody>`)
		for _, item := range report.ExpiringItems {
			fmt.Fprintf(&b, `<tr><td style="padding:8px 12px;border-bottom:1px solid #ddd6c8;">%s</td><td style="padding:8px 12px;border-bottom:1px solid #ddd6c8;">%s · %s/%s</td><td style="padding:8px 12px;border-bottom:1px solid #ddd6c8;">%s</td></tr>`,
				html.EscapeString(item.Name),
				html.EscapeString(item.Brand),
				html.EscapeString(item.Category1),
				html.EscapeString(item.Category2),
				html.EscapeString(item.ExpiryDate))
		}
		b.WriteString(`</tbody></table>`)
	} else {
		fmt.Fprintf(&b, `<p style="margin:0;color:#6b635a;">%s</p>`, noExpiringText)
	}

	fmt.Fprintf(&b, `</div>
<div style="background:#fff;border-radius:8px;padding:14px;border-left:4px solid #c4a77d;">
<h2 style="margin:0 0 10px;font-size:1rem;">货单总结 · %s</h2>
<p style="margin:0 0 8px;font-size:12px;color:#6b635a;">进货</p>
`, windowLabel(report.WindowWeeks))
	renderCategoryTable(&b, report.NewEntriesByCategory)
	b.WriteString(`<p style="margin:12px 0 8px;font-size:12px;color:#6b635a;">消耗</p>`)
	renderCategoryTable(&b, report.UsedByCategory)

	fmt.Fprintf(&b, `</div>
<p style="margin:16px 0 0;font-size:12px;color:#6b635a;text-align:center;">%s</p>
</div>
</div>
</body>
</html>`, footerText)

	return b.String()
}

func renderReportText(report models.Report) string {
	var b strings.Builder

	b.WriteString("今日报告\n\n今日提醒\n")
	if len(report.ExpiringItems) == 0 {
		b.WriteString(noExpiringText + "\n")
	} else {
		b.WriteString(report.UrgingText + "\n")
		for _, item := range report.ExpiringItems {
			fmt.Fprintf(&b, "- %s (%s · %s/%s) 到期日 %s\n",
				item.Name, item.Brand, item.Category1, item.Category2, item.ExpiryDate)
		}
	}

	fmt.Fprintf(&b, "\n货单总结 · %s\n", windowLabel(report.WindowWeeks))
	writeTotals := func(title string, totals []models.CategoryTotal) {
		b.WriteString(title + "\n")
		if len(totals) == 0 {
			b.WriteString(emptyText + "\n")
			return
		}
		for _, t := range totals {
			fmt.Fprintf(&b, "- %s: %s\n", t.Category1, price(t.TotalPrice))
		}
	}
	writeTotals("进货", report.NewEntriesByCategory)
	writeTotals("消耗", report.UsedByCategory)

	b.WriteString("\n" + footerText + "\n")
	return b.String()
}
