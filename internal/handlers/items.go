package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"stockbutler/internal/inventory"
	"stockbutler/internal/models"

	"github.com/gin-gonic/gin"
)

func parseStatusQuery(c *gin.Context) (models.Status, bool) {
	switch s := strings.TrimSpace(c.Query("status")); s {
	case "", "all":
		return "", true
	case string(models.StatusInStock), string(models.StatusUsedUp):
		return models.Status(s), true
	default:
		return "", false
	}
}

func handleListItems(c *gin.Context) {
	status, ok := parseStatusQuery(c)
	if !ok {
		badRequest(c, "status must be in_stock or used_up")
		return
	}

	items, err := trackerFrom(c).List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.InventoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func bindRecord(c *gin.Context) (inventory.RawRecord, bool) {
	var raw inventory.RawRecord
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		badRequest(c, "请求体格式错误")
		return nil, false
	}
	return raw, true
}

func handleCreateItem(c *gin.Context) {
	raw, ok := bindRecord(c)
	if !ok {
		return
	}
	name, _ := raw["name"].(string)
	if strings.TrimSpace(name) == "" {
		badRequest(c, "Item name is required")
		return
	}

	saved, err := trackerFrom(c).Save(c.Request.Context(), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": saved})
}

func handleUpdateItem(c *gin.Context) {
	raw, ok := bindRecord(c)
	if !ok {
		return
	}
	if name, present := raw["name"]; present {
		if s, _ := name.(string); strings.TrimSpace(s) == "" {
			badRequest(c, "Item name is required")
			return
		}
	}

	saved, err := trackerFrom(c).Update(c.Request.Context(), c.Param("id"), raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": saved})
}

func handleDeleteItem(c *gin.Context) {
	if err := trackerFrom(c).Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type useRequest struct {
	Amount *float64 `json:"amount"`
}

func handleUseItem(c *gin.Context) {
	var req useRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		badRequest(c, "amount is required")
		return
	}

	result, err := trackerFrom(c).Use(c.Request.Context(), c.Param("id"), *req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func handleExportItems(c *gin.Context) {
	items, err := trackerFrom(c).List(c.Request.Context(), "")
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"名称", "品牌", "一级品类", "二级品类", "数量", "单价", "总价", "购买日期", "到期日", "状态", "用完时间", "备注"}
	if err := writer.Write(header); err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate CSV")
		return
	}

	for _, item := range items {
		row := []string{
			item.Name,
			item.Brand,
			item.Category1,
			item.Category2,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			fmt.Sprintf("%.2f", item.UnitPrice),
			fmt.Sprintf("%.2f", inventory.RowTotalPrice(item, item.IsUsedUp())),
			item.PurchaseDate,
			item.ExpiryDate,
			string(item.Status),
			item.UsedUpAt,
			item.Note,
		}
		if err := writer.Write(row); err != nil {
			c.String(http.StatusInternalServerError, "Failed to generate CSV")
			return
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate CSV")
		return
	}

	c.Header("Content-Disposition", "attachment; filename=inventory.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func handleGroups(c *gin.Context) {
	status, ok := parseStatusQuery(c)
	if !ok {
		badRequest(c, "status must be in_stock or used_up")
		return
	}

	groups, err := trackerFrom(c).Groups(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	if groups == nil {
		groups = []models.SkuGroup{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func handleCopyCandidates(c *gin.Context) {
	items, err := trackerFrom(c).CopyCandidates(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.InventoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
