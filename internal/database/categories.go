package database

import (
	"fmt"

	"stockbutler/internal/models"
)

func GetCategories(q Querier) (models.CategoryCatalog, error) {
	catalog := models.CategoryCatalog{}
	if _, err := GetBlob(q, KeyCategories, &catalog); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = models.CategoryCatalog{}
	}
	return catalog, nil
}

// AddCategory registers a (category1, category2) pair if it is not known yet.
func AddCategory(q Querier, category1, category2 string) error {
	if category1 == "" {
		return nil
	}

	catalog, err := GetCategories(q)
	if err != nil {
		return err
	}

	if !catalog.Add(category1, category2) {
		return nil
	}

	if err := PutBlob(q, KeyCategories, catalog); err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}
