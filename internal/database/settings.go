package database

import (
	"stockbutler/internal/models"
)

func GetSettings(q Querier) (models.Settings, error) {
	settings := models.DefaultSettings()
	found, err := GetBlob(q, KeySettings, &settings)
	if err != nil {
		return models.DefaultSettings(), err
	}
	if !found {
		return models.DefaultSettings(), nil
	}
	return settings.Normalize(), nil
}

func SaveSettings(q Querier, settings models.Settings) error {
	return PutBlob(q, KeySettings, settings.Normalize())
}
