package database

import (
	"stockbutler/internal/models"
)

func GetSubscribers(q Querier) (map[string]models.Subscriber, error) {
	subs := map[string]models.Subscriber{}
	if _, err := GetBlob(q, KeySubscribers, &subs); err != nil {
		return nil, err
	}
	if subs == nil {
		subs = map[string]models.Subscriber{}
	}
	return subs, nil
}

func SaveSubscribers(q Querier, subs map[string]models.Subscriber) error {
	return PutBlob(q, KeySubscribers, subs)
}
