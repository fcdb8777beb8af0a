package notion

import (
	"context"
	"encoding/json"
	"fmt"

	"stockbutler/internal/models"
)

const pageSize = 100

// APIError is a non-2xx answer from the document store.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("document store returned status %d", e.Status)
	}
	return fmt.Sprintf("document store returned status %d: %s", e.Status, e.Message)
}

func checkResponse(resp Response) error {
	if resp.OK() {
		return nil
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(resp.Data, &body)
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return &APIError{Status: resp.Status, Code: body.Code, Message: msg}
}

// Client is the typed view over a Proxy for one credential and database.
type Client struct {
	proxy      Proxy
	credential string
	databaseID string
}

func NewClient(proxy Proxy, credential, databaseID string) *Client {
	return &Client{proxy: proxy, credential: credential, databaseID: databaseID}
}

type queryResult struct {
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// QueryAll pages through the whole mirror database.
func (c *Client) QueryAll(ctx context.Context, today string) ([]models.InventoryRecord, error) {
	var records []models.InventoryRecord
	cursor := ""
	for {
		payload := map[string]any{"page_size": pageSize}
		if cursor != "" {
			payload["start_cursor"] = cursor
		}

		resp, err := c.proxy.Send(ctx, ActionQueryCollection, c.credential, c.databaseID, payload)
		if err != nil {
			return nil, err
		}
		if err := checkResponse(resp); err != nil {
			return nil, err
		}

		var result queryResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, fmt.Errorf("failed to decode query result: %w", err)
		}
		for _, page := range result.Results {
			if page.Archived {
				continue
			}
			records = append(records, page.ToRecord(today))
		}

		if result.NextCursor == nil || *result.NextCursor == "" {
			return records, nil
		}
		cursor = *result.NextCursor
	}
}

// Create adds a page for rec and returns its page id.
func (c *Client) Create(ctx context.Context, rec models.InventoryRecord) (string, error) {
	payload := map[string]any{"properties": ToProperties(rec)}
	resp, err := c.proxy.Send(ctx, ActionCreateItem, c.credential, c.databaseID, payload)
	if err != nil {
		return "", err
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var page Page
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return "", fmt.Errorf("failed to decode created page: %w", err)
	}
	if page.ID == "" {
		return "", fmt.Errorf("document store returned no page id")
	}
	return page.ID, nil
}

func (c *Client) Update(ctx context.Context, pageID string, rec models.InventoryRecord) error {
	payload := map[string]any{"properties": ToProperties(rec)}
	resp, err := c.proxy.Send(ctx, ActionUpdateItem, c.credential, pageID, payload)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// Archive soft-deletes a page.
func (c *Client) Archive(ctx context.Context, pageID string) error {
	resp, err := c.proxy.Send(ctx, ActionArchiveItem, c.credential, pageID, nil)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

// CreateCollection creates the mirror database under parentPageID and
// returns the new database id.
func (c *Client) CreateCollection(ctx context.Context, parentPageID string) (string, error) {
	resp, err := c.proxy.Send(ctx, ActionCreateCollection, c.credential, parentPageID, nil)
	if err != nil {
		return "", err
	}
	if err := checkResponse(resp); err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		return "", fmt.Errorf("failed to decode created database: %w", err)
	}
	return created.ID, nil
}
