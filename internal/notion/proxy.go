package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Action string

const (
	ActionCreateCollection Action = "createCollection"
	ActionQueryCollection  Action = "queryCollection"
	ActionCreateItem       Action = "createItem"
	ActionUpdateItem       Action = "updateItem"
	ActionArchiveItem      Action = "archiveItem"
)

// ParseAction also accepts the names used by older browser clients.
func ParseAction(s string) (Action, bool) {
	switch s {
	case string(ActionCreateCollection), "createDatabase":
		return ActionCreateCollection, true
	case string(ActionQueryCollection), "queryDatabase":
		return ActionQueryCollection, true
	case string(ActionCreateItem), "createPage":
		return ActionCreateItem, true
	case string(ActionUpdateItem), "updatePage":
		return ActionUpdateItem, true
	case string(ActionArchiveItem), "archivePage":
		return ActionArchiveItem, true
	}
	return "", false
}

// Response is the raw status and body returned by the document store.
type Response struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Proxy forwards one action to the document store on behalf of the holder
// of credential. targetID is a parent page id for createCollection, a
// database id for queryCollection and createItem, and a page id otherwise.
type Proxy interface {
	Send(ctx context.Context, action Action, credential, targetID string, payload any) (Response, error)
}

// HTTPProxy talks to the Notion REST API. It keeps no state between calls.
type HTTPProxy struct {
	baseURL string
	version string
	client  *http.Client
}

func NewHTTPProxy(baseURL, version string, client *http.Client) *HTTPProxy {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProxy{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		client:  client,
	}
}

// CleanID strips the dashes Notion accepts but does not require.
func CleanID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}

func (p *HTTPProxy) Send(ctx context.Context, action Action, credential, targetID string, payload any) (Response, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Response{}, fmt.Errorf("missing credential")
	}
	target := CleanID(targetID)
	if target == "" {
		return Response{}, fmt.Errorf("missing target id for %s", action)
	}

	var method, path string
	body := payload
	switch action {
	case ActionCreateCollection:
		method, path = http.MethodPost, "/databases"
		body = collectionSchema(target)
	case ActionQueryCollection:
		method, path = http.MethodPost, "/databases/"+target+"/query"
	case ActionCreateItem:
		method, path = http.MethodPost, "/pages"
		body = withParent(payload, target)
	case ActionUpdateItem:
		method, path = http.MethodPatch, "/pages/"+target
	case ActionArchiveItem:
		method, path = http.MethodPatch, "/pages/"+target
		body = map[string]any{"archived": true}
	default:
		return Response{}, fmt.Errorf("unsupported action %q", action)
	}
	if body == nil {
		body = map[string]any{}
	}

	return p.do(ctx, method, path, credential, body)
}

func (p *HTTPProxy) do(ctx context.Context, method, path, credential string, body any) (Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Notion-Version", p.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request to document store failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	data := json.RawMessage(raw)
	if len(raw) == 0 {
		data = json.RawMessage("{}")
	} else if !json.Valid(raw) {
		wrapped, _ := json.Marshal(map[string]string{"message": string(raw)})
		data = wrapped
	}
	return Response{Status: resp.StatusCode, Data: data}, nil
}

func withParent(payload any, databaseID string) any {
	m, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out["parent"] = map[string]any{"database_id": databaseID}
	return out
}
