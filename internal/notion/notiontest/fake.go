// Package notiontest provides an in-memory document store for tests.
package notiontest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"stockbutler/internal/notion"
)

// ErrUnreachable is returned by Send while the fake is failing.
var ErrUnreachable = errors.New("document store unreachable")

// Fake implements notion.Proxy over an in-memory page map.
type Fake struct {
	mu        sync.Mutex
	pages     map[string]map[string]any
	archived  map[string]bool
	order     []string
	nextID    int
	PageSize  int
	countdown int
	failing   bool
	Calls     []notion.Action
}

func New() *Fake {
	return &Fake{
		pages:    make(map[string]map[string]any),
		archived: make(map[string]bool),
		PageSize: 2,
	}
}

// FailNow makes every following call fail until Recover is called.
func (f *Fake) FailNow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = true
}

// FailCall makes only the n-th following call fail, counting from 1.
func (f *Fake) FailCall(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countdown = n
}

func (f *Fake) Recover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = false
	f.countdown = 0
}

// Seed stores a page with the given properties directly.
func (f *Fake) Seed(properties map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(properties)
}

// Live returns the number of pages that are not archived.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.order {
		if !f.archived[id] {
			n++
		}
	}
	return n
}

// Properties returns a copy of the stored properties of a page.
func (f *Fake) Properties(pageID string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(f.pages[pageID]))
	for k, v := range f.pages[pageID] {
		out[k] = v
	}
	return out
}

func (f *Fake) insert(properties map[string]any) string {
	f.nextID++
	id := fmt.Sprintf("page-%04d", f.nextID)
	f.pages[id] = properties
	f.order = append(f.order, id)
	return id
}

func (f *Fake) Send(ctx context.Context, action notion.Action, credential, targetID string, payload any) (notion.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, action)
	if f.countdown > 0 {
		f.countdown--
		if f.countdown == 0 {
			return notion.Response{}, ErrUnreachable
		}
	}
	if f.failing {
		return notion.Response{}, ErrUnreachable
	}
	if credential == "" {
		return respond(http.StatusUnauthorized, map[string]any{"message": "API token is invalid."})
	}

	body := map[string]any{}
	if payload != nil {
		encoded, _ := json.Marshal(payload)
		_ = json.Unmarshal(encoded, &body)
	}

	switch action {
	case notion.ActionCreateCollection:
		return respond(http.StatusOK, map[string]any{"id": "db-" + targetID})
	case notion.ActionQueryCollection:
		return f.query(body)
	case notion.ActionCreateItem:
		props, _ := body["properties"].(map[string]any)
		id := f.insert(props)
		return respond(http.StatusOK, map[string]any{"id": id})
	case notion.ActionUpdateItem:
		if _, ok := f.pages[targetID]; !ok || f.archived[targetID] {
			return respond(http.StatusNotFound, map[string]any{"message": "page not found"})
		}
		props, _ := body["properties"].(map[string]any)
		for k, v := range props {
			f.pages[targetID][k] = v
		}
		return respond(http.StatusOK, map[string]any{"id": targetID})
	case notion.ActionArchiveItem:
		if _, ok := f.pages[targetID]; !ok {
			return respond(http.StatusNotFound, map[string]any{"message": "page not found"})
		}
		f.archived[targetID] = true
		return respond(http.StatusOK, map[string]any{"id": targetID, "archived": true})
	}
	return respond(http.StatusBadRequest, map[string]any{"message": "unsupported action"})
}

func (f *Fake) query(body map[string]any) (notion.Response, error) {
	var live []string
	for _, id := range f.order {
		if !f.archived[id] {
			live = append(live, id)
		}
	}
	sort.Strings(live)

	start := 0
	if cursor, ok := body["start_cursor"].(string); ok {
		for i, id := range live {
			if id == cursor {
				start = i
				break
			}
		}
	}
	end := start + f.PageSize
	if end > len(live) {
		end = len(live)
	}

	results := make([]any, 0, end-start)
	for _, id := range live[start:end] {
		results = append(results, map[string]any{"id": id, "properties": f.pages[id]})
	}

	var next any
	if end < len(live) {
		next = live[end]
	}
	return respond(http.StatusOK, map[string]any{
		"results":     results,
		"next_cursor": next,
		"has_more":    next != nil,
	})
}

func respond(status int, body any) (notion.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return notion.Response{}, err
	}
	return notion.Response{Status: status, Data: data}, nil
}
