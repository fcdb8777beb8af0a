package store

import (
	"sync"

	"stockbutler/internal/models"
	"stockbutler/internal/notion"
)

// Selector returns the backend matching the current settings. It keeps one
// Remote per credential and database so the session cache outlives a
// single request.
type Selector struct {
	mu        sync.Mutex
	local     *Local
	proxy     notion.Proxy
	today     func() string
	remote    *Remote
	remoteKey string
}

func NewSelector(local *Local, proxy notion.Proxy, today func() string) *Selector {
	return &Selector{local: local, proxy: proxy, today: today}
}

func (s *Selector) Local() *Local {
	return s.local
}

// Select picks Remote when the mirror is active and Local otherwise.
func (s *Selector) Select(settings models.Settings) Store {
	if !settings.MirrorActive() {
		return s.local
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := settings.MirrorToken + "\x00" + settings.MirrorDatabaseID
	if s.remote == nil || s.remoteKey != key {
		client := notion.NewClient(s.proxy, settings.MirrorToken, settings.MirrorDatabaseID)
		s.remote = NewRemote(client, s.today)
		s.remoteKey = key
	}
	return s.remote
}

// Invalidate drops the remote session cache, if any.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	remote := s.remote
	s.mu.Unlock()
	if remote != nil {
		remote.Invalidate()
	}
}
