package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/templa/templa/backend-go/internal/typeid"
)

// ErrSessionActive means the template already has an open session. Scenes
// are owned by exactly one session at a time.
var ErrSessionActive = errors.New("template already has an active session")

// Hub tracks the open session of each template.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session // templateID -> session
	loader   ImageLoader
	store    TemplateStore
	logger   *slog.Logger
}

func NewHub(store TemplateStore, loader ImageLoader, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions: make(map[string]*Session),
		loader:   loader,
		store:    store,
		logger:   logger,
	}
}

// Open starts a session over templateID that reports to out. The session
// runs until Close; the hub forgets it once it has stopped.
func (h *Hub) Open(ctx context.Context, templateID string, out Sender) (*Session, error) {
	h.mu.Lock()
	if _, ok := h.sessions[templateID]; ok {
		h.mu.Unlock()
		return nil, ErrSessionActive
	}
	// reserve the slot while the template loads
	h.sessions[templateID] = nil
	h.mu.Unlock()

	scene, err := h.store.Get(ctx, templateID)
	if err != nil {
		h.mu.Lock()
		delete(h.sessions, templateID)
		h.mu.Unlock()
		return nil, fmt.Errorf("load template: %w", err)
	}

	s := newSession(typeid.NewSessionID(), scene, h.loader, h.store, out, h.logger)
	h.mu.Lock()
	h.sessions[templateID] = s
	h.mu.Unlock()

	go s.Run()
	go func() {
		<-s.Done()
		h.mu.Lock()
		if h.sessions[templateID] == s {
			delete(h.sessions, templateID)
		}
		h.mu.Unlock()
		h.logger.Info("session closed", "session", s.ID, "template", templateID)
	}()

	h.logger.Info("session opened", "session", s.ID, "template", templateID)
	return s, nil
}

// Holds reports whether templateID has an open session, or one that is
// still loading.
func (h *Hub) Holds(templateID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[templateID]
	return ok
}

// Active returns the number of open sessions.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Stop closes every session, saving unsaved edits.
func (h *Hub) Stop() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		if s != nil {
			sessions = append(sessions, s)
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
}
