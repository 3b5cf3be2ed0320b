package inapp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
)

// Session is one connected client, e.g. a websocket.
type Session interface {
	ID() string
	Send(event string, payload []byte) error
}

// Hub tracks sessions connected to this process.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int64]map[string]Session
	logger   logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		sessions: make(map[int64]map[string]Session),
		logger:   log.WithFields(map[string]interface{}{"component": "inapp-hub"}),
	}
}

func (h *Hub) Register(userID int64, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[string]Session)
	}
	h.sessions[userID][s.ID()] = s
}

func (h *Hub) Unregister(userID int64, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions[userID], sessionID)
	if len(h.sessions[userID]) == 0 {
		delete(h.sessions, userID)
	}
}

// Connected returns the number of sessions of a user.
func (h *Hub) Connected(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Emit sends to every local session of the user. A user with no session is
// not an error: other instances may hold the connection.
func (h *Hub) Emit(ctx context.Context, userID int64, event string, payload interface{}) error {
	h.mu.RLock()
	targets := make([]Session, 0, len(h.sessions[userID]))
	for _, s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInvalidPayloadError(event, err)
	}

	var failed int
	for _, s := range targets {
		if err := s.Send(event, data); err != nil {
			failed++
			h.logger.Warn("Failed to push event to session", map[string]interface{}{
				"userId":    userID,
				"sessionId": s.ID(),
				"event":     event,
				"error":     err,
			})
		}
	}
	if failed == len(targets) {
		return errors.NewChannelDeliveryError("inapp", fmt.Errorf("all %d sessions of user %d failed", failed, userID))
	}
	return nil
}
