package sse

import (
	"context"
	"sync"

	"careplus/internal/models"
)

const clientBuffer = 10

// QueueEventEmitter fans out OPD queue snapshots to waiting-room displays.
// Subscribers are keyed by session ID.
type QueueEventEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.QueueSnapshot
}

func NewQueueEventEmitter() *QueueEventEmitter {
	return &QueueEventEmitter{
		clients: make(map[string][]chan models.QueueSnapshot),
	}
}

// Subscribe registers a client for one session. The returned channel is
// closed once ctx is done.
func (e *QueueEventEmitter) Subscribe(ctx context.Context, sessionID string) <-chan models.QueueSnapshot {
	ch := make(chan models.QueueSnapshot, clientBuffer)

	e.mu.Lock()
	e.clients[sessionID] = append(e.clients[sessionID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(sessionID, ch)
	}()

	return ch
}

// Emit delivers the snapshot to every subscriber of its session. Slow clients
// whose buffer is full miss the update; the next snapshot supersedes it.
func (e *QueueEventEmitter) Emit(snapshot models.QueueSnapshot) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[snapshot.SessionID] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (e *QueueEventEmitter) remove(sessionID string, ch chan models.QueueSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[sessionID]
	for i, c := range clients {
		if c == ch {
			e.clients[sessionID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[sessionID]) == 0 {
		delete(e.clients, sessionID)
	}
}

func (e *QueueEventEmitter) ClientCount(sessionID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[sessionID])
}
