// Package sse fans workflow events out to connected dashboards over
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"indor_desk/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	clientBuffer      = 32
	heartbeatInterval = 25 * time.Second
)

// Event is one message on the stream. Type becomes the SSE event name.
type Event struct {
	Type     string      `json:"type"`
	ClientID uuid.UUID   `json:"clientId,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

type subscriber struct {
	userID uuid.UUID
	events chan Event
}

// Service keeps the set of open streams.
type Service struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	closed      bool
	log         *logger.Logger
	heartbeat   time.Duration
}

func New(log *logger.Logger) *Service {
	return &Service{
		subscribers: make(map[*subscriber]struct{}),
		log:         log,
		heartbeat:   heartbeatInterval,
	}
}

func (s *Service) add(sub *subscriber) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.subscribers[sub] = struct{}{}
	return true
}

func (s *Service) remove(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[sub]; ok {
		delete(s.subscribers, sub)
		close(sub.events)
	}
}

// Subscribe opens a stream for userID. The returned cancel func must be
// called once the reader is done. ok is false after Close.
func (s *Service) Subscribe(userID uuid.UUID) (events <-chan Event, cancel func(), ok bool) {
	sub := &subscriber{userID: userID, events: make(chan Event, clientBuffer)}
	if !s.add(sub) {
		return nil, func() {}, false
	}
	return sub.events, func() { s.remove(sub) }, true
}

// Broadcast sends event to every open stream. A subscriber whose buffer is
// full misses the event rather than stalling the publisher.
func (s *Service) Broadcast(event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	delivered := 0
	for sub := range s.subscribers {
		select {
		case sub.events <- event:
			delivered++
		default:
			s.log.Warn("sse buffer full, dropping event", "user_id", sub.userID.String(), "type", event.Type)
		}
	}
	return delivered
}

// Connections reports the number of open streams.
func (s *Service) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Handler streams events until the client goes away or the service closes.
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "unauthorized"})
			return
		}

		stream, cancel, ok := s.Subscribe(userID)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down", "code": "unavailable"})
			return
		}
		defer cancel()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()
		s.log.Debug("sse client connected", "user_id", userID.String())

		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()

		gone := c.Request.Context().Done()
		for {
			select {
			case <-gone:
				s.log.Debug("sse client disconnected", "user_id", userID.String())
				return
			case <-ticker.C:
				c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
				c.Writer.Flush()
			case event, ok := <-stream:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					s.log.Error("sse marshal failed", "error", err)
					continue
				}
				c.SSEvent(event.Type, string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close ends every open stream and refuses new ones.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subscribers {
		close(sub.events)
		delete(s.subscribers, sub)
	}
}
