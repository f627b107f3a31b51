// Package session stores chat sessions in Redis with an in-memory mirror.
// Redis gives sessions a TTL and survives restarts; the mirror keeps chat
// working when Redis is down or not configured.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/antsa-au/haystack-service/internal/model/chat"
)

var (
	ErrPersonaRequired = errors.New("persona type is required")
	ErrSessionNotFound = errors.New("session not found")
)

const keyPrefix = "session:"

// Store manages session lifecycle and persistence.
type Store struct {
	redis *redis.Client
	ttl   time.Duration

	// writeMu serializes read-modify-write cycles so two concurrent
	// updates cannot clone the same base and lose one of them.
	writeMu sync.Mutex

	mu       sync.RWMutex
	sessions map[string]chat.Session
}

// NewStore builds a Store. The Redis client may be nil, in which case the
// store runs purely in memory.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		redis:    client,
		ttl:      ttl,
		sessions: make(map[string]chat.Session),
	}
}

// RegisterSweeper schedules the periodic cleanup of expired in-memory
// sessions. Redis entries expire on their own.
func (s *Store) RegisterSweeper(c *cron.Cron) error {
	_, err := c.AddFunc("@every 5m", s.sweep)
	return err
}

// Create provisions a session with a fresh identifier.
func (s *Store) Create(ctx context.Context, personaType string, requestContext map[string]any, profileID string) (chat.Session, error) {
	return s.CreateWithID(ctx, uuid.NewString(), personaType, requestContext, profileID)
}

// CreateWithID provisions a session under a caller-chosen identifier. The
// WebSocket handler uses it to revive sessions that expired mid-connection
// without breaking the frontend's session reference.
func (s *Store) CreateWithID(ctx context.Context, id, personaType string, requestContext map[string]any, profileID string) (chat.Session, error) {
	if personaType == "" {
		return chat.Session{}, ErrPersonaRequired
	}
	if requestContext == nil {
		requestContext = make(map[string]any)
	}

	now := time.Now().UTC()
	session := chat.Session{
		ID:           id,
		PersonaType:  personaType,
		Messages:     make([]chat.Message, 0, 16),
		CreatedAt:    now,
		LastActivity: now,
		Context:      requestContext,
		ProfileID:    profileID,
	}

	s.persist(ctx, session)
	return cloneSession(session), nil
}

// Get retrieves a session, preferring Redis so multiple replicas agree.
func (s *Store) Get(ctx context.Context, sessionID string) (chat.Session, error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, keyPrefix+sessionID).Result()
		switch {
		case err == nil:
			var session chat.Session
			if jsonErr := json.Unmarshal([]byte(raw), &session); jsonErr == nil {
				return session, nil
			}
			log.Printf("[session] corrupt redis payload for %s, falling back to memory", sessionID)
		case !errors.Is(err, redis.Nil):
			log.Printf("[session] redis get failed: %v", err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// AppendMessage records a turn and persists the session.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string) (chat.Message, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return chat.Message{}, err
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	session.Append(msg)
	s.persist(ctx, session)
	return msg, nil
}

// UpdateContext merges keys into the session context and persists.
func (s *Store) UpdateContext(ctx context.Context, sessionID string, updates map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.Context == nil {
		session.Context = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		session.Context[k] = v
	}
	session.LastActivity = time.Now().UTC()
	s.persist(ctx, session)
	return nil
}

// SetAuth records the practitioner credentials on the session and persists.
func (s *Store) SetAuth(ctx context.Context, sessionID, token, profileID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	session.AuthToken = token
	if profileID != "" {
		session.ProfileID = profileID
	}
	session.LastActivity = time.Now().UTC()
	s.persist(ctx, session)
	return nil
}

// Touch refreshes the session's activity clock and TTL.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.LastActivity = time.Now().UTC()
	s.persist(ctx, session)
	return nil
}

// Delete removes a session from both stores. The session counts as found
// when either store held it; after a restart it may live only in Redis.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	found := false
	if s.redis != nil {
		removed, err := s.redis.Del(ctx, keyPrefix+sessionID).Result()
		if err != nil {
			log.Printf("[session] redis delete failed: %v", err)
		} else if removed > 0 {
			found = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		found = true
	}
	if !found {
		return ErrSessionNotFound
	}
	return nil
}

// ActiveCount reports how many sessions are live.
func (s *Store) ActiveCount(ctx context.Context) int {
	if s.redis != nil {
		keys, err := s.redis.Keys(ctx, keyPrefix+"*").Result()
		if err == nil {
			return len(keys)
		}
		log.Printf("[session] redis keys failed: %v", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// persist writes the session to Redis with TTL and mirrors it in memory.
func (s *Store) persist(ctx context.Context, session chat.Session) {
	if s.redis != nil {
		payload, err := json.Marshal(session)
		if err == nil {
			if err := s.redis.SetEx(ctx, keyPrefix+session.ID, payload, s.ttl).Err(); err != nil {
				log.Printf("[session] redis save failed: %v", err)
			}
		} else {
			log.Printf("[session] marshal session failed: %v", err)
		}
	}

	s.mu.Lock()
	s.sessions[session.ID] = cloneSession(session)
	s.mu.Unlock()
}

// sweep drops in-memory sessions whose activity is past the TTL.
func (s *Store) sweep() {
	cutoff := time.Now().UTC().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		if session.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[session] swept %d expired sessions", removed)
	}
}

func cloneSession(session chat.Session) chat.Session {
	out := session
	out.Messages = append([]chat.Message(nil), session.Messages...)
	if session.Context != nil {
		out.Context = make(map[string]any, len(session.Context))
		for k, v := range session.Context {
			out.Context[k] = v
		}
	}
	return out
}
