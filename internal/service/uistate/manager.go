// Package uistate tracks what each connected frontend currently shows: the
// open transcript tabs, selected client and template, and the page the
// practitioner is on. Workspace tools read this state to act on the UI the
// user actually sees.
package uistate

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/antsa-au/haystack-service/internal/model/uistate"
)

const (
	stateTTL       = 24 * time.Hour
	statePrefix    = "ui_state:"
	tokenPrefix    = "auth_token:"
	epochTimestamp = "1970-01-01T00:00:00Z"
)

// pageNames maps frontend page identifiers to the names personas use when
// talking about them.
var pageNames = map[string]string{
	"dashboard":          "Dashboard",
	"clients_list":       "Clients",
	"client_details":     "Client Details",
	"messages_page":      "Messages",
	"homework_page":      "Homework",
	"files_page":         "Files",
	"profile_page":       "Profile",
	"practitioners_page": "Practitioners",
	"transcribe_page":    "Live Transcribe",
	"session_viewer":     "Session Viewer",
	"sessions_list":      "Sessions",
	"settings":           "Settings",
	"reports":            "Reports",
	"unknown":            "Unknown Page",
}

// pageCapabilities lists the workspace tools each page supports. Every page
// additionally gets the base tools that work anywhere.
var pageCapabilities = map[string][]string{
	"transcribe_page": {
		"set_client_selection", "load_session_direct", "load_multiple_sessions",
		"set_selected_template", "select_template_by_name", "get_loaded_sessions",
		"get_session_content", "analyze_loaded_session", "generate_document_from_loaded",
	},
	"client_details": {"get_client_summary", "get_client_homework_status", "load_session_direct"},
	"sessions_list":  {"load_session_direct", "load_multiple_sessions"},
	"messages_page":  {"search_clients", "get_conversations", "get_conversation_messages"},
}

var baseCapabilities = []string{"search_clients", "get_clinic_stats", "suggest_navigation"}

// Manager stores UI state in Redis with an in-memory mirror, same layout as
// the session store.
type Manager struct {
	redis *redis.Client

	mu      sync.RWMutex
	states  map[string]uistate.State
	tokens  map[string]string
	touched map[string]time.Time
}

// NewManager builds a Manager. The Redis client may be nil.
func NewManager(client *redis.Client) *Manager {
	return &Manager{
		redis:   client,
		states:  make(map[string]uistate.State),
		tokens:  make(map[string]string),
		touched: make(map[string]time.Time),
	}
}

// RegisterSweeper schedules the periodic cleanup of expired in-memory
// states. Redis entries expire on their own TTL.
func (m *Manager) RegisterSweeper(c *cron.Cron) error {
	_, err := c.AddFunc("@every 5m", m.sweep)
	return err
}

// Replace stores a full state snapshot for a session, stamping it with the
// current time, and records the auth token when one is supplied.
func (m *Manager) Replace(ctx context.Context, sessionID string, state uistate.State, authToken string) {
	if state == nil {
		state = uistate.State{}
	}
	state["last_updated"] = time.Now().UTC().Format(time.RFC3339)
	state["session_id"] = sessionID

	m.saveState(ctx, sessionID, state)

	if authToken != "" {
		if m.redis != nil {
			if err := m.redis.SetEx(ctx, tokenPrefix+sessionID, authToken, stateTTL).Err(); err != nil {
				log.Printf("[uistate] redis token save failed: %v", err)
			}
		}
		m.mu.Lock()
		m.tokens[sessionID] = authToken
		m.touched[sessionID] = time.Now().UTC()
		m.mu.Unlock()
	}
}

// ApplyIncremental merges a partial update into the stored state. Updates
// older than the stored snapshot are rejected so out-of-order frames from
// the frontend cannot roll the workspace back. ISO timestamps compare
// lexicographically.
func (m *Manager) ApplyIncremental(ctx context.Context, sessionID string, changes map[string]any, timestamp string) bool {
	state := m.Get(ctx, sessionID)

	stored := state.LastUpdated()
	if stored == "" {
		stored = epochTimestamp
	}
	if timestamp < stored {
		log.Printf("[uistate] stale update rejected for %s (%s < %s)", sessionID, timestamp, stored)
		return false
	}

	for k, v := range changes {
		state[k] = v
	}
	state["last_updated"] = timestamp
	state["session_id"] = sessionID

	m.saveState(ctx, sessionID, state)
	return true
}

// Get returns the stored state for a session, or an empty state.
func (m *Manager) Get(ctx context.Context, sessionID string) uistate.State {
	if m.redis != nil {
		raw, err := m.redis.Get(ctx, statePrefix+sessionID).Result()
		switch {
		case err == nil:
			var state uistate.State
			if jsonErr := json.Unmarshal([]byte(raw), &state); jsonErr == nil {
				return state
			}
			log.Printf("[uistate] corrupt redis payload for %s", sessionID)
		case !errors.Is(err, redis.Nil):
			log.Printf("[uistate] redis get failed: %v", err)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if state, ok := m.states[sessionID]; ok {
		return cloneState(state)
	}
	return uistate.State{}
}

// AuthToken returns the token last associated with the session, if any.
func (m *Manager) AuthToken(ctx context.Context, sessionID string) string {
	if m.redis != nil {
		token, err := m.redis.Get(ctx, tokenPrefix+sessionID).Result()
		if err == nil {
			return token
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("[uistate] redis token get failed: %v", err)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[sessionID]
}

// Cleanup removes the state and token for a disconnected session.
func (m *Manager) Cleanup(ctx context.Context, sessionID string) {
	if m.redis != nil {
		if err := m.redis.Del(ctx, statePrefix+sessionID, tokenPrefix+sessionID).Err(); err != nil {
			log.Printf("[uistate] redis cleanup failed: %v", err)
		}
	}

	m.mu.Lock()
	delete(m.states, sessionID)
	delete(m.tokens, sessionID)
	delete(m.touched, sessionID)
	m.mu.Unlock()
}

// StateIDs lists the sessions that currently have UI state.
func (m *Manager) StateIDs(ctx context.Context) []string {
	if m.redis != nil {
		keys, err := m.redis.Keys(ctx, statePrefix+"*").Result()
		if err == nil {
			ids := make([]string, 0, len(keys))
			for _, key := range keys {
				ids = append(ids, strings.TrimPrefix(key, statePrefix))
			}
			return ids
		}
		log.Printf("[uistate] redis keys failed: %v", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids
}

// MostRecent returns the most recently updated workspace state. Workspace
// tools target it when the request does not name a session explicitly.
func (m *Manager) MostRecent(ctx context.Context) (string, uistate.State) {
	var bestID string
	var bestState uistate.State
	bestStamp := ""

	for _, id := range m.StateIDs(ctx) {
		state := m.Get(ctx, id)
		if stamp := state.LastUpdated(); bestID == "" || stamp > bestStamp {
			bestID, bestState, bestStamp = id, state, stamp
		}
	}
	return bestID, bestState
}

// PageCapabilities returns the workspace tools available on a page,
// including the base tools that work anywhere.
func (m *Manager) PageCapabilities(pageType string) []string {
	caps := append([]string(nil), baseCapabilities...)
	return append(caps, pageCapabilities[pageType]...)
}

// DisplayName translates a page identifier into the user-facing page name.
func (m *Manager) DisplayName(pageType string) string {
	if name, ok := pageNames[pageType]; ok {
		return name
	}
	// Title-case unknown identifiers so prompts never show raw snake_case.
	words := strings.Split(strings.ReplaceAll(pageType, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// DeriveContext infers the page context from a state snapshot: the page
// identity plus the union of its static capabilities and the capabilities
// implied by what the workspace holds.
func (m *Manager) DeriveContext(state uistate.State) *uistate.PageContext {
	pageType := state.PageType()
	pageURL := state.PageURL()

	sessionsPage := pageType == "transcribe_page" || pageType == "sessions_page" ||
		pageType == "live_transcribe" || pageType == "live-transcribe" ||
		strings.Contains(pageURL, "/live-transcribe") || strings.Contains(pageURL, "/sessions")

	if pageType == "" {
		if sessionsPage {
			pageType = "transcribe_page"
		} else {
			pageType = "unknown"
		}
	}

	caps := m.PageCapabilities(pageType)
	if len(state.LoadedSessions()) > 0 {
		caps = append(caps, "get_loaded_sessions", "get_session_content", "analyze_loaded_session", "generate_document_from_loaded")
	}
	if _, ok := state.Template(); ok {
		caps = append(caps, "set_selected_template")
	}
	if sessionsPage {
		caps = append(caps, "set_client_selection", "load_session_direct", "load_multiple_sessions")
	}

	return &uistate.PageContext{
		PageType:        pageType,
		PageDisplayName: m.DisplayName(pageType),
		PageURL:         pageURL,
		Capabilities:    dedupe(caps),
		ClientID:        state.ClientID(),
		ActiveTab:       state.ActiveTab(),
	}
}

func (m *Manager) saveState(ctx context.Context, sessionID string, state uistate.State) {
	if m.redis != nil {
		payload, err := json.Marshal(state)
		if err == nil {
			if err := m.redis.SetEx(ctx, statePrefix+sessionID, payload, stateTTL).Err(); err != nil {
				log.Printf("[uistate] redis save failed: %v", err)
			}
		} else {
			log.Printf("[uistate] marshal state failed: %v", err)
		}
	}

	m.mu.Lock()
	m.states[sessionID] = cloneState(state)
	m.touched[sessionID] = time.Now().UTC()
	m.mu.Unlock()
}

// sweep drops in-memory states and tokens that have not been touched within
// the TTL window.
func (m *Manager) sweep() {
	cutoff := time.Now().UTC().Add(-stateTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, at := range m.touched {
		if at.Before(cutoff) {
			delete(m.states, id)
			delete(m.tokens, id)
			delete(m.touched, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[uistate] swept %d expired states", removed)
	}
}

func cloneState(state uistate.State) uistate.State {
	out := make(uistate.State, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
