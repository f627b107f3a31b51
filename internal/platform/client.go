// Package platform talks to the NestJS practice-management backend on behalf
// of the assistant tools and the document generator. Every request carries the
// practitioner's bearer token; the service holds no credentials of its own.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth carries the per-request credentials forwarded from the frontend.
type Auth struct {
	Token     string
	ProfileID string
}

// ProfileIDFromToken extracts the profile identifier from a JWT without
// verifying the signature. Verification belongs to the upstream gateway;
// here the claim only routes requests to the right practice profile.
func ProfileIDFromToken(token string) string {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	for _, key := range []string{"profileId", "profile_id", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ErrNoAuthToken rejects requests attempted without a bearer token. The text
// surfaces inside tool results, so the model can tell the user to sign in.
var ErrNoAuthToken = errors.New("no auth token set for API requests")

// APIError is a non-200 backend response. Its message format is part of the
// tool result contract surfaced to the model.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed: %d - %s", e.Status, e.Body)
}

// Client is a thin JSON client for the backend API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the given backend base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiPath normalizes an endpoint under the backend's global api/v1 prefix.
func apiPath(endpoint string) string {
	endpoint = strings.TrimLeft(endpoint, "/")
	if !strings.HasPrefix(endpoint, "api/v1/") {
		endpoint = "api/v1/" + endpoint
	}
	return endpoint
}

// Get performs an authenticated GET and decodes the JSON response. The
// result is a generic value because several endpoints return top-level
// arrays rather than objects.
func (c *Client) Get(ctx context.Context, auth Auth, endpoint string, params url.Values) (any, error) {
	target := c.baseURL + "/" + apiPath(endpoint)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, auth)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, auth Auth, endpoint string, body any) (any, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+apiPath(endpoint), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return c.do(req, auth)
}

func (c *Client) do(req *http.Request, auth Auth) (any, error) {
	if auth.Token == "" {
		return nil, ErrNoAuthToken
	}
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	req.Header.Set("Content-Type", "application/json")
	if auth.ProfileID != "" {
		req.Header.Set("profileid", auth.ProfileID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	var out any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
		}
	}
	return out, nil
}

// Segment is one transcript segment as returned by the backend. It stays a
// map because search responses attach ad-hoc annotation keys.
type Segment = map[string]any

// segmentsFrom accepts both response shapes seen in the wild: a bare array
// or an object with a "segments" key.
func segmentsFrom(data any) []Segment {
	var raw []any
	switch v := data.(type) {
	case []any:
		raw = v
	case map[string]any:
		raw, _ = v["segments"].([]any)
	}

	out := make([]Segment, 0, len(raw))
	for _, item := range raw {
		if seg, ok := item.(map[string]any); ok {
			out = append(out, seg)
		}
	}
	return out
}

// SemanticSearch runs a similarity search over the given transcripts.
func (c *Client) SemanticSearch(ctx context.Context, auth Auth, query string, transcriptIDs []string, limit int, threshold float64) ([]Segment, error) {
	data, err := c.Post(ctx, auth, "ai/semantic-search", map[string]any{
		"query":                query,
		"transcript_ids":       transcriptIDs,
		"limit":                limit,
		"similarity_threshold": threshold,
	})
	if err != nil {
		return nil, err
	}
	return segmentsFrom(data), nil
}

// SegmentsBySessions fetches raw transcript segments for whole sessions.
func (c *Client) SegmentsBySessions(ctx context.Context, auth Auth, sessionIDs []string, limitPerSession int) ([]Segment, error) {
	data, err := c.Post(ctx, auth, "ai/transcripts/segments-by-sessions", map[string]any{
		"session_ids":       sessionIDs,
		"limit_per_session": limitPerSession,
	})
	if err != nil {
		return nil, err
	}
	return segmentsFrom(data), nil
}

// SessionMetadata summarizes one transcription session.
type SessionMetadata struct {
	SessionID     string `json:"sessionId"`
	TotalSegments int    `json:"totalSegments"`
	Duration      int    `json:"duration"`
	RecordingDate string `json:"recordingDate"`
	CreatedAt     string `json:"createdAt"`
}

// SessionMetadataFor fetches size and date metadata for a session. Returns
// nil without error when the backend has no record; generation then falls
// back to the agentic path.
func (c *Client) SessionMetadataFor(ctx context.Context, auth Auth, sessionID string) (*SessionMetadata, error) {
	data, err := c.Get(ctx, auth, "ai/transcriptions/"+sessionID, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, nil
		}
		return nil, err
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return nil, nil
	}

	meta := &SessionMetadata{SessionID: sessionID}
	if v, ok := obj["totalSegments"].(float64); ok {
		meta.TotalSegments = int(v)
	}
	if v, ok := obj["duration"].(float64); ok {
		meta.Duration = int(v)
	}
	meta.RecordingDate, _ = obj["recordingDate"].(string)
	meta.CreatedAt, _ = obj["createdAt"].(string)
	return meta, nil
}

// PolicyViolation is the audit record sent to the backend when a template
// fails the content policy check.
type PolicyViolation struct {
	ProfileID       string         `json:"profileId"`
	TemplateID      string         `json:"templateId"`
	TemplateName    string         `json:"templateName"`
	ViolationType   string         `json:"violationType"`
	TemplateContent string         `json:"templateContent"`
	Reason          string         `json:"reason"`
	Confidence      string         `json:"confidence"`
	ClientID        string         `json:"clientId"`
	Metadata        map[string]any `json:"metadata"`
	IPAddress       string         `json:"ipAddress,omitempty"`
	UserAgent       string         `json:"userAgent,omitempty"`
}

// LogPolicyViolation records a violation with the backend audit log.
func (c *Client) LogPolicyViolation(ctx context.Context, auth Auth, violation PolicyViolation) error {
	_, err := c.Post(ctx, auth, "admin/policy-violations", violation)
	return err
}
