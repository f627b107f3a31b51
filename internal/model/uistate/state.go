// Package uistate models the browser-side workspace state the frontend
// mirrors to the service: loaded transcript tabs, the selected client and
// template, and generated documents. Key casing follows the frontend wire
// format, which mixes camelCase payloads with snake_case page fields.
package uistate

import "encoding/json"

// State is the raw state bag received from the frontend. Incremental
// updates merge arbitrary keys, so the bag stays schemaless with typed
// accessors on top.
type State map[string]any

// LoadedSession is one transcript tab open in the UI.
type LoadedSession struct {
	SessionID  string         `json:"sessionId"`
	ClientID   string         `json:"clientId"`
	ClientName string         `json:"clientName"`
	Content    string         `json:"content,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// CurrentClient is the client selected in the UI.
type CurrentClient struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
}

// SelectedTemplate is the document template picked for generation.
type SelectedTemplate struct {
	TemplateID          string `json:"templateId"`
	TemplateName        string `json:"templateName"`
	TemplateContent     string `json:"templateContent"`
	TemplateDescription string `json:"templateDescription,omitempty"`
}

// GeneratedDocument is a document produced in this workspace.
type GeneratedDocument struct {
	DocumentID      string `json:"documentId"`
	DocumentName    string `json:"documentName"`
	DocumentContent string `json:"documentContent,omitempty"`
}

func (s State) str(key string) string {
	v, _ := s[key].(string)
	return v
}

// PageType reports the frontend page identifier, accepting both key styles.
func (s State) PageType() string {
	if v := s.str("page_type"); v != "" {
		return v
	}
	return s.str("pageType")
}

// PageURL reports the frontend route, accepting the key styles seen in the wild.
func (s State) PageURL() string {
	if v := s.str("page_url"); v != "" {
		return v
	}
	if v := s.str("pageUrl"); v != "" {
		return v
	}
	return s.str("route")
}

// LastUpdated returns the state timestamp used for stale-update rejection.
func (s State) LastUpdated() string { return s.str("last_updated") }

// ClientID returns the page-level client identifier, if any.
func (s State) ClientID() string { return s.str("client_id") }

// ActiveTab returns the active transcript tab identifier, if any.
func (s State) ActiveTab() string { return s.str("active_tab") }

// LoadedSessions decodes the loaded transcript tabs, tolerating partial entries.
func (s State) LoadedSessions() []LoadedSession {
	var out []LoadedSession
	decode(s["loadedSessions"], &out)
	return out
}

// CurrentClientSelection decodes the selected client, reporting whether one is set.
func (s State) CurrentClientSelection() (CurrentClient, bool) {
	var out CurrentClient
	if !decode(s["currentClient"], &out) {
		return CurrentClient{}, false
	}
	return out, out.ClientID != "" || out.ClientName != ""
}

// Template decodes the selected template, reporting whether one is set.
func (s State) Template() (SelectedTemplate, bool) {
	var out SelectedTemplate
	if !decode(s["selectedTemplate"], &out) {
		return SelectedTemplate{}, false
	}
	return out, out.TemplateID != "" || out.TemplateName != "" || out.TemplateContent != ""
}

// GeneratedDocuments decodes the documents generated in this workspace.
func (s State) GeneratedDocuments() []GeneratedDocument {
	var out []GeneratedDocument
	decode(s["generatedDocuments"], &out)
	return out
}

// decode round-trips an untyped state value into a typed shape. Frontend
// payloads arrive as generic JSON, so the round trip is the conversion.
func decode(v any, out any) bool {
	if v == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
