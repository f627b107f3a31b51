package uistate

// PageContext is the page situation handed to the chat pipeline and tools:
// which page the practitioner is on and which workspace tools that page
// supports. Serialized into the system prompt for personas with data access.
type PageContext struct {
	PageType        string   `json:"page_type"`
	PageDisplayName string   `json:"page_display_name,omitempty"`
	PageURL         string   `json:"page_url,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`
	ClientID        string   `json:"client_id,omitempty"`
	ActiveTab       string   `json:"active_tab,omitempty"`
}

// Allows reports whether the page supports the named workspace tool.
// An unknown page allows everything; gating only applies once the frontend
// has told us where the user is.
func (p *PageContext) Allows(tool string) bool {
	if p == nil || p.PageType == "" || p.PageType == "unknown" {
		return true
	}
	for _, c := range p.Capabilities {
		if c == tool {
			return true
		}
	}
	return false
}
