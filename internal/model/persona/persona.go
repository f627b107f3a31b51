package persona

// Persona type identifiers used in session records and API payloads.
const (
	TypeWebAssistant    = "web_assistant"
	TypeJaimeeTherapist = "jaimee_therapist"
)

// Persona captures a chat personality: its model parameters, system prompt
// and the tool names it may call.
type Persona struct {
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Model        string   `json:"-"`
	Temperature  float32  `json:"-"`
	MaxTokens    int      `json:"-"`
	HasDBAccess  bool     `json:"-"`
	SystemPrompt string   `json:"-"`
	Tools        []string `json:"-"`
}

// Seed provides the personas shipped with the service.
func Seed() []Persona {
	return []Persona{
		{
			Type:         TypeWebAssistant,
			Name:         "AI Assistant",
			Description:  "Intelligent assistant with access to clinic data and patient information",
			Model:        "gpt-4.1",
			Temperature:  0.7,
			MaxTokens:    32768,
			HasDBAccess:  true,
			SystemPrompt: webAssistantPrompt,
			Tools: []string{
				"get_client_summary",
				"search_clients",
				"generate_report",
				"get_conversations",
				"get_conversation_messages",
				"get_latest_conversation",
				"search_sessions",
				"validate_sessions",
				"load_session",
				"analyze_session_content",
				"set_client_selection",
				"load_session_direct",
				"load_multiple_sessions",
				"suggest_navigation",
				"navigate_to_page",
				"get_loaded_sessions",
				"get_session_content",
				"analyze_loaded_session",
				"get_templates",
				"set_selected_template",
				"generate_document_from_loaded",
			},
		},
		{
			Type:         TypeJaimeeTherapist,
			Name:         "jAImee",
			Description:  "A compassionate therapist providing mental health support and guidance",
			Model:        "gpt-4.1",
			Temperature:  0.8,
			MaxTokens:    32768,
			HasDBAccess:  false,
			SystemPrompt: jaimeePrompt,
			Tools: []string{
				"mood_check_in",
				"coping_strategies",
				"breathing_exercise",
			},
		},
	}
}
