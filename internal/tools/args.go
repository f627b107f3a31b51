package tools

import "encoding/json"

// Args holds the decoded arguments of one tool call. Models emit loose
// JSON, so accessors coerce the common shape drift (numbers arriving as
// float64, integers as strings of digits never happen but nulls do).
type Args map[string]any

// ParseArgs decodes a tool call's argument JSON. Invalid JSON yields empty
// args rather than an error; the tool then reports what is missing, which
// gives the model a correctable message instead of a dead call.
func ParseArgs(raw string) Args {
	if raw == "" {
		return Args{}
	}
	var out Args
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return Args{}
	}
	return out
}

// String returns a string argument, or empty when absent.
func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

// StringDefault returns a string argument with a fallback.
func (a Args) StringDefault(key, def string) string {
	if v, ok := a[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns an integer argument with a fallback.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// Float returns a numeric argument with a fallback.
func (a Args) Float(key string, def float64) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// Bool returns a boolean argument with a fallback.
func (a Args) Bool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

// List returns a slice argument, or nil when absent.
func (a Args) List(key string) []any {
	v, _ := a[key].([]any)
	return v
}

// Map returns an object argument, or nil when absent.
func (a Args) Map(key string) map[string]any {
	v, _ := a[key].(map[string]any)
	return v
}

// StringSlice returns a list argument with non-string entries dropped.
func (a Args) StringSlice(key string) []string {
	raw := a.List(key)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether the argument is present, including explicit nulls.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}
